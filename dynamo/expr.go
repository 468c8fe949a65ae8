package dynamo

import "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

// KeyConditionExpr returns the key condition matching exactly one primary key.
func KeyConditionExpr(hasCluster bool) string {
	if hasCluster {
		return "#pk = :pk AND #ck = :ck"
	}
	return "#pk = :pk"
}

// KeyConditionNames returns expression attribute names for KeyConditionExpr.
func KeyConditionNames(partition string, hasCluster bool) map[string]string {
	names := map[string]string{"#pk": partition}
	if hasCluster {
		names["#ck"] = ClusterKeyAttr
	}
	return names
}

// KeyConditionValues returns expression attribute values for KeyConditionExpr,
// taken from a key built by keyItem.
func KeyConditionValues(partition string, key map[string]types.AttributeValue) map[string]types.AttributeValue {
	values := map[string]types.AttributeValue{":pk": key[partition]}
	if ck, ok := key[ClusterKeyAttr]; ok {
		values[":ck"] = ck
	}
	return values
}

// NotExistsCondition guards a put against overwriting an existing item.
// Bind #key to the hash key attribute.
func NotExistsCondition() string {
	return "attribute_not_exists(#key)"
}
