package dynamo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/keyroute/store"
)

const (
	// ClusterKeyAttr is the sort key attribute holding every cluster value.
	ClusterKeyAttr = "_ck"

	// clusterKeyPrefix keeps the sort key non-empty when every cluster value is "".
	clusterKeyPrefix = "#"

	tableSeparator = "."
	catalogSuffix  = ".keyroute.catalog"
)

// PhysicalTable returns the DynamoDB table name for a keyroute table.
func PhysicalTable(keyspace, table string) string {
	return keyspace + tableSeparator + table
}

// LogicalTable strips the keyspace from a DynamoDB table name.
// It reports false for tables outside keyspace and for the catalog table.
func LogicalTable(keyspace, physical string) (string, bool) {
	table, ok := strings.CutPrefix(physical, keyspace+tableSeparator)
	if !ok || table == "" || strings.Contains(table, tableSeparator) {
		return "", false
	}
	return table, true
}

// CatalogTable returns the name of the table recording each table's key layout.
// Logical table names never contain a dot, so it cannot collide with them.
func CatalogTable(keyspace string) string {
	return keyspace + catalogSuffix
}

// EncodeClusterKey packs cluster values into a single sort key.
// Values are key segments and never contain '#', so the encoding is injective.
func EncodeClusterKey(values []string) string {
	return clusterKeyPrefix + strings.Join(values, clusterKeyPrefix)
}

// DecodeClusterKey reverses EncodeClusterKey.
func DecodeClusterKey(ck string) ([]string, error) {
	rest, ok := strings.CutPrefix(ck, clusterKeyPrefix)
	if !ok {
		return nil, fmt.Errorf("dynamo: malformed cluster key %q", ck)
	}
	return strings.Split(rest, clusterKeyPrefix), nil
}

// catalogEntry is one item of the catalog table.
type catalogEntry struct {
	Table     string   `dynamodbav:"table"`
	Partition string   `dynamodbav:"partition"`
	Cluster   []string `dynamodbav:"cluster,omitempty"`
	CreatedAt string   `dynamodbav:"created_at"`
}

func newCatalogEntry(table string, schema store.Schema, createdAt string) catalogEntry {
	e := catalogEntry{
		Table:     table,
		Partition: schema.Partition.String(),
		CreatedAt: createdAt,
	}
	for _, c := range schema.Cluster {
		e.Cluster = append(e.Cluster, c.String())
	}
	return e
}

func (e catalogEntry) schema() (store.Schema, error) {
	var s store.Schema
	var err error
	if s.Partition, err = store.ParseColumn(e.Partition); err != nil {
		return store.Schema{}, fmt.Errorf("catalog entry %q: %w", e.Table, err)
	}
	for _, raw := range e.Cluster {
		col, err := store.ParseColumn(raw)
		if err != nil {
			return store.Schema{}, fmt.Errorf("catalog entry %q: %w", e.Table, err)
		}
		s.Cluster = append(s.Cluster, col)
	}
	return s, s.Validate()
}

// scalarType is the DynamoDB key attribute type for a column.
func scalarType(t store.ColumnType) types.ScalarAttributeType {
	if t.Numeric() {
		return types.ScalarAttributeTypeN
	}
	return types.ScalarAttributeTypeS
}

// columnValue encodes a bound column value. Numeric columns are stored as N
// unless empty, which only happens for omitted cluster columns.
func columnValue(col store.Column, v string) (types.AttributeValue, error) {
	if col.Type.Numeric() && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		return attributevalue.Marshal(n)
	}
	return &types.AttributeValueMemberS{Value: v}, nil
}

// keyItem returns the primary key attributes of row.
func keyItem(schema store.Schema, row store.Row) (map[string]types.AttributeValue, error) {
	pk, err := columnValue(schema.Partition, row[schema.Partition.Name])
	if err != nil {
		return nil, err
	}
	key := map[string]types.AttributeValue{schema.Partition.Name: pk}
	if len(schema.Cluster) > 0 {
		values := row.KeyValues(schema)[1:]
		key[ClusterKeyAttr] = &types.AttributeValueMemberS{Value: EncodeClusterKey(values)}
	}
	return key, nil
}

// rowItem returns the full item for row: key attributes, each cluster
// column and the payload.
func rowItem(schema store.Schema, row store.Row) (map[string]types.AttributeValue, error) {
	item, err := keyItem(schema, row)
	if err != nil {
		return nil, err
	}
	for _, col := range schema.Cluster {
		av, err := columnValue(col, row[col.Name])
		if err != nil {
			return nil, err
		}
		item[col.Name] = av
	}
	if data, ok := row[store.PayloadColumn]; ok {
		item[store.PayloadColumn] = &types.AttributeValueMemberS{Value: data}
	}
	return item, nil
}

// itemRow converts an item back to a row. Missing cluster columns read as "".
func itemRow(schema store.Schema, item map[string]types.AttributeValue) store.Row {
	row := make(store.Row, len(schema.Cluster)+2)
	for _, col := range schema.Columns() {
		row[col.Name] = stringAttr(item, col.Name)
	}
	if _, ok := item[store.PayloadColumn]; ok {
		row[store.PayloadColumn] = stringAttr(item, store.PayloadColumn)
	}
	return row
}

// stringAttr returns an S or N attribute as a string.
func stringAttr(item map[string]types.AttributeValue, name string) string {
	switch v := item[name].(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}
