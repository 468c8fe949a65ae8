package dynamo_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeAPI is an in-memory DynamoDB covering the calls Backend makes.
type fakeAPI struct {
	mu      sync.Mutex
	tables  map[string]*fakeTable
	creates []string
	errs    map[string]error
}

type fakeTable struct {
	input *dynamodb.CreateTableInput
	items map[string]map[string]types.AttributeValue
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		tables: make(map[string]*fakeTable),
		errs:   make(map[string]error),
	}
}

func (f *fakeAPI) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeAPI) table(name string) (*fakeTable, error) {
	t, ok := f.tables[name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: " + name)}
	}
	return t, nil
}

func (f *fakeAPI) itemKey(t *fakeTable, item map[string]types.AttributeValue) string {
	var key string
	for _, el := range t.input.KeySchema {
		key += avString(item[aws.ToString(el.AttributeName)]) + "\x00"
	}
	return key
}

func avString(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + v.Value
	case *types.AttributeValueMemberN:
		return "N:" + v.Value
	}
	return "?"
}

func (f *fakeAPI) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["ListTables"]; err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.tables))
	for name := range f.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return &dynamodb.ListTablesOutput{TableNames: names}, nil
}

func (f *fakeAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(params.TableName)
	t, err := f.table(name)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:            params.TableName,
		TableStatus:          types.TableStatusActive,
		KeySchema:            t.input.KeySchema,
		AttributeDefinitions: t.input.AttributeDefinitions,
	}}, nil
}

func (f *fakeAPI) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["CreateTable"]; err != nil {
		return nil, err
	}
	name := aws.ToString(params.TableName)
	if _, ok := f.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + name)}
	}
	f.tables[name] = &fakeTable{input: params, items: make(map[string]map[string]types.AttributeValue)}
	f.creates = append(f.creates, name)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["GetItem"]; err != nil {
		return nil, err
	}
	t, err := f.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: t.items[f.itemKey(t, params.Key)]}, nil
}

func (f *fakeAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["PutItem"]; err != nil {
		return nil, err
	}
	t, err := f.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}
	key := f.itemKey(t, params.Item)
	if params.ConditionExpression != nil {
		if _, exists := t.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	t.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAPI) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, err := f.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}
	delete(t.items, f.itemKey(t, params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query supports the exact-key condition built by KeyConditionExpr.
func (f *fakeAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs["Query"]; err != nil {
		return nil, err
	}
	t, err := f.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}
	want := map[string]types.AttributeValue{
		params.ExpressionAttributeNames["#pk"]: params.ExpressionAttributeValues[":pk"],
	}
	if ck, ok := params.ExpressionAttributeNames["#ck"]; ok {
		want[ck] = params.ExpressionAttributeValues[":ck"]
	}
	var items []map[string]types.AttributeValue
	for _, item := range t.items {
		match := true
		for name, av := range want {
			if avString(item[name]) != avString(av) {
				match = false
			}
		}
		if match {
			items = append(items, item)
		}
	}
	return &dynamodb.QueryOutput{Items: items, Count: int32(len(items))}, nil
}

func (f *fakeAPI) item(table string, key map[string]types.AttributeValue) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[table]
	if !ok {
		panic(fmt.Sprintf("no table %s", table))
	}
	return t.items[f.itemKey(t, key)]
}
