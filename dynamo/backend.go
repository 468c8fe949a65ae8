// Package dynamo implements store.Backend on Amazon DynamoDB.
//
// Each keyroute table maps to the DynamoDB table "<keyspace>.<table>" with a
// hash key on the partition column and, when the table has cluster columns, a
// string range key "_ck" that packs every cluster value. Key layouts are
// recorded in the "<keyspace>.keyroute.catalog" table, which acts as the
// schema catalog and decides concurrent creations.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/keyroute/internal/keypath"
	"github.com/jacentio/keyroute/store"
)

// API is the subset of *dynamodb.Client used by Backend.
type API interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// Keyspace prefixes every table name. Required.
	Keyspace string

	// CreateTimeout bounds the wait for a new table to become active.
	// Default: 2m
	CreateTimeout time.Duration
}

func (c *Config) validate() error {
	if !keypath.ValidSegment(c.Keyspace) {
		return fmt.Errorf("keyroute: invalid dynamo keyspace %q", c.Keyspace)
	}
	if c.CreateTimeout <= 0 {
		c.CreateTimeout = 2 * time.Minute
	}
	return nil
}

// Backend stores keyroute tables in DynamoDB.
type Backend struct {
	client API
	config Config
	logger *slog.Logger
	now    func() time.Time
}

var _ store.Backend = (*Backend)(nil)

// New creates a Backend. A nil logger uses slog.Default().
func New(client API, config Config, logger *slog.Logger) (*Backend, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		client: client,
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Connect checks the endpoint is reachable and creates the catalog table if needed.
func (b *Backend) Connect(ctx context.Context) error {
	if _, err := b.client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)}); err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	catalog := CatalogTable(b.config.Keyspace)
	err := b.ensureTable(ctx, catalog, &dynamodb.CreateTableInput{
		TableName:   aws.String(catalog),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("table"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("table"), KeyType: types.KeyTypeHash},
		},
	})
	if err != nil {
		return fmt.Errorf("catalog table: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no connections that need releasing.
func (b *Backend) Close(ctx context.Context) error {
	return nil
}

// TableSchema reads table's layout from the catalog and makes sure the data
// table is active, completing a creation another process started.
func (b *Backend) TableSchema(ctx context.Context, table string) (store.Schema, error) {
	entry, found, err := b.catalogEntry(ctx, table)
	if err != nil {
		return store.Schema{}, err
	}
	if !found {
		return store.Schema{}, store.ErrTableNotFound
	}
	schema, err := entry.schema()
	if err != nil {
		return store.Schema{}, err
	}
	if err := b.ensureTable(ctx, PhysicalTable(b.config.Keyspace, table), createInput(b.config.Keyspace, table, schema)); err != nil {
		return store.Schema{}, err
	}
	return schema, nil
}

// CreateTable claims table in the catalog, then creates the data table with
// whichever layout won the claim.
func (b *Backend) CreateTable(ctx context.Context, table string, schema store.Schema) error {
	entry := newCatalogEntry(table, schema, b.now().UTC().Format(time.RFC3339))
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal catalog entry: %w", err)
	}
	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(CatalogTable(b.config.Keyspace)),
		Item:                     item,
		ConditionExpression:      aws.String(NotExistsCondition()),
		ExpressionAttributeNames: map[string]string{"#key": "table"},
	})
	var condErr *types.ConditionalCheckFailedException
	switch {
	case err == nil:
		b.logger.Info("claimed table", "table", table, "schema", schema.String())
	case errors.As(err, &condErr):
		existing, found, err := b.catalogEntry(ctx, table)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("catalog entry for %q vanished", table)
		}
		if schema, err = existing.schema(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("claim table %q: %w", table, err)
	}
	return b.ensureTable(ctx, PhysicalTable(b.config.Keyspace, table), createInput(b.config.Keyspace, table, schema))
}

// Insert writes row with PutItem, replacing any item with the same key.
func (b *Backend) Insert(ctx context.Context, table string, schema store.Schema, row store.Row) error {
	item, err := rowItem(schema, row)
	if err != nil {
		return err
	}
	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(PhysicalTable(b.config.Keyspace, table)),
		Item:      item,
	})
	return err
}

// Select queries the items whose primary key equals key's.
func (b *Backend) Select(ctx context.Context, table string, schema store.Schema, key store.Row) ([]store.Row, error) {
	k, err := keyItem(schema, key)
	if err != nil {
		return nil, err
	}
	hasCluster := len(schema.Cluster) > 0
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(PhysicalTable(b.config.Keyspace, table)),
		KeyConditionExpression:    aws.String(KeyConditionExpr(hasCluster)),
		ExpressionAttributeNames:  KeyConditionNames(schema.Partition.Name, hasCluster),
		ExpressionAttributeValues: KeyConditionValues(schema.Partition.Name, k),
		ConsistentRead:            aws.Bool(true),
	}

	var rows []store.Row
	paginator := dynamodb.NewQueryPaginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			rows = append(rows, itemRow(schema, item))
		}
	}
	return rows, nil
}

// Delete removes the item with key's primary key. Missing items are not an error.
func (b *Backend) Delete(ctx context.Context, table string, schema store.Schema, key store.Row) error {
	k, err := keyItem(schema, key)
	if err != nil {
		return err
	}
	_, err = b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(PhysicalTable(b.config.Keyspace, table)),
		Key:       k,
	})
	return err
}

// catalogEntry reads table's catalog item with a strongly consistent read.
func (b *Backend) catalogEntry(ctx context.Context, table string) (catalogEntry, bool, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(CatalogTable(b.config.Keyspace)),
		Key:            map[string]types.AttributeValue{"table": &types.AttributeValueMemberS{Value: table}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return catalogEntry{}, false, fmt.Errorf("read catalog: %w", err)
	}
	if out.Item == nil {
		return catalogEntry{}, false, nil
	}
	var entry catalogEntry
	if err := attributevalue.UnmarshalMap(out.Item, &entry); err != nil {
		return catalogEntry{}, false, fmt.Errorf("decode catalog entry %q: %w", table, err)
	}
	return entry, true, nil
}

// ensureTable creates name from input unless it exists, then waits until it is active.
func (b *Backend) ensureTable(ctx context.Context, name string, input *dynamodb.CreateTableInput) error {
	out, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	var notFound *types.ResourceNotFoundException
	switch {
	case err == nil:
		if out.Table != nil && out.Table.TableStatus == types.TableStatusActive {
			return nil
		}
	case errors.As(err, &notFound):
		var inUse *types.ResourceInUseException
		if _, err := b.client.CreateTable(ctx, input); err != nil && !errors.As(err, &inUse) {
			return fmt.Errorf("create table %q: %w", name, err)
		}
		b.logger.Info("creating table", "table", name)
	default:
		return fmt.Errorf("describe table %q: %w", name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(b.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, b.config.CreateTimeout); err != nil {
		return fmt.Errorf("wait for table %q: %w", name, err)
	}
	return nil
}

// createInput builds the CreateTable request for a data table.
func createInput(keyspace, table string, schema store.Schema) *dynamodb.CreateTableInput {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(PhysicalTable(keyspace, table)),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(schema.Partition.Name), AttributeType: scalarType(schema.Partition.Type)},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(schema.Partition.Name), KeyType: types.KeyTypeHash},
		},
		StreamSpecification: &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeNewAndOldImages,
		},
	}
	if len(schema.Cluster) > 0 {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(ClusterKeyAttr), AttributeType: types.ScalarAttributeTypeS,
		})
		input.KeySchema = append(input.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(ClusterKeyAttr), KeyType: types.KeyTypeRange,
		})
	}
	return input
}
