//go:build e2e

// Package e2e contains end-to-end integration tests against DynamoDB.
// Run with: go test -tags=e2e -v ./e2e/...
//
// KEYROUTE_E2E_ENDPOINT points at DynamoDB Local (default http://localhost:8000).
// Set it to "aws" to use the default AWS endpoint with KEYROUTE_E2E_PROFILE.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jacentio/keyroute/dynamo"
	"github.com/jacentio/keyroute/store"
)

var (
	keyspace  string
	ddbClient *dynamodb.Client
	testStore *store.Store
)

func TestMain(m *testing.M) {
	// Unique keyspace per run to avoid conflicts
	keyspace = "e2e_" + strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	fmt.Printf("Keyspace: %s\n", keyspace)

	ctx := context.Background()
	endpoint := os.Getenv("KEYROUTE_E2E_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:8000"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion("us-east-1")}
	if profile := os.Getenv("KEYROUTE_E2E_PROFILE"); profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if endpoint != "aws" && os.Getenv("AWS_ACCESS_KEY_ID") == "" {
		// DynamoDB Local accepts any credentials.
		os.Setenv("AWS_ACCESS_KEY_ID", "local")
		os.Setenv("AWS_SECRET_ACCESS_KEY", "local")
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}
	ddbClient = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "aws" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend, err := dynamo.New(ddbClient, dynamo.Config{Keyspace: keyspace}, logger)
	if err != nil {
		fmt.Printf("Failed to create backend: %v\n", err)
		os.Exit(1)
	}
	testStore, err = store.New(backend, store.Config{Keyspace: keyspace}, store.WithLogger(logger))
	if err != nil {
		fmt.Printf("Failed to create store: %v\n", err)
		os.Exit(1)
	}
	if err := testStore.Connect(ctx); err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = testStore.Close(ctx)
	if err := deleteTables(ctx); err != nil {
		fmt.Printf("Failed to delete tables: %v\n", err)
	}

	os.Exit(code)
}

// deleteTables removes every table of the test keyspace, catalog included.
func deleteTables(ctx context.Context) error {
	fmt.Println("Deleting test tables...")
	paginator := dynamodb.NewListTablesPaginator(ddbClient, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, name := range page.TableNames {
			if !strings.HasPrefix(name, keyspace+".") {
				continue
			}
			if _, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
				return fmt.Errorf("delete %s: %w", name, err)
			}
			fmt.Printf("  - deleted %s\n", name)
		}
	}
	return nil
}

func TestPutFetch_RoundTrip(t *testing.T) {
	ctx := context.Background()
	key := "test_composite_deep/" + uuid.NewString() + "/one/two/three"
	value := map[string]any{"val1": float64(1), "val2": float64(33), "nested": map[string]any{"x": []any{"y"}}}

	if err := testStore.Put(ctx, key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got map[string]any
	found, err := testStore.FetchInto(ctx, key, &got)
	if err != nil {
		t.Fatalf("FetchInto failed: %v", err)
	}
	if !found {
		t.Fatal("expected record to be found")
	}
	want, _ := json.Marshal(value)
	have, _ := json.Marshal(got)
	if string(want) != string(have) {
		t.Errorf("expected %s, got %s", want, have)
	}
}

func TestFetch_NotFound(t *testing.T) {
	data, err := testStore.Fetch(context.Background(), "user/"+uuid.NewString())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil, got %s", data)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	ctx := context.Background()
	key := "user/" + uuid.NewString() + "/inbox"

	if err := testStore.Put(ctx, key, "hello"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := testStore.Remove(ctx, key); err != nil {
			t.Fatalf("Remove %d failed: %v", i, err)
		}
	}
	data, err := testStore.Fetch(ctx, key)
	if err != nil || data != nil {
		t.Errorf("expected not found after remove, got %s, %v", data, err)
	}
}

func TestSpill_DeepKey(t *testing.T) {
	ctx := context.Background()
	partition := uuid.NewString()
	deep := "user/" + partition + "/a/b/c/d/e"
	shallow := "user/" + partition + "/a/b/c"

	if err := testStore.Put(ctx, deep, 1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := testStore.Put(ctx, shallow, 2); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	for key, want := range map[string]string{deep: "1", shallow: "2"} {
		data, err := testStore.Fetch(ctx, key)
		if err != nil {
			t.Fatalf("Fetch %s failed: %v", key, err)
		}
		if string(data) != want {
			t.Errorf("Fetch %s: expected %s, got %s", key, want, data)
		}
	}
}

func TestSingleSegmentKey_DefaultTable(t *testing.T) {
	ctx := context.Background()
	id := uuid.NewString()

	if err := testStore.Put(ctx, id, "global"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := testStore.Fetch(ctx, "global/"+id)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != `"global"` {
		t.Errorf("expected %q, got %s", `"global"`, data)
	}
}

func TestCreateTable_TypedColumns(t *testing.T) {
	ctx := context.Background()
	schema, err := testStore.CreateTable(ctx, "scores", store.ColumnSpec{Columns: []store.Column{
		{Name: "player", Type: store.TypeUUID},
		{Name: "year", Type: store.TypeInt},
	}})
	if err != nil {
		t.Fatalf("CreateTable failed: %v", err)
	}
	if schema.String() != "(player:uuid, year:int)" {
		t.Errorf("unexpected schema %s", schema)
	}

	key := fmt.Sprintf("scores/%s/2024", uuid.NewString())
	if err := testStore.Put(ctx, key, 100); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, err := testStore.Fetch(ctx, key)
	if err != nil || string(data) != "100" {
		t.Errorf("expected 100, got %s, %v", data, err)
	}
}

func TestConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	table := "race_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- testStore.Put(ctx, fmt.Sprintf("%s/p%d", table, i), i)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Put failed: %v", err)
		}
	}
}
