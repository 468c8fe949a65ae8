package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/keyroute/dynamo"
	"github.com/jacentio/keyroute/internal/config"
	"github.com/jacentio/keyroute/sqlite"
	"github.com/jacentio/keyroute/store"
)

// newBackend builds the backend selected by cfg.
func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Backend.Kind {
	case config.BackendMemory:
		return store.NewMemoryBackend(), nil
	case config.BackendSQLite:
		return sqlite.New(sqlite.Config{Path: cfg.Backend.Path}, logger)
	case config.BackendDynamoDB:
		client, err := newDynamoClient(ctx, cfg.Backend)
		if err != nil {
			return nil, err
		}
		return dynamo.New(client, dynamo.Config{Keyspace: cfg.Keyspace}, logger)
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend.Kind)
}

func newDynamoClient(ctx context.Context, bc config.BackendConfig) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if bc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(bc.Region))
	}
	if bc.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(bc.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if bc.Endpoint != "" {
			o.BaseEndpoint = aws.String(bc.Endpoint)
		}
	}), nil
}
