// Package stream provides a DynamoDB Streams handler that reports record
// changes in keyroute tables by their hierarchical keys.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/keyroute/dynamo"
	"github.com/jacentio/keyroute/internal/keypath"
	"github.com/jacentio/keyroute/store"
)

// Op is the kind of change.
type Op string

const (
	OpPut    Op = "put"
	OpRemove Op = "remove"
)

// Change describes one record written or removed through keyroute.
type Change struct {
	Op    Op
	Table string
	Key   string

	// Data is the stored payload. Nil for OpRemove.
	Data json.RawMessage
}

// Notifier receives changes. Returning an error fails the batch so Lambda retries it.
type Notifier func(ctx context.Context, change Change) error

// Handler processes DynamoDB stream events for the tables of one keyspace.
type Handler struct {
	keyspace string
	notify   Notifier
	logger   *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(keyspace string, notify Notifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		keyspace: keyspace,
		notify:   notify,
		logger:   logger,
	}
}

// HandleChanges delivers a Change for every keyroute record in event.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleChanges(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	table, ok := dynamo.LogicalTable(h.keyspace, tableFromARN(record.EventSourceArn))
	if !ok {
		return nil
	}

	var change Change
	switch record.EventName {
	case "INSERT", "MODIFY":
		newData := getStringAttr(record.Change.NewImage, store.PayloadColumn)
		if record.EventName == "MODIFY" && newData == getStringAttr(record.Change.OldImage, store.PayloadColumn) {
			return nil
		}
		change = Change{Op: OpPut, Data: json.RawMessage(newData)}
	case "REMOVE":
		change = Change{Op: OpRemove}
	default:
		return nil
	}

	key, err := recordKey(table, record.Change.Keys)
	if err != nil {
		return err
	}
	change.Table = table
	change.Key = key

	h.logger.Debug("record changed", "op", change.Op, "key", change.Key)
	if err := h.notify(ctx, change); err != nil {
		return fmt.Errorf("notify %s %q: %w", change.Op, change.Key, err)
	}
	return nil
}

// recordKey rebuilds the hierarchical key from a stream record's primary key.
func recordKey(table string, keys map[string]events.DynamoDBAttributeValue) (string, error) {
	var partition string
	var cluster []string
	for name := range keys {
		if name == dynamo.ClusterKeyAttr {
			values, err := dynamo.DecodeClusterKey(getStringAttr(keys, name))
			if err != nil {
				return "", err
			}
			cluster = values
			continue
		}
		partition = getScalarAttr(keys, name)
	}
	if partition == "" {
		return "", fmt.Errorf("record in %q has no partition key", table)
	}
	return keypath.Join(append([]string{table, partition}, cluster...)...), nil
}

// tableFromARN extracts the table name from a stream ARN of the form
// arn:aws:dynamodb:region:account:table/NAME/stream/LABEL.
func tableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getScalarAttr extracts a string or number attribute as text.
func getScalarAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	v, ok := image[key]
	if !ok {
		return ""
	}
	switch v.DataType() {
	case events.DataTypeString:
		return v.String()
	case events.DataTypeNumber:
		return v.Number()
	}
	return ""
}
