package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

// --- getStringAttr Tests ---

func TestGetStringAttr_ExistingString(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"data": events.NewStringAttribute(`{"a":1}`),
	}

	result := getStringAttr(image, "data")
	if result != `{"a":1}` {
		t.Errorf("expected %q, got %q", `{"a":1}`, result)
	}
}

func TestGetStringAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"other": events.NewStringAttribute("value"),
	}

	result := getStringAttr(image, "data")
	if result != "" {
		t.Errorf("expected empty string for missing key, got %q", result)
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	result := getStringAttr(image, "data")
	if result != "" {
		t.Errorf("expected empty string for nil image, got %q", result)
	}
}

func TestGetStringAttr_NumberAttribute(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"data": events.NewNumberAttribute("42"),
	}

	result := getStringAttr(image, "data")
	if result != "" {
		t.Errorf("expected empty string for number attribute, got %q", result)
	}
}

// --- getScalarAttr Tests ---

func TestGetScalarAttr(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"s":    events.NewStringAttribute("ryan"),
		"n":    events.NewNumberAttribute("9223372036854775807"),
		"bool": events.NewBooleanAttribute(true),
	}

	tests := []struct {
		key  string
		want string
	}{
		{"s", "ryan"},
		{"n", "9223372036854775807"},
		{"bool", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := getScalarAttr(image, tt.key); got != tt.want {
			t.Errorf("getScalarAttr(%q): expected %q, got %q", tt.key, tt.want, got)
		}
	}
}

// --- tableFromARN Tests ---

func TestTableFromARN(t *testing.T) {
	tests := []struct {
		arn  string
		want string
	}{
		{"arn:aws:dynamodb:us-east-1:123456789012:table/ks.user/stream/2024-01-01T00:00:00.000", "ks.user"},
		{"arn:aws:dynamodb:us-east-1:123456789012:table/ks.user", "ks.user"},
		{"arn:aws:dynamodb:ddblocal:000000000000:table/ks.global/stream/label", "ks.global"},
		{"", ""},
		{"not-an-arn", ""},
	}
	for _, tt := range tests {
		if got := tableFromARN(tt.arn); got != tt.want {
			t.Errorf("tableFromARN(%q): expected %q, got %q", tt.arn, tt.want, got)
		}
	}
}

// --- recordKey Tests ---

func TestRecordKey(t *testing.T) {
	tests := []struct {
		name string
		keys map[string]events.DynamoDBAttributeValue
		want string
	}{
		{
			name: "partition only",
			keys: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute("ryan"),
			},
			want: "user/ryan",
		},
		{
			name: "omitted cluster columns",
			keys: map[string]events.DynamoDBAttributeValue{
				"pk":  events.NewStringAttribute("ryan"),
				"_ck": events.NewStringAttribute("###"),
			},
			want: "user/ryan",
		},
		{
			name: "full key with spill",
			keys: map[string]events.DynamoDBAttributeValue{
				"pk":  events.NewStringAttribute("ryan"),
				"_ck": events.NewStringAttribute("#settings#app2#theme/dark"),
			},
			want: "user/ryan/settings/app2/theme/dark",
		},
		{
			name: "numeric partition",
			keys: map[string]events.DynamoDBAttributeValue{
				"id":  events.NewNumberAttribute("42"),
				"_ck": events.NewStringAttribute("#x"),
			},
			want: "user/42/x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := recordKey("user", tt.keys)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRecordKey_Errors(t *testing.T) {
	if _, err := recordKey("user", map[string]events.DynamoDBAttributeValue{
		"_ck": events.NewStringAttribute("#a"),
	}); err == nil {
		t.Error("expected error for missing partition key")
	}
	if _, err := recordKey("user", map[string]events.DynamoDBAttributeValue{
		"pk":  events.NewStringAttribute("ryan"),
		"_ck": events.NewStringAttribute("a"),
	}); err == nil {
		t.Error("expected error for malformed cluster key")
	}
}
