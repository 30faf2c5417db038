package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	attrPK        = "PK"
	attrSK        = "SK"
	attrValue     = "value"
	attrUpdatedAt = "updatedAt"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store is the namespaced key-value contract consumed by the content layer.
// Implementations never return errors: failures are logged and reported as
// false or absent so one broken binding cannot take the bot down.
type Store interface {
	Put(ctx context.Context, namespace, key string, value any) bool
	Get(ctx context.Context, namespace, key string) (json.RawMessage, bool)
	Delete(ctx context.Context, namespace, key string) bool
	ListKeys(ctx context.Context, namespace, prefix string) []string
}

// Client stores namespaced records in DynamoDB. Each namespace is bound to a
// table; items use PK=namespace and SK=key so a prefix listing is a single
// partition query.
type Client struct {
	api    dynamodbAPI
	tables map[string]string
}

// New creates a new repository Client. tables maps namespace names to table names.
func New(api dynamodbAPI, tables map[string]string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if len(tables) == 0 {
		return nil, errors.New("repository: at least one namespace binding is required")
	}
	bound := make(map[string]string, len(tables))
	for ns, table := range tables {
		ns, table = strings.TrimSpace(ns), strings.TrimSpace(table)
		if ns == "" || table == "" {
			return nil, fmt.Errorf("repository: invalid namespace binding %q=%q", ns, table)
		}
		bound[ns] = table
	}
	return &Client{api: api, tables: bound}, nil
}

func (c *Client) table(op, namespace string) (string, bool) {
	t, ok := c.tables[namespace]
	if !ok {
		slog.Error("namespace is not bound", "op", op, "namespace", namespace)
	}
	return t, ok
}

func itemKey(namespace, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: namespace},
		attrSK: &types.AttributeValueMemberS{Value: key},
	}
}

// Put serializes value as JSON and writes it unconditionally (last writer wins).
func (c *Client) Put(ctx context.Context, namespace, key string, value any) bool {
	table, ok := c.table("put", namespace)
	if !ok {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Error("failed to encode value", "namespace", namespace, "key", key, "err", err)
		return false
	}

	item := itemKey(namespace, key)
	item[attrValue] = &types.AttributeValueMemberS{Value: string(raw)}
	item[attrUpdatedAt] = &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)}

	if _, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	}); err != nil {
		slog.Error("failed to store value", "namespace", namespace, "key", key, "err", err)
		return false
	}
	slog.Debug("stored value", "namespace", namespace, "key", key)
	return true
}

// Get returns the raw JSON stored under key, or false when absent or unreadable.
func (c *Client) Get(ctx context.Context, namespace, key string) (json.RawMessage, bool) {
	table, ok := c.table("get", namespace)
	if !ok {
		return nil, false
	}
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            itemKey(namespace, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		slog.Error("failed to retrieve value", "namespace", namespace, "key", key, "err", err)
		return nil, false
	}
	if out == nil || len(out.Item) == 0 {
		return nil, false
	}
	value, err := strAttr(out.Item, attrValue)
	if err != nil {
		slog.Error("malformed item", "namespace", namespace, "key", key, "err", err)
		return nil, false
	}
	if !json.Valid([]byte(value)) {
		slog.Error("stored value is not valid JSON", "namespace", namespace, "key", key)
		return nil, false
	}
	return json.RawMessage(value), true
}

// Delete removes key. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, namespace, key string) bool {
	table, ok := c.table("delete", namespace)
	if !ok {
		return false
	}
	if _, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       itemKey(namespace, key),
	}); err != nil {
		slog.Error("failed to delete value", "namespace", namespace, "key", key, "err", err)
		return false
	}
	slog.Debug("deleted value", "namespace", namespace, "key", key)
	return true
}

// ListKeys returns every key in namespace starting with prefix, in key order.
// It pages until exhaustion; a failure on any page yields no keys at all.
func (c *Client) ListKeys(ctx context.Context, namespace, prefix string) []string {
	table, ok := c.table("list", namespace)
	if !ok {
		return nil
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: namespace},
		},
		ProjectionExpression: aws.String(attrSK),
	}
	// begins_with rejects an empty operand.
	if prefix != "" {
		in.KeyConditionExpression = aws.String("PK = :pk AND begins_with(SK, :prefix)")
		in.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{Value: prefix}
	}

	var keys []string
	p := dynamodb.NewQueryPaginator(c.api, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			slog.Error("failed to list keys", "namespace", namespace, "prefix", prefix, "err", err)
			return nil
		}
		for _, item := range out.Items {
			sk, err := strAttr(item, attrSK)
			if err != nil {
				slog.Warn("skipping malformed key item", "namespace", namespace, "err", err)
				continue
			}
			keys = append(keys, sk)
		}
	}
	slog.Debug("listed keys", "namespace", namespace, "prefix", prefix, "count", len(keys))
	return keys
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
