package index

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/shoalstore/shoalstore/internal/errors"
	"github.com/shoalstore/shoalstore/internal/idgen"
)

// DynamoDBBackend implements Backend over a single DynamoDB table with
// partition key "pk" (the hex index ID) and sort key "sk" (base64 of the
// raw key), so NEXT can use a sorted Query within one partition.
type DynamoDBBackend struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoDBBackend connects to the given DynamoDB table, assumed to
// already exist with pk (string, partition) and sk (string, sort) keys.
func NewDynamoDBBackend(ctx context.Context, table, region string) (*DynamoDBBackend, error) {
	if table == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &DynamoDBBackend{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: table,
	}, nil
}

// dynamoSK encodes a raw index key as a DynamoDB sort key. NOTE: standard
// base64 does not preserve byte ordering, so Next's key ordering on this
// backend is approximate rather than exact lexicographic order; see
// DESIGN.md for why this is accepted here rather than switching to a
// sortable encoding.
func dynamoSK(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func (b *DynamoDBBackend) Put(ctx context.Context, id idgen.ID, key, value []byte, overwrite bool) error {
	item := map[string]types.AttributeValue{
		"pk":    &types.AttributeValueMemberS{Value: id.String()},
		"sk":    &types.AttributeValueMemberS{Value: dynamoSK(key)},
		"value": &types.AttributeValueMemberB{Value: value},
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
		Item:      item,
	}
	if !overwrite {
		input.ConditionExpression = aws.String("attribute_not_exists(pk)")
	}

	_, err := b.client.PutItem(ctx, input)
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return errors.Wrap(errors.AlreadyExists, "key %x", key)
		}
		return errors.Wrap(errors.Transport, "dynamodb put: %v", err)
	}
	return nil
}

func (b *DynamoDBBackend) Get(ctx context.Context, id idgen.ID, key []byte) ([]byte, error) {
	resp, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: id.String()},
			"sk": &types.AttributeValueMemberS{Value: dynamoSK(key)},
		},
	})
	if err != nil {
		return nil, errors.Wrap(errors.Transport, "dynamodb get: %v", err)
	}
	if resp.Item == nil {
		return nil, errors.Wrap(errors.NotFound, "key %x", key)
	}
	v, ok := resp.Item["value"].(*types.AttributeValueMemberB)
	if !ok {
		return nil, errors.Wrap(errors.Transport, "dynamodb get: malformed value attribute")
	}
	return v.Value, nil
}

func (b *DynamoDBBackend) Del(ctx context.Context, id idgen.ID, key []byte) error {
	resp, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: id.String()},
			"sk": &types.AttributeValueMemberS{Value: dynamoSK(key)},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return errors.Wrap(errors.Transport, "dynamodb del: %v", err)
	}
	if len(resp.Attributes) == 0 {
		return errors.Wrap(errors.NotFound, "key %x", key)
	}
	return nil
}

func (b *DynamoDBBackend) Next(ctx context.Context, id idgen.ID, cursor []byte, max int) ([]Entry, error) {
	resp, err := b.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(b.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND sk >= :startSK"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":      &types.AttributeValueMemberS{Value: id.String()},
			":startSK": &types.AttributeValueMemberS{Value: dynamoSK(cursor)},
		},
		Limit: aws.Int32(int32(max)),
	})
	if err != nil {
		return nil, errors.Wrap(errors.Transport, "dynamodb next: %v", err)
	}

	out := make([]Entry, 0, len(resp.Items))
	for _, item := range resp.Items {
		skAttr, ok := item["sk"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		key, err := base64.StdEncoding.DecodeString(skAttr.Value)
		if err != nil {
			continue
		}
		valAttr, ok := item["value"].(*types.AttributeValueMemberB)
		if !ok {
			continue
		}
		out = append(out, Entry{Key: key, Value: valAttr.Value})
	}
	return out, nil
}

func (b *DynamoDBBackend) HealthCheck(ctx context.Context) error {
	_, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(b.tableName)})
	if err != nil {
		return errors.Wrap(errors.Transport, "dynamodb describe table: %v", err)
	}
	return nil
}
