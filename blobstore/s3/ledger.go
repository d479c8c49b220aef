package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/alexzheng587/corels/ledger"
)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// ErrConcurrentModification is returned when an offer keeps losing the
// conditional write to other writers.
var ErrConcurrentModification = errors.New("concurrent modification detected")

const maxOfferAttempts = 5

// DynamoLedger implements ledger.Ledger on a DynamoDB table.
//
// Every record is a single item. Offers use a conditional write on the stored
// accuracy and version, giving compare-and-swap semantics across processes.
//
// Table schema:
//   - Partition key: ledger_key (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name corels-incumbents \
//	  --attribute-definitions AttributeName=ledger_key,AttributeType=S \
//	  --key-schema AttributeName=ledger_key,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DynamoLedger struct {
	client    DDBClient
	tableName string
	now       func() time.Time
}

var _ ledger.Ledger = (*DynamoLedger)(nil)

// NewDynamoLedger creates a ledger backed by tableName.
func NewDynamoLedger(client DDBClient, tableName string) *DynamoLedger {
	return &DynamoLedger{client: client, tableName: tableName, now: time.Now}
}

// Get returns the record stored for key.
func (l *DynamoLedger) Get(ctx context.Context, key string) (ledger.Record, error) {
	resp, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(l.tableName),
		Key:            map[string]types.AttributeValue{"ledger_key": &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return ledger.Record{}, fmt.Errorf("failed to read ledger item: %w", err)
	}
	if len(resp.Item) == 0 {
		return ledger.Record{}, ledger.ErrNotFound
	}
	return decodeRecord(resp.Item)
}

// Offer writes rec when it strictly improves the stored accuracy.
func (l *DynamoLedger) Offer(ctx context.Context, rec ledger.Record) (bool, error) {
	for range maxOfferAttempts {
		cur, err := l.Get(ctx, rec.Key)
		exists := err == nil
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return false, err
		}
		if exists && rec.Accuracy <= cur.Accuracy {
			return false, nil
		}

		input := &dynamodb.PutItemInput{
			TableName: aws.String(l.tableName),
			Item: map[string]types.AttributeValue{
				"ledger_key": &types.AttributeValueMemberS{Value: rec.Key},
				"accuracy":   &types.AttributeValueMemberN{Value: strconv.FormatFloat(rec.Accuracy, 'g', -1, 64)},
				"prefix":     &types.AttributeValueMemberS{Value: joinPrefix(rec.Prefix)},
				"version":    &types.AttributeValueMemberN{Value: strconv.FormatUint(cur.Version+1, 10)},
				"updated_at": &types.AttributeValueMemberS{Value: l.now().UTC().Format(time.RFC3339Nano)},
			},
		}
		if exists {
			input.ConditionExpression = aws.String("accuracy < :acc AND version = :ver")
			input.ExpressionAttributeValues = map[string]types.AttributeValue{
				":acc": &types.AttributeValueMemberN{Value: strconv.FormatFloat(rec.Accuracy, 'g', -1, 64)},
				":ver": &types.AttributeValueMemberN{Value: strconv.FormatUint(cur.Version, 10)},
			}
		} else {
			input.ConditionExpression = aws.String("attribute_not_exists(ledger_key)")
		}

		_, err = l.client.PutItem(ctx, input)
		if err == nil {
			return true, nil
		}
		var condErr *types.ConditionalCheckFailedException
		if !errors.As(err, &condErr) {
			return false, fmt.Errorf("failed to write ledger item: %w", err)
		}
	}
	return false, ErrConcurrentModification
}

func decodeRecord(item map[string]types.AttributeValue) (ledger.Record, error) {
	var rec ledger.Record

	keyAttr, ok := item["ledger_key"].(*types.AttributeValueMemberS)
	if !ok {
		return rec, errors.New("invalid ledger_key attribute in DynamoDB")
	}
	rec.Key = keyAttr.Value

	accAttr, ok := item["accuracy"].(*types.AttributeValueMemberN)
	if !ok {
		return rec, errors.New("invalid accuracy attribute in DynamoDB")
	}
	acc, err := strconv.ParseFloat(accAttr.Value, 64)
	if err != nil {
		return rec, fmt.Errorf("failed to parse accuracy: %w", err)
	}
	rec.Accuracy = acc

	if verAttr, ok := item["version"].(*types.AttributeValueMemberN); ok {
		if rec.Version, err = strconv.ParseUint(verAttr.Value, 10, 64); err != nil {
			return rec, fmt.Errorf("failed to parse version: %w", err)
		}
	}
	if pAttr, ok := item["prefix"].(*types.AttributeValueMemberS); ok {
		if rec.Prefix, err = splitPrefix(pAttr.Value); err != nil {
			return rec, fmt.Errorf("failed to parse prefix: %w", err)
		}
	}
	if tAttr, ok := item["updated_at"].(*types.AttributeValueMemberS); ok {
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, tAttr.Value)
	}
	return rec, nil
}

func joinPrefix(prefix []int) string {
	parts := make([]string, len(prefix))
	for i, r := range prefix {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ",")
}

func splitPrefix(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		r, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
