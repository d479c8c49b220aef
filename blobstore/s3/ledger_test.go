package s3

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexzheng587/corels/ledger"
)

// mockDDBClient is an in-memory DynamoDB mock that understands the two
// condition expressions used by DynamoLedger.
type mockDDBClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	puts  int
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func numAttr(av types.AttributeValue) float64 {
	f, _ := strconv.ParseFloat(av.(*types.AttributeValueMemberN).Value, 64)
	return f
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++

	key := params.Item["ledger_key"].(*types.AttributeValueMemberS).Value
	cur, exists := m.items[key]

	failed := &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	switch aws.ToString(params.ConditionExpression) {
	case "attribute_not_exists(ledger_key)":
		if exists {
			return nil, failed
		}
	case "accuracy < :acc AND version = :ver":
		if !exists ||
			numAttr(cur["accuracy"]) >= numAttr(params.ExpressionAttributeValues[":acc"]) ||
			numAttr(cur["version"]) != numAttr(params.ExpressionAttributeValues[":ver"]) {
			return nil, failed
		}
	}
	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := params.Key["ledger_key"].(*types.AttributeValueMemberS).Value
	return &dynamodb.GetItemOutput{Item: m.items[key]}, nil
}

func TestDynamoLedger_FirstOffer(t *testing.T) {
	ctx := context.Background()
	l := NewDynamoLedger(newMockDDBClient(), "incumbents")

	_, err := l.Get(ctx, "compas")
	require.ErrorIs(t, err, ledger.ErrNotFound)

	ok, err := l.Offer(ctx, ledger.Record{Key: "compas", Accuracy: 0.66, Prefix: []int{4, 1}})
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := l.Get(ctx, "compas")
	require.NoError(t, err)
	assert.Equal(t, "compas", rec.Key)
	assert.Equal(t, 0.66, rec.Accuracy)
	assert.Equal(t, []int{4, 1}, rec.Prefix)
	assert.Equal(t, uint64(1), rec.Version)
	assert.False(t, rec.UpdatedAt.IsZero())
}

func TestDynamoLedger_OnlyImproves(t *testing.T) {
	ctx := context.Background()
	l := NewDynamoLedger(newMockDDBClient(), "incumbents")

	ok, err := l.Offer(ctx, ledger.Record{Key: "k", Accuracy: 0.7, Prefix: []int{1}})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Offer(ctx, ledger.Record{Key: "k", Accuracy: 0.7, Prefix: []int{2}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Offer(ctx, ledger.Record{Key: "k", Accuracy: 0.9})
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := l.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0.9, rec.Accuracy)
	assert.Empty(t, rec.Prefix)
	assert.Equal(t, uint64(2), rec.Version)
}

func TestDynamoLedger_ConcurrentOffers(t *testing.T) {
	ctx := context.Background()
	l := NewDynamoLedger(newMockDDBClient(), "incumbents")

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = l.Offer(ctx, ledger.Record{Key: "k", Accuracy: float64(i) / 100})
		}(i)
	}
	wg.Wait()

	rec, err := l.Get(ctx, "k")
	require.NoError(t, err)
	// Losing writers may give up after maxOfferAttempts, but the stored value
	// can never be lower than the best offer that succeeded.
	assert.GreaterOrEqual(t, rec.Accuracy, 0.01)
	assert.LessOrEqual(t, rec.Accuracy, 0.20)
}

func TestDynamoLedger_IsolatedKeys(t *testing.T) {
	ctx := context.Background()
	l := NewDynamoLedger(newMockDDBClient(), "incumbents")

	_, err := l.Offer(ctx, ledger.Record{Key: "a", Accuracy: 0.9})
	require.NoError(t, err)
	ok, err := l.Offer(ctx, ledger.Record{Key: "b", Accuracy: 0.1})
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := l.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0.1, rec.Accuracy)
}
