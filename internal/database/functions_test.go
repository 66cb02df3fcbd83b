package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	putErr      error
	lastPut     *dynamodb.PutItemInput
	getOut      *dynamodb.GetItemOutput
	updateErr   error
	lastUpdate  *dynamodb.UpdateItemInput
	queryPages  []*dynamodb.QueryOutput
	queryInputs []*dynamodb.QueryInput
	batchWrites []*dynamodb.BatchWriteItemInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOut, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, in)
	if len(f.queryPages) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	page := f.queryPages[0]
	f.queryPages = f.queryPages[1:]
	return page, nil
}

func (f *fakeDynamo) Scan(_ context.Context, _ *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return &dynamodb.ScanOutput{}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batchWrites = append(f.batchWrites, in)
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (f *fakeDynamo) BatchGetItem(_ context.Context, _ *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return &dynamodb.BatchGetItemOutput{}, nil
}

type row struct {
	PK string `dynamodbav:"pk"`
}

func item(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": AttrString(id)}
}

func TestPutItemIfAbsentSetsConditionAndMapsFailure(t *testing.T) {
	fake := &fakeDynamo{putErr: &types.ConditionalCheckFailedException{Message: stringPtr("exists")}}
	client := NewDynamoDBClientWithAPI(fake)

	err := client.PutItemIfAbsent(context.Background(), "T", row{PK: "a"}, "pk")
	require.ErrorIs(t, err, ErrConditionFailed)
	require.Equal(t, "attribute_not_exists(#k)", *fake.lastPut.ConditionExpression)
	require.Equal(t, "pk", fake.lastPut.ExpressionAttributeNames["#k"])
}

func TestPutItemIfAbsentWrapsOtherErrors(t *testing.T) {
	fake := &fakeDynamo{putErr: errors.New("throttled")}
	client := NewDynamoDBClientWithAPI(fake)

	err := client.PutItemIfAbsent(context.Background(), "T", row{PK: "a"}, "pk")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrConditionFailed))
}

func TestGetItemMissingReturnsNotFound(t *testing.T) {
	client := NewDynamoDBClientWithAPI(&fakeDynamo{})

	var out row
	err := client.GetItem(context.Background(), "T", item("a"), &out)
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestUpdateItemIfMapsConditionFailure(t *testing.T) {
	fake := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	client := NewDynamoDBClientWithAPI(fake)

	err := client.UpdateItemIf(context.Background(), "T", item("a"), "SET #s = :s", "#s <> :s",
		map[string]types.AttributeValue{":s": AttrString("read")}, map[string]string{"#s": "status"}, nil)
	require.ErrorIs(t, err, ErrConditionFailed)
	require.Equal(t, "#s <> :s", *fake.lastUpdate.ConditionExpression)
}

func TestQueryLimitStopsAtLimitAcrossPages(t *testing.T) {
	fake := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{
		{Items: []map[string]types.AttributeValue{item("1"), item("2")}, LastEvaluatedKey: item("2")},
		{Items: []map[string]types.AttributeValue{item("3"), item("4")}, LastEvaluatedKey: item("4")},
		{Items: []map[string]types.AttributeValue{item("5")}},
	}}
	client := NewDynamoDBClientWithAPI(fake)

	forward := false
	items, err := client.QueryLimit(context.Background(), "T", nil, "pk = :pk", nil,
		map[string]types.AttributeValue{":pk": AttrString("x")}, nil, 3, &forward)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Len(t, fake.queryInputs, 2)
	require.Equal(t, int32(3), *fake.queryInputs[0].Limit)
	require.Equal(t, int32(1), *fake.queryInputs[1].Limit)
	require.False(t, *fake.queryInputs[0].ScanIndexForward)
}

func TestBatchWriteItemChunksByTwentyFive(t *testing.T) {
	fake := &fakeDynamo{}
	client := NewDynamoDBClientWithAPI(fake)

	keys := make([]map[string]types.AttributeValue, 0, 60)
	for i := 0; i < 60; i++ {
		keys = append(keys, item(fmt.Sprintf("k%d", i)))
	}

	require.NoError(t, client.BatchDeleteItems(context.Background(), "T", keys))
	require.Len(t, fake.batchWrites, 3)
	require.Len(t, fake.batchWrites[0].RequestItems["T"], 25)
	require.Len(t, fake.batchWrites[2].RequestItems["T"], 10)
}

func stringPtr(s string) *string { return &s }
