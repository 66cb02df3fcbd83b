package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func AttrString(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}

func AttrNumber(value int) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", value)}
}

func conditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// IsIndexNotFound matches the error DynamoDB returns for a missing GSI, used
// to fall back to a scan on tables provisioned without secondary indexes.
func IsIndexNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "index") && strings.Contains(msg, "not") && strings.Contains(msg, "found")
}

func (c *DynamoDBClient) PutItem(
	ctx context.Context,
	tableName string,
	item interface{},
) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	_, err = c.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put item %s: %w", tableName, err)
	}
	return nil
}

// PutItemIfAbsent writes item only when no row with the same keyAttr exists.
// It returns ErrConditionFailed when the row is already there.
func (c *DynamoDBClient) PutItemIfAbsent(
	ctx context.Context,
	tableName string,
	item interface{},
	keyAttr string,
) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	_, err = c.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(tableName),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{"#k": keyAttr},
	})
	if err != nil {
		if conditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("put item %s: %w", tableName, err)
	}
	return nil
}

func (c *DynamoDBClient) GetItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	out interface{},
) error {
	res, err := c.svc.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tableName),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("get item %s: %w", tableName, err)
	}
	if len(res.Item) == 0 {
		return fmt.Errorf("%s: %w", tableName, ErrItemNotFound)
	}

	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

func (c *DynamoDBClient) UpdateItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	updateExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	out interface{},
) error {
	return c.UpdateItemIf(ctx, tableName, key, updateExpr, "", exprAttrValues, exprAttrNames, out)
}

// UpdateItemIf applies updateExpr only when condExpr holds. A failed
// condition is reported as ErrConditionFailed.
func (c *DynamoDBClient) UpdateItemIf(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	updateExpr string,
	condExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	out interface{},
) error {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       key,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: exprAttrValues,
		ExpressionAttributeNames:  exprAttrNames,
		ReturnValues:              types.ReturnValueAllNew,
	}
	if condExpr != "" {
		input.ConditionExpression = aws.String(condExpr)
	}

	res, err := c.svc.UpdateItem(ctx, input)
	if err != nil {
		if conditionFailed(err) {
			return ErrConditionFailed
		}
		return fmt.Errorf("update item %s: %w", tableName, err)
	}

	if out != nil {
		if err := attributevalue.UnmarshalMap(res.Attributes, out); err != nil {
			return fmt.Errorf("unmarshal updated item: %w", err)
		}
	}
	return nil
}

// QueryLimit pages through a query until limit items are collected or the
// key range is exhausted. limit <= 0 means no limit.
func (c *DynamoDBClient) QueryLimit(
	ctx context.Context,
	tableName string,
	indexName *string,
	keyCondExpr string,
	filterExpr *string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	limit int,
	scanIndexForward *bool,
) ([]map[string]types.AttributeValue, error) {
	var allItems []map[string]types.AttributeValue
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(tableName),
			IndexName:                 indexName,
			KeyConditionExpression:    aws.String(keyCondExpr),
			FilterExpression:          filterExpr,
			ExpressionAttributeValues: exprAttrValues,
		}
		if exprAttrNames != nil {
			input.ExpressionAttributeNames = exprAttrNames
		}
		if scanIndexForward != nil {
			input.ScanIndexForward = aws.Bool(*scanIndexForward)
		}
		if limit > 0 && filterExpr == nil {
			input.Limit = aws.Int32(int32(limit - len(allItems)))
		}
		if lastEvaluatedKey != nil {
			input.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := c.svc.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query %s[%s]: %w", tableName, aws.ToString(indexName), err)
		}

		allItems = append(allItems, result.Items...)

		if limit > 0 && len(allItems) >= limit {
			return allItems[:limit], nil
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return allItems, nil
}

// QueryAll performs a complete query, handling pagination internally.
func (c *DynamoDBClient) QueryAll(
	ctx context.Context,
	tableName string,
	indexName *string,
	keyCondExpr string,
	filterExpr *string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
) ([]map[string]types.AttributeValue, error) {
	return c.QueryLimit(ctx, tableName, indexName, keyCondExpr, filterExpr, exprAttrValues, exprAttrNames, 0, nil)
}

// ScanLimit scans with a filter until limit matching items are collected.
func (c *DynamoDBClient) ScanLimit(
	ctx context.Context,
	tableName string,
	filterExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	limit int,
) ([]map[string]types.AttributeValue, error) {
	var allItems []map[string]types.AttributeValue
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		input := &dynamodb.ScanInput{
			TableName:                 aws.String(tableName),
			FilterExpression:          aws.String(filterExpr),
			ExpressionAttributeValues: exprAttrValues,
		}
		if exprAttrNames != nil {
			input.ExpressionAttributeNames = exprAttrNames
		}
		if lastEvaluatedKey != nil {
			input.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := c.svc.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", tableName, err)
		}

		allItems = append(allItems, result.Items...)

		if limit > 0 && len(allItems) >= limit {
			return allItems, nil
		}
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}
	return allItems, nil
}

// BatchGetByKeys fetches rows by a single string key attribute, 100 keys per call.
func (c *DynamoDBClient) BatchGetByKeys(
	ctx context.Context,
	tableName string,
	keyField string,
	keyValues []string,
) ([]map[string]types.AttributeValue, error) {
	const batchSize = 100
	var allItems []map[string]types.AttributeValue

	for i := 0; i < len(keyValues); i += batchSize {
		end := i + batchSize
		if end > len(keyValues) {
			end = len(keyValues)
		}

		keys := make([]map[string]types.AttributeValue, 0, end-i)
		for _, value := range keyValues[i:end] {
			keys = append(keys, map[string]types.AttributeValue{keyField: AttrString(value)})
		}

		pending := map[string]types.KeysAndAttributes{tableName: {Keys: keys}}
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt == 3 {
				return nil, fmt.Errorf("batch get %s: unprocessed keys remain after %d attempts", tableName, attempt)
			}
			res, err := c.svc.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, fmt.Errorf("batch get %s: %w", tableName, err)
			}
			allItems = append(allItems, res.Responses[tableName]...)
			pending = res.UnprocessedKeys
		}
	}

	return allItems, nil
}

func (c *DynamoDBClient) BatchPutItems(
	ctx context.Context,
	tableName string,
	items []interface{},
) error {
	return c.BatchWriteItem(ctx, tableName, items, nil)
}

func (c *DynamoDBClient) BatchDeleteItems(
	ctx context.Context,
	tableName string,
	keys []map[string]types.AttributeValue,
) error {
	return c.BatchWriteItem(ctx, tableName, nil, keys)
}

func (c *DynamoDBClient) BatchWriteItem(
	ctx context.Context,
	tableName string,
	putItems []interface{},
	deleteKeys []map[string]types.AttributeValue,
) error {
	if len(putItems) == 0 && len(deleteKeys) == 0 {
		return nil
	}

	var writeRequests []types.WriteRequest

	for _, item := range putItems {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("marshal put item: %w", err)
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: av},
		})
	}

	for _, key := range deleteKeys {
		writeRequests = append(writeRequests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: key},
		})
	}

	const batchSize = 25
	for i := 0; i < len(writeRequests); i += batchSize {
		end := i + batchSize
		if end > len(writeRequests) {
			end = len(writeRequests)
		}

		requests := map[string][]types.WriteRequest{
			tableName: writeRequests[i:end],
		}

		if err := c.batchWriteWithRetry(ctx, requests); err != nil {
			return fmt.Errorf("batch write item: %w", err)
		}
	}

	return nil
}

func (c *DynamoDBClient) batchWriteWithRetry(
	ctx context.Context,
	requests map[string][]types.WriteRequest,
) error {
	const maxRetries = 3
	retryCount := 0
	currentRequests := requests

	for len(currentRequests) > 0 && retryCount < maxRetries {
		result, err := c.svc.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: currentRequests,
		})
		if err != nil {
			return fmt.Errorf("batch write (attempt %d): %w", retryCount+1, err)
		}

		if len(result.UnprocessedItems) == 0 {
			return nil
		}

		currentRequests = result.UnprocessedItems
		retryCount++

		if retryCount < maxRetries {
			backoffDuration := time.Duration(1<<uint(retryCount-1)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDuration):
			}
		}
	}

	if n := countUnprocessedItems(currentRequests); n > 0 {
		return fmt.Errorf("failed to process all items after %d retries, %d items remain unprocessed", maxRetries, n)
	}
	return nil
}

func countUnprocessedItems(requests map[string][]types.WriteRequest) int {
	count := 0
	for _, reqs := range requests {
		count += len(reqs)
	}
	return count
}
