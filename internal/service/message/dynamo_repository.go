package message

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"storefront-chat/internal/database"
	"storefront-chat/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoHotRepository struct {
	db *database.Database
}

func NewDynamoHotRepository(db *database.Database) *DynamoHotRepository {
	return &DynamoHotRepository{db: db}
}

func (r *DynamoHotRepository) Insert(ctx context.Context, msg model.MessageItem) error {
	err := r.db.Client.PutItemIfAbsent(ctx, model.MessagesTable, msg, "messageId")
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrDuplicate
	}
	return err
}

func (r *DynamoHotRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	forward := false
	items, err := r.db.Client.QueryLimit(
		ctx,
		model.MessagesTable,
		aws.String(model.MessagesByConversationIndex),
		"conversationId = :c",
		nil,
		map[string]types.AttributeValue{":c": database.AttrString(conversationID)},
		nil,
		limit,
		&forward,
	)
	if err != nil {
		return nil, err
	}

	out := make([]model.MessageItem, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	sortNewestFirst(out)
	return out, nil
}

// ListOlderThan reads each byAge bucket oldest first, bounded by limit, and
// merges them. The oldest limit rows overall are always within the first
// limit rows of their own bucket.
func (r *DynamoHotRepository) ListOlderThan(ctx context.Context, cutoff string, limit int) ([]model.MessageItem, error) {
	forward := true
	var out []model.MessageItem
	for i := 0; i < model.AgeBuckets; i++ {
		items, err := r.db.Client.QueryLimit(
			ctx,
			model.MessagesTable,
			aws.String(model.MessagesByAgeIndex),
			"ageBucket = :b AND createdAt < :cutoff",
			nil,
			map[string]types.AttributeValue{
				":b":      database.AttrString(model.AgeBucketName(i)),
				":cutoff": database.AttrString(cutoff),
			},
			nil,
			limit,
			&forward,
		)
		if err != nil {
			return nil, err
		}
		var batch []model.MessageItem
		if err := attributevalue.UnmarshalListOfMaps(items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal messages: %w", err)
		}
		out = append(out, batch...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].MessageID < out[j].MessageID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func statusPlaceholders(statuses []model.MessageStatus, values map[string]types.AttributeValue) string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		key := fmt.Sprintf(":s%d", i)
		names[i] = key
		values[key] = database.AttrString(string(s))
	}
	return strings.Join(names, ", ")
}

// AdvanceStatus updates each row under a per-item condition so a concurrent
// writer that already advanced the row is never regressed.
func (r *DynamoHotRepository) AdvanceStatus(ctx context.Context, conversationID, receiverID string, to model.MessageStatus, at string) (int, error) {
	lower := model.StatusesBefore(to)
	if len(lower) == 0 {
		return 0, nil
	}

	values := map[string]types.AttributeValue{
		":c": database.AttrString(conversationID),
		":r": database.AttrString(receiverID),
	}
	in := statusPlaceholders(lower, values)
	names := map[string]string{"#status": "status"}

	items, err := r.db.Client.QueryAll(
		ctx,
		model.MessagesTable,
		aws.String(model.MessagesByConversationIndex),
		"conversationId = :c",
		aws.String("receiverId = :r AND #status IN ("+in+")"),
		values,
		names,
	)
	if err != nil {
		return 0, err
	}

	var pending []model.MessageItem
	if err := attributevalue.UnmarshalListOfMaps(items, &pending); err != nil {
		return 0, fmt.Errorf("unmarshal messages: %w", err)
	}

	updateValues := map[string]types.AttributeValue{
		":to": database.AttrString(string(to)),
		":at": database.AttrString(at),
	}
	cond := "#status IN (" + statusPlaceholders(lower, updateValues) + ")"

	changed := 0
	for _, m := range pending {
		err := r.db.Client.UpdateItemIf(
			ctx,
			model.MessagesTable,
			map[string]types.AttributeValue{"messageId": database.AttrString(m.MessageID)},
			"SET #status = :to, updatedAt = :at",
			cond,
			updateValues,
			names,
			nil,
		)
		if errors.Is(err, database.ErrConditionFailed) {
			continue
		}
		if err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

func (r *DynamoHotRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]map[string]types.AttributeValue, len(ids))
	for i, id := range ids {
		keys[i] = map[string]types.AttributeValue{"messageId": database.AttrString(id)}
	}
	return r.db.Client.BatchDeleteItems(ctx, model.MessagesTable, keys)
}

type DynamoArchiveRepository struct {
	db *database.Database
}

func NewDynamoArchiveRepository(db *database.Database) *DynamoArchiveRepository {
	return &DynamoArchiveRepository{db: db}
}

// InsertBatch writes rows keyed by originalId; repeating a put overwrites the
// same row so retries never create copies.
func (r *DynamoArchiveRepository) InsertBatch(ctx context.Context, items []model.ArchivedMessageItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]interface{}, len(items))
	for i := range items {
		rows[i] = items[i]
	}
	return r.db.Client.BatchPutItems(ctx, model.ArchivedMessagesTable, rows)
}

func (r *DynamoArchiveRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]model.ArchivedMessageItem, error) {
	forward := false
	items, err := r.db.Client.QueryLimit(
		ctx,
		model.ArchivedMessagesTable,
		aws.String(model.MessagesByConversationIndex),
		"conversationId = :c",
		nil,
		map[string]types.AttributeValue{":c": database.AttrString(conversationID)},
		nil,
		limit,
		&forward,
	)
	if err != nil {
		return nil, err
	}

	out := make([]model.ArchivedMessageItem, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("unmarshal archived messages: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].OriginalID > out[j].OriginalID
	})
	return out, nil
}

func (r *DynamoArchiveRepository) ExistingIDs(ctx context.Context, originalIDs []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(originalIDs) == 0 {
		return out, nil
	}
	items, err := r.db.Client.BatchGetByKeys(ctx, model.ArchivedMessagesTable, "originalId", originalIDs)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if v, ok := item["originalId"].(*types.AttributeValueMemberS); ok {
			out[v.Value] = struct{}{}
		}
	}
	return out, nil
}

func sortNewestFirst(msgs []model.MessageItem) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt != msgs[j].CreatedAt {
			return msgs[i].CreatedAt > msgs[j].CreatedAt
		}
		return msgs[i].MessageID > msgs[j].MessageID
	})
}
