package directory

import (
	"context"
	"errors"
	"fmt"

	"storefront-chat/internal/database"
	"storefront-chat/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func pairKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"pk": database.AttrString(pk)}
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrItemNotFound)
}

// Create relies on the conditional put: the pair key is the table's hash key.
func (r *DynamoRepository) Create(ctx context.Context, conv model.ConversationItem) error {
	err := r.db.Client.PutItemIfAbsent(ctx, model.ConversationsTable, conv, "pk")
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrConflict
	}
	return err
}

func (r *DynamoRepository) GetByPair(ctx context.Context, customerID, sellerID string) (model.ConversationItem, error) {
	var conv model.ConversationItem
	err := r.db.Client.GetItem(ctx, model.ConversationsTable, pairKey(model.ConversationPairPK(customerID, sellerID)), &conv)
	if err != nil {
		if isNotFound(err) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return conv, nil
}

func (r *DynamoRepository) GetByID(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	values := map[string]types.AttributeValue{":id": database.AttrString(conversationID)}

	items, err := r.db.Client.QueryLimit(
		ctx,
		model.ConversationsTable,
		aws.String(model.ConversationsByIDIndex),
		"conversationId = :id",
		nil,
		values,
		nil,
		1,
		nil,
	)
	if err != nil {
		if !database.IsIndexNotFound(err) {
			return model.ConversationItem{}, err
		}
		items, err = r.db.Client.ScanLimit(ctx, model.ConversationsTable, "conversationId = :id", values, nil, 1)
		if err != nil {
			return model.ConversationItem{}, err
		}
	}
	if len(items) == 0 {
		return model.ConversationItem{}, ErrNotFound
	}

	var conv model.ConversationItem
	if err := attributevalue.UnmarshalMap(items[0], &conv); err != nil {
		return model.ConversationItem{}, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return conv, nil
}

func (r *DynamoRepository) ListForParty(ctx context.Context, userID string, role model.Role, limit int) ([]model.ConversationItem, error) {
	index := model.ConversationsByCustomer
	attr := "customerId"
	if role == model.RoleSeller {
		index = model.ConversationsBySeller
		attr = "sellerId"
	}
	values := map[string]types.AttributeValue{":u": database.AttrString(userID)}
	names := map[string]string{"#party": attr}

	forward := false
	items, err := r.db.Client.QueryLimit(
		ctx,
		model.ConversationsTable,
		aws.String(index),
		"#party = :u",
		nil,
		values,
		names,
		limit,
		&forward,
	)
	if err != nil {
		if !database.IsIndexNotFound(err) {
			return nil, err
		}
		items, err = r.db.Client.ScanLimit(ctx, model.ConversationsTable, "#party = :u", values, names, 0)
		if err != nil {
			return nil, err
		}
	}

	out := make([]model.ConversationItem, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("unmarshal conversations: %w", err)
	}
	sortByUpdated(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *DynamoRepository) update(ctx context.Context, conv model.ConversationItem, expr string, values map[string]types.AttributeValue, names map[string]string) (model.ConversationItem, error) {
	var updated model.ConversationItem
	err := r.db.Client.UpdateItemIf(
		ctx,
		model.ConversationsTable,
		pairKey(conv.PK),
		expr,
		"attribute_exists(pk)",
		values,
		names,
		&updated,
	)
	if errors.Is(err, database.ErrConditionFailed) {
		return model.ConversationItem{}, ErrNotFound
	}
	if err != nil {
		return model.ConversationItem{}, err
	}
	return updated, nil
}

func (r *DynamoRepository) SetLastMessage(ctx context.Context, conv model.ConversationItem, summary model.MessageSummary, productID, at string) (model.ConversationItem, error) {
	av, err := attributevalue.MarshalMap(summary)
	if err != nil {
		return model.ConversationItem{}, fmt.Errorf("marshal summary: %w", err)
	}

	expr := "SET lastMessage = :last, updatedAt = :at"
	values := map[string]types.AttributeValue{
		":last": &types.AttributeValueMemberM{Value: av},
		":at":   database.AttrString(at),
	}
	if productID != "" {
		expr += ", productId = :product"
		values[":product"] = database.AttrString(productID)
	}
	return r.update(ctx, conv, expr, values, nil)
}

// IncrementUnread uses ADD so concurrent increments never lose a count.
func (r *DynamoRepository) IncrementUnread(ctx context.Context, conv model.ConversationItem, role model.Role) (model.ConversationItem, error) {
	return r.update(ctx, conv,
		"ADD #unread :one",
		map[string]types.AttributeValue{":one": database.AttrNumber(1)},
		map[string]string{"#unread": model.UnreadAttr(role)},
	)
}

func (r *DynamoRepository) ResetUnread(ctx context.Context, conv model.ConversationItem, role model.Role) (model.ConversationItem, error) {
	return r.update(ctx, conv,
		"SET #unread = :zero",
		map[string]types.AttributeValue{":zero": database.AttrNumber(0)},
		map[string]string{"#unread": model.UnreadAttr(role)},
	)
}
