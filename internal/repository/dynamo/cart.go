package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mercadito/shop-backend/internal/entity"
	"github.com/mercadito/shop-backend/internal/repository"
)

// DynamoDB caps BatchWriteItem at 25 requests.
const maxBatchWrite = 25

type cartRepository struct {
	store *Store
}

// NewCartRepository creates a CartRepository backed by DynamoDB.
func NewCartRepository(store *Store) repository.CartRepository {
	return &cartRepository{store: store}
}

// Reserve runs the stock decrement and the cart-line upsert as a single
// TransactWriteItems call. The decrement carries the stock >= qty guard, so
// losing a race against a concurrent consumer cancels the whole transaction
// and no partial effect is visible.
func (r *cartRepository) Reserve(ctx context.Context, userID string, product *entity.Product, qty int) error {
	stockExpr, err := expression.NewBuilder().
		WithUpdate(expression.Set(
			expression.Name("stock"),
			expression.Name("stock").Minus(expression.Value(qty)),
		)).
		WithCondition(expression.AttributeExists(expression.Name("id")).
			And(expression.Name("stock").GreaterThanEqual(expression.Value(qty)))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build stock expression: %w", err)
	}

	// ADD creates the line when absent; if_not_exists keeps the first
	// title/price snapshot on later increments.
	now := time.Now().UTC()
	lineExpr, err := expression.NewBuilder().
		WithUpdate(expression.
			Add(expression.Name("quantity"), expression.Value(qty)).
			Set(expression.Name("title"),
				expression.IfNotExists(expression.Name("title"), expression.Value(product.Title))).
			Set(expression.Name("price"),
				expression.IfNotExists(expression.Name("price"), expression.Value(product.Price))).
			Set(expression.Name("added_at"),
				expression.IfNotExists(expression.Name("added_at"), expression.Value(now)))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build cart line expression: %w", err)
	}

	_, err = r.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:                 aws.String(r.store.tables.Products),
					Key:                       idKey(product.ID),
					UpdateExpression:          stockExpr.Update(),
					ConditionExpression:       stockExpr.Condition(),
					ExpressionAttributeNames:  stockExpr.Names(),
					ExpressionAttributeValues: stockExpr.Values(),
				},
			},
			{
				Update: &types.Update{
					TableName:                 aws.String(r.store.tables.Carts),
					Key:                       cartKey(userID, product.ID),
					UpdateExpression:          lineExpr.Update(),
					ExpressionAttributeNames:  lineExpr.Names(),
					ExpressionAttributeValues: lineExpr.Values(),
				},
			},
		},
	})
	if err != nil {
		if transactionConditionFailed(err) {
			return entity.ErrInsufficientStock
		}
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	return nil
}

func (r *cartRepository) Find(ctx context.Context, userID, productID string) (*entity.CartLine, error) {
	out, err := r.store.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.store.tables.Carts),
		Key:       cartKey(userID, productID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cart line: %w", err)
	}
	if out.Item == nil {
		return nil, entity.ErrNotFound
	}
	var line entity.CartLine
	if err := attributevalue.UnmarshalMap(out.Item, &line); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart line: %w", err)
	}
	return &line, nil
}

func (r *cartRepository) FindAll(ctx context.Context, userID string) ([]entity.CartLine, error) {
	keyCond := expression.Key("user_id").Equal(expression.Value(userID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build cart query: %w", err)
	}

	var lines []entity.CartLine
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.store.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.store.tables.Carts),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query cart: %w", err)
		}
		var page []entity.CartLine
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cart lines: %w", err)
		}
		lines = append(lines, page...)
		if out.LastEvaluatedKey == nil {
			return lines, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (r *cartRepository) DeleteLine(ctx context.Context, userID, productID string) error {
	_, err := r.store.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.store.tables.Carts),
		Key:       cartKey(userID, productID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	return nil
}

// Clear batch-deletes every line for the user. An error or unprocessed
// leftovers mid-way surface as entity.ErrPartialClear; earlier batches stay
// deleted, which is fine because clearing is idempotent.
func (r *cartRepository) Clear(ctx context.Context, userID string) error {
	lines, err := r.FindAll(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list cart for clear: %w", err)
	}
	if len(lines) == 0 {
		return nil
	}

	var leftover int
	for start := 0; start < len(lines); start += maxBatchWrite {
		end := min(start+maxBatchWrite, len(lines))
		requests := make([]types.WriteRequest, 0, end-start)
		for _, line := range lines[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: cartKey(userID, line.ProductID)},
			})
		}
		out, err := r.store.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				r.store.tables.Carts: requests,
			},
		})
		if err != nil {
			return fmt.Errorf("%w: %v", entity.ErrPartialClear, err)
		}
		leftover += len(out.UnprocessedItems[r.store.tables.Carts])
	}
	if leftover > 0 {
		return entity.ErrPartialClear
	}
	return nil
}
