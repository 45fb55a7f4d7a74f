package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-notification-service/internal/domain"
	"github.com/go-notification-service/internal/pkg/id"
)

type tableAPI interface {
	dynamodb.QueryAPIClient
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// NotificationStore provides typed DynamoDB operations for the notifications table.
type NotificationStore struct {
	client    tableAPI
	tableName string
}

func NewNotificationStore(client tableAPI, tableName string) *NotificationStore {
	return &NotificationStore{client: client, tableName: tableName}
}

// Put inserts n when it has no id yet, assigning one. For an existing record only the
// read and delivery flags that are set are written, so neither can revert to false.
func (r *NotificationStore) Put(ctx context.Context, n *domain.Notification) error {
	if n.NotificationID == "" {
		return r.insert(ctx, n)
	}
	updates := map[string]interface{}{}
	if n.IsRead {
		updates[fieldIsRead] = true
	}
	if n.EmailSent {
		updates[fieldEmailSent] = true
	}
	if len(updates) == 0 {
		return nil
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldNotificationID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldNotificationID, n.NotificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("notification %s: %w", n.NotificationID, domain.ErrNotFound)
	}
	return err
}

func (r *NotificationStore) insert(ctx context.Context, n *domain.Notification) error {
	rec := *n
	rec.NotificationID = id.NewAt(rec.CreatedAt)
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": fieldNotificationID},
	})
	if err != nil {
		return err
	}
	n.NotificationID = rec.NotificationID
	return nil
}

func (r *NotificationStore) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldNotificationID, notificationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser returns every notification of the user, newest first.
func (r *NotificationStore) ListByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	return r.query(ctx, r.userQuery(userID, false))
}

// ListUnread queries the user_id-created_at GSI and filters for is_read=false.
func (r *NotificationStore) ListUnread(ctx context.Context, userID string) ([]domain.Notification, error) {
	return r.query(ctx, r.userQuery(userID, true))
}

func (r *NotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	in := r.userQuery(userID, true)
	in.Select = types.SelectCount
	total := 0
	p := dynamodb.NewQueryPaginator(r.client, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(out.Count)
	}
	return total, nil
}

func (r *NotificationStore) userQuery(userID string, unreadOnly bool) *dynamodb.QueryInput {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserCreatedAt),
		KeyConditionExpression: aws.String("#uid = :uid"),
		ExpressionAttributeNames: map[string]string{
			"#uid": fieldUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if unreadOnly {
		in.FilterExpression = aws.String("#read = :false")
		in.ExpressionAttributeNames["#read"] = fieldIsRead
		in.ExpressionAttributeValues[":false"] = &types.AttributeValueMemberBOOL{Value: false}
	}
	return in
}

func (r *NotificationStore) query(ctx context.Context, in *dynamodb.QueryInput) ([]domain.Notification, error) {
	notifications := []domain.Notification{}
	p := dynamodb.NewQueryPaginator(r.client, in)
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		notifications = append(notifications, page...)
	}
	return notifications, nil
}
