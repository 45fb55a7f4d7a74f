package dynamo

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-notification-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTable understands exactly the expressions NotificationStore emits.
type fakeTable struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	queries  []*dynamodb.QueryInput
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: map[string]map[string]types.AttributeValue{}, pageSize: 2}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := str(in.Item[fieldNotificationID])
	if _, exists := f.items[key]; exists && aws.ToString(in.ConditionExpression) != "" {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[str(in.Key[fieldNotificationID])]}, nil
}

func (f *fakeTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[str(in.Key[fieldNotificationID])]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	for _, set := range strings.Split(strings.TrimPrefix(aws.ToString(in.UpdateExpression), "SET "), ", ") {
		parts := strings.Split(set, " = ")
		item[in.ExpressionAttributeNames[parts[0]]] = in.ExpressionAttributeValues[parts[1]]
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)

	uid := str(in.ExpressionAttributeValues[":uid"])
	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if str(item[fieldUserID]) != uid {
			continue
		}
		if in.FilterExpression != nil {
			if read, ok := item[fieldIsRead].(*types.AttributeValueMemberBOOL); ok && read.Value {
				continue
			}
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := str(matched[i][fieldCreatedAt]), str(matched[j][fieldCreatedAt])
		if !aws.ToBool(in.ScanIndexForward) {
			return a > b
		}
		return a < b
	})

	start := 0
	if in.ExclusiveStartKey != nil {
		start, _ = strconv.Atoi(str(in.ExclusiveStartKey["offset"]))
	}
	end := min(start+f.pageSize, len(matched))
	out := &dynamodb.QueryOutput{Count: int32(end - start)}
	if in.Select != types.SelectCount {
		out.Items = matched[start:end]
	}
	if end < len(matched) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"offset": &types.AttributeValueMemberS{Value: strconv.Itoa(end)},
		}
	}
	return out, nil
}

func seed(t *testing.T, s *NotificationStore, userID string, n int) []string {
	t.Helper()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < n; i++ {
		rec := &domain.Notification{
			UserID:    userID,
			Kind:      domain.KindBookingConfirmed,
			Title:     "Booking Confirmed",
			Message:   "body",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Put(context.Background(), rec))
		require.NotEmpty(t, rec.NotificationID)
		ids = append(ids, rec.NotificationID)
	}
	return ids
}

func TestNotificationStore_PutAssignsIDAndGet(t *testing.T) {
	s := NewNotificationStore(newFakeTable(), "notifications")
	ids := seed(t, s, "3", 1)

	got, err := s.Get(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "3", got.UserID)
	assert.Equal(t, domain.KindBookingConfirmed, got.Kind)
	assert.False(t, got.IsRead)
	assert.False(t, got.EmailSent)
	assert.True(t, got.CreatedAt.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
}

func TestNotificationStore_GetMissing(t *testing.T) {
	s := NewNotificationStore(newFakeTable(), "notifications")
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestNotificationStore_UpdateFlagsAreMonotone(t *testing.T) {
	s := NewNotificationStore(newFakeTable(), "notifications")
	ctx := context.Background()
	ids := seed(t, s, "3", 1)

	n, err := s.Get(ctx, ids[0])
	require.NoError(t, err)
	n.IsRead = true
	require.NoError(t, s.Put(ctx, n))

	stale := *n
	stale.IsRead = false
	stale.EmailSent = true
	require.NoError(t, s.Put(ctx, &stale))

	got, err := s.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, got.IsRead)
	assert.True(t, got.EmailSent)
}

func TestNotificationStore_UpdateMissing(t *testing.T) {
	s := NewNotificationStore(newFakeTable(), "notifications")
	err := s.Put(context.Background(), &domain.Notification{NotificationID: "ghost", UserID: "3", IsRead: true})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestNotificationStore_ListsPaginateNewestFirst(t *testing.T) {
	table := newFakeTable()
	s := NewNotificationStore(table, "notifications")
	ctx := context.Background()
	ids := seed(t, s, "3", 5)
	seed(t, s, "4", 2)

	all, err := s.ListByUser(ctx, "3")
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, ids[4], all[0].NotificationID)
	assert.Equal(t, ids[0], all[4].NotificationID)

	n, err := s.Get(ctx, ids[1])
	require.NoError(t, err)
	n.IsRead = true
	require.NoError(t, s.Put(ctx, n))

	unread, err := s.ListUnread(ctx, "3")
	require.NoError(t, err)
	assert.Len(t, unread, 4)

	count, err := s.CountUnread(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	last := table.queries[len(table.queries)-1]
	assert.Equal(t, indexUserCreatedAt, aws.ToString(last.IndexName))
	assert.Equal(t, types.SelectCount, last.Select)
}

func TestNotificationStore_EmptyListIsNotNil(t *testing.T) {
	s := NewNotificationStore(newFakeTable(), "notifications")
	list, err := s.ListByUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
