package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"stock-assistant/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserTable   = "users"
	testStocksTable = "tracked_stocks"
)

// fakeDynamo implements utils.DynamoDbAPI over in-memory maps, covering the
// expressions the watchlist repository actually issues.
type fakeDynamo struct {
	users  map[string]map[string]types.AttributeValue // lineUserId -> item
	stocks map[string]map[string]types.AttributeValue // userId|symbol -> item
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		users:  make(map[string]map[string]types.AttributeValue),
		stocks: make(map[string]map[string]types.AttributeValue),
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if attr, ok := item[name].(*types.AttributeValueMemberS); ok {
		return attr.Value
	}
	return ""
}

func numberAttr(item map[string]types.AttributeValue, name string) string {
	if attr, ok := item[name].(*types.AttributeValueMemberN); ok {
		return attr.Value
	}
	return ""
}

func stockKey(item map[string]types.AttributeValue) string {
	return numberAttr(item, "userId") + "|" + stringAttr(item, "symbol")
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	switch *params.TableName {
	case testUserTable:
		return &dynamodb.GetItemOutput{Item: f.users[stringAttr(params.Key, "lineUserId")]}, nil
	case testStocksTable:
		return &dynamodb.GetItemOutput{Item: f.stocks[stockKey(params.Key)]}, nil
	}
	return nil, fmt.Errorf("unknown table %s", *params.TableName)
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	switch *params.TableName {
	case testUserTable:
		key := stringAttr(params.Item, "lineUserId")
		if params.ConditionExpression != nil && f.users[key] != nil {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("item exists")}
		}
		f.users[key] = params.Item
	case testStocksTable:
		f.stocks[stockKey(params.Item)] = params.Item
	default:
		return nil, fmt.Errorf("unknown table %s", *params.TableName)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	delete(f.stocks, stockKey(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	key := stringAttr(params.Key, "lineUserId")
	item := f.users[key]
	if item == nil {
		item = map[string]types.AttributeValue{
			"lineUserId": &types.AttributeValueMemberS{Value: key},
		}
		f.users[key] = item
	}

	expr := *params.UpdateExpression
	switch {
	case strings.HasPrefix(expr, "ADD id"):
		current := int64(0)
		if v := numberAttr(item, "id"); v != "" {
			current, _ = strconv.ParseInt(v, 10, 64)
		}
		next := current + 1
		item["id"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(next, 10)}
		return &dynamodb.UpdateItemOutput{
			Attributes: map[string]types.AttributeValue{
				"id": &types.AttributeValueMemberN{Value: strconv.FormatInt(next, 10)},
			},
		}, nil
	case strings.HasPrefix(expr, "SET notifyTime"):
		item["notifyTime"] = params.ExpressionAttributeValues[":t"]
		return &dynamodb.UpdateItemOutput{}, nil
	}
	return nil, fmt.Errorf("unsupported update expression %q", expr)
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	uid := ""
	if attr, ok := params.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberN); ok {
		uid = attr.Value
	}
	var items []map[string]types.AttributeValue
	for _, item := range f.stocks {
		if numberAttr(item, "userId") == uid {
			items = append(items, item)
		}
	}
	out := &dynamodb.QueryOutput{Count: int32(len(items))}
	if params.Select != types.SelectCount {
		out.Items = items
	}
	return out, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	counter := stringAttr(params.ExpressionAttributeValues, ":counter")
	var items []map[string]types.AttributeValue
	for key, item := range f.users {
		if key == counter {
			continue
		}
		items = append(items, item)
	}
	return &dynamodb.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

func newTestRepository() utils.WatchlistRepository {
	logger := logrus.WithField("component", "test")
	return NewWatchlistRepository(logger, newFakeDynamo(), testUserTable, testStocksTable)
}

func TestAddSymbol(t *testing.T) {
	repo := newTestRepository()

	outcome, err := repo.AddSymbol("U1", "2330")
	require.NoError(t, err)
	assert.Equal(t, utils.SymbolAdded, outcome)

	symbols, err := repo.ListSymbols("U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2330"}, symbols)

	outcome, err = repo.AddSymbol("U1", "2330")
	require.NoError(t, err)
	assert.Equal(t, utils.SymbolAlreadyTracked, outcome)

	symbols, err = repo.ListSymbols("U1")
	require.NoError(t, err)
	assert.Len(t, symbols, 1)
}

func TestAddSymbolCaseSensitive(t *testing.T) {
	repo := newTestRepository()

	outcome, err := repo.AddSymbol("U1", "aapl")
	require.NoError(t, err)
	assert.Equal(t, utils.SymbolAdded, outcome)

	outcome, err = repo.AddSymbol("U1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, utils.SymbolAdded, outcome)
}

func TestAddSymbolLimit(t *testing.T) {
	repo := newTestRepository()

	for i := 0; i < 20; i++ {
		outcome, err := repo.AddSymbol("U1", fmt.Sprintf("23%02d", i))
		require.NoError(t, err)
		require.Equal(t, utils.SymbolAdded, outcome)
	}

	outcome, err := repo.AddSymbol("U1", "9999")
	require.NoError(t, err)
	assert.Equal(t, utils.SymbolLimitReached, outcome)

	symbols, err := repo.ListSymbols("U1")
	require.NoError(t, err)
	assert.Len(t, symbols, 20)
	assert.NotContains(t, symbols, "9999")
}

func TestRemoveSymbol(t *testing.T) {
	repo := newTestRepository()

	outcome, err := repo.RemoveSymbol("ghost", "2330")
	require.NoError(t, err)
	assert.Equal(t, utils.RemoveUserNotFound, outcome)

	_, err = repo.AddSymbol("U1", "2330")
	require.NoError(t, err)

	outcome, err = repo.RemoveSymbol("U1", "2317")
	require.NoError(t, err)
	assert.Equal(t, utils.SymbolNotTracked, outcome)

	symbols, err := repo.ListSymbols("U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2330"}, symbols)

	outcome, err = repo.RemoveSymbol("U1", "2330")
	require.NoError(t, err)
	assert.Equal(t, utils.SymbolRemoved, outcome)

	symbols, err = repo.ListSymbols("U1")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestListSymbolsNewestFirst(t *testing.T) {
	repo := newTestRepository()

	for _, symbol := range []string{"2330", "2317", "0050"} {
		_, err := repo.AddSymbol("U1", symbol)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	symbols, err := repo.ListSymbols("U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"0050", "2317", "2330"}, symbols)
}

func TestListSymbolsUnknownUser(t *testing.T) {
	repo := newTestRepository()

	symbols, err := repo.ListSymbols("nobody")
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestNotifyTimeRoundTrip(t *testing.T) {
	repo := newTestRepository()

	_, found, err := repo.GetNotifyTime("U1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetNotifyTime("U1", "08:30"))

	notifyTime, found, err := repo.GetNotifyTime("U1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "08:30", notifyTime)

	// Overwrites unconditionally.
	require.NoError(t, repo.SetNotifyTime("U1", "14:05"))
	notifyTime, _, err = repo.GetNotifyTime("U1")
	require.NoError(t, err)
	assert.Equal(t, "14:05", notifyTime)
}

func TestEnsureUserAssignsDistinctIDs(t *testing.T) {
	repo := newTestRepository()

	require.NoError(t, repo.EnsureUser("U1"))
	require.NoError(t, repo.EnsureUser("U1"))
	require.NoError(t, repo.EnsureUser("U2"))

	id1, found, err := repo.GetUserID("U1")
	require.NoError(t, err)
	require.True(t, found)

	id2, found, err := repo.GetUserID("U2")
	require.NoError(t, err)
	require.True(t, found)

	assert.NotEqual(t, id1, id2)

	_, found, err = repo.GetUserID("U3")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListAllUsers(t *testing.T) {
	repo := newTestRepository()

	require.NoError(t, repo.SetNotifyTime("U1", "14:05"))
	require.NoError(t, repo.EnsureUser("U2")) // no notify time set

	users, err := repo.ListAllUsers()
	require.NoError(t, err)
	require.Len(t, users, 2)

	byID := make(map[string]string)
	for _, user := range users {
		byID[user.LineUserID] = user.NotifyTime
	}
	assert.Equal(t, "14:05", byID["U1"])
	assert.Equal(t, "", byID["U2"])
}
