package utils

import (
	"context"
	"stock-assistant/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DynamoDbAPI defines the DynamoDB operations needed by our application
type DynamoDbAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// AddOutcome tells the caller how an AddSymbol request ended.
type AddOutcome int

const (
	SymbolAdded AddOutcome = iota
	SymbolAlreadyTracked
	SymbolLimitReached
)

// RemoveOutcome tells the caller how a RemoveSymbol request ended.
type RemoveOutcome int

const (
	SymbolRemoved RemoveOutcome = iota
	SymbolNotTracked
	RemoveUserNotFound
)

// WatchlistRepository defines watchlist-related database operations
type WatchlistRepository interface {
	EnsureUser(lineUserID string) error
	GetUserID(lineUserID string) (int64, bool, error)
	AddSymbol(lineUserID, symbol string) (AddOutcome, error)
	RemoveSymbol(lineUserID, symbol string) (RemoveOutcome, error)
	ListSymbols(lineUserID string) ([]string, error)
	SetNotifyTime(lineUserID, notifyTime string) error
	GetNotifyTime(lineUserID string) (string, bool, error)
	ListAllUsers() ([]models.User, error)
}
