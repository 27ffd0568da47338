package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"stock-assistant/internal/models"
	"stock-assistant/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

const (
	// counterKey is the users-table item holding the numeric id sequence.
	// "#" cannot appear in a LINE user id, so it never collides.
	counterKey = "#counter"

	maxTrackedStocks = 20
)

type watchlistRepository struct {
	logger          *logrus.Entry
	dynamodb        utils.DynamoDbAPI
	userTableName   string
	stocksTableName string
}

func NewWatchlistRepository(logger *logrus.Entry, dynamodb utils.DynamoDbAPI, userTableName, stocksTableName string) utils.WatchlistRepository {
	return &watchlistRepository{
		logger:          logger,
		dynamodb:        dynamodb,
		userTableName:   userTableName,
		stocksTableName: stocksTableName,
	}
}

func (r *watchlistRepository) getUser(lineUserID string) (*models.User, error) {
	result, err := r.dynamodb.GetItem(context.Background(), &dynamodb.GetItemInput{
		TableName: aws.String(r.userTableName),
		Key: map[string]types.AttributeValue{
			"lineUserId": &types.AttributeValueMemberS{Value: lineUserID},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if result.Item == nil {
		return nil, nil
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(result.Item, &user); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal user item")
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

// nextUserID increments the counter item and returns the new value.
func (r *watchlistRepository) nextUserID() (int64, error) {
	result, err := r.dynamodb.UpdateItem(context.Background(), &dynamodb.UpdateItemInput{
		TableName: aws.String(r.userTableName),
		Key: map[string]types.AttributeValue{
			"lineUserId": &types.AttributeValueMemberS{Value: counterKey},
		},
		UpdateExpression: aws.String("ADD id :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to increment user id counter")
		return 0, fmt.Errorf("failed to increment user id counter: %w", err)
	}

	attr, ok := result.Attributes["id"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("unexpected counter attribute type")
	}
	id, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse counter value: %w", err)
	}
	return id, nil
}

func (r *watchlistRepository) EnsureUser(lineUserID string) error {
	user, err := r.getUser(lineUserID)
	if err != nil {
		return err
	}
	if user != nil {
		return nil
	}

	id, err := r.nextUserID()
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(models.User{
		ID:         id,
		LineUserID: lineUserID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = r.dynamodb.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName:           aws.String(r.userTableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(lineUserId)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			// Another delivery created the user first.
			return nil
		}
		r.logger.WithError(err).Error("Failed to create user in DynamoDB")
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"lineUserId": lineUserID,
		"id":         id,
	}).Info("Successfully created user")
	return nil
}

func (r *watchlistRepository) GetUserID(lineUserID string) (int64, bool, error) {
	user, err := r.getUser(lineUserID)
	if err != nil {
		return 0, false, err
	}
	if user == nil {
		return 0, false, nil
	}
	return user.ID, true, nil
}

func (r *watchlistRepository) isTracked(userID int64, symbol string) (bool, error) {
	result, err := r.dynamodb.GetItem(context.Background(), &dynamodb.GetItemInput{
		TableName: aws.String(r.stocksTableName),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberN{Value: strconv.FormatInt(userID, 10)},
			"symbol": &types.AttributeValueMemberS{Value: symbol},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to get tracked stock from DynamoDB")
		return false, fmt.Errorf("failed to get tracked stock: %w", err)
	}
	return result.Item != nil, nil
}

func (r *watchlistRepository) countTracked(userID int64) (int, error) {
	result, err := r.dynamodb.Query(context.Background(), &dynamodb.QueryInput{
		TableName:              aws.String(r.stocksTableName),
		KeyConditionExpression: aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberN{Value: strconv.FormatInt(userID, 10)},
		},
		Select: types.SelectCount,
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to count tracked stocks")
		return 0, fmt.Errorf("failed to count tracked stocks: %w", err)
	}
	return int(result.Count), nil
}

// AddSymbol runs a check-then-insert: the membership check and the cap count
// are not transactional with the put, so two concurrent deliveries for the
// same user can both pass them. The original behaves the same way.
func (r *watchlistRepository) AddSymbol(lineUserID, symbol string) (utils.AddOutcome, error) {
	if err := r.EnsureUser(lineUserID); err != nil {
		return utils.SymbolAdded, err
	}

	user, err := r.getUser(lineUserID)
	if err != nil {
		return utils.SymbolAdded, err
	}

	tracked, err := r.isTracked(user.ID, symbol)
	if err != nil {
		return utils.SymbolAdded, err
	}
	if tracked {
		return utils.SymbolAlreadyTracked, nil
	}

	count, err := r.countTracked(user.ID)
	if err != nil {
		return utils.SymbolAdded, err
	}
	if count >= maxTrackedStocks {
		return utils.SymbolLimitReached, nil
	}

	item, err := attributevalue.MarshalMap(models.TrackedStock{
		UserID:    user.ID,
		Symbol:    symbol,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return utils.SymbolAdded, fmt.Errorf("failed to marshal tracked stock: %w", err)
	}

	if _, err := r.dynamodb.PutItem(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(r.stocksTableName),
		Item:      item,
	}); err != nil {
		r.logger.WithError(err).Error("Failed to save tracked stock to DynamoDB")
		return utils.SymbolAdded, fmt.Errorf("failed to save tracked stock: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"lineUserId": lineUserID,
		"symbol":     symbol,
	}).Info("Successfully added tracked stock")
	return utils.SymbolAdded, nil
}

func (r *watchlistRepository) RemoveSymbol(lineUserID, symbol string) (utils.RemoveOutcome, error) {
	user, err := r.getUser(lineUserID)
	if err != nil {
		return utils.SymbolRemoved, err
	}
	if user == nil {
		return utils.RemoveUserNotFound, nil
	}

	tracked, err := r.isTracked(user.ID, symbol)
	if err != nil {
		return utils.SymbolRemoved, err
	}
	if !tracked {
		return utils.SymbolNotTracked, nil
	}

	if _, err := r.dynamodb.DeleteItem(context.Background(), &dynamodb.DeleteItemInput{
		TableName: aws.String(r.stocksTableName),
		Key: map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberN{Value: strconv.FormatInt(user.ID, 10)},
			"symbol": &types.AttributeValueMemberS{Value: symbol},
		},
	}); err != nil {
		r.logger.WithError(err).Error("Failed to delete tracked stock from DynamoDB")
		return utils.SymbolRemoved, fmt.Errorf("failed to delete tracked stock: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"lineUserId": lineUserID,
		"symbol":     symbol,
	}).Info("Successfully removed tracked stock")
	return utils.SymbolRemoved, nil
}

func (r *watchlistRepository) ListSymbols(lineUserID string) ([]string, error) {
	user, err := r.getUser(lineUserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	result, err := r.dynamodb.Query(context.Background(), &dynamodb.QueryInput{
		TableName:              aws.String(r.stocksTableName),
		KeyConditionExpression: aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberN{Value: strconv.FormatInt(user.ID, 10)},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to query tracked stocks from DynamoDB")
		return nil, fmt.Errorf("failed to query tracked stocks: %w", err)
	}

	var stocks []models.TrackedStock
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &stocks); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal tracked stocks")
		return nil, fmt.Errorf("failed to unmarshal tracked stocks: %w", err)
	}

	// Newest first. The sort key is the symbol, so order on createdAt here.
	sort.Slice(stocks, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339Nano, stocks[i].CreatedAt)
		tj, _ := time.Parse(time.RFC3339Nano, stocks[j].CreatedAt)
		return ti.After(tj)
	})

	symbols := make([]string, 0, len(stocks))
	for _, stock := range stocks {
		symbols = append(symbols, stock.Symbol)
	}
	return symbols, nil
}

func (r *watchlistRepository) SetNotifyTime(lineUserID, notifyTime string) error {
	if err := r.EnsureUser(lineUserID); err != nil {
		return err
	}

	if _, err := r.dynamodb.UpdateItem(context.Background(), &dynamodb.UpdateItemInput{
		TableName: aws.String(r.userTableName),
		Key: map[string]types.AttributeValue{
			"lineUserId": &types.AttributeValueMemberS{Value: lineUserID},
		},
		UpdateExpression: aws.String("SET notifyTime = :t"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t": &types.AttributeValueMemberS{Value: notifyTime},
		},
	}); err != nil {
		r.logger.WithError(err).Error("Failed to update notify time in DynamoDB")
		return fmt.Errorf("failed to update notify time: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"lineUserId": lineUserID,
		"notifyTime": notifyTime,
	}).Info("Successfully updated notify time")
	return nil
}

func (r *watchlistRepository) GetNotifyTime(lineUserID string) (string, bool, error) {
	user, err := r.getUser(lineUserID)
	if err != nil {
		return "", false, err
	}
	if user == nil || user.NotifyTime == "" {
		return "", false, nil
	}
	return user.NotifyTime, true, nil
}

func (r *watchlistRepository) ListAllUsers() ([]models.User, error) {
	result, err := r.dynamodb.Scan(context.Background(), &dynamodb.ScanInput{
		TableName:        aws.String(r.userTableName),
		FilterExpression: aws.String("lineUserId <> :counter"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":counter": &types.AttributeValueMemberS{Value: counterKey},
		},
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to scan users from DynamoDB")
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}

	var users []models.User
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &users); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal users")
		return nil, fmt.Errorf("failed to unmarshal users: %w", err)
	}
	return users, nil
}
