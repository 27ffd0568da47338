package main

import (
	"context"
	"errors"
	"os"

	"stock-assistant/internal/repository"
	"stock-assistant/internal/utils"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "stock-webhook"
)

type EnvVars struct {
	channelSecret          string
	channelToken           string
	userTableName          string
	trackedStocksTableName string
	notifierFunctionName   string
}

func getEnvironmentVariables() (envVars *EnvVars, err error) {
	channelSecret := os.Getenv("CHANNEL_SECRET")
	if channelSecret == "" {
		return nil, errors.New("CHANNEL_SECRET is not set")
	}

	channelToken := os.Getenv("CHANNEL_TOKEN")
	if channelToken == "" {
		return nil, errors.New("CHANNEL_TOKEN is not set")
	}

	userTableName := os.Getenv("USER_TABLE_NAME")
	if userTableName == "" {
		return nil, errors.New("USER_TABLE_NAME is not set")
	}

	trackedStocksTableName := os.Getenv("TRACKED_STOCKS_TABLE_NAME")
	if trackedStocksTableName == "" {
		return nil, errors.New("TRACKED_STOCKS_TABLE_NAME is not set")
	}

	notifierFunctionName := os.Getenv("NOTIFIER_FUNCTION_NAME")
	if notifierFunctionName == "" {
		return nil, errors.New("NOTIFIER_FUNCTION_NAME is not set")
	}

	return &EnvVars{
		channelSecret:          channelSecret,
		channelToken:           channelToken,
		userTableName:          userTableName,
		trackedStocksTableName: trackedStocksTableName,
		notifierFunctionName:   notifierFunctionName,
	}, nil
}

func main() {
	// Best-effort for local runs; deployed functions use real env vars.
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  TIMESTAMP,
			logrus.FieldKeyLevel: SEVERITY,
			logrus.FieldKeyMsg:   MESSAGE,
		},
	})
	logger := logrus.WithField(COMPONENT, SERVICENAME)

	envVars, err := getEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Error("Failed to get environment variables")
		panic(err)
	}

	linebotClient, err := utils.NewLineBotClient(envVars.channelSecret, envVars.channelToken)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize LINE Bot")
		panic(err)
	}

	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		panic(err)
	}
	dynamodbClient := dynamodb.NewFromConfig(cfg)
	lambdaClient := lambdasvc.NewFromConfig(cfg)

	watchlistRepo := repository.NewWatchlistRepository(logger, dynamodbClient, envVars.userTableName, envVars.trackedStocksTableName)

	handler, err := NewHandler(logger, envVars, linebotClient, watchlistRepo, lambdaClient)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}

	lambda.Start(handler.EventHandler)
}
