package main

import (
	"context"
	"errors"
	"os"

	"stock-assistant/internal/repository"
	"stock-assistant/internal/stock"
	"stock-assistant/internal/utils"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	SEVERITY    = "severity"
	MESSAGE     = "message"
	TIMESTAMP   = "timestamp"
	COMPONENT   = "component"
	SERVICENAME = "stock-notifier"
)

type EnvVars struct {
	channelSecret          string
	channelToken           string
	userTableName          string
	trackedStocksTableName string
}

func getEnvVars() (*EnvVars, error) {
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

	return &EnvVars{
		channelSecret:          channelSecret,
		channelToken:           channelToken,
		userTableName:          userTableName,
		trackedStocksTableName: trackedStocksTableName,
	}, nil
}

var handler *Handler

func initHandler() {
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

	envVars, err := getEnvVars()
	if err != nil {
		logger.WithError(err).Error("Failed to get environment variables")
		panic(err)
	}

	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		logger.WithError(err).Error("Failed to load AWS config")
		panic(err)
	}
	dynamodbClient := dynamodb.NewFromConfig(cfg)

	linebotClient, err := utils.NewLineBotClient(envVars.channelSecret, envVars.channelToken)
	if err != nil {
		panic(err)
	}

	marketCfg, err := stock.LoadMarketConfig()
	if err != nil {
		logger.WithError(err).Error("Failed to load market config")
		panic(err)
	}

	quoteClient := utils.NewYahooClient(marketCfg.SymbolSuffix)
	stockService, err := stock.NewStockService(logger, quoteClient, marketCfg)
	if err != nil {
		logger.WithError(err).Error("Failed to create stock service")
		panic(err)
	}

	watchlistRepo := repository.NewWatchlistRepository(logger, dynamodbClient, envVars.userTableName, envVars.trackedStocksTableName)

	handler, err = NewHandler(logger, envVars, linebotClient, watchlistRepo, stockService)
	if err != nil {
		logger.WithError(err).Error("Failed to create handler")
		panic(err)
	}
}

// HandleRequest serves direct Lambda invokes (JSON payload) and the
// minutely EventBridge trigger, which sends a constant empty payload.
func HandleRequest(ctx context.Context, request map[string]string) (map[string]interface{}, error) {
	return handler.HandleNotifyRun(request)
}

func main() {
	initHandler()
	lambda.Start(HandleRequest)
}
