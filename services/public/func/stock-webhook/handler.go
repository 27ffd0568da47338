package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"stock-assistant/internal/models"
	"stock-assistant/internal/utils"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/line/line-bot-sdk-go/v7/linebot"
	"github.com/sirupsen/logrus"
)

var notifyTimePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

type Handler struct {
	logger        *logrus.Entry
	envVars       *EnvVars
	linebotClient utils.LinebotAPI
	watchlistRepo utils.WatchlistRepository
	lambdaClient  utils.LambdaAPI
}

func NewHandler(logger *logrus.Entry, envVars *EnvVars, linebotClient utils.LinebotAPI, watchlistRepo utils.WatchlistRepository, lambdaClient utils.LambdaAPI) (*Handler, error) {
	return &Handler{
		logger:        logger,
		envVars:       envVars,
		linebotClient: linebotClient,
		watchlistRepo: watchlistRepo,
		lambdaClient:  lambdaClient,
	}, nil
}

func (h *Handler) EventHandler(request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	messageEvents, err := h.RequestParser(request)
	if err != nil {
		h.logger.Error("Failed to parse request: ", err)
		return events.APIGatewayProxyResponse{
			StatusCode: 400,
			Body:       "Bad Request",
		}, nil
	}

	// Process each message event
	for _, event := range messageEvents {
		h.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"user_id":    event.Source.UserID,
		}).Info("event handling")

		if event.Type == linebot.EventTypeFollow {
			h.handleFollow(event.ReplyToken, event.Source.UserID)
			continue
		}

		if event.Type == linebot.EventTypeMessage {
			message, ok := event.Message.(*linebot.TextMessage)
			if !ok {
				continue
			}
			h.logger.WithField("text", message.Text).Info("Received text message")

			reply := h.handleCommand(event.Source.UserID, message.Text)
			if reply == "" {
				continue
			}
			if err := h.linebotClient.ReplyMessage(event.ReplyToken, reply); err != nil {
				h.logger.Error("Failed to reply message: ", err)
			}
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: 200,
		Body:       "OK",
	}, nil
}

func (h *Handler) RequestParser(request events.APIGatewayProxyRequest) ([]*linebot.Event, error) {
	var bodyJSON interface{}
	if err := json.Unmarshal([]byte(request.Body), &bodyJSON); err != nil {
		h.logger.WithError(err).Error("Failed to parse JSON")
		return nil, err
	} else {
		h.logger.WithFields(logrus.Fields{
			"webhook_body": bodyJSON,
		}).Info("Received LINE webhook")
	}

	// analyze request body
	reqBody := bytes.NewBufferString(request.Body)
	req, err := http.NewRequest(http.MethodPost, "", reqBody)
	if err != nil {
		return nil, err
	}

	// parse all headers
	req.Header = make(http.Header)
	for key, value := range request.Headers {
		req.Header.Set(key, value)
	}
	// Parse the webhook event
	messageEvents, err := h.linebotClient.ParseRequest(req)
	if err != nil {
		h.logger.Error("Failed to parse webhook request: ", err)
		return nil, err
	}

	return messageEvents, nil
}

// handleCommand maps one inbound message to a reply. An empty reply means
// nothing is sent back (unknown command, or an abandoned store failure).
func (h *Handler) handleCommand(userID, text string) string {
	text = strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(text, "+"):
		return h.handleAdd(userID, strings.TrimSpace(text[1:]))
	case strings.HasPrefix(text, "-"):
		return h.handleRemove(userID, strings.TrimSpace(text[1:]))
	case text == "/list":
		return h.handleList(userID)
	case strings.HasPrefix(text, "/settime"):
		return h.handleSetTime(userID, text)
	case text == "/time":
		return h.handleShowTime(userID)
	}
	return ""
}

func (h *Handler) handleAdd(userID, symbol string) string {
	outcome, err := h.watchlistRepo.AddSymbol(userID, symbol)
	if err != nil {
		h.logger.WithError(err).Error("Failed to add tracked stock")
		return ""
	}

	switch outcome {
	case utils.SymbolAlreadyTracked:
		return fmt.Sprintf("⚠️ already tracking %s", symbol)
	case utils.SymbolLimitReached:
		return "⚠️ you can track at most 20 stocks"
	default:
		return fmt.Sprintf("✅ added %s", symbol)
	}
}

func (h *Handler) handleRemove(userID, symbol string) string {
	outcome, err := h.watchlistRepo.RemoveSymbol(userID, symbol)
	if err != nil {
		h.logger.WithError(err).Error("Failed to remove tracked stock")
		return ""
	}

	if outcome == utils.SymbolRemoved {
		return fmt.Sprintf("🗑️ stopped tracking %s", symbol)
	}
	return fmt.Sprintf("⚠️ you were not tracking %s anyway", symbol)
}

func (h *Handler) handleList(userID string) string {
	symbols, err := h.watchlistRepo.ListSymbols(userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list tracked stocks")
		return ""
	}

	if len(symbols) == 0 {
		return "📭 your watchlist is empty, use `+SYMBOL` (e.g. +2330) to start tracking!"
	}
	return models.FormatWatchlist(symbols)
}

func (h *Handler) handleSetTime(userID, text string) string {
	const formatError = "❌ wrong format, use `/settime HH:MM` (e.g. /settime 08:30)"

	// Validate before any write: a malformed time must not mutate state.
	parts := strings.SplitN(text, " ", 2)
	if len(parts) < 2 {
		return formatError
	}
	notifyTime := strings.TrimSpace(parts[1])
	if !notifyTimePattern.MatchString(notifyTime) {
		return formatError
	}

	if err := h.watchlistRepo.SetNotifyTime(userID, notifyTime); err != nil {
		h.logger.WithError(err).Error("Failed to set notify time")
		return ""
	}

	h.triggerImmediateReport(userID)
	return fmt.Sprintf("✅ notify time set to %s", notifyTime)
}

func (h *Handler) handleShowTime(userID string) string {
	notifyTime, found, err := h.watchlistRepo.GetNotifyTime(userID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get notify time")
		return ""
	}

	if !found {
		return "you have not set a notify time yet, use `/settime 08:00` to set one!"
	}
	return fmt.Sprintf("⏰ your notify time is %s", notifyTime)
}

func (h *Handler) handleFollow(replyToken, userID string) {
	h.logger.WithField("userID", userID).Info("User followed the bot")

	if err := h.watchlistRepo.EnsureUser(userID); err != nil {
		h.logger.WithError(err).WithField("userID", userID).Error("Failed to create initial user record")
		// Still greet the user.
	}

	message := `👋 Hi! I am your stock watchlist assistant!

• +SYMBOL to track a stock (e.g. +2330)
• -SYMBOL to stop tracking it
• /list to see your watchlist
• /settime HH:MM to pick your daily report time (e.g. /settime 08:30)
• /time to see your current report time

Every trading day at your chosen time I will push the current price of
each tracked stock compared against its 1-month and 1-year averages 📊`

	if err := h.linebotClient.ReplyMessage(replyToken, message); err != nil {
		h.logger.Error("Failed to send greeting message: ", err)
	}
}

// triggerImmediateReport invokes the notifier for one user right after a
// notify time is set, so the first report arrives immediately. The invoke
// itself is asynchronous; failures only cost the immediate report.
func (h *Handler) triggerImmediateReport(userID string) {
	h.logger.WithField("userID", userID).Info("Triggering immediate report")

	payload, err := json.Marshal(map[string]string{
		"userId": userID,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal notifier payload")
		return
	}

	input := &lambdasvc.InvokeInput{
		FunctionName:   aws.String(h.envVars.notifierFunctionName),
		InvocationType: "Event",
		Payload:        payload,
	}

	if _, err := h.lambdaClient.Invoke(context.Background(), input); err != nil {
		h.logger.WithError(err).Error("Failed to invoke notifier lambda")
		return
	}

	h.logger.WithField("userID", userID).Info("Successfully triggered immediate report")
}
