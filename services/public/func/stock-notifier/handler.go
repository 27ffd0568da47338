package main

import (
	"context"
	"strings"
	"time"

	"stock-assistant/internal/models"
	"stock-assistant/internal/stock"
	"stock-assistant/internal/utils"

	"github.com/sirupsen/logrus"
)

type Handler struct {
	logger        *logrus.Entry
	envVars       *EnvVars
	linebotClient utils.LinebotAPI
	watchlistRepo utils.WatchlistRepository
	stockService  stock.StockAPI
}

func NewHandler(logger *logrus.Entry, envVars *EnvVars, linebotClient utils.LinebotAPI, watchlistRepo utils.WatchlistRepository, stockService stock.StockAPI) (*Handler, error) {
	return &Handler{
		logger:        logger,
		envVars:       envVars,
		linebotClient: linebotClient,
		watchlistRepo: watchlistRepo,
		stockService:  stockService,
	}, nil
}

// HandleNotifyRun serves both invocation modes: the minutely batch trigger
// (empty payload) and a direct invoke for one user (payload with userId),
// used for the immediate report right after /settime.
func (h *Handler) HandleNotifyRun(request map[string]string) (map[string]interface{}, error) {
	// Recompute wall-clock time on every run, never at startup.
	now := time.Now().In(h.stockService.Location())

	if userID := request["userId"]; userID != "" {
		return h.runSingleUser(now, userID), nil
	}
	return h.runBatch(now), nil
}

func (h *Handler) runSingleUser(now time.Time, userID string) map[string]interface{} {
	h.logger.WithField("userId", userID).Info("Received direct report request")

	report := h.buildUserReport(now, userID)
	if report == "" {
		return map[string]interface{}{
			"status":  "error",
			"message": "nothing to report for user",
		}
	}

	if err := h.linebotClient.PushMessage(userID, report); err != nil {
		h.logger.WithError(err).Error("Failed to push report to user")
		return map[string]interface{}{
			"status":  "error",
			"message": "failed to push report",
		}
	}

	h.logger.WithField("userId", userID).Info("Successfully pushed report to user")
	return map[string]interface{}{
		"status":  "success",
		"message": "report sent",
		"data": map[string]interface{}{
			"userId": userID,
		},
	}
}

func (h *Handler) runBatch(now time.Time) map[string]interface{} {
	if weekday := now.Weekday(); weekday == time.Saturday || weekday == time.Sunday {
		h.logger.Info("Market closed today, skipping push run")
		return map[string]interface{}{
			"status":  "skipped",
			"message": "market closed today",
		}
	}

	users, err := h.watchlistRepo.ListAllUsers()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list users")
		return map[string]interface{}{
			"status":  "error",
			"message": "failed to list users",
		}
	}

	currentTime := now.Format("15:04")
	pushed := 0
	for _, user := range users {
		// Exact string match against the stored HH:MM, no tolerance window.
		if user.NotifyTime == "" || user.NotifyTime != currentTime {
			continue
		}

		report := h.buildUserReport(now, user.LineUserID)
		if report == "" {
			continue
		}

		if err := h.linebotClient.PushMessage(user.LineUserID, report); err != nil {
			h.logger.WithError(err).WithField("userId", user.LineUserID).Error("Failed to push report")
			continue
		}

		h.logger.WithField("userId", user.LineUserID).Info("Successfully pushed report")
		pushed++
	}

	h.logger.WithFields(logrus.Fields{
		"users":  len(users),
		"pushed": pushed,
		"time":   currentTime,
	}).Info("Push run finished")

	return map[string]interface{}{
		"status":  "success",
		"message": "push run finished",
		"data": map[string]interface{}{
			"users":  len(users),
			"pushed": pushed,
		},
	}
}

// buildUserReport assembles one block per tracked symbol, in stored order.
// A symbol whose data is unavailable degrades to an explanatory line instead
// of failing the whole report.
func (h *Handler) buildUserReport(now time.Time, userID string) string {
	symbols, err := h.watchlistRepo.ListSymbols(userID)
	if err != nil {
		h.logger.WithError(err).WithField("userId", userID).Error("Failed to list tracked stocks")
		return ""
	}
	if len(symbols) == 0 {
		return ""
	}

	ctx := context.Background()
	blocks := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		quote := h.stockService.CurrentQuote(ctx, now, symbol)
		if quote.Price == nil {
			blocks = append(blocks, models.MarketNotOpenLine(symbol, h.stockService.SessionOpen()))
			continue
		}

		averages := h.stockService.TrailingAverages(ctx, now, symbol)
		if averages.MonthAvg == nil && averages.YearAvg == nil {
			blocks = append(blocks, models.AveragesUnavailableLine(symbol))
			continue
		}

		name := h.stockService.DisplayName(ctx, symbol)
		blocks = append(blocks, models.FormatStockBlock(symbol, name, quote, averages))
	}

	return strings.Join(blocks, "\n\n")
}
