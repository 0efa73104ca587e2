package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
	pkgkafka "ZoneScan/pkg/kafka"
	"ZoneScan/pkg/logger"
	"ZoneScan/pkg/util"
)

// DayScanner runs a batch scan for one trading day.
type DayScanner interface {
	ScanDay(ctx context.Context, tf drepo.TimeFrame, tickers []string, target time.Time) (*models.ScanResult, error)
}

// ScanCommand asks for a day scan. Empty fields fall back to the scanner defaults.
type ScanCommand struct {
	TimeFrame  string   `json:"timeFrame"`
	Tickers    []string `json:"tickers,omitempty"`
	TargetDate string   `json:"targetDate,omitempty"`
}

// ScanCommandHandler consumes scan commands from Kafka.
type ScanCommandHandler struct {
	topic   string
	scanner DayScanner
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewScanCommandHandler(topic string, scanner DayScanner, metrics drepo.Metrics, log *logger.Logger) *ScanCommandHandler {
	return &ScanCommandHandler{topic: topic, scanner: scanner, metrics: orNoopMetrics(metrics), log: orNopLogger(log)}
}

func (h *ScanCommandHandler) Topic() string { return h.topic }

// Handle decodes a command and runs the scan. Malformed commands are returned as
// errors so the consumer routes them to the DLQ.
func (h *ScanCommandHandler) Handle(ctx context.Context, b []byte) error {
	var cmd ScanCommand
	if err := json.Unmarshal(b, &cmd); err != nil {
		h.metrics.RecordError("command_unmarshal")
		return fmt.Errorf("decode scan command: %w", err)
	}

	tf, err := drepo.ParseTimeFrame(cmd.TimeFrame)
	if err != nil {
		h.metrics.RecordError("command_invalid")
		return err
	}

	var target time.Time
	if cmd.TargetDate != "" {
		t, ok := util.ParseTime(cmd.TargetDate)
		if !ok {
			h.metrics.RecordError("command_invalid")
			return &models.ValidationError{Field: "targetDate", Value: cmd.TargetDate, Expected: "YYYY-MM-DD, RFC3339 or unix seconds"}
		}
		target = util.StartOfDay(t)
	}

	res, err := h.scanner.ScanDay(ctx, tf, cmd.Tickers, target)
	if err != nil {
		return fmt.Errorf("scan command: %w", err)
	}
	h.log.Info("scan command completed",
		logger.String("time_frame", string(tf)),
		logger.String("target", cmd.TargetDate),
		logger.Int("zones", res.Total),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*ScanCommandHandler)(nil)
