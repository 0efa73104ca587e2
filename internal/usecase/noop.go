package usecase

import (
	drepo "ZoneScan/internal/domain/repository"
	"ZoneScan/pkg/logger"
)

type noopMetrics struct{}

func (noopMetrics) RecordZonesAccepted(string, string, int) {}
func (noopMetrics) RecordTickerScan(string, string)         {}
func (noopMetrics) RecordRetry(string)                      {}
func (noopMetrics) RecordError(string)                      {}
func (noopMetrics) RecordLatency(string, float64)           {}

func orNoopMetrics(m drepo.Metrics) drepo.Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func orNopLogger(l *logger.Logger) *logger.Logger {
	if l == nil {
		return logger.NewNop()
	}
	return l
}
