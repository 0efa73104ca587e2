package api

import (
	"context"
	"errors"
	"time"

	"ZoneScan/internal/domain/models"
	drepo "ZoneScan/internal/domain/repository"
	"ZoneScan/internal/usecase"
	xhttp "ZoneScan/pkg/http"
	"ZoneScan/pkg/http/middleware"
	xlogger "ZoneScan/pkg/logger"
	"ZoneScan/pkg/util"

	"github.com/labstack/echo/v4"
)

// TickerDetector detects zones over a single ticker's lookback window.
type TickerDetector interface {
	DetectForTicker(ctx context.Context, ticker string, tf drepo.TimeFrame) ([]models.Zone, error)
}

// ZoneReader lists stored zones.
type ZoneReader interface {
	Find(ctx context.Context, f drepo.ZoneFilter) ([]models.Zone, error)
}

// ZonesEchoHandler exposes zone detection, day scans and stored zones over HTTP.
type ZonesEchoHandler struct {
	logger   *xlogger.Logger
	detector TickerDetector
	scanner  usecase.DayScanner
	reader   ZoneReader
	limiter  middleware.Allower
}

// NewZonesEchoHandler builds the handler. A nil limiter disables scan rate limiting.
func NewZonesEchoHandler(logger *xlogger.Logger, detector TickerDetector, scanner usecase.DayScanner, reader ZoneReader, limiter middleware.Allower) *ZonesEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &ZonesEchoHandler{logger: logger, detector: detector, scanner: scanner, reader: reader, limiter: limiter}
}

func (h *ZonesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/zones")
	g.GET("", h.List)
	if h.limiter != nil {
		g.POST("/scan", h.Scan, middleware.RateLimit(h.limiter))
	} else {
		g.POST("/scan", h.Scan)
	}
	g.GET("/:ticker", h.Detect)
}

// Detect runs single-ticker detection over the configured lookback.
func (h *ZonesEchoHandler) Detect(c echo.Context) error {
	req := &models.DetectZonesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	zones, err := h.detector.DetectForTicker(c.Request().Context(), req.Ticker, drepo.TimeFrame(req.TimeFrame))
	if err != nil {
		h.logger.Error("detect zones failed",
			xlogger.String("ticker", req.Ticker),
			xlogger.String("time_frame", req.TimeFrame),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.ListResponse(c, nonNil(zones), len(zones))
}

// Scan runs a day scan over the given tickers or the configured universe.
func (h *ZonesEchoHandler) Scan(c echo.Context) error {
	req := &models.ScanDayRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var target time.Time
	if req.TargetDate != "" {
		t, err := util.ParseDate(req.TargetDate)
		if err != nil {
			return xhttp.AppErrorResponse(c, mapError(&models.ValidationError{
				Field: "targetDate", Value: req.TargetDate, Expected: "date in YYYY-MM-DD",
			}))
		}
		target = t
	}

	res, err := h.scanner.ScanDay(c.Request().Context(), drepo.TimeFrame(req.TimeFrame), req.Tickers, target)
	if err != nil {
		h.logger.Error("day scan failed",
			xlogger.String("time_frame", req.TimeFrame),
			xlogger.Int("tickers", len(req.Tickers)),
			xlogger.String("target", req.TargetDate),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// List returns stored zones; from and to are inclusive leg-out dates.
func (h *ZonesEchoHandler) List(c echo.Context) error {
	req := &models.ListZonesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	f := drepo.ZoneFilter{Ticker: req.Ticker, TimeFrame: drepo.TimeFrame(req.TimeFrame)}
	if req.From != "" {
		f.LegOutFrom, _ = util.ParseDate(req.From)
	}
	if req.To != "" {
		to, _ := util.ParseDate(req.To)
		f.LegOutTo = to.AddDate(0, 0, 1)
	}
	if !f.LegOutFrom.IsZero() && !f.LegOutTo.IsZero() && !f.LegOutFrom.Before(f.LegOutTo) {
		return xhttp.AppErrorResponse(c, mapError(&models.ValidationError{
			Field: "to", Value: req.To, Expected: "date on or after from",
		}))
	}

	zones, err := h.reader.Find(c.Request().Context(), f)
	if err != nil {
		h.logger.Error("list zones failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapError(err))
	}
	return xhttp.ListResponse(c, nonNil(zones), len(zones))
}

// mapError translates domain failures into API errors. Provider details stay in the logs.
func mapError(err error) *xhttp.AppError {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		return xhttp.ValidationFailed(ve.Field, ve.Error()).
			WithParam("value", ve.Value).
			WithParam("expected", ve.Expected)
	}
	var ie *models.InsufficientDataError
	if errors.As(err, &ie) {
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", ie.Error()).
			WithParam("got", ie.Got).
			WithParam("min", ie.Min)
	}
	if errors.Is(err, models.ErrProvider) {
		return xhttp.BadGatewayError("ERR_PROVIDER", "market data provider unavailable, try again later").WithError(err)
	}
	return xhttp.InternalError("internal error").WithError(err)
}

func nonNil(zones []models.Zone) []models.Zone {
	if zones == nil {
		return []models.Zone{}
	}
	return zones
}
