package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"ZeroDTE/internal/domain/models"
	domrepo "ZeroDTE/internal/domain/repository"
	"ZeroDTE/internal/service/ratelimit"
	"ZeroDTE/internal/usecase"
	"ZeroDTE/pkg/config"
	xhttp "ZeroDTE/pkg/http"
	xlogger "ZeroDTE/pkg/logger"
	xutil "ZeroDTE/pkg/util"
)

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// AnalysisEchoHandler serves the decision desk over HTTP.
type AnalysisEchoHandler struct {
	logger  *xlogger.Logger
	runner  *usecase.AnalysisRunner
	bars    *usecase.BarsUseCase
	limiter *ratelimit.Limiter
	loc     *time.Location
	checks  map[string]HealthCheck
	now     func() time.Time
}

func NewAnalysisEchoHandler(
	logger *xlogger.Logger,
	runner *usecase.AnalysisRunner,
	bars *usecase.BarsUseCase,
	limiter *ratelimit.Limiter,
	loc *time.Location,
	checks map[string]HealthCheck,
) *AnalysisEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if limiter == nil {
		limiter = ratelimit.New(0, 1)
	}
	return &AnalysisEchoHandler{
		logger:  logger,
		runner:  runner,
		bars:    bars,
		limiter: limiter,
		loc:     loc,
		checks:  checks,
		now:     time.Now,
	}
}

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api", h.rateLimit)
	g.GET("/analysis", h.Analysis)
	g.GET("/events", h.Events)
	if h.bars != nil {
		g.GET("/bars", h.Bars)
	}
}

// rateLimit applies the per-client request budget.
func (h *AnalysisEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.limiter.Allow(c.RealIP()) {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("request budget exhausted, retry later"))
		}
		return next(c)
	}
}

func (h *AnalysisEchoHandler) Analysis(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Sigma != 0 && !config.ValidSigmaMultiplier(req.Sigma) {
		return xhttp.AppErrorResponse(c,
			xhttp.FieldError("ERR_ONEOF", "sigma", "sigma must be one of 1.1, 1.3, 1.5").
				WithParam("allowed", config.AllowedSigmaMultipliers))
	}

	a, err := h.runner.Run(c.Request().Context(), usecase.RunParams{Capital: req.Capital, Sigma: req.Sigma})
	if err != nil {
		return h.fail(c, "analysis", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, a)
}

// EventsResponse is the event gate for one day.
type EventsResponse struct {
	Date      string                 `json:"date"`
	Status    models.EventRiskStatus `json:"status"`
	FeedError string                 `json:"feed_error,omitempty"`
}

func (h *AnalysisEchoHandler) Events(c echo.Context) error {
	req := &models.EventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	day, err := xutil.ParseDay(req.Date, h.now(), h.loc)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.FieldError("ERR_DATETIME", "date", "date must be YYYY-MM-DD"))
	}

	st, ferr := h.runner.EventRisk(c.Request().Context(), day)
	res := EventsResponse{Date: xutil.DayKey(day, h.loc), Status: st}
	if ferr != nil {
		res.FeedError = ferr.Error()
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Bars(c echo.Context) error {
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	now := h.now()
	res, err := h.bars.GetBars(c.Request().Context(), usecase.GetBarsParams{
		Symbol:   models.Symbol(strings.ToUpper(req.Symbol)),
		From:     xutil.ParseTimeDefault(req.From, xutil.StartOfDay(now, h.loc)),
		To:       xutil.ParseTimeDefault(req.To, now),
		Interval: domrepo.NormalizeInterval(req.Interval),
		Limit:    req.Limit,
	})
	if err != nil {
		return h.fail(c, "bars", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *AnalysisEchoHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrConnectivityFailure):
		h.logger.Warn(op+" connectivity failure", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ConnectivityError("primary instrument unavailable").WithError(err))
	case errors.Is(err, usecase.ErrInvalidParams):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	default:
		var fe *models.FetchError
		if errors.As(err, &fe) {
			h.logger.Warn(op+" upstream error", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.ConnectivityError(fe.Error()).WithError(err))
		}
		h.logger.Error(op+" usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("analysis failed").WithError(err))
	}
}
