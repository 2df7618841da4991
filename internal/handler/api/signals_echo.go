package api

import (
	"errors"
	"net/http"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	mid "SigPulse/internal/middleware"
	"SigPulse/internal/usecase"
	xhttp "SigPulse/pkg/http"
	xlogger "SigPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalsEchoHandler exposes the query gateway, the admin ingestion
// surface, and the health probe.
type SignalsEchoHandler struct {
	logger       *xlogger.Logger
	svc          *usecase.SignalService
	sched        *usecase.Scheduler
	pipe         *mid.IngestPipeline
	store        drepo.SignalStore
	gateway      *Gateway
	ws           *WebSocketHandler
	ingestSecret string
}

func NewSignalsEchoHandler(
	logger *xlogger.Logger,
	svc *usecase.SignalService,
	sched *usecase.Scheduler,
	pipe *mid.IngestPipeline,
	store drepo.SignalStore,
	gateway *Gateway,
	ws *WebSocketHandler,
	ingestSecret string,
) *SignalsEchoHandler {
	return &SignalsEchoHandler{
		logger:       logger,
		svc:          svc,
		sched:        sched,
		pipe:         pipe,
		store:        store,
		gateway:      gateway,
		ws:           ws,
		ingestSecret: ingestSecret,
	}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.gateway.Authenticate)
	g.GET("/signals", h.ListSignals, h.gateway.RequireQuota)
	g.GET("/signals/:id", h.GetSignal, h.gateway.RequireQuota)
	g.GET("/stats", h.Stats, h.gateway.RequireQuota)
	g.GET("/usage", h.Usage)

	in := e.Group("/internal", h.requireIngestSecret)
	in.POST("/signals", h.Ingest)
	in.POST("/signals/:id/outcome", h.RecordOutcome)
	in.POST("/refresh", h.Refresh)

	e.GET("/ws", h.ws.Serve, h.gateway.Authenticate, h.gateway.RequirePaidTier)
	e.GET("/healthz", h.Health)
}

func (h *SignalsEchoHandler) ListSignals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	f := models.SignalFilter{
		Category:      drepo.NormalizeCategory(req.Type),
		Direction:     drepo.NormalizeDirection(req.Direction),
		MinConfidence: req.MinConfidence,
		Symbol:        req.Ticker,
		Since:         xhttp.ParseTimeDefault(req.Since, time.Time{}),
		Until:         xhttp.ParseTimeDefault(req.Until, time.Time{}),
		Limit:         req.Limit,
		Offset:        req.Offset,
	}

	rows, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		h.logger.Error("list signals failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, total)
}

func (h *SignalsEchoHandler) GetSignal(c echo.Context) error {
	id := c.Param("id")
	sig, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, drepo.ErrSignalNotFound) {
			return xhttp.NotFoundResponse(c, []*xhttp.AppError{xhttp.NotFoundErrorf("signal %s not found", id)})
		}
		h.logger.Error("get signal failed", xlogger.String("id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *SignalsEchoHandler) Stats(c echo.Context) error {
	report, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		h.logger.Error("stats failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *SignalsEchoHandler) Usage(c echo.Context) error {
	identity, tier := callerOf(c)
	dec, err := h.svc.Usage(c.Request().Context(), identity, tier)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"identity": identity,
		"tier":     tier,
		"used":     dec.Used,
		"limit":    dec.Limit,
		"reset_at": dec.ResetAt.UTC().Format(time.RFC3339),
	})
}

// requireIngestSecret guards the admin surface with the shared secret.
func (h *SignalsEchoHandler) requireIngestSecret(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("X-Ingest-Secret") != h.ingestSecret {
			return xhttp.UnauthorizedResponse(c, []*xhttp.AppError{xhttp.UnauthorizedError("invalid ingest secret")})
		}
		return next(c)
	}
}

func (h *SignalsEchoHandler) Ingest(c echo.Context) error {
	req := &models.IngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	detectedAt, ok := xhttp.ParseTime(req.DetectedAt)
	if !ok {
		return xhttp.BadRequestResponse(c, []*xhttp.AppError{xhttp.BadRequestError("detected_at is not a valid timestamp")})
	}

	cand := &models.CandidateSignal{
		Category:     models.Category(req.Category),
		Source:       req.Source,
		SourceURL:    req.SourceURL,
		TargetSymbol: req.TargetSymbol,
		TargetSector: req.TargetSector,
		Direction:    models.Direction(req.Direction),
		Strength:     req.Strength,
		Confidence:   req.Confidence,
		Title:        req.Title,
		Summary:      req.Summary,
		Rationale:    req.Rationale,
		DetectedAt:   detectedAt,
		ExpiresAt:    xhttp.ParseTimeDefault(req.ExpiresAt, time.Time{}),
	}

	if err := h.pipe.Process(c.Request().Context(), cand); err != nil {
		if errors.Is(err, mid.ErrBusy) {
			return xhttp.TooManyRequestsResponse(c, []*xhttp.AppError{
				xhttp.TooManyRequestsError("ingestion saturated, retry later"),
			})
		}
		h.logger.Error("ingest failed", xlogger.String("title", cand.Title), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("signal ingestion failed").WithError(err))
	}
	return xhttp.CreatedResponse(c, map[string]interface{}{"accepted": true})
}

func (h *SignalsEchoHandler) RecordOutcome(c echo.Context) error {
	id := c.Param("id")
	req := &models.OutcomeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sig, err := h.svc.RecordOutcome(c.Request().Context(), id, models.Outcome(req.Outcome), req.ActualReturn)
	if err != nil {
		switch {
		case errors.Is(err, drepo.ErrSignalNotFound):
			return xhttp.NotFoundResponse(c, []*xhttp.AppError{xhttp.NotFoundErrorf("signal %s not found", id)})
		case errors.Is(err, drepo.ErrOutcomeAlreadySet):
			return xhttp.DataResponse(c, http.StatusConflict, []*xhttp.AppError{xhttp.ConflictError("outcome already recorded")})
		default:
			h.logger.Error("record outcome failed", xlogger.String("id", id), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *SignalsEchoHandler) Refresh(c echo.Context) error {
	summary := h.sched.Trigger(c.Request().Context())
	return xhttp.SuccessResponse(c, summary)
}

func (h *SignalsEchoHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"store":  err.Error(),
		})
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"status": "ok"})
}
