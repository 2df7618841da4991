package api

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	drepo "SigPulse/internal/domain/repository"
	"SigPulse/internal/service/ratelimit"
	xhttp "SigPulse/pkg/http"
	xlogger "SigPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	ctxIdentityKey = "gateway_identity"
	ctxTierKey     = "gateway_tier"
)

// Gateway guards the query surface: it resolves credentials to tiers and
// charges standard-tier requests against the daily window.
type Gateway struct {
	ents    drepo.Entitlements
	window  *ratelimit.DailyWindow
	metrics drepo.Metrics
	logger  *xlogger.Logger
}

func NewGateway(ents drepo.Entitlements, window *ratelimit.DailyWindow, metrics drepo.Metrics, logger *xlogger.Logger) *Gateway {
	return &Gateway{ents: ents, window: window, metrics: metrics, logger: logger}
}

// credential pulls the API credential from the Authorization header, with
// the api_key query parameter as a fallback for browser WebSocket clients
// that cannot set headers.
func credential(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.QueryParam("api_key")
}

// Authenticate resolves the caller's credential and stashes identity and
// tier in the request context. No quota is consumed here.
func (g *Gateway) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cred := credential(c)
		if cred == "" {
			return xhttp.UnauthorizedResponse(c, []*xhttp.AppError{xhttp.UnauthorizedError("missing credential")})
		}

		identity, tier, err := g.ents.Resolve(c.Request().Context(), cred)
		if err != nil {
			if errors.Is(err, drepo.ErrUnknownCredential) {
				g.metrics.RecordError("gateway_unknown_credential")
				return xhttp.UnauthorizedResponse(c, []*xhttp.AppError{xhttp.UnauthorizedError("unknown credential")})
			}
			return xhttp.AppErrorResponse(c, err)
		}

		c.Set(ctxIdentityKey, identity)
		c.Set(ctxTierKey, tier)
		return next(c)
	}
}

// RequirePaidTier rejects the free tier without consuming quota. Used on
// surfaces that are tier-gated but not charged per request, like /ws.
func (g *Gateway) RequirePaidTier(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, tier := callerOf(c)
		if tier == drepo.TierFree {
			g.logCall(c, identity, tier, "denied_tier", time.Now())
			return xhttp.ForbiddenResponse(c, []*xhttp.AppError{
				xhttp.ForbiddenError("free tier has no programmatic access"),
			})
		}
		return next(c)
	}
}

// RequireQuota charges one request against the caller's daily window and
// rejects the free tier outright. Runs after Authenticate.
func (g *Gateway) RequireQuota(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, tier := callerOf(c)
		start := time.Now()

		if tier == drepo.TierFree {
			g.logCall(c, identity, tier, "denied_tier", start)
			return xhttp.ForbiddenResponse(c, []*xhttp.AppError{
				xhttp.ForbiddenError("free tier has no programmatic access"),
			})
		}

		dec, err := g.window.CheckAndConsume(c.Request().Context(), identity, tier)
		if err != nil {
			g.metrics.RecordError("gateway_quota")
			g.logCall(c, identity, tier, "quota_error", start)
			return xhttp.AppErrorResponse(c, err)
		}

		setQuotaHeaders(c, dec)
		if !dec.Allowed {
			g.logCall(c, identity, tier, "denied_quota", start)
			appErr := xhttp.TooManyRequestsError("daily quota exhausted").
				WithParam("reset_at", dec.ResetAt.Format(time.RFC3339))
			return xhttp.TooManyRequestsResponse(c, []*xhttp.AppError{appErr})
		}

		err = next(c)
		g.logCall(c, identity, tier, outcomeOf(err), start)
		return err
	}
}

func callerOf(c echo.Context) (string, drepo.Tier) {
	identity, _ := c.Get(ctxIdentityKey).(string)
	tier, ok := c.Get(ctxTierKey).(drepo.Tier)
	if !ok {
		tier = drepo.TierFree
	}
	return identity, tier
}

func setQuotaHeaders(c echo.Context, dec ratelimit.Decision) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(dec.Limit, 10))
	if dec.Limit > 0 {
		remaining := dec.Limit - dec.Used
		if remaining < 0 {
			remaining = 0
		}
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	}
	h.Set("X-RateLimit-Reset", dec.ResetAt.UTC().Format(time.RFC3339))
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (g *Gateway) logCall(c echo.Context, identity string, tier drepo.Tier, outcome string, start time.Time) {
	latency := time.Since(start)
	g.metrics.RecordLatency("gateway_call", latency.Seconds())
	g.logger.Info("gateway call",
		xlogger.String("identity", identity),
		xlogger.String("tier", string(tier)),
		xlogger.String("endpoint", fmt.Sprintf("%s %s", c.Request().Method, c.Path())),
		xlogger.String("outcome", outcome),
		xlogger.Duration("latency", latency),
	)
}
