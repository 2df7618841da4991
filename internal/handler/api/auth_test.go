package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	drepo "SigPulse/internal/domain/repository"
	"SigPulse/internal/service/ratelimit"
	"SigPulse/pkg/cache"
	xlogger "SigPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignalInserted(string, string) {}
func (nopMetrics) RecordDuplicate(string)              {}
func (nopMetrics) RecordConnectorEvents(string, int)   {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLatency(string, float64)       {}
func (nopMetrics) SetHubConnections(int)               {}

type fakeEntitlements map[string]struct {
	identity string
	tier     drepo.Tier
}

func (e fakeEntitlements) Resolve(_ context.Context, credential string) (string, drepo.Tier, error) {
	c, ok := e[credential]
	if !ok {
		return "", "", drepo.ErrUnknownCredential
	}
	return c.identity, c.tier, nil
}

func testGateway(t *testing.T, quota int64) *Gateway {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	ents := fakeEntitlements{
		"std-token":  {identity: "acct-std", tier: drepo.TierStandard},
		"free-token": {identity: "acct-free", tier: drepo.TierFree},
		"vip-token":  {identity: "acct-vip", tier: drepo.TierUnlimited},
	}
	window := ratelimit.NewDailyWindow(cache.NewMemoryCache(), quota)
	return NewGateway(ents, window, nopMetrics{}, l)
}

func doRequest(gw *Gateway, token string) (*httptest.ResponseRecorder, int) {
	e := echo.New()
	ok := func(c echo.Context) error { return c.JSON(http.StatusOK, map[string]string{"hello": "world"}) }
	handler := gw.Authenticate(gw.RequireQuota(ok))

	req := httptest.NewRequest(http.MethodGet, "/api/signals", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = handler(c)

	var body struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		// the plain-JSON success path has no status envelope
		return rec, rec.Code
	}
	if body.Status != 0 {
		return rec, body.Status
	}
	return rec, rec.Code
}

func TestMissingCredential(t *testing.T) {
	gw := testGateway(t, 10)
	if _, status := doRequest(gw, ""); status != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", status)
	}
}

func TestUnknownCredential(t *testing.T) {
	gw := testGateway(t, 10)
	if _, status := doRequest(gw, "who-dis"); status != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", status)
	}
}

func TestFreeTierForbidden(t *testing.T) {
	gw := testGateway(t, 10)
	if _, status := doRequest(gw, "free-token"); status != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", status)
	}
}

func TestStandardWithinQuota(t *testing.T) {
	gw := testGateway(t, 2)

	rec, status := doRequest(gw, "std-token")
	if status != http.StatusOK {
		t.Fatalf("status=%d, want 200", status)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Fatalf("limit header %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "1" {
		t.Fatalf("remaining header %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestStandardOverQuota(t *testing.T) {
	gw := testGateway(t, 2)

	doRequest(gw, "std-token")
	doRequest(gw, "std-token")
	rec, status := doRequest(gw, "std-token")
	if status != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", status)
	}

	reset := rec.Header().Get("X-RateLimit-Reset")
	if _, err := time.Parse(time.RFC3339, reset); err != nil {
		t.Fatalf("reset header %q not RFC3339: %v", reset, err)
	}
}

func TestUnlimitedNeverThrottled(t *testing.T) {
	gw := testGateway(t, 1)
	for i := 0; i < 20; i++ {
		if _, status := doRequest(gw, "vip-token"); status != http.StatusOK {
			t.Fatalf("unlimited throttled at request %d: status=%d", i, status)
		}
	}
}

func TestQueryParamCredential(t *testing.T) {
	gw := testGateway(t, 10)
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	handler := gw.Authenticate(ok)

	req := httptest.NewRequest(http.MethodGet, "/ws?api_key=std-token", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("api_key fallback rejected: %d", rec.Code)
	}
}

func TestPaidTierGateSkipsQuota(t *testing.T) {
	gw := testGateway(t, 5)
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	handler := gw.Authenticate(gw.RequirePaidTier(ok))

	run := func(token string) (*httptest.ResponseRecorder, int) {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		_ = handler(e.NewContext(req, rec))

		var body struct {
			Status int `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err == nil && body.Status != 0 {
			return rec, body.Status
		}
		return rec, rec.Code
	}

	if _, status := run("free-token"); status != http.StatusForbidden {
		t.Fatalf("free tier through paid gate: %d", status)
	}
	if _, status := run("std-token"); status != http.StatusOK {
		t.Fatalf("standard tier rejected: %d", status)
	}

	// the gate never touches the daily window
	dec, err := gw.window.Usage(context.Background(), "acct-std", drepo.TierStandard)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if dec.Used != 0 {
		t.Fatalf("paid-tier gate consumed quota: used=%d", dec.Used)
	}
}
