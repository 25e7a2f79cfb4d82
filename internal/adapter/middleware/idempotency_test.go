package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setupEcho(rdb *redis.Client, ttl time.Duration, handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(Idempotency(rdb, ttl, quietLogger()))
	e.POST("/loans", handler)
	e.GET("/loans", handler) // non-mutating bypass
	return e
}

func doReq(t *testing.T, e *echo.Echo, method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createdHandler(c echo.Context) error {
	return c.JSON(http.StatusCreated, map[string]any{"ok": true})
}

func validHeaders() map[string]string {
	return map[string]string{
		"X-Request-Id":  strings.Repeat("a", 32),
		"X-Request-At":  time.Now().UTC().Format(time.RFC3339),
		"X-Borrower-Id": strings.Repeat("b", 32),
	}
}

func TestIdempotency_BypassesGET(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, 30*time.Second, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "get ok"})
	})
	rec := doReq(t, e, http.MethodGet, "/loans", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestIdempotency_HeaderValidation(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, 30*time.Second, createdHandler)

	tests := []struct {
		name   string
		mutate func(h map[string]string)
	}{
		{"missing X-Request-Id", func(h map[string]string) { delete(h, "X-Request-Id") }},
		{"invalid X-Request-Id", func(h map[string]string) { h["X-Request-Id"] = "NOT-VALID" }},
		{"invalid X-Request-At", func(h map[string]string) { h["X-Request-At"] = "not-a-time" }},
		{"skewed X-Request-At", func(h map[string]string) {
			h["X-Request-At"] = time.Now().UTC().Add(-maxClockSkew - time.Minute).Format(time.RFC3339)
		}},
		{"naive X-Request-At", func(h map[string]string) { h["X-Request-At"] = "2026-02-01T10:00:00" }},
		{"missing X-Borrower-Id", func(h map[string]string) { delete(h, "X-Borrower-Id") }},
		{"invalid X-Borrower-Id", func(h map[string]string) { h["X-Borrower-Id"] = "not32hex" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := validHeaders()
			tt.mutate(h)
			rec := doReq(t, e, http.MethodPost, "/loans", strings.NewReader(`{"x":1}`), h)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d body=%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestIdempotency_ReplaysFinishedResponse(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, 2*time.Minute, createdHandler)

	h := validHeaders()
	body := `{"principal":10000}`

	rec1 := doReq(t, e, http.MethodPost, "/loans", strings.NewReader(body), h)
	if rec1.Code != http.StatusCreated {
		t.Fatalf("first request => want 201, got %d body=%s", rec1.Code, rec1.Body.String())
	}

	// Same headers and body: replayed from the store, handler not re-run.
	rec2 := doReq(t, e, http.MethodPost, "/loans", strings.NewReader(body), h)
	if rec2.Code != http.StatusCreated {
		t.Fatalf("replay => want 201, got %d body=%s", rec2.Code, rec2.Body.String())
	}
	if rec1.Body.String() != rec2.Body.String() {
		t.Fatalf("replay body mismatch: %q vs %q", rec1.Body.String(), rec2.Body.String())
	}
}

func TestIdempotency_ConflictWhileInProgress(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, 2*time.Minute, createdHandler)

	h := validHeaders()
	body := []byte(`{"x":1}`)

	key := buildKey(http.MethodPost, "/loans", h["X-Borrower-Id"], h["X-Request-Id"])
	entry := idempEntry{
		InProgress:  true,
		BodySHA256:  bodyHash(body),
		RequestID:   h["X-Request-Id"],
		RequestAtMS: time.Now().UnixMilli(),
		CreatedAt:   nowUTC(),
	}
	if ok, err := provisionalSet(context.Background(), rdb, key, entry); err != nil || !ok {
		t.Fatalf("seed provisional failed, ok=%v err=%v", ok, err)
	}

	rec := doReq(t, e, http.MethodPost, "/loans", bytes.NewReader(body), h)
	if rec.Code != http.StatusConflict {
		t.Fatalf("in-progress => want 409, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestIdempotency_ConflictOnBodyMismatch(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, 2*time.Minute, createdHandler)

	h := validHeaders()
	key := buildKey(http.MethodPost, "/loans", h["X-Borrower-Id"], h["X-Request-Id"])
	final := idempEntry{
		InProgress:  false,
		Code:        http.StatusCreated,
		Body:        []byte(`{"ok":true}`),
		BodySHA256:  bodyHash([]byte(`{"x":1}`)),
		RequestID:   h["X-Request-Id"],
		RequestAtMS: time.Now().UnixMilli(),
		CreatedAt:   nowUTC(),
	}
	if err := saveFinal(context.Background(), rdb, key, final, 5*time.Minute); err != nil {
		t.Fatalf("seed final failed: %v", err)
	}

	rec := doReq(t, e, http.MethodPost, "/loans", strings.NewReader(`{"x":2}`), h)
	if rec.Code != http.StatusConflict {
		t.Fatalf("different body, same request id => want 409, got %d", rec.Code)
	}
}

func TestIdempotency_StoreUnavailableReturns503(t *testing.T) {
	// Closed address so SetNX fails fast.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	e := setupEcho(rdb, time.Minute, createdHandler)

	rec := doReq(t, e, http.MethodPost, "/loans", strings.NewReader(`{}`), validHeaders())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("store unavailable => want 503, got %d", rec.Code)
	}
}

func TestIdempotency_RecordsFinalEntry(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, 2*time.Minute, createdHandler)

	h := validHeaders()
	rec := doReq(t, e, http.MethodPost, "/loans", strings.NewReader(`{"x":1}`), h)
	if rec.Code != http.StatusCreated {
		t.Fatalf("want 201, got %d", rec.Code)
	}

	key := buildKey(http.MethodPost, "/loans", h["X-Borrower-Id"], h["X-Request-Id"])
	got, err := loadEntry(context.Background(), rdb, key)
	if err != nil {
		t.Fatalf("loadEntry: %v", err)
	}
	if got.InProgress || got.Code != http.StatusCreated {
		t.Fatalf("final entry not recorded: %+v", got)
	}
	var payload map[string]any
	if err := json.Unmarshal(got.Body, &payload); err != nil {
		t.Fatalf("stored body not json: %v", err)
	}
	if payload["ok"] != true {
		t.Fatalf("stored body mismatch: %s", got.Body)
	}
}
