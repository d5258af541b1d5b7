package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/GoPolymarket/dutchauction/internal/config"
	"github.com/GoPolymarket/dutchauction/internal/model"
	"github.com/GoPolymarket/dutchauction/internal/pkg/apperrors"
	"github.com/GoPolymarket/dutchauction/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testRegistry(t *testing.T, rate config.RateConfig) *service.BidderRegistry {
	t.Helper()
	r, err := service.NewBidderRegistry([]model.Bidder{
		{ID: "human", Name: "Player", Balance: decimal.NewFromInt(100), Human: true},
		{ID: "bot", Name: "Bot", Balance: decimal.NewFromInt(100), Strategy: model.StrategyThreshold},
	}, "human", rate)
	require.NoError(t, err)
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestBidderMiddlewareDefaultsToHuman(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), BidderMiddleware(testRegistry(t, config.RateConfig{})))
	r.GET("/who", func(c *gin.Context) { c.String(http.StatusOK, BidderID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/who", nil))
	assert.Equal(t, "human", w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(HeaderBidderID, "ghost")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(apperrors.ErrUnknownBidder), decodeError(t, w)["code"])
}

func TestAdminMiddleware(t *testing.T) {
	cfg := &config.Config{}
	cfg.Auth.AdminKey = "s3cret"
	r := gin.New()
	r.Use(ErrorHandler())
	r.POST("/v1/admin/reset", AdminMiddleware(cfg), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/admin/reset", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/reset", nil)
	req.Header.Set(HeaderAdminKey, "s3cret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimitPerBidder(t *testing.T) {
	registry := testRegistry(t, config.RateConfig{QPS: 0.001, Burst: 1})
	r := gin.New()
	r.Use(ErrorHandler(), BidderMiddleware(registry), RateLimitMiddleware(registry))
	r.POST("/act", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(bidder string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/act", nil)
		req.Header.Set(HeaderBidderID, bidder)
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, do("human"))
	assert.Equal(t, http.StatusTooManyRequests, do("human"))
	assert.Equal(t, http.StatusOK, do("bot"), "limits are per bidder")
}

func TestReadOnlyKeepsAdminOpen(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(), ReadOnlyMiddleware(true))
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/v1/human/action", ok)
	r.POST("/v1/admin/reset", ok)
	r.GET("/v1/state", ok)

	for path, want := range map[string]int{
		"/v1/human/action": http.StatusServiceUnavailable,
		"/v1/admin/reset":  http.StatusOK,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/state", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	var calls int32
	r := gin.New()
	r.Use(ErrorHandler(), BidderMiddleware(testRegistry(t, config.RateConfig{})),
		IdempotencyMiddleware(NewInMemIdempotencyStore(0)))
	r.POST("/buy", func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		c.JSON(http.StatusOK, gin.H{"call": n})
	})

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/buy", nil)
		req.Header.Set(HeaderIdempotencyKey, "k1")
		r.ServeHTTP(w, req)
		return w
	}
	first := do()
	second := do()
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(HeaderIdempotencyReplay))
	assert.Empty(t, first.Header().Get(HeaderIdempotencyReplay))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.EqualValues(t, 1, calls)
}

func TestIdempotencyDoesNotCacheErrors(t *testing.T) {
	var calls int32
	r := gin.New()
	r.Use(ErrorHandler(), BidderMiddleware(testRegistry(t, config.RateConfig{})),
		IdempotencyMiddleware(NewInMemIdempotencyStore(0)))
	r.POST("/buy", func(c *gin.Context) {
		atomic.AddInt32(&calls, 1)
		c.Error(apperrors.New(apperrors.ErrAlreadySettled, "round 1 already settled", nil))
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/buy", nil)
		req.Header.Set(HeaderIdempotencyKey, "k1")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusConflict, w.Code)
	}
	assert.EqualValues(t, 2, calls)
}

func TestIdempotencyInFlightIsDuplicate(t *testing.T) {
	store := NewInMemIdempotencyStore(0)
	registry := testRegistry(t, config.RateConfig{})
	r := gin.New()
	r.Use(ErrorHandler(), BidderMiddleware(registry), IdempotencyMiddleware(store))
	r.POST("/buy", func(c *gin.Context) { c.Status(http.StatusOK) })

	// a concurrent twin holds the lock for the same bidder, route and key
	_, hit := store.GetOrLock("human:/buy:k1")
	require.False(t, hit)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/buy", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DUPLICATE_REQUEST", decodeError(t, w)["code"])

	// another bidder with the same key is unaffected
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/buy", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	req.Header.Set(HeaderBidderID, "bot")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorHandlerBody(t *testing.T) {
	r := gin.New()
	r.Use(AccessLogMiddleware(), ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		c.Error(apperrors.New(apperrors.ErrInsufficientBalance, "balance 5 is below price 10", nil))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "INSUFFICIENT_BALANCE", body["code"])
	assert.Equal(t, "Not enough funds.", body["suggestion"])
	assert.NotEmpty(t, body["request_id"])
	assert.Equal(t, body["request_id"], w.Header().Get(HeaderRequestID))
}

func TestRedactBodyAdminPaths(t *testing.T) {
	out := redactBody("/v1/admin/balances/bot", []byte(`{"delta":"10","admin_key":"k"}`))
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, "***", data["admin_key"])
	assert.Equal(t, "10", data["delta"])

	assert.Equal(t, `{"action":"buy"}`, redactBody("/v1/human/action", []byte(`{"action":"buy"}`)))
	assert.Equal(t, "[redacted]", redactBody("/v1/admin/reset", []byte("not-json")))
	assert.Equal(t, "[truncated]", redactBody("/v1/human/action", []byte(strings.Repeat("x", maxLoggedBodyBytes+1))))
}
