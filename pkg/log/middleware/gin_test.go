package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund.io/crowdfund-dapp/pkg/log/meta"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveredHTTPLog(), TimeoutHTTP(50*time.Millisecond))
	router.GET("/panic", func(ctx *gin.Context) {
		panic("boom")
	})
	router.GET("/id", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, meta.RequestID(ctx.Request.Context()))
	})
	router.GET("/deadline", func(ctx *gin.Context) {
		_, ok := ctx.Request.Context().Deadline()
		ctx.JSON(http.StatusOK, gin.H{"bounded": ok})
	})
	return router
}

func TestRecoveredPanic(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeInternal, body["code"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestID(t *testing.T) {
	router := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Body.String())
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/id", nil))
	assert.Len(t, rec.Body.String(), 36)
	assert.Equal(t, rec.Body.String(), rec.Header().Get(RequestIDHeader))
}

func TestTimeoutBoundsContext(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deadline", nil))
	assert.JSONEq(t, `{"bounded":true}`, rec.Body.String())
}

func TestRequestHeaderFilter(t *testing.T) {
	filtered := requestHeaderFilter(map[string][]string{
		"Authorization": {"Bearer x"},
		"Accept":        {"a", "b"},
	})
	assert.Equal(t, map[string]string{"accept": "a;b"}, filtered)
}
