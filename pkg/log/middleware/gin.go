// Package middleware holds the gin interceptors shared by HTTP entrypoints.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
	"crowdfund.io/crowdfund-dapp/pkg/log/meta"
)

const (
	RequestIDHeader  = "X-Request-Id"
	CodeInternal     = "internal"
	internalErrorMsg = "Server internal error"
)

// responseBodyWriter records the handler response body.
type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r responseBodyWriter) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

type httpInfo struct {
	RequestID     string            `json:"request_id"`
	Account       string            `json:"account,omitempty"`
	Headers       map[string]string `json:"headers"`
	Method        string            `json:"method"`
	RequestAPI    string            `json:"request_api,omitempty"`
	RemoteAddr    string            `json:"remote_addr,omitempty"`
	Response      *response         `json:"response,omitempty"`
	ExecutionTime string            `json:"execution_time,omitempty"`
}

func newHTTPInfo(ctx *gin.Context) *httpInfo {
	return &httpInfo{
		RequestID:  meta.RequestID(ctx.Request.Context()),
		Account:    meta.Account(ctx.Request.Context()),
		Headers:    requestHeaderFilter(ctx.Request.Header),
		Method:     ctx.Request.Method,
		RequestAPI: ctx.Request.RequestURI,
		RemoteAddr: ctx.ClientIP(),
	}
}

// RecoveredHTTPLog logs every request with its response and recovers handler panics.
// Each request gets a request id, taken from X-Request-Id when the caller sent one,
// stored in the log metadata and echoed back in the response headers.
func RecoveredHTTPLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rctx := meta.Begin(ctx.Request.Context())
		requestID := ctx.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		meta.SetRequestID(rctx, requestID)
		ctx.Request = ctx.Request.WithContext(rctx)
		ctx.Header(RequestIDHeader, requestID)

		w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: ctx.Writer}
		ctx.Writer = w

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				log.Error(errors.ErrorfAndReport("%v", r))
			}
			logHTTP(ctx, w, start)
		}()
		ctx.Next()
	}
}

const defaultRequestTimeout = time.Second * 60

// TimeoutHTTP bounds the request context. Transactions waiting to be mined give up
// when it expires.
func TimeoutHTTP(timeout ...time.Duration) gin.HandlerFunc {
	d := defaultRequestTimeout
	if len(timeout) != 0 && timeout[0] > 0 {
		d = timeout[0]
	}
	return func(ctx *gin.Context) {
		timeoutCtx, cancelFunc := context.WithTimeout(ctx.Request.Context(), d)
		defer cancelFunc()
		ctx.Request = ctx.Request.WithContext(timeoutCtx)
		ctx.Next()
	}
}

func logHTTP(ctx *gin.Context, w *responseBodyWriter, start time.Time) {
	// nothing written means the handler panicked or forgot to answer
	if !ctx.Writer.Written() {
		ctx.JSON(http.StatusInternalServerError, map[string]interface{}{
			"code": CodeInternal,
			"msg":  internalErrorMsg,
		})
	}

	s := w.Status()
	info := newHTTPInfo(ctx)
	info.Response = decodeHandlerResponse(w.body.Bytes(), s)
	info.ExecutionTime = fmt.Sprintf("%vms", time.Since(start).Nanoseconds()/1e6)
	switch {
	case s < http.StatusBadRequest:
		log.Info(info)
	case s >= http.StatusInternalServerError:
		log.Error(info)
	default:
		log.Warn(info)
	}
}

type response struct {
	// ProtocolCode is the HTTP status code.
	ProtocolCode int `json:"protocol_code"`
	// Code is the error code of a failed request.
	Code interface{} `json:"code,omitempty"`
	// Message is the error message of a failed request.
	Message interface{} `json:"msg,omitempty"`
}

func decodeHandlerResponse(respBody []byte, httpCode int) *response {
	resp := response{ProtocolCode: httpCode}
	// successful bodies are lists or records, only errors fill the fields
	_ = json.Unmarshal(respBody, &resp)
	return &resp
}

var excludedHeaders = map[string]bool{
	"token":         true,
	"access-token":  true,
	"authorization": true,
	"cookie":        true,
}

func requestHeaderFilter(headers map[string][]string) map[string]string {
	filtered := make(map[string]string)
	for k, v := range headers {
		k = strings.ToLower(k)
		if excludedHeaders[k] {
			continue
		}
		filtered[k] = strings.Join(v, ";")
	}
	return filtered
}
