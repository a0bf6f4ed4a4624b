package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"crowdfund.io/crowdfund-dapp/internal/crowdfunding"
	"crowdfund.io/crowdfund-dapp/internal/media"
	"crowdfund.io/crowdfund-dapp/internal/wallet"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
)

var (
	errBadRequest     = errors.New("bad request")
	errImagesDisabled = errors.New("image upload is not configured")
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"msg"`
}

var sentinelStatus = []struct {
	err    error
	status int
	code   string
}{
	{errBadRequest, http.StatusBadRequest, "invalid_input"},
	{crowdfunding.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{media.ErrUnsupportedImage, http.StatusBadRequest, "invalid_input"},
	{wallet.ErrInvalidAmount, http.StatusBadRequest, "invalid_input"},
	{wallet.ErrNotConnected, http.StatusUnauthorized, "not_connected"},
	{crowdfunding.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{crowdfunding.ErrProjectNotFound, http.StatusNotFound, "not_found"},
	{wallet.ErrConnectInProgress, http.StatusConflict, "connect_in_progress"},
	{errImagesDisabled, http.StatusServiceUnavailable, "images_disabled"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

var kindStatus = map[wallet.Kind]int{
	wallet.KindWalletAbsent: http.StatusServiceUnavailable,
	wallet.KindUserRejected: http.StatusForbidden,
	wallet.KindNetwork:      http.StatusBadGateway,
	wallet.KindContract:     http.StatusUnprocessableEntity,
	wallet.KindDecode:       http.StatusBadGateway,
}

func statusOf(err error) (int, string) {
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status, s.code
		}
	}
	kind := wallet.Classify(err)
	if status, ok := kindStatus[kind]; ok {
		return status, kind.String()
	}
	return http.StatusInternalServerError, "internal"
}

func fail(ctx *gin.Context, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s %s: %v", ctx.Request.Method, ctx.FullPath(), err)
	}
	ctx.JSON(status, errorResponse{Code: code, Message: err.Error()})
}
