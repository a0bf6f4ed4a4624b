// Package http is the local gateway: a loopback HTTP API over the wallet session and
// the crowdfunding contract, meant for a UI running on the same machine.
package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crowdfund.io/crowdfund-dapp/internal/crowdfunding"
	"crowdfund.io/crowdfund-dapp/internal/wallet"
	"crowdfund.io/crowdfund-dapp/pkg/errors"
	"crowdfund.io/crowdfund-dapp/pkg/log"
	"crowdfund.io/crowdfund-dapp/pkg/log/meta"
	"crowdfund.io/crowdfund-dapp/pkg/log/middleware"
)

const defaultMaxImageBytes = 10 << 20

// ImageUploader stores a project image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, r io.Reader) (string, error)
}

type Option func(*Server)

// WithFeed exposes the notification feed on GET /notifications.
func WithFeed(feed *wallet.Feed) Option {
	return func(s *Server) {
		s.feed = feed
	}
}

// WithImages enables POST /images.
func WithImages(u ImageUploader) Option {
	return func(s *Server) {
		s.images = u
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

type Server struct {
	manager       *wallet.Manager
	contract      string
	feed          *wallet.Feed
	images        ImageUploader
	timeout       time.Duration
	maxImageBytes int64
	router        *gin.Engine
}

func NewServer(manager *wallet.Manager, contractAddress string, opts ...Option) *Server {
	s := &Server{
		manager:       manager,
		contract:      contractAddress,
		timeout:       2 * time.Minute,
		maxImageBytes: defaultMaxImageBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Infof("gateway listening on http://%s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WrapAndReport(err, "serve gateway")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("gateway shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RecoveredHTTPLog(), middleware.TimeoutHTTP(s.timeout), releaseSession)

	router.GET("/session", s.getSession)
	router.POST("/session/connect", s.connect)
	router.POST("/session/disconnect", s.disconnect)
	router.GET("/notifications", s.notifications)

	router.GET("/projects", s.listProjects)
	router.POST("/projects", s.createProject)
	router.GET("/projects/:id", s.getProject)
	router.DELETE("/projects/:id", s.deleteProject)
	router.POST("/projects/:id/fund", s.fundProject)
	router.POST("/projects/:id/withdraw", s.withdrawFunds)
	router.GET("/projects/:id/backers", s.listBackers)
	router.GET("/projects/:id/backers/:address", s.getBackerInfo)
	router.GET("/projects/:id/roles", s.getRoles)
	router.GET("/accounts/:address/projects", s.listUserProjects)

	router.POST("/images", s.uploadImage)
	return router
}

const sessionLeaseKey = "session_lease"

// releaseSession hands back the session backend a handler acquired through client.
func releaseSession(ctx *gin.Context) {
	ctx.Next()
	if release, ok := ctx.Get(sessionLeaseKey); ok {
		release.(func())()
	}
}

// client builds a contract client for the current session. Nothing is cached, so a
// disconnect or reconnect is picked up by the next request; one arriving mid-request
// leaves this request's backend open until the handler returns.
func (s *Server) client(ctx *gin.Context) (*crowdfunding.Client, error) {
	signer, release, err := s.manager.Acquire()
	if err != nil {
		return nil, err
	}
	ctx.Set(sessionLeaseKey, release)
	meta.SetAccount(ctx.Request.Context(), signer.Address().Hex())
	return crowdfunding.NewClient(signer, s.contract)
}
