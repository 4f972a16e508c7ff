package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vaultd/internal/usecase"
)

// Server is the JSON surface over the access controller. Identity arrives in
// trusted gateway headers; there is no session handling here.
type Server struct {
	engine     *gin.Engine
	controller *usecase.AccessController
	log        *logrus.Entry
}

func NewServer(controller *usecase.AccessController, log *logrus.Entry) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:     engine,
		controller: controller,
		log:        log,
	}
	s.routes()
	return s
}

// Handler exposes the router for tests and custom http.Server wiring.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run blocks serving HTTP until the context is cancelled, then drains with a
// short grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		err := <-errCh
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) routes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	{
		v1.GET("/files", s.handleListFiles)
		v1.POST("/files", s.handleRegisterFile)
		v1.PATCH("/files/:data_id", s.handleModifyFile)
		v1.DELETE("/files/:data_id", s.handleDeleteFile)
		v1.GET("/files/:data_id/history", s.handleFileHistory)

		v1.POST("/requests", s.handleCreateRequest)
		v1.GET("/requests", s.handleListRequests)
		v1.POST("/requests/:id/process", s.handleProcessRequest)
		v1.POST("/requests/:id/release", s.handleRelease)
		v1.POST("/requests/:id/download", s.handleDownload)
		v1.POST("/requests/:id/resend-otp", s.handleResendOTP)
		v1.GET("/requests/:id/logs", s.handleListLogs)

		v1.GET("/logs", s.handleUserLogs)

		v1.GET("/dashboard", s.handleUserDashboard)
		v1.GET("/admin/dashboard", s.handleAdminDashboard)
		v1.GET("/admin/ledger-attempts", s.handleLedgerAttempts)
	}
}
