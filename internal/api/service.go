package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/logging"
	"github.com/C4T-BuT-S4D/reelbridge/internal/poller"
	"github.com/labstack/echo/v4"
)

type InboxState interface {
	State() poller.AuthState
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Service struct {
	inbox InboxState
	db    Pinger
	echo  *echo.Echo
}

func NewService(inbox InboxState, db Pinger) *Service {
	s := &Service{
		inbox: inbox,
		db:    db,
		echo:  echo.New(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.GET("/healthz", s.HandleHealth())
	return s
}

func (s *Service) Handler() http.Handler {
	return s.echo
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Inbox    string `json:"inbox"`
}

// HandleHealth reports process liveness. An unauthenticated inbox is shown
// but does not fail the check: the chat side keeps working without it.
func (s *Service) HandleHealth() echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := healthResponse{
			Status:   "ok",
			Database: "ok",
			Inbox:    s.inbox.State().String(),
		}
		code := http.StatusOK

		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			logging.Component("api").Errorf("database ping failed: %v", err)
			resp.Status = "degraded"
			resp.Database = "unavailable"
			code = http.StatusServiceUnavailable
		}

		return c.JSON(code, resp)
	}
}

// Run serves until ctx is done.
func (s *Service) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}
