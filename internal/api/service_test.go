package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/C4T-BuT-S4D/reelbridge/internal/poller"
	"github.com/stretchr/testify/require"
)

type fakeInbox poller.AuthState

func (f fakeInbox) State() poller.AuthState { return poller.AuthState(f) }

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHandleHealth(t *testing.T) {
	for _, tc := range []struct {
		name     string
		inbox    poller.AuthState
		pingErr  error
		wantCode int
		want     healthResponse
	}{
		{
			name:     "authenticated",
			inbox:    poller.StateAuthenticated,
			wantCode: http.StatusOK,
			want:     healthResponse{Status: "ok", Database: "ok", Inbox: "authenticated"},
		},
		{
			name:     "inbox down",
			inbox:    poller.StateUnauthenticated,
			wantCode: http.StatusOK,
			want:     healthResponse{Status: "ok", Database: "ok", Inbox: "unauthenticated"},
		},
		{
			name:     "database down",
			inbox:    poller.StateAuthenticated,
			pingErr:  errors.New("connection refused"),
			wantCode: http.StatusServiceUnavailable,
			want:     healthResponse{Status: "degraded", Database: "unavailable", Inbox: "authenticated"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewService(fakeInbox(tc.inbox), fakePinger{err: tc.pingErr})

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tc.wantCode, rec.Code)

			var got healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewService(fakeInbox(poller.StateAuthenticated), fakePinger{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, "127.0.0.1:0")
	}()
	cancel()
	require.NoError(t, <-done)
}
