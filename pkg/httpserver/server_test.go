package httpserver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cataloghq/cataloghq/pkg/httpserver"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestServerRunAndShutdown(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	srv := httpserver.New(httpserver.Config{Addr: addr, ShutdownTimeout: time.Second},
		httpserver.WithLogger(slog.New(slog.DiscardHandler)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		var err error
		resp, err = http.Get("http://" + addr + "/")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServerNilHandler(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.Config{Addr: freeAddr(t)})
	err := srv.Run(context.Background(), nil)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)

	t.Run("liveness without checks", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		httpserver.HealthHandler(log).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("ready when all checks pass", func(t *testing.T) {
		t.Parallel()
		ok := func(context.Context) error { return nil }
		rec := httptest.NewRecorder()
		httpserver.HealthHandler(log, ok, ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("not ready on failing check", func(t *testing.T) {
		t.Parallel()
		failing := func(context.Context) error { return errors.New("pool exhausted") }
		rec := httptest.NewRecorder()
		httpserver.HealthHandler(log, failing).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "NOT_READY", rec.Body.String())
	})
}
