package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// holdSlot dispara uma requisição em background e espera ela ocupar a vaga.
func holdSlot(t *testing.T, h http.Handler, entered <-chan struct{}) <-chan int {
	t.Helper()
	done := make(chan int, 1)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "http://gw/api/chat", nil))
		done <- rec.Code
	}()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatalf("first request never reached the handler")
	}
	return done
}

func TestConcurrencyMiddleware_BusyWhenSlotHeld(t *testing.T) {
	entered := make(chan struct{}, 1)
	unblock := make(chan struct{})

	core, logs := observer.New(zap.WarnLevel)
	h := ConcurrencyMiddleware(ConcurrencyOptions{
		Max:            1,
		AcquireTimeout: 20 * time.Millisecond,
		Logger:         zap.New(core),
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-unblock
		w.WriteHeader(http.StatusOK)
	}))

	first := holdSlot(t, h, entered)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "http://gw/api/chat", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the slot is held, got %d", rec.Code)
	}
	if got, want := rec.Body.String(), `{"error":"Server busy","source":"local_proxy"}`+"\n"; got != want {
		t.Fatalf("unexpected body %q", got)
	}
	if logs.FilterMessage("no upstream slot").Len() != 1 {
		t.Fatalf("expected one warning, got %v", logs.All())
	}

	close(unblock)
	if code := <-first; code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", code)
	}

	// vaga devolvida: a próxima passa
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "http://gw/api/chat", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected slot to be released, got %d", rec.Code)
	}
}

func TestConcurrencyMiddleware_CanceledClientGivesUp(t *testing.T) {
	h := ConcurrencyMiddleware(ConcurrencyOptions{Max: 1})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("handler must not run for a canceled request")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "http://gw/api/chat", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestConcurrencyMiddleware_DisabledPassesThrough(t *testing.T) {
	called := false
	h := ConcurrencyMiddleware(ConcurrencyOptions{Max: 0})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "http://gw/", nil))
	if !called {
		t.Fatalf("expected next handler to run")
	}
}
