package server

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"liquor-dashboard/internal/config"
	"liquor-dashboard/internal/models"
	"liquor-dashboard/internal/services"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	a := services.NewAnalytics(services.Config{Logger: discardLogger()})
	err := a.SetTransactions([]models.Transaction{
		{InvoiceID: "INV-1", RawDate: "03/01/2021", StoreName: "Hy-Vee", City: "Ames", County: "STORY",
			CategoryName: "Vodka", VendorName: "Diageo", LiquorType: "Spirits", BottlesSold: 1, SaleDollars: 10},
		{InvoiceID: "INV-2", RawDate: "03/09/2021", StoreName: "Hy-Vee", City: "Ames", County: "STORY",
			CategoryName: "Vodka", VendorName: "Diageo", LiquorType: "Spirits", BottlesSold: 2, SaleDollars: 20},
	})
	if err != nil {
		t.Fatal(err)
	}
	dashboard := func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "dashboard") }
	return NewServer(a, discardLogger(), &TemplateHandlers{Dashboard: dashboard}, Options{})
}

func TestNewServer_DefaultOptions(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rings", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"period":"week"`) {
		t.Errorf("expected the week scheme by default: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/forecast", nil))
	if !strings.Contains(w.Body.String(), `"horizon_days":92`) {
		t.Errorf("expected a three month horizon by default: %s", w.Body.String())
	}
}

func TestServer_DashboardOnlyAtRoot(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Body.String() != "dashboard" {
		t.Errorf("body = %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func newTestGracefulServer(addr string) *GracefulServer {
	cfg := &config.Config{Server: config.ServerConfig{
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 2 * time.Second,
	}}
	httpServer := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	return NewGracefulServer(httpServer, discardLogger(), cfg)
}

func TestGracefulServer_HooksRunInOrder(t *testing.T) {
	gs := newTestGracefulServer("127.0.0.1:0")

	var order []string
	gs.RegisterShutdownHook("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	gs.RegisterShutdownHook("second", func(context.Context) error {
		order = append(order, "second")
		return stderrors.New("close failed")
	})
	gs.RegisterShutdownHook("third", func(context.Context) error {
		order = append(order, "third")
		return nil
	})

	err := gs.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "shutdown hook second failed") {
		t.Errorf("Shutdown() error = %v", err)
	}
	if strings.Join(order, ",") != "first,second,third" {
		t.Errorf("hooks ran as %v", order)
	}
}

func TestGracefulServer_ExpiredContextSkipsHooks(t *testing.T) {
	gs := newTestGracefulServer("127.0.0.1:0")

	ran := false
	gs.RegisterShutdownHook("late", func(context.Context) error {
		ran = true
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gs.Shutdown(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Shutdown() error = %v, want context.Canceled", err)
	}
	if ran {
		t.Error("hook should be skipped once the shutdown context is done")
	}
}

func TestGracefulServer_ListenAndServeStopsOnCancel(t *testing.T) {
	gs := newTestGracefulServer("127.0.0.1:0")

	closed := make(chan struct{})
	gs.RegisterShutdownHook("store", func(context.Context) error {
		close(closed)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}

	select {
	case <-closed:
	default:
		t.Error("shutdown hook did not run")
	}
}

func TestGracefulServer_ListenError(t *testing.T) {
	gs := newTestGracefulServer("256.0.0.1:bad")

	if err := gs.ListenAndServe(context.Background()); err == nil {
		t.Error("expected a listen error")
	}
}
