package serverutil

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type fakeServer struct {
	started  chan struct{}
	release  chan error
	shutdown chan struct{}
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		started:  make(chan struct{}),
		release:  make(chan error, 1),
		shutdown: make(chan struct{}, 1),
	}
}

func (s *fakeServer) Start() error {
	close(s.started)
	return <-s.release
}

func (s *fakeServer) Shutdown(context.Context) error {
	select {
	case s.shutdown <- struct{}{}:
	default:
	}
	s.release <- http.ErrServerClosed
	return nil
}

func TestRunRequiresServer(t *testing.T) {
	if err := Run(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing server")
	}
}

func TestRunGracefulShutdown(t *testing.T) {
	server := newFakeServer()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		done <- Run(ctx, Config{Server: server, ShutdownTimeout: time.Second, Ready: ready})
	}()

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("run did not signal readiness")
	}
	select {
	case <-server.started:
	case <-time.After(time.Second):
		t.Fatal("server did not start")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	select {
	case <-server.shutdown:
	default:
		t.Fatal("expected graceful shutdown to be invoked")
	}
}

func TestRunPropagatesServeError(t *testing.T) {
	server := newFakeServer()
	serveErr := errors.New("listen failed")

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), Config{Server: server, ShutdownTimeout: time.Second})
	}()

	<-server.started
	server.release <- serveErr

	select {
	case err := <-done:
		if !errors.Is(err, serveErr) {
			t.Fatalf("expected serve error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
}

func TestRunTreatsServerClosedAsClean(t *testing.T) {
	server := newFakeServer()

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), Config{Server: server})
	}()

	<-server.started
	server.release <- http.ErrServerClosed

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil for ErrServerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
}
