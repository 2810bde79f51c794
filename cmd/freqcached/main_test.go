package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWaitForShutdown_GatewayFailure(t *testing.T) {
	gwErr := make(chan error, 1)
	bindErr := errors.New("listen tcp :8080: bind: address already in use")
	gwErr <- bindErr

	err := waitForShutdown(context.Background(), discardLogger(), nil, gwErr, nil, time.Second)
	if err == nil {
		t.Fatal("expected error when gateway fails to start")
	}
	if !errors.Is(err, bindErr) {
		t.Errorf("returned error = %v, want one wrapping %v", err, bindErr)
	}
}

func TestWaitForShutdown_GatewayCleanExit(t *testing.T) {
	gwErr := make(chan error, 1)
	gwErr <- nil

	err := waitForShutdown(context.Background(), discardLogger(), nil, gwErr, nil, time.Second)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWaitForShutdown_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := waitForShutdown(ctx, discardLogger(), nil, nil, nil, time.Second)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
