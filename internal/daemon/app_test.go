// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/config"
)

type fakeService struct {
	startErr  error
	shutdowns atomic.Int32
}

func (s *fakeService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *fakeService) Shutdown(context.Context) error {
	s.shutdowns.Add(1)
	return nil
}

func TestAppRunRequiresService(t *testing.T) {
	app := NewApp(testLogger(), nil, nil)
	if err := app.Run(context.Background()); !errors.Is(err, ErrMissingManager) {
		t.Fatalf("Run() error = %v, want %v", err, ErrMissingManager)
	}
}

func TestAppRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), goleak.IgnoreAnyFunction("os/signal.loop"))

	holder := config.NewHolder(config.Default(), config.NewLoader("", "test"))
	svc := &fakeService{}
	app := NewApp(testLogger(), svc, holder)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
	if got := svc.shutdowns.Load(); got != 0 {
		t.Fatalf("Shutdown called %d times on a clean stop", got)
	}
}

func TestAppRunShutsDownOnStartFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), goleak.IgnoreAnyFunction("os/signal.loop"))

	boom := errors.New("bind failed")
	holder := config.NewHolder(config.Default(), config.NewLoader("", "test"))
	svc := &fakeService{startErr: boom}
	app := NewApp(testLogger(), svc, holder)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Fatalf("Run() error = %v, want %v", err, boom)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after a start failure")
	}
	if got := svc.shutdowns.Load(); got != 1 {
		t.Fatalf("Shutdown called %d times, want 1", got)
	}
}
