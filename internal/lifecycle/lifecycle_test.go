package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestIsShuttingDown_DefaultFalse(t *testing.T) {
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false by default")
	}
}

func TestSetShuttingDown_True(t *testing.T) {
	SetShuttingDown(true)
	defer SetShuttingDown(false)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true), want true")
	}
}

func TestSetShuttingDown_False(t *testing.T) {
	SetShuttingDown(true)
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false), want false")
	}
}

func TestShutdown_RunsStepsInOrder(t *testing.T) {
	defer SetShuttingDown(false)
	var order []string
	step := func(name string) Step {
		return Step{Name: name, Run: func(context.Context) error {
			if !IsShuttingDown() {
				t.Errorf("step %s ran before shutting-down flag was set", name)
			}
			order = append(order, name)
			return nil
		}}
	}

	err := Shutdown(context.Background(), zap.NewNop(), step("http"), Step{Name: "skipped"}, step("drain"), step("flush"))

	if err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if len(order) != 3 || order[0] != "http" || order[1] != "drain" || order[2] != "flush" {
		t.Errorf("order = %v, want [http drain flush]", order)
	}
}

func TestShutdown_ContinuesAfterFailure(t *testing.T) {
	defer SetShuttingDown(false)
	core, logs := observer.New(zapcore.InfoLevel)
	errClose := errors.New("close failed")
	ran := false

	err := Shutdown(context.Background(), zap.New(core),
		Step{Name: "cache", Run: func(context.Context) error { return errClose }},
		Step{Name: "flush", Run: func(context.Context) error { ran = true; return nil }},
	)

	if !errors.Is(err, errClose) {
		t.Errorf("Shutdown() error = %v, want wrapping %v", err, errClose)
	}
	if !ran {
		t.Error("step after failure did not run")
	}
	if n := logs.FilterMessage("shutdown step failed").Len(); n != 1 {
		t.Errorf("failure logs = %d, want 1", n)
	}
	if n := logs.FilterMessage("shutdown step complete").Len(); n != 1 {
		t.Errorf("completion logs = %d, want 1", n)
	}
}

func TestShutdown_StepTimeout(t *testing.T) {
	defer SetShuttingDown(false)

	err := Shutdown(context.Background(), zap.NewNop(), Step{
		Name:    "drain",
		Timeout: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() error = %v, want deadline exceeded", err)
	}
}
