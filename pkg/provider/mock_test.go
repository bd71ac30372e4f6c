package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMock_PauseResume(t *testing.T) {
	tests := []struct {
		kind        Kind
		pausedState Status
	}{
		{KindVM, StatusStopped},
		{KindSelfSuspending, StatusSuspended},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ctx := context.Background()
			m := NewMock("mock", tt.kind)
			m.AddInstance("i-1", 40)

			if err := m.Pause(ctx, "i-1"); err != nil {
				t.Fatalf("Pause() error: %v", err)
			}
			st, _ := m.GetStatus(ctx, "i-1")
			if st != tt.pausedState {
				t.Errorf("status after pause = %s, want %s", st, tt.pausedState)
			}

			if err := m.Resume(ctx, "i-1"); err != nil {
				t.Fatalf("Resume() error: %v", err)
			}
			st, _ = m.GetStatus(ctx, "i-1")
			if st != StatusRunning {
				t.Errorf("status after resume = %s, want running", st)
			}
			if m.Calls("pause") != 1 || m.Calls("resume") != 1 {
				t.Errorf("calls pause=%d resume=%d, want 1 and 1", m.Calls("pause"), m.Calls("resume"))
			}
		})
	}
}

func TestMock_UnknownInstance(t *testing.T) {
	m := NewMock("mock", KindVM)
	if err := m.Delete(context.Background(), "missing"); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrInstanceNotFound", err)
	}
}

func TestMock_FailureInjection(t *testing.T) {
	m := NewMock("mock", KindVM)
	m.AddInstance("i-1", 10)

	boom := errors.New("boom")
	m.Fail("metrics", boom)
	if _, err := m.GetMetrics(context.Background(), "i-1"); !errors.Is(err, boom) {
		t.Fatalf("GetMetrics() = %v, want injected failure", err)
	}

	m.Fail("metrics", nil)
	got, err := m.GetMetrics(context.Background(), "i-1")
	if err != nil {
		t.Fatalf("GetMetrics() error after clearing failure: %v", err)
	}
	if got.GPUUtilizationPercent != 10 {
		t.Errorf("utilization = %v, want 10", got.GPUUtilizationPercent)
	}
}

func TestMock_DelayHonoursContext(t *testing.T) {
	m := NewMock("mock", KindVM)
	m.AddInstance("i-1", 10)
	m.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := m.Pause(ctx, "i-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Pause() = %v, want deadline exceeded", err)
	}
}

func TestMock_SupportsGPU(t *testing.T) {
	all := NewMock("all", KindVM)
	if !all.SupportsGPU("H100") {
		t.Error("mock without GPU list should support every type")
	}

	limited := NewMock("limited", KindVM, "T4")
	if !limited.SupportsGPU("T4") || limited.SupportsGPU("A100") {
		t.Error("limited mock should only support T4")
	}
}
