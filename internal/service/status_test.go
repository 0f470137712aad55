package service

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestServiceStatus_Lifecycle(t *testing.T) {
	bindErr := errors.New("listen tcp 127.0.0.1:8080: bind: address already in use")

	tests := []struct {
		name        string
		apply       func(s *ServiceStatus)
		wantStatus  Status
		wantRunning bool
		wantErr     error
	}{
		{
			name:       "new status is stopped",
			apply:      func(s *ServiceStatus) {},
			wantStatus: StatusStopped,
		},
		{
			name:       "starting is not running",
			apply:      func(s *ServiceStatus) { s.SetStatus(StatusStarting) },
			wantStatus: StatusStarting,
		},
		{
			name: "failed listen records the error",
			apply: func(s *ServiceStatus) {
				s.SetStatus(StatusStarting)
				s.SetError(bindErr)
			},
			wantStatus: StatusError,
			wantErr:    bindErr,
		},
		{
			name: "restart after failure clears the error",
			apply: func(s *ServiceStatus) {
				s.SetError(bindErr)
				s.SetStatus(StatusStarting)
				s.SetStatus(StatusRunning)
			},
			wantStatus:  StatusRunning,
			wantRunning: true,
		},
		{
			name: "shutdown keeps a stop error",
			apply: func(s *ServiceStatus) {
				s.SetStatus(StatusRunning)
				s.SetStatus(StatusStopping)
				s.SetError(bindErr)
			},
			wantStatus: StatusError,
			wantErr:    bindErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NewServiceStatus("web")
			tt.apply(status)

			if got := status.GetStatus(); got != tt.wantStatus {
				t.Errorf("status = %s, want %s", got, tt.wantStatus)
			}
			if got := status.IsRunning(); got != tt.wantRunning {
				t.Errorf("IsRunning = %v, want %v", got, tt.wantRunning)
			}
			if !errors.Is(status.GetError(), tt.wantErr) {
				t.Errorf("error = %v, want %v", status.GetError(), tt.wantErr)
			}
			if !tt.wantRunning && status.GetUptime() != 0 {
				t.Errorf("uptime = %v for a service that is not running", status.GetUptime())
			}
		})
	}
}

func TestServiceStatus_UptimeResetsOnRestart(t *testing.T) {
	status := NewServiceStatus("state")
	status.SetStatus(StatusRunning)
	first := status.StartedAt
	time.Sleep(20 * time.Millisecond)

	if up := status.GetUptime(); up < 20*time.Millisecond {
		t.Errorf("uptime = %v, want at least 20ms", up)
	}

	status.SetStatus(StatusStopped)
	status.SetStatus(StatusRunning)
	if !status.StartedAt.After(first) {
		t.Error("restart should record a new start time")
	}
	if up := status.GetUptime(); up >= 20*time.Millisecond {
		t.Errorf("uptime = %v after restart, want it measured from the new start", up)
	}
}

// The health endpoint reads statuses while the manager updates them.
func TestServiceStatus_ConcurrentReaders(t *testing.T) {
	status := NewServiceStatus("health")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			status.SetStatus(StatusStarting)
			status.SetStatus(StatusRunning)
			status.SetStatus(StatusStopping)
			status.SetStatus(StatusStopped)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = status.GetStatus()
				_ = status.GetUptime()
				_ = status.GetError()
			}
		}()
	}
	wg.Wait()

	if status.GetStatus() != StatusStopped {
		t.Errorf("status = %s, want %s", status.GetStatus(), StatusStopped)
	}
}
