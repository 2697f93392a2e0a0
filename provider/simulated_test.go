package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonwraymond/maildispatch/email"
)

var testMsg = email.Message{To: "user@example.com", Subject: "Hi", Body: "Hello"}

func TestNewSimulated_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config SimulatedConfig
	}{
		{"missing name", SimulatedConfig{FailureRate: 0.1}},
		{"negative rate", SimulatedConfig{Name: "A", FailureRate: -0.1}},
		{"rate above one", SimulatedConfig{Name: "A", FailureRate: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSimulated(tt.config)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewSimulated() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSimulated_Success(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	p, err := NewSimulated(SimulatedConfig{Name: "ProviderA", Clock: clock})
	if err != nil {
		t.Fatalf("NewSimulated() error = %v", err)
	}

	result, err := p.Send(context.Background(), testMsg)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if result.Provider != "ProviderA" {
		t.Errorf("Provider = %q, want ProviderA", result.Provider)
	}
	if result.Status != email.StatusSent {
		t.Errorf("Status = %q, want %q", result.Status, email.StatusSent)
	}
	if !strings.HasPrefix(result.ID, "providera_1704164645000_") {
		t.Errorf("ID = %q, want providera_<millis>_ prefix", result.ID)
	}
	if !result.Timestamp.Equal(clock.Now()) {
		t.Errorf("Timestamp = %v, want %v", result.Timestamp, clock.Now())
	}
	if p.Requests() != 1 {
		t.Errorf("Requests() = %d, want 1", p.Requests())
	}
}

func TestSimulated_AlwaysFails(t *testing.T) {
	p, err := NewSimulated(SimulatedConfig{Name: "ProviderB", FailureRate: 1})
	if err != nil {
		t.Fatalf("NewSimulated() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		_, err := p.Send(context.Background(), testMsg)
		if !errors.Is(err, ErrProviderFailure) {
			t.Fatalf("Send() error = %v, want ErrProviderFailure", err)
		}
		if !strings.Contains(err.Error(), "ProviderB") {
			t.Errorf("error %q should name the provider", err)
		}
	}
	if p.Requests() != 3 {
		t.Errorf("Requests() = %d, want 3", p.Requests())
	}
}

func TestSimulated_LatencyHonorsContext(t *testing.T) {
	p, err := NewSimulated(SimulatedConfig{Name: "Slow", Latency: time.Hour})
	if err != nil {
		t.Fatalf("NewSimulated() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = p.Send(ctx, testMsg)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestSimulated_Kind(t *testing.T) {
	p, _ := NewSimulated(SimulatedConfig{Name: "A"})
	if kindOf(p) != "simulated" {
		t.Errorf("kindOf() = %q, want simulated", kindOf(p))
	}
}
