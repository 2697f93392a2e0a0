package provider

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wneessen/go-mail"
)

func TestNewSMTP_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config SMTPConfig
	}{
		{"missing host", SMTPConfig{From: "noreply@example.com"}},
		{"missing from", SMTPConfig{Host: "smtp.example.com"}},
		{"bad tls", SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com", TLS: "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSMTP(tt.config); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewSMTP() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewSMTP_Defaults(t *testing.T) {
	p, err := NewSMTP(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("NewSMTP() error = %v", err)
	}
	if p.Name() != "smtp" {
		t.Errorf("Name() = %q, want smtp", p.Name())
	}
	if p.config.Port != 587 {
		t.Errorf("Port = %d, want 587", p.config.Port)
	}
	if p.Kind() != "smtp" {
		t.Errorf("Kind() = %q, want smtp", p.Kind())
	}
}

func TestTLSPolicy(t *testing.T) {
	tests := []struct {
		mode string
		want mail.TLSPolicy
	}{
		{"", mail.TLSMandatory},
		{"mandatory", mail.TLSMandatory},
		{"opportunistic", mail.TLSOpportunistic},
		{"none", mail.NoTLS},
	}

	for _, tt := range tests {
		got, err := tlsPolicy(tt.mode)
		if err != nil {
			t.Errorf("tlsPolicy(%q) error = %v", tt.mode, err)
			continue
		}
		if got != tt.want {
			t.Errorf("tlsPolicy(%q) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestSMTP_BuildMsg(t *testing.T) {
	p, err := NewSMTP(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("NewSMTP() error = %v", err)
	}

	m, err := p.buildMsg(testMsg)
	if err != nil {
		t.Fatalf("buildMsg() error = %v", err)
	}
	if got := m.GetToString(); len(got) != 1 || !strings.Contains(got[0], "user@example.com") {
		t.Errorf("To = %v, want user@example.com", got)
	}

	bad := testMsg
	bad.To = "not an address"
	if _, err := p.buildMsg(bad); err == nil {
		t.Error("buildMsg() with invalid recipient should fail")
	}
}

func TestSMTP_ResultUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	p, err := NewSMTP(SMTPConfig{Name: "relay", Host: "smtp.example.com", From: "noreply@example.com", Clock: clock})
	if err != nil {
		t.Fatalf("NewSMTP() error = %v", err)
	}

	clock.Advance(90 * time.Second)
	r := p.result()
	if want := clock.Now().UTC(); !r.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", r.Timestamp, want)
	}
	if r.Provider != "relay" {
		t.Errorf("Provider = %q, want relay", r.Provider)
	}
	if !strings.HasPrefix(r.ID, "relay_1772366490000_") {
		t.Errorf("ID = %q, want relay_1772366490000_ prefix", r.ID)
	}
}
