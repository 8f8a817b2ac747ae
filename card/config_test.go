package card

import (
	"errors"
	"testing"
	"time"

	"github.com/ardnew/softsd/pkg"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{"default", func(*Config) {}, nil},
		{"zero OCR timeout", func(c *Config) { c.OCRTimeout = 0 }, pkg.ErrInvalidParameter},
		{"negative transfer timeout", func(c *Config) { c.TransferTimeout = -time.Second }, pkg.ErrInvalidParameter},
		{"unaligned scratch", func(c *Config) { c.ScratchAddress = 0x05000002 }, pkg.ErrInvalidParameter},
		{"short timeouts", func(c *Config) { c.OCRTimeout, c.TransferTimeout = time.Millisecond, time.Millisecond }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(&c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewWithConfig(t *testing.T) {
	bus, timer := newFakeBus(), &fakeTimer{}

	if _, err := NewWithConfig(nil, timer, DefaultConfig()); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("nil bus error = %v, want %v", err, pkg.ErrInvalidParameter)
	}
	if _, err := NewWithConfig(bus, nil, DefaultConfig()); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("nil timer error = %v, want %v", err, pkg.ErrInvalidParameter)
	}
	if _, err := NewWithConfig(bus, timer, Config{}); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("zero config error = %v, want %v", err, pkg.ErrInvalidParameter)
	}

	d := New(bus, timer)
	if d.Config() != DefaultConfig() {
		t.Errorf("Config() = %+v, want %+v", d.Config(), DefaultConfig())
	}
	if d.State() != StateUninitialized {
		t.Errorf("State() = %v, want %v", d.State(), StateUninitialized)
	}
}
