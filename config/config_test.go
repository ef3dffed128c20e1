package config

import (
	"strings"
	"testing"
)

func TestParse_Valid(t *testing.T) {
	raw := []byte(`
tick_hz: 1000
clock_hz: 16000000
stack_size: 1024
tasks:
  - name: green
    led: 12
    period: 1000
  - name: orange
    led: 13
    period: 500
`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.TickHz != 1000 || cfg.ClockHz != 16_000_000 || cfg.StackSize != 1024 {
		t.Errorf("timer/stack fields = %d/%d/%d, want 1000/16000000/1024",
			cfg.TickHz, cfg.ClockHz, cfg.StackSize)
	}
	if len(cfg.Tasks) != 2 {
		t.Fatalf("parsed %d tasks, want 2", len(cfg.Tasks))
	}
	if cfg.Tasks[1].Name != "orange" || cfg.Tasks[1].LED != 13 || cfg.Tasks[1].Period != 500 {
		t.Errorf("second task = %+v, want orange on pin 13 every 500 ticks", cfg.Tasks[1])
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	raw := []byte(`
tick_hz: 1000
clock_hz: 16000000
stack_size: 1024
priority_levels: 4
tasks:
  - name: green
    led: 12
    period: 1000
`)
	if _, err := Parse(raw); err == nil {
		t.Error("expected an error for an unknown field")
	}
}

func TestValidate(t *testing.T) {
	base := Default()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "zero tick rate",
			mutate:  func(c *Config) { c.TickHz = 0 },
			wantErr: "tick_hz",
		},
		{
			name:    "clock below tick rate",
			mutate:  func(c *Config) { c.ClockHz = c.TickHz - 1 },
			wantErr: "clock_hz",
		},
		{
			name:    "unaligned stack size",
			mutate:  func(c *Config) { c.StackSize = 1021 },
			wantErr: "stack_size",
		},
		{
			name:    "no tasks",
			mutate:  func(c *Config) { c.Tasks = nil },
			wantErr: "at least one task",
		},
		{
			name:    "unnamed task",
			mutate:  func(c *Config) { c.Tasks[0].Name = "" },
			wantErr: "no name",
		},
		{
			name:    "reserved idle name",
			mutate:  func(c *Config) { c.Tasks[0].Name = "idle" },
			wantErr: "reserved",
		},
		{
			name:    "duplicate task name",
			mutate:  func(c *Config) { c.Tasks[1].Name = c.Tasks[0].Name },
			wantErr: "duplicate task name",
		},
		{
			name:    "pin outside port",
			mutate:  func(c *Config) { c.Tasks[0].LED = 16 },
			wantErr: "pins 0..15",
		},
		{
			name:    "pin driven twice",
			mutate:  func(c *Config) { c.Tasks[1].LED = c.Tasks[0].LED },
			wantErr: "more than one task",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Tasks = append([]TaskConfig(nil), base.Tasks...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("no-such-config.yaml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
