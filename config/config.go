// Package config loads and validates the board and task description the
// demo kernel boots from. Configuration problems are caught here, before
// first run; the scheduler never sees a bad layout at runtime.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes the timer, the stack layout, and the task set.
type Config struct {
	// TickHz is the timer tick rate.
	TickHz uint32 `yaml:"tick_hz"`

	// ClockHz is the timer input clock.
	ClockHz uint32 `yaml:"clock_hz"`

	// StackSize is the per-task stack region size in bytes.
	StackSize uint32 `yaml:"stack_size"`

	// Tasks are the user tasks; the idle task is implicit.
	Tasks []TaskConfig `yaml:"tasks"`
}

// TaskConfig describes one blinker task.
type TaskConfig struct {
	Name   string `yaml:"name"`
	LED    uint8  `yaml:"led"`
	Period uint64 `yaml:"period"`
}

// Default returns the demo configuration: a 1 kHz tick off the 16 MHz
// internal clock, 1 KiB stacks, and the four board LEDs blinking at
// visibly distinct rates.
func Default() Config {
	return Config{
		TickHz:    1000,
		ClockHz:   16_000_000,
		StackSize: 1024,
		Tasks: []TaskConfig{
			{Name: "green", LED: 12, Period: 1000},
			{Name: "orange", LED: 13, Period: 500},
			{Name: "blue", LED: 15, Period: 250},
			{Name: "red", LED: 14, Period: 125},
		},
	}
}

// Load reads and validates a YAML config file. Unknown fields are
// rejected.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates YAML config bytes.
func Parse(raw []byte) (Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against the constraints the kernel
// assumes.
func (c Config) Validate() error {
	if c.TickHz == 0 {
		return fmt.Errorf("config: tick_hz must be positive")
	}
	if c.ClockHz < c.TickHz {
		return fmt.Errorf("config: clock_hz %d is below tick_hz %d", c.ClockHz, c.TickHz)
	}
	if c.StackSize == 0 || c.StackSize%8 != 0 {
		return fmt.Errorf("config: stack_size %d is not a positive multiple of 8", c.StackSize)
	}
	if len(c.Tasks) == 0 {
		return fmt.Errorf("config: at least one task is required")
	}
	seenName := make(map[string]bool)
	seenLED := make(map[uint8]bool)
	for i, t := range c.Tasks {
		if t.Name == "" {
			return fmt.Errorf("config: task %d has no name", i)
		}
		if t.Name == "idle" {
			return fmt.Errorf("config: task name %q is reserved", t.Name)
		}
		if seenName[t.Name] {
			return fmt.Errorf("config: duplicate task name %q", t.Name)
		}
		seenName[t.Name] = true
		if t.LED > 15 {
			return fmt.Errorf("config: task %q uses pin %d, port D has pins 0..15", t.Name, t.LED)
		}
		if seenLED[t.LED] {
			return fmt.Errorf("config: pin %d is driven by more than one task", t.LED)
		}
		seenLED[t.LED] = true
	}
	return nil
}
