// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides runtime configuration for the burst engine:
// embedded defaults overlaid by an optional user YAML file, with
// synchronous validation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/feagi/feagi-core-sub002/burst"
	"github.com/feagi/feagi-core-sub002/npu"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Runner    RunnerConfig    `yaml:"runner"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Areas     []AreaConfig    `yaml:"areas"`
}

// EngineConfig selects the value representation and compute backend.
type EngineConfig struct {
	Representation      string  `yaml:"representation"`        // float32 | fixed16
	Backend             string  `yaml:"backend"`               // auto | cpu | gpu
	GPUSpeedupThreshold float64 `yaml:"gpu_speedup_threshold"` // auto mode crossover
	CPUWorkers          int     `yaml:"cpu_workers"`           // 0 = one per core
}

// RunnerConfig holds burst-loop parameters.
type RunnerConfig struct {
	FrequencyHz float64 `yaml:"frequency_hz"`
	SleepEnable bool    `yaml:"sleep_enable"`
}

// LedgerConfig bounds the fired-set archive.
type LedgerConfig struct {
	Depth int `yaml:"depth"`
}

// TelemetryConfig controls perf output.
type TelemetryConfig struct {
	PerfCSV string `yaml:"perf_csv"` // empty = disabled
	Window  int    `yaml:"window"`   // rolling window in bursts
}

// AreaConfig declares one cortical area, with an optional seeded demo
// population consumed by the engine binary.
type AreaConfig struct {
	Name       string            `yaml:"name"`
	Power      float64           `yaml:"power"`
	Accumulate bool              `yaml:"accumulate"`
	UniformPSP bool              `yaml:"uniform_psp"`
	FireToRest bool              `yaml:"fire_to_rest"`
	Sleep      *SleepConfig      `yaml:"sleep"`
	Population *PopulationConfig `yaml:"population"`
}

// SleepConfig mirrors npu.SleepBlock in YAML form.
type SleepConfig struct {
	Threshold   float64 `yaml:"threshold"`
	FrequencyHz float64 `yaml:"frequency_hz"`
	Window      int     `yaml:"window"`
}

// PopulationConfig seeds a deterministic demo population.
type PopulationConfig struct {
	Neurons         int     `yaml:"neurons"`
	Threshold       float64 `yaml:"threshold"`
	Resting         float64 `yaml:"resting"`
	Leak            float64 `yaml:"leak"`
	Refractory      int     `yaml:"refractory"`
	FireLimit       int     `yaml:"fire_limit"`
	Snooze          int     `yaml:"snooze"`
	Excitability    float64 `yaml:"excitability"`
	FanOut          int     `yaml:"fan_out"`
	Weight          int     `yaml:"weight"`
	Conductance     int     `yaml:"conductance"`
	InhibitoryEvery int     `yaml:"inhibitory_every"` // 0 = none
	Seed            int64   `yaml:"seed"`
}

// Load reads the embedded defaults, overlays the user file at path
// (empty path skips the overlay) and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects malformed values synchronously, before any engine
// state is built from them.
func (c *Config) Validate() error {
	switch c.Engine.Representation {
	case "float32", "fixed16":
	default:
		return fmt.Errorf("engine.representation %q (float32 or fixed16): %w",
			c.Engine.Representation, npu.ErrInvalidParam)
	}
	switch c.Engine.Backend {
	case "auto", "cpu", "gpu":
	default:
		return fmt.Errorf("engine.backend %q (auto, cpu or gpu): %w",
			c.Engine.Backend, npu.ErrInvalidParam)
	}
	if c.Engine.GPUSpeedupThreshold < 0 {
		return fmt.Errorf("engine.gpu_speedup_threshold %g: %w",
			c.Engine.GPUSpeedupThreshold, npu.ErrInvalidParam)
	}
	if c.Engine.CPUWorkers < 0 {
		return fmt.Errorf("engine.cpu_workers %d: %w", c.Engine.CPUWorkers, npu.ErrInvalidParam)
	}
	if hz := c.Runner.FrequencyHz; hz < burst.MinFrequencyHz || hz > burst.MaxFrequencyHz {
		return fmt.Errorf("runner.frequency_hz %g outside [%d, %d]: %w",
			hz, burst.MinFrequencyHz, burst.MaxFrequencyHz, npu.ErrInvalidParam)
	}
	if c.Ledger.Depth <= 0 {
		return fmt.Errorf("ledger.depth %d: %w", c.Ledger.Depth, npu.ErrInvalidParam)
	}
	if c.Telemetry.Window < 0 {
		return fmt.Errorf("telemetry.window %d: %w", c.Telemetry.Window, npu.ErrInvalidParam)
	}
	if len(c.Areas) == 0 {
		return fmt.Errorf("no areas configured: %w", npu.ErrInvalidParam)
	}
	seen := map[string]bool{}
	for i := range c.Areas {
		a := &c.Areas[i]
		if a.Name == "" {
			return fmt.Errorf("areas[%d].name empty: %w", i, npu.ErrInvalidParam)
		}
		if seen[a.Name] {
			return fmt.Errorf("area %q duplicated: %w", a.Name, npu.ErrInvalidParam)
		}
		seen[a.Name] = true
		if a.Power < 0 {
			return fmt.Errorf("area %q power %g: %w", a.Name, a.Power, npu.ErrInvalidParam)
		}
		if sl := a.Sleep; sl != nil {
			if sl.Threshold < 0 || sl.Window <= 0 {
				return fmt.Errorf("area %q sleep block: %w", a.Name, npu.ErrInvalidParam)
			}
			if sl.FrequencyHz < burst.MinFrequencyHz || sl.FrequencyHz > burst.MaxFrequencyHz {
				return fmt.Errorf("area %q sleep frequency %g: %w", a.Name, sl.FrequencyHz, npu.ErrInvalidParam)
			}
		}
		if p := a.Population; p != nil {
			if err := p.validate(a.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *PopulationConfig) validate(area string) error {
	if p.Neurons <= 0 {
		return fmt.Errorf("area %q population neurons %d: %w", area, p.Neurons, npu.ErrInvalidParam)
	}
	if p.Leak < 0 || p.Leak > 1 {
		return fmt.Errorf("area %q population leak %g: %w", area, p.Leak, npu.ErrInvalidParam)
	}
	if p.Excitability < 0 || p.Excitability > 1 {
		return fmt.Errorf("area %q population excitability %g: %w", area, p.Excitability, npu.ErrInvalidParam)
	}
	if p.Refractory < 0 || p.Refractory > 0xFFFF || p.FireLimit < 0 || p.FireLimit > 0xFFFF ||
		p.Snooze < 0 || p.Snooze > 0xFFFF {
		return fmt.Errorf("area %q population refractory fields: %w", area, npu.ErrInvalidParam)
	}
	if p.FanOut < 0 || p.FanOut >= p.Neurons {
		return fmt.Errorf("area %q population fan_out %d for %d neurons: %w",
			area, p.FanOut, p.Neurons, npu.ErrInvalidParam)
	}
	if p.Weight < 0 || p.Weight > 255 || p.Conductance < 0 || p.Conductance > 255 {
		return fmt.Errorf("area %q population weight/conductance: %w", area, npu.ErrInvalidParam)
	}
	if p.InhibitoryEvery < 0 {
		return fmt.Errorf("area %q population inhibitory_every %d: %w",
			area, p.InhibitoryEvery, npu.ErrInvalidParam)
	}
	return nil
}

// BackendKind maps the backend string to the selector's enum.
func (c *Config) BackendKind() npu.BackendKind {
	switch c.Engine.Backend {
	case "cpu":
		return npu.BackendCPU
	case "gpu":
		return npu.BackendGPU
	default:
		return npu.BackendAuto
	}
}

// BuildAreas constructs the area registry from the config, in file
// order so area indices are stable across runs.
func (c *Config) BuildAreas() (*npu.Areas, error) {
	areas := npu.NewAreas()
	for i := range c.Areas {
		a := &c.Areas[i]
		ap := &npu.AreaParams{
			Name:       a.Name,
			Accumulate: a.Accumulate,
			UniformPSP: a.UniformPSP,
			FireToRest: a.FireToRest,
		}
		if a.Sleep != nil {
			ap.Sleep = &npu.SleepBlock{
				Threshold:   a.Sleep.Threshold,
				FrequencyHz: a.Sleep.FrequencyHz,
				Window:      a.Sleep.Window,
			}
		}
		if _, err := areas.Add(ap); err != nil {
			return nil, err
		}
		if a.Power > 0 {
			if err := ap.SetPower(float32(a.Power)); err != nil {
				return nil, err
			}
		}
	}
	return areas, nil
}

// WriteYAML saves the effective configuration, for attaching to run
// artifacts.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
