// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/feagi/feagi-core-sub002/npu"
)

func TestDefaultsLoadAndValidate(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.Representation != "float32" || cfg.Engine.Backend != "auto" {
		t.Errorf("engine defaults: %+v", cfg.Engine)
	}
	if cfg.Runner.FrequencyHz != 30 {
		t.Errorf("frequency default %g", cfg.Runner.FrequencyHz)
	}
	if cfg.Ledger.Depth != 64 {
		t.Errorf("ledger depth default %d", cfg.Ledger.Depth)
	}
	if len(cfg.Areas) != 2 {
		t.Fatalf("%d default areas", len(cfg.Areas))
	}
	if cfg.Areas[1].Sleep == nil || cfg.Areas[1].Sleep.FrequencyHz != 15 {
		t.Errorf("association sleep block: %+v", cfg.Areas[1].Sleep)
	}
}

func TestOverlayKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("runner:\n  frequency_hz: 120\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Runner.FrequencyHz != 120 {
		t.Errorf("overlay ignored: %g", cfg.Runner.FrequencyHz)
	}
	// untouched sections keep their embedded defaults
	if cfg.Ledger.Depth != 64 || len(cfg.Areas) != 2 {
		t.Errorf("defaults lost under overlay")
	}
}

func TestValidationRejects(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"bad representation", func(c *Config) { c.Engine.Representation = "float64" }},
		{"bad backend", func(c *Config) { c.Engine.Backend = "tpu" }},
		{"frequency too low", func(c *Config) { c.Runner.FrequencyHz = 5 }},
		{"frequency too high", func(c *Config) { c.Runner.FrequencyHz = 2000 }},
		{"zero ledger depth", func(c *Config) { c.Ledger.Depth = 0 }},
		{"no areas", func(c *Config) { c.Areas = nil }},
		{"duplicate area", func(c *Config) { c.Areas[1].Name = c.Areas[0].Name }},
		{"negative power", func(c *Config) { c.Areas[0].Power = -1 }},
		{"sleep window zero", func(c *Config) { c.Areas[1].Sleep.Window = 0 }},
		{"sleep frequency out of band", func(c *Config) { c.Areas[1].Sleep.FrequencyHz = 5000 }},
		{"excitability out of range", func(c *Config) { c.Areas[0].Population.Excitability = 1.5 }},
		{"weight out of range", func(c *Config) { c.Areas[0].Population.Weight = 300 }},
		{"fan out too wide", func(c *Config) {
			c.Areas[0].Population.FanOut = c.Areas[0].Population.Neurons
		}},
	}
	for _, tc := range cases {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		tc.mut(cfg)
		if err := cfg.Validate(); !errors.Is(err, npu.ErrInvalidParam) {
			t.Errorf("%s: accepted (%v)", tc.name, err)
		}
	}
}

func TestBuildAreas(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	areas, err := cfg.BuildAreas()
	if err != nil {
		t.Fatal(err)
	}
	if areas.Len() != 2 {
		t.Fatalf("%d areas built", areas.Len())
	}
	ai, err := areas.ByName("association")
	if err != nil {
		t.Fatal(err)
	}
	ap := areas.At(ai)
	if ap.Sleep == nil || ap.Sleep.Window != 32 {
		t.Errorf("sleep block not carried: %+v", ap.Sleep)
	}
	if ap.Power() != 0.05 {
		t.Errorf("power not applied: %g", ap.Power())
	}
	if !ap.FireToRest || ap.UniformPSP {
		t.Errorf("flags not carried: %+v", ap)
	}
}

func TestBackendKind(t *testing.T) {
	cfg, _ := Load("")
	if cfg.BackendKind() != npu.BackendAuto {
		t.Errorf("auto mapping")
	}
	cfg.Engine.Backend = "gpu"
	if cfg.BackendKind() != npu.BackendGPU {
		t.Errorf("gpu mapping")
	}
	cfg.Engine.Backend = "cpu"
	if cfg.BackendKind() != npu.BackendCPU {
		t.Errorf("cpu mapping")
	}
}

func TestWriteYAMLRoundtrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Runner.FrequencyHz != cfg.Runner.FrequencyHz || back.Ledger.Depth != cfg.Ledger.Depth {
		t.Errorf("roundtrip drifted")
	}
}
