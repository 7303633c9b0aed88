// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// feagi-burst runs the burst engine: it loads the configuration,
// seeds the configured demo populations, picks a compute backend and
// drives the burst loop until interrupted.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/feagi/feagi-core-sub002/burst"
	"github.com/feagi/feagi-core-sub002/config"
	"github.com/feagi/feagi-core-sub002/gpu"
	"github.com/feagi/feagi-core-sub002/npu"
	"github.com/feagi/feagi-core-sub002/nval"
)

func main() {
	configPath := flag.String("config", "", "config YAML file (empty = embedded defaults)")
	debug := flag.Bool("debug", false, "enable debug logging")
	report := flag.Bool("report", true, "print memory and timing report on exit")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	switch cfg.Engine.Representation {
	case "fixed16":
		err = run[nval.Fixed16](cfg, *report)
	default:
		err = run[nval.Float32](cfg, *report)
	}
	if err != nil {
		slog.Error("engine", "err", err)
		os.Exit(1)
	}
}

func run[T nval.Value[T]](cfg *config.Config, report bool) error {
	areas, err := cfg.BuildAreas()
	if err != nil {
		return err
	}
	np, err := npu.New[T](areas, cfg.Ledger.Depth)
	if err != nil {
		return err
	}
	defer np.Release()

	if err := seedPopulations(np, cfg); err != nil {
		return err
	}
	slog.Info("population seeded",
		"neurons", np.NeuronCount(), "synapses", np.SynapseCount(), "areas", areas.Len())

	attachBackend(np, cfg)

	runner, err := burst.NewRunner(np, cfg.Runner.FrequencyHz)
	if err != nil {
		return err
	}
	plog, err := burst.NewPerfLog(cfg.Telemetry.PerfCSV)
	if err != nil {
		return err
	}
	defer plog.Close()
	runner.SetPerfWindow(cfg.Telemetry.Window)
	runner.SetPerfLog(plog)
	runner.SetSleep(burst.NewSleepController(cfg.Runner.SleepEnable, areas, np))

	if err := runner.Start(); err != nil {
		return err
	}
	slog.Info("burst loop running",
		"hz", cfg.Runner.FrequencyHz, "backend", np.BackendName(), "run", plog.RunID())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	slog.Info("shutting down")
	runner.Stop()

	if report {
		st := runner.Stats()
		slog.Info("run complete",
			"bursts", np.BurstCount(),
			"meanBurstSecs", st.MeanBurstSecs,
			"jitterStdSecs", st.JitterStdSecs,
			"burstsPerSec", st.BurstsPerSecond)
		fmt.Println(np.SizeReport())
	}
	return nil
}

// attachBackend selects CPU or GPU per the configured policy and
// probed hardware.  The GPU path exists for the float32
// representation only; other engines keep the CPU default.
func attachBackend[T nval.Value[T]](np *npu.NPU[T], cfg *config.Config) {
	npf, isF32 := any(np).(*npu.NPU[nval.Float32])

	var sp npu.SelectParams
	sp.Defaults()
	sp.Kind = cfg.BackendKind()
	if cfg.Engine.GPUSpeedupThreshold > 0 {
		sp.SpeedupThreshold = cfg.Engine.GPUSpeedupThreshold
	}
	gpuProbe := func() bool { return false }
	if isF32 {
		gpuProbe = gpu.Available
	}
	hw := npu.ProbeHardware(gpuProbe)
	kind := sp.Choose(np.NeuronCount(), hw)

	if kind == npu.BackendGPU && isF32 {
		be, err := gpu.New()
		if err != nil {
			slog.Warn("gpu backend unavailable, staying on cpu", "err", err)
		} else {
			npf.SetBackend(be)
			return
		}
	}
	np.SetBackend(npu.NewCPU[T](cfg.Engine.CPUWorkers))
}
