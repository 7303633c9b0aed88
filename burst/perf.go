// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package burst

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/feagi/feagi-core-sub002/npu"
)

// PerfSample holds timing data for a single burst.
type PerfSample struct {
	Burst     uint64
	Duration  time.Duration
	JitterSec float64 // signed deviation from the scheduled deadline
	Fired     int
	Staged    int
	PhaseSecs [5]float64
}

// PerfCollector tracks burst timing over a rolling window.
type PerfCollector struct {
	windowSize  int
	samples     []PerfSample
	writeIndex  int
	sampleCount int
}

// NewPerfCollector creates a collector averaging over windowSize
// bursts (e.g. 30 for one second at 30 Hz).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 30
	}
	return &PerfCollector{
		windowSize: windowSize,
		samples:    make([]PerfSample, windowSize),
	}
}

// Record adds one burst's sample, evicting the oldest when the window
// is full.
func (p *PerfCollector) Record(s PerfSample) {
	p.samples[p.writeIndex] = s
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated statistics over the rolling window.
type PerfStats struct {
	Bursts          int
	MeanBurstSecs   float64
	MaxBurstSecs    float64
	JitterMeanSecs  float64
	JitterStdSecs   float64
	JitterP95Secs   float64
	MeanFired       float64
	PhaseMeanSecs   [5]float64
	BurstsPerSecond float64
}

// Stats aggregates the current window.
func (p *PerfCollector) Stats() PerfStats {
	st := PerfStats{Bursts: p.sampleCount}
	if p.sampleCount == 0 {
		return st
	}
	durs := make([]float64, p.sampleCount)
	jit := make([]float64, p.sampleCount)
	fired := make([]float64, p.sampleCount)
	var phases [5]float64
	var total float64
	for i := 0; i < p.sampleCount; i++ {
		s := &p.samples[i]
		durs[i] = s.Duration.Seconds()
		jit[i] = s.JitterSec
		fired[i] = float64(s.Fired)
		for ph := 0; ph < 5; ph++ {
			phases[ph] += s.PhaseSecs[ph]
		}
		total += durs[i]
		if durs[i] > st.MaxBurstSecs {
			st.MaxBurstSecs = durs[i]
		}
	}
	st.MeanBurstSecs = stat.Mean(durs, nil)
	st.JitterMeanSecs, st.JitterStdSecs = stat.MeanStdDev(jit, nil)
	sort.Float64s(jit)
	st.JitterP95Secs = stat.Quantile(0.95, stat.Empirical, jit, nil)
	st.MeanFired = stat.Mean(fired, nil)
	for ph := 0; ph < 5; ph++ {
		st.PhaseMeanSecs[ph] = phases[ph] / float64(p.sampleCount)
	}
	if total > 0 {
		st.BurstsPerSecond = float64(p.sampleCount) / total
	}
	return st
}

// PerfRecord is one CSV row of burst telemetry.
type PerfRecord struct {
	Run       string  `csv:"run"`
	Burst     uint64  `csv:"burst"`
	Secs      float64 `csv:"secs"`
	JitterSec float64 `csv:"jitter_sec"`
	Fired     int     `csv:"fired"`
	Staged    int     `csv:"staged"`
	Inject    float64 `csv:"inject_sec"`
	Dynamics  float64 `csv:"dynamics_sec"`
	Archive   float64 `csv:"archive_sec"`
	Rotate    float64 `csv:"rotate_sec"`
	Cleanup   float64 `csv:"cleanup_sec"`
}

// PerfLog streams per-burst records to a CSV file, one run id per
// process so concatenated logs stay attributable.
type PerfLog struct {
	runID         string
	file          *os.File
	headerWritten bool
}

// NewPerfLog opens path for writing.  Returns nil when path is empty
// (logging disabled); the nil receiver is safe to use.
func NewPerfLog(path string) (*PerfLog, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating perf log: %w", err)
	}
	return &PerfLog{runID: uuid.NewString(), file: f}, nil
}

// RunID returns the unique id stamped on every record.
func (pl *PerfLog) RunID() string {
	if pl == nil {
		return ""
	}
	return pl.runID
}

// Write appends one burst's record.
func (pl *PerfLog) Write(s PerfSample) error {
	if pl == nil {
		return nil
	}
	records := []PerfRecord{{
		Run:       pl.runID,
		Burst:     s.Burst,
		Secs:      s.Duration.Seconds(),
		JitterSec: s.JitterSec,
		Fired:     s.Fired,
		Staged:    s.Staged,
		Inject:    s.PhaseSecs[0],
		Dynamics:  s.PhaseSecs[1],
		Archive:   s.PhaseSecs[2],
		Rotate:    s.PhaseSecs[3],
		Cleanup:   s.PhaseSecs[4],
	}}
	if !pl.headerWritten {
		if err := gocsv.Marshal(records, pl.file); err != nil {
			return fmt.Errorf("writing perf record: %w", err)
		}
		pl.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, pl.file); err != nil {
		return fmt.Errorf("writing perf record: %w", err)
	}
	return nil
}

// Close flushes and closes the log file.
func (pl *PerfLog) Close() error {
	if pl == nil || pl.file == nil {
		return nil
	}
	return pl.file.Close()
}

// sampleFromStats builds a PerfSample from one burst's engine stats.
func sampleFromStats(bs npu.BurstStats, dur time.Duration, jitter float64) PerfSample {
	return PerfSample{
		Burst:     bs.Burst,
		Duration:  dur,
		JitterSec: jitter,
		Fired:     bs.Fired,
		Staged:    bs.Staged,
		PhaseSecs: bs.PhaseSecs,
	}
}
