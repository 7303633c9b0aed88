// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package burst

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emer/emergent/v2/timer"

	"github.com/feagi/feagi-core-sub002/npu"
)

// Engine is the burst surface the runner drives.  *npu.NPU satisfies
// it for both value representations.
type Engine interface {
	Burst() (npu.BurstStats, error)
	BurstCount() uint64
}

// Frequency bounds for the burst loop, in Hz.
const (
	MinFrequencyHz = 15
	MaxFrequencyHz = 1000
)

type cmdKind int

const (
	cmdPause cmdKind = iota
	cmdResume
	cmdStep
)

type command struct {
	kind cmdKind
	done chan error
}

// Runner drives an engine at a target burst frequency on absolute
// deadlines, so one late burst does not push every later one back.  A
// burst once started always runs to completion; Stop, Pause, and
// sleep-mode throttling only affect when the next one starts.
type Runner struct {
	eng   Engine
	perf  *PerfCollector
	plog  *PerfLog
	sleep *SleepController

	// periods in nanoseconds; sleepPeriod is 0 while awake
	period      atomic.Int64
	sleepPeriod atomic.Int64

	// onError decides whether the loop keeps scheduling after a
	// failed burst; the default logs and continues.
	onError func(error) bool

	cmds    chan command
	stopCh  chan struct{}
	done    chan struct{}
	stopOne sync.Once

	mu      sync.Mutex
	started bool
}

// NewRunner wires a runner at the given frequency.  The perf log and
// sleep controller are optional attachments.
func NewRunner(eng Engine, hz float64) (*Runner, error) {
	r := &Runner{
		eng:    eng,
		perf:   NewPerfCollector(64),
		cmds:   make(chan command),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		onError: func(err error) bool {
			slog.Error("burst failed", "err", err)
			return true
		},
	}
	if err := r.SetFrequencyHz(hz); err != nil {
		return nil, err
	}
	return r, nil
}

// SetPerfLog attaches a CSV telemetry sink.  Call before Start.
func (r *Runner) SetPerfLog(pl *PerfLog) { r.plog = pl }

// SetPerfWindow resizes the rolling stats window, discarding any
// samples recorded so far.  Call before Start.
func (r *Runner) SetPerfWindow(bursts int) { r.perf = NewPerfCollector(bursts) }

// SetSleep attaches the sleep controller.  Call before Start.
func (r *Runner) SetSleep(sc *SleepController) { r.sleep = sc }

// SetErrorPolicy replaces the failed-burst policy.  Returning false
// stops the loop.  Call before Start.
func (r *Runner) SetErrorPolicy(f func(error) bool) { r.onError = f }

// SetFrequencyHz retargets the loop.  Takes effect at the next
// deadline computation; safe while running.
func (r *Runner) SetFrequencyHz(hz float64) error {
	if hz < MinFrequencyHz || hz > MaxFrequencyHz {
		return fmt.Errorf("burst frequency %g Hz outside [%d, %d]: %w",
			hz, MinFrequencyHz, MaxFrequencyHz, npu.ErrInvalidParam)
	}
	r.period.Store(int64(float64(time.Second) / hz))
	return nil
}

// FrequencyHz returns the configured target frequency.
func (r *Runner) FrequencyHz() float64 {
	return float64(time.Second) / float64(r.period.Load())
}

// Stats returns aggregated timing over the rolling window.
func (r *Runner) Stats() PerfStats { return r.perf.Stats() }

// Start launches the loop goroutine.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("runner already started: %w", npu.ErrInvalidParam)
	}
	r.started = true
	go r.loop()
	return nil
}

// Stop prevents any further bursts and waits for the loop to exit.
// The in-flight burst, if any, completes first.
func (r *Runner) Stop() {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return
	}
	r.stopOne.Do(func() { close(r.stopCh) })
	<-r.done
}

// Pause suspends scheduling after the in-flight burst completes.
func (r *Runner) Pause() error { return r.send(cmdPause) }

// Resume restarts scheduling with fresh deadlines.
func (r *Runner) Resume() error { return r.send(cmdResume) }

// Step runs exactly one burst.  Only valid while paused.
func (r *Runner) Step() error { return r.send(cmdStep) }

func (r *Runner) send(k cmdKind) error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return fmt.Errorf("runner not started: %w", npu.ErrInvalidParam)
	}
	c := command{kind: k, done: make(chan error, 1)}
	select {
	case r.cmds <- c:
		return <-c.done
	case <-r.done:
		return fmt.Errorf("runner stopped: %w", npu.ErrInvalidParam)
	}
}

func (r *Runner) periodDur() time.Duration {
	if sp := r.sleepPeriod.Load(); sp > 0 {
		return time.Duration(sp)
	}
	return time.Duration(r.period.Load())
}

func (r *Runner) loop() {
	defer close(r.done)
	next := time.Now().Add(r.periodDur())
	tm := time.NewTimer(time.Until(next))
	defer tm.Stop()

	for {
		select {
		case <-r.stopCh:
			return

		case c := <-r.cmds:
			if c.kind != cmdPause {
				c.done <- fmt.Errorf("runner not paused: %w", npu.ErrInvalidParam)
				continue
			}
			c.done <- nil
			if !r.paused() {
				return // stopped while paused
			}
			next = time.Now().Add(r.periodDur())
			tm.Reset(time.Until(next))

		case now := <-tm.C:
			select {
			case <-r.stopCh:
				return
			default:
			}
			r.runOne(now.Sub(next).Seconds())
			p := r.periodDur()
			next = next.Add(p)
			if late := time.Since(next); late > p {
				// fell more than a full period behind; rebase
				// rather than bursting back-to-back to catch up
				slog.Warn("burst loop overrun", "behind", late)
				next = time.Now().Add(p)
			}
			tm.Reset(time.Until(next))
		}
	}
}

// paused services commands until Resume; returns false when the
// runner is stopped instead.
func (r *Runner) paused() bool {
	for {
		select {
		case <-r.stopCh:
			return false
		case c := <-r.cmds:
			switch c.kind {
			case cmdResume:
				c.done <- nil
				return true
			case cmdStep:
				r.runOne(0)
				c.done <- nil
			default:
				c.done <- fmt.Errorf("runner already paused: %w", npu.ErrInvalidParam)
			}
		}
	}
}

func (r *Runner) runOne(jitterSec float64) {
	var tmr timer.Time
	tmr.Start()
	bs, err := r.eng.Burst()
	tmr.Stop()
	if err != nil {
		if !r.onError(err) {
			r.stopOne.Do(func() { close(r.stopCh) })
		}
		return
	}
	s := sampleFromStats(bs, time.Duration(tmr.TotalSecs()*float64(time.Second)), jitterSec)
	r.perf.Record(s)
	if err := r.plog.Write(s); err != nil {
		slog.Warn("perf log write failed", "err", err)
	}
	if r.sleep != nil {
		if hz, asleep := r.sleep.Evaluate(); asleep {
			r.sleepPeriod.Store(int64(float64(time.Second) / hz))
		} else {
			r.sleepPeriod.Store(0)
		}
	}
}
