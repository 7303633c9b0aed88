// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package feagi-core-sub002 is the real-time burst engine: the compute
core that advances a spiking neural population in discrete bursts.

Everything is organized into the following sub-packages:

* npu: the neural processing unit -- columnar neuron and synapse
stores, cortical-area registry, the five-phase burst pipeline
(injection, dynamics, archival, rotation, cleanup), the fired-set
ledger, and the multithreaded CPU backend.

* gpu: the Vulkan compute backend, mirroring the CPU dynamics kernel
operation for operation so fired sets are identical across backends.

* nval: the generic potential representation -- full-precision
float32 and a compact Q8.8 fixed-point form, behind one constraint.

* idset: word-trimmed bitsets for compressed fired-set storage and
set algebra without decompression.

* burst: the loop runner -- absolute-deadline scheduling at a target
frequency, pause/resume/single-step control, jitter telemetry, and
low-activity sleep throttling.

* config: YAML runtime configuration with embedded defaults.

* cmd/feagi-burst: the runnable engine binary.
*/
package core
