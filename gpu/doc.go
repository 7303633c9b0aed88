// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package gpu implements the Vulkan compute backend for the burst
engine, float32 only.  Two kernels mirror the CPU backend operation
for operation: propagate.hlsl walks the outgoing synapses of the
previous burst's fired set and accumulates postsynaptic contributions
into a fixed-point FCL with atomic adds, and dynamics.hlsl runs the
per-neuron update, including the same Philox2x32 excitability draw
the CPU path uses, so fired sets are identical across backends.

Per-burst traffic is kept proportional to activity: synapse data
syncs only when the host-side store changes, and the fired set
crosses as a compact list plus an open-addressing hash from source to
synapse range (see RangeTable).

All calls must come from the goroutine that called New, which is
locked to its OS thread for Vulkan.
*/
package gpu
