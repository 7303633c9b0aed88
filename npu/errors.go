// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package npu

import "errors"

// Error taxonomy.  Configuration errors are rejected synchronously at
// the call that introduced them and are never substituted with a
// default.  Lock contention is latency, not an error.  Backend
// unavailability is handled by falling back to CPU at selection time,
// never mid-burst.
var (
	// ErrInvalidParam reports a malformed neuron, synapse, or area
	// parameter.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrBadID reports a neuron or synapse id that is out of range
	// or refers to a removed element.
	ErrBadID = errors.New("bad id")

	// ErrUnknownArea reports a reference to a cortical area that was
	// never registered.
	ErrUnknownArea = errors.New("unknown cortical area")

	// ErrBackendUnavailable reports that a requested compute backend
	// cannot be constructed on this host.
	ErrBackendUnavailable = errors.New("compute backend unavailable")

	// ErrCorruptState reports malformed persisted state (out-of-range
	// ids, corrupt ledger window) encountered during a load.  The
	// load fails as a whole; nothing is silently truncated.
	ErrCorruptState = errors.New("corrupt persisted state")
)
