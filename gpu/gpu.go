// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpu

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/goki/ki/ints"
	"github.com/goki/vgpu/vgpu"

	"github.com/feagi/feagi-core-sub002/npu"
	"github.com/feagi/feagi-core-sub002/nval"
)

//go:generate glslc -fshader-stage=compute -o shaders/propagate.spv shaders/propagate.hlsl
//go:generate glslc -fshader-stage=compute -o shaders/dynamics.spv shaders/dynamics.hlsl

// fclScale converts float contributions to the fixed-point integers
// the propagate kernel accumulates with InterlockedAdd.  Must match
// FCL_SCALE in propagate.hlsl.
const fclScale = 1 << 16

var (
	initOnce sync.Once
	initErr  error
)

// Available reports whether a Vulkan compute device can be
// initialized on this host.  First call pays the init cost.
func Available() bool {
	initOnce.Do(func() {
		initErr = vgpu.Init()
	})
	return initErr == nil
}

// gpuNeuron mirrors the Neuron struct in the shaders.  uint16 column
// pairs are packed into single words because HLSL storage buffers
// address 32-bit units.
type gpuNeuron struct {
	Vm     float32
	Thr    float32
	Rest   float32
	Leak   float32
	Refrac uint32 // RefracPer | RefracCtr<<16
	Fire   uint32 // FireCnt | FireLimit<<16
	Snooze uint32
	Excit  float32
	Area   uint32
	Flags  uint32

	pad, pad1 uint32
}

// gpuSynapse mirrors the Syn struct in propagate.hlsl.  Synapses are
// stored flattened in source-sorted order so a range from the hash
// indexes this buffer directly.
type gpuSynapse struct {
	Dst   uint32
	Wt    uint32
	Cond  uint32
	Flags uint32
}

// gpuArea mirrors the Area struct in the shaders.
type gpuArea struct {
	UniformPSP uint32
	FireToRest uint32

	pad, pad1 uint32
}

// gpuParams mirrors the Params uniform shared by both kernels.
type gpuParams struct {
	N        uint32
	NFired   uint32
	HashMask uint32
	NSyn     uint32
	BurstLo  uint32
	BurstHi  uint32

	pad, pad1 uint32
}

// Compute is the Vulkan backend, float32 only.  It satisfies
// npu.Backend[nval.Float32] and must be driven from the goroutine
// that constructed it.
type Compute struct {
	gp     *vgpu.GPU
	sy     *vgpu.System
	propPl *vgpu.Pipeline
	dynPl  *vgpu.Pipeline

	parsV  *vgpu.Var
	neurV  *vgpu.Var
	areaV  *vgpu.Var
	synV   *vgpu.Var
	firedV *vgpu.Var
	hashV  *vgpu.Var
	fclIV  *vgpu.Var
	fclFV  *vgpu.Var
	maskV  *vgpu.Var

	// device buffer capacities; growth rebuilds the system
	nCap, sCap, fCap, hCap int

	// host mirrors, always allocated at capacity because buffer
	// copies transfer the full value size
	neurons []gpuNeuron
	syns    []gpuSynapse
	areas   []gpuArea
	fired   []uint32
	hash    []RangeEntry
	fclInt  []int32
	fclF    []float32
	mask    []uint32

	table  RangeTable
	synGen uint64
	haveSy bool
}

// New initializes the Vulkan device and compiled kernels.  The
// calling goroutine is locked to its OS thread; all later backend
// calls must come from it.
func New() (*Compute, error) {
	if !Available() {
		return nil, fmt.Errorf("vulkan init: %v: %w", initErr, npu.ErrBackendUnavailable)
	}
	runtime.LockOSThread()
	gp := vgpu.NewComputeGPU()
	gp.Config("feagi-burst")
	c := &Compute{gp: gp}
	c.config(4096, 4096, 256, 512)
	return c, nil
}

// Name identifies the backend in logs and reports.
func (c *Compute) Name() string { return "gpu" }

// Release destroys the compute system and the device.  Only the
// process-wide Vulkan instance from Available survives, so a new
// backend can still be constructed afterwards.
func (c *Compute) Release() {
	if c.haveSy {
		c.sy.Destroy()
		c.haveSy = false
	}
	if c.gp != nil {
		c.gp.Destroy()
		c.gp = nil
	}
}

// config (re)builds the compute system and its buffers at the given
// capacities.  Synapse data must resync afterwards.
func (c *Compute) config(nCap, sCap, fCap, hCap int) {
	if c.haveSy {
		c.sy.Destroy()
	}
	c.nCap, c.sCap, c.fCap, c.hCap = nCap, sCap, fCap, hCap
	mCap := (nCap + 31) / 32

	sy := c.gp.NewComputeSystem("burst")
	c.propPl = sy.NewPipeline("propagate")
	c.propPl.AddShaderFile("propagate", vgpu.ComputeShader, "shaders/propagate.spv")
	c.dynPl = sy.NewPipeline("dynamics")
	c.dynPl.AddShaderFile("dynamics", vgpu.ComputeShader, "shaders/dynamics.spv")

	vars := sy.Vars()
	setp := vars.AddSet()
	sets := vars.AddSet()
	setb := vars.AddSet()

	c.parsV = setp.AddStruct("Params", int(unsafe.Sizeof(gpuParams{})), 1, vgpu.Uniform, vgpu.ComputeShader)
	c.neurV = sets.AddStruct("Neurons", int(unsafe.Sizeof(gpuNeuron{})), nCap, vgpu.Storage, vgpu.ComputeShader)
	c.areaV = sets.AddStruct("Areas", int(unsafe.Sizeof(gpuArea{})), maxAreas, vgpu.Storage, vgpu.ComputeShader)
	c.synV = sets.AddStruct("Syns", int(unsafe.Sizeof(gpuSynapse{})), sCap, vgpu.Storage, vgpu.ComputeShader)
	c.firedV = setb.AddStruct("Fired", 4, fCap, vgpu.Storage, vgpu.ComputeShader)
	c.hashV = setb.AddStruct("Hash", int(unsafe.Sizeof(RangeEntry{})), hCap, vgpu.Storage, vgpu.ComputeShader)
	c.fclIV = setb.AddStruct("FCLInt", 4, nCap, vgpu.Storage, vgpu.ComputeShader)
	c.fclFV = setb.AddStruct("FCL", 4, nCap, vgpu.Storage, vgpu.ComputeShader)
	c.maskV = setb.AddStruct("Mask", 4, mCap, vgpu.Storage, vgpu.ComputeShader)

	setp.ConfigVals(1)
	sets.ConfigVals(1)
	setb.ConfigVals(1)
	sy.Config()
	c.sy = sy
	c.haveSy = true

	c.neurons = make([]gpuNeuron, nCap)
	c.syns = make([]gpuSynapse, sCap)
	c.areas = make([]gpuArea, maxAreas)
	c.fired = make([]uint32, fCap)
	c.hash = make([]RangeEntry, hCap)
	c.fclInt = make([]int32, nCap)
	c.fclF = make([]float32, nCap)
	c.mask = make([]uint32, mCap)
	c.synGen = 0 // force resync
}

// maxAreas bounds the device-side area table.  npu.AreaIndex is 16
// bit so this covers the full id space.
const maxAreas = 1 << 16

// ensure grows the device buffers to fit the current burst, doubling
// so growth amortizes.
func (c *Compute) ensure(n, s, f, h int) {
	if n <= c.nCap && s <= c.sCap && f <= c.fCap && h <= c.hCap {
		return
	}
	grow := func(cur, need int) int {
		for cur < need {
			cur = ints.MaxInt(2*cur, 64)
		}
		return cur
	}
	c.config(grow(c.nCap, n), grow(c.sCap, s), grow(c.fCap, f), grow(c.hCap, h))
}

func upload(v *vgpu.Var, ptr unsafe.Pointer) {
	vl, _ := v.Vals.ValByIdxTry(0)
	vl.CopyFromBytes(ptr)
}

func download(v *vgpu.Var, ptr unsafe.Pointer) {
	vl, _ := v.Vals.ValByIdxTry(0)
	vl.CopyToBytes(ptr)
}

func (c *Compute) packNeurons(ns *npu.NeuronStore[nval.Float32]) int {
	n := ns.Slots()
	for i := 0; i < n; i++ {
		c.neurons[i] = gpuNeuron{
			Vm:     float32(ns.Vm[i]),
			Thr:    float32(ns.Thr[i]),
			Rest:   float32(ns.Rest[i]),
			Leak:   ns.Leak[i],
			Refrac: uint32(ns.RefracPer[i]) | uint32(ns.RefracCtr[i])<<16,
			Fire:   uint32(ns.FireCnt[i]) | uint32(ns.FireLimit[i])<<16,
			Snooze: uint32(ns.Snooze[i]),
			Excit:  ns.Excit[i],
			Area:   uint32(ns.Area[i]),
			Flags:  uint32(ns.Flags[i]),
		}
	}
	return n
}

func (c *Compute) packAreas(areas *npu.Areas) {
	for ai := 0; ai < areas.Len(); ai++ {
		ap := areas.At(npu.AreaIndex(ai))
		ga := gpuArea{}
		if ap.UniformPSP {
			ga.UniformPSP = 1
		}
		if ap.FireToRest {
			ga.FireToRest = 1
		}
		c.areas[ai] = ga
	}
}

// syncSyns re-flattens and uploads the synapse buffer when the host
// store has mutated since the last upload.
func (c *Compute) syncSyns(syn *npu.SynapseStore) {
	if c.synGen == syn.Gen() && c.synGen != 0 {
		return
	}
	order := syn.Order()
	for i, si := range order {
		gs := gpuSynapse{
			Dst:  uint32(syn.Dst[si]),
			Wt:   uint32(syn.Wt[si]),
			Cond: uint32(syn.Cond[si]),
		}
		if syn.Flags[si]&npu.SynInhib != 0 {
			gs.Flags = 1
		}
		c.syns[i] = gs
	}
	upload(c.synV, unsafe.Pointer(&c.syns[0]))
	c.synGen = syn.Gen()
}

func (c *Compute) bind() {
	vars := c.sy.Vars()
	vars.BindDynValIdx(0, "Params", 0)
	vars.BindDynValIdx(1, "Neurons", 0)
	vars.BindDynValIdx(1, "Areas", 0)
	vars.BindDynValIdx(1, "Syns", 0)
	vars.BindDynValIdx(2, "Fired", 0)
	vars.BindDynValIdx(2, "Hash", 0)
	vars.BindDynValIdx(2, "FCLInt", 0)
	vars.BindDynValIdx(2, "FCL", 0)
	vars.BindDynValIdx(2, "Mask", 0)
}

// Propagate runs the propagate kernel over the fired set: one thread
// per fired source, each walking its synapse range from the hash and
// accumulating fixed-point contributions atomically.  The integer FCL
// syncs back and folds into the host FCL in float.
func (c *Compute) Propagate(fired []npu.NeuronIndex, syn *npu.SynapseStore, ns *npu.NeuronStore[nval.Float32], areas *npu.Areas, fcl *npu.FCL[nval.Float32]) error {
	if len(fired) == 0 {
		return nil
	}
	c.table.Build(fired, syn)
	c.ensure(ns.Slots(), len(syn.Order()), len(fired), len(c.table.Entries))

	n := c.packNeurons(ns)
	c.packAreas(areas)
	c.syncSyns(syn)
	for i, id := range fired {
		c.fired[i] = uint32(id)
	}
	copy(c.hash, c.table.Entries)
	for i := len(c.table.Entries); i < len(c.hash); i++ {
		c.hash[i] = RangeEntry{Key: EmptyKey}
	}
	for i := range c.fclInt {
		c.fclInt[i] = 0
	}
	pars := gpuParams{
		N:        uint32(n),
		NFired:   uint32(len(fired)),
		HashMask: c.table.Mask(),
		NSyn:     uint32(len(syn.Order())),
	}

	upload(c.parsV, unsafe.Pointer(&pars))
	upload(c.neurV, unsafe.Pointer(&c.neurons[0]))
	upload(c.areaV, unsafe.Pointer(&c.areas[0]))
	upload(c.firedV, unsafe.Pointer(&c.fired[0]))
	upload(c.hashV, unsafe.Pointer(&c.hash[0]))
	upload(c.fclIV, unsafe.Pointer(&c.fclInt[0]))
	c.sy.Mem.SyncToGPU()

	c.bind()
	c.sy.CmdResetBindVars(c.sy.CmdPool.Buff, 0)
	c.propPl.RunComputeWait(c.sy.CmdPool.Buff, len(fired), 1, 1)

	c.sy.Mem.SyncValIdxFmGPU(2, "FCLInt", 0)
	download(c.fclIV, unsafe.Pointer(&c.fclInt[0]))

	var z nval.Float32
	for i := 0; i < n; i++ {
		if v := c.fclInt[i]; v != 0 {
			fcl.Add(npu.NeuronIndex(i), z.FromFloat32(float32(v)/fclScale))
		}
	}
	return nil
}

// ApplyDynamics runs the dynamics kernel over every neuron slot and
// decompresses the fired bitmask into ascending ids.
func (c *Compute) ApplyDynamics(fcl *npu.FCL[nval.Float32], ns *npu.NeuronStore[nval.Float32], areas *npu.Areas, burst uint64, out []npu.NeuronIndex) ([]npu.NeuronIndex, error) {
	n := ns.Slots()
	if n == 0 {
		return out, nil
	}
	c.ensure(n, 0, 1, 64)

	c.packNeurons(ns)
	c.packAreas(areas)
	acc := fcl.Acc()
	for i := 0; i < n; i++ {
		c.fclF[i] = float32(acc[i])
	}
	for i := range c.mask {
		c.mask[i] = 0
	}
	pars := gpuParams{
		N:       uint32(n),
		BurstLo: uint32(burst),
		BurstHi: uint32(burst >> 32),
	}

	upload(c.parsV, unsafe.Pointer(&pars))
	upload(c.neurV, unsafe.Pointer(&c.neurons[0]))
	upload(c.areaV, unsafe.Pointer(&c.areas[0]))
	upload(c.fclFV, unsafe.Pointer(&c.fclF[0]))
	upload(c.maskV, unsafe.Pointer(&c.mask[0]))
	c.sy.Mem.SyncToGPU()

	c.bind()
	c.sy.CmdResetBindVars(c.sy.CmdPool.Buff, 0)
	c.dynPl.RunComputeWait(c.sy.CmdPool.Buff, n, 1, 1)

	c.sy.Mem.SyncValIdxFmGPU(1, "Neurons", 0)
	c.sy.Mem.SyncValIdxFmGPU(2, "Mask", 0)
	download(c.neurV, unsafe.Pointer(&c.neurons[0]))
	download(c.maskV, unsafe.Pointer(&c.mask[0]))

	for i := 0; i < n; i++ {
		gn := &c.neurons[i]
		ns.Vm[i] = nval.Float32(gn.Vm)
		ns.RefracCtr[i] = uint16(gn.Refrac >> 16)
		ns.FireCnt[i] = uint16(gn.Fire & 0xFFFF)
	}
	for i := 0; i < n; i++ {
		if c.mask[i>>5]&(1<<uint(i&31)) != 0 {
			out = append(out, npu.NeuronIndex(i))
		}
	}
	return out, nil
}
