// Copyright (c) 2026, The FEAGI Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"log/slog"
	"math/rand"

	"github.com/feagi/feagi-core-sub002/config"
	"github.com/feagi/feagi-core-sub002/npu"
	"github.com/feagi/feagi-core-sub002/nval"
)

// seedPopulations builds the demo population each configured area
// declares, standing in for the external neurogenesis collaborator.
// Seeded rand makes topology reproducible run to run.
func seedPopulations[T nval.Value[T]](np *npu.NPU[T], cfg *config.Config) error {
	for i := range cfg.Areas {
		ac := &cfg.Areas[i]
		if ac.Population == nil {
			continue
		}
		if err := seedArea(np, ac.Name, ac.Population); err != nil {
			return err
		}
	}
	return nil
}

func seedArea[T nval.Value[T]](np *npu.NPU[T], area string, p *config.PopulationConfig) error {
	ai, err := np.Areas.ByName(area)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(p.Seed))

	// lay neurons out on a cube just large enough to hold them
	side := 1
	for side*side*side < p.Neurons {
		side++
	}
	specs := make([]npu.NeuronSpec, p.Neurons)
	for i := range specs {
		specs[i] = npu.NeuronSpec{
			Threshold:        float32(p.Threshold),
			Resting:          float32(p.Resting),
			Leak:             float32(p.Leak),
			RefractoryPeriod: uint16(p.Refractory),
			FireLimit:        uint16(p.FireLimit),
			Snooze:           uint16(p.Snooze),
			Excitability:     float32(p.Excitability),
			Area:             ai,
			Pos: npu.Coord{
				X: int16(i % side),
				Y: int16(i / side % side),
				Z: int16(i / (side * side)),
			},
		}
	}
	ids, err := np.AddNeurons(specs)
	if err != nil {
		return err
	}

	if p.FanOut == 0 {
		slog.Debug("area seeded without synapses", "area", area, "neurons", len(ids))
		return nil
	}
	syns := make([]npu.SynapseSpec, 0, p.Neurons*p.FanOut)
	for _, src := range ids {
		for f := 0; f < p.FanOut; f++ {
			dst := ids[rng.Intn(len(ids))]
			for dst == src {
				dst = ids[rng.Intn(len(ids))]
			}
			spec := npu.SynapseSpec{
				Src:         src,
				Dst:         dst,
				Weight:      uint8(p.Weight),
				Conductance: uint8(p.Conductance),
			}
			if p.InhibitoryEvery > 0 && len(syns)%p.InhibitoryEvery == 0 {
				spec.Inhibitory = true
			}
			syns = append(syns, spec)
		}
	}
	if _, err := np.AddSynapses(syns); err != nil {
		return err
	}
	slog.Debug("area seeded", "area", area, "neurons", len(ids), "synapses", len(syns))
	return nil
}
