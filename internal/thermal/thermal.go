// Package thermal implements a first-order thermal simulation used
// by the in-process simulator to produce realistic BT/ET curves from
// burner/airflow/drum control inputs.
package thermal

import (
	"math/rand"
	"strings"
)

const (
	maxBurnerHeat   = 8.0  // °C/s at 100% burner
	airflowCooling  = 0.03 // cooling coefficient per % airflow
	etToBTTransfer  = 0.015
	ambientLoss     = 0.002
	noiseStdDev     = 0.3
	maxTemp         = 350.0
	minTemp         = 0.0
	defaultAmbient  = 25.0
	defaultStartBT  = 25.0
	defaultStartET  = 25.0
	defaultAirflow  = 50.0
	defaultDrum     = 50.0
)

// State is the current state of the thermal simulation.
type State struct {
	BT, ET          float64
	Burner, Airflow float64
	Drum            float64
	Ambient         float64
}

// Engine simulates roaster thermal behaviour. Call Step at regular
// intervals to advance it; SetControl feeds operator setpoints in.
type Engine struct {
	state State
	rng   *rand.Rand
}

// NewEngine builds an engine seeded for reproducible output. Pass 0
// (or any fixed value) in tests for determinism; production callers
// should derive a seed from process entropy.
func NewEngine(seed int64) *Engine {
	return &Engine{
		state: State{
			BT:      defaultStartBT,
			ET:      defaultStartET,
			Airflow: defaultAirflow,
			Drum:    defaultDrum,
			Ambient: defaultAmbient,
		},
		rng: rand.New(rand.NewSource(seed)),
	}
}

// State returns the engine's current thermal state.
func (e *Engine) State() State { return e.state }

// SetControl updates one control input by its catalog channel id.
// Unknown channel ids are ignored — the simulator only models
// burner/airflow/drum, so machines with additional sliders simply
// don't feed them into the thermal model.
func (e *Engine) SetControl(channel string, value float64) {
	channel = strings.ToLower(channel)
	switch channel {
	case "burner", "gas", "gas1", "gas2", "heater", "power", "slider1":
		e.state.Burner = value
	case "air", "airflow", "fan", "cooling", "cooling_air", "slider2":
		e.state.Airflow = value
	case "drum", "slider4":
		e.state.Drum = value
	}
}

// Step advances the simulation by dt seconds and returns the updated
// state. Term order matters: the deterministic update is computed
// first, noise is added to ET and BT independently afterward, then
// both are clamped to the valid range.
func (e *Engine) Step(dt float64) State {
	s := &e.state

	burnerFrac := clamp(s.Burner, 0, 100) / 100.0
	heatInput := maxBurnerHeat * burnerFrac * dt

	airflowFrac := clamp(s.Airflow, 0, 100) / 100.0
	cooling := airflowCooling * airflowFrac * (s.ET - s.Ambient) * dt

	ambientLossTerm := ambientLoss * (s.ET - s.Ambient) * dt

	s.ET += heatInput - cooling - ambientLossTerm

	btTransfer := etToBTTransfer * (s.ET - s.BT) * dt
	s.BT += btTransfer

	s.ET += e.gauss(0, noiseStdDev)
	s.BT += e.gauss(0, noiseStdDev)

	s.ET = clamp(s.ET, minTemp, maxTemp)
	s.BT = clamp(s.BT, minTemp, maxTemp)

	return *s
}

func (e *Engine) gauss(mean, stddev float64) float64 {
	return mean + e.rng.NormFloat64()*stddev
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
