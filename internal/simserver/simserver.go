// Package simserver hosts a Modbus TCP endpoint that simulates a
// roasting machine: it seeds a register map from a catalog model and
// steps a thermal engine on the model's own sampling cadence, writing
// updated ET/BT/extra-channel registers back each tick.
package simserver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roastworks/roaster-gateway/internal/catalog"
	"github.com/roastworks/roaster-gateway/internal/modbus"
	"github.com/roastworks/roaster-gateway/internal/regcodec"
	"github.com/roastworks/roaster-gateway/internal/simregmap"
	"github.com/roastworks/roaster-gateway/internal/thermal"
)

// channelValue maps a thermal state to the extra-channel names the
// original simulator echoes it under.
func channelValue(name string, s thermal.State) (float64, bool) {
	switch strings.ToLower(name) {
	case "burner", "gas", "gas1", "gas2", "heater", "power":
		return s.Burner, true
	case "air", "airflow", "fan", "cooling":
		return s.Airflow, true
	case "drum":
		return s.Drum, true
	default:
		return 0, false
	}
}

// Server hosts one simulated machine: a Modbus TCP listener backed by
// an in-memory register store, stepped by a thermal engine.
type Server struct {
	model catalog.Model
	addr  string

	mb     *modbus.Server
	engine *thermal.Engine
	regmap simregmap.Map

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds (but does not start) a simulator server for model,
// listening at addr (host:port).
func New(model catalog.Model, addr string, seed int64) *Server {
	return &Server{
		model:  model,
		addr:   addr,
		engine: thermal.NewEngine(seed),
	}
}

// Start begins listening and spawns the thermal loop goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	srv := modbus.NewServer()
	if err := srv.Listen(s.addr); err != nil {
		return fmt.Errorf("simserver: listen %s: %w", s.addr, err)
	}

	regmap, err := simregmap.Build(srv, s.model, s.engine.State().ET, s.engine.State().BT)
	if err != nil {
		srv.Close()
		return fmt.Errorf("simserver: build register map: %w", err)
	}

	s.mb = srv
	s.regmap = regmap

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.thermalLoop(ctx)

	return nil
}

// Addr returns the address the server was built with. A ":0" port is
// returned as given; it is not resolved to the port the OS assigned.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop tears the listener and thermal loop down, waiting for the loop
// goroutine to exit.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	srv := s.mb
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if srv != nil {
		srv.Close()
	}
}

func (s *Server) thermalLoop(ctx context.Context) {
	defer close(s.done)

	interval := time.Duration(s.model.SamplingIntervalMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dtSeconds := float64(s.model.SamplingIntervalMS) / 1000.0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(dtSeconds)
		}
	}
}

func (s *Server) tick(dtSeconds float64) {
	s.captureControls()
	state := s.engine.Step(dtSeconds)
	s.writeTemperatures(state)
	s.writeExtraChannels(state)
}

// captureControls reads back every control's resolved register (as
// written by a driver exercising the simulator) and feeds it to the
// thermal engine.
func (s *Server) captureControls() {
	for _, c := range s.regmap.Controls {
		raw, err := modbus.GetHoldingRegister(s.mb, c.Address)
		if err != nil {
			continue
		}
		s.engine.SetControl(c.ChannelID, float64(raw))
	}
}

func (s *Server) writeTemperatures(state thermal.State) {
	if s.model.ET != nil && s.model.ET.Modbus != nil {
		s.writeChannel(*s.model.ET.Modbus, state.ET)
	}
	if s.model.BT != nil && s.model.BT.Modbus != nil {
		s.writeChannel(*s.model.BT.Modbus, state.BT)
	}
}

func (s *Server) writeExtraChannels(state thermal.State) {
	for _, ch := range s.model.ExtraChannels {
		if ch.Modbus == nil {
			continue
		}
		val, ok := channelValue(ch.DisplayName, state)
		if !ok {
			continue
		}
		s.writeChannel(*ch.Modbus, val)
	}
}

func (s *Server) writeChannel(cfg catalog.ModbusRegisterConfig, value float64) {
	regs, err := regcodec.Encode(value, cfg)
	if err != nil {
		return
	}
	for i, v := range regs {
		addr := cfg.Address + uint16(i)
		switch cfg.FunctionCode {
		case 3:
			_ = s.mb.SetHoldingRegister(addr, v)
		case 4:
			_ = s.mb.SetInputRegister(addr, v)
		}
	}
}
