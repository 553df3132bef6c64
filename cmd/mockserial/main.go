// Command mockserial is an RTU bench harness: it loads one catalog
// model, seeds a Modbus register map from it, steps the same thermal
// engine the TCP simulator uses, and serves the result as Modbus RTU
// over a serial port (real or a socat-spawned virtual pair).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/roastworks/roaster-gateway/internal/catalog"
	"github.com/roastworks/roaster-gateway/internal/catalogfile"
	"github.com/roastworks/roaster-gateway/internal/modbus"
	"github.com/roastworks/roaster-gateway/internal/regcodec"
	"github.com/roastworks/roaster-gateway/internal/serialutil"
	"github.com/roastworks/roaster-gateway/internal/simregmap"
	"github.com/roastworks/roaster-gateway/internal/thermal"
)

func main() {
	catalogPath := flag.String("catalog", "catalog.json", "path to catalog JSON document")
	modelID := flag.String("model", "", "catalog model id to simulate (required)")
	port := flag.String("port", "", "serial device path (overrides the model's configured port; required when -spawn-socat is set)")
	spawnSocat := flag.Bool("spawn-socat", false, "spawn a virtual serial pair via socat and serve on its link side")
	peer := flag.String("peer", "", "peer device path for the socat pair's client side (required with -spawn-socat)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "thermal engine PRNG seed")
	flag.Parse()

	if *modelID == "" {
		log.Fatal("mockserial: -model is required")
	}

	if err := run(*catalogPath, *modelID, *port, *peer, *spawnSocat, *seed); err != nil {
		log.Fatal(err)
	}
}

func run(catalogPath, modelID, port, peer string, spawnSocat bool, seed int64) error {
	provider, err := catalogfile.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("mockserial: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := provider.Model(ctx, modelID)
	if err != nil {
		return fmt.Errorf("mockserial: %w", err)
	}
	if model.Connection.Serial == nil {
		return fmt.Errorf("mockserial: model %q has no serial/RTU connection configured", modelID)
	}
	sc := *model.Connection.Serial
	if port != "" {
		sc.Port = port
	}

	var socatCmd *exec.Cmd
	if spawnSocat {
		if sc.Port == "" || peer == "" {
			return fmt.Errorf("mockserial: -spawn-socat requires -port and -peer")
		}
		socatCmd = serialutil.BuildSocatPairCmd(ctx, serialutil.SocatPair{Link: sc.Port, Peer: peer})
		socatCmd.Stdout = os.Stdout
		socatCmd.Stderr = os.Stderr
		if err := socatCmd.Start(); err != nil {
			return fmt.Errorf("mockserial: start socat: %w", err)
		}
		log.Printf("mockserial: spawned socat pair link=%s peer=%s (pid=%d)", sc.Port, peer, socatCmd.Process.Pid)
		time.Sleep(400 * time.Millisecond)
	}

	rw, err := serialutil.OpenSerial(serialutil.SerialParams{
		Address:  sc.Port,
		BaudRate: sc.BaudRate,
		DataBits: sc.DataBits,
		StopBits: sc.StopBits,
		Parity:   sc.Parity,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("mockserial: open serial %s: %w", sc.Port, err)
	}
	defer rw.Close()

	mb := modbus.NewServer()
	engine := thermal.NewEngine(seed)
	regmap, err := simregmap.Build(mb, model, engine.State().ET, engine.State().BT)
	if err != nil {
		return fmt.Errorf("mockserial: build register map: %w", err)
	}

	stop2 := make(chan struct{})
	go thermalLoop(ctx, mb, engine, regmap, model, stop2)

	log.Printf("mockserial: %s serving RTU on %s slave=%d baud=%d", model.ID, sc.Port, sc.DeviceID, sc.BaudRate)

	done := make(chan struct{})
	go func() { defer close(done); serveRTU(rw, mb, uint8(sc.DeviceID)) }()

	<-ctx.Done()
	close(stop2)
	_ = rw.Close()
	<-done

	if socatCmd != nil && socatCmd.Process != nil {
		_ = socatCmd.Process.Signal(syscall.SIGTERM)
		killed := make(chan struct{})
		go func() { _ = socatCmd.Wait(); close(killed) }()
		select {
		case <-killed:
		case <-time.After(2 * time.Second):
			_ = socatCmd.Process.Kill()
		}
	}
	return nil
}

func thermalLoop(ctx context.Context, mb *modbus.Server, engine *thermal.Engine, regmap simregmap.Map, model catalog.Model, stop <-chan struct{}) {
	interval := time.Duration(model.SamplingIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	dtSeconds := float64(model.SamplingIntervalMS) / 1000.0

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			tick(mb, engine, regmap, model, dtSeconds)
		}
	}
}

func tick(mb *modbus.Server, engine *thermal.Engine, regmap simregmap.Map, model catalog.Model, dtSeconds float64) {
	for _, c := range regmap.Controls {
		raw, err := modbus.GetHoldingRegister(mb, c.Address)
		if err != nil {
			continue
		}
		engine.SetControl(c.ChannelID, float64(raw))
	}

	state := engine.Step(dtSeconds)
	writeTemperatures(mb, model, state)
}

func writeTemperatures(mb *modbus.Server, model catalog.Model, state thermal.State) {
	if model.ET != nil && model.ET.Modbus != nil {
		writeChannel(mb, *model.ET.Modbus, state.ET)
	}
	if model.BT != nil && model.BT.Modbus != nil {
		writeChannel(mb, *model.BT.Modbus, state.BT)
	}
}

func writeChannel(mb *modbus.Server, cfg catalog.ModbusRegisterConfig, value float64) {
	regs, err := regcodec.Encode(value, cfg)
	if err != nil {
		return
	}
	for i, v := range regs {
		switch cfg.FunctionCode {
		case 3:
			_ = mb.SetHoldingRegister(cfg.Address+uint16(i), v)
		case 4:
			_ = mb.SetInputRegister(cfg.Address+uint16(i), v)
		}
	}
}

// serveRTU reads length-ambiguous RTU frames off rw (a serial port or
// a TCP connection standing in for one), validates the CRC, and
// drives mb's register store and function-code dispatch via HandlePDU
// so the exact same logic the TCP simulator uses answers RTU requests.
func serveRTU(rw io.ReadWriter, mb *modbus.Server, expectSlave uint8) {
	for {
		head := make([]byte, 2)
		if _, err := io.ReadFull(rw, head); err != nil {
			return
		}
		address := head[0]
		function := head[1]

		var reqNoCRC []byte
		switch function {
		case 0x01, 0x02, 0x03, 0x04, 0x05, 0x06:
			rest := make([]byte, 6) // start(2) + qty/value(2) + crc(2)
			if _, err := io.ReadFull(rw, rest); err != nil {
				return
			}
			reqNoCRC = append([]byte{address, function}, rest[:4]...)
			if !crcOK(reqNoCRC, rest[4:6]) || (expectSlave != 0 && address != expectSlave) {
				continue
			}
		case 0x0F, 0x10:
			hdr := make([]byte, 5) // start(2) + qty(2) + bytecount(1)
			if _, err := io.ReadFull(rw, hdr); err != nil {
				return
			}
			payload := make([]byte, int(hdr[4]))
			if _, err := io.ReadFull(rw, payload); err != nil {
				return
			}
			crcBytes := make([]byte, 2)
			if _, err := io.ReadFull(rw, crcBytes); err != nil {
				return
			}
			reqNoCRC = append(append([]byte{address, function}, hdr...), payload...)
			if !crcOK(reqNoCRC, crcBytes) || (expectSlave != 0 && address != expectSlave) {
				continue
			}
		default:
			return
		}

		pdu := reqNoCRC[1:]
		respPDU := mb.HandlePDU(pdu)
		writeRTUResponse(rw, address, respPDU)
	}
}

func writeRTUResponse(rw io.ReadWriter, address byte, respPDU []byte) {
	resp := make([]byte, 0, 1+len(respPDU)+2)
	resp = append(resp, address)
	resp = append(resp, respPDU...)
	crc := crc16Modbus(resp)
	crcTail := make([]byte, 2)
	crcTail[0] = byte(crc)
	crcTail[1] = byte(crc >> 8)
	resp = append(resp, crcTail...)
	_, _ = rw.Write(resp)
}

func crcOK(frameNoCRC, crcBytes []byte) bool {
	want := uint16(crcBytes[0]) | uint16(crcBytes[1])<<8
	return crc16Modbus(frameNoCRC) == want
}

// crc16Modbus computes the Modbus RTU CRC16 over data.
func crc16Modbus(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc = crc >> 1
			}
		}
	}
	return crc
}
