// Command roastctl is a one-shot CLI: it connects to a single catalog
// machine, waits long enough to collect a few samples, then dumps a
// status snapshot and (optionally) an exported roast profile to disk.
// It is a bench/diagnostic tool, not the always-on gateway daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/roastworks/roaster-gateway/internal/catalogfile"
	"github.com/roastworks/roaster-gateway/internal/machine"
	"github.com/roastworks/roaster-gateway/internal/manager"
	"github.com/roastworks/roaster-gateway/internal/output"
	"github.com/roastworks/roaster-gateway/internal/stream"
	"github.com/roastworks/roaster-gateway/pkg/roasterapi"
)

func main() {
	catalogPath := flag.String("catalog", "catalog.json", "path to catalog JSON document")
	modelID := flag.String("model", "", "catalog model id to connect to (required)")
	name := flag.String("name", "", "display name for the connected machine (defaults to the model name)")
	wait := flag.String("wait", "5s", "time to collect samples before snapshotting")
	jsonOut := flag.String("json", "", "path to write the machine snapshot as JSON")
	csvOut := flag.String("csv", "", "path to write the machine snapshot as CSV")
	profileName := flag.String("profile", "", "if set, also export the session as a roast profile under this name")
	profileJSON := flag.String("profile-json", "", "path to write the exported profile as JSON")
	profileCSV := flag.String("profile-csv", "", "path to write the exported profile's temperature trace as CSV")
	flag.Parse()

	if *modelID == "" {
		log.Fatal("roastctl: -model is required")
	}
	if *jsonOut == "" && *csvOut == "" && *profileName == "" {
		log.Fatal("roastctl: nothing to do, set -json, -csv, or -profile")
	}

	if err := run(*catalogPath, *modelID, *name, *wait, *jsonOut, *csvOut, *profileName, *profileJSON, *profileCSV); err != nil {
		log.Fatal(err)
	}
}

func run(catalogPath, modelID, name, waitStr, jsonOut, csvOut, profileName, profileJSON, profileCSV string) error {
	waitDur, err := time.ParseDuration(waitStr)
	if err != nil {
		return fmt.Errorf("roastctl: invalid -wait: %w", err)
	}

	provider, err := catalogfile.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("roastctl: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model, err := provider.Model(ctx, modelID)
	if err != nil {
		return fmt.Errorf("roastctl: %w", err)
	}
	if name == "" {
		name = model.Name
	}

	saved, err := machine.FromCatalog(name, provider.ManufacturerID(modelID), model, model.Connection)
	if err != nil {
		return fmt.Errorf("roastctl: %w", err)
	}

	mgr := manager.New()
	if err := mgr.Connect(ctx, saved); err != nil {
		return fmt.Errorf("roastctl: connect %s: %w", saved.Name, err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgr.Disconnect(disconnectCtx, saved.ID)
	}()

	if profileName != "" {
		mgr.HandleSessionCommand(saved.ID, stream.ActionStartMonitoring, "")
		mgr.HandleSessionCommand(saved.ID, stream.ActionStartRecording, "")
	}

	select {
	case <-time.After(waitDur):
	case <-ctx.Done():
		return ctx.Err()
	}

	if jsonOut != "" || csvOut != "" {
		snap, err := roasterapi.Snapshot(mgr, saved.ID)
		if err != nil {
			return fmt.Errorf("roastctl: %w", err)
		}
		snaps := []roasterapi.MachineSnapshot{snap}
		if jsonOut != "" {
			if err := output.WriteSnapshotsJSON(jsonOut, snaps); err != nil {
				return fmt.Errorf("roastctl: %w", err)
			}
		}
		if csvOut != "" {
			if err := output.WriteSnapshotsCSV(csvOut, snaps); err != nil {
				return fmt.Errorf("roastctl: %w", err)
			}
		}
	}

	if profileName != "" {
		profile, err := roasterapi.ExportProfile(mgr, saved.ID, profileName)
		if err != nil {
			return fmt.Errorf("roastctl: export profile: %w", err)
		}
		if profileJSON != "" {
			if err := output.WriteProfileJSON(profileJSON, profile); err != nil {
				return fmt.Errorf("roastctl: %w", err)
			}
		}
		if profileCSV != "" {
			if err := output.WriteProfileCSV(profileCSV, profile); err != nil {
				return fmt.Errorf("roastctl: %w", err)
			}
		}
	}

	return nil
}
