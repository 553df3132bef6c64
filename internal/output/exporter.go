// Package output writes machine snapshots and finished roast profiles
// to disk for one-shot CLI inspection, the way a bench operator would
// pull a file off a running gateway rather than watch its live stream.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/roastworks/roaster-gateway/pkg/roasterapi"
)

// WriteSnapshotsJSON writes a machine snapshot listing as pretty JSON.
func WriteSnapshotsJSON(path string, snaps []roasterapi.MachineSnapshot) error {
	b, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return fmt.Errorf("output: marshal snapshots: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// WriteSnapshotsCSV flattens a machine snapshot listing to CSV, one
// row per machine.
func WriteSnapshotsCSV(path string, snaps []roasterapi.MachineSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	headers := []string{"machine_id", "machine_name", "driver_name", "driver_state", "session_state", "data_points", "observer_count"}
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("output: write header: %w", err)
	}
	for _, s := range snaps {
		rec := []string{
			s.MachineID,
			s.MachineName,
			s.DriverInfo.Name,
			string(s.DriverState),
			s.SessionState,
			fmt.Sprintf("%d", s.DataPoints),
			fmt.Sprintf("%d", s.ObserverCount),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("output: write record: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteProfileJSON writes one exported roast profile as pretty JSON.
func WriteProfileJSON(path string, profile roasterapi.Profile) error {
	b, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("output: marshal profile: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// WriteProfileCSV flattens a roast profile's temperature trace to CSV.
// Events and control changes are exported separately (WriteProfileJSON
// carries the full structure); the CSV is the trace a roasting-log
// spreadsheet expects.
func WriteProfileCSV(path string, profile roasterapi.Profile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"timestamp_ms", "et", "bt"}); err != nil {
		return fmt.Errorf("output: write header: %w", err)
	}
	for _, p := range profile.Temperatures {
		rec := []string{
			fmt.Sprintf("%.0f", p.TimestampMS),
			fmt.Sprintf("%.2f", p.ET),
			fmt.Sprintf("%.2f", p.BT),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("output: write record: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
