// Package machine holds the user-visible, mutable machine
// configuration — as opposed to catalog.Model, which is the immutable
// archetype a SavedMachine may originate from.
package machine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roastworks/roaster-gateway/internal/catalog"
)

// SavedMachine is a user-configured roasting machine: either derived
// from a catalog.Model (CatalogManufacturerID/CatalogModelID set) with
// optional overrides, or fully custom.
type SavedMachine struct {
	ID   string
	Name string

	CatalogManufacturerID *string
	CatalogModelID        *string

	Protocol           catalog.ProtocolType
	Connection         catalog.ConnectionConfig
	SamplingIntervalMS int

	ET, BT        *catalog.ChannelConfig
	ExtraChannels []catalog.ChannelConfig
	Controls      []catalog.ControlConfig
}

// New assigns an ID if one was not supplied and validates the result.
func New(m SavedMachine) (SavedMachine, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Name == "" {
		return SavedMachine{}, fmt.Errorf("machine: name must not be empty")
	}
	if m.SamplingIntervalMS == 0 {
		m.SamplingIntervalMS = 3000
	}
	if m.SamplingIntervalMS < 500 || m.SamplingIntervalMS > 10000 {
		return SavedMachine{}, fmt.Errorf("machine: sampling interval %dms out of range [500,10000]", m.SamplingIntervalMS)
	}
	return m, nil
}

// FromCatalog builds a SavedMachine from a catalog archetype. The
// extra-channel and control slices are copied, so replacing an entry
// on the SavedMachine leaves the catalog.Model untouched. ET/BT and the
// register descriptors inside each channel are pointers shared with the
// model, not copies.
func FromCatalog(name string, manufacturerID string, model catalog.Model, connection catalog.ConnectionConfig) (SavedMachine, error) {
	extra := make([]catalog.ChannelConfig, len(model.ExtraChannels))
	copy(extra, model.ExtraChannels)
	controls := make([]catalog.ControlConfig, len(model.Controls))
	copy(controls, model.Controls)

	modelID := model.ID
	mfrID := manufacturerID
	return New(SavedMachine{
		Name:                  name,
		CatalogManufacturerID: &mfrID,
		CatalogModelID:        &modelID,
		Protocol:              model.Protocol,
		Connection:            connection,
		SamplingIntervalMS:    model.SamplingIntervalMS,
		ET:                    model.ET,
		BT:                    model.BT,
		ExtraChannels:         extra,
		Controls:              controls,
	})
}

// Equal compares two machines by identity, per the spec's identity
// equality rule: SavedMachine equality is by ID, not by value.
func (m SavedMachine) Equal(other SavedMachine) bool {
	return m.ID == other.ID
}
