package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastworks/roaster-gateway/internal/catalog"
)

func TestNewAssignsIDWhenMissing(t *testing.T) {
	m, err := New(SavedMachine{Name: "Roaster 1"})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, 3000, m.SamplingIntervalMS)
}

func TestNewPreservesSuppliedID(t *testing.T) {
	m, err := New(SavedMachine{ID: "fixed-id", Name: "Roaster 1"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", m.ID)
}

func TestNewRejectsEmptyName(t *testing.T) {
	_, err := New(SavedMachine{Name: ""})
	assert.Error(t, err)
}

func TestNewRejectsSamplingIntervalOutOfRange(t *testing.T) {
	_, err := New(SavedMachine{Name: "x", SamplingIntervalMS: 100})
	assert.Error(t, err)

	_, err = New(SavedMachine{Name: "x", SamplingIntervalMS: 20000})
	assert.Error(t, err)
}

func TestFromCatalogClonesSliceFieldsIndependently(t *testing.T) {
	model := catalog.Model{
		ID:                 "acme-r1",
		Name:               "Acme R1",
		Protocol:           catalog.ProtocolModbusTCP,
		SamplingIntervalMS: 1000,
		ExtraChannels:      []catalog.ChannelConfig{{DisplayName: "burner"}},
		Controls:           []catalog.ControlConfig{{DisplayName: "Heat", ChannelID: "heat", CommandTemplate: "writeSingle(1,100,{value})", Max: 100}},
	}
	conn := catalog.ConnectionConfig{TCP: &catalog.TCPConnectionConfig{Host: "10.0.0.5", Port: 502, DeviceID: 1}}

	saved, err := FromCatalog("My Roaster", "acme", model, conn)
	require.NoError(t, err)
	assert.Equal(t, "My Roaster", saved.Name)
	require.NotNil(t, saved.CatalogManufacturerID)
	assert.Equal(t, "acme", *saved.CatalogManufacturerID)
	require.NotNil(t, saved.CatalogModelID)
	assert.Equal(t, "acme-r1", *saved.CatalogModelID)

	saved.ExtraChannels[0].DisplayName = "mutated"
	assert.Equal(t, "burner", model.ExtraChannels[0].DisplayName)

	saved.Controls[0].DisplayName = "mutated"
	assert.Equal(t, "Heat", model.Controls[0].DisplayName)
}

func TestSavedMachineEqualByIdentityNotValue(t *testing.T) {
	a := SavedMachine{ID: "m1", Name: "A"}
	b := SavedMachine{ID: "m1", Name: "B"}
	c := SavedMachine{ID: "m2", Name: "A"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
