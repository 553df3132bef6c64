package catalogfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastworks/roaster-gateway/internal/catalog"
)

const validDocument = `{
  "version": 1,
  "manufacturers": [
    {
      "id": "acme",
      "name": "Acme Roasters",
      "country": "US",
      "models": [
        {
          "id": "acme-r1",
          "name": "Acme R1",
          "protocol": "modbus_tcp",
          "sampling_interval_ms": 1000,
          "connection": {"type": "modbus_tcp", "host": "10.0.0.5", "port": 502, "device_id": 1},
          "et": {"name": "ET", "modbus": {"address": 0, "code": 4, "device_id": 1, "divisor": 1}},
          "bt": {"name": "BT", "modbus": {"address": 1, "code": 4, "device_id": 1, "divisor": 1}},
          "controls": [
            {"name": "Burner", "channel": "burner", "command": "writeSingle(1,100,{})", "min": 0, "max": 100, "step": 1, "unit": "%"}
          ]
        },
        {
          "id": "acme-r2-rtu",
          "name": "Acme R2 RTU",
          "protocol": "modbus_rtu",
          "sampling_interval_ms": 1000,
          "connection": {"type": "modbus_rtu", "host": "/dev/ttyUSB0", "baudrate": 9600, "bytesize": 8, "stopbits": 1, "parity": "N", "device_id": 2},
          "et": {"name": "ET", "modbus": {"address": 0, "code": 4, "device_id": 2, "divisor": 1}},
          "bt": {"name": "BT", "modbus": {"address": 1, "code": 4, "device_id": 2, "divisor": 1}}
        }
      ]
    }
  ]
}`

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesModbusTCPAndRTUModels(t *testing.T) {
	path := writeFixture(t, validDocument)
	p, err := Load(path)
	require.NoError(t, err)

	models, err := p.Models(context.Background())
	require.NoError(t, err)
	assert.Len(t, models, 2)

	tcpModel, err := p.Model(context.Background(), "acme-r1")
	require.NoError(t, err)
	assert.Equal(t, catalog.ProtocolModbusTCP, tcpModel.Protocol)
	require.NotNil(t, tcpModel.Connection.TCP)
	assert.Equal(t, "10.0.0.5", tcpModel.Connection.TCP.Host)
	assert.Equal(t, "acme", p.ManufacturerID("acme-r1"))

	rtuModel, err := p.Model(context.Background(), "acme-r2-rtu")
	require.NoError(t, err)
	assert.Equal(t, catalog.ProtocolModbusRTU, rtuModel.Protocol)
	require.NotNil(t, rtuModel.Connection.Serial)
	assert.Equal(t, "/dev/ttyUSB0", rtuModel.Connection.Serial.Port)
	assert.Equal(t, 9600, rtuModel.Connection.Serial.BaudRate)
}

func TestModelReturnsErrorForUnknownID(t *testing.T) {
	path := writeFixture(t, validDocument)
	p, err := Load(path)
	require.NoError(t, err)

	_, err = p.Model(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeFixture(t, "{not json")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownProtocol(t *testing.T) {
	doc := `{"version":1,"manufacturers":[{"id":"acme","name":"Acme","models":[
		{"id":"bad","name":"Bad","protocol":"carrier_pigeon","sampling_interval_ms":1000,
		 "connection":{"type":"modbus_tcp","host":"h","port":502}}
	]}]}`
	path := writeFixture(t, doc)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownConnectionType(t *testing.T) {
	doc := `{"version":1,"manufacturers":[{"id":"acme","name":"Acme","models":[
		{"id":"bad","name":"Bad","protocol":"modbus_tcp","sampling_interval_ms":1000,
		 "connection":{"type":"carrier_pigeon"}}
	]}]}`
	path := writeFixture(t, doc)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
