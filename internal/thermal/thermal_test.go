package thermal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEngineStartsAtDefaults(t *testing.T) {
	e := NewEngine(1)
	s := e.State()
	assert.Equal(t, 25.0, s.BT)
	assert.Equal(t, 25.0, s.ET)
	assert.Equal(t, 50.0, s.Airflow)
	assert.Equal(t, 50.0, s.Drum)
}

func TestSetControlRecognizedAliases(t *testing.T) {
	e := NewEngine(1)
	e.SetControl("burner", 80)
	assert.Equal(t, 80.0, e.State().Burner)

	e.SetControl("gas2", 40)
	assert.Equal(t, 40.0, e.State().Burner)

	e.SetControl("airflow", 60)
	assert.Equal(t, 60.0, e.State().Airflow)

	e.SetControl("drum", 30)
	assert.Equal(t, 30.0, e.State().Drum)
}

func TestSetControlIsCaseInsensitive(t *testing.T) {
	e := NewEngine(1)
	e.SetControl("BURNER", 70)
	assert.Equal(t, 70.0, e.State().Burner)

	e.SetControl("Airflow", 55)
	assert.Equal(t, 55.0, e.State().Airflow)
}

func TestSetControlIgnoresUnknownChannel(t *testing.T) {
	e := NewEngine(1)
	before := e.State()
	e.SetControl("totally_unknown", 999)
	assert.Equal(t, before, e.State())
}

func TestStepWithBurnerOnRaisesET(t *testing.T) {
	e := NewEngine(42)
	e.SetControl("burner", 100)
	e.SetControl("airflow", 0)

	start := e.State().ET
	var last State
	for i := 0; i < 20; i++ {
		last = e.Step(1.0)
	}
	assert.Greater(t, last.ET, start)
}

func TestStepClampsToValidRange(t *testing.T) {
	e := NewEngine(7)
	e.SetControl("burner", 100)
	e.SetControl("airflow", 0)

	for i := 0; i < 10000; i++ {
		s := e.Step(5.0)
		assert.LessOrEqual(t, s.ET, 350.0)
		assert.GreaterOrEqual(t, s.ET, 0.0)
		assert.LessOrEqual(t, s.BT, 350.0)
		assert.GreaterOrEqual(t, s.BT, 0.0)
	}
}

func TestStepIsDeterministicForAFixedSeed(t *testing.T) {
	e1 := NewEngine(99)
	e2 := NewEngine(99)
	e1.SetControl("burner", 50)
	e2.SetControl("burner", 50)

	for i := 0; i < 5; i++ {
		s1 := e1.Step(1.0)
		s2 := e2.Step(1.0)
		assert.Equal(t, s1, s2)
	}
}
