package pvwatts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSystemLosses(t *testing.T) {
	l := DefaultSystemLosses()
	assert.InDelta(t, 11.4182069, l.Total(), 1e-6)
	assert.InDelta(t, 885.8179310, l.Apply(1000), 1e-6)

	soiling, ok := l.Loss(LossSoiling)
	assert.True(t, ok)
	assert.Equal(t, 2.0, soiling)
}

func TestSystemLossesChainMultiplies(t *testing.T) {
	l, err := NewSystemLosses(map[string]float64{"a": 10, "b": 10})
	require.NoError(t, err)

	// 1 - 0.9*0.9, not 10 + 10
	assert.InDelta(t, 19.0, l.Total(), 1e-9)
	assert.InDelta(t, 81.0, l.Apply(100), 1e-9)
}

func TestSystemLossesEmptyTable(t *testing.T) {
	l, err := NewSystemLosses(nil)
	require.NoError(t, err)
	assert.Zero(t, l.Total())
	assert.Equal(t, 42.0, l.Apply(42))
}

func TestSystemLossesRejectsOutOfRange(t *testing.T) {
	_, err := NewSystemLosses(map[string]float64{"soiling": -1, "wiring": 100, "age": 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"soiling"`)
	assert.Contains(t, err.Error(), `"wiring"`)
	assert.NotContains(t, err.Error(), `"age"`)
}

func TestSystemLossesCopiesInput(t *testing.T) {
	in := DefaultLosses()
	l, err := NewSystemLosses(in)
	require.NoError(t, err)

	in[LossSoiling] = 50
	v, _ := l.Loss(LossSoiling)
	assert.Equal(t, 2.0, v)
	assert.InDelta(t, 11.4182069, l.Total(), 1e-6)
}
