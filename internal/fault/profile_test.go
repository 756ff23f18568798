package fault

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()

	assert.False(t, p.NetworkReliable)
	assert.True(t, p.MessageDuplication)
	assert.Equal(t, 0.95, p.Probabilities.MessageSent)
	assert.Equal(t, 0.90, p.Probabilities.MessageDuplication)
	assert.Equal(t, 0.05, p.Probabilities.NodeFail)
	assert.Equal(t, 0.70, p.Probabilities.NodeRecover)
	assert.NoError(t, p.Validate())
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Probabilities)
		wantErr string
	}{
		{"zero is allowed", func(p *Probabilities) { p.NodeFail = 0 }, ""},
		{"one is allowed", func(p *Probabilities) { p.MessageSent = 1 }, ""},
		{"negative", func(p *Probabilities) { p.MessageSent = -0.01 }, "message_sent"},
		{"above one", func(p *Probabilities) { p.MessageDuplication = 1.01 }, "message_duplication"},
		{"NaN", func(p *Probabilities) { p.NodeFail = math.NaN() }, "node_fail"},
		{"infinite", func(p *Probabilities) { p.NodeRecover = math.Inf(1) }, "node_recover"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probs := DefaultProbabilities()
			tt.mutate(&probs)

			_, err := NewProfile(false, true, probs)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidProbability)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpectedDistribution(t *testing.T) {
	p := DefaultProfile()
	p.NetworkReliable = true
	dist := p.ExpectedDistribution()
	assert.Zero(t, dist[Lost])
	assert.InDelta(t, 0.9, dist[Delivered], 1e-9)
	assert.InDelta(t, 0.1, dist[Duplicated], 1e-9)

	p = DefaultProfile()
	p.MessageDuplication = false
	dist = p.ExpectedDistribution()
	assert.InDelta(t, 0.05, dist[Lost], 1e-9)
	assert.InDelta(t, 0.95, dist[Delivered], 1e-9)
	assert.Zero(t, dist[Duplicated])
}

func TestSequenceSourceWraps(t *testing.T) {
	s := NewSequenceSource(0.1, 0.2)

	assert.Equal(t, 0.1, s.Float64())
	assert.Equal(t, 0.2, s.Float64())
	assert.Equal(t, 0.1, s.Float64())
	assert.Equal(t, 3, s.Drawn())
}

func TestFixedSourceClamps(t *testing.T) {
	assert.Less(t, NewFixedSource(1).Float64(), 1.0)
	assert.Equal(t, 0.0, NewFixedSource(-3).Float64())
	assert.Equal(t, 0.0, NewFixedSource(math.NaN()).Float64())
}

func TestDeriveSeedIsStable(t *testing.T) {
	assert.Equal(t, DeriveSeed(10, 3), DeriveSeed(10, 3))
	assert.NotEqual(t, DeriveSeed(10, 3), DeriveSeed(10, 4))
	assert.NotEqual(t, DeriveSeed(10, 3), DeriveSeed(11, 3))
}
