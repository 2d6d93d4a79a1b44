package stem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelsCanonicalOrder(t *testing.T) {
	got := Channels()
	want := []string{"vocals", "drums", "bass", "other"}
	require.Len(t, got, Count)
	for i, ch := range got {
		assert.Equal(t, want[i], ch.String())
		assert.Equal(t, Channel(i), ch)
	}
	assert.Equal(t, "Vocals", Vocals.Title())
}

func TestParse(t *testing.T) {
	ch, err := Parse(" Drums ")
	require.NoError(t, err)
	assert.Equal(t, Drums, ch)

	_, err = Parse("vocal")
	assert.True(t, errors.Is(err, ErrUnknownChannel))
}

func TestNewSetRejectsMissingChannel(t *testing.T) {
	_, err := NewSet(map[Channel][]float64{
		Vocals: {1, 2},
		Drums:  {1, 2},
		Bass:   {1, 2},
	})
	assert.True(t, errors.Is(err, ErrMissingChannel))
}

func TestNewSetRejectsLengthMismatch(t *testing.T) {
	_, err := NewSet(map[Channel][]float64{
		Vocals: {1, 2},
		Drums:  {1, 2},
		Bass:   {1, 2, 3},
		Other:  {1, 2},
	})
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestSetMatrixFollowsCanonicalOrder(t *testing.T) {
	s, err := NewSet(map[Channel][]float64{
		Other:  {4},
		Bass:   {3},
		Drums:  {2},
		Vocals: {1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	m := s.Matrix()
	for i, row := range m {
		assert.Equal(t, []float64{float64(i + 1)}, row)
	}
	assert.Nil(t, s.Signal(Channel(9)))
}
