package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/cardroom/internal/randutil"
)

func TestCodesCoversFullSet(t *testing.T) {
	codes := Codes()
	require.Len(t, codes, 52)

	seen := make(map[string]bool)
	for _, code := range codes {
		require.Len(t, code, 2)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestNewDeckDealsAllCardsOnce(t *testing.T) {
	d := New(randutil.New(1))
	require.Equal(t, 52, d.Remaining())

	seen := make(map[string]bool)
	for {
		card, ok := d.Draw()
		if !ok {
			break
		}
		assert.False(t, seen[card.Code], "card %s drawn twice", card.Code)
		assert.NotEmpty(t, card.Image)
		seen[card.Code] = true
	}
	assert.Len(t, seen, 52)
	assert.Equal(t, 0, d.Remaining())

	_, ok := d.Draw()
	assert.False(t, ok, "exhausted deck must not deal")
}

func TestShuffleIsDeterministicPerSeed(t *testing.T) {
	a := New(randutil.New(42))
	b := New(randutil.New(42))
	for range 52 {
		ca, _ := a.Draw()
		cb, _ := b.Draw()
		require.Equal(t, ca, cb)
	}

	c := New(randutil.New(43))
	d := New(randutil.New(42))
	var diff int
	for range 52 {
		cc, _ := c.Draw()
		cd, _ := d.Draw()
		if cc != cd {
			diff++
		}
	}
	assert.Positive(t, diff, "different seeds should shuffle differently")
}
