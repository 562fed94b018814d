package server

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroom/cardroom/internal/game"
	"github.com/cardroom/cardroom/internal/randutil"
)

type nullSink struct{}

func (nullSink) Broadcast(*game.View) {}
func (nullSink) PlaySound(string)     {}

func TestRegistryCreatesLazily(t *testing.T) {
	created := 0
	r := NewRegistry(func(key string) *game.Session {
		created++
		return game.NewSession(log.New(io.Discard), quartz.NewMock(t), nullSink{}, randutil.New(1), game.DefaultRules())
	})

	assert.Nil(t, r.Get("t1"), "no session before first reference")

	first := r.GetOrCreate("t1")
	require.NotNil(t, first)
	assert.Equal(t, 1, created)

	assert.Same(t, first, r.GetOrCreate("t1"), "same key resolves the same session")
	assert.Same(t, first, r.Get("t1"))
	assert.Equal(t, 1, created)

	other := r.GetOrCreate("t2")
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, created)
}
