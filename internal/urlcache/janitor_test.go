package urlcache

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_StartStop(t *testing.T) {
	c, _ := newTestCache(defaultOpts())
	j := NewJanitor(c, time.Minute, slog.New(slog.DiscardHandler))

	require.NoError(t, j.Start())
	j.Stop()
}

func TestJanitor_DefaultInterval(t *testing.T) {
	c, _ := newTestCache(defaultOpts())
	j := NewJanitor(c, 0, slog.New(slog.DiscardHandler))
	assert.Equal(t, time.Minute, j.interval)
}
