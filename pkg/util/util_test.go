package util

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zap.InfoLevel, lvl)

	lvl, err = ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zap.DebugLevel, lvl)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "market.log")
	logger, err := NewLoggerWithFile(path, zap.InfoLevel)
	require.NoError(t, err)
	logger.Sugar().Infow("hello", "k", 1)
	_ = logger.Sync()
	assert.FileExists(t, path)
}

func TestManualClock(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewManualClock(start)

	immediate := c.After(0)
	select {
	case <-immediate:
	default:
		t.Fatal("zero duration timer should fire at once")
	}

	ch := c.After(time.Second)
	c.Advance(500 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("fired early")
	default:
	}
	assert.Equal(t, 1, c.Waiters())

	c.Advance(500 * time.Millisecond)
	select {
	case at := <-ch:
		assert.Equal(t, start.Add(time.Second), at)
	default:
		t.Fatal("timer did not fire")
	}
	assert.Equal(t, 0, c.Waiters())
}
