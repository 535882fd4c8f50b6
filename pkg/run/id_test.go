package run

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCLIRunID(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "20260305_143000", NewCLIRunID(ts))
}

func TestNewAPIRunID(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "api_speedy_20260305_143000", NewAPIRunID("SPEEDY", ts))
}

func TestNewAPIRunID_SanitizesCocktail(t *testing.T) {
	ts := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	id := NewAPIRunID("../etc/passwd", ts)
	assert.True(t, Valid(id))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("20260305_143000"))
	assert.True(t, Valid("api_speedy_20260305_143000"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("../etc"))
	assert.False(t, Valid("has space"))
}
