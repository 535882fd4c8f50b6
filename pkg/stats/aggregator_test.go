package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/scheduler"
)

func TestAggregator_HappyPath(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	require.NoError(t, store.Write("run1", "03_initial", []scheduler.Record{
		{Model: "m1", Ms: 100, Error: false},
		{Model: "m2", Ms: 200, Error: false},
		{Model: "m3", Ms: 50, Error: true},
	}))
	require.NoError(t, store.Write("run1", "04_meta", []scheduler.Record{
		{Model: "m1", Ms: 150, Error: false},
		{Model: "m2", Ms: 250, Error: false},
	}))
	require.NoError(t, store.Write("run1", "05_ultrai", map[string]any{
		"model": "m1", "ms": 500,
	}))

	a := NewAggregator(store)
	s, err := a.Aggregate("run1")
	require.NoError(t, err)

	assert.Equal(t, 2, s.Initial.Count)
	assert.Equal(t, 150.0, s.Initial.AvgMs)
	assert.Equal(t, 2, s.Meta.Count)
	assert.Equal(t, 200.0, s.Meta.AvgMs)
	assert.Equal(t, 1, s.Ultrai.Count)
	assert.Equal(t, int64(500), s.Ultrai.Ms)
}

func TestAggregator_MissingInputsYieldZeroes(t *testing.T) {
	store := artifact.NewStore(t.TempDir())
	a := NewAggregator(store)

	s, err := a.Aggregate("run1")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Initial.Count)
	assert.Equal(t, 0.0, s.Initial.AvgMs)
	assert.Equal(t, 0, s.Ultrai.Count)
	require.True(t, store.Exists("run1", "stats"))
}
