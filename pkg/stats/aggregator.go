// Package stats implements the Statistics Aggregator: per-round counts
// and average latencies read back from the round artifacts.
package stats

import (
	"log/slog"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/scheduler"
)

// RoundStats is one round's entry in stats.json.
type RoundStats struct {
	Count int     `json:"count"`
	AvgMs float64 `json:"avg_ms"`
}

// UltraiStats is the ULTRAI entry in stats.json (always count 1 on success).
type UltraiStats struct {
	Count int   `json:"count"`
	Ms    int64 `json:"ms"`
}

// Stats is the stats.json schema.
type Stats struct {
	Initial RoundStats  `json:"INITIAL"`
	Meta    RoundStats  `json:"META"`
	Ultrai  UltraiStats `json:"ULTRAI"`
}

// Aggregator is the Statistics Aggregator (spec section 4.8).
type Aggregator struct {
	store *artifact.Store
}

// NewAggregator constructs an Aggregator bound to an artifact store.
func NewAggregator(store *artifact.Store) *Aggregator {
	return &Aggregator{store: store}
}

type ultraRecord struct {
	Model string `json:"model"`
	Ms    int64  `json:"ms"`
}

// Aggregate reads 03_initial.json, 04_meta.json, and 05_ultrai.json and
// writes stats.json. Missing inputs produce zero values rather than
// failing the run.
func (a *Aggregator) Aggregate(runID string) (*Stats, error) {
	log := slog.With("run_id", runID, "stage", "stats")

	s := &Stats{
		Initial: roundStatsFrom(a.readRound(runID, "03_initial")),
		Meta:    roundStatsFrom(a.readRound(runID, "04_meta")),
	}

	var ultra ultraRecord
	if err := a.store.Read(runID, "05_ultrai", &ultra); err == nil {
		s.Ultrai = UltraiStats{Count: 1, Ms: ultra.Ms}
	}

	if err := a.store.Write(runID, "stats", s); err != nil {
		return nil, err
	}

	log.Info("stats aggregated", "initial_count", s.Initial.Count, "meta_count", s.Meta.Count)
	return s, nil
}

func (a *Aggregator) readRound(runID, name string) []scheduler.Record {
	var records []scheduler.Record
	if err := a.store.Read(runID, name, &records); err != nil {
		return nil
	}
	return records
}

func roundStatsFrom(records []scheduler.Record) RoundStats {
	var count int
	var sum int64
	for _, r := range records {
		if r.Error {
			continue
		}
		count++
		sum += r.Ms
	}
	if count == 0 {
		return RoundStats{}
	}
	return RoundStats{Count: count, AvgMs: float64(sum) / float64(count)}
}
