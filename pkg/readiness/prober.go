package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/ultraierr"
)

// modelLister is the subset of gateway.Client the prober depends on,
// kept narrow so tests can fake it without a real HTTP server.
type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Prober is the Readiness Prober (spec section 4.3): it fetches the
// upstream model catalog and emits the READY set as 00_ready.json.
type Prober struct {
	gateway modelLister
	store   *artifact.Store
}

// NewProber constructs a Prober bound to a gateway client and artifact store.
func NewProber(gateway modelLister, store *artifact.Store) *Prober {
	return &Prober{gateway: gateway, store: store}
}

// readyArtifact is the 00_ready.json schema.
type readyArtifact struct {
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	ReadyList []string  `json:"readyList"`
}

// Probe fetches the model catalog, writes 00_ready.json, and returns the
// READY set. Fails with ErrSystemReadiness if the gateway is unreachable,
// credentials are rejected, or fewer than 2 models are reported.
func (p *Prober) Probe(ctx context.Context, runID string) ([]string, error) {
	log := slog.With("run_id", runID, "stage", "readiness")

	ids, err := p.gateway.ListModels(ctx)
	if err != nil {
		log.Error("readiness probe failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ultraierr.ErrSystemReadiness, err)
	}

	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: readyList has %d models, need at least 2", ultraierr.ErrSystemReadiness, len(ids))
	}

	art := readyArtifact{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		ReadyList: ids,
	}
	if err := p.store.Write(runID, "00_ready", art); err != nil {
		return nil, err
	}

	log.Info("readiness probe complete", "ready_count", len(ids))
	return ids, nil
}
