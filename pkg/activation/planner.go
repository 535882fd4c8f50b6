package activation

import (
	"fmt"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/ultraierr"
)

// Reason classifies why a cocktail slot did or did not make it into the
// executable set.
type Reason string

const (
	ReasonActive       Reason = "ACTIVE"
	ReasonFallbackOnly Reason = "FALLBACK_ONLY"
	ReasonNotReady     Reason = "NOT_READY"
)

// Quorum is the minimum number of executable slots required to proceed
// past activation (spec section 4.5).
const Quorum = 2

// Slot is one activation decision: the model to use as primary for this
// run and the model to fall back to if it fails.
type Slot struct {
	Primary  string
	Fallback string
	Reason   Reason
}

// Plan is the 02_activate.json schema.
type Plan struct {
	ActiveList []string          `json:"activeList"`
	BackupList []string          `json:"backupList"`
	Quorum     int               `json:"quorum"`
	Reasons    map[string]Reason `json:"reasons"`

	Executable []Slot `json:"-"`
}

// Planner is the Activation Planner (spec section 4.5): it intersects a
// cocktail's primaries/fallbacks against the READY set and enforces the
// pluralism quorum.
type Planner struct {
	store *artifact.Store
}

// NewPlanner constructs a Planner bound to an artifact store.
func NewPlanner(store *artifact.Store) *Planner {
	return &Planner{store: store}
}

// readySet builds a membership set from the READY list.
func readySet(readyList []string) map[string]bool {
	set := make(map[string]bool, len(readyList))
	for _, id := range readyList {
		set[id] = true
	}
	return set
}

// Plan computes ACTIVE = READY ∩ COCKTAIL-primary, pairs fallbacks, and
// enforces quorum, writing 02_activate.json. Fails with
// ultraierr.ErrActiveLLM if fewer than Quorum slots are executable.
func (p *Planner) Plan(runID string, cocktail config.Cocktail, readyList []string) (*Plan, error) {
	ready := readySet(readyList)

	reasons := make(map[string]Reason, cocktail.K())
	var executable []Slot

	for i := 0; i < cocktail.K(); i++ {
		primary := cocktail.Primaries[i]
		fallback := cocktail.Fallbacks[i]

		switch {
		case ready[primary]:
			slot := Slot{Primary: primary, Fallback: fallback, Reason: ReasonActive}
			reasons[primary] = ReasonActive
			executable = append(executable, slot)
		case ready[fallback]:
			slot := Slot{Primary: fallback, Fallback: fallback, Reason: ReasonFallbackOnly}
			reasons[fallback] = ReasonFallbackOnly
			executable = append(executable, slot)
		default:
			reasons[primary] = ReasonNotReady
		}
	}

	if len(executable) < Quorum {
		return nil, fmt.Errorf("%w: only %d executable slots, need %d", ultraierr.ErrActiveLLM, len(executable), Quorum)
	}

	activeList := make([]string, len(executable))
	backupList := make([]string, len(executable))
	for i, s := range executable {
		activeList[i] = s.Primary
		backupList[i] = s.Fallback
	}

	plan := &Plan{
		ActiveList: activeList,
		BackupList: backupList,
		Quorum:     Quorum,
		Reasons:    reasons,
		Executable: executable,
	}

	if err := p.store.Write(runID, "02_activate", plan); err != nil {
		return nil, err
	}
	return plan, nil
}
