// Package cli implements the interactive command-line front end: a
// readline-driven QUERY/COCKTAIL prompt that submits one run to the same
// coordinator.Coordinator the HTTP control plane drives, then polls
// status.json to completion, mirroring the teacher's agsh REPL idiom
// generalized from a bus-driven multi-turn shell down to a single
// run-and-report submission.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/ultrai-run/ultrai/pkg/artifact"
	"github.com/ultrai-run/ultrai/pkg/config"
	"github.com/ultrai-run/ultrai/pkg/coordinator"
	"github.com/ultrai-run/ultrai/pkg/run"
	"github.com/ultrai-run/ultrai/pkg/validate"
)

// pollInterval is how often the Shell re-reads status.json while a run
// is in flight.
const pollInterval = 300 * time.Millisecond

// Shell is the interactive CLI front end. It owns no orchestration logic
// of its own — every run goes through the same Coordinator the HTTP API
// drives, so CLI and API submissions are indistinguishable once queued.
type Shell struct {
	coordinator *coordinator.Coordinator
	store       *artifact.Store
	cocktails   *config.CocktailRegistry

	out io.Writer
}

// New constructs a Shell bound to the shared coordinator, artifact store,
// and cocktail registry.
func New(coord *coordinator.Coordinator, store *artifact.Store, cocktails *config.CocktailRegistry) *Shell {
	return &Shell{coordinator: coord, store: store, cocktails: cocktails, out: os.Stdout}
}

// Run prompts once for QUERY and COCKTAIL, submits the run, polls it to a
// terminal state, and reports the outcome. It returns the process exit
// code the caller should use: 0 on DELIVERED, 1 on FAILED or any local
// error (cancellation, readline failure).
func (s *Shell) Run(ctx context.Context) int {
	historyPath := historyFilePath()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mquery>\033[0m ",
		HistoryFile:     historyPath,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    s.cocktailCompleter(),
	})
	if err != nil {
		// readline unavailable (e.g. not a TTY) — not expected in normal usage.
		fmt.Fprintf(os.Stderr, "readline init error: %v\n", err)
		return 1
	}
	defer rl.Close()

	fmt.Fprintln(s.out, "\033[1mUltrAI\033[0m — multi-model synthesis (Ctrl-D to quit)")

	query, err := s.readLine(rl, "query> ")
	if err != nil {
		return 1
	}
	if strings.TrimSpace(query) == "" {
		fmt.Fprintln(os.Stderr, "error: QUERY must be non-empty")
		return 1
	}

	cocktail, err := s.readLine(rl, "cocktail> ")
	if err != nil {
		return 1
	}
	cocktail = strings.TrimSpace(cocktail)
	if cocktail == "" {
		cocktail = "default"
	}

	runID := run.NewCLIRunID(time.Now())
	raw := validate.Raw{Query: query, Analysis: "Synthesis", Cocktail: cocktail}

	if err := s.coordinator.StartRun(raw, runID); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(s.out, "run %s submitted, waiting for delivery...\n", runID)
	return s.awaitTerminal(ctx, runID)
}

// readLine prompts once via readline. The completer installed at
// construction (cocktailCompleter) only ever offers matches for COCKTAIL
// input; it simply finds nothing to complete while the cursor is on the
// QUERY line, so one Instance serves both prompts.
func (s *Shell) readLine(rl *readline.Instance, prompt string) (string, error) {
	rl.SetPrompt("\033[36m" + prompt + "\033[0m")
	line, err := rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return "", fmt.Errorf("input cancelled")
	}
	if err != nil {
		return "", err
	}
	return line, nil
}

// awaitTerminal polls status.json until the run reaches DELIVERED or
// FAILED (or ctx is cancelled), printing progress and the final outcome.
func (s *Shell) awaitTerminal(ctx context.Context, runID string) int {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastPhase coordinator.State
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "interrupted")
			return 1
		case <-ticker.C:
			var status coordinator.StatusArtifact
			if err := s.store.Read(runID, "status", &status); err != nil {
				continue // status.json not written yet
			}
			if status.CurrentPhase != lastPhase {
				fmt.Fprintf(s.out, "  [%3d%%] %s\n", status.Progress, status.CurrentPhase)
				lastPhase = status.CurrentPhase
			}
			switch status.CurrentPhase {
			case coordinator.StateDelivered:
				fmt.Fprintf(s.out, "\n\033[32mdelivered\033[0m — artifacts under runs/%s\n", runID)
				return 0
			case coordinator.StateFailed:
				fmt.Fprintf(s.out, "\n\033[31mfailed\033[0m at stage %q: %s\n", status.FailedStage, status.Error)
				return 1
			}
		}
	}
}

// cocktailCompleter builds a readline prefix completer offering every
// configured cocktail name, the CLI's one piece of tab-completion per
// the grounding instruction.
func (s *Shell) cocktailCompleter() *readline.PrefixCompleter {
	names := s.cocktails.Names()
	items := make([]readline.PrefixCompleterInterface, len(names))
	for i, n := range names {
		items[i] = readline.PcItem(n)
	}
	return readline.NewPrefixCompleter(items...)
}

// historyFilePath mirrors agsh's ~/.cache/<app>/history convention.
func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	dir := filepath.Join(home, ".cache", "ultrai")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "history")
}
