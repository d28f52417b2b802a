package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/matching"
)

// Names of the built-in filters.
const (
	NameCompanies   = "companies"
	NameExcludeFile = "exclude_file"
)

// Filter represents a single filtering step applied to fetched jobs.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, bundles []matching.JobBundle) ([]matching.JobBundle, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
// It reports whether any filter had that name.
func DisableByName(steps []Filter, name, reason string) bool {
	found := false
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
			found = true
		}
	}
	return found
}

// Run executes the supplied filters sequentially.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, bundles []matching.JobBundle) ([]matching.JobBundle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, bundles)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		bundles = next
	}

	return bundles, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// Pipeline plugs a list of filters into the matching engine.
type Pipeline struct {
	steps  []Filter
	logger *zap.Logger
}

func New(steps []Filter, logger *zap.Logger) *Pipeline {
	return &Pipeline{steps: steps, logger: logger}
}

func (p *Pipeline) Apply(ctx context.Context, bundles []matching.JobBundle) ([]matching.JobBundle, error) {
	return Run(ctx, p.logger, p.steps, bundles)
}

// drop keeps the bundles for which keep returns true and reports the step.
func drop(bundles []matching.JobBundle, keep func(matching.JobBundle) bool) ([]matching.JobBundle, Step, []string) {
	kept := make([]matching.JobBundle, 0, len(bundles))
	var dropped []string

	for _, b := range bundles {
		if keep(b) {
			kept = append(kept, b)
			continue
		}
		dropped = append(dropped, b.JobID)
	}

	return kept, Step{Initial: len(bundles), Dropped: len(dropped), Left: len(kept)}, dropped
}
