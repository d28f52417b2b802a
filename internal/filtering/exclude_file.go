package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/matching"
)

type excludeFileFilter struct {
	path    string
	enabled bool
	reason  string
	logger  *zap.Logger
}

// NewExcludeFile creates a filter that removes jobs listed in the exclude file.
// Without a path the filter starts disabled.
func NewExcludeFile(path string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &excludeFileFilter{path: path, enabled: true, logger: logger}
	if path == "" {
		f.Disable("exclude file is not set")
	}
	return f
}

func (f *excludeFileFilter) Name() string { return NameExcludeFile }

func (f *excludeFileFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return f.enabled }

func (f *excludeFileFilter) Apply(_ context.Context, bundles []matching.JobBundle) ([]matching.JobBundle, Step, error) {
	if f.path == "" {
		return bundles, Step{Initial: len(bundles), Left: len(bundles)}, nil
	}

	excluded, err := LoadExcludedFromFile(f.path)
	if err != nil {
		return nil, Step{}, fmt.Errorf("getting excluded jobs from file: %w", err)
	}

	ids := excluded.IDs()
	kept, step, removed := drop(bundles, func(b matching.JobBundle) bool {
		_, skip := ids[b.JobID]
		return !skip
	})

	if len(removed) > 0 {
		f.logger.Info("excluding jobs based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_jobs", removed),
			zap.Int("jobs_left", len(kept)),
		)
	}

	return kept, step, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason, Details: details}
}
