package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/matching"
)

type companiesFilter struct {
	companies map[string]struct{}
	names     []string
	enabled   bool
	reason    string
	logger    *zap.Logger
}

// NewCompanies creates a filter that removes jobs of the given companies.
// Names are compared case-insensitively.
func NewCompanies(companies []string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &companiesFilter{
		companies: make(map[string]struct{}, len(companies)),
		enabled:   true,
		logger:    logger,
	}
	for _, name := range companies {
		if key := companyKey(name); key != "" {
			f.companies[key] = struct{}{}
			f.names = append(f.names, strings.TrimSpace(name))
		}
	}

	return f
}

func companyKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (f *companiesFilter) Name() string { return NameCompanies }

func (f *companiesFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *companiesFilter) IsEnabled() bool { return f.enabled }

func (f *companiesFilter) Apply(_ context.Context, bundles []matching.JobBundle) ([]matching.JobBundle, Step, error) {
	if len(f.companies) == 0 {
		return bundles, Step{Initial: len(bundles), Left: len(bundles)}, nil
	}

	kept, step, removed := drop(bundles, func(b matching.JobBundle) bool {
		_, skip := f.companies[companyKey(b.Metadata.String("company_name", "company"))]
		return !skip
	})

	if len(removed) > 0 {
		f.logger.Info("excluding jobs by companies",
			zap.Strings("excluded_companies", f.names),
			zap.Strings("excluded_jobs", removed),
			zap.Int("jobs_left", len(kept)),
		)
	}

	return kept, step, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.names) > 0 {
		details["companies"] = strings.Join(f.names, ",")
	}
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason, Details: details}
}
