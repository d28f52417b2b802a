package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spigell/cv-matcher/internal/headhunter"
)

// VacancyClient is the part of the hh.ru client the source needs.
type VacancyClient interface {
	Search(ctx context.Context, params *headhunter.SearchParams) (*headhunter.Vacancies, error)
	Vacancy(ctx context.Context, id string) (*headhunter.Vacancy, error)
}

type HeadhunterSource struct {
	client  VacancyClient
	params  *headhunter.SearchParams
	limiter *rate.Limiter
	workers int
	logger  *zap.Logger
}

// NewHeadhunterSource builds a source that searches vacancies and loads their
// full descriptions. requestsPerSecond <= 0 disables rate limiting.
func NewHeadhunterSource(client VacancyClient, params *headhunter.SearchParams, requestsPerSecond float64, workers int, logger *zap.Logger) *HeadhunterSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = defaultWorkers
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &HeadhunterSource{
		client:  client,
		params:  params,
		limiter: rate.NewLimiter(limit, 1),
		workers: workers,
		logger:  logger,
	}
}

// Jobs returns every active vacancy matching the search. When the details of
// a vacancy cannot be loaded its search snippet is used instead.
func (s *HeadhunterSource) Jobs(ctx context.Context) ([]Job, error) {
	vacancies, err := s.client.Search(ctx, s.params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if archived := vacancies.Active(); len(archived) > 0 {
		s.logger.Info("skipping archived vacancies", zap.Strings("ids", archived))
	}
	s.logger.Info("getting vacancies", zap.Int("count", vacancies.Len()))

	jobs := make([]Job, vacancies.Len())
	var mu sync.Mutex
	failed := 0

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, item := range vacancies.Items {
		g.Go(func() error {
			if err := s.limiter.Wait(gCtx); err != nil {
				return err
			}

			full, err := s.client.Vacancy(gCtx, item.ID)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				s.logger.Warn("getting vacancy details, using search snippet", zap.String("vacancy_id", item.ID), zap.Error(err))

				mu.Lock()
				failed++
				mu.Unlock()

				full = item
			}

			jobs[i] = FromVacancy(full)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failed > 0 {
		s.logger.Warn("some vacancies were indexed from snippets", zap.Int("count", failed))
	}

	return jobs, nil
}

// FromVacancy converts an hh.ru vacancy into a job. HTML is reduced to text.
func FromVacancy(v *headhunter.Vacancy) Job {
	summary := joinNonEmpty(" ",
		HTMLText(v.Snippet.Requirement),
		HTMLText(v.Snippet.Responsibility),
	)
	if summary == "" {
		summary = strings.TrimSpace(v.Name)
	}

	description := HTMLText(v.Description)
	if skills := v.Skills(); len(skills) > 0 {
		description = joinNonEmpty("\n\n", description, "Key skills: "+strings.Join(skills, ", ")+".")
	}

	return Job{
		ID:          v.ID,
		Title:       strings.TrimSpace(v.Name),
		Company:     strings.TrimSpace(v.Employer.Name),
		URL:         v.AlternateURL,
		Summary:     summary,
		Description: description,
		Location:    strings.TrimSpace(v.Area.Name),
		Remote:      v.IsRemote(),
		JobType:     jobType(v.Employment.ID),
	}
}

func jobType(employment string) string {
	switch employment {
	case headhunter.EmploymentFull:
		return JobTypeFullTime
	case headhunter.EmploymentPart:
		return JobTypePartTime
	case headhunter.EmploymentProject:
		return JobTypeContract
	case headhunter.EmploymentProbation:
		return JobTypeInternship
	default:
		return ""
	}
}

// HTMLText extracts readable text from an HTML fragment. Block elements become
// paragraphs and list items get a bullet, so the segmenter sees the structure.
func HTMLText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("li").PrependHtml("• ")
	doc.Find("p, div, li, ul, ol, h1, h2, h3, h4, h5, h6").AppendHtml("\n\n")

	return normalizeSpace(doc.Text())
}

// normalizeSpace collapses runs of spaces inside lines and keeps at most one
// blank line between paragraphs.
func normalizeSpace(text string) string {
	var paragraphs []string
	var lines []string

	flush := func() {
		if len(lines) > 0 {
			paragraphs = append(paragraphs, strings.Join(lines, "\n"))
			lines = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
