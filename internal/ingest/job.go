package ingest

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Metadata keys written next to every JD chunk.
const (
	KeyJobID    = "job_id"
	KeyJobURL   = "job_url"
	KeyCompany  = "company_name"
	KeySummary  = "summary"
	KeyText     = "text"
	KeyLocation = "location"
	KeyIsRemote = "is_remote"
	KeyJobType  = "job_type"
	KeyTitle    = "title"
)

const (
	JobTypeFullTime   = "fulltime"
	JobTypePartTime   = "parttime"
	JobTypeContract   = "contract"
	JobTypeInternship = "internship"
)

// Job is one job description as it enters the index.
type Job struct {
	ID          string `yaml:"id" json:"id" validate:"required,excludes=__"`
	Title       string `yaml:"title" json:"title"`
	Company     string `yaml:"company" json:"company"`
	URL         string `yaml:"url" json:"url" validate:"omitempty,url"`
	Summary     string `yaml:"summary" json:"summary"`
	Description string `yaml:"description" json:"description"`
	Location    string `yaml:"location" json:"location"`
	Remote      bool   `yaml:"remote" json:"remote"`
	JobType     string `yaml:"job_type" json:"job_type" validate:"omitempty,oneof=fulltime parttime contract internship"`
}

var validate = validator.New()

func (j Job) Validate() error {
	if err := validate.Struct(j); err != nil {
		return fmt.Errorf("job %q: %w", j.ID, err)
	}
	return nil
}

// Body is the text that gets segmented: the description, or the summary when
// there is no description.
func (j Job) Body() string {
	if body := strings.TrimSpace(j.Description); body != "" {
		return body
	}
	return strings.TrimSpace(j.Summary)
}

// ChunkID names the n-th chunk of a job.
func ChunkID(jobID string, n int) string {
	return fmt.Sprintf("%s__%d", jobID, n)
}

// Metadata returns the payload stored with chunk text. Empty strings are left out.
func (j Job) Metadata(text string) map[string]any {
	md := map[string]any{
		KeyJobID:    j.ID,
		KeyIsRemote: j.Remote,
	}

	for key, value := range map[string]string{
		KeyJobURL:   j.URL,
		KeyCompany:  j.Company,
		KeySummary:  j.Summary,
		KeyText:     text,
		KeyLocation: j.Location,
		KeyJobType:  j.JobType,
		KeyTitle:    j.Title,
	} {
		if value = strings.TrimSpace(value); value != "" {
			md[key] = value
		}
	}

	return md
}
