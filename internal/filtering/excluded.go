package filtering

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spigell/cv-matcher/internal/matching"
)

// ExcludedJobs is the content of an exclude file.
type ExcludedJobs struct {
	Items []*ExcludedJob
}

type ExcludedJob struct {
	ID         string
	URL        string
	Company    string
	ExcludedAt time.Time
}

// ExcludedFromResult records every ranked job of a match result.
func ExcludedFromResult(result *matching.Result) *ExcludedJobs {
	excluded := &ExcludedJobs{}
	now := time.Now().UTC()

	for i, job := range result.Jobs {
		item := &ExcludedJob{ID: job.JobID, ExcludedAt: now}
		if i < len(result.URLs) {
			item.URL = result.URLs[i]
		}
		if i < len(result.Companies) {
			item.Company = result.Companies[i]
		}
		excluded.Items = append(excluded.Items, item)
	}

	return excluded
}

// LoadExcludedFromFile reads an exclude file. A missing or empty file holds no jobs.
func LoadExcludedFromFile(path string) (*ExcludedJobs, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &ExcludedJobs{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

// Append adds jobs that are not excluded yet.
func (e *ExcludedJobs) Append(other *ExcludedJobs) {
	seen := make(map[string]struct{}, len(e.Items))
	for _, job := range e.Items {
		seen[job.ID] = struct{}{}
	}

	for _, job := range other.Items {
		if _, ok := seen[job.ID]; ok {
			continue
		}
		seen[job.ID] = struct{}{}
		e.Items = append(e.Items, job)
	}
}

func (e *ExcludedJobs) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(e.Items))
	for _, job := range e.Items {
		ids[job.ID] = struct{}{}
	}
	return ids
}

func (e *ExcludedJobs) Len() int {
	return len(e.Items)
}

func (e *ExcludedJobs) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	return e.writeTo(file)
}

// writeTo encodes the list and closes w. A close failure is reported when
// encoding succeeded.
func (e *ExcludedJobs) writeTo(w io.WriteCloser) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(e); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}
