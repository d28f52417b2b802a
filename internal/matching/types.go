package matching

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata is the per-chunk payload stored next to a JD vector.
type Metadata map[string]any

// String returns the first non-empty value among keys, rendered as a string.
func (m Metadata) String(keys ...string) string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}

		var s string
		switch typed := v.(type) {
		case string:
			s = typed
		case fmt.Stringer:
			s = typed.String()
		default:
			s = fmt.Sprintf("%v", v)
		}

		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}

	return ""
}

// JDChunk is one stored JD text unit with its vector.
type JDChunk struct {
	VectorID string
	JobID    string
	Values   []float32
	Text     string
	Metadata Metadata
}

// JobBundle aggregates every fetched chunk of one job.
// Metadata is the first non-empty metadata seen for the job.
type JobBundle struct {
	JobID    string
	Chunks   []JDChunk
	Metadata Metadata
}

// ScoredJob is a job with its similarity to the résumé. FinalScore always
// equals Similarity; Coverage is informational and never used for ranking.
type ScoredJob struct {
	JobID      string
	Similarity float32
	FinalScore float32
	Coverage   float32
	Metadata   Metadata
}

// CandidateSet is the outcome of the ANN probe.
type CandidateSet struct {
	JobIDs       map[string]struct{}
	SeedMetadata map[string]Metadata
}

func newCandidateSet() *CandidateSet {
	return &CandidateSet{
		JobIDs:       make(map[string]struct{}),
		SeedMetadata: make(map[string]Metadata),
	}
}

func (c *CandidateSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.JobIDs)
}

func (c *CandidateSet) Has(jobID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.JobIDs[jobID]
	return ok
}

// seed stores md for jobID unless metadata was already recorded.
func (c *CandidateSet) seed(jobID string, md Metadata) {
	if len(md) == 0 {
		return
	}
	if _, ok := c.SeedMetadata[jobID]; !ok {
		c.SeedMetadata[jobID] = md
	}
}

// Result holds three parallel lists in rank order. Jobs carries the scored
// jobs behind them.
type Result struct {
	Summaries []string    `json:"summaries"`
	URLs      []string    `json:"urls"`
	Companies []string    `json:"companies"`
	Jobs      []ScoredJob `json:"-"`
}

// EmptyResult returns a result with empty, non-nil lists.
func EmptyResult() *Result {
	return &Result{
		Summaries: []string{},
		URLs:      []string{},
		Companies: []string{},
		Jobs:      []ScoredJob{},
	}
}

func (r *Result) Len() int {
	return len(r.Summaries)
}

// Recognised filter keys. Other keys are forwarded to the index as is.
const (
	FilterLocation = "location"
	FilterIsRemote = "is_remote"
	FilterJobType  = "job_type"
)

// Filter is an equality conjunction over JD metadata.
type Filter map[string]any

// Normalize drops unset keys and turns textual is_remote values into booleans.
func (f Filter) Normalize() map[string]any {
	if len(f) == 0 {
		return nil
	}

	out := make(map[string]any, len(f))
	for key, v := range f {
		switch typed := v.(type) {
		case nil:
			continue
		case string:
			typed = strings.TrimSpace(typed)
			if typed == "" {
				continue
			}
			if key == FilterIsRemote {
				if b, err := strconv.ParseBool(typed); err == nil {
					out[key] = b
					continue
				}
			}
			out[key] = typed
		default:
			out[key] = v
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}
