package matching

import (
	"net/url"
	"path"
	"strings"
)

const idSeparator = "__"

const (
	fallbackSummary = "요약 없음"
	fallbackCompany = "Job "
)

// ExtractJobID derives the job of a stored chunk. It tries, in order, the id
// prefix before "__", metadata job_id, and the last path segment of
// metadata job_url or url. It returns "" when nothing matches.
func ExtractJobID(vectorID string, md Metadata) string {
	if prefix, _, ok := strings.Cut(vectorID, idSeparator); ok && prefix != "" {
		return prefix
	}

	if id := md.String("job_id"); id != "" {
		return id
	}

	for _, key := range []string{"job_url", "url"} {
		if id := lastPathSegment(md.String(key)); id != "" {
			return id
		}
	}

	return ""
}

func lastPathSegment(raw string) string {
	if raw == "" {
		return ""
	}

	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}

	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}

	seg := path.Base(p)
	if seg == "." || seg == "/" {
		return ""
	}

	return seg
}

// ChunkText returns the text stored with a JD chunk.
func ChunkText(md Metadata) string {
	return md.String("text", "chunk_text", "context")
}

func projectSummary(md Metadata) string {
	if s := md.String("summary", "text"); s != "" {
		return s
	}
	return fallbackSummary
}

func projectURL(md Metadata) string {
	return md.String("job_url", "url")
}

func projectCompany(jobID string, md Metadata) string {
	if s := md.String("company_name", "company"); s != "" {
		return s
	}
	return fallbackCompany + jobID
}
