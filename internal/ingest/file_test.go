package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadFileYAMLList(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "jobs.yaml", `
- id: "1"
  title: Backend Engineer
  company: Acme
  url: https://jobs.example.com/1
  description: |
    ## Responsibilities
    - Build services
  remote: true
  job_type: fulltime
- id: "2"
  summary: Analyst
`)

	jobs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, Job{
		ID:          "1",
		Title:       "Backend Engineer",
		Company:     "Acme",
		URL:         "https://jobs.example.com/1",
		Description: "## Responsibilities\n- Build services\n",
		Remote:      true,
		JobType:     JobTypeFullTime,
	}, jobs[0])
	assert.Equal(t, "Analyst", jobs[1].Summary)
}

func TestLoadFileJSONMapping(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "jobs.JSON", `{"jobs": [{"id": "7", "company": "Globex", "location": "Busan", "remote": false}]}`)

	jobs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Job{{ID: "7", Company: "Globex", Location: "Busan"}}, jobs)
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(writeFile(t, "jobs.txt", "- id: 1"))
	assert.ErrorContains(t, err, "unsupported corpus file")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadFile(writeFile(t, "scalar.yaml", "just text"))
	assert.Error(t, err)

	jobs, err := LoadFile(writeFile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
