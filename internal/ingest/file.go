package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type corpusFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadFile reads jobs from a .yaml, .yml or .json file. The document is either
// a list of jobs or a mapping with a "jobs" list.
func LoadFile(path string) ([]Job, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("unsupported corpus file %q: expected .yaml, .yml or .json", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus file: %w", err)
	}

	jobs, err := parseJobs(data)
	if err != nil {
		return nil, fmt.Errorf("parsing corpus file %q: %w", path, err)
	}

	return jobs, nil
}

// parseJobs relies on JSON being valid YAML.
func parseJobs(data []byte) ([]Job, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var jobs []Job
		if err := root.Decode(&jobs); err != nil {
			return nil, err
		}
		return jobs, nil
	case yaml.MappingNode:
		var corpus corpusFile
		if err := root.Decode(&corpus); err != nil {
			return nil, err
		}
		return corpus.Jobs, nil
	default:
		return nil, fmt.Errorf("expected a list of jobs or a mapping, got %s", root.Tag)
	}
}
