package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spigell/cv-matcher/internal/matching"
)

// ReportEntry is one ranked job as shown to the user.
type ReportEntry struct {
	Rank    int     `json:"rank"`
	JobID   string  `json:"job_id"`
	Score   float32 `json:"score"`
	Company string  `json:"company"`
	URL     string  `json:"url,omitempty"`
	Summary string  `json:"summary"`
}

func reportEntries(result *matching.Result) []ReportEntry {
	entries := make([]ReportEntry, 0, result.Len())
	for i := range result.Summaries {
		entry := ReportEntry{
			Rank:    i + 1,
			Company: result.Companies[i],
			URL:     result.URLs[i],
			Summary: result.Summaries[i],
		}
		if i < len(result.Jobs) {
			entry.JobID = result.Jobs[i].JobID
			entry.Score = result.Jobs[i].FinalScore
		}
		entries = append(entries, entry)
	}
	return entries
}

// reportByCompany groups ranked jobs by company, keeping rank order inside each group.
func reportByCompany(result *matching.Result) map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, entry := range reportEntries(result) {
		report[entry.Company] = append(report[entry.Company], map[string]string{
			"rank":    fmt.Sprintf("%d", entry.Rank),
			"score":   fmt.Sprintf("%.4f", entry.Score),
			"url":     entry.URL,
			"summary": entry.Summary,
		})
	}
	return report
}

func dumpToTmpFile(result *matching.Result) (string, error) {
	file, err := os.CreateTemp("", "matches_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reportEntries(result)); err != nil {
		return "", err
	}
	return file.Name(), nil
}
