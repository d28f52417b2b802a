package matching

import "sort"

// Rank attaches seed metadata, orders jobs by (FinalScore desc, JobID asc),
// keeps the first topK and projects summary, url and company for each.
func Rank(scored []ScoredJob, seed map[string]Metadata, topK int) *Result {
	ranked := make([]ScoredJob, len(scored))
	copy(ranked, scored)

	for i := range ranked {
		md := seed[ranked[i].JobID]
		if md == nil {
			md = Metadata{}
		}
		ranked[i].Metadata = md
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].JobID < ranked[j].JobID
	})

	if topK >= 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	result := EmptyResult()
	for _, job := range ranked {
		result.Summaries = append(result.Summaries, projectSummary(job.Metadata))
		result.URLs = append(result.URLs, projectURL(job.Metadata))
		result.Companies = append(result.Companies, projectCompany(job.JobID, job.Metadata))
	}
	result.Jobs = ranked

	return result
}
