package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in    string
		limit int
		want  string
	}{
		"disabled":           {in: "Senior Go engineer", limit: 0, want: ""},
		"negative limit":     {in: "Senior Go engineer", limit: -1, want: ""},
		"fits":               {in: "Go", limit: 10, want: "Go"},
		"exact fit":          {in: "Kafka", limit: 5, want: "Kafka"},
		"cut":                {in: "Kubernetes operator", limit: 10, want: "Kubernetes..."},
		"outer whitespace":   {in: "  Postgres  ", limit: 4, want: "Post..."},
		"collapsed markdown": {in: "## Experience\n\n- Go\t services", limit: 40, want: "## Experience - Go services"},
		"runes not bytes":    {in: "경력 요약입니다", limit: 2, want: "경력..."},
		"only whitespace":    {in: " \n\t ", limit: 3, want: ""},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := TruncateForLog(tc.in, tc.limit); got != tc.want {
				t.Fatalf("TruncateForLog(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
		})
	}
}
