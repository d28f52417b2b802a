package headhunter

import "strings"

const (
	ScheduleRemote = "remote"

	EmploymentFull      = "full"
	EmploymentPart      = "part"
	EmploymentProject   = "project"
	EmploymentProbation = "probation"
)

type Vacancies struct {
	Items []*Vacancy
}

// Named is the {id, name} pair hh.ru uses for dictionaries.
type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Employer struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	URL          string `json:"url,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Trusted      bool   `json:"trusted,omitempty"`
}

type Snippet struct {
	Requirement    string `json:"requirement,omitempty"`
	Responsibility string `json:"responsibility,omitempty"`
}

type Salary struct {
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
	Currency string `json:"currency,omitempty"`
	Gross    bool   `json:"gross,omitempty"`
}

type Vacancy struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Area         Named    `json:"area,omitempty"`
	Salary       Salary   `json:"salary,omitempty"`
	Experience   Named    `json:"experience,omitempty"`
	Schedule     Named    `json:"schedule,omitempty"`
	Employment   Named    `json:"employment,omitempty"`
	Employer     Employer `json:"employer,omitempty"`
	AlternateURL string   `json:"alternate_url,omitempty"`
	Description  string   `json:"description,omitempty"`
	KeySkills    []Named  `json:"key_skills,omitempty"`
	Archived     bool     `json:"archived,omitempty"`
	Snippet      Snippet  `json:"snippet,omitempty"`
	PublishedAt  string   `json:"published_at,omitempty"`
}

func (va *Vacancy) IsRemote() bool {
	return va.Schedule.ID == ScheduleRemote
}

// Skills returns the names of the key skills, skipping empty ones.
func (va *Vacancy) Skills() []string {
	skills := make([]string, 0, len(va.KeySkills))
	for _, s := range va.KeySkills {
		if name := strings.TrimSpace(s.Name); name != "" {
			skills = append(skills, name)
		}
	}
	return skills
}

func (v *Vacancies) Len() int {
	return len(v.Items)
}

func (v *Vacancies) FindByID(id string) *Vacancy {
	for _, vacancy := range v.Items {
		if vacancy.ID == id {
			return vacancy
		}
	}
	return nil
}

// Active drops archived vacancies in place and returns the ids of removed ones.
func (v *Vacancies) Active() []string {
	var removed []string
	kept := v.Items[:0]
	for _, vacancy := range v.Items {
		if vacancy.Archived {
			removed = append(removed, vacancy.ID)
			continue
		}
		kept = append(kept, vacancy)
	}
	v.Items = kept
	return removed
}
