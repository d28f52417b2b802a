package headhunter

import (
	"reflect"
	"testing"
)

func TestVacancyIsRemote(t *testing.T) {
	t.Parallel()

	remote := &Vacancy{Schedule: Named{ID: ScheduleRemote}}
	office := &Vacancy{Schedule: Named{ID: "fullDay"}}

	if !remote.IsRemote() {
		t.Fatalf("expected remote schedule to be remote")
	}
	if office.IsRemote() {
		t.Fatalf("expected fullDay schedule to be on-site")
	}
}

func TestVacancySkills(t *testing.T) {
	t.Parallel()

	v := &Vacancy{KeySkills: []Named{{Name: "Go"}, {Name: "  "}, {Name: " Kubernetes "}}}

	got := v.Skills()
	want := []string{"Go", "Kubernetes"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected skills: got %v want %v", got, want)
	}
}

func TestVacanciesActive(t *testing.T) {
	t.Parallel()

	vacancies := &Vacancies{Items: []*Vacancy{
		{ID: "1"},
		{ID: "2", Archived: true},
		{ID: "3"},
	}}

	removed := vacancies.Active()
	if !reflect.DeepEqual(removed, []string{"2"}) {
		t.Fatalf("unexpected removed ids: %v", removed)
	}
	if vacancies.Len() != 2 {
		t.Fatalf("expected 2 vacancies left, got %d", vacancies.Len())
	}
	if vacancies.FindByID("3") == nil {
		t.Fatalf("expected vacancy 3 to be kept")
	}
	if vacancies.FindByID("2") != nil {
		t.Fatalf("expected vacancy 2 to be removed")
	}
}
