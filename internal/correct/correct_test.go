package correct

import (
	"testing"

	"staffimport/internal/catalog"
	"staffimport/internal/record"
)

func deptCatalog() *catalog.Catalog {
	return catalog.New(map[string][]catalog.Entry{
		catalog.DomainDepartments: {
			{ID: 1, Name: "Kitchen"},
			{ID: 2, Name: "Bar"},
		},
	})
}

func recordsWith(depts ...string) []*record.Record {
	recs := make([]*record.Record, len(depts))
	for i, d := range depts {
		recs[i] = &record.Record{Row: i, Values: map[string]string{"departments": d}}
	}
	return recs
}

func TestDetectEmptyWhenAllValid(t *testing.T) {
	got := Detect(recordsWith("Kitchen", "Bar", ""), deptCatalog())
	if len(got) != 0 {
		t.Fatalf("Detect = %v, want empty (all values valid or empty)", got)
	}
}

func TestDetectGroupsAndSuggests(t *testing.T) {
	got := Detect(recordsWith("Kichen", "Bar", "Kichen"), deptCatalog())
	if len(got) != 1 {
		t.Fatalf("Detect = %v, want one pattern", got)
	}
	p := got[0]
	if p.Field != "departments" || p.InvalidName != "Kichen" || p.Count != 2 {
		t.Fatalf("pattern = %+v", p)
	}
	if len(p.Rows) != 2 || p.Rows[0] != 0 || p.Rows[1] != 2 {
		t.Fatalf("rows = %v, want [0 2]", p.Rows)
	}
	if p.Suggestion != "Kitchen" {
		t.Fatalf("suggestion = %q, want Kitchen", p.Suggestion)
	}
	if p.SuggestionID != 1 {
		t.Fatalf("suggestion id = %d, want the Kitchen catalog id 1", p.SuggestionID)
	}
	if p.Confidence < 0.8 || p.Confidence > 1 {
		t.Fatalf("confidence = %v, want >= 0.8 and <= 1", p.Confidence)
	}
}

func TestSuggestBounds(t *testing.T) {
	candidates := []string{"Kitchen", "Bar", "Front of House"}
	for _, in := range []string{"Kichen", "bar", "FRONT OF HOUSE", "Kitchen "} {
		s, ok := Suggest(in, candidates)
		if !ok {
			t.Fatalf("Suggest(%q) returned no suggestion", in)
		}
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Fatalf("Suggest(%q) confidence %v out of [0,1]", in, s.Confidence)
		}
	}

	if _, ok := Suggest("zzzzzz", candidates); ok {
		t.Fatalf("hopeless input must yield no suggestion")
	}
	if _, ok := Suggest("   ", candidates); ok {
		t.Fatalf("blank input must yield no suggestion")
	}
}

func TestSuggestNormalizesDiacritics(t *testing.T) {
	s, ok := Suggest("cafe crew", []string{"Café  Crew"})
	if !ok || s.Name != "Café  Crew" || s.Confidence != 1 {
		t.Fatalf("Suggest = %+v, %v; want exact match after normalization", s, ok)
	}
}

func TestCorrectionConvergence(t *testing.T) {
	cat := deptCatalog()
	recs := recordsWith("Kichen", "Bar", "Kichen")

	patterns := Detect(recs, cat)
	st := NewState()
	if st.AllChosen(patterns) {
		t.Fatalf("AllChosen must be false before a choice is made")
	}

	st.SetPending("departments", "Kichen", "Kitchen")
	if !st.AllChosen(patterns) {
		t.Fatalf("AllChosen must be true once every pattern has a pending choice")
	}

	if n := st.Apply(recs); n != 2 {
		t.Fatalf("Apply replaced %d cells, want 2", n)
	}
	if recs[0].Get("departments") != "Kitchen" || recs[2].Get("departments") != "Kitchen" {
		t.Fatalf("records not rewritten: %v, %v", recs[0].Values, recs[2].Values)
	}

	// Re-detection shows convergence: the corrected pattern is gone.
	if after := Detect(recs, cat); len(after) != 0 {
		t.Fatalf("re-detection = %v, want empty", after)
	}

	resolved := st.Resolved()
	if len(resolved) != 1 || resolved[0] != [3]string{"departments", "Kichen", "Kitchen"} {
		t.Fatalf("resolved = %v", resolved)
	}
}

func TestReopenMakesResolvedEditable(t *testing.T) {
	st := NewState()
	st.SetPending("departments", "Kichen", "Kitchen")
	st.Apply(recordsWith("Kichen"))

	st.Reopen()
	if r, ok := st.Choice("departments", "Kichen"); !ok || r != "Kitchen" {
		t.Fatalf("reopened choice = %q, %v", r, ok)
	}
	// The reopened choice is pending again and can be overwritten.
	st.SetPending("departments", "Kichen", "Bar")
	if r, _ := st.Choice("departments", "Kichen"); r != "Bar" {
		t.Fatalf("overwrite after reopen = %q, want Bar", r)
	}
	if len(st.Resolved()) != 0 {
		t.Fatalf("resolved list must be empty after Reopen")
	}
}

func TestDetectIsDeterministic(t *testing.T) {
	cat := deptCatalog()
	recs := []*record.Record{
		{Row: 0, Values: map[string]string{"departments": "Kichen"}},
		{Row: 1, Values: map[string]string{"departments": "Barr"}},
	}
	a := Detect(recs, cat)
	b := Detect(recs, cat)
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("want two patterns, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Field != b[i].Field || a[i].InvalidName != b[i].InvalidName {
			t.Fatalf("order differs at %d", i)
		}
	}
	if a[0].InvalidName != "Barr" {
		t.Fatalf("patterns must sort by invalid value, got %q first", a[0].InvalidName)
	}
}
