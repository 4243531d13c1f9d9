package workspace

import (
	"testing"
	"time"

	"astraconsole/internal/astra"
)

func TestTrackerDiscardsStaleResults(t *testing.T) {
	w := newWorkspace(time.Now())

	first := w.Tracker.Begin(ViewKBSearch)
	second := w.Tracker.Begin(ViewKBSearch)

	if !w.ApplySearch(second, KBSearch{Query: "new", Matches: []astra.KBMatch{{ID: "b"}}}) {
		t.Fatalf("latest search must apply")
	}
	if w.ApplySearch(first, KBSearch{Query: "old", Matches: []astra.KBMatch{{ID: "a"}}}) {
		t.Fatalf("stale search must be discarded")
	}
	got := w.Search()
	if got.Query != "new" || len(got.Matches) != 1 || got.Matches[0].ID != "b" {
		t.Fatalf("stale result overwrote state: %+v", got)
	}

	items := w.Tracker.Begin(ViewKBItems)
	if !w.ApplyItems(items, KBItems{Page: 2, Total: 30}) {
		t.Fatalf("views are tracked independently")
	}
}

func TestRemoveMatch(t *testing.T) {
	w := newWorkspace(time.Now())
	seq := w.Tracker.Begin(ViewKBSearch)
	w.ApplySearch(seq, KBSearch{Matches: []astra.KBMatch{{ID: "a"}, {ID: "b"}, {ID: "c"}}})

	if !w.RemoveMatch("b") {
		t.Fatalf("expected b removed")
	}
	if w.RemoveMatch("zzz") {
		t.Fatalf("unknown id must not report removal")
	}
	got := w.Search().Matches
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected matches %+v", got)
	}
}

func TestTranscriptAndSelection(t *testing.T) {
	w := newWorkspace(time.Now())
	history := w.AppendChat(astra.AIChatMessage{Role: astra.RoleUser, Content: "hello"})
	history[0].Content = "mutated"
	if w.Transcript()[0].Content != "hello" {
		t.Fatalf("transcript must not alias returned slices")
	}

	w.Select("a", "b", "a")
	w.Select("c")
	w.Deselect("b")
	if got := w.Selected(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("unexpected selection %v", got)
	}
	w.ClearSelection()
	if len(w.Selected()) != 0 {
		t.Fatalf("expected empty selection")
	}

	w.Notify(NoticeSuccess, "saved")
	if n := w.TakeNotices(); len(n) != 1 || n[0].Text != "saved" {
		t.Fatalf("unexpected notices %+v", n)
	}
	if len(w.TakeNotices()) != 0 {
		t.Fatalf("notices are shown once")
	}
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry(time.Hour)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	a := r.Get("a")
	r.Get("b")
	if r.Get("a") != a {
		t.Fatalf("expected the same workspace for a session")
	}

	now = now.Add(50 * time.Minute)
	r.Get("b")
	now = now.Add(20 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected one idle workspace evicted, got %d", n)
	}
	if r.Len() != 1 {
		t.Fatalf("expected b to survive, have %d", r.Len())
	}
}
