// Package workspace holds per-session view state that lives only in memory:
// the assistant transcript, knowledge-base results and selection, AI ticket
// suggestions and pending notices.
package workspace

import (
	"slices"
	"sync"
	"time"

	"astraconsole/internal/astra"
)

const (
	ViewKBSearch = "kb.search"
	ViewKBItems  = "kb.items"
)

const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeWarning = "warning"
	NoticeInfo    = "info"
)

type Notice struct {
	Kind string
	Text string
}

type KBSearch struct {
	Collection string
	Query      string
	Matches    []astra.KBMatch
	Searched   bool
}

type KBItems struct {
	Collection string
	Page       int
	PageSize   int
	Total      int
	Items      []astra.KBItem
}

type Workspace struct {
	Tracker Tracker

	mu          sync.Mutex
	lastSeen    time.Time
	userLabel   string
	transcript  []astra.AIChatMessage
	search      KBSearch
	items       KBItems
	inserted    []string
	selected    []string
	suggestions map[int64]astra.TicketAISuggestion
	notices     []Notice
}

func newWorkspace(now time.Time) *Workspace {
	return &Workspace{
		lastSeen:    now,
		items:       KBItems{Collection: astra.DefaultCollection, Page: 1, PageSize: 10},
		suggestions: make(map[int64]astra.TicketAISuggestion),
	}
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// SetUserLabel records who the session signed in as, for the navigation bar.
func (w *Workspace) SetUserLabel(label string) {
	w.mu.Lock()
	w.userLabel = label
	w.mu.Unlock()
}

func (w *Workspace) UserLabel() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.userLabel
}

// AppendChat adds msg to the transcript and returns the transcript after the
// append.
func (w *Workspace) AppendChat(msg astra.AIChatMessage) []astra.AIChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transcript = append(w.transcript, msg)
	return slices.Clone(w.transcript)
}

func (w *Workspace) Transcript() []astra.AIChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.transcript)
}

func (w *Workspace) ResetTranscript() {
	w.mu.Lock()
	w.transcript = nil
	w.mu.Unlock()
}

// ApplySearch stores search results unless a newer search has begun since
// seq was issued. It reports whether the results were applied.
func (w *Workspace) ApplySearch(seq uint64, res KBSearch) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.Tracker.Latest(ViewKBSearch, seq) {
		return false
	}
	res.Searched = true
	res.Matches = slices.Clone(res.Matches)
	w.search = res
	return true
}

func (w *Workspace) Search() KBSearch {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.search
	out.Matches = slices.Clone(w.search.Matches)
	return out
}

// RemoveMatch drops the match with id from the shown results and reports
// whether one was removed.
func (w *Workspace) RemoveMatch(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	before := len(w.search.Matches)
	w.search.Matches = slices.DeleteFunc(w.search.Matches, func(m astra.KBMatch) bool { return m.ID == id })
	return len(w.search.Matches) != before
}

func (w *Workspace) ApplyItems(seq uint64, items KBItems) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.Tracker.Latest(ViewKBItems, seq) {
		return false
	}
	items.Items = slices.Clone(items.Items)
	w.items = items
	return true
}

func (w *Workspace) Items() KBItems {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.items
	out.Items = slices.Clone(w.items.Items)
	return out
}

func (w *Workspace) SetInserted(ids []string) {
	w.mu.Lock()
	w.inserted = slices.Clone(ids)
	w.mu.Unlock()
}

func (w *Workspace) Inserted() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.inserted)
}

// Select adds ids to the bulk selection, keeping first-selected order.
func (w *Workspace) Select(ids ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range ids {
		if id != "" && !slices.Contains(w.selected, id) {
			w.selected = append(w.selected, id)
		}
	}
}

func (w *Workspace) Deselect(ids ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selected = slices.DeleteFunc(w.selected, func(s string) bool { return slices.Contains(ids, s) })
}

func (w *Workspace) ClearSelection() {
	w.mu.Lock()
	w.selected = nil
	w.mu.Unlock()
}

func (w *Workspace) Selected() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.selected)
}

func (w *Workspace) SetSuggestion(s astra.TicketAISuggestion) {
	w.mu.Lock()
	w.suggestions[s.TicketID] = s
	w.mu.Unlock()
}

func (w *Workspace) Suggestion(ticketID int64) (astra.TicketAISuggestion, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.suggestions[ticketID]
	return s, ok
}

func (w *Workspace) DropSuggestion(ticketID int64) {
	w.mu.Lock()
	delete(w.suggestions, ticketID)
	w.mu.Unlock()
}

// Notify queues a transient notice for the next rendered page.
func (w *Workspace) Notify(kind, text string) {
	w.mu.Lock()
	w.notices = append(w.notices, Notice{Kind: kind, Text: text})
	w.mu.Unlock()
}

func (w *Workspace) TakeNotices() []Notice {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.notices
	w.notices = nil
	return out
}
