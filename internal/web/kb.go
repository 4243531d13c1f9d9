package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"astraconsole/internal/apiclient"
	"astraconsole/internal/astra"
	"astraconsole/internal/workspace"
)

const (
	maxIngestUpload = 16 << 20
	maxIngestFile   = 4 << 20
	insertedSample  = 5
)

type kbView struct {
	Items    workspace.KBItems
	Search   workspace.KBSearch
	Inserted []string
	Selected []string
	Error    string

	DefaultMaxChars   int
	DefaultOverlap    int
	DefaultDelimiters string
	DefaultTopK       int
	Strategies        []string
}

type idSample struct {
	IDs  []string
	More bool
}

// InsertedSample is the head of the last ingest's ids, shown on the page.
func (v kbView) InsertedSample() idSample {
	if len(v.Inserted) <= insertedSample {
		return idSample{IDs: v.Inserted}
	}
	return idSample{IDs: v.Inserted[:insertedSample], More: true}
}

func (v kbView) HasPrev() bool { return v.Items.Page > 1 }

func (v kbView) HasNext() bool { return v.Items.Page*v.Items.PageSize < v.Items.Total }

func (v kbView) PageIDs() []string {
	ids := make([]string, 0, len(v.Items.Items))
	for _, it := range v.Items.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

func (v kbView) Collection() string {
	if v.Search.Collection != "" {
		return v.Search.Collection
	}
	return v.Items.Collection
}

func clampPageSize(n int) int {
	switch {
	case n < 1:
		return 10
	case n > astra.MaxItemsPage:
		return astra.MaxItemsPage
	}
	return n
}

// refreshItems loads one page of stored chunks into the workspace. A result
// that arrives after a newer load began is dropped.
func (s *Server) refreshItems(r *http.Request, collection string, page, pageSize int) error {
	ws := s.workspace(r)
	collection = strings.TrimSpace(collection)
	if collection == "" {
		collection = astra.DefaultCollection
	}
	page = max(page, 1)
	pageSize = clampPageSize(pageSize)

	seq := ws.Tracker.Begin(workspace.ViewKBItems)
	res, err := s.backend(r).ListKBItems(r.Context(), astra.KBListParams{
		Collection: collection,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	})
	if err != nil {
		return err
	}
	if !ws.ApplyItems(seq, workspace.KBItems{
		Collection: collection,
		Page:       page,
		PageSize:   pageSize,
		Total:      res.Total,
		Items:      res.Items,
	}) {
		s.logger.Debug().Uint64("seq", seq).Msg("discarded stale kb items page")
	}
	return nil
}

func (s *Server) refreshCurrentItems(r *http.Request) {
	cur := s.workspace(r).Items()
	if err := s.refreshItems(r, cur.Collection, cur.Page, cur.PageSize); err != nil {
		s.logger.Warn().Err(err).Msg("refresh kb items")
	}
}

func (s *Server) kbPage(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	cur := ws.Items()
	q := r.URL.Query()
	if c := strings.TrimSpace(q.Get("collection")); c != "" {
		cur.Collection = c
	}
	cur.Page = formInt(r, "page", cur.Page)
	cur.PageSize = formInt(r, "page_size", cur.PageSize)

	view := kbView{
		DefaultMaxChars:   astra.DefaultMaxChars,
		DefaultOverlap:    astra.DefaultOverlap,
		DefaultDelimiters: astra.DefaultDelimiters,
		DefaultTopK:       astra.DefaultTopK,
		Strategies:        []string{astra.ChunkWindow, astra.ChunkPunctuation},
	}
	if err := s.refreshItems(r, cur.Collection, cur.Page, cur.PageSize); err != nil {
		s.logger.Warn().Err(err).Msg("list kb items")
		view.Error = apiclient.MessageOr(err, "Failed to load stored chunks")
	}
	view.Items = ws.Items()
	view.Search = ws.Search()
	view.Inserted = ws.Inserted()
	view.Selected = ws.Selected()
	s.render(w, r, "kb", "Knowledge base", view)
}

// ingestTexts gathers the pasted text first, then each uploaded file in
// order. Files other than .md and .txt are reported and skipped.
func (s *Server) ingestTexts(r *http.Request) ([]string, []string, error) {
	var texts, skipped []string
	if t := r.FormValue("text"); strings.TrimSpace(t) != "" {
		texts = append(texts, t)
	}
	if r.MultipartForm == nil {
		return texts, nil, nil
	}
	for _, fh := range r.MultipartForm.File["files"] {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if ext != ".md" && ext != ".txt" {
			skipped = append(skipped, fh.Filename)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		b, err := io.ReadAll(io.LimitReader(f, maxIngestFile))
		_ = f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		if strings.TrimSpace(string(b)) == "" {
			skipped = append(skipped, fh.Filename)
			continue
		}
		texts = append(texts, string(b))
	}
	return texts, skipped, nil
}

func (s *Server) kbIngest(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	if err := r.ParseMultipartForm(maxIngestUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		ws.Notify(workspace.NoticeError, "Ingest failed")
		s.seeOther(w, r, "/kb")
		return
	}
	texts, skipped, err := s.ingestTexts(r)
	if err != nil {
		s.logger.Warn().Err(err).Msg("read kb uploads")
		ws.Notify(workspace.NoticeError, "Ingest failed")
		s.seeOther(w, r, "/kb")
		return
	}
	if len(skipped) > 0 {
		ws.Notify(workspace.NoticeWarning, "Skipped "+strings.Join(skipped, ", ")+": only non-empty .md and .txt files are ingested.")
	}
	if len(texts) == 0 {
		ws.Notify(workspace.NoticeWarning, "Please provide text or select files to ingest.")
		s.seeOther(w, r, "/kb")
		return
	}

	docs := make([]astra.KBDocument, 0, len(texts))
	for _, t := range texts {
		docs = append(docs, astra.KBDocument{Text: t})
	}
	req := astra.KBIngestRequest{
		Collection:    r.FormValue("collection"),
		Chunk:         formBool(r, "chunk"),
		MaxChars:      formInt(r, "max_chars", astra.DefaultMaxChars),
		Overlap:       formInt(r, "overlap", astra.DefaultOverlap),
		ChunkStrategy: strings.TrimSpace(r.FormValue("chunk_strategy")),
		Delimiters:    r.FormValue("delimiters"),
		Documents:     docs,
	}
	res, err := s.backend(r).IngestKB(r.Context(), req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("kb ingest")
		ws.Notify(workspace.NoticeError, apiclient.MessageOr(err, "Ingest failed"))
		s.seeOther(w, r, "/kb")
		return
	}
	ws.SetInserted(res.InsertedIDs)
	ws.Notify(workspace.NoticeSuccess, fmt.Sprintf("Ingested %d chunk(s) into collection '%s'.", res.ChunksAdded, res.Collection))

	cur := ws.Items()
	if err := s.refreshItems(r, res.Collection, 1, cur.PageSize); err != nil {
		s.logger.Warn().Err(err).Msg("refresh kb items")
	}
	s.seeOther(w, r, "/kb")
}

func (s *Server) kbSearch(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	query := strings.TrimSpace(r.FormValue("query"))
	if query == "" {
		ws.Notify(workspace.NoticeWarning, "Please enter a query to search.")
		s.seeOther(w, r, "/kb#search")
		return
	}
	collection := strings.TrimSpace(r.FormValue("collection"))
	if collection == "" {
		collection = astra.DefaultCollection
	}

	seq := ws.Tracker.Begin(workspace.ViewKBSearch)
	res, err := s.backend(r).SearchKB(r.Context(), astra.KBQueryRequest{
		Collection: collection,
		Query:      query,
		NResults:   formInt(r, "n_results", astra.DefaultTopK),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("kb search")
		ws.Notify(workspace.NoticeError, apiclient.MessageOr(err, "Search failed"))
		s.seeOther(w, r, "/kb#search")
		return
	}
	if !ws.ApplySearch(seq, workspace.KBSearch{Collection: collection, Query: query, Matches: res.Matches}) {
		s.logger.Debug().Uint64("seq", seq).Msg("discarded stale kb search")
	} else if len(res.Matches) == 0 {
		ws.Notify(workspace.NoticeInfo, "No results found.")
	}
	s.seeOther(w, r, "/kb#search")
}

func (s *Server) kbDelete(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	id := strings.TrimSpace(r.FormValue("id"))
	if id == "" {
		s.seeOther(w, r, "/kb")
		return
	}
	res, err := s.backend(r).DeleteKB(r.Context(), astra.KBDeleteRequest{
		Collection: r.FormValue("collection"),
		IDs:        []string{id},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("kb delete")
		ws.Notify(workspace.NoticeError, apiclient.MessageOr(err, "Delete failed"))
		s.seeOther(w, r, "/kb")
		return
	}
	ws.Notify(workspace.NoticeSuccess, fmt.Sprintf("Deleted %d item(s).", res.Deleted))
	ws.RemoveMatch(id)
	ws.Deselect(id)
	s.refreshCurrentItems(r)
	s.seeOther(w, r, "/kb")
}

func (s *Server) kbSelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		s.workspace(r).Select(r.PostForm["ids"]...)
	}
	s.seeOther(w, r, "/kb#stored")
}

func (s *Server) kbClear(w http.ResponseWriter, r *http.Request) {
	s.workspace(r).ClearSelection()
	s.seeOther(w, r, "/kb#stored")
}

func (s *Server) kbDeleteSelected(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	ids := ws.Selected()
	if len(ids) == 0 {
		ws.Notify(workspace.NoticeWarning, "No items selected.")
		s.seeOther(w, r, "/kb#stored")
		return
	}
	res, err := s.backend(r).DeleteKB(r.Context(), astra.KBDeleteRequest{
		Collection: ws.Items().Collection,
		IDs:        ids,
	})
	if err != nil {
		s.logger.Warn().Err(err).Int("count", len(ids)).Msg("kb bulk delete")
		ws.Notify(workspace.NoticeError, apiclient.MessageOr(err, "Bulk delete failed"))
		s.seeOther(w, r, "/kb#stored")
		return
	}
	ws.Notify(workspace.NoticeSuccess, fmt.Sprintf("Deleted %d item(s).", res.Deleted))
	for _, id := range ids {
		ws.RemoveMatch(id)
	}
	ws.ClearSelection()
	s.refreshCurrentItems(r)
	s.seeOther(w, r, "/kb#stored")
}
