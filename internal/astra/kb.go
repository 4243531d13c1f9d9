package astra

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	ChunkWindow      = "window"
	ChunkPunctuation = "punctuation"

	DefaultMaxChars   = 600
	DefaultOverlap    = 80
	DefaultDelimiters = "。！？?!"
	DefaultTopK       = 5
	MaxItemsPage      = 200
)

type KBDocument struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// KBIngestRequest passes the chunking knobs through untouched; the backend
// owns their meaning.
type KBIngestRequest struct {
	Collection    string       `json:"collection"`
	Chunk         bool         `json:"chunk"`
	MaxChars      int          `json:"max_chars,omitempty"`
	Overlap       int          `json:"overlap"`
	ChunkStrategy string       `json:"chunk_strategy,omitempty"`
	Delimiters    string       `json:"delimiters,omitempty"`
	Documents     []KBDocument `json:"documents"`
}

func (r KBIngestRequest) Validate() error {
	if len(r.Documents) == 0 {
		return &ValidationError{Field: "documents", Reason: "must not be empty"}
	}
	for _, d := range r.Documents {
		if strings.TrimSpace(d.Text) == "" {
			return &ValidationError{Field: "documents", Reason: "must not contain empty text"}
		}
	}
	if r.MaxChars < 0 || r.Overlap < 0 {
		return &ValidationError{Field: "max_chars", Reason: "must not be negative"}
	}
	return checkEnum("chunk_strategy", r.ChunkStrategy, []string{ChunkWindow, ChunkPunctuation})
}

type KBIngestResponse struct {
	Collection  string   `json:"collection"`
	InsertedIDs []string `json:"inserted_ids"`
	ChunksAdded int      `json:"chunks_added"`
}

type KBQueryRequest struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`
	NResults   int    `json:"n_results"`
}

func (r KBQueryRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return required("query")
	}
	if r.NResults < 0 {
		return &ValidationError{Field: "n_results", Reason: "must not be negative"}
	}
	return nil
}

type KBMatch struct {
	ID       string         `json:"id,omitempty"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Distance *float64       `json:"distance,omitempty"`
}

type KBQueryResponse struct {
	Collection string    `json:"collection"`
	Query      string    `json:"query"`
	Matches    []KBMatch `json:"matches"`
}

type KBDeleteRequest struct {
	Collection string   `json:"collection"`
	IDs        []string `json:"ids"`
}

func (r KBDeleteRequest) Validate() error {
	if len(r.IDs) == 0 {
		return &ValidationError{Field: "ids", Reason: "must not be empty"}
	}
	return nil
}

type KBDeleteResponse struct {
	Collection string `json:"collection"`
	Deleted    int    `json:"deleted"`
}

type KBItem struct {
	ID       string         `json:"id"`
	Text     string         `json:"text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type KBListParams struct {
	Collection string
	Limit      int
	Offset     int
}

type KBListResponse struct {
	Collection string   `json:"collection"`
	Total      int      `json:"total"`
	Items      []KBItem `json:"items"`
}

func collectionOr(c string) string {
	if strings.TrimSpace(c) == "" {
		return DefaultCollection
	}
	return strings.TrimSpace(c)
}

func (c *Client) IngestKB(ctx context.Context, req KBIngestRequest) (KBIngestResponse, error) {
	req.Collection = collectionOr(req.Collection)
	var out KBIngestResponse
	if err := c.send(ctx, http.MethodPost, "/kb/ingest", req, &out); err != nil {
		return KBIngestResponse{}, err
	}
	return out, nil
}

func (c *Client) SearchKB(ctx context.Context, req KBQueryRequest) (KBQueryResponse, error) {
	req.Collection = collectionOr(req.Collection)
	if req.NResults == 0 {
		req.NResults = DefaultTopK
	}
	var out KBQueryResponse
	if err := c.send(ctx, http.MethodPost, "/kb/search", req, &out); err != nil {
		return KBQueryResponse{}, err
	}
	return out, nil
}

func (c *Client) DeleteKB(ctx context.Context, req KBDeleteRequest) (KBDeleteResponse, error) {
	req.Collection = collectionOr(req.Collection)
	var out KBDeleteResponse
	if err := c.send(ctx, http.MethodPost, "/kb/delete", req, &out); err != nil {
		return KBDeleteResponse{}, err
	}
	return out, nil
}

// ListKBItems pages through stored chunks. Limit is clamped to 1..200.
func (c *Client) ListKBItems(ctx context.Context, p KBListParams) (KBListResponse, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > MaxItemsPage {
		limit = MaxItemsPage
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	q := url.Values{
		"collection": {collectionOr(p.Collection)},
		"limit":      {strconv.Itoa(limit)},
		"offset":     {strconv.Itoa(offset)},
	}
	var out KBListResponse
	if err := c.get(ctx, "/kb/items", q, &out); err != nil {
		return KBListResponse{}, err
	}
	return out, nil
}
