package domain

import "time"

type ScoredChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
}

// MatchRequest is the input of a server-side similarity search.
type MatchRequest struct {
	QueryVector []float32
	Threshold   float64
	Count       int
	DocumentIDs []string
}

type QueryRequest struct {
	UserID      string
	Question    string
	DocumentIDs []string
	Limit       int
}

// Source attributes one context chunk of an answer.
type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	ChunkIndex int     `json:"chunk_index"`
	PageNumber int     `json:"page_number,omitempty"`
	LineStart  *int    `json:"line_start,omitempty"`
	LineEnd    *int    `json:"line_end,omitempty"`
	Similarity float64 `json:"similarity"`
	Location   string  `json:"location"`
}

func SourceFromChunk(c ScoredChunk) Source {
	return Source{
		DocumentID: c.DocumentID,
		ChunkID:    c.ID,
		ChunkIndex: c.Index,
		PageNumber: c.PageNumber,
		LineStart:  c.LineStart,
		LineEnd:    c.LineEnd,
		Similarity: c.Similarity,
		Location:   c.LocationLabel(),
	}
}

type Answer struct {
	QueryID  string   `json:"query_id"`
	Question string   `json:"question"`
	Text     string   `json:"answer"`
	Sources  []Source `json:"sources"`
}

// QueryLogEntry is the audit record of an answered question.
type QueryLogEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	SourceCount int       `json:"source_count"`
	CreatedAt   time.Time `json:"created_at"`
}
