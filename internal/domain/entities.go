package domain

import "time"

// Document is a source file discovered at ingestion time.
type Document struct {
	Name    string
	Path    string
	ModTime time.Time
	Pages   int
}

// Page is the extracted text of one page of a Document. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Segment is a bounded span of document text with its provenance.
// Offset is the byte offset of Text within its page.
type Segment struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Ordinal int    `json:"ordinal"`
	Offset  int    `json:"offset"`
	Text    string `json:"text"`
}

type ScoredSegment struct {
	Segment Segment
	Score   float64
}

// IndexedDocument carries the segments and vectors of one document into an index build.
type IndexedDocument struct {
	Name     string
	Segments []Segment
	Vectors  [][]float32
}

type Query struct {
	Text         string
	DocumentName string
	Temperature  *float64
}

type Answer struct {
	Text    string
	Sources []Segment
}

type Source struct {
	Rank         int    `json:"rank"`
	DocumentName string `json:"document_name"`
	Page         int    `json:"page"`
	Excerpt      string `json:"excerpt"`
}

type QueryResult struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	ContextURL string   `json:"context_url"`
	Incident   bool     `json:"incident"`
	Notified   bool     `json:"notified"`
}

// Message roles accepted in a Transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	IsTyping bool   `json:"isTyping,omitempty"`
}

// Transcript is a conversation handed in by the caller. A nil Messages
// slice means the field was missing.
type Transcript struct {
	Messages []Message `json:"messages"`
}

// Alert is an outgoing notification.
type Alert struct {
	Subject string
	HTML    string
	To      []string
	Link    string // context URL embedded in HTML, if any
}

type Incident struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	ContextURL string    `json:"context_url"`
	Notified   bool      `json:"notified"`
	CreatedAt  time.Time `json:"created_at"`
}

type IngestResult struct {
	Documents []string      `json:"documents"`
	Pages     int           `json:"pages"`
	Segments  int           `json:"segments"`
	Backend   string        `json:"backend"`
	Duration  time.Duration `json:"duration"`
}

// Report is a rendered incident report.
type Report struct {
	ID       string
	Filename string
	Data     []byte
}
