package core

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for training records.
// It is derived from the record's kind and content so retraining identical
// material overwrites instead of duplicating.
type ID uint64

// IDFromContent generates a deterministic ID from a kind and its content using BLAKE2b hashing.
func IDFromContent(kind Kind, content string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(kind.String()))
	h.Write([]byte{0})
	h.Write([]byte(content))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Kind identifies the category of a training item.
type Kind int

const (
	// KindDDL is a schema definition statement.
	KindDDL Kind = iota + 1
	// KindDocumentation is free-form business or schema documentation.
	KindDocumentation
	// KindQuestionSQL is a natural-language question paired with its SQL.
	KindQuestionSQL
)

// Kinds returns every known kind in dispatch order.
func Kinds() []Kind {
	return []Kind{KindDDL, KindDocumentation, KindQuestionSQL}
}

func (k Kind) String() string {
	switch k {
	case KindDDL:
		return "ddl"
	case KindDocumentation:
		return "documentation"
	case KindQuestionSQL:
		return "question_sql"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k >= KindDDL && k <= KindQuestionSQL
}

// ParseKind converts a kind name to a Kind. Matching is case-insensitive and
// accepts the short aliases "doc" and "sql".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ddl":
		return KindDDL, nil
	case "documentation", "doc":
		return KindDocumentation, nil
	case "question_sql", "sql":
		return KindQuestionSQL, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// TrainingItem is one unit of training material. It is an immutable value;
// build it with NewDDL, NewDocumentation or NewQuestionSQL.
type TrainingItem struct {
	kind     Kind
	text     string
	question string
	sql      string
}

// NewDDL creates a DDL training item.
func NewDDL(statement string) TrainingItem {
	return TrainingItem{kind: KindDDL, text: statement}
}

// NewDocumentation creates a documentation training item.
func NewDocumentation(text string) TrainingItem {
	return TrainingItem{kind: KindDocumentation, text: text}
}

// NewQuestionSQL creates a question/SQL pair training item.
func NewQuestionSQL(question, sql string) TrainingItem {
	return TrainingItem{kind: KindQuestionSQL, question: question, sql: sql}
}

func (i TrainingItem) Kind() Kind { return i.kind }

// Statement returns the DDL statement. Empty for other kinds.
func (i TrainingItem) Statement() string {
	if i.kind != KindDDL {
		return ""
	}
	return i.text
}

// Text returns the documentation text. Empty for other kinds.
func (i TrainingItem) Text() string {
	if i.kind != KindDocumentation {
		return ""
	}
	return i.text
}

func (i TrainingItem) Question() string { return i.question }

func (i TrainingItem) SQL() string { return i.sql }

// Content returns the text that is embedded for this item. Question/SQL pairs
// are embedded as a JSON object holding both fields.
func (i TrainingItem) Content() string {
	if i.kind == KindQuestionSQL {
		return questionSQLContent(i.question, i.sql)
	}
	return i.text
}

// ID returns the deterministic record ID for this item.
func (i TrainingItem) ID() ID {
	return IDFromContent(i.kind, i.Content())
}

func questionSQLContent(question, sql string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(struct {
		Question string `json:"question"`
		SQL      string `json:"sql"`
	}{question, sql})
	return strings.TrimSuffix(buf.String(), "\n")
}

// TrainingRecord is the persisted form of a training item together with its embedding.
type TrainingRecord struct {
	Id         ID        `json:"id"`
	Kind       Kind      `json:"kind"`
	Content    string    `json:"content"`
	Question   string    `json:"question,omitempty"`
	SQL        string    `json:"sql,omitempty"`
	Vector     []float32 `json:"vector,omitempty"`
	InsertedAt time.Time `json:"inserted_at"`
}

// NewTrainingRecord builds the record for item carrying vector.
func NewTrainingRecord(item TrainingItem, vector []float32) *TrainingRecord {
	return &TrainingRecord{
		Id:         item.ID(),
		Kind:       item.Kind(),
		Content:    item.Content(),
		Question:   item.Question(),
		SQL:        item.SQL(),
		Vector:     vector,
		InsertedAt: time.Now().UTC(),
	}
}

// SearchResult represents a search result with the full record and relevance score.
type SearchResult struct {
	Record *TrainingRecord
	Score  float32
}
