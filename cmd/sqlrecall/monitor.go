package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/sqlrecall/ai"
	"github.com/poiesic/sqlrecall/core"
	"github.com/poiesic/sqlrecall/vectorstore"
)

// printMonitor writes each retrieval stage to w.
type printMonitor struct {
	w io.Writer
}

var _ vectorstore.RetrievalMonitor = (*printMonitor)(nil)

func (m *printMonitor) Start(question string) {
	fmt.Fprintf(m.w, "Question: %s\n", question)
}

func (m *printMonitor) AfterEmbedding(dimension int) {
	fmt.Fprintf(m.w, "Embedded question (%d dimensions)\n", dimension)
}

func (m *printMonitor) KindResults(kind core.Kind, results []*core.SearchResult) {
	fmt.Fprintf(m.w, "%s: %d matches\n", kind, len(results))
	for _, r := range results {
		fmt.Fprintf(m.w, "  %.3f  %s\n", r.Score, firstLine(r.Record.Content))
	}
}

func (m *printMonitor) Finish(rc ai.RetrievalContext) {
	if rc.Empty() {
		fmt.Fprintln(m.w, "No training data matched")
	}
	fmt.Fprintln(m.w)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	const max = 80
	if r := []rune(line); len(r) > max {
		return string(r[:max]) + "..."
	}
	return line
}
