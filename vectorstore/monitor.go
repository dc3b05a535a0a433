package vectorstore

import (
	"github.com/poiesic/sqlrecall/ai"
	"github.com/poiesic/sqlrecall/core"
)

// RetrievalMonitor provides hooks to observe retrieval for a question.
// Implement this interface to trace which training records fed a prompt.
type RetrievalMonitor interface {
	Start(question string)
	AfterEmbedding(dimension int)
	KindResults(kind core.Kind, results []*core.SearchResult)
	Finish(rc ai.RetrievalContext)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                {}
func (n *noopMonitor) AfterEmbedding(_ int)                          {}
func (n *noopMonitor) KindResults(_ core.Kind, _ []*core.SearchResult) {}
func (n *noopMonitor) Finish(_ ai.RetrievalContext)                  {}
