// Package testutils provides in-process collaborators for tests: a scripted
// language model and a canned retriever.
package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/wongivan852/legal-ai-vault-sub000/pkg/config"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/model"
	"github.com/wongivan852/legal-ai-vault-sub000/pkg/retrieval"
)

// TestConfig returns a defaulted configuration using the in-memory stores.
func TestConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Database = ":memory:"
	return cfg
}

// StubLLM is a model.LLM that echoes the prompt unless a reply or error is
// scripted. It records every request.
type StubLLM struct {
	mu       sync.Mutex
	requests []model.Request
	replies  []string
	errs     []error

	// Reply, when set, computes the completion for a request.
	Reply func(req *model.Request) string
}

var _ model.LLM = (*StubLLM)(nil)

// NewEchoLLM returns a stub that answers with its prompt.
func NewEchoLLM() *StubLLM {
	return &StubLLM{}
}

// NewScriptedLLM returns a stub that answers with replies in order, then
// echoes.
func NewScriptedLLM(replies ...string) *StubLLM {
	return &StubLLM{replies: replies}
}

// FailNext queues errors returned before any reply.
func (s *StubLLM) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

func (s *StubLLM) Name() string             { return "stub" }
func (s *StubLLM) Provider() model.Provider { return model.ProviderOllama }
func (s *StubLLM) Close() error             { return nil }

func (s *StubLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, *req)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}

	text := req.Prompt
	switch {
	case len(s.replies) > 0:
		text = s.replies[0]
		s.replies = s.replies[1:]
	case s.Reply != nil:
		text = s.Reply(req)
	}
	return &model.Response{Text: text, Model: "stub", InputTokens: len(strings.Fields(req.Prompt))}, nil
}

// Calls returns the number of Generate calls.
func (s *StubLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of the recorded requests.
func (s *StubLLM) Requests() []model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Request(nil), s.requests...)
}

// StubRetriever answers queries from a fixed table. Unknown queries return
// no passages. Results are filtered and ordered like the real service.
type StubRetriever struct {
	mu       sync.Mutex
	Passages map[string][]retrieval.Passage
	Err      error
	queries  []string
}

var _ retrieval.Retriever = (*StubRetriever)(nil)

func NewStubRetriever(passages map[string][]retrieval.Passage) *StubRetriever {
	return &StubRetriever{Passages: passages}
}

func (s *StubRetriever) Search(ctx context.Context, query string, topK int, minScore float64) ([]retrieval.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.queries = append(s.queries, query)
	err := s.Err
	passages := s.Passages[query]
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return retrieval.Rank(append([]retrieval.Passage(nil), passages...), topK, minScore), nil
}

// Queries returns the queries received, in call order.
func (s *StubRetriever) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}
