// Package llmtest provides a scripted llm.Gateway for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/hpungsan/mate/internal/llm"
)

// Reply is one scripted gateway outcome.
type Reply struct {
	Text string
	Err  error
}

// Gateway returns scripted replies in order and records every request.
// Once the script is exhausted the last reply repeats.
type Gateway struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request

	// Respond, when set, takes precedence over the script.
	Respond func(req llm.Request) (string, error)
}

// New returns a Gateway that plays replies in order.
func New(replies ...Reply) *Gateway {
	return &Gateway{replies: replies}
}

// Text is shorthand for a successful reply.
func Text(s string) Reply { return Reply{Text: s} }

// Fail is shorthand for a failed reply.
func Fail(err error) Reply { return Reply{Err: err} }

// Complete implements llm.Gateway.
func (g *Gateway) Complete(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := len(g.requests)
	g.requests = append(g.requests, req)

	if g.Respond != nil {
		return g.Respond(req)
	}
	if len(g.replies) == 0 {
		return "", nil
	}
	if idx >= len(g.replies) {
		idx = len(g.replies) - 1
	}
	r := g.replies[idx]
	return r.Text, r.Err
}

// Calls returns the number of Complete calls so far.
func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// Requests returns a copy of the recorded requests.
func (g *Gateway) Requests() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]llm.Request, len(g.requests))
	copy(out, g.requests)
	return out
}

// Last returns the most recent request, or the zero value.
func (g *Gateway) Last() llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return llm.Request{}
	}
	return g.requests[len(g.requests)-1]
}
