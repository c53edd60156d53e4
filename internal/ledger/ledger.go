// Package ledger tracks URLs already suggested during a session so prompts can
// steer the model away from repeating them.
package ledger

import (
	"sort"
	"strings"
	"sync"
)

// None is what Rendered returns for an empty ledger.
const None = "none"

// Ledger is a set of visited URLs. The zero value is not usable; call New.
type Ledger struct {
	mu       sync.Mutex
	urls     map[string]struct{}
	rendered string
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{urls: make(map[string]struct{})}
}

// Seed adds every URL from a comma-separated list.
func (l *Ledger) Seed(csv string) {
	l.AddAll(Split(csv))
}

// Add inserts one URL and reports whether it was new. Blank input is ignored.
func (l *Ledger) Add(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.urls[url]; ok {
		return false
	}
	l.urls[url] = struct{}{}
	l.rerenderLocked()
	return true
}

// AddAll inserts several URLs and returns how many were new.
func (l *Ledger) AddAll(urls []string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	added := 0
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := l.urls[u]; !ok {
			l.urls[u] = struct{}{}
			added++
		}
	}
	if added > 0 {
		l.rerenderLocked()
	}
	return added
}

// Contains reports membership.
func (l *Ledger) Contains(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.urls[strings.TrimSpace(url)]
	return ok
}

// Len returns the number of URLs.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.urls)
}

// Snapshot returns the URLs in sorted order.
func (l *Ledger) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked()
}

// Rendered returns the sorted, comma-joined ledger, or "none" when empty.
func (l *Ledger) Rendered() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rendered == "" {
		return None
	}
	return l.rendered
}

// Clear empties the ledger (session reset).
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.urls = make(map[string]struct{})
	l.rendered = ""
}

func (l *Ledger) sortedLocked() []string {
	out := make([]string, 0, len(l.urls))
	for u := range l.urls {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) rerenderLocked() {
	l.rendered = strings.Join(l.sortedLocked(), ",")
}

// Split parses a comma-separated URL list, dropping blanks.
func Split(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
