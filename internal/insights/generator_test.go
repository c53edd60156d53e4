package insights

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/ledger"
	"github.com/hpungsan/mate/internal/llm"
	"github.com/hpungsan/mate/internal/llm/llmtest"
	"github.com/hpungsan/mate/internal/mailbox"
)

const listsContext = `<Tab>
    <Name>Python Lists Tutorial</Name>
    <URL>https://www.python.org/doc/lists</URL>
    <Context>Documentation page for Python lists</Context>
    <TextContent>A list is a collection which is ordered and changeable.</TextContent>
</Tab>`

const threeLinks = "```json\n" + `{"links": [
  {"url": "https://docs.python.org/3/tutorial/datastructures.html", "summary": "Official data structures guide"},
  {"url": "https://realpython.com/python-lists-tuples/", "summary": "Lists and tuples explained"},
  {"url": "https://www.w3schools.com/python/python_dictionaries.asp", "summary": "Move on to dictionaries"}
]}` + "\n```"

type memRecorder struct {
	mu    sync.Mutex
	calls int
	links []Link
	err   error
}

func (r *memRecorder) RecordSuggestions(_ context.Context, _ string, links []Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.links = append(r.links, links...)
	return r.err
}

func newTestGenerator(t *testing.T, gw llm.Gateway, rec Recorder) (*Generator, *ledger.Ledger, *mailbox.Mailbox[[]Link]) {
	t.Helper()
	l := ledger.New()
	box := mailbox.New[[]Link]()
	g := NewGenerator(gw, l, box, Options{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 1000,
		Recorder:  rec,
		Logger:    zaptest.NewLogger(t),
	})
	return g, l, box
}

func TestGenerateLinks_AddsOnlyFirstURL(t *testing.T) {
	gw := llmtest.New(llmtest.Text(threeLinks))
	g, l, box := newTestGenerator(t, gw, nil)

	out, err := g.GenerateLinks(context.Background(), "Learn Python data structures", listsContext)
	require.NoError(t, err)
	require.Len(t, out.Links, 3)

	require.Equal(t, 1, l.Len())
	require.Equal(t, []string{"https://docs.python.org/3/tutorial/datastructures.html"}, l.Snapshot())

	got, ok := box.Get()
	require.True(t, ok)
	require.Len(t, got, 3)
}

func TestGenerateLinks_PromptCarriesLedger(t *testing.T) {
	gw := llmtest.New(llmtest.Text(threeLinks))
	g, l, _ := newTestGenerator(t, gw, nil)

	_, err := g.GenerateLinks(context.Background(), "Learn Python data structures", listsContext)
	require.NoError(t, err)
	first := gw.Last()
	require.Contains(t, first.Prompt, "already visited urls: none")
	require.Contains(t, first.Prompt, "Learn Python data structures")
	require.Contains(t, first.Prompt, "Python Lists Tutorial")
	require.Contains(t, first.Prompt, `{"links": [{"url": "link1"`)
	require.Nil(t, first.Image)
	require.Equal(t, 1000, first.MaxTokens)

	_, err = g.GenerateLinks(context.Background(), "Learn Python data structures", listsContext)
	require.NoError(t, err)
	require.Contains(t, gw.Last().Prompt, "already visited urls: "+l.Rendered())
	require.Equal(t, 1, l.Len(), "same first url must not grow the ledger")
}

func TestGenerateLinks_RetriesThenSucceeds(t *testing.T) {
	gw := llmtest.New(
		llmtest.Fail(errors.NewTransient("overloaded", nil)),
		llmtest.Text("   "),
		llmtest.Text(threeLinks),
	)
	g, l, _ := newTestGenerator(t, gw, nil)

	_, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	require.Equal(t, 3, gw.Calls())
	require.Equal(t, 1, l.Len())
}

func TestGenerateLinks_ExhaustedLeavesStateUntouched(t *testing.T) {
	gw := llmtest.New(llmtest.Fail(stderrors.New("connection reset")))
	g, l, box := newTestGenerator(t, gw, nil)

	out, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.Nil(t, out)
	require.True(t, errors.Is(err, errors.ErrRetriesExhausted))
	require.Equal(t, llm.MaxAttempts, gw.Calls())
	require.Equal(t, 0, l.Len())
	require.False(t, box.Has())
}

func TestGenerateLinks_DecodeFailureAppliesNothing(t *testing.T) {
	gw := llmtest.New(llmtest.Text("Sure! Here are some links you might like."))
	g, l, box := newTestGenerator(t, gw, nil)

	out, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.Nil(t, out)
	require.True(t, errors.Is(err, errors.ErrDecode))
	require.Equal(t, 1, gw.Calls(), "decode failures are not retried")
	require.Equal(t, 0, l.Len())
	require.False(t, box.Has())
}

func TestGenerateLinks_EmptyListKeepsPreviousMailboxValue(t *testing.T) {
	gw := llmtest.New(llmtest.Text(threeLinks), llmtest.Text(`{"links": []}`))
	g, _, box := newTestGenerator(t, gw, nil)

	_, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	out, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	require.Empty(t, out.Links)

	got, ok := box.Get()
	require.True(t, ok)
	require.Len(t, got, 3)
}

func TestGenerateLinks_FirstLinkWithoutURL(t *testing.T) {
	gw := llmtest.New(llmtest.Text(`{"links": [{"summary": "no url"}, {"url": "https://b.example"}]}`))
	g, l, box := newTestGenerator(t, gw, nil)

	_, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	require.Equal(t, 0, l.Len())
	require.True(t, box.Has())
}

func TestGenerateLinks_ResetDuringCallDiscardsReply(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &llmtest.Gateway{Respond: func(llm.Request) (string, error) {
		close(started)
		<-release
		return `{"links": [{"url": "https://old-session.example", "summary": "Old"}]}`, nil
	}}
	rec := &memRecorder{}
	g, l, box := newTestGenerator(t, gw, rec)

	type result struct {
		out *Insights
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := g.GenerateLinks(context.Background(), "obj", listsContext)
		done <- result{out, err}
	}()

	<-started
	g.Reset()
	close(release)
	res := <-done

	require.NoError(t, res.err)
	require.Empty(t, res.out.Links)
	require.Equal(t, 0, l.Len())
	require.False(t, box.Has())
	require.Equal(t, 0, rec.calls)

	// the next call belongs to the new session
	gw.Respond = func(llm.Request) (string, error) { return threeLinks, nil }
	_, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())
	require.True(t, box.Has())
}

type memSession struct {
	mu         sync.Mutex
	gen        int64
	saved      []string
	beforeSave func(s *memSession)
}

func (s *memSession) Generation() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen, nil
}

func (s *memSession) SaveVisited(gen int64, urls []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beforeSave != nil {
		s.beforeSave(s)
	}
	if gen != s.gen {
		return false, nil
	}
	s.saved = urls
	return true, nil
}

func (s *memSession) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.saved = nil
}

func TestGenerateLinks_PersistsUnderGeneration(t *testing.T) {
	sess := &memSession{gen: 4}
	l := ledger.New()
	l.Add("https://old.example")
	box := mailbox.New[[]Link]()
	box.Put([]Link{NewLink("https://old.example", "")})
	g := NewGenerator(llmtest.New(llmtest.Text(threeLinks)), l, box, Options{Session: sess, Logger: zaptest.NewLogger(t)})

	_, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://docs.python.org/3/tutorial/datastructures.html",
		"https://old.example",
	}, sess.saved)

	// another process flushes; the running generator starts over
	sess.flush()
	_, err = g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	require.Equal(t, []string{"https://docs.python.org/3/tutorial/datastructures.html"}, l.Snapshot())
	require.Equal(t, l.Snapshot(), sess.saved)
}

func TestGenerateLinks_FlushRacingSaveDiscardsReply(t *testing.T) {
	sess := &memSession{}
	sess.beforeSave = func(s *memSession) {
		s.gen++
		s.beforeSave = nil
	}
	g, l, box := newTestGenerator(t, llmtest.New(llmtest.Text(threeLinks)), nil)
	g.session = sess

	out, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	require.Empty(t, out.Links)
	require.Equal(t, 0, l.Len())
	require.False(t, box.Has())
	require.Nil(t, sess.saved)

	// generation was refreshed, so the next reply is kept
	_, err = g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())
	require.Len(t, sess.saved, 1)
}

func TestGenerateInsights(t *testing.T) {
	reply := `{"summary": "Studying Python lists", "links": [{"url": "https://a.example", "summary": "A"}], "suggestions": "Practice slicing"}`
	gw := llmtest.New(llmtest.Text(reply))
	rec := &memRecorder{}
	g, l, _ := newTestGenerator(t, gw, rec)

	out, err := g.GenerateInsights(context.Background(), "Learn Python", listsContext)
	require.NoError(t, err)
	require.Equal(t, "Studying Python lists", out.SummaryText())
	require.Equal(t, "Practice slicing", out.SuggestionsText())
	require.True(t, l.Contains("https://a.example"))
	require.Equal(t, 1, rec.calls)

	prompt := gw.Last().Prompt
	require.Contains(t, prompt, "provide short summary of the screen content; ")
	require.Contains(t, prompt, "make suggestions how student can continue")
	require.True(t, strings.HasPrefix(prompt, role))
}

func TestGenerate_RecorderFailureIsNotFatal(t *testing.T) {
	gw := llmtest.New(llmtest.Text(threeLinks))
	rec := &memRecorder{err: stderrors.New("disk full")}
	g, l, _ := newTestGenerator(t, gw, rec)

	_, err := g.GenerateLinks(context.Background(), "obj", listsContext)
	require.NoError(t, err)
	require.Equal(t, 1, l.Len())
}

func TestSQLRecorder(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	rec := SQLRecorder{DB: database}
	links := []Link{NewLink("https://a.example", "A"), NewLink("", "no url")}
	require.NoError(t, rec.RecordSuggestions(context.Background(), "Learn Go", links))

	rows, err := db.ListSuggestions(database, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.Equal(t, "Learn Go", r.Objective)
	}
}

func TestSQLSession(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	sess := SQLSession{DB: database}
	gen, err := sess.Generation()
	require.NoError(t, err)

	ok, err := sess.SaveVisited(gen, []string{"https://a.example"})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = db.BumpGeneration(database)
	require.NoError(t, err)
	ok, err = sess.SaveVisited(gen, []string{"https://a.example", "https://b.example"})
	require.NoError(t, err)
	require.False(t, ok)

	rows, err := db.ListVisited(database)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
