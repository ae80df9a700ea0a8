package aggregates_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yungbote/questionbank/internal/data/aggregates"
	aggtest "github.com/yungbote/questionbank/internal/data/aggregates/testutil"
	"github.com/yungbote/questionbank/internal/data/db"
	"github.com/yungbote/questionbank/internal/data/repos/testutil"
	"github.com/yungbote/questionbank/internal/domain/question"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeCache struct {
	mu          sync.Mutex
	items       map[string]question.Question
	hits        int
	sets        int
	invalidated []string
}

func (c *fakeCache) Get(_ context.Context, uid string) (*question.Question, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.items[uid]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &q, true, nil
}

func (c *fakeCache) Set(_ context.Context, q question.Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string]question.Question{}
	}
	c.items[q.UID] = q
	c.sets++
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, uids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range uids {
		delete(c.items, u)
		c.invalidated = append(c.invalidated, u)
	}
	return nil
}

func newBank(t *testing.T, opts aggregates.Options) (*aggregates.QuestionBank, *db.Store, *fakeClock) {
	t.Helper()
	s := testutil.Store(t)
	clock := newClock()
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	return aggregates.NewQuestionBank(s.DB(), testutil.Logger(t), opts), s, clock
}

// sameQuestion compares everything but the timestamps, which are checked with Equal.
func sameQuestion(t *testing.T, got, want question.Question) {
	t.Helper()
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("timestamps: got=(%v, %v) want=(%v, %v)", got.CreatedAt, got.UpdatedAt, want.CreatedAt, want.UpdatedAt)
	}
	got.CreatedAt, got.UpdatedAt = time.Time{}, time.Time{}
	want.CreatedAt, want.UpdatedAt = time.Time{}, time.Time{}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("question mismatch:\nwant=%+v\n got=%+v", want, got)
	}
}

func questionUIDs(qs []question.Question) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.UID)
	}
	return out
}

func save(t *testing.T, b *aggregates.QuestionBank, q question.Question) question.Question {
	t.Helper()
	if err := b.Save(context.Background(), &q, false); err != nil {
		t.Fatalf("Save(%s): %v", q.UID, err)
	}
	return q
}

func TestSaveFetchRoundTrip(t *testing.T) {
	b, _, _ := newBank(t, aggregates.Options{})
	ctx := context.Background()

	q := testutil.SampleQuestion("", 0, "geometry", "algebra")
	q.Content.Image = "img/q.png"
	q.Options[1].Image = "img/b.png"
	q.Answer = "c"
	if err := b.Save(ctx, &q, true); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if q.UID == "" {
		t.Fatalf("isNew save must assign a uid")
	}
	if q.Answer != question.OptionC {
		t.Fatalf("answer not normalised on the caller's value: %q", q.Answer)
	}

	got, err := b.FetchByUID(ctx, q.UID)
	if err != nil || got == nil {
		t.Fatalf("FetchByUID: got=%v err=%v", got, err)
	}
	sameQuestion(t, *got, q)
	if !reflect.DeepEqual(got.Tags, []string{"algebra", "geometry"}) {
		t.Fatalf("tags: %v", got.Tags)
	}
}

func TestSaveWithoutUIDIsMalformed(t *testing.T) {
	b, s, _ := newBank(t, aggregates.Options{})
	q := testutil.SampleQuestion("", 0)
	err := b.Save(context.Background(), &q, false)
	if !question.IsCode(err, question.CodeMalformedRecord) {
		t.Fatalf("expected malformed_record, got %v", err)
	}
	if n := testutil.CountRows(t, s.DB(), "questions", ""); n != 0 {
		t.Fatalf("nothing should be stored, got %d", n)
	}
}

func TestFetchAbsentReturnsNil(t *testing.T) {
	b, _, _ := newBank(t, aggregates.Options{})
	got, err := b.FetchByUID(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestSaveIsIdempotentAndAdvancesUpdatedAt(t *testing.T) {
	b, s, clock := newBank(t, aggregates.Options{})
	ctx := context.Background()

	q := testutil.SampleQuestion("same", 0, "algebra")
	q.CreatedAt, q.UpdatedAt = time.Time{}, time.Time{}
	first := save(t, b, q)
	if !first.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("created_at should come from the clock: %v", first.CreatedAt)
	}

	clock.Advance(time.Minute)
	second := save(t, b, first)
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("updated_at must advance: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}

	for table, want := range map[string]int64{"questions": 1, "options": 4, "tags": 1, "question_tags": 1, "explanations": 1} {
		if n := testutil.CountRows(t, s.DB(), table, ""); n != want {
			t.Fatalf("%s rows: want=%d got=%d", table, want, n)
		}
	}
	got, err := b.FetchByUID(ctx, "same")
	if err != nil || got == nil {
		t.Fatalf("FetchByUID: %v", err)
	}
	sameQuestion(t, *got, second)
}

func TestSaveAdvancesUpdatedAtUnderFrozenClock(t *testing.T) {
	frozen := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	b, _, _ := newBank(t, aggregates.Options{Now: func() time.Time { return frozen }})

	q := testutil.SampleQuestion("frozen", 0)
	first := save(t, b, q)
	second := save(t, b, first)
	third := save(t, b, second)
	if !second.UpdatedAt.After(first.UpdatedAt) || !third.UpdatedAt.After(second.UpdatedAt) {
		t.Fatalf("updated_at not strictly increasing: %v %v %v", first.UpdatedAt, second.UpdatedAt, third.UpdatedAt)
	}
	got, err := b.FetchByUID(context.Background(), "frozen")
	if err != nil || got == nil || !got.UpdatedAt.Equal(third.UpdatedAt) {
		t.Fatalf("stored updated_at: got=%v err=%v want=%v", got, err, third.UpdatedAt)
	}
}

func TestSaveReplacesRowSets(t *testing.T) {
	b, s, _ := newBank(t, aggregates.Options{})
	ctx := context.Background()

	q := save(t, b, testutil.SampleQuestion("edit", 0, "algebra", "linear"))
	q.Tags = []string{"geometry"}
	q.Options[1] = question.Option{}
	q.Explanation = question.Explanation{}
	q.Difficulty = ""
	q = save(t, b, q)

	got, err := b.FetchByUID(ctx, "edit")
	if err != nil || got == nil {
		t.Fatalf("FetchByUID: %v", err)
	}
	sameQuestion(t, *got, q)
	if n := testutil.CountRows(t, s.DB(), "explanations", "question_uid = ?", "edit"); n != 0 {
		t.Fatalf("empty explanation must remove the row, got %d", n)
	}
	if n := testutil.CountRows(t, s.DB(), "options", "question_uid = ?", "edit"); n != 4 {
		t.Fatalf("options rows: %d", n)
	}
	tags, err := b.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if !reflect.DeepEqual(tags, []string{"algebra", "geometry", "linear"}) {
		t.Fatalf("tags outlive their questions: %v", tags)
	}
}

func TestDeleteCascadesAndKeepsSharedTags(t *testing.T) {
	b, s, _ := newBank(t, aggregates.Options{})
	ctx := context.Background()

	save(t, b, testutil.SampleQuestion("a", 0, "shared", "only-a"))
	save(t, b, testutil.SampleQuestion("b", 1, "shared"))
	if n := testutil.CountRows(t, s.DB(), "tags", "name = ?", "shared"); n != 1 {
		t.Fatalf("shared tag must be stored once, got %d", n)
	}

	if err := b.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, table := range []string{"options", "question_tags", "explanations"} {
		if n := testutil.CountRows(t, s.DB(), table, "question_uid = ?", "a"); n != 0 {
			t.Fatalf("%s rows left behind: %d", table, n)
		}
	}
	if n := testutil.CountRows(t, s.DB(), "tags", ""); n != 2 {
		t.Fatalf("tag rows must persist, got %d", n)
	}
	got, err := b.FetchByUID(ctx, "b")
	if err != nil || got == nil || !reflect.DeepEqual(got.Tags, []string{"shared"}) {
		t.Fatalf("surviving question: got=%+v err=%v", got, err)
	}

	st, err := b.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Questions != 1 || st.Tags != 2 || st.OrphanTags != 1 || st.ByDifficulty["medium"] != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestDeleteUnknownIsNotFound(t *testing.T) {
	hooks := &aggtest.HooksRecorder{}
	b, _, _ := newBank(t, aggregates.Options{Hooks: hooks})
	err := b.Delete(context.Background(), "ghost")
	if !question.IsCode(err, question.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
	ev, ok := hooks.Last("question.delete")
	if !ok || ev.Status != string(question.CodeNotFound) {
		t.Fatalf("delete event: %+v ok=%v", ev, ok)
	}
}

func TestListFilterAndCount(t *testing.T) {
	b, _, _ := newBank(t, aggregates.Options{})
	ctx := context.Background()

	qa := testutil.SampleQuestion("a", 0, "algebra")
	qb := testutil.SampleQuestion("b", 1, "geometry")
	qb.Difficulty = "hard"
	qc := testutil.SampleQuestion("c", 2, "algebra", "geometry")
	qd := testutil.SampleQuestion("d", 3)
	qd.Difficulty = ""
	for _, q := range []question.Question{qa, qb, qc, qd} {
		save(t, b, q)
	}

	cases := []struct {
		name string
		opts aggregates.ListOptions
		want []string
	}{
		{"all", aggregates.ListOptions{}, []string{"d", "c", "b", "a"}},
		{"any_tag", aggregates.ListOptions{Filter: aggregates.Filter{Tags: []string{"algebra", "geometry"}}}, []string{"c", "b", "a"}},
		{"one_tag", aggregates.ListOptions{Filter: aggregates.Filter{Tags: []string{"algebra"}}}, []string{"c", "a"}},
		{"difficulty", aggregates.ListOptions{Filter: aggregates.Filter{Difficulty: "medium"}}, []string{"c", "a"}},
		{"both", aggregates.ListOptions{Filter: aggregates.Filter{Tags: []string{"geometry"}, Difficulty: "hard"}}, []string{"b"}},
		{"unknown_tag", aggregates.ListOptions{Filter: aggregates.Filter{Tags: []string{"calculus"}}}, []string{}},
		{"page", aggregates.ListOptions{Limit: 2, Offset: 1}, []string{"c", "b"}},
		{"negative_page", aggregates.ListOptions{Limit: -1, Offset: -5}, []string{"d", "c", "b", "a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := b.List(ctx, tc.opts)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if ids := questionUIDs(got); !reflect.DeepEqual(ids, tc.want) {
				t.Fatalf("want=%v got=%v", tc.want, ids)
			}
			if tc.opts.Limit != 0 {
				return
			}
			n, err := b.Count(ctx, tc.opts.Filter)
			if err != nil || n != int64(len(tc.want)) {
				t.Fatalf("Count: n=%d err=%v", n, err)
			}
		})
	}
}

func TestSearchMatchesAnyField(t *testing.T) {
	b, _, _ := newBank(t, aggregates.Options{})
	ctx := context.Background()

	body := testutil.SampleQuestion("body", 0)
	body.Content.Text = "A HARD question"
	opt := testutil.SampleQuestion("opt", 1)
	opt.Options[2].Text = "hardly"
	diff := testutil.SampleQuestion("diff", 2)
	diff.Difficulty = "hard"
	tag := testutil.SampleQuestion("tag", 3, "hardware")
	expl := testutil.SampleQuestion("expl", 4)
	expl.Explanation.Text = "it is Hard"
	none := testutil.SampleQuestion("none", 5, "soft")
	for _, q := range []question.Question{body, opt, diff, tag, expl, none} {
		save(t, b, q)
	}

	got, err := b.Search(ctx, "hard", 0, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"expl", "tag", "diff", "opt", "body"}
	if ids := questionUIDs(got); !reflect.DeepEqual(ids, want) {
		t.Fatalf("want=%v got=%v", want, ids)
	}

	got, err = b.Search(ctx, "hard", 2, 1)
	if err != nil {
		t.Fatalf("Search(page): %v", err)
	}
	if ids := questionUIDs(got); !reflect.DeepEqual(ids, []string{"tag", "diff"}) {
		t.Fatalf("page: %v", ids)
	}

	got, err = b.Search(ctx, "100%", 0, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("wildcards must be literal: got=%v err=%v", questionUIDs(got), err)
	}
}

func TestSaveRollsBackOnRowSetFailure(t *testing.T) {
	b, s, _ := newBank(t, aggregates.Options{})
	ctx := context.Background()

	prior := save(t, b, testutil.SampleQuestion("keep", 0, "algebra"))
	trigger := `CREATE TRIGGER fail_options BEFORE INSERT ON options
		WHEN NEW.option_text = 'explode'
		BEGIN SELECT RAISE(ABORT, 'injected failure'); END`
	if err := s.DB().Exec(trigger).Error; err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	edit := prior
	edit.Content.Text = "changed"
	edit.Tags = []string{"geometry"}
	edit.Options[3].Text = "explode"
	if err := b.Save(ctx, &edit, false); err == nil {
		t.Fatalf("expected save to fail")
	}
	if edit.Tags[0] != "geometry" || !edit.UpdatedAt.Equal(prior.UpdatedAt) {
		t.Fatalf("caller's question must be left as passed: %+v", edit)
	}

	got, err := b.FetchByUID(ctx, "keep")
	if err != nil || got == nil {
		t.Fatalf("FetchByUID: %v", err)
	}
	sameQuestion(t, *got, prior)
	if n := testutil.CountRows(t, s.DB(), "tags", "name = ?", "geometry"); n != 0 {
		t.Fatalf("tag from the failed save was committed")
	}
}

func TestSaveRollsBackOnInvalidAnswer(t *testing.T) {
	b, _, _ := newBank(t, aggregates.Options{})
	ctx := context.Background()

	prior := save(t, b, testutil.SampleQuestion("keep", 0))
	edit := prior
	edit.Answer = "E"
	err := b.Save(ctx, &edit, false)
	if !question.IsCode(err, question.CodeMalformedRecord) {
		t.Fatalf("expected malformed_record, got %v", err)
	}
	got, err := b.FetchByUID(ctx, "keep")
	if err != nil || got == nil || got.Answer != question.OptionA {
		t.Fatalf("stored question changed: got=%+v err=%v", got, err)
	}
}

func TestSaveRollsBackOnCommitFailure(t *testing.T) {
	s := testutil.Store(t)
	commitErr := errors.New("commit failed")
	runner := &aggtest.InjectedTxRunner{
		Inner:      aggregates.NewGormTxRunner(s.DB()),
		FailCommit: commitErr,
	}
	failing := aggregates.NewQuestionBank(s.DB(), testutil.Logger(t), aggregates.Options{Runner: runner})

	q := testutil.SampleQuestion("lost", 0, "algebra")
	err := failing.Save(context.Background(), &q, false)
	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if runner.RollbackCalls != 1 || runner.CommitCalls != 0 {
		t.Fatalf("runner counters: commit=%d rollback=%d", runner.CommitCalls, runner.RollbackCalls)
	}
	for _, table := range []string{"questions", "options", "tags", "question_tags", "explanations"} {
		if n := testutil.CountRows(t, s.DB(), table, ""); n != 0 {
			t.Fatalf("%s has %d rows after rollback", table, n)
		}
	}
}

func TestHydrateSkipsUnmappableRows(t *testing.T) {
	b, s, _ := newBank(t, aggregates.Options{})
	ctx := context.Background()

	save(t, b, testutil.SampleQuestion("good", 0))
	save(t, b, testutil.SampleQuestion("bad", 1))
	if err := s.DB().Create(&question.OptionRow{QuestionUID: "bad", OptionKey: "E", OptionText: "extra"}).Error; err != nil {
		t.Fatalf("insert stray option: %v", err)
	}

	got, err := b.List(ctx, aggregates.ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if ids := questionUIDs(got); !reflect.DeepEqual(ids, []string{"good"}) {
		t.Fatalf("unmappable question must be skipped: %v", ids)
	}
	if _, err := b.FetchByUID(ctx, "bad"); !question.IsCode(err, question.CodeMalformedRecord) {
		t.Fatalf("expected malformed_record, got %v", err)
	}
}

func TestExport(t *testing.T) {
	b, _, _ := newBank(t, aggregates.Options{})
	ctx := context.Background()
	for i, uid := range []string{"a", "b", "c"} {
		save(t, b, testutil.SampleQuestion(uid, i))
	}

	got, err := b.Export(ctx, []string{"c", "ghost", "a", "c", " "})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if ids := questionUIDs(got); !reflect.DeepEqual(ids, []string{"c", "a"}) {
		t.Fatalf("export order: %v", ids)
	}
	got, err = b.Export(ctx, nil)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty export: got=%v err=%v", got, err)
	}
}

func TestCacheReadThroughAndInvalidation(t *testing.T) {
	cache := &fakeCache{}
	b, _, _ := newBank(t, aggregates.Options{Cache: cache})
	ctx := context.Background()

	q := save(t, b, testutil.SampleQuestion("cached", 0))
	if _, err := b.FetchByUID(ctx, "cached"); err != nil {
		t.Fatalf("FetchByUID: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("fetch should populate the cache, sets=%d", cache.sets)
	}
	if _, err := b.FetchByUID(ctx, "cached"); err != nil {
		t.Fatalf("FetchByUID: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("second fetch should hit, hits=%d", cache.hits)
	}

	q.Content.Text = "edited"
	save(t, b, q)
	got, err := b.FetchByUID(ctx, "cached")
	if err != nil || got == nil || got.Content.Text != "edited" {
		t.Fatalf("stale read after save: got=%+v err=%v", got, err)
	}

	if err := b.Delete(ctx, "cached"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = b.FetchByUID(ctx, "cached")
	if err != nil || got != nil {
		t.Fatalf("deleted question still served: got=%+v err=%v", got, err)
	}
	if len(cache.invalidated) != 3 {
		t.Fatalf("invalidations: %v", cache.invalidated)
	}
}

func TestOperationsEmitHooksAndSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	hooks := &aggtest.HooksRecorder{}
	b, _, _ := newBank(t, aggregates.Options{Hooks: hooks, Tracer: tp.Tracer("test")})
	ctx := context.Background()

	save(t, b, testutil.SampleQuestion("x", 0))
	if _, err := b.FetchByUID(ctx, "x"); err != nil {
		t.Fatalf("FetchByUID: %v", err)
	}

	for _, name := range []string{"question.save", "question.fetch"} {
		ev, ok := hooks.Last(name)
		if !ok || ev.Status != "success" {
			t.Fatalf("%s event: %+v ok=%v", name, ev, ok)
		}
	}
	var names []string
	for _, sp := range rec.Ended() {
		names = append(names, sp.Name())
	}
	if !reflect.DeepEqual(names, []string{"question.save", "question.fetch"}) {
		t.Fatalf("spans: %v", names)
	}
}
