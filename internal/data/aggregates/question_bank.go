package aggregates

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/questionbank/internal/data/mapper"
	"github.com/yungbote/questionbank/internal/data/repos"
	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/pkg/dbctx"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

// Filter narrows List and Count. A question matches Tags when it carries any of them.
type Filter struct {
	Tags       []string
	Difficulty string
}

// ListOptions pages a filtered listing. Limit <= 0 returns every match.
type ListOptions struct {
	Filter
	Limit  int
	Offset int
}

type Stats struct {
	Questions    int64            `json:"questions"`
	Tags         int64            `json:"tags"`
	OrphanTags   int64            `json:"orphan_tags"`
	ByDifficulty map[string]int64 `json:"by_difficulty"`
}

type Options struct {
	// Now is the clock used for created_at/updated_at. Defaults to time.Now.
	Now    func() time.Time
	Cache  QuestionCache
	Hooks  Hooks
	Runner TxRunner
	Tracer trace.Tracer
}

// QuestionBank is the persistence engine: the only API the editor, browser and worksheet
// collaborators use to read and write questions.
type QuestionBank struct {
	deps  BaseDeps
	repos repos.Set
	now   func() time.Time
	cache QuestionCache
	log   *logger.Logger
}

func NewQuestionBank(db *gorm.DB, baseLog *logger.Logger, opts Options) *QuestionBank {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	log := baseLog.With("service", "QuestionBank")
	b := &QuestionBank{
		deps: BaseDeps{
			DB:     db,
			Log:    log,
			Runner: opts.Runner,
			Hooks:  opts.Hooks,
			Tracer: opts.Tracer,
		}.withDefaults(),
		repos: repos.NewSet(db, baseLog),
		now:   opts.Now,
		cache: opts.Cache,
		log:   log,
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.cache == nil {
		b.cache = noopCache{}
	}
	return b
}

// FetchByUID returns the question with uid, or nil when there is none.
func (b *QuestionBank) FetchByUID(ctx context.Context, uid string) (*question.Question, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, nil
	}
	if q, ok, err := b.cache.Get(ctx, uid); err != nil {
		b.log.Warn("question cache read failed", "uid", uid, "error", err)
	} else if ok {
		return q, nil
	}

	var out *question.Question
	err := executeRead(ctx, b.deps, "question.fetch", func(dbc dbctx.Context) error {
		row, err := b.repos.Questions.GetByUID(dbc, uid)
		if err != nil || row == nil {
			return err
		}
		qs, err := b.hydrate(dbc, []question.QuestionRow{*row}, true)
		if err != nil {
			return err
		}
		out = &qs[0]
		return nil
	})
	if err != nil {
		b.log.Error("fetch failed", "uid", uid, "error", err)
		return nil, question.WithUID(err, uid)
	}
	if out != nil {
		if err := b.cache.Set(ctx, *out); err != nil {
			b.log.Warn("question cache write failed", "uid", uid, "error", err)
		}
	}
	return out, nil
}

// Save inserts q or replaces the stored question with the same uid. When isNew is set and q has
// no uid, a fresh one is assigned to q. All four row-sets are rewritten in one transaction; on
// failure the store is left exactly as it was.
func (b *QuestionBank) Save(ctx context.Context, q *question.Question, isNew bool) error {
	if q == nil {
		return question.NewError(question.CodeMalformedRecord, "question.save", "nil question", nil)
	}
	if isNew {
		q.EnsureUID()
	}
	candidate := *q
	candidate.Normalize()
	uid := candidate.UID

	err := executeWrite(ctx, b.deps, "question.save", func(dbc dbctx.Context) error {
		_, err := b.WriteInTx(dbc, &candidate, WriteUpsert)
		return err
	})
	if err != nil {
		b.log.Error("save failed", "uid", uid, "error", err)
		return question.WithUID(err, uid)
	}
	*q = candidate
	b.invalidate(ctx, uid)
	b.log.Debug("question saved", "uid", uid)
	return nil
}

// WriteMode selects how WriteInTx treats a question row that already exists.
type WriteMode int

const (
	// WriteUpsert replaces an existing question.
	WriteUpsert WriteMode = iota
	// WriteInsertOnly leaves an existing question and all its row-sets untouched.
	WriteInsertOnly
)

// WriteInTx validates q and writes its row-sets inside the caller's transaction, stamping q's
// timestamps. It reports whether anything was written; only WriteInsertOnly on an existing uid
// writes nothing. Callers own the transaction and its error mapping.
func (b *QuestionBank) WriteInTx(dbc dbctx.Context, q *question.Question, mode WriteMode) (bool, error) {
	if q == nil {
		return false, MalformedError("nil question")
	}
	q.Normalize()
	if err := q.Validate(); err != nil {
		return false, err
	}
	existing, err := b.repos.Questions.GetByUID(dbc, q.UID)
	if err != nil {
		return false, err
	}
	if existing != nil && mode == WriteInsertOnly {
		return false, nil
	}
	now := b.now().UTC()
	created := q.CreatedAt.UTC()
	if created.IsZero() {
		created = now
	}
	updated := now
	if existing != nil {
		created = existing.CreatedAt.UTC()
		// updated_at is strictly increasing per question even under a coarse or frozen clock.
		if !updated.After(existing.UpdatedAt) {
			updated = existing.UpdatedAt.UTC().Add(time.Millisecond)
		}
	}
	q.CreatedAt, q.UpdatedAt = created, updated

	rows := mapper.ToRows(*q)
	if mode == WriteInsertOnly {
		wrote, err := b.repos.Questions.InsertIgnore(dbc, &rows.Question)
		if err != nil || !wrote {
			return false, err
		}
	} else if err := b.repos.Questions.Upsert(dbc, &rows.Question); err != nil {
		return false, err
	}

	if err := b.repos.Options.ReplaceForQuestion(dbc, q.UID, rows.Options[:]); err != nil {
		return false, err
	}
	tags, err := b.repos.Tags.EnsureNames(dbc, rows.Tags)
	if err != nil {
		return false, err
	}
	ids := make([]uint, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	if err := b.repos.QuestionTags.ReplaceForQuestion(dbc, q.UID, ids); err != nil {
		return false, err
	}
	if rows.Explanation != nil {
		err = b.repos.Explanations.Upsert(dbc, rows.Explanation)
	} else {
		err = b.repos.Explanations.DeleteByQuestionUID(dbc, q.UID)
	}
	if err != nil {
		return false, err
	}
	q.Tags = rows.Tags
	return true, nil
}

// Delete removes the question; its options, tag links and explanation go with it by cascade.
// Tag rows are never removed. Deleting an unknown uid is a not_found error.
func (b *QuestionBank) Delete(ctx context.Context, uid string) error {
	uid = strings.TrimSpace(uid)
	err := executeWrite(ctx, b.deps, "question.delete", func(dbc dbctx.Context) error {
		n, err := b.repos.Questions.DeleteByUID(dbc, uid)
		if err != nil {
			return err
		}
		if n == 0 {
			return question.NewError(question.CodeNotFound, "question.delete", "no question with this uid", nil)
		}
		return nil
	})
	if err != nil {
		if question.IsCode(err, question.CodeNotFound) {
			b.log.Warn("delete of unknown question", "uid", uid)
		} else {
			b.log.Error("delete failed", "uid", uid, "error", err)
		}
		return question.WithUID(err, uid)
	}
	b.invalidate(ctx, uid)
	b.log.Debug("question deleted", "uid", uid)
	return nil
}

// List returns the matching questions newest-first. Only the requested page is hydrated.
func (b *QuestionBank) List(ctx context.Context, opts ListOptions) ([]question.Question, error) {
	var out []question.Question
	err := executeRead(ctx, b.deps, "question.list", func(dbc dbctx.Context) error {
		rows, err := b.repos.Questions.List(dbc, repoFilter(opts.Filter), page(opts.Limit, opts.Offset))
		if err != nil {
			return err
		}
		out, err = b.hydrate(dbc, rows, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns how many questions List would return without a limit.
func (b *QuestionBank) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	err := executeRead(ctx, b.deps, "question.count", func(dbc dbctx.Context) error {
		var err error
		n, err = b.repos.Questions.Count(dbc, repoFilter(f))
		return err
	})
	return n, err
}

// Search matches text case-insensitively against the question body, option text, explanation,
// tag names and difficulty; any one field matching is enough. Results are newest-first.
func (b *QuestionBank) Search(ctx context.Context, text string, limit, offset int) ([]question.Question, error) {
	var out []question.Question
	err := executeRead(ctx, b.deps, "question.search", func(dbc dbctx.Context) error {
		rows, err := b.repos.Questions.Search(dbc, strings.TrimSpace(text), page(limit, offset))
		if err != nil {
			return err
		}
		out, err = b.hydrate(dbc, rows, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListTags returns every tag name, including tags no question uses any more.
func (b *QuestionBank) ListTags(ctx context.Context) ([]string, error) {
	var out []string
	err := executeRead(ctx, b.deps, "question.list_tags", func(dbc dbctx.Context) error {
		var err error
		out, err = b.repos.Tags.ListNames(dbc)
		return err
	})
	return out, err
}

// MigrationRuns returns the audit rows of past corpus imports, newest first. limit <= 0 returns all.
func (b *QuestionBank) MigrationRuns(ctx context.Context, limit int) ([]question.MigrationRun, error) {
	var out []question.MigrationRun
	err := executeRead(ctx, b.deps, "question.migration_runs", func(dbc dbctx.Context) error {
		var err error
		out, err = b.repos.MigrationRuns.ListRecent(dbc, limit)
		return err
	})
	return out, err
}

// Export returns the questions for uids in the order given. Unknown and repeated uids are skipped.
func (b *QuestionBank) Export(ctx context.Context, uids []string) ([]question.Question, error) {
	wanted := make([]string, 0, len(uids))
	seen := make(map[string]struct{}, len(uids))
	for _, u := range uids {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		wanted = append(wanted, u)
	}
	out := []question.Question{}
	if len(wanted) == 0 {
		return out, nil
	}
	err := executeRead(ctx, b.deps, "question.export", func(dbc dbctx.Context) error {
		rows, err := b.repos.Questions.GetByUIDs(dbc, wanted)
		if err != nil {
			return err
		}
		qs, err := b.hydrate(dbc, rows, false)
		if err != nil {
			return err
		}
		byUID := make(map[string]question.Question, len(qs))
		for _, q := range qs {
			byUID[q.UID] = q
		}
		for _, u := range wanted {
			if q, ok := byUID[u]; ok {
				out = append(out, q)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *QuestionBank) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByDifficulty: map[string]int64{}}
	err := executeRead(ctx, b.deps, "question.stats", func(dbc dbctx.Context) error {
		var err error
		if st.Questions, err = b.repos.Questions.Count(dbc, repos.Filter{}); err != nil {
			return err
		}
		if st.Tags, err = b.repos.Tags.Count(dbc); err != nil {
			return err
		}
		if st.OrphanTags, err = b.repos.Tags.CountOrphans(dbc); err != nil {
			return err
		}
		counts, err := b.repos.Questions.CountByDifficulty(dbc)
		if err != nil {
			return err
		}
		for _, c := range counts {
			label := ""
			if c.Difficulty != nil {
				label = *c.Difficulty
			}
			st.ByDifficulty[label] += c.N
		}
		return nil
	})
	return st, err
}

// hydrate loads the option, tag and explanation row-sets for rows with one query each and maps
// every question. A row that fails to map is logged and skipped unless strict is set.
func (b *QuestionBank) hydrate(dbc dbctx.Context, rows []question.QuestionRow, strict bool) ([]question.Question, error) {
	out := make([]question.Question, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	uids := make([]string, len(rows))
	for i, r := range rows {
		uids[i] = r.UID
	}
	opts, err := b.repos.Options.GetByQuestionUIDs(dbc, uids)
	if err != nil {
		return nil, err
	}
	tagged, err := b.repos.QuestionTags.ListByQuestionUIDs(dbc, uids)
	if err != nil {
		return nil, err
	}
	expls, err := b.repos.Explanations.GetByQuestionUIDs(dbc, uids)
	if err != nil {
		return nil, err
	}
	bundle := mapper.NewBundle(opts, tagged, expls)
	for _, r := range rows {
		q, err := bundle.Hydrate(r)
		if err != nil {
			if strict {
				return nil, err
			}
			b.log.Warn("skipping unmappable question", "uid", r.UID, "error", err)
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (b *QuestionBank) invalidate(ctx context.Context, uid string) {
	if err := b.cache.Invalidate(ctx, uid); err != nil {
		b.log.Warn("question cache invalidate failed", "uid", uid, "error", err)
	}
}

func repoFilter(f Filter) repos.Filter {
	return repos.Filter{Tags: f.Tags, Difficulty: f.Difficulty}
}

func page(limit, offset int) repos.Page {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return repos.Page{Limit: limit, Offset: offset}
}
