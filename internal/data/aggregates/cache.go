package aggregates

import (
	"context"

	"github.com/yungbote/questionbank/internal/domain/question"
)

// QuestionCache is an optional read-through cache for FetchByUID. Implementations must treat
// every error as a miss from the engine's point of view; the store stays authoritative.
//
// Entries are invalidated after a Save or Delete commits. A fetch that read the row before a
// concurrent write committed can still repopulate the entry afterwards, leaving it stale until its
// TTL expires. Keep the TTL short where fetches and saves run concurrently.
type QuestionCache interface {
	Get(ctx context.Context, uid string) (*question.Question, bool, error)
	Set(ctx context.Context, q question.Question) error
	Invalidate(ctx context.Context, uids ...string) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*question.Question, bool, error) {
	return nil, false, nil
}
func (noopCache) Set(context.Context, question.Question) error { return nil }
func (noopCache) Invalidate(context.Context, ...string) error  { return nil }
