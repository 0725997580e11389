package forum

import (
	"context"
	"fmt"

	"github.com/mickamy/forumdb/orm"
	"github.com/mickamy/forumdb/schema"
	"github.com/mickamy/forumdb/scope"
)

// SortBy selects the ordering of a board's thread listing.
type SortBy string

const (
	// SortByReplies orders threads by post count, busiest first.
	SortByReplies SortBy = "replies"
	// SortByUpvotes orders threads by upvotes, most first.
	SortByUpvotes SortBy = "upvotes"
)

// ParseSortBy converts request text into a SortBy.
func ParseSortBy(s string) (SortBy, error) {
	switch SortBy(s) {
	case SortByReplies, SortByUpvotes:
		return SortBy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown sort %q", orm.ErrInvalidArgument, s)
	}
}

var postCount = schema.Invoke(GetPostCount, ThreadCols.TID)

func (s SortBy) order() (schema.Order, error) {
	switch s {
	case SortByReplies:
		return schema.Desc(postCount), nil
	case SortByUpvotes:
		return schema.Desc(ThreadCols.Upvotes), nil
	default:
		return schema.Order{}, fmt.Errorf("%w: unknown sort %q", orm.ErrInvalidArgument, string(s))
	}
}

type ThreadRepo struct {
	db orm.Querier
}

func NewThreadRepo(db orm.Querier) *ThreadRepo {
	return &ThreadRepo{db: db}
}

// ByBoardURL lists one page of the threads of the board with the given URL,
// each with its post count. Threads with equal sort keys are ordered by TID.
// An unknown board yields an empty page.
func (r *ThreadRepo) ByBoardURL(ctx context.Context, boardURL string, sortBy SortBy, offset, limit int) ([]Thread, error) {
	order, err := sortBy.order()
	if err != nil {
		return nil, err
	}
	sel := append(selectable(ThreadModel.Columns), postCount.As(postCountAlias))
	return Threads(r.db).
		Join("Board").
		Select(sel...).
		WhereEq(BoardCols.URL.Set(boardURL)).
		OrderBy(order).
		OrderBy(schema.Asc(ThreadCols.TID)).
		Scopes(scope.Paginate(offset, limit)...).
		All(ctx)
}

// ByURL returns the thread with the given URL, or orm.ErrNotFound.
func (r *ThreadRepo) ByURL(ctx context.Context, url string) (Thread, error) {
	return Threads(r.db).WhereEq(ThreadCols.URL.Set(url)).First(ctx) //nolint:wrapcheck // pass through
}

// Create inserts t and sets t.TID.
func (r *ThreadRepo) Create(ctx context.Context, t *Thread) error {
	return Threads(r.db).Create(ctx, t) //nolint:wrapcheck // pass through
}

// Upvote adds one upvote to the thread. It returns orm.ErrNotFound if no
// thread has tid.
func (r *ThreadRepo) Upvote(ctx context.Context, tid int64) error {
	res, err := Threads(r.db).WhereEq(ThreadCols.TID.Set(tid)).Increment(ctx, ThreadCols.Upvotes, 1)
	if err != nil {
		return err //nolint:wrapcheck // pass through
	}
	if res.RowsAffected == 0 {
		return orm.ErrNotFound
	}
	return nil
}
