package forum

import (
	"context"

	"github.com/mickamy/forumdb/orm"
	"github.com/mickamy/forumdb/schema"
)

type PostRepo struct {
	db orm.Querier
}

func NewPostRepo(db orm.Querier) *PostRepo {
	return &PostRepo{db: db}
}

// ByThreadURL returns the posts of the thread with the given URL, most
// upvoted first, each with its author's name and picture. Posts whose
// author was deleted are not listed.
func (r *PostRepo) ByThreadURL(ctx context.Context, threadURL string) ([]Post, error) {
	sel := append(selectable(PostModel.Columns),
		UserCols.UserName.As(authorNameAlias),
		UserCols.Pic.As(authorPicAlias),
	)
	return Posts(r.db).
		Join("Thread").
		Join("Author").
		Select(sel...).
		WhereEq(ThreadCols.URL.Set(threadURL)).
		OrderBy(schema.Desc(PostCols.Upvotes)).
		OrderBy(schema.Asc(PostCols.PID)).
		All(ctx)
}

// Create inserts p and sets p.PID.
func (r *PostRepo) Create(ctx context.Context, p *Post) error {
	return Posts(r.db).Create(ctx, p) //nolint:wrapcheck // pass through
}

// Upvote adds one upvote to the post. It returns orm.ErrNotFound if no
// post has pid.
func (r *PostRepo) Upvote(ctx context.Context, pid int64) error {
	res, err := Posts(r.db).WhereEq(PostCols.PID.Set(pid)).Increment(ctx, PostCols.Upvotes, 1)
	if err != nil {
		return err //nolint:wrapcheck // pass through
	}
	if res.RowsAffected == 0 {
		return orm.ErrNotFound
	}
	return nil
}
