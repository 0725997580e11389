package forum

import (
	"database/sql"

	"github.com/mickamy/forumdb/orm"
)

// Store groups the forum repositories over one handle.
type Store struct {
	Users   *UserRepo
	Boards  *BoardRepo
	Threads *ThreadRepo
	Posts   *PostRepo
}

func NewStore(db orm.Querier) *Store {
	return &Store{
		Users:   NewUserRepo(db),
		Boards:  NewBoardRepo(db),
		Threads: NewThreadRepo(db),
		Posts:   NewPostRepo(db),
	}
}

func sqlString(s string) sql.Null[string] {
	return sql.Null[string]{V: s, Valid: true}
}
