package forum

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mickamy/forumdb/internal/naming"
	"github.com/mickamy/forumdb/orm"
	"github.com/mickamy/forumdb/schema"
)

type BoardRepo struct {
	db orm.Querier
}

func NewBoardRepo(db orm.Querier) *BoardRepo {
	return &BoardRepo{db: db}
}

// ByURL returns the board with the given URL slug, or orm.ErrNotFound.
func (r *BoardRepo) ByURL(ctx context.Context, url string) (Board, error) {
	return Boards(r.db).WhereEq(BoardCols.URL.Set(url)).First(ctx) //nolint:wrapcheck // pass through
}

// All returns every board in creation order.
func (r *BoardRepo) All(ctx context.Context) ([]Board, error) {
	return Boards(r.db).OrderBy(schema.Asc(BoardCols.BID)).All(ctx) //nolint:wrapcheck // pass through
}

// NewBoard builds the default board for a display name.
//
//	NewBoard("Risk Management") // URL "risk_management", description "Discussions related to Risk Management"
func NewBoard(name string) Board {
	return Board{
		Name:        name,
		URL:         naming.Slug(name),
		Title:       name,
		Description: "Discussions related to " + name,
		Pic:         sqlString(""),
	}
}

// SeedBoards creates one board per name, skipping names that already have
// a board. It returns the number of boards created.
func (r *BoardRepo) SeedBoards(ctx context.Context, names []string) (int, error) {
	log := zerolog.Ctx(ctx)
	created := 0
	for _, name := range names {
		exists, err := Boards(r.db).WhereEq(BoardCols.Name.Set(name)).Exists(ctx)
		if err != nil {
			return created, fmt.Errorf("seed board %q: %w", name, err)
		}
		if exists {
			log.Debug().Str("board", name).Msg("board exists, skipping")
			continue
		}

		log.Info().Str("board", name).Msg("creating board")
		b := NewBoard(name)
		if err := Boards(r.db).Create(ctx, &b); err != nil {
			return created, fmt.Errorf("seed board %q: %w", name, err)
		}
		created++
	}
	return created, nil
}
