//go:build integration

package forum_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mickamy/forumdb/forum"
	"github.com/mickamy/forumdb/orm"
	"github.com/mickamy/forumdb/pool"
)

var testDB *orm.DB

func TestMain(m *testing.M) {
	os.Exit(runMain(m))
}

func runMain(m *testing.M) int {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("programming_forum"),
		postgres.WithUsername("forum"),
		postgres.WithPassword("forum"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		return 1
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		return 1
	}

	testDB, err = orm.Connect(ctx, orm.PostgreSQL, pool.Config{DSN: dsn, MaxConns: 5})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to test database: %v\n", err)
		return 1
	}
	defer func() { _ = testDB.Close() }()

	if err := forum.CreateTables(ctx, testDB); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create tables: %v\n", err)
		return 1
	}

	return m.Run()
}

// setupStore truncates every forum table and returns a fresh store.
func setupStore(t *testing.T) *forum.Store {
	t.Helper()

	_, err := testDB.Execute(t.Context(), orm.Statement{
		SQL:    "TRUNCATE POSTS, THREADS, BOARDS, USERS RESTART IDENTITY CASCADE",
		Commit: true,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.Zero(t, testDB.Pool().Stats().InUse, "connections leaked")
	})
	return forum.NewStore(testDB)
}

func registerUser(t *testing.T, s *forum.Store, name string) forum.User {
	t.Helper()

	u := forum.User{
		UserName: name,
		Email:    name + "@example.com",
		PwdHash:  "$2b$13$abcdefghijklmnopqrstuuMZ1y0mTJ1Oa2Xn1rS4n9X0JqZQkzGJ6",
		DOB:      time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Users.Register(t.Context(), &u))
	return u
}

func TestCreateTablesIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()

	registerUser(t, s, "alice")
	require.NoError(t, forum.CreateTables(ctx, testDB))

	u, err := s.Users.ByName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, forum.Member, u.UserType)
}

func TestUserLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()

	unique, err := s.Users.IsUnique(ctx, forum.UserCols.Email, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, unique)

	alice := registerUser(t, s, "alice")
	assert.NotZero(t, alice.UID)

	unique, err = s.Users.IsUnique(ctx, forum.UserCols.Email, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, unique)

	registered, err := s.Users.IsRegistered(ctx, forum.UserCols.UserName.Set("alice"))
	require.NoError(t, err)
	assert.True(t, registered)

	confirmed, err := s.Users.IsConfirmed(ctx, forum.UserCols.UserName.Set("alice"))
	require.NoError(t, err)
	assert.False(t, confirmed)

	clock := orm.FixedClock(time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC))
	require.NoError(t, s.Users.Confirm(orm.WithClock(ctx, clock), alice.UID))

	confirmed, err = s.Users.IsConfirmed(ctx, forum.UserCols.UserName.Set("alice"))
	require.NoError(t, err)
	assert.True(t, confirmed)

	info, err := s.Users.Info(ctx, forum.UserCols.UID.Set(alice.UID))
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.True(t, info[0].DOJ.Valid)
	assert.Equal(t, "2026-03-04", info[0].DOJ.V.Format(time.DateOnly))

	// A duplicate user name is a failed statement, not an empty result.
	dup := forum.User{UserName: "alice", Email: "other@example.com", PwdHash: "x", DOB: alice.DOB}
	err = s.Users.Register(ctx, &dup)
	require.ErrorIs(t, err, orm.ErrQuery)

	registered, err = s.Users.IsRegistered(ctx, forum.UserCols.UserName.Set("nobody"))
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestSeedBoards(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()

	names := []string{"Python", "C++", "0 Days", "Risk Management"}
	n, err := s.Boards.SeedBoards(ctx, names)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.Boards.SeedBoards(ctx, names)
	require.NoError(t, err)
	assert.Zero(t, n)

	boards, err := s.Boards.All(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 4)
	assert.Equal(t, "0_days", boards[2].URL)

	b, err := s.Boards.ByURL(ctx, "risk_management")
	require.NoError(t, err)
	assert.Equal(t, "Discussions related to Risk Management", b.Description)
	assert.Equal(t, sql.Null[string]{V: "", Valid: true}, b.Pic)
}

func seedThreads(t *testing.T, s *forum.Store) (forum.Board, []forum.Thread, forum.User) {
	t.Helper()
	ctx := t.Context()

	_, err := s.Boards.SeedBoards(ctx, []string{"Python", "Empty"})
	require.NoError(t, err)
	board, err := s.Boards.ByURL(ctx, "python")
	require.NoError(t, err)
	author := registerUser(t, s, "bob")

	// upvotes and post counts: a(5 upvotes, 1 post), b(1, 3), c(5, 0), d(0, 3)
	seeds := []struct {
		url     string
		upvotes int
		posts   int
	}{
		{"a", 5, 1}, {"b", 1, 3}, {"c", 5, 0}, {"d", 0, 3},
	}
	var threads []forum.Thread
	for _, sp := range seeds {
		th := forum.Thread{
			URL:   sp.url,
			Title: "Thread " + sp.url,
			BID:   sql.Null[int64]{V: board.BID, Valid: true},
			UID:   sql.Null[int64]{V: author.UID, Valid: true},
		}
		require.NoError(t, s.Threads.Create(ctx, &th))
		for range sp.upvotes {
			require.NoError(t, s.Threads.Upvote(ctx, th.TID))
		}
		for i := range sp.posts {
			p := forum.Post{
				URL: fmt.Sprintf("%s-%d", sp.url, i),
				TID: sql.Null[int64]{V: th.TID, Valid: true},
				UID: sql.Null[int64]{V: author.UID, Valid: true},
			}
			require.NoError(t, s.Posts.Create(ctx, &p))
		}
		threads = append(threads, th)
	}
	return board, threads, author
}

func urls(threads []forum.Thread) []string {
	out := make([]string, len(threads))
	for i, th := range threads {
		out[i] = th.URL
	}
	return out
}

func TestThreadsByBoardURL(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()
	seedThreads(t, s)

	byReplies, err := s.Threads.ByBoardURL(ctx, "python", forum.SortByReplies, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "a", "c"}, urls(byReplies))
	assert.Equal(t, int64(3), byReplies[0].PostCount)
	assert.Equal(t, int64(0), byReplies[3].PostCount)

	byUpvotes, err := s.Threads.ByBoardURL(ctx, "python", forum.SortByUpvotes, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b", "d"}, urls(byUpvotes))
	assert.Equal(t, int64(5), byUpvotes[0].Upvotes)

	page, err := s.Threads.ByBoardURL(ctx, "python", forum.SortByUpvotes, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, urls(page))

	past, err := s.Threads.ByBoardURL(ctx, "python", forum.SortByUpvotes, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, past)

	empty, err := s.Threads.ByBoardURL(ctx, "empty", forum.SortByReplies, 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	unknown, err := s.Threads.ByBoardURL(ctx, "no_such_board", forum.SortByReplies, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestPostsByThreadURL(t *testing.T) {
	s := setupStore(t)
	ctx := t.Context()
	_, threads, author := seedThreads(t, s)

	posts, err := s.Posts.ByThreadURL(ctx, "b")
	require.NoError(t, err)
	require.Len(t, posts, 3)

	require.NoError(t, s.Posts.Upvote(ctx, posts[2].PID))
	posts, err = s.Posts.ByThreadURL(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b-2", posts[0].URL)
	for _, p := range posts {
		assert.Equal(t, author.UserName, p.AuthorName)
		assert.False(t, p.AuthorPic.Valid)
		assert.Equal(t, threads[1].TID, p.TID.V)
	}

	none, err := s.Posts.ByThreadURL(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestQueryFailureKeepsPoolUsable(t *testing.T) {
	setupStore(t)
	ctx := t.Context()

	for range 20 {
		_, err := testDB.Execute(ctx, orm.Statement{SQL: "SELECT * FROM NO_SUCH_TABLE", Fetch: true, Commit: true}, nil)
		require.ErrorIs(t, err, orm.ErrQuery)
	}

	res, err := testDB.Execute(ctx, orm.Statement{SQL: "SELECT 1", Fetch: true, Commit: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
}
