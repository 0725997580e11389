// Package forum declares the forum entities (users, boards, threads and
// posts), their table schemas, and the repositories that run the forum's
// specialized queries.
//
// Every repository takes an explicit orm.Querier; nothing in this package
// holds a process-wide connection.
package forum

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/mickamy/forumdb/orm"
	"github.com/mickamy/forumdb/schema"
)

// UserType is the role of a user account.
type UserType string

const (
	Moderator UserType = "MODERATOR"
	Member    UserType = "USER"
)

// Scan implements sql.Scanner. NULL scans as the empty UserType.
func (t *UserType) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = ""
	case string:
		*t = UserType(v)
	case []byte:
		*t = UserType(v)
	default:
		return fmt.Errorf("forum: cannot scan %T into UserType", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (t UserType) Value() (driver.Value, error) {
	if t == "" {
		return nil, nil
	}
	return string(t), nil
}

type User struct {
	UID      int64
	UserName string
	Email    string
	PwdHash  string
	DOJ      sql.Null[time.Time]
	DOB      time.Time
	Pic      sql.Null[string]
	UserType UserType
}

type Board struct {
	BID         int64
	Name        string
	URL         string
	Title       string
	Description string
	Pic         sql.Null[string]
}

type Thread struct {
	TID         int64
	URL         string
	Title       string
	Description sql.Null[string]
	Pic         sql.Null[string]
	Upvotes     int64
	BID         sql.Null[int64]
	UID         sql.Null[int64]

	// PostCount is only populated by queries that select it.
	PostCount int64
}

type Post struct {
	PID     int64
	URL     string
	Text    sql.Null[string]
	Pic     sql.Null[string]
	Upvotes int64
	TID     sql.Null[int64]
	UID     sql.Null[int64]

	// AuthorName and AuthorPic are only populated by queries that join the
	// author.
	AuthorName string
	AuthorPic  sql.Null[string]
}

var (
	usersTable   = orm.TableFor[User]()
	boardsTable  = orm.TableFor[Board]()
	threadsTable = orm.TableFor[Thread]()
	postsTable   = orm.TableFor[Post]()

	// GetPostCount counts the posts of a thread.
	GetPostCount = schema.MustFunction("get_post_count")
)

// UserCols are the columns of USERS.
var UserCols = struct {
	UID, UserName, Email, PwdHash, DOJ, DOB, Pic, UserType schema.Column
}{
	UID:      usersTable.Column("UID"),
	UserName: usersTable.Column("UNAME"),
	Email:    usersTable.Column("EMAIL"),
	PwdHash:  usersTable.Column("PWDHASH"),
	DOJ:      usersTable.Column("DOJ"),
	DOB:      usersTable.Column("DOB"),
	Pic:      usersTable.Column("PIC"),
	UserType: usersTable.Column("UTYPE"),
}

// BoardCols are the columns of BOARDS.
var BoardCols = struct {
	BID, Name, URL, Title, Description, Pic schema.Column
}{
	BID:         boardsTable.Column("BID"),
	Name:        boardsTable.Column("BNAME"),
	URL:         boardsTable.Column("URL"),
	Title:       boardsTable.Column("TITLE"),
	Description: boardsTable.Column("DESCRIPTION"),
	Pic:         boardsTable.Column("PIC"),
}

// ThreadCols are the columns of THREADS.
var ThreadCols = struct {
	TID, URL, Title, Description, Pic, Upvotes, BID, UID schema.Column
}{
	TID:         threadsTable.Column("TID"),
	URL:         threadsTable.Column("URL"),
	Title:       threadsTable.Column("TITLE"),
	Description: threadsTable.Column("DESCRIPTION"),
	Pic:         threadsTable.Column("PIC"),
	Upvotes:     threadsTable.Column("UPVOTES"),
	BID:         threadsTable.Column("BID"),
	UID:         threadsTable.Column("UID"),
}

// PostCols are the columns of POSTS.
var PostCols = struct {
	PID, URL, Text, Pic, Upvotes, TID, UID schema.Column
}{
	PID:     postsTable.Column("PID"),
	URL:     postsTable.Column("URL"),
	Text:    postsTable.Column("TEXT"),
	Pic:     postsTable.Column("PIC"),
	Upvotes: postsTable.Column("UPVOTES"),
	TID:     postsTable.Column("TID"),
	UID:     postsTable.Column("UID"),
}

// Result column names of computed or aliased selections.
const (
	postCountAlias  = "POST_COUNT"
	authorNameAlias = "AUTHOR_NAME"
	authorPicAlias  = "AUTHOR_PIC"
)

// --- scanning ---

// Drivers report column names in different cases (PostgreSQL folds
// unquoted identifiers to lower case), so scanners match upper-cased names.

func scanUser(row orm.Row) (User, error) {
	cols, err := row.Columns()
	if err != nil {
		return User{}, err //nolint:wrapcheck // pass through
	}
	var v User
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch strings.ToUpper(col) {
		case "UID":
			dest[i] = &v.UID
		case "UNAME":
			dest[i] = &v.UserName
		case "EMAIL":
			dest[i] = &v.Email
		case "PWDHASH":
			dest[i] = &v.PwdHash
		case "DOJ":
			dest[i] = &v.DOJ
		case "DOB":
			dest[i] = &v.DOB
		case "PIC":
			dest[i] = &v.Pic
		case "UTYPE":
			dest[i] = &v.UserType
		default:
			dest[i] = new(any)
		}
	}
	return v, row.Scan(dest...) //nolint:wrapcheck // pass through
}

func scanBoard(row orm.Row) (Board, error) {
	cols, err := row.Columns()
	if err != nil {
		return Board{}, err //nolint:wrapcheck // pass through
	}
	var v Board
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch strings.ToUpper(col) {
		case "BID":
			dest[i] = &v.BID
		case "BNAME":
			dest[i] = &v.Name
		case "URL":
			dest[i] = &v.URL
		case "TITLE":
			dest[i] = &v.Title
		case "DESCRIPTION":
			dest[i] = &v.Description
		case "PIC":
			dest[i] = &v.Pic
		default:
			dest[i] = new(any)
		}
	}
	return v, row.Scan(dest...) //nolint:wrapcheck // pass through
}

func scanThread(row orm.Row) (Thread, error) {
	cols, err := row.Columns()
	if err != nil {
		return Thread{}, err //nolint:wrapcheck // pass through
	}
	var v Thread
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch strings.ToUpper(col) {
		case "TID":
			dest[i] = &v.TID
		case "URL":
			dest[i] = &v.URL
		case "TITLE":
			dest[i] = &v.Title
		case "DESCRIPTION":
			dest[i] = &v.Description
		case "PIC":
			dest[i] = &v.Pic
		case "UPVOTES":
			dest[i] = &v.Upvotes
		case "BID":
			dest[i] = &v.BID
		case "UID":
			dest[i] = &v.UID
		case postCountAlias:
			dest[i] = &v.PostCount
		default:
			dest[i] = new(any)
		}
	}
	return v, row.Scan(dest...) //nolint:wrapcheck // pass through
}

func scanPost(row orm.Row) (Post, error) {
	cols, err := row.Columns()
	if err != nil {
		return Post{}, err //nolint:wrapcheck // pass through
	}
	var v Post
	dest := make([]any, len(cols))
	for i, col := range cols {
		switch strings.ToUpper(col) {
		case "PID":
			dest[i] = &v.PID
		case "URL":
			dest[i] = &v.URL
		case "TEXT":
			dest[i] = &v.Text
		case "PIC":
			dest[i] = &v.Pic
		case "UPVOTES":
			dest[i] = &v.Upvotes
		case "TID":
			dest[i] = &v.TID
		case "UID":
			dest[i] = &v.UID
		case authorNameAlias:
			dest[i] = &v.AuthorName
		case authorPicAlias:
			dest[i] = &v.AuthorPic
		default:
			dest[i] = new(any)
		}
	}
	return v, row.Scan(dest...) //nolint:wrapcheck // pass through
}

// --- column values ---

func userValues(v *User, includesPK bool) []schema.Assignment {
	vals := []schema.Assignment{
		UserCols.UserName.Set(v.UserName),
		UserCols.Email.Set(v.Email),
		UserCols.PwdHash.Set(v.PwdHash),
		UserCols.DOJ.Set(v.DOJ),
		UserCols.DOB.Set(v.DOB),
		UserCols.Pic.Set(v.Pic),
		UserCols.UserType.Set(v.UserType),
	}
	if includesPK {
		vals = append([]schema.Assignment{UserCols.UID.Set(v.UID)}, vals...)
	}
	return vals
}

func boardValues(v *Board, includesPK bool) []schema.Assignment {
	vals := []schema.Assignment{
		BoardCols.Name.Set(v.Name),
		BoardCols.URL.Set(v.URL),
		BoardCols.Title.Set(v.Title),
		BoardCols.Description.Set(v.Description),
		BoardCols.Pic.Set(v.Pic),
	}
	if includesPK {
		vals = append([]schema.Assignment{BoardCols.BID.Set(v.BID)}, vals...)
	}
	return vals
}

func threadValues(v *Thread, includesPK bool) []schema.Assignment {
	vals := []schema.Assignment{
		ThreadCols.URL.Set(v.URL),
		ThreadCols.Title.Set(v.Title),
		ThreadCols.Description.Set(v.Description),
		ThreadCols.Pic.Set(v.Pic),
		ThreadCols.Upvotes.Set(v.Upvotes),
		ThreadCols.BID.Set(v.BID),
		ThreadCols.UID.Set(v.UID),
	}
	if includesPK {
		vals = append([]schema.Assignment{ThreadCols.TID.Set(v.TID)}, vals...)
	}
	return vals
}

func postValues(v *Post, includesPK bool) []schema.Assignment {
	vals := []schema.Assignment{
		PostCols.URL.Set(v.URL),
		PostCols.Text.Set(v.Text),
		PostCols.Pic.Set(v.Pic),
		PostCols.Upvotes.Set(v.Upvotes),
		PostCols.TID.Set(v.TID),
		PostCols.UID.Set(v.UID),
	}
	if includesPK {
		vals = append([]schema.Assignment{PostCols.PID.Set(v.PID)}, vals...)
	}
	return vals
}

// --- query factories ---

// Users starts a query on USERS.
func Users(db orm.Querier) *orm.Query[User] {
	return orm.NewQuery[User](db, UserModel, scanUser, userValues, func(v *User, id int64) { v.UID = id })
}

// Boards starts a query on BOARDS.
func Boards(db orm.Querier) *orm.Query[Board] {
	return orm.NewQuery[Board](db, BoardModel, scanBoard, boardValues, func(v *Board, id int64) { v.BID = id })
}

// Threads starts a query on THREADS. Join "Board" adds BOARDS.
func Threads(db orm.Querier) *orm.Query[Thread] {
	q := orm.NewQuery[Thread](db, ThreadModel, scanThread, threadValues, func(v *Thread, id int64) { v.TID = id })
	q.RegisterJoin("Board", orm.JoinConfig{Target: BoardCols.BID, Source: ThreadCols.BID})
	return q
}

// Posts starts a query on POSTS. Join "Thread" adds THREADS and "Author"
// adds USERS.
func Posts(db orm.Querier) *orm.Query[Post] {
	q := orm.NewQuery[Post](db, PostModel, scanPost, postValues, func(v *Post, id int64) { v.PID = id })
	q.RegisterJoin("Thread", orm.JoinConfig{Target: ThreadCols.TID, Source: PostCols.TID})
	q.RegisterJoin("Author", orm.JoinConfig{Target: UserCols.UID, Source: PostCols.UID})
	return q
}

func selectable(cols []schema.Column) []schema.Selectable {
	out := make([]schema.Selectable, len(cols))
	for i, c := range cols {
		out[i] = c
	}
	return out
}
