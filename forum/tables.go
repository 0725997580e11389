package forum

import (
	"context"

	"github.com/mickamy/forumdb/orm"
	"github.com/mickamy/forumdb/schema"
)

// Dialect names the schemas are keyed by.
var (
	postgres = orm.PostgreSQL.Name()
	mysql    = orm.MySQL.Name()
)

// UserModel describes USERS. On PostgreSQL the USER_TYPE enum is created
// only when missing, so existing rows keep their type.
var UserModel = orm.Model{
	Name:  "User",
	Table: usersTable,
	PK:    UserCols.UID,
	Columns: []schema.Column{
		UserCols.UID, UserCols.UserName, UserCols.Email, UserCols.PwdHash,
		UserCols.DOJ, UserCols.DOB, UserCols.Pic, UserCols.UserType,
	},
	Schema: map[string][]string{
		postgres: {
			`DO $$ BEGIN
				CREATE TYPE USER_TYPE AS ENUM ('MODERATOR', 'USER');
			EXCEPTION
				WHEN duplicate_object THEN NULL;
			END $$`,
			`CREATE TABLE IF NOT EXISTS USERS (
				UID SERIAL PRIMARY KEY,
				UNAME VARCHAR(60) UNIQUE NOT NULL,
				EMAIL VARCHAR(100) UNIQUE NOT NULL,
				PWDHASH CHAR(60) NOT NULL,
				DOJ DATE,
				DOB DATE NOT NULL,
				PIC VARCHAR(200),
				UTYPE USER_TYPE DEFAULT 'USER'
			)`,
		},
		mysql: {
			`CREATE TABLE IF NOT EXISTS USERS (
				UID INT AUTO_INCREMENT PRIMARY KEY,
				UNAME VARCHAR(60) UNIQUE NOT NULL,
				EMAIL VARCHAR(100) UNIQUE NOT NULL,
				PWDHASH CHAR(60) NOT NULL,
				DOJ DATE,
				DOB DATE NOT NULL,
				PIC VARCHAR(200),
				UTYPE ENUM('MODERATOR', 'USER') DEFAULT 'USER'
			)`,
		},
	},
}

var BoardModel = orm.Model{
	Name:  "Board",
	Table: boardsTable,
	PK:    BoardCols.BID,
	Columns: []schema.Column{
		BoardCols.BID, BoardCols.Name, BoardCols.URL, BoardCols.Title,
		BoardCols.Description, BoardCols.Pic,
	},
	Schema: map[string][]string{
		postgres: {
			`CREATE TABLE IF NOT EXISTS BOARDS (
				BID SERIAL PRIMARY KEY,
				BNAME VARCHAR(60) UNIQUE NOT NULL,
				URL VARCHAR(200) UNIQUE NOT NULL,
				TITLE VARCHAR(60) NOT NULL,
				DESCRIPTION VARCHAR(200) NOT NULL,
				PIC VARCHAR(200)
			)`,
		},
		mysql: {
			`CREATE TABLE IF NOT EXISTS BOARDS (
				BID INT AUTO_INCREMENT PRIMARY KEY,
				BNAME VARCHAR(60) UNIQUE NOT NULL,
				URL VARCHAR(200) UNIQUE NOT NULL,
				TITLE VARCHAR(60) NOT NULL,
				DESCRIPTION VARCHAR(200) NOT NULL,
				PIC VARCHAR(200)
			)`,
		},
	},
}

// ThreadModel describes THREADS and the get_post_count function. The
// function body reads POSTS only when called, so it may be declared before
// POSTS exists.
var ThreadModel = orm.Model{
	Name:  "Thread",
	Table: threadsTable,
	PK:    ThreadCols.TID,
	Columns: []schema.Column{
		ThreadCols.TID, ThreadCols.URL, ThreadCols.Title, ThreadCols.Description,
		ThreadCols.Pic, ThreadCols.Upvotes, ThreadCols.BID, ThreadCols.UID,
	},
	Schema: map[string][]string{
		postgres: {
			`CREATE TABLE IF NOT EXISTS THREADS (
				TID SERIAL PRIMARY KEY,
				URL VARCHAR(200) UNIQUE NOT NULL,
				TITLE VARCHAR(200) NOT NULL,
				DESCRIPTION VARCHAR(40000),
				PIC VARCHAR(200),
				UPVOTES INT NOT NULL DEFAULT 0,
				BID INT REFERENCES BOARDS(BID),
				UID INT REFERENCES USERS(UID) ON DELETE SET NULL
			)`,
			`CREATE OR REPLACE FUNCTION get_post_count(p_tid integer) RETURNS integer AS $$
			BEGIN
				RETURN (SELECT COUNT(TID) FROM POSTS WHERE POSTS.TID = p_tid);
			END;
			$$ LANGUAGE plpgsql`,
		},
		mysql: {
			`CREATE TABLE IF NOT EXISTS THREADS (
				TID INT AUTO_INCREMENT PRIMARY KEY,
				URL VARCHAR(200) UNIQUE NOT NULL,
				TITLE VARCHAR(200) NOT NULL,
				DESCRIPTION TEXT,
				PIC VARCHAR(200),
				UPVOTES INT NOT NULL DEFAULT 0,
				BID INT,
				UID INT,
				FOREIGN KEY (BID) REFERENCES BOARDS(BID),
				FOREIGN KEY (UID) REFERENCES USERS(UID) ON DELETE SET NULL
			)`,
			`DROP FUNCTION IF EXISTS get_post_count`,
			`CREATE FUNCTION get_post_count(p_tid INT) RETURNS INT
				READS SQL DATA
				RETURN (SELECT COUNT(TID) FROM POSTS WHERE POSTS.TID = p_tid)`,
		},
	},
}

var PostModel = orm.Model{
	Name:  "Post",
	Table: postsTable,
	PK:    PostCols.PID,
	Columns: []schema.Column{
		PostCols.PID, PostCols.URL, PostCols.Text, PostCols.Pic,
		PostCols.Upvotes, PostCols.TID, PostCols.UID,
	},
	Schema: map[string][]string{
		postgres: {
			`CREATE TABLE IF NOT EXISTS POSTS (
				PID SERIAL PRIMARY KEY,
				URL VARCHAR(200) UNIQUE NOT NULL,
				TEXT VARCHAR(40000),
				PIC VARCHAR(200),
				UPVOTES INT NOT NULL DEFAULT 0,
				TID INT REFERENCES THREADS(TID) ON DELETE CASCADE,
				UID INT REFERENCES USERS(UID) ON DELETE SET NULL
			)`,
		},
		mysql: {
			`CREATE TABLE IF NOT EXISTS POSTS (
				PID INT AUTO_INCREMENT PRIMARY KEY,
				URL VARCHAR(200) UNIQUE NOT NULL,
				TEXT TEXT,
				PIC VARCHAR(200),
				UPVOTES INT NOT NULL DEFAULT 0,
				TID INT,
				UID INT,
				FOREIGN KEY (TID) REFERENCES THREADS(TID) ON DELETE CASCADE,
				FOREIGN KEY (UID) REFERENCES USERS(UID) ON DELETE SET NULL
			)`,
		},
	},
}

// Models lists the forum models in dependency order.
var Models = orm.MustRegistry(UserModel, BoardModel, ThreadModel, PostModel)

// CreateTables creates every forum table. It is safe to run against an
// existing schema.
func CreateTables(ctx context.Context, db orm.Querier) error {
	return Models.CreateTables(ctx, db) //nolint:wrapcheck // pass through
}
