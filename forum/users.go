package forum

import (
	"context"
	"fmt"
	"time"

	"github.com/mickamy/forumdb/orm"
	"github.com/mickamy/forumdb/schema"
	"github.com/mickamy/forumdb/scope"
)

// UserRepo answers account questions for registration and login.
type UserRepo struct {
	db orm.Querier
}

func NewUserRepo(db orm.Querier) *UserRepo {
	return &UserRepo{db: db}
}

// IsUnique reports whether no user has value in col. It is used to check a
// user name or e-mail address before registration.
func (r *UserRepo) IsUnique(ctx context.Context, col schema.Column, value any) (bool, error) {
	exists, err := Users(r.db).WhereEq(col.Set(value)).Exists(ctx)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// IsRegistered reports whether exactly one user matches every value.
func (r *UserRepo) IsRegistered(ctx context.Context, values ...schema.Assignment) (bool, error) {
	n, err := Users(r.db).WhereEq(values...).Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IsConfirmed is IsRegistered restricted to users who confirmed their
// e-mail address, i.e. have a join date.
func (r *UserRepo) IsConfirmed(ctx context.Context, values ...schema.Assignment) (bool, error) {
	n, err := Users(r.db).WhereEq(values...).Scopes(scope.NotNull(UserCols.DOJ)).Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Info returns every user matching all values.
func (r *UserRepo) Info(ctx context.Context, values ...schema.Assignment) ([]User, error) {
	return Users(r.db).WhereEq(values...).All(ctx) //nolint:wrapcheck // pass through
}

// ByName returns the user with the given user name, or orm.ErrNotFound.
func (r *UserRepo) ByName(ctx context.Context, name string) (User, error) {
	return Users(r.db).WhereEq(UserCols.UserName.Set(name)).First(ctx) //nolint:wrapcheck // pass through
}

// Register inserts an unconfirmed user and sets u.UID. An empty UserType
// registers a regular member.
func (r *UserRepo) Register(ctx context.Context, u *User) error {
	if u.UserType == "" {
		u.UserType = Member
	}
	if u.UserType != Member && u.UserType != Moderator {
		return fmt.Errorf("%w: unknown user type %q", orm.ErrInvalidArgument, u.UserType)
	}
	u.DOJ.Valid = false
	return Users(r.db).Create(ctx, u) //nolint:wrapcheck // pass through
}

// Confirm stamps the user's join date with the current date of the clock
// in ctx. It returns orm.ErrNotFound if no user has uid.
func (r *UserRepo) Confirm(ctx context.Context, uid int64) error {
	doj := orm.Now(ctx).UTC().Truncate(24 * time.Hour)
	res, err := Users(r.db).
		WhereEq(UserCols.UID.Set(uid)).
		Update(ctx, UserCols.DOJ.Set(doj))
	if err != nil {
		return err //nolint:wrapcheck // pass through
	}
	if res.RowsAffected == 0 {
		return orm.ErrNotFound
	}
	return nil
}
