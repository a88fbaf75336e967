package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/storefront-auth/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

const userColumns = "id,username,email,first_name,last_name,address,phone,password_hash,role,verified,created_at,updated_at"

// MySQLUserStore mirrors the 'users' table.
type MySQLUserStore struct{ DB *sqlx.DB }

func NewMySQLUserStore(db *sqlx.DB) *MySQLUserStore { return &MySQLUserStore{DB: db} }

// FindByHandleOrEmail runs the single existence query used by both the
// registration pre-check and login.
func (r *MySQLUserStore) FindByHandleOrEmail(ctx context.Context, handle, email string) (*model.User, error) {
	handle = strings.TrimSpace(handle)
	email = model.NormalizeEmail(email)
	if handle == "" && email == "" {
		return nil, ErrNotFound
	}
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE (username=? AND ?<>'') OR (email=? AND ?<>'') LIMIT 1",
		handle, handle, email, email)
	return one(&u, err)
}

// FindByID fetches a user by id.
func (r *MySQLUserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return one(&u, err)
}

// ExistsByRole checks whether any user holds role.
func (r *MySQLUserStore) ExistsByRole(ctx context.Context, role model.Role) (bool, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, "SELECT EXISTS(SELECT 1 FROM users WHERE role=?)", role)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Insert assigns a uuid and timestamps, then writes the row.
func (r *MySQLUserStore) Insert(ctx context.Context, u *model.User) error {
	now := time.Now().UTC().Truncate(time.Second)
	u.ID = uuid.NewString()
	u.Email = model.NormalizeEmail(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := r.DB.NamedExecContext(ctx,
		`INSERT INTO users (id,username,email,first_name,last_name,address,phone,password_hash,role,verified,created_at,updated_at)
		 VALUES (:id,:username,:email,:first_name,:last_name,:address,:phone,:password_hash,:role,:verified,:created_at,:updated_at)`,
		u)
	if err != nil {
		u.ID = ""
		return mapMySQLError(err)
	}
	return nil
}

// UpdateByID writes only the columns present in patch.
func (r *MySQLUserStore) UpdateByID(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	var (
		sets []string
		args []interface{}
	)
	add := func(col string, v interface{}) {
		sets = append(sets, col+"=?")
		args = append(args, v)
	}
	if patch.FirstName != nil {
		add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", *patch.LastName)
	}
	if patch.Email != nil {
		add("email", model.NormalizeEmail(*patch.Email))
	}
	if patch.Address != nil {
		add("address", *patch.Address)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.Verified != nil {
		add("verified", *patch.Verified)
	}
	if len(sets) > 0 {
		add("updated_at", time.Now().UTC().Truncate(time.Second))
		args = append(args, id)
		// RowsAffected is 0 for no-op updates in MySQL, so existence is
		// decided by the read below instead.
		if _, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...); err != nil {
			return nil, mapMySQLError(err)
		}
	}
	return r.FindByID(ctx, id)
}

// DeleteByID removes the row and returns what was deleted.
func (r *MySQLUserStore) DeleteByID(ctx context.Context, id string) (*model.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return u, nil
}

func one(u *model.User, err error) (*model.User, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return err
}
