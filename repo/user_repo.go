package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Skryldev/sql-connector/db"
	"github.com/Skryldev/sql-connector/models"
)

// Table names of the HR schema.
const (
	TableUser             = "User"
	TablePasswords        = "Passwords"
	TableITRole           = "ItRole"
	TableRequestRight     = "RequestRight"
	TableUserITRole       = "UserITRole"
	TableUserRequestRight = "UserRequestRight"
)

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository interface: for mocking in tests
// ─────────────────────────────────────────────────────────────────────────────

// UserRepository defines the contract for user persistence operations.
type UserRepository interface {
	Insert(ctx context.Context, params models.CreateUserParams) error
	GetByLogin(ctx context.Context, login string) (*models.User, error)
	Exists(ctx context.Context, login string) (bool, error)
	Update(ctx context.Context, params models.UpdateUserParams) error
}

// userRepo is the production implementation backed by a db.Querier.
type userRepo struct {
	q db.Querier
	d db.Dialect

	sqlInsert     string
	sqlGetByLogin string
	sqlExists     string
}

// NewUserRepo returns a UserRepository backed by q speaking dialect d.
// q can be a *db.Session or *db.Tx.
func NewUserRepo(q db.Querier, d db.Dialect) UserRepository {
	cols := userColumns(d)
	return &userRepo{
		q: q,
		d: d,
		sqlInsert: fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)`,
			d.Table(TableUser), cols, db.Placeholders(d, 1, len(models.UserSchema))),
		sqlGetByLogin: fmt.Sprintf(`
		SELECT %s
		FROM   %s
		WHERE  %s = %s`,
			cols, d.Table(TableUser), d.Ident(models.FieldLogin), d.Placeholder(1)),
		sqlExists: fmt.Sprintf(`
		SELECT COUNT(1)
		FROM   %s
		WHERE  %s = %s`,
			d.Table(TableUser), d.Ident(models.FieldLogin), d.Placeholder(1)),
	}
}

func userColumns(d db.Dialect) string {
	cols := make([]string, len(models.UserSchema))
	for i, f := range models.UserSchema {
		cols[i] = d.Ident(f.Name)
	}
	return strings.Join(cols, ", ")
}

// Insert creates a new user row. Column order follows models.UserSchema.
func (r *userRepo) Insert(ctx context.Context, p models.CreateUserParams) error {
	_, err := r.q.Exec(ctx, r.sqlInsert,
		p.Login, p.LastName, p.FirstName, p.MiddleName, p.TelephoneNumber, p.IsLead)
	if err != nil {
		return fmt.Errorf("repo/user: insert: %w", err)
	}
	return nil
}

// GetByLogin returns a single user by primary key.
// Returns db.ErrNotFound when no record matches.
func (r *userRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	u := &models.User{}
	err := r.q.QueryRow(ctx, r.sqlGetByLogin, login).
		Scan(&u.Login, &u.LastName, &u.FirstName, &u.MiddleName, &u.TelephoneNumber, &u.IsLead)
	if err != nil {
		return nil, fmt.Errorf("repo/user: %w", err)
	}
	return u, nil
}

// Exists reports whether a user with login is present.
func (r *userRepo) Exists(ctx context.Context, login string) (bool, error) {
	var n int64
	if err := r.q.QueryRow(ctx, r.sqlExists, login).Scan(&n); err != nil {
		return false, fmt.Errorf("repo/user: exists: %w", err)
	}
	return n > 0, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update: partial update with explicit SQL construction
// ─────────────────────────────────────────────────────────────────────────────

// Update applies a partial update to a user record. Only fields with non-nil
// pointers in params are updated; with none set it is a no-op.
// Returns db.ErrNotFound if no row matched the login.
func (r *userRepo) Update(ctx context.Context, params models.UpdateUserParams) error {
	setClauses := make([]string, 0, 5)
	args := make([]any, 0, 6)

	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", r.d.Ident(column), r.d.Placeholder(len(args))))
	}

	if params.LastName != nil {
		set(models.FieldLastName, *params.LastName)
	}
	if params.FirstName != nil {
		set(models.FieldFirstName, *params.FirstName)
	}
	if params.MiddleName != nil {
		set(models.FieldMiddleName, *params.MiddleName)
	}
	if params.TelephoneNumber != nil {
		set(models.FieldTelephoneNumber, *params.TelephoneNumber)
	}
	if params.IsLead != nil {
		set(models.FieldIsLead, *params.IsLead)
	}
	if len(setClauses) == 0 {
		return nil
	}

	args = append(args, params.Login)
	query := fmt.Sprintf(`
		UPDATE %s
		SET    %s
		WHERE  %s = %s`,
		r.d.Table(TableUser), strings.Join(setClauses, ", "),
		r.d.Ident(models.FieldLogin), r.d.Placeholder(len(args)))

	res, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repo/user: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repo/user: update: %w", err)
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

var _ UserRepository = (*userRepo)(nil)
