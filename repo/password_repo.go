package repo

import (
	"context"
	"fmt"

	"github.com/Skryldev/sql-connector/db"
)

// PasswordRepository stores pre-hashed credentials.
type PasswordRepository interface {
	Insert(ctx context.Context, userID, hash string) error
}

type passwordRepo struct {
	q         db.Querier
	sqlInsert string
}

// NewPasswordRepo returns a PasswordRepository backed by q.
func NewPasswordRepo(q db.Querier, d db.Dialect) PasswordRepository {
	return &passwordRepo{
		q: q,
		sqlInsert: fmt.Sprintf(`
		INSERT INTO %s (%s, %s)
		VALUES (%s, %s)`,
			d.Table(TablePasswords), d.Ident("userId"), d.Ident("password"),
			d.Placeholder(1), d.Placeholder(2)),
	}
}

// Insert stores hash for userID.
func (r *passwordRepo) Insert(ctx context.Context, userID, hash string) error {
	if _, err := r.q.Exec(ctx, r.sqlInsert, userID, hash); err != nil {
		return fmt.Errorf("repo/password: insert: %w", err)
	}
	return nil
}
