package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Skryldev/sql-connector/db"
	"github.com/Skryldev/sql-connector/models"
)

// PermissionRepository reads the two permission catalogs and maintains the
// user join tables.
type PermissionRepository interface {
	ListITRoles(ctx context.Context) ([]models.ITRole, error)
	ListRequestRights(ctx context.Context) ([]models.RequestRight, error)
	InsertUserITRoles(ctx context.Context, rows []models.UserITRole) error
	InsertUserRequestRights(ctx context.Context, rows []models.UserRequestRight) error
	DeleteUserRequestRights(ctx context.Context, userID string, rightIDs []int64) (int64, error)
	ListUserRequestRightNames(ctx context.Context, userID string) ([]string, error)
}

type permissionRepo struct {
	q db.Querier
	d db.Dialect

	sqlListITRoles          string
	sqlListRequestRights    string
	sqlInsertUserITRole     string
	sqlInsertUserRight      string
	sqlListUserRequestNames string
}

// NewPermissionRepo returns a PermissionRepository backed by q.
func NewPermissionRepo(q db.Querier, d db.Dialect) PermissionRepository {
	id, name := d.Ident("id"), d.Ident("name")
	userID := d.Ident("userId")
	return &permissionRepo{
		q: q,
		d: d,
		sqlListITRoles: fmt.Sprintf(`
		SELECT %s, %s, %s
		FROM   %s
		ORDER  BY %s`,
			id, name, d.Ident("corporatePhoneNumber"), d.Table(TableITRole), id),
		sqlListRequestRights: fmt.Sprintf(`
		SELECT %s, %s
		FROM   %s
		ORDER  BY %s`,
			id, name, d.Table(TableRequestRight), id),
		sqlInsertUserITRole: fmt.Sprintf(`
		INSERT INTO %s (%s, %s)
		VALUES (%s, %s)`,
			d.Table(TableUserITRole), userID, d.Ident("roleId"), d.Placeholder(1), d.Placeholder(2)),
		sqlInsertUserRight: fmt.Sprintf(`
		INSERT INTO %s (%s, %s)
		VALUES (%s, %s)`,
			d.Table(TableUserRequestRight), userID, d.Ident("rightId"), d.Placeholder(1), d.Placeholder(2)),
		sqlListUserRequestNames: fmt.Sprintf(`
		SELECT r.%s
		FROM   %s r
		JOIN   %s ur ON ur.%s = r.%s
		WHERE  ur.%s = %s
		ORDER  BY r.%s`,
			name, d.Table(TableRequestRight), d.Table(TableUserRequestRight),
			d.Ident("rightId"), id, userID, d.Placeholder(1), id),
	}
}

// ListITRoles returns the IT role catalog ordered by id.
func (r *permissionRepo) ListITRoles(ctx context.Context) ([]models.ITRole, error) {
	rows, err := r.q.Query(ctx, r.sqlListITRoles)
	if err != nil {
		return nil, fmt.Errorf("repo/permission: list roles: %w", err)
	}
	defer rows.Close()

	var roles []models.ITRole
	for rows.Next() {
		var (
			role  models.ITRole
			phone sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &phone); err != nil {
			return nil, fmt.Errorf("repo/permission: scan role: %w", err)
		}
		role.CorporatePhoneNumber = phone.String
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListRequestRights returns the request right catalog ordered by id.
func (r *permissionRepo) ListRequestRights(ctx context.Context) ([]models.RequestRight, error) {
	rows, err := r.q.Query(ctx, r.sqlListRequestRights)
	if err != nil {
		return nil, fmt.Errorf("repo/permission: list rights: %w", err)
	}
	defer rows.Close()

	var rights []models.RequestRight
	for rows.Next() {
		var right models.RequestRight
		if err := rows.Scan(&right.ID, &right.Name); err != nil {
			return nil, fmt.Errorf("repo/permission: scan right: %w", err)
		}
		rights = append(rights, right)
	}
	return rights, rows.Err()
}

// InsertUserITRoles inserts role grants with one prepared statement.
// Run it inside a transaction for all-or-nothing semantics.
func (r *permissionRepo) InsertUserITRoles(ctx context.Context, rows []models.UserITRole) error {
	err := db.BatchExec(ctx, r.q, r.sqlInsertUserITRole, rows,
		func(row models.UserITRole) []any { return []any{row.UserID, row.RoleID} })
	if err != nil {
		return fmt.Errorf("repo/permission: insert roles: %w", err)
	}
	return nil
}

// InsertUserRequestRights inserts request right grants with one prepared
// statement.
func (r *permissionRepo) InsertUserRequestRights(ctx context.Context, rows []models.UserRequestRight) error {
	err := db.BatchExec(ctx, r.q, r.sqlInsertUserRight, rows,
		func(row models.UserRequestRight) []any { return []any{row.UserID, row.RightID} })
	if err != nil {
		return fmt.Errorf("repo/permission: insert rights: %w", err)
	}
	return nil
}

// DeleteUserRequestRights removes the given request right grants of userID
// and returns the number of rows deleted.
func (r *permissionRepo) DeleteUserRequestRights(ctx context.Context, userID string, rightIDs []int64) (int64, error) {
	if len(rightIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(rightIDs)+1)
	args = append(args, userID)
	for _, id := range rightIDs {
		args = append(args, id)
	}
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE  %s = %s
		AND    %s IN (%s)`,
		r.d.Table(TableUserRequestRight),
		r.d.Ident("userId"), r.d.Placeholder(1),
		r.d.Ident("rightId"), db.Placeholders(r.d, 2, len(rightIDs)))

	res, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("repo/permission: delete rights: %w", err)
	}
	return res.RowsAffected()
}

// ListUserRequestRightNames returns the names of request rights granted to
// userID ordered by right id.
func (r *permissionRepo) ListUserRequestRightNames(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.Query(ctx, r.sqlListUserRequestNames, userID)
	if err != nil {
		return nil, fmt.Errorf("repo/permission: list user rights: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("repo/permission: scan user right: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ PermissionRepository = (*permissionRepo)(nil)
