// Package connector is the provisioning facade an identity-management
// orchestrator drives: it creates users, reads and patches their
// attributes, and grants or revokes IT roles and request rights.
//
// Every call runs on its own database session. Multi-statement writes run
// in one transaction and are rolled back on any failure before the error is
// reported as a *ComponentError.
package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/Skryldev/sql-connector/connstr"
	"github.com/Skryldev/sql-connector/db"
	"github.com/Skryldev/sql-connector/migrations"
	"github.com/Skryldev/sql-connector/models"
	"github.com/Skryldev/sql-connector/session"
)

// Connector implements the orchestrator's method surface. It is safe for
// concurrent use once StartUp has returned.
type Connector struct {
	log Logger

	dbCfg       db.Config
	retry       db.RetryConfig
	observer    OperationObserver
	autoMigrate bool
	newTraceID  func() string

	mu      sync.RWMutex
	factory *session.Factory
}

// New returns a Connector writing to logger. StartUp must be called before
// any business operation.
func New(logger Logger, opts ...Option) (*Connector, error) {
	if logger == nil {
		return nil, ErrLoggerRequired
	}
	c := &Connector{log: logger, newTraceID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StartUp parses configString, opens the connection pool and keeps it for
// the lifetime of the connector. Calling it again replaces the pool.
func (c *Connector) StartUp(ctx context.Context, configString string) (err error) {
	call, err := c.begin("StartUp")
	if err != nil {
		return err
	}
	defer func() { call.done(err) }()

	if c.autoMigrate {
		// Reject a schema the migrations would not create before any
		// connection is opened.
		if cfg, perr := connstr.Parse(configString); perr == nil {
			if err := migrations.CheckSchema(cfg); err != nil {
				call.errorf("Failed to start the connector. Exception: %v", err)
				return err
			}
		}
	}

	f, err := session.NewFactory(configString, c.dbCfg)
	if err != nil {
		call.errorf("Failed to start the connector. Exception: %v", err)
		return err
	}
	if err := f.DB().Ping(ctx); err != nil {
		_ = f.Close()
		call.errorf("Database is unreachable. Exception: %v", err)
		return err
	}
	if c.autoMigrate {
		if err := migrations.Up(f.Config(), f.DB().Raw()); err != nil {
			_ = f.Close()
			call.errorf("Failed to apply migrations. Exception: %v", err)
			return err
		}
	}

	c.mu.Lock()
	old := c.factory
	c.factory = f
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	call.debugf("Connector started. Engine: %s", f.Engine())
	return nil
}

// Close releases the connection pool. The connector can be started again.
func (c *Connector) Close() error {
	c.mu.Lock()
	f := c.factory
	c.factory = nil
	c.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

// ─────────────────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────────────────

// CreateUser inserts the user and its password in one transaction. The
// recognized properties are firstName, middleName, lastName,
// telephoneNumber and isLead, matched ignoring case; anything else is
// dropped.
func (c *Connector) CreateUser(ctx context.Context, user models.UserToCreate) (err error) {
	call, err := c.begin("CreateUser")
	if err != nil {
		return err
	}
	defer func() { call.done(err) }()

	call.debugf("Adding a new user %s", marshal(redact(user)))

	s, err := c.open(ctx, call)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := c.ensureAbsent(ctx, call, s, user.Login); err != nil {
		return err
	}

	params := createParams(user.Login, user.Properties)
	err = c.withRetry(ctx, func() error {
		return s.InTx(ctx, func(r session.Repositories) error {
			if err := r.Users.Insert(ctx, params); err != nil {
				return err
			}
			return r.Passwords.Insert(ctx, user.Login, user.HashPassword)
		})
	})
	if err != nil {
		call.errorf("An exception occurred when adding a user %s. Exception: %v", marshal(redact(user)), err)
		return newError(ErrTransaction, call.traceID, err, "create user %q", user.Login)
	}
	return nil
}

// GetAllProperties lists every attribute a user has, login included.
func (c *Connector) GetAllProperties(ctx context.Context) (_ []models.Property, err error) {
	call, err := c.begin("GetAllProperties")
	if err != nil {
		return nil, err
	}
	defer func() { call.done(err) }()

	call.debugf("Getting all properties for users")
	props := make([]models.Property, len(models.UserSchema))
	for i, f := range models.UserSchema {
		props[i] = models.Property{Name: f.Name, Description: f.Description}
	}
	return props, nil
}

// GetUserProperties returns every attribute of login except the login
// itself.
func (c *Connector) GetUserProperties(ctx context.Context, login string) (_ []models.UserProperty, err error) {
	call, err := c.begin("GetUserProperties")
	if err != nil {
		return nil, err
	}
	defer func() { call.done(err) }()

	call.debugf("Getting user properties. Login: %s", login)

	s, err := c.open(ctx, call)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	u, err := s.Repos().Users.GetByLogin(ctx, login)
	if errors.Is(err, db.ErrNotFound) {
		return nil, call.notRegistered(login)
	}
	if err != nil {
		return nil, call.storage(err, "read user %q", login)
	}
	return userProperties(u), nil
}

// UpdateUserProperties patches the recognized properties present in props.
// An empty props is a no-op and does not touch the database.
func (c *Connector) UpdateUserProperties(ctx context.Context, props []models.UserProperty, login string) (err error) {
	call, err := c.begin("UpdateUserProperties")
	if err != nil {
		return err
	}
	defer func() { call.done(err) }()

	if len(props) == 0 {
		return nil
	}
	call.debugf("Updating user properties. Login: %s, Properties: %s", login, marshal(props))

	s, err := c.open(ctx, call)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := c.ensureExists(ctx, call, s, login); err != nil {
		return err
	}

	params := updateParams(login, props)
	if params.Empty() {
		call.debugf("No recognized properties for %s, nothing to update", login)
		return nil
	}

	err = c.withRetry(ctx, func() error {
		return s.Repos().Users.Update(ctx, params)
	})
	if err != nil {
		call.errorf("An exception occurred when updating user properties. Login: %s. Exception: %v", login, err)
		return newError(ErrUpdate, call.traceID, err, "update user %q", login)
	}
	return nil
}

// IsUserExists reports whether login is registered.
func (c *Connector) IsUserExists(ctx context.Context, login string) (_ bool, err error) {
	call, err := c.begin("IsUserExists")
	if err != nil {
		return false, err
	}
	defer func() { call.done(err) }()

	s, err := c.open(ctx, call)
	if err != nil {
		return false, err
	}
	defer s.Close()

	ok, err := s.Repos().Users.Exists(ctx, login)
	if err != nil {
		return false, call.storage(err, "check user %q", login)
	}
	return ok, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Permissions
// ─────────────────────────────────────────────────────────────────────────────

// GetAllPermissions lists the IT roles followed by the request rights.
func (c *Connector) GetAllPermissions(ctx context.Context) (_ []models.Permission, err error) {
	call, err := c.begin("GetAllPermissions")
	if err != nil {
		return nil, err
	}
	defer func() { call.done(err) }()

	call.debugf("Getting all available rights")

	s, err := c.open(ctx, call)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	perms := s.Repos().Permissions
	roles, err := perms.ListITRoles(ctx)
	if err != nil {
		return nil, call.storage(err, "list IT roles")
	}
	rights, err := perms.ListRequestRights(ctx)
	if err != nil {
		return nil, call.storage(err, "list request rights")
	}

	out := make([]models.Permission, 0, len(roles)+len(rights))
	for _, r := range roles {
		out = append(out, permission(CategoryITRole, r.ID, r.Name))
	}
	for _, r := range rights {
		out = append(out, permission(CategoryRequestRight, r.ID, r.Name))
	}

	call.debugf("Result: %s", marshal(out))
	return out, nil
}

func permission(cat Category, id int64, name string) models.Permission {
	return models.Permission{
		ID:          PermissionID{Category: cat, ID: id}.String(),
		Name:        name,
		Description: cat.Label(),
	}
}

// AddUserPermissions grants every id in rightIDs to login in one
// transaction. An empty rightIDs is a no-op.
func (c *Connector) AddUserPermissions(ctx context.Context, login string, rightIDs []string) (err error) {
	call, err := c.begin("AddUserPermissions")
	if err != nil {
		return err
	}
	defer func() { call.done(err) }()

	if len(rightIDs) == 0 {
		return nil
	}
	call.debugf("Adding user permissions. Login: %s, Ids: %s", login, marshal(rightIDs))

	s, err := c.open(ctx, call)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := c.ensureExists(ctx, call, s, login); err != nil {
		return err
	}

	ids, err := c.parseIDs(call, rightIDs)
	if err != nil {
		return newError(ErrInvalidPermissionID, call.traceID, err, "grant to %q", login)
	}

	var (
		roles  []models.UserITRole
		rights []models.UserRequestRight
	)
	for _, id := range ids {
		switch id.Category {
		case CategoryITRole:
			roles = append(roles, models.UserITRole{UserID: login, RoleID: id.ID})
		case CategoryRequestRight:
			rights = append(rights, models.UserRequestRight{UserID: login, RightID: id.ID})
		}
	}

	err = c.withRetry(ctx, func() error {
		return s.InTx(ctx, func(r session.Repositories) error {
			if err := r.Permissions.InsertUserITRoles(ctx, roles); err != nil {
				return err
			}
			return r.Permissions.InsertUserRequestRights(ctx, rights)
		})
	})
	if err != nil {
		call.errorf("Exception when adding permissions for a user %s. Roles: %s, Rights: %s. Exception: %v",
			login, marshal(roles), marshal(rights), err)
		return newError(ErrTransaction, call.traceID, err, "grant to %q", login)
	}
	return nil
}

// RemoveUserPermissions revokes the request rights in rightIDs from login.
// IT role grants are never removed; role ids are logged and skipped.
func (c *Connector) RemoveUserPermissions(ctx context.Context, login string, rightIDs []string) (err error) {
	call, err := c.begin("RemoveUserPermissions")
	if err != nil {
		return err
	}
	defer func() { call.done(err) }()

	if len(rightIDs) == 0 {
		return nil
	}
	call.debugf("Removing user permissions. Login: %s, Ids: %s", login, marshal(rightIDs))

	s, err := c.open(ctx, call)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := c.ensureExists(ctx, call, s, login); err != nil {
		return err
	}

	ids, err := c.parseIDs(call, rightIDs)
	if err != nil {
		return newError(ErrInvalidPermissionID, call.traceID, err, "revoke from %q", login)
	}

	var requestIDs []int64
	for _, id := range ids {
		if id.Category != CategoryRequestRight {
			call.warnf("Removing %s is not supported, skipped", id)
			continue
		}
		requestIDs = append(requestIDs, id.ID)
	}
	if len(requestIDs) == 0 {
		call.warnf("No request rights to remove. Source: %s", marshal(rightIDs))
		return nil
	}

	var removed int64
	err = c.withRetry(ctx, func() error {
		return s.InTx(ctx, func(r session.Repositories) error {
			n, err := r.Permissions.DeleteUserRequestRights(ctx, login, requestIDs)
			removed = n
			return err
		})
	})
	if err != nil {
		call.errorf("Exception when removing permissions of a user %s. Exception: %v", login, err)
		return newError(ErrTransaction, call.traceID, err, "revoke from %q", login)
	}

	call.debugf("Removed %d request rights of %s", removed, login)
	return nil
}

// GetUserPermissions returns the names of the request rights granted to
// login. IT roles are not included.
func (c *Connector) GetUserPermissions(ctx context.Context, login string) (_ []string, err error) {
	call, err := c.begin("GetUserPermissions")
	if err != nil {
		return nil, err
	}
	defer func() { call.done(err) }()

	call.debugf("Getting user permissions. Login: %s", login)

	s, err := c.open(ctx, call)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := c.ensureExists(ctx, call, s, login); err != nil {
		return nil, err
	}

	names, err := s.Repos().Permissions.ListUserRequestRightNames(ctx, login)
	if err != nil {
		return nil, call.storage(err, "list permissions of %q", login)
	}

	call.debugf("Result: %s", marshal(names))
	return names, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Plumbing
// ─────────────────────────────────────────────────────────────────────────────

// opCall carries the per-call trace id and timing.
type opCall struct {
	c       *Connector
	name    string
	traceID string
	start   time.Time
}

func (c *Connector) begin(name string) (*opCall, error) {
	if c == nil || c.log == nil {
		return nil, ErrLoggerRequired
	}
	next := c.newTraceID
	if next == nil {
		next = uuid.NewString
	}
	return &opCall{c: c, name: name, traceID: next(), start: time.Now()}, nil
}

func (o *opCall) done(err error) {
	if o.c.observer != nil {
		o.c.observer.ObserveOperation(o.name, time.Since(o.start), err)
	}
}

func (o *opCall) format(format string, args ...any) string {
	return fmt.Sprintf("TraceId: %s. ", o.traceID) + fmt.Sprintf(format, args...)
}

func (o *opCall) debugf(format string, args ...any) { o.c.log.Debug(o.format(format, args...)) }
func (o *opCall) warnf(format string, args ...any)  { o.c.log.Warn(o.format(format, args...)) }
func (o *opCall) errorf(format string, args ...any) { o.c.log.Error(o.format(format, args...)) }

func (o *opCall) notRegistered(login string) error {
	o.warnf("User with login: %s is not registered", login)
	return newError(ErrNotRegistered, o.traceID, nil, "no user with login %q", login)
}

func (o *opCall) storage(err error, format string, args ...any) error {
	o.errorf("Storage failure: %v", err)
	return newError(ErrStorage, o.traceID, err, format, args...)
}

// open acquires a session from the current factory.
func (c *Connector) open(ctx context.Context, call *opCall) (*session.Session, error) {
	c.mu.RLock()
	f := c.factory
	c.mu.RUnlock()
	if f == nil {
		return nil, ErrNotStarted
	}
	s, err := f.Open(ctx)
	if err != nil {
		return nil, call.storage(err, "open session")
	}
	return s, nil
}

func (c *Connector) ensureExists(ctx context.Context, call *opCall, s *session.Session, login string) error {
	ok, err := s.Repos().Users.Exists(ctx, login)
	if err != nil {
		return call.storage(err, "check user %q", login)
	}
	if !ok {
		return call.notRegistered(login)
	}
	return nil
}

func (c *Connector) ensureAbsent(ctx context.Context, call *opCall, s *session.Session, login string) error {
	ok, err := s.Repos().Users.Exists(ctx, login)
	if err != nil {
		return call.storage(err, "check user %q", login)
	}
	if ok {
		call.warnf("A user with login %s already exists", login)
		return newError(ErrAlreadyRegistered, call.traceID, nil, "login %q is taken", login)
	}
	return nil
}

// parseIDs rejects malformed ids and drops ids of unknown categories with a
// warning.
func (c *Connector) parseIDs(call *opCall, rightIDs []string) ([]PermissionID, error) {
	ids, skipped, err := ParsePermissionIDs(rightIDs)
	if err != nil {
		call.warnf("Rejected permission ids %s: %v", marshal(rightIDs), err)
		return nil, err
	}
	if len(skipped) > 0 {
		call.warnf("Unknown permission categories skipped: %s", marshal(skipped))
	}
	return ids, nil
}

func (c *Connector) withRetry(ctx context.Context, fn func() error) error {
	return db.WithRetry(ctx, c.retry, fn)
}

const redacted = "***"

func redact(u models.UserToCreate) models.UserToCreate {
	if u.HashPassword != "" {
		u.HashPassword = redacted
	}
	return u
}

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
