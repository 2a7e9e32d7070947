package authz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Notifier receives permission changes once they are committed. A notifier
// error is returned to the caller but does not undo the change.
type Notifier interface {
	PermissionAdded(ctx context.Context, p Permission, createCollectionAllowed bool) error
	PermissionModified(ctx context.Context, p Permission, old Level, createCollectionAllowed bool) error
	PermissionDeleted(ctx context.Context, p Permission) error
}

// Config selects the database backend.
type Config struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string

	// DSN is a file path for sqlite or a connection URL for postgres.
	DSN string
}

// Service is the authorization subsystem.
type Service struct {
	db       *sql.DB
	dialect  dialect
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the receiver of permission changes.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the time source for resource creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Open connects to the permission database and applies the schema.
func Open(cfg Config, opts ...Option) (*Service, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("authz dsn is required")
	}

	db, err := openDB(d, cfg.DSN)
	if err != nil {
		return nil, err
	}

	s := &Service{
		db:      db,
		dialect: d,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetNotifier replaces the notifier. Used when the notifier is built after
// the service.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Close closes the database.
func (s *Service) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Service) resourceExists(ctx context.Context, q querier, resource string, lock bool) (bool, error) {
	query := `SELECT creator FROM resources WHERE resource = ?`
	if lock {
		query += s.dialect.lockSuffix
	}
	var creator string
	err := q.QueryRowContext(ctx, s.dialect.rebind(query), resource).Scan(&creator)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query resource: %w", err)
	}
	return true, nil
}

// level returns subject's level on resource and whether a grant row exists.
func (s *Service) level(ctx context.Context, q querier, subject, resource string) (Level, bool, error) {
	var lvl int
	err := q.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT level FROM permissions WHERE subject = ? AND resource = ?`),
		subject, resource,
	).Scan(&lvl)
	if errors.Is(err, sql.ErrNoRows) {
		return None, false, nil
	}
	if err != nil {
		return None, false, fmt.Errorf("query permission: %w", err)
	}
	return Level(lvl), true, nil
}

// CreateResource registers resource and grants creator Manage on it.
// Registering an existing resource changes nothing and reports false.
func (s *Service) CreateResource(ctx context.Context, resource, creator string) (bool, error) {
	if resource == "" || creator == "" {
		return false, errors.New("create resource: resource and creator are required")
	}

	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions)
	if err != nil {
		return false, fmt.Errorf("create resource: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO resources (resource, creator, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (resource) DO NOTHING
	`), resource, creator, s.now().UnixNano())
	if err != nil {
		return false, fmt.Errorf("create resource: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create resource: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO permissions (subject, resource, level) VALUES (?, ?, ?)
	`), creator, resource, int(Manage))
	if err != nil {
		return false, fmt.Errorf("seed creator permission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("create resource: commit: %w", err)
	}
	s.logger.Debug("resource registered", "resource", resource, "creator", creator)
	return true, nil
}

// DeleteResource removes a resource and every grant on it. It exists to undo
// a registration whose commit was rolled back.
func (s *Service) DeleteResource(ctx context.Context, resource string) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions)
	if err != nil {
		return fmt.Errorf("delete resource: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM permissions WHERE resource = ?`), resource); err != nil {
		return fmt.Errorf("delete resource grants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM resources WHERE resource = ?`), resource); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return tx.Commit()
}

// ResourceExists reports whether resource is registered.
func (s *Service) ResourceExists(ctx context.Context, resource string) (bool, error) {
	return s.resourceExists(ctx, s.db, resource, false)
}

// GetPermission returns actor's permission on resource, None when no grant
// exists.
func (s *Service) GetPermission(ctx context.Context, actor, resource string) (Permission, error) {
	ok, err := s.resourceExists(ctx, s.db, resource, false)
	if err != nil {
		return Permission{}, err
	}
	if !ok {
		return Permission{}, notFound(resource)
	}

	lvl, _, err := s.level(ctx, s.db, actor, resource)
	if err != nil {
		return Permission{}, err
	}
	return Permission{Subject: actor, Resource: resource, Level: lvl}, nil
}

// Permissions lists every grant on resource ordered by subject.
func (s *Service) Permissions(ctx context.Context, resource string) ([]Permission, error) {
	ok, err := s.resourceExists(ctx, s.db, resource, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(resource)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT subject, level FROM permissions
		WHERE resource = ?
		ORDER BY subject ASC
	`), resource)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		var (
			subject string
			lvl     int
		)
		if err := rows.Scan(&subject, &lvl); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, Permission{Subject: subject, Resource: resource, Level: Level(lvl)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return perms, nil
}

// Authorize sets target.Subject's level on target.Resource on behalf of actor.
//
// Checks, in order: the resource must exist (NotFound); the actor must hold
// Manage on it (Unauthorized); the actor may not change their own grant
// (Unauthorized). Then None deletes an existing grant, a level with no
// existing grant creates one, and a different level replaces the existing
// one. Each change is reported to the notifier after it commits; setting the
// level a subject already has is a no-op.
func (s *Service) Authorize(ctx context.Context, actor string, target Permission, createCollectionAllowed bool) error {
	if !target.Level.Valid() {
		return &Error{Code: ErrCodeInvalidLevel, Message: fmt.Sprintf("invalid access level %d", int(target.Level)), Resource: target.Resource}
	}
	if target.Subject == "" {
		return errors.New("authorize: target subject is required")
	}

	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions)
	if err != nil {
		return fmt.Errorf("authorize: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	ok, err := s.resourceExists(ctx, tx, target.Resource, true)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(target.Resource)
	}

	actorLevel, _, err := s.level(ctx, tx, actor, target.Resource)
	if err != nil {
		return err
	}
	if actorLevel < Manage {
		return unauthorized(actor, target.Resource,
			fmt.Sprintf("%s holds %s; Manage is required to change permissions", actor, actorLevel))
	}
	if target.Subject == actor {
		return unauthorized(actor, target.Resource, "an actor cannot change their own permission")
	}

	current, exists, err := s.level(ctx, tx, target.Subject, target.Resource)
	if err != nil {
		return err
	}
	notifyCtx := ContextWithActor(ctx, actor)

	var notify func() error
	switch {
	case target.Level == None && !exists:
		return nil

	case target.Level == None:
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(
			`DELETE FROM permissions WHERE subject = ? AND resource = ?`),
			target.Subject, target.Resource); err != nil {
			return fmt.Errorf("revoke permission: %w", err)
		}
		notify = func() error {
			if err := s.notifier.PermissionDeleted(notifyCtx, Permission{Subject: target.Subject, Resource: target.Resource, Level: current}); err != nil {
				return fmt.Errorf("notify permission deleted: %w", err)
			}
			return nil
		}

	case !exists:
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(
			`INSERT INTO permissions (subject, resource, level) VALUES (?, ?, ?)`),
			target.Subject, target.Resource, int(target.Level)); err != nil {
			return fmt.Errorf("grant permission: %w", err)
		}
		notify = func() error {
			if err := s.notifier.PermissionAdded(notifyCtx, target, createCollectionAllowed); err != nil {
				return fmt.Errorf("notify permission added: %w", err)
			}
			return nil
		}

	case current == target.Level:
		return nil

	default:
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(
			`UPDATE permissions SET level = ? WHERE subject = ? AND resource = ?`),
			int(target.Level), target.Subject, target.Resource); err != nil {
			return fmt.Errorf("modify permission: %w", err)
		}
		notify = func() error {
			if err := s.notifier.PermissionModified(notifyCtx, target, current, createCollectionAllowed); err != nil {
				return fmt.Errorf("notify permission modified: %w", err)
			}
			return nil
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("authorize: commit: %w", err)
	}
	s.logger.Info("permission changed",
		"actor", actor,
		"subject", target.Subject,
		"resource", target.Resource,
		"level", target.Level.String(),
		"previous", current.String())

	if s.notifier == nil {
		return nil
	}
	return notify()
}
