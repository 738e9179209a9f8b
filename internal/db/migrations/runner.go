package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"telemetry/internal/types"
)

// migrator is the subset of *migrate.Migrate used by Runner.
type migrator interface {
	Up() error
	Migrate(version uint) error
	Steps(n int) error
	Version() (uint, bool, error)
	Close() (error, error)
}

// Runner applies the embedded schema. Migrations only move forward, except
// that the base version can be dropped.
type Runner struct {
	m      migrator
	stop   chan bool
	logger *slog.Logger
}

// NewRunner prepares a runner over db. Closing the runner closes db.
func NewRunner(db *sql.DB, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	src, err := iofs.New(FS, ".")
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to open embedded migrations", err)
	}

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConnectivity, "failed to prepare migration driver", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create migrator", err)
	}
	m.Log = migrateLogger{logger: logger}

	r := newRunner(m, logger)
	r.stop = m.GracefulStop
	return r, nil
}

func newRunner(m migrator, logger *slog.Logger) *Runner {
	return &Runner{m: m, logger: logger}
}

// Up applies every pending version in ascending order.
func (r *Runner) Up(ctx context.Context) error {
	before, _ := r.current()
	if err := r.run(ctx, r.m.Up); err != nil {
		return err
	}
	after, err := r.Version(ctx)
	if err != nil {
		return err
	}
	if after != before {
		r.logger.Info("schema migrated", "from", before, "to", after)
	}
	return nil
}

// To migrates forward to version. A version below the current one is
// refused.
func (r *Runner) To(ctx context.Context, version uint) error {
	if version == 0 || version > LatestVersion {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
			fmt.Sprintf("schema version %d does not exist", version), nil,
			map[string]any{"version": version, "latest": LatestVersion},
		)
	}

	current, err := r.Version(ctx)
	if err != nil {
		return err
	}
	if version < current {
		return types.NewAppErrorWithDetails(types.ErrCodeMigrationDownUnsupported,
			fmt.Sprintf("cannot migrate down from version %d to %d", current, version), nil,
			map[string]any{"current": current, "target": version},
		)
	}

	if err := r.run(ctx, func() error { return r.m.Migrate(version) }); err != nil {
		return err
	}
	if version != current {
		r.logger.Info("schema migrated", "from", current, "to", version)
	}
	return nil
}

// Version reports the applied version, zero when nothing has been applied.
func (r *Runner) Version(ctx context.Context) (uint, error) {
	if err := ctx.Err(); err != nil {
		return 0, types.NewAppError(types.ErrCodeConnectivity, "schema version check cancelled", err)
	}
	return r.current()
}

// Down drops the raw queue when the schema is at the base version. Above the
// base version it fails with ErrCodeMigrationDownUnsupported.
func (r *Runner) Down(ctx context.Context) error {
	current, err := r.Version(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		return nil
	}
	if current > BaseVersion {
		return types.NewAppErrorWithDetails(types.ErrCodeMigrationDownUnsupported,
			fmt.Sprintf("migrating down from version %d is not supported", current), nil,
			map[string]any{"current": current, "base": BaseVersion},
		)
	}

	if err := r.run(ctx, func() error { return r.m.Steps(-1) }); err != nil {
		return err
	}
	r.logger.Warn("raw queue dropped", "from", current)
	return nil
}

// Close releases the migrator and the underlying database handle.
func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (r *Runner) current() (uint, error) {
	version, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	if dirty {
		return 0, dirtyError(version)
	}
	return version, nil
}

// run executes fn, asking golang-migrate to stop after the current file if
// ctx is cancelled first.
func (r *Runner) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return types.NewAppError(types.ErrCodeConnectivity, "migration cancelled", err)
	}

	done := make(chan struct{})
	defer close(done)
	if r.stop != nil {
		go func() {
			select {
			case <-ctx.Done():
				select {
				case r.stop <- true:
				default:
				}
			case <-done:
			}
		}()
	}

	if err := fn(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		return dirtyError(uint(dirty.Version))
	}
	return types.NewAppError(types.ErrCodeInternalDB, "schema migration failed", err)
}

func dirtyError(version uint) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInternalDB,
		fmt.Sprintf("schema is dirty at version %d and needs manual repair", version), nil,
		map[string]any{"dirty_version": version},
	)
}

// migrateLogger routes golang-migrate output to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
