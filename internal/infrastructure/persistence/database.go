// Package persistence opens and manages the PostgreSQL connection the
// repositories run on, including pool tuning and agency scoping helpers.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/letably/backend/internal/infrastructure/config"
	applogger "github.com/letably/backend/internal/infrastructure/logger"
	"github.com/letably/backend/internal/infrastructure/persistence/agency"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database wraps the GORM handle shared by every repository.
type Database struct {
	DB *gorm.DB
}

// NewDatabase connects without SQL logging.
func NewDatabase(cfg *config.DatabaseConfig) (*Database, error) {
	return newDatabase(cfg, gormlogger.Default.LogMode(gormlogger.Silent))
}

// NewDatabaseWithLogger connects with SQL logging routed through the
// application's zap logger, carrying request and agency identity on every
// statement line.
func NewDatabaseWithLogger(cfg *config.DatabaseConfig, log *zap.Logger, level gormlogger.LogLevel) (*Database, error) {
	return newDatabase(cfg, applogger.NewGormLogger(log, level))
}

func newDatabase(cfg *config.DatabaseConfig, gormLogger gormlogger.Interface) (*Database, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrapping sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Safety net under the repositories' explicit predicates: any query that
	// reaches GORM without an agency_id condition gets one from the request
	// context, or fails if none is resolved.
	agency.EnableAutoAgencyFilter(db, true)

	return &Database{DB: db}, nil
}

func (d *Database) sqlDB() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrapping sql.DB: %w", err)
	}
	return sqlDB, nil
}

// Close releases the connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the connection is alive, used by the health endpoint.
func (d *Database) Ping() error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// ConnectionStats is a snapshot of the pool state.
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	MaxIdleClosed      int64
	MaxIdleTimeClosed  int64
	MaxLifetimeClosed  int64
}

// Stats reports the current pool state.
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return ConnectionStats{}, err
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}, nil
}

// Transaction runs fn inside a database transaction.
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	return d.DB.Transaction(fn)
}

// AgencyTransaction runs fn inside a transaction whose Postgres session is
// bound to the given agency, so the row-level security policies on
// agency-owned tables apply for the duration of the transaction. The binding
// uses set_config with is_local=true (the parameterizable form of SET LOCAL)
// and resets automatically on commit or rollback. Every agency-scoped
// repository call runs through here; the policies are FORCEd, so a statement
// that skipped the binding would see no rows at all.
func (d *Database) AgencyTransaction(ctx context.Context, agencyID uuid.UUID, fn func(tx *gorm.DB) error) error {
	if agencyID == uuid.Nil {
		return agency.ErrAgencyIDRequired
	}
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT set_config('app.current_agency_id', ?, true)", agencyID.String()).Error; err != nil {
			return fmt.Errorf("binding agency for row-level security: %w", err)
		}
		return fn(tx)
	})
}

// WithAgency returns a GORM handle pre-filtered to one agency. An empty
// agency ID panics rather than silently widening the query to every row.
func (d *Database) WithAgency(agencyID string) *gorm.DB {
	if agencyID == "" {
		panic("WithAgency called with an empty agency ID")
	}
	return d.DB.Scopes(agency.ScopeString(agencyID))
}
