// Package db opens the durable local store and applies its schema.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-pedidos/internal/config"
	"github.com/diewo77/go-pedidos/internal/models"
)

//go:embed migrations
var migrationFS embed.FS

const migrationsTable = "schema_migrations"

// requiredTables must exist once the schema is applied.
var requiredTables = []string{"orders", "order_items", "products", "companies", "advisors", "clients", "config", "session_users"}

// AllModels lists every persisted model, in AutoMigrate order.
func AllModels() []any {
	return []any{
		&models.Product{},
		&models.Company{},
		&models.Advisor{},
		&models.Client{},
		&models.Order{},
		&models.OrderItem{},
		&models.ConfigEntry{},
		&models.SessionUser{},
	}
}

// Open connects to the configured database, retrying while a server
// database is still starting.
func Open(cfg config.DatabaseConfig, log logrus.FieldLogger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{Logger: logger.New(log, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logLevel,
		IgnoreRecordNotFoundError: true,
	})}

	if !cfg.IsPostgres() {
		gdb, err := gorm.Open(sqlite.Open(sqliteDSN(cfg.Path)), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		// single writer on the device
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	}

	dsn := cfg.DSN()
	var gdb *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		gdb, err = gorm.Open(postgres.Open(dsn), gcfg)
		if err == nil {
			break
		}
		log.WithField("attempt", i+1).WithError(err).Warn("retrying database connection")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := gdb.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.WithField("dsn", maskDSN(dsn)).Info("connected to database")
	return gdb, nil
}

// Migrate applies the versioned SQL migrations when sqlMigrations is set,
// or falls back to AutoMigrate, then checks that the core tables exist.
func Migrate(gdb *gorm.DB, sqlMigrations bool) error {
	if sqlMigrations {
		if err := runSQLMigrations(gdb); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range AllModels() {
			if err := gdb.AutoMigrate(m); err != nil {
				return fmt.Errorf("automigrate %T: %w", m, err)
			}
		}
	}
	for _, table := range requiredTables {
		if !gdb.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// SchemaVersion returns the applied migration version (0 when none). It
// reads the golang-migrate bookkeeping table through gorm and never creates
// it, so it is safe on every request and under AutoMigrate.
func SchemaVersion(gdb *gorm.DB) (uint, bool, error) {
	if !gdb.Migrator().HasTable(migrationsTable) {
		return 0, false, nil
	}
	var row struct {
		Version int64
		Dirty   bool
	}
	res := gdb.Raw("SELECT version, dirty FROM " + migrationsTable + " LIMIT 1").Scan(&row)
	if res.Error != nil {
		return 0, false, fmt.Errorf("read schema version: %w", res.Error)
	}
	if res.RowsAffected == 0 || row.Version < 0 {
		return 0, false, nil
	}
	return uint(row.Version), row.Dirty, nil
}

func runSQLMigrations(gdb *gorm.DB) error {
	m, release, err := newMigrate(gdb)
	if err != nil {
		return err
	}
	// m.Close would close the shared *sql.DB; release only frees what
	// newMigrate took from the pool.
	defer release()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func newMigrate(gdb *gorm.DB) (*migrate.Migrate, func(), error) {
	noop := func() {}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, noop, err
	}
	dialect := gdb.Dialector.Name()
	sub, err := fs.Sub(migrationFS, "migrations/"+dialect)
	if err != nil {
		return nil, noop, err
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, noop, fmt.Errorf("migration source %s: %w", dialect, err)
	}
	switch dialect {
	case "sqlite":
		drv, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
		if err != nil {
			return nil, noop, err
		}
		m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
		return m, noop, err
	case "postgres":
		// a dedicated connection, handed back to the pool by release
		ctx := context.Background()
		conn, err := sqlDB.Conn(ctx)
		if err != nil {
			return nil, noop, err
		}
		release := func() { _ = conn.Close() }
		drv, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{})
		if err != nil {
			release()
			return nil, noop, err
		}
		m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
		if err != nil {
			release()
			return nil, noop, err
		}
		return m, release, nil
	default:
		return nil, noop, fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}

var passwordRe = regexp.MustCompile(`(password=)([^\s]+)`)

func maskDSN(dsn string) string {
	return passwordRe.ReplaceAllString(dsn, `${1}***`)
}
