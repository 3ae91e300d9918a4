// Package database opens the GORM connections used by the SQL recording
// backends.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNoPath = errors.New("sqlite path not set")

// sqlitePragmas favour append throughput over durability. Recordings that
// must survive a crash are dumped with VacuumInto.
var sqlitePragmas = []string{
	"PRAGMA journal_mode = MEMORY",
	"PRAGMA synchronous = OFF",
	"PRAGMA cache_size = -32000",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA page_size = 32768",
}

func gormConfig(batch int, prepare bool) *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            prepare,
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// OpenPostgres connects to dsn. Connection errors surface on first use.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	dialector := postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
	db, err := gorm.Open(dialector, gormConfig(10_000, false))
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	return db, nil
}

// OpenSQLite opens path, a file or a "file:" URI such as MemoryDSN builds,
// with a single connection.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, ErrNoPath
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig(2_000, true))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	// shared-cache memory databases lock per connection
	sqlDB.SetMaxOpenConns(1)

	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return db, nil
}

// MemoryDSN names a shared in-memory database. Every connection opened with
// the same name sees the same tables.
func MemoryDSN(name string) string {
	return "file:" + name + "?mode=memory&cache=shared"
}

// VacuumInto copies db into a fresh file at path, replacing any earlier copy.
func VacuumInto(db *gorm.DB, path string) error {
	if path == "" {
		return ErrNoPath
	}
	if strings.ContainsRune(path, '\'') {
		return fmt.Errorf("invalid sqlite file path %q", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing previous dump: %w", err)
	}

	if err := db.Exec("VACUUM INTO 'file:" + path + "'").Error; err != nil {
		return fmt.Errorf("dumping database to %s: %w", path, err)
	}
	return nil
}
