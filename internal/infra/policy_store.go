package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4" // registers the sqlcipher driver
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_guard/internal/domain"
)

const (
	policyDBName = "policy.db"

	metaSchemaVersion   = "schema_version"
	metaBlockingEnabled = "blocking_enabled"
)

// migrations are additive only. Index i upgrades the schema to version i+1.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS blocked_apps (
		package_name TEXT PRIMARY KEY,
		is_blocked INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daemon_status (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		pid INTEGER NOT NULL,
		enforcement_state TEXT NOT NULL,
		capability_state TEXT NOT NULL,
		last_heartbeat INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		app_version TEXT DEFAULT ''
	);
	`,
	`ALTER TABLE blocked_apps ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0;`,
}

// SQLPolicyStore implements domain.PolicyStore and domain.StatusStore on a
// SQLCipher encrypted SQLite database. One mutex serializes all access.
type SQLPolicyStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// NewSQLPolicyStore opens (or creates) the encrypted policy database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewSQLPolicyStore(dataDir string, key []byte, logger *zap.Logger) (*SQLPolicyStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, policyDBName)
	db, err := sql.Open("sqlite3", storeDSN(dbPath, key))
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &SQLPolicyStore{db: db, dbPath: dbPath, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

func storeDSN(dbPath string, key []byte) string {
	return fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096&_busy_timeout=5000", dbPath, hex.EncodeToString(key))
}

// OpenPolicyStore opens the store in dataDir with the key kept beside it,
// creating both on first use.
func OpenPolicyStore(dataDir string, logger *zap.Logger) (*SQLPolicyStore, error) {
	key, err := loadOrCreateStoreKey(dataDir)
	if err != nil {
		return nil, err
	}
	return NewSQLPolicyStore(dataDir, key, logger)
}

func (s *SQLPolicyStore) migrate() error {
	// meta may not exist yet on a fresh file; version 0 then.
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return err
	}
	version := s.schemaVersion()

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
			metaSchemaVersion, strconv.Itoa(i+1)); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLPolicyStore) schemaVersion() int {
	var value string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaSchemaVersion).Scan(&value); err != nil {
		return 0
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return v
}

// SchemaVersion returns the applied migration count.
func (s *SQLPolicyStore) SchemaVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemaVersion()
}

// --- domain.PolicyStore implementation ---

// SetBlocked upserts the entry when blocked, deletes it otherwise.
func (s *SQLPolicyStore) SetBlocked(applicationID string, blocked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if blocked {
		_, err = s.db.Exec(`INSERT OR REPLACE INTO blocked_apps (package_name, is_blocked, updated_at) VALUES (?, 1, ?)`,
			applicationID, time.Now().Unix())
	} else {
		_, err = s.db.Exec(`DELETE FROM blocked_apps WHERE package_name = ?`, applicationID)
	}
	if err != nil {
		s.logger.Error("failed to set blocked status",
			zap.String("app_id", applicationID),
			zap.Bool("blocked", blocked),
			zap.Error(err))
		return false
	}
	return true
}

// IsBlocked fails open: lookup errors are logged and reported as not blocked.
func (s *SQLPolicyStore) IsBlocked(applicationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flag int
	err := s.db.QueryRow(`SELECT is_blocked FROM blocked_apps WHERE package_name = ?`, applicationID).Scan(&flag)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		s.logger.Error("failed to check blocked status",
			zap.String("app_id", applicationID),
			zap.Error(err))
		return false
	}
	return flag == 1
}

// ListBlocked returns every blocked id; empty on error.
func (s *SQLPolicyStore) ListBlocked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT package_name FROM blocked_apps WHERE is_blocked = 1`)
	if err != nil {
		s.logger.Error("failed to list blocked apps", zap.Error(err))
		return []string{}
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			s.logger.Error("failed to scan blocked app", zap.Error(err))
			return []string{}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("failed to list blocked apps", zap.Error(err))
		return []string{}
	}
	return ids
}

// Clear removes every entry.
func (s *SQLPolicyStore) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM blocked_apps`); err != nil {
		s.logger.Error("failed to clear blocked apps", zap.Error(err))
		return false
	}
	return true
}

// BlockingEnabled reads the policy toggle; false when unset or unreadable.
func (s *SQLPolicyStore) BlockingEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaBlockingEnabled).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Error("failed to read policy toggle", zap.Error(err))
		}
		return false
	}
	enabled, _ := strconv.ParseBool(value)
	return enabled
}

// SetBlockingEnabled persists the policy toggle.
func (s *SQLPolicyStore) SetBlockingEnabled(enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`,
		metaBlockingEnabled, strconv.FormatBool(enabled))
	if err != nil {
		s.logger.Error("failed to write policy toggle", zap.Bool("enabled", enabled), zap.Error(err))
		return false
	}
	return true
}

// --- domain.StatusStore implementation ---

// SaveStatus replaces the single status row.
func (s *SQLPolicyStore) SaveStatus(status domain.StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO daemon_status
			(id, pid, enforcement_state, capability_state, last_heartbeat, started_at, app_version)
		VALUES (1, ?, ?, ?, ?, ?, ?)`,
		status.PID, string(status.Enforcement), string(status.Capability),
		status.LastHeartbeat, status.StartedAt, status.AppVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to save daemon status: %w", err)
	}
	return nil
}

// LoadStatus returns nil, nil when no daemon has published a status yet.
func (s *SQLPolicyStore) LoadStatus() (*domain.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec domain.StatusRecord
	var enforcement, capability string
	err := s.db.QueryRow(`
		SELECT pid, enforcement_state, capability_state, last_heartbeat, started_at, app_version
		FROM daemon_status WHERE id = 1`).
		Scan(&rec.PID, &enforcement, &capability, &rec.LastHeartbeat, &rec.StartedAt, &rec.AppVersion)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load daemon status: %w", err)
	}
	rec.Enforcement = domain.EnforcementState(enforcement)
	rec.Capability = domain.CapabilityState(capability)
	return &rec, nil
}

// Path returns the database file path.
func (s *SQLPolicyStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *SQLPolicyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ domain.PolicyStore = (*SQLPolicyStore)(nil)
var _ domain.StatusStore = (*SQLPolicyStore)(nil)
