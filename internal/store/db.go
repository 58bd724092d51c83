package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database shared by the durable queue backend, the
// dead-letter list, the outbox/inbox relay tables and the webhook
// subscription registry. Typed views (Jobs, Outbox, Inbox, Subscriptions)
// expose one concern each over the same handle.
type Store struct {
	DB *sql.DB

	// RelayWindow is how long a fetched outbox message stays invisible to
	// FetchNext before an unprocessed relay is handed out again.
	RelayWindow time.Duration
	// InboxTTL is the lifetime of a dedupe key before PurgeExpired may
	// evict it.
	InboxTTL time.Duration
}

const (
	defaultRelayWindow = time.Minute
	defaultInboxTTL    = 24 * time.Hour
)

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// WAL mode allows worker processes to read while another writes.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{
		DB:          db,
		RelayWindow: defaultRelayWindow,
		InboxTTL:    defaultInboxTTL,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Jobs returns the durable queue backend view.
func (s *Store) Jobs() *JobStore { return &JobStore{s: s} }

// Outbox returns the durable outbox view.
func (s *Store) Outbox() *OutboxStore { return &OutboxStore{s: s} }

// Inbox returns the durable dedupe ledger view.
func (s *Store) Inbox() *InboxStore { return &InboxStore{s: s} }

// Subscriptions returns the webhook subscription registry view.
func (s *Store) Subscriptions() *SubscriptionStore { return &SubscriptionStore{s: s} }

func runMigrations(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  payload TEXT NOT NULL DEFAULT '{}',
  attempts INTEGER NOT NULL DEFAULT 0,
  max_attempts INTEGER NOT NULL DEFAULT 5,
  backoff_seconds INTEGER NOT NULL DEFAULT 60,
  last_error TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  available_at INTEGER NOT NULL,
  reserved_until INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_jobs_ready ON jobs(available_at, created_at);

CREATE TABLE IF NOT EXISTS dlq (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  payload TEXT NOT NULL,
  attempts INTEGER NOT NULL,
  max_attempts INTEGER NOT NULL,
  last_error TEXT NOT NULL DEFAULT '',
  failed_at INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  topic TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','processed','failed')),
  attempts INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  processed_at INTEGER,
  relayed_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(status, id);

CREATE TABLE IF NOT EXISTS inbox (
  key TEXT PRIMARY KEY,
  first_seen_at INTEGER NOT NULL,
  expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  topic TEXT NOT NULL,
  url TEXT NOT NULL,
  secrets TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_topic ON subscriptions(topic);

CREATE TABLE IF NOT EXISTS config (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);

INSERT OR IGNORE INTO config(key,value) VALUES ('max_attempts','5');
INSERT OR IGNORE INTO config(key,value) VALUES ('backoff_seconds','60');
INSERT OR IGNORE INTO config(key,value) VALUES ('backoff_cap_seconds','3600');
INSERT OR IGNORE INTO config(key,value) VALUES ('visibility_timeout_seconds','60');
INSERT OR IGNORE INTO config(key,value) VALUES ('poll_interval_ms','300');
INSERT OR IGNORE INTO config(key,value) VALUES ('job_timeout_seconds','30');
`
	_, err := db.Exec(schema)
	return err
}
