package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLitePersister persists the session record, encrypted at rest, in a
// single-row SQLite table. It also keeps small bits of per-installation
// metadata (installation id, refresh cookies) in a key/value table.
type SQLitePersister struct {
	db  *sql.DB
	key []byte
	mu  sync.Mutex
}

// NewSQLitePersister opens (creating if needed) the database at dbPath.
// The key encrypts the stored record; use DeriveKey to obtain one.
func NewSQLitePersister(dbPath string, key []byte) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Tighten file permissions; ignore failure if the file doesn't exist yet
	_ = os.Chmod(dbPath, 0600)

	p := &SQLitePersister{db: db, key: key}
	if err := p.init(); err != nil {
		db.Close()
		return nil, err
	}

	return p, nil
}

func (p *SQLitePersister) init() error {
	sessionQuery := `
	CREATE TABLE IF NOT EXISTS session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := p.db.Exec(sessionQuery); err != nil {
		return fmt.Errorf("failed to create session table: %w", err)
	}

	metaQuery := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := p.db.Exec(metaQuery); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}

	return nil
}

// Load returns the persisted record, or nil when no session is stored.
func (p *SQLitePersister) Load() (*Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var payload string
	err := p.db.QueryRow("SELECT payload FROM session WHERE id = 1").Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	plaintext, err := decrypt(payload, p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var r Record
	if err := json.Unmarshal(plaintext, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &r, nil
}

// Save stores or replaces the persisted record.
func (p *SQLitePersister) Save(r Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	plaintext, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	payload, err := encrypt(plaintext, p.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	_, err = p.db.Exec(`
		INSERT INTO session (id, payload, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, payload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Delete removes the persisted record.
func (p *SQLitePersister) Delete() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.db.Exec("DELETE FROM session WHERE id = 1"); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// InstallationID returns the stable per-installation UUID, generating and
// storing one on first use.
func (p *SQLitePersister) InstallationID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var id string
	err := p.db.QueryRow("SELECT value FROM meta WHERE key = 'installation_id'").Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to query installation id: %w", err)
	}

	id = uuid.New().String()
	_, err = p.db.Exec("INSERT INTO meta (key, value) VALUES ('installation_id', ?)", id)
	if err != nil {
		return "", fmt.Errorf("failed to store installation id: %w", err)
	}
	return id, nil
}

// storedCookie is the persisted subset of http.Cookie we care about.
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

// SaveCookies persists the given cookies (the long-lived refresh credential),
// encrypted like the session record. A browser keeps its cookie jar on disk;
// the CLI needs the same courtesy for refresh to work across runs.
func (p *SQLitePersister) SaveCookies(cookies []*http.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}
	plaintext, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	payload, err := encrypt(plaintext, p.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt cookies: %w", err)
	}

	_, err = p.db.Exec(`
		INSERT INTO meta (key, value) VALUES ('cookies', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, payload)
	if err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

// LoadCookies returns the persisted cookies, or nil when none are stored.
func (p *SQLitePersister) LoadCookies() ([]*http.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var payload string
	err := p.db.QueryRow("SELECT value FROM meta WHERE key = 'cookies'").Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}

	plaintext, err := decrypt(payload, p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt cookies: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(plaintext, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Expires: c.Expires})
	}
	return cookies, nil
}

// DeleteCookies removes any persisted cookies.
func (p *SQLitePersister) DeleteCookies() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.db.Exec("DELETE FROM meta WHERE key = 'cookies'"); err != nil {
		return fmt.Errorf("failed to delete cookies: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
