package inmem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-verification/pkg/emailverification"
	"github.com/tendant/simple-verification/pkg/identity"
	"github.com/tendant/simple-verification/pkg/identityverification"
)

const dataFile = "verification.json"

// tables is the whole dataset. Record slices keep insertion order so that
// records created at the same instant still have a latest one.
type tables struct {
	Identities            map[uuid.UUID]identity.Identity `json:"identities"`
	EmailVerifications    []emailverification.Record      `json:"email_verifications"`
	IdentityVerifications []identityverification.Record   `json:"identity_verifications"`
}

func newTables() *tables {
	return &tables{Identities: make(map[uuid.UUID]identity.Identity)}
}

func (t *tables) clone() *tables {
	out := &tables{
		Identities:            make(map[uuid.UUID]identity.Identity, len(t.Identities)),
		EmailVerifications:    append([]emailverification.Record(nil), t.EmailVerifications...),
		IdentityVerifications: append([]identityverification.Record(nil), t.IdentityVerifications...),
	}
	for id, i := range t.Identities {
		out.Identities[id] = i
	}
	return out
}

// DB holds identities and both verification tables behind one lock.
// A write works on a copy that replaces the live tables only when the write
// succeeds, which gives each repository call all-or-nothing semantics.
type DB struct {
	mu      sync.RWMutex
	t       *tables
	dataDir string
}

// New returns an empty, memory-only database
func New() *DB {
	return &DB{t: newTables()}
}

// Open returns a database persisted as JSON under dataDir.
// Existing data is loaded; every successful write is saved.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db := &DB{t: newTables(), dataDir: dataDir}
	if err := db.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return db, nil
}

func (db *DB) read(fn func(t *tables) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.t)
}

func (db *DB) write(fn func(t *tables) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	staged := db.t.clone()
	if err := fn(staged); err != nil {
		return err
	}
	if db.dataDir != "" {
		if err := save(db.dataDir, staged); err != nil {
			return fmt.Errorf("failed to save: %w", err)
		}
	}
	db.t = staged
	return nil
}

func (db *DB) load() error {
	data, err := os.ReadFile(filepath.Join(db.dataDir, dataFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	t := newTables()
	if err := json.Unmarshal(data, t); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if t.Identities == nil {
		t.Identities = make(map[uuid.UUID]identity.Identity)
	}
	db.t = t
	return nil
}

// save writes the tables to a temp file and renames it into place
func save(dataDir string, t *tables) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	tempFile := filepath.Join(dataDir, dataFile+".tmp")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, filepath.Join(dataDir, dataFile)); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Identities returns the identity repository view
func (db *DB) Identities() *IdentityRepository {
	return &IdentityRepository{db: db}
}

// EmailVerifications returns the email verification repository view
func (db *DB) EmailVerifications() *EmailVerificationRepository {
	return &EmailVerificationRepository{db: db}
}

// IdentityVerifications returns the identity verification repository view
func (db *DB) IdentityVerifications() *IdentityVerificationRepository {
	return &IdentityVerificationRepository{db: db}
}

// Cleanup returns the cleanup store view
func (db *DB) Cleanup() *CleanupStore {
	return &CleanupStore{db: db}
}
