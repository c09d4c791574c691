// ABOUTME: Encrypted full-store snapshots identified by ULIDs.
// ABOUTME: Create exports the repository as JSON and seals it; Restore reverses that.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/harperreed/migraine/internal/logging"
	"github.com/harperreed/migraine/internal/storage"
)

const (
	filePrefix = "migraine-"
	fileExt    = ".bak"
)

// Snapshot describes one backup file.
type Snapshot struct {
	ID        string
	Path      string
	CreatedAt time.Time
	Size      int64
}

// Manager writes and reads snapshots in one directory.
type Manager struct {
	dir string
	kdf KDFParams
	log *zap.Logger
}

// NewManager creates a manager for dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, kdf: DefaultKDF, log: logging.Named("backup")}
}

// WithKDF overrides the key derivation cost for new snapshots. Restore
// reads the cost from each snapshot.
func (m *Manager) WithKDF(p KDFParams) *Manager {
	m.kdf = p
	return m
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Create exports every record in r and writes an encrypted snapshot.
func (m *Manager) Create(r storage.Repository, passphrase string) (*Snapshot, error) {
	plain, err := storage.ExportJSON(r)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	sealed, err := Encrypt(plain, passphrase, m.kdf)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	id := ulid.Make()
	path := filepath.Join(m.dir, filePrefix+id.String()+fileExt)
	if err := os.WriteFile(path, sealed, 0600); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	m.log.Info("snapshot created", zap.String("id", id.String()), zap.Int("bytes", len(sealed)))
	return &Snapshot{
		ID:        id.String(),
		Path:      path,
		CreatedAt: ulid.Time(id.Time()),
		Size:      int64(len(sealed)),
	}, nil
}

// List returns snapshots newest first. A missing directory yields none.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var out []Snapshot
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id, err := ulid.ParseStrict(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt))
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{
			ID:        id.String(),
			Path:      filepath.Join(m.dir, name),
			CreatedAt: ulid.Time(id.Time()),
			Size:      info.Size(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Resolve finds a snapshot by ID prefix, a file path, or "latest".
func (m *Manager) Resolve(ref string) (*Snapshot, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return &Snapshot{Path: ref, Size: info.Size()}, nil
	}
	snaps, err := m.List()
	if err != nil {
		return nil, err
	}
	if ref == "latest" {
		if len(snaps) == 0 {
			return nil, fmt.Errorf("no snapshots in %s", m.dir)
		}
		return &snaps[0], nil
	}

	var found *Snapshot
	for i := range snaps {
		if strings.HasPrefix(snaps[i].ID, strings.ToUpper(ref)) {
			if found != nil {
				return nil, fmt.Errorf("ambiguous prefix %s: matches multiple records", ref)
			}
			found = &snaps[i]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("not found: %s", ref)
	}
	return found, nil
}

// Restore decrypts a snapshot and imports it into r. With wipe set the
// store is emptied first; otherwise importing existing episodes fails.
func (m *Manager) Restore(r storage.Repository, snap *Snapshot, passphrase string, wipe bool) error {
	sealed, err := os.ReadFile(snap.Path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	plain, err := Decrypt(sealed, passphrase)
	if err != nil {
		return err
	}
	if wipe {
		if err := r.Wipe(); err != nil {
			return fmt.Errorf("wipe: %w", err)
		}
	}
	if err := storage.ImportJSON(r, plain); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	m.log.Info("snapshot restored", zap.String("path", snap.Path), zap.Bool("wipe", wipe))
	return nil
}
