package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/celerix-dev/repairdesk/pkg/schema"
)

// Table file names under the data directory.
const (
	fileUsers            = "users"
	fileAdmins           = "admins"
	fileAudit            = "audit_log"
	fileCategories       = "device_categories"
	fileModels           = "device_models"
	fileServices         = "services"
	fileCategoryServices = "category_services"
	filePrices           = "prices"
	fileImages           = "device_images"
	fileAnnouncements    = "announcements"
	fileArticles         = "articles"
)

// StoredUser is the on-disk form of a user. Unlike schema.UserRecord it
// serializes the password hash.
type StoredUser struct {
	ID           schema.SubjectID `json:"id"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"password_hash"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Snapshot is the full content of a MemStore.
type Snapshot struct {
	Users            []StoredUser
	Admins           []schema.AdminRecord
	Audit            []schema.AuditEntry
	Categories       []schema.Category
	Models           []schema.DeviceModel
	Services         []schema.Service
	CategoryServices []schema.CategoryService
	Prices           []schema.Price
	Images           []schema.DeviceImage
	Announcements    []schema.Announcement
	Articles         []schema.Article
}

// Persistence handles the disk I/O for the MemStore: one JSON file per table.
type Persistence struct {
	DataDir string
	mu      sync.Mutex // Protects concurrent writes to the filesystem
	written map[string]uint64
}

// NewPersistence initializes a persistence handler.
func NewPersistence(dir string) (*Persistence, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Persistence{DataDir: dir, written: make(map[string]uint64)}, nil
}

// SaveTable writes a table snapshot atomically. Snapshots carrying a version
// older than the last one written are dropped, so out-of-order background
// saves never roll a file back.
func (p *Persistence) SaveTable(name string, version uint64, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if version <= p.written[name] {
		return nil
	}

	filePath := filepath.Join(p.DataDir, name+".json")
	tempPath := filePath + ".tmp"

	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tempPath, bytes, 0o644); err != nil {
		return err
	}
	// Either the old file or the new one survives a crash, never a torn one.
	if err := os.Rename(tempPath, filePath); err != nil {
		return err
	}
	p.written[name] = version
	return nil
}

// LoadAll reads every table file found in the data directory. Missing files
// are empty tables; unreadable ones are an error.
func (p *Persistence) LoadAll() (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &Snapshot{}
	targets := []struct {
		name string
		into any
	}{
		{fileUsers, &s.Users},
		{fileAdmins, &s.Admins},
		{fileAudit, &s.Audit},
		{fileCategories, &s.Categories},
		{fileModels, &s.Models},
		{fileServices, &s.Services},
		{fileCategoryServices, &s.CategoryServices},
		{filePrices, &s.Prices},
		{fileImages, &s.Images},
		{fileAnnouncements, &s.Announcements},
		{fileArticles, &s.Articles},
	}
	for _, t := range targets {
		content, err := os.ReadFile(filepath.Join(p.DataDir, t.name+".json"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", t.name, err)
		}
		if err := json.Unmarshal(content, t.into); err != nil {
			return nil, fmt.Errorf("decode %s: %w", t.name, err)
		}
	}
	return s, nil
}
