package memorial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auracal/internal/model"
)

// StorageKey is the fixed key under which the whole collection is stored.
const StorageKey = "aura_calendar_memorials"

// Repository is the persistence boundary of the Store: whole-collection load
// at boot, whole-collection overwrite on every change.
type Repository interface {
	Load(ctx context.Context) ([]model.MemorialDay, error)
	Save(ctx context.Context, items []model.MemorialDay) error
}

// Open returns the repository for the configured driver ("json" or "sqlite").
func Open(driver, path string) (Repository, error) {
	switch driver {
	case "", "json":
		return NewJSONFileRepository(path), nil
	case "sqlite":
		return NewGormRepository(path)
	default:
		return nil, fmt.Errorf("memorial: unknown store driver %q", driver)
	}
}

// JSONFileRepository stores the collection as a single JSON document:
//
//	{"aura_calendar_memorials": [{"id": ..., "name": ..., "date": ...}, ...]}
type JSONFileRepository struct {
	path string
}

func NewJSONFileRepository(path string) *JSONFileRepository {
	return &JSONFileRepository{path: path}
}

type document map[string][]model.MemorialDay

// Load reads the collection. A missing file is an empty collection.
func (r *JSONFileRepository) Load(_ context.Context) ([]model.MemorialDay, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.MemorialDay{}, nil
		}
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}
	items := doc[StorageKey]
	if items == nil {
		items = []model.MemorialDay{}
	}
	return items, nil
}

// Save overwrites the file atomically (temp file + rename, 0600).
func (r *JSONFileRepository) Save(_ context.Context, items []model.MemorialDay) error {
	if items == nil {
		items = []model.MemorialDay{}
	}
	data, err := json.MarshalIndent(document{StorageKey: items}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".auracal-memorials-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, r.path)
}

// memorialRow is the SQLite row shape. Position keeps insertion order.
type memorialRow struct {
	ID       string `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	Date     string `gorm:"not null"`
	Position int    `gorm:"not null;index"`
}

func (memorialRow) TableName() string {
	return "memorial_days"
}

// GormRepository stores the collection in SQLite, one row per entry.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository opens (or creates) the SQLite database at path and
// migrates the memorial_days table.
func NewGormRepository(path string) (*GormRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("memorial: open sqlite: %w", err)
	}
	return NewGormRepositoryFromDB(db)
}

// NewGormRepositoryFromDB wraps an existing connection.
func NewGormRepositoryFromDB(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&memorialRow{}); err != nil {
		return nil, fmt.Errorf("memorial: migrate: %w", err)
	}
	return &GormRepository{db: db}, nil
}

func (r *GormRepository) Load(ctx context.Context) ([]model.MemorialDay, error) {
	var rows []memorialRow
	if err := r.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]model.MemorialDay, 0, len(rows))
	for _, row := range rows {
		items = append(items, model.MemorialDay{ID: row.ID, Name: row.Name, Date: row.Date})
	}
	return items, nil
}

// Save replaces every row in one transaction.
func (r *GormRepository) Save(ctx context.Context, items []model.MemorialDay) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM memorial_days").Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		rows := make([]memorialRow, 0, len(items))
		for i, m := range items {
			rows = append(rows, memorialRow{ID: m.ID, Name: m.Name, Date: m.Date, Position: i})
		}
		return tx.Create(&rows).Error
	})
}

// Close releases the underlying database handle.
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
