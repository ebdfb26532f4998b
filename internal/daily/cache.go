package daily

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	appLog "auracal/internal/log"
	"auracal/internal/model"
)

// cacheEntry holds metadata for one cached day.
type cacheEntry struct {
	Date      string    `json:"date"`
	HasBanner bool      `json:"has_banner"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cache is a disk-backed per-day cache of provider results so that a restart
// on the same day does not ask the model again.
//
// Layout:
//
//	<dir>/<YYYY-MM-DD>/daily.json
//	<dir>/<YYYY-MM-DD>/banner.png   (only when a banner was generated)
//	<dir>/<YYYY-MM-DD>/meta.json
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir, e.g. "/var/lib/auracal/daily".
func NewCache(dir string) *Cache {
	if dir == "" {
		// Development fallback so runs without root permissions work.
		dir = "./var/daily"
	}
	return &Cache{dir: dir}
}

func (c *Cache) dayPath(day time.Time) string {
	return filepath.Join(c.dir, day.Format("2006-01-02"))
}

// Load returns the cached payload for day. ok is false when nothing usable
// is cached.
func (c *Cache) Load(day time.Time) (info model.DailyInfo, banner []byte, ok bool) {
	p := c.dayPath(day)

	metaData, err := os.ReadFile(filepath.Join(p, "meta.json"))
	if err != nil {
		return info, nil, false
	}
	var meta cacheEntry
	if err := json.Unmarshal(metaData, &meta); err != nil {
		appLog.Error("daily cache meta corrupt; ignoring", err, "path", p)
		return info, nil, false
	}

	data, err := os.ReadFile(filepath.Join(p, "daily.json"))
	if err != nil {
		return info, nil, false
	}
	if err := json.Unmarshal(data, &info); err != nil {
		appLog.Error("daily cache payload corrupt; ignoring", err, "path", p)
		return model.DailyInfo{}, nil, false
	}
	if err := info.Validate(); err != nil {
		return model.DailyInfo{}, nil, false
	}

	if meta.HasBanner {
		banner, err = os.ReadFile(filepath.Join(p, "banner.png"))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("daily cache banner unreadable", err, "path", p)
		}
	}
	return info, banner, true
}

// Save stores the payload (and banner, if any) for day.
func (c *Cache) Save(day time.Time, info model.DailyInfo, banner []byte) error {
	p := c.dayPath(day)
	if err := os.MkdirAll(p, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(&info, "", "  ")
	if err != nil {
		return err
	}

	// Write payload and banner first so meta never points at missing files.
	if err := os.WriteFile(filepath.Join(p, "daily.json"), data, 0o600); err != nil {
		return err
	}
	if len(banner) > 0 {
		if err := os.WriteFile(filepath.Join(p, "banner.png"), banner, 0o600); err != nil {
			return err
		}
	}

	meta := cacheEntry{
		Date:      day.Format("2006-01-02"),
		HasBanner: len(banner) > 0,
		UpdatedAt: time.Now().UTC(),
	}
	metaData, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p, "meta.json"), metaData, 0o600)
}

// Invalidate drops the cached entry for day so the next refresh asks the
// provider again.
func (c *Cache) Invalidate(day time.Time) error {
	return os.RemoveAll(c.dayPath(day))
}

// Prune removes cached days older than keep days before today.
func (c *Cache) Prune(today time.Time, keep int) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	cutoff := today.AddDate(0, 0, -keep)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := time.ParseInLocation("2006-01-02", e.Name(), today.Location())
		if err != nil || !d.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			appLog.Error("daily cache prune failed", err, "day", e.Name())
		}
	}
}
