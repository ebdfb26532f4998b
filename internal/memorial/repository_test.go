package memorial

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"auracal/internal/model"
)

var roundTripCases = map[string][]model.MemorialDay{
	"empty": {},
	"one":   {{ID: "a", Name: "Anniversary", Date: "03-05"}},
	"many": {
		{ID: "c", Name: "Third first", Date: "2023-01-10"},
		{ID: "a", Name: "生日", Date: "07-01"},
		{ID: "b", Name: "Trip", Date: "2025-12-24"},
	},
}

func assertRoundTrip(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	for name, items := range roundTripCases {
		t.Run(name, func(t *testing.T) {
			if err := repo.Save(ctx, items); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := repo.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !slices.Equal(got, items) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, items)
			}
		})
	}
}

func TestJSONFileRepositoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memorials.json")
	assertRoundTrip(t, NewJSONFileRepository(path))
}

func TestJSONFileRepositoryMissingFile(t *testing.T) {
	repo := NewJSONFileRepository(filepath.Join(t.TempDir(), "none.json"))

	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil collection, got %#v", got)
	}
}

func TestJSONFileRepositoryFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memorials.json")
	repo := NewJSONFileRepository(path)

	items := []model.MemorialDay{{ID: "a", Name: "A", Date: "01-01"}}
	if err := repo.Save(context.Background(), items); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}

	data, _ := os.ReadFile(path)
	var raw map[string][]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	entries, ok := raw[StorageKey]
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one entry under %q, got %s", StorageKey, data)
	}
	if entries[0]["id"] != "a" || entries[0]["name"] != "A" || entries[0]["date"] != "01-01" {
		t.Errorf("unexpected entry %v", entries[0])
	}
}

func TestGormRepositoryRoundTrip(t *testing.T) {
	repo, err := NewGormRepository(filepath.Join(t.TempDir(), "auracal.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer repo.Close()

	assertRoundTrip(t, repo)
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("postgres", "x"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
