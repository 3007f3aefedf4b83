package store

import (
	"encoding/json"
	"log/slog"
	"sync"

	"unibox/internal/domain"
	"unibox/internal/rank"
)

// Blob keys for the preference stores.
const (
	FiltersKey = "filter-storage"
	ThemeKey   = "theme-storage"
)

// Filters holds the persisted inbox view preferences.
type Filters struct {
	mu       sync.RWMutex
	hideRead bool
	mode     rank.Mode

	blobs  domain.BlobStore
	logger *slog.Logger
}

type filtersBlob struct {
	HideRead   bool      `json:"hideRead"`
	FilterMode rank.Mode `json:"filterMode"`
}

// NewFilters creates the filter preference store with defaults (show read
// messages, blended ranking).
func NewFilters(blobs domain.BlobStore, logger *slog.Logger) *Filters {
	return &Filters{mode: rank.ModeBoth, blobs: blobs, logger: logger}
}

// Load rehydrates preferences; absent or unreadable blobs keep defaults.
func (f *Filters) Load() {
	var blob filtersBlob
	if !loadBlob(f.blobs, FiltersKey, &blob, f.logger) {
		return
	}
	mode, err := rank.ParseMode(string(blob.FilterMode))
	if err != nil {
		mode = rank.ModeBoth
	}
	f.mu.Lock()
	f.hideRead = blob.HideRead
	f.mode = mode
	f.mu.Unlock()
}

// HideRead reports whether read messages are hidden from the list view.
func (f *Filters) HideRead() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.hideRead
}

// Mode returns the active ranking mode.
func (f *Filters) Mode() rank.Mode {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mode
}

// SetHideRead updates and persists the hide-read preference.
func (f *Filters) SetHideRead(hide bool) {
	f.mu.Lock()
	f.hideRead = hide
	blob := filtersBlob{HideRead: f.hideRead, FilterMode: f.mode}
	f.mu.Unlock()
	saveBlob(f.blobs, FiltersKey, blob, f.logger)
}

// SetMode updates and persists the ranking mode.
func (f *Filters) SetMode(mode rank.Mode) {
	f.mu.Lock()
	f.mode = mode
	blob := filtersBlob{HideRead: f.hideRead, FilterMode: f.mode}
	f.mu.Unlock()
	saveBlob(f.blobs, FiltersKey, blob, f.logger)
}

// Theme holds the persisted display theme preference. Rendering is out of
// scope here; the engine only stores the value for the UI layer.
type Theme struct {
	mu     sync.RWMutex
	mode   string // "light" | "dark" | "system"
	blobs  domain.BlobStore
	logger *slog.Logger
}

type themeBlob struct {
	ThemeMode string `json:"themeMode"`
}

// NewTheme creates the theme preference store defaulting to "system".
func NewTheme(blobs domain.BlobStore, logger *slog.Logger) *Theme {
	return &Theme{mode: "system", blobs: blobs, logger: logger}
}

// Load rehydrates the theme preference.
func (t *Theme) Load() {
	var blob themeBlob
	if !loadBlob(t.blobs, ThemeKey, &blob, t.logger) {
		return
	}
	switch blob.ThemeMode {
	case "light", "dark", "system":
		t.mu.Lock()
		t.mode = blob.ThemeMode
		t.mu.Unlock()
	}
}

// Mode returns the current theme mode.
func (t *Theme) Mode() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mode
}

// SetMode updates and persists the theme mode. Unknown values are ignored.
func (t *Theme) SetMode(mode string) {
	switch mode {
	case "light", "dark", "system":
	default:
		return
	}
	t.mu.Lock()
	t.mode = mode
	t.mu.Unlock()
	saveBlob(t.blobs, ThemeKey, themeBlob{ThemeMode: mode}, t.logger)
}

func loadBlob(blobs domain.BlobStore, key string, v any, logger *slog.Logger) bool {
	if blobs == nil {
		return false
	}
	data, err := blobs.Get(key)
	if err != nil || data == nil {
		if err != nil {
			logger.Warn("preference load failed, using defaults", "key", key, "err", err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		logger.Warn("preference blob corrupt, using defaults", "key", key, "err", err)
		return false
	}
	return true
}

func saveBlob(blobs domain.BlobStore, key string, v any, logger *slog.Logger) {
	if blobs == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("preference encode failed", "key", key, "err", err)
		return
	}
	if err := blobs.Set(key, data); err != nil {
		logger.Warn("preference persist failed", "key", key, "err", err)
	}
}
