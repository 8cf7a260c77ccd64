package service

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"galleries/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Settings — window size, backend URL and maintenance options
// ─────────────────────────────────────────────────────────────
//
// Stored in SQLite as key-value rows in app_settings. Environment
// variables override the backend URL and data directory.

const (
	EnvBackendURL = "GALLERIES_BACKEND_URL"
	EnvDataDir    = "GALLERIES_DATA_DIR"

	DefaultBackendURL        = "http://localhost:8000"
	DefaultRetentionDays     = 30
	DefaultMaintenanceSpec   = "@daily"
	DefaultRenderConcurrency = 4

	settingWindowWidth       = "window_width"
	settingWindowHeight      = "window_height"
	settingBackendURL        = "backend_url"
	settingLastSession       = "last_session_id"
	settingRetentionDays     = "history_retention_days"
	settingMaintenanceSpec   = "maintenance_schedule"
	settingRenderConcurrency = "render_concurrency"

	defaultWindowWidth  = 1280
	defaultWindowHeight = 800
)

// WindowSize holds the saved window dimensions.
type WindowSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Settings is the user-editable configuration shown in the settings panel.
type Settings struct {
	BackendURL        string `json:"backendUrl"`
	RetentionDays     int    `json:"retentionDays"`
	MaintenanceSpec   string `json:"maintenanceSchedule"`
	RenderConcurrency int    `json:"renderConcurrency"`
}

// SettingsService persists app preferences between runs.
type SettingsService struct {
	kv *storage.Settings
}

// NewSettingsService creates a SettingsService. kv may be nil, in which
// case defaults are returned and saves fail.
func NewSettingsService(kv *storage.Settings) *SettingsService {
	return &SettingsService{kv: kv}
}

// ResolveDataDir returns the directory holding the database and exports.
func ResolveDataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "galleries")
}

// LoadWindowSize returns the saved window dimensions, or sensible defaults.
func (s *SettingsService) LoadWindowSize() WindowSize {
	if s.kv == nil {
		return WindowSize{Width: defaultWindowWidth, Height: defaultWindowHeight}
	}
	w := s.kv.GetInt(settingWindowWidth, defaultWindowWidth)
	h := s.kv.GetInt(settingWindowHeight, defaultWindowHeight)
	if w < 800 {
		w = defaultWindowWidth
	}
	if h < 600 {
		h = defaultWindowHeight
	}
	return WindowSize{Width: w, Height: h}
}

// SaveWindowSize persists the current window dimensions.
func (s *SettingsService) SaveWindowSize(width, height int) error {
	if s.kv == nil {
		return fmt.Errorf("window settings: no db")
	}
	if err := s.kv.Set(settingWindowWidth, strconv.Itoa(width)); err != nil {
		return err
	}
	return s.kv.Set(settingWindowHeight, strconv.Itoa(height))
}

// BackendURL returns the generation backend base URL. The environment
// variable wins over the stored value.
func (s *SettingsService) BackendURL() string {
	if u := os.Getenv(EnvBackendURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	if s.kv == nil {
		return DefaultBackendURL
	}
	return strings.TrimRight(s.kv.GetString(settingBackendURL, DefaultBackendURL), "/")
}

func (s *SettingsService) LastSession() string {
	if s.kv == nil {
		return ""
	}
	return s.kv.GetString(settingLastSession, "")
}

func (s *SettingsService) SetLastSession(id string) error {
	if s.kv == nil {
		return fmt.Errorf("settings: no db")
	}
	return s.kv.Set(settingLastSession, id)
}

// Load returns the current settings with defaults filled in.
func (s *SettingsService) Load() Settings {
	out := Settings{
		BackendURL:        s.BackendURL(),
		RetentionDays:     DefaultRetentionDays,
		MaintenanceSpec:   DefaultMaintenanceSpec,
		RenderConcurrency: DefaultRenderConcurrency,
	}
	if s.kv == nil {
		return out
	}
	if n := s.kv.GetInt(settingRetentionDays, DefaultRetentionDays); n > 0 {
		out.RetentionDays = n
	}
	out.MaintenanceSpec = s.kv.GetString(settingMaintenanceSpec, DefaultMaintenanceSpec)
	if n := s.kv.GetInt(settingRenderConcurrency, DefaultRenderConcurrency); n > 0 {
		out.RenderConcurrency = n
	}
	return out
}

// Save validates and stores settings. The backend URL must be absolute
// http(s) and the schedule must parse as a cron spec.
func (s *SettingsService) Save(in Settings) error {
	if s.kv == nil {
		return fmt.Errorf("settings: no db")
	}
	u, err := url.Parse(in.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend url %q", in.BackendURL)
	}
	if in.RetentionDays <= 0 {
		return fmt.Errorf("retention must be at least one day")
	}
	if in.RenderConcurrency <= 0 {
		return fmt.Errorf("render concurrency must be positive")
	}
	if _, err := cron.ParseStandard(in.MaintenanceSpec); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", in.MaintenanceSpec, err)
	}

	pairs := [][2]string{
		{settingBackendURL, strings.TrimRight(in.BackendURL, "/")},
		{settingRetentionDays, strconv.Itoa(in.RetentionDays)},
		{settingMaintenanceSpec, in.MaintenanceSpec},
		{settingRenderConcurrency, strconv.Itoa(in.RenderConcurrency)},
	}
	for _, p := range pairs {
		if err := s.kv.Set(p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}
