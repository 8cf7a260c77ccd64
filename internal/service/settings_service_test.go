package service_test

import (
	"testing"

	"galleries/internal/service"
	"galleries/internal/storage"
)

func TestSettings_Defaults(t *testing.T) {
	t.Setenv(service.EnvBackendURL, "")
	s := service.NewSettingsService(nil)

	got := s.Load()
	if got.BackendURL != service.DefaultBackendURL || got.RetentionDays != 30 || got.MaintenanceSpec != "@daily" {
		t.Errorf("unexpected defaults: %+v", got)
	}
	if ws := s.LoadWindowSize(); ws.Width != 1280 || ws.Height != 800 {
		t.Errorf("unexpected window size: %+v", ws)
	}
}

func TestSettings_SaveAndEnvOverride(t *testing.T) {
	t.Setenv(service.EnvBackendURL, "")
	e := newEnv(t, newFakeBackend())
	s := service.NewSettingsService(storage.NewSettings(e.db))

	in := service.Settings{BackendURL: "http://gpu-box:9000/", RetentionDays: 7, MaintenanceSpec: "0 3 * * *", RenderConcurrency: 8}
	if err := s.Save(in); err != nil {
		t.Fatal(err)
	}
	got := s.Load()
	if got.BackendURL != "http://gpu-box:9000" || got.RetentionDays != 7 || got.RenderConcurrency != 8 {
		t.Errorf("unexpected settings: %+v", got)
	}

	t.Setenv(service.EnvBackendURL, "https://override.example/")
	if u := s.BackendURL(); u != "https://override.example" {
		t.Errorf("expected env override, got %q", u)
	}
}

func TestSettings_SaveValidates(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	s := service.NewSettingsService(storage.NewSettings(e.db))
	valid := service.Settings{BackendURL: "http://localhost:8000", RetentionDays: 30, MaintenanceSpec: "@daily", RenderConcurrency: 4}

	cases := map[string]func(*service.Settings){
		"relative url": func(s *service.Settings) { s.BackendURL = "localhost:8000" },
		"ftp url":      func(s *service.Settings) { s.BackendURL = "ftp://host" },
		"zero days":    func(s *service.Settings) { s.RetentionDays = 0 },
		"bad schedule": func(s *service.Settings) { s.MaintenanceSpec = "every tuesday" },
		"concurrency":  func(s *service.Settings) { s.RenderConcurrency = -1 },
	}
	for name, mutate := range cases {
		in := valid
		mutate(&in)
		if err := s.Save(in); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestSettings_WindowSizeAndLastSession(t *testing.T) {
	e := newEnv(t, newFakeBackend())
	s := service.NewSettingsService(storage.NewSettings(e.db))

	s.SaveWindowSize(1600, 1000)
	if ws := s.LoadWindowSize(); ws.Width != 1600 || ws.Height != 1000 {
		t.Errorf("unexpected window size: %+v", ws)
	}
	s.SaveWindowSize(200, 100)
	if ws := s.LoadWindowSize(); ws.Width != 1280 || ws.Height != 800 {
		t.Errorf("expected tiny sizes to fall back to defaults, got %+v", ws)
	}

	s.SetLastSession("s9")
	if got := s.LastSession(); got != "s9" {
		t.Errorf("unexpected last session %q", got)
	}
}
