package settings

import (
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != Default() {
		t.Errorf("Load = %+v, want defaults %+v", got, Default())
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "settings.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	want := Settings{
		AutoDownload:    true,
		DownloadPath:    "/tmp/videos",
		NamingRule:      "sequential",
		MonitorInterval: 250,
		MaxLogs:         42,
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestNormalize_ClampsZeroValues(t *testing.T) {
	got := Normalize(Settings{AutoDownload: true})
	want := Default()
	want.AutoDownload = true
	if got != want {
		t.Errorf("Normalize = %+v, want %+v", got, want)
	}
}

func TestSave_NormalizesBrokenValues(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "settings.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := store.Save(Settings{MonitorInterval: -5, MaxLogs: 0, NamingRule: ""}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.MonitorInterval != 500 || got.MaxLogs != 100 || got.NamingRule != "timestamp" {
		t.Errorf("normalized = %+v, want defaults for broken fields", got)
	}
}
