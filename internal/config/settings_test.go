package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDecodeSettingsTOML(t *testing.T) {
	data := []byte(`
data_file = "/tmp/custom.db"
request_timeout = "30s"
max_body_bytes = 1024
history_limit = 50
log_level = "debug"
log_format = "json"
`)
	settings, err := decodeSettings(data, SettingsFormatTOML)
	if err != nil {
		t.Fatalf("decode toml: %v", err)
	}
	if settings.DataFile != "/tmp/custom.db" || settings.RequestTimeout != "30s" {
		t.Fatalf("unexpected settings: %+v", settings)
	}
	if settings.MaxBodyBytes != 1024 || settings.HistoryLimit != 50 {
		t.Fatalf("unexpected limits: %+v", settings)
	}
	if settings.LogLevel != "debug" || settings.LogFormat != "json" {
		t.Fatalf("unexpected logging: %+v", settings)
	}
}

func TestDecodeSettingsJSONRejectsUnknownFields(t *testing.T) {
	good := []byte(`{"log_level":"warn"}`)
	settings, err := decodeSettings(good, SettingsFormatJSON)
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if settings.LogLevel != "warn" {
		t.Fatalf("log level = %q", settings.LogLevel)
	}

	bad := []byte(`{"log_level":"warn","surprise":true}`)
	if _, err := decodeSettings(bad, SettingsFormatJSON); err == nil {
		t.Fatalf("expected unknown-field error")
	}
}

func TestApplyDefaultsFillsBlanks(t *testing.T) {
	settings := applyDefaults(Settings{LogLevel: "debug"})
	defaults := DefaultSettings()

	if settings.LogLevel != "debug" {
		t.Fatalf("explicit value clobbered: %q", settings.LogLevel)
	}
	if settings.RequestTimeout != defaults.RequestTimeout {
		t.Fatalf("timeout not defaulted: %q", settings.RequestTimeout)
	}
	if settings.MaxBodyBytes != defaults.MaxBodyBytes || settings.HistoryLimit != defaults.HistoryLimit {
		t.Fatalf("limits not defaulted: %+v", settings)
	}
	if settings.DataFile == "" || settings.LogFormat == "" {
		t.Fatalf("blanks left: %+v", settings)
	}
}

func TestTimeoutFallsBackOnBadValue(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"", 15 * time.Second},
		{"garbage", 15 * time.Second},
		{"-5s", 15 * time.Second},
	}
	for _, tt := range tests {
		s := Settings{RequestTimeout: tt.value}
		if got := s.Timeout(); got != tt.want {
			t.Fatalf("Timeout(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, format := range []SettingsFormat{SettingsFormatTOML, SettingsFormatJSON} {
		handle := SettingsHandle{
			Path:   filepath.Join(dir, "settings."+string(format)),
			Format: format,
		}
		in := DefaultSettings()
		in.LogLevel = "debug"

		if err := SaveSettings(in, handle); err != nil {
			t.Fatalf("save %s: %v", format, err)
		}
		data, err := os.ReadFile(handle.Path)
		if err != nil {
			t.Fatalf("read back %s: %v", format, err)
		}
		out, err := decodeSettings(data, format)
		if err != nil {
			t.Fatalf("decode %s: %v", format, err)
		}
		if out != in {
			t.Fatalf("%s round trip mismatch: %+v vs %+v", format, out, in)
		}
	}
}
