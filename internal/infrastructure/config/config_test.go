package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a temporary YAML config and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalConfig = `
site:
  id: site-001
  location:
    latitude: 51.5
    longitude: -0.12
trackers:
  groups:
    - name: Anna
      members:
        - entity: device_tracker.annas_phone
`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	g := cfg.Trackers.Groups[0]
	if g.ID != "anna" {
		t.Errorf("derived group id = %q, want anna", g.ID)
	}
	if g.TimeAs != TimeAsUTC {
		t.Errorf("time_as = %q, want inherited default utc", g.TimeAs)
	}
	if g.RequireMovement == nil || *g.RequireMovement {
		t.Errorf("require_movement = %v, want inherited false", g.RequireMovement)
	}
	if cfg.API.Port != 8181 {
		t.Errorf("api port = %d, want default 8181", cfg.API.Port)
	}
}

func TestLoadDefaultsPropagate(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
site:
  id: site-001
trackers:
  defaults:
    require_movement: true
    driving_speed: 25.0
    time_as: device_or_utc
  groups:
    - name: Anna
      members:
        - entity: device_tracker.annas_phone
    - name: Ben
      time_as: local
      members:
        - entity: device_tracker.bens_phone
`))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	anna, ben := cfg.Trackers.Groups[0], cfg.Trackers.Groups[1]
	if anna.TimeAs != TimeAsDeviceUTC || ben.TimeAs != TimeAsLocal {
		t.Errorf("time_as = %q/%q, want device default and explicit override", anna.TimeAs, ben.TimeAs)
	}
	if anna.RequireMovement == nil || !*anna.RequireMovement {
		t.Error("require_movement default not inherited")
	}
	if anna.DrivingSpeed == nil || *anna.DrivingSpeed != 25.0 {
		t.Errorf("driving_speed = %v, want inherited 25.0", anna.DrivingSpeed)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "no groups",
			yaml: `
site:
  id: site-001
`,
			wantErr: "at least one group",
		},
		{
			name: "group without members",
			yaml: `
site:
  id: site-001
trackers:
  groups:
    - name: Anna
`,
			wantErr: "at least one member",
		},
		{
			name: "duplicate group ids",
			yaml: `
site:
  id: site-001
trackers:
  groups:
    - name: Anna
      members:
        - entity: device_tracker.a
    - name: anna
      members:
        - entity: device_tracker.b
`,
			wantErr: "duplicate group id",
		},
		{
			name: "two picture members",
			yaml: `
site:
  id: site-001
trackers:
  groups:
    - name: Anna
      members:
        - entity: device_tracker.a
          use_picture: true
        - entity: device_tracker.b
          use_picture: true
`,
			wantErr: "use_picture",
		},
		{
			name: "picture member conflicts with group picture",
			yaml: `
site:
  id: site-001
trackers:
  groups:
    - name: Anna
      entity_picture: /local/anna.png
      members:
        - entity: device_tracker.a
          use_picture: true
`,
			wantErr: "entity_picture excludes",
		},
		{
			name: "bad time_as mode",
			yaml: `
site:
  id: site-001
trackers:
  groups:
    - name: Anna
      time_as: martian
      members:
        - entity: device_tracker.a
`,
			wantErr: "time_as",
		},
		{
			name: "negative driving speed",
			yaml: `
site:
  id: site-001
trackers:
  groups:
    - name: Anna
      driving_speed: -3
      members:
        - entity: device_tracker.a
`,
			wantErr: "driving_speed",
		},
		{
			name: "zone without radius",
			yaml: `
site:
  id: site-001
zones:
  - name: Office
    latitude: 51.52
    longitude: -0.10
trackers:
  groups:
    - name: Anna
      members:
        - entity: device_tracker.a
`,
			wantErr: "radius",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			if err == nil {
				t.Fatal("Load() succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PRESENCE_MQTT_HOST", "broker.lan")
	t.Setenv("PRESENCE_DATABASE_PATH", "/var/lib/presence/presence.db")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.Broker.Host != "broker.lan" {
		t.Errorf("mqtt host = %q, want env override", cfg.MQTT.Broker.Host)
	}
	if cfg.Database.Path != "/var/lib/presence/presence.db" {
		t.Errorf("database path = %q, want env override", cfg.Database.Path)
	}
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Anna's Phone", "annas-phone"},
		{"  Ben  ", "ben"},
		{"Guest Room_2", "guest-room-2"},
		{"--weird--", "weird"},
	}
	for _, tt := range tests {
		if got := GenerateSlug(tt.in); got != tt.want {
			t.Errorf("GenerateSlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
