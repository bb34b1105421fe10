package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Presence.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Trackers  TrackersConfig  `yaml:"trackers"`
	Zones     []ZoneConfig    `yaml:"zones"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-specific information.
// The location is used as the home zone centre and as the synthesized
// position when a presence-only member reports "home".
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// TrackersConfig contains the composite tracker group definitions plus
// defaults applied to groups that do not set their own options.
type TrackersConfig struct {
	Defaults TrackerDefaults `yaml:"defaults"`
	Groups   []GroupConfig   `yaml:"groups"`
}

// TrackerDefaults holds per-group option defaults.
type TrackerDefaults struct {
	RequireMovement bool     `yaml:"require_movement"`
	DrivingSpeed    *float64 `yaml:"driving_speed"` // m/s, nil disables driving detection
	TimeAs          string   `yaml:"time_as"`       // utc, local, device_or_utc, device_or_local
}

// GroupConfig defines one composite tracker group.
type GroupConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Members lists the source entities fused into this group.
	Members []MemberConfig `yaml:"members"`

	// RequireMovement drops GPS updates whose displacement from the previous
	// fix is within the combined accuracy radii. Nil inherits the default.
	RequireMovement *bool    `yaml:"require_movement"`
	DrivingSpeed    *float64 `yaml:"driving_speed"`
	TimeAs          string   `yaml:"time_as"`

	// EntityPicture is a static picture URL for the group. Mutually
	// exclusive with any member's use_picture flag.
	EntityPicture string `yaml:"entity_picture"`
}

// MemberConfig defines one source entity within a group.
type MemberConfig struct {
	Entity     string `yaml:"entity"`
	AllStates  bool   `yaml:"all_states"`
	UsePicture bool   `yaml:"use_picture"`
}

// ZoneConfig defines a named geofence. The home zone is synthesized from
// the site location and does not need to be listed here.
type ZoneConfig struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Radius    float64 `yaml:"radius"` // metres
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for sighting history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TimeAs display modes. The device modes resolve the timezone from the
// sighting's coordinates and fall back to UTC or system-local time.
const (
	TimeAsUTC         = "utc"
	TimeAsLocal       = "local"
	TimeAsDeviceUTC   = "device_or_utc"
	TimeAsDeviceLocal = "device_or_local"
)

// validTimeAs is a pre-computed set for validation.
var validTimeAs = map[string]struct{}{
	TimeAsUTC:         {},
	TimeAsLocal:       {},
	TimeAsDeviceUTC:   {},
	TimeAsDeviceLocal: {},
}

// ValidTimeAs checks whether the given string is a valid time_as mode.
func ValidTimeAs(s string) bool {
	_, ok := validTimeAs[s]
	return ok
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PRESENCE_SECTION_KEY
// For example: PRESENCE_DATABASE_PATH, PRESENCE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyTrackerDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Trackers: TrackersConfig{
			Defaults: TrackerDefaults{
				RequireMovement: false,
				TimeAs:          TimeAsUTC,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/presence.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-presence",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8181,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PRESENCE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRESENCE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PRESENCE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PRESENCE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PRESENCE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("PRESENCE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PRESENCE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// applyTrackerDefaults copies group-level defaults into groups that do not
// set their own options, and derives missing group IDs from the name.
func applyTrackerDefaults(cfg *Config) {
	def := cfg.Trackers.Defaults
	for i := range cfg.Trackers.Groups {
		g := &cfg.Trackers.Groups[i]
		if g.RequireMovement == nil {
			rm := def.RequireMovement
			g.RequireMovement = &rm
		}
		if g.DrivingSpeed == nil && def.DrivingSpeed != nil {
			ds := *def.DrivingSpeed
			g.DrivingSpeed = &ds
		}
		if g.TimeAs == "" {
			g.TimeAs = def.TimeAs
		}
		if g.ID == "" {
			g.ID = GenerateSlug(g.Name)
		}
	}
}

// Validate checks the configuration for errors.
//
// Beyond per-field checks, it enforces the group invariants:
//   - group IDs must be unique
//   - each group needs at least one member
//   - at most one member per group may set use_picture
//   - a group entity_picture excludes member use_picture flags
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if !ValidTimeAs(c.Trackers.Defaults.TimeAs) {
		errs = append(errs, fmt.Sprintf("trackers.defaults.time_as %q is not a valid mode", c.Trackers.Defaults.TimeAs))
	}

	if len(c.Trackers.Groups) == 0 {
		errs = append(errs, "trackers.groups must define at least one group")
	}

	seen := make(map[string]struct{}, len(c.Trackers.Groups))
	for _, g := range c.Trackers.Groups {
		prefix := fmt.Sprintf("trackers.groups[%s]", g.ID)
		if g.Name == "" {
			errs = append(errs, prefix+": name is required")
		}
		if _, dup := seen[g.ID]; dup {
			errs = append(errs, prefix+": duplicate group id")
		}
		seen[g.ID] = struct{}{}

		if len(g.Members) == 0 {
			errs = append(errs, prefix+": at least one member is required")
		}
		if !ValidTimeAs(g.TimeAs) {
			errs = append(errs, fmt.Sprintf("%s: time_as %q is not a valid mode", prefix, g.TimeAs))
		}
		if g.DrivingSpeed != nil && *g.DrivingSpeed <= 0 {
			errs = append(errs, prefix+": driving_speed must be positive")
		}

		pictures := 0
		for _, m := range g.Members {
			if m.Entity == "" {
				errs = append(errs, prefix+": member entity is required")
			}
			if m.UsePicture {
				pictures++
			}
		}
		if pictures > 1 {
			errs = append(errs, prefix+": use_picture may be set on at most one member")
		}
		if pictures > 0 && g.EntityPicture != "" {
			errs = append(errs, prefix+": entity_picture excludes member use_picture")
		}
	}

	for i, z := range c.Zones {
		if z.Name == "" {
			errs = append(errs, fmt.Sprintf("zones[%d]: name is required", i))
		}
		if z.Radius <= 0 {
			errs = append(errs, fmt.Sprintf("zones[%d]: radius must be positive", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
