// config.go: settings struct for Vigil and functions to load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/vigil-cam/vigil/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool   // true to enable this log
	Path     string // Path to the log file
	Rotation string // daily, weekly or size
	MaxSize  int64  // Max size in bytes for size-based rotation
	Level    string // trace, debug, info, warn or error
}

// DetectionSettings controls the temporal event detector.
type DetectionSettings struct {
	ConfirmThreshold int     // consecutive positive frames needed to confirm an event
	KeyFrames        int     // max key frames retained per run
	Label            string  // detection label that marks a frame positive
	MinConfidence    float64 // detections below this confidence are ignored
}

// ClassifierSettings configures the HTTP inference service.
type ClassifierSettings struct {
	URL            string        // base URL of the inference service
	Timeout        time.Duration // per-frame request timeout
	HealthCacheTTL time.Duration // how long a health probe result is trusted
	JPEGQuality    int           // quality of frames uploaded for inference
	Classes        []string      // class names indexed by class id
}

// EvidenceSettings controls where and how evidence is recorded.
type EvidenceSettings struct {
	Path          string // root directory for per-event evidence
	MaxClipFrames int    // confirmed runs are handed off once the clip holds this many frames
	JPEGQuality   int    // key frame JPEG quality
	Keep          bool   // keep evidence directories after the alert is delivered
}

// MediaSettings contains ffmpeg related settings.
type MediaSettings struct {
	FfmpegPath    string  // path to ffmpeg, looked up in PATH when empty
	FfprobePath   string  // path to ffprobe, looked up in PATH when empty
	DefaultFPS    float64 // used when the source frame rate cannot be probed
	VideoCodec    string  // encoder for evidence clips
	RTSPTransport string  // tcp or udp
}

// LocationSettings configures the context enricher.
type LocationSettings struct {
	Enabled  bool          // false disables the lookup and always reports the sentinel
	Override string        // static location, skips the lookup when set
	URL      string        // ip-api compatible endpoint
	Timeout  time.Duration // lookup timeout
}

// AlertSettings configures the alert dispatcher.
type AlertSettings struct {
	QueueSize       int           // bounded job queue
	Workers         int           // concurrent dispatch workers
	ChannelTimeout  time.Duration // deadline for a single channel delivery
	ShutdownTimeout time.Duration // drain deadline on exit
}

// EmailSettings configures SMTP delivery.
type EmailSettings struct {
	Enabled      bool
	Host         string
	Port         int
	Username     string
	Password     string // literal or ${VAR} reference
	PasswordFile string // mounted secret, takes precedence over Password
	From         string
	To           []string
}

// SMSSettings configures the Twilio-compatible SMS channel.
type SMSSettings struct {
	Enabled       bool
	BaseURL       string
	AccountSID    string
	AuthToken     string
	AuthTokenFile string
	From          string
	To            []string
	Rate          float64 // messages per second
}

// PushSettings configures shoutrrr push delivery.
type PushSettings struct {
	Enabled bool
	URLs    []string // shoutrrr service URLs, may carry ${VAR} tokens
}

// MQTTSettings configures MQTT alert publishing.
type MQTTSettings struct {
	Enabled      bool
	Broker       string
	Topic        string
	Username     string
	Password     string
	PasswordFile string
	ClientID     string
	QoS          int
	Retain       bool
}

// MetricsSettings configures the prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
	Listen  string
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// Settings contains all configuration options for Vigil.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // name of this camera site, used in alert bodies
		Log  LogConfig // file log settings
	}

	Detection  DetectionSettings
	Classifier ClassifierSettings
	Evidence   EvidenceSettings
	Media      MediaSettings
	Location   LocationSettings
	Alert      AlertSettings
	Email      EmailSettings
	SMS        SMSSettings
	Push       PushSettings
	MQTT       MQTTSettings
	Metrics    MetricsSettings
	Sentry     SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables through the global viper instance.
// An explicit configPath overrides the default search paths.
func Load(configPath string) (*Settings, error) {
	v := viper.GetViper()
	if err := initViper(v, configPath); err != nil {
		return nil, err
	}

	settings, err := Decode(v)
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// Decode unmarshals and validates settings held by v.
func Decode(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal_config").
			Build()
	}

	if err := resolveCredentials(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("operation", "validate_config").
			Build()
	}

	return settings, nil
}

// initViper sets defaults and environment bindings and reads the config file.
func initViper(v *viper.Viper, configPath string) error {
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		// Invalid env values are reported, the rest of the config still loads
		GetLogger().Warn("environment variable issues", "error", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				FileContext(configPath, 0).
				Context("operation", "read_config").
				Build()
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(v, configPaths[0])
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to dir and reads it back.
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create_config_dir").
			Build()
	}

	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o600); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "write_default_config").
			Build()
	}

	GetLogger().Info("created default config file", "path", configPath)
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// The file is embedded at build time, so this only fails on a broken build
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath, replacing the file atomically.
// Comments and ordering of the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Cross-device rename, fall back to copy & delete
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}

	return nil
}

// HasAlertChannel reports whether at least one delivery channel is enabled.
func (s *Settings) HasAlertChannel() bool {
	return s.Email.Enabled || s.SMS.Enabled || s.Push.Enabled || s.MQTT.Enabled
}
