// Package config loads the proctor service configuration. Values are layered:
// built-in defaults, then an optional YAML file, then a .env file, then
// PROCTOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/triple4t/ai-interview/internal/log"
	"github.com/triple4t/ai-interview/pkg/pipeline"
	"github.com/triple4t/ai-interview/pkg/vision/detection"
	"github.com/triple4t/ai-interview/pkg/vision/presence"
	"github.com/triple4t/ai-interview/pkg/vision/screenswitch"
)

// Config is the full service configuration.
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Models       ModelsConfig        `yaml:"models"`
	Detection    DetectionConfig     `yaml:"detection"`
	Presence     presence.Config     `yaml:"presence"`
	ScreenSwitch screenswitch.Config `yaml:"screen_switch"`
	Voice        VoiceConfig         `yaml:"voice"`
}

// ServerConfig configures the HTTP/WebSocket surface.
type ServerConfig struct {
	Port         string `yaml:"port"`
	LogLevel     string `yaml:"log_level"`
	CORSOrigins  string `yaml:"cors_origins"`
	RequireArmed bool   `yaml:"require_armed"` // refuse frame sockets until /start
}

// ModelsConfig holds model file paths.
type ModelsConfig struct {
	YuNet    string `yaml:"yunet"`
	FaceMesh string `yaml:"face_mesh"`
	Cascade  string `yaml:"cascade"`
}

// DetectionConfig tunes the detector adapter.
type DetectionConfig struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	FallbackConfidence  float64       `yaml:"fallback_confidence"`
	FrameBudget         time.Duration `yaml:"frame_budget"`
	MaxFaces            int           `yaml:"max_faces"`
}

// VoiceConfig points at the optional external voice-analysis feed.
type VoiceConfig struct {
	FeedURL    string        `yaml:"feed_url"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	det := detection.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			LogLevel:    "info",
			CORSOrigins: "*",
		},
		Models: ModelsConfig{
			YuNet:    det.YuNetPath,
			FaceMesh: det.MeshPath,
			Cascade:  det.CascadePath,
		},
		Detection: DetectionConfig{
			ConfidenceThreshold: det.ConfidenceThresh,
			FallbackConfidence:  det.FallbackConfidence,
			FrameBudget:         det.FrameBudget,
			MaxFaces:            det.MaxFaces,
		},
		Presence:     presence.DefaultConfig(),
		ScreenSwitch: screenswitch.DefaultConfig(),
		Voice:        VoiceConfig{RetryDelay: 2 * time.Second},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the process environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader overlays YAML from r onto the defaults and validates.
// The environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment. Variables that
// are already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		log.Debug("no .env file found, using process environment")
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("config: load env files: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides cfg from PROCTOR_* variables.
func applyEnv(cfg *Config, lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PROCTOR_PORT", &cfg.Server.Port)
	str("PROCTOR_LOG_LEVEL", &cfg.Server.LogLevel)
	str("PROCTOR_CORS_ORIGINS", &cfg.Server.CORSOrigins)
	boolean("PROCTOR_REQUIRE_ARMED", &cfg.Server.RequireArmed)

	str("PROCTOR_YUNET_MODEL", &cfg.Models.YuNet)
	str("PROCTOR_FACE_MESH_MODEL", &cfg.Models.FaceMesh)
	str("PROCTOR_CASCADE_MODEL", &cfg.Models.Cascade)

	float("PROCTOR_CONFIDENCE_THRESHOLD", &cfg.Detection.ConfidenceThreshold)
	duration("PROCTOR_FRAME_BUDGET", &cfg.Detection.FrameBudget)

	str("PROCTOR_VOICE_FEED_URL", &cfg.Voice.FeedURL)

	if len(errs) > 0 {
		return fmt.Errorf("config: environment: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks cfg and returns every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	} else if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("server.port %q is not a valid port", c.Server.Port))
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", c.Server.LogLevel))
	}

	for name, path := range map[string]string{"yunet": c.Models.YuNet, "face_mesh": c.Models.FaceMesh, "cascade": c.Models.Cascade} {
		if path == "" {
			errs = append(errs, fmt.Errorf("models.%s is required", name))
		}
	}

	d := c.Detection
	if d.ConfidenceThreshold <= 0 || d.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("detection.confidence_threshold %.2f is out of range (0, 1]", d.ConfidenceThreshold))
	}
	if d.FallbackConfidence <= 0 || d.FallbackConfidence > 1 {
		errs = append(errs, fmt.Errorf("detection.fallback_confidence %.2f is out of range (0, 1]", d.FallbackConfidence))
	}
	if d.FrameBudget <= 0 {
		errs = append(errs, fmt.Errorf("detection.frame_budget %s must be positive", d.FrameBudget))
	}
	if d.MaxFaces < 1 {
		errs = append(errs, fmt.Errorf("detection.max_faces %d must be at least 1", d.MaxFaces))
	}

	if c.Presence.FlipUp < 1 || c.Presence.FlipDown < 1 {
		errs = append(errs, fmt.Errorf("presence flip_up/flip_down (%d/%d) must be at least 1", c.Presence.FlipUp, c.Presence.FlipDown))
	}

	s := c.ScreenSwitch
	if s.AbsenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("screen_switch.absence_timeout %s must be positive", s.AbsenceTimeout))
	}
	if s.MovementFraction <= 0 || s.MovementFraction >= 1 {
		errs = append(errs, fmt.Errorf("screen_switch.movement_fraction %.3f is out of range (0, 1)", s.MovementFraction))
	}
	if s.HeadAwayFrames < 1 || s.EyesAwayFrames < 1 {
		errs = append(errs, fmt.Errorf("screen_switch head/eyes away frames (%d/%d) must be at least 1", s.HeadAwayFrames, s.EyesAwayFrames))
	}
	if s.PoseHold <= 0 {
		errs = append(errs, fmt.Errorf("screen_switch.pose_hold %s must be positive", s.PoseHold))
	}

	if c.Voice.FeedURL != "" {
		u, err := url.Parse(c.Voice.FeedURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Errorf("voice.feed_url %q must be a ws:// or wss:// URL", c.Voice.FeedURL))
		}
	}

	return errors.Join(errs...)
}

// DetectorConfig returns the detector adapter settings.
func (c *Config) DetectorConfig() detection.Config {
	return detection.Config{
		YuNetPath:          c.Models.YuNet,
		MeshPath:           c.Models.FaceMesh,
		CascadePath:        c.Models.Cascade,
		ConfidenceThresh:   c.Detection.ConfidenceThreshold,
		InputWidth:         detection.DefaultConfig().InputWidth,
		InputHeight:        detection.DefaultConfig().InputHeight,
		FallbackConfidence: c.Detection.FallbackConfidence,
		FrameBudget:        c.Detection.FrameBudget,
		MaxFaces:           c.Detection.MaxFaces,
	}
}

// PipelineConfig returns the per-session thresholds.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Presence:     c.Presence,
		ScreenSwitch: c.ScreenSwitch,
	}
}
