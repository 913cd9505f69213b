// Package config loads service settings from defaults, an optional config
// file and TLEPOS_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/star/tlepos/internal/auth"
	"github.com/star/tlepos/internal/logging"
	"github.com/star/tlepos/internal/observability"
	"github.com/star/tlepos/internal/propagation"
	"github.com/star/tlepos/internal/transform"
)

// EnvPrefix prefixes every environment override, e.g. TLEPOS_HTTP_ADDR.
const EnvPrefix = "TLEPOS"

const arcsecToRad = math.Pi / (180 * 3600)

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Addr       string
	TrustProxy bool // honor Forwarded / X-Forwarded-For for client IPs
}

// Config is the resolved service configuration.
type Config struct {
	HTTP        HTTPConfig
	CatalogPath string
	Auth        auth.Config
	Log         logging.Config
	Propagation propagation.PropConfig
	Frames      transform.Frames
	Tracing     observability.TracingConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("catalog.path", "tle.json")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("propagation.gravity", "wgs72")
	v.SetDefault("propagation.workers", runtime.NumCPU())
	v.SetDefault("frames.convention", "iers2010")
	v.SetDefault("frames.xp_arcsec", 0.0)
	v.SetDefault("frames.yp_arcsec", 0.0)
	v.SetDefault("frames.dut1_seconds", 0.0)
	v.SetDefault("frames.lod_seconds", 0.0)
	v.SetDefault("frames.leap_seconds_path", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "tlepos")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Load resolves the configuration. path names an optional YAML, JSON or
// TOML file; when empty, TLEPOS_CONFIG is consulted. Invalid numeric or
// enum values are logged and replaced by their defaults. Invalid auth
// settings and unreadable files are errors.
func Load(path string, logger *slog.Logger) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		logger.Info("config file loaded", "path", v.ConfigFileUsed())
	}

	l := loader{v: v, logger: logger}
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:       v.GetString("http.addr"),
			TrustProxy: l.boolOr("http.trust_proxy", false),
		},
		CatalogPath: v.GetString("catalog.path"),
		Log: logging.Config{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if !logging.ValidLevel(cfg.Log.Level) {
		logger.Warn("invalid log.level value, using default", "value", cfg.Log.Level, "default", "info")
		cfg.Log.Level = "info"
	}

	var err error
	if cfg.Auth, err = loadAuth(v, logger); err != nil {
		return Config{}, err
	}

	cfg.Propagation = propagation.DefaultPropConfig()
	if g, err := propagation.ParseGravityModel(v.GetString("propagation.gravity")); err != nil {
		logger.Warn("invalid propagation.gravity value, using default", "value", v.GetString("propagation.gravity"), "default", cfg.Propagation.Gravity.String())
	} else {
		cfg.Propagation.Gravity = g
	}
	cfg.Propagation.Workers = l.positiveInt("propagation.workers", cfg.Propagation.Workers)

	if cfg.Frames, err = l.frames(); err != nil {
		return Config{}, err
	}

	cfg.Tracing = observability.TracingConfig{
		Enabled:     l.boolOr("tracing.enabled", false),
		ServiceName: v.GetString("tracing.service_name"),
		SampleRatio: l.ratio("tracing.sample_ratio", 1),
	}

	logger.Info("config loaded",
		"http_addr", cfg.HTTP.Addr,
		"catalog_path", cfg.CatalogPath,
		"auth_enabled", cfg.Auth.Enabled,
		"gravity", cfg.Propagation.Gravity.String(),
		"workers", cfg.Propagation.Workers,
		"convention", cfg.Frames.Convention.String(),
		"tracing_enabled", cfg.Tracing.Enabled,
	)
	return cfg, nil
}

func loadAuth(v *viper.Viper, logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if s := v.GetString("auth.enabled"); s != "" {
		enabled, err := strconv.ParseBool(s)
		if err != nil {
			return cfg, errors.New("auth.enabled must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = v.GetString("auth.token")
		if cfg.Token == "" {
			return cfg, errors.New("auth.token is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}
	return cfg, nil
}

type loader struct {
	v      *viper.Viper
	logger *slog.Logger
}

func (l loader) boolOr(key string, def bool) bool {
	s := l.v.GetString(key)
	b, err := strconv.ParseBool(s)
	if err != nil {
		l.logger.Warn("invalid "+key+" value, using default", "value", s, "default", def)
		return def
	}
	return b
}

func (l loader) positiveInt(key string, def int) int {
	s := l.v.GetString(key)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		l.logger.Warn("invalid "+key+" value, using default", "value", s, "default", def)
		return def
	}
	return n
}

func (l loader) float(key string, def float64) float64 {
	s := l.v.GetString(key)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		l.logger.Warn("invalid "+key+" value, using default", "value", s, "default", def)
		return def
	}
	return f
}

func (l loader) ratio(key string, def float64) float64 {
	f := l.float(key, def)
	if f < 0 || f > 1 {
		l.logger.Warn("invalid "+key+" value, using default", "value", f, "default", def)
		return def
	}
	return f
}

func (l loader) frames() (transform.Frames, error) {
	f := transform.DefaultFrames()

	if c, err := transform.ParseConvention(l.v.GetString("frames.convention")); err != nil {
		l.logger.Warn("invalid frames.convention value, using default", "value", l.v.GetString("frames.convention"), "default", f.Convention.String())
	} else {
		f.Convention = c
	}

	f.EOP = transform.EOP{
		XP:   l.float("frames.xp_arcsec", 0) * arcsecToRad,
		YP:   l.float("frames.yp_arcsec", 0) * arcsecToRad,
		DUT1: l.float("frames.dut1_seconds", 0),
		LOD:  l.float("frames.lod_seconds", 0),
	}
	if math.Abs(f.EOP.DUT1) > 0.9 {
		l.logger.Warn("frames.dut1_seconds outside ±0.9 s, using default", "value", f.EOP.DUT1, "default", 0)
		f.EOP.DUT1 = 0
	}

	if path := l.v.GetString("frames.leap_seconds_path"); path != "" {
		file, err := os.Open(path)
		if err != nil {
			return f, fmt.Errorf("opening leap seconds: %w", err)
		}
		defer file.Close()
		leap, err := transform.LoadLeapSeconds(file)
		if err != nil {
			return f, fmt.Errorf("loading leap seconds %s: %w", path, err)
		}
		f.Leap = leap
		l.logger.Info("leap seconds loaded", "path", path, "entries", leap.Len())
	}
	return f, nil
}
