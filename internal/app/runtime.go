package app

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"demandline/internal/config"
	"demandline/internal/logging"
	"demandline/internal/metrics"
	"demandline/internal/session"
)

// Overrides are flag or environment values that win over demandline.yml.
type Overrides struct {
	LogLevel  string
	LogFormat string
	Driver    string
	Timezone  string
}

// Runtime is everything a command needs to open sessions.
type Runtime struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Recorder
	Settings session.Settings
}

// ResolveConfig reads configFile when set, otherwise the workspace
// demandline.yml, falling back to the built-in roster, then applies overrides.
func ResolveConfig(workspace, configFile string, o Overrides) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.FromFile(configFile)
	} else {
		cfg, err = config.LoadOptional(workspace)
	}
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	if o.Driver != "" {
		cfg.Store.Driver = o.Driver
	}
	if o.Timezone != "" {
		cfg.Timezone = o.Timezone
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewRuntime builds the logger, metrics and session settings for cfg.
func NewRuntime(cfg *config.Config, logOut io.Writer) (*Runtime, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	settings, err := session.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  rec,
		Settings: settings,
	}, nil
}

// SessionOptions wires the runtime's logger and metrics into sessions.
func (r *Runtime) SessionOptions() []session.Option {
	return []session.Option{
		session.WithLogger(logging.Component(r.Logger, "engine")),
		session.WithMetrics(r.Metrics),
	}
}
