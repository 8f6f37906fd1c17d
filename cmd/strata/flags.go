package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/errors"
)

// bindFlags layers STRATA_* environment variables over the command's flags.
func bindFlags(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("STRATA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flags")
	}
	return v, nil
}

// loadJob reads the job file named by --config and applies explicit flag
// and environment overrides before defaults and validation.
func loadJob(v *viper.Viper) (*config.JobConfig, error) {
	path := v.GetString("config")
	if path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "a job configuration file is required (--config or STRATA_CONFIG)")
	}

	cfg := &config.JobConfig{}
	if err := config.Load(path, cfg); err != nil {
		return nil, err
	}
	applyOverrides(v, cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(v *viper.Viper, cfg *config.JobConfig) {
	if v.IsSet("uri") {
		cfg.Connection.URI = v.GetString("uri")
	}
	if v.IsSet("log-level") {
		cfg.Observability.LogLevel = v.GetString("log-level")
	}
	if v.IsSet("output") {
		cfg.Output.Path = v.GetString("output")
		if !v.IsSet("format") {
			// Re-derived from the new path.
			cfg.Output.Format = ""
		}
	}
	if v.IsSet("format") {
		cfg.Output.Format = v.GetString("format")
	}
	if v.IsSet("compression") {
		cfg.Output.Compression = v.GetString("compression")
	}
	if v.IsSet("rows") {
		cfg.Query.Rows = v.GetInt("rows")
	}
	if v.IsSet("block-size") {
		cfg.Query.BlockSize = v.GetInt("block-size")
	}
	if v.IsSet("metrics-file") {
		cfg.Observability.MetricsFile = v.GetString("metrics-file")
		cfg.Observability.EnableMetrics = true
	}
	if v.IsSet("trace") {
		cfg.Observability.EnableTracing = v.GetBool("trace")
	}
}
