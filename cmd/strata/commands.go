package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/internal/pipeline"
	"github.com/ajitpratap0/strata/pkg/clients"
	"github.com/ajitpratap0/strata/pkg/columnar"
	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/errors"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/observability"
	"github.com/ajitpratap0/strata/pkg/query"
)

func newTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the column types",
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tWIDTH\tARROW")
			for _, t := range columnar.Types() {
				width := fmt.Sprint(t.Width(0))
				if t.VariableWidth() {
					width = t.String() + ":N"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t, width, columnar.ArrowType(t))
			}
			_ = tw.Flush()
		},
	}
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a job configuration without connecting",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := bindFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadJob(v)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d columns, %s output\n",
				cfg.Query.Namespace(), len(cfg.Columns), cfg.Output.Format)
			return nil
		},
	}
}

func newLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a query into column buffers and export them",
		Long: `Load runs the configured find or aggregation, decodes every document into
typed column buffers and writes the columns to the output file.

Example:
  strata load --config orders.yaml --output orders.parquet --block-size 100000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := bindFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadJob(v)
			if err != nil {
				return err
			}
			return runLoad(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file path, - for stdout")
	cmd.Flags().String("format", "", "Output format (parquet, arrow, jsonl)")
	cmd.Flags().String("compression", "", "Output compression (none, snappy, gzip, zstd, lz4, s2, deflate)")
	cmd.Flags().Int("rows", 0, "Buffer capacity in rows, 0 sizes from a count")
	cmd.Flags().Int("block-size", 0, "Load in blocks of this many rows")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics in text format to this file")
	cmd.Flags().Bool("trace", false, "Export trace spans to stderr")
	return cmd
}

func newCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Count the documents a load would read",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := bindFlags(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadJob(v)
			if err != nil {
				return err
			}
			if len(cfg.Query.Pipeline) > 0 {
				return errors.New(errors.ErrorTypeConfig, "count is not supported for aggregation pipelines")
			}
			filter, err := cfg.Query.FilterDocument()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			client, err := clients.Connect(ctx, cfg.Connection)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background()) //nolint:errcheck

			n, err := query.Count(ctx, client.Collection(cfg.Query.Database, cfg.Query.Collection),
				filter, cfg.Query.Skip, cfg.Query.Limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runLoad(parent context.Context, cfg *config.JobConfig, stdout, stderr io.Writer) error {
	obs := cfg.Observability
	if err := logger.Init(logger.Config{
		Level:    obs.LogLevel,
		Encoding: obs.LogEncoding,
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	defer logger.Sync() //nolint:errcheck

	tracingCfg := observability.DefaultTracingConfig()
	tracingCfg.Enabled = obs.EnableTracing
	tracingCfg.ServiceVersion = version
	tracingCfg.SamplingRate = obs.SamplingRate
	tracingCfg.Output = stderr
	shutdown, err := observability.InitTracing(tracingCfg)
	if err != nil {
		return err
	}
	defer shutdown(context.Background()) //nolint:errcheck

	log := logger.With(zap.String("component", "strata-cli"), zap.String(string(logger.JobKey), cfg.Query.Namespace()))

	ctx, cancel := signalContext(parent)
	defer cancel()

	client, err := clients.Connect(ctx, cfg.Connection)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background()) //nolint:errcheck

	p, err := pipeline.New(cfg, client.Collection(cfg.Query.Database, cfg.Query.Collection), log)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cfg.Output.Path, stdout)
	if err != nil {
		return err
	}
	result, runErr := p.Run(ctx, out)
	if err := closeOut(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, errors.ErrorTypeFile, "failed to close output")
	}

	if obs.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(obs.MetricsFile, prometheus.DefaultGatherer); err != nil {
			log.Warn("failed to write metrics file", zap.String("path", obs.MetricsFile), zap.Error(err))
		}
	}

	if result != nil {
		// The summary goes to stderr when the export itself is on stdout.
		summaryOut := stdout
		if cfg.Output.Path == "" || cfg.Output.Path == "-" {
			summaryOut = stderr
		}
		summary, err := json.MarshalIndent(result, "", "  ")
		if err == nil {
			fmt.Fprintln(summaryOut, string(summary))
		}
	}
	return runErr
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	return f, f.Close, nil
}
