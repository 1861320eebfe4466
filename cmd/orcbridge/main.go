package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/orcbridge/pkg/adapter"
	"github.com/ajitpratap0/orcbridge/pkg/config"
	"github.com/ajitpratap0/orcbridge/pkg/logger"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string
	var batchSize int
	var logLevel, metricsAddr string

	root := &cobra.Command{
		Use:   "orcbridge",
		Short: "orcbridge - ORC to Arrow conversion bridge",
		Long: `orcbridge reads ORC files stripe by stripe and materializes them as
Arrow record batches, preserving row order and null positions.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, batchSize, logLevel, metricsAddr)
			if err != nil {
				return err
			}
			if err := logger.Init(logger.Config{
				Level:       cfg.Log.Level,
				Development: cfg.Log.Development,
				Encoding:    cfg.Log.Encoding,
			}); err != nil {
				return err
			}
			if cfg.MetricsAddr != "" {
				serveMetrics(cfg.MetricsAddr)
			}
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML configuration file (optional)")
	root.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "Rows per materialized record (overrides config)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("orcbridge v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "schema <file>",
		Short: "Print the translated Arrow schema of an ORC file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSchema(args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert an ORC file to an Arrow IPC file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(cmd, args[0], args[1])
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers command line flags over the file and environment.
func loadConfig(path string, batchSize int, logLevel, metricsAddr string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	return cfg, cfg.Validate()
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Get().Error("metrics server stopped", zap.Error(err))
		}
	}()
}

type colField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

func printSchema(path string) error {
	r, err := adapter.Open(path, memory.NewGoAllocator())
	if err != nil {
		return err
	}
	defer r.Close()

	fields := make([]colField, len(r.Schema().Fields()))
	for i, f := range r.Schema().Fields() {
		fields[i] = colField{Name: f.Name, Type: f.Type.String(), Nullable: f.Nullable}
	}
	out := struct {
		Source string     `json:"source"`
		Arrow  []colField `json:"arrow"`
	}{
		Source: r.SourceSchema().String(),
		Arrow:  fields,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func convert(cmd *cobra.Command, in, out string) error {
	cfg := configFrom(cmd.Context())
	mem := memory.NewGoAllocator()
	log := logger.Get().With(zap.String("component", "orcbridge-cli"))

	r, err := adapter.Open(in, mem, adapter.WithLogger(log))
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(r.Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return err
	}

	var rows int64
	for {
		sr, err := r.NextStripeReader(cfg.BatchSize)
		if err != nil {
			return err
		}
		if sr == nil {
			break
		}
		for {
			rec, err := sr.Next()
			if err != nil {
				return err
			}
			if rec == nil {
				break
			}
			writeErr := w.Write(rec)
			rows += rec.NumRows()
			rec.Release()
			if writeErr != nil {
				return writeErr
			}
		}
	}

	if err := w.Close(); err != nil {
		return err
	}
	log.Info("conversion finished",
		zap.String("in", in),
		zap.String("out", out),
		zap.Int64("rows", rows))
	return nil
}

// Config travels on the command context between PersistentPreRunE and the
// subcommand bodies.

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}
