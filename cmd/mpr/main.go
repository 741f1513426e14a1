package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rowpack/mpr/pkg/config"
	"github.com/rowpack/mpr/pkg/load"
	"github.com/rowpack/mpr/pkg/logger"
	"github.com/rowpack/mpr/pkg/mpr"
	"github.com/rowpack/mpr/pkg/source"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "mpr",
		Short: "mpr - tabular data packer",
		Long: `mpr packs messy tabular files into Message Pack Rows containers.
A load detects header and data rows, resolves column types, computes
per-column statistics, and writes rows plus derived metadata into a single
compressed, seekable file.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mpr v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newLoadCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newCatCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLoadCmd() *cobra.Command {
	var (
		configFile string
		delimiter  string
		algorithm  string
		level      string
		logLevel   string
		multiPass  bool
		workers    int
		stride     int64
	)

	cmd := &cobra.Command{
		Use:   "load <input> <output.mpr>",
		Short: "Load a delimited file into a container",
		Long: `Load reads a delimited text file, intuits its layout and column types,
and writes a container with rows, schema and statistics.

Example:
  mpr load people.csv people.mpr --compression lz4`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("delimiter") {
				cfg.Source.Delimiter = delimiter
			}
			if cmd.Flags().Changed("compression") {
				cfg.Compression.Algorithm = algorithm
			}
			if cmd.Flags().Changed("level") {
				cfg.Compression.Level = level
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if multiPass {
				cfg.Intuition.MultiPass = true
			}
			if cmd.Flags().Changed("stats-workers") {
				cfg.Stats.Workers = workers
			}
			if cmd.Flags().Changed("sample-stride") {
				cfg.Stats.SampleStride = stride
			}
			return runLoad(cmd.Context(), cfg, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	cmd.Flags().StringVarP(&delimiter, "delimiter", "d", ",", "Field delimiter")
	cmd.Flags().StringVar(&algorithm, "compression", "zstd", "Row block compression (none, gzip, snappy, lz4, zstd, s2, deflate)")
	cmd.Flags().StringVar(&level, "level", "default", "Compression level (fastest, default, better, best)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&multiPass, "multi-pass", false, "Re-read the source per stage instead of fusing into one pass")
	cmd.Flags().IntVar(&workers, "stats-workers", 1, "Column-parallel statistics workers")
	cmd.Flags().Int64Var(&stride, "sample-stride", 0, "Compute statistics from every Nth data row (0 = every row)")

	return cmd
}

func runLoad(ctx context.Context, cfg *config.Config, input, output string) error {
	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Encoding: cfg.Logging.Encoding}); err != nil {
		return err
	}
	defer logger.Sync()

	ccfg, err := cfg.CompressorConfig()
	if err != nil {
		return err
	}

	src := source.NewCSVSource(input)
	if cfg.Source.Delimiter != "" {
		src.Comma = rune(cfg.Source.Delimiter[0])
	}
	src.LazyQuotes = cfg.Source.LazyQuotes

	mode := load.ModeFused
	if cfg.Intuition.MultiPass {
		mode = load.ModeMultiPass
	}
	res, err := load.Run(ctx, src, output, load.Options{
		Mode:           mode,
		SampleRows:     cfg.Intuition.SampleRows,
		TypeSampleRows: cfg.Intuition.TypeSampleRows,
		SampleStride:   cfg.Stats.SampleStride,
		StatsWorkers:   cfg.Stats.Workers,
		Compression:    ccfg,
	})
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s: %d rows, %d columns in %s\n",
		res.Path, res.RowCount, res.Meta.Width(), res.Elapsed.Round(time.Millisecond))
	return nil
}

func resolveConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewDefault(), nil
	}
	return config.Load(path)
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file.mpr>",
		Short: "Print container metadata as JSON",
		Long: `Info reads only the trailer and metadata block; the row block is never
decoded, so this is fast regardless of row count.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := mpr.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			meta, err := r.Metadata()
			if err != nil {
				return err
			}

			out := map[string]interface{}{
				"trailer":  r.Trailer(),
				"metadata": meta,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newCatCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "cat <file.mpr>",
		Short: "Print rows as JSON lines",
		Long: `Cat decodes the row block lazily; with --limit only the needed prefix is
ever decompressed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := mpr.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			it, err := r.Rows()
			if err != nil {
				return err
			}
			defer it.Close()

			enc := json.NewEncoder(os.Stdout)
			n := 0
			for limit <= 0 || n < limit {
				row, err := it.Next()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}
				if err := enc.Encode(row); err != nil {
					return err
				}
				n++
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after N rows (0 = all)")

	return cmd
}
