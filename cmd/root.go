package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/facemesh/internal/config"
	"github.com/andresmejia3/facemesh/internal/logger"
	"github.com/andresmejia3/facemesh/internal/mesh"
	"github.com/andresmejia3/facemesh/internal/monitor"
	"github.com/andresmejia3/facemesh/internal/utils"
	"github.com/andresmejia3/facemesh/internal/worker"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Config is the merged configuration (defaults, YAML, env, flags)
	Config config.Config
	// Catalog is the region catalog every frame is rendered with
	Catalog *mesh.Catalog
	// Metrics is shared by the frame loops
	Metrics *monitor.Metrics
	// RunID tags every log line of this invocation
	RunID string

	cfgFile     string
	regionsFile string
	logLevel    string
	devLog      bool
	metricsPort int
	workerTO    string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "facemesh",
	Short:   "Real-time facial landmark overlay",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env file is optional; real environment variables win.
		_ = godotenv.Load()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		Config = cfg

		if err := logger.Init(Config.Log.Level, Config.Log.Development); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		RunID = uuid.NewString()
		logger.Log().Info("starting",
			zap.String("run", RunID),
			zap.String("command", cmd.Name()),
			zap.String("version", Version),
		)

		// A broken catalog is a startup error, never a per-frame one.
		Catalog, err = loadCatalog(Config.Regions, Config.Detector.Refine)
		if err != nil {
			utils.Die("Invalid region catalog", err, nil)
		}

		Metrics = monitor.New()
		go Metrics.Serve(cmd.Context(), Config.MetricsPort)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// loadConfig layers the YAML file, FACEMESH_* variables and explicit flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("FACEMESH_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	if v := os.Getenv("FACEMESH_PYTHON"); v != "" {
		cfg.Detector.Python = v
	}
	if v := os.Getenv("FACEMESH_WORKER_SCRIPT"); v != "" {
		cfg.Detector.Script = v
	}

	flags := cmd.Flags()
	if flags.Changed("regions") {
		cfg.Regions = regionsFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("dev-log") {
		cfg.Log.Development = devLog
	}
	if flags.Changed("metrics-port") {
		cfg.MetricsPort = metricsPort
	}
	if flags.Changed("worker-timeout") {
		cfg.Detector.Timeout = workerTO
	}
	return cfg, cfg.Validate()
}

// loadCatalog reads a catalog file, or falls back to the built-in regions
// sized for the detector's landmark set. A file needing more landmarks than
// the detector emits is rejected here rather than on the first frame.
func loadCatalog(path string, refine bool) (*mesh.Catalog, error) {
	if path == "" {
		return mesh.DefaultCatalog(refine)
	}
	cat, err := mesh.LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	emitted := mesh.BaseLandmarks
	if refine {
		emitted = mesh.RefinedLandmarks
	}
	if cat.LandmarkCount() > emitted {
		return nil, fmt.Errorf("%w: %s needs %d landmarks but the detector emits %d (detector.refine=%t)",
			mesh.ErrConfiguration, path, cat.LandmarkCount(), emitted, refine)
	}
	return cat, nil
}

// workerConfig maps the detector section onto the worker's process flags.
func workerConfig(cfg config.Config) worker.Config {
	d := cfg.Detector
	return worker.Config{
		Python:       d.Python,
		Script:       d.Script,
		MaxFaces:     d.MaxFaces,
		Refine:       d.Refine,
		MinDetection: d.MinDetection,
		MinTracking:  d.MinTracking,
		ReadTimeout:  cfg.WorkerTimeout(),
	}
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to YAML config (default: facemesh.yaml if present, or $FACEMESH_CONFIG)")
	pf.StringVar(&regionsFile, "regions", "", "Path to a YAML region catalog (default: built-in regions)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.BoolVar(&devLog, "dev-log", false, "Human-readable development logging")
	pf.IntVar(&metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")
	pf.StringVar(&workerTO, "worker-timeout", "30s", "Timeout for a worker to process a single frame")
}
