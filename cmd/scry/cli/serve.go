package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/server"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/service"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/storage"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/telemetry"
)

const banner = `
 ___  ___ _ __ _   _
/ __|/ __|  __| | | |
\__ \ (__| |  | |_| |
|___/\___|_|   \__, |
               |___/
`

func newServeCmd() *cobra.Command {
	var (
		port       int
		host       string
		background bool
		dev        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Scry server",
		Long:  "Start the HTTP server that accepts storybook uploads and serves the stored builds.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(background, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&background, "background", false, "Run detached, logging to the data directory")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging, CORS *)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(background, dev bool) error {
	if background {
		return spawnBackground()
	}

	fmt.Print(banner)
	fmt.Println()

	logger := newLogger(dev)
	slog.SetDefault(logger)

	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// 1. Telemetry first: the credential backend wants its exchange counter.
	tel, err := telemetry.New("scry")
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	metrics, err := telemetry.NewMetrics(tel.Meter())
	if err != nil {
		return fmt.Errorf("create metric instruments: %w", err)
	}

	// 2. Credential store.
	storeCfg := storeConfig()
	keys, err := newStoreRegistry(metrics.TokenExchanges).Open(storeCfg)
	if err != nil {
		return err
	}
	logger.Info("credential store ready", "backend", storeCfg.Backend)

	// 3. Object storage for the uploaded bundles.
	objects, err := openObjectStore(dir, logger)
	if err != nil {
		return err
	}

	// 4. Admin identity. Without a secret the management API answers 503.
	var adminAuth *service.AdminAuth
	if secret := viper.GetString("auth.jwt_secret"); secret != "" {
		adminAuth = service.NewAdminAuth(secret)
	} else {
		logger.Warn("no admin secret configured - key management API disabled (set SCRY_AUTH_JWT_SECRET)")
	}

	// 5. Build and start the HTTP server. It owns the key store from here.
	cfg := serverConfig(dev)
	srv, err := server.New(cfg, keys, objects, adminAuth, tel, logger)
	if err != nil {
		keys.Close()
		return err
	}

	fmt.Printf("→ Scry %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Host, cfg.Port)
	fmt.Printf("→ OpenAPI:  http://%s:%d/openapi.json\n", cfg.Host, cfg.Port)
	fmt.Printf("→ Health:   http://%s:%d/healthz\n", cfg.Host, cfg.Port)
	fmt.Printf("→ Metrics:  http://%s:%d/metrics\n", cfg.Host, cfg.Port)
	fmt.Printf("→ Viewer:   http://%s:%d/storybooks/{project}/{build}/\n", cfg.Host, cfg.Port)
	fmt.Println()

	if err := writePID(os.Getpid()); err != nil {
		logger.Warn("write pid file", "error", err)
	}
	defer removePID()

	return srv.ListenAndServe()
}

// newLogger builds the process logger from log.level and log.format.
func newLogger(dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch viper.GetString("log.level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if viper.GetString("log.format") == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openObjectStore builds the configured bundle storage backend. Local disk
// under the data directory is the default.
func openObjectStore(dataDir string, logger *slog.Logger) (storage.ObjectStore, error) {
	cfg := storage.Config{
		Backend:  viper.GetString("storage.backend"),
		LocalDir: viper.GetString("storage.local.root"),
		S3: storage.S3Config{
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          viper.GetString("storage.s3.bucket"),
			Prefix:          viper.GetString("storage.s3.prefix"),
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			AccessKeyID:     viper.GetString("storage.s3.access_key_id"),
			SecretAccessKey: viper.GetString("storage.s3.secret_access_key"),
			UsePathStyle:    viper.GetBool("storage.s3.use_path_style"),
		},
	}
	if cfg.LocalDir == "" {
		cfg.LocalDir = filepath.Join(dataDir, "objects")
	}

	store, err := storage.Open(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	if cfg.Backend == "s3" {
		logger.Info("object storage ready", "backend", "s3", "bucket", cfg.S3.Bucket)
	} else {
		logger.Info("object storage ready", "backend", "local", "root", cfg.LocalDir)
	}
	return store, nil
}

// serverConfig assembles the server configuration from viper over the
// built-in defaults.
func serverConfig(dev bool) server.Config {
	cfg := server.DefaultConfig()
	cfg.Host = viper.GetString("server.host")
	cfg.Port = viper.GetInt("server.port")
	if d := viper.GetDuration("server.read_timeout"); d > 0 {
		cfg.ReadTimeout = d
	}
	if d := viper.GetDuration("server.write_timeout"); d > 0 {
		cfg.WriteTimeout = d
	}
	if d := viper.GetDuration("server.idle_timeout"); d > 0 {
		cfg.IdleTimeout = d
	}
	if d := viper.GetDuration("server.shutdown_timeout"); d > 0 {
		cfg.ShutdownTimeout = d
	}
	if origins := viper.GetStringSlice("server.cors.allowed_origins"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	if dev {
		cfg.CORSOrigins = []string{"*"}
	}
	if n := viper.GetInt64("server.max_upload_bytes"); n > 0 {
		cfg.MaxUploadBytes = n
	}
	cfg.RateLimitPerMin = viper.GetInt("rate_limit.per_minute")
	cfg.UploadRatePerMin = viper.GetInt("rate_limit.upload_per_minute")
	cfg.PublicDownloads = viper.GetBool("storage.public_downloads")
	cfg.BaseURL = viper.GetString("server.base_url")
	cfg.Version = versionString()
	return cfg
}

// spawnBackground relaunches the current command detached from the
// terminal, with output appended to the log file in the data directory.
func spawnBackground() error {
	if pid, err := readPID(); err == nil && isProcessRunning(pid) {
		return fmt.Errorf("server already running (PID %d); run 'scry stop' first", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if err := os.MkdirAll(resolveDataDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	// Re-run the same invocation minus the --background flag.
	args := make([]string, 0, len(os.Args)-1)
	for _, a := range os.Args[1:] {
		if a == "--background" || a == "--background=true" {
			continue
		}
		args = append(args, a)
	}

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setSysProcAttr(child)

	if err := child.Start(); err != nil {
		return fmt.Errorf("start background server: %w", err)
	}
	if err := writePID(child.Process.Pid); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not write PID file: %v\n", err)
	}

	fmt.Printf("Scry server started in the background (PID %d)\n", child.Process.Pid)
	fmt.Printf("  Logs: %s\n", logFilePath())
	fmt.Println("  Stop with 'scry stop'.")
	return nil
}
