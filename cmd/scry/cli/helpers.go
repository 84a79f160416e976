package cli

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey/firestore"
	"github.com/epinnock/scry-storybook-upload-service-sub001/internal/apikey/sqlstore"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// SCRY_DATA_DIR env var, or ~/.scry as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("SCRY_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.scry"
}

// newStoreRegistry builds the credential backend registry with every linked
// backend registered. The exchanges counter feeds the document backend's
// token-exchange metric; CLI commands pass nil.
func newStoreRegistry(exchanges otelmetric.Int64Counter) *apikey.Registry {
	registry := apikey.NewRegistry()
	registry.RegisterBackend("sqlite", sqlstore.Open)
	registry.RegisterBackend("postgres", sqlstore.Open)
	registry.RegisterBackend("mysql", sqlstore.Open)
	registry.RegisterBackend("firestore", func(cfg apikey.Config) (apikey.Store, error) {
		return firestore.Open(cfg, exchanges)
	})
	return registry
}

// storeConfig assembles the backend configuration from viper. For the
// default sqlite backend an unset DSN lands in the data directory.
func storeConfig() apikey.Config {
	cfg := apikey.Config{
		Backend:         viper.GetString("store.backend"),
		DSN:             viper.GetString("store.dsn"),
		CredentialsFile: viper.GetString("store.credentials_file"),
		TokenURL:        viper.GetString("store.token_url"),
		DocumentsURL:    viper.GetString("store.documents_url"),
		HTTPTimeout:     viper.GetDuration("store.http_timeout"),
	}
	if cfg.Backend == "" {
		cfg.Backend = "sqlite"
	}
	if cfg.Backend == "sqlite" && cfg.DSN == "" {
		cfg.DSN = filepath.Join(resolveDataDir(), "scry.db")
	}
	return cfg
}

// openKeyStore opens the configured credential store for a CLI command.
// The caller closes it.
func openKeyStore() (apikey.Store, error) {
	if err := os.MkdirAll(resolveDataDir(), 0755); err != nil {
		return nil, err
	}
	return newStoreRegistry(nil).Open(storeConfig())
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "scry.pid")
}

func writePID(pid int) error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(pid)), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

func logFilePath() string {
	return filepath.Join(resolveDataDir(), "scry.log")
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
