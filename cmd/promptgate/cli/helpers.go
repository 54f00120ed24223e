package cli

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/promptgate/promptgate/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// PROMPTGATE_DATA_DIR env var, or ~/.promptgate as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("PROMPTGATE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".promptgate")
}

// openStore opens the backing store using the configured driver. SQLite wants
// a data directory; Postgres and MySQL want a DSN.
func openStore() (*store.Store, error) {
	driver := viper.GetString("database.driver")
	dsn := viper.GetString("database.dsn")
	dir := viper.GetString("database.data_dir")
	if dir == "" {
		dir = resolveDataDir()
	}
	return store.Open(store.Options{
		Driver:  driver,
		DSN:     dsn,
		DataDir: dir,
	})
}

// newLogger builds a slog.Logger from the logging configuration.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(viper.GetString("logging.level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(viper.GetString("logging.format")) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// jwtSecret returns the configured session secret, with a loud dev fallback.
func jwtSecret(logger *slog.Logger) string {
	secret := viper.GetString("auth.jwt_secret")
	if secret == "" {
		secret = "promptgate-dev-secret-change-me"
		logger.Warn("auth.jwt_secret not set, using development default")
	}
	return secret
}

// --- PID file management ---

func pidFilePath() string {
	return filepath.Join(resolveDataDir(), "promptgate.pid")
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
	return filepath.Join(resolveDataDir(), "promptgate.log")
}
