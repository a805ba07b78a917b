package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendGoogle = "google"
	BackendSQLite = "sqlite"
)

type Config struct {
	HTTPPort int
	AppDir   string
	LogLevel string

	AuthSecret       string
	SessionTimeout   time.Duration
	ReapInterval     time.Duration
	SessionRetention time.Duration

	Backend            string
	SpreadsheetName    string
	SpreadsheetID      string
	ClientSecretFile   string
	TokenFile          string
	ServiceAccountFile string
	DBPath             string

	SMTP SMTPConfig
}

type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	From     string
	To       []string
}

// Enabled reports whether registration receipts should be mailed.
func (c SMTPConfig) Enabled() bool {
	return c.Addr != "" && len(c.To) > 0
}

// Load reads .env (if present), the environment and any flags bound by
// the caller. Flags win over the environment.
func Load(flags *pflag.FlagSet) Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	if flags != nil {
		bindFlag(v, "http_port", flags.Lookup("port"))
		bindFlag(v, "store_backend", flags.Lookup("backend"))
		bindFlag(v, "app_dir", flags.Lookup("app-dir"))
	}

	appDir := strings.TrimSpace(v.GetString("app_dir"))
	if appDir == "" {
		appDir = executableDir()
	}

	return Config{
		HTTPPort:           v.GetInt("http_port"),
		AppDir:             appDir,
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		AuthSecret:         strings.TrimSpace(v.GetString("auth_secret")),
		SessionTimeout:     v.GetDuration("session_timeout"),
		ReapInterval:       v.GetDuration("session_reap_interval"),
		SessionRetention:   v.GetDuration("session_retention"),
		Backend:            strings.ToLower(strings.TrimSpace(v.GetString("store_backend"))),
		SpreadsheetName:    strings.TrimSpace(v.GetString("spreadsheet_name")),
		SpreadsheetID:      strings.TrimSpace(v.GetString("spreadsheet_id")),
		ClientSecretFile:   resolve(appDir, v.GetString("client_secret_file")),
		TokenFile:          resolve(appDir, v.GetString("token_file")),
		ServiceAccountFile: resolve(appDir, v.GetString("service_account_file")),
		DBPath:             resolve(appDir, v.GetString("db_path")),
		SMTP: SMTPConfig{
			Addr:     strings.TrimSpace(v.GetString("smtp_addr")),
			Username: strings.TrimSpace(v.GetString("smtp_username")),
			Password: v.GetString("smtp_password"),
			From:     strings.TrimSpace(v.GetString("notify_from")),
			To:       splitList(v.GetString("notify_to")),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8501)
	v.SetDefault("log_level", "info")
	v.SetDefault("session_timeout", 20*time.Second)
	v.SetDefault("session_reap_interval", 10*time.Second)
	v.SetDefault("session_retention", 30*time.Minute)
	v.SetDefault("store_backend", BackendGoogle)
	v.SetDefault("spreadsheet_name", "documentos_registrados")
	v.SetDefault("client_secret_file", "client_secret.json")
	v.SetDefault("token_file", "token.json")
	v.SetDefault("db_path", "docreg.db")
	v.SetDefault("notify_from", "docreg@localhost")
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag == nil {
		return
	}
	_ = v.BindPFlag(key, flag)
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolve anchors relative paths at the application directory. Empty
// values stay empty so optional files can be detected.
func resolve(dir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed == ":memory:" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(dir, trimmed)
}

func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
