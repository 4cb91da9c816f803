// Package config loads server settings from defaults, an optional YAML file,
// the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the server configuration.
type Config struct {
	Addr    string `yaml:"addr"`
	OpsAddr string `yaml:"ops_addr"`

	DBDriver string        `yaml:"db_driver"`
	DBDSN    string        `yaml:"db_dsn"`
	DBRetry  time.Duration `yaml:"db_retry"`

	UploadsDir string `yaml:"uploads_dir"`

	MasterPassphrase string        `yaml:"master_passphrase"`
	SessionKey       string        `yaml:"session_key"`
	JWTKey           string        `yaml:"jwt_key"`
	AccessTTL        time.Duration `yaml:"access_ttl"`
	SecureCookie     bool          `yaml:"secure_cookie"`

	MaxUploadMB int64 `yaml:"max_upload_mb"`
	LogTail     int   `yaml:"log_tail"`

	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	Dev bool `yaml:"dev"`
}

// Default returns the built-in defaults. Secrets have none.
func Default() Config {
	return Config{
		Addr:        ":8080",
		OpsAddr:     ":9090",
		DBDriver:    "sqlite3",
		DBDSN:       "dockeeper.db",
		DBRetry:     30 * time.Second,
		UploadsDir:  "uploads",
		AccessTTL:   15 * time.Minute,
		MaxUploadMB: 64,
		LogTail:     50,
	}
}

// Load overlays a YAML file onto c. Keys absent from the file keep their value.
func Load(filename string, c *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("config %s: %w", filename, err)
	}
	return nil
}

// env variables consulted between the file and the flags.
var envKeys = map[string]func(*Config, string){
	"DK_DB_DSN":            func(c *Config, v string) { c.DBDSN = v },
	"DK_MASTER_PASSPHRASE": func(c *Config, v string) { c.MasterPassphrase = v },
	"DK_SESSION_KEY":       func(c *Config, v string) { c.SessionKey = v },
	"DK_JWT_KEY":           func(c *Config, v string) { c.JWTKey = v },
	"PORT":                 func(c *Config, v string) { c.Addr = ":" + v },
}

func (c *Config) applyEnv(getenv func(string) string) {
	for k, set := range envKeys {
		if v := getenv(k); v != "" {
			set(c, v)
		}
	}
}

func (c *Config) flagSet(name string, out io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("config", "", "YAML config file")
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.OpsAddr, "ops-addr", c.OpsAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&c.DBDriver, "db-driver", c.DBDriver, "database driver: sqlite3 or pgx")
	fs.StringVar(&c.DBDSN, "dsn", c.DBDSN, "database DSN (SQLite file or PostgreSQL URL)")
	fs.DurationVar(&c.DBRetry, "db-retry", c.DBRetry, "how long to retry the initial database connection")
	fs.StringVar(&c.UploadsDir, "uploads", c.UploadsDir, "storage root for uploaded files")
	fs.StringVar(&c.MasterPassphrase, "master", c.MasterPassphrase, "master passphrase for registration and admin (required)")
	fs.StringVar(&c.SessionKey, "session-key", c.SessionKey, "session cookie authentication key (required)")
	fs.StringVar(&c.JWTKey, "jwt-key", c.JWTKey, "HS256 signing key (required)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "bearer token TTL")
	fs.BoolVar(&c.SecureCookie, "secure-cookie", c.SecureCookie, "mark the session cookie Secure")
	fs.Int64Var(&c.MaxUploadMB, "max-upload-mb", c.MaxUploadMB, "max upload request size in MiB")
	fs.IntVar(&c.LogTail, "log-tail", c.LogTail, "action log entries returned by default")
	fs.StringVar(&c.TLSCert, "tls-cert", c.TLSCert, "TLS certificate (PEM)")
	fs.StringVar(&c.TLSKey, "tls-key", c.TLSKey, "TLS private key (PEM)")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "development logging and gRPC reflection")
	return fs, path
}

// Parse resolves the configuration from args (without the program name).
// The flags are parsed twice: once to find -config, then over the file and
// environment values so that explicit flags win.
func Parse(name string, args []string, getenv func(string) string, out io.Writer) (Config, error) {
	probe := Default()
	fs, path := probe.flagSet(name, out)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	c := Default()
	if *path != "" {
		if err := Load(*path, &c); err != nil {
			return Config{}, err
		}
	}
	c.applyEnv(getenv)

	fs, _ = c.flagSet(name, io.Discard)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

// Validate reports missing secrets and out-of-range values.
func (c Config) Validate() error {
	var problems []error
	if c.MasterPassphrase == "" {
		problems = append(problems, errors.New("missing master passphrase (-master)"))
	}
	if c.SessionKey == "" {
		problems = append(problems, errors.New("missing session key (-session-key)"))
	}
	if c.JWTKey == "" {
		problems = append(problems, errors.New("missing jwt signing key (-jwt-key)"))
	}
	switch c.DBDriver {
	case "sqlite3", "pgx":
	default:
		problems = append(problems, fmt.Errorf("unsupported db driver %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		problems = append(problems, errors.New("empty dsn"))
	}
	if c.UploadsDir == "" {
		problems = append(problems, errors.New("empty uploads dir"))
	}
	if c.AccessTTL <= 0 {
		problems = append(problems, errors.New("access ttl must be positive"))
	}
	if c.MaxUploadMB <= 0 {
		problems = append(problems, errors.New("max upload must be positive"))
	}
	if c.LogTail <= 0 {
		problems = append(problems, errors.New("log tail must be positive"))
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		problems = append(problems, errors.New("tls cert and key must be set together"))
	}
	return errors.Join(problems...)
}

// TLS reports whether a certificate pair is configured.
func (c Config) TLS() bool { return c.TLSCert != "" }

// MaxUploadBytes converts the upload limit.
func (c Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }
