package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures all runtime options of a fuzzing run.
type Config struct {
	NumTries              int           `yaml:"num_tries"`
	NumThreads            int           `yaml:"num_threads"`
	Seed                  int64         `yaml:"random_seed"`
	TimeoutSeconds        int           `yaml:"timeout_seconds"`
	NumQueries            int           `yaml:"num_queries"`
	MaxNumInserts         int           `yaml:"max_num_inserts"`
	MaxGeneratedDatabases int           `yaml:"max_generated_databases"`
	ErrorExitCode         int           `yaml:"error_exit_code"`
	LogDir                string        `yaml:"log_dir"`
	StatementTimeoutMs    int           `yaml:"statement_timeout_ms"`
	Logging               Logging       `yaml:"logging"`
	Metrics               Metrics       `yaml:"metrics"`
	Storage               StorageConfig `yaml:"storage"`
	Postgres              Postgres      `yaml:"postgres"`
	SQLite                SQLite        `yaml:"sqlite3"`
	MySQL                 MySQL         `yaml:"mysql"`
}

// Logging controls console output and the per-database running log.
type Logging struct {
	Verbose                 bool   `yaml:"verbose"`
	PrintStatements         bool   `yaml:"print_statements"`
	PrintSucceeding         bool   `yaml:"print_succeeding_statements"`
	LogEachSelect           bool   `yaml:"log_each_select"`
	LogExecutionTime        bool   `yaml:"log_execution_time"`
	ProgressIntervalSeconds int    `yaml:"progress_interval_seconds"`
	LogFile                 string `yaml:"log_file"`
}

// Metrics configures the Prometheus endpoint. An empty address disables it.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// Postgres configures the PostgreSQL provider.
type Postgres struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	User           string   `yaml:"user"`
	Password       string   `yaml:"password"`
	BootstrapDB    string   `yaml:"bootstrap_database"`
	SSLMode        string   `yaml:"sslmode"`
	Oracles        []string `yaml:"oracles"`
	TestCollations bool     `yaml:"test_collations"`
}

// SQLite configures the SQLite3 provider.
type SQLite struct {
	Dir     string   `yaml:"dir"`
	Oracles []string `yaml:"oracles"`
}

// MySQL configures the MySQL/TiDB provider.
type MySQL struct {
	DSN      string   `yaml:"dsn"`
	Oracles  []string `yaml:"oracles"`
	Validate bool     `yaml:"validate"`
}

// StorageConfig holds external storage settings for failure archives.
type StorageConfig struct {
	Archive bool      `yaml:"archive"`
	S3      S3Config  `yaml:"s3"`
	GCS     GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Load reads configuration from a YAML file. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	Normalize(&cfg)
	return cfg, nil
}

const (
	progressIntervalDefault = 5
	numQueriesDefault       = 100000
	maxNumInsertsDefault    = 30
)

// Normalize replaces out-of-range values with their defaults.
func Normalize(cfg *Config) {
	if cfg.NumTries <= 0 {
		cfg.NumTries = 100
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = 16
	}
	if cfg.Seed < -1 {
		cfg.Seed = -1
	}
	if cfg.TimeoutSeconds == 0 || cfg.TimeoutSeconds < -1 {
		cfg.TimeoutSeconds = -1
	}
	if cfg.NumQueries <= 0 {
		cfg.NumQueries = numQueriesDefault
	}
	if cfg.MaxNumInserts < 0 {
		cfg.MaxNumInserts = maxNumInsertsDefault
	}
	if cfg.MaxGeneratedDatabases == 0 || cfg.MaxGeneratedDatabases < -1 {
		cfg.MaxGeneratedDatabases = -1
	}
	if strings.TrimSpace(cfg.LogDir) == "" {
		cfg.LogDir = "logs"
	}
	if cfg.Logging.ProgressIntervalSeconds < 0 {
		cfg.Logging.ProgressIntervalSeconds = progressIntervalDefault
	}
	if cfg.Postgres.Port <= 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.BootstrapDB == "" {
		cfg.Postgres.BootstrapDB = "test"
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	cfg.Postgres.Oracles = normalizeOracles(cfg.Postgres.Oracles)
	cfg.SQLite.Oracles = normalizeOracles(cfg.SQLite.Oracles)
	cfg.MySQL.Oracles = normalizeOracles(cfg.MySQL.Oracles)
}

func normalizeOracles(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return []string{"norec"}
	}
	return out
}

// UpdateDatabaseInDSN replaces the database name in the DSN path with dbName.
// It preserves query parameters, if any.
func UpdateDatabaseInDSN(dsn string, dbName string) string {
	if dsn == "" || dbName == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dbName + dsn[query:]
	}
	return dsn[:slash+1] + dbName
}

// AdminDSN strips the database name from a DSN while preserving query parameters.
func AdminDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
		return dsn[:slash+1] + dsn[query:]
	}
	return dsn[:slash+1]
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{
		NumTries:              100,
		NumThreads:            16,
		Seed:                  -1,
		TimeoutSeconds:        -1,
		NumQueries:            numQueriesDefault,
		MaxNumInserts:         maxNumInsertsDefault,
		MaxGeneratedDatabases: -1,
		ErrorExitCode:         -1,
		LogDir:                "logs",
		StatementTimeoutMs:    15000,
		Logging: Logging{
			LogEachSelect:           true,
			ProgressIntervalSeconds: progressIntervalDefault,
			LogFile:                 "logs/lancer.log",
		},
		Postgres: Postgres{
			Host:        "localhost",
			Port:        5432,
			User:        "sqlancer",
			Password:    "sqlancer",
			BootstrapDB: "test",
			SSLMode:     "disable",
		},
		SQLite: SQLite{Dir: "databases"},
		MySQL: MySQL{
			DSN:      "root:@tcp(127.0.0.1:4000)/",
			Validate: true,
		},
	}
	Normalize(&cfg)
	return cfg
}
