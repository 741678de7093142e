package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting of the service. Variables are read without a prefix,
// e.g. PORT, DB_HOST, REDIS_HOST, KAFKA_BROKER.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	Timezone string `envconfig:"TIMEZONE" default:"America/Caracas"`

	Log           LogConfig           `envconfig:"LOG"`
	DB            DBConfig            `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Kafka         KafkaConfig         `envconfig:"KAFKA"`
	Elasticsearch ElasticsearchConfig `envconfig:"ELASTICSEARCH"`
	Sentry        SentryConfig        `envconfig:"SENTRY"`
	Auth          AuthConfig          `envconfig:"AUTH"`
	Reports       ReportsConfig       `envconfig:"REPORTS"`
	Update        UpdateConfig        `envconfig:"UPDATE"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

type DBConfig struct {
	Driver   string `envconfig:"DRIVER" default:"postgres"`
	Host     string `envconfig:"HOST" default:"localhost"`
	Port     string `envconfig:"PORT" default:"5432"`
	User     string `envconfig:"USER" default:"postgres"`
	Password string `envconfig:"PASSWORD"`
	Name     string `envconfig:"NAME" default:"visitas"`
	SSLMode  string `envconfig:"SSLMODE" default:"disable"`
	// Path is the database file when Driver is sqlite.
	Path string `envconfig:"PATH" default:"db.sqlite3"`
}

// DSN renders the postgres connection string in the key=value form gorm expects.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"HOST"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

type KafkaConfig struct {
	Broker  string `envconfig:"BROKER"`
	Topic   string `envconfig:"TOPIC" default:"visit_events"`
	GroupID string `envconfig:"GROUP_ID" default:"visitor-registry"`
}

func (c KafkaConfig) Enabled() bool { return c.Broker != "" }

type ElasticsearchConfig struct {
	URL   string `envconfig:"URL"`
	Index string `envconfig:"INDEX" default:"visits"`
}

func (c ElasticsearchConfig) Enabled() bool { return c.URL != "" }

type SentryConfig struct {
	DSN string `envconfig:"DSN"`
}

type AuthConfig struct {
	// Required makes create/update/close reject requests without a valid token.
	Required bool `envconfig:"REQUIRED" default:"true"`
}

type ReportsConfig struct {
	CacheTTL   time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	Letterhead []string      `envconfig:"LETTERHEAD" default:"REPUBLICA BOLIVARIANA DE VENEZUELA,TRIBUNAL SUPREMO DE JUSTICIA,DIRECCION EJECUTIVA DE LA MAGISTRATURA,EQUIPO DE JUSTICIA SOCIAL,BARQUISIMETO-ESTADO LARA"`
	Signatures []string      `envconfig:"SIGNATURES" default:"Coordinadora de Equipo de Justicia Social,Directora Administrativa Regional"`
}

type UpdateConfig struct {
	Token         string        `envconfig:"TOKEN"`
	InstallerURL  string        `envconfig:"INSTALLER_URL"`
	AppDir        string        `envconfig:"APP_DIR" default:"."`
	InstallerArgs string        `envconfig:"INSTALLER_ARGS" default:"/VERYSILENT /SUPPRESSMSGBOXES /NORESTART"`
	StopCommand   string        `envconfig:"STOP_CMD"`
	StartCommand  string        `envconfig:"START_CMD"`
	MigrateCmd    string        `envconfig:"MIGRATE_CMD"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"10m"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DB.Driver)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.Reports.CacheTTL < 0 {
		return fmt.Errorf("REPORTS_CACHE_TTL must not be negative")
	}
	return nil
}

// Location returns the time zone used for calendar-day boundaries in reports.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SQLitePath resolves DB_PATH against the application directory.
func (c *Config) SQLitePath() string {
	if c.DB.Driver != "sqlite" {
		return ""
	}
	if filepath.IsAbs(c.DB.Path) {
		return c.DB.Path
	}
	return filepath.Join(c.Update.AppDir, c.DB.Path)
}

// Fields splits a command line from the environment into argv.
func Fields(s string) []string {
	return strings.Fields(s)
}
