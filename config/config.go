package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	FDABaseURL    string `envconfig:"FDA_BASE_URL" default:"https://api.fda.gov/drug/event.json"`
	FDAAPIKey     string `envconfig:"FDA_API_KEY"`
	FDAPageSize   int    `envconfig:"FDA_PAGE_SIZE" default:"99"`
	FDAMaxRecords int    `envconfig:"FDA_MAX_RECORDS" default:"500"`

	CTBaseURL    string `envconfig:"CT_BASE_URL" default:"https://clinicaltrials.gov/api/v2/studies"`
	CTPageSize   int    `envconfig:"CT_PAGE_SIZE" default:"100"`
	CTMaxRecords int    `envconfig:"CT_MAX_RECORDS" default:"1000"`

	// Retry- und Drossel-Parameter für die Seitenabrufe.
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	RetryMaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryBaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"2s"`
	PageDelay        time.Duration `envconfig:"PAGE_DELAY" default:"500ms"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 6 * * *"`

	S3Key    string `envconfig:"S3_KEY" required:"true"`
	S3Secret string `envconfig:"S3_SECRET" required:"true"`
	S3URL    string `envconfig:"S3_URL" required:"true"`
	S3Region string `envconfig:"S3_REGION" required:"true"`
	S3Bucket string `envconfig:"S3_BUCKET" required:"true"`

	// Quellen-Konfiguration
	EnabledSources string `envconfig:"ENABLED_SOURCES" default:"fda,clinical_trials"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
