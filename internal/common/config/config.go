package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Backend       BackendConfig           `mapstructure:"backend"`
	Pipeline      PipelineConfig          `mapstructure:"pipeline"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig drives the HTTP surface: health, readiness, metrics and the
// candidate view API.
type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	Mode            string `mapstructure:"mode"`             // gin mode
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the single URL or the first address.
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Enabled reports whether an Elasticsearch cluster is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// Backend modes.
const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

// BackendConfig selects where rounds, interviews and feedback live.
type BackendConfig struct {
	Mode string            `mapstructure:"mode"`
	REST RESTBackendConfig `mapstructure:"rest"`
}

type RESTBackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// RoundTemplate is one entry of the default round set provisioned per job.
type RoundTemplate struct {
	Name            string `mapstructure:"name" json:"name"`
	Description     string `mapstructure:"description" json:"description"`
	InterviewType   string `mapstructure:"interview_type" json:"interviewType"`
	DurationMinutes int    `mapstructure:"duration_minutes" json:"durationMinutes"`
}

// PipelineConfig tunes the reconciliation engine.
type PipelineConfig struct {
	FetchTimeout        int             `mapstructure:"fetch_timeout"` // milliseconds
	AutoProvisionRounds bool            `mapstructure:"auto_provision_rounds"`
	DefaultRating       float64         `mapstructure:"default_rating"`
	DefaultRounds       []RoundTemplate `mapstructure:"default_rounds"`
	RoundCacheTTL       int             `mapstructure:"round_cache_ttl"`    // seconds
	ProvisionLockTTL    int             `mapstructure:"provision_lock_ttl"` // seconds
	BlobIndex           string          `mapstructure:"blob_index"`
	// Overrides forces an overall status per candidate id.
	Overrides map[string]string `mapstructure:"overrides"`
}

// NotificationConfig holds the rejection event publisher settings.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// DefaultRoundTemplates is the round set provisioned when none is configured.
func DefaultRoundTemplates() []RoundTemplate {
	return []RoundTemplate{
		{Name: "HR Screening", Description: "Initial screening with HR", InterviewType: "phone", DurationMinutes: 30},
		{Name: "Technical Interview", Description: "Technical skills assessment", InterviewType: "video", DurationMinutes: 60},
		{Name: "Manager Interview", Description: "Interview with the hiring manager", InterviewType: "video", DurationMinutes: 45},
		{Name: "Final Interview", Description: "Final round and culture fit", InterviewType: "onsite", DurationMinutes: 60},
	}
}
