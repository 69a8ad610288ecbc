package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Reminders     RemindersConfig
	Notifications NotificationsConfig
	PubSub        PubSubConfig
	Resend        ResendConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CERTTRACKER_APP_ENV" required:"true"`
	Port         string `envconfig:"CERTTRACKER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CERTTRACKER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CERTTRACKER_LOG_WARN_STACK" default:"false"`
	BaseURL      string `envconfig:"CERTTRACKER_APP_BASE_URL" default:"https://certtracker.app"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CERTTRACKER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CERTTRACKER_DB_DSN"`
	Driver string `envconfig:"CERTTRACKER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CERTTRACKER_DB_HOST"`
	LegacyPort     int    `envconfig:"CERTTRACKER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CERTTRACKER_DB_USER"`
	LegacyPassword string `envconfig:"CERTTRACKER_DB_PASSWORD"`
	LegacyName     string `envconfig:"CERTTRACKER_DB_NAME"`
	LegacySSLMode  string `envconfig:"CERTTRACKER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CERTTRACKER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CERTTRACKER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CERTTRACKER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CERTTRACKER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CERTTRACKER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CERTTRACKER_REDIS_ADDR"`
	Password     string        `envconfig:"CERTTRACKER_REDIS_PASSWORD"`
	DB           int           `envconfig:"CERTTRACKER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CERTTRACKER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CERTTRACKER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CERTTRACKER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CERTTRACKER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CERTTRACKER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CERTTRACKER_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CERTTRACKER_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CERTTRACKER_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CERTTRACKER_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CERTTRACKER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CERTTRACKER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CERTTRACKER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CERTTRACKER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CERTTRACKER_ARGON_KEY_LEN" default:"32"`

	ResetTokenTTLMinutes int `envconfig:"CERTTRACKER_PASSWORD_RESET_TTL_MINUTES" default:"30"`
}

// ResetTokenTTL returns the password reset token TTL configured in minutes.
func (p PasswordConfig) ResetTokenTTL() time.Duration {
	if p.ResetTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(p.ResetTokenTTLMinutes) * time.Minute
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CERTTRACKER_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CERTTRACKER_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CERTTRACKER_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CERTTRACKER_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CERTTRACKER_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CERTTRACKER_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
	ForgotWindow       time.Duration `envconfig:"CERTTRACKER_AUTH_RATE_LIMIT_FORGOT_WINDOW" default:"15m"`
	ForgotEmailLimit   int           `envconfig:"CERTTRACKER_AUTH_RATE_LIMIT_FORGOT_EMAIL_LIMIT" default:"3"`
	ForgotIPLimit      int           `envconfig:"CERTTRACKER_AUTH_RATE_LIMIT_FORGOT_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CERTTRACKER_AUTO_MIGRATE" default:"false"`
}

type RemindersConfig struct {
	DefaultThresholds []int         `envconfig:"CERTTRACKER_REMINDER_DEFAULT_THRESHOLDS" default:"90,60,30,7,1"`
	UserWorkers       int           `envconfig:"CERTTRACKER_REMINDER_USER_WORKERS" default:"10"`
	CallTimeout       time.Duration `envconfig:"CERTTRACKER_REMINDER_CALL_TIMEOUT" default:"10s"`
	MaxAttempts       int           `envconfig:"CERTTRACKER_REMINDER_MAX_ATTEMPTS" default:"3"`
	UserPageSize      int           `envconfig:"CERTTRACKER_REMINDER_USER_PAGE_SIZE" default:"200"`
}

type NotificationsConfig struct {
	RetentionDays int `envconfig:"CERTTRACKER_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

type PubSubConfig struct {
	ProjectID            string `envconfig:"CERTTRACKER_GCP_PROJECT_ID"`
	ReminderTopic        string `envconfig:"CERTTRACKER_PUBSUB_REMINDER_TOPIC" default:"ct-reminder-events"`
	ReminderSubscription string `envconfig:"CERTTRACKER_PUBSUB_REMINDER_SUBSCRIPTION"`
}

type ResendConfig struct {
	APIKey    string `envconfig:"CERTTRACKER_RESEND_API_KEY"`
	FromEmail string `envconfig:"CERTTRACKER_RESEND_FROM_EMAIL" default:"CertTracker <notifications@certtracker.app>"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
