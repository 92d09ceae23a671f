package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"loop-battle"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres  Postgres
	Redis     Redis
	Security  Security
	Battle    Battle
	RateLimit RateLimit
	CORS      CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int32  `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN builds a libpq-style connection URL for pgx and goose.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// Redis holds cache + pub/sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"loop-battle"`
}

// Battle groups match rules.
type Battle struct {
	CodeTestDuration      time.Duration `env:"CODETEST_DURATION" envDefault:"2400s"`
	MiniQuizDuration      time.Duration `env:"MINIQUIZ_DURATION" envDefault:"600s"`
	Grace                 time.Duration `env:"MATCH_GRACE_SECONDS" envDefault:"10s"`
	CodeTestTimeoutPolicy string        `env:"CODETEST_TIMEOUT_POLICY" envDefault:"draw"`
	MaxProblems           int           `env:"MINIQUIZ_MAX_PROBLEMS" envDefault:"20"`
	IncludeSubjective     bool          `env:"SCORING_INCLUDE_SUBJECTIVE" envDefault:"true"`
	BcryptCost            int           `env:"ROOM_PASSWORD_BCRYPT_COST" envDefault:"10"`
	ResultRetention       time.Duration `env:"RESULT_RETENTION" envDefault:"30m"`
	ResultCacheTTL        time.Duration `env:"RESULT_CACHE_TTL" envDefault:"24h"`
	ProblemCacheTTL       time.Duration `env:"PROBLEM_CACHE_TTL" envDefault:"10m"`
}

// RateLimit bounds password guesses and join attempts per player and room.
type RateLimit struct {
	PerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	Burst     int `env:"RATE_LIMIT_BURST" envDefault:"5"`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	switch cfg.Battle.CodeTestTimeoutPolicy {
	case "draw", "double_loss":
	default:
		return nil, fmt.Errorf("parse config: CODETEST_TIMEOUT_POLICY must be draw or double_loss, got %q", cfg.Battle.CodeTestTimeoutPolicy)
	}
	return cfg, nil
}

// LoadPostgres parses only the database settings. Used by the migrator.
func LoadPostgres() (Postgres, error) {
	var cfg Postgres
	if err := env.ParseWithOptions(&cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return Postgres{}, fmt.Errorf("parse postgres config: %w", err)
	}
	return cfg, nil
}
