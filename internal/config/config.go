package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type OAuthProvider struct {
	Key         string
	Secret      string
	CallbackURL string
}

type Config struct {
	ServerPort   int
	DatabasePath string
	LogLevel     slog.Level

	CheckInWindow     time.Duration
	LockTimeout       time.Duration
	SchedulerInterval time.Duration

	SessionLifetime time.Duration
	// Bearer tokens are only accepted when a key is set
	JWTSecretKey string
	AdminEmails  []string

	CORSAllowedOrigins []string
	PublicHost         string
	RulesPath          string

	Discord OAuthProvider
	Google  OAuthProvider
}

// Load reads the configuration from the environment, picking up a .env file
// when there is one.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(stringEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	cfg := &Config{
		ServerPort:         port,
		DatabasePath:       stringEnv("DATABASE_PATH", "tournaments.db"),
		LogLevel:           level,
		JWTSecretKey:       os.Getenv("JWT_SECRET_KEY"),
		AdminEmails:        listEnv("ADMIN_EMAILS"),
		CORSAllowedOrigins: listEnv("CORS_ALLOWED_ORIGINS"),
		PublicHost:         stringEnv("PUBLIC_HOST", "localhost"),
		RulesPath:          os.Getenv("RULES_PATH"),
		Discord: OAuthProvider{
			Key:         os.Getenv("DISCORD_KEY"),
			Secret:      os.Getenv("DISCORD_SECRET"),
			CallbackURL: os.Getenv("DISCORD_CALLBACK_URL"),
		},
		Google: OAuthProvider{
			Key:         os.Getenv("GOOGLE_KEY"),
			Secret:      os.Getenv("GOOGLE_SECRET"),
			CallbackURL: os.Getenv("GOOGLE_CALLBACK_URL"),
		},
	}

	durations := []struct {
		name string
		def  time.Duration
		dst  *time.Duration
	}{
		{"CHECK_IN_WINDOW", 60 * time.Minute, &cfg.CheckInWindow},
		{"LOCK_TIMEOUT", 2 * time.Second, &cfg.LockTimeout},
		{"SCHEDULER_INTERVAL", 30 * time.Second, &cfg.SchedulerInterval},
		{"SESSION_LIFETIME", 24 * time.Hour, &cfg.SessionLifetime},
	}
	for _, d := range durations {
		v, err := durationEnv(d.name, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"http://localhost:3000"}
	}

	return cfg, nil
}

func stringEnv(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func intEnv(name string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return n, nil
}

func durationEnv(name string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, d)
	}
	return d, nil
}

func listEnv(name string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(name), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
