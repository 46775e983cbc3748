package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                   string `mapstructure:"PORT"`
	Env                    string `mapstructure:"ENV"`
	LogLevel               string `mapstructure:"LOG_LEVEL"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RedisAddr              string `mapstructure:"REDIS_ADDR"`
	JWTSecret              string `mapstructure:"JWT_SECRET"`
	SMTPHost               string `mapstructure:"SMTP_HOST"`
	SMTPPort               int    `mapstructure:"SMTP_PORT"`
	EmailUser              string `mapstructure:"EMAIL_USER"`
	EmailPass              string `mapstructure:"EMAIL_PASS"`
	Timezone               string `mapstructure:"TIMEZONE"`
	DefaultAppointmentMins int    `mapstructure:"DEFAULT_APPOINTMENT_MINUTES"`
	LHWConsultationMins    int    `mapstructure:"LHW_CONSULTATION_MINUTES"`
	ReminderLeadMins       int    `mapstructure:"REMINDER_LEAD_MINUTES"`
	ReminderSchedule       string `mapstructure:"REMINDER_SCHEDULE"`
	CORSOrigins            string `mapstructure:"CORS_ORIGINS"`

	location *time.Location
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "REDIS_ADDR", "JWT_SECRET",
	"SMTP_HOST", "SMTP_PORT", "EMAIL_USER", "EMAIL_PASS", "TIMEZONE",
	"DEFAULT_APPOINTMENT_MINUTES", "LHW_CONSULTATION_MINUTES",
	"REMINDER_LEAD_MINUTES", "REMINDER_SCHEDULE", "CORS_ORIGINS",
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	// a missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("DEFAULT_APPOINTMENT_MINUTES", 60)
	v.SetDefault("LHW_CONSULTATION_MINUTES", 30)
	v.SetDefault("REMINDER_LEAD_MINUTES", 5)
	v.SetDefault("REMINDER_SCHEDULE", "* * * * *")
	v.SetDefault("CORS_ORIGINS", "*")

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DefaultAppointmentMins <= 0 || cfg.LHWConsultationMins <= 0 || cfg.ReminderLeadMins <= 0 {
		return nil, fmt.Errorf("appointment, consultation and reminder minutes must be positive")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location is the zone availability windows are interpreted in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultAppointmentMins) * time.Minute
}

func (c *Config) LHWDuration() time.Duration {
	return time.Duration(c.LHWConsultationMins) * time.Minute
}

func (c *Config) ReminderLead() time.Duration {
	return time.Duration(c.ReminderLeadMins) * time.Minute
}

// AllowedOrigins normalizes CORS_ORIGINS for the fiber cors middleware.
func (c *Config) AllowedOrigins() string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "*"
	}
	return strings.Join(out, ",")
}
