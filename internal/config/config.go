// Package config loads application configuration from environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full application configuration.
type Config struct {
	Environment string
	ListenAddr  string
	LogLevel    string

	// Directory.
	LDAPURLs         []string
	LDAPBaseDN       string
	LDAPBindDN       string
	LDAPBindPassword string
	LDAPStartTLS     bool
	LDAPTimeout      time.Duration
	LDAPMaxConns     int
	KerberosRealm    string
	KerberosKeytab   string
	KerberosConfig   string

	// Postgres.
	DatabaseDSN string

	// Redis, for login rate limiting.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Login rate limit.
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// Sessions.
	SessionSecret string
	SessionTTL    time.Duration

	// Mail.
	MailSender   string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPStartTLS bool
	SESRegion    string

	// Expiry sweep schedule, local time.
	SweepHour   int
	SweepMinute int
}

// Load reads configuration from environment variables. Required settings
// without a usable default fail loudly.
func Load() (*Config, error) {
	ldapURLs := parseCSVEnv("LDAP_URLS", nil)
	if len(ldapURLs) == 0 {
		return nil, fmt.Errorf("LDAP_URLS must list at least one ldap:// or ldaps:// URL")
	}

	ldapTimeout, err := parseDurationEnv("LDAP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	ldapMaxConns, err := parseIntEnv("LDAP_MAX_CONNECTIONS", 10)
	if err != nil {
		return nil, err
	}
	redisDB, err := parseIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	loginMax, err := parseIntEnv("LOGIN_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	loginWindow, err := parseDurationEnv("LOGIN_WINDOW", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDurationEnv("SESSION_TTL", 8*time.Hour)
	if err != nil {
		return nil, err
	}
	smtpPort, err := parseIntEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}
	sweepHour, err := parseIntEnv("SWEEP_HOUR", 8)
	if err != nil {
		return nil, err
	}
	sweepMinute, err := parseIntEnv("SWEEP_MINUTE", 0)
	if err != nil {
		return nil, err
	}
	if sweepHour < 0 || sweepHour > 23 || sweepMinute < 0 || sweepMinute > 59 {
		return nil, fmt.Errorf("invalid sweep schedule %02d:%02d", sweepHour, sweepMinute)
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET must be set")
	}
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN must be set")
	}

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		LDAPURLs:         ldapURLs,
		LDAPBaseDN:       os.Getenv("LDAP_BASE_DN"),
		LDAPBindDN:       os.Getenv("LDAP_BIND_DN"),
		LDAPBindPassword: os.Getenv("LDAP_BIND_PASSWORD"),
		LDAPStartTLS:     parseBoolEnv("LDAP_START_TLS", false),
		LDAPTimeout:      ldapTimeout,
		LDAPMaxConns:     ldapMaxConns,
		KerberosRealm:    os.Getenv("KERBEROS_REALM"),
		KerberosKeytab:   os.Getenv("KERBEROS_KEYTAB"),
		KerberosConfig:   getEnv("KERBEROS_CONFIG", "/etc/krb5.conf"),

		DatabaseDSN: dsn,

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		LoginMaxAttempts: loginMax,
		LoginWindow:      loginWindow,

		SessionSecret: secret,
		SessionTTL:    sessionTTL,

		MailSender:   getEnv("MAIL_SENDER", "admanager@localhost"),
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     smtpPort,
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPStartTLS: parseBoolEnv("SMTP_START_TLS", false),
		SESRegion:    os.Getenv("SES_REGION"),

		SweepHour:   sweepHour,
		SweepMinute: sweepMinute,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
