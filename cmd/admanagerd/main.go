// Command admanagerd serves the Active Directory management API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isometry/admanager/internal/api"
	"github.com/isometry/admanager/internal/audit"
	"github.com/isometry/admanager/internal/authn"
	"github.com/isometry/admanager/internal/config"
	"github.com/isometry/admanager/internal/directory"
	adldap "github.com/isometry/admanager/internal/ldap"
	"github.com/isometry/admanager/internal/notify"
	"github.com/isometry/admanager/internal/ratelimit"
	"github.com/isometry/admanager/internal/store"
	"github.com/isometry/admanager/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "admanagerd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting admanagerd", zap.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database.
	st, err := store.Open(ctx, cfg.DatabaseDSN, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Redis, for login rate limiting.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	// Directory.
	ldapCfg := adldap.DefaultConfig()
	ldapCfg.URLs = cfg.LDAPURLs
	ldapCfg.BaseDN = cfg.LDAPBaseDN
	ldapCfg.BindDN = cfg.LDAPBindDN
	ldapCfg.BindPassword = cfg.LDAPBindPassword
	ldapCfg.StartTLS = cfg.LDAPStartTLS
	ldapCfg.Timeout = cfg.LDAPTimeout
	ldapCfg.MaxConnections = cfg.LDAPMaxConns
	ldapCfg.KerberosRealm = cfg.KerberosRealm
	ldapCfg.KerberosKeytab = cfg.KerberosKeytab
	ldapCfg.KerberosConfig = cfg.KerberosConfig

	client, err := adldap.NewClient(ldapCfg, log)
	if err != nil {
		return fmt.Errorf("connect directory: %w", err)
	}
	defer client.Close()

	baseDN, err := client.BaseDN(ctx)
	if err != nil {
		return fmt.Errorf("resolve base DN: %w", err)
	}
	log.Info("directory connected", zap.String("base_dn", baseDN))

	dir := api.Directory{
		Users:     directory.NewUsers(client, baseDN, log),
		Groups:    directory.NewGroups(client, baseDN, log),
		OUs:       directory.NewOUs(client, baseDN, log),
		Computers: directory.NewComputers(client, baseDN, log),
		GPOs:      directory.NewGPOs(client, baseDN, log),
		DNS:       directory.NewDNS(client, baseDN, log),
		Policy:    directory.NewPolicy(client, baseDN, log),
	}

	// Notifications.
	mailer := notify.NewMailer(st.Templates, st.Notifications, newBackendFactory(cfg), cfg.MailSender, log)
	engine := notify.NewEngine(dir.Users, dir.Policy, st.Notifications, mailer, log)
	scheduler := worker.NewScheduler(engine, cfg.SweepHour, cfg.SweepMinute, log)
	go scheduler.Run(ctx)

	// Authentication.
	limiter := ratelimit.New(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow, log)
	tokens, err := authn.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	auditor := audit.NewRecorder(st.Audit, log)
	authenticator := authn.NewAuthenticator(dir.Users, client, st, limiter, tokens, auditor, log)

	server := api.NewServer(dir, client, authenticator, tokens, st, auditor, mailer, scheduler.Trigger, log)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	var zc zap.Config
	if cfg.Environment == "development" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// newBackendFactory resolves delivery backends by configured name. The
// mailer calls it on every send, so a backend switched through the API
// takes effect without a restart. Construction is memoized per name.
func newBackendFactory(cfg *config.Config) notify.BackendFactory {
	var mu sync.Mutex
	cache := make(map[string]notify.Backend)

	return func(ctx context.Context, name string) (notify.Backend, error) {
		mu.Lock()
		defer mu.Unlock()
		if backend, ok := cache[name]; ok {
			return backend, nil
		}

		var backend notify.Backend
		if name == "ses" {
			var err error
			backend, err = notify.NewSESBackend(ctx, cfg.SESRegion)
			if err != nil {
				return nil, err
			}
		} else {
			backend = notify.NewSMTPBackend(notify.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				StartTLS: cfg.SMTPStartTLS,
			})
		}
		cache[name] = backend
		return backend, nil
	}
}
