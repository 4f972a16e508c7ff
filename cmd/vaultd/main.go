package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vaultd/internal/config"
	"vaultd/internal/domain"
	"vaultd/internal/infra/db"
	"vaultd/internal/infra/httpapi"
	"vaultd/internal/infra/ledger"
	"vaultd/internal/infra/mailotp"
	"vaultd/internal/infra/policy"
	"vaultd/internal/infra/ratelimit"
	"vaultd/internal/infra/totp"
	"vaultd/internal/usecase"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.LogLevel)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var err error
	switch command {
	case "serve":
		err = runServe(cfg, log)
	case "migrate":
		err = runMigrate(cfg, log)
	case "sweep-otp":
		err = runSweepOTP(cfg, log)
	case "-h", "--help", "help":
		usage()
	default:
		usage()
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		log.WithError(err).Fatal(command + " failed")
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: vaultd <command>

commands:
  serve      run the HTTP API (default)
  migrate    apply database migrations and exit
  sweep-otp  delete expired unused one-time codes and exit`)
}

func newLogger(level string) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logrus.NewEntry(logger).WithField("service", "vaultd")
}

func runServe(cfg config.Config, log *logrus.Entry) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.HTTPAddr, "listen address")
	if err := fs.Parse(serveArgs()); err != nil {
		return err
	}

	gdb, err := db.Open(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirror, err := buildMirror(ctx, cfg, gdb, log)
	if err != nil {
		return err
	}
	engine, err := buildPolicy(ctx, cfg)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	requests := db.NewAccessRequestRepository(gdb)
	controller := &usecase.AccessController{
		Requests:      requests,
		Release:       requests,
		Logs:          db.NewAccessLogRepository(gdb),
		Files:         db.NewFileRepository(gdb),
		Mods:          db.NewFileModificationRepository(gdb),
		Users:         db.NewUserRepository(gdb),
		Attempts:      db.NewLedgerAttemptRepository(gdb),
		TOTP:          totp.NewVerifier(),
		OTP:           buildOTPService(cfg, gdb, log),
		Mirror:        mirror,
		Policy:        engine,
		Limiter:       buildLimiter(cfg, log),
		AttemptLimit:  cfg.ReleaseAttemptLimit,
		AttemptWindow: cfg.ReleaseAttemptWindow,
		Clock:         usecase.SystemClock(),
		Log:           log,
	}

	srv := httpapi.NewServer(controller, log)
	log.WithField("addr", *addr).Info("vaultd listening")
	return srv.Run(ctx, *addr)
}

func runMigrate(cfg config.Config, log *logrus.Entry) error {
	gdb, err := db.Open(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func runSweepOTP(cfg config.Config, log *logrus.Entry) error {
	gdb, err := db.Open(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	service := buildOTPService(cfg, gdb, log)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	deleted, err := service.SweepExpired(ctx)
	if err != nil {
		return err
	}
	log.WithField("deleted", deleted).Info("expired codes swept")
	return nil
}

func serveArgs() []string {
	if len(os.Args) > 2 {
		return os.Args[2:]
	}
	return nil
}

func buildOTPService(cfg config.Config, gdb *gorm.DB, log *logrus.Entry) *mailotp.Service {
	var sender mailotp.Sender
	if cfg.SMTPAddr != "" {
		sender = mailotp.NewSMTPSender(mailotp.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			From:     cfg.SMTPFrom,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	} else {
		log.Warn("SMTP_ADDR unset, one-time codes will only be logged")
		sender = mailotp.NewLogSender(log)
	}
	return mailotp.NewService(db.NewOTPTokenRepository(gdb), sender, cfg.OTPExpiry, log)
}

func buildMirror(ctx context.Context, cfg config.Config, gdb *gorm.DB, log *logrus.Entry) (domain.LedgerMirror, error) {
	if !cfg.LedgerEnabled {
		return ledger.NewDisabledMirror(log), nil
	}
	client, err := ledger.NewClient(cfg.LedgerURL, cfg.LedgerContract, &http.Client{Timeout: cfg.LedgerTimeout})
	if err != nil {
		return nil, fmt.Errorf("ledger client: %w", err)
	}
	// Connectivity is reported but not required: the mirror records failed
	// attempts until the ledger comes back.
	if err := client.Connect(ctx); err != nil {
		log.WithError(err).Warn("ledger unreachable at startup")
	}
	return ledger.NewMirror(client, db.NewLedgerAttemptRepository(gdb), cfg.LedgerTimeout, log), nil
}

func buildPolicy(ctx context.Context, cfg config.Config) (domain.PolicyEngine, error) {
	if cfg.PolicyPath != "" {
		return policy.NewEngineFromPath(ctx, cfg.PolicyPath)
	}
	return policy.NewEngine(ctx)
}

func buildLimiter(cfg config.Config, log *logrus.Entry) domain.RateLimiter {
	if cfg.ReleaseAttemptLimit <= 0 {
		return nil
	}
	if cfg.RedisAddr != "" {
		limiter, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, 0)
		if err == nil {
			return limiter
		}
		log.WithError(err).Warn("redis limiter unavailable, falling back to memory")
	}
	return ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{})
}
