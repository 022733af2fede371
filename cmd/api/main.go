package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"org-portal/internal/config"
	"org-portal/internal/db"
	"org-portal/internal/email"
	apihttp "org-portal/internal/http"
	"org-portal/internal/repository"
	"org-portal/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	accountRepo := repository.NewPgAccountRepository(pool)
	codeStore := repository.NewPgCodeStore(pool)
	orgRepo := repository.NewPgOrganizationRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		issueLimiter   service.OTPRateLimiter
		attemptLimiter service.OTPRateLimiter
		tokenStore     service.RefreshTokenStore
		pendingLogins  service.PendingLoginStore
		redisClient    *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			if cfg.CodeIssueLimit > 0 {
				issueLimiter = service.NewRedisOTPRateLimiter(redisClient, "code:rl:", cfg.CodeIssueWindow, cfg.CodeIssueLimit)
			}
			if cfg.CodeAttemptLimit > 0 {
				attemptLimiter = service.NewRedisOTPRateLimiter(redisClient, "code:attempt:", cfg.CodeAttemptWindow, cfg.CodeAttemptLimit)
			}
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			pendingLogins = service.NewRedisPendingLoginStore(redisClient)
		}
		cancel()
	}
	if issueLimiter == nil && cfg.CodeIssueLimit > 0 {
		issueLimiter = service.NewOTPRateLimiter(cfg.CodeIssueWindow, cfg.CodeIssueLimit)
	}
	if attemptLimiter == nil && cfg.CodeAttemptLimit > 0 {
		attemptLimiter = service.NewOTPRateLimiter(cfg.CodeAttemptWindow, cfg.CodeAttemptLimit)
	}
	if pendingLogins == nil {
		pendingLogins = service.NewMemoryPendingLoginStore(ctx, cfg.PendingLoginTTL)
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	verificationSvc := service.NewVerificationService(logger, accountRepo, codeStore, emailSender, pendingLogins, jwtSvc, service.VerificationConfig{
		CodeTTL:         cfg.VerificationCodeTTL,
		PendingLoginTTL: cfg.PendingLoginTTL,
		IssueLimiter:    issueLimiter,
		AttemptLimiter:  attemptLimiter,
	})
	accountSvc := service.NewAccountService(logger, accountRepo, verificationSvc, cfg.PhoneDefaultRegion)
	orgSvc := service.NewOrganizationService(logger, orgRepo)

	accountHandler := apihttp.NewAccountHandler(logger, accountSvc, verificationSvc, jwtSvc)
	orgHandler := apihttp.NewOrganizationHandler(logger, orgSvc)
	router := apihttp.NewRouter(logger, accountHandler, orgHandler, jwtSvc)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
