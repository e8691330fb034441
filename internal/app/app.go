package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dealboard/internal/captcha"
	"dealboard/internal/config"
	"dealboard/internal/database"
	"dealboard/internal/handler"
	"dealboard/internal/middleware"
	"dealboard/internal/model"
	"dealboard/internal/repository"
	"dealboard/internal/router"
	"dealboard/internal/service"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.DBTimeout)
	defer connectCancel()

	db, err := database.New(connectCtx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	engagementRepo := repository.NewEngagementRepository(pool)
	slog.Info("database ready")

	challengeStore := captcha.NewMemoryStore(cfg.CaptchaTTL, cfg.CaptchaMaxAttempts)
	hasher := service.NewBcryptHasher()

	tokenService, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, tokenRepo)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	roleService := service.NewRoleService(roleRepo)
	authService := service.NewAuthService(
		challengeStore, userRepo, roleRepo, attemptRepo, hasher, tokenService,
		service.LockoutPolicy{MaxAttempts: cfg.LockoutMaxAttempts, LockDuration: cfg.LockoutDuration},
		cfg.PasswordHistoryDepth,
	)
	authzService := service.NewAuthzService(engagementRepo)
	engagementService := service.NewEngagementService(engagementRepo, authzService)
	userService := service.NewUserService(userRepo, roleRepo, tokenService, hasher)

	if err := bootstrap(context.Background(), cfg, roleService, userRepo, userService); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap: %w", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(authService, authzService)

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Captcha:    handler.NewCaptchaHandler(challengeStore),
		Auth:       handler.NewAuthHandler(authService),
		Engagement: handler.NewEngagementHandler(engagementService),
		Role:       handler.NewRoleHandler(roleService),
		User:       handler.NewUserHandler(userService),
	})

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go challengeStore.StartSweep(cleanupCtx, cfg.CaptchaSweepInterval)
	go tokenService.StartCleanupTicker(cleanupCtx, cfg.TokenCleanupInterval, cfg.DBTimeout)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			func() {
				db.Close()
			},
			func() {
				cleanupCancel()
			},
		},
	}, nil
}

// bootstrap ensures the built-in roles exist and provisions the initial
// admin account when the configured email is not yet registered.
func bootstrap(ctx context.Context, cfg *config.Config, roles *service.RoleService, userRepo *repository.UserRepository, users *service.UserService) error {
	adminRole, err := roles.EnsureBuiltins(ctx)
	if err != nil {
		return fmt.Errorf("ensure built-in roles: %w", err)
	}

	if cfg.BootstrapAdminPassword == "" {
		return nil
	}

	_, err = userRepo.FindByEmail(ctx, cfg.BootstrapAdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return fmt.Errorf("look up bootstrap admin: %w", err)
	}

	admin, err := users.Create(ctx, cfg.BootstrapAdminEmail, "Administrator", cfg.BootstrapAdminPassword, adminRole.ID, nil)
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	slog.Info("bootstrap admin created", "email", admin.Email)
	return nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
