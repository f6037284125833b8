package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hivemindd/admin-auth/config"
	"github.com/hivemindd/admin-auth/handlers"
	"github.com/hivemindd/admin-auth/internal/audit"
	"github.com/hivemindd/admin-auth/internal/auth"
	"github.com/hivemindd/admin-auth/internal/email"
	"github.com/hivemindd/admin-auth/internal/queue"
	"github.com/hivemindd/admin-auth/internal/store"
	"github.com/hivemindd/admin-auth/internal/store/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const serviceName = "admin-auth"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          serviceName,
		Short:        "Admin panel authentication service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database tables",
			RunE: func(cmd *cobra.Command, args []string) error {
				conf, logger, err := setup()
				if err != nil {
					return err
				}
				defer logger.Sync()
				_, err = connectPostgres(conf.DatabaseURI, conf.Env)
				if err != nil {
					return err
				}
				logger.Info("migrations applied")
				return nil
			},
		},
		newSweepCommand(),
		newHashPasswordCommand(),
		newTOTPSecretCommand(),
	)
	return cmd
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete idle sessions and old login attempts once",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			deps, err := buildDeps(cmd.Context(), conf, logger)
			if err != nil {
				return err
			}
			defer deps.close()

			sweep(cmd.Context(), deps.authService, logger)
			return nil
		},
	}
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Long:  "Print a bcrypt hash for ADMIN_PASSWORD_HASH. The password is read from stdin when not given as an argument.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newTOTPSecretCommand() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "totp-secret",
		Short: "Generate a secret for ADMIN_2FA_SECRET and its provisioning URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, url, err := auth.GenerateTOTPSecret(serviceName, account)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "secret: %s\nurl:    %s\n", secret, url)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "admin", "account name shown in the authenticator app")
	return cmd
}

func setup() (*config.Config, *zap.Logger, error) {
	conf, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	logger, err := newLogger(conf)
	if err != nil {
		return nil, nil, err
	}
	return conf, logger, nil
}

type deps struct {
	postgres    *store.PostgresStore
	audit       *audit.Logger
	authService *auth.AuthClient
	pingers     map[string]handlers.Pinger
	closers     []func() error
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

func buildDeps(ctx context.Context, conf *config.Config, logger *zap.Logger) (*deps, error) {
	psqlConn, err := connectPostgres(conf.DatabaseURI, conf.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	postgresStore := store.NewPostgresStore(psqlConn)
	d := &deps{
		postgres: postgresStore,
		pingers:  map[string]handlers.Pinger{"postgres": postgresStore},
	}

	var sessions auth.SessionRepository = postgresStore
	if conf.SessionBackend == "redis" {
		opts, err := redis.ParseURL(conf.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		d.closers = append(d.closers, client.Close)
		redisSessions := redisstore.NewSessionRepository(client, conf.Admin.Lifetime())
		if err := redisSessions.Ping(ctx); err != nil {
			d.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		sessions = redisSessions
		d.pingers["redis"] = redisSessions
	}

	var sender auth.EmailSender
	if conf.Rabbit.URI != "" {
		q, err := queue.Dial(conf.Rabbit.URI)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		d.closers = append(d.closers, q.Close)
		if err := q.Declare(conf.Rabbit.AlertQueue); err != nil {
			d.close()
			return nil, err
		}
		sender = email.NewSender(q, conf.Rabbit.AlertQueue, conf.Rabbit.AlertEmail)
	}

	d.audit = audit.NewLogger(postgresStore, logger)
	d.authService = auth.NewAuthService(postgresStore, sessions, d.audit, sender, logger, conf.Admin)
	if !d.authService.Configured() {
		logger.Warn("admin credentials are not configured, every login will be rejected")
	}
	return d, nil
}

func runServe(ctx context.Context) error {
	conf, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting", zap.String("service", serviceName), zap.String("env", string(conf.Env)))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, conf, logger)
	if err != nil {
		logger.Error("Failed to initialise dependencies", zap.Error(err))
		return err
	}
	defer d.close()

	tp, shutdown := newTracerProvider(ctx, conf, logger)
	defer shutdown()

	srv := &handlers.Service{
		ServiceName:    serviceName,
		Config:         conf,
		AuthService:    d.authService,
		Audit:          d.audit,
		Logger:         logger,
		Dependencies:   d.pingers,
		TracerProvider: tp,
	}

	router, err := handlers.SetupRouter(srv)
	if err != nil {
		logger.Error("Failed to setup router", zap.Error(err))
		return err
	}

	go runSweeper(ctx, d.authService, conf.Admin.CleanupInterval, logger)

	errCh := make(chan error, 2)
	go func() {
		errCh <- listenAndServe(ctx, router, conf.ServerPort, logger)
	}()
	if conf.GRPCHealthPort != "" {
		go func() {
			errCh <- serveGRPCHealth(ctx, conf.GRPCHealthPort, d.pingers, logger)
		}()
	}

	err = <-errCh
	if err != nil {
		logger.Error("Server exited with error", zap.Error(err))
	} else {
		logger.Info("Server exited gracefully")
	}
	return err
}

func listenAndServe(ctx context.Context, router *gin.Engine, serverPort string, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              serverPort,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		logger.Info("Listening on address", zap.String("port", serverPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully")

		ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutDown); err != nil {
			return err
		}

		return nil
	case err := <-serverErrCh:
		return err
	}
}
