package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"visitor-registry/config"
	"visitor-registry/consumer"
	"visitor-registry/export"
	"visitor-registry/handlers"
	"visitor-registry/models"
	"visitor-registry/monitoring"
	"visitor-registry/updater"
	"visitor-registry/utils"
)

const connectTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "visitor-registry",
	Short: "Visitor registration and reporting service",
	RunE:  runServe,
}

func main() {
	rootCmd.AddCommand(
		&cobra.Command{Use: "serve", Short: "Run the HTTP API (default)", RunE: runServe},
		&cobra.Command{Use: "consume", Short: "Index visit events from Kafka into Elasticsearch", RunE: runConsume},
		&cobra.Command{Use: "migrate", Short: "Create or update the database schema", RunE: runMigrate},
		&cobra.Command{Use: "populate-persons", Short: "Create missing persons and link their visits", RunE: runPopulatePersons},
		newCreateAdminCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the logger shared by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*models.GormRepository, error) {
	if cfg.DB.Driver == "sqlite" {
		return models.NewSQLiteRepository(cfg.SQLitePath(), models.WithLogger(logger))
	}

	var repo *models.GormRepository
	err := utils.Retry(ctx, logger, "postgres", connectTimeout, func() error {
		var err error
		repo, err = models.NewPostgresRepository(cfg.DB.DSN(), models.WithLogger(logger))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return repo, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := utils.InitSentry(cfg.Sentry, cfg.Env, cfg.Version); err != nil {
			logger.Warn("sentry disabled", zap.Error(err))
		} else {
			defer utils.FlushSentry()
		}
	}
	monitoring.Init()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	repo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	var redisClient utils.RedisClient
	if cfg.Redis.Enabled() {
		err := utils.Retry(ctx, logger, "redis", connectTimeout, func() error {
			var err error
			redisClient, err = utils.NewRedisClient(ctx, cfg.Redis)
			return err
		})
		if err != nil {
			logger.Warn("redis unavailable, report cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var producer utils.KafkaProducer
	if cfg.Kafka.Enabled() {
		producer, err = utils.NewKafkaProducer(cfg.Kafka)
		if err != nil {
			logger.Warn("kafka unavailable, visit events disabled", zap.Error(err))
			producer = nil
		} else {
			defer producer.Close()
		}
	}

	var search utils.ElasticsearchClient
	if cfg.Elasticsearch.Enabled() {
		search, err = utils.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			logger.Warn("elasticsearch unavailable, search falls back to database", zap.Error(err))
			search = nil
		}
	}

	loc := cfg.Location()
	events := handlers.NewEventPublisher(producer, cfg.Kafka.Topic, logger)
	cache := handlers.NewReportCache(redisClient, cfg.Reports.CacheTTL, logger)
	upd := updater.New(cfg.Update, cfg.SQLitePath(), repo.Migrate, logger)

	visits := handlers.NewVisitHandler(repo, events, cache, loc, logger)
	if search != nil {
		visits.WithSearch(search, cfg.Elasticsearch.Index)
	}

	probes := map[string]handlers.Pinger{"db": repo, "redis": nil}
	if redisClient != nil {
		probes["redis"] = redisClient
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Users:  repo,
		Visits: visits,
		Reports: handlers.NewReportHandler(repo, cache, export.Options{
			Letterhead: cfg.Reports.Letterhead,
			Signatures: cfg.Reports.Signatures,
		}, loc, logger),
		Auth:         handlers.NewAuthHandler(repo, logger),
		Options:      handlers.NewOptionsHandler(repo),
		Update:       handlers.NewUpdateHandler(upd, logger),
		Health:       handlers.Health(upd.Version(), probes),
		Busy:         upd.Busy,
		AuthRequired: cfg.Auth.Required,
		Sentry:       cfg.Sentry.DSN != "",
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server is running",
			zap.String("port", cfg.Port),
			zap.String("db_driver", cfg.DB.Driver),
			zap.String("version", upd.Version()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	events.Wait()
	return nil
}

func runConsume(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Kafka.Enabled() || !cfg.Elasticsearch.Enabled() {
		return errors.New("consume requires KAFKA_BROKER and ELASTICSEARCH_URL")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	monitoring.Init()

	var es utils.ElasticsearchClient
	err = utils.Retry(ctx, logger, "elasticsearch", connectTimeout, func() error {
		var err error
		es, err = utils.NewElasticsearchClient(cfg.Elasticsearch)
		return err
	})
	if err != nil {
		return err
	}
	defer es.Close()

	c := consumer.NewVisitConsumer(cfg.Kafka, es, cfg.Elasticsearch.Index, logger)
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("error closing kafka reader", zap.Error(err))
		}
	}()
	return c.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	repo, err := openRepository(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Migrate(cmd.Context()); err != nil {
		return err
	}
	logger.Info("database schema is up to date", zap.String("db_driver", cfg.DB.Driver))
	return nil
}

func runPopulatePersons(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	repo, err := openRepository(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	res, err := repo.BackfillPersons(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Personas creadas: %d. Visitas enlazadas: %d.\n", res.Created, res.Linked)
	return nil
}

func newCreateAdminCmd() *cobra.Command {
	var username, password, fullName string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator or reset its password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			repo, err := openRepository(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			user, created, err := repo.UpsertAdmin(cmd.Context(), username, password, fullName)
			if err != nil {
				return err
			}
			action := "updated"
			if created {
				action = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q %s (id %d)\n", user.Username, action, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (required)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	cmd.Flags().StringVarP(&fullName, "full-name", "n", "", "Full name shown in audit entries")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
