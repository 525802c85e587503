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

	"cabbooking/config"
	"cabbooking/cron"
	"cabbooking/database"
	recordsRepo "cabbooking/database/repository/records"
	"cabbooking/handlers"
	"cabbooking/middleware"
	"cabbooking/models"
	"cabbooking/routes"
	"cabbooking/services/availability"
	"cabbooking/services/booking"
	"cabbooking/services/dispatch"
	"cabbooking/services/locationcache"
	"cabbooking/services/notification"
	"cabbooking/services/prompts"
	"cabbooking/services/sampling"
	"cabbooking/services/tasks"
	"cabbooking/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "cabbooking",
	Short:        "Cab booking MCP tool server",
	Long:         "cabbooking serves cab booking tools, resources and prompts to an agent over MCP on stdio.",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml")
	rootCmd.Version = version

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve MCP on stdin/stdout",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "fleet",
		Short: "Validate the fleet file and print a summary",
		RunE:  runFleet,
	})
}

func loadConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	if err := config.LoadConfig(path); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

func runFleet(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	fleet, err := config.LoadFleet(config.AppConfig.FleetFile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d locations, %d cabs\n", len(fleet.Locations), len(fleet.Cabs))
	for _, loc := range fleet.Locations {
		n := 0
		for _, cab := range fleet.Cabs {
			if models.NormalizeLocation(cab.Location) == models.NormalizeLocation(loc.Name) {
				n++
			}
		}
		fmt.Fprintf(out, "  %-16s %d cabs, neighbors %v\n", loc.Name, n, loc.Neighbors)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(cmd); err != nil {
		return err
	}
	logger := utils.GetLogger()
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fleet, err := config.LoadFleet(config.AppConfig.FleetFile)
	if err != nil {
		return err
	}
	store := booking.NewStore()
	index := availability.NewIndex()
	neighbors, err := booking.Provision(fleet, store, index)
	if err != nil {
		return err
	}
	cfg := config.AppConfig
	bookingSvc := booking.NewBookingService(store, index, neighbors, booking.Options{
		RetryBudget:     cfg.RetryBudget,
		RecheckInterval: cfg.RecheckInterval,
		SamplingTimeout: cfg.SamplingTimeout,
		ReminderLead:    cfg.ReminderLead,
	}, logger)

	monitor := utils.NewHealthMonitor(logger)

	// Redis: location cache and reminder queue.
	bookingSvc.Cache = locationcache.NewMemoryCache(cfg.LocationCacheTTL)
	cacheClient, err := utils.NewRedisClient(ctx, cfg.RedisCacheDB)
	if err != nil {
		logger.Warn("Redis unavailable, using in-process location cache", zap.Error(err))
	}
	if cacheClient != nil {
		defer cacheClient.Close()
		bookingSvc.Cache = locationcache.NewRedisCache(cacheClient, cfg.LocationCacheTTL)
		monitor.Register("redis", func(ctx context.Context) error { return cacheClient.Ping(ctx).Err() })

		queue := tasks.NewReminderQueue(asynq.NewClient(cron.RedisOpt()))
		defer queue.Close()
		bookingSvc.Reminders = queue

		worker := cron.NewReminderWorker(notification.NewLogNotificationService(logger), logger)
		worker.Start()
		defer worker.Shutdown()
	}

	// MongoDB: historical records.
	var records recordsRepo.HistoricalRecordRepository = recordsRepo.NewMemoryRecordRepo()
	mongoClient, err := database.Connect(ctx, logger)
	if err != nil {
		logger.Warn("MongoDB unavailable, keeping history in memory", zap.Error(err))
	}
	if mongoClient != nil {
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(dctx)
		}()
		records = recordsRepo.NewMongoRecordRepo(database.Database(mongoClient))
		monitor.Register("mongo", func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) })
	}
	bookingSvc.Records = records

	catalog, err := prompts.Load()
	if err != nil {
		return err
	}
	dispatcher, err := dispatch.New(bookingSvc, catalog, records, logger)
	if err != nil {
		return err
	}

	if err := monitor.Start("@every 1m"); err != nil {
		return err
	}
	defer monitor.Stop()

	if cfg.HealthPort != "" {
		srv := startHTTP(cfg.HealthPort, bookingSvc, monitor, cfg.MaxCallsPerMin, logger)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Warn("HTTP server forced to shutdown", zap.Error(err))
			}
		}()
	}

	server := &handlers.MCPServer{
		Dispatcher:  dispatcher,
		Coordinator: sampling.NewCoordinator(logger),
		Limiter:     middleware.NewRateLimiter(cfg.MaxCallsPerMin),
		Logger:      logger,
		Name:        "cab-booking",
		Version:     version,
	}
	logger.Info("Serving MCP on stdio",
		zap.Int("locations", len(fleet.Locations)), zap.Int("cabs", len(fleet.Cabs)))
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("MCP session ended, shutting down")
	return nil
}

func startHTTP(port string, bookings booking.BookingService, monitor *utils.HealthMonitor, perMinute int, logger *zap.Logger) *http.Server {
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handlers.NewHealthHandler(bookings, monitor, logger)
	router := routes.NewRouter(handlers.NewHandlerBundle(h, middleware.NewRateLimiter(perMinute)))

	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}
	logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return srv
}
