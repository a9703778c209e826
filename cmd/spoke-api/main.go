// README: Entry point; loads config, wires the dispatch services, serves HTTP.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"spoke/internal/config"
	httptransport "spoke/internal/http"
	"spoke/internal/infra"
	"spoke/internal/logging"
	"spoke/internal/maps"
	"spoke/internal/modules/courier"
	"spoke/internal/modules/depot"
	"spoke/internal/modules/matching"
	"spoke/internal/modules/order"
	"spoke/internal/modules/otp"
	"spoke/internal/modules/routing"
	"spoke/internal/modules/schedule"
	"spoke/internal/notify"
)

func main() {
	var (
		envFile = pflag.String("env-file", "", "path to a .env file applied before the environment")
		addr    = pflag.String("addr", "", "listen address, overrides SPOKE_HTTP_ADDR")
	)
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal(err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr, cfg.Redis.Password)
	defer redisClient.Close()

	geo, err := maps.NewService(redisClient, cfg.Maps.APIKey, cfg.Maps.CallTimeout, logger)
	if err != nil {
		log.Fatal(err)
	}

	var notifier notify.Notifier = notify.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		k := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer k.Close()
		notifier = k
	}

	otpSvc := otp.NewService(otp.NewRedisStore(redisClient))

	courierStore := courier.NewStore(dbPool)
	courierSvc := courier.NewService(courierStore, logger)

	depotStore := depot.NewStore(dbPool)

	orderStore := order.NewStore(dbPool)
	scheduleSvc := schedule.NewService(schedule.Rules{
		BusinessHoursStart: cfg.Schedule.BusinessHoursStart,
		BusinessHoursEnd:   cfg.Schedule.BusinessHoursEnd,
		CutoffBuffer:       cfg.Schedule.CutoffBuffer,
		BookingBuffer:      cfg.Schedule.BookingBuffer,
		DaysAhead:          cfg.Schedule.DaysAhead,
	}, courierStore, orderStore)

	orderSvc := order.NewService(orderStore, geo, otpSvc, courierStore, depotStore, scheduleSvc, notifier, cfg.Dispatch.BatchThreshold, logger)

	matchingSvc := matching.NewService(matching.NewStore(dbPool), orderStore, courierStore, depotStore, geo, cfg.Dispatch, notifier, logger)

	routingSvc := routing.NewService(routing.NewStore(dbPool), depotStore, geo, cfg.Dispatch, notifier, logger)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Order:    orderSvc,
		Matching: matchingSvc,
		Routing:  routingSvc,
		Courier:  courierSvc,
		Schedule: scheduleSvc,
		Depots:   depotStore,
		Log:      logger,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
