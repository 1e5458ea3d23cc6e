// README: Entry point; loads config, wires infra and services, serves HTTP until signalled.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/sirupsen/logrus"

	"wastelink/internal/config"
	httptransport "wastelink/internal/http"
	"wastelink/internal/infra"
	"wastelink/internal/maps"
	"wastelink/internal/media"
	"wastelink/internal/modules/location"
	"wastelink/internal/modules/marketplace"
	"wastelink/internal/modules/matching"
	"wastelink/internal/modules/pickup"
	"wastelink/internal/modules/settlement"
	"wastelink/internal/modules/user"
	"wastelink/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	logger := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var fbApp *firebase.App
	if cfg.Firebase.ProjectID != "" {
		fbApp, err = infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, cfg.Firebase.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("firebase init")
		}
	}

	var verifier infra.TokenVerifier
	switch cfg.Auth.Mode {
	case "firebase":
		verifier, err = infra.NewFirebaseVerifier(ctx, fbApp)
		if err != nil {
			logger.WithError(err).Fatal("firebase auth")
		}
	default:
		verifier = infra.NewJWTVerifier(cfg.Auth.JWTSecret)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.WithError(err).Fatal("postgres")
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.WithError(err).Fatal("redis")
	}
	defer redisClient.Close()

	userStore := user.NewStore(dbPool)

	hub := realtime.NewHub(logger)
	sinks := realtime.Fanout{hub}
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		writer := infra.NewKafkaWriter(brokers)
		defer writer.Close()
		sinks = append(sinks, realtime.NewKafkaSink(writer, cfg.Kafka.TopicPrefix))
	}
	if fbApp != nil {
		if fcm, err := fbApp.Messaging(ctx); err != nil {
			logger.WithError(err).Warn("firebase messaging disabled")
		} else {
			sinks = append(sinks, realtime.NewPushSink(fcm, userStore))
		}
		if cfg.Firebase.DatabaseURL != "" {
			if rtdb, err := fbApp.Database(ctx); err != nil {
				logger.WithError(err).Warn("firebase rtdb disabled")
			} else {
				sinks = append(sinks, realtime.NewRTDBSink(rtdb))
			}
		}
	}
	notifier := realtime.NewNotifier(sinks, logger)

	matchingStore := matching.NewStore(redisClient)
	matchingSvc := matching.NewService(matching.NewIndex(matchingStore, logger), matchingStore, cfg.Matching, logger)

	rateStore := settlement.NewStore(dbPool)
	collection := settlement.NewCalculator(rateStore.Source(settlement.KindCollection), cfg.Settlement.Currency)
	market := settlement.NewCalculator(settlement.Chain{
		Primary:  rateStore.Source(settlement.KindMarket),
		Fallback: settlement.Static(settlement.DefaultMarketRates),
	}, cfg.Settlement.Currency)

	pickupStore := pickup.NewStore(dbPool)
	pickupSvc := pickup.NewService(pickupStore, matchingSvc, collection, notifier, logger).
		WithTable(pickup.DefaultTable(cfg.Transitions.Strict)).
		WithCollectorRegistry(userStore)
	if cfg.Maps.APIKey != "" {
		geocoder, err := maps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			logger.WithError(err).Warn("address fill-in disabled")
		} else {
			pickupSvc.WithAddressResolver(geocoder)
		}
	}

	marketSvc := marketplace.NewService(pickupStore, marketplace.NewStore(dbPool), pickupSvc.Table(), market, notifier, logger)
	userSvc := user.NewService(userStore, matchingStore, logger)
	locationSvc := location.NewService(matchingStore, location.NewStore(dbPool), pickupStore, notifier, logger)

	var mediaStorage *media.Storage
	if cfg.MinIO.Endpoint != "" {
		mc, err := infra.NewMinIO(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			logger.WithError(err).Warn("media uploads disabled")
		} else {
			mediaStorage = media.NewStorage(mc, cfg.MinIO.Bucket, cfg.MinIO.PublicURL)
		}
	}

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Pickup:         pickupSvc,
		Candidates:     matchingSvc,
		Marketplace:    marketSvc,
		Users:          userSvc,
		Location:       locationSvc,
		Media:          mediaStorage,
		Hub:            hub,
		Verifier:       verifier,
		Logger:         logger,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http shutdown")
		}
	}()

	logger.WithField("addr", cfg.HTTP.Addr).Info("wastelink api listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("http server")
	}
	notifier.Wait()
	logger.Info("shutdown complete")
}
