package main

import (
	"context"
	"fmt"
	"hidden-talk/auth"
	"hidden-talk/infrastructure/http/server"
	"hidden-talk/internal"
	"hidden-talk/repositories"
	"hidden-talk/runtime"
	"hidden-talk/runtime/workers"
	"hidden-talk/services"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal arrives.
// Errors are returned instead of exiting so deferred closes always run.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Store
	store, err := openStore(ctx, config, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing store...")
		_ = store.Close()
	}()

	// 3. Fan-out channel
	bus, err := openBus(config, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing fan-out channel...")
		_ = bus.Close()
	}()

	// 4. Credentials
	key, err := auth.DeriveSigningKey(config.CredentialSecret)
	if err != nil {
		return fmt.Errorf("credential key: %w", err)
	}
	issuer := auth.NewCredentialIssuer(key, config.RoomLifetime)

	// 5. Core
	keys := repositories.NewKeys(config.KeyPrefix)
	roomRepository := repositories.NewRoomRepository(store, keys)
	messageRepository := repositories.NewMessageRepository(store, keys, log)
	roomService := services.NewRoomService(roomRepository, messageRepository, bus, issuer, config.RoomLifetime, config.MaxParticipants, log)
	messageService := services.NewMessageService(roomRepository, messageRepository, bus, log)
	relay := runtime.NewRelay(bus, runtime.NewRegistry(), log)

	// 6. Transport
	handler := server.NewHandler(roomService, messageService, auth.NewGuard(issuer), relay, server.Options{
		CookieSecure:         config.CookieSecure,
		CookieMaxAge:         config.RoomLifetime,
		ConnectionBufferSize: config.ConnectionBufferSize,
		DeliveryTimeout:      config.DeliveryTimeout,
	}, log)

	// 7. Supervision
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	supervisor.Add(
		workers.NewHTTPServerWorker(log, config.Address(), server.NewRouter(handler), config.ShutdownTimeout),
		workers.NewHealthWorker(log, config.HealthAddress(), store, config.HealthInterval),
		relay,
	)

	log.Info("hidden-talk starting",
		"address", config.Address(),
		"health_address", config.HealthAddress(),
		"store", config.StoreBackend,
		"fanout", config.FanoutBackend,
		"room_lifetime", config.RoomLifetime)
	supervisor.Run(ctx)
	log.Info("Program stopped cleanly")
	return nil
}
