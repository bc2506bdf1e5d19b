package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"arcade-wager-backend/internal/chain"
	"arcade-wager-backend/internal/config"
	"arcade-wager-backend/internal/handlers"
	"arcade-wager-backend/internal/services"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	reloadTimeout   = 30 * time.Second
)

// offlineStartingBalance is minted to the offline identity, in whole tokens.
var offlineStartingBalance = big.NewInt(10000)

func main() {
	backend := slog.NewBackend(os.Stdout)
	log := backend.Logger("MAIN")

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Criticalf("Failed to load config: %v", err)
		os.Exit(1)
	}

	level, ok := slog.LevelFromString(cfg.LogLevel)
	if !ok {
		level = slog.LevelInfo
	}
	loggers := map[string]slog.Logger{}
	for _, name := range []string{"MAIN", "SYNC", "CHAN", "HTTP"} {
		l := backend.Logger(name)
		l.SetLevel(level)
		loggers[name] = l
	}
	log = loggers["MAIN"]

	if err := run(cfg, loggers); err != nil {
		log.Criticalf("%v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, loggers map[string]slog.Logger) error {
	log := loggers["MAIN"]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	gateway, closeGateway, err := openGateway(startCtx, cfg, loggers["CHAN"])
	if err != nil {
		return err
	}
	defer closeGateway()

	redisService, err := services.NewRedisService(startCtx, cfg)
	if err != nil {
		return err
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)

	synchronizer := services.NewSynchronizer(gateway, loggers["SYNC"])
	defer synchronizer.Close()

	mirror := services.NewBetMirror(redisService, gateway.Address().Hex(), loggers["SYNC"])
	mirror.Attach(synchronizer)

	wsHandler := handlers.NewWebSocketHandler(synchronizer, loggers["HTTP"])
	services.AttachBroadcaster(synchronizer, wsHandler)

	if err := synchronizer.Initialize(startCtx); err != nil {
		return err
	}
	if _, err := synchronizer.LoadUserBets(startCtx); err != nil {
		log.Warnf("Initial user bets load failed: %v", err)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.ReloadSchedule, func() {
		reloadCtx, cancel := context.WithTimeout(ctx, reloadTimeout)
		defer cancel()
		if _, err := synchronizer.LoadActiveBets(reloadCtx); err != nil {
			log.Warnf("Scheduled active bets reload failed: %v", err)
		}
		if _, err := synchronizer.LoadUserBets(reloadCtx); err != nil {
			log.Warnf("Scheduled user bets reload failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid RELOAD_SCHEDULE %q: %w", cfg.ReloadSchedule, err)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := newRouter(routerDeps{
		Synchronizer: synchronizer,
		Redis:        redisService,
		JWT:          jwtService,
		WebSocket:    wsHandler,
		APIKey:       cfg.APIKey,
		StaticDir:    cfg.StaticDir,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return wsHandler.Run(gctx)
	})

	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	g.Go(func() error {
		log.Infof("Server starting on port %s (identity %s)", cfg.Port, synchronizer.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("Shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openGateway dials the configured network, or builds the simulated
// contract seeded with demo bets when OFFLINE_MODE is set.
func openGateway(ctx context.Context, cfg *config.Config, log slog.Logger) (chain.Gateway, func(), error) {
	if cfg.OfflineMode {
		if !common.IsHexAddress(cfg.OfflineAddress) {
			return nil, nil, fmt.Errorf("invalid OFFLINE_ADDRESS %q", cfg.OfflineAddress)
		}
		identity := common.HexToAddress(cfg.OfflineAddress)

		sim := chain.NewSimulatedChain()
		sim.SeedDemoBets()
		sim.Mint(identity, new(big.Int).Mul(offlineStartingBalance, chain.TokenUnit))

		log.Warnf("Offline mode: using the simulated betting contract as %s", identity.Hex())
		return sim.Session(identity), func() {}, nil
	}

	gateway, err := chain.DialEthGateway(ctx, chain.EthConfig{
		RPCURL:         cfg.RPCURL,
		PrivateKey:     cfg.PrivateKey,
		ChainID:        cfg.ChainID,
		TokenAddress:   cfg.TokenAddress,
		BettingAddress: cfg.BettingAddress,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return gateway, gateway.Close, nil
}
