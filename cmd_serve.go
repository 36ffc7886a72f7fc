package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dungeonsync/config"
	"dungeonsync/logger"
	"dungeonsync/server"
	"dungeonsync/store"
	"dungeonsync/transport"
)

func serveCmd() *cobra.Command {
	var (
		listen     string
		admin      string
		storeKind  string
		maxPlayers int
		logLevel   string
		console    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dungeon server",
		Long: `Run the authoritative dungeon server.

The game protocol is served on the listen address as length-prefixed
frames, and over WebSocket at /ws on the admin address, which also
exposes /healthz, /metrics and the /admin API.

Examples:
  dungeonsync serve
  dungeonsync serve --listen 0.0.0.0:8800 --store file
  dungeonsync serve --admin "" --max-players 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.ListenAddr = listen
			}
			if flags.Changed("admin") {
				cfg.AdminAddr = admin
			}
			if flags.Changed("store") {
				cfg.StoreDriver = storeKind
			}
			if flags.Changed("max-players") {
				cfg.MaxPlayers = maxPlayers
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, console)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Game listen address (default from DUNGEON_LISTEN_ADDR)")
	cmd.Flags().StringVar(&admin, "admin", "", "Admin/WebSocket HTTP address, empty disables")
	cmd.Flags().StringVar(&storeKind, "store", "", "Character store: memory, file or postgres")
	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "Maximum open connections, 0 for no limit")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	cmd.Flags().BoolVar(&console, "console", true, "Also log to stderr")

	return cmd
}

func runServe(parent context.Context, cfg *config.Server, console bool) error {
	if err := logger.Init(logger.Options{File: cfg.LogFile, Level: cfg.LogLevel, Console: console}); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		Dir:         cfg.StoreDir,
		DatabaseURL: cfg.DatabaseURL,
		CacheSize:   cfg.CacheSize,
		CacheTTL:    cfg.CacheTTL,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(server.Config{
		Addr: cfg.ListenAddr,
		Transport: transport.Options{
			MaxFrameSize: cfg.MaxFrameSize,
			ReadTimeout:  cfg.IdleTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		MaxPlayers: cfg.MaxPlayers,
		Spawn:      server.SpawnConfig{Interval: cfg.SpawnInterval, MaxItems: cfg.MaxFloorItems},
	}, st)

	var httpSrv *http.Server
	if cfg.AdminAddr != "" {
		httpSrv = &http.Server{Addr: cfg.AdminAddr, Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Log.Infof("admin listening on http://%s/", cfg.AdminAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Errorf("admin listen: %v", err)
			}
		}()
	}

	err = srv.ListenAndServe(ctx)
	// Closes WebSocket players too when the game listener never came up.
	srv.Shutdown()
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return err
}
