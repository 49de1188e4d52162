package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
)

func main() {
	var (
		addr         = flag.String("addr", "", "http listen address (default: server.listen from settings)")
		configDir    = flag.String("configs", "./configs", "catalog directory (blocks.json, items.json)")
		settingsPath = flag.String("settings", "./configs/settings.yaml", "settings.yaml path; watched for changes")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		dbPath       = flag.String("db", "", "sqlite store path (default: <data>/shops.sqlite)")
		disableLogs  = flag.Bool("disable_audit_logs", false, "do not write jsonl.zst search/teleport logs")
		debug        = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "server",
		ReportTimestamp: true,
		TimeFormat:      time.StampMicro,
	})
	if *debug {
		logger.SetLevel(log.DebugLevel)
	}

	ctx, cancel := signalContext()
	defer cancel()

	db := strings.TrimSpace(*dbPath)
	if db == "" {
		db = filepath.Join(*dataDir, "shops.sqlite")
	}
	rt, err := buildRuntime(ctx, runtimeConfig{
		ConfigDir:     *configDir,
		SettingsPath:  *settingsPath,
		DataDir:       *dataDir,
		DBPath:        db,
		AuditLogs:     !*disableLogs,
		PrimaryQueue:  envInt("SHOPSCOUT_PRIMARY_QUEUE", 256),
		WatchSettings: true,
	}, logger)
	if err != nil {
		logger.Fatal("startup failed", "err", err)
	}
	defer rt.Close()

	listen := strings.TrimSpace(*addr)
	if listen == "" {
		listen = rt.live.Load().Server.Listen
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           buildMux(rt),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", "addr", listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("ListenAndServe", "err", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
