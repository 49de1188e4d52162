package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"shopscout.ai/internal/blockworld"
	"shopscout.ai/internal/catalogs"
	"shopscout.ai/internal/config"
	"shopscout.ai/internal/finder"
	"shopscout.ai/internal/hidden"
	persistlog "shopscout.ai/internal/persistence/log"
	"shopscout.ai/internal/persistence/shopdb"
	"shopscout.ai/internal/primary"
	"shopscout.ai/internal/protocol"
	"shopscout.ai/internal/safeloc"
	"shopscout.ai/internal/search"
	"shopscout.ai/internal/transport/ws"
	"shopscout.ai/internal/warps"
)

type runtimeConfig struct {
	ConfigDir     string
	SettingsPath  string
	DataDir       string
	DBPath        string
	AuditLogs     bool
	PrimaryQueue  int
	WatchSettings bool
}

// serverRuntime owns every long-lived component of one server process.
type serverRuntime struct {
	cfg    runtimeConfig
	log    *log.Logger
	live   *config.Live
	cats   *catalogs.Catalogs
	db     *shopdb.Store
	blocks *blockworld.Store
	loop   *primary.Loop
	engine *search.Engine
	warps  *warps.Directory
	finder *finder.Service
	ws     *ws.Server

	searchLog   *persistlog.SearchLogger
	teleportLog *persistlog.TeleportLogger
}

func loadSettings(path string) (config.Settings, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s, err := config.Load("")
		return s, false, err
	}
	s, err := config.Load(path)
	return s, true, err
}

func buildRuntime(ctx context.Context, cfg runtimeConfig, logger *log.Logger) (*serverRuntime, error) {
	settings, fromFile, err := loadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if !fromFile {
		logger.Warn("settings file not found; using defaults", "path", cfg.SettingsPath)
	}
	live := config.NewLive(settings)

	// Missing catalog files fall back to the built-in defaults.
	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, err
	}
	db, err := shopdb.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt := &serverRuntime{cfg: cfg, log: logger, live: live, cats: cats, db: db}
	if err := db.UpsertCatalogs(ctx, cats, settings); err != nil {
		logger.Warn("store: upsert catalogs", "err", err)
	}

	rt.blocks, err = blockworld.Load(ctx, db, cats.Blocks)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load block worlds: %w", err)
	}

	rt.loop = primary.NewLoop(cfg.PrimaryQueue)
	go func() {
		if err := rt.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("primary loop stopped", "err", err)
		}
	}()

	rt.engine = search.NewEngine(search.Options{
		Registry: db,
		Economy:  db,
		Primary:  rt.loop,
		Settings: live,
		Logger:   logger,
	})

	rt.warps = warps.NewDirectory(db, logger)
	if err := rt.warps.Refresh(ctx); err != nil {
		logger.Warn("warp directory refresh failed", "err", err)
	}

	hs := &hidden.FileStore{Path: filepath.Join(cfg.DataDir, "userdata.json")}
	table, err := hs.Load()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("load hidden shops: %w", err)
	}

	deps := finder.Deps{
		Settings:    live,
		Catalogs:    cats,
		Registry:    db,
		Economy:     db,
		Primary:     rt.loop,
		Engine:      rt.engine,
		Safe:        safeloc.New(rt.blocks, cats.Blocks.Classification()),
		Warps:       rt.warps,
		Hidden:      hidden.NewCache(table),
		HiddenStore: hs,
		Players:     db,
		Audit:       db,
		Logger:      logger,
	}
	if cfg.AuditLogs {
		rt.searchLog = persistlog.NewSearchLogger(cfg.DataDir)
		rt.teleportLog = persistlog.NewTeleportLogger(cfg.DataDir)
		deps.SearchLog = rt.searchLog
		deps.TeleportLog = rt.teleportLog
	}
	rt.finder, err = finder.New(deps)
	if err != nil {
		rt.Close()
		return nil, err
	}

	validator, err := protocol.NewValidator()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("protocol schemas: %w", err)
	}
	rt.ws = ws.NewServer(rt.finder, validator, cats, logger)

	if cfg.WatchSettings && fromFile {
		err := live.Watch(ctx, cfg.SettingsPath, logger, func(old, cur config.Settings) {
			rt.finder.SettingsChanged(ctx, old, cur)
		})
		if err != nil {
			logger.Warn("settings watch disabled", "err", err)
		}
	}
	return rt, nil
}

func (rt *serverRuntime) Close() {
	if rt.finder != nil {
		if err := rt.finder.Close(); err != nil {
			rt.log.Error("save hidden shops", "err", err)
		}
	}
	if rt.loop != nil {
		rt.loop.Stop()
	}
	if rt.searchLog != nil {
		_ = rt.searchLog.Close()
	}
	if rt.teleportLog != nil {
		_ = rt.teleportLog.Close()
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.log.Error("close store", "err", err)
		}
	}
}
