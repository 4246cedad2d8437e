package commands

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/tgcloud/internal/logger"
	"github.com/marmos91/tgcloud/pkg/bots"
	"github.com/marmos91/tgcloud/pkg/config"
	"github.com/marmos91/tgcloud/pkg/engine"
	"github.com/marmos91/tgcloud/pkg/metrics"
	"github.com/marmos91/tgcloud/pkg/models"
	"github.com/marmos91/tgcloud/pkg/store"
	badgerstore "github.com/marmos91/tgcloud/pkg/store/badger"
	mongostore "github.com/marmos91/tgcloud/pkg/store/mongo"
	"github.com/marmos91/tgcloud/pkg/telegram"
)

// service bundles everything a command needs: configuration, the metadata
// store, and the transfer engine wired to the Bot API.
type service struct {
	cfg      *config.Config
	store    store.Store
	engine   *engine.Engine
	registry *prometheus.Registry
}

// newService loads configuration, initializes logging, opens the metadata
// store, and registers the configured bots. Call close when done.
func newService(ctx context.Context) (*service, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	manager := bots.NewManager(st)
	if len(cfg.Bots) > 0 {
		roster := make([]models.Bot, len(cfg.Bots))
		for i, b := range cfg.Bots {
			roster[i] = models.Bot{BotID: b.ID, Token: b.Token}
		}
		if err := manager.Register(ctx, roster); err != nil {
			st.Close(ctx)
			return nil, err
		}
	}

	var (
		reg *prometheus.Registry
		m   *metrics.Metrics
	)
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		m = metrics.New(reg)
	}

	client := telegram.New(cfg.Telegram.APIURL)
	eng := engine.New(st, client, manager, engine.Config{
		ChatID:               cfg.Telegram.ChatID,
		ChunkSize:            int64(cfg.Transfer.ChunkSize),
		MaxGlobalConcurrency: cfg.Transfer.MaxGlobalConcurrency,
		MaxPerBotConcurrency: cfg.Transfer.MaxPerBotConcurrency,
	}, m)

	return &service{
		cfg:      cfg,
		store:    st,
		engine:   eng,
		registry: reg,
	}, nil
}

func (s *service) close(ctx context.Context) {
	if err := s.store.Close(ctx); err != nil {
		logger.Warn("failed to close metadata store", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "mongo":
		return mongostore.New(ctx, cfg.Database.URI, mongostore.WithDatabase(cfg.Database.Name))
	case "badger":
		return badgerstore.New(cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// initLogger initializes the structured logger from configuration.
func initLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
