package main

import (
	"context"
	"fmt"
	"os"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/config"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/database"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/queue"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

type itemStore interface {
	GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error)
	ListQueueItems(ctx context.Context, status models.QueueStatus, limit, offset int) ([]*models.QueueItem, error)
	CountQueueItemsByStatus(ctx context.Context) (map[models.QueueStatus]int, error)
}

type requeuer interface {
	Requeue(ctx context.Context, itemID string) error
}

// commandContext lazily opens the backends a command needs
type commandContext struct {
	configPath string
	cfg        *config.Config

	openStore func(ctx context.Context) (itemStore, func(), error)
	openQueue func(ctx context.Context) (requeuer, func(), error)
	migrate   func(ctx context.Context) error
}

func newCommandContext() *commandContext {
	c := &commandContext{}
	c.openStore = c.defaultStore
	c.openQueue = c.defaultQueue
	c.migrate = c.defaultMigrate
	return c
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := c.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) logger() *logging.Logger {
	logger, err := logging.NewLogger(logging.Config{Level: "warn", Format: "console", Output: "stderr"})
	if err != nil {
		return logging.Nop()
	}
	return logger
}

func (c *commandContext) connect(ctx context.Context) (*database.DB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func (c *commandContext) defaultStore(ctx context.Context) (itemStore, func(), error) {
	db, err := c.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	return database.NewRepository(db, c.logger()), db.Close, nil
}

func (c *commandContext) defaultQueue(ctx context.Context) (requeuer, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	q, err := queue.New(cfg.Queue, c.logger())
	if err != nil {
		return nil, nil, err
	}
	return q, func() { q.Close() }, nil
}

func (c *commandContext) defaultMigrate(ctx context.Context) error {
	db, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Migrate(ctx)
}

func (c *commandContext) withStore(ctx context.Context, fn func(store itemStore) error) error {
	store, closeFn, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(store)
}
