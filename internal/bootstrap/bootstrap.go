// Package bootstrap holds the startup steps shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"

	"storefront-chat/internal/config"
	"storefront-chat/internal/database"
	"storefront-chat/internal/env"
	"storefront-chat/internal/logger"
	"storefront-chat/internal/service/directory"
	"storefront-chat/internal/service/message"

	"go.uber.org/zap"
)

const defaultMongoDatabase = "storefront_chat"

// Load reads .env, then the config file (explicit path, else CHAT_CONFIG_FILE),
// then builds the process logger.
func Load(configPath string) (*config.Config, *zap.Logger, error) {
	if err := env.Load(); err != nil {
		return nil, nil, err
	}
	if configPath == "" {
		configPath = env.Get(env.ConfigFile)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{Development: cfg.Log.Development, Level: cfg.Log.Level})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

type Stores struct {
	Messages  *message.Store
	Directory *directory.Directory
	close     func(context.Context) error
}

func (s *Stores) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStores connects the configured store driver.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts := message.Options{Location: loc, PageSize: cfg.History.PageSize}
	log := logger.L().Named("bootstrap")

	switch cfg.Store.Driver {
	case "dynamodb":
		db, err := database.NewDatabase(ctx)
		if err != nil {
			return nil, err
		}
		log.Info("using dynamodb store")
		return &Stores{
			Messages:  message.NewDynamoStore(db, opts),
			Directory: directory.NewDynamo(db),
		}, nil

	case "mongo":
		mdb, err := database.NewMongoDatabase(ctx, env.MustGet(env.MongoURI), env.GetOrDefault(env.MongoDatabase, defaultMongoDatabase))
		if err != nil {
			return nil, err
		}
		if err := mdb.EnsureIndexes(ctx); err != nil {
			_ = mdb.Close(context.Background())
			return nil, err
		}
		log.Info("using mongo store")
		return &Stores{
			Messages:  message.NewMongoStore(mdb, opts),
			Directory: directory.NewMongo(mdb),
			close:     mdb.Close,
		}, nil

	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return &Stores{
			Messages:  message.NewMemoryStore(opts),
			Directory: directory.NewMemory(),
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
