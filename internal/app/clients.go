package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/coursegate-backend/internal/platform/gcp"
	"github.com/yungbote/coursegate-backend/internal/platform/logger"
	"github.com/yungbote/coursegate-backend/internal/platform/sendgrid"
	"github.com/yungbote/coursegate-backend/internal/platform/validate"
	"github.com/yungbote/coursegate-backend/internal/realtime/bus"
)

type Clients struct {
	// Redis and SSEBus are nil when REDIS_ADDR is unset.
	Redis  *goredis.Client
	SSEBus bus.Bus
	Store  gcp.ObjectStore
	// Mail is nil when SENDGRID_API_KEY is unset.
	Mail      sendgrid.Client
	Validator *validate.Validator
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	validator, err := validate.New(cfg.PhonePattern)
	if err != nil {
		return Clients{}, fmt.Errorf("init validator: %w", err)
	}

	// Redis
	var (
		rdb    *goredis.Client
		sseBus bus.Bus
	)
	if cfg.Redis.Addr != "" {
		rdb, err = bus.NewRedisClient(cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		sseBus, err = bus.NewRedisBus(log, rdb, cfg.Redis.Channel)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
	}

	// Gcs
	store, err := resolveObjectStore(log, cfg.Storage)
	if err != nil {
		if sseBus != nil {
			_ = sseBus.Close()
		}
		return Clients{}, fmt.Errorf("init object store: %w", err)
	}

	// SendGrid
	var mail sendgrid.Client
	if cfg.SendGrid.APIKey != "" {
		mail, err = sendgrid.New(log, cfg.SendGrid)
		if err != nil {
			_ = store.Close()
			if sseBus != nil {
				_ = sseBus.Close()
			}
			return Clients{}, fmt.Errorf("init sendgrid: %w", err)
		}
	}

	return Clients{
		Redis:     rdb,
		SSEBus:    sseBus,
		Store:     store,
		Mail:      mail,
		Validator: validator,
	}, nil
}

func (c Clients) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	// The bus owns the shared redis client.
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
}
