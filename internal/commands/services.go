package commands

import (
	"context"
	"fmt"

	"github.com/hay-kot/storefront/internal/api"
	"github.com/hay-kot/storefront/internal/cartsync"
	"github.com/hay-kot/storefront/internal/checkout"
	"github.com/hay-kot/storefront/internal/core/cart"
	"github.com/hay-kot/storefront/internal/core/config"
	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/hay-kot/storefront/internal/core/session"
	"github.com/hay-kot/storefront/internal/store"
	"github.com/rs/zerolog"
)

// Services holds everything a command may need, built once per process.
type Services struct {
	Storage  store.Opened
	KV       *kv.Adapter
	Cart     *cart.Store
	Sessions *session.Manager
	API      *api.Client
	Syncer   *cartsync.Syncer
	Checkout *checkout.Service

	syncEnabled bool
	detach      func()
	log         zerolog.Logger
}

// NewServices opens storage and wires the components. Each component gets a
// logger tagged with its name.
func NewServices(cfg *config.Config, logger zerolog.Logger) (*Services, error) {
	component := func(name string) zerolog.Logger {
		return logger.With().Str("component", name).Logger()
	}

	opened, err := store.Open(cfg, component("storage"))
	if err != nil {
		return nil, err
	}

	var (
		adapter  = kv.NewAdapter(opened, component("kv"))
		carts    = cart.NewStore(adapter, component("cart"))
		sessions = session.NewManager(adapter, component("session"))
		client   = api.New(cfg.API.BaseURL, sessions,
			api.WithTimeout(cfg.API.Timeout),
			api.WithLogger(component("api")),
		)
	)

	return &Services{
		Storage:     opened,
		KV:          adapter,
		Cart:        carts,
		Sessions:    sessions,
		API:         client,
		Syncer:      cartsync.New(carts, client, sessions, component("sync")),
		Checkout:    checkout.NewService(carts, sessions, client, adapter, component("checkout")),
		syncEnabled: cfg.Sync.Enabled,
		log:         logger,
	}, nil
}

// StartSync hydrates the cart, reconciles it with the server cart when
// signed in, and from then on pushes every local change. Only the hydration
// happens when sync is disabled.
func (s *Services) StartSync(ctx context.Context) cartsync.Outcome {
	s.Cart.Load(ctx)
	if !s.syncEnabled {
		return cartsync.Outcome{Action: cartsync.ActionSkipped}
	}

	out := s.Syncer.PullAndReconcile(ctx)
	if s.detach == nil {
		s.detach = s.Syncer.Attach(ctx)
	}
	return out
}

// Close stops pushing changes, waits for in-flight pushes until ctx ends, and
// releases storage. Pushes still running when ctx ends are abandoned.
func (s *Services) Close(ctx context.Context) error {
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}

	if err := s.Syncer.Flush(ctx); err != nil {
		s.log.Warn().Err(err).Msg("abandoning pending cart sync")
	}
	if err := s.Storage.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
