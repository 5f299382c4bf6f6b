// internal/platform/di/storefront/container.go
package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"koifarm/internal/adapters/in/http/middleware"
	"koifarm/internal/adapters/in/http/storefront/handler"
	outdb "koifarm/internal/adapters/out/db"
	outfs "koifarm/internal/adapters/out/firestore"
	"koifarm/internal/adapters/out/memory"
	redisstore "koifarm/internal/adapters/out/redis"
	usecase "koifarm/internal/application/usecase"
	"koifarm/internal/domain/access"
	cartdom "koifarm/internal/domain/cart"
	appcfg "koifarm/internal/infra/config"
	"koifarm/internal/infra/secret"
	shared "koifarm/internal/platform/di/shared"
)

// redisCartTTL matches the Firestore cart TTL.
const redisCartTTL = outfs.DefaultCartTTL

// Container is the storefront DI container.
// Pure DI: build deps only. Routing lives in the storefront router.
type Container struct {
	Infra *shared.Infra

	Policy   *access.Policy
	Marker   *middleware.RoleMarker
	Registry *usecase.CartRegistry

	CartHandler    *handler.CartHandler
	SessionHandler *handler.SessionHandler
}

// NewContainer wires the storefront on top of shared infra.
func NewContainer(ctx context.Context, inf *shared.Infra) (*Container, error) {
	if inf == nil || inf.Config == nil {
		return nil, errors.New("di.storefront: infra is nil")
	}
	cfg := inf.Config
	logger := inf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	policy, err := appcfg.LoadPolicy(cfg.AccessPolicyFile)
	if err != nil {
		return nil, fmt.Errorf("di.storefront: %w", err)
	}

	cookieSecret, err := resolveCookieSecret(ctx, inf)
	if err != nil {
		return nil, fmt.Errorf("di.storefront: %w", err)
	}
	if len(cookieSecret) == 0 {
		logger.Warn("[di.storefront] role marker is unsigned (set ROLE_COOKIE_SECRET or ROLE_COOKIE_SECRET_NAME)")
	}
	marker := &middleware.RoleMarker{
		Secret: cookieSecret,
		Secure: cfg.CookieSecure,
	}

	store, err := buildCartStore(ctx, inf)
	if err != nil {
		return nil, fmt.Errorf("di.storefront: %w", err)
	}
	registry := usecase.NewCartRegistry(store, logger, usecase.WithMaxCarts(cfg.CartCacheSize))

	session := &handler.SessionHandler{
		Marker: marker,
		Policy: policy,
		Logger: logger,
	}
	// keep the interfaces nil (not typed-nil) when the clients are absent
	if inf.FirebaseAuth != nil {
		session.Verifier = inf.FirebaseAuth
	} else {
		logger.Warn("[di.storefront] Firebase Auth not initialized (sign-in will return 503)")
	}
	if inf.Firestore != nil {
		session.Roles = outfs.NewRoleRepositoryFS(inf.Firestore)
	}

	logger.Info("[di.storefront] container ready",
		zap.String("cartStore", cfg.CartStore),
		zap.Int("routeRules", len(policy.Rules)),
	)

	return &Container{
		Infra:          inf,
		Policy:         policy,
		Marker:         marker,
		Registry:       registry,
		CartHandler:    handler.NewCartHandler(registry, logger, cfg.CookieSecure),
		SessionHandler: session,
	}, nil
}

// Close flushes pending cart writes. Infra is closed by its owner.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Registry == nil {
		return nil
	}
	return c.Registry.Close(ctx)
}

func buildCartStore(ctx context.Context, inf *shared.Infra) (cartdom.Store, error) {
	switch inf.Config.CartStore {
	case appcfg.CartStoreMemory:
		return memory.NewCartStore(), nil
	case appcfg.CartStoreRedis:
		if inf.Redis == nil {
			return nil, errors.New("redis client is nil")
		}
		return redisstore.NewCartStore(inf.Redis, redisstore.CartStoreOptions{TTL: redisCartTTL}), nil
	case appcfg.CartStorePostgres:
		if inf.Postgres == nil || inf.Postgres.Client == nil {
			return nil, errors.New("postgres client is nil")
		}
		store := outdb.NewCartStorePG(inf.Postgres.Client)
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.EnsureSchema(schemaCtx); err != nil {
			return nil, err
		}
		return store, nil
	case appcfg.CartStoreFirestore:
		if inf.Firestore == nil {
			return nil, errors.New("firestore client is nil")
		}
		return outfs.NewCartStoreFS(inf.Firestore), nil
	default:
		return nil, fmt.Errorf("unknown cart store %q", inf.Config.CartStore)
	}
}

// resolveCookieSecret prefers ROLE_COOKIE_SECRET, then the Secret Manager secret.
func resolveCookieSecret(ctx context.Context, inf *shared.Infra) ([]byte, error) {
	cfg := inf.Config
	if v := strings.TrimSpace(cfg.RoleCookieSecret); v != "" {
		return []byte(v), nil
	}
	name := strings.TrimSpace(cfg.RoleCookieSecretName)
	if name == "" {
		return nil, nil
	}

	p := &secret.ProviderSM{SM: inf.SecretManager, ProjectID: inf.ProjectID}
	v, err := p.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("role cookie secret: %w", err)
	}
	return []byte(v), nil
}
