// internal/platform/di/shared/infra.go
package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	redisstore "koifarm/internal/adapters/out/redis"
	appcfg "koifarm/internal/infra/config"
	"koifarm/internal/infra/database"
)

// Infra is shared runtime infrastructure for DI.
//   - owns external clients (Firestore/FirebaseAuth/SecretManager/Redis/Postgres)
//   - every client is optional; only the one backing CART_STORE is strict
//
// Infra must NOT depend on routers or handlers.
type Infra struct {
	Config    *appcfg.Config
	ProjectID string
	Logger    *zap.Logger

	// Clients (owned; Close-managed)
	Firestore     *firestore.Client
	FirebaseApp   *firebase.App
	FirebaseAuth  *firebaseauth.Client
	SecretManager *secretmanager.Client
	Redis         *goredis.Client
	Postgres      *database.DB
}

// NewInfra initializes shared infra.
// The cart store backend is strict (return error). Firebase/Auth and SecretManager are
// best-effort (warn + continue).
func NewInfra(ctx context.Context, cfg *appcfg.Config, logger *zap.Logger) (*Infra, error) {
	if cfg == nil {
		return nil, errors.New("shared.infra: config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("shared.infra: %w", err)
	}

	inf := &Infra{
		Config:    cfg,
		ProjectID: strings.TrimSpace(cfg.FirestoreProjectID),
		Logger:    logger,
	}

	// 1) Cart store backend (strict)
	switch cfg.CartStore {
	case appcfg.CartStoreMemory:
		logger.Warn("[shared.infra] CART_STORE=memory (local only; carts are lost on restart)")
	case appcfg.CartStoreRedis:
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("shared.infra: redis: %w", err)
		}
		inf.Redis = client
		logger.Info("[shared.infra] Redis connected")
	case appcfg.CartStorePostgres:
		db, err := database.NewConnection(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("shared.infra: postgres: %w", err)
		}
		inf.Postgres = db
	case appcfg.CartStoreFirestore:
		if inf.ProjectID == "" {
			return nil, errors.New("shared.infra: projectID is empty (set FIRESTORE_PROJECT_ID or GOOGLE_CLOUD_PROJECT)")
		}
	default:
		return nil, fmt.Errorf("shared.infra: unknown CART_STORE %q", cfg.CartStore)
	}

	if inf.ProjectID == "" {
		logger.Info("[shared.infra] no GCP project configured (Firestore/Firebase/SecretManager disabled)")
		return inf, nil
	}

	clientOpts := inf.clientOptions()

	// 2) Firestore (strict only when it backs the cart store)
	{
		fsClient, err := firestore.NewClient(ctx, inf.ProjectID, clientOpts...)
		if err != nil {
			if cfg.CartStore == appcfg.CartStoreFirestore {
				_ = inf.Close()
				return nil, fmt.Errorf("shared.infra: firestore.NewClient failed (project=%s): %w", inf.ProjectID, err)
			}
			logger.Warn("[shared.infra] firestore.NewClient failed (role lookup disabled)", zap.Error(err))
		} else {
			inf.Firestore = fsClient
			logger.Info("[shared.infra] Firestore connected", zap.String("project", inf.ProjectID))
		}
	}

	// 3) Optional: Secret Manager client (role marker signing secret)
	if strings.TrimSpace(cfg.RoleCookieSecretName) != "" {
		sm, err := secretmanager.NewClient(ctx, clientOpts...)
		if err != nil {
			logger.Warn("[shared.infra] secretmanager.NewClient failed", zap.Error(err))
		} else {
			inf.SecretManager = sm
		}
	}

	// 4) Firebase App/Auth (best-effort)
	{
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: inf.ProjectID}, clientOpts...)
		if err != nil {
			logger.Warn("[shared.infra] firebase app init failed", zap.Error(err))
		} else {
			inf.FirebaseApp = fbApp
			authClient, err := fbApp.Auth(ctx)
			if err != nil {
				logger.Warn("[shared.infra] firebase auth init failed", zap.Error(err))
			} else {
				inf.FirebaseAuth = authClient
				logger.Info("[shared.infra] Firebase Auth initialized")
			}
		}
	}

	return inf, nil
}

func (i *Infra) clientOptions() []option.ClientOption {
	credFile := i.Config.CredentialsFile()
	if credFile == "" {
		i.Logger.Info("[shared.infra] using Application Default Credentials")
		return nil
	}
	i.Logger.Info("[shared.infra] using credentials file for GCP clients", zap.String("file", redactPath(credFile)))
	return []option.ClientOption{option.WithCredentialsFile(credFile)}
}

func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	var errs []error
	if i.Firestore != nil {
		errs = append(errs, i.Firestore.Close())
	}
	if i.SecretManager != nil {
		errs = append(errs, i.SecretManager.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.Postgres != nil {
		errs = append(errs, i.Postgres.Close())
	}
	return errors.Join(errs...)
}

// redactPath keeps only the last path segment.
func redactPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	last := parts[len(parts)-1]
	if last == "" {
		return "***"
	}
	return "***/" + last
}
