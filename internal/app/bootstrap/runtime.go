package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/intake-engine/internal/business"
	appconfig "github.com/wolfman30/intake-engine/internal/config"
	"github.com/wolfman30/intake-engine/internal/session"
	"github.com/wolfman30/intake-engine/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || cfg.UseMemoryStore || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to DATABASE_URL. It returns nil without a URL or
// in memory mode.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	if cfg == nil || cfg.UseMemoryStore || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}

// BuildSessionKV picks Redis when available and process memory otherwise.
func BuildSessionKV(redisClient *redis.Client, logger *logging.Logger) session.KV {
	if redisClient == nil {
		if logger == nil {
			logger = logging.Default()
		}
		logger.Warn("no redis configured; widget sessions are kept in memory")
		return session.NewMemoryKV()
	}
	return session.NewRedisKV(redisClient)
}

// BuildBusinessProfile assembles the seed profile from config. Hours come
// from BUSINESS_HOURS_FILE when set and the default policy otherwise.
func BuildBusinessProfile(cfg *appconfig.Config) (business.Profile, error) {
	if cfg == nil {
		return business.Profile{}, fmt.Errorf("bootstrap: config is required")
	}
	profile := business.Profile{
		Name:     cfg.BusinessName,
		Tag:      cfg.BusinessProfileTag,
		Services: cfg.Services,
		Hours:    business.DefaultPolicy(cfg.ReferenceTimezone),
	}
	if path := strings.TrimSpace(cfg.BusinessHoursFile); path != "" {
		hours, err := business.LoadPolicyFile(path)
		if err != nil {
			return business.Profile{}, fmt.Errorf("bootstrap: %w", err)
		}
		profile.Hours = hours
	}
	if err := profile.Hours.Validate(); err != nil {
		return business.Profile{}, fmt.Errorf("bootstrap: %w", err)
	}
	return profile, nil
}

// BuildProfileStore keeps admin edits in Redis when it is available.
func BuildProfileStore(redisClient *redis.Client, seed business.Profile) business.ProfileStore {
	if redisClient == nil {
		return business.NewMemoryStore(seed)
	}
	return business.NewStore(redisClient, seed)
}
