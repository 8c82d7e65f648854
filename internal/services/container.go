package services

import (
	"context"
	"fmt"
	"time"

	"github.com/nexconsult/cnpj-analytics/internal/aggregate"
	"github.com/nexconsult/cnpj-analytics/internal/config"
	"github.com/nexconsult/cnpj-analytics/internal/filter"
	"github.com/nexconsult/cnpj-analytics/internal/warehouse"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Container holds all service dependencies
type Container struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client
	gateway     warehouse.Gateway
	engine      *aggregate.Engine
	stopCleanup context.CancelFunc

	AnalyticsService AnalyticsServiceInterface
	CacheService     CacheServiceInterface
	ReferenceService ReferenceServiceInterface
	IBGEService      IBGEServiceInterface
	ExportService    ExportServiceInterface
}

// NewContainer opens the warehouse and wires every service
func NewContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	gateway, err := warehouse.Open(ctx, cfg.Warehouse, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	return NewContainerWithGateway(ctx, cfg, gateway, logger)
}

// NewContainerWithGateway wires services over an already open gateway
func NewContainerWithGateway(ctx context.Context, cfg *config.Config, gateway warehouse.Gateway, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config:  cfg,
		logger:  logger,
		gateway: gateway,
	}

	if err := container.initRedis(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	container.initServices()
	return container, nil
}

// initRedis connects to Redis when enabled; failures degrade to memory cache
func (c *Container) initRedis(ctx context.Context) error {
	if !c.config.Redis.Enabled {
		c.logger.Info("Redis disabled, using in-memory cache")
		return nil
	}

	c.redisClient = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.redisClient.Ping(pingCtx).Err(); err != nil {
		c.logger.WithError(err).Warn("Redis connection failed, running with in-memory cache")
		_ = c.redisClient.Close()
		c.redisClient = nil
	} else {
		c.logger.Info("Redis connection established")
	}

	return nil
}

func (c *Container) initServices() {
	cache := NewCacheService(c.redisClient, c.config.Cache.KeyPrefix, c.config.Cache.ReferenceTTL, c.logger)
	cleanupCtx, stop := context.WithCancel(context.Background())
	c.stopCleanup = stop
	cache.StartCleanupRoutine(cleanupCtx, 5*time.Minute)
	c.CacheService = cache

	policy := filter.NewScopePolicy(c.config.Engine.ScopeLow, c.config.Engine.ScopeHigh)
	c.engine = aggregate.NewEngine(c.gateway, filter.NewCompiler(policy), aggregate.Options{
		DefaultListingLimit: c.config.Engine.DefaultListingLimit,
		MaxListingLimit:     c.config.Engine.MaxListingLimit,
		TrendSampleSize:     c.config.Engine.TrendSampleSize,
		LocalityTopN:        c.config.Engine.LocalityTopN,
		MaxConcurrency:      c.config.Engine.MaxConcurrency,
	}, c.logger)

	c.IBGEService = NewIBGEService(c.config.IBGE, c.CacheService, c.config.Cache.IBGETTL, c.logger)
	c.AnalyticsService = NewAnalyticsService(c.engine, c.IBGEService, c.logger)
	c.ReferenceService = NewReferenceService(c.gateway, c.CacheService, policy, c.config.Cache.ReferenceTTL, c.logger)
	c.ExportService = NewExportService(c.logger)
}

// Close closes all service connections
func (c *Container) Close() error {
	var errors []error

	if c.stopCleanup != nil {
		c.stopCleanup()
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if c.gateway != nil {
		if err := c.gateway.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close warehouse: %w", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errors)
	}

	return nil
}

// Health checks the health of all services
func (c *Container) Health(ctx context.Context) map[string]interface{} {
	health := c.CacheService.Health()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.gateway.Ping(pingCtx); err != nil {
		health["warehouse"] = map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	} else {
		health["warehouse"] = map[string]interface{}{
			"status":  "healthy",
			"dialect": c.gateway.Dialect().Name(),
		}
	}

	return health
}

// Ready reports whether the warehouse answers
func (c *Container) Ready(ctx context.Context) error {
	return c.gateway.Ping(ctx)
}

// WarehouseStats returns gateway counters when the gateway exposes them
func (c *Container) WarehouseStats() (warehouse.Stats, bool) {
	if s, ok := c.gateway.(interface{ Stats() warehouse.Stats }); ok {
		return s.Stats(), true
	}
	return warehouse.Stats{}, false
}

// GetRedisClient returns the Redis client
func (c *Container) GetRedisClient() *redis.Client {
	return c.redisClient
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logrus.Logger {
	return c.logger
}
