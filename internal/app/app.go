// Package app wires configuration into the person service and its HTTP
// router. Both the API server and peoplectl start from here.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/peoplebook/peoplebook/handlers"
	"github.com/peoplebook/peoplebook/internal/auth"
	"github.com/peoplebook/peoplebook/internal/config"
	"github.com/peoplebook/peoplebook/internal/database"
	"github.com/peoplebook/peoplebook/internal/person/handler"
	"github.com/peoplebook/peoplebook/internal/person/repository"
	"github.com/peoplebook/peoplebook/internal/person/service"
	"github.com/peoplebook/peoplebook/internal/storage"
	"github.com/peoplebook/peoplebook/pkg/logger"
	"github.com/peoplebook/peoplebook/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Runtime holds the long-lived clients behind a Service.
type Runtime struct {
	Service  *service.Service
	Redis    *redis.Client
	Mongo    *mongo.Client
	Verifier middleware.Verifier
	Started  time.Time
}

// Close releases the database and cache connections.
func (rt *Runtime) Close(ctx context.Context) {
	if rt.Mongo != nil {
		if err := rt.Mongo.Disconnect(ctx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
}

// Open connects the configured backends. Without MONGO_URI the in-memory
// store is used; Redis and MinIO are optional and skipped when unreachable.
func Open(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Started: time.Now()}

	var repo repository.Repository
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectWithRetry(ctx, database.ConnectMongo, cfg.MongoDB.URI, cfg.MongoDB.Timeout, database.DefaultRetry)
		if err != nil {
			return nil, err
		}
		rt.Mongo = client
		mr := repository.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection))
		if err := mr.EnsureIndexes(ctx); err != nil {
			logger.Warnf("failed to create person indexes: %v", err)
		}
		repo = mr
		logger.Infof("using MongoDB store %s.%s", cfg.MongoDB.Database, cfg.MongoDB.Collection)
	} else {
		repo = repository.NewMemoryRepo()
		logger.Warn("MONGO_URI not set, people are kept in memory")
	}

	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
			_ = client.Close()
		} else {
			rt.Redis = client
			logger.Infof("connected to Redis %s", cfg.Redis.Addr())
		}
	}
	if rt.Redis != nil && cfg.Cache.Enabled {
		repo = repository.NewCachedRepo(repo, rt.Redis, cfg.Cache.Prefix, cfg.Cache.TTL)
	}

	var opts []service.Option
	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("snapshot storage disabled: %v", err)
		} else {
			opts = append(opts, service.WithSnapshots(store))
		}
	}
	rt.Service = service.NewService(repo, opts...)

	ver, err := NewVerifier(ctx, cfg.Auth)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	rt.Verifier = ver
	return rt, nil
}

// NewVerifier returns the bearer token verifier for cfg, or nil when auth is off.
// OIDC wins when both an issuer and a JWT secret are configured.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (middleware.Verifier, error) {
	switch {
	case cfg.OIDCIssuer != "" && cfg.OIDCClientID != "":
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		return v, nil
	case cfg.JWTSecret != "":
		v, err := auth.NewHMACVerifier(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, nil
}

// NewRouter builds the HTTP API around rt.
func NewRouter(cfg *config.Config, rt *Runtime) *gin.Engine {
	r := gin.New()

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := map[string]bool{"store": rt.Service.Ping(ctx) == nil}
		if rt.Redis != nil {
			deps["redis"] = rt.Redis.Ping(ctx).Err() == nil
		}
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(rt.Started).String()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	var mw handler.Middleware
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rt.Redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			mw.Limit = middleware.RedisRateLimitMiddleware(rt.Redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			mw.Limit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}
	if rt.Verifier != nil {
		mw.Auth = middleware.AuthMiddleware(rt.Verifier)
	}
	handler.RegisterPersonRoutes(r, rt.Service, mw)
	return r
}

// Addr is the listen address for cfg.
func Addr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
}
