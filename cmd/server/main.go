// Command server starts the clipflow upload backend: signature issuance and
// video reference persistence over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"clipflow/internal/api"
	"clipflow/internal/auth"
	"clipflow/internal/observability/logging"
	"clipflow/internal/observability/metrics"
	"clipflow/internal/server"
	"clipflow/internal/serverutil"
	"clipflow/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	storageDriver := flag.String("storage-driver", "", "datastore driver (memory or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresConnLifetime := flag.Duration("postgres-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresConnectTimeout := flag.Duration("postgres-connect-timeout", 0, "timeout when opening a Postgres connection")
	registryDriver := flag.String("registry-driver", "", "signature registry driver (memory or redis)")
	redisAddr := flag.String("redis-addr", "", "Redis address for the signature registry")
	redisUsername := flag.String("redis-username", "", "Redis username for the signature registry")
	redisPassword := flag.String("redis-password", "", "Redis password for the signature registry")
	signingSecret := flag.String("signing-secret", "", "HMAC secret for upload signatures")
	signingAPIKey := flag.String("signing-api-key", "", "API key embedded in issued credentials")
	signingCloud := flag.String("signing-cloud", "", "storage cloud identifier embedded in issued credentials")
	signatureTTL := flag.Duration("signature-ttl", 0, "validity window for issued signatures")
	tokenHash := flag.String("token-hash", "", "PBKDF2 hash of the API bearer token")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log output format (json or text)")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed to call the API")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	signatureLimit := flag.Int("rate-signature-limit", 0, "maximum signature requests per window for a single IP")
	signatureWindow := flag.Duration("rate-signature-window", 0, "window for counting signature requests")
	rateRedisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed signature throttling")
	rateRedisPassword := flag.String("rate-redis-password", "", "Redis password for distributed signature throttling")
	rateRedisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for rate limiter Redis operations")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("CLIPFLOW_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("CLIPFLOW_LOG_FORMAT")),
	})
	recorder := metrics.Default()

	secret := firstNonEmpty(*signingSecret, os.Getenv("CLIPFLOW_SIGNING_SECRET"))
	if secret == "" {
		logger.Error("signing secret is required: set --signing-secret or CLIPFLOW_SIGNING_SECRET")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, storeSettings{
		Driver:         firstNonEmpty(*storageDriver, os.Getenv("CLIPFLOW_STORAGE_DRIVER")),
		DSN:            firstNonEmpty(*postgresDSN, os.Getenv("CLIPFLOW_POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		MaxConns:       resolveInt(*postgresMaxConns, "CLIPFLOW_POSTGRES_MAX_CONNS"),
		MinConns:       resolveInt(*postgresMinConns, "CLIPFLOW_POSTGRES_MIN_CONNS"),
		ConnLifetime:   resolveDuration(*postgresConnLifetime, "CLIPFLOW_POSTGRES_CONN_LIFETIME", 0),
		ConnectTimeout: resolveDuration(*postgresConnectTimeout, "CLIPFLOW_POSTGRES_CONNECT_TIMEOUT", 0),
	}, logger)
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	registry, err := openRegistry(ctx, registrySettings{
		Driver:   firstNonEmpty(*registryDriver, os.Getenv("CLIPFLOW_REGISTRY_DRIVER")),
		Addr:     firstNonEmpty(*redisAddr, os.Getenv("CLIPFLOW_REDIS_ADDR")),
		Username: firstNonEmpty(*redisUsername, os.Getenv("CLIPFLOW_REDIS_USERNAME")),
		Password: firstNonEmpty(*redisPassword, os.Getenv("CLIPFLOW_REDIS_PASSWORD")),
	}, logger)
	if err != nil {
		logger.Error("failed to open signature registry", "error", err)
		os.Exit(1)
	}
	defer registry.Close()

	handler := api.NewHandler(store, registry, api.SignerConfig{
		Secret: secret,
		APIKey: firstNonEmpty(*signingAPIKey, os.Getenv("CLIPFLOW_SIGNING_API_KEY")),
		Cloud:  firstNonEmpty(*signingCloud, os.Getenv("CLIPFLOW_SIGNING_CLOUD")),
	})
	handler.Logger = logging.WithComponent(logger, "api")
	handler.Metrics = recorder
	if ttl := resolveDuration(*signatureTTL, "CLIPFLOW_SIGNATURE_TTL", 0); ttl > 0 {
		handler.SignatureTTL = ttl
	}

	verifier := auth.NewVerifier(firstNonEmpty(*tokenHash, os.Getenv("CLIPFLOW_API_TOKEN_HASH")), logging.WithComponent(logger, "auth"))

	listenAddr := firstNonEmpty(*addr, os.Getenv("CLIPFLOW_ADDR"))
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("CLIPFLOW_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("CLIPFLOW_TLS_KEY")),
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("CLIPFLOW_CORS_ORIGINS"))),
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:       resolveFloat(*globalRPS, "CLIPFLOW_RATE_GLOBAL_RPS"),
			GlobalBurst:     resolveInt(*globalBurst, "CLIPFLOW_RATE_GLOBAL_BURST"),
			SignatureLimit:  resolveInt(*signatureLimit, "CLIPFLOW_RATE_SIGNATURE_LIMIT"),
			SignatureWindow: resolveDuration(*signatureWindow, "CLIPFLOW_RATE_SIGNATURE_WINDOW", time.Minute),
			RedisAddr:       firstNonEmpty(*rateRedisAddr, os.Getenv("CLIPFLOW_RATE_REDIS_ADDR")),
			RedisPassword:   firstNonEmpty(*rateRedisPassword, os.Getenv("CLIPFLOW_RATE_REDIS_PASSWORD")),
			RedisTimeout:    resolveDuration(*rateRedisTimeout, "CLIPFLOW_RATE_REDIS_TIMEOUT", 2*time.Second),
		},
		Auth:    verifier,
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	logger.Info("clipflow API listening", "addr", listenAddr)
	logger.Info("metrics endpoint available", "path", "/metrics")
	if err := serverutil.Run(ctx, serverutil.Config{Service: srv}); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

type storeSettings struct {
	Driver         string
	DSN            string
	MaxConns       int
	MinConns       int
	ConnLifetime   time.Duration
	ConnectTimeout time.Duration
}

func openStore(ctx context.Context, settings storeSettings, logger *slog.Logger) (storage.VideoRepository, error) {
	driver := strings.ToLower(strings.TrimSpace(settings.Driver))
	if driver == "" {
		if settings.DSN != "" {
			driver = "postgres"
		} else {
			driver = "memory"
		}
	}
	switch driver {
	case "memory":
		logger.Warn("using in-memory datastore: video references will not survive restarts")
		return storage.NewMemoryStore(), nil
	case "postgres":
		if settings.DSN == "" {
			return nil, fmt.Errorf("postgres storage selected without DSN")
		}
		return storage.NewPostgresStore(ctx, storage.PostgresConfig{
			DSN:             settings.DSN,
			MaxConnections:  int32(settings.MaxConns),
			MinConnections:  int32(settings.MinConns),
			MaxConnLifetime: settings.ConnLifetime,
			ConnectTimeout:  settings.ConnectTimeout,
			ApplicationName: "clipflow-server",
		})
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}

type registrySettings struct {
	Driver   string
	Addr     string
	Username string
	Password string
}

func openRegistry(ctx context.Context, settings registrySettings, logger *slog.Logger) (storage.SignatureRegistry, error) {
	driver := strings.ToLower(strings.TrimSpace(settings.Driver))
	if driver == "" {
		if settings.Addr != "" {
			driver = "redis"
		} else {
			driver = "memory"
		}
	}
	switch driver {
	case "memory":
		logger.Warn("using in-memory signature registry: replay protection is per-process only")
		return storage.NewMemoryRegistry(), nil
	case "redis":
		if settings.Addr == "" {
			return nil, fmt.Errorf("redis registry selected without address")
		}
		return storage.NewRedisRegistry(ctx, storage.RedisRegistryConfig{
			Addr:     settings.Addr,
			Username: settings.Username,
			Password: settings.Password,
		})
	default:
		return nil, fmt.Errorf("unsupported registry driver %q", driver)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	return fallback
}
