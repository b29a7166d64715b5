// Package app wires configuration, integrations and the chat pipeline into a
// ready handler. Both entry points build through New.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"agri-advisor/handler"
	"agri-advisor/internal/advisory"
	"agri-advisor/internal/audio"
	"agri-advisor/internal/auth"
	"agri-advisor/internal/config"
	"agri-advisor/internal/identity"
	"agri-advisor/internal/integrations/gemini"
	"agri-advisor/internal/integrations/googletranslate"
	"agri-advisor/internal/integrations/openai"
	"agri-advisor/internal/integrations/openweather"
	"agri-advisor/internal/integrations/paramstore"
	"agri-advisor/internal/integrations/rediscache"
	"agri-advisor/internal/logger"
	"agri-advisor/internal/policy"
	"agri-advisor/internal/repository"
	"agri-advisor/internal/translation"
	"agri-advisor/internal/usecase"
	"agri-advisor/internal/weather"
)

const (
	secretOpenAI    = "open-ai-token"
	secretGemini    = "gemini-api-key"
	secretTranslate = "translate-api-key"
	secretJWT       = "jwt-secret"
	secretWeather   = "weather-api-key"
)

type App struct {
	Handler *handler.Handler
	closers []func() error
}

// Close releases every resource opened by New, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	log := logger.Base()

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	// ---- Secrets ----
	var secrets paramstore.Getter
	if cfg.Mode == config.ModeLambda {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		if secrets, err = paramstore.New(awsssm.NewFromConfig(c)); err != nil {
			return nil, fmt.Errorf("app: create SSM client: %w", err)
		}
	} else {
		secrets = paramstore.NewEnv(LocalSecrets(cfg))
	}

	// ---- Session store ----
	var store usecase.SessionStore
	switch cfg.StorageBackend {
	case config.StorageDynamoDB:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		if store, err = repository.NewDynamoStore(awsdynamodb.NewFromConfig(c), cfg.StateTable); err != nil {
			return nil, fmt.Errorf("app: create dynamodb store: %w", err)
		}
	case config.StorageBolt:
		bolt, err := repository.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("app: open bolt store: %w", err)
		}
		a.closers = append(a.closers, bolt.Close)
		store = bolt
	default:
		return nil, fmt.Errorf("app: unknown storage backend %q", cfg.StorageBackend)
	}

	// ---- Users ----
	db, err := identity.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	users, err := identity.NewRepository(db)
	if err != nil {
		return nil, err
	}

	// ---- Cache ----
	var cache *rediscache.Cache
	if cfg.RedisAddr != "" {
		c, err := rediscache.New(ctx, rediscache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Warn("redis cache unavailable, continuing without it", zap.Error(err))
		} else {
			a.closers = append(a.closers, c.Close)
			cache = c
		}
	}

	// ---- Translation ----
	translateClient, err := googletranslate.NewClient(secrets, cfg.SecretName(secretTranslate))
	if err != nil {
		return nil, fmt.Errorf("app: create translate client: %w", err)
	}
	translateOpts := []translation.Option{translation.WithTimeout(cfg.ExternalCallTimeout)}
	if cache != nil {
		translateOpts = append(translateOpts, translation.WithCache(cache, cfg.TranslationCacheTTL))
	}
	translator, err := translation.New(translateClient, translateOpts...)
	if err != nil {
		return nil, err
	}

	// ---- Weather + policies ----
	weatherClient, err := openweather.NewClient(secrets, cfg.SecretName(secretWeather), openweather.WithBaseURL(cfg.WeatherBaseURL))
	if err != nil {
		return nil, fmt.Errorf("app: create weather client: %w", err)
	}
	weatherOpts := []weather.Option{weather.WithTimeout(cfg.ExternalCallTimeout)}
	if cache != nil {
		weatherOpts = append(weatherOpts, weather.WithCache(cache, cfg.WeatherCacheTTL))
	}
	weatherSvc, err := weather.New(weatherClient, weatherOpts...)
	if err != nil {
		return nil, err
	}

	// ---- LLM + audio ----
	openaiClient, err := openai.NewClient(secrets, cfg.SecretName(secretOpenAI), openai.WithBaseURL(cfg.OpenAIBaseURL))
	if err != nil {
		return nil, fmt.Errorf("app: create OpenAI client: %w", err)
	}

	var llm advisory.LLMClient = openaiClient
	model := cfg.OpenAIModel
	if cfg.LLMProvider == config.ProviderGemini {
		key, err := secrets.GetParameter(ctx, cfg.SecretName(secretGemini))
		if err != nil {
			return nil, fmt.Errorf("app: read gemini key: %w", err)
		}
		geminiClient, err := gemini.New(ctx, key, cfg.GeminiRPS)
		if err != nil {
			return nil, fmt.Errorf("app: create gemini client: %w", err)
		}
		a.closers = append(a.closers, geminiClient.Close)
		llm = geminiClient
		model = cfg.GeminiModel
	}

	generator, err := advisory.New(llm, model, cfg.ExternalCallTimeout)
	if err != nil {
		return nil, err
	}
	speech, err := audio.New(openaiClient, cfg.ExternalCallTimeout)
	if err != nil {
		return nil, err
	}

	// ---- Pipeline + HTTP ----
	chat, err := usecase.NewChatService(users, store, translator, generator, speech, cfg.MaxMessageLength)
	if err != nil {
		return nil, fmt.Errorf("app: create chat service: %w", err)
	}
	insights, err := usecase.NewInsightService(users, weatherSvc, policy.NewCatalog(), translator)
	if err != nil {
		return nil, fmt.Errorf("app: create insight service: %w", err)
	}

	jwtSecret, err := secrets.GetParameter(ctx, cfg.SecretName(secretJWT))
	if err != nil {
		return nil, fmt.Errorf("app: read jwt secret: %w", err)
	}
	verifier, err := auth.NewVerifier([]byte(jwtSecret))
	if err != nil {
		return nil, err
	}

	opts := append([]handler.Option{handler.WithInsights(insights)}, healthChecks(users, cache)...)
	if a.Handler, err = handler.NewHandler(chat, verifier, opts...); err != nil {
		return nil, err
	}

	log.Info("application wired",
		zap.String("mode", string(cfg.Mode)),
		zap.String("storage", cfg.StorageBackend),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("model", model),
		zap.Bool("redis_cache", cache != nil),
	)
	return a, nil
}

// LocalSecrets maps secret parameter names to the environment variables that
// hold them in local mode.
func LocalSecrets(cfg *config.Config) map[string]string {
	return map[string]string{
		cfg.SecretName(secretOpenAI):    "OPENAI_API_KEY",
		cfg.SecretName(secretGemini):    "GEMINI_API_KEY",
		cfg.SecretName(secretTranslate): "GOOGLE_TRANSLATE_API_KEY",
		cfg.SecretName(secretJWT):       "JWT_SECRET",
		cfg.SecretName(secretWeather):   "WEATHER_API_KEY",
	}
}

// healthChecks reports the user database and, when connected, the cache.
func healthChecks(users *identity.Repository, cache *rediscache.Cache) []handler.Option {
	opts := []handler.Option{handler.WithHealthCheck("database", users.Ping)}
	if cache != nil {
		opts = append(opts, handler.WithHealthCheck("cache", cache.Ping))
	}
	return opts
}
