package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/camerarts/shengtu/internal/handlers"
	"github.com/camerarts/shengtu/internal/httpapi"
	"github.com/camerarts/shengtu/internal/infra"
	"github.com/camerarts/shengtu/internal/providers/gemini"
	"github.com/camerarts/shengtu/internal/providers/modelscope"
	"github.com/camerarts/shengtu/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	store, err := newBlobStore(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize blob store")
	}

	app := &handlers.App{
		Log:    logger,
		Config: cfg,
		Gemini: gemini.NewClient(gemini.Options{
			BaseURL:        cfg.GeminiBaseURL,
			Model:          cfg.GeminiModel,
			Logger:         &logger,
			RequestTimeout: cfg.ProviderTimeout,
		}),
		ModelScope: modelscope.NewClient(modelscope.Options{
			BaseURL: cfg.ModelScopeBase,
			Model:   cfg.ModelScopeModel,
			Logger:  &logger,
		}),
		Store: store,
	}

	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("relay listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// newBlobStore picks the storage backend: R2 when fully configured, a local
// directory when STORAGE_PATH is set, otherwise nil and uploads are disabled.
func newBlobStore(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (storage.BlobStore, error) {
	switch {
	case cfg.HasR2():
		logger.Info().Str("bucket", cfg.R2Bucket).Msg("using R2 blob store")
		return storage.NewBucketStore(ctx, storage.BucketOptions{
			AccountID:     cfg.R2AccountID,
			AccessKeyID:   cfg.R2AccessKeyID,
			SecretKey:     cfg.R2SecretKey,
			Bucket:        cfg.R2Bucket,
			PublicBaseURL: cfg.StoragePublicURL,
		})
	case cfg.StoragePath != "":
		logger.Info().Str("path", cfg.StoragePath).Msg("using filesystem blob store")
		return storage.NewFileStore(cfg.StoragePath, cfg.StoragePublicURL)
	default:
		logger.Warn().Msg("no blob store configured, uploads disabled")
		return nil, nil
	}
}
