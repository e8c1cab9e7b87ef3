package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/recipe-api/internal/config"
	"github.com/iliyamo/recipe-api/internal/database"
	"github.com/iliyamo/recipe-api/internal/handler"
	"github.com/iliyamo/recipe-api/internal/media"
	"github.com/iliyamo/recipe-api/internal/middleware"
	"github.com/iliyamo/recipe-api/internal/model"
	"github.com/iliyamo/recipe-api/internal/queue"
	"github.com/iliyamo/recipe-api/internal/repository"
	"github.com/iliyamo/recipe-api/internal/repository/memory"
	"github.com/iliyamo/recipe-api/internal/router"
	"github.com/iliyamo/recipe-api/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the schema before serving (mysql driver only)")
	return cmd
}

// storage is the persistence wiring selected by APP_STORE_DRIVER.
type storage struct {
	uow    service.UnitOfWork
	users  service.UserRepository
	tokens service.TokenRepository
	db     handler.Pinger
	close  func() error
}

func (a *app) openStorage(ctx context.Context, migrate bool) (*storage, error) {
	if a.cfg.App.StoreDriver == config.StoreMemory {
		a.logger.Warn("using in-memory store; data is lost on exit")
		st := memory.New()
		return &storage{uow: st, users: st.Users(), tokens: st.Tokens(), close: func() error { return nil }}, nil
	}
	db, err := a.openDB(ctx)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &storage{
		uow:    service.NewSQLUnitOfWork(db, a.logger),
		users:  repository.NewUserRepo(db),
		tokens: repository.NewTokenRepo(db),
		db:     db,
		close:  db.Close,
	}, nil
}

func (a *app) publisher() (queue.Publisher, func() error) {
	if a.cfg.AMQPURL == "" {
		return queue.NoopPublisher{}, func() error { return nil }
	}
	p := queue.NewAMQPPublisher(a.cfg.AMQPURL, a.logger)
	return p, p.Close
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	cfg := a.cfg
	log := a.logger

	st, err := a.openStorage(ctx, migrate)
	if err != nil {
		return err
	}
	defer st.close()

	blobs, err := media.New(cfg.Media)
	if err != nil {
		return fmt.Errorf("media store: %w", err)
	}
	events, closeEvents := a.publisher()
	defer closeEvents()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	} else if cfg.Redis.Enabled {
		log.Warn("redis unreachable; cache disabled and rate limiting is per process", "addr", cfg.Redis.Address())
	}

	recipes := service.NewRecipeService(st.uow, blobs, events, log)
	users := service.NewUserService(st.users, st.tokens, authConfig(a))

	deps := router.Deps{
		Logger:      log,
		JWTSecret:   cfg.JWT.Secret,
		DB:          st.db,
		Users:       handler.NewUserHandler(users, log),
		Recipes:     handler.NewRecipeHandler(recipes, cfg.Media.MaxUploadBytes, log),
		Tags:        handler.NewAttributeHandler(service.NewAttributeService(st.uow, model.KindTag), log),
		Ingredients: handler.NewAttributeHandler(service.NewAttributeService(st.uow, model.KindIngredient), log),
		Cache:       middleware.NewRedisCache(cfg.Cache, rdb, log),
		RateLimit:   middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		BodyLimit:   bodyLimit(cfg.Media.MaxUploadBytes),
	}
	if local, ok := blobs.(*media.LocalStore); ok {
		deps.MediaRoot = local.Root()
		deps.MediaURL = cfg.Media.URLPrefix
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", srv.Addr, "store", cfg.App.StoreDriver, "media", cfg.Media.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down http server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// bodyLimit leaves one megabyte of headroom above the upload limit for
// multipart framing and the JSON endpoints.
func bodyLimit(maxUpload int64) string {
	if maxUpload <= 0 {
		return ""
	}
	return fmt.Sprintf("%dK", maxUpload/1024+1024)
}
