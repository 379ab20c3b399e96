package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"renovix-backend/internal/analysis"
	"renovix-backend/internal/chat"
	"renovix-backend/internal/llm"
	"renovix-backend/internal/llm/gateway"
	"renovix-backend/internal/pdftext"
	"renovix-backend/internal/queue"
	"renovix-backend/internal/sessions"
	"renovix-backend/internal/shared/config"
	"renovix-backend/internal/shared/server"
	"renovix-backend/internal/shared/storage/db"
	"renovix-backend/internal/shared/storage/object"
	localstore "renovix-backend/internal/shared/storage/object/local"
	s3store "renovix-backend/internal/shared/storage/object/s3"
	"renovix-backend/internal/uploads"
)

// App holds the shared dependency graph for the api and worker binaries.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Queue  queue.Client
	LLM    llm.Client

	Notifier *sessions.Notifier

	SessionsRepo sessions.Repo
	UploadsRepo  uploads.Repo

	SessionsService *sessions.Service
	UploadsService  *uploads.Service
	AnalysisService *analysis.Service

	SessionHandler  *sessions.Handler
	UploadHandler   *uploads.Handler
	AnalysisHandler *analysis.Handler
	ChatHandler     *chat.Handler
}

// Build prepares the dependency graph and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx)
	if err != nil {
		return nil, err
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		LLM:    llmClient,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		SessionHandler:  app.SessionHandler,
		UploadHandler:   app.UploadHandler,
		AnalysisHandler: app.AnalysisHandler,
		ChatHandler:     app.ChatHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(os.Getenv("RX_SQS_QUEUE_URL")) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

// buildLLM prefers the configured gateway; without credentials, dev
// runs get the stub so the pipeline stays usable offline.
func buildLLM(cfg config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.LLMAPIKey) != "" {
		client, err := gateway.NewClient(cfg.LLMGatewayURL, cfg.LLMAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	if isDevLike(cfg.Env) {
		log.Printf("bootstrap: LLM_API_KEY empty; using stub diagnosis client")
		return llm.StubClient{}, nil
	}
	return nil, fmt.Errorf("LLM_API_KEY is required")
}

func buildServices(app *App) {
	if app.DB != nil {
		app.SessionsRepo = &sessions.PGRepo{DB: app.DB}
		app.UploadsRepo = &uploads.PGRepo{DB: app.DB}
	} else {
		app.SessionsRepo = sessions.NewMemoryRepo()
		app.UploadsRepo = uploads.NewMemoryRepo()
	}

	app.Notifier = sessions.NewNotifier()
	app.SessionsService = sessions.NewService(app.SessionsRepo, app.Notifier)
	app.UploadsService = uploads.NewService(app.UploadsRepo, app.Store, app.SessionsService)
	app.AnalysisService = &analysis.Service{
		Sessions:  app.SessionsService,
		Uploads:   app.UploadsService,
		Extractor: pdftext.New(pdftext.NewTesseract(app.Config.OCRBinary)),
		LLM:       app.LLM,
		Queue:     app.Queue,
	}

	app.SessionHandler = sessions.NewHandler(app.SessionsService)
	app.UploadHandler = uploads.NewHandler(app.UploadsService)
	app.AnalysisHandler = analysis.NewHandler(app.AnalysisService)
	app.ChatHandler = chat.NewHandler(app.LLM)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
