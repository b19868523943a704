// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "circlepool/internal/api"
	"circlepool/internal/api/handler"
	"circlepool/internal/classifier"
	"circlepool/internal/config"
	"circlepool/internal/insights"
	"circlepool/internal/repository"
	"circlepool/internal/repository/postgres"
	"circlepool/internal/service"
	"circlepool/internal/util"
	"circlepool/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	UserRepository    repository.UserRepository
	CircleRepository  repository.CircleRepository
	ExpenseRepository repository.ExpenseRepository
	LedgerRepository  repository.LedgerRepository

	// Collaborators
	Classifier classifier.Classifier

	// Services
	UserService      service.UserService
	CircleService    service.CircleService
	ExpenseService   service.ExpenseService
	AnalyticsService insights.Service

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger()
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database and apply migrations
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if err := db.RunMigrations(app.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.Logger.Info("Database migrations applied.")

	// 4. Initialize Repositories
	app.UserRepository = postgres.NewUserRepository()
	app.CircleRepository = postgres.NewCircleRepository()
	app.ExpenseRepository = postgres.NewExpenseRepository()
	app.LedgerRepository = postgres.NewLedgerRepository()
	app.Logger.Info("Repositories initialized.")

	// 5. Initialize the classifier collaborator
	if app.Config.ClassifierEndpoint != "" {
		app.Classifier = classifier.NewHTTPClient(app.Config.ClassifierEndpoint, app.Config.ClassifierAPIKey)
		app.Logger.Info("Expense classifier enabled.", "endpoint", app.Config.ClassifierEndpoint)
	} else {
		app.Classifier = classifier.Disabled{}
		app.Logger.Warn("No classifier endpoint configured, expenses will stay Unclassified.")
	}

	// 6. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.UserService = service.NewUserService(app.DB, app.UserRepository)
	app.CircleService = service.NewCircleService(
		app.DB, // This is the DBTxBeginner
		app.DB, // This is the DBExecutor
		app.UserRepository,
		app.CircleRepository,
		app.LedgerRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.ExpenseService = service.NewExpenseService(
		app.DB,
		app.DB,
		app.CircleRepository,
		app.ExpenseRepository,
		app.LedgerRepository,
		app.Classifier,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.AnalyticsService = insights.NewService(
		app.DB,
		app.ExpenseRepository,
		app.Classifier,
		app.Config.InsightsCacheSize,
		app.Config.InsightsCacheTTL,
	)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	userHandler := handler.NewUserHandler(app.UserService, app.Logger)
	circleHandler := handler.NewCircleHandler(app.CircleService, app.Logger)
	expenseHandler := handler.NewExpenseHandler(app.ExpenseService, app.Logger)
	analyticsHandler := handler.NewAnalyticsHandler(app.AnalyticsService, app.Logger)
	app.HTTPHandler = router.NewRouter(userHandler, circleHandler, expenseHandler, analyticsHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
