package router

import (
	accountsvc "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/application/accounts"
	portfoliosvc "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/application/portfolio"
	trading "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/application/trading"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/config"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/infrastructure/database"
	accounthandler "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/interfaces/handlers/accounts"
	healthhandler "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/interfaces/handlers/health"
	orderhandler "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/interfaces/handlers/orders"
	portfoliohandler "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/interfaces/handlers/portfolio"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/marketdata"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp builds the Fiber app with all middleware, services and routes.
// The returned monitor is not started; the caller owns its goroutine.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, *trading.Monitor, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, nil, err
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.Identity())

	// Market data: static provider seeded from config, redis last-price cache.
	seed := map[string]decimal.Decimal{}
	for symbol, raw := range cfg.StaticSymbols {
		if price, err := decimal.NewFromString(raw); err == nil {
			seed[symbol] = price
		}
	}
	quotes := marketdata.NewService(
		marketdata.NewStaticProvider(seed),
		marketdata.NewLastPriceCache(rdb, cfg.LastPriceTTL),
		cfg.QuoteTimeout,
	)

	tradingSvc := trading.NewService(db, quotes, trading.Config{
		FeeRate:         cfg.FeeRate,
		MinFee:          cfg.MinFee,
		SlippageRate:    cfg.SlippageRate,
		StartingBalance: cfg.StartingBalance,
	})
	monitor := trading.NewMonitor(tradingSvc, cfg.MonitorScanInterval, cfg.MonitorExpiryInterval)

	accountSvc := &accountsvc.Service{DB: db, StartingBalance: cfg.StartingBalance}
	portfolioSvc := &portfoliosvc.Service{DB: db}

	hh := &healthhandler.Handlers{DB: &gormDBPinger{db: db}, Rdb: rdb}
	app.Get("/health", hh.JSON)

	ah := &accounthandler.Handlers{Service: accountSvc}
	app.Post("/api/v1/auth/register", ah.Register)

	oh := &orderhandler.Handlers{Service: tradingSvc}
	ordersGroup := app.Group("/api/v1/orders", middleware.RequireAuth())
	ordersGroup.Post("/", oh.Create)
	ordersGroup.Get("/", oh.List)
	ordersGroup.Get("/:id", oh.Get)
	ordersGroup.Delete("/:id", oh.Cancel)

	ph := &portfoliohandler.Handlers{Service: portfolioSvc}
	portfolioGroup := app.Group("/api/v1/portfolio", middleware.RequireAuth())
	portfolioGroup.Get("/", ph.Get)
	portfolioGroup.Get("/transactions", ph.Transactions)

	return app, db, rdb, monitor, nil
}
