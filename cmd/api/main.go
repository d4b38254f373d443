package main

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/config"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/data"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/handler"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/repo"
	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/service"
)

func main() {
	godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	r := gin.Default()
	r.SetTrustedProxies(nil)

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3001"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Upgrade", "Connection"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	port := os.Getenv("PORT")
	if port == "" {
		port = "10000"
	}

	cfg := config.LoadMatching()

	db, err := data.NewPostgres(config.LoadDatabase(), logger)
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer db.Close()

	rds, err := data.NewRedis(config.LoadRedis(), logger)
	if err != nil {
		logger.Fatal("redis init failed", zap.Error(err))
	}
	defer rds.Close()

	// Stores
	ledger := repo.NewSQLLedger(db.DB)
	book := service.NewRedisBookStore(rds.Client, logger)
	queue := service.NewRedisFillQueue(rds.Client)
	lease := service.NewRedisStockLease(rds.Client, cfg.LeaseTTL)

	orderSvc := service.NewOrderService(ledger, book, logger)

	// Notification fanout: Redis pub/sub plus the websocket fills stream
	fills := handler.NewFillsHub(logger)
	notifier := service.MultiNotifier{
		service.NewRedisNotifier(rds.Client),
		fills,
	}

	engine := service.NewEngine(ledger, book, queue, notifier, logger, cfg.MaxCandidates)
	coordinator := service.NewCoordinator(queue, lease, engine, logger)
	coordinator.Start(cfg.Workers)
	defer coordinator.Stop()

	handle := handler.NewHandler(orderSvc, coordinator, fills)

	reconciler := service.NewReconciler(ledger, book, logger, cfg)
	reconciler.Start()
	defer reconciler.Stop()

	handle.RegisterRoutes(r)

	if err := r.Run(":" + port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
