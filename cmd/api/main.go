package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/farmtrade/marketplace-api/internal/config"
	"github.com/farmtrade/marketplace-api/internal/handler"
	"github.com/farmtrade/marketplace-api/internal/mailer"
	"github.com/farmtrade/marketplace-api/internal/middleware"
	"github.com/farmtrade/marketplace-api/internal/model"
	"github.com/farmtrade/marketplace-api/internal/repository"
	"github.com/farmtrade/marketplace-api/internal/seed"
	"github.com/farmtrade/marketplace-api/internal/service"
	"github.com/farmtrade/marketplace-api/internal/storage"
	"github.com/farmtrade/marketplace-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// MinIO (optional, photo uploads return errors while unconfigured)
	var photoStore service.PhotoStore
	if cfg.Minio.Endpoint != "" {
		ps, err := storage.NewPhotoStore(ctx, cfg.Minio)
		if err != nil {
			log.Error("connect to MinIO", "error", err)
			os.Exit(1)
		}
		photoStore = ps
		log.Info("connected to MinIO")
	} else {
		log.Warn("MinIO not configured, photo uploads disabled")
	}

	// SMTP
	mailSender, err := mailer.New(cfg.SMTP)
	if err != nil {
		log.Error("create mailer", "error", err)
		os.Exit(1)
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)

	if cfg.SeedDemo {
		if err := seed.Run(ctx, log, userRepo, productRepo); err != nil {
			log.Error("seed demo data", "error", err)
			os.Exit(1)
		}
	}

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	productSvc := service.NewProductService(productRepo, userRepo, redisClient)
	orderSvc := service.NewOrderService(orderRepo, productRepo, userRepo, amqpCh, redisClient)
	adminSvc := service.NewAdminService(userRepo, productRepo, orderRepo)
	userSvc := service.NewUserService(userRepo, photoStore)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	productH := handler.NewProductHandler(productSvc)
	orderH := handler.NewOrderHandler(orderSvc, adminSvc)
	adminH := handler.NewAdminHandler(adminSvc)
	userH := handler.NewUserHandler(userSvc)
	healthH := handler.NewHealthHandler(dbPool, redisClient, amqpConn)

	// Worker
	notifyWorker := worker.NewNotificationWorker(amqpCh, orderRepo, productRepo, userRepo, redisClient, mailSender, log)

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)

		products := v1.Group("/products")
		products.GET("", productH.List)
		products.GET("/:id", productH.GetByID)

		farmer := v1.Group("/farmer/products", middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RequireRole(model.RoleFarmer))
		farmer.POST("", productH.Create)
		farmer.GET("", productH.MyProducts)
		farmer.PUT("/:id", productH.Update)
		farmer.DELETE("/:id", productH.Delete)

		orders := v1.Group("/orders", middleware.AuthMiddleware(cfg.JWT.Secret))
		orders.POST("", middleware.RequireRole(model.RoleRetailer), orderH.PlaceOrder)
		orders.GET("", middleware.RequireRole(model.RoleRetailer), orderH.MyOrders)
		orders.GET("/farmer", middleware.RequireRole(model.RoleFarmer), orderH.FarmerOrders)
		orders.GET("/all", middleware.RequireRole(model.RoleAdmin), orderH.AllOrders)
		orders.DELETE("/:id", middleware.RequireRole(model.RoleRetailer), orderH.CancelOrder)
		orders.PATCH("/:id/status", middleware.RequireRole(model.RoleFarmer), orderH.UpdateStatus)
		orders.GET("/dashboard-stats", middleware.RequireRole(model.RoleFarmer, model.RoleRetailer), orderH.DashboardStats)

		users := v1.Group("/users", middleware.AuthMiddleware(cfg.JWT.Secret))
		users.PUT("/me", userH.UpdateProfile)
		users.POST("/me/photo", userH.UploadPhoto)

		admin := v1.Group("/admin", middleware.AuthMiddleware(cfg.JWT.Secret), middleware.RequireRole(model.RoleAdmin))
		admin.GET("/stats", adminH.Stats)
		admin.GET("/users", adminH.ListUsers)
		admin.PATCH("/users/:id/status", adminH.SetUserStatus)
		admin.DELETE("/users/:id", adminH.DeleteUser)
	}

	if err := notifyWorker.Start(ctx); err != nil {
		log.Error("start notification worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	notifyWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
