package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	aws_pkg "github.com/bloomsisters/storefront/backend/pkg/aws"
	"github.com/bloomsisters/storefront/backend/services/common/auth"
	"github.com/bloomsisters/storefront/backend/services/common/logger"
	commonmw "github.com/bloomsisters/storefront/backend/services/common/middleware"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/cart"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/checkout"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/config"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/controllers"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/database"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/events"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/gateway"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/kafka"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/middleware"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/repository"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/routes"
	"github.com/bloomsisters/storefront/backend/services/storefront-service/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	serviceName     = "storefront-service"
	checkoutTTL     = 30 * time.Minute
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- AWS setup ---
	awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	var zl *zap.Logger
	if cfg.CloudWatchLogGroup != "" {
		cwWriter, err := aws_pkg.NewCloudWatchLogsWriter(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			zl = logger.Initialize(cfg.Env)
			zl.Warn("CloudWatch Logs writer init failed (non-fatal)", zap.Error(err))
		} else {
			zl = logger.InitializeWithWriter(cfg.Env, cwWriter)
		}
	} else {
		zl = logger.Initialize(cfg.Env)
	}
	defer func() { _ = zl.Sync() }()

	metrics := aws_pkg.NewMetricsClient(awsCfg, cfg.MetricsNamespace, cfg.CloudWatchMetrics)

	// --- Storage ---
	db, err := database.Connect(cfg.PostgresDSN(), cfg.Env, zl)
	if err != nil {
		zl.Fatal("DB connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zl.Fatal("Migration failed", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zl.Fatal("Redis connection failed", zap.Error(err))
	}
	cartStore := cart.NewRedisStorage(redisClient, cfg.CartTTL)
	users := repository.NewGormUserRepository(db)
	repos := repository.Repositories{
		Products: repository.NewGormProductRepository(db),
		Vouchers: repository.NewGormVoucherRepository(db),
		Orders:   repository.NewGormOrderRepository(db),
	}
	txManager := repository.NewGormTxManager(db)

	// --- Domain events ---
	var producer kafka.ProducerAPI
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaEventsTopic, zl)
	}
	var snsPublisher events.TypedSNSPublisher
	if cfg.EventsSNSTopicARN != "" {
		snsPublisher = aws_pkg.NewSNSClient(awsCfg)
	}
	bus := events.NewBus(snsPublisher, cfg.EventsSNSTopicARN, producer, zl)
	stopCartEvents := services.PublishCartChanges(ctx, cartStore, bus, zl)
	defer stopCartEvents()

	// --- Services ---
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		zl.Fatal("JWT setup failed", zap.Error(err))
	}
	midtrans := gateway.NewMidtransClient(cfg.MidtransServerKey, cfg.MidtransProduction, cfg.MidtransSnapURL, cfg.MidtransAPIURL)
	tracker := checkout.NewTracker(checkoutTTL)
	go tracker.StartSweeper(ctx, checkoutTTL/2)

	authService := services.NewAuthService(users, tokens, services.NewTokenInfoVerifier(cfg.GoogleClientID, ""), zl)
	productService := services.NewProductService(repos.Products, zl)
	cartService := services.NewCartService(cartStore, repos.Products, zl)
	voucherService := services.NewVoucherService(repos.Vouchers, zl)
	orderService := services.NewOrderService(txManager, repos.Orders, cartStore, bus, metrics, zl)
	paymentService := services.NewPaymentService(txManager, repos.Orders, midtrans, tracker, cartStore, bus, metrics, services.PaymentConfig{
		ServerKey: cfg.MidtransServerKey,
		FinishURL: cfg.MidtransFinishURL,
		BatchSize: cfg.PaymentSyncBatchSize,
		Delay:     cfg.PaymentSyncDelay,
	}, zl)

	// --- Background workers ---
	go services.NewSyncWorker(paymentService, cfg.PaymentSyncInterval, zl).Run(ctx)

	if cfg.PaymentNotificationQueueURL != "" {
		consumer := services.NewNotificationConsumer(
			aws_pkg.NewSQSConsumer(awsCfg, cfg.PaymentNotificationQueueURL, zl),
			paymentService, metrics, zl,
		)
		go consumer.Start(ctx)
	}

	// --- HTTP router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.RegisterValidators(); err != nil {
		zl.Fatal("Validator registration failed", zap.Error(err))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(commonmw.RequestID())
	r.Use(commonmw.RequestLogger(zl))
	r.Use(commonmw.SecurityHeaders())
	r.Use(commonmw.CORS(cfg.AllowedOrigins))
	r.Use(commonmw.MetricsMiddleware(metrics, serviceName))
	r.Use(func(c *gin.Context) {
		tctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(tctx)
		c.Next()
	})

	authLimiter := commonmw.NewRateLimiter(ctx, rate.Every(time.Second), 10, 10*time.Minute)
	routes.Register(r, routes.Controllers{
		Auth:     controllers.NewAuthController(authService),
		Products: controllers.NewProductController(productService),
		Cart:     controllers.NewCartController(cartService),
		Vouchers: controllers.NewVoucherController(voucherService),
		Orders:   controllers.NewOrderController(orderService, paymentService),
		Payments: controllers.NewPaymentController(paymentService),
	}, tokens, commonmw.RateLimitMiddleware(authLimiter))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})

	// --- HTTP server ---
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		zl.Info("Storefront service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	zl.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server shutdown error", zap.Error(err))
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			zl.Error("Kafka producer close error", zap.Error(err))
		}
	}
	if err := redisClient.Close(); err != nil {
		zl.Error("Redis close error", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		zl.Error("Database close error", zap.Error(err))
	}

	zl.Info("Storefront service stopped gracefully")
}
