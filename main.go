package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"xHuntAPI/handlers"
	"xHuntAPI/internal/notification"
	"xHuntAPI/internal/store"
	"xHuntAPI/middleware"
	"xHuntAPI/services"
)

var (
	dbPool              *pgxpool.Pool
	gateway             *store.PostgresStore
	userService         *services.UserService
	challengeService    *services.ChallengeService
	challengeEngine     *services.ChallengeEngine
	bookingService      *services.BookingService
	notificationService *services.NotificationService
	scheduler           *services.ChallengeScheduler
	limiterStore        middleware.LimiterStore
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}
	log.Println("Successfully connected to Postgres")

	gateway = store.NewPostgresStore(dbPool)

	notificationService = services.NewNotificationService(gateway)
	if fcmService, err := notification.NewFCMService(ctx, "./serviceAccountKey.json"); err != nil {
		log.Printf("Warning: Could not initialize FCM, using mock push: %v", err)
		notificationService.SetPushProvider(&services.MockPushProvider{})
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	userService = services.NewUserService(gateway)
	challengeService = services.NewChallengeService(gateway, notificationService)
	challengeEngine = services.NewChallengeEngine(gateway, notificationService)

	if raw := os.Getenv("CHALLENGE_PROGRESS_STEP"); raw != "" {
		step, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatal("Invalid CHALLENGE_PROGRESS_STEP:", err)
		}
		if err := challengeEngine.SetStep(step); err != nil {
			log.Fatal(err)
		}
	}

	if os.Getenv("BADGE_BUCKET") != "" {
		badges, err := services.NewS3BadgeStorageFromEnv(ctx)
		if err != nil {
			log.Fatal("Failed to initialize badge storage:", err)
		}
		challengeService.SetBadgeStorage(badges)
		log.Println("Badge storage initialized")
	}

	var paddleClient *paddle.SDK
	paddleCheckoutHost := "sandbox-checkout"
	if key := os.Getenv("PADDLE_API_KEY"); key != "" {
		baseURL := paddle.SandboxBaseURL
		if os.Getenv("PADDLE_ENV") == "production" {
			baseURL = paddle.ProductionBaseURL
			paddleCheckoutHost = "checkout"
		}
		paddleClient, err = paddle.New(key, paddle.WithBaseURL(baseURL))
		if err != nil {
			log.Fatal("Failed to initialize Paddle:", err)
		}
	}
	payments := services.NewPaymentService(os.Getenv("STRIPE_SECRET_KEY"), paddleClient, paddleCheckoutHost)
	bookingService = services.NewBookingService(gateway, challengeEngine, payments, notificationService)

	scheduler, err = services.NewChallengeScheduler(challengeService, 5*time.Minute)
	if err != nil {
		log.Fatal(err)
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal("Invalid REDIS_URL:", err)
		}
		limiterStore = middleware.NewRedisLimiterStore(redis.NewClient(opts), middleware.DefaultRate, middleware.DefaultBurst)
		log.Println("Using Redis rate limiter")
	}

	middleware.InitPrometheus(prometheus.DefaultRegisterer)
	services.RegisterMetrics(prometheus.DefaultRegisterer)
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if limiterStore == nil {
		memLimiter := middleware.NewMemoryLimiterStore(middleware.DefaultRate, middleware.DefaultBurst)
		go memLimiter.CleanupVisitors(ctx)
		limiterStore = memLimiter
	}

	userHandler := handlers.NewUserHandler(userService, challengeService)
	challengeHandler := handlers.NewChallengeHandler(challengeService, userService)
	bookingHandler := handlers.NewBookingHandler(bookingService, userService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, userService)
	webhookHandler := handlers.NewWebhookHandler(userService, bookingService, os.Getenv("CLERK_WEBHOOK_SECRET"), os.Getenv("STRIPE_WEBHOOK_SECRET"))
	paddleHandler := handlers.NewPaddleHandler(bookingService, os.Getenv("PADDLE_WEBHOOK_SECRET"))

	r := mux.NewRouter()
	r.Use(middleware.RateLimitMiddleware(limiterStore))
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := gateway.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "xhunt-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook).Methods("POST")
	r.HandleFunc("/webhooks/paddle", paddleHandler.PaddleWebhookHandler).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/experiences", bookingHandler.ListExperiences).Methods("GET")
	api.HandleFunc("/challenges", challengeHandler.ListChallenges).Methods("GET")
	api.HandleFunc("/challenges/{id}", challengeHandler.GetChallenge).Methods("GET")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/challenges/{id}/join", challengeHandler.JoinChallenge).Methods("POST")

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/challenges", userHandler.GetMyChallenges).Methods("GET")
	protected.HandleFunc("/user/rewards", userHandler.GetMyRewards).Methods("GET")

	protected.HandleFunc("/bookings", bookingHandler.CreateBooking).Methods("POST")
	protected.HandleFunc("/bookings/{id}", bookingHandler.GetBooking).Methods("GET")
	protected.HandleFunc("/bookings/{id}/paddle-checkout", bookingHandler.CreatePaddleCheckout).Methods("POST")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/devices", notificationHandler.RegisterDevice).Methods("POST")

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin(middleware.ParseAdminIDs(os.Getenv("ADMIN_CLERK_IDS"))))

	admin.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	admin.HandleFunc("/challenges/{id}/badge", challengeHandler.UploadBadge).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	scheduler.Start()

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	notificationService.Stop()

	log.Println("Server shutdown complete")
}
