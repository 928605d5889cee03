package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/openmart/inventory/domain/inventory"
	"github.com/openmart/inventory/infra/config"
	"github.com/openmart/inventory/infra/gateways"
	"github.com/openmart/inventory/infra/logging"
	"github.com/openmart/inventory/infra/metrics"
	"github.com/openmart/inventory/infra/repositories"
	"github.com/openmart/inventory/infra/requestid"
	"github.com/openmart/inventory/infra/tracing"
	"github.com/openmart/inventory/protocols"
	"github.com/openmart/inventory/use_cases/commit"
	"github.com/openmart/inventory/use_cases/get_stock"
	"github.com/openmart/inventory/use_cases/release"
	"github.com/openmart/inventory/use_cases/reserve"
	"github.com/openmart/inventory/use_cases/sweep"
)

const serviceName = "inventory"

type ReserveItem struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

type ReserveRequest struct {
	OrderID string        `json:"order_id" binding:"required"`
	Items   []ReserveItem `json:"items" binding:"required"`
}

type CommitRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type ReleaseRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type ReserveResponse struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservation_id,omitempty"`
	Message       string `json:"message"`
}

type ResolveResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id,omitempty"`
	Message string `json:"message"`
}

type StockResponse struct {
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

// Server bundles the use cases the router dispatches to.
type Server struct {
	Reserve  *reserve.Reserve
	Commit   *commit.Commit
	Release  *release.Release
	GetStock *get_stock.GetStock
	Health   func(ctx context.Context) map[string]string
}

func NewRouter(s Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestIDMiddleware, metrics.Middleware, tracing.Middleware(serviceName))

	r.GET("/health", func(c *gin.Context) {
		status := "healthy"
		checks := map[string]string{}
		if s.Health != nil {
			checks = s.Health(c.Request.Context())
			for _, v := range checks {
				if v == "down" {
					status = "degraded"
				}
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/inventory/:sku", func(c *gin.Context) {
		out, err := s.GetStock.GetStock(c.Request.Context(), c.Param("sku"))
		if err != nil {
			c.JSON(statusForError(err), gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, StockResponse{SKU: out.SKU, Quantity: out.Quantity, Reserved: out.Reserved, Available: out.Available})
	})

	r.POST("/inventory/reserve", func(c *gin.Context) {
		var req ReserveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ReserveResponse{Success: false, Message: err.Error()})
			return
		}
		lines := make([]inventory.Line, 0, len(req.Items))
		for _, item := range req.Items {
			lines = append(lines, inventory.Line{SKU: item.SKU, Quantity: item.Quantity})
		}
		out, err := s.Reserve.Reserve(c.Request.Context(), reserve.Input{OrderID: req.OrderID, Lines: lines})
		if err != nil {
			c.JSON(statusForError(err), ReserveResponse{Success: false, Message: err.Error()})
			return
		}
		c.JSON(http.StatusOK, ReserveResponse{Success: true, ReservationID: out.OrderID, Message: "inventory reserved"})
	})

	r.POST("/inventory/commit", func(c *gin.Context) {
		var req CommitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ResolveResponse{Success: false, Message: err.Error()})
			return
		}
		if err := s.Commit.Commit(c.Request.Context(), commit.Input{OrderID: req.OrderID}); err != nil {
			c.JSON(statusForError(err), ResolveResponse{Success: false, OrderID: req.OrderID, Message: err.Error()})
			return
		}
		c.JSON(http.StatusOK, ResolveResponse{Success: true, OrderID: req.OrderID, Message: "inventory committed"})
	})

	r.POST("/inventory/release", func(c *gin.Context) {
		var req ReleaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ResolveResponse{Success: false, Message: err.Error()})
			return
		}
		if err := s.Release.Release(c.Request.Context(), release.Input{OrderID: req.OrderID}); err != nil {
			c.JSON(statusForError(err), ResolveResponse{Success: false, OrderID: req.OrderID, Message: err.Error()})
			return
		}
		c.JSON(http.StatusOK, ResolveResponse{Success: true, OrderID: req.OrderID, Message: "inventory released"})
	})

	return r
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, inventory.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrAlreadyExists),
		errors.Is(err, inventory.ErrInvalidTransition),
		inventory.IsInsufficientStock(err):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func requestIDMiddleware(c *gin.Context) {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = requestid.Generate()
	}
	c.Request = c.Request.WithContext(requestid.NewContext(c.Request.Context(), id))
	c.Writer.Header().Set("X-Request-ID", id)
	c.Next()
}

// StartServer wires the service from the environment and blocks until SIGINT
// or SIGTERM.
func StartServer() {
	cfg := config.Load()
	closeLogs := logging.Setup(serviceName, cfg.LokiURL)
	defer closeLogs()

	if shutdownTracing := tracing.Init(serviceName); shutdownTracing != nil {
		defer shutdownTracing()
	}

	var (
		ledger       inventory.Ledger
		reservations inventory.Reservations
		db           *sql.DB
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		if err := repositories.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate database")
		}
		ledger = repositories.NewLedgerPostgres(db)
		reservations = repositories.NewReservationsPostgres(db)
		log.Info().Msg("ledger: postgres")
	} else {
		memoryLedger := repositories.NewLedgerMemory()
		seedDemoStock(memoryLedger)
		ledger = memoryLedger
		reservations = repositories.NewReservationsMemory()
		log.Info().Msg("ledger: in-memory (set DATABASE_URL for postgres)")
	}

	var cache protocols.AvailabilityCache
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed, availability cache disabled")
			redisClient = nil
		} else {
			cache = gateways.NewStockCacheRedis(redisClient)
			log.Info().Msg("availability cache: redis")
		}
	}

	notifier := buildNotifier(cfg)

	reserveUseCase := reserve.NewReserve(ledger, reservations, notifier, cache)
	commitUseCase := commit.NewCommit(ledger, reservations, cache)
	releaseUseCase := release.NewRelease(ledger, reservations, cache)
	getStockUseCase := get_stock.NewGetStock(ledger, cache)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweeper := sweep.NewSweep(reservations, releaseUseCase, cfg.HoldTTL)
	sweeper.Start(sweepCtx, cfg.SweepInterval)

	router := NewRouter(Server{
		Reserve:  reserveUseCase,
		Commit:   commitUseCase,
		Release:  releaseUseCase,
		GetStock: getStockUseCase,
		Health: func(ctx context.Context) map[string]string {
			checks := map[string]string{"redis": "n/a", "postgres": "n/a"}
			if redisClient != nil {
				checks["redis"] = "up"
				if err := redisClient.Ping(ctx).Err(); err != nil {
					checks["redis"] = "down"
				}
			}
			if db != nil {
				checks["postgres"] = "up"
				if err := db.PingContext(ctx); err != nil {
					checks["postgres"] = "down"
				}
			}
			return checks
		},
	})

	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Port), Handler: router}
	go func() {
		log.Info().Int("port", cfg.Port).Msg("inventory service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	if db != nil {
		_ = db.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

func buildNotifier(cfg config.Config) protocols.Notifier {
	var notifiers []protocols.Notifier
	if cfg.NotificationsURL != "" {
		notifiers = append(notifiers, gateways.NewNotifierHttp(cfg.NotificationsURL, &http.Client{Timeout: 5 * time.Second}))
		log.Info().Str("url", cfg.NotificationsURL).Msg("low stock notifier: http")
	}
	if cfg.KafkaBrokers != "" {
		writer := &kafka.Writer{
			Addr:     kafka.TCP(splitBrokers(cfg.KafkaBrokers)...),
			Topic:    cfg.KafkaTopic,
			Balancer: &kafka.Hash{},
		}
		notifiers = append(notifiers, gateways.NewNotifierKafka(writer))
		log.Info().Str("topic", cfg.KafkaTopic).Msg("low stock notifier: kafka")
	}
	switch len(notifiers) {
	case 0:
		return nil
	case 1:
		return notifiers[0]
	default:
		return gateways.NewNotifierFanout(notifiers...)
	}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func seedDemoStock(ledger *repositories.LedgerMemory) {
	ledger.Save(inventory.StockItem{SKU: "WIDGET-1", Quantity: 100, LowStockThreshold: 10})
	ledger.Save(inventory.StockItem{SKU: "WIDGET-2", Quantity: 25, LowStockThreshold: 10})
	ledger.Save(inventory.StockItem{SKU: "GADGET-1", Quantity: 5, LowStockThreshold: 10})
}
