package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/config"
	"github.com/matheusmosca/library-reservations/internal/httpapi"
	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/services/inventory"
	"github.com/matheusmosca/library-reservations/services/reservations"
	"github.com/matheusmosca/library-reservations/services/users"
)

// newRouter monta os serviços sobre o banco e registra as rotas
func newRouter(cfg config.Config, db *storage.DB, zlog *zap.Logger) (*gin.Engine, error) {
	tracer := otel.Tracer(cfg.ServiceName)

	metrics, err := reservations.NewMetrics(otel.Meter(cfg.ServiceName))
	if err != nil {
		return nil, err
	}

	userRepository := users.NewUserRepository(db)
	userUseCase := users.NewUserUseCase(userRepository, zlog, tracer)

	ledger := inventory.NewLedger(db, inventory.NewBookRepository(db), zlog, tracer)

	reservationRepository := reservations.NewReservationRepository(db)
	machine := reservations.NewStateMachine(db, reservationRepository, userRepository, ledger, metrics, zlog, tracer, reservations.Options{
		LoanPeriod:     cfg.DefaultLoanPeriod,
		SweepBatchSize: cfg.SweepBatchSize,
	})
	queries := reservations.NewQueryService(reservationRepository, zlog, tracer)

	respond := httpapi.NewResponder(zlog, cfg.Debug)

	r := gin.New()
	r.Use(gin.Recovery(), otelgin.Middleware(cfg.ServiceName))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	requireActor := httpapi.RequireActor()
	api := r.Group("/api", httpapi.OptionalActor(userUseCase, zlog))

	users.NewUserHandler(userUseCase, respond).RegisterRoutes(api, requireActor)

	authenticated := api.Group("", requireActor)
	inventory.NewBookHandler(ledger, respond).RegisterRoutes(authenticated)
	reservations.NewReservationHandler(machine, queries, respond).RegisterRoutes(authenticated)

	return r, nil
}
