package reservations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/apperror"
	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/services/permissions"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// sortColumns é a whitelist de campos ordenáveis da listagem geral
var sortColumns = map[string]string{
	"requestedAt": "requested_at",
	"dueAt":       "due_at",
	"returnedAt":  "returned_at",
	"status":      "status",
	"createdAt":   "created_at",
}

// Filter são os filtros da listagem
type Filter struct {
	Status        Status
	RequestedFrom *time.Time
	RequestedTo   *time.Time
	BookID        string
	UserID        string
	SortBy        string
	SortDir       string
}

// PageRequest pede uma página; valores fora da faixa são normalizados
type PageRequest struct {
	Page     int
	PageSize int
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Page é o formato paginado devolvido ao chamador
type Page struct {
	Items      []Reservation `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// QueryService responde às leituras de reservas
type QueryService struct {
	repository ReservationRepository
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewQueryService cria uma nova instância de QueryService
func NewQueryService(repository ReservationRepository, logger *zap.Logger, tracer trace.Tracer) *QueryService {
	return &QueryService{
		repository: repository,
		logger:     logger,
		tracer:     tracer,
	}
}

// List é a listagem geral; requer viewReservations
func (q *QueryService) List(ctx context.Context, actor *permissions.Actor, filter Filter, page PageRequest) (*Page, error) {
	if err := permissions.Require(actor, permissions.ViewReservations); err != nil {
		return nil, err
	}
	return q.list(ctx, "reservations.List", filter, page)
}

// ListForUser lista as reservas de um usuário; ele mesmo ou viewReservations
func (q *QueryService) ListForUser(ctx context.Context, actor *permissions.Actor, userID string, filter Filter, page PageRequest) (*Page, error) {
	if err := permissions.RequireOrSelf(actor, permissions.ViewReservations, userID); err != nil {
		return nil, err
	}
	filter.UserID = userID
	return q.list(ctx, "reservations.ListForUser", filter, page)
}

// UserHistory é o histórico do usuário, mais recentes primeiro
func (q *QueryService) UserHistory(ctx context.Context, actor *permissions.Actor, userID string, includeCancelled bool, page PageRequest) (*Page, error) {
	if err := permissions.RequireOrSelf(actor, permissions.ViewReservations, userID); err != nil {
		return nil, err
	}
	return q.history(ctx, "reservations.UserHistory", Criteria{UserID: userID}, includeCancelled, page)
}

// BookHistory é o histórico do livro, mais recentes primeiro
func (q *QueryService) BookHistory(ctx context.Context, actor *permissions.Actor, bookID string, includeCancelled bool, page PageRequest) (*Page, error) {
	if err := permissions.Require(actor, permissions.ViewReservations); err != nil {
		return nil, err
	}
	return q.history(ctx, "reservations.BookHistory", Criteria{BookID: bookID}, includeCancelled, page)
}

// Get retorna uma reserva ao dono ou a quem tem viewReservations
func (q *QueryService) Get(ctx context.Context, actor *permissions.Actor, id string) (*Reservation, error) {
	reservation, err := q.repository.Get(ctx, nil, id)
	if err != nil {
		if storage.IsNoRows(err) {
			return nil, apperror.NotFound("reservation %s not found", id)
		}
		return nil, apperror.Internal("failed to load reservation", err)
	}

	if err := permissions.RequireOrSelf(actor, permissions.ViewReservations, reservation.UserID); err != nil {
		return nil, err
	}
	return reservation, nil
}

func (q *QueryService) list(ctx context.Context, spanName string, filter Filter, page PageRequest) (*Page, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.Invalid("unknown status %q", filter.Status)
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "requestedAt"
	}
	column, ok := sortColumns[sortBy]
	if !ok {
		return nil, apperror.Invalid("cannot sort by %q", filter.SortBy)
	}

	var descending bool
	switch filter.SortDir {
	case "", "desc":
		descending = true
	case "asc":
	default:
		return nil, apperror.Invalid("sort direction must be asc or desc")
	}

	return q.search(ctx, spanName, Criteria{
		Status:        filter.Status,
		UserID:        filter.UserID,
		BookID:        filter.BookID,
		RequestedFrom: filter.RequestedFrom,
		RequestedTo:   filter.RequestedTo,
		SortColumn:    column,
		Descending:    descending,
	}, page)
}

func (q *QueryService) history(ctx context.Context, spanName string, criteria Criteria, includeCancelled bool, page PageRequest) (*Page, error) {
	if !includeCancelled {
		criteria.ExcludeStatuses = []Status{StatusCancelled}
	}
	criteria.SortColumn = "requested_at"
	criteria.Descending = true
	return q.search(ctx, spanName, criteria, page)
}

func (q *QueryService) search(ctx context.Context, spanName string, criteria Criteria, page PageRequest) (*Page, error) {
	ctx, span := q.tracer.Start(ctx, spanName)
	defer span.End()

	page = page.normalize()
	criteria.Limit = page.PageSize
	criteria.Offset = (page.Page - 1) * page.PageSize

	items, total, err := q.repository.Search(ctx, criteria)
	if err != nil {
		q.logger.Error("❌ [QUERY] search failed", zap.String("query", spanName), zap.Error(err))
		return nil, apperror.Internal("failed to query reservations", err)
	}

	span.SetAttributes(attribute.Int("total", total), attribute.Int("page", page.Page))
	return &Page{
		Items:      items,
		Total:      total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: (total + page.PageSize - 1) / page.PageSize,
	}, nil
}
