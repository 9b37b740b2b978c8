package reservations

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/matheusmosca/library-reservations/internal/storage"
)

const table = "reservations"

var columns = []interface{}{
	"id", "user_id", "book_id", "user_snapshot", "book_snapshot",
	"requested_at", "due_at", "returned_at", "status", "note", "created_at", "updated_at",
}

// StatusChange descreve a escrita de uma transição
type StatusChange struct {
	To         Status
	At         time.Time
	ReturnedAt *time.Time
	// DueBefore, quando informado, exige due_at < DueBefore na mesma escrita
	DueBefore *time.Time
}

// Criteria é a consulta já normalizada que o repositório executa
type Criteria struct {
	Status          Status
	ExcludeStatuses []Status
	UserID          string
	BookID          string
	RequestedFrom   *time.Time
	RequestedTo     *time.Time
	SortColumn      string
	Descending      bool
	Limit           int
	Offset          int
}

// ReservationRepository define a interface para operações de banco de dados de reservas
type ReservationRepository interface {
	Create(ctx context.Context, tx storage.Tx, reservation *Reservation) error
	Get(ctx context.Context, tx storage.Tx, id string) (*Reservation, error)
	Transition(ctx context.Context, tx storage.Tx, id string, from []Status, change StatusChange) (bool, error)
	UpdateDetails(ctx context.Context, tx storage.Tx, id string, dueAt time.Time, note string, at time.Time) (bool, error)
	ListOverdueCandidates(ctx context.Context, now time.Time, afterID string, limit int) ([]Reservation, error)
	Search(ctx context.Context, criteria Criteria) ([]Reservation, int, error)
}

// SQLReservationRepository implementa ReservationRepository sobre storage.DB
type SQLReservationRepository struct {
	db *storage.DB
}

// NewReservationRepository cria uma nova instância de SQLReservationRepository
func NewReservationRepository(db *storage.DB) ReservationRepository {
	return &SQLReservationRepository{db: db}
}

// Create insere a reserva com os snapshots serializados
func (r *SQLReservationRepository) Create(ctx context.Context, tx storage.Tx, reservation *Reservation) error {
	userSnapshot, err := reservation.UserSnapshot.Value()
	if err != nil {
		return err
	}
	bookSnapshot, err := reservation.BookSnapshot.Value()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, tx, r.db.Insert(table).Rows(goqu.Record{
		"id":            reservation.ID,
		"user_id":       reservation.UserID,
		"book_id":       reservation.BookID,
		"user_snapshot": userSnapshot,
		"book_snapshot": bookSnapshot,
		"requested_at":  reservation.RequestedAt,
		"due_at":        reservation.DueAt,
		"status":        string(reservation.Status),
		"note":          reservation.Note,
		"created_at":    reservation.CreatedAt,
		"updated_at":    reservation.UpdatedAt,
	}))
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

// Get busca a reserva pelo id
func (r *SQLReservationRepository) Get(ctx context.Context, tx storage.Tx, id string) (*Reservation, error) {
	var reservation Reservation
	q := r.db.From(table).Select(columns...).Where(goqu.C("id").Eq(id))
	if err := r.db.Get(ctx, tx, &reservation, q); err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &reservation, nil
}

// Transition troca o status só se o atual estiver em from. Retorna false
// quando outra escrita chegou antes ou o status não permite a transição.
func (r *SQLReservationRepository) Transition(ctx context.Context, tx storage.Tx, id string, from []Status, change StatusChange) (bool, error) {
	set := goqu.Record{
		"status":     string(change.To),
		"updated_at": change.At,
	}
	if change.ReturnedAt != nil {
		set["returned_at"] = *change.ReturnedAt
	}

	where := []exp.Expression{
		goqu.C("id").Eq(id),
		goqu.C("status").In(statusValues(from)),
	}
	if change.DueBefore != nil {
		where = append(where, goqu.C("due_at").Lt(*change.DueBefore))
	}

	n, err := r.db.Exec(ctx, tx, r.db.Update(table).Set(set).Where(where...))
	if err != nil {
		return false, fmt.Errorf("failed to move reservation to %s: %w", change.To, err)
	}
	return n > 0, nil
}

// UpdateDetails grava prazo e observação
func (r *SQLReservationRepository) UpdateDetails(ctx context.Context, tx storage.Tx, id string, dueAt time.Time, note string, at time.Time) (bool, error) {
	n, err := r.db.Exec(ctx, tx, r.db.Update(table).Set(goqu.Record{
		"due_at":     dueAt,
		"note":       note,
		"updated_at": at,
	}).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return false, fmt.Errorf("failed to update reservation: %w", err)
	}
	return n > 0, nil
}

// ListOverdueCandidates pagina por id as reservas pendentes/ativas vencidas
func (r *SQLReservationRepository) ListOverdueCandidates(ctx context.Context, now time.Time, afterID string, limit int) ([]Reservation, error) {
	q := r.db.From(table).Select(columns...).
		Where(
			goqu.C("status").In(statusValues(overdueFrom)),
			goqu.C("due_at").Lt(now),
			goqu.C("id").Gt(afterID),
		).
		Order(goqu.C("id").Asc()).
		Limit(uint(limit))

	reservations := []Reservation{}
	if err := r.db.Select(ctx, nil, &reservations, q); err != nil {
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}
	return reservations, nil
}

// Search devolve a página pedida e o total de registros que casam com o filtro
func (r *SQLReservationRepository) Search(ctx context.Context, criteria Criteria) ([]Reservation, int, error) {
	base := r.db.From(table).Where(criteriaExpressions(criteria)...)

	var total int
	if err := r.db.Get(ctx, nil, &total, base.Select(goqu.COUNT("*"))); err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	order := goqu.C(criteria.SortColumn).Asc()
	if criteria.Descending {
		order = goqu.C(criteria.SortColumn).Desc()
	}

	q := base.Select(columns...).
		Order(order, goqu.C("id").Asc()).
		Limit(uint(criteria.Limit)).
		Offset(uint(criteria.Offset))

	reservations := []Reservation{}
	if err := r.db.Select(ctx, nil, &reservations, q); err != nil {
		return nil, 0, fmt.Errorf("failed to search reservations: %w", err)
	}
	return reservations, total, nil
}

func criteriaExpressions(c Criteria) []exp.Expression {
	exprs := []exp.Expression{}
	if c.Status != "" {
		exprs = append(exprs, goqu.C("status").Eq(string(c.Status)))
	}
	if len(c.ExcludeStatuses) > 0 {
		exprs = append(exprs, goqu.C("status").NotIn(statusValues(c.ExcludeStatuses)))
	}
	if c.UserID != "" {
		exprs = append(exprs, goqu.C("user_id").Eq(c.UserID))
	}
	if c.BookID != "" {
		exprs = append(exprs, goqu.C("book_id").Eq(c.BookID))
	}
	if c.RequestedFrom != nil {
		exprs = append(exprs, goqu.C("requested_at").Gte(*c.RequestedFrom))
	}
	if c.RequestedTo != nil {
		exprs = append(exprs, goqu.C("requested_at").Lte(*c.RequestedTo))
	}
	return exprs
}

func statusValues(statuses []Status) []string {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return values
}
