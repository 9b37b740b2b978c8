package reservations

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/apperror"
	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/services/inventory"
	"github.com/matheusmosca/library-reservations/services/permissions"
	"github.com/matheusmosca/library-reservations/services/users"
)

// UserDirectory é o que a máquina de estados lê dos usuários
type UserDirectory interface {
	Get(ctx context.Context, tx storage.Tx, id string, opts storage.ReadOptions) (*users.User, error)
}

// InventoryLedger é o contador de cópias, chamado dentro da transação da reserva
type InventoryLedger interface {
	ReserveCopy(ctx context.Context, tx storage.Tx, bookID, actorID string) (*inventory.Book, error)
	ReleaseCopy(ctx context.Context, tx storage.Tx, bookID, actorID string) (*inventory.Book, error)
}

// Options ajusta prazos e a varredura
type Options struct {
	LoanPeriod     time.Duration
	SweepBatchSize int
	Clock          func() time.Time
}

// StateMachine conduz o ciclo de vida das reservas junto com o inventário
type StateMachine struct {
	db         storage.Transactor
	repository ReservationRepository
	users      UserDirectory
	ledger     InventoryLedger
	metrics    *Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	opts       Options
}

// NewStateMachine cria uma nova instância de StateMachine
func NewStateMachine(
	db storage.Transactor,
	repository ReservationRepository,
	users UserDirectory,
	ledger InventoryLedger,
	metrics *Metrics,
	logger *zap.Logger,
	tracer trace.Tracer,
	opts Options,
) *StateMachine {
	if opts.LoanPeriod <= 0 {
		opts.LoanPeriod = 14 * 24 * time.Hour
	}
	if opts.SweepBatchSize <= 0 {
		opts.SweepBatchSize = 100
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &StateMachine{
		db:         db,
		repository: repository,
		users:      users,
		ledger:     ledger,
		metrics:    metrics,
		logger:     logger,
		tracer:     tracer,
		opts:       opts,
	}
}

func (sm *StateMachine) now() time.Time {
	return sm.opts.Clock().UTC()
}

// Create reserva uma cópia para o próprio ator. A baixa no inventário e a
// gravação da reserva acontecem na mesma transação.
func (sm *StateMachine) Create(ctx context.Context, actor *permissions.Actor, in CreateInput) (*Reservation, error) {
	ctx, span := sm.tracer.Start(ctx, "reservations.Create")
	defer span.End()
	span.SetAttributes(attribute.String("book_id", in.BookID))

	if actor == nil || !actor.Active {
		err := apperror.Forbidden("an active actor is required")
		sm.fail(span, "CREATE", err, zap.String("book_id", in.BookID))
		return nil, err
	}
	if in.UserID != "" && in.UserID != actor.ID {
		err := apperror.Forbidden("reservations can only be created for yourself")
		sm.fail(span, "CREATE", err, zap.String("book_id", in.BookID), zap.String("actor_id", actor.ID))
		return nil, err
	}

	now := sm.now()
	dueAt := now.Add(sm.opts.LoanPeriod)
	if in.DueAt != nil {
		dueAt = in.DueAt.UTC()
	}
	if !dueAt.After(now) {
		return nil, apperror.Invalid("dueAt must be in the future")
	}

	var reservation *Reservation
	err := sm.db.InTx(ctx, func(tx storage.Tx) error {
		user, err := sm.users.Get(ctx, tx, actor.ID, storage.ReadOptions{})
		if err != nil {
			if storage.IsNoRows(err) {
				return apperror.NotFound("user %s not found", actor.ID)
			}
			return apperror.Internal("failed to load user", err)
		}

		book, err := sm.ledger.ReserveCopy(ctx, tx, in.BookID, actor.ID)
		if err != nil {
			return err
		}

		reservation = NewReservation(user, book, now, dueAt, in.Note)
		if err := sm.repository.Create(ctx, tx, reservation); err != nil {
			return apperror.Internal("failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrUnavailable) {
			sm.metrics.unavailable.Add(ctx, 1)
		}
		sm.fail(span, "CREATE", err, zap.String("book_id", in.BookID), zap.String("actor_id", actor.ID))
		return nil, err
	}

	sm.metrics.created.Add(ctx, 1)
	span.SetAttributes(attribute.String("reservation_id", reservation.ID))
	sm.logger.Info("✅ [CREATE] reservation created",
		zap.String("reservation_id", reservation.ID),
		zap.String("book_id", reservation.BookID),
		zap.String("actor_id", actor.ID),
	)
	return reservation, nil
}

// Activate registra a retirada: pending -> active. Requer manageReservations.
func (sm *StateMachine) Activate(ctx context.Context, actor *permissions.Actor, id string) (*Reservation, error) {
	ctx, span := sm.tracer.Start(ctx, "reservations.Activate")
	defer span.End()
	span.SetAttributes(attribute.String("reservation_id", id))

	if err := permissions.Require(actor, permissions.ManageReservations); err != nil {
		sm.fail(span, "ACTIVATE", err, zap.String("reservation_id", id))
		return nil, err
	}

	var reservation *Reservation
	err := sm.db.InTx(ctx, func(tx storage.Tx) error {
		var err error
		reservation, err = sm.activate(ctx, tx, id)
		return err
	})
	if err != nil {
		sm.fail(span, "ACTIVATE", err, zap.String("reservation_id", id))
		return nil, err
	}

	sm.logger.Info("✅ [ACTIVATE] reservation picked up", zap.String("reservation_id", id), zap.String("actor_id", actor.ID))
	return reservation, nil
}

func (sm *StateMachine) activate(ctx context.Context, tx storage.Tx, id string) (*Reservation, error) {
	ok, err := sm.repository.Transition(ctx, tx, id, activatableFrom, StatusChange{To: StatusActive, At: sm.now()})
	if err != nil {
		return nil, apperror.Internal("failed to activate reservation", err)
	}

	reservation, err := sm.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.InvalidState("reservation %s is %s and cannot be activated", id, reservation.Status)
	}
	return reservation, nil
}

// Complete registra a devolução e repõe a cópia no inventário. Requer
// manageReservations; o próprio usuário não pode concluir.
func (sm *StateMachine) Complete(ctx context.Context, actor *permissions.Actor, id string) (*Reservation, error) {
	ctx, span := sm.tracer.Start(ctx, "reservations.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("reservation_id", id))

	if err := permissions.Require(actor, permissions.ManageReservations); err != nil {
		sm.fail(span, "COMPLETE", err, zap.String("reservation_id", id))
		return nil, err
	}

	var reservation *Reservation
	err := sm.db.InTx(ctx, func(tx storage.Tx) error {
		var err error
		reservation, err = sm.complete(ctx, tx, actor, id)
		return err
	})
	if err != nil {
		sm.fail(span, "COMPLETE", err, zap.String("reservation_id", id))
		return nil, err
	}

	sm.metrics.completed.Add(ctx, 1)
	sm.logger.Info("✅ [COMPLETE] reservation returned",
		zap.String("reservation_id", id),
		zap.String("book_id", reservation.BookID),
		zap.String("actor_id", actor.ID),
	)
	return reservation, nil
}

func (sm *StateMachine) complete(ctx context.Context, tx storage.Tx, actor *permissions.Actor, id string) (*Reservation, error) {
	now := sm.now()
	ok, err := sm.repository.Transition(ctx, tx, id, completableFrom, StatusChange{
		To:         StatusCompleted,
		At:         now,
		ReturnedAt: &now,
	})
	if err != nil {
		return nil, apperror.Internal("failed to complete reservation", err)
	}

	reservation, err := sm.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if reservation.Status == StatusCompleted {
			return nil, apperror.AlreadyCompleted(id)
		}
		return nil, apperror.InvalidState("reservation %s is %s and cannot be completed", id, reservation.Status)
	}

	// só quem venceu o compare-and-swap do status devolve a cópia
	if _, err := sm.ledger.ReleaseCopy(ctx, tx, reservation.BookID, actor.ID); err != nil {
		return nil, err
	}
	return reservation, nil
}

// Cancel encerra a reserva sem repor a cópia no inventário. Permitido ao
// dono da reserva ou a quem tem manageReservations.
func (sm *StateMachine) Cancel(ctx context.Context, actor *permissions.Actor, id string) (*Reservation, error) {
	ctx, span := sm.tracer.Start(ctx, "reservations.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("reservation_id", id))

	var reservation *Reservation
	err := sm.db.InTx(ctx, func(tx storage.Tx) error {
		current, err := sm.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := permissions.RequireOrSelf(actor, permissions.ManageReservations, current.UserID); err != nil {
			return err
		}

		reservation, err = sm.cancel(ctx, tx, id)
		return err
	})
	if err != nil {
		sm.fail(span, "CANCEL", err, zap.String("reservation_id", id))
		return nil, err
	}

	sm.metrics.cancelled.Add(ctx, 1)
	sm.logger.Info("✅ [CANCEL] reservation cancelled", zap.String("reservation_id", id), zap.String("actor_id", actor.ID))
	return reservation, nil
}

func (sm *StateMachine) cancel(ctx context.Context, tx storage.Tx, id string) (*Reservation, error) {
	ok, err := sm.repository.Transition(ctx, tx, id, cancellableFrom, StatusChange{To: StatusCancelled, At: sm.now()})
	if err != nil {
		return nil, apperror.Internal("failed to cancel reservation", err)
	}

	reservation, err := sm.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if reservation.Status == StatusCancelled {
			return nil, apperror.AlreadyCancelled(id)
		}
		return nil, apperror.InvalidState("reservation %s is %s and cannot be cancelled", id, reservation.Status)
	}
	return reservation, nil
}

// Update mescla prazo e observação. Um novo status nunca é gravado direto:
// completed, cancelled e active seguem as mesmas transições dos endpoints
// dedicados, na mesma transação da mescla.
func (sm *StateMachine) Update(ctx context.Context, actor *permissions.Actor, id string, in UpdateInput) (*Reservation, error) {
	ctx, span := sm.tracer.Start(ctx, "reservations.Update")
	defer span.End()
	span.SetAttributes(attribute.String("reservation_id", id))

	if err := permissions.Require(actor, permissions.ManageReservations); err != nil {
		sm.fail(span, "UPDATE", err, zap.String("reservation_id", id))
		return nil, err
	}
	if in.Status != nil {
		var err error
		switch *in.Status {
		case StatusCompleted, StatusCancelled, StatusActive:
		case StatusPending, StatusOverdue:
			err = apperror.InvalidState("status %s cannot be set directly", *in.Status)
		default:
			err = apperror.Invalid("unknown status %q", *in.Status)
		}
		if err != nil {
			sm.fail(span, "UPDATE", err, zap.String("reservation_id", id))
			return nil, err
		}
	}

	var reservation *Reservation
	err := sm.db.InTx(ctx, func(tx storage.Tx) error {
		current, err := sm.load(ctx, tx, id)
		if err != nil {
			return err
		}
		reservation = current

		if in.DueAt != nil || in.Note != nil {
			dueAt, note := current.DueAt, current.Note
			if in.DueAt != nil {
				dueAt = in.DueAt.UTC()
			}
			if in.Note != nil {
				note = *in.Note
			}
			if !dueAt.After(current.RequestedAt) {
				return apperror.Invalid("dueAt must be after requestedAt")
			}

			if _, err := sm.repository.UpdateDetails(ctx, tx, id, dueAt, note, sm.now()); err != nil {
				return apperror.Internal("failed to update reservation", err)
			}
			if reservation, err = sm.load(ctx, tx, id); err != nil {
				return err
			}
		}

		if in.Status == nil {
			return nil
		}
		switch *in.Status {
		case StatusCompleted:
			reservation, err = sm.complete(ctx, tx, actor, id)
		case StatusCancelled:
			reservation, err = sm.cancel(ctx, tx, id)
		case StatusActive:
			reservation, err = sm.activate(ctx, tx, id)
		}
		return err
	})
	if err != nil {
		sm.fail(span, "UPDATE", err, zap.String("reservation_id", id))
		return nil, err
	}

	if in.Status != nil {
		switch *in.Status {
		case StatusCompleted:
			sm.metrics.completed.Add(ctx, 1)
		case StatusCancelled:
			sm.metrics.cancelled.Add(ctx, 1)
		}
	}

	sm.logger.Info("✅ [UPDATE] reservation updated", zap.String("reservation_id", id), zap.String("actor_id", actor.ID))
	return reservation, nil
}

// SweepOverdue marca como overdue toda reserva pendente ou ativa com prazo
// vencido. Cada registro é gravado na sua própria transação: uma falha no
// meio não desfaz o que já foi marcado, e repetir a varredura não muda nada.
func (sm *StateMachine) SweepOverdue(ctx context.Context, actor *permissions.Actor) (*SweepResult, error) {
	ctx, span := sm.tracer.Start(ctx, "reservations.SweepOverdue")
	defer span.End()

	if err := permissions.Require(actor, permissions.Admin); err != nil {
		sm.fail(span, "SWEEP", err)
		return nil, err
	}

	now := sm.now()
	result := &SweepResult{ReservationIDs: []string{}}
	afterID := ""

	sm.logger.Info("➡️ [SWEEP] started", zap.Time("now", now), zap.Int("batch_size", sm.opts.SweepBatchSize))

	for {
		batch, err := sm.repository.ListOverdueCandidates(ctx, now, afterID, sm.opts.SweepBatchSize)
		if err != nil {
			sm.fail(span, "SWEEP", err)
			return result, apperror.Internal("failed to list overdue candidates", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, candidate := range batch {
			result.Scanned++

			var moved bool
			err := sm.db.InTx(ctx, func(tx storage.Tx) error {
				var err error
				moved, err = sm.repository.Transition(ctx, tx, candidate.ID, overdueFrom, StatusChange{
					To:        StatusOverdue,
					At:        now,
					DueBefore: &now,
				})
				return err
			})
			if err != nil {
				result.Failed++
				sm.logger.Error("❌ [SWEEP] failed to mark reservation overdue",
					zap.String("reservation_id", candidate.ID),
					zap.Error(err),
				)
				continue
			}
			if moved {
				result.Updated++
				result.ReservationIDs = append(result.ReservationIDs, candidate.ID)
			}
		}

		afterID = batch[len(batch)-1].ID
		if len(batch) < sm.opts.SweepBatchSize {
			break
		}
	}

	sm.metrics.sweptOverdue.Add(ctx, int64(result.Updated))
	span.SetAttributes(
		attribute.Int("scanned", result.Scanned),
		attribute.Int("updated", result.Updated),
		attribute.Int("failed", result.Failed),
	)
	sm.logger.Info("✅ [SWEEP] finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (sm *StateMachine) load(ctx context.Context, tx storage.Tx, id string) (*Reservation, error) {
	reservation, err := sm.repository.Get(ctx, tx, id)
	if err != nil {
		if storage.IsNoRows(err) {
			return nil, apperror.NotFound("reservation %s not found", id)
		}
		return nil, apperror.Internal("failed to load reservation", err)
	}
	return reservation, nil
}

// fail registra a falha no span e no log; regras de negócio vão em Info
func (sm *StateMachine) fail(span trace.Span, tag string, err error, fields ...zap.Field) {
	span.SetStatus(codes.Error, err.Error())
	fields = append(fields, zap.Error(err))

	if apperror.KindOf(err) == apperror.KindInternal {
		sm.logger.Error("❌ ["+tag+"] failed", fields...)
		return
	}
	sm.logger.Info("ℹ️ ["+tag+"] rejected", fields...)
}
