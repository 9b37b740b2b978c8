package inventory

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/apperror"
	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/services/permissions"
)

// Ledger é dono dos contadores de cópias e do cadastro dos livros
type Ledger struct {
	db         storage.Transactor
	repository BookRepository
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewLedger cria uma nova instância de Ledger
func NewLedger(db storage.Transactor, repository BookRepository, logger *zap.Logger, tracer trace.Tracer) *Ledger {
	return &Ledger{
		db:         db,
		repository: repository,
		logger:     logger,
		tracer:     tracer,
	}
}

// ReserveCopy retira uma cópia do livro e devolve o livro já atualizado.
// Com tx != nil a operação entra na transação do chamador; com nil abre a sua.
func (l *Ledger) ReserveCopy(ctx context.Context, tx storage.Tx, bookID, actorID string) (*Book, error) {
	ctx, span := l.tracer.Start(ctx, "inventory.ReserveCopy")
	defer span.End()
	span.SetAttributes(attribute.String("book_id", bookID))

	book, err := l.within(ctx, tx, func(tx storage.Tx) (*Book, error) {
		return l.reserveCopy(ctx, tx, bookID, actorID)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("available_copies", book.AvailableCopies))
	return book, nil
}

func (l *Ledger) reserveCopy(ctx context.Context, tx storage.Tx, bookID, actorID string) (*Book, error) {
	ok, err := l.repository.DecrementCopy(ctx, tx, bookID, actorID, time.Now().UTC())
	if err != nil {
		if storage.IsCheckViolation(err) {
			return nil, apperror.Unavailable("book %s has no available copies", bookID)
		}
		return nil, apperror.Internal("failed to reserve copy", err)
	}

	book, err := l.repository.Get(ctx, tx, bookID, storage.ReadOptions{IncludeInactive: true})
	if err != nil {
		if storage.IsNoRows(err) {
			return nil, apperror.NotFound("book %s not found", bookID)
		}
		return nil, apperror.Internal("failed to load book", err)
	}

	if !ok {
		if !book.Active {
			return nil, apperror.NotFound("book %s not found", bookID)
		}
		l.logger.Info("ℹ️ [RESERVE COPY] no copies left", zap.String("book_id", bookID))
		return nil, apperror.Unavailable("book %s has no available copies", bookID)
	}

	l.logger.Debug("➡️ [RESERVE COPY] copy taken",
		zap.String("book_id", bookID),
		zap.Int("available_copies", book.AvailableCopies),
	)
	return book, nil
}

// ReleaseCopy devolve uma cópia ao livro. Livro inativo também recebe a
// devolução, mas continua indisponível.
func (l *Ledger) ReleaseCopy(ctx context.Context, tx storage.Tx, bookID, actorID string) (*Book, error) {
	ctx, span := l.tracer.Start(ctx, "inventory.ReleaseCopy")
	defer span.End()
	span.SetAttributes(attribute.String("book_id", bookID))

	book, err := l.within(ctx, tx, func(tx storage.Tx) (*Book, error) {
		ok, err := l.repository.IncrementCopy(ctx, tx, bookID, actorID, time.Now().UTC())
		if err != nil {
			return nil, apperror.Internal("failed to release copy", err)
		}
		if !ok {
			return nil, apperror.NotFound("book %s not found", bookID)
		}

		book, err := l.repository.Get(ctx, tx, bookID, storage.ReadOptions{IncludeInactive: true})
		if err != nil {
			return nil, apperror.Internal("failed to load book", err)
		}
		return book, nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	l.logger.Debug("↩️ [RELEASE COPY] copy returned",
		zap.String("book_id", bookID),
		zap.Int("available_copies", book.AvailableCopies),
	)
	return book, nil
}

// AdjustCopies soma delta ao contador; requer manageInventory. Um delta que
// deixaria o contador negativo falha com unavailable.
func (l *Ledger) AdjustCopies(ctx context.Context, actor *permissions.Actor, bookID string, delta int) (*Book, error) {
	ctx, span := l.tracer.Start(ctx, "inventory.AdjustCopies")
	defer span.End()
	span.SetAttributes(attribute.String("book_id", bookID), attribute.Int("delta", delta))

	if err := permissions.Require(actor, permissions.ManageInventory); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, apperror.Invalid("delta must not be zero")
	}

	book, err := l.within(ctx, nil, func(tx storage.Tx) (*Book, error) {
		ok, err := l.repository.AdjustCopies(ctx, tx, bookID, delta, actor.ID, time.Now().UTC())
		if err != nil {
			// o CHECK (available_copies >= 0) barrou o que o WHERE deixou passar
			if storage.IsCheckViolation(err) {
				return nil, apperror.Unavailable("cannot remove %d copies from book %s", -delta, bookID)
			}
			return nil, apperror.Internal("failed to adjust copies", err)
		}

		book, err := l.repository.Get(ctx, tx, bookID, storage.ReadOptions{})
		if err != nil {
			if storage.IsNoRows(err) {
				return nil, apperror.NotFound("book %s not found", bookID)
			}
			return nil, apperror.Internal("failed to load book", err)
		}
		if !ok {
			return nil, apperror.Unavailable("cannot remove %d copies, only %d available", -delta, book.AvailableCopies)
		}
		return book, nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("✅ [INVENTORY] copies adjusted",
		zap.String("book_id", bookID),
		zap.Int("delta", delta),
		zap.Int("available_copies", book.AvailableCopies),
		zap.String("actor_id", actor.ID),
	)
	return book, nil
}

// CreateBook cadastra um título; requer createBooks
func (l *Ledger) CreateBook(ctx context.Context, actor *permissions.Actor, in CreateBookInput) (*Book, error) {
	if err := permissions.Require(actor, permissions.CreateBooks); err != nil {
		return nil, err
	}

	copies := 1
	if in.AvailableCopies != nil {
		copies = *in.AvailableCopies
	}
	if copies < 0 {
		return nil, apperror.Invalid("availableCopies must not be negative")
	}

	book := NewBook(in, copies, actor.ID)
	if err := l.repository.Create(ctx, nil, book); err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, apperror.Conflict("isbn %s is already registered", book.ISBN)
		}
		return nil, apperror.Internal("failed to create book", err)
	}

	l.logger.Info("✅ [BOOK] created",
		zap.String("book_id", book.ID),
		zap.String("isbn", book.ISBN),
		zap.Int("available_copies", book.AvailableCopies),
	)
	return book, nil
}

// GetBook retorna um livro ativo. Incluir inativos requer editBooks.
func (l *Ledger) GetBook(ctx context.Context, actor *permissions.Actor, id string, includeInactive bool) (*Book, error) {
	if includeInactive {
		if err := permissions.Require(actor, permissions.EditBooks); err != nil {
			return nil, err
		}
	}

	book, err := l.repository.Get(ctx, nil, id, storage.ReadOptions{IncludeInactive: includeInactive})
	if err != nil {
		if storage.IsNoRows(err) {
			return nil, apperror.NotFound("book %s not found", id)
		}
		return nil, apperror.Internal("failed to load book", err)
	}
	return book, nil
}

// UpdateBook altera campos descritivos; requer editBooks
func (l *Ledger) UpdateBook(ctx context.Context, actor *permissions.Actor, id string, in UpdateBookInput) (*Book, error) {
	if err := permissions.Require(actor, permissions.EditBooks); err != nil {
		return nil, err
	}

	book, err := l.GetBook(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}

	applyBookPatch(book, in)
	book.UpdatedBy = actor.ID
	book.UpdatedAt = time.Now().UTC()

	ok, err := l.repository.Update(ctx, nil, book)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, apperror.Conflict("isbn %s is already registered", book.ISBN)
		}
		return nil, apperror.Internal("failed to update book", err)
	}
	if !ok {
		return nil, apperror.NotFound("book %s not found", id)
	}

	// o contador pode ter mudado desde a leitura
	return l.GetBook(ctx, actor, id, false)
}

// DeactivateBook faz o soft delete; requer deleteBooks
func (l *Ledger) DeactivateBook(ctx context.Context, actor *permissions.Actor, id string) error {
	if err := permissions.Require(actor, permissions.DeleteBooks); err != nil {
		return err
	}

	ok, err := l.repository.Deactivate(ctx, nil, id, actor.ID, time.Now().UTC())
	if err != nil {
		return apperror.Internal("failed to deactivate book", err)
	}
	if !ok {
		return apperror.NotFound("book %s not found", id)
	}

	l.logger.Info("✅ [BOOK] deactivated", zap.String("book_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (l *Ledger) within(ctx context.Context, tx storage.Tx, fn func(tx storage.Tx) (*Book, error)) (*Book, error) {
	if tx != nil {
		return fn(tx)
	}

	var book *Book
	err := l.db.InTx(ctx, func(tx storage.Tx) error {
		var err error
		book, err = fn(tx)
		return err
	})
	return book, err
}

func applyBookPatch(book *Book, in UpdateBookInput) {
	if in.Title != nil {
		book.Title = *in.Title
	}
	if in.Author != nil {
		book.Author = *in.Author
	}
	if in.ISBN != nil {
		book.ISBN = *in.ISBN
	}
	if in.Genre != nil {
		book.Genre = *in.Genre
	}
	if in.PublicationYear != nil {
		book.PublicationYear = *in.PublicationYear
	}
	if in.Publisher != nil {
		book.Publisher = *in.Publisher
	}
	if in.Description != nil {
		book.Description = *in.Description
	}
}
