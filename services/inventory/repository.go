package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/matheusmosca/library-reservations/internal/storage"
)

const table = "books"

var columns = []interface{}{
	"id", "title", "author", "isbn", "genre", "publication_year", "publisher", "description",
	"available_copies", "is_available", "active", "created_by", "updated_by", "created_at", "updated_at",
}

// BookRepository define a interface para operações de banco de dados de livros.
// Os métodos de contador são updates condicionais de uma linha e devolvem
// false quando a condição não foi satisfeita.
type BookRepository interface {
	Create(ctx context.Context, tx storage.Tx, book *Book) error
	Get(ctx context.Context, tx storage.Tx, id string, opts storage.ReadOptions) (*Book, error)
	Update(ctx context.Context, tx storage.Tx, book *Book) (bool, error)
	Deactivate(ctx context.Context, tx storage.Tx, id, actorID string, at time.Time) (bool, error)
	DecrementCopy(ctx context.Context, tx storage.Tx, id, actorID string, at time.Time) (bool, error)
	IncrementCopy(ctx context.Context, tx storage.Tx, id, actorID string, at time.Time) (bool, error)
	AdjustCopies(ctx context.Context, tx storage.Tx, id string, delta int, actorID string, at time.Time) (bool, error)
}

// SQLBookRepository implementa BookRepository sobre storage.DB
type SQLBookRepository struct {
	db *storage.DB
}

// NewBookRepository cria uma nova instância de SQLBookRepository
func NewBookRepository(db *storage.DB) BookRepository {
	return &SQLBookRepository{db: db}
}

// Create insere o livro
func (r *SQLBookRepository) Create(ctx context.Context, tx storage.Tx, book *Book) error {
	_, err := r.db.Exec(ctx, tx, r.db.Insert(table).Rows(goqu.Record{
		"id":               book.ID,
		"title":            book.Title,
		"author":           book.Author,
		"isbn":             book.ISBN,
		"genre":            book.Genre,
		"publication_year": book.PublicationYear,
		"publisher":        book.Publisher,
		"description":      book.Description,
		"available_copies": book.AvailableCopies,
		"is_available":     book.IsAvailable,
		"active":           book.Active,
		"created_by":       book.CreatedBy,
		"updated_by":       book.UpdatedBy,
		"created_at":       book.CreatedAt,
		"updated_at":       book.UpdatedAt,
	}))
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// Get busca um livro pelo id; inativos só com IncludeInactive
func (r *SQLBookRepository) Get(ctx context.Context, tx storage.Tx, id string, opts storage.ReadOptions) (*Book, error) {
	q := storage.ActiveOnly(r.db.From(table).Select(columns...).Where(goqu.C("id").Eq(id)), opts)

	var book Book
	if err := r.db.Get(ctx, tx, &book, q); err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return &book, nil
}

// Update grava os campos descritivos de um livro ativo
func (r *SQLBookRepository) Update(ctx context.Context, tx storage.Tx, book *Book) (bool, error) {
	n, err := r.db.Exec(ctx, tx, r.db.Update(table).Set(goqu.Record{
		"title":            book.Title,
		"author":           book.Author,
		"isbn":             book.ISBN,
		"genre":            book.Genre,
		"publication_year": book.PublicationYear,
		"publisher":        book.Publisher,
		"description":      book.Description,
		"updated_by":       book.UpdatedBy,
		"updated_at":       book.UpdatedAt,
	}).Where(goqu.C("id").Eq(book.ID), goqu.C("active").Eq(true)))
	if err != nil {
		return false, fmt.Errorf("failed to update book: %w", err)
	}
	return n > 0, nil
}

// Deactivate faz o soft delete; o livro deixa de ficar disponível
func (r *SQLBookRepository) Deactivate(ctx context.Context, tx storage.Tx, id, actorID string, at time.Time) (bool, error) {
	n, err := r.db.Exec(ctx, tx, r.db.Update(table).Set(goqu.Record{
		"active":       false,
		"is_available": false,
		"updated_by":   actorID,
		"updated_at":   at,
	}).Where(goqu.C("id").Eq(id), goqu.C("active").Eq(true)))
	if err != nil {
		return false, fmt.Errorf("failed to deactivate book: %w", err)
	}
	return n > 0, nil
}

// DecrementCopy retira uma cópia se o livro estiver ativo e com saldo.
// A condição no WHERE faz o papel de compare-and-swap: entre chamadores
// concorrentes só passa quem encontrar saldo positivo.
func (r *SQLBookRepository) DecrementCopy(ctx context.Context, tx storage.Tx, id, actorID string, at time.Time) (bool, error) {
	n, err := r.db.Exec(ctx, tx, r.db.Update(table).Set(goqu.Record{
		"available_copies": goqu.L("available_copies - 1"),
		"is_available":     goqu.L("available_copies > 1"),
		"updated_by":       actorID,
		"updated_at":       at,
	}).Where(
		goqu.C("id").Eq(id),
		goqu.C("active").Eq(true),
		goqu.C("available_copies").Gt(0),
	))
	if err != nil {
		return false, fmt.Errorf("failed to decrease copies: %w", err)
	}
	return n > 0, nil
}

// IncrementCopy devolve uma cópia; disponível volta a refletir o flag active
func (r *SQLBookRepository) IncrementCopy(ctx context.Context, tx storage.Tx, id, actorID string, at time.Time) (bool, error) {
	n, err := r.db.Exec(ctx, tx, r.db.Update(table).Set(goqu.Record{
		"available_copies": goqu.L("available_copies + 1"),
		"is_available":     goqu.I("active"),
		"updated_by":       actorID,
		"updated_at":       at,
	}).Where(goqu.C("id").Eq(id)))
	if err != nil {
		return false, fmt.Errorf("failed to increase copies: %w", err)
	}
	return n > 0, nil
}

// AdjustCopies soma delta ao contador de um livro ativo sem deixá-lo negativo
func (r *SQLBookRepository) AdjustCopies(ctx context.Context, tx storage.Tx, id string, delta int, actorID string, at time.Time) (bool, error) {
	n, err := r.db.Exec(ctx, tx, r.db.Update(table).Set(goqu.Record{
		"available_copies": goqu.L("available_copies + ?", delta),
		"is_available":     goqu.L("available_copies + ? > 0", delta),
		"updated_by":       actorID,
		"updated_at":       at,
	}).Where(
		goqu.C("id").Eq(id),
		goqu.C("active").Eq(true),
		goqu.L("available_copies + ? >= 0", delta),
	))
	if err != nil {
		return false, fmt.Errorf("failed to adjust copies: %w", err)
	}
	return n > 0, nil
}
