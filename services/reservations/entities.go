package reservations

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"

	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/services/inventory"
	"github.com/matheusmosca/library-reservations/services/users"
)

// Status representa a etapa do ciclo de vida de uma reserva
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusOverdue   Status = "overdue"
)

// Valid indica se o status é conhecido
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusCancelled, StatusOverdue:
		return true
	}
	return false
}

// Terminal indica se nenhuma transição sai deste status
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Origens permitidas de cada transição
var (
	activatableFrom = []Status{StatusPending}
	completableFrom = []Status{StatusPending, StatusActive, StatusOverdue}
	cancellableFrom = []Status{StatusPending, StatusActive, StatusOverdue}
	overdueFrom     = []Status{StatusPending, StatusActive}
)

// UserSnapshot congela os dados do usuário no momento da reserva
type UserSnapshot struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Value implementa driver.Valuer
func (s UserSnapshot) Value() (driver.Value, error) {
	return storage.JSONValue(s)
}

// Scan implementa sql.Scanner
func (s *UserSnapshot) Scan(src any) error {
	return storage.ScanJSON(src, s)
}

// BookSnapshot congela os dados do livro no momento da reserva
type BookSnapshot struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Genre           string `json:"genre"`
	PublicationYear int    `json:"publicationYear"`
	Publisher       string `json:"publisher"`
}

// Value implementa driver.Valuer
func (s BookSnapshot) Value() (driver.Value, error) {
	return storage.JSONValue(s)
}

// Scan implementa sql.Scanner
func (s *BookSnapshot) Scan(src any) error {
	return storage.ScanJSON(src, s)
}

// Reservation representa o empréstimo de uma cópia
type Reservation struct {
	ID           string       `json:"id" db:"id"`
	UserID       string       `json:"userId" db:"user_id"`
	BookID       string       `json:"bookId" db:"book_id"`
	UserSnapshot UserSnapshot `json:"user" db:"user_snapshot"`
	BookSnapshot BookSnapshot `json:"book" db:"book_snapshot"`
	RequestedAt  time.Time    `json:"requestedAt" db:"requested_at"`
	DueAt        time.Time    `json:"dueAt" db:"due_at"`
	ReturnedAt   *time.Time   `json:"returnedAt" db:"returned_at"`
	Status       Status       `json:"status" db:"status"`
	Note         string       `json:"note" db:"note"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// NewReservation cria uma reserva pendente com os snapshots de usuário e livro
func NewReservation(user *users.User, book *inventory.Book, requestedAt, dueAt time.Time, note string) *Reservation {
	return &Reservation{
		ID:     uuid.NewString(),
		UserID: user.ID,
		BookID: book.ID,
		UserSnapshot: UserSnapshot{
			ID:        user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Email:     user.Email,
		},
		BookSnapshot: BookSnapshot{
			ID:              book.ID,
			Title:           book.Title,
			Author:          book.Author,
			ISBN:            book.ISBN,
			Genre:           book.Genre,
			PublicationYear: book.PublicationYear,
			Publisher:       book.Publisher,
		},
		RequestedAt: requestedAt,
		DueAt:       dueAt,
		Status:      StatusPending,
		Note:        note,
		CreatedAt:   requestedAt,
		UpdatedAt:   requestedAt,
	}
}

// CreateInput é o pedido de reserva; UserID, se vier, precisa ser o do ator
type CreateInput struct {
	BookID string     `json:"bookId" binding:"required"`
	UserID string     `json:"userId"`
	DueAt  *time.Time `json:"dueAt"`
	Note   string     `json:"note"`
}

// UpdateInput mescla campos; Status passa pela tabela de transições
type UpdateInput struct {
	DueAt  *time.Time `json:"dueAt"`
	Note   *string    `json:"note"`
	Status *Status    `json:"status"`
}

// SweepResult resume uma varredura de atrasos
type SweepResult struct {
	Scanned        int      `json:"scanned"`
	Updated        int      `json:"updated"`
	Failed         int      `json:"failed"`
	ReservationIDs []string `json:"reservationIds"`
}
