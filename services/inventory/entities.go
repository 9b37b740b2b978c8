package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Book representa um título do acervo e seu contador de cópias
type Book struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	ISBN            string    `json:"isbn" db:"isbn"`
	Genre           string    `json:"genre" db:"genre"`
	PublicationYear int       `json:"publicationYear" db:"publication_year"`
	Publisher       string    `json:"publisher" db:"publisher"`
	Description     string    `json:"description" db:"description"`
	AvailableCopies int       `json:"availableCopies" db:"available_copies"`
	IsAvailable     bool      `json:"isAvailable" db:"is_available"`
	Active          bool      `json:"active" db:"active"`
	CreatedBy       string    `json:"createdBy" db:"created_by"`
	UpdatedBy       string    `json:"updatedBy" db:"updated_by"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// NewBook cria uma nova instância de Book ativa
func NewBook(in CreateBookInput, copies int, actorID string) *Book {
	now := time.Now().UTC()
	return &Book{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(in.Title),
		Author:          strings.TrimSpace(in.Author),
		ISBN:            strings.TrimSpace(in.ISBN),
		Genre:           strings.TrimSpace(in.Genre),
		PublicationYear: in.PublicationYear,
		Publisher:       in.Publisher,
		Description:     in.Description,
		AvailableCopies: copies,
		IsAvailable:     copies > 0,
		Active:          true,
		CreatedBy:       actorID,
		UpdatedBy:       actorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CreateBookInput são os dados de cadastro de um título
type CreateBookInput struct {
	Title           string `json:"title" binding:"required"`
	Author          string `json:"author" binding:"required"`
	ISBN            string `json:"isbn" binding:"required"`
	Genre           string `json:"genre" binding:"required"`
	PublicationYear int    `json:"publicationYear"`
	Publisher       string `json:"publisher"`
	Description     string `json:"description"`
	AvailableCopies *int   `json:"availableCopies"`
}

// UpdateBookInput altera só campos descritivos; os contadores ficam com o ledger
type UpdateBookInput struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	ISBN            *string `json:"isbn"`
	Genre           *string `json:"genre"`
	PublicationYear *int    `json:"publicationYear"`
	Publisher       *string `json:"publisher"`
	Description     *string `json:"description"`
}

// AdjustInput ajusta o contador por delta cópias
type AdjustInput struct {
	Delta int `json:"delta" binding:"required"`
}
