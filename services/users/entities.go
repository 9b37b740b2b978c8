package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matheusmosca/library-reservations/services/permissions"
)

// User representa um usuário do acervo
type User struct {
	ID          string           `json:"id" db:"id"`
	FirstName   string           `json:"firstName" db:"first_name"`
	LastName    string           `json:"lastName" db:"last_name"`
	Email       string           `json:"email" db:"email"`
	Role        permissions.Role `json:"role" db:"role"`
	Permissions permissions.Set  `json:"permissions" db:"permissions"`
	Active      bool             `json:"active" db:"active"`
	CreatedAt   time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time        `json:"updatedAt" db:"updated_at"`
}

// NewUser cria uma nova instância de User ativa
func NewUser(firstName, lastName, email string, role permissions.Role, perms permissions.Set) *User {
	now := time.Now().UTC()
	return &User{
		ID:          uuid.NewString(),
		FirstName:   strings.TrimSpace(firstName),
		LastName:    strings.TrimSpace(lastName),
		Email:       normalizeEmail(email),
		Role:        role,
		Permissions: perms,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Actor projeta o usuário no formato usado pelas checagens de permissão
func (u *User) Actor() *permissions.Actor {
	return &permissions.Actor{
		ID:          u.ID,
		Active:      u.Active,
		Role:        u.Role,
		Permissions: u.Permissions,
	}
}

// FullName junta nome e sobrenome
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterInput são os dados de cadastro
type RegisterInput struct {
	FirstName   string           `json:"firstName" binding:"required"`
	LastName    string           `json:"lastName" binding:"required"`
	Email       string           `json:"email" binding:"required,email"`
	Role        permissions.Role `json:"role"`
	Permissions permissions.Set  `json:"permissions"`
}

// UpdateInput é um patch parcial; campos nil ficam como estão
type UpdateInput struct {
	FirstName   *string           `json:"firstName"`
	LastName    *string           `json:"lastName"`
	Email       *string           `json:"email" binding:"omitempty,email"`
	Role        *permissions.Role `json:"role"`
	Permissions permissions.Set   `json:"permissions"`
}
