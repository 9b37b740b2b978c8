// Package permissions implements the capability model that gates every
// operation. An actor holds an explicit set of named capabilities; the role
// is a display grouping and is never consulted by a check.
package permissions

import (
	"database/sql/driver"
	"sort"

	"github.com/matheusmosca/library-reservations/internal/apperror"
	"github.com/matheusmosca/library-reservations/internal/storage"
)

// Capability é uma permissão nomeada e independente
type Capability string

const (
	Admin              Capability = "admin"
	CreateBooks        Capability = "createBooks"
	EditBooks          Capability = "editBooks"
	DeleteBooks        Capability = "deleteBooks"
	ManageInventory    Capability = "manageInventory"
	ViewReservations   Capability = "viewReservations"
	ManageReservations Capability = "manageReservations"
	ViewUsers          Capability = "viewUsers"
	CreateUsers        Capability = "createUsers"
	EditUsers          Capability = "editUsers"
	DeleteUsers        Capability = "deleteUsers"
)

// All lista as capacidades conhecidas
var All = []Capability{
	Admin,
	CreateBooks,
	EditBooks,
	DeleteBooks,
	ManageInventory,
	ViewReservations,
	ManageReservations,
	ViewUsers,
	CreateUsers,
	EditUsers,
	DeleteUsers,
}

// Valid indica se a capacidade pertence à lista fixa
func (c Capability) Valid() bool {
	for _, known := range All {
		if c == known {
			return true
		}
	}
	return false
}

// Role agrupa usuários para exibição e para as permissões iniciais
type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// Valid indica se o papel é conhecido
func (r Role) Valid() bool {
	return r == RoleMember || r == RoleLibrarian || r == RoleAdmin
}

// Set é o conjunto de capacidades de um usuário, persistido como JSON
type Set map[Capability]bool

// NewSet cria um conjunto com as capacidades informadas
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Has indica se a capacidade está concedida
func (s Set) Has(c Capability) bool {
	return s[c]
}

// Granted retorna as capacidades concedidas, ordenadas
func (s Set) Granted() []Capability {
	caps := make([]Capability, 0, len(s))
	for c, ok := range s {
		if ok {
			caps = append(caps, c)
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Validate rejeita nomes de capacidade fora da lista fixa
func (s Set) Validate() error {
	for c := range s {
		if !c.Valid() {
			return apperror.Invalid("unknown capability %q", c)
		}
	}
	return nil
}

// Value implementa driver.Valuer
func (s Set) Value() (driver.Value, error) {
	if s == nil {
		return storage.JSONValue(Set{})
	}
	return storage.JSONValue(s)
}

// Scan implementa sql.Scanner
func (s *Set) Scan(src any) error {
	parsed := Set{}
	if err := storage.ScanJSON(src, &parsed); err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DefaultsFor retorna as capacidades iniciais de um papel no cadastro
func DefaultsFor(role Role) Set {
	switch role {
	case RoleAdmin:
		return NewSet(All...)
	case RoleLibrarian:
		return NewSet(
			CreateBooks,
			EditBooks,
			DeleteBooks,
			ManageInventory,
			ViewReservations,
			ManageReservations,
			ViewUsers,
		)
	default:
		return Set{}
	}
}

// Actor é o usuário autenticado que executa a operação
type Actor struct {
	ID          string `json:"id"`
	Active      bool   `json:"active"`
	Role        Role   `json:"role"`
	Permissions Set    `json:"permissions"`
}

// IsAllowed: ativo e com a capacidade concedida. Ator ausente ou inativo nega tudo.
func IsAllowed(actor *Actor, c Capability) bool {
	if actor == nil || !actor.Active {
		return false
	}
	return actor.Permissions.Has(c)
}

// IsSelf indica se o ator é o próprio sujeito da requisição
func IsSelf(actor *Actor, subjectID string) bool {
	if actor == nil || !actor.Active {
		return false
	}
	return actor.ID != "" && actor.ID == subjectID
}

// AllowedOrSelf combina acesso próprio com a capacidade
func AllowedOrSelf(actor *Actor, c Capability, subjectID string) bool {
	return IsSelf(actor, subjectID) || IsAllowed(actor, c)
}

// Require devolve forbidden quando o ator não tem a capacidade
func Require(actor *Actor, c Capability) error {
	if !IsAllowed(actor, c) {
		return apperror.Forbidden("missing capability %s", c)
	}
	return nil
}

// RequireOrSelf devolve forbidden quando o ator não é o sujeito nem tem a capacidade
func RequireOrSelf(actor *Actor, c Capability, subjectID string) error {
	if !AllowedOrSelf(actor, c, subjectID) {
		return apperror.Forbidden("missing capability %s", c)
	}
	return nil
}
