package users

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/matheusmosca/library-reservations/internal/storage"
)

const table = "users"

var columns = []interface{}{
	"id", "first_name", "last_name", "email", "role", "permissions", "active", "created_at", "updated_at",
}

// UserRepository define a interface para operações de banco de dados de usuários
type UserRepository interface {
	Create(ctx context.Context, tx storage.Tx, user *User) error
	Get(ctx context.Context, tx storage.Tx, id string, opts storage.ReadOptions) (*User, error)
	List(ctx context.Context, opts storage.ReadOptions) ([]User, error)
	Update(ctx context.Context, tx storage.Tx, user *User) error
	Deactivate(ctx context.Context, tx storage.Tx, id string, at time.Time) (bool, error)
}

// SQLUserRepository implementa UserRepository sobre storage.DB
type SQLUserRepository struct {
	db *storage.DB
}

// NewUserRepository cria uma nova instância de SQLUserRepository
func NewUserRepository(db *storage.DB) UserRepository {
	return &SQLUserRepository{db: db}
}

// Create insere o usuário
func (r *SQLUserRepository) Create(ctx context.Context, tx storage.Tx, user *User) error {
	perms, err := user.Permissions.Value()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, tx, r.db.Insert(table).Rows(goqu.Record{
		"id":          user.ID,
		"first_name":  user.FirstName,
		"last_name":   user.LastName,
		"email":       user.Email,
		"role":        string(user.Role),
		"permissions": perms,
		"active":      user.Active,
		"created_at":  user.CreatedAt,
		"updated_at":  user.UpdatedAt,
	}))
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get busca um usuário pelo id; inativos só com IncludeInactive
func (r *SQLUserRepository) Get(ctx context.Context, tx storage.Tx, id string, opts storage.ReadOptions) (*User, error) {
	q := storage.ActiveOnly(r.db.From(table).Select(columns...).Where(goqu.C("id").Eq(id)), opts)

	var user User
	if err := r.db.Get(ctx, tx, &user, q); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// List retorna os usuários ordenados por sobrenome e nome
func (r *SQLUserRepository) List(ctx context.Context, opts storage.ReadOptions) ([]User, error) {
	q := storage.ActiveOnly(r.db.From(table).Select(columns...), opts).
		Order(goqu.C("last_name").Asc(), goqu.C("first_name").Asc())

	users := []User{}
	if err := r.db.Select(ctx, nil, &users, q); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Update grava os campos editáveis do usuário ativo
func (r *SQLUserRepository) Update(ctx context.Context, tx storage.Tx, user *User) error {
	perms, err := user.Permissions.Value()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, tx, r.db.Update(table).Set(goqu.Record{
		"first_name":  user.FirstName,
		"last_name":   user.LastName,
		"email":       user.Email,
		"role":        string(user.Role),
		"permissions": perms,
		"updated_at":  user.UpdatedAt,
	}).Where(goqu.C("id").Eq(user.ID), goqu.C("active").Eq(true)))
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// Deactivate faz o soft delete; false quando não havia usuário ativo
func (r *SQLUserRepository) Deactivate(ctx context.Context, tx storage.Tx, id string, at time.Time) (bool, error) {
	n, err := r.db.Exec(ctx, tx, r.db.Update(table).Set(goqu.Record{
		"active":     false,
		"updated_at": at,
	}).Where(goqu.C("id").Eq(id), goqu.C("active").Eq(true)))
	if err != nil {
		return false, fmt.Errorf("failed to deactivate user: %w", err)
	}
	return n > 0, nil
}
