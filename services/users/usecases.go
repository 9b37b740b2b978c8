package users

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/apperror"
	"github.com/matheusmosca/library-reservations/internal/storage"
	"github.com/matheusmosca/library-reservations/services/permissions"
)

// UserUseCase contém as regras do diretório de usuários
type UserUseCase struct {
	repository UserRepository
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewUserUseCase cria uma nova instância de UserUseCase
func NewUserUseCase(repository UserRepository, logger *zap.Logger, tracer trace.Tracer) *UserUseCase {
	return &UserUseCase{
		repository: repository,
		logger:     logger,
		tracer:     tracer,
	}
}

// GetActor resolve um id para o ator com seu conjunto de permissões.
// Usuários inativos são devolvidos inativos e por isso não passam em nenhuma checagem.
func (uc *UserUseCase) GetActor(ctx context.Context, id string) (*permissions.Actor, error) {
	user, err := uc.repository.Get(ctx, nil, id, storage.ReadOptions{IncludeInactive: true})
	if err != nil {
		return nil, uc.translate(err, id)
	}
	return user.Actor(), nil
}

// Register cadastra um usuário. Sem createUsers o cadastro é sempre de um
// member com as permissões padrão.
func (uc *UserUseCase) Register(ctx context.Context, actor *permissions.Actor, in RegisterInput) (*User, error) {
	ctx, span := uc.tracer.Start(ctx, "users.Register")
	defer span.End()

	role := in.Role
	if role == "" {
		role = permissions.RoleMember
	}
	if !role.Valid() {
		return nil, apperror.Invalid("unknown role %q", role)
	}

	privileged := permissions.IsAllowed(actor, permissions.CreateUsers)
	if !privileged && (role != permissions.RoleMember || in.Permissions != nil) {
		return nil, apperror.Forbidden("only createUsers holders may assign roles or permissions")
	}

	perms := in.Permissions
	if perms == nil {
		perms = permissions.DefaultsFor(role)
	}
	if err := perms.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, apperror.Invalid("email is required")
	}

	user := NewUser(in.FirstName, in.LastName, in.Email, role, perms)
	if err := uc.repository.Create(ctx, nil, user); err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, apperror.Conflict("email %s is already registered", user.Email)
		}
		return nil, apperror.Internal("failed to register user", err)
	}

	span.SetAttributes(attribute.String("user_id", user.ID))
	uc.logger.Info("✅ [REGISTER] user created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	return user, nil
}

// Get retorna um usuário para ele mesmo ou para quem tem viewUsers
func (uc *UserUseCase) Get(ctx context.Context, actor *permissions.Actor, id string, includeInactive bool) (*User, error) {
	if err := permissions.RequireOrSelf(actor, permissions.ViewUsers, id); err != nil {
		return nil, err
	}
	if includeInactive {
		if err := permissions.Require(actor, permissions.ViewUsers); err != nil {
			return nil, err
		}
	}

	user, err := uc.repository.Get(ctx, nil, id, storage.ReadOptions{IncludeInactive: includeInactive})
	if err != nil {
		return nil, uc.translate(err, id)
	}
	return user, nil
}

// List retorna o diretório; requer viewUsers
func (uc *UserUseCase) List(ctx context.Context, actor *permissions.Actor, includeInactive bool) ([]User, error) {
	if err := permissions.Require(actor, permissions.ViewUsers); err != nil {
		return nil, err
	}

	users, err := uc.repository.List(ctx, storage.ReadOptions{IncludeInactive: includeInactive})
	if err != nil {
		return nil, apperror.Internal("failed to list users", err)
	}
	return users, nil
}

// Update aplica o patch. O próprio usuário edita o perfil; papel e
// permissões só mudam por quem tem editUsers.
func (uc *UserUseCase) Update(ctx context.Context, actor *permissions.Actor, id string, in UpdateInput) (*User, error) {
	ctx, span := uc.tracer.Start(ctx, "users.Update")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", id))

	if err := permissions.RequireOrSelf(actor, permissions.EditUsers, id); err != nil {
		return nil, err
	}
	if (in.Role != nil || in.Permissions != nil) && !permissions.IsAllowed(actor, permissions.EditUsers) {
		return nil, apperror.Forbidden("role and permissions can only be changed by editUsers holders")
	}

	user, err := uc.repository.Get(ctx, nil, id, storage.ReadOptions{})
	if err != nil {
		return nil, uc.translate(err, id)
	}

	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		user.Email = normalizeEmail(*in.Email)
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperror.Invalid("unknown role %q", *in.Role)
		}
		user.Role = *in.Role
	}
	if in.Permissions != nil {
		if err := in.Permissions.Validate(); err != nil {
			return nil, err
		}
		user.Permissions = in.Permissions
	}
	user.UpdatedAt = time.Now().UTC()

	if err := uc.repository.Update(ctx, nil, user); err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, apperror.Conflict("email %s is already registered", user.Email)
		}
		return nil, apperror.Internal("failed to update user", err)
	}

	uc.logger.Info("✅ [USER UPDATE] user updated", zap.String("user_id", id), zap.String("actor_id", actor.ID))
	return user, nil
}

// Deactivate faz o soft delete do usuário; próprio usuário ou deleteUsers
func (uc *UserUseCase) Deactivate(ctx context.Context, actor *permissions.Actor, id string) error {
	if err := permissions.RequireOrSelf(actor, permissions.DeleteUsers, id); err != nil {
		return err
	}

	ok, err := uc.repository.Deactivate(ctx, nil, id, time.Now().UTC())
	if err != nil {
		return apperror.Internal("failed to deactivate user", err)
	}
	if !ok {
		return apperror.NotFound("user %s not found", id)
	}

	uc.logger.Info("✅ [USER DELETE] user deactivated", zap.String("user_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (uc *UserUseCase) translate(err error, id string) error {
	if storage.IsNoRows(err) {
		return apperror.NotFound("user %s not found", id)
	}
	return apperror.Internal("failed to load user", err)
}
