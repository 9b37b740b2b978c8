// Package httpapi holds the gin plumbing shared by the service handlers:
// actor resolution, error rendering and query parsing.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matheusmosca/library-reservations/internal/apperror"
	"github.com/matheusmosca/library-reservations/services/permissions"
)

// ActorHeader carrega o id do usuário autenticado, definido pelo gateway
const ActorHeader = "X-Actor-ID"

const actorKey = "library.actor"

// ActorResolver resolve o id do cabeçalho para o ator com suas permissões
type ActorResolver interface {
	GetActor(ctx context.Context, id string) (*permissions.Actor, error)
}

// OptionalActor resolve o ator quando o cabeçalho está presente. Um id
// desconhecido é rejeitado com 401.
func OptionalActor(resolver ActorResolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(ActorHeader)
		if id == "" {
			c.Next()
			return
		}

		actor, err := resolver.GetActor(c.Request.Context(), id)
		if err != nil {
			if apperror.KindOf(err) != apperror.KindNotFound {
				logger.Error("❌ [AUTH] failed to resolve actor", zap.String("actor_id", id), zap.Error(err))
			}
			abortUnauthorized(c)
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireActor rejeita com 401 requisições sem ator resolvido
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ActorFrom(c) == nil {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

// ActorFrom retorna o ator resolvido ou nil
func ActorFrom(c *gin.Context) *permissions.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*permissions.Actor)
	return actor
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
		"kind":    "unauthorized",
		"message": "missing or unknown actor",
	}})
}

// Responder escreve respostas de erro no formato padrão
type Responder struct {
	logger *zap.Logger
	debug  bool
}

// NewResponder cria um Responder; com debug=true o detalhe interno vai na resposta
func NewResponder(logger *zap.Logger, debug bool) *Responder {
	return &Responder{logger: logger, debug: debug}
}

// Error traduz err para status e corpo {"error": {kind, code, message}}
func (r *Responder) Error(c *gin.Context, err error) {
	appErr := apperror.As(err)
	message := appErr.Message

	if appErr.Kind == apperror.KindInternal {
		r.logger.Error("❌ [HTTP] internal error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		if !r.debug {
			message = "internal error"
		}
	}
	if r.debug && appErr.Err != nil {
		message = appErr.Error()
	}

	body := gin.H{"kind": appErr.Kind, "message": message}
	if appErr.Code != "" {
		body["code"] = appErr.Code
	}
	c.JSON(apperror.HTTPStatus(appErr.Kind), gin.H{"error": body})
}

// BindError responde 400 para payloads que não passaram no binding do gin
func (r *Responder) BindError(c *gin.Context, err error) {
	r.Error(c, apperror.Invalid("invalid request: %v", err))
}

// QueryInt lê um inteiro da query string, ou def quando ausente/inválido
func QueryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// QueryBool lê um booleano da query string, ou def quando ausente/inválido
func QueryBool(c *gin.Context, key string, def bool) bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

// QueryTime lê um instante RFC 3339 da query string; ausente devolve nil
func QueryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Invalid("%s must be an RFC 3339 timestamp", key)
	}
	t = t.UTC()
	return &t, nil
}
