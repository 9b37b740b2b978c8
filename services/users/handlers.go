package users

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/library-reservations/internal/httpapi"
)

// UserHandler contém os handlers HTTP de usuários
type UserHandler struct {
	useCase *UserUseCase
	respond *httpapi.Responder
}

// NewUserHandler cria uma nova instância de UserHandler
func NewUserHandler(useCase *UserUseCase, respond *httpapi.Responder) *UserHandler {
	return &UserHandler{
		useCase: useCase,
		respond: respond,
	}
}

// Register aceita cadastro anônimo ou feito por quem tem createUsers
func (h *UserHandler) Register(c *gin.Context) {
	var in RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respond.BindError(c, err)
		return
	}

	user, err := h.useCase.Register(c.Request.Context(), httpapi.ActorFrom(c), in)
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// List lista os usuários
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.useCase.List(c.Request.Context(), httpapi.ActorFrom(c), httpapi.QueryBool(c, "includeInactive", false))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": users, "total": len(users)})
}

// Get retorna um usuário
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.useCase.Get(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"), httpapi.QueryBool(c, "includeInactive", false))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Update aplica um patch parcial no usuário
func (h *UserHandler) Update(c *gin.Context) {
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respond.BindError(c, err)
		return
	}

	user, err := h.useCase.Update(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"), in)
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Deactivate faz o soft delete
func (h *UserHandler) Deactivate(c *gin.Context) {
	if err := h.useCase.Deactivate(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id")); err != nil {
		h.respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registra as rotas em /users. POST fica fora de requireActor
// para permitir o auto cadastro.
func (h *UserHandler) RegisterRoutes(api *gin.RouterGroup, requireActor gin.HandlerFunc) {
	g := api.Group("/users")
	g.POST("", h.Register)
	g.GET("", requireActor, h.List)
	g.GET("/:id", requireActor, h.Get)
	g.PUT("/:id", requireActor, h.Update)
	g.DELETE("/:id", requireActor, h.Deactivate)
}
