package inventory

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/library-reservations/internal/httpapi"
)

// BookHandler contém os handlers HTTP do acervo
type BookHandler struct {
	ledger  *Ledger
	respond *httpapi.Responder
}

// NewBookHandler cria uma nova instância de BookHandler
func NewBookHandler(ledger *Ledger, respond *httpapi.Responder) *BookHandler {
	return &BookHandler{
		ledger:  ledger,
		respond: respond,
	}
}

func (h *BookHandler) Create(c *gin.Context) {
	var in CreateBookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respond.BindError(c, err)
		return
	}

	book, err := h.ledger.CreateBook(c.Request.Context(), httpapi.ActorFrom(c), in)
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *BookHandler) Get(c *gin.Context) {
	book, err := h.ledger.GetBook(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"), httpapi.QueryBool(c, "includeInactive", false))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) Update(c *gin.Context) {
	var in UpdateBookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respond.BindError(c, err)
		return
	}

	book, err := h.ledger.UpdateBook(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"), in)
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) Deactivate(c *gin.Context) {
	if err := h.ledger.DeactivateBook(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id")); err != nil {
		h.respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Adjust é o endpoint de ajuste manual do estoque
func (h *BookHandler) Adjust(c *gin.Context) {
	var in AdjustInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respond.BindError(c, err)
		return
	}

	book, err := h.ledger.AdjustCopies(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"), in.Delta)
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// RegisterRoutes registra as rotas em /books
func (h *BookHandler) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/books")
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Deactivate)
	g.PATCH("/:id/inventory", h.Adjust)
}
