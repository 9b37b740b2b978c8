package reservations

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matheusmosca/library-reservations/internal/httpapi"
)

// ReservationHandler contém os handlers HTTP de reservas
type ReservationHandler struct {
	machine *StateMachine
	queries *QueryService
	respond *httpapi.Responder
}

// NewReservationHandler cria uma nova instância de ReservationHandler
func NewReservationHandler(machine *StateMachine, queries *QueryService, respond *httpapi.Responder) *ReservationHandler {
	return &ReservationHandler{
		machine: machine,
		queries: queries,
		respond: respond,
	}
}

// Create reserva um livro para o ator autenticado
func (h *ReservationHandler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respond.BindError(c, err)
		return
	}

	reservation, err := h.machine.Create(c.Request.Context(), httpapi.ActorFrom(c), in)
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

func (h *ReservationHandler) Get(c *gin.Context) {
	reservation, err := h.queries.Get(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

func (h *ReservationHandler) Update(c *gin.Context) {
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respond.BindError(c, err)
		return
	}

	reservation, err := h.machine.Update(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"), in)
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

func (h *ReservationHandler) Activate(c *gin.Context) {
	reservation, err := h.machine.Activate(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

func (h *ReservationHandler) Complete(c *gin.Context) {
	reservation, err := h.machine.Complete(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	reservation, err := h.machine.Cancel(c.Request.Context(), httpapi.ActorFrom(c), c.Param("id"))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, reservation)
}

// SweepOverdue dispara a varredura de atrasos
func (h *ReservationHandler) SweepOverdue(c *gin.Context) {
	result, err := h.machine.SweepOverdue(c.Request.Context(), httpapi.ActorFrom(c))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReservationHandler) List(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	page, err := h.queries.List(c.Request.Context(), httpapi.ActorFrom(c), filter, pageRequest(c))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ReservationHandler) ListForUser(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	page, err := h.queries.ListForUser(c.Request.Context(), httpapi.ActorFrom(c), c.Param("userId"), filter, pageRequest(c))
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ReservationHandler) UserHistory(c *gin.Context) {
	page, err := h.queries.UserHistory(
		c.Request.Context(),
		httpapi.ActorFrom(c),
		c.Param("userId"),
		httpapi.QueryBool(c, "includeCancelled", true),
		pageRequest(c),
	)
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *ReservationHandler) BookHistory(c *gin.Context) {
	page, err := h.queries.BookHistory(
		c.Request.Context(),
		httpapi.ActorFrom(c),
		c.Param("bookId"),
		httpapi.QueryBool(c, "includeCancelled", true),
		pageRequest(c),
	)
	if err != nil {
		h.respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// RegisterRoutes registra as rotas em /reservations
func (h *ReservationHandler) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/reservations")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/user/:userId", h.ListForUser)
	g.GET("/history/user/:userId", h.UserHistory)
	g.GET("/history/book/:bookId", h.BookHistory)
	g.POST("/sweep-overdue", h.SweepOverdue)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id/activate", h.Activate)
	g.PATCH("/:id/complete", h.Complete)
	g.PATCH("/:id/cancel", h.Cancel)
}

func (h *ReservationHandler) bindFilter(c *gin.Context) (Filter, bool) {
	from, err := httpapi.QueryTime(c, "requestedFrom")
	if err != nil {
		h.respond.Error(c, err)
		return Filter{}, false
	}
	to, err := httpapi.QueryTime(c, "requestedTo")
	if err != nil {
		h.respond.Error(c, err)
		return Filter{}, false
	}

	return Filter{
		Status:        Status(c.Query("status")),
		RequestedFrom: from,
		RequestedTo:   to,
		BookID:        c.Query("bookId"),
		UserID:        c.Query("userId"),
		SortBy:        c.Query("sortBy"),
		SortDir:       c.Query("sortDir"),
	}, true
}

func pageRequest(c *gin.Context) PageRequest {
	return PageRequest{
		Page:     httpapi.QueryInt(c, "page", DefaultPage),
		PageSize: httpapi.QueryInt(c, "pageSize", DefaultPageSize),
	}
}
