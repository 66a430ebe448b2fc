package transfer

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/remitwise/internal/logging"
	"github.com/mbd888/remitwise/internal/pagination"
	"github.com/mbd888/remitwise/internal/rates"
	"github.com/mbd888/remitwise/internal/validation"
)

// Handler provides HTTP endpoints for the transfer flows.
type Handler struct {
	service *Service
}

// NewHandler creates a new transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the API under r (normally /v1).
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	currency := validation.CurrencyParamMiddleware()

	r.GET("/rates/currencies", h.ListCurrencies)
	r.GET("/rates/popular", h.PopularCorridors)
	r.GET("/rates/live/:from", currency, h.LiveRates)
	r.GET("/rates/compare/:from/:to", currency, h.CompareRates)
	r.GET("/rates/:from/:to", currency, h.GetRate)

	r.POST("/channels/optimize", h.Optimize)

	r.POST("/fraud/assess", h.AssessFraud)
	r.GET("/fraud/assessments", h.ListAssessments)

	r.POST("/transfers/quote", h.QuoteTransfer)
	r.POST("/transfers", h.SendTransfer)
	r.GET("/transfers/history", h.TransferHistory)
	r.GET("/transfers/:id", h.GetTransfer)
}

// ListCurrencies handles GET /v1/rates/currencies
func (h *Handler) ListCurrencies(c *gin.Context) {
	list := rates.Currencies()
	c.JSON(http.StatusOK, gin.H{"currencies": list, "total": len(list)})
}

// PopularCorridors handles GET /v1/rates/popular
func (h *Handler) PopularCorridors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"popularCorridors": h.service.Popular(c.Request.Context()),
		"exampleAmount":    ExampleAmount,
	})
}

// LiveRates handles GET /v1/rates/live/:from
func (h *Handler) LiveRates(c *gin.Context) {
	live, err := h.service.LiveRates(c.Request.Context(), c.Param("from"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, live)
}

// GetRate handles GET /v1/rates/:from/:to
func (h *Handler) GetRate(c *gin.Context) {
	q, err := h.service.Quote(c.Request.Context(), c.Param("from"), c.Param("to"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// CompareRates handles GET /v1/rates/compare/:from/:to?amount=
func (h *Handler) CompareRates(c *gin.Context) {
	amount := ExampleAmount
	if v := c.Query("amount"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "amount must be a number",
			})
			return
		}
		amount = parsed
	}

	cmp, err := h.service.Compare(c.Request.Context(), c.Param("from"), c.Param("to"), amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}

// Optimize handles POST /v1/channels/optimize
func (h *Handler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.service.Optimize(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AssessFraud handles POST /v1/fraud/assess
func (h *Handler) AssessFraud(c *gin.Context) {
	var req AssessRequest
	if !bind(c, &req) {
		return
	}
	rec, err := h.service.Assess(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListAssessments handles GET /v1/fraud/assessments?senderId=&limit=&cursor=
func (h *Handler) ListAssessments(c *gin.Context) {
	senderID, ok := senderParam(c)
	if !ok {
		return
	}
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, 200)
		}
	}
	page, err := h.service.Assessments(c.Request.Context(), senderID, limit, c.Query("cursor"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// QuoteTransfer handles POST /v1/transfers/quote
func (h *Handler) QuoteTransfer(c *gin.Context) {
	var req struct {
		Amount         float64 `json:"amount" binding:"gt=0"`
		SourceCurrency string  `json:"sourceCurrency" binding:"required,currency"`
		TargetCurrency string  `json:"targetCurrency" binding:"required,currency"`
	}
	if !bind(c, &req) {
		return
	}
	q, err := h.service.QuoteTransfer(c.Request.Context(), req.SourceCurrency, req.TargetCurrency, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// SendTransfer handles POST /v1/transfers
func (h *Handler) SendTransfer(c *gin.Context) {
	var req SendRequest
	if !bind(c, &req) {
		return
	}
	t, err := h.service.Send(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if t.Status == StatusBlocked {
		c.JSON(http.StatusForbidden, gin.H{
			"error":    "transfer_blocked",
			"message":  "Transfer blocked by fraud screening",
			"transfer": t,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transfer": t})
}

// TransferHistory handles GET /v1/transfers/history?senderId=
func (h *Handler) TransferHistory(c *gin.Context) {
	senderID, ok := senderParam(c)
	if !ok {
		return
	}
	ts, err := h.service.History(c.Request.Context(), senderID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfers": ts, "count": len(ts)})
}

// GetTransfer handles GET /v1/transfers/:id?senderId=
func (h *Handler) GetTransfer(c *gin.Context) {
	senderID, ok := senderParam(c)
	if !ok {
		return
	}
	t, err := h.service.Transfer(c.Request.Context(), senderID, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transfer": t})
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		errs := validation.FromBindError(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
			"details": errs,
		})
		return false
	}
	return true
}

func senderParam(c *gin.Context) (string, bool) {
	id := c.Query("senderId")
	if !validation.IsValidSenderID(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "senderId query parameter is required",
		})
		return "", false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedCurrency):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_currency", "message": err.Error()})
	case errors.Is(err, ErrTransferNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Transfer not found"})
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidSender), errors.Is(err, pagination.ErrInvalidCursor):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
	default:
		logging.L(c.Request.Context()).Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Internal server error",
		})
	}
}
