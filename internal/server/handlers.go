package server

import (
	"net/http"
	"time"

	"fortune-letter/internal/domain"
	"fortune-letter/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createOrderRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
	Story     string `json:"story"`
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
}

type requestPaymentRequest struct {
	OrderID string `json:"orderId"`
}

type requestPaymentResponse struct {
	ExternalOrderID string `json:"externalOrderId"`
	Provider        string `json:"provider"`
	Amount          int64  `json:"amount"`
}

type confirmPaymentRequest struct {
	OrderID         string `json:"orderId"`
	ExternalOrderID string `json:"externalOrderId"`
	PaymentKey      string `json:"paymentKey"`
}

type confirmPaymentResponse struct {
	OrderID string `json:"orderId"`
}

type orderJSON struct {
	ID        string             `json:"id"`
	CreatedAt time.Time          `json:"created_at"`
	Name      string             `json:"name"`
	BirthDate string             `json:"birth_date"`
	Story     *string            `json:"story"`
	Status    domain.OrderStatus `json:"status"`
	Amount    int64              `json:"amount"`
}

type fortuneJSON struct {
	ID         string                `json:"id"`
	CreatedAt  time.Time             `json:"created_at"`
	OrderID    string                `json:"order_id"`
	Content    domain.FortuneContent `json:"content"`
	Model      string                `json:"model"`
	PromptHash string                `json:"prompt_hash,omitempty"`
}

type paymentJSON struct {
	ID                string               `json:"id"`
	CreatedAt         time.Time            `json:"created_at"`
	Provider          string               `json:"provider"`
	ProviderPaymentID *string              `json:"provider_payment_id"`
	ExternalOrderID   string               `json:"external_order_id"`
	Amount            int64                `json:"amount"`
	Status            domain.PaymentStatus `json:"status"`
	PaidAt            *time.Time           `json:"paid_at"`
}

type getOrderResponse struct {
	Order    orderJSON     `json:"order"`
	Fortune  *fortuneJSON  `json:"fortune"`
	Payments []paymentJSON `json:"payments"`
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "request body must be a JSON object")
		return
	}

	order, err := s.orders.CreateOrder(c.Request.Context(), domain.OrderInput{
		Name:      req.Name,
		BirthDate: req.BirthDate,
		Story:     req.Story,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createOrderResponse{OrderID: order.ID.String()})
}

func (s *Server) handleRequestPayment(c *gin.Context) {
	var req requestPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
		badRequest(c, "orderId is required")
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		badRequest(c, "orderId is malformed")
		return
	}

	session, err := s.orders.RequestPayment(c.Request.Context(), orderID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, requestPaymentResponse{
		ExternalOrderID: session.ExternalOrderID,
		Provider:        session.Provider,
		Amount:          session.Amount,
	})
}

func (s *Server) handleConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" || req.ExternalOrderID == "" {
		badRequest(c, "orderId and externalOrderId are required")
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		badRequest(c, "orderId is malformed")
		return
	}

	id, err := s.orders.ConfirmAndGenerate(c.Request.Context(), service.ConfirmInput{
		OrderID:         orderID,
		ExternalOrderID: req.ExternalOrderID,
		PaymentKey:      req.PaymentKey,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, confirmPaymentResponse{OrderID: id.String()})
}

func (s *Server) handleGetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("orderId"))
	if err != nil {
		s.writeError(c, domain.ErrNotFound)
		return
	}

	details, err := s.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(details))
}

func (s *Server) handleHealth(c *gin.Context) {
	stats := map[string]string{"status": "up"}
	if s.health != nil {
		stats = s.health(c.Request.Context())
	}
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func toOrderResponse(d *service.OrderDetails) getOrderResponse {
	o := d.Order
	resp := getOrderResponse{
		Order: orderJSON{
			ID:        o.ID.String(),
			CreatedAt: o.CreatedAt,
			Name:      o.Name,
			BirthDate: o.BirthDate,
			Story:     o.Story,
			Status:    o.Status,
			Amount:    o.Amount,
		},
		Payments: make([]paymentJSON, 0, len(d.Payments)),
	}
	if f := d.Fortune; f != nil {
		resp.Fortune = &fortuneJSON{
			ID:         f.ID.String(),
			CreatedAt:  f.CreatedAt,
			OrderID:    f.OrderID.String(),
			Content:    f.Content,
			Model:      f.Model,
			PromptHash: f.PromptHash,
		}
	}
	for _, p := range d.Payments {
		resp.Payments = append(resp.Payments, paymentJSON{
			ID:                p.ID.String(),
			CreatedAt:         p.CreatedAt,
			Provider:          p.Provider,
			ProviderPaymentID: p.ProviderPaymentID,
			ExternalOrderID:   p.ExternalOrderID,
			Amount:            p.Amount,
			Status:            p.Status,
			PaidAt:            p.PaidAt,
		})
	}
	return resp
}
