package orders

import (
	"errors"
	"strconv"

	trading "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/application/trading"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/middleware"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/models"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *trading.Service
}

type createOrderBody struct {
	Symbol         string           `json:"symbol"`
	Side           string           `json:"side"`
	Type           string           `json:"type"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Price          *decimal.Decimal `json:"price"`
	StopPrice      *decimal.Decimal `json:"stop_price"`
	TimeInForce    string           `json:"time_in_force"`
	IdempotencyKey string           `json:"idempotency_key"`
}

// Create handles POST /api/v1/orders. Replays of the same idempotency key
// return the original order with 200 instead of creating a duplicate.
func (h *Handlers) Create(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var body createOrderBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}

	req := trading.CreateOrderRequest{
		Symbol:      body.Symbol,
		Side:        models.OrderSide(body.Side),
		OrderType:   models.OrderType(body.Type),
		Quantity:    body.Quantity,
		Price:       body.Price,
		StopPrice:   body.StopPrice,
		TimeInForce: models.TimeInForce(body.TimeInForce),
	}
	if body.IdempotencyKey != "" {
		req.IdempotencyKey = &body.IdempotencyKey
	}

	order, replayed, err := h.Service.CreateOrder(c.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, trading.ErrInvalidOrder):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, trading.ErrInsufficientFunds),
			errors.Is(err, trading.ErrInsufficientShares):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, trading.ErrPortfolioNotFound):
			return response.Error(c, "Portfolio not found", fiber.StatusNotFound, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	if replayed {
		return response.Success(c, "Order already exists", order, nil)
	}
	return response.SuccessCreated(c, "Order created", order, nil)
}

// Cancel handles DELETE /api/v1/orders/:id.
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	orderID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.Error(c, "Invalid order id", fiber.StatusBadRequest, nil)
	}

	order, err := h.Service.CancelOrder(c.Context(), userID, uint(orderID))
	if err != nil {
		switch {
		case errors.Is(err, trading.ErrOrderNotFound):
			return response.Error(c, "Order not found", fiber.StatusNotFound, nil)
		case errors.Is(err, trading.ErrOrderNotActive):
			return response.Error(c, "Order is not active", fiber.StatusBadRequest, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Order canceled", order, nil)
}

// Get handles GET /api/v1/orders/:id.
func (h *Handlers) Get(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	orderID, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.Error(c, "Invalid order id", fiber.StatusBadRequest, nil)
	}

	order, err := h.Service.GetOrder(c.Context(), userID, uint(orderID))
	if err != nil {
		if errors.Is(err, trading.ErrOrderNotFound) {
			return response.Error(c, "Order not found", fiber.StatusNotFound, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "", order, nil)
}

// List handles GET /api/v1/orders with status/symbol/side/type filters and
// limit/offset pagination, newest first.
func (h *Handlers) List(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	filter := trading.ListOrdersFilter{
		Status:    models.OrderStatus(c.Query("status")),
		Symbol:    c.Query("symbol"),
		Side:      models.OrderSide(c.Query("side")),
		OrderType: models.OrderType(c.Query("type")),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}

	orders, err := h.Service.ListOrders(c.Context(), userID, filter)
	if err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "", orders, fiber.Map{
		"count": len(orders), "limit": filter.Limit, "offset": filter.Offset,
	})
}
