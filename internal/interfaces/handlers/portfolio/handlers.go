package portfolio

import (
	"errors"

	portfoliosvc "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/application/portfolio"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/middleware"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *portfoliosvc.Service
}

// Get handles GET /api/v1/portfolio.
func (h *Handlers) Get(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	summary, err := h.Service.GetSummary(c.Context(), userID)
	if err != nil {
		if errors.Is(err, portfoliosvc.ErrPortfolioNotFound) {
			return response.Error(c, "Portfolio not found", fiber.StatusNotFound, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "", summary, nil)
}

// Transactions handles GET /api/v1/portfolio/transactions.
func (h *Handlers) Transactions(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	txs, err := h.Service.ListTransactions(c.Context(), userID, limit, offset)
	if err != nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "", txs, fiber.Map{"count": len(txs), "limit": limit, "offset": offset})
}
