package accounts

import (
	"errors"

	accountsvc "github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/application/accounts"
	"github.com/Ramyghr/Gamified-Trading-Simulator-sub000/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *accountsvc.Service
}

type registerBody struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Register handles POST /api/v1/auth/register: creates the user and their
// starting portfolio.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var body registerBody
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}

	user, portfolio, err := h.Service.Register(c.Context(), accountsvc.RegisterRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		switch {
		case errors.Is(err, accountsvc.ErrInvalidInput):
			return response.Error(c, "Invalid email or password", fiber.StatusBadRequest, nil)
		case errors.Is(err, accountsvc.ErrEmailTaken):
			return response.Error(c, "Email already registered", fiber.StatusConflict, nil)
		}
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	return response.SuccessCreated(c, "Account created", fiber.Map{
		"user":      user,
		"portfolio": portfolio,
	}, nil)
}
