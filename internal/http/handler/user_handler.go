package handler

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/budgetwise/backend/internal/http/middleware"
	"github.com/budgetwise/backend/internal/http/response"
	"github.com/budgetwise/backend/internal/repository"
)

type UserHandler struct {
	userRepo repository.UserRepository
}

func NewUserHandler(userRepo repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// Me returns the profile of the authenticated user. The token subject is
// the email; the lookup can still miss if the account was deleted after
// the middleware check.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	user, err := h.userRepo.FindByEmail(claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load user", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}
