package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/budgetwise/backend/internal/http/middleware"
	"github.com/budgetwise/backend/internal/http/response"
	"github.com/budgetwise/backend/internal/observability"
	"github.com/budgetwise/backend/internal/service"
)

type SubscriptionHandler struct {
	subSvc service.SubscriptionServiceInterface
}

func NewSubscriptionHandler(subSvc service.SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{subSvc: subSvc}
}

type upgradeRequest struct {
	Plan   string `json:"plan"`
	Period string `json:"period"`
}

// Upgrade changes the authenticated user's plan and returns a re-issued
// token carrying the new subscription claims.
func (h *SubscriptionHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "success"
	defer func() {
		observability.RecordAuthRequestDuration(r.Context(), "subscription_upgrade", status, time.Since(start))
	}()

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		status = "failure"
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}

	var req upgradeRequest
	if !decode(w, r, &req) {
		status = "failure"
		return
	}
	if strings.TrimSpace(req.Plan) == "" || strings.TrimSpace(req.Period) == "" {
		status = "failure"
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "plan and period are required", nil)
		return
	}

	result, err := h.subSvc.Upgrade(r.Context(), claims.Subject, req.Plan, req.Period)
	if err != nil {
		status = "failure"
		observability.Audit(r, "subscription.upgrade.failed")
		observability.RecordSubscriptionUpgrade(r.Context(), strings.ToUpper(req.Plan), "failure")
		writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "subscription.upgrade.success", "user_id", result.User.ID, "plan", result.User.SubscriptionPlan)
	observability.RecordSubscriptionUpgrade(r.Context(), result.User.SubscriptionPlan, "success")
	response.JSON(w, r, http.StatusOK, tokenResponse{Token: result.Token, ExpiresAt: result.ExpiresAt, Message: "Subscription upgraded"})
}
