package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ripplehq/ripple-backend/internal/usecase/nearby"
)

type NearbyHandler struct {
	nearbyUseCase *nearby.NearbyUseCase
}

func NewNearbyHandler(nearbyUseCase *nearby.NearbyUseCase) *NearbyHandler {
	return &NearbyHandler{nearbyUseCase: nearbyUseCase}
}

// ListNearby handles GET /nearby
func (h *NearbyHandler) ListNearby(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req nearby.NearbyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}
	resp, err := h.nearbyUseCase.Rank(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
