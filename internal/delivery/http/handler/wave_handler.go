package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/usecase/wave"
)

type WaveHandler struct {
	waveUseCase *wave.WaveUseCase
}

func NewWaveHandler(waveUseCase *wave.WaveUseCase) *WaveHandler {
	return &WaveHandler{waveUseCase: waveUseCase}
}

// Send handles POST /waves
func (h *WaveHandler) Send(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req wave.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	created, err := h.waveUseCase.Send(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Respond handles POST /waves/:wave_id/respond
func (h *WaveHandler) Respond(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	waveID, err := strconv.Atoi(c.Param("wave_id"))
	if err != nil {
		respondError(c, domain.ErrInvalidInput)
		return
	}
	var req wave.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	resp, err := h.waveUseCase.Respond(c.Request.Context(), userID, waveID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel handles DELETE /waves/:wave_id
func (h *WaveHandler) Cancel(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	waveID, err := strconv.Atoi(c.Param("wave_id"))
	if err != nil {
		respondError(c, domain.ErrInvalidInput)
		return
	}
	if err := h.waveUseCase.Cancel(c.Request.Context(), userID, waveID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// ListIncoming handles GET /waves/incoming
func (h *WaveHandler) ListIncoming(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	waves, err := h.waveUseCase.ListIncoming(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"waves": waves})
}

// ListOutgoing handles GET /waves/outgoing
func (h *WaveHandler) ListOutgoing(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	waves, err := h.waveUseCase.ListOutgoing(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"waves": waves})
}
