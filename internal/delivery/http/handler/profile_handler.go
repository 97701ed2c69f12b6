package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/usecase/profile"
)

type ProfileHandler struct {
	profileUseCase *profile.ProfileUseCase
}

func NewProfileHandler(profileUseCase *profile.ProfileUseCase) *ProfileHandler {
	return &ProfileHandler{profileUseCase: profileUseCase}
}

// GetMyProfile handles GET /profile/me
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	p, err := h.profileUseCase.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateMyProfile handles PUT /profile/me
func (h *ProfileHandler) UpdateMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req profile.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	p, err := h.profileUseCase.Update(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateLocation handles PUT /profile/me/location
func (h *ProfileHandler) UpdateLocation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req profile.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.profileUseCase.UpdateLocation(c.Request.Context(), userID, &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ViewProfile handles GET /profile/:user_id
func (h *ProfileHandler) ViewProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		respondError(c, domain.ErrInvalidInput)
		return
	}
	public, err := h.profileUseCase.View(c.Request.Context(), userID, targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, public)
}

// EnsureAnalysis handles POST /profile/:user_id/analysis
func (h *ProfileHandler) EnsureAnalysis(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	otherID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		respondError(c, domain.ErrInvalidInput)
		return
	}
	status, err := h.profileUseCase.EnsureAnalysis(c.Request.Context(), userID, otherID)
	if err != nil {
		respondError(c, err)
		return
	}
	if status.Ready {
		c.JSON(http.StatusOK, status)
		return
	}
	c.JSON(http.StatusAccepted, status)
}

// Block handles POST /blocks/:user_id
func (h *ProfileHandler) Block(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		respondError(c, domain.ErrInvalidInput)
		return
	}
	if err := h.profileUseCase.Block(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "blocked"})
}

// Unblock handles DELETE /blocks/:user_id
func (h *ProfileHandler) Unblock(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		respondError(c, domain.ErrInvalidInput)
		return
	}
	if err := h.profileUseCase.Unblock(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unblocked"})
}
