package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/usecase/group"
)

type GroupHandler struct {
	groupUseCase *group.GroupUseCase
}

func NewGroupHandler(groupUseCase *group.GroupUseCase) *GroupHandler {
	return &GroupHandler{groupUseCase: groupUseCase}
}

// Create handles POST /groups
func (h *GroupHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req group.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	conv, err := h.groupUseCase.Create(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// Update handles PUT /groups/:conversation_id
func (h *GroupHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req group.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	conv, err := h.groupUseCase.Update(c.Request.Context(), userID, convID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// JoinByInvite handles POST /groups/join
func (h *GroupHandler) JoinByInvite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req struct {
		InviteCode string `json:"invite_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	conv, err := h.groupUseCase.JoinByInvite(c.Request.Context(), userID, req.InviteCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// JoinDiscoverable handles POST /groups/:conversation_id/join
func (h *GroupHandler) JoinDiscoverable(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req struct {
		Lat float64 `json:"lat" binding:"required,latitude"`
		Lng float64 `json:"lng" binding:"required,longitude"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	conv, err := h.groupUseCase.JoinDiscoverable(c.Request.Context(), userID, convID, req.Lat, req.Lng)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Leave handles POST /groups/:conversation_id/leave
func (h *GroupHandler) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	if err := h.groupUseCase.Leave(c.Request.Context(), userID, convID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// AddMember handles POST /groups/:conversation_id/members
func (h *GroupHandler) AddMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.groupUseCase.AddMember(c.Request.Context(), userID, convID, req.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "added"})
}

// RemoveMember handles DELETE /groups/:conversation_id/members/:user_id
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	memberID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		respondError(c, domain.ErrInvalidInput)
		return
	}
	if err := h.groupUseCase.RemoveMember(c.Request.Context(), userID, convID, memberID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// SetRole handles PUT /groups/:conversation_id/members/role
func (h *GroupHandler) SetRole(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req group.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.groupUseCase.SetRole(c.Request.Context(), userID, convID, &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TransferOwnership handles POST /groups/:conversation_id/transfer
func (h *GroupHandler) TransferOwnership(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req struct {
		NewOwnerID int `json:"new_owner_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.groupUseCase.TransferOwnership(c.Request.Context(), userID, convID, req.NewOwnerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

// RegenerateInviteCode handles POST /groups/:conversation_id/invite-code
func (h *GroupHandler) RegenerateInviteCode(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	code, err := h.groupUseCase.RegenerateInviteCode(c.Request.Context(), userID, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invite_code": code})
}

// ListDiscoverable handles GET /groups/discoverable
func (h *GroupHandler) ListDiscoverable(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		respondError(c, domain.ErrInvalidInput)
		return
	}
	groups, err := h.groupUseCase.ListDiscoverable(c.Request.Context(), lat, lng)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// CreateTopic handles POST /groups/:conversation_id/topics
func (h *GroupHandler) CreateTopic(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req group.CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	topic, err := h.groupUseCase.CreateTopic(c.Request.Context(), userID, convID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, topic)
}
