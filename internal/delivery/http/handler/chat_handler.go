package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ripplehq/ripple-backend/internal/domain"
	"github.com/ripplehq/ripple-backend/internal/usecase/chat"
)

type ChatHandler struct {
	chatUseCase *chat.ChatUseCase
}

func NewChatHandler(chatUseCase *chat.ChatUseCase) *ChatHandler {
	return &ChatHandler{chatUseCase: chatUseCase}
}

// ListConversations handles GET /conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	summaries, err := h.chatUseCase.ListConversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// GetConversation handles GET /conversations/:conversation_id
func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	conv, participants, topics, err := h.chatUseCase.GetConversation(c.Request.Context(), userID, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"participants": participants,
		"topics":       topics,
	})
}

// SendMessage handles POST /conversations/:conversation_id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req chat.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	msg, err := h.chatUseCase.Send(c.Request.Context(), userID, convID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// History handles GET /conversations/:conversation_id/messages
func (h *ChatHandler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	var req chat.HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}
	messages, err := h.chatUseCase.History(c.Request.Context(), userID, convID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// MarkRead handles POST /conversations/:conversation_id/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	ids, err := h.chatUseCase.MarkRead(c.Request.Context(), userID, convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_ids": ids})
}

// DeleteMessage handles DELETE /conversations/:conversation_id/messages/:message_id
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	msgID, ok := pathID(c, "message_id")
	if !ok {
		return
	}
	if err := h.chatUseCase.Delete(c.Request.Context(), userID, convID, msgID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// React handles POST /conversations/:conversation_id/messages/:message_id/reactions
func (h *ChatHandler) React(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	msgID, ok := pathID(c, "message_id")
	if !ok {
		return
	}
	var req chat.ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	resp, err := h.chatUseCase.React(c.Request.Context(), userID, convID, msgID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Search handles GET /conversations/:conversation_id/search
func (h *ChatHandler) Search(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	convID, ok := pathID(c, "conversation_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	messages, err := h.chatUseCase.Search(c.Request.Context(), userID, convID, c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil {
		respondError(c, domain.ErrInvalidInput)
		return 0, false
	}
	return id, true
}
