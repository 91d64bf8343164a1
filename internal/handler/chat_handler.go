package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"taskflow/internal/bus"
	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/notify"
	"taskflow/internal/repository"
)

type ChatHandler struct {
	channels *repository.ChannelRepository
	users    *repository.UserRepository
	store    *notify.Store
	bus      notify.Publisher
}

func NewChatHandler(channels *repository.ChannelRepository, users *repository.UserRepository, store *notify.Store, publisher notify.Publisher) *ChatHandler {
	return &ChatHandler{channels: channels, users: users, store: store, bus: publisher}
}

type createChannelRequest struct {
	Name        string      `json:"name"`
	ChannelType string      `json:"channel_type"`
	Members     []uuid.UUID `json:"members"`
}

func (h *ChatHandler) CreateChannel(c *gin.Context) {
	actor, ok := h.requireChat(c)
	if !ok {
		return
	}
	userID := actor.ID
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	channel := &model.Channel{
		ID:          uuid.New(),
		Name:        req.Name,
		ChannelType: defaultString(req.ChannelType, model.ChannelDirect),
	}
	if err := h.channels.Create(c.Request.Context(), channel); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Create failed"})
		return
	}

	// The creator is always a member.
	members := map[uuid.UUID]struct{}{userID: {}}
	for _, id := range req.Members {
		members[id] = struct{}{}
	}
	ids := make([]uuid.UUID, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	if err := h.channels.AddMembers(c.Request.Context(), channel, usersFromIDs(ids)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Assign failed"})
		return
	}

	created, err := h.channels.GetByID(c.Request.Context(), channel.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ChatHandler) ListChannels(c *gin.Context) {
	actor, ok := h.requireChat(c)
	if !ok {
		return
	}
	channels, err := h.channels.ListForUser(c.Request.Context(), actor.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	_, channelID, ok := h.requireMember(c)
	if !ok {
		return
	}
	messages, err := h.channels.ListMessages(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type createMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// CreateMessage stores the message, pushes it to the channel's live room, and
// notifies every other channel member.
func (h *ChatHandler) CreateMessage(c *gin.Context) {
	sender, channelID, ok := h.requireMember(c)
	if !ok {
		return
	}
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	userID := sender.ID
	message := &model.Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		SenderID:  &userID,
		Content:   req.Content,
	}
	if err := h.channels.CreateMessage(c.Request.Context(), message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Create failed"})
		return
	}

	h.bus.Publish(bus.ChatRoom(channelID), bus.Event{Type: bus.EventChatMessage, Payload: message})

	channel, err := h.channels.GetByID(c.Request.Context(), channelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return
	}
	channelName := channel.Name
	if channelName == "" {
		channelName = "Channel " + channelID.String()
	}
	for _, member := range channel.Members {
		if member.ID == userID {
			continue
		}
		h.store.Create(c.Request.Context(), member.ID, model.TypeChatMessage, "New chat message",
			sender.Name+` sent a message in "`+channelName+`".`,
			"/chat?channel="+channelID.String(),
			map[string]interface{}{"channel_id": channelID.String(), "message_id": message.ID.String()})
	}

	c.JSON(http.StatusCreated, message)
}

// requireChat loads the caller and rejects users without the chat capability.
func (h *ChatHandler) requireChat(c *gin.Context) (*model.User, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return nil, false
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}
	if !user.Has(model.CapAccessChat) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed"})
		return nil, false
	}
	return user, true
}

func (h *ChatHandler) requireMember(c *gin.Context) (*model.User, uuid.UUID, bool) {
	user, ok := h.requireChat(c)
	if !ok {
		return nil, uuid.Nil, false
	}
	channelID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel ID"})
		return nil, uuid.Nil, false
	}
	member, err := h.channels.IsMember(c.Request.Context(), channelID, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error"})
		return nil, uuid.Nil, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a channel member"})
		return nil, uuid.Nil, false
	}
	return user, channelID, true
}
