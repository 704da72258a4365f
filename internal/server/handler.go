package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/internal/engine"
	"github.com/Gopher0727/TempVoice/internal/model"
	"github.com/Gopher0727/TempVoice/internal/repository"
	logger "github.com/Gopher0727/TempVoice/middleware/log"
)

const (
	serviceName    = "TempVoice"
	serviceVersion = "1.0.0"
)

// Handler exposes the intent API and the status surface.
type Handler struct {
	engine  *engine.Engine
	rooms   repository.IRoomRepository
	log     *logger.Logger
	started time.Time
}

func NewHandler(eng *engine.Engine, rooms repository.IRoomRepository, log *logger.Logger) *Handler {
	return &Handler{
		engine:  eng,
		rooms:   rooms,
		log:     log,
		started: time.Now(),
	}
}

// Root answers the unauthenticated liveness probe.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"name":   serviceName,
	})
}

// Info reports service identity and uptime.
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":       serviceName,
		"version":    serviceVersion,
		"started_at": h.started.UTC().Format(time.RFC3339),
		"uptime":     time.Since(h.started).Round(time.Second).String(),
	})
}

// GuildStatus reports the caller's guild-scoped room count.
func (h *Handler) GuildStatus(c *gin.Context) {
	guildID := c.GetString("guild_id")
	count, err := h.rooms.CountByGuild(c.Request.Context(), guildID)
	if err != nil {
		h.log.Error("failed to count rooms",
			zap.String("guild_id", guildID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count rooms"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"guild_id": guildID,
		"rooms":    count,
	})
}

type intentRequest struct {
	Kind     string `json:"kind" binding:"required"`
	TargetID string `json:"target_id"`
	Name     string `json:"name"`
	Limit    int    `json:"limit"`
	Variant  string `json:"variant"`
}

// DispatchIntent executes one operation on behalf of the authenticated
// member. The guild and actor always come from the token claims, never
// from the request body.
func (h *Handler) DispatchIntent(c *gin.Context) {
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	kind, ok := engine.ParseKind(req.Kind)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown intent kind"})
		return
	}

	res := h.engine.Dispatch(c.Request.Context(), engine.Intent{
		Kind:     kind,
		GuildID:  c.GetString("guild_id"),
		ActorID:  c.GetString("member_id"),
		TargetID: req.TargetID,
		Name:     req.Name,
		Limit:    req.Limit,
		Variant:  model.InterfaceVariant(req.Variant),
	})
	c.JSON(http.StatusOK, res)
}

// Candidates lists the valid targets for a member-picking intent.
func (h *Handler) Candidates(c *gin.Context) {
	kind, ok := engine.ParseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown intent kind"})
		return
	}

	members, res := h.engine.Candidates(
		c.Request.Context(),
		c.GetString("guild_id"),
		c.GetString("member_id"),
		kind,
	)
	if !res.OK {
		c.JSON(http.StatusOK, gin.H{"ok": false, "message": res.Message})
		return
	}

	type candidate struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Username    string `json:"username"`
	}
	out := make([]candidate, 0, len(members))
	for _, m := range members {
		out = append(out, candidate{ID: m.ID, DisplayName: m.DisplayName, Username: m.Username})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "candidates": out})
}
