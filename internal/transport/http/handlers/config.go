package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/transport/http/middleware"
)

// ConfigManager is the slice of usecase.ConfigStore the operator endpoints need.
type ConfigManager interface {
	Get(ctx context.Context, key string) (string, bool, error)
	GetAll(ctx context.Context) (map[string]string, error)
	GetByModule(ctx context.Context, module string) (map[string]string, error)
	Entries(ctx context.Context) ([]domain.ConfigEntry, error)
	Update(ctx context.Context, key, value, actor string) error
	Add(ctx context.Context, entry domain.ConfigEntry, actor string) error
	Invalidate()
}

// ConfigHandler exposes the runtime policy table to authenticated operators.
type ConfigHandler struct {
	store ConfigManager
}

func NewConfigHandler(store ConfigManager) *ConfigHandler {
	return &ConfigHandler{store: store}
}

// RegisterRoutes binds the config group; callers attach authentication to r.
func (h *ConfigHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.list)
	r.GET("/details", h.details)
	r.GET("/module/:module", h.byModule)
	r.GET("/:key", h.get)
	r.PUT("/:key", h.update)
	r.POST("", h.create)
	r.POST("/refresh", h.refresh)
}

func (h *ConfigHandler) list(c *gin.Context) {
	values, err := h.store.GetAll(c.Request.Context())
	if err != nil {
		respondMapped(c, err)
		return
	}
	respondOK(c, http.StatusOK, "ok", values)
}

func (h *ConfigHandler) details(c *gin.Context) {
	entries, err := h.store.Entries(c.Request.Context())
	if err != nil {
		respondMapped(c, err)
		return
	}

	payload := make([]ConfigEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, newConfigEntryPayload(entry))
	}
	respondOK(c, http.StatusOK, "ok", payload)
}

func (h *ConfigHandler) byModule(c *gin.Context) {
	values, err := h.store.GetByModule(c.Request.Context(), strings.TrimSpace(c.Param("module")))
	if err != nil {
		respondMapped(c, err)
		return
	}
	respondOK(c, http.StatusOK, "ok", values)
}

func (h *ConfigHandler) get(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	value, ok, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		respondMapped(c, err)
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound, "config key not found")
		return
	}
	respondOK(c, http.StatusOK, "ok", gin.H{"key": key, "value": value})
}

func (h *ConfigHandler) update(c *gin.Context) {
	var req ConfigUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		respondError(c, http.StatusBadRequest, "value is required")
		return
	}

	key := strings.TrimSpace(c.Param("key"))
	if err := h.store.Update(c.Request.Context(), key, *req.Value, middleware.GetAuthenticatedUsername(c)); err != nil {
		respondMapped(c, err)
		return
	}
	respondOK(c, http.StatusOK, "config updated", gin.H{"key": key, "value": *req.Value})
}

func (h *ConfigHandler) create(c *gin.Context) {
	var req ConfigCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "key is required")
		return
	}

	editable := true
	if req.Editable != nil {
		editable = *req.Editable
	}

	entry := domain.ConfigEntry{
		Key:         strings.TrimSpace(req.Key),
		Value:       req.Value,
		DisplayName: strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		ValueType:   strings.TrimSpace(req.Type),
		Module:      strings.TrimSpace(req.Module),
		Editable:    editable,
	}
	if err := h.store.Add(c.Request.Context(), entry, middleware.GetAuthenticatedUsername(c)); err != nil {
		respondMapped(c, err)
		return
	}
	respondOK(c, http.StatusOK, "config created", gin.H{"key": entry.Key, "value": entry.Value})
}

func (h *ConfigHandler) refresh(c *gin.Context) {
	h.store.Invalidate()
	respondOK(c, http.StatusOK, "config cache invalidated", nil)
}
