package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vigil-btc/vigild/internal/core/application"
	"github.com/vigil-btc/vigild/internal/core/domain"
)

const ownerKey = "owner"

type SwitchHandler struct {
	svc application.Service
}

func NewSwitchHandler(svc application.Service) *SwitchHandler {
	return &SwitchHandler{svc: svc}
}

func (h *SwitchHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)

	v1 := router.Group("/v1", ownerAuth())
	v1.POST("/switches", h.createSwitch)
	v1.GET("/switches", h.listSwitches)
	v1.GET("/switches/:id", h.getSwitch)
	v1.POST("/switches/:id/checkin", h.checkIn)
	v1.POST("/switches/:id/trigger", h.triggerSwitch)
	v1.DELETE("/switches/:id", h.cancelSwitch)
}

// ownerAuth extracts the bearer principal from the Authorization header.
// The daemon does not verify tokens itself, it scopes every operation to
// the opaque principal presented by the caller.
func ownerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized, gin.H{"error": "missing bearer token"},
			)
			return
		}
		owner := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if owner == "" {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized, gin.H{"error": "missing bearer token"},
			)
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

func (h *SwitchHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SwitchHandler) createSwitch(c *gin.Context) {
	var req createSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := h.svc.CreateSwitch(c.Request.Context(), req.toInput(c.GetString(ownerKey)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *SwitchHandler) listSwitches(c *gin.Context) {
	switches, err := h.svc.ListSwitches(c.Request.Context(), c.GetString(ownerKey))
	if err != nil {
		writeError(c, err)
		return
	}

	dtos := make([]switchDTO, 0, len(switches))
	for _, sw := range switches {
		dtos = append(dtos, toSwitchDTO(sw))
	}
	c.JSON(http.StatusOK, gin.H{"switches": dtos})
}

func (h *SwitchHandler) getSwitch(c *gin.Context) {
	sw, err := h.svc.GetSwitch(c.Request.Context(), c.Param("id"), c.GetString(ownerKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSwitchDTO(*sw))
}

func (h *SwitchHandler) checkIn(c *gin.Context) {
	id, owner := c.Param("id"), c.GetString(ownerKey)
	if err := h.svc.CheckIn(c.Request.Context(), id, owner); err != nil {
		writeError(c, err)
		return
	}

	sw, err := h.svc.GetSwitch(c.Request.Context(), id, owner)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSwitchDTO(*sw))
}

func (h *SwitchHandler) triggerSwitch(c *gin.Context) {
	txid, err := h.svc.TriggerSwitch(c.Request.Context(), c.Param("id"), c.GetString(ownerKey))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txid": txid})
}

func (h *SwitchHandler) cancelSwitch(c *gin.Context) {
	if err := h.svc.CancelSwitch(c.Request.Context(), c.Param("id"), c.GetString(ownerKey)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	var (
		validationErr domain.ValidationError
		notFoundErr   application.ErrSwitchNotFound
		notOwnerErr   application.ErrNotOwner
		conflictErr   application.ErrConflict
		triggeredErr  application.ErrAlreadyTriggered
		notActiveErr  application.ErrNotActive
		payoutErr     application.ErrPayoutFailed
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notOwnerErr):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &triggeredErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "txid": triggeredErr.Txid})
	case errors.As(err, &conflictErr), errors.As(err, &notActiveErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &payoutErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
