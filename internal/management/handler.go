package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pulse/internal/constants"
	"pulse/internal/logger"
	"pulse/pkg/failure"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(toHTTPStatus(err), toErrorResponse(err))
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		rules := v1.Group("/rules")
		{
			rules.GET("", h.ListRules)
			rules.POST("", h.CreateRule)
			rules.GET("/:id", h.GetRule)
			rules.PUT("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
			rules.POST("/:id/enable", h.EnableRule)
			rules.POST("/:id/disable", h.DisableRule)
			rules.GET("/:id/executions", h.ListExecutions)
			rules.GET("/:id/audit", h.ListAuditLogs)
		}

		dlq := v1.Group("/dlq")
		{
			dlq.GET("/:queue", h.ListDLQ)
			dlq.POST("/:queue/replay", h.ReplayDLQ)
			dlq.POST("/:queue/replay/:id", h.ReplayDLQItem)
			dlq.DELETE("/:queue", h.PurgeDLQ)
		}

		events := v1.Group("/events")
		{
			events.POST("", h.PublishEvent)
		}
	}
}

// ListRules returns every rule, optionally filtered by ?user_id=.
func (h *Handler) ListRules(c *gin.Context) {
	rules, err := h.Service.ListRules(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, failure.Wrap(err, failure.Validation))
		return
	}

	rule, err := h.Service.CreateRule(c.Request.Context(), req, actor(c), c.ClientIP())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.Service.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) UpdateRule(c *gin.Context) {
	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, failure.Wrap(err, failure.Validation))
		return
	}

	rule, err := h.Service.UpdateRule(c.Request.Context(), c.Param("id"), req, actor(c), c.ClientIP())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.Service.DeleteRule(c.Request.Context(), c.Param("id"), actor(c), c.ClientIP()); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) EnableRule(c *gin.Context) {
	h.setEnabled(c, true)
}

func (h *Handler) DisableRule(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *Handler) setEnabled(c *gin.Context, enabled bool) {
	rule, err := h.Service.SetRuleEnabled(c.Request.Context(), c.Param("id"), enabled, actor(c), c.ClientIP())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) ListExecutions(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	executions, err := h.Service.ListExecutions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, executions)
}

func (h *Handler) ListAuditLogs(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	logs, err := h.Service.ListAuditLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) ListDLQ(c *gin.Context) {
	limit := int64(parseLimit(c.Query("limit")))

	items, err := h.Service.ListDLQ(c.Request.Context(), c.Param("queue"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) ReplayDLQ(c *gin.Context) {
	replayed, failed, err := h.Service.ReplayDLQ(c.Request.Context(), c.Param("queue"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReplayResponse{Replayed: replayed, Failed: failed})
}

func (h *Handler) ReplayDLQItem(c *gin.Context) {
	ok, err := h.Service.ReplayDLQItem(c.Request.Context(), c.Param("queue"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReplayResponse{Replayed: boolToCount(ok), Failed: boolToCount(!ok)})
}

func (h *Handler) PurgeDLQ(c *gin.Context) {
	removed, err := h.Service.PurgeDLQ(c.Request.Context(), c.Param("queue"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, PurgeResponse{Removed: removed})
}

func (h *Handler) PublishEvent(c *gin.Context) {
	var req PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, failure.Wrap(err, failure.Validation))
		return
	}

	entryID, err := h.Service.PublishEvent(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, PublishEventResponse{EntryID: entryID})
}

func actor(c *gin.Context) string {
	return c.GetHeader("X-Actor")
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}

func boolToCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
