package journal

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eleven-am/scene-narrator/internal/shared"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	store  *Store
	memory *Memory
	logger *slog.Logger
}

func NewHandler(store *Store, memory *Memory, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  store,
		memory: memory,
		logger: logger.With("component", "journal"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/summaries", h.ListSummaries)
	g.GET("/summaries/:id", h.GetSummary)
	g.GET("/intents", h.ListIntents)
	g.GET("/searches", h.ListSearches)
	g.GET("/alerts", h.ListAlerts)
	g.GET("/memory", h.Recall)
}

type listResponse[T any] struct {
	Total int  `json:"total"`
	Items []*T `json:"items"`
}

func parseLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, shared.NewAPIError("invalid_limit", "limit must be a non-negative integer").
			WithDetails(map[string]int{"max": maxLimit}).
			ToHTTP(http.StatusBadRequest)
	}
	return limit, nil
}

func (h *Handler) available() error {
	if h.store == nil {
		return shared.ServiceUnavailable("journal_disabled", "journal database is not configured")
	}
	return nil
}

func (h *Handler) ListSummaries(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	items, err := h.store.ListSummaries(c.Request().Context(), c.QueryParam("session_id"), limit)
	if err != nil {
		h.logger.Error("list summaries failed", "error", err)
		return shared.InternalError("list_failed", "failed to list summaries")
	}
	return c.JSON(http.StatusOK, listResponse[SummaryRecord]{Total: len(items), Items: items})
}

func (h *Handler) GetSummary(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	r, err := h.store.GetSummary(c.Request().Context(), c.Param("id"))
	if errors.Is(err, shared.ErrNotFound) {
		return shared.NotFound("summary_not_found", "summary not found")
	}
	if err != nil {
		return shared.InternalError("get_failed", "failed to load summary")
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListIntents(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	items, err := h.store.ListIntents(c.Request().Context(), c.QueryParam("session_id"), limit)
	if err != nil {
		return shared.InternalError("list_failed", "failed to list intents")
	}
	return c.JSON(http.StatusOK, listResponse[IntentRecord]{Total: len(items), Items: items})
}

func (h *Handler) ListSearches(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	items, err := h.store.ListSearches(c.Request().Context(), c.QueryParam("session_id"), limit)
	if err != nil {
		return shared.InternalError("list_failed", "failed to list searches")
	}
	return c.JSON(http.StatusOK, listResponse[SearchRecord]{Total: len(items), Items: items})
}

func (h *Handler) ListAlerts(c echo.Context) error {
	if err := h.available(); err != nil {
		return err
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	items, err := h.store.ListAlerts(c.Request().Context(), c.QueryParam("session_id"), limit)
	if err != nil {
		return shared.InternalError("list_failed", "failed to list alerts")
	}
	return c.JSON(http.StatusOK, listResponse[AlertRecord]{Total: len(items), Items: items})
}

func (h *Handler) Recall(c echo.Context) error {
	if h.memory == nil {
		return shared.ServiceUnavailable("memory_disabled", "scene memory is not configured")
	}
	query := c.QueryParam("q")
	if query == "" {
		return shared.BadRequest("missing_query", "q is required")
	}
	limit, err := parseLimit(c)
	if err != nil {
		return err
	}
	if limit == 0 {
		limit = 5
	}
	items, err := h.memory.Recall(c.Request().Context(), query, limit)
	if err != nil {
		h.logger.Warn("recall failed", "error", err)
		return shared.ServiceUnavailable("recall_failed", "scene memory is unavailable")
	}
	return c.JSON(http.StatusOK, items)
}
