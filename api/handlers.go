package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/uramazingdanc/flowboardeai/board"
	"github.com/uramazingdanc/flowboardeai/domain"
	"github.com/uramazingdanc/flowboardeai/gateway"
	"github.com/uramazingdanc/flowboardeai/notify"
)

const maxBodySize = 64 << 10

// Authenticator extracts user ids from Authorization headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper rejects repeated idempotency keys.
type Deduper interface {
	Add(ctx context.Context, userID, key string) (bool, error)
	Remove(ctx context.Context, userID, key string) error
}

// Boards hands out the live board of a user.
type Boards interface {
	Get(ctx context.Context, userID string) *board.Board
}

// Notifications streams the notifications of a user.
type Notifications interface {
	Subscribe(userID string) (<-chan notify.Notification, func())
}

type handler struct {
	boards  Boards
	notes   Notifications
	deduper Deduper
}

// Register wires every route on e. deduper may be nil.
func Register(e *echo.Echo, boards Boards, notes Notifications, auth Authenticator, deduper Deduper, logger *log.Logger) {
	h := &handler{boards: boards, notes: notes, deduper: deduper}
	e.Use(Telemetry(logger), GzipRequestMiddleware())
	e.GET("/healthz", healthz)

	g := e.Group("/api", RequireUser(auth))
	g.GET("/projects", h.listProjects)
	g.POST("/projects", h.createProject)
	g.PATCH("/projects/:id", h.updateProject)
	g.DELETE("/projects/:id", h.deleteProject)
	g.POST("/projects/:id/select", h.selectProject)

	g.GET("/tasks", h.listTasks)
	g.GET("/tasks/columns/:column", h.columnTasks)
	g.POST("/tasks", h.createTask)
	g.PATCH("/tasks/:id", h.updateTask)
	g.POST("/tasks/:id/move", h.moveTask)
	g.DELETE("/tasks/:id", h.deleteTask)

	g.GET("/filters", h.getFilters)
	g.PUT("/filters", h.putFilters)
	g.DELETE("/filters", h.clearFilters)

	g.GET("/team", h.listTeam)
	g.POST("/team/invite", h.inviteMember)
	g.DELETE("/team/:userId", h.removeMember)

	g.GET("/dashboard", h.dashboard)
	g.GET("/timeline", h.timeline)
	g.GET("/stream", h.stream)
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *handler) board(c echo.Context) (*board.Board, error) {
	userID, err := userFrom(c)
	if err != nil {
		return nil, err
	}
	return h.boards.Get(c.Request().Context(), userID), nil
}

// statusFor maps store outcomes onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoUser):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidArgs),
		errors.Is(err, domain.ErrUnknownColumn),
		errors.Is(err, domain.ErrUnknownPriority):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrUnknownProject),
		errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyMember),
		errors.Is(err, domain.ErrNoProject),
		errors.Is(err, gateway.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("route", c.Path()).Error("request failed")
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}

type errorResponse struct {
	Error string `json:"error"`
}

// decode reads a JSON body, rejecting unknown fields.
func decode(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrInvalidArgs
	}
	return nil
}

type projectsResponse struct {
	Projects []domain.Project `json:"projects"`
	Active   *domain.Project  `json:"activeProject"`
}

func (h *handler) listProjects(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	if c.QueryParam("refresh") == "true" {
		if err := b.RefreshProjects(c.Request().Context()); err != nil {
			return fail(c, err)
		}
	}
	return c.JSON(http.StatusOK, projectsResponse{Projects: b.Projects(), Active: b.ActiveProject()})
}

type createProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func (h *handler) createProject(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	var req createProjectRequest
	if err := decode(c, &req); err != nil {
		return fail(c, err)
	}
	p, err := b.CreateProject(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *handler) updateProject(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	var patch domain.ProjectPatch
	if err := decode(c, &patch); err != nil {
		return fail(c, err)
	}
	if err := b.UpdateProject(c.Request().Context(), c.Param("id"), patch); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) deleteProject(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	if err := b.DeleteProject(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) selectProject(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	if err := b.SelectProject(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b.Snapshot())
}

// queryValues collects repeated and comma separated values of a query
// parameter.
func queryValues(c echo.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryParams()[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// filtersFromQuery returns the filters given on the query string and whether
// any were given.
func filtersFromQuery(c echo.Context) (domain.Filters, string, bool) {
	var f domain.Filters
	for _, p := range queryValues(c, "priority") {
		f.Priorities = append(f.Priorities, domain.Priority(p))
	}
	for _, s := range queryValues(c, "status") {
		f.Columns = append(f.Columns, domain.ColumnID(s))
	}
	f.Assignees = queryValues(c, "assignee")
	_, hasQuery := c.QueryParams()["q"]
	return f, c.QueryParam("q"), hasQuery || f.ActiveCount() > 0
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
	Total int           `json:"total"`
}

// listTasks returns the tasks passing the board filters, or the filters given
// on the query string when there are any.
func (h *handler) listTasks(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	all := b.Tasks()
	tasks := b.FilteredTasks()
	if f, q, ok := filtersFromQuery(c); ok {
		tasks = domain.FilterTasks(all, f, q)
	}
	return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks, Total: len(all)})
}

func (h *handler) columnTasks(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	column := domain.ColumnID(c.Param("column"))
	if !column.Valid() {
		return fail(c, domain.ErrUnknownColumn)
	}
	return c.JSON(http.StatusOK, tasksResponse{Tasks: b.ByColumn(column), Total: len(b.Tasks())})
}

func (h *handler) createTask(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	var draft domain.TaskDraft
	if err := decode(c, &draft); err != nil {
		return fail(c, err)
	}
	ctx := c.Request().Context()
	key := c.Request().Header.Get("Idempotency-Key")
	if key != "" && h.deduper != nil {
		added, err := h.deduper.Add(ctx, b.UserID(), key)
		if err != nil {
			log.WithError(err).Warn("idempotency check failed")
		} else if !added {
			return c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
		}
	}
	task, err := b.AddTask(ctx, draft)
	if err != nil {
		if key != "" && h.deduper != nil {
			if rerr := h.deduper.Remove(context.WithoutCancel(ctx), b.UserID(), key); rerr != nil {
				log.WithError(rerr).Warn("release idempotency key")
			}
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *handler) updateTask(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	var patch domain.TaskPatch
	if err := decode(c, &patch); err != nil {
		return fail(c, err)
	}
	if err := b.UpdateTask(c.Request().Context(), c.Param("id"), patch); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

type moveRequest struct {
	Column domain.ColumnID `json:"column"`
}

func (h *handler) moveTask(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	var req moveRequest
	if err := decode(c, &req); err != nil {
		return fail(c, err)
	}
	if err := b.MoveTask(c.Request().Context(), c.Param("id"), req.Column); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *handler) deleteTask(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	if err := b.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type filtersBody struct {
	Filters     domain.Filters `json:"filters"`
	Search      string         `json:"search"`
	ActiveCount int            `json:"activeFilterCount"`
}

func filtersOf(b *board.Board) filtersBody {
	return filtersBody{Filters: b.Filters(), Search: b.Search(), ActiveCount: b.ActiveFilterCount()}
}

func (h *handler) getFilters(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, filtersOf(b))
}

type putFiltersRequest struct {
	Filters *domain.Filters `json:"filters"`
	Search  *string         `json:"search"`
}

// putFilters replaces the filters and the search when present.
func (h *handler) putFilters(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	var req putFiltersRequest
	if err := decode(c, &req); err != nil {
		return fail(c, err)
	}
	if req.Filters != nil {
		b.SetFilters(*req.Filters)
	}
	if req.Search != nil {
		b.SetSearch(*req.Search)
	}
	return c.JSON(http.StatusOK, filtersOf(b))
}

func (h *handler) clearFilters(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	b.ClearFilters()
	return c.JSON(http.StatusOK, filtersOf(b))
}

func (h *handler) listTeam(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b.Team())
}

type inviteRequest struct {
	Email string `json:"email"`
}

func (h *handler) inviteMember(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	var req inviteRequest
	if err := decode(c, &req); err != nil {
		return fail(c, err)
	}
	if err := b.InviteMember(c.Request().Context(), req.Email); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, b.Team())
}

func (h *handler) removeMember(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	if err := b.RemoveMember(c.Request().Context(), c.Param("userId")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) dashboard(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b.Dashboard())
}

func (h *handler) timeline(c echo.Context) error {
	b, err := h.board(c)
	if err != nil {
		return fail(c, err)
	}
	day := time.Now()
	if raw := c.QueryParam("date"); raw != "" {
		parsed, perr := time.Parse("2006-01-02", raw)
		if perr != nil {
			return fail(c, domain.ErrInvalidArgs)
		}
		day = parsed
	}
	return c.JSON(http.StatusOK, b.Timeline(day))
}
