// Package board keeps a live mirror of one user's projects, tasks and team
// and derives the filtered views shown on the board.
package board

import (
	"context"
	"sync"
	"time"

	"github.com/uramazingdanc/flowboardeai/domain"
	"github.com/uramazingdanc/flowboardeai/gateway"
	"github.com/uramazingdanc/flowboardeai/notify"
)

// Board composes the project, task and team stores of one user with the
// transient filter state. All methods are safe for concurrent use.
type Board struct {
	userID   string
	tasks    *TaskStore
	projects *ProjectStore
	team     *TeamStore
	changes  *changeBroker

	mu      sync.RWMutex
	filters domain.Filters
	search  string

	// serializes project switches so tasks and team follow the same project
	syncMu sync.Mutex

	loadMu sync.Mutex
	loaded bool
}

// New creates an empty board for userID. Call Load to fill it.
func New(gw gateway.Gateway, n notify.Notifier, userID string) *Board {
	b := &Board{userID: userID, changes: newChangeBroker()}
	b.tasks = NewTaskStore(gw, n, userID, b.changes.notify)
	b.projects = NewProjectStore(gw, n, userID, b.changes.notify)
	b.team = NewTeamStore(gw, n, userID, b.changes.notify)
	return b
}

func (b *Board) UserID() string { return b.userID }

// Load fetches the projects and mirrors the active one.
func (b *Board) Load(ctx context.Context) error {
	if err := b.projects.Fetch(ctx); err != nil {
		return err
	}
	return b.follow(ctx, false)
}

// ensureLoaded runs the first Load, retrying on later calls until one
// succeeds. The load is detached from ctx so a caller going away does not
// fail it.
func (b *Board) ensureLoaded(ctx context.Context) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()
	if b.loaded {
		return nil
	}
	if err := b.Load(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	b.loaded = true
	return nil
}

// follow points the task and team stores at the active project. With force
// set they are reloaded even when the project did not change.
func (b *Board) follow(ctx context.Context, force bool) error {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	id := b.projects.ActiveID()
	if !force && id == b.tasks.ProjectID() && id == b.team.ProjectID() {
		return nil
	}
	taskErr := b.tasks.Watch(ctx, id)
	teamErr := b.team.Fetch(ctx, id)
	if taskErr != nil {
		return taskErr
	}
	return teamErr
}

// SelectProject activates a listed project and reloads its tasks and team.
func (b *Board) SelectProject(ctx context.Context, id string) error {
	if err := b.projects.SetActive(id); err != nil {
		return err
	}
	return b.follow(ctx, true)
}

func (b *Board) RefreshProjects(ctx context.Context) error {
	return b.Load(ctx)
}

func (b *Board) CreateProject(ctx context.Context, name string, description *string) (*domain.Project, error) {
	p, err := b.projects.Create(ctx, name, description)
	if err != nil {
		return nil, err
	}
	_ = b.follow(ctx, false)
	return p, nil
}

func (b *Board) UpdateProject(ctx context.Context, id string, patch domain.ProjectPatch) error {
	return b.projects.Update(ctx, id, patch)
}

func (b *Board) DeleteProject(ctx context.Context, id string) error {
	if err := b.projects.Delete(ctx, id); err != nil {
		return err
	}
	_ = b.follow(ctx, false)
	return nil
}

func (b *Board) Projects() []domain.Project { return b.projects.Projects() }
func (b *Board) ActiveProject() *domain.Project { return b.projects.Active() }
func (b *Board) Tasks() []domain.Task { return b.tasks.Tasks() }
func (b *Board) Team() []domain.TeamMember { return b.team.Members() }
func (b *Board) Profiles() []domain.ProfileRow { return b.tasks.Profiles() }
func (b *Board) ByColumn(c domain.ColumnID) []domain.Task { return b.tasks.ByColumn(c) }

func (b *Board) AddTask(ctx context.Context, d domain.TaskDraft) (*domain.Task, error) {
	return b.tasks.Add(ctx, d)
}

func (b *Board) UpdateTask(ctx context.Context, id string, p domain.TaskPatch) error {
	return b.tasks.Update(ctx, id, p)
}

// MoveTask rejects unknown columns before any remote call.
func (b *Board) MoveTask(ctx context.Context, id string, c domain.ColumnID) error {
	return b.tasks.Move(ctx, id, c)
}

func (b *Board) DeleteTask(ctx context.Context, id string) error {
	return b.tasks.Delete(ctx, id)
}

func (b *Board) InviteMember(ctx context.Context, email string) error {
	return b.team.Invite(ctx, email)
}

func (b *Board) RemoveMember(ctx context.Context, userID string) error {
	return b.team.Remove(ctx, userID)
}

func (b *Board) SetFilters(f domain.Filters) {
	b.mu.Lock()
	b.filters = f
	b.mu.Unlock()
	b.changes.notify()
}

func (b *Board) SetSearch(q string) {
	b.mu.Lock()
	b.search = q
	b.mu.Unlock()
	b.changes.notify()
}

// ClearFilters empties every filter category. The search is kept.
func (b *Board) ClearFilters() {
	b.SetFilters(domain.Filters{})
}

func (b *Board) Filters() domain.Filters {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filters
}

func (b *Board) Search() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.search
}

func (b *Board) ActiveFilterCount() int {
	return b.Filters().ActiveCount()
}

// FilteredTasks applies the search and every active filter to the task list.
func (b *Board) FilteredTasks() []domain.Task {
	b.mu.RLock()
	f, q := b.filters, b.search
	b.mu.RUnlock()
	return domain.FilterTasks(b.tasks.Tasks(), f, q)
}

func (b *Board) Dashboard() domain.Dashboard {
	return domain.Summarize(b.tasks.Tasks())
}

func (b *Board) Timeline(day time.Time) domain.Timeline {
	return domain.BuildTimeline(b.tasks.Tasks(), day)
}

// View is a point-in-time copy of the board.
type View struct {
	Projects          []domain.Project    `json:"projects"`
	Active            *domain.Project     `json:"activeProject"`
	Columns           []domain.Column     `json:"columns"`
	Tasks             []domain.Task       `json:"tasks"`
	FilteredTasks     []domain.Task       `json:"filteredTasks"`
	Team              []domain.TeamMember `json:"team"`
	Filters           domain.Filters      `json:"filters"`
	Search            string              `json:"search"`
	ActiveFilterCount int                 `json:"activeFilterCount"`
}

func (b *Board) Snapshot() View {
	b.mu.RLock()
	f, q := b.filters, b.search
	b.mu.RUnlock()
	tasks := b.tasks.Tasks()
	return View{
		Projects:          b.projects.Projects(),
		Active:            b.projects.Active(),
		Columns:           domain.Columns,
		Tasks:             tasks,
		FilteredTasks:     domain.FilterTasks(tasks, f, q),
		Team:              b.team.Members(),
		Filters:           f,
		Search:            q,
		ActiveFilterCount: f.ActiveCount(),
	}
}

// Changes returns a channel signalled after every board change and a func
// that stops the signals.
func (b *Board) Changes() (<-chan struct{}, func()) {
	ch := b.changes.subscribe()
	return ch, func() { b.changes.unsubscribe(ch) }
}

func (b *Board) watchers() int {
	return b.changes.count()
}

// Close stops the realtime subscription.
func (b *Board) Close() {
	b.tasks.Close()
}
