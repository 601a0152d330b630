package board

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/uramazingdanc/flowboardeai/domain"
	"github.com/uramazingdanc/flowboardeai/gateway"
	"github.com/uramazingdanc/flowboardeai/notify"
)

// TaskStore mirrors the tasks of one project. The list is written only by
// apply; mutators issue remote writes and wait for the change events.
type TaskStore struct {
	gw       gateway.Gateway
	notifier notify.Notifier
	userID   string
	changed  func()

	mu        sync.RWMutex
	projectID string
	fetchSeq  uint64
	tasks     []domain.Task
	profiles  []domain.ProfileRow
	sub       gateway.Subscription
}

// NewTaskStore creates a task store for userID. changed is called after every
// change of the local list.
func NewTaskStore(gw gateway.Gateway, n notify.Notifier, userID string, changed func()) *TaskStore {
	return &TaskStore{gw: gw, notifier: n, userID: userID, changed: changed, tasks: []domain.Task{}}
}

// apply runs a through the reducer. Events for another project and results
// of superseded fetches are dropped.
func (s *TaskStore) apply(a action, projectID string, seq uint64) {
	s.mu.Lock()
	if projectID != s.projectID || (a.kind == replaceTasks && seq != s.fetchSeq) {
		s.mu.Unlock()
		return
	}
	next, changed := reduce(s.tasks, a)
	if changed {
		s.tasks = next
	}
	s.mu.Unlock()
	if changed && s.changed != nil {
		s.changed()
	}
}

// Fetch loads every profile and the tasks of projectID newest first and
// replaces the local list. An empty projectID clears it. On failure the list
// is emptied and the user is notified.
func (s *TaskStore) Fetch(ctx context.Context, projectID string) error {
	s.mu.Lock()
	s.projectID = projectID
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	if projectID == "" {
		s.setProfiles(nil)
		s.apply(action{kind: replaceTasks}, projectID, seq)
		return nil
	}
	tasks, err := s.load(ctx, projectID)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"user": s.userID, "project": projectID}).Error("fetch tasks")
		s.notifier.Error(s.userID, msgTasksLoadFailed)
		s.apply(action{kind: replaceTasks}, projectID, seq)
		return remoteErr(err)
	}
	s.apply(action{kind: replaceTasks, tasks: tasks}, projectID, seq)
	return nil
}

func (s *TaskStore) load(ctx context.Context, projectID string) ([]domain.Task, error) {
	rawProfiles, err := s.gw.Select(ctx, domain.TableProfiles, gateway.Query{})
	if err != nil {
		return nil, err
	}
	profiles, err := decodeRows[domain.ProfileRow](rawProfiles)
	if err != nil {
		return nil, err
	}
	rawTasks, err := s.gw.Select(ctx, domain.TableTasks, gateway.Where("project_id", projectID).Order("created_at", true))
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[domain.TaskRow](rawTasks)
	if err != nil {
		return nil, err
	}
	s.setProfiles(profiles)
	tasks := make([]domain.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, domain.TaskFromRow(row, profiles))
	}
	return tasks, nil
}

func (s *TaskStore) setProfiles(p []domain.ProfileRow) {
	s.mu.Lock()
	s.profiles = p
	s.mu.Unlock()
}

// Watch makes projectID the mirrored project: it replaces the change
// subscription and fetches the list. The subscription outlives ctx and ends
// with the next Watch or Close.
func (s *TaskStore) Watch(ctx context.Context, projectID string) error {
	s.unsubscribe()
	if projectID != "" {
		sub, err := s.gw.Subscribe(context.WithoutCancel(ctx), domain.TableTasks, gateway.Where("project_id", projectID), gateway.Handlers{
			OnInsert: func(raw json.RawMessage) { s.onRow(raw, upsertTask) },
			OnUpdate: func(raw json.RawMessage) { s.onRow(raw, updateTask) },
			OnDelete: s.onDelete,
		})
		if err != nil {
			log.WithError(err).WithField("project", projectID).Error("subscribe to task changes")
		} else {
			s.mu.Lock()
			s.sub = sub
			s.mu.Unlock()
		}
	}
	return s.Fetch(ctx, projectID)
}

// Close ends the change subscription.
func (s *TaskStore) Close() {
	s.unsubscribe()
}

func (s *TaskStore) unsubscribe() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (s *TaskStore) onRow(raw json.RawMessage, kind actionKind) {
	row, err := decodeRow[domain.TaskRow](raw)
	if err != nil {
		log.WithError(err).Error("decode task change")
		return
	}
	task := domain.TaskFromRow(row, s.Profiles())
	s.apply(action{kind: kind, task: task}, row.ProjectID, 0)
}

func (s *TaskStore) onDelete(raw json.RawMessage) {
	row, err := decodeRow[domain.TaskRow](raw)
	if err != nil {
		log.WithError(err).Error("decode task change")
		return
	}
	s.apply(action{kind: removeTask, id: row.ID}, row.ProjectID, 0)
}

// Add writes a new task to the mirrored project and returns it. The task
// shows up locally once its insert event arrives.
func (s *TaskStore) Add(ctx context.Context, d domain.TaskDraft) (*domain.Task, error) {
	projectID := s.ProjectID()
	if projectID == "" {
		s.notifier.Error(s.userID, msgNoProject)
		return nil, domain.ErrNoProject
	}
	if err := d.Validate(); err != nil {
		s.notifier.Error(s.userID, msgTaskCreateFailed)
		return nil, err
	}
	raw, err := s.gw.Insert(ctx, domain.TableTasks, domain.NewTaskRow(projectID, d))
	if err == nil {
		var row domain.TaskRow
		if row, err = decodeRow[domain.TaskRow](raw); err == nil {
			task := domain.TaskFromRow(row, s.Profiles())
			s.notifier.Success(s.userID, msgTaskCreated)
			return &task, nil
		}
	}
	log.WithError(err).WithField("project", projectID).Error("create task")
	s.notifier.Error(s.userID, msgTaskCreateFailed)
	return nil, remoteErr(err)
}

// Update writes the fields present in p to a task of the mirrored project.
func (s *TaskStore) Update(ctx context.Context, id string, p domain.TaskPatch) error {
	if err := p.Validate(); err != nil {
		s.notifier.Error(s.userID, msgTaskUpdateFailed)
		return err
	}
	projectID := s.ProjectID()
	if projectID == "" {
		s.notifier.Error(s.userID, msgNoProject)
		return domain.ErrNoProject
	}
	if err := s.gw.Update(ctx, domain.TableTasks, gateway.Where("project_id", projectID).And("id", id), p.Row()); err != nil {
		log.WithError(err).WithField("task", id).Error("update task")
		s.notifier.Error(s.userID, msgTaskUpdateFailed)
		return remoteErr(err)
	}
	s.notifier.Success(s.userID, msgTaskUpdated)
	return nil
}

// Move changes only the column of a task.
func (s *TaskStore) Move(ctx context.Context, id string, column domain.ColumnID) error {
	return s.Update(ctx, id, domain.TaskPatch{ColumnID: &column})
}

// Delete removes a task of the mirrored project remotely and then locally.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	projectID := s.ProjectID()
	if projectID == "" {
		s.notifier.Error(s.userID, msgNoProject)
		return domain.ErrNoProject
	}
	if err := s.gw.Delete(ctx, domain.TableTasks, gateway.Where("project_id", projectID).And("id", id)); err != nil {
		log.WithError(err).WithField("task", id).Error("delete task")
		s.notifier.Error(s.userID, msgTaskDeleteFailed)
		return remoteErr(err)
	}
	s.apply(action{kind: removeTask, id: id}, projectID, 0)
	s.notifier.Success(s.userID, msgTaskDeleted)
	return nil
}

// Tasks returns a copy of the local list.
func (s *TaskStore) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Task{}, s.tasks...)
}

func (s *TaskStore) ByColumn(c domain.ColumnID) []domain.Task {
	return domain.TasksInColumn(s.Tasks(), c)
}

// Profiles returns the profiles loaded by the last fetch.
func (s *TaskStore) Profiles() []domain.ProfileRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles
}

func (s *TaskStore) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}
