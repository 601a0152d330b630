package board

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/uramazingdanc/flowboardeai/domain"
	"github.com/uramazingdanc/flowboardeai/gateway"
	"github.com/uramazingdanc/flowboardeai/notify"
)

// ProjectStore holds the projects visible to a user and the active selection.
// A project that is not listed is never active.
type ProjectStore struct {
	gw       gateway.Gateway
	notifier notify.Notifier
	userID   string
	changed  func()

	mu       sync.RWMutex
	projects []domain.Project
	activeID string
}

// NewProjectStore creates the project store of userID.
func NewProjectStore(gw gateway.Gateway, n notify.Notifier, userID string, changed func()) *ProjectStore {
	return &ProjectStore{gw: gw, notifier: n, userID: userID, changed: changed, projects: []domain.Project{}}
}

func (s *ProjectStore) emit() {
	if s.changed != nil {
		s.changed()
	}
}

// Fetch loads the projects the user owns or is a member of, newest first, and
// selects the first one when nothing is active.
func (s *ProjectStore) Fetch(ctx context.Context) error {
	projects, err := s.load(ctx)
	if err != nil {
		log.WithError(err).WithField("user", s.userID).Error("fetch projects")
		s.notifier.Error(s.userID, msgProjectsLoadFailed)
		return remoteErr(err)
	}
	s.mu.Lock()
	s.projects = projects
	if s.indexLocked(s.activeID) < 0 {
		s.activeID = ""
		if len(projects) > 0 {
			s.activeID = projects[0].ID
		}
	}
	s.mu.Unlock()
	s.emit()
	return nil
}

func (s *ProjectStore) load(ctx context.Context) ([]domain.Project, error) {
	owned, err := s.gw.Select(ctx, domain.TableProjects, gateway.Where("owner_id", s.userID))
	if err != nil {
		return nil, err
	}
	rawMembers, err := s.gw.Select(ctx, domain.TableMembers, gateway.Where("user_id", s.userID))
	if err != nil {
		return nil, err
	}
	members, err := decodeRows[domain.MemberRow](rawMembers)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ProjectID)
	}
	shared, err := s.gw.Select(ctx, domain.TableProjects, gateway.In("id", ids))
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[domain.ProjectRow](append(owned, shared...))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	projects := make([]domain.Project, 0, len(rows))
	for _, row := range rows {
		if seen[row.ID] {
			continue
		}
		seen[row.ID] = true
		projects = append(projects, domain.ProjectFromRow(row))
	}
	sort.SliceStable(projects, func(i, j int) bool { return projects[i].CreatedAt.After(projects[j].CreatedAt) })
	return projects, nil
}

// Create inserts a project owned by the user, puts it first and activates it.
func (s *ProjectStore) Create(ctx context.Context, name string, description *string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.notifier.Error(s.userID, msgProjectCreateFailed)
		return nil, domain.ErrInvalidArgs
	}
	raw, err := s.gw.Insert(ctx, domain.TableProjects, domain.NewProjectRow(s.userID, name, description))
	if err != nil {
		log.WithError(err).WithField("user", s.userID).Error("create project")
		s.notifier.Error(s.userID, msgProjectCreateFailed)
		return nil, remoteErr(err)
	}
	row, err := decodeRow[domain.ProjectRow](raw)
	if err != nil {
		s.notifier.Error(s.userID, msgProjectCreateFailed)
		return nil, remoteErr(err)
	}
	p := domain.ProjectFromRow(row)
	s.mu.Lock()
	if i := s.indexLocked(p.ID); i >= 0 {
		s.projects = append(s.projects[:i:i], s.projects[i+1:]...)
	}
	s.projects = append([]domain.Project{p}, s.projects...)
	s.activeID = p.ID
	s.mu.Unlock()
	s.notifier.Success(s.userID, msgProjectCreated)
	s.emit()
	return &p, nil
}

// Update writes p to a listed project and merges it into the local copy.
func (s *ProjectStore) Update(ctx context.Context, id string, p domain.ProjectPatch) error {
	if err := p.Validate(); err != nil {
		s.notifier.Error(s.userID, msgProjectUpdateFailed)
		return err
	}
	if !s.listed(id) {
		s.notifier.Error(s.userID, msgProjectUpdateFailed)
		return domain.ErrUnknownProject
	}
	if err := s.gw.Update(ctx, domain.TableProjects, gateway.Where("id", id), p.Row()); err != nil {
		log.WithError(err).WithField("project", id).Error("update project")
		s.notifier.Error(s.userID, msgProjectUpdateFailed)
		return remoteErr(err)
	}
	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		next := append([]domain.Project{}, s.projects...)
		next[i] = p.Apply(next[i])
		s.projects = next
	}
	s.mu.Unlock()
	s.notifier.Success(s.userID, msgProjectUpdated)
	s.emit()
	return nil
}

// Delete removes a listed project, then its tasks and memberships. The active
// project falls back to the first remaining one.
func (s *ProjectStore) Delete(ctx context.Context, id string) error {
	if !s.listed(id) {
		s.notifier.Error(s.userID, msgProjectDeleteFailed)
		return domain.ErrUnknownProject
	}
	if err := s.gw.Delete(ctx, domain.TableProjects, gateway.Where("id", id)); err != nil {
		log.WithError(err).WithField("project", id).Error("delete project")
		s.notifier.Error(s.userID, msgProjectDeleteFailed)
		return remoteErr(err)
	}
	for _, table := range []string{domain.TableTasks, domain.TableMembers} {
		if err := s.gw.Delete(ctx, table, gateway.Where("project_id", id)); err != nil && !errors.Is(err, gateway.ErrNotFound) {
			log.WithError(err).WithFields(log.Fields{"project": id, "table": table}).Warn("remove project rows")
		}
	}
	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.projects = append(s.projects[:i:i], s.projects[i+1:]...)
	}
	if s.activeID == id {
		s.activeID = ""
		if len(s.projects) > 0 {
			s.activeID = s.projects[0].ID
		}
	}
	s.mu.Unlock()
	s.notifier.Success(s.userID, msgProjectDeleted)
	s.emit()
	return nil
}

// SetActive selects a listed project.
func (s *ProjectStore) SetActive(id string) error {
	s.mu.Lock()
	if s.indexLocked(id) < 0 {
		s.mu.Unlock()
		return domain.ErrUnknownProject
	}
	changed := s.activeID != id
	s.activeID = id
	s.mu.Unlock()
	if changed {
		s.emit()
	}
	return nil
}

// Active returns a copy of the active project, or nil.
func (s *ProjectStore) Active() *domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(s.activeID); i >= 0 {
		p := s.projects[i]
		return &p
	}
	return nil
}

func (s *ProjectStore) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

func (s *ProjectStore) Projects() []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Project{}, s.projects...)
}

func (s *ProjectStore) listed(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id) >= 0
}

func (s *ProjectStore) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i, p := range s.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}
