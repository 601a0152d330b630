package board

import (
	"context"
	"errors"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/uramazingdanc/flowboardeai/domain"
	"github.com/uramazingdanc/flowboardeai/gateway"
	"github.com/uramazingdanc/flowboardeai/notify"
)

// TeamStore resolves the owner and members of a project into team members.
type TeamStore struct {
	gw       gateway.Gateway
	notifier notify.Notifier
	userID   string
	changed  func()

	mu        sync.RWMutex
	projectID string
	fetchSeq  uint64
	members   []domain.TeamMember
}

// NewTeamStore creates the team store of userID. changed is called after
// every change of the member list.
func NewTeamStore(gw gateway.Gateway, n notify.Notifier, userID string, changed func()) *TeamStore {
	return &TeamStore{gw: gw, notifier: n, userID: userID, changed: changed, members: []domain.TeamMember{}}
}

// set stores the members loaded under seq. Results of superseded loads are
// dropped.
func (s *TeamStore) set(seq uint64, members []domain.TeamMember) {
	s.mu.Lock()
	if seq != s.fetchSeq {
		s.mu.Unlock()
		return
	}
	s.members = members
	s.mu.Unlock()
	if s.changed != nil {
		s.changed()
	}
}

// Fetch makes projectID the current project and loads its team. An empty
// projectID yields no members.
func (s *TeamStore) Fetch(ctx context.Context, projectID string) error {
	s.mu.Lock()
	s.projectID = projectID
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	if projectID == "" {
		s.set(seq, []domain.TeamMember{})
		return nil
	}
	members, err := s.load(ctx, projectID)
	if err != nil {
		log.WithError(err).WithField("project", projectID).Error("fetch team members")
		s.set(seq, []domain.TeamMember{})
		return remoteErr(err)
	}
	s.set(seq, members)
	return nil
}

// reload refreshes the members of projectID while it is still the current
// project. A failed reload keeps the current members.
func (s *TeamStore) reload(ctx context.Context, projectID string) {
	s.mu.RLock()
	current, seq := s.projectID, s.fetchSeq
	s.mu.RUnlock()
	if current != projectID {
		return
	}
	members, err := s.load(ctx, projectID)
	if err != nil {
		log.WithError(err).WithField("project", projectID).Warn("reload team after invite")
		return
	}
	s.set(seq, members)
}

func (s *TeamStore) load(ctx context.Context, projectID string) ([]domain.TeamMember, error) {
	rawProjects, err := s.gw.Select(ctx, domain.TableProjects, gateway.Where("id", projectID))
	if err != nil {
		return nil, err
	}
	projects, err := decodeRows[domain.ProjectRow](rawProjects)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, gateway.ErrNotFound
	}
	rawMembers, err := s.gw.Select(ctx, domain.TableMembers, gateway.Where("project_id", projectID))
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[domain.MemberRow](rawMembers)
	if err != nil {
		return nil, err
	}
	ids := []string{projects[0].OwnerID}
	seen := map[string]bool{projects[0].OwnerID: true}
	for _, m := range rows {
		if !seen[m.UserID] {
			seen[m.UserID] = true
			ids = append(ids, m.UserID)
		}
	}
	rawProfiles, err := s.gw.Select(ctx, domain.TableProfiles, gateway.In("id", ids))
	if err != nil {
		return nil, err
	}
	profiles, err := decodeRows[domain.ProfileRow](rawProfiles)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.ProfileRow, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	members := make([]domain.TeamMember, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			members = append(members, domain.MemberFromProfile(p))
		}
	}
	return members, nil
}

// Invite adds the user registered under email to the current project and
// reloads the team. The email is looked up before the project is checked. An
// empty email is ignored.
func (s *TeamStore) Invite(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.ErrInvalidArgs
	}
	projectID := s.ProjectID()
	raw, err := s.gw.Select(ctx, domain.TableProfiles, gateway.Where("email", email))
	var profiles []domain.ProfileRow
	if err == nil {
		profiles, err = decodeRows[domain.ProfileRow](raw)
	}
	switch {
	case err != nil:
		log.WithError(err).Error("look up invitee")
		s.notifier.Error(s.userID, msgInviteFailed)
		return remoteErr(err)
	case len(profiles) == 0:
		s.notifier.Error(s.userID, msgUserNotFound)
		return domain.ErrUserNotFound
	case projectID == "":
		s.notifier.Error(s.userID, msgNoProject)
		return domain.ErrNoProject
	}
	_, err = s.gw.Insert(ctx, domain.TableMembers, domain.Row{"project_id": projectID, "user_id": profiles[0].ID})
	switch {
	case errors.Is(err, gateway.ErrConflict):
		s.notifier.Error(s.userID, msgAlreadyMember)
		return domain.ErrAlreadyMember
	case err != nil:
		log.WithError(err).WithField("project", projectID).Error("invite member")
		s.notifier.Error(s.userID, msgInviteFailed)
		return remoteErr(err)
	}
	s.notifier.Success(s.userID, msgMemberInvited)
	s.reload(ctx, projectID)
	return nil
}

// Remove deletes the membership of userID and drops the member locally.
func (s *TeamStore) Remove(ctx context.Context, userID string) error {
	projectID := s.ProjectID()
	if projectID == "" {
		s.notifier.Error(s.userID, msgNoProject)
		return domain.ErrNoProject
	}
	if err := s.gw.Delete(ctx, domain.TableMembers, gateway.Where("project_id", projectID).And("user_id", userID)); err != nil {
		log.WithError(err).WithFields(log.Fields{"project": projectID, "member": userID}).Error("remove member")
		s.notifier.Error(s.userID, msgRemoveFailed)
		return remoteErr(err)
	}
	s.mu.Lock()
	current := s.projectID == projectID
	if current {
		next := make([]domain.TeamMember, 0, len(s.members))
		for _, m := range s.members {
			if m.ID != userID {
				next = append(next, m)
			}
		}
		s.members = next
	}
	s.mu.Unlock()
	s.notifier.Success(s.userID, msgMemberRemoved)
	if current && s.changed != nil {
		s.changed()
	}
	return nil
}

func (s *TeamStore) Members() []domain.TeamMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TeamMember{}, s.members...)
}

func (s *TeamStore) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}
