package board

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/uramazingdanc/flowboardeai/domain"
	"github.com/uramazingdanc/flowboardeai/gateway"
	"github.com/uramazingdanc/flowboardeai/notify"
)

func memberIDs(members []domain.TeamMember) []string {
	out := []string{}
	for _, m := range members {
		out = append(out, m.ID)
	}
	return out
}

func newTeamFixture(t *testing.T) (*fakeGateway, *recordingNotifier, *TeamStore) {
	t.Helper()
	gw := newFakeGateway()
	gw.seed(t, domain.TableProjects, projectRow("p1", "owner", 1))
	for _, id := range []string{"owner", "m1", "m2", "x"} {
		gw.seed(t, domain.TableProfiles, map[string]any{"id": id, "full_name": "user " + id, "email": id + "@example.com"})
	}
	gw.seed(t, domain.TableMembers, map[string]any{"project_id": "p1", "user_id": "m2"})
	gw.seed(t, domain.TableMembers, map[string]any{"project_id": "p1", "user_id": "owner"})
	gw.seed(t, domain.TableMembers, map[string]any{"project_id": "p1", "user_id": "m1"})
	n := &recordingNotifier{}
	store := NewTeamStore(gw, n, "owner", nil)
	if err := store.Fetch(context.Background(), "p1"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	return gw, n, store
}

func TestTeamStoreFetchOwnerFirstWithoutDuplicates(t *testing.T) {
	_, n, store := newTeamFixture(t)
	members := store.Members()
	if got := memberIDs(members); !reflect.DeepEqual(got, []string{"owner", "m2", "m1"}) {
		t.Fatalf("unexpected members %v", got)
	}
	if members[0].Name != "user owner" || members[0].Role != "Member" || members[0].Online {
		t.Fatalf("unexpected member %+v", members[0])
	}
	if len(n.all()) != 0 {
		t.Fatalf("fetch should not notify")
	}
}

func TestTeamStoreFetchFailureClearsSilently(t *testing.T) {
	gw, n, store := newTeamFixture(t)
	gw.failOn("select", domain.TableMembers, errors.New("down"))
	if err := store.Fetch(context.Background(), "p1"); !errors.Is(err, domain.ErrRemote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if len(store.Members()) != 0 {
		t.Fatalf("expected empty team")
	}
	if len(n.all()) != 0 {
		t.Fatalf("team load failures are not reported to the user")
	}
}

func TestTeamStoreInvite(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr error
		level   notify.Level
		msg     string
	}{
		{name: "unknown email", email: "nobody@example.com", wantErr: domain.ErrUserNotFound, level: notify.LevelError, msg: msgUserNotFound},
		{name: "existing member", email: "m1@example.com", wantErr: domain.ErrAlreadyMember, level: notify.LevelError, msg: msgAlreadyMember},
		{name: "new member", email: " x@example.com ", level: notify.LevelSuccess, msg: msgMemberInvited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, n, store := newTeamFixture(t)
			err := store.Invite(context.Background(), tt.email)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Invite() error = %v, want %v", err, tt.wantErr)
			}
			n.expectOne(t, tt.level, tt.msg)
			rows := gw.rows(t, domain.TableMembers, gateway.Where("project_id", "p1"))
			if tt.wantErr != nil {
				if len(rows) != 3 {
					t.Fatalf("membership rows changed: %d", len(rows))
				}
				return
			}
			if len(rows) != 4 {
				t.Fatalf("membership not written: %d rows", len(rows))
			}
			if got := memberIDs(store.Members()); !reflect.DeepEqual(got, []string{"owner", "m2", "m1", "x"}) {
				t.Fatalf("team not reloaded: %v", got)
			}
		})
	}
}

func TestTeamStoreInviteWithoutProject(t *testing.T) {
	gw := newFakeGateway()
	gw.seed(t, domain.TableProfiles, map[string]any{"id": "a", "email": "a@example.com"})
	n := &recordingNotifier{}
	store := NewTeamStore(gw, n, "me", nil)

	if err := store.Invite(context.Background(), "nobody@example.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected the email to be checked first, got %v", err)
	}
	n.expectOne(t, notify.LevelError, msgUserNotFound)
	if err := store.Invite(context.Background(), "a@example.com"); !errors.Is(err, domain.ErrNoProject) {
		t.Fatalf("expected ErrNoProject, got %v", err)
	}
	n.expectOne(t, notify.LevelError, msgNoProject)
	if gw.count("insert", domain.TableMembers) != 0 {
		t.Fatalf("no membership expected without a project")
	}
}

func TestTeamStoreInviteUnreadableProfile(t *testing.T) {
	gw, n, store := newTeamFixture(t)
	gw.seed(t, domain.TableProfiles, map[string]any{"id": "bad", "email": "bad@example.com", "full_name": 42})
	err := store.Invite(context.Background(), "bad@example.com")
	if !errors.Is(err, domain.ErrRemote) || errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected a remote failure, got %v", err)
	}
	n.expectOne(t, notify.LevelError, msgInviteFailed)
	if gw.count("insert", domain.TableMembers) != 0 {
		t.Fatalf("membership written for an unreadable profile")
	}
}

func TestTeamStoreInviteEmptyEmail(t *testing.T) {
	gw, n, store := newTeamFixture(t)
	if err := store.Invite(context.Background(), "  "); !errors.Is(err, domain.ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
	if len(n.all()) != 0 || gw.count("insert", domain.TableMembers) != 0 {
		t.Fatalf("empty email should be a silent no-op")
	}
}

func TestTeamStoreRemove(t *testing.T) {
	gw, n, store := newTeamFixture(t)
	if err := store.Remove(context.Background(), "m2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	n.expectOne(t, notify.LevelSuccess, msgMemberRemoved)
	if got := memberIDs(store.Members()); !reflect.DeepEqual(got, []string{"owner", "m1"}) {
		t.Fatalf("unexpected members %v", got)
	}
	if len(gw.rows(t, domain.TableMembers, gateway.Where("user_id", "m2"))) != 0 {
		t.Fatalf("membership row remains")
	}

	if err := store.Remove(context.Background(), "m2"); !errors.Is(err, domain.ErrRemote) {
		t.Fatalf("expected failure for a missing membership, got %v", err)
	}
	n.expectOne(t, notify.LevelError, msgRemoveFailed)
}
