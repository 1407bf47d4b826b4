package service

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	groupmodel "QTalk/module/group/model"
	"QTalk/tools/errs"
)

type fakeRepo struct {
	byID    map[string]*groupmodel.Group
	saveErr error
	saves   int
}

func newFakeRepo(groups ...*groupmodel.Group) *fakeRepo {
	f := &fakeRepo{byID: make(map[string]*groupmodel.Group)}
	for _, g := range groups {
		if g.ID.IsZero() {
			g.ID = primitive.NewObjectID()
		}
		f.byID[g.ID.Hex()] = g
	}
	return f
}

func (f *fakeRepo) Insert(_ context.Context, g *groupmodel.Group) error {
	g.ID = primitive.NewObjectID()
	f.byID[g.ID.Hex()] = g
	return nil
}

func (f *fakeRepo) FindByID(_ context.Context, groupID string) (*groupmodel.Group, error) {
	g, ok := f.byID[groupID]
	if !ok {
		return nil, errs.ErrNotFound.WithDetail("group " + groupID)
	}
	cp := *g
	cp.Members = append([]string(nil), g.Members...)
	cp.PendingMembers = append([]string(nil), g.PendingMembers...)
	return &cp, nil
}

func (f *fakeRepo) Save(_ context.Context, g *groupmodel.Group) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.byID[g.ID.Hex()] = g
	return nil
}

func (f *fakeRepo) FindForUser(_ context.Context, userID string) ([]groupmodel.Group, error) {
	var out []groupmodel.Group
	for _, g := range f.byID {
		if g.HasMember(userID) || g.HasPending(userID) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindMemberGroupIDs(_ context.Context, userID string) ([]string, error) {
	var out []string
	for id, g := range f.byID {
		if g.HasMember(userID) {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeJoiner struct {
	joins [][2]string
}

func (f *fakeJoiner) JoinRoom(userID, groupID string) {
	f.joins = append(f.joins, [2]string{userID, groupID})
}

func TestCreateSeedsAdminAndInvitees(t *testing.T) {
	repo := newFakeRepo()
	d := NewDirectory(repo, nil)

	g, err := d.Create(context.Background(), "  team  ", "desc", "alice", []string{"bob", "bob", "alice", "", "carol"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.Name != "team" {
		t.Errorf("name = %q, want trimmed", g.Name)
	}
	if len(g.Members) != 1 || g.Members[0] != "alice" {
		t.Errorf("members = %v, want only the admin", g.Members)
	}
	if len(g.PendingMembers) != 2 {
		t.Errorf("pending = %v, want deduped invitees without the admin", g.PendingMembers)
	}
}

func TestCreateRequiresName(t *testing.T) {
	d := NewDirectory(newFakeRepo(), nil)
	if _, err := d.Create(context.Background(), "   ", "", "alice", nil); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestInviteConflicts(t *testing.T) {
	g := &groupmodel.Group{Name: "team", AdminID: "alice", Members: []string{"alice"}, PendingMembers: []string{"bob"}}
	repo := newFakeRepo(g)
	d := NewDirectory(repo, nil)

	if err := d.Invite(context.Background(), g.ID.Hex(), "alice"); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("inviting a member: err = %v, want conflict", err)
	}
	if err := d.Invite(context.Background(), g.ID.Hex(), "bob"); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("re-inviting: err = %v, want conflict", err)
	}
	if err := d.Invite(context.Background(), g.ID.Hex(), "carol"); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	got, _ := repo.FindByID(context.Background(), g.ID.Hex())
	if !got.HasPending("carol") {
		t.Errorf("pending = %v, want carol added", got.PendingMembers)
	}
}

func TestAcceptInviteMovesToMembers(t *testing.T) {
	g := &groupmodel.Group{Name: "team", AdminID: "alice", Members: []string{"alice"}, PendingMembers: []string{"bob"}}
	repo := newFakeRepo(g)
	joiner := &fakeJoiner{}
	d := NewDirectory(repo, joiner)

	out, err := d.AcceptInvite(context.Background(), g.ID.Hex(), "bob")
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if !out.HasMember("bob") || out.HasPending("bob") {
		t.Errorf("after accept: members = %v pending = %v", out.Members, out.PendingMembers)
	}
	if len(joiner.joins) != 1 || joiner.joins[0] != [2]string{"bob", g.ID.Hex()} {
		t.Errorf("joins = %v, want bob joined to the group room", joiner.joins)
	}
}

func TestAcceptWithoutInviteIsConflict(t *testing.T) {
	g := &groupmodel.Group{Name: "team", AdminID: "alice", Members: []string{"alice"}}
	repo := newFakeRepo(g)
	d := NewDirectory(repo, nil)

	if _, err := d.AcceptInvite(context.Background(), g.ID.Hex(), "mallory"); !errors.Is(err, errs.ErrConflict) {
		t.Errorf("err = %v, want conflict", err)
	}
	if repo.saves != 0 {
		t.Errorf("saves = %d, state must not change on a refused accept", repo.saves)
	}
}

func TestRejectInviteIdempotent(t *testing.T) {
	g := &groupmodel.Group{Name: "team", AdminID: "alice", Members: []string{"alice"}, PendingMembers: []string{"bob"}}
	repo := newFakeRepo(g)
	d := NewDirectory(repo, nil)

	if err := d.RejectInvite(context.Background(), g.ID.Hex(), "bob"); err != nil {
		t.Fatalf("RejectInvite: %v", err)
	}
	got, _ := repo.FindByID(context.Background(), g.ID.Hex())
	if got.HasPending("bob") || got.HasMember("bob") {
		t.Errorf("after reject: members = %v pending = %v", got.Members, got.PendingMembers)
	}
	// Second reject finds nothing pending and succeeds without a write.
	saves := repo.saves
	if err := d.RejectInvite(context.Background(), g.ID.Hex(), "bob"); err != nil {
		t.Fatalf("second RejectInvite: %v", err)
	}
	if repo.saves != saves {
		t.Errorf("saves = %d, want %d (no-op)", repo.saves, saves)
	}
}

func TestAcceptInviteUnknownGroup(t *testing.T) {
	d := NewDirectory(newFakeRepo(), nil)
	if _, err := d.AcceptInvite(context.Background(), primitive.NewObjectID().Hex(), "bob"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestRoomsForUserListsMemberGroupsOnly(t *testing.T) {
	g1 := &groupmodel.Group{Name: "a", AdminID: "alice", Members: []string{"alice", "bob"}}
	g2 := &groupmodel.Group{Name: "b", AdminID: "carol", Members: []string{"carol"}, PendingMembers: []string{"bob"}}
	repo := newFakeRepo(g1, g2)
	d := NewDirectory(repo, nil)

	rooms, err := d.RoomsForUser(context.Background(), "bob")
	if err != nil {
		t.Fatalf("RoomsForUser: %v", err)
	}
	if len(rooms) != 1 || rooms[0] != g1.ID.Hex() {
		t.Errorf("rooms = %v, want only the joined group", rooms)
	}
}
