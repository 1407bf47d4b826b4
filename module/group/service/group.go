package service

import (
	"context"
	"strings"

	groupmodel "QTalk/module/group/model"
	"QTalk/tools/errs"
)

// Repo is the durable group collection boundary.
type Repo interface {
	Insert(ctx context.Context, g *groupmodel.Group) error
	FindByID(ctx context.Context, groupID string) (*groupmodel.Group, error)
	Save(ctx context.Context, g *groupmodel.Group) error
	FindForUser(ctx context.Context, userID string) ([]groupmodel.Group, error)
	FindMemberGroupIDs(ctx context.Context, userID string) ([]string, error)
}

// RoomJoiner subscribes a user's live connection to a group room. The
// hub implements it; nil disables live joins (tests, offline tools).
type RoomJoiner interface {
	JoinRoom(userID, groupID string)
}

// Directory owns group membership and invitation state. Invariants: the
// admin is always a member, no id is in members and pendingMembers at
// once, membership only grows.
type Directory struct {
	repo  Repo
	rooms RoomJoiner
}

func NewDirectory(repo Repo, rooms RoomJoiner) *Directory {
	return &Directory{repo: repo, rooms: rooms}
}

// Create seeds the admin into members and the invitees into
// pendingMembers. The admin cannot invite themself.
func (d *Directory) Create(ctx context.Context, name, description, adminID string, invitedIDs []string) (*groupmodel.Group, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.ErrValidation.WithDetail("group name is required")
	}

	g := &groupmodel.Group{
		Name:        strings.TrimSpace(name),
		Description: description,
		AdminID:     adminID,
		Members:     []string{adminID},
	}
	seen := map[string]bool{adminID: true}
	for _, id := range invitedIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		g.PendingMembers = append(g.PendingMembers, id)
	}

	if err := d.repo.Insert(ctx, g); err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	return g, nil
}

// Invite adds the user to pendingMembers. Already a member or already
// invited is a conflict.
func (d *Directory) Invite(ctx context.Context, groupID, userID string) error {
	g, err := d.repo.FindByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g.HasMember(userID) || g.HasPending(userID) {
		return errs.ErrConflict.WithDetail("user already invited or joined")
	}
	g.PendingMembers = append(g.PendingMembers, userID)
	if err := d.repo.Save(ctx, g); err != nil {
		return errs.ErrUpstream.WithDetail(err.Error())
	}
	return nil
}

// AcceptInvite moves the user from pendingMembers to members and joins
// their live connection, if any, to the group room.
func (d *Directory) AcceptInvite(ctx context.Context, groupID, userID string) (*groupmodel.Group, error) {
	g, err := d.repo.FindByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasPending(userID) {
		return nil, errs.ErrConflict.WithDetail("no invitation for this group")
	}
	g.PendingMembers = remove(g.PendingMembers, userID)
	g.Members = append(g.Members, userID)
	if err := d.repo.Save(ctx, g); err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	if d.rooms != nil {
		d.rooms.JoinRoom(userID, groupID)
	}
	return g, nil
}

// RejectInvite removes the user from pendingMembers. Rejecting an
// invitation that does not exist is a no-op, not an error.
func (d *Directory) RejectInvite(ctx context.Context, groupID, userID string) error {
	g, err := d.repo.FindByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !g.HasPending(userID) {
		return nil
	}
	g.PendingMembers = remove(g.PendingMembers, userID)
	if err := d.repo.Save(ctx, g); err != nil {
		return errs.ErrUpstream.WithDetail(err.Error())
	}
	return nil
}

// ListForUser returns groups the user belongs to or is invited to; the
// client distinguishes the two via the membership arrays.
func (d *Directory) ListForUser(ctx context.Context, userID string) ([]groupmodel.Group, error) {
	groups, err := d.repo.FindForUser(ctx, userID)
	if err != nil {
		return nil, errs.ErrUpstream.WithDetail(err.Error())
	}
	return groups, nil
}

// FindByID exposes the raw record; used by the conversation service for
// membership checks.
func (d *Directory) FindByID(ctx context.Context, groupID string) (*groupmodel.Group, error) {
	return d.repo.FindByID(ctx, groupID)
}

// RoomsForUser lists the room ids a new connection subscribes to.
func (d *Directory) RoomsForUser(ctx context.Context, userID string) ([]string, error) {
	return d.repo.FindMemberGroupIDs(ctx, userID)
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
