package studygroup

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

const maxJoinCodeAttempts = 5

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("Study group not found")
	ErrInvalidJoinCode  = core.NewNotFoundError("Invalid join code")
	ErrPrivate          = core.NewForbiddenError("This study group is private")
	ErrNotAuthorized    = core.NewForbiddenError("Not authorized to modify this study group")
	ErrMembersOnly      = core.NewForbiddenError("Only members can access the group messages")
	ErrAlreadyMember    = core.NewValidationError(errors.New("You are already a member of this group"))
	ErrNotMember        = core.NewValidationError(errors.New("You are not a member of this group"))
	ErrAdminCannotLeave = core.NewValidationError(errors.New("The group admin cannot leave the group"))

	// ErrJoinCodeTaken is returned by the Repository when a join code is already in use.
	ErrJoinCodeTaken = errors.New("join code already in use")
)

type (
	Repository interface {
		// CreateGroup returns ErrJoinCodeTaken if the join code is already used.
		CreateGroup(ctx context.Context, g Group) (Group, error)
		// GetGroup returns ErrNotFound if there is no Group with id.
		GetGroup(ctx context.Context, id string) (Group, error)
		// GetGroupByJoinCode returns ErrNotFound if no Group uses code.
		GetGroupByJoinCode(ctx context.Context, code string) (Group, error)
		// QueryGroups returns one page of the Groups matching filter, newest first, and the total number of matches.
		QueryGroups(ctx context.Context, filter Filter, page core.Pagination) ([]Group, int, error)
		// UpdateGroup replaces every field of g but Members and Messages.
		UpdateGroup(ctx context.Context, g Group) (Group, error)
		DeleteGroup(ctx context.Context, id string) error
		// AddMember returns ErrAlreadyMember if the user is a member already.
		AddMember(ctx context.Context, groupID, userID string) error
		// RemoveMember returns ErrNotMember if the user is not a member.
		RemoveMember(ctx context.Context, groupID, userID string) error
		AddMessage(ctx context.Context, groupID string, m Message) error
	}

	Service interface {
		Create(ctx context.Context, creator user.User, ng NewGroup) (Group, error)
		Query(ctx context.Context, requester user.User, filter Filter, page core.Pagination) ([]Group, int, error)
		Get(ctx context.Context, requester user.User, id string) (Group, error)
		Update(ctx context.Context, requester user.User, id string, ug UpdateGroup) (Group, error)
		Delete(ctx context.Context, requester user.User, id string) error
		Join(ctx context.Context, usr user.User, code string) (Group, error)
		Leave(ctx context.Context, usr user.User, id string) error
		ListMessages(ctx context.Context, requester user.User, id string) ([]Message, error)
		PostMessage(ctx context.Context, author user.User, id string, nm NewMessage) (Message, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func canManage(g Group, usr user.User) bool {
	return usr.IsAdmin() || g.IsAdmin(usr.ID)
}

func forViewer(g Group, usr user.User) Group {
	g.SetCounts()
	if g.IsMember(usr.ID) || usr.IsAdmin() {
		return g
	}
	return g.forOutsider()
}

// Create makes the creator the group admin and first member. Join code collisions are retried.
func (svc *service) Create(ctx context.Context, creator user.User, ng NewGroup) (Group, error) {
	now := core.Now()
	focusAreas := ng.FocusAreas
	if len(focusAreas) == 0 {
		focusAreas = append([]string{}, DefaultFocusAreas...)
	}
	targetScore := DefaultTargetScore
	if ng.TargetScore != nil {
		targetScore = *ng.TargetScore
	}
	g := Group{
		ID:              uuid.New().String(),
		Name:            ng.Name,
		Description:     ng.Description,
		AdminID:         creator.ID,
		Members:         []string{creator.ID},
		Messages:        []Message{},
		FocusAreas:      focusAreas,
		TargetScore:     targetScore,
		MeetingSchedule: ng.MeetingSchedule,
		IsPrivate:       ng.IsPrivate,
		Avatar:          ng.Avatar,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var err error
	for attempt := 1; attempt <= maxJoinCodeAttempts; attempt++ {
		if g.JoinCode, err = joinCodeFunc(); err != nil {
			return Group{}, errors.Wrap(err, "generating join code")
		}
		var created Group
		created, err = svc.repo.CreateGroup(ctx, g)
		if err == nil {
			created.SetCounts()
			return created, nil
		}
		if errors.Cause(err) != ErrJoinCodeTaken {
			return Group{}, errors.Wrap(err, "creating study group")
		}
	}
	return Group{}, errors.Wrapf(err, "creating study group after %d attempts", maxJoinCodeAttempts)
}

func (svc *service) Query(ctx context.Context, requester user.User, filter Filter, page core.Pagination) ([]Group, int, error) {
	filter.Clean()
	if !requester.IsAdmin() {
		filter.VisibleTo = requester.ID
	}
	page.Clean()

	groups, total, err := svc.repo.QueryGroups(ctx, filter, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying study groups")
	}
	for i := range groups {
		groups[i] = forViewer(groups[i], requester)
		groups[i].Messages = nil // listings never carry messages
	}
	return groups, total, nil
}

func (svc *service) Get(ctx context.Context, requester user.User, id string) (Group, error) {
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if g.IsPrivate && !g.IsMember(requester.ID) && !requester.IsAdmin() {
		return Group{}, ErrPrivate
	}
	return forViewer(g, requester), nil
}

func (svc *service) getManaged(ctx context.Context, requester user.User, id string) (Group, error) {
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if !canManage(g, requester) {
		return Group{}, ErrNotAuthorized
	}
	return g, nil
}

func (svc *service) Update(ctx context.Context, requester user.User, id string, ug UpdateGroup) (Group, error) {
	g, err := svc.getManaged(ctx, requester, id)
	if err != nil {
		return Group{}, err
	}

	if ug.Name != nil {
		g.Name = *ug.Name
	}
	if ug.Description != nil {
		g.Description = *ug.Description
	}
	if ug.FocusAreas != nil {
		g.FocusAreas = ug.FocusAreas
		if len(g.FocusAreas) == 0 {
			g.FocusAreas = append([]string{}, DefaultFocusAreas...)
		}
	}
	if ug.TargetScore != nil {
		g.TargetScore = *ug.TargetScore
	}
	if ug.MeetingSchedule != nil {
		g.MeetingSchedule = *ug.MeetingSchedule
	}
	if ug.IsPrivate != nil {
		g.IsPrivate = *ug.IsPrivate
	}
	if ug.Avatar != nil {
		g.Avatar = *ug.Avatar
	}
	g.UpdatedAt = core.Now()

	g, err = svc.repo.UpdateGroup(ctx, g)
	if err != nil {
		return Group{}, errors.Wrap(err, "updating study group")
	}
	return forViewer(g, requester), nil
}

func (svc *service) Delete(ctx context.Context, requester user.User, id string) error {
	if _, err := svc.getManaged(ctx, requester, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteGroup(ctx, id), "deleting study group")
}

func (svc *service) Join(ctx context.Context, usr user.User, code string) (Group, error) {
	g, err := svc.repo.GetGroupByJoinCode(ctx, normalizeJoinCode(code))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Group{}, ErrInvalidJoinCode
		}
		return Group{}, err
	}
	if g.IsMember(usr.ID) {
		return Group{}, ErrAlreadyMember
	}
	if err = svc.repo.AddMember(ctx, g.ID, usr.ID); err != nil {
		return Group{}, errors.Wrap(err, "adding member")
	}
	return svc.Get(ctx, usr, g.ID)
}

func (svc *service) Leave(ctx context.Context, usr user.User, id string) error {
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if g.IsAdmin(usr.ID) {
		return ErrAdminCannotLeave
	}
	if !g.IsMember(usr.ID) {
		return ErrNotMember
	}
	return errors.Wrap(svc.repo.RemoveMember(ctx, id, usr.ID), "removing member")
}

func (svc *service) getForMember(ctx context.Context, usr user.User, id string) (Group, error) {
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if !g.IsMember(usr.ID) && !usr.IsAdmin() {
		return Group{}, ErrMembersOnly
	}
	return g, nil
}

func (svc *service) ListMessages(ctx context.Context, requester user.User, id string) ([]Message, error) {
	g, err := svc.getForMember(ctx, requester, id)
	if err != nil {
		return nil, err
	}
	if g.Messages == nil {
		return []Message{}, nil
	}
	return g.Messages, nil
}

func (svc *service) PostMessage(ctx context.Context, author user.User, id string, nm NewMessage) (Message, error) {
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if !g.IsMember(author.ID) {
		return Message{}, ErrMembersOnly
	}

	now := core.Now()
	attachments := make([]Attachment, 0, len(nm.Attachments))
	for _, a := range nm.Attachments {
		if a.FileType == "" {
			a.FileType = "other"
		}
		attachments = append(attachments, a)
	}
	m := Message{
		ID:          uuid.New().String(),
		Content:     nm.Content,
		AuthorID:    author.ID,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = svc.repo.AddMessage(ctx, id, m); err != nil {
		return Message{}, errors.Wrap(err, "adding message")
	}
	return m, nil
}
