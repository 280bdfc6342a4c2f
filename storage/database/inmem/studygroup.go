package inmemdb

import (
	"context"
	"time"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/studygroup"
)

type groupRepository struct {
	db *DB
}

var _ studygroup.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) studygroup.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(_ context.Context, g studygroup.Group) (studygroup.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.groups {
		if other.JoinCode == g.JoinCode {
			return studygroup.Group{}, studygroup.ErrJoinCodeTaken
		}
	}
	stored := cloneGroup(g)
	repo.db.groups[g.ID] = &stored
	return cloneGroup(stored), nil
}

func (repo *groupRepository) GetGroup(_ context.Context, id string) (studygroup.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if g, ok := repo.db.groups[id]; ok {
		return cloneGroup(*g), nil
	}
	return studygroup.Group{}, studygroup.ErrNotFound
}

func (repo *groupRepository) GetGroupByJoinCode(_ context.Context, code string) (studygroup.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, g := range repo.db.groups {
		if g.JoinCode == code {
			return cloneGroup(*g), nil
		}
	}
	return studygroup.Group{}, studygroup.ErrNotFound
}

func matchesGroup(g *studygroup.Group, filter studygroup.Filter) bool {
	if filter.VisibleTo != "" && g.IsPrivate && !g.IsMember(filter.VisibleTo) {
		return false
	}
	if filter.FocusArea != "" && !core.ContainsString(g.FocusAreas, filter.FocusArea) {
		return false
	}
	if filter.Search != "" && !containsFold(g.Name, filter.Search) && !containsFold(g.Description, filter.Search) {
		return false
	}
	return true
}

func (repo *groupRepository) QueryGroups(_ context.Context, filter studygroup.Filter, page core.Pagination) ([]studygroup.Group, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]studygroup.Group, 0)
	for _, g := range repo.db.groups {
		if matchesGroup(g, filter) {
			matches = append(matches, *g)
		}
	}
	sortNewestFirst(matches,
		func(i int) time.Time { return matches[i].CreatedAt },
		func(i int) string { return matches[i].ID })

	start, end := page.Window(len(matches))
	groups := make([]studygroup.Group, 0, end-start)
	for _, g := range matches[start:end] {
		groups = append(groups, cloneGroup(g))
	}
	return groups, len(matches), nil
}

func (repo *groupRepository) UpdateGroup(_ context.Context, g studygroup.Group) (studygroup.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.groups[g.ID]
	if !ok {
		return studygroup.Group{}, studygroup.ErrNotFound
	}
	updated := cloneGroup(g)
	updated.Members = orig.Members
	updated.Messages = orig.Messages
	updated.JoinCode = orig.JoinCode
	updated.CreatedAt = orig.CreatedAt
	repo.db.groups[g.ID] = &updated
	return cloneGroup(updated), nil
}

func (repo *groupRepository) DeleteGroup(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.groups[id]; !ok {
		return studygroup.ErrNotFound
	}
	delete(repo.db.groups, id)
	return nil
}

func (repo *groupRepository) AddMember(_ context.Context, groupID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	g, ok := repo.db.groups[groupID]
	if !ok {
		return studygroup.ErrNotFound
	}
	if g.IsMember(userID) {
		return studygroup.ErrAlreadyMember
	}
	g.Members = append(g.Members, userID)
	g.UpdatedAt = core.Now()
	return nil
}

func (repo *groupRepository) RemoveMember(_ context.Context, groupID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	g, ok := repo.db.groups[groupID]
	if !ok {
		return studygroup.ErrNotFound
	}
	if !g.IsMember(userID) {
		return studygroup.ErrNotMember
	}
	g.Members = core.RemoveString(g.Members, userID)
	g.UpdatedAt = core.Now()
	return nil
}

func (repo *groupRepository) AddMessage(_ context.Context, groupID string, m studygroup.Message) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	g, ok := repo.db.groups[groupID]
	if !ok {
		return studygroup.ErrNotFound
	}
	m.Attachments = append([]studygroup.Attachment{}, m.Attachments...)
	g.Messages = append(g.Messages, m)
	g.UpdatedAt = core.Now()
	return nil
}
