package inmemdb

import (
	"context"
	"sort"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/forum"
)

type forumRepository struct {
	db *DB
}

var _ forum.Repository = (*forumRepository)(nil) // interface compliance check

func NewForumRepository(db *DB) forum.Repository {
	return &forumRepository{db: db}
}

func (repo *forumRepository) CreatePost(_ context.Context, p forum.Post) (forum.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := clonePost(p)
	repo.db.posts[p.ID] = &stored
	return clonePost(stored), nil
}

func (repo *forumRepository) GetPost(_ context.Context, id string) (forum.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.posts[id]; ok {
		return clonePost(*p), nil
	}
	return forum.Post{}, forum.ErrNotFound
}

func matchesPost(p *forum.Post, filter forum.Filter) bool {
	if filter.Category != "" && p.Category != filter.Category {
		return false
	}
	if filter.Tag != "" && !core.ContainsString(p.Tags, filter.Tag) {
		return false
	}
	if filter.Search != "" {
		found := containsFold(p.Title, filter.Search) || containsFold(p.Content, filter.Search)
		for _, tag := range p.Tags {
			found = found || containsFold(tag, filter.Search)
		}
		return found
	}
	return true
}

func (repo *forumRepository) QueryPosts(_ context.Context, filter forum.Filter, page core.Pagination) ([]forum.Post, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]forum.Post, 0)
	for _, p := range repo.db.posts {
		if matchesPost(p, filter) {
			matches = append(matches, *p)
		}
	}
	// pinned first, then newest
	sort.SliceStable(matches, func(i, j int) bool {
		pi, pj := matches[i], matches[j]
		if pi.IsPinned != pj.IsPinned {
			return pi.IsPinned
		}
		if pi.CreatedAt.Equal(pj.CreatedAt) {
			return pi.ID > pj.ID
		}
		return pi.CreatedAt.After(pj.CreatedAt)
	})

	start, end := page.Window(len(matches))
	posts := make([]forum.Post, 0, end-start)
	for _, p := range matches[start:end] {
		posts = append(posts, clonePost(p))
	}
	return posts, len(matches), nil
}

// UpdatePost leaves Views, Likes and Replies to their dedicated operations.
func (repo *forumRepository) UpdatePost(_ context.Context, p forum.Post) (forum.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.posts[p.ID]
	if !ok {
		return forum.Post{}, forum.ErrNotFound
	}
	updated := clonePost(p)
	updated.Views = orig.Views
	updated.Likes = orig.Likes
	updated.Replies = orig.Replies
	updated.CreatedAt = orig.CreatedAt
	repo.db.posts[p.ID] = &updated
	return clonePost(updated), nil
}

func (repo *forumRepository) DeletePost(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.posts[id]; !ok {
		return forum.ErrNotFound
	}
	delete(repo.db.posts, id)
	return nil
}

func (repo *forumRepository) IncrementViews(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.posts[id]
	if !ok {
		return forum.ErrNotFound
	}
	p.Views++
	return nil
}

func (repo *forumRepository) AddReply(_ context.Context, postID string, r forum.Reply) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.posts[postID]
	if !ok {
		return forum.ErrNotFound
	}
	r.Likes = cloneStrings(r.Likes)
	p.Replies = append(p.Replies, r)
	return nil
}

func (repo *forumRepository) ToggleLike(_ context.Context, postID, userID string) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.posts[postID]
	if !ok {
		return false, forum.ErrNotFound
	}
	if core.ContainsString(p.Likes, userID) {
		p.Likes = core.RemoveString(p.Likes, userID)
		return false, nil
	}
	p.Likes = append(p.Likes, userID)
	return true, nil
}
