package forum

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("Post not found")
	ErrNotAuthorized = core.NewForbiddenError("Not authorized to modify this post")
	ErrPinForbidden  = core.NewForbiddenError("Only admins can pin posts")
)

type (
	Repository interface {
		CreatePost(ctx context.Context, p Post) (Post, error)
		// GetPost returns ErrNotFound if there is no Post with id.
		GetPost(ctx context.Context, id string) (Post, error)
		// QueryPosts returns one page of the Posts matching filter, pinned first then newest,
		// and the total number of matches.
		QueryPosts(ctx context.Context, filter Filter, page core.Pagination) ([]Post, int, error)
		UpdatePost(ctx context.Context, p Post) (Post, error)
		DeletePost(ctx context.Context, id string) error
		IncrementViews(ctx context.Context, id string) error
		AddReply(ctx context.Context, postID string, r Reply) error
		// ToggleLike adds or removes userID from the Post likes and reports whether it is now liked.
		ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	}

	Service interface {
		Query(ctx context.Context, filter Filter, page core.Pagination) ([]Post, int, error)
		// Get returns the Post and counts the view.
		Get(ctx context.Context, id string) (Post, error)
		Create(ctx context.Context, author user.User, np NewPost) (Post, error)
		Update(ctx context.Context, requester user.User, id string, up UpdatePost) (Post, error)
		Delete(ctx context.Context, requester user.User, id string) error
		ListReplies(ctx context.Context, id string) ([]Reply, error)
		AddReply(ctx context.Context, author user.User, id string, nr NewReply) (Reply, error)
		ToggleLike(ctx context.Context, usr user.User, id string) (Post, error)
		Resolve(ctx context.Context, requester user.User, id string) (Post, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func canManage(p Post, usr user.User) bool {
	return usr.IsAdmin() || p.AuthorID == usr.ID
}

func (svc *service) Query(ctx context.Context, filter Filter, page core.Pagination) ([]Post, int, error) {
	filter.Clean()
	page.Clean()
	posts, total, err := svc.repo.QueryPosts(ctx, filter, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying posts")
	}
	for i := range posts {
		posts[i].SetCounts()
	}
	return posts, total, nil
}

func (svc *service) Get(ctx context.Context, id string) (Post, error) {
	if err := svc.repo.IncrementViews(ctx, id); err != nil {
		return Post{}, err
	}
	return svc.get(ctx, id)
}

func (svc *service) get(ctx context.Context, id string) (Post, error) {
	p, err := svc.repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	p.SetCounts()
	return p, nil
}

func (svc *service) Create(ctx context.Context, author user.User, np NewPost) (Post, error) {
	now := core.Now()
	category := np.Category
	if category == "" {
		category = DefaultCategory
	}
	tags := np.Tags
	if tags == nil {
		tags = []string{}
	}
	p := Post{
		ID:        uuid.New().String(),
		Title:     np.Title,
		Content:   np.Content,
		AuthorID:  author.ID,
		Category:  category,
		Tags:      tags,
		Likes:     []string{},
		Replies:   []Reply{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	p, err := svc.repo.CreatePost(ctx, p)
	if err != nil {
		return Post{}, errors.Wrap(err, "creating post")
	}
	p.SetCounts()
	return p, nil
}

func (svc *service) getManaged(ctx context.Context, requester user.User, id string) (Post, error) {
	p, err := svc.repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if !canManage(p, requester) {
		return Post{}, ErrNotAuthorized
	}
	return p, nil
}

func (svc *service) save(ctx context.Context, p Post) (Post, error) {
	p.UpdatedAt = core.Now()
	p, err := svc.repo.UpdatePost(ctx, p)
	if err != nil {
		return Post{}, errors.Wrap(err, "updating post")
	}
	p.SetCounts()
	return p, nil
}

func (svc *service) Update(ctx context.Context, requester user.User, id string, up UpdatePost) (Post, error) {
	p, err := svc.getManaged(ctx, requester, id)
	if err != nil {
		return Post{}, err
	}
	if up.IsPinned != nil && !requester.IsAdmin() {
		return Post{}, ErrPinForbidden
	}

	if up.Title != nil {
		p.Title = *up.Title
	}
	if up.Content != nil {
		p.Content = *up.Content
	}
	if up.Category != nil {
		p.Category = *up.Category
	}
	if up.Tags != nil {
		p.Tags = up.Tags
	}
	if up.IsPinned != nil {
		p.IsPinned = *up.IsPinned
	}
	if up.changesContent() {
		p.IsEdited = true
	}
	return svc.save(ctx, p)
}

func (svc *service) Delete(ctx context.Context, requester user.User, id string) error {
	if _, err := svc.getManaged(ctx, requester, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeletePost(ctx, id), "deleting post")
}

func (svc *service) ListReplies(ctx context.Context, id string) ([]Reply, error) {
	p, err := svc.repo.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Replies, nil
}

func (svc *service) AddReply(ctx context.Context, author user.User, id string, nr NewReply) (Reply, error) {
	now := core.Now()
	r := Reply{
		ID:        uuid.New().String(),
		Content:   nr.Content,
		AuthorID:  author.ID,
		Likes:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := svc.repo.AddReply(ctx, id, r); err != nil {
		return Reply{}, errors.Wrap(err, "adding reply")
	}
	return r, nil
}

func (svc *service) ToggleLike(ctx context.Context, usr user.User, id string) (Post, error) {
	if _, err := svc.repo.ToggleLike(ctx, id, usr.ID); err != nil {
		return Post{}, errors.Wrap(err, "toggling like")
	}
	return svc.get(ctx, id)
}

func (svc *service) Resolve(ctx context.Context, requester user.User, id string) (Post, error) {
	p, err := svc.getManaged(ctx, requester, id)
	if err != nil {
		return Post{}, err
	}
	p.IsResolved = true
	p.ResolvedBy = requester.ID
	return svc.save(ctx, p)
}
