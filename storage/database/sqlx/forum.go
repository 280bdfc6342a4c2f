package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/forum"
)

const postColumns = "id, title, content, author_id, category, tags, likes, views, replies, is_edited, is_pinned, " +
	"is_resolved, resolved_by, created_at, updated_at"

type postRow struct {
	ID         string         `db:"id"`
	Title      string         `db:"title"`
	Content    string         `db:"content"`
	AuthorID   string         `db:"author_id"`
	Category   string         `db:"category"`
	Tags       pq.StringArray `db:"tags"`
	Likes      pq.StringArray `db:"likes"`
	Views      int            `db:"views"`
	Replies    types.JSONText `db:"replies"`
	IsEdited   bool           `db:"is_edited"`
	IsPinned   bool           `db:"is_pinned"`
	IsResolved bool           `db:"is_resolved"`
	ResolvedBy sql.NullString `db:"resolved_by"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func toPostRow(p forum.Post) (postRow, error) {
	replies := p.Replies
	if replies == nil {
		replies = []forum.Reply{}
	}
	rs, err := toJSON(replies)
	if err != nil {
		return postRow{}, err
	}
	return postRow{
		ID:         p.ID,
		Title:      p.Title,
		Content:    p.Content,
		AuthorID:   p.AuthorID,
		Category:   p.Category,
		Tags:       pq.StringArray(stringSlice(p.Tags)),
		Likes:      pq.StringArray(stringSlice(p.Likes)),
		Views:      p.Views,
		Replies:    rs,
		IsEdited:   p.IsEdited,
		IsPinned:   p.IsPinned,
		IsResolved: p.IsResolved,
		ResolvedBy: nullString(p.ResolvedBy),
		CreatedAt:  p.CreatedAt.UTC(),
		UpdatedAt:  p.UpdatedAt.UTC(),
	}, nil
}

func (row postRow) toPost() (forum.Post, error) {
	p := forum.Post{
		ID:         row.ID,
		Title:      row.Title,
		Content:    row.Content,
		AuthorID:   row.AuthorID,
		Category:   row.Category,
		Tags:       stringSlice(row.Tags),
		Likes:      stringSlice(row.Likes),
		Views:      row.Views,
		IsEdited:   row.IsEdited,
		IsPinned:   row.IsPinned,
		IsResolved: row.IsResolved,
		ResolvedBy: row.ResolvedBy.String,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
	if err := fromJSON(row.Replies, &p.Replies); err != nil {
		return forum.Post{}, err
	}
	if p.Replies == nil {
		p.Replies = []forum.Reply{}
	}
	return p, nil
}

type forumRepository struct {
	db core.DB
}

var _ forum.Repository = (*forumRepository)(nil) // interface compliance check

func NewForumRepository(db core.DB) forum.Repository {
	return &forumRepository{db: db}
}

func (repo *forumRepository) CreatePost(ctx context.Context, p forum.Post) (forum.Post, error) {
	row, err := toPostRow(p)
	if err != nil {
		return forum.Post{}, err
	}
	q := `INSERT INTO forum_posts (` + postColumns + `) VALUES (:id, :title, :content, :author_id, :category, :tags,
		:likes, :views, :replies, :is_edited, :is_pinned, :is_resolved, :resolved_by, :created_at, :updated_at)`
	if _, err = sqlxNamedExec(ctx, repo.db, q, row); err != nil {
		return forum.Post{}, errors.Wrap(err, "inserting post")
	}
	return row.toPost()
}

func (repo *forumRepository) GetPost(ctx context.Context, id string) (forum.Post, error) {
	var row postRow
	if err := getOne(ctx, repo.db, &row, psql.Select(postColumns).From("forum_posts").Where(sq.Eq{"id": id})); err != nil {
		return forum.Post{}, trapNoRows(err, forum.ErrNotFound, "finding post")
	}
	return row.toPost()
}

func (repo *forumRepository) QueryPosts(ctx context.Context, filter forum.Filter, page core.Pagination) ([]forum.Post, int, error) {
	where := sq.And{}
	if filter.Category != "" {
		where = append(where, sq.Eq{"category": filter.Category})
	}
	if filter.Tag != "" {
		where = append(where, sq.Expr("? = ANY(tags)", filter.Tag))
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where = append(where, sq.Or{
			sq.Expr("title ILIKE ?", val),
			sq.Expr("content ILIKE ?", val),
			sq.Expr("EXISTS (SELECT 1 FROM unnest(tags) tag WHERE tag ILIKE ?)", val),
		})
	}
	q := psql.Select(postColumns).From("forum_posts").Where(where).OrderBy("is_pinned DESC", "created_at DESC", "id DESC")
	countQ := psql.Select("COUNT(*)").From("forum_posts").Where(where)

	var rows []postRow
	total, err := selectPage(ctx, repo.db, &rows, q, countQ, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying posts")
	}
	posts := make([]forum.Post, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPost()
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, p)
	}
	return posts, total, nil
}

// UpdatePost leaves views, likes and replies to their dedicated operations.
func (repo *forumRepository) UpdatePost(ctx context.Context, p forum.Post) (forum.Post, error) {
	row, err := toPostRow(p)
	if err != nil {
		return forum.Post{}, err
	}
	q := psql.Update("forum_posts").
		SetMap(map[string]interface{}{
			"title":       row.Title,
			"content":     row.Content,
			"category":    row.Category,
			"tags":        row.Tags,
			"is_edited":   row.IsEdited,
			"is_pinned":   row.IsPinned,
			"is_resolved": row.IsResolved,
			"resolved_by": row.ResolvedBy,
			"updated_at":  row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID}).
		Suffix("RETURNING " + postColumns)

	query, args, err := q.ToSql()
	if err != nil {
		return forum.Post{}, errors.Wrap(err, "building query")
	}
	var updated postRow
	if err = repo.db.GetContext(ctx, &updated, query, args...); err != nil {
		return forum.Post{}, trapNoRows(err, forum.ErrNotFound, "updating post")
	}
	return updated.toPost()
}

// execOnPost runs q against the post with id and reports ErrNotFound when nothing was touched.
func (repo *forumRepository) execOnPost(ctx context.Context, q sq.UpdateBuilder, id, msg string) error {
	n, err := execAffected(ctx, repo.db, q.Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return forum.ErrNotFound
	}
	return nil
}

func (repo *forumRepository) DeletePost(ctx context.Context, id string) error {
	n, err := execAffected(ctx, repo.db, psql.Delete("forum_posts").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting post")
	}
	if n == 0 {
		return forum.ErrNotFound
	}
	return nil
}

func (repo *forumRepository) IncrementViews(ctx context.Context, id string) error {
	return repo.execOnPost(ctx, psql.Update("forum_posts").Set("views", sq.Expr("views + 1")), id, "incrementing views")
}

func (repo *forumRepository) AddReply(ctx context.Context, postID string, r forum.Reply) error {
	reply, err := toJSON([]forum.Reply{r})
	if err != nil {
		return err
	}
	q := psql.Update("forum_posts").
		Set("replies", sq.Expr("replies || ?::jsonb", reply)).
		Set("updated_at", core.Now())
	return repo.execOnPost(ctx, q, postID, "adding reply")
}

// toggleLikeQuery flips userID in the post likes and returns whether the user now likes the post.
func toggleLikeQuery(postID, userID string) sq.UpdateBuilder {
	return psql.Update("forum_posts").
		Set("likes", sq.Expr("CASE WHEN ? = ANY(likes) THEN array_remove(likes, ?) ELSE array_append(likes, ?) END",
			userID, userID, userID)).
		Where(sq.Eq{"id": postID}).
		Suffix("RETURNING ? = ANY(likes)", userID)
}

func (repo *forumRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	query, args, err := toggleLikeQuery(postID, userID).ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	var liked bool
	if err = repo.db.GetContext(ctx, &liked, query, args...); err != nil {
		return false, trapNoRows(err, forum.ErrNotFound, "toggling like")
	}
	return liked, nil
}
