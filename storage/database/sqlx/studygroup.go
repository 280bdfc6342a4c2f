package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/studygroup"
)

const groupColumns = "id, name, description, admin_id, members, messages, focus_areas, target_score, " +
	"meeting_schedule, is_private, join_code, avatar, created_at, updated_at"

type groupRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Description     string         `db:"description"`
	AdminID         string         `db:"admin_id"`
	Members         pq.StringArray `db:"members"`
	Messages        types.JSONText `db:"messages"`
	FocusAreas      pq.StringArray `db:"focus_areas"`
	TargetScore     float64        `db:"target_score"`
	MeetingSchedule string         `db:"meeting_schedule"`
	IsPrivate       bool           `db:"is_private"`
	JoinCode        string         `db:"join_code"`
	Avatar          string         `db:"avatar"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func toGroupRow(g studygroup.Group) (groupRow, error) {
	messages := g.Messages
	if messages == nil {
		messages = []studygroup.Message{}
	}
	ms, err := toJSON(messages)
	if err != nil {
		return groupRow{}, err
	}
	return groupRow{
		ID:              g.ID,
		Name:            g.Name,
		Description:     g.Description,
		AdminID:         g.AdminID,
		Members:         pq.StringArray(stringSlice(g.Members)),
		Messages:        ms,
		FocusAreas:      pq.StringArray(stringSlice(g.FocusAreas)),
		TargetScore:     g.TargetScore,
		MeetingSchedule: g.MeetingSchedule,
		IsPrivate:       g.IsPrivate,
		JoinCode:        g.JoinCode,
		Avatar:          g.Avatar,
		CreatedAt:       g.CreatedAt.UTC(),
		UpdatedAt:       g.UpdatedAt.UTC(),
	}, nil
}

func (row groupRow) toGroup() (studygroup.Group, error) {
	g := studygroup.Group{
		ID:              row.ID,
		Name:            row.Name,
		Description:     row.Description,
		AdminID:         row.AdminID,
		Members:         stringSlice(row.Members),
		FocusAreas:      stringSlice(row.FocusAreas),
		TargetScore:     row.TargetScore,
		MeetingSchedule: row.MeetingSchedule,
		IsPrivate:       row.IsPrivate,
		JoinCode:        row.JoinCode,
		Avatar:          row.Avatar,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if err := fromJSON(row.Messages, &g.Messages); err != nil {
		return studygroup.Group{}, err
	}
	if g.Messages == nil {
		g.Messages = []studygroup.Message{}
	}
	return g, nil
}

type groupRepository struct {
	db core.DB
}

var _ studygroup.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db core.DB) studygroup.Repository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(ctx context.Context, g studygroup.Group) (studygroup.Group, error) {
	row, err := toGroupRow(g)
	if err != nil {
		return studygroup.Group{}, err
	}
	q := `INSERT INTO study_groups (` + groupColumns + `) VALUES (:id, :name, :description, :admin_id, :members,
		:messages, :focus_areas, :target_score, :meeting_schedule, :is_private, :join_code, :avatar, :created_at, :updated_at)`
	if _, err = sqlxNamedExec(ctx, repo.db, q, row); err != nil {
		if constraint, ok := uniqueConstraint(err); ok && constraint == "study_groups_join_code_key" {
			return studygroup.Group{}, studygroup.ErrJoinCodeTaken
		}
		return studygroup.Group{}, errors.Wrap(err, "inserting study group")
	}
	return row.toGroup()
}

func (repo *groupRepository) getBy(ctx context.Context, where sq.Eq) (studygroup.Group, error) {
	var row groupRow
	if err := getOne(ctx, repo.db, &row, psql.Select(groupColumns).From("study_groups").Where(where)); err != nil {
		return studygroup.Group{}, trapNoRows(err, studygroup.ErrNotFound, "finding study group")
	}
	return row.toGroup()
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string) (studygroup.Group, error) {
	return repo.getBy(ctx, sq.Eq{"id": id})
}

func (repo *groupRepository) GetGroupByJoinCode(ctx context.Context, code string) (studygroup.Group, error) {
	return repo.getBy(ctx, sq.Eq{"join_code": code})
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter studygroup.Filter, page core.Pagination) ([]studygroup.Group, int, error) {
	where := sq.And{}
	if filter.VisibleTo != "" {
		where = append(where, sq.Or{sq.Eq{"is_private": false}, sq.Expr("? = ANY(members)", filter.VisibleTo)})
	}
	if filter.FocusArea != "" {
		where = append(where, sq.Expr("? = ANY(focus_areas)", filter.FocusArea))
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where = append(where, sq.Or{sq.Expr("name ILIKE ?", val), sq.Expr("description ILIKE ?", val)})
	}
	q := psql.Select(groupColumns).From("study_groups").Where(where).OrderBy("created_at DESC", "id DESC")
	countQ := psql.Select("COUNT(*)").From("study_groups").Where(where)

	var rows []groupRow
	total, err := selectPage(ctx, repo.db, &rows, q, countQ, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying study groups")
	}
	groups := make([]studygroup.Group, 0, len(rows))
	for _, row := range rows {
		g, err := row.toGroup()
		if err != nil {
			return nil, 0, err
		}
		groups = append(groups, g)
	}
	return groups, total, nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, g studygroup.Group) (studygroup.Group, error) {
	row, err := toGroupRow(g)
	if err != nil {
		return studygroup.Group{}, err
	}
	q := psql.Update("study_groups").
		SetMap(map[string]interface{}{
			"name":             row.Name,
			"description":      row.Description,
			"admin_id":         row.AdminID,
			"focus_areas":      row.FocusAreas,
			"target_score":     row.TargetScore,
			"meeting_schedule": row.MeetingSchedule,
			"is_private":       row.IsPrivate,
			"avatar":           row.Avatar,
			"updated_at":       row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID}).
		Suffix("RETURNING " + groupColumns)

	query, args, err := q.ToSql()
	if err != nil {
		return studygroup.Group{}, errors.Wrap(err, "building query")
	}
	var updated groupRow
	if err = repo.db.GetContext(ctx, &updated, query, args...); err != nil {
		return studygroup.Group{}, trapNoRows(err, studygroup.ErrNotFound, "updating study group")
	}
	return updated.toGroup()
}

func (repo *groupRepository) DeleteGroup(ctx context.Context, id string) error {
	n, err := execAffected(ctx, repo.db, psql.Delete("study_groups").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting study group")
	}
	if n == 0 {
		return studygroup.ErrNotFound
	}
	return nil
}

// updateGroup runs q on the group with id. When no row matched, it returns conflictErr if the group exists.
func (repo *groupRepository) updateGroup(ctx context.Context, q sq.UpdateBuilder, id string, conflictErr error) error {
	n, err := execAffected(ctx, repo.db, q.Set("updated_at", core.Now()).Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "updating study group")
	}
	if n > 0 {
		return nil
	}
	found, err := exists(ctx, repo.db, "study_groups", id)
	if err != nil {
		return err
	}
	if !found || conflictErr == nil {
		return studygroup.ErrNotFound
	}
	return conflictErr
}

func memberQuery(userID string, member bool) sq.UpdateBuilder {
	if member {
		return psql.Update("study_groups").
			Set("members", sq.Expr("array_append(members, ?)", userID)).
			Where("NOT (? = ANY(members))", userID)
	}
	return psql.Update("study_groups").
		Set("members", sq.Expr("array_remove(members, ?)", userID)).
		Where("? = ANY(members)", userID)
}

func (repo *groupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	return repo.updateGroup(ctx, memberQuery(userID, true), groupID, studygroup.ErrAlreadyMember)
}

func (repo *groupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	return repo.updateGroup(ctx, memberQuery(userID, false), groupID, studygroup.ErrNotMember)
}

func (repo *groupRepository) AddMessage(ctx context.Context, groupID string, m studygroup.Message) error {
	msg, err := toJSON([]studygroup.Message{m})
	if err != nil {
		return err
	}
	q := psql.Update("study_groups").Set("messages", sq.Expr("messages || ?::jsonb", msg))
	return repo.updateGroup(ctx, q, groupID, nil)
}
