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
	"github.com/youpass/youpass/core/user"
)

const userColumns = "id, name, email, password_hash, google_id, role, avatar, study_goals, enrolled_courses, " +
	"completed_lessons, last_login, created_at, updated_at"

type userRow struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	Email            string         `db:"email"`
	PasswordHash     []byte         `db:"password_hash"`
	GoogleID         sql.NullString `db:"google_id"`
	Role             string         `db:"role"`
	Avatar           string         `db:"avatar"`
	StudyGoals       types.JSONText `db:"study_goals"`
	EnrolledCourses  pq.StringArray `db:"enrolled_courses"`
	CompletedLessons pq.StringArray `db:"completed_lessons"`
	LastLogin        sql.NullTime   `db:"last_login"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func toUserRow(usr user.User) (userRow, error) {
	goals, err := toJSON(usr.StudyGoals)
	if err != nil {
		return userRow{}, err
	}
	return userRow{
		ID:               usr.ID,
		Name:             usr.Name,
		Email:            usr.Email,
		PasswordHash:     usr.PasswordHash,
		GoogleID:         nullString(usr.GoogleID),
		Role:             usr.Role,
		Avatar:           usr.Avatar,
		StudyGoals:       goals,
		EnrolledCourses:  pq.StringArray(stringSlice(usr.EnrolledCourses)),
		CompletedLessons: pq.StringArray(stringSlice(usr.CompletedLessons)),
		LastLogin:        sql.NullTime{Time: usr.LastLogin.UTC(), Valid: !usr.LastLogin.IsZero()},
		CreatedAt:        usr.CreatedAt.UTC(),
		UpdatedAt:        usr.UpdatedAt.UTC(),
	}, nil
}

func (row userRow) toUser() (user.User, error) {
	usr := user.User{
		ID:               row.ID,
		Name:             row.Name,
		Email:            row.Email,
		PasswordHash:     row.PasswordHash,
		GoogleID:         row.GoogleID.String,
		Role:             row.Role,
		Avatar:           row.Avatar,
		EnrolledCourses:  stringSlice(row.EnrolledCourses),
		CompletedLessons: stringSlice(row.CompletedLessons),
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	if err := fromJSON(row.StudyGoals, &usr.StudyGoals); err != nil {
		return user.User{}, err
	}
	if usr.StudyGoals.FocusAreas == nil {
		usr.StudyGoals.FocusAreas = []string{}
	}
	return usr, nil
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

// trapUniqueErr maps unique violations to the user errors.
func (repo *userRepository) trapUniqueErr(err error, msg string) error {
	if constraint, ok := uniqueConstraint(err); ok {
		if constraint == "users_google_id_key" {
			return user.ErrGoogleIDExists
		}
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row, err := toUserRow(usr)
	if err != nil {
		return user.User{}, err
	}
	q := `INSERT INTO users (` + userColumns + `) VALUES (:id, :name, :email, :password_hash, :google_id, :role, :avatar,
		:study_goals, :enrolled_courses, :completed_lessons, :last_login, :created_at, :updated_at)`
	if _, err = sqlxNamedExec(ctx, repo.db, q, row); err != nil {
		return user.User{}, repo.trapUniqueErr(err, "inserting user")
	}
	return row.toUser()
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	where := sq.Eq{}
	if filter.ID != "" {
		where["id"] = filter.ID
	}
	if filter.Email != "" {
		where["email"] = filter.Email
	}
	if filter.GoogleID != "" {
		where["google_id"] = filter.GoogleID
	}
	if len(where) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := getOne(ctx, repo.db, &row, psql.Select(userColumns).From("users").Where(where).Limit(1)); err != nil {
		return user.User{}, trapNoRows(err, user.ErrNotFound, "finding user")
	}
	return row.toUser()
}

func (repo *userRepository) QueryUsersByID(ctx context.Context, ids ...string) ([]user.User, error) {
	var rows []userRow
	q := psql.Select(userColumns).From("users").Where(sq.Eq{"id": ids}).OrderBy("created_at DESC")
	if err := selectAll(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		usr, err := row.toUser()
		if err != nil {
			return nil, err
		}
		users = append(users, usr)
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row, err := toUserRow(usr)
	if err != nil {
		return user.User{}, err
	}
	q := psql.Update("users").
		SetMap(map[string]interface{}{
			"name":          row.Name,
			"email":         row.Email,
			"password_hash": row.PasswordHash,
			"google_id":     row.GoogleID,
			"role":          row.Role,
			"avatar":        row.Avatar,
			"study_goals":   row.StudyGoals,
			"last_login":    row.LastLogin,
			"updated_at":    row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID}).
		Suffix("RETURNING " + userColumns)

	query, args, err := q.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var updated userRow
	if err = repo.db.GetContext(ctx, &updated, query, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, repo.trapUniqueErr(err, "updating user")
	}
	return updated.toUser()
}

func (repo *userRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := getOne(ctx, repo.db, &n, psql.Select("COUNT(*)").From("users"))
	return n, errors.Wrap(err, "counting users")
}
