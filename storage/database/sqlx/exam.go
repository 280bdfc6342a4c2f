package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/exam"
)

const (
	testColumns = "id, title, description, type, duration, questions, instructions, total_points, pass_score, " +
		"course_id, is_published, created_by, created_at, updated_at"
	submissionColumns = "id, user_id, test_id, answers, start_time, end_time, total_score, status, time_spent, " +
		"is_passed, feedback, graded_by, created_at, updated_at"
)

type testRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Type         string         `db:"type"`
	Duration     int            `db:"duration"`
	Questions    types.JSONText `db:"questions"`
	Instructions string         `db:"instructions"`
	TotalPoints  float64        `db:"total_points"`
	PassScore    float64        `db:"pass_score"`
	CourseID     sql.NullString `db:"course_id"`
	IsPublished  bool           `db:"is_published"`
	CreatedBy    string         `db:"created_by"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func toTestRow(t exam.Test) (testRow, error) {
	questions := t.Questions
	if questions == nil {
		questions = []exam.Question{}
	}
	qs, err := toJSON(questions)
	if err != nil {
		return testRow{}, err
	}
	return testRow{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Type:         t.Type,
		Duration:     t.Duration,
		Questions:    qs,
		Instructions: t.Instructions,
		TotalPoints:  t.TotalPoints,
		PassScore:    t.PassScore,
		CourseID:     nullString(t.CourseID),
		IsPublished:  t.IsPublished,
		CreatedBy:    t.CreatedBy,
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt.UTC(),
	}, nil
}

func (row testRow) toTest() (exam.Test, error) {
	t := exam.Test{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		Type:         row.Type,
		Duration:     row.Duration,
		Instructions: row.Instructions,
		TotalPoints:  row.TotalPoints,
		PassScore:    row.PassScore,
		CourseID:     row.CourseID.String,
		IsPublished:  row.IsPublished,
		CreatedBy:    row.CreatedBy,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if err := fromJSON(row.Questions, &t.Questions); err != nil {
		return exam.Test{}, err
	}
	if t.Questions == nil {
		t.Questions = []exam.Question{}
	}
	return t, nil
}

func toTests(rows []testRow) ([]exam.Test, error) {
	tests := make([]exam.Test, 0, len(rows))
	for _, row := range rows {
		t, err := row.toTest()
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, nil
}

type submissionRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	TestID     string         `db:"test_id"`
	Answers    types.JSONText `db:"answers"`
	StartTime  time.Time      `db:"start_time"`
	EndTime    sql.NullTime   `db:"end_time"`
	TotalScore float64        `db:"total_score"`
	Status     string         `db:"status"`
	TimeSpent  int            `db:"time_spent"`
	IsPassed   bool           `db:"is_passed"`
	Feedback   string         `db:"feedback"`
	GradedBy   sql.NullString `db:"graded_by"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func toSubmissionRow(s exam.Submission) (submissionRow, error) {
	answers := s.Answers
	if answers == nil {
		answers = []exam.Answer{}
	}
	as, err := toJSON(answers)
	if err != nil {
		return submissionRow{}, err
	}
	row := submissionRow{
		ID:         s.ID,
		UserID:     s.UserID,
		TestID:     s.TestID,
		Answers:    as,
		StartTime:  s.StartTime.UTC(),
		TotalScore: s.TotalScore,
		Status:     s.Status,
		TimeSpent:  s.TimeSpent,
		IsPassed:   s.IsPassed,
		Feedback:   s.Feedback,
		GradedBy:   nullString(s.GradedBy),
		CreatedAt:  s.CreatedAt.UTC(),
		UpdatedAt:  s.UpdatedAt.UTC(),
	}
	if s.EndTime != nil {
		row.EndTime = sql.NullTime{Time: s.EndTime.UTC(), Valid: true}
	}
	return row, nil
}

func (row submissionRow) toSubmission() (exam.Submission, error) {
	s := exam.Submission{
		ID:         row.ID,
		UserID:     row.UserID,
		TestID:     row.TestID,
		StartTime:  row.StartTime.UTC(),
		TotalScore: row.TotalScore,
		Status:     row.Status,
		TimeSpent:  row.TimeSpent,
		IsPassed:   row.IsPassed,
		Feedback:   row.Feedback,
		GradedBy:   row.GradedBy.String,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
	if row.EndTime.Valid {
		end := row.EndTime.Time.UTC()
		s.EndTime = &end
	}
	if err := fromJSON(row.Answers, &s.Answers); err != nil {
		return exam.Submission{}, err
	}
	if s.Answers == nil {
		s.Answers = []exam.Answer{}
	}
	return s, nil
}

type examRepository struct {
	db core.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db core.DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) CreateTest(ctx context.Context, t exam.Test) (exam.Test, error) {
	row, err := toTestRow(t)
	if err != nil {
		return exam.Test{}, err
	}
	q := `INSERT INTO tests (` + testColumns + `) VALUES (:id, :title, :description, :type, :duration, :questions,
		:instructions, :total_points, :pass_score, :course_id, :is_published, :created_by, :created_at, :updated_at)`
	if _, err = sqlxNamedExec(ctx, repo.db, q, row); err != nil {
		return exam.Test{}, errors.Wrap(err, "inserting test")
	}
	return row.toTest()
}

func (repo *examRepository) GetTest(ctx context.Context, id string) (exam.Test, error) {
	var row testRow
	if err := getOne(ctx, repo.db, &row, psql.Select(testColumns).From("tests").Where(sq.Eq{"id": id})); err != nil {
		return exam.Test{}, trapNoRows(err, exam.ErrNotFound, "finding test")
	}
	return row.toTest()
}

func (repo *examRepository) QueryTestsByID(ctx context.Context, ids ...string) ([]exam.Test, error) {
	var rows []testRow
	q := psql.Select(testColumns).From("tests").Where(sq.Eq{"id": ids})
	if err := selectAll(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}
	return toTests(rows)
}

func (repo *examRepository) QueryTests(ctx context.Context, filter exam.Filter, page core.Pagination) ([]exam.Test, int, error) {
	where := sq.And{}
	if filter.PublishedOnly {
		where = append(where, sq.Eq{"is_published": true})
	}
	if filter.Type != "" {
		where = append(where, sq.Eq{"type": filter.Type})
	}
	if filter.CourseID != "" {
		where = append(where, sq.Eq{"course_id": filter.CourseID})
	}
	q := psql.Select(testColumns).From("tests").Where(where).OrderBy("created_at DESC", "id DESC")
	countQ := psql.Select("COUNT(*)").From("tests").Where(where)

	var rows []testRow
	total, err := selectPage(ctx, repo.db, &rows, q, countQ, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying tests")
	}
	tests, err := toTests(rows)
	return tests, total, err
}

func (repo *examRepository) UpdateTest(ctx context.Context, t exam.Test) (exam.Test, error) {
	row, err := toTestRow(t)
	if err != nil {
		return exam.Test{}, err
	}
	q := psql.Update("tests").
		SetMap(map[string]interface{}{
			"title":        row.Title,
			"description":  row.Description,
			"type":         row.Type,
			"duration":     row.Duration,
			"questions":    row.Questions,
			"instructions": row.Instructions,
			"total_points": row.TotalPoints,
			"pass_score":   row.PassScore,
			"course_id":    row.CourseID,
			"is_published": row.IsPublished,
			"updated_at":   row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID}).
		Suffix("RETURNING " + testColumns)

	query, args, err := q.ToSql()
	if err != nil {
		return exam.Test{}, errors.Wrap(err, "building query")
	}
	var updated testRow
	if err = repo.db.GetContext(ctx, &updated, query, args...); err != nil {
		return exam.Test{}, trapNoRows(err, exam.ErrNotFound, "updating test")
	}
	return updated.toTest()
}

// DeleteTest relies on the submissions.test_id foreign key to delete the submissions.
func (repo *examRepository) DeleteTest(ctx context.Context, id string) error {
	n, err := execAffected(ctx, repo.db, psql.Delete("tests").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting test")
	}
	if n == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (repo *examRepository) CountTests(ctx context.Context) (int, error) {
	var n int
	err := getOne(ctx, repo.db, &n, psql.Select("COUNT(*)").From("tests"))
	return n, errors.Wrap(err, "counting tests")
}

func (repo *examRepository) CreateSubmission(ctx context.Context, s exam.Submission) (exam.Submission, error) {
	row, err := toSubmissionRow(s)
	if err != nil {
		return exam.Submission{}, err
	}
	q := `INSERT INTO submissions (` + submissionColumns + `) VALUES (:id, :user_id, :test_id, :answers, :start_time,
		:end_time, :total_score, :status, :time_spent, :is_passed, :feedback, :graded_by, :created_at, :updated_at)`
	if _, err = sqlxNamedExec(ctx, repo.db, q, row); err != nil {
		return exam.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return row.toSubmission()
}

func (repo *examRepository) GetSubmission(ctx context.Context, id string) (exam.Submission, error) {
	var row submissionRow
	q := psql.Select(submissionColumns).From("submissions").Where(sq.Eq{"id": id})
	if err := getOne(ctx, repo.db, &row, q); err != nil {
		return exam.Submission{}, trapNoRows(err, exam.ErrSubmissionNotFound, "finding submission")
	}
	return row.toSubmission()
}

func submissionFilter(filter exam.SubmissionFilter) sq.And {
	where := sq.And{}
	if filter.TestID != "" {
		where = append(where, sq.Eq{"test_id": filter.TestID})
	}
	if filter.UserID != "" {
		where = append(where, sq.Eq{"user_id": filter.UserID})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": filter.Status})
	}
	if filter.Passed != nil {
		where = append(where, sq.Eq{"is_passed": *filter.Passed})
	}
	return where
}

func (repo *examRepository) QuerySubmissions(ctx context.Context, filter exam.SubmissionFilter) ([]exam.Submission, error) {
	var rows []submissionRow
	q := psql.Select(submissionColumns).From("submissions").
		Where(submissionFilter(filter)).
		OrderBy("created_at DESC", "id DESC")
	if err := selectAll(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	subs := make([]exam.Submission, 0, len(rows))
	for _, row := range rows {
		s, err := row.toSubmission()
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (repo *examRepository) UpdateSubmission(ctx context.Context, s exam.Submission) (exam.Submission, error) {
	row, err := toSubmissionRow(s)
	if err != nil {
		return exam.Submission{}, err
	}
	q := psql.Update("submissions").
		SetMap(map[string]interface{}{
			"answers":     row.Answers,
			"end_time":    row.EndTime,
			"total_score": row.TotalScore,
			"status":      row.Status,
			"time_spent":  row.TimeSpent,
			"is_passed":   row.IsPassed,
			"feedback":    row.Feedback,
			"graded_by":   row.GradedBy,
			"updated_at":  row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID}).
		Suffix("RETURNING " + submissionColumns)

	query, args, err := q.ToSql()
	if err != nil {
		return exam.Submission{}, errors.Wrap(err, "building query")
	}
	var updated submissionRow
	if err = repo.db.GetContext(ctx, &updated, query, args...); err != nil {
		return exam.Submission{}, trapNoRows(err, exam.ErrSubmissionNotFound, "updating submission")
	}
	return updated.toSubmission()
}

func (repo *examRepository) CountSubmissions(ctx context.Context, filter exam.SubmissionFilter) (int, error) {
	var n int
	err := getOne(ctx, repo.db, &n, psql.Select("COUNT(*)").From("submissions").Where(submissionFilter(filter)))
	return n, errors.Wrap(err, "counting submissions")
}
