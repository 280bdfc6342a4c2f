package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/user"
)

const courseColumns = "id, title, description, level, skill, thumbnail, duration, lessons, instructors, students, " +
	"rating, reviews, price, is_published, created_at, updated_at"

type courseRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Level       string         `db:"level"`
	Skill       string         `db:"skill"`
	Thumbnail   string         `db:"thumbnail"`
	Duration    int            `db:"duration"`
	Lessons     types.JSONText `db:"lessons"`
	Instructors pq.StringArray `db:"instructors"`
	Students    pq.StringArray `db:"students"`
	Rating      float64        `db:"rating"`
	Reviews     types.JSONText `db:"reviews"`
	Price       float64        `db:"price"`
	IsPublished bool           `db:"is_published"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toCourseRow(c course.Course) (courseRow, error) {
	lessons, err := toJSON(nonNilLessons(c.Lessons))
	if err != nil {
		return courseRow{}, err
	}
	reviews, err := toJSON(nonNilReviews(c.Reviews))
	if err != nil {
		return courseRow{}, err
	}
	return courseRow{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Level:       c.Level,
		Skill:       c.Skill,
		Thumbnail:   c.Thumbnail,
		Duration:    c.Duration,
		Lessons:     lessons,
		Instructors: pq.StringArray(stringSlice(c.Instructors)),
		Students:    pq.StringArray(stringSlice(c.Students)),
		Rating:      c.Rating,
		Reviews:     reviews,
		Price:       c.Price,
		IsPublished: c.IsPublished,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}, nil
}

func (row courseRow) toCourse() (course.Course, error) {
	c := course.Course{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Level:       row.Level,
		Skill:       row.Skill,
		Thumbnail:   row.Thumbnail,
		Duration:    row.Duration,
		Instructors: stringSlice(row.Instructors),
		Students:    stringSlice(row.Students),
		Rating:      row.Rating,
		Price:       row.Price,
		IsPublished: row.IsPublished,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if err := fromJSON(row.Lessons, &c.Lessons); err != nil {
		return course.Course{}, err
	}
	if err := fromJSON(row.Reviews, &c.Reviews); err != nil {
		return course.Course{}, err
	}
	c.Lessons = nonNilLessons(c.Lessons)
	c.Reviews = nonNilReviews(c.Reviews)
	return c, nil
}

func nonNilLessons(ls []course.Lesson) []course.Lesson {
	if ls == nil {
		return []course.Lesson{}
	}
	return ls
}

func nonNilReviews(rs []course.Review) []course.Review {
	if rs == nil {
		return []course.Review{}
	}
	return rs
}

func toCourses(rows []courseRow) ([]course.Course, error) {
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		c, err := row.toCourse()
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, nil
}

type courseRepository struct {
	db core.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	row, err := toCourseRow(c)
	if err != nil {
		return course.Course{}, err
	}
	q := `INSERT INTO courses (` + courseColumns + `) VALUES (:id, :title, :description, :level, :skill, :thumbnail,
		:duration, :lessons, :instructors, :students, :rating, :reviews, :price, :is_published, :created_at, :updated_at)`
	if _, err = sqlxNamedExec(ctx, repo.db, q, row); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.toCourse()
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	if err := getOne(ctx, repo.db, &row, psql.Select(courseColumns).From("courses").Where(sq.Eq{"id": id})); err != nil {
		return course.Course{}, trapNoRows(err, course.ErrNotFound, "finding course")
	}
	return row.toCourse()
}

func (repo *courseRepository) QueryCoursesByID(ctx context.Context, ids ...string) ([]course.Course, error) {
	var rows []courseRow
	q := psql.Select(courseColumns).From("courses").Where(sq.Eq{"id": ids}).OrderBy("created_at DESC")
	if err := selectAll(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return toCourses(rows)
}

func courseFilter(filter course.Filter) sq.And {
	where := sq.And{}
	if filter.PublishedOnly {
		where = append(where, sq.Eq{"is_published": true})
	}
	if filter.Level != "" {
		where = append(where, sq.Eq{"level": filter.Level})
	}
	if filter.Skill != "" {
		where = append(where, sq.Eq{"skill": filter.Skill})
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where = append(where, sq.Or{sq.Expr("title ILIKE ?", val), sq.Expr("description ILIKE ?", val)})
	}
	return where
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.Filter, page core.Pagination) ([]course.Course, int, error) {
	where := courseFilter(filter)
	q := psql.Select(courseColumns).From("courses").Where(where).OrderBy("created_at DESC", "id DESC")
	countQ := psql.Select("COUNT(*)").From("courses").Where(where)

	var rows []courseRow
	total, err := selectPage(ctx, repo.db, &rows, q, countQ, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying courses")
	}
	courses, err := toCourses(rows)
	return courses, total, err
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	row, err := toCourseRow(c)
	if err != nil {
		return course.Course{}, err
	}
	q := psql.Update("courses").
		SetMap(map[string]interface{}{
			"title":        row.Title,
			"description":  row.Description,
			"level":        row.Level,
			"skill":        row.Skill,
			"thumbnail":    row.Thumbnail,
			"duration":     row.Duration,
			"lessons":      row.Lessons,
			"instructors":  row.Instructors,
			"rating":       row.Rating,
			"reviews":      row.Reviews,
			"price":        row.Price,
			"is_published": row.IsPublished,
			"updated_at":   row.UpdatedAt,
		}).
		Where(sq.Eq{"id": row.ID}).
		Suffix("RETURNING " + courseColumns)

	query, args, err := q.ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building query")
	}
	var updated courseRow
	if err = repo.db.GetContext(ctx, &updated, query, args...); err != nil {
		return course.Course{}, trapNoRows(err, course.ErrNotFound, "updating course")
	}
	return updated.toCourse()
}

// unenrollAllQuery removes the course from every user's enrolled courses.
func unenrollAllQuery(courseID string) sq.UpdateBuilder {
	return psql.Update("users").
		Set("enrolled_courses", sq.Expr("array_remove(enrolled_courses, ?)", courseID)).
		Where("? = ANY(enrolled_courses)", courseID)
}

// DeleteCourse relies on the tests.course_id foreign key to detach the course's tests.
func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	return core.InTx(ctx, repo.db, func(tx core.DBTransactor) error {
		n, err := execAffected(ctx, tx, psql.Delete("courses").Where(sq.Eq{"id": id}))
		if err != nil {
			return errors.Wrap(err, "deleting course")
		}
		if n == 0 {
			return course.ErrNotFound
		}
		_, err = execAffected(ctx, tx, unenrollAllQuery(id))
		return errors.Wrap(err, "removing enrollments")
	})
}

// studentQueries returns the two sides of an enrollment change. The course side only matches when
// the change is effective, so zero affected rows means a conflict or a missing course.
func studentQueries(courseID, userID string, enrolled bool, now time.Time) (students, users sq.UpdateBuilder) {
	students = psql.Update("courses")
	users = psql.Update("users")
	if enrolled {
		students = students.Set("students", sq.Expr("array_append(students, ?)", userID)).
			Where(sq.Eq{"id": courseID}).
			Where("NOT (? = ANY(students))", userID)
		users = users.Set("enrolled_courses", sq.Expr("array_append(enrolled_courses, ?)", courseID)).
			Where(sq.Eq{"id": userID}).
			Where("NOT (? = ANY(enrolled_courses))", courseID)
	} else {
		students = students.Set("students", sq.Expr("array_remove(students, ?)", userID)).
			Where(sq.Eq{"id": courseID}).
			Where("? = ANY(students)", userID)
		users = users.Set("enrolled_courses", sq.Expr("array_remove(enrolled_courses, ?)", courseID)).
			Where(sq.Eq{"id": userID})
	}
	return students.Set("updated_at", now), users
}

// setStudent adds or removes userID from the course students and the course from the user's enrolled courses.
func (repo *courseRepository) setStudent(ctx context.Context, courseID, userID string, enrolled bool) error {
	conflictErr := course.ErrNotEnrolled
	if enrolled {
		conflictErr = course.ErrAlreadyEnrolled
	}
	studentsQ, usersQ := studentQueries(courseID, userID, enrolled, core.Now())

	return core.InTx(ctx, repo.db, func(tx core.DBTransactor) error {
		n, err := execAffected(ctx, tx, studentsQ)
		if err != nil {
			return errors.Wrap(err, "updating course students")
		}
		if n == 0 {
			found, err := exists(ctx, tx, "courses", courseID)
			if err != nil {
				return err
			}
			if !found {
				return course.ErrNotFound
			}
			return conflictErr
		}

		if _, err = execAffected(ctx, tx, usersQ); err != nil {
			return errors.Wrap(err, "updating enrolled courses")
		}
		found, err := exists(ctx, tx, "users", userID)
		if err != nil {
			return err
		}
		if !found {
			return user.ErrNotFound
		}
		return nil
	})
}

func (repo *courseRepository) Enroll(ctx context.Context, courseID, userID string) error {
	return repo.setStudent(ctx, courseID, userID, true)
}

func (repo *courseRepository) Leave(ctx context.Context, courseID, userID string) error {
	return repo.setStudent(ctx, courseID, userID, false)
}

func completeLessonQuery(userID, lessonID string) sq.UpdateBuilder {
	return psql.Update("users").
		Set("completed_lessons", sq.Expr("array_append(completed_lessons, ?)", lessonID)).
		Where(sq.Eq{"id": userID}).
		Where("NOT (? = ANY(completed_lessons))", lessonID)
}

func (repo *courseRepository) CompleteLesson(ctx context.Context, userID, lessonID string) error {
	n, err := execAffected(ctx, repo.db, completeLessonQuery(userID, lessonID))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	if n == 0 {
		found, err := exists(ctx, repo.db, "users", userID)
		if err != nil {
			return err
		}
		if !found {
			return user.ErrNotFound
		}
	}
	return nil
}

func (repo *courseRepository) CountCourses(ctx context.Context, publishedOnly bool) (int, error) {
	q := psql.Select("COUNT(*)").From("courses")
	if publishedOnly {
		q = q.Where(sq.Eq{"is_published": true})
	}
	var n int
	err := getOne(ctx, repo.db, &n, q)
	return n, errors.Wrap(err, "counting courses")
}
