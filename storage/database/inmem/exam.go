package inmemdb

import (
	"context"
	"time"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/exam"
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) CreateTest(_ context.Context, t exam.Test) (exam.Test, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := cloneTest(t)
	repo.db.tests[t.ID] = &stored
	return cloneTest(stored), nil
}

func (repo *examRepository) GetTest(_ context.Context, id string) (exam.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tests[id]; ok {
		return cloneTest(*t), nil
	}
	return exam.Test{}, exam.ErrNotFound
}

func (repo *examRepository) QueryTestsByID(_ context.Context, ids ...string) ([]exam.Test, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tests := make([]exam.Test, 0, len(ids))
	for _, id := range ids {
		if t, ok := repo.db.tests[id]; ok {
			tests = append(tests, cloneTest(*t))
		}
	}
	return tests, nil
}

func (repo *examRepository) QueryTests(_ context.Context, filter exam.Filter, page core.Pagination) ([]exam.Test, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matches := make([]exam.Test, 0)
	for _, t := range repo.db.tests {
		if filter.PublishedOnly && !t.IsPublished {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.CourseID != "" && t.CourseID != filter.CourseID {
			continue
		}
		matches = append(matches, *t)
	}
	sortNewestFirst(matches,
		func(i int) time.Time { return matches[i].CreatedAt },
		func(i int) string { return matches[i].ID })

	start, end := page.Window(len(matches))
	tests := make([]exam.Test, 0, end-start)
	for _, t := range matches[start:end] {
		tests = append(tests, cloneTest(t))
	}
	return tests, len(matches), nil
}

func (repo *examRepository) UpdateTest(_ context.Context, t exam.Test) (exam.Test, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.tests[t.ID]
	if !ok {
		return exam.Test{}, exam.ErrNotFound
	}
	updated := cloneTest(t)
	updated.CreatedAt = orig.CreatedAt
	repo.db.tests[t.ID] = &updated
	return cloneTest(updated), nil
}

func (repo *examRepository) DeleteTest(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tests[id]; !ok {
		return exam.ErrNotFound
	}
	delete(repo.db.tests, id)
	for sid, s := range repo.db.submissions {
		if s.TestID == id {
			delete(repo.db.submissions, sid)
		}
	}
	return nil
}

func (repo *examRepository) CountTests(_ context.Context) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.tests), nil
}

func (repo *examRepository) CreateSubmission(_ context.Context, s exam.Submission) (exam.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.tests[s.TestID]; !ok {
		return exam.Submission{}, exam.ErrNotFound
	}
	stored := cloneSubmission(s)
	repo.db.submissions[s.ID] = &stored
	return cloneSubmission(stored), nil
}

func (repo *examRepository) GetSubmission(_ context.Context, id string) (exam.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return cloneSubmission(*s), nil
	}
	return exam.Submission{}, exam.ErrSubmissionNotFound
}

func matchesSubmission(s *exam.Submission, filter exam.SubmissionFilter) bool {
	return (filter.TestID == "" || s.TestID == filter.TestID) &&
		(filter.UserID == "" || s.UserID == filter.UserID) &&
		(filter.Status == "" || s.Status == filter.Status) &&
		(filter.Passed == nil || s.IsPassed == *filter.Passed)
}

func (repo *examRepository) QuerySubmissions(_ context.Context, filter exam.SubmissionFilter) ([]exam.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]exam.Submission, 0)
	for _, s := range repo.db.submissions {
		if matchesSubmission(s, filter) {
			subs = append(subs, cloneSubmission(*s))
		}
	}
	sortNewestFirst(subs,
		func(i int) time.Time { return subs[i].CreatedAt },
		func(i int) string { return subs[i].ID })
	return subs, nil
}

func (repo *examRepository) UpdateSubmission(_ context.Context, s exam.Submission) (exam.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.submissions[s.ID]
	if !ok {
		return exam.Submission{}, exam.ErrSubmissionNotFound
	}
	updated := cloneSubmission(s)
	updated.CreatedAt = orig.CreatedAt
	repo.db.submissions[s.ID] = &updated
	return cloneSubmission(updated), nil
}

func (repo *examRepository) CountSubmissions(_ context.Context, filter exam.SubmissionFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var n int
	for _, s := range repo.db.submissions {
		if matchesSubmission(s, filter) {
			n++
		}
	}
	return n, nil
}
