package progress

import (
	"context"

	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/exam"
	"github.com/youpass/youpass/core/user"
)

const recentSubmissionsLimit = 5

var ErrNotAuthorized = core.NewForbiddenError("Not authorized to view this user's progress")

type (
	CourseProgress struct {
		CourseID         string  `json:"course"`
		Title            string  `json:"title"`
		Skill            string  `json:"skill"`
		CompletedLessons int     `json:"completedLessons"`
		TotalLessons     int     `json:"totalLessons"`
		Percentage       float64 `json:"percentage"`
	}

	SubmissionSummary struct {
		Total             int     `json:"total"`
		Graded            int     `json:"graded"`
		Passed            int     `json:"passed"`
		AveragePercentage float64 `json:"averagePercentage"`
	}

	UserProgress struct {
		UserID            string            `json:"user"`
		StudyGoals        user.StudyGoals   `json:"studyGoals"`
		Courses           []CourseProgress  `json:"courses"`
		CompletedLessons  int               `json:"completedLessons"`
		Submissions       SubmissionSummary `json:"submissions"`
		RecentSubmissions []exam.Submission `json:"recentSubmissions"`
	}

	Stats struct {
		Users            int     `json:"users"`
		Courses          int     `json:"courses"`
		PublishedCourses int     `json:"publishedCourses"`
		Tests            int     `json:"tests"`
		Submissions      int     `json:"submissions"`
		PassRate         float64 `json:"passRate"` // percentage of graded submissions that passed
	}

	Service interface {
		// UserProgress is readable by the user themselves and by admins.
		UserProgress(ctx context.Context, requester user.User, userID string) (UserProgress, error)
		Stats(ctx context.Context) (Stats, error)
	}

	service struct {
		userSvc   user.Service
		courseSvc course.Service
		examSvc   exam.Service
	}
)

var _ Service = (*service)(nil)

func NewService(userSvc user.Service, courseSvc course.Service, examSvc exam.Service) Service {
	return &service{userSvc: userSvc, courseSvc: courseSvc, examSvc: examSvc}
}

func (svc *service) UserProgress(ctx context.Context, requester user.User, userID string) (UserProgress, error) {
	if requester.ID != userID && !requester.IsAdmin() {
		return UserProgress{}, ErrNotAuthorized
	}
	usr, err := svc.userSvc.GetByID(ctx, userID)
	if err != nil {
		return UserProgress{}, err
	}

	courses, err := svc.courseSvc.QueryByID(ctx, usr.EnrolledCourses...)
	if err != nil {
		return UserProgress{}, errors.Wrap(err, "querying enrolled courses")
	}
	subs, err := svc.examSvc.ListForUser(ctx, usr.ID)
	if err != nil {
		return UserProgress{}, err
	}

	recent := subs
	if len(recent) > recentSubmissionsLimit {
		recent = recent[:recentSubmissionsLimit]
	}
	return UserProgress{
		UserID:            usr.ID,
		StudyGoals:        usr.StudyGoals,
		Courses:           courseProgress(courses, usr.CompletedLessons),
		CompletedLessons:  len(usr.CompletedLessons),
		Submissions:       summarize(subs),
		RecentSubmissions: recent,
	}, nil
}

func courseProgress(courses []course.Course, completed []string) []CourseProgress {
	out := make([]CourseProgress, 0, len(courses))
	for _, c := range courses {
		cp := CourseProgress{CourseID: c.ID, Title: c.Title, Skill: c.Skill, TotalLessons: len(c.Lessons)}
		for _, l := range c.Lessons {
			if core.ContainsString(completed, l.ID) {
				cp.CompletedLessons++
			}
		}
		if cp.TotalLessons > 0 {
			cp.Percentage = core.Round(float64(cp.CompletedLessons)/float64(cp.TotalLessons)*100, 2)
		}
		out = append(out, cp)
	}
	return out
}

// summarize averages the percentage over the submissions that were handed in.
func summarize(subs []exam.Submission) SubmissionSummary {
	var sum SubmissionSummary
	var handedIn int
	var total float64
	for _, s := range subs {
		sum.Total++
		if s.Status == exam.StatusInProgress {
			continue
		}
		handedIn++
		total += s.PercentageScore
		if s.Status == exam.StatusGraded {
			sum.Graded++
			if s.IsPassed {
				sum.Passed++
			}
		}
	}
	if handedIn > 0 {
		sum.AveragePercentage = core.Round(total/float64(handedIn), 2)
	}
	return sum
}

func (svc *service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Users, err = svc.userSvc.Count(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting users")
	}
	if st.Courses, err = svc.courseSvc.Count(ctx, false); err != nil {
		return Stats{}, errors.Wrap(err, "counting courses")
	}
	if st.PublishedCourses, err = svc.courseSvc.Count(ctx, true); err != nil {
		return Stats{}, errors.Wrap(err, "counting published courses")
	}
	if st.Tests, err = svc.examSvc.Count(ctx); err != nil {
		return Stats{}, errors.Wrap(err, "counting tests")
	}
	if st.Submissions, err = svc.examSvc.CountSubmissions(ctx, exam.SubmissionFilter{}); err != nil {
		return Stats{}, errors.Wrap(err, "counting submissions")
	}

	graded, err := svc.examSvc.CountSubmissions(ctx, exam.SubmissionFilter{Status: exam.StatusGraded})
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting graded submissions")
	}
	if graded > 0 {
		passed := true
		nPassed, err := svc.examSvc.CountSubmissions(ctx, exam.SubmissionFilter{Status: exam.StatusGraded, Passed: &passed})
		if err != nil {
			return Stats{}, errors.Wrap(err, "counting passed submissions")
		}
		st.PassRate = core.Round(float64(nPassed)/float64(graded)*100, 2)
	}
	return st, nil
}
