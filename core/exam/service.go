package exam

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("Test not found")
	ErrSubmissionNotFound  = core.NewNotFoundError("Submission not found")
	ErrNotPublished        = core.NewForbiddenError("This test is not yet published")
	ErrNotAuthorized       = core.NewForbiddenError("Not authorized to modify this test")
	ErrSubmissionForbidden = core.NewForbiddenError("Not authorized to access this submission")
	ErrAlreadySubmitted    = core.NewValidationError(errors.New("This submission has already been submitted"))
	ErrNotSubmitted        = core.NewValidationError(errors.New("This submission has not been submitted yet"))

	errUnknownQuestion = "unknown question"
)

type (
	Repository interface {
		CreateTest(ctx context.Context, t Test) (Test, error)
		// GetTest returns ErrNotFound if there is no Test with id.
		GetTest(ctx context.Context, id string) (Test, error)
		QueryTestsByID(ctx context.Context, ids ...string) ([]Test, error)
		// QueryTests returns one page of the Tests matching filter, newest first, and the total number of matches.
		QueryTests(ctx context.Context, filter Filter, page core.Pagination) ([]Test, int, error)
		UpdateTest(ctx context.Context, t Test) (Test, error)
		// DeleteTest deletes the Test and its submissions.
		DeleteTest(ctx context.Context, id string) error
		CountTests(ctx context.Context) (int, error)

		CreateSubmission(ctx context.Context, s Submission) (Submission, error)
		// GetSubmission returns ErrSubmissionNotFound if there is no Submission with id.
		GetSubmission(ctx context.Context, id string) (Submission, error)
		// QuerySubmissions returns the Submissions matching filter, newest first.
		QuerySubmissions(ctx context.Context, filter SubmissionFilter) ([]Submission, error)
		UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
		CountSubmissions(ctx context.Context, filter SubmissionFilter) (int, error)
	}

	Service interface {
		Query(ctx context.Context, requester user.User, filter Filter, page core.Pagination) ([]Test, int, error)
		Get(ctx context.Context, requester user.User, id string) (Test, error)
		QueryByID(ctx context.Context, ids ...string) ([]Test, error)
		Count(ctx context.Context) (int, error)
		Create(ctx context.Context, creator user.User, nt NewTest) (Test, error)
		Update(ctx context.Context, requester user.User, id string, ut UpdateTest) (Test, error)
		Delete(ctx context.Context, requester user.User, id string) error

		Start(ctx context.Context, usr user.User, testID string) (Submission, error)
		Submit(ctx context.Context, usr user.User, testID, submissionID string, sa SubmitAnswers) (Submission, error)
		Grade(ctx context.Context, grader user.User, testID, submissionID string, gs GradeSubmission) (Submission, error)
		GetSubmission(ctx context.Context, requester user.User, testID, submissionID string) (Submission, error)
		// ListSubmissions returns every submission of the test to admins and the requester's own to others.
		ListSubmissions(ctx context.Context, requester user.User, testID string) ([]Submission, error)
		ListForUser(ctx context.Context, userID string) ([]Submission, error)
		CountSubmissions(ctx context.Context, filter SubmissionFilter) (int, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func canManage(t Test, usr user.User) bool {
	return usr.IsAdmin() || t.CreatedBy == usr.ID
}

// forViewer hides the correct answers from users who cannot manage the test.
func forViewer(t Test, usr user.User) Test {
	if canManage(t, usr) {
		return t
	}
	return t.Redacted()
}

func (svc *service) Query(ctx context.Context, requester user.User, filter Filter, page core.Pagination) ([]Test, int, error) {
	filter.Clean()
	filter.PublishedOnly = !requester.IsAdmin()
	page.Clean()

	tests, total, err := svc.repo.QueryTests(ctx, filter, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying tests")
	}
	for i := range tests {
		tests[i] = forViewer(tests[i], requester)
	}
	return tests, total, nil
}

func (svc *service) Get(ctx context.Context, requester user.User, id string) (Test, error) {
	t, err := svc.repo.GetTest(ctx, id)
	if err != nil {
		return Test{}, err
	}
	if !t.IsPublished && !canManage(t, requester) {
		return Test{}, ErrNotPublished
	}
	return forViewer(t, requester), nil
}

func (svc *service) QueryByID(ctx context.Context, ids ...string) ([]Test, error) {
	if len(ids) == 0 {
		return []Test{}, nil
	}
	return svc.repo.QueryTestsByID(ctx, ids...)
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountTests(ctx)
}

func (svc *service) CountSubmissions(ctx context.Context, filter SubmissionFilter) (int, error) {
	return svc.repo.CountSubmissions(ctx, filter)
}

// buildQuestions keeps the IDs of the existing questions that are sent back.
func buildQuestions(nqs []NewQuestion, existing []Question) []Question {
	known := make(map[string]bool, len(existing))
	for _, q := range existing {
		known[q.ID] = true
	}
	qs := make([]Question, 0, len(nqs))
	for _, nq := range nqs {
		id := nq.ID
		if !known[id] {
			id = uuid.New().String()
		}
		qs = append(qs, nq.toQuestion(id))
	}
	return qs
}

func (svc *service) Create(ctx context.Context, creator user.User, nt NewTest) (Test, error) {
	now := core.Now()
	instructions := nt.Instructions
	if instructions == "" {
		instructions = DefaultInstructions
	}
	t := Test{
		ID:           uuid.New().String(),
		Title:        nt.Title,
		Description:  nt.Description,
		Type:         nt.Type,
		Duration:     nt.Duration,
		Questions:    buildQuestions(nt.Questions, nil),
		Instructions: instructions,
		PassScore:    nt.PassScore,
		CourseID:     nt.CourseID,
		IsPublished:  nt.IsPublished,
		CreatedBy:    creator.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	t.computePoints()

	t, err := svc.repo.CreateTest(ctx, t)
	return t, errors.Wrap(err, "creating test")
}

func (svc *service) getManaged(ctx context.Context, requester user.User, id string) (Test, error) {
	t, err := svc.repo.GetTest(ctx, id)
	if err != nil {
		return Test{}, err
	}
	if !canManage(t, requester) {
		return Test{}, ErrNotAuthorized
	}
	return t, nil
}

func (svc *service) Update(ctx context.Context, requester user.User, id string, ut UpdateTest) (Test, error) {
	t, err := svc.getManaged(ctx, requester, id)
	if err != nil {
		return Test{}, err
	}

	if ut.Title != nil {
		t.Title = core.CleanString(*ut.Title)
	}
	if ut.Description != nil {
		t.Description = core.CleanString(*ut.Description)
	}
	if ut.Type != nil {
		t.Type = core.CleanString(*ut.Type, true /* lower */)
	}
	if ut.Duration != nil {
		t.Duration = *ut.Duration
	}
	if ut.Questions != nil {
		t.Questions = buildQuestions(ut.Questions, t.Questions)
	}
	if ut.Instructions != nil {
		t.Instructions = core.CleanString(*ut.Instructions)
		if t.Instructions == "" {
			t.Instructions = DefaultInstructions
		}
	}
	if ut.PassScore != nil {
		t.PassScore = *ut.PassScore
	}
	if ut.CourseID != nil {
		t.CourseID = core.CleanString(*ut.CourseID)
	}
	if ut.IsPublished != nil {
		t.IsPublished = *ut.IsPublished
	}
	t.computePoints()
	t.UpdatedAt = core.Now()

	t, err = svc.repo.UpdateTest(ctx, t)
	return t, errors.Wrap(err, "updating test")
}

func (svc *service) Delete(ctx context.Context, requester user.User, id string) error {
	if _, err := svc.getManaged(ctx, requester, id); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteTest(ctx, id), "deleting test")
}

func (svc *service) Start(ctx context.Context, usr user.User, testID string) (Submission, error) {
	t, err := svc.repo.GetTest(ctx, testID)
	if err != nil {
		return Submission{}, err
	}
	if !t.IsPublished && !canManage(t, usr) {
		return Submission{}, ErrNotPublished
	}

	now := core.Now()
	s := Submission{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		TestID:    t.ID,
		Answers:   []Answer{},
		StartTime: now,
		Status:    StatusInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s, err = svc.repo.CreateSubmission(ctx, s)
	return s, errors.Wrap(err, "creating submission")
}

// getSubmission loads a submission of the test along with the test itself.
func (svc *service) getSubmission(ctx context.Context, testID, submissionID string) (Test, Submission, error) {
	t, err := svc.repo.GetTest(ctx, testID)
	if err != nil {
		return Test{}, Submission{}, err
	}
	s, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Test{}, Submission{}, err
	}
	if s.TestID != t.ID {
		return Test{}, Submission{}, ErrSubmissionNotFound
	}
	return t, s, nil
}

// save finalizes the submission against its test then persists it.
func (svc *service) save(ctx context.Context, t Test, s Submission) (Submission, error) {
	s.finalize(t)
	s.UpdatedAt = core.Now()
	s, err := svc.repo.UpdateSubmission(ctx, s)
	if err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}
	s.setPercentage(t)
	return s, nil
}

// Submit records the answers and scores the objective questions. The submission is graded right away
// when the test only has objective questions.
func (svc *service) Submit(ctx context.Context, usr user.User, testID, submissionID string, sa SubmitAnswers) (Submission, error) {
	t, s, err := svc.getSubmission(ctx, testID, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if s.UserID != usr.ID {
		return Submission{}, ErrSubmissionForbidden
	}
	if s.Status != StatusInProgress {
		return Submission{}, ErrAlreadySubmitted
	}

	answers := make([]Answer, 0, len(sa.Answers))
	var fldErrs []core.FieldError
	var objectiveCount int
	seen := make(map[string]bool, len(sa.Answers))
	for _, in := range sa.Answers {
		q, ok := t.question(in.QuestionID)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: "answers." + in.QuestionID, Error: errUnknownQuestion})
			continue
		}
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true

		a := Answer{QuestionID: q.ID, UserAnswer: in.UserAnswer, TimeSpent: in.TimeSpent}
		if q.IsObjective() {
			scoreAnswer(q, &a)
			objectiveCount++
		}
		answers = append(answers, a)
	}
	if fldErrs != nil {
		return Submission{}, core.NewValidationError(nil, fldErrs...)
	}

	now := core.Now()
	s.Answers = answers
	s.EndTime = &now
	s.Status = StatusCompleted
	switch {
	case t.IsObjective():
		s.Status = StatusGraded
	case objectiveCount > 0:
		s.Status = StatusPartiallyGraded
	}
	return svc.save(ctx, t, s)
}

// Grade sets the scores of the given answers and marks the submission as graded.
func (svc *service) Grade(ctx context.Context, grader user.User, testID, submissionID string, gs GradeSubmission) (Submission, error) {
	t, s, err := svc.getSubmission(ctx, testID, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if !canManage(t, grader) {
		return Submission{}, ErrNotAuthorized
	}
	if s.Status == StatusInProgress {
		return Submission{}, ErrNotSubmitted
	}

	var fldErrs []core.FieldError
	for _, g := range gs.Grades {
		q, ok := t.question(g.QuestionID)
		if !ok {
			fldErrs = append(fldErrs, core.FieldError{Field: "grades." + g.QuestionID, Error: errUnknownQuestion})
			continue
		}
		if g.Score > q.Points {
			fldErrs = append(fldErrs, core.FieldError{Field: "grades." + g.QuestionID, Error: "score cannot exceed the question points"})
			continue
		}

		idx := s.answerIndex(q.ID)
		if idx < 0 {
			s.Answers = append(s.Answers, Answer{QuestionID: q.ID})
			idx = len(s.Answers) - 1
		}
		s.Answers[idx].Score = g.Score
		s.Answers[idx].IsCorrect = g.Score == q.Points
		s.Answers[idx].Feedback = core.CleanString(g.Feedback)
	}
	if fldErrs != nil {
		return Submission{}, core.NewValidationError(nil, fldErrs...)
	}

	s.Status = StatusGraded
	s.GradedBy = grader.ID
	if gs.Feedback != "" {
		s.Feedback = gs.Feedback
	}
	return svc.save(ctx, t, s)
}

func (svc *service) GetSubmission(ctx context.Context, requester user.User, testID, submissionID string) (Submission, error) {
	t, s, err := svc.getSubmission(ctx, testID, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if s.UserID != requester.ID && !canManage(t, requester) {
		return Submission{}, ErrSubmissionForbidden
	}
	s.setPercentage(t)
	return s, nil
}

func (svc *service) ListSubmissions(ctx context.Context, requester user.User, testID string) ([]Submission, error) {
	t, err := svc.repo.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	filter := SubmissionFilter{TestID: t.ID}
	if !canManage(t, requester) {
		filter.UserID = requester.ID
	}
	subs, err := svc.repo.QuerySubmissions(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	for i := range subs {
		subs[i].setPercentage(t)
	}
	return subs, nil
}

// ListForUser returns every submission of the user with its percentage score.
func (svc *service) ListForUser(ctx context.Context, userID string) ([]Submission, error) {
	subs, err := svc.repo.QuerySubmissions(ctx, SubmissionFilter{UserID: userID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	testIDs := make([]string, 0, len(subs))
	for _, s := range subs {
		if !core.ContainsString(testIDs, s.TestID) {
			testIDs = append(testIDs, s.TestID)
		}
	}
	tests, err := svc.QueryByID(ctx, testIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "querying tests")
	}
	byID := make(map[string]Test, len(tests))
	for _, t := range tests {
		byID[t.ID] = t
	}
	for i := range subs {
		subs[i].setPercentage(byID[subs[i].TestID])
	}
	return subs, nil
}
