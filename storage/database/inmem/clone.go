package inmemdb

import (
	"encoding/json"

	"github.com/youpass/youpass/core/course"
	"github.com/youpass/youpass/core/exam"
	"github.com/youpass/youpass/core/forum"
	"github.com/youpass/youpass/core/studygroup"
	"github.com/youpass/youpass/core/user"
)

// Stored values never share memory with the values handed to callers.

func cloneStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	out := make([]string, len(ss))
	copy(out, ss)
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneUser(u user.User) user.User {
	if u.PasswordHash != nil {
		u.PasswordHash = append([]byte{}, u.PasswordHash...)
	}
	u.StudyGoals.FocusAreas = cloneStrings(u.StudyGoals.FocusAreas)
	u.EnrolledCourses = cloneStrings(u.EnrolledCourses)
	u.CompletedLessons = cloneStrings(u.CompletedLessons)
	return u
}

func cloneCourse(c course.Course) course.Course {
	lessons := make([]course.Lesson, len(c.Lessons))
	for i, l := range c.Lessons {
		l.Resources = append([]course.Resource{}, l.Resources...)
		quiz := make([]course.QuizItem, len(l.Quiz))
		for j, q := range l.Quiz {
			q.Options = cloneStrings(q.Options)
			quiz[j] = q
		}
		l.Quiz = quiz
		lessons[i] = l
	}
	c.Lessons = lessons
	c.Instructors = cloneStrings(c.Instructors)
	c.Students = cloneStrings(c.Students)
	c.Reviews = append([]course.Review{}, c.Reviews...)
	return c
}

func cloneTest(t exam.Test) exam.Test {
	qs := make([]exam.Question, len(t.Questions))
	for i, q := range t.Questions {
		q.Options = cloneStrings(q.Options)
		q.CorrectAnswer = cloneRaw(q.CorrectAnswer)
		qs[i] = q
	}
	t.Questions = qs
	return t
}

func cloneSubmission(s exam.Submission) exam.Submission {
	answers := make([]exam.Answer, len(s.Answers))
	for i, a := range s.Answers {
		a.UserAnswer = cloneRaw(a.UserAnswer)
		answers[i] = a
	}
	s.Answers = answers
	if s.EndTime != nil {
		end := *s.EndTime
		s.EndTime = &end
	}
	return s
}

func clonePost(p forum.Post) forum.Post {
	p.Tags = cloneStrings(p.Tags)
	p.Likes = cloneStrings(p.Likes)
	replies := make([]forum.Reply, len(p.Replies))
	for i, r := range p.Replies {
		r.Likes = cloneStrings(r.Likes)
		replies[i] = r
	}
	p.Replies = replies
	return p
}

func cloneGroup(g studygroup.Group) studygroup.Group {
	g.Members = cloneStrings(g.Members)
	g.FocusAreas = cloneStrings(g.FocusAreas)
	msgs := make([]studygroup.Message, len(g.Messages))
	for i, m := range g.Messages {
		m.Attachments = append([]studygroup.Attachment{}, m.Attachments...)
		msgs[i] = m
	}
	g.Messages = msgs
	return g
}
