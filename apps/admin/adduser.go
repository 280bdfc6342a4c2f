package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

// addUser updates or creates a user.User. The password must not resemble the name or email.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	if err := user.CheckPasswordSimilarity(pwd, name, email); err != nil {
		return err
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	exists := err == nil
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return err
	}

	now := core.Now()
	if !exists {
		usr = user.User{
			ID:               uuid.New().String(),
			Email:            email,
			Role:             user.RoleStudent,
			StudyGoals:       user.DefaultStudyGoals(now),
			EnrolledCourses:  []string{},
			CompletedLessons: []string{},
			CreatedAt:        now,
		}
	}
	usr.Name = name
	usr.UpdatedAt = now
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
		return errors.Wrap(err, "updating user")
	}
	_, err = cli.usrRepo.CreateUser(ctx, usr)
	return errors.Wrap(err, "creating user")
}
