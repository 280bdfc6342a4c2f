package user

import (
	"context"
	"net/mail"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/youpass/youpass/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("User not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrGoogleIDExists     = errors.New("a user with this google account already exists")
	ErrInvalidCredentials = core.NewUnauthorizedError("Invalid credentials")

	errWrongPassword = "current password is incorrect"
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists or ErrGoogleIDExists on duplicates.
		CreateUser(ctx context.Context, usr User) (User, error)
		// GetUser returns the User matching every non-empty GetFilter field, or ErrNotFound.
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		QueryUsersByID(ctx context.Context, ids ...string) ([]User, error)
		// UpdateUser replaces the profile, credentials and LastLogin of usr.
		// EnrolledCourses and CompletedLessons are left to the course repository.
		UpdateUser(ctx context.Context, usr User) (User, error)
		CountUsers(ctx context.Context) (int, error)
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		ResolveFederated(ctx context.Context, profile FederatedProfile) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		QueryByID(ctx context.Context, ids ...string) ([]User, error)
		Count(ctx context.Context) (int, error)
		UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error)
		ChangePassword(ctx context.Context, id string, cp ChangePassword) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetPassword) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		tokens  tokenGenerator
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		conf:    conf,
	}
}

func (svc *service) create(ctx context.Context, usr User) (User, error) {
	now := core.Now()
	usr.ID = uuid.New().String()
	usr.Email = core.CleanString(usr.Email, true /* lower */)
	if usr.Role == "" {
		usr.Role = RoleStudent
	}
	if usr.StudyGoals.TargetDate.IsZero() {
		usr.StudyGoals = DefaultStudyGoals(now)
	}
	usr.EnrolledCourses = []string{}
	usr.CompletedLessons = []string{}
	usr.CreatedAt = now
	usr.UpdatedAt = now

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	usr := User{Name: nu.Name, Email: nu.Email}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.create(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if !usr.HasPassword() || usr.CheckPassword(pwd) != nil {
		return User{}, ErrInvalidCredentials
	}

	usr.LastLogin = core.Now()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

// ResolveFederated finds the User behind an external identity, linking or creating one when needed.
func (svc *service) ResolveFederated(ctx context.Context, profile FederatedProfile) (User, error) {
	if profile.ProviderID == "" {
		return User{}, errors.New("federated profile without provider ID")
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{GoogleID: profile.ProviderID})
	if err == nil {
		return usr, nil
	} else if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "finding user by google ID")
	}

	email := core.CleanString(profile.Email, true /* lower */)
	if email != "" {
		usr, err = svc.repo.GetUser(ctx, GetFilter{Email: email})
		if err == nil {
			usr.GoogleID = profile.ProviderID
			if usr.Avatar == "" {
				usr.Avatar = profile.AvatarURL
			}
			usr.UpdatedAt = core.Now()
			usr, err = svc.repo.UpdateUser(ctx, usr)
			return usr, errors.Wrap(err, "linking google account")
		} else if errors.Cause(err) != ErrNotFound {
			return User{}, errors.Wrap(err, "finding user by email")
		}
	}

	name := core.CleanString(profile.DisplayName)
	if name == "" {
		name = email
	}
	return svc.create(ctx, User{
		Name:     name,
		Email:    email,
		GoogleID: profile.ProviderID,
		Avatar:   profile.AvatarURL,
	})
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

func (svc *service) QueryByID(ctx context.Context, ids ...string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	return svc.repo.QueryUsersByID(ctx, ids...)
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountUsers(ctx)
}

func (svc *service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by ID")
	}

	if up.Name != nil {
		usr.Name = *up.Name
	}
	if up.Avatar != nil {
		usr.Avatar = *up.Avatar
	}
	if goals := up.StudyGoals; goals != nil {
		if goals.TargetScore != nil {
			usr.StudyGoals.TargetScore = *goals.TargetScore
		}
		if goals.TargetDate != nil {
			usr.StudyGoals.TargetDate = goals.TargetDate.UTC()
		}
		if goals.FocusAreas != nil {
			usr.StudyGoals.FocusAreas = goals.FocusAreas
		}
	}
	usr.UpdatedAt = core.Now()

	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// ChangePassword sets a new password. Users without one (federated sign-ups) skip the current password check.
func (svc *service) ChangePassword(ctx context.Context, id string, cp ChangePassword) error {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	if usr.HasPassword() {
		if cp.CurrentPassword == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "currentPassword", Error: "this field is required"})
		}
		if usr.CheckPassword(cp.CurrentPassword) != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "currentPassword", Error: errWrongPassword})
		}
	}

	if err = usr.SetPassword(cp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.Now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetPassword) error {
	invalidErr := core.NewValidationError(errors.New("Invalid or expired reset token"))

	id, err := splitToken(rp.Token)
	if err != nil {
		return invalidErr
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidErr
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return invalidErr
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.Now()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// PasswordResetURL is the frontend page a reset token is mailed as.
func (svc *service) PasswordResetURL(usr User) string {
	return svc.conf.FrontendBaseURL + "/reset-password/" + svc.tokens.makeToken(usr)
}

func (svc *service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":     usr.Name,
			"ResetURL": svc.PasswordResetURL(usr),
		},
	})
}

func (svc *service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to YouPass",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{"Name": usr.Name},
	})
}
