package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/youpass/youpass/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Skills a learner can focus on.
const (
	SkillReading   = "reading"
	SkillWriting   = "writing"
	SkillListening = "listening"
	SkillSpeaking  = "speaking"
)

var (
	AllSkills = []string{SkillReading, SkillWriting, SkillListening, SkillSpeaking}

	DefaultTargetScore    = 7.0
	DefaultTargetDistance = 90 * 24 * time.Hour
)

type StudyGoals struct {
	TargetScore float64   `json:"targetScore"`
	TargetDate  time.Time `json:"targetDate"`
	FocusAreas  []string  `json:"focusAreas"`
}

// DefaultStudyGoals returns the goals a new learner starts with.
func DefaultStudyGoals(now time.Time) StudyGoals {
	areas := make([]string, len(AllSkills))
	copy(areas, AllSkills)
	return StudyGoals{
		TargetScore: DefaultTargetScore,
		TargetDate:  now.Add(DefaultTargetDistance),
		FocusAreas:  areas,
	}
}

type User struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	PasswordHash     []byte     `json:"-"`
	GoogleID         string     `json:"googleId,omitempty"`
	Role             string     `json:"role"`
	Avatar           string     `json:"avatar"`
	StudyGoals       StudyGoals `json:"studyGoals"`
	EnrolledCourses  []string   `json:"enrolledCourses"`
	CompletedLessons []string   `json:"completedLessons"`
	LastLogin        time.Time  `json:"lastLogin"` // UTC
	CreatedAt        time.Time  `json:"createdAt"` // UTC
	UpdatedAt        time.Time  `json:"updatedAt"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasPassword() bool { return len(u.PasswordHash) > 0 }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// UpdateProfile defines what a User may change on their own profile. Nil fields are left untouched.
type UpdateProfile struct {
	Name       *string           `json:"name" validate:"omitempty,notblank"`
	Avatar     *string           `json:"avatar"`
	StudyGoals *UpdateStudyGoals `json:"studyGoals"`
}

type UpdateStudyGoals struct {
	TargetScore *float64   `json:"targetScore" validate:"omitempty,min=0,max=9"`
	TargetDate  *time.Time `json:"targetDate"`
	FocusAreas  []string   `json:"focusAreas" validate:"omitempty,dive,oneof=reading writing listening speaking"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	if up.Name != nil {
		name := core.CleanString(*up.Name)
		up.Name = &name
	}
	if up.Avatar != nil {
		avatar := core.CleanString(*up.Avatar)
		up.Avatar = &avatar
	}
	if up.StudyGoals != nil && up.StudyGoals.FocusAreas != nil {
		up.StudyGoals.FocusAreas = core.CleanStrings(up.StudyGoals.FocusAreas, true /* lower */)
	}
	return validate.Struct(up)
}

type ChangePassword struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password" validate:"required"`
}

func (cp ChangePassword) Validate(validate *validator.Validate) error { return validate.Struct(cp) }

type ResetPassword struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (rp ResetPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// FederatedProfile is what an external identity provider tells us about a user.
type FederatedProfile struct {
	ProviderID  string
	DisplayName string
	Email       string
	AvatarURL   string
}

// IdentityProvider signs users in through an external OAuth2 provider.
type IdentityProvider interface {
	Enabled() bool
	// AuthCodeURL returns the provider consent page URL carrying a fresh state.
	AuthCodeURL() (string, error)
	// Exchange checks state and trades code for the provider's view of the user.
	Exchange(ctx context.Context, state, code string) (FederatedProfile, error)
}

type GetFilter struct {
	ID       string
	Email    string
	GoogleID string
}
