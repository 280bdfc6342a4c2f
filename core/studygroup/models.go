package studygroup

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/youpass/youpass/core"
)

const DefaultTargetScore = 7.0

var DefaultFocusAreas = []string{"general"}

type (
	Group struct {
		ID              string    `json:"id"`
		Name            string    `json:"name"`
		Description     string    `json:"description"`
		AdminID         string    `json:"admin"`
		Members         []string  `json:"members"`
		Messages        []Message `json:"messages,omitempty"`
		FocusAreas      []string  `json:"focusAreas"`
		TargetScore     float64   `json:"targetScore"`
		MeetingSchedule string    `json:"meetingSchedule"`
		IsPrivate       bool      `json:"isPrivate"`
		JoinCode        string    `json:"joinCode,omitempty"`
		Avatar          string    `json:"avatar"`
		MemberCount     int       `json:"memberCount"`
		MessageCount    int       `json:"messageCount"`
		CreatedAt       time.Time `json:"createdAt"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}

	Message struct {
		ID          string       `json:"id"`
		Content     string       `json:"content"`
		AuthorID    string       `json:"author"`
		Attachments []Attachment `json:"attachments"`
		IsEdited    bool         `json:"isEdited"`
		CreatedAt   time.Time    `json:"createdAt"`
		UpdatedAt   time.Time    `json:"updatedAt"`
	}

	Attachment struct {
		FileURL  string `json:"fileUrl" validate:"required"`
		FileType string `json:"fileType" validate:"omitempty,oneof=pdf audio video image other"`
		FileName string `json:"fileName" validate:"required"`
	}
)

func (g *Group) IsMember(userID string) bool {
	return core.ContainsString(g.Members, userID)
}

func (g *Group) IsAdmin(userID string) bool {
	return g.AdminID == userID
}

// SetCounts fills the derived member and message counts.
func (g *Group) SetCounts() {
	g.MemberCount = len(g.Members)
	g.MessageCount = len(g.Messages)
}

// forOutsider hides what only members may see.
func (g Group) forOutsider() Group {
	g.Messages = nil
	g.JoinCode = ""
	return g
}

type NewGroup struct {
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description" validate:"required"`
	FocusAreas      []string `json:"focusAreas" validate:"omitempty,dive,oneof=reading writing listening speaking general"`
	TargetScore     *float64 `json:"targetScore" validate:"omitempty,min=0,max=9"`
	MeetingSchedule string   `json:"meetingSchedule"`
	IsPrivate       bool     `json:"isPrivate"`
	Avatar          string   `json:"avatar"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	ng.MeetingSchedule = core.CleanString(ng.MeetingSchedule)
	ng.Avatar = core.CleanString(ng.Avatar)
	if ng.FocusAreas != nil {
		ng.FocusAreas = core.CleanStrings(ng.FocusAreas, true /* lower */)
	}
	return validate.Struct(ng)
}

// UpdateGroup defines what may be changed on a Group. Nil fields are left untouched.
type UpdateGroup struct {
	Name            *string  `json:"name" validate:"omitempty,notblank"`
	Description     *string  `json:"description" validate:"omitempty,notblank"`
	FocusAreas      []string `json:"focusAreas" validate:"omitempty,dive,oneof=reading writing listening speaking general"`
	TargetScore     *float64 `json:"targetScore" validate:"omitempty,min=0,max=9"`
	MeetingSchedule *string  `json:"meetingSchedule"`
	IsPrivate       *bool    `json:"isPrivate"`
	Avatar          *string  `json:"avatar"`
}

func (ug *UpdateGroup) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ug.Name, ug.Description, ug.MeetingSchedule, ug.Avatar} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if ug.FocusAreas != nil {
		ug.FocusAreas = core.CleanStrings(ug.FocusAreas, true /* lower */)
	}
	return validate.Struct(ug)
}

type JoinRequest struct {
	JoinCode string `json:"joinCode" validate:"required"`
}

func (jr *JoinRequest) Validate(validate *validator.Validate) error {
	jr.JoinCode = core.CleanString(jr.JoinCode)
	return validate.Struct(jr)
}

type NewMessage struct {
	Content     string       `json:"content" validate:"required"`
	Attachments []Attachment `json:"attachments" validate:"omitempty,dive"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

type Filter struct {
	Search    string `query:"search"`
	FocusArea string `query:"focusArea"`
	// VisibleTo restricts the result to public groups and the groups this user belongs to.
	VisibleTo string `query:"-"`
}

func (f *Filter) Clean() {
	f.Search = core.CleanString(f.Search)
	f.FocusArea = core.CleanString(f.FocusArea, true /* lower */)
}
