package forum

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/youpass/youpass/core"
)

const DefaultCategory = "general"

var Categories = []string{"general", "reading", "writing", "listening", "speaking", "grammar", "vocabulary"}

type (
	Post struct {
		ID         string    `json:"id"`
		Title      string    `json:"title"`
		Content    string    `json:"content"`
		AuthorID   string    `json:"author"`
		Category   string    `json:"category"`
		Tags       []string  `json:"tags"`
		Likes      []string  `json:"likes"`
		Views      int       `json:"views"`
		Replies    []Reply   `json:"replies"`
		IsEdited   bool      `json:"isEdited"`
		IsPinned   bool      `json:"isPinned"`
		IsResolved bool      `json:"isResolved"`
		ResolvedBy string    `json:"resolvedBy,omitempty"`
		ReplyCount int       `json:"replyCount"`
		LikeCount  int       `json:"likeCount"`
		CreatedAt  time.Time `json:"createdAt"`
		UpdatedAt  time.Time `json:"updatedAt"`
	}

	Reply struct {
		ID        string    `json:"id"`
		Content   string    `json:"content"`
		AuthorID  string    `json:"author"`
		Likes     []string  `json:"likes"`
		IsEdited  bool      `json:"isEdited"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
)

// SetCounts fills the derived reply and like counts.
func (p *Post) SetCounts() {
	p.ReplyCount = len(p.Replies)
	p.LikeCount = len(p.Likes)
}

type NewPost struct {
	Title    string   `json:"title" validate:"required"`
	Content  string   `json:"content" validate:"required"`
	Category string   `json:"category" validate:"omitempty,oneof=general reading writing listening speaking grammar vocabulary"`
	Tags     []string `json:"tags"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Content = core.CleanString(np.Content)
	np.Category = core.CleanString(np.Category, true /* lower */)
	np.Tags = core.CleanStrings(np.Tags, true /* lower */)
	return validate.Struct(np)
}

// UpdatePost defines what may be changed on a Post. Nil fields are left untouched.
type UpdatePost struct {
	Title    *string  `json:"title" validate:"omitempty,notblank"`
	Content  *string  `json:"content" validate:"omitempty,notblank"`
	Category *string  `json:"category" validate:"omitempty,oneof=general reading writing listening speaking grammar vocabulary"`
	Tags     []string `json:"tags"`
	IsPinned *bool    `json:"isPinned"`
}

func (up *UpdatePost) Validate(validate *validator.Validate) error {
	if up.Title != nil {
		v := core.CleanString(*up.Title)
		up.Title = &v
	}
	if up.Content != nil {
		v := core.CleanString(*up.Content)
		up.Content = &v
	}
	if up.Category != nil {
		v := core.CleanString(*up.Category, true /* lower */)
		up.Category = &v
	}
	if up.Tags != nil {
		up.Tags = core.CleanStrings(up.Tags, true /* lower */)
	}
	return validate.Struct(up)
}

func (up UpdatePost) changesContent() bool {
	return up.Title != nil || up.Content != nil || up.Category != nil || up.Tags != nil
}

type NewReply struct {
	Content string `json:"content" validate:"required"`
}

func (nr *NewReply) Validate(validate *validator.Validate) error {
	nr.Content = core.CleanString(nr.Content)
	return validate.Struct(nr)
}

type Filter struct {
	Category string `query:"category"`
	Tag      string `query:"tag"`
	Search   string `query:"search"`
}

func (f *Filter) Clean() {
	f.Category = core.CleanString(f.Category, true /* lower */)
	f.Tag = core.CleanString(f.Tag, true /* lower */)
	f.Search = core.CleanString(f.Search)
}
