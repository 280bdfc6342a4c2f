package core

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (Page-1)*Limit within int32 range.
	MaxPage = math.MaxInt32 / MaxLimit
)

// Pagination is a 1-based page request.
type Pagination struct {
	Page  int `query:"page" json:"page"`
	Limit int `query:"limit" json:"limit"`
}

// Clean applies defaults and bounds.
func (p *Pagination) Clean() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pages returns the number of pages needed to hold total items.
func (p Pagination) Pages(total int) int {
	if p.Limit < 1 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// Window returns the [start, end) bounds of the page within n items.
func (p Pagination) Window(n int) (int, int) {
	start := p.Offset()
	if start > n || start < 0 {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
