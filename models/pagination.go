package models

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PaginationOpts is decoded from the page and limit query parameters. Pages
// are 1-indexed.
type PaginationOpts struct {
	Page  int `schema:"page"`
	Limit int `schema:"limit"`
}

// Normalize clamps page to at least 1 and limit to [1, MaxPageLimit].
func (p *PaginationOpts) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
}

func (p PaginationOpts) Offset() int {
	return (p.Page - 1) * p.Limit
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPagination(opts PaginationOpts, total int) *Pagination {
	totalPages := 0
	if opts.Limit > 0 {
		totalPages = (total + opts.Limit - 1) / opts.Limit
	}
	return &Pagination{
		Page:       opts.Page,
		Limit:      opts.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
