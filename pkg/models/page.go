package models

// Pagination describes where a page sits in a listing. Previous and Next
// are nil at the edges.
type Pagination struct {
	Previous *int    `json:"previous"`
	Current  int     `json:"current"`
	Next     *int    `json:"next"`
	Total    int     `json:"total"` // number of pages
	Size     int     `json:"size"`
	Records  Records `json:"records"`
}

type Records struct {
	Total  int `json:"total"`
	OnPage int `json:"onPage"`
}

// NewPagination computes the pagination details of page (1-based) for a
// listing of totalRecords split into pages of size.
func NewPagination(totalRecords, page, size int) Pagination {
	totalPages := 0
	if size > 0 {
		totalPages = (totalRecords + size - 1) / size
	}

	p := Pagination{
		Current: page,
		Total:   totalPages,
		Size:    size,
		Records: Records{
			Total:  totalRecords,
			OnPage: max(0, min(size, totalRecords-(page-1)*size)),
		},
	}
	if page > 1 {
		prev := page - 1
		p.Previous = &prev
	}
	if page < totalPages {
		next := page + 1
		p.Next = &next
	}
	return p
}

// Offset is the index of the first record on the page.
func (p Pagination) Offset() int {
	if p.Current < 1 {
		return 0
	}
	return (p.Current - 1) * p.Size
}

// FilingPage is one page of a filing listing.
type FilingPage struct {
	Data       []*Filing  `json:"data"`
	Pagination Pagination `json:"page"`
}
