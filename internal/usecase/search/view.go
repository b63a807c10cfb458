package search

import (
	"net/url"
	"slices"

	"github.com/kailas-cloud/puppyradar/internal/domain"
	"github.com/kailas-cloud/puppyradar/internal/domain/dog"
	"github.com/kailas-cloud/puppyradar/internal/domain/search/query"
)

// View is a consistent snapshot of the controller state.
type View struct {
	SelectedBreeds []string  `json:"selected_breeds"`
	BreedOptions   []Option  `json:"breed_options"`
	AgeMin         int       `json:"age_min"`
	AgeMax         int       `json:"age_max"`
	Ascending      bool      `json:"ascending"`
	PageIndex      int       `json:"page_index"`
	Total          int       `json:"total"`
	PageCount      int       `json:"page_count"`
	ShowPagination bool      `json:"show_pagination"`
	Dogs           []dog.Dog `json:"dogs"`
	// Superseded marks a view of results that a newer query of the same
	// session kept from being committed.
	Superseded bool       `json:"superseded,omitempty"`
	Query      url.Values `json:"-"`
}

// View returns a copy of the committed state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.view(c.cfg)
}

func (s snapshot) view(cfg domain.SearchConfig) View {
	total := 0
	if s.page != nil {
		total = s.page.Total
	}
	selected := slices.Clone(s.q.Breeds)
	if selected == nil {
		selected = []string{}
	}
	return View{
		SelectedBreeds: selected,
		BreedOptions:   slices.Clone(s.breedOptions),
		AgeMin:         s.q.AgeMin,
		AgeMax:         s.q.AgeMax,
		Ascending:      s.q.Ascending(),
		PageIndex:      s.q.PageIndex(),
		Total:          total,
		PageCount:      query.PageCount(total, cfg.PageSize),
		ShowPagination: query.ShowPagination(total, cfg.PageSize),
		Dogs:           slices.Clone(s.details),
		Query:          s.q.Values(),
	}
}

// IsSelected reports whether breed is part of the current selection.
func (v View) IsSelected(breed string) bool {
	return slices.Contains(v.SelectedBreeds, breed)
}
