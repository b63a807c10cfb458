// Package query maps the search page URL to a normalized search query and back.
//
// The URL is the only source of search state: every user action produces a new
// set of URL values, and everything the page renders is derived from them via Parse.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/puppyradar/internal/domain"
)

// URL query parameter names.
const (
	ParamBreeds = "breeds"
	ParamPage   = "page"
	ParamSort   = "sort"
	ParamAgeMin = "ageMin"
	ParamAgeMax = "ageMax"
)

// sortField is the only field the dogs API is asked to sort on.
const sortField = "breed"

// Sort is the breed sort direction carried in the URL.
type Sort string

// Sort directions.
const (
	// SortUnset means no sort parameter; displayed as ascending, nothing sent upstream.
	SortUnset Sort = ""
	SortAsc   Sort = "asc"
	SortDesc  Sort = "desc"
)

// IsValid reports whether s is a known direction (unset included).
func (s Sort) IsValid() bool {
	return s == SortUnset || s == SortAsc || s == SortDesc
}

// Query is the normalized search state derived from the URL.
type Query struct {
	Breeds []string
	Sort   Sort
	AgeMin int
	AgeMax int
	// Page is 1-based.
	Page int
}

// Parse derives a Query from URL values. It never fails: malformed or absent
// parameters fall back to the defaults in cfg (page 1, full age range, no sort).
func Parse(v url.Values, cfg domain.SearchConfig) Query {
	q := Query{
		Breeds: []string{},
		Sort:   SortUnset,
		AgeMin: cfg.AgeMin,
		AgeMax: cfg.AgeMax,
		Page:   1,
	}

	var breeds *[]string
	if err := runtime.BindQueryParameter("form", true, false, ParamBreeds, v, &breeds); err == nil && breeds != nil {
		for _, b := range *breeds {
			if b = strings.TrimSpace(b); b != "" {
				q.Breeds = append(q.Breeds, b)
			}
		}
	}

	if page, ok := bindInt(v, ParamPage); ok && page >= 1 {
		q.Page = page
	}
	if ageMin, ok := bindInt(v, ParamAgeMin); ok {
		q.AgeMin = ageMin
	}
	if ageMax, ok := bindInt(v, ParamAgeMax); ok {
		q.AgeMax = ageMax
	}

	if s := Sort(v.Get(ParamSort)); s.IsValid() {
		q.Sort = s
	}

	return q
}

func bindInt(v url.Values, name string) (int, bool) {
	var out *int
	if err := runtime.BindQueryParameter("form", true, false, name, v, &out); err != nil || out == nil {
		return 0, false
	}
	return *out, true
}

// Values renders q back to URL values. Parse(q.Values()) yields q for any
// normalized q. The page is always written; sort only when set.
func (q Query) Values() url.Values {
	v := url.Values{}
	for _, b := range q.Breeds {
		v.Add(ParamBreeds, b)
	}
	if q.Sort != SortUnset {
		v.Set(ParamSort, string(q.Sort))
	}
	v.Set(ParamAgeMin, strconv.Itoa(q.AgeMin))
	v.Set(ParamAgeMax, strconv.Itoa(q.AgeMax))
	v.Set(ParamPage, strconv.Itoa(q.Page))
	return v
}

// PageIndex returns the zero-based page index.
func (q Query) PageIndex() int { return q.Page - 1 }

// Offset returns the result offset of the current page.
func (q Query) Offset(pageSize int) int { return pageSize * q.PageIndex() }

// Ascending reports whether the breed sort is displayed as ascending.
// An absent sort parameter displays as ascending.
func (q Query) Ascending() bool { return q.Sort != SortDesc }

// SortKey returns the upstream sort expression ("breed:asc"), or "" when unset.
func (q Query) SortKey() string {
	if q.Sort == SortUnset {
		return ""
	}
	return sortField + ":" + string(q.Sort)
}

// PageCount returns the number of pages needed for total results.
func PageCount(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// ShowPagination reports whether the page control is rendered.
func ShowPagination(total, pageSize int) bool {
	return total > pageSize
}
