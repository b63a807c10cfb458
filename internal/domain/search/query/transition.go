package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/kailas-cloud/puppyradar/internal/domain"
)

// The functions below implement user actions on the search page. Each takes the
// current URL values and returns the values to navigate to. Unknown parameters
// are carried over untouched. The input is never modified.

// WithBreeds replaces the breed selection and resets to the first page.
func WithBreeds(current url.Values, breeds []string) url.Values {
	next := clone(current)
	next.Del(ParamBreeds)
	for _, b := range breeds {
		if b = strings.TrimSpace(b); b != "" {
			next.Add(ParamBreeds, b)
		}
	}
	next.Set(ParamPage, "1")
	return next
}

// WithSort switches the breed sort direction and resets to the first page.
// It reports false, and returns nil, when the page already shows dir.
func WithSort(current url.Values, dir Sort, cfg domain.SearchConfig) (url.Values, bool) {
	ascending := Parse(current, cfg).Ascending()
	switch dir {
	case SortAsc:
		if ascending {
			return nil, false
		}
	case SortDesc:
		if !ascending {
			return nil, false
		}
	default:
		return nil, false
	}

	next := clone(current)
	next.Set(ParamSort, string(dir))
	next.Set(ParamPage, "1")
	return next, true
}

// WithAgeRange clamps [lo, hi] to the configured age bounds, writes it and
// resets to the first page.
func WithAgeRange(current url.Values, lo, hi int, cfg domain.SearchConfig) url.Values {
	lo, hi = ClampAgeRange(lo, hi, cfg)
	next := clone(current)
	next.Set(ParamAgeMin, strconv.Itoa(lo))
	next.Set(ParamAgeMax, strconv.Itoa(hi))
	next.Set(ParamPage, "1")
	return next
}

// ClampAgeRange limits both bounds to [cfg.AgeMin, cfg.AgeMax] and swaps them
// when lo > hi.
func ClampAgeRange(lo, hi int, cfg domain.SearchConfig) (int, int) {
	lo = clampInt(lo, cfg.AgeMin, cfg.AgeMax)
	hi = clampInt(hi, cfg.AgeMin, cfg.AgeMax)
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// WithPage moves to the 1-based target page. Targets below 1 go to page 1.
func WithPage(current url.Values, page int) url.Values {
	if page < 1 {
		page = 1
	}
	next := clone(current)
	next.Set(ParamPage, strconv.Itoa(page))
	return next
}

func clone(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
