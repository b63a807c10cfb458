// Package dog holds the records served by the dogs API.
package dog

// Dog is a full shelter dog record.
type Dog struct {
	ID      string `json:"id"`
	Img     string `json:"img"`
	Name    string `json:"name"`
	Age     int    `json:"age"`
	ZipCode string `json:"zip_code"`
	Breed   string `json:"breed"`
}

// Page is one page of search hits: the ids on the page and the overall total.
type Page struct {
	ResultIDs []string `json:"resultIds"`
	Total     int      `json:"total"`
	Next      string   `json:"next,omitempty"`
	Prev      string   `json:"prev,omitempty"`
}

// Empty reports whether the page carries no ids.
func (p *Page) Empty() bool {
	return p == nil || len(p.ResultIDs) == 0
}

// SearchParams are the filters of one search call.
type SearchParams struct {
	Breeds []string
	AgeMin int
	AgeMax int
	Size   int
	From   int
	// Sort is "field:direction", or empty for the API default.
	Sort string
}

// Card is a dog annotated for display.
type Card struct {
	Dog
	Liked bool `json:"liked"`
}

// Annotate marks every dog with its liked flag, keeping the input order.
func Annotate(dogs []Dog, isLiked func(id string) bool) []Card {
	cards := make([]Card, len(dogs))
	for i, d := range dogs {
		cards[i] = Card{Dog: d, Liked: isLiked(d.ID)}
	}
	return cards
}
