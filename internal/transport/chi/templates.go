package chi

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"github.com/kailas-cloud/puppyradar/internal/domain/dog"
	searchuc "github.com/kailas-cloud/puppyradar/internal/usecase/search"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"likeURL": likeURL,
}).ParseFS(templateFS, "templates/*.html"))

type loginPage struct {
	FirstName string
	LastName  string
	Email     string
	Error     string
}

type errorPage struct {
	Message string
	Back    string
}

// searchActions are the form targets of the search page, each carrying the
// current query so the server can derive the next URL from it.
type searchActions struct {
	Breeds template.URL
	Sort   template.URL
	Age    template.URL
	Page   template.URL
}

type pageLink struct {
	Number  int
	Current bool
}

type searchPage struct {
	View       searchuc.View
	Dogs       []dog.Card
	LikedCount int
	Actions    searchActions
	Pages      []pageLink
	Return     string
	AgeMin     int
	AgeMax     int
}

func newSearchActions(current url.Values) searchActions {
	qs := current.Encode()
	at := func(path string) template.URL {
		if qs == "" {
			return template.URL(path) //nolint:gosec // server-built path
		}
		return template.URL(path + "?" + qs) //nolint:gosec // query is re-encoded
	}
	return searchActions{
		Breeds: at("/search/breeds"),
		Sort:   at("/search/sort"),
		Age:    at("/search/age"),
		Page:   at("/search/page"),
	}
}

func pageLinks(v searchuc.View) []pageLink {
	links := make([]pageLink, v.PageCount)
	for i := range links {
		links[i] = pageLink{Number: i + 1, Current: i == v.PageIndex}
	}
	return links
}

func likeURL(id, ret string) template.URL {
	u := "/dogs/" + url.PathEscape(id) + "/like"
	if ret != "" {
		u += "?return=" + url.QueryEscape(ret)
	}
	return template.URL(u) //nolint:gosec // both parts escaped
}

// render buffers the page; nothing is written on a template error.
func render(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}
