// Package session holds the per-visitor state kept between requests.
package session

import (
	"time"

	"github.com/kailas-cloud/puppyradar/internal/domain/liked"
)

// Fixed storage keys, scoped per session id by the repository.
const (
	KeyLoginStatus = "PR_LOGIN_STATUS"
	KeyLikedList   = "PR_LIKED_LIST"
)

// Status is the login status record.
type Status struct {
	LoggedIn    bool      `json:"logged_in"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	AccessToken string    `json:"access_token"`
	CreatedAt   time.Time `json:"created_at"`
}

// State is everything known about one session.
type State struct {
	ID     string
	Status Status
	Liked  liked.Set
}

// Authenticated reports whether the session belongs to a logged-in user.
func (s *State) Authenticated() bool {
	return s != nil && s.Status.LoggedIn && s.Status.AccessToken != ""
}
