package domain

// KeyPrefix namespaces every key written to the store.
const KeyPrefix = "puppyradar:"

// LoginPage is the login boundary users are sent to when their session is gone.
const LoginPage = "/"

// SearchConfig holds search view constants shared by the controller and the views.
type SearchConfig struct {
	PageSize int
	AgeMin   int
	AgeMax   int
}

// DefaultSearchConfig returns a page size of 20 and an age range of [0, 20].
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		PageSize: 20,
		AgeMin:   0,
		AgeMax:   20,
	}
}
