package cyworld

import (
	"fmt"
	"strings"
)

// DefaultBaseURL is the site root
const DefaultBaseURL = "https://cy.cyworld.com"

// Selectors used on the site's pages
const (
	EmailInputSelector    = `input[name="email"]`
	PasswordInputSelector = `input[name="passwd"]`
	ProfileLinkSelector   = "a.freak1"
	HomeButtonSelector    = "#imggnbuser"
	LoadMoreSelector      = "p.btn_list_more"
	ContentIDSelector     = `input[name="contentID[]"]`
)

// HomeURL returns the user's home feed address
func HomeURL(baseURL, userID string) string {
	return fmt.Sprintf("%s/home/%s", strings.TrimRight(baseURL, "/"), userID)
}

// PostURL returns the single-post layer view of contentID
func PostURL(baseURL, userID, contentID string) string {
	return fmt.Sprintf("%s/post/%s/layer", HomeURL(baseURL, userID), contentID)
}
