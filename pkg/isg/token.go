package isg

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// tokenElementID is the id of the hidden input carrying the session token
// on the configuration page.
const tokenElementID = "webtoken"

// ErrNoToken is returned when the configuration page does not carry a
// usable session token.
var ErrNoToken = errors.New("session token not found in configuration page")

// extractToken parses the configuration page and returns the value of the
// webtoken element. Attribute order varies between firmware versions, so
// the page is walked as a proper DOM rather than matched textually.
func extractToken(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing configuration page: %w", err)
	}

	token, found := findTokenValue(doc)
	if !found || token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func findTokenValue(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode {
		var id, value string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "id":
				id = attr.Val
			case "value":
				value = attr.Val
			}
		}
		if id == tokenElementID {
			return value, true
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if token, found := findTokenValue(child); found {
			return token, found
		}
	}
	return "", false
}
