// Package source retrieves chat messages from the page being watched.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrUnsupportedSite is returned when the chat URL is not a page this
	// program knows how to read.
	ErrUnsupportedSite = errors.New("unsupported platform")

	// ErrClosed is returned by Fetch after the source has been closed.
	ErrClosed = errors.New("source closed")
)

// Record is one chat message as it appears on the page. The ID is assigned
// by the chat and is stable for the lifetime of the message; author and
// body may be empty when the element was only partially rendered.
type Record struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Body   string `json:"body"`
}

// Source returns the messages currently visible, in page order. When no
// message containers show up within the source's wait window, it returns
// no records and a nil error.
type Source interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// supportedHosts are host substrings of chat pages that render messages as
// .chat-message elements.
var supportedHosts = []string{"truffle", "localhost", "127.0.0.1"}

// Supported checks that rawURL points at a chat page we can read.
func Supported(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid chat url: %w", err)
	}
	host := strings.ToLower(u.Host)
	for _, h := range supportedHosts {
		if strings.Contains(host, h) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedSite, u.Host)
}
