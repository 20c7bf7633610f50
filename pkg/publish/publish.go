package publish

import (
	"context"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// Publisher submits one finished piece of content to the publishing service.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

// Mirror keeps a copy of every successfully published text.
type Mirror interface {
	Store(ctx context.Context, id string, text string) error
}

// Decode turns a released buffer into text. Ill-formed UTF-8 is replaced by
// U+FFFD instead of being rejected, so content is never dropped for encoding
// reasons.
func Decode(buf []byte) string {
	text, err := unicode.UTF8.NewDecoder().Bytes(buf)
	if err != nil {
		return strings.ToValidUTF8(string(buf), "\uFFFD")
	}
	return string(text)
}
