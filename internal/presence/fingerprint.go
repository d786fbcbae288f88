// Package presence decides whether the message in view is new, the same, or gone.
package presence

import (
	"fmt"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/mikey/mail-shield/internal/core"
)

// SliceBytes bounds how much of each end of the text is hashed
const SliceBytes = 256

// HashText fingerprints text from a bounded prefix, a bounded suffix and the
// total length. Cost does not grow with the text.
func HashText(text string) string {
	prefix, suffix := text, ""
	if len(text) > SliceBytes {
		prefix = text[:runeFloor(text, SliceBytes)]
		start := len(text) - SliceBytes
		for start < len(text) && !utf8.RuneStart(text[start]) {
			start++
		}
		suffix = text[start:]
	}
	return fmt.Sprintf("%016x%016x:%d",
		xxhash.Sum64String(norm.NFC.String(prefix)),
		xxhash.Sum64String(norm.NFC.String(suffix)),
		len(text))
}

// Fingerprint combines the message header with the body hash. A header that
// finishes rendering after the body changes the fingerprint.
func Fingerprint(c *core.ObservedContent) string {
	if c == nil {
		return ""
	}
	h := xxhash.New()
	h.WriteString(norm.NFC.String(c.Subject))
	h.WriteString("\x1f")
	h.WriteString(norm.NFC.String(c.Sender))
	return fmt.Sprintf("%016x-%s", h.Sum64(), HashText(c.Body))
}

// runeFloor returns the largest index <= n that starts a rune
func runeFloor(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
