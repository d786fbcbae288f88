// Package mailfile turns a raw RFC 5322 message into a scan request.
package mailfile

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"

	"github.com/mikey/mail-shield/internal/core"
)

var (
	tagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	blankPattern = regexp.MustCompile(`\n{3,}`)
	decoder      = new(mime.WordDecoder)
)

// Parse reads a message and returns the request the classifier would see
func Parse(r io.Reader) (*core.ScanRequest, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	subject, err := decoder.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		subject = msg.Header.Get("Subject")
	}

	body, err := extractText(msg.Header, msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	return &core.ScanRequest{
		Subject: strings.TrimSpace(subject),
		Sender:  sender(msg.Header),
		Body:    strings.TrimSpace(body),
	}, nil
}

// sender prefers the bare address and falls back to the raw header
func sender(h mail.Header) string {
	raw := h.Get("From")
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		return addrs[0].Address
	}
	return strings.TrimSpace(raw)
}

// header is satisfied by both mail.Header and textproto.MIMEHeader
type header interface {
	Get(key string) string
}

// extractText walks the MIME tree, preferring text/plain over text/html
func extractText(h header, body io.Reader) (string, error) {
	plain, html, err := walk(h, body, 0)
	if err != nil {
		return "", err
	}
	if plain != "" {
		return plain, nil
	}
	if html != "" {
		return stripHTML(html), nil
	}
	return "", nil
}

const maxDepth = 8

func walk(h header, body io.Reader, depth int) (plain, html string, err error) {
	mediaType, params, perr := mime.ParseMediaType(h.Get("Content-Type"))
	if perr != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" || depth >= maxDepth {
			return "", "", nil
		}
		var plainParts, htmlParts []string
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				if len(plainParts)+len(htmlParts) > 0 {
					break
				}
				return "", "", err
			}
			if isAttachment(part.Header.Get("Content-Disposition")) {
				continue
			}
			p, ht, err := walk(part.Header, part, depth+1)
			if err != nil {
				continue
			}
			if p != "" {
				plainParts = append(plainParts, p)
			}
			if ht != "" {
				htmlParts = append(htmlParts, ht)
			}
		}
		return strings.Join(plainParts, "\n"), strings.Join(htmlParts, "\n"), nil
	}

	raw, err := io.ReadAll(decodeTransfer(h.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return "", "", err
	}
	switch mediaType {
	case "text/plain":
		return string(raw), "", nil
	case "text/html":
		return "", string(raw), nil
	}
	return "", "", nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	}
	return r
}

func isAttachment(disposition string) bool {
	d, _, err := mime.ParseMediaType(disposition)
	return err == nil && d == "attachment"
}

func stripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, "\n")
	s = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(s)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return blankPattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
}
