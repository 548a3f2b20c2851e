// Package mimeparse implements the MIME Body Parser: a small state
// machine that extracts plain/HTML parts and a handful of headers from
// an IMAP BODY[] payload, with transfer-encoding normalization. It is
// hand-rolled against the standard library rather than delegated to a
// general MIME library (see the internal/mimeparse note in DESIGN.md):
// the state machine below is itself the specified, tested behavior.
package mimeparse

import (
	"bufio"
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// state names the five parser states plus the two header sub-states
// for the part currently being collected.
type state int

const (
	stateHeaderKey state = iota
	stateHeaderValue
	stateBlankLine
	stateTextHeader
	stateText
	stateHTMLHeader
	stateHTML
)

// ParsedBody is the result of parsing a message's BODY[] payload:
// selected headers plus the extracted text/html parts, both base64
// encoded unless the declared transfer encoding already was base64.
type ParsedBody struct {
	Date        string // RFC 3339
	Received    string // RFC 3339
	To          string
	DeliveredTo string
	From        string
	Subject     string
	MessageID   string
	Text        string
	HTML        string
}

var (
	boundaryPattern = regexp.MustCompile(`boundary="(.*)"`)
	datePattern     = regexp.MustCompile(`\w{1,3}, \d{1,2} \w{1,3} \d{4} \d{2}:\d{2}:\d{2} ([+-]\d{4})?(\w{3})?`)
	escapePattern   = regexp.MustCompile(`=(..)`)
)

const epochRFC2822 = "Thu, 1 Jan 1970 00:00:00 +0000"

// Parse runs the five-state machine over body and returns the
// extracted headers and parts. Parse is pure and therefore trivially
// idempotent: calling it twice on the same bytes yields an identical
// ParsedBody.
func Parse(body string) ParsedBody {
	boundary := ""
	if m := boundaryPattern.FindStringSubmatch(body); m != nil {
		boundary = m[1]
	}

	headers := make(map[string]string)
	var textBuf, htmlBuf strings.Builder
	textEncoding := "utf-8"
	htmlEncoding := "utf-8"

	lines := splitLines(body)
	st := stateHeaderKey
	headerKey := ""

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		switch st {
		case stateHeaderKey:
			if line == "" {
				st = stateBlankLine
				continue
			}
			key, value := splitHeader(line)
			headerKey = key
			headers[headerKey] += strings.TrimSpace(value)
			st = stateHeaderValue

		case stateHeaderValue:
			if line == "" {
				st = stateBlankLine
				continue
			}
			if looksLikeHeaderStart(line) {
				st = stateHeaderKey
				i--
				continue
			}
			headers[headerKey] += strings.TrimSpace(line)

		case stateTextHeader:
			if line == "" || looksLikeBodyStart(line) {
				st = stateText
				continue
			}
			if key, value := splitHeader(line); strings.TrimSpace(key) == "Content-Transfer-Encoding" {
				textEncoding = strings.TrimSpace(value)
			}

		case stateText:
			if strings.HasPrefix(line, "--"+boundary) {
				st = stateBlankLine
				continue
			}
			textBuf.WriteString(line)

		case stateHTMLHeader:
			if line == "" || looksLikeBodyStart(line) {
				st = stateHTML
				continue
			}
			if key, value := splitHeader(line); strings.TrimSpace(key) == "Content-Transfer-Encoding" {
				htmlEncoding = strings.TrimSpace(value)
			}

		case stateHTML:
			if strings.HasPrefix(line, "--"+boundary) {
				st = stateBlankLine
				continue
			}
			htmlBuf.WriteString(line)

		case stateBlankLine:
			switch {
			case strings.HasPrefix(line, "Content-Type: text/plain"):
				st = stateTextHeader
			case strings.HasPrefix(line, "Content-Type: text/html"):
				st = stateHTMLHeader
			}
		}
	}

	html := normalizeHTML(htmlBuf.String())
	text := textBuf.String()

	if textEncoding != "base64" {
		text = base64.StdEncoding.EncodeToString([]byte(text))
	}
	if htmlEncoding != "base64" {
		html = base64.StdEncoding.EncodeToString([]byte(html))
	}

	return ParsedBody{
		Date:        parseTimeRFC2822(headers["Date"]).Format(time.RFC3339),
		Received:    parseTimeRFC2822(headers["Received"]).Format(time.RFC3339),
		To:          headers["To"],
		DeliveredTo: headers["Delivered-To"],
		From:        headers["From"],
		Subject:     headers["Subject"],
		MessageID:   headers["Message-ID"],
		Text:        text,
		HTML:        html,
	}
}

// splitLines mirrors str::lines(): split on "\n" and strip a trailing "\r".
func splitLines(body string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

// splitHeader splits a header line on the first colon, returning
// ("","") if none is present.
func splitHeader(line string) (string, string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", ""
	}
	return line[:idx], line[idx+1:]
}

// looksLikeHeaderStart is the HeaderValue→HeaderKey re-entry rule: a
// continuation line never starts with an alphabetic character followed
// by a colon later in the line, so that shape signals a new header.
func looksLikeHeaderStart(line string) bool {
	return strings.Contains(line, ":") && startsAlphabetic(line)
}

// looksLikeBodyStart is the deliberately conservative header/body
// disambiguation rule: a line with no colon that starts with a letter
// is treated as the first line of the part body rather than a header
// continuation. Headers folded with leading punctuation are a known
// limitation of this rule.
func looksLikeBodyStart(line string) bool {
	return !strings.Contains(line, ":") && startsAlphabetic(line)
}

func startsAlphabetic(s string) bool {
	if s == "" {
		return false
	}
	r := rune(s[0])
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// normalizeHTML rewrites every "=" plus the two characters after it:
// "=3D" becomes a literal "=", any other "=XX" becomes "XX" (the "="
// is dropped and XX is not hex-decoded). It then decodes a small set
// of HTML entities. Only the html part receives this treatment; text
// is base64-encoded as collected.
func normalizeHTML(html string) string {
	html = escapePattern.ReplaceAllStringFunc(html, func(m string) string {
		captured := m[1:]
		if captured == "3D" {
			return "="
		}
		return captured
	})
	html = strings.ReplaceAll(html, "&#39;", "'")
	html = strings.ReplaceAll(html, "&amp;", "&")
	html = strings.ReplaceAll(html, "&copy;", "©")
	return html
}

// parseTimeRFC2822 matches the RFC-2822-ish pattern anywhere in s and
// parses it; unparsable or absent values fall back to the epoch.
func parseTimeRFC2822(s string) time.Time {
	candidate := datePattern.FindString(s)
	if candidate == "" {
		candidate = epochRFC2822
	}
	t, err := mail.ParseDate(candidate)
	if err != nil {
		t, _ = mail.ParseDate(epochRFC2822)
	}
	return t
}
