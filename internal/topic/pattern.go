package topic

import (
	"regexp"
	"strings"
)

const (
	groupUser   = "user"
	groupDevice = "device"
)

// pattern is a compiled topic template.
type pattern struct {
	raw string
	re  *regexp.Regexp
}

// compilePattern turns a template into an anchored regular expression.
// The first occurrence of each placeholder becomes a named [^/]* group,
// later occurrences match [^/]* without capturing. Literal text is quoted.
// An empty template compiles to nil and never matches.
func compilePattern(raw string) (*pattern, error) {
	if raw == "" {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("^")
	seenUser, seenDevice := false, false
	rest := raw
	for rest != "" {
		iu := strings.Index(rest, PlaceholderUser)
		id := strings.Index(rest, PlaceholderDevice)

		next, isUser := -1, false
		switch {
		case iu >= 0 && (id < 0 || iu < id):
			next, isUser = iu, true
		case id >= 0:
			next = id
		}
		if next < 0 {
			b.WriteString(regexp.QuoteMeta(rest))
			break
		}

		b.WriteString(regexp.QuoteMeta(rest[:next]))
		if isUser {
			if seenUser {
				b.WriteString(`[^/]*`)
			} else {
				b.WriteString(`(?P<` + groupUser + `>[^/]*)`)
				seenUser = true
			}
			rest = rest[next+len(PlaceholderUser):]
		} else {
			if seenDevice {
				b.WriteString(`[^/]*`)
			} else {
				b.WriteString(`(?P<` + groupDevice + `>[^/]*)`)
				seenDevice = true
			}
			rest = rest[next+len(PlaceholderDevice):]
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	return &pattern{raw: raw, re: re}, nil
}

// match parses a concrete topic against the pattern.
func (p *pattern) match(concrete string) (userName, deviceID string, ok bool) {
	if p == nil {
		return "", "", false
	}
	m := p.re.FindStringSubmatch(concrete)
	if m == nil {
		return "", "", false
	}
	if i := p.re.SubexpIndex(groupUser); i > 0 {
		userName = m[i]
	}
	if i := p.re.SubexpIndex(groupDevice); i > 0 {
		deviceID = m[i]
	}
	return userName, deviceID, true
}

// Substitute fills the placeholders of a template in a single pass, so a
// user name containing "<device_id>" is never substituted again.
func Substitute(template, userName, deviceID string) string {
	if template == "" {
		return ""
	}
	return strings.NewReplacer(PlaceholderUser, userName, PlaceholderDevice, deviceID).Replace(template)
}

// ParseTopic matches a concrete topic against a template and returns the
// user name and device id found in the placeholder positions.
// Matching is anchored and each placeholder matches [^/]*.
func ParseTopic(template, concrete string) (userName, deviceID string, ok bool) {
	p, err := compilePattern(template)
	if err != nil {
		return "", "", false
	}
	return p.match(concrete)
}
