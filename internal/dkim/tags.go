package dkim

import (
	"fmt"
	"strings"
)

// tagList is the parsed form of a DKIM-Signature tag=value list (RFC 6376
// §3.2). Unlike a tag-list in a DNS TXT record, a duplicate tag here is not
// an error: later tags overwrite earlier ones, as required of the header
// field parser (this specification's tag=value grammar deliberately differs
// from the DNS-record grammar chasquid's dkim package was written against).
type tagList map[string]string

func parseTagList(s string) (tagList, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")

	tags := make(tagList)
	for _, tv := range strings.Split(s, ";") {
		tv = strings.TrimSpace(tv)
		if tv == "" {
			continue
		}

		name, value, found := strings.Cut(tv, "=")
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrBadTag, tv)
		}

		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if name == "" {
			return nil, fmt.Errorf("%w: %q", ErrBadTag, tv)
		}

		tags[name] = value
	}

	return tags, nil
}

// eatWhitespace strips all whitespace, used for the base64 tags (b=, bh=)
// and the colon-separated lists (h=, q=), which may be folded across
// multiple lines in the wire header.
var eatWhitespace = strings.NewReplacer(" ", "", "\t", "", "\r", "", "\n", "")
