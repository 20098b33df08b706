package feed

import (
	"fmt"
)

// Format selects one of the rendered feed document flavors.
type Format string

const (
	FormatRSS  Format = "rss"
	FormatAtom Format = "atom"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatRSS, FormatAtom, FormatJSON:
		return Format(s), nil
	case "":
		return FormatRSS, nil
	default:
		return "", fmt.Errorf("unknown feed format: %s", s)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatAtom:
		return "application/atom+xml; charset=utf-8"
	case FormatJSON:
		return "application/feed+json; charset=utf-8"
	default:
		return "application/rss+xml; charset=utf-8"
	}
}

// Documents holds the three rendered feed flavors for one category. All are
// generated together since they derive from the same record set.
type Documents struct {
	RSS  string
	Atom string
	JSON string
}

func (d Documents) Get(format Format) string {
	switch format {
	case FormatAtom:
		return d.Atom
	case FormatJSON:
		return d.JSON
	default:
		return d.RSS
	}
}
