package kalshi

import (
	"net/url"
	"strconv"
	"strings"
)

// Params builds query strings, dropping unset values.
type Params url.Values

// Set adds key=value unless value is blank.
func (p Params) Set(key, value string) Params {
	if value = strings.TrimSpace(value); value != "" {
		url.Values(p).Set(key, value)
	}
	return p
}

// SetInt adds key=value unless value is zero.
func (p Params) SetInt(key string, value int64) Params {
	if value != 0 {
		url.Values(p).Set(key, strconv.FormatInt(value, 10))
	}
	return p
}

// SetBool adds key=true when value is set.
func (p Params) SetBool(key string, value bool) Params {
	if value {
		url.Values(p).Set(key, "true")
	}
	return p
}

// Values returns the params as url.Values.
func (p Params) Values() url.Values { return url.Values(p) }
