package gateway

import (
	"net/url"
	"strings"
)

// QueryOption adds one filter, ordering or projection to a table request.
// Options compose; the zero set selects every row with every column.
type QueryOption func(url.Values)

// Eq filters rows where column equals value exactly (case-sensitive).
func Eq(column, value string) QueryOption {
	return func(v url.Values) {
		v.Set(column, "eq."+value)
	}
}

// In filters rows where column is one of values. An empty list matches
// nothing; callers should short-circuit before issuing the request.
func In(column string, values []string) QueryOption {
	return func(v url.Values) {
		quoted := make([]string, len(values))
		for i, val := range values {
			quoted[i] = `"` + val + `"`
		}
		v.Set(column, "in.("+strings.Join(quoted, ",")+")")
	}
}

// OrContains filters rows where any of the named columns contains query as
// a case-insensitive substring.
func OrContains(query string, columns ...string) QueryOption {
	return func(v url.Values) {
		pattern := "*" + sanitizePattern(query) + "*"
		parts := make([]string, len(columns))
		for i, col := range columns {
			parts[i] = col + ".ilike." + pattern
		}
		v.Set("or", "("+strings.Join(parts, ",")+")")
	}
}

// OrderBy sorts the result by column, descending when desc is true.
func OrderBy(column string, desc bool) QueryOption {
	return func(v url.Values) {
		dir := "asc"
		if desc {
			dir = "desc"
		}
		v.Set("order", column+"."+dir)
	}
}

// Columns sets the projection, including embedded joins
// (e.g. "*,profiles(display_name)").
func Columns(selection string) QueryOption {
	return func(v url.Values) {
		v.Set("select", selection)
	}
}

// sanitizePattern strips characters that would break the filter grammar out
// of a free-text query. Matching still happens server-side on the rest.
func sanitizePattern(q string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '%':
			return -1
		}
		return r
	}, q)
}
