package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/prodsearch/internal/domain/search/filter"
)

// knnQuery renders "<prefilter>=>[KNN k @vector $BLOB]".
func knnQuery(expr filter.Expression, k int) string {
	prefilter := "*"
	if f := buildFilter(expr); f != "" {
		prefilter = "(" + f + ")"
	}
	return fmt.Sprintf("%s=>[KNN %d @vector $BLOB]", prefilter, k)
}

// buildFilter renders expr in query syntax; juxtaposed clauses are ANDed.
func buildFilter(expr filter.Expression) string {
	clauses := make([]string, 0, len(expr.Must()))
	for _, c := range expr.Must() {
		switch {
		case c.IsMatch():
			clauses = append(clauses, fmt.Sprintf("@%s:{%s}", c.Key(), tagEscaper.Replace(c.Match())))
		case c.IsRange():
			r := c.Range()
			clauses = append(clauses, fmt.Sprintf("@%s:[%s %s]", c.Key(), bound(r.GTE(), "-inf"), bound(r.LTE(), "+inf")))
		}
	}
	return strings.Join(clauses, " ")
}

func bound(v *float64, open string) string {
	if v == nil {
		return open
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// tagSpecials must be backslash-escaped inside a TAG value.
const tagSpecials = `\,.<>{}[]"':;!@#$%^&*()-+=~|/ `

var tagEscaper = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(tagSpecials))
	for _, r := range tagSpecials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}()
