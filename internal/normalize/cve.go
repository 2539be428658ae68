package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var cvePattern = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,7}`)

// collectCVEs scans the given texts and property bags for CVE identifiers,
// returning the deduplicated, upper-cased set in ordinal order.
func collectCVEs(texts []string, bags []map[string]any) []string {
	seen := map[string]struct{}{}

	for _, text := range texts {
		scanCVEText(text, seen)
	}

	for _, bag := range bags {
		for _, value := range bag {
			scanCVEValue(value, seen)
		}
	}

	if len(seen) == 0 {
		return nil
	}

	out := make([]string, 0, len(seen))
	for cve := range seen {
		out = append(out, cve)
	}

	sort.Strings(out)

	return out
}

// scanCVEValue walks a decoded JSON value, recursing into arrays and object
// values only. The value model is closed: anything that is not a string,
// array or object contributes nothing.
func scanCVEValue(value any, seen map[string]struct{}) {
	switch v := value.(type) {
	case string:
		scanCVEText(v, seen)
	case []any:
		for _, elem := range v {
			scanCVEValue(elem, seen)
		}
	case map[string]any:
		for _, elem := range v {
			scanCVEValue(elem, seen)
		}
	}
}

func scanCVEText(text string, seen map[string]struct{}) {
	for _, match := range cvePattern.FindAllString(text, -1) {
		seen[strings.ToUpper(match)] = struct{}{}
	}
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
