package normalize

import (
	"strings"
)

// severityOverrideKeys are the explicit override properties checked on a
// result's (then its rule's) property bag, in priority order.
var severityOverrideKeys = []string{"severity", "security-severity", "securitySeverity", "priority"}

// deriveSeverity resolves a result's severity: explicit override properties
// first, then the SARIF level enum as a fallback.
func deriveSeverity(props []map[string]any, level string) Severity {
	for _, key := range severityOverrideKeys {
		for _, bag := range props {
			if bag == nil {
				continue
			}

			value, ok := bag[key]
			if !ok || value == nil {
				continue
			}

			if sev, ok := severityFromValue(value); ok {
				return sev
			}
		}
	}

	return severityFromLevel(level)
}

// severityFromValue maps an override property value to a severity. Numeric
// values map by CVSS-style thresholds, strings by substring in priority order.
func severityFromValue(value any) (Severity, bool) {
	if score, ok := numericValue(value); ok {
		switch {
		case score >= 9:
			return SeverityCritical, true
		case score >= 7:
			return SeverityHigh, true
		case score >= 4:
			return SeverityMedium, true
		case score > 0:
			return SeverityLow, true
		default:
			return SeverityInfo, true
		}
	}

	s, ok := value.(string)
	if !ok {
		return "", false
	}

	lowered := strings.ToLower(strings.TrimSpace(s))
	if lowered == "" {
		return "", false
	}

	// Numeric strings ("9.8") go through the threshold mapping too.
	if score, err := parseFloat(lowered); err == nil {
		return severityFromValue(score)
	}

	switch {
	case strings.Contains(lowered, "critical"):
		return SeverityCritical, true
	case strings.Contains(lowered, "high"), strings.Contains(lowered, "error"):
		return SeverityHigh, true
	case strings.Contains(lowered, "medium"), strings.Contains(lowered, "moderate"),
		strings.Contains(lowered, "warning"):
		return SeverityMedium, true
	case strings.Contains(lowered, "low"):
		return SeverityLow, true
	case strings.Contains(lowered, "informational"), strings.Contains(lowered, "info"),
		strings.Contains(lowered, "note"), strings.Contains(lowered, "none"):
		return SeverityInfo, true
	default:
		return "", false
	}
}

// severityFromLevel maps the SARIF level enum when no override matched.
func severityFromLevel(level string) Severity {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return SeverityHigh
	case "warning":
		return SeverityMedium
	case "note", "none":
		return SeverityInfo
	default:
		return SeverityMedium
	}
}

func numericValue(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
