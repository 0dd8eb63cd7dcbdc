package domain

import (
	"fmt"
	"strings"
)

// ClassificationRule maps a probe reply substring to a resulting status.
// Rules are evaluated in order; the first match wins.
type ClassificationRule struct {
	Substring string
	Status    Status
	Details   string // optional fixed details; empty means use the raw reply
}

// DefaultClassificationRules is the ordered rule table applied to the probe
// reply. Anything unmatched falls back to StatusError with the reply attached.
func DefaultClassificationRules() []ClassificationRule {
	return []ClassificationRule{
		{Substring: "good news", Status: StatusOK, Details: "Account is free from limitations."},
		{Substring: "no limits", Status: StatusOK, Details: "Account is free from limitations."},
		{Substring: "is free", Status: StatusOK, Details: "Account is free from limitations."},
		{Substring: "your account was blocked", Status: StatusBanned, Details: "Account is banned."},
		{Substring: "is now limited until", Status: StatusLimited},
		{Substring: "is limited", Status: StatusRestricted, Details: "Account has some initial limitations."},
		{Substring: "some limitations", Status: StatusRestricted, Details: "Account has some initial limitations."},
	}
}

// ParseClassificationRules parses an externally configured rule table of the
// form "substring=status;substring=status". Invalid entries are skipped so a
// bad setting never disables classification entirely.
func ParseClassificationRules(raw string) []ClassificationRule {
	var rules []ClassificationRule
	for _, entry := range strings.Split(raw, ";") {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		sub := strings.TrimSpace(parts[0])
		status := Status(strings.TrimSpace(parts[1]))
		if sub == "" {
			continue
		}
		switch status {
		case StatusOK, StatusBanned, StatusLimited, StatusRestricted, StatusError:
			rules = append(rules, ClassificationRule{Substring: strings.ToLower(sub), Status: status})
		}
	}
	return rules
}

const maxVerdictDetails = 100

// ClassifyReply resolves a probe reply against the rule table.
func ClassifyReply(rules []ClassificationRule, reply string) Verdict {
	lower := strings.ToLower(reply)
	for _, rule := range rules {
		if strings.Contains(lower, rule.Substring) {
			details := rule.Details
			if details == "" {
				details = reply
			}
			return Verdict{Status: rule.Status, Details: details}
		}
	}
	truncated := reply
	if len(truncated) > maxVerdictDetails {
		truncated = truncated[:maxVerdictDetails] + "..."
	}
	return Verdict{Status: StatusError, Details: fmt.Sprintf("Unknown probe response: %s", truncated)}
}
