package usecase

import (
	"github.com/pwaforge/manifestd"
)

// GroupByMember folds findings into one IssueGroup per distinct member,
// creating a group on first occurrence and appending subsequent issues to
// it. Member order follows first appearance in the input; issue order
// within a group follows the input. No finding is dropped.
func GroupByMember(findings []manifestd.Finding) []manifestd.IssueGroup {
	groups := []manifestd.IssueGroup{}
	index := map[string]int{}

	for _, f := range findings {
		issue := manifestd.Issue{
			Description: f.Description,
			Platform:    f.Platform,
			Code:        f.Code,
		}
		if i, ok := index[f.Member]; ok {
			groups[i].Issues = append(groups[i].Issues, issue)
			continue
		}
		index[f.Member] = len(groups)
		groups = append(groups, manifestd.IssueGroup{
			Member: f.Member,
			Issues: []manifestd.Issue{issue},
		})
	}

	return groups
}

// FilterLevel selects the findings of one severity level, preserving order.
func FilterLevel(findings []manifestd.Finding, level string) []manifestd.Finding {
	out := []manifestd.Finding{}
	for _, f := range findings {
		if f.Level == level {
			out = append(out, f)
		}
	}
	return out
}
