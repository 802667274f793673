// File: internal/gitops/branch.go
package gitops

import (
	"regexp"
	"strings"
)

var branchSpaceRe = regexp.MustCompile(`\s+`)
var branchStripRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// HealingBranchName builds the externally imposed branch name
// <TEAM>_<LEADER>_AI_Fix: spaces collapse to underscores, every other
// non-alphanumeric character is stripped, and the identifiers are
// upper-cased. The "_AI_Fix" suffix is a fixed contract.
func HealingBranchName(teamName, leaderName string) string {
	return sanitizeIdentifier(teamName) + "_" + sanitizeIdentifier(leaderName) + "_AI_Fix"
}

func sanitizeIdentifier(s string) string {
	s = branchSpaceRe.ReplaceAllString(strings.TrimSpace(s), "_")
	s = branchStripRe.ReplaceAllString(s, "")
	return strings.ToUpper(s)
}
