package core

import "time"

// Filter is a resolved, authorization-scoped expense predicate. All present
// conditions apply conjunctively. A nil Owner means no owner restriction
// (only privileged callers can reach that state).
type Filter struct {
	Start   *time.Time
	End     *time.Time
	Project *Project
	Owner   *User

	// MatchNone marks the filter of an unauthenticated caller: a normal,
	// reportable empty result, not an error.
	MatchNone bool
}

// OwnerScope names the owner visibility of the filter for export filenames:
// "ALL" when unrestricted, else the owner's username.
func (f Filter) OwnerScope() string {
	if f.Owner == nil {
		return "ALL"
	}
	return f.Owner.Username
}

// Period names the resolved date range: "<start>_to_<end>" with absent
// bounds left empty, or "all" when neither bound is given.
func (f Filter) Period() string {
	if f.Start == nil && f.End == nil {
		return "all"
	}
	var start, end string
	if f.Start != nil {
		start = f.Start.Format("2006-01-02")
	}
	if f.End != nil {
		end = f.End.Format("2006-01-02")
	}
	p := start + "_to_" + end
	for len(p) > 0 && p[0] == '_' {
		p = p[1:]
	}
	for len(p) > 0 && p[len(p)-1] == '_' {
		p = p[:len(p)-1]
	}
	if p == "" || p == "to" {
		return "all"
	}
	return p
}
