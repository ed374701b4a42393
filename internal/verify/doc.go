// Package verify classifies rendered article pages against an expected title.
//
// A Checker owns one isolated Page per attempt, navigates it, and runs the
// ordered classifier (heading, document title, bot-block domain heuristic).
// Check never returns an error: navigation failures and page errors resolve to
// an unreachable Outcome so every WorkItem yields exactly one Outcome.
package verify
