package lifecycle

import (
	"strings"

	"devinflow/internal/workflow"
)

// DefaultKnownRepoHost is the host prefix that marks a repo value as already
// absolute even without a scheme.
const DefaultKnownRepoHost = "dev.azure.com"

// ExpandRepoURL turns a step's repo value into a full repository URL.
//
// Values containing "://" or starting with knownHost pass through unchanged.
// Anything else is appended to baseURL, which gets a trailing slash if it
// lacks one. An empty repo returns "".
func ExpandRepoURL(repo, baseURL, knownHost string) string {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return ""
	}
	if knownHost == "" {
		knownHost = DefaultKnownRepoHost
	}
	if strings.Contains(repo, "://") || strings.HasPrefix(repo, knownHost) {
		return repo
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + repo
}

// RepoTracker carries the inherited repo across a sequential step loop.
//
// The zero value is ready to use. A tracker belongs to one workflow run and
// must not be shared between goroutines.
type RepoTracker struct {
	inherited string
}

// Resolve returns the effective repo value for the step at index and updates
// the inherited value.
//
// The first step only establishes inheritance. A later step with no repo
// adopts the inherited value, "none" clears it, and a concrete repo replaces
// it. The returned value is unexpanded; "" means no repo.
func (t *RepoTracker) Resolve(index int, step workflow.Step) string {
	switch {
	case step.IsRepoNone():
		if index > 0 {
			t.inherited = ""
		}
		return ""
	case strings.TrimSpace(step.Repo) != "":
		t.inherited = step.Repo
		return step.Repo
	case index == 0:
		return ""
	default:
		return t.inherited
	}
}

// ResolveRepos returns the effective, unexpanded repo of each step. The input
// is not modified.
func ResolveRepos(steps []workflow.Step) []string {
	var tracker RepoTracker
	out := make([]string, len(steps))
	for i, step := range steps {
		out[i] = tracker.Resolve(i, step)
	}
	return out
}
