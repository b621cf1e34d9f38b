// Package runinfo describes the CI job a fuzzing run belongs to, so that an
// archived failure can be traced back to the build that found it.
package runinfo

import (
	"regexp"
	"strings"
)

// Info is CI metadata attached to failure summaries.
type Info struct {
	CI          bool   `json:"ci,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Job         string `json:"job,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	PullRequest string `json:"pull_request,omitempty"`
	BuildURL    string `json:"build_url,omitempty"`
}

// LookupFunc reads one environment variable; os.LookupEnv in production.
type LookupFunc func(key string) (string, bool)

var pullRef = regexp.MustCompile(`^refs/pull/([0-9]+)/`)

type source struct {
	marker   string
	provider string
	fields   map[*string][]string
}

// FromEnv detects the CI system from the environment. LANCER_CI_* variables
// take precedence over what was detected. It returns nil outside of CI.
func FromEnv(lookup LookupFunc) *Info {
	get := func(keys ...string) string {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}
	var info Info
	sources := []source{
		{marker: "GITHUB_ACTIONS", provider: "github_actions", fields: map[*string][]string{
			&info.Repository: {"GITHUB_REPOSITORY"},
			&info.Branch:     {"GITHUB_HEAD_REF", "GITHUB_REF_NAME"},
			&info.Commit:     {"GITHUB_SHA"},
			&info.Job:        {"GITHUB_JOB"},
			&info.RunID:      {"GITHUB_RUN_ID"},
		}},
		{marker: "GITLAB_CI", provider: "gitlab_ci", fields: map[*string][]string{
			&info.Repository: {"CI_PROJECT_PATH"},
			&info.Branch:     {"CI_COMMIT_REF_NAME"},
			&info.Commit:     {"CI_COMMIT_SHA"},
			&info.Job:        {"CI_JOB_NAME"},
			&info.RunID:      {"CI_PIPELINE_ID"},
			&info.BuildURL:   {"CI_JOB_URL"},
		}},
		{marker: "BUILDKITE", provider: "buildkite", fields: map[*string][]string{
			&info.Repository: {"BUILDKITE_REPO"},
			&info.Branch:     {"BUILDKITE_BRANCH"},
			&info.Commit:     {"BUILDKITE_COMMIT"},
			&info.RunID:      {"BUILDKITE_BUILD_ID"},
			&info.BuildURL:   {"BUILDKITE_BUILD_URL"},
		}},
	}
	for _, src := range sources {
		if !truthy(get(src.marker)) {
			continue
		}
		info.CI = true
		info.Provider = src.provider
		for dst, keys := range src.fields {
			*dst = get(keys...)
		}
		break
	}
	if info.Provider == "github_actions" && info.Repository != "" && info.RunID != "" {
		server := get("GITHUB_SERVER_URL")
		if server == "" {
			server = "https://github.com"
		}
		info.BuildURL = strings.TrimRight(server, "/") + "/" + info.Repository + "/actions/runs/" + info.RunID
	}
	if info.PullRequest == "" {
		if m := pullRef.FindStringSubmatch(get("GITHUB_REF")); m != nil {
			info.PullRequest = m[1]
		}
	}

	overrides := map[*string]string{
		&info.Provider:    "LANCER_CI_PROVIDER",
		&info.Repository:  "LANCER_CI_REPOSITORY",
		&info.Branch:      "LANCER_CI_BRANCH",
		&info.Commit:      "LANCER_CI_COMMIT",
		&info.Job:         "LANCER_CI_JOB",
		&info.RunID:       "LANCER_CI_RUN_ID",
		&info.PullRequest: "LANCER_CI_PULL_REQUEST",
		&info.BuildURL:    "LANCER_CI_BUILD_URL",
	}
	for dst, key := range overrides {
		if v := get(key); v != "" {
			*dst = v
			info.CI = true
		}
	}
	if v := get("LANCER_CI"); v != "" {
		info.CI = truthy(v)
	} else if truthy(get("CI")) {
		info.CI = true
	}
	info.Branch = strings.TrimPrefix(strings.TrimPrefix(info.Branch, "refs/heads/"), "origin/")
	if !info.CI {
		return nil
	}
	if info.Provider == "" {
		info.Provider = "generic"
	}
	return &info
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
