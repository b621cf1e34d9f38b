package runinfo

import "testing"

func envOf(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestFromEnvGitHubActions(t *testing.T) {
	info := FromEnv(envOf(map[string]string{
		"GITHUB_ACTIONS":    "true",
		"GITHUB_REPOSITORY": "acme/lancer",
		"GITHUB_HEAD_REF":   "refs/heads/feature/x",
		"GITHUB_REF":        "refs/pull/108/merge",
		"GITHUB_SHA":        "deadbeef",
		"GITHUB_RUN_ID":     "123456",
	}))
	if info == nil || !info.CI || info.Provider != "github_actions" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Branch != "feature/x" || info.PullRequest != "108" || info.Commit != "deadbeef" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.BuildURL != "https://github.com/acme/lancer/actions/runs/123456" {
		t.Fatalf("build_url=%q", info.BuildURL)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	info := FromEnv(envOf(map[string]string{
		"GITLAB_CI":          "true",
		"CI_COMMIT_SHA":      "abc",
		"LANCER_CI_COMMIT":   "def",
		"LANCER_CI_PROVIDER": "nightly",
	}))
	if info == nil || info.Commit != "def" || info.Provider != "nightly" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestFromEnvOutsideCI(t *testing.T) {
	if info := FromEnv(envOf(nil)); info != nil {
		t.Fatalf("expected nil, got %+v", info)
	}
	if info := FromEnv(envOf(map[string]string{"GITHUB_ACTIONS": "true", "LANCER_CI": "false"})); info != nil {
		t.Fatalf("LANCER_CI=false must disable detection, got %+v", info)
	}
}

func TestFromEnvGenericCI(t *testing.T) {
	info := FromEnv(envOf(map[string]string{"CI": "1"}))
	if info == nil || info.Provider != "generic" {
		t.Fatalf("unexpected info %+v", info)
	}
}
