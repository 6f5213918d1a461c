package hostsfile

import (
	"strings"
	"testing"

	"github.com/sitedock/sitedock/pkg/registry"
)

const baseHosts = "127.0.0.1 localhost\n::1 localhost\n"

func servedDomainSite(domain string) registry.Site {
	return registry.Site{
		ID:     "x",
		Name:   "x",
		Mode:   registry.ModeCustomDomain,
		Domain: domain,
		Served: true,
	}
}

func TestDesired_OnlyServedCustomDomains(t *testing.T) {
	sites := []registry.Site{
		{ID: "a", Mode: registry.ModeLoopbackPort, Port: 3000, Served: true},
		{ID: "b", Mode: registry.ModeCustomDomain, Domain: "foo.test", Served: true},
		{ID: "c", Mode: registry.ModeCustomDomain, Domain: "bar.test", Served: false},
	}

	lines := Desired(sites)
	if len(lines) != 1 || lines[0] != "127.0.0.1 foo.test" {
		t.Errorf("Expected single alias line for foo.test, got %v", lines)
	}
}

func TestRender_AppendsBlock(t *testing.T) {
	out := Render(baseHosts, Desired([]registry.Site{servedDomainSite("foo.test")}))

	if !strings.Contains(out, BeginMarker+"\n127.0.0.1 foo.test\n"+EndMarker) {
		t.Errorf("Expected a marker-delimited block, got:\n%s", out)
	}
	if !strings.HasPrefix(out, baseHosts) {
		t.Error("Existing content must be preserved above the block")
	}
}

func TestRender_Idempotent(t *testing.T) {
	lines := Desired([]registry.Site{servedDomainSite("foo.test")})

	once := Render(baseHosts, lines)
	twice := Render(once, lines)
	if once != twice {
		t.Errorf("Re-rendering the same block must be idempotent.\nfirst:\n%s\nsecond:\n%s", once, twice)
	}
	if strings.Count(twice, "127.0.0.1 foo.test") != 1 {
		t.Error("Alias line must appear exactly once")
	}
}

func TestRender_EmptyRemovesBlockEntirely(t *testing.T) {
	withBlock := Render(baseHosts, Desired([]registry.Site{servedDomainSite("foo.test")}))

	// Demote the site to unserved and resync.
	out := Render(withBlock, nil)

	if strings.Contains(out, BeginMarker) || strings.Contains(out, EndMarker) {
		t.Errorf("No sentinel markers may remain, got:\n%s", out)
	}
	if strings.Contains(out, "foo.test") {
		t.Errorf("Alias line must be removed, got:\n%s", out)
	}
	if !strings.Contains(out, "127.0.0.1 localhost") {
		t.Error("Unrelated entries must be preserved")
	}
}

func TestRender_ReplacesStaleBlock(t *testing.T) {
	stale := baseHosts + BeginMarker + "\n127.0.0.1 old.test\n" + EndMarker + "\n"

	out := Render(stale, Desired([]registry.Site{servedDomainSite("new.test")}))
	if strings.Contains(out, "old.test") {
		t.Errorf("Stale alias must be dropped, got:\n%s", out)
	}
	if !strings.Contains(out, "127.0.0.1 new.test") {
		t.Errorf("New alias must be present, got:\n%s", out)
	}
}

func TestShellQuote(t *testing.T) {
	quoted := shellQuote("/tmp/it's here")
	if quoted != `'/tmp/it'\''s here'` {
		t.Errorf("Unexpected quoting: %s", quoted)
	}
}
