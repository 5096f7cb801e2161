package fallback

import "testing"

func TestUnsupported_ServeAloneIsFine(t *testing.T) {
	if Unsupported([]string{"serve"}) {
		t.Error("serve alone should not be unsupported")
	}
}

func TestUnsupported_DaemonAloneIsFine(t *testing.T) {
	if Unsupported([]string{"--daemon"}) {
		t.Error("--daemon alone should not be unsupported")
	}
}

func TestUnsupported_ServeAndDaemonIsUnsupported(t *testing.T) {
	if !Unsupported([]string{"serve", "-d"}) {
		t.Error("serve -d should be unsupported")
	}
	if !Unsupported([]string{"serve", "--daemon"}) {
		t.Error("serve --daemon should be unsupported")
	}
}

func TestUnsupported_StopsAtDoubleDash(t *testing.T) {
	if Unsupported([]string{"status", "--", "serve", "-d"}) {
		t.Error("tokens after -- should not be scanned")
	}
}

func TestUnsupported_OrdinaryCommandIsSupported(t *testing.T) {
	if Unsupported([]string{"status", "-v"}) {
		t.Error("an ordinary command should be supported")
	}
}
