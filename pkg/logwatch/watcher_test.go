package logwatch

import (
	"encoding/json"
	"testing"
)

func TestAccessEntryParsesCaddyLogLine(t *testing.T) {
	line := `{"level":"info","ts":1756500000.123,"msg":"handled request","request":{"remote_ip":"127.0.0.1","proto":"HTTP/2.0","method":"GET","host":"myblog.test","uri":"/index.html"},"duration":0.0042,"size":1024,"status":200}`

	var entry AccessEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if entry.Status != 200 {
		t.Errorf("status = %d, want 200", entry.Status)
	}
	if entry.Request.Method != "GET" {
		t.Errorf("method = %q, want GET", entry.Request.Method)
	}
	if entry.Request.Host != "myblog.test" {
		t.Errorf("host = %q, want myblog.test", entry.Request.Host)
	}
	if entry.Size != 1024 {
		t.Errorf("size = %d, want 1024", entry.Size)
	}
}
