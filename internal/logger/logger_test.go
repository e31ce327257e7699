package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfo_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	Info("commit finished", KeyTxID, 7, KeyBytes, 128)

	out := buf.String()
	if !strings.Contains(out, "commit finished") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "tx_id=7") || !strings.Contains(out, "bytes=128") {
		t.Errorf("output missing fields: %q", out)
	}
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("output missing level: %q", out)
	}
}

func TestSetLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")

	Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug line emitted at INFO level: %q", buf.String())
	}

	SetLevel("DEBUG")
	Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug line missing at DEBUG level: %q", buf.String())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer SetFormat("text")

	Info("structured", KeyFile, "/tmp/x")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "structured" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec[KeyFile] != "/tmp/x" {
		t.Errorf("%s = %v", KeyFile, rec[KeyFile])
	}
}

func TestSetLevel_IgnoresUnknown(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")

	SetLevel("SHOUTING")
	Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("unknown level changed filtering: %q", buf.String())
	}
}
