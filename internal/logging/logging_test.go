package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestL_NoopBeforeInit(t *testing.T) {
	Close()

	// Must not panic and must not be nil.
	L().Infow("ignored", "k", "v")
	Named("syncer").Errorw("ignored")
}

func TestInit_WritesLogFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init(Options{Dir: dir}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(Close)

	L().Infow("cycle finished", "state", "DONE")
	L().Debugw("hidden at info level")
	Close()

	content, err := os.ReadFile(Path(dir))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "launcher log started") {
		t.Error("log should contain the startup banner")
	}
	if !strings.Contains(text, "cycle finished") || !strings.Contains(text, "DONE") {
		t.Errorf("log missing structured entry: %q", text)
	}
	if strings.Contains(text, "hidden at info level") {
		t.Error("debug entries should be filtered at info level")
	}
}

func TestInit_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	if err := Init(Options{Dir: dir, Debug: true}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(Close)

	Named("fetcher").Debugw("download started", "url", "https://example.com/content.json")
	Close()

	content, err := os.ReadFile(Path(dir))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "download started") {
		t.Error("debug entry should be written when Debug is set")
	}
	if !strings.Contains(string(content), "fetcher") {
		t.Error("named logger should include the component name")
	}
}

func TestInit_ConsoleReceivesWarnings(t *testing.T) {
	var console bytes.Buffer
	if err := Init(Options{Dir: t.TempDir(), Console: &console}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(Close)

	L().Info("file only")
	L().Warn("also on console")
	Close()

	if strings.Contains(console.String(), "file only") {
		t.Error("info entries should not reach the console")
	}
	if !strings.Contains(console.String(), "also on console") {
		t.Error("warnings should reach the console")
	}
}

func TestInit_RequiresDir(t *testing.T) {
	if err := Init(Options{}); err == nil {
		t.Fatal("Init without a directory should fail")
	}
}

func TestClose_Idempotent(t *testing.T) {
	if err := Init(Options{Dir: t.TempDir()}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Close()
	Close()
	Close()
}
