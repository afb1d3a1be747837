package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lumenstage/stagewire/pkg/gallery"
)

func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	flagConfig = ""
	flagVerbose = false

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	var outBuf, errBuf bytes.Buffer
	outBuf.ReadFrom(rOut)
	errBuf.ReadFrom(rErr)

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		if stderr == "" {
			stderr = err.Error()
		}
	}

	resetFlags(rootCmd)
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// writeTestYAML writes a YAML file to a temp dir and returns its path.
func writeTestYAML(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// testConfig writes a minimal valid settings file so commands never read
// the real user config dir.
func testConfig(t *testing.T) string {
	t.Helper()
	return writeTestYAML(t, "stagewire.yaml", "hub:\n  url: \"127.0.0.1:5555\"\n")
}

// ---------------------------------------------------------------------------
// send: everything that fails before a connection is attempted
// ---------------------------------------------------------------------------

func TestSendUnknownType(t *testing.T) {
	cfg := testConfig(t)
	_, stderr, code := runCmd(t, "--config", cfg, "send", "bogus")
	if code == 0 {
		t.Fatal("expected non-zero exit")
	}
	if !strings.Contains(stderr, "unknown envelope type") {
		t.Fatalf("expected 'unknown envelope type', got: %s", stderr)
	}
}

func TestSendDataNotObject(t *testing.T) {
	cfg := testConfig(t)
	_, stderr, code := runCmd(t, "--config", cfg, "send", "status", "[1,2,3]")
	if code == 0 {
		t.Fatal("expected non-zero exit")
	}
	if !strings.Contains(stderr, "JSON object") {
		t.Fatalf("expected 'JSON object', got: %s", stderr)
	}
}

func TestSendMissingRequiredField(t *testing.T) {
	cfg := testConfig(t)
	_, stderr, code := runCmd(t, "--config", cfg, "send", "transcript", `{"who":"me"}`)
	if code == 0 {
		t.Fatal("expected non-zero exit")
	}
	if !strings.Contains(stderr, "data.text") {
		t.Fatalf("expected 'data.text', got: %s", stderr)
	}
}

func TestExplicitConfigMustExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, stderr, code := runCmd(t, "--config", missing, "send", "ping")
	if code == 0 {
		t.Fatal("expected non-zero exit")
	}
	if !strings.Contains(stderr, "read settings") {
		t.Fatalf("expected 'read settings', got: %s", stderr)
	}
}

// ---------------------------------------------------------------------------
// gallery
// ---------------------------------------------------------------------------

func TestGalleryListEmpty(t *testing.T) {
	dir := t.TempDir()
	stdout, stderr, code := runCmd(t, "gallery", "list", "--dir", dir)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "no render jobs") {
		t.Fatalf("expected 'no render jobs', got: %s", stdout)
	}
}

func TestGalleryNoDir(t *testing.T) {
	cfg := testConfig(t)
	_, stderr, code := runCmd(t, "--config", cfg, "gallery", "list")
	if code == 0 {
		t.Fatal("expected non-zero exit without a gallery dir")
	}
	if !strings.Contains(stderr, "no gallery directory") {
		t.Fatalf("expected 'no gallery directory', got: %s", stderr)
	}
}

func TestGalleryListShowRemove(t *testing.T) {
	dir := t.TempDir()

	index, err := gallery.NewBadger(gallery.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	rec := gallery.Record{
		RequestID: "job_cli1",
		Prompt:    "a lighthouse at dusk",
		ImagePath: filepath.Join(dir, "job_cli1.png"),
		Elapsed:   1200,
		CreatedAt: time.Now(),
	}
	if err := index.Add(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if err := index.Close(); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runCmd(t, "gallery", "list", "--dir", dir)
	if code != 0 {
		t.Fatalf("list: exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "job_cli1") || !strings.Contains(stdout, "1200ms") {
		t.Fatalf("unexpected list output: %s", stdout)
	}

	stdout, stderr, code = runCmd(t, "gallery", "show", "job_cli1", "--dir", dir)
	if code != 0 {
		t.Fatalf("show: exit %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "a lighthouse at dusk") {
		t.Fatalf("expected prompt in show output, got: %s", stdout)
	}

	_, stderr, code = runCmd(t, "gallery", "rm", "job_cli1", "--dir", dir)
	if code != 0 {
		t.Fatalf("rm: exit %d: %s", code, stderr)
	}

	_, stderr, code = runCmd(t, "gallery", "show", "job_cli1", "--dir", dir)
	if code == 0 {
		t.Fatal("expected non-zero exit after rm")
	}
	if !strings.Contains(stderr, "not found") {
		t.Fatalf("expected 'not found', got: %s", stderr)
	}
}

func TestGalleryListTruncatesPrompt(t *testing.T) {
	long := strings.Repeat("very long prompt ", 20)
	if truncate(long, 60) == long {
		t.Fatal("expected truncation")
	}
	if got := truncate("short", 60); got != "short" {
		t.Fatalf("short prompt changed: %q", got)
	}
}
