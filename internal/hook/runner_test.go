package hook

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_NoCapture(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Options{
		LogDir:     dir,
		ResourceID: 1,
		Kind:       KindTerminate,
		Command:    "echo hi",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != 0 || res.Stdout != nil {
		t.Fatalf("res = %+v", res)
	}

	logPath := filepath.Join(dir, "hooks", "000001_terminate")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hi") {
		t.Fatalf("log = %q, want to contain hi", data)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Options{
		LogDir:     dir,
		ResourceID: 2,
		Kind:       KindAlloc,
		Command:    "exit 3",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != 3 {
		t.Fatalf("Status = %d, want 3", res.Status)
	}
}

func TestRun_CapturesWithinBudget(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Options{
		LogDir:       dir,
		ResourceID:   3,
		Kind:         KindAlloc,
		Command:      "echo short",
		CaptureBytes: 512,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(res.Stdout) != "short\n" {
		t.Fatalf("Stdout = %q", res.Stdout)
	}
}

func TestRun_CapturesOverflowMarker(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Options{
		LogDir:       dir,
		ResourceID:   4,
		Kind:         KindAlloc,
		Command:      "printf 'aaaaaaaaaaaaaaaaaaaaa\\n'",
		CaptureBytes: 4,
		SecureLines:  false,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Contains(res.Stdout, []byte(TrimMarker)) {
		t.Fatalf("Stdout = %q, want trim marker", res.Stdout)
	}
	if !bytes.HasPrefix(res.Stdout, []byte("aaaa")) {
		t.Fatalf("Stdout = %q, want a 4-byte truncated prefix before the marker", res.Stdout)
	}
}

func TestRun_SecureLinesSuppressesOverflow(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Options{
		LogDir:       dir,
		ResourceID:   5,
		Kind:         KindAlloc,
		Command:      "printf 'short\\n'; printf 'this line is far too long to fit\\n'",
		CaptureBytes: 6,
		SecureLines:  true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bytes.Contains(res.Stdout, []byte(TrimMarker)) {
		t.Fatalf("Stdout = %q, secure_lines must never emit the trim marker", res.Stdout)
	}
	if string(res.Stdout) != "short\n" {
		t.Fatalf("Stdout = %q, want only the line that fit", res.Stdout)
	}
}

func TestEnv_ResourceDataOmittedWhenNil(t *testing.T) {
	env := Env{ID: 1, Name: "r0", PoolID: "pool-a"}
	for _, kv := range env.toOSEnv() {
		if strings.HasPrefix(kv, "RESALLOC_RESOURCE_DATA=") {
			t.Fatalf("RESALLOC_RESOURCE_DATA must be omitted when Data is nil, got %q", kv)
		}
	}
}

func TestEnv_ResourceDataBase64WhenSet(t *testing.T) {
	env := Env{ID: 1, Name: "r0", PoolID: "pool-a", Data: []byte("hello")}
	var found bool
	for _, kv := range env.toOSEnv() {
		if kv == "RESALLOC_RESOURCE_DATA=aGVsbG8=" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected base64-encoded RESALLOC_RESOURCE_DATA")
	}
}

func TestEnv_BlankFieldsBecomeNone(t *testing.T) {
	env := Env{ID: 1}
	var gotName, gotPool bool
	for _, kv := range env.toOSEnv() {
		if kv == "RESALLOC_NAME=None" {
			gotName = true
		}
		if kv == "RESALLOC_POOL_ID=None" {
			gotPool = true
		}
	}
	if !gotName || !gotPool {
		t.Fatal("blank Name/PoolID must serialize to the literal string None")
	}
}
