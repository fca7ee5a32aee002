package securefile

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

type secret struct {
	Key string `json:"key"`
}

var fastKDF = Options{KDF: Envelope{Version: 2, ArgonTime: 1, ArgonMemory: 8 * 1024, ArgonThreads: 1, ArgonKeyLen: 32}}

func TestEncryptedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wallet.json")

	if err := WriteEncryptedJSON(path, secret{Key: "abc"}, []byte("correct horse"), fastKDF); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadEncryptedJSON[secret](path, []byte("correct horse"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Key != "abc" {
		t.Fatalf("expected key abc, got %q", got.Key)
	}
}

func TestEncryptedWrongPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	if err := WriteEncryptedJSON(path, secret{Key: "abc"}, []byte("right password"), fastKDF); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := ReadEncryptedJSON[secret](path, []byte("wrong password"))
	if !errors.Is(err, ErrInvalidPasswordOrCorrupt) {
		t.Fatalf("expected ErrInvalidPasswordOrCorrupt, got %v", err)
	}
}

func TestEncryptedAADBindsPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.json")
	opts := fastKDF
	opts.AADFunc = func(p string) []byte { return []byte("aad:" + filepath.Base(p)) }

	if err := WriteEncryptedJSON(path, secret{Key: "abc"}, []byte("password1"), opts); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadEncryptedJSON[secret](path, []byte("password1")); err == nil {
		t.Fatalf("expected failure when AAD is missing")
	}
	if _, err := ReadEncryptedJSON[secret](path, []byte("password1"), opts); err != nil {
		t.Fatalf("read with AAD: %v", err)
	}
}

func TestConfigPathCandidatesEnvFolder(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("SNAP_REAL_HOME", "")
	t.Setenv("DISPERSE_ENV", "local")

	cands, err := ConfigPathCandidates("quantum-disperse", "tokens.json")
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	want := filepath.Join("/home/tester", ".config", "quantum-disperse", "local", "tokens.json")
	if cands[0] != want {
		t.Fatalf("expected %s first, got %v", want, cands)
	}

	t.Setenv("DISPERSE_ENV", "staging")
	if _, err := ConfigPathCandidates("quantum-disperse", "tokens.json"); err == nil || !strings.Contains(err.Error(), "DISPERSE_ENV") {
		t.Fatalf("expected DISPERSE_ENV error, got %v", err)
	}
}
