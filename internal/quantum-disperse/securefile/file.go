// Package securefile reads and writes JSON files, optionally sealed with an
// Argon2id-derived XChaCha20-Poly1305 envelope. All writes are atomic.
package securefile

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrInvalidPasswordOrCorrupt is returned when decryption fails.
var ErrInvalidPasswordOrCorrupt = errors.New("invalid password or corrupted file")

const envelopeMode = "password"

// Envelope is the on-disk form of an encrypted file.
type Envelope struct {
	Version int    `json:"version"`
	Mode    string `json:"mode,omitempty"`

	ArgonTime    uint32 `json:"argon_time"`
	ArgonMemory  uint32 `json:"argon_memory_kib"`
	ArgonThreads uint8  `json:"argon_threads"`
	ArgonKeyLen  uint32 `json:"argon_key_len"`
	SaltB64      string `json:"salt_b64"`

	NonceB64 string `json:"nonce_b64"`
	CTB64    string `json:"ct_b64"`
}

// DefaultKDF holds the Argon2id parameters used for new envelopes.
var DefaultKDF = Envelope{
	Version:      2,
	Mode:         envelopeMode,
	ArgonTime:    2,
	ArgonMemory:  64 * 1024,
	ArgonThreads: 1,
	ArgonKeyLen:  32,
}

type Options struct {
	KDF Envelope

	FilePerm      os.FileMode
	DirectoryPerm os.FileMode

	// AADFunc binds the ciphertext to extra data, usually derived from path.
	AADFunc func(path string) []byte
}

func defaultOptions() Options {
	return Options{
		KDF:           DefaultKDF,
		FilePerm:      0o600,
		DirectoryPerm: 0o700,
	}
}

func mergeOptions(opt ...Options) Options {
	o := defaultOptions()
	if len(opt) == 0 {
		return o
	}
	in := opt[0]
	if in.KDF.Version != 0 {
		o.KDF = in.KDF
	}
	if in.FilePerm != 0 {
		o.FilePerm = in.FilePerm
	}
	if in.DirectoryPerm != 0 {
		o.DirectoryPerm = in.DirectoryPerm
	}
	if in.AADFunc != nil {
		o.AADFunc = in.AADFunc
	}
	return o
}

func WriteEncryptedJSON[T any](path string, v T, password []byte, opt ...Options) error {
	o := mergeOptions(opt...)

	if len(password) == 0 || isAllZero(password) {
		return errors.New("securefile: empty password")
	}
	if err := os.MkdirAll(filepath.Dir(path), o.DirectoryPerm); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	defer zeroBytes(plain)

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("rand salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("rand nonce: %w", err)
	}

	key := argon2.IDKey(password, salt, o.KDF.ArgonTime, o.KDF.ArgonMemory, o.KDF.ArgonThreads, o.KDF.ArgonKeyLen)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("aead: %w", err)
	}

	out := o.KDF
	out.Mode = envelopeMode
	out.SaltB64 = base64.StdEncoding.EncodeToString(salt)
	out.NonceB64 = base64.StdEncoding.EncodeToString(nonce)
	out.CTB64 = base64.StdEncoding.EncodeToString(aead.Seal(nil, nonce, plain, aadFor(o, path)))

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return AtomicWriteFile(path, b, o.FilePerm)
}

func ReadEncryptedJSON[T any](path string, password []byte, opt ...Options) (T, error) {
	var zero T
	o := mergeOptions(opt...)

	if len(password) == 0 || isAllZero(password) {
		return zero, errors.New("securefile: empty password")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read file: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return zero, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 && env.Version != 2 {
		return zero, fmt.Errorf("unsupported file version: %d", env.Version)
	}
	if env.Mode != "" && !strings.EqualFold(env.Mode, envelopeMode) {
		return zero, fmt.Errorf("unsupported envelope mode %q", env.Mode)
	}

	salt, err := base64.StdEncoding.DecodeString(env.SaltB64)
	if err != nil {
		return zero, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.NonceB64)
	if err != nil {
		return zero, fmt.Errorf("decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(env.CTB64)
	if err != nil {
		return zero, fmt.Errorf("decode ciphertext: %w", err)
	}

	key := argon2.IDKey(password, salt, env.ArgonTime, env.ArgonMemory, env.ArgonThreads, env.ArgonKeyLen)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return zero, fmt.Errorf("aead: %w", err)
	}
	plain, err := aead.Open(nil, nonce, ct, aadFor(o, path))
	if err != nil {
		return zero, ErrInvalidPasswordOrCorrupt
	}
	defer zeroBytes(plain)

	var out T
	if err := json.Unmarshal(plain, &out); err != nil {
		return zero, fmt.Errorf("unmarshal json: %w", err)
	}
	return out, nil
}

// WriteJSON writes v as indented plain JSON, creating parent directories.
func WriteJSON[T any](path string, v T, permFile, permDir os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), permDir); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return AtomicWriteFile(path, b, permFile)
}

func ReadJSON[T any](path string) (T, error) {
	var zero T
	b, err := os.ReadFile(path)
	if err != nil {
		return zero, fmt.Errorf("read file: %w", err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, fmt.Errorf("unmarshal json: %w", err)
	}
	return out, nil
}

// AtomicWriteFile writes to a sibling temp file and renames it into place.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ResolvePath returns the first existing candidate for filename, or the
// highest-priority candidate when none exists yet.
func ResolvePath(app, filename string) (string, error) {
	cands, err := ConfigPathCandidates(app, filename)
	if err != nil {
		return "", err
	}
	for _, p := range cands {
		if Exists(p) {
			return p, nil
		}
	}
	return cands[0], nil
}

// ConfigPathCandidates returns per-user paths for filename in priority
// order. DISPERSE_ENV selects an optional local/ or develop/ subfolder.
func ConfigPathCandidates(app, filename string) ([]string, error) {
	envFolder, err := EnvFolder()
	if err != nil {
		return nil, err
	}
	if app == "" || filename == "" {
		return nil, errors.New("securefile: app and filename must not be empty")
	}

	var paths []string
	seen := map[string]bool{}
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}
	homeStyle := func(home string) string {
		return filepath.Join(home, ".config", app, envFolder, filename)
	}

	if realHome := os.Getenv("SNAP_REAL_HOME"); realHome != "" {
		add(homeStyle(realHome))
	}
	if home := os.Getenv("HOME"); home != "" {
		add(homeStyle(home))
	}
	if dir, err := os.UserConfigDir(); err == nil {
		add(filepath.Join(dir, app, envFolder, filename))
	} else if len(paths) == 0 {
		return nil, fmt.Errorf("UserConfigDir: %w", err)
	}
	return paths, nil
}

func EnvFolder() (string, error) {
	raw := strings.TrimSpace(os.Getenv("DISPERSE_ENV"))
	switch strings.ToLower(raw) {
	case "", "prod", "production":
		return "", nil
	case "local":
		return "local", nil
	case "dev", "develop", "development":
		return "develop", nil
	default:
		return "", fmt.Errorf("invalid DISPERSE_ENV %q (allowed: local, develop, empty)", raw)
	}
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func aadFor(o Options, path string) []byte {
	if o.AADFunc == nil {
		return nil
	}
	return o.AADFunc(path)
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
