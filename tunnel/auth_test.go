package tunnel

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"

	ncerr "hudchat/internal/errors"
)

// TestBuildAuthMethods_ExplicitKey verifies that a key file is loaded.
func TestBuildAuthMethods_ExplicitKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_test")
	writeTestKey(t, keyPath, "")

	methods, err := BuildAuthMethods(&SSHConfig{KeyPath: keyPath})
	if err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("got %d methods, want 1", len(methods))
	}
}

// TestBuildAuthMethods_EncryptedKey verifies the passphrase prompt.
func TestBuildAuthMethods_EncryptedKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_test")
	writeTestKey(t, keyPath, "hunter2")

	var asked string
	cfg := &SSHConfig{
		KeyPath: keyPath,
		Prompt: PrompterFunc(func(prompt string) ([]byte, error) {
			asked = prompt
			return []byte("hunter2"), nil
		}),
	}
	if _, err := BuildAuthMethods(cfg); err != nil {
		t.Fatalf("BuildAuthMethods: %v", err)
	}
	if asked == "" {
		t.Error("passphrase was never requested")
	}
}

func TestBuildAuthMethods_WrongPassphrase(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "id_test")
	writeTestKey(t, keyPath, "hunter2")

	cfg := &SSHConfig{
		KeyPath: keyPath,
		Prompt: PrompterFunc(func(string) ([]byte, error) {
			return []byte("nope"), nil
		}),
	}
	if _, err := BuildAuthMethods(cfg); err == nil {
		t.Fatal("expected decrypt failure")
	}
}

func TestBuildAuthMethods_MissingKey(t *testing.T) {
	_, err := BuildAuthMethods(&SSHConfig{KeyPath: "/nonexistent/key"})
	if err == nil {
		t.Fatal("expected error for missing key")
	}
}

// TestBuildAuthMethods_NoMethods verifies a clear error when nothing
// can be found on the machine.
func TestBuildAuthMethods_NoMethods(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("HOME", t.TempDir())

	_, err := BuildAuthMethods(&SSHConfig{})
	if !errors.Is(err, ncerr.ErrAuthFailed) {
		t.Fatalf("got %v, want ErrAuthFailed", err)
	}
}

func TestBuildAuthMethods_Password(t *testing.T) {
	cfg := &SSHConfig{
		User:       "chat",
		Host:       "gw",
		PromptPass: true,
		Prompt: PrompterFunc(func(prompt string) ([]byte, error) {
			if prompt != "chat@gw password: " {
				t.Errorf("prompt = %q", prompt)
			}
			return []byte("secret"), nil
		}),
	}
	methods, err := BuildAuthMethods(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 1 {
		t.Errorf("got %d methods, want 1", len(methods))
	}
}

func TestBuildAuthMethods_AgentUnset(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	if _, err := BuildAuthMethods(&SSHConfig{UseAgent: true}); err == nil {
		t.Fatal("expected error without SSH_AUTH_SOCK")
	}
}

// TestHostKeyCallback_Insecure verifies that InsecureIgnoreHostKey is used
// when StrictHostKey is false.
func TestHostKeyCallback_Insecure(t *testing.T) {
	cb, err := hostKeyCallback(&SSHConfig{StrictHostKey: false})
	if err != nil {
		t.Fatal(err)
	}
	if cb == nil {
		t.Fatal("callback should not be nil")
	}
}

func TestHostKeyCallback_MissingFile(t *testing.T) {
	cfg := &SSHConfig{StrictHostKey: true, KnownHosts: "/nonexistent/known_hosts"}
	if _, err := hostKeyCallback(cfg); err == nil {
		t.Fatal("expected error for missing known_hosts")
	}
}

// ── helpers ──────────────────────────────────────────────────────────

// writeTestKey generates an ed25519 key in OpenSSH format, encrypted
// when passphrase is non-empty.
func writeTestKey(t *testing.T, path, passphrase string) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test@hudchat")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test@hudchat", []byte(passphrase))
	}
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatal(err)
	}
}
