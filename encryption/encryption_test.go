package encryption

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmAESGCM, AlgorithmChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			c, err := New("session-store-key", WithAlgorithm(alg))
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			tests := []struct {
				name      string
				plaintext string
			}{
				{"user turn", "What's the capital of France?"},
				{"empty", ""},
				{"unicode", "こんにちは、今日の天気は？"},
				{"multiline", "line one\nline two\nline three"},
				{"long assistant turn", strings.Repeat("The capital of France is Paris. ", 50)},
			}
			for _, tc := range tests {
				t.Run(tc.name, func(t *testing.T) {
					sealed, err := c.Encrypt(tc.plaintext)
					if err != nil {
						t.Fatalf("Encrypt: %v", err)
					}
					if sealed == tc.plaintext && tc.plaintext != "" {
						t.Error("ciphertext equals plaintext")
					}

					got, err := c.Decrypt(sealed)
					if err != nil {
						t.Fatalf("Decrypt: %v", err)
					}
					if got != tc.plaintext {
						t.Errorf("got %q, want %q", got, tc.plaintext)
					}
				})
			}
		})
	}
}

func TestNonceUniqueness(t *testing.T) {
	c, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := c.Encrypt("same turn")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	second, err := c.Encrypt("same turn")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if first == second {
		t.Error("two encryptions of the same plaintext produced identical ciphertexts")
	}
}

func TestWrongKeyFails(t *testing.T) {
	enc, err := New("right-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dec, err := New("wrong-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sealed, err := enc.Encrypt("secret conversation")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := dec.Decrypt(sealed); err == nil {
		t.Error("Decrypt with the wrong key succeeded")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Decrypt("not base64 at all!"); err == nil {
		t.Error("Decrypt accepted invalid base64")
	}
	if _, err := c.Decrypt("c2hvcnQ="); err == nil {
		t.Error("Decrypt accepted a value shorter than the nonce")
	}
}

func TestAlgorithmsAreIncompatible(t *testing.T) {
	gcm, err := New("key", WithAlgorithm(AlgorithmAESGCM))
	if err != nil {
		t.Fatalf("New aes: %v", err)
	}
	chacha, err := New("key", WithAlgorithm(AlgorithmChaCha20))
	if err != nil {
		t.Fatalf("New chacha: %v", err)
	}

	sealed, err := gcm.Encrypt("stored turn")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := chacha.Decrypt(sealed); err == nil {
		t.Error("ChaCha20 opened an AES-GCM ciphertext")
	}
}
