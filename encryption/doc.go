// Package encryption seals conversation content before it is written to a
// persistent store. Chat histories routinely contain user-provided text
// that should not sit readable in a database file; the sqlitestore package
// accepts a Cipher from here to encrypt message content at rest.
//
// Two AEAD algorithms are offered: AES-256-GCM (the default) and
// ChaCha20-Poly1305 for hosts without AES hardware acceleration. Both
// derive a fixed-length key from the configured passphrase with SHA-256
// and prefix each ciphertext with its random nonce, so any stored value is
// self-contained.
package encryption
