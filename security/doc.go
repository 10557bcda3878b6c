// Package security holds the TLS configuration shared by uniai's
// transports: the gateway's HTTPS listener and the HTTP client that talks
// to provider endpoints. Self-hosted OpenAI-compatible servers often sit
// behind self-signed certificates or a private CA; TLSConfig covers both,
// plus mTLS client certificates.
//
// # TLS Configuration
//
//	cfg := security.TLSConfig{
//	    CAFile:   "/path/to/ca.pem",
//	    CertFile: "/path/to/cert.pem",
//	    KeyFile:  "/path/to/key.pem",
//	}
//
//	tlsConfig, err := cfg.Build()
package security
