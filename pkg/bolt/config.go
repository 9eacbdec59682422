package bolt

import "time"

// Config controls Server behavior: connection limits, buffer sizing, and
// the authentication policy applied to INIT.
//
// Example:
//
//	config := bolt.DefaultConfig()
//	config.MaxConnections = 200
//	config.RequireAuth = true
//	config.Authenticator = bolt.NewAuthenticatorAdapter(authenticator)
type Config struct {
	MaxConnections  int
	ReadBufferSize  int
	WriteBufferSize int
	MaxChunkSize    int

	// ServerName is reported in INIT's SUCCESS metadata as "server".
	ServerName string

	// RequireAuth, when true, rejects INIT whenever Authenticator is nil
	// or returns an unauthenticated result.
	RequireAuth   bool
	Authenticator BoltAuthenticator

	// HandshakeTimeout bounds how long AcceptConn waits for the 20-byte
	// client preamble before aborting the connection.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns sane defaults: 8KiB buffers, the package's default
// chunk size, no auth required, and a 10s handshake timeout.
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:   1000,
		ReadBufferSize:   8192,
		WriteBufferSize:  8192,
		MaxChunkSize:     DefaultMaxChunkSize,
		ServerName:       "boltcore/1.0",
		RequireAuth:      false,
		Authenticator:    allowAllAuthenticator{},
		HandshakeTimeout: 10 * time.Second,
	}
}
