package transport

import (
	"net/url"
	"time"
)

// Config carries everything a transport binding needs to connect, mirrored
// from ServiceBusConfig.java. Fields are set directly (or through the
// chaining setters below) rather than via a functional-options constructor
// — the donor's own Client/ConnPool types are built the same plain way.
type Config struct {
	URI            *url.URL
	Username       string
	Password       string
	RequestTTL     time.Duration
	KeystorePath   string
	KeystorePass   string
	AcceptSelfSigned bool
}

// NewConfig returns a Config with the request TTL defaulted to five
// minutes, matching spec.md's default pending-request lifetime.
func NewConfig(uri *url.URL) Config {
	return Config{URI: uri, RequestTTL: 5 * time.Minute}
}

func (c Config) WithAuth(username, password string) Config {
	c.Username = username
	c.Password = password
	return c
}

func (c Config) WithRequestTTL(ttl time.Duration) Config {
	c.RequestTTL = ttl
	return c
}

func (c Config) WithKeystore(path, password string) Config {
	c.KeystorePath = path
	c.KeystorePass = password
	return c
}

func (c Config) WithAcceptSelfSigned(accept bool) Config {
	c.AcceptSelfSigned = accept
	return c
}

// AuthenticationPresent reports whether credentials were supplied, mirroring
// ServiceBusConfig.isAuthenticationPresent().
func (c Config) AuthenticationPresent() bool {
	return c.Username != ""
}
