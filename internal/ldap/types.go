package ldap

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for directory connections.
type Config struct {
	// Connection settings
	URLs    []string      // Ordered ldap:// or ldaps:// URLs, tried round-robin
	BaseDN  string        // Base DN for searches
	Timeout time.Duration // Per-connection network timeout

	// Service account settings
	BindDN       string // DN or UPN of the service account
	BindPassword string // Password for simple bind

	// Kerberos settings (used instead of simple bind when Realm is set)
	KerberosRealm  string
	KerberosKeytab string // Path to keytab, password bind used when empty
	KerberosConfig string // Path to krb5.conf, defaults to /etc/krb5.conf
	KerberosSPN    string // Explicit SPN override

	// TLS settings
	TLSConfig *tls.Config
	StartTLS  bool // Upgrade plain ldap:// connections with StartTLS

	// Pool settings
	MaxConnections int
	MaxIdleTime    time.Duration

	// Retry settings for establishing connections
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultConfig returns a secure default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:        30 * time.Second,
		MaxConnections: 10,
		MaxIdleTime:    5 * time.Minute,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// UseKerberos reports whether the service account binds via GSSAPI.
func (c *Config) UseKerberos() bool {
	return c.KerberosRealm != ""
}

func (c *Config) validate() error {
	if len(c.URLs) == 0 {
		return fmt.Errorf("at least one directory URL is required")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("MaxConnections must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MaxRetries cannot be negative")
	}
	if c.BackoffFactor <= 1.0 {
		return fmt.Errorf("BackoffFactor must be greater than 1.0")
	}
	if !c.UseKerberos() && c.BindDN == "" {
		return fmt.Errorf("a service bind DN is required")
	}
	return nil
}

// Endpoint identifies one directory server.
type Endpoint struct {
	Host   string
	Port   int
	UseTLS bool // Direct TLS (ldaps), as opposed to optional StartTLS
}

// ParseEndpoint parses an ldap:// or ldaps:// URL into an Endpoint.
func ParseEndpoint(rawURL string) (Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid directory URL %q: %w", rawURL, err)
	}

	var useTLS bool
	var defaultPort int
	switch strings.ToLower(u.Scheme) {
	case "ldap":
		useTLS = false
		defaultPort = 389
	case "ldaps":
		useTLS = true
		defaultPort = 636
	default:
		return Endpoint{}, fmt.Errorf("unsupported scheme %q in directory URL %q", u.Scheme, rawURL)
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("missing host in directory URL %q", rawURL)
	}

	port := defaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid port in directory URL %q", rawURL)
		}
	}

	return Endpoint{Host: host, Port: port, UseTLS: useTLS}, nil
}

// URL renders the endpoint back to an ldap:// or ldaps:// URL.
func (e Endpoint) URL() string {
	scheme := "ldap"
	if e.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, e.Host, e.Port)
}

func (e Endpoint) String() string {
	return e.URL()
}

// SearchScope defines LDAP search scope.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

// SearchRequest encapsulates LDAP search parameters.
type SearchRequest struct {
	BaseDN     string
	Scope      SearchScope
	Filter     string
	Attributes []string
	SizeLimit  int
	TimeLimit  time.Duration
	Paged      bool // Fetch all pages with the paged results control
}

// AddRequest encapsulates LDAP add parameters.
type AddRequest struct {
	DN         string
	Attributes map[string][]string
}

// ModifyRequest encapsulates LDAP modify parameters. Replace semantics win
// when the same attribute appears in more than one set.
type ModifyRequest struct {
	DN                string
	AddAttributes     map[string][]string
	ReplaceAttributes map[string][]string
	DeleteAttributes  map[string][]string
}

// ModifyDNRequest encapsulates a rename or move of an entry.
type ModifyDNRequest struct {
	DN           string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
}
