package ldap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(urls ...string) *Config {
	cfg := DefaultConfig()
	cfg.URLs = urls
	cfg.BindDN = "CN=svc,DC=example,DC=com"
	cfg.BindPassword = "secret"
	return cfg
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		name    string
		url     string
		want    Endpoint
		wantErr bool
	}{
		{name: "plain default port", url: "ldap://dc1.example.com", want: Endpoint{Host: "dc1.example.com", Port: 389}},
		{name: "tls default port", url: "ldaps://dc1.example.com", want: Endpoint{Host: "dc1.example.com", Port: 636, UseTLS: true}},
		{name: "explicit port", url: "ldap://dc1.example.com:3268", want: Endpoint{Host: "dc1.example.com", Port: 3268}},
		{name: "uppercase scheme", url: "LDAPS://dc1.example.com", want: Endpoint{Host: "dc1.example.com", Port: 636, UseTLS: true}},
		{name: "unsupported scheme", url: "http://dc1.example.com", wantErr: true},
		{name: "missing host", url: "ldap://", wantErr: true},
		{name: "bad port", url: "ldap://dc1.example.com:99999", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ep, err := ParseEndpoint(tc.url)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, ep)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "no urls", mutate: func(c *Config) { c.URLs = nil }, wantErr: true},
		{name: "zero max connections", mutate: func(c *Config) { c.MaxConnections = 0 }, wantErr: true},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: true},
		{name: "backoff factor one", mutate: func(c *Config) { c.BackoffFactor = 1.0 }, wantErr: true},
		{name: "no bind dn", mutate: func(c *Config) { c.BindDN = "" }, wantErr: true},
		{name: "kerberos without bind dn", mutate: func(c *Config) {
			c.BindDN = ""
			c.KerberosRealm = "EXAMPLE.COM"
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig("ldap://dc1.example.com")
			tc.mutate(cfg)
			err := cfg.validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewPoolRejectsOversizedPool(t *testing.T) {
	cfg := testConfig("ldap://dc1.example.com")
	cfg.MaxConnections = MaxPoolLimit + 1
	_, err := NewPool(cfg, nil)
	assert.Error(t, err)
}

func TestNewPoolRejectsBadURL(t *testing.T) {
	_, err := NewPool(testConfig("ftp://dc1.example.com"), nil)
	assert.Error(t, err)
}

func TestNextEndpointRoundRobin(t *testing.T) {
	pool, err := NewPool(testConfig("ldap://dc1.example.com", "ldap://dc2.example.com", "ldap://dc3.example.com"), nil)
	require.NoError(t, err)
	defer pool.Close()

	hosts := []string{
		pool.nextEndpoint().Host,
		pool.nextEndpoint().Host,
		pool.nextEndpoint().Host,
		pool.nextEndpoint().Host,
	}
	assert.Equal(t, []string{"dc1.example.com", "dc2.example.com", "dc3.example.com", "dc1.example.com"}, hosts)
}

func TestAcquireServiceAllEndpointsDown(t *testing.T) {
	// Nothing listens on these ports, so every dial attempt fails and the
	// pool must report the directory as unavailable.
	cfg := testConfig("ldap://127.0.0.1:1", "ldap://127.0.0.1:2")
	cfg.Timeout = 500 * time.Millisecond
	cfg.MaxRetries = 1
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond

	pool, err := NewPool(cfg, nil)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.AcquireService(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "expected unavailable, got %v", err)
}

func TestAcquireUserEmptyPassword(t *testing.T) {
	pool, err := NewPool(testConfig("ldap://127.0.0.1:1"), nil)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.AcquireUser(context.Background(), "CN=John,DC=example,DC=com", "")
	require.Error(t, err)
	// Rejected locally: an empty password must never reach the server,
	// where it would succeed as an anonymous bind.
	assert.True(t, IsInvalidCredentials(err))
}

func TestAcquireAfterClose(t *testing.T) {
	pool, err := NewPool(testConfig("ldap://127.0.0.1:1"), nil)
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	_, err = pool.AcquireService(context.Background())
	assert.True(t, IsUnavailable(err))
}

func TestCloseDrainsIdleConnections(t *testing.T) {
	pool, err := NewPool(testConfig("ldap://127.0.0.1:1"), nil)
	require.NoError(t, err)

	pool.idle <- &Conn{serviceBound: true, lastUsed: time.Now(), pool: pool}
	pool.idle <- &Conn{serviceBound: true, lastUsed: time.Now(), pool: pool}

	require.NoError(t, pool.Close())
	assert.Equal(t, 0, len(pool.idle))
	// Close is idempotent.
	require.NoError(t, pool.Close())
}

func TestAcquireServiceNilIdleConn(t *testing.T) {
	// A nil receive from the idle channel must surface as unavailable, not
	// dereference a nil connection.
	pool, err := NewPool(testConfig("ldap://127.0.0.1:1"), nil)
	require.NoError(t, err)
	defer pool.Close()

	pool.idle <- nil
	_, err = pool.AcquireService(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestReleaseAfterCloseDiscards(t *testing.T) {
	pool, err := NewPool(testConfig("ldap://127.0.0.1:1"), nil)
	require.NoError(t, err)

	conn := &Conn{serviceBound: true, lastUsed: time.Now(), pool: pool}
	require.NoError(t, pool.Close())

	conn.Release()
	assert.Equal(t, 0, len(pool.idle))
	assert.False(t, conn.serviceBound)
}

func TestCloseConcurrentWithAcquireAndRelease(t *testing.T) {
	cfg := testConfig("ldap://127.0.0.1:1")
	cfg.Timeout = 100 * time.Millisecond
	cfg.MaxRetries = 0

	pool, err := NewPool(cfg, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				conn := &Conn{serviceBound: true, lastUsed: time.Now(), pool: pool}
				conn.Release()
				if c, err := pool.AcquireService(context.Background()); err == nil {
					c.Release()
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		pool.Close()
	}()
	wg.Wait()

	require.NoError(t, pool.Close())
	assert.Equal(t, 0, len(pool.idle))
}
