package ldap

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

// MaxPoolLimit caps the configured pool size. AD servers commonly default
// to 1000+ concurrent connections; staying well below keeps a misconfigured
// deployment from exhausting the server side.
const MaxPoolLimit = 100

// Pool manages service-bound connections to an ordered list of directory
// servers. Endpoints are tried round-robin; a dial or bind failure advances
// to the next endpoint, and only a full failed cycle (after retries) surfaces
// as an unavailable error.
type Pool struct {
	cfg       *Config
	log       *zap.Logger
	endpoints []Endpoint
	idle      chan *Conn

	mu     sync.Mutex
	cursor int
	closed bool

	// Statistics
	active    int64
	created   int64
	dialFails int64
	startTime time.Time
}

// Conn is a single directory connection handed out by the pool. Service
// connections return to the pool on Release; user-bound connections are
// closed outright so a caller can never inherit another user's identity.
type Conn struct {
	raw          *ldap.Conn
	endpoint     Endpoint
	lastUsed     time.Time
	serviceBound bool
	pool         *Pool
}

// NewPool validates cfg, parses its endpoints and returns a pool. No
// connection is established until the first acquire.
func NewPool(cfg *Config, log *zap.Logger) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid pool configuration: %w", err)
	}
	if cfg.MaxConnections > MaxPoolLimit {
		return nil, fmt.Errorf("MaxConnections too high (max %d)", MaxPoolLimit)
	}

	endpoints := make([]Endpoint, 0, len(cfg.URLs))
	for _, raw := range cfg.URLs {
		ep, err := ParseEndpoint(raw)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}

	log.Debug("directory pool created",
		zap.Int("endpoints", len(endpoints)),
		zap.Int("max_connections", cfg.MaxConnections))

	return &Pool{
		cfg:       cfg,
		log:       log.Named("ldap"),
		endpoints: endpoints,
		idle:      make(chan *Conn, cfg.MaxConnections),
		startTime: time.Now(),
	}, nil
}

// AcquireService returns a connection bound as the service account, reusing
// an idle one when available.
func (p *Pool) AcquireService(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, NewUnavailableError("acquire", fmt.Errorf("pool is closed"))
	}
	p.mu.Unlock()

	for {
		select {
		case conn := <-p.idle:
			if conn == nil {
				return nil, NewUnavailableError("acquire", fmt.Errorf("pool is closed"))
			}
			if p.healthy(conn) {
				conn.lastUsed = time.Now()
				atomic.AddInt64(&p.active, 1)
				return conn, nil
			}
			conn.discard()
		default:
			return p.dialService(ctx)
		}
	}
}

// AcquireUser dials a fresh connection and binds it as the given user. The
// bind outcome verifies the user's credentials. The returned connection is
// never pooled.
func (p *Pool) AcquireUser(ctx context.Context, bindDN, password string) (*Conn, error) {
	if password == "" {
		// An empty password would be an anonymous bind, which LDAP treats
		// as success. Reject it before it reaches the server.
		return nil, &DirectoryError{Op: "user_bind", Kind: KindInvalidCredentials, Message: "empty password"}
	}

	raw, ep, err := p.dialCycle(ctx)
	if err != nil {
		return nil, err
	}

	if err := raw.Bind(bindDN, password); err != nil {
		raw.Close()
		return nil, WrapErrorDN("user_bind", bindDN, err)
	}

	atomic.AddInt64(&p.active, 1)
	return &Conn{raw: raw, endpoint: ep, lastUsed: time.Now(), pool: p}, nil
}

// dialService establishes and service-binds a new connection.
func (p *Pool) dialService(ctx context.Context) (*Conn, error) {
	raw, ep, err := p.dialCycle(ctx)
	if err != nil {
		return nil, err
	}

	if err := p.serviceBind(raw, ep); err != nil {
		raw.Close()
		return nil, WrapError("service_bind", err)
	}

	atomic.AddInt64(&p.created, 1)
	atomic.AddInt64(&p.active, 1)
	return &Conn{raw: raw, endpoint: ep, lastUsed: time.Now(), serviceBound: true, pool: p}, nil
}

// dialCycle walks the endpoint list round-robin until one accepts a
// connection. Each retry attempt covers the full list, with exponential
// backoff between attempts.
func (p *Pool) dialCycle(ctx context.Context) (*ldap.Conn, Endpoint, error) {
	var lastErr error
	backoff := p.cfg.InitialBackoff

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		for range p.endpoints {
			ep := p.nextEndpoint()

			raw, err := p.dialEndpoint(ep)
			if err != nil {
				lastErr = err
				atomic.AddInt64(&p.dialFails, 1)
				p.log.Warn("directory server unreachable",
					zap.String("endpoint", ep.String()),
					zap.Error(err))
				continue
			}
			return raw, ep, nil
		}

		if attempt < p.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, Endpoint{}, ctx.Err()
			case <-time.After(backoff):
				backoff = min(time.Duration(float64(backoff)*p.cfg.BackoffFactor), p.cfg.MaxBackoff)
			}
		}
	}

	return nil, Endpoint{}, NewUnavailableError("dial", lastErr)
}

func (p *Pool) nextEndpoint() Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep := p.endpoints[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.endpoints)
	return ep
}

func (p *Pool) dialEndpoint(ep Endpoint) (*ldap.Conn, error) {
	var raw *ldap.Conn
	var err error

	if ep.UseTLS {
		raw, err = ldap.DialURL(ep.URL(), ldap.DialWithTLSConfig(p.cfg.TLSConfig))
	} else {
		raw, err = ldap.DialURL(ep.URL())
		if err == nil && p.cfg.StartTLS {
			err = raw.StartTLS(p.cfg.TLSConfig)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", ep, err)
	}

	raw.SetTimeout(p.cfg.Timeout)
	return raw, nil
}

func (p *Pool) serviceBind(raw *ldap.Conn, ep Endpoint) error {
	if p.cfg.UseKerberos() {
		return kerberosBind(raw, p.cfg, ep)
	}
	return raw.Bind(p.cfg.BindDN, p.cfg.BindPassword)
}

// healthy reports whether an idle connection can be handed out again.
func (p *Pool) healthy(conn *Conn) bool {
	if conn == nil || conn.raw == nil || !conn.serviceBound {
		return false
	}
	return time.Since(conn.lastUsed) < p.cfg.MaxIdleTime
}

// release returns a service connection to the idle set, or closes it when
// the pool is full, closed, or the connection is stale. The closed check and
// the channel send happen under the pool mutex so a concurrent Close cannot
// drain the idle set and then miss a straggler.
func (p *Pool) release(conn *Conn) {
	atomic.AddInt64(&p.active, -1)

	p.mu.Lock()
	if p.closed || !conn.serviceBound || !p.healthy(conn) {
		p.mu.Unlock()
		conn.discard()
		return
	}

	select {
	case p.idle <- conn:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		conn.discard()
	}
}

// Close shuts the pool down and closes all idle connections. Connections
// currently held by callers are closed when released. The idle channel is
// never closed: draining it under the mutex keeps concurrent acquires and
// releases panic-free.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	for {
		select {
		case conn := <-p.idle:
			conn.discard()
		default:
			return nil
		}
	}
}

// PoolStats provides statistics about the connection pool.
type PoolStats struct {
	Idle      int
	Active    int64
	Created   int64
	DialFails int64
	Uptime    time.Duration
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Idle:      len(p.idle),
		Active:    atomic.LoadInt64(&p.active),
		Created:   atomic.LoadInt64(&p.created),
		DialFails: atomic.LoadInt64(&p.dialFails),
		Uptime:    time.Since(p.startTime),
	}
}

// Release returns the connection to its pool. Safe to call once per acquire.
func (c *Conn) Release() {
	if c.pool != nil {
		c.pool.release(c)
	}
}

// Raw exposes the underlying protocol connection.
func (c *Conn) Raw() *ldap.Conn {
	return c.raw
}

// Endpoint identifies the server this connection reached.
func (c *Conn) Endpoint() Endpoint {
	return c.endpoint
}

func (c *Conn) discard() {
	if c.raw != nil {
		c.raw.Close()
		c.raw = nil
	}
	c.serviceBound = false
}
