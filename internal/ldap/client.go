package ldap

import (
	"context"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

// Client provides directory operations over pooled connections. Every
// operation acquires one connection, performs its protocol exchange and
// releases the connection before returning. Errors carry the taxonomy from
// errors.go.
type Client interface {
	Search(ctx context.Context, req *SearchRequest) ([]*Entry, error)
	Get(ctx context.Context, dn string, attributes []string) (*Entry, error)
	Add(ctx context.Context, req *AddRequest) error
	Modify(ctx context.Context, req *ModifyRequest) error
	ModifyDN(ctx context.Context, req *ModifyDNRequest) error
	Delete(ctx context.Context, dn string) error

	// UserBind verifies the given credentials by binding a fresh connection
	// as that user. It never affects the pooled service connections.
	UserBind(ctx context.Context, bindDN, password string) error

	// BaseDN returns the configured base DN, falling back to the root DSE's
	// defaultNamingContext when none is configured.
	BaseDN(ctx context.Context) (string, error)

	Ping(ctx context.Context) error
	Stats() PoolStats
	Close() error
}

const defaultPageSize = 1000

type client struct {
	pool *Pool
	cfg  *Config
	log  *zap.Logger
}

// NewClient builds a Client over a fresh pool for cfg.
func NewClient(cfg *Config, log *zap.Logger) (Client, error) {
	pool, err := NewPool(cfg, log)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &client{pool: pool, cfg: cfg, log: log.Named("ldap")}, nil
}

func (c *client) Search(ctx context.Context, req *SearchRequest) ([]*Entry, error) {
	if req == nil {
		return nil, NewInvalidInputError("search", "nil search request")
	}

	conn, err := c.pool.AcquireService(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	start := time.Now()
	var raw []*ldap.Entry
	if req.Paged {
		raw, err = c.searchPaged(conn, req)
	} else {
		raw, err = c.searchSingle(conn, req)
	}
	if err != nil {
		return nil, WrapErrorDN("search", req.BaseDN, err)
	}

	c.log.Debug("search completed",
		zap.String("base_dn", req.BaseDN),
		zap.String("filter", req.Filter),
		zap.Int("entries", len(raw)),
		zap.Duration("elapsed", time.Since(start)))

	entries := make([]*Entry, len(raw))
	for i, e := range raw {
		entries[i] = newEntry(e)
	}
	return entries, nil
}

func (c *client) searchSingle(conn *Conn, req *SearchRequest) ([]*ldap.Entry, error) {
	ldapReq := ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		ldap.NeverDerefAliases,
		req.SizeLimit,
		int(req.TimeLimit.Seconds()),
		false,
		req.Filter,
		req.Attributes,
		nil,
	)

	res, err := conn.Raw().Search(ldapReq)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

func (c *client) searchPaged(conn *Conn, req *SearchRequest) ([]*ldap.Entry, error) {
	ldapReq := ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		ldap.NeverDerefAliases,
		0,
		int(req.TimeLimit.Seconds()),
		false,
		req.Filter,
		req.Attributes,
		nil,
	)

	res, err := conn.Raw().SearchWithPaging(ldapReq, defaultPageSize)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

func (c *client) Get(ctx context.Context, dn string, attributes []string) (*Entry, error) {
	if dn == "" {
		return nil, NewInvalidInputError("get", "empty DN")
	}

	entries, err := c.Search(ctx, &SearchRequest{
		BaseDN:     dn,
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: attributes,
		SizeLimit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &DirectoryError{Op: "get", Kind: KindNotFound, DN: dn, Message: "no such object"}
	}
	return entries[0], nil
}

func (c *client) Add(ctx context.Context, req *AddRequest) error {
	if req == nil || req.DN == "" {
		return NewInvalidInputError("add", "missing DN")
	}

	conn, err := c.pool.AcquireService(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	ldapReq := ldap.NewAddRequest(req.DN, nil)
	for attr, values := range req.Attributes {
		ldapReq.Attribute(attr, values)
	}

	return WrapErrorDN("add", req.DN, conn.Raw().Add(ldapReq))
}

func (c *client) Modify(ctx context.Context, req *ModifyRequest) error {
	if req == nil || req.DN == "" {
		return NewInvalidInputError("modify", "missing DN")
	}

	conn, err := c.pool.AcquireService(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	ldapReq := ldap.NewModifyRequest(req.DN, nil)
	for attr, values := range req.AddAttributes {
		ldapReq.Add(attr, values)
	}
	for attr, values := range req.ReplaceAttributes {
		ldapReq.Replace(attr, values)
	}
	for attr, values := range req.DeleteAttributes {
		ldapReq.Delete(attr, values)
	}

	return WrapErrorDN("modify", req.DN, conn.Raw().Modify(ldapReq))
}

func (c *client) ModifyDN(ctx context.Context, req *ModifyDNRequest) error {
	if req == nil || req.DN == "" || req.NewRDN == "" {
		return NewInvalidInputError("modify_dn", "missing DN or new RDN")
	}

	conn, err := c.pool.AcquireService(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	ldapReq := ldap.NewModifyDNRequest(req.DN, req.NewRDN, req.DeleteOldRDN, req.NewSuperior)
	return WrapErrorDN("modify_dn", req.DN, conn.Raw().ModifyDN(ldapReq))
}

func (c *client) Delete(ctx context.Context, dn string) error {
	if dn == "" {
		return NewInvalidInputError("delete", "empty DN")
	}

	conn, err := c.pool.AcquireService(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return WrapErrorDN("delete", dn, conn.Raw().Del(ldap.NewDelRequest(dn, nil)))
}

func (c *client) UserBind(ctx context.Context, bindDN, password string) error {
	conn, err := c.pool.AcquireUser(ctx, bindDN, password)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

func (c *client) BaseDN(ctx context.Context) (string, error) {
	if c.cfg.BaseDN != "" {
		return c.cfg.BaseDN, nil
	}

	entries, err := c.Search(ctx, &SearchRequest{
		BaseDN:     "",
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: []string{"defaultNamingContext"},
		SizeLimit:  1,
		TimeLimit:  5 * time.Second,
	})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", &DirectoryError{Op: "base_dn", Kind: KindBackend, Message: "no root DSE returned"}
	}

	baseDN := entries[0].String("defaultNamingContext")
	if baseDN == "" {
		return "", &DirectoryError{Op: "base_dn", Kind: KindBackend, Message: "root DSE has no defaultNamingContext"}
	}
	return baseDN, nil
}

// Ping issues a minimal root DSE search to verify connectivity.
func (c *client) Ping(ctx context.Context) error {
	_, err := c.Search(ctx, &SearchRequest{
		BaseDN:     "",
		Scope:      ScopeBaseObject,
		Filter:     "(objectClass=*)",
		Attributes: []string{"defaultNamingContext"},
		SizeLimit:  1,
		TimeLimit:  5 * time.Second,
	})
	return err
}

func (c *client) Stats() PoolStats {
	return c.pool.Stats()
}

func (c *client) Close() error {
	return c.pool.Close()
}
