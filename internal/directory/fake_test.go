package directory

import (
	"context"
	"errors"
	"strings"

	adldap "github.com/isometry/admanager/internal/ldap"
)

// fakeClient is an in-memory ldap.Client for service tests. Operations are
// recorded in order; per-operation hooks inject failures.
type fakeClient struct {
	entries map[string]*adldap.Entry // keyed by lowercase DN

	searchResults []*adldap.Entry
	ops           []fakeOp

	searchErr   error
	addErr      error
	modifyErr   func(req *adldap.ModifyRequest) error
	deleteErr   error
	userBindErr error
}

type fakeOp struct {
	name string // "search", "add", "modify", "delete", "user_bind"
	dn   string
	req  any
}

func newFakeClient() *fakeClient {
	return &fakeClient{entries: make(map[string]*adldap.Entry)}
}

func (f *fakeClient) put(entry *adldap.Entry) {
	f.entries[strings.ToLower(entry.DN)] = entry
}

func (f *fakeClient) Search(ctx context.Context, req *adldap.SearchRequest) ([]*adldap.Entry, error) {
	f.ops = append(f.ops, fakeOp{name: "search", dn: req.BaseDN, req: req})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults, nil
}

func (f *fakeClient) Get(ctx context.Context, dn string, attributes []string) (*adldap.Entry, error) {
	f.ops = append(f.ops, fakeOp{name: "get", dn: dn})
	entry, ok := f.entries[strings.ToLower(dn)]
	if !ok {
		return nil, &adldap.DirectoryError{Op: "get", Kind: adldap.KindNotFound, DN: dn, Message: "no such object"}
	}
	return entry, nil
}

func (f *fakeClient) Add(ctx context.Context, req *adldap.AddRequest) error {
	f.ops = append(f.ops, fakeOp{name: "add", dn: req.DN, req: req})
	return f.addErr
}

func (f *fakeClient) Modify(ctx context.Context, req *adldap.ModifyRequest) error {
	f.ops = append(f.ops, fakeOp{name: "modify", dn: req.DN, req: req})
	if f.modifyErr != nil {
		return f.modifyErr(req)
	}
	return nil
}

func (f *fakeClient) ModifyDN(ctx context.Context, req *adldap.ModifyDNRequest) error {
	f.ops = append(f.ops, fakeOp{name: "modify_dn", dn: req.DN, req: req})
	return nil
}

func (f *fakeClient) Delete(ctx context.Context, dn string) error {
	f.ops = append(f.ops, fakeOp{name: "delete", dn: dn})
	return f.deleteErr
}

func (f *fakeClient) UserBind(ctx context.Context, bindDN, password string) error {
	f.ops = append(f.ops, fakeOp{name: "user_bind", dn: bindDN})
	return f.userBindErr
}

func (f *fakeClient) BaseDN(ctx context.Context) (string, error) {
	return "DC=example,DC=com", nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }

func (f *fakeClient) Stats() adldap.PoolStats { return adldap.PoolStats{} }

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) opNames() []string {
	names := make([]string, len(f.ops))
	for i, op := range f.ops {
		names[i] = op.name
	}
	return names
}

var errFakeBackend = errors.New("backend exploded")
