package ldap

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// kerberosBind performs a GSSAPI bind of the service account. Credential
// preference order: keytab, then password.
func kerberosBind(conn *ldap.Conn, cfg *Config, ep Endpoint) error {
	if cfg.KerberosRealm == "" {
		return fmt.Errorf("kerberos realm is required")
	}
	if cfg.BindDN == "" {
		return fmt.Errorf("service principal is required for kerberos bind")
	}

	gssapiClient, err := newGSSAPIClient(cfg)
	if err != nil {
		return fmt.Errorf("create gssapi client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	spn := cfg.KerberosSPN
	if spn == "" {
		spn = "ldap/" + ep.Host
	}

	if err := conn.GSSAPIBind(gssapiClient, spn, ""); err != nil {
		return fmt.Errorf("gssapi bind: %w", err)
	}
	return nil
}

func newGSSAPIClient(cfg *Config) (ldap.GSSAPIClient, error) {
	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = "/etc/krb5.conf"
	}
	if !fileExists(krb5conf) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s", krb5conf)
	}

	// Service accounts may carry the realm in UPN form; the principal for
	// gokrb5 is the bare name.
	principal := cfg.BindDN
	if at := strings.Index(principal, "@"); at >= 0 {
		principal = principal[:at]
	}

	if cfg.KerberosKeytab != "" {
		if !fileExists(cfg.KerberosKeytab) {
			return nil, fmt.Errorf("keytab not found at %s", cfg.KerberosKeytab)
		}
		return gssapi.NewClientWithKeytab(principal, cfg.KerberosRealm, cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.BindPassword != "" {
		return gssapi.NewClientWithPassword(principal, cfg.KerberosRealm, cfg.BindPassword, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no keytab or password available for kerberos bind")
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
