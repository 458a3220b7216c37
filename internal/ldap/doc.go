// Package ldap provides the pooled, failover-aware connection layer for
// Active Directory, a uniform error taxonomy over LDAP result codes, and
// codecs for directory-specific value encodings (DNs, GUIDs, SIDs,
// FILETIME timestamps).
package ldap
