package ldap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Kind classifies directory errors into the categories callers branch on.
type Kind string

const (
	KindUnavailable        Kind = "unavailable"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindPermissionDenied   Kind = "permission_denied"
	KindNotFound           Kind = "not_found"
	KindAlreadyExists      Kind = "already_exists"
	KindInvalidInput       Kind = "invalid_input"
	KindBackend            Kind = "backend"
)

// DirectoryError carries the operation, classification and LDAP result code
// of a failed directory operation. It wraps the underlying cause.
type DirectoryError struct {
	Op         string // operation that failed, e.g. "add", "user_bind"
	Kind       Kind
	ResultCode uint16 // LDAP result code, 0 when the failure never reached the server
	DN         string // DN involved, if applicable
	Message    string
	Cause      error
}

func (e *DirectoryError) Error() string {
	var parts []string

	if e.ResultCode > 0 {
		parts = append(parts, fmt.Sprintf("ldap %s failed (code %d)", e.Op, e.ResultCode))
	} else {
		parts = append(parts, fmt.Sprintf("ldap %s failed", e.Op))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("dn: %s", e.DN))
	}

	return strings.Join(parts, ": ")
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// WrapError classifies err and wraps it with the operation name. A nil err
// returns nil; an already-wrapped DirectoryError passes through with its
// operation filled in if empty.
func WrapError(op string, err error) error {
	return WrapErrorDN(op, "", err)
}

// WrapErrorDN is WrapError with the DN the operation targeted.
func WrapErrorDN(op, dn string, err error) error {
	if err == nil {
		return nil
	}

	var dirErr *DirectoryError
	if errors.As(err, &dirErr) {
		if dirErr.Op == "" {
			dirErr.Op = op
		}
		if dirErr.DN == "" {
			dirErr.DN = dn
		}
		return dirErr
	}

	wrapped := &DirectoryError{
		Op:    op,
		DN:    dn,
		Cause: err,
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		wrapped.ResultCode = ldapErr.ResultCode
		wrapped.Kind = kindForCode(ldapErr.ResultCode)
		if ldapErr.Err != nil {
			wrapped.Message = ldapErr.Err.Error()
		}
	} else {
		wrapped.Kind = kindForGenericError(err)
		wrapped.Message = err.Error()
	}

	return wrapped
}

// NewUnavailableError reports that no directory server could be reached.
func NewUnavailableError(op string, cause error) *DirectoryError {
	return &DirectoryError{
		Op:      op,
		Kind:    KindUnavailable,
		Message: "no directory server reachable",
		Cause:   cause,
	}
}

// NewInvalidInputError reports a request rejected before it reached the server.
func NewInvalidInputError(op, message string) *DirectoryError {
	return &DirectoryError{
		Op:      op,
		Kind:    KindInvalidInput,
		Message: message,
	}
}

// kindForCode maps an LDAP result code to an error kind.
func kindForCode(code uint16) Kind {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired:
		return KindInvalidCredentials

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return KindPermissionDenied

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return KindNotFound

	case ldap.LDAPResultEntryAlreadyExists,
		ldap.LDAPResultAttributeOrValueExists:
		return KindAlreadyExists

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation,
		ldap.LDAPResultObjectClassViolation,
		ldap.LDAPResultNotAllowedOnNonLeaf,
		ldap.LDAPResultNotAllowedOnRDN:
		return KindInvalidInput

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultConnectError,
		ldap.LDAPResultTimeout,
		ldap.LDAPResultTimeLimitExceeded:
		return KindUnavailable

	default:
		return KindBackend
	}
}

// kindForGenericError classifies non-LDAP errors, which are almost always
// transport failures surfaced by the dialer.
func kindForGenericError(err error) Kind {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "connection refused"),
		strings.Contains(errStr, "connection reset"),
		strings.Contains(errStr, "broken pipe"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "network"),
		strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "i/o timeout"):
		return KindUnavailable
	case strings.Contains(errStr, "credentials"),
		strings.Contains(errStr, "password"):
		return KindInvalidCredentials
	default:
		return KindBackend
	}
}

// KindOf returns the kind of err, or KindBackend for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var dirErr *DirectoryError
	if errors.As(err, &dirErr) {
		return dirErr.Kind
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return kindForCode(ldapErr.ResultCode)
	}

	return kindForGenericError(err)
}

// IsUnavailable reports whether err indicates no directory server was reachable.
func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// IsNotFound reports whether err indicates the target object does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsAlreadyExists reports whether err indicates the target already exists.
func IsAlreadyExists(err error) bool {
	return KindOf(err) == KindAlreadyExists
}

// IsPermissionDenied reports whether err indicates the bound identity lacks rights.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == KindPermissionDenied
}

// IsInvalidCredentials reports whether err indicates a failed bind.
func IsInvalidCredentials(err error) bool {
	return KindOf(err) == KindInvalidCredentials
}

// IsInvalidInput reports whether err indicates the server rejected the request
// as malformed or constraint-violating.
func IsInvalidInput(err error) bool {
	return KindOf(err) == KindInvalidInput
}
