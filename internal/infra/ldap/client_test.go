package ldap

import (
	"context"
	"errors"
	"testing"

	ldapv3 "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/SKB-CADDep/authentication-service/internal/infra/config"
)

type stubConn struct {
	bindErr   error
	boundAs   string
	boundWith string
	binds     []string
	searchReq *ldapv3.SearchRequest
	searchErr error
	entries   []*ldapv3.Entry
	closed    bool
}

func (c *stubConn) Bind(username, password string) error {
	c.boundAs = username
	c.boundWith = password
	c.binds = append(c.binds, username)
	return c.bindErr
}

func (c *stubConn) Search(req *ldapv3.SearchRequest) (*ldapv3.SearchResult, error) {
	c.searchReq = req
	if c.searchErr != nil {
		return nil, c.searchErr
	}
	return &ldapv3.SearchResult{Entries: c.entries}, nil
}

func (c *stubConn) Close() error {
	c.closed = true
	return nil
}

func newStubClient(conn *stubConn) *Client {
	client := NewClient(config.LDAPSettings{
		Host:       "dc.example.local",
		Port:       389,
		BaseDN:     "DC=example,DC=local",
		UserSuffix: "@example.local",
	}, zap.NewNop())
	client.dial = func(context.Context) (ldapConn, error) {
		return conn, nil
	}
	return client
}

func testEntry(attrs map[string][]string) *ldapv3.Entry {
	entry := &ldapv3.Entry{DN: "CN=John Doe,DC=example,DC=local"}
	for name, values := range attrs {
		entry.Attributes = append(entry.Attributes, &ldapv3.EntryAttribute{
			Name:   name,
			Values: values,
		})
	}
	return entry
}

func TestAuthenticateRejectsEmptyPasswordBeforeDial(t *testing.T) {
	client := NewClient(config.LDAPSettings{Host: "dc.example.local"}, zap.NewNop())
	dialed := false
	client.dial = func(context.Context) (ldapConn, error) {
		dialed = true
		return nil, errors.New("must not dial")
	}

	_, err := client.Authenticate(context.Background(), "jdoe", "")
	if !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if dialed {
		t.Fatal("empty password must be rejected before any directory contact")
	}
}

func TestAuthenticateBindsWithSuffixedPrincipal(t *testing.T) {
	conn := &stubConn{
		entries: []*ldapv3.Entry{testEntry(map[string][]string{
			"sAMAccountName": {"jdoe"},
		})},
	}
	client := newStubClient(conn)

	if _, err := client.Authenticate(context.Background(), "jdoe", "secret"); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	if conn.boundAs != "jdoe@example.local" {
		t.Fatalf("expected bind as jdoe@example.local, got %q", conn.boundAs)
	}
	if !conn.closed {
		t.Fatal("connection must be closed after authentication")
	}
}

func TestAuthenticateBindFailure(t *testing.T) {
	conn := &stubConn{
		bindErr: ldapv3.NewError(ldapv3.LDAPResultInvalidCredentials, errors.New("invalid credentials")),
	}
	client := newStubClient(conn)

	_, err := client.Authenticate(context.Background(), "jdoe", "wrong")
	if !errors.Is(err, ErrBindFailed) {
		t.Fatalf("expected ErrBindFailed, got %v", err)
	}
	if !conn.closed {
		t.Fatal("connection must be closed after a failed bind")
	}
}

func TestAuthenticateRebindsAsServiceAccountForSearch(t *testing.T) {
	conn := &stubConn{
		entries: []*ldapv3.Entry{testEntry(map[string][]string{
			"sAMAccountName": {"jdoe"},
		})},
	}
	client := NewClient(config.LDAPSettings{
		Host:         "dc.example.local",
		Port:         389,
		BaseDN:       "DC=example,DC=local",
		UserSuffix:   "@example.local",
		BindUser:     "svc-auth@example.local",
		BindPassword: "svc-secret",
	}, zap.NewNop())
	client.dial = func(context.Context) (ldapConn, error) {
		return conn, nil
	}

	if _, err := client.Authenticate(context.Background(), "jdoe", "secret"); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	if len(conn.binds) != 2 {
		t.Fatalf("expected user bind then service rebind, got %v", conn.binds)
	}
	if conn.binds[0] != "jdoe@example.local" {
		t.Fatalf("first bind must be the user principal, got %q", conn.binds[0])
	}
	if conn.binds[1] != "svc-auth@example.local" {
		t.Fatalf("second bind must be the service account, got %q", conn.binds[1])
	}
}

func TestAuthenticateProfileNotFound(t *testing.T) {
	conn := &stubConn{}
	client := newStubClient(conn)

	_, err := client.Authenticate(context.Background(), "jdoe", "secret")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestAuthenticateSearchScopedToBaseDN(t *testing.T) {
	conn := &stubConn{
		entries: []*ldapv3.Entry{testEntry(map[string][]string{
			"sAMAccountName": {"jdoe"},
		})},
	}
	client := newStubClient(conn)

	if _, err := client.Authenticate(context.Background(), "jdoe", "secret"); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	if conn.searchReq.BaseDN != "DC=example,DC=local" {
		t.Fatalf("unexpected search base %q", conn.searchReq.BaseDN)
	}
	if conn.searchReq.Filter != "(sAMAccountName=jdoe)" {
		t.Fatalf("unexpected filter %q", conn.searchReq.Filter)
	}
	if conn.searchReq.Scope != ldapv3.ScopeWholeSubtree {
		t.Fatalf("unexpected scope %d", conn.searchReq.Scope)
	}
}

func TestAuthenticateEscapesFilterMetacharacters(t *testing.T) {
	conn := &stubConn{
		entries: []*ldapv3.Entry{testEntry(map[string][]string{
			"sAMAccountName": {"jdoe"},
		})},
	}
	client := newStubClient(conn)

	if _, err := client.Authenticate(context.Background(), "j*(doe)", "secret"); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	if conn.searchReq.Filter != "(sAMAccountName=j\\2a\\28doe\\29)" {
		t.Fatalf("expected escaped filter, got %q", conn.searchReq.Filter)
	}
}

func TestMapEntryFullProfile(t *testing.T) {
	entry := testEntry(map[string][]string{
		"sAMAccountName":  {"jdoe"},
		"mail":            {"jdoe@example.com"},
		"displayName":     {"John Doe"},
		"cn":              {"John Doe"},
		"department":      {"Engineering"},
		"title":           {"Engineer"},
		"telephoneNumber": {"+1 555 0100"},
		"memberOf": {
			"CN=Staff,DC=example,DC=local",
			"CN=VPN,DC=example,DC=local",
		},
	})

	profile := mapEntry(entry, "fallback")

	if profile.Username != "jdoe" {
		t.Fatalf("unexpected username %q", profile.Username)
	}
	if profile.Email == nil || *profile.Email != "jdoe@example.com" {
		t.Fatalf("unexpected email %v", profile.Email)
	}
	if profile.Department == nil || *profile.Department != "Engineering" {
		t.Fatalf("unexpected department %v", profile.Department)
	}
	if len(profile.Groups) != 2 {
		t.Fatalf("expected two groups, got %v", profile.Groups)
	}
}

func TestMapEntryMissingAttributesBecomeNil(t *testing.T) {
	entry := testEntry(map[string][]string{})

	profile := mapEntry(entry, "jdoe")

	if profile.Username != "jdoe" {
		t.Fatalf("expected fallback username, got %q", profile.Username)
	}
	if profile.Email != nil || profile.DisplayName != nil || profile.CommonName != nil ||
		profile.Department != nil || profile.Title != nil || profile.Phone != nil {
		t.Fatalf("expected nil optional attributes, got %+v", profile)
	}
	if len(profile.Groups) != 0 {
		t.Fatalf("expected no groups, got %v", profile.Groups)
	}
}
