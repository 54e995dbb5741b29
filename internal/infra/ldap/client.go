package ldap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	ldapv3 "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/SKB-CADDep/authentication-service/internal/core/domain"
	"github.com/SKB-CADDep/authentication-service/internal/core/port"
	"github.com/SKB-CADDep/authentication-service/internal/infra/config"
	applogger "github.com/SKB-CADDep/authentication-service/internal/infra/logger"
)

var (
	// ErrBindFailed indicates the directory rejected the credential bind.
	ErrBindFailed = errors.New("ldap: bind failed")
	// ErrProfileNotFound indicates the bind succeeded but no profile entry
	// matched the login name. Authentication requires both.
	ErrProfileNotFound = errors.New("ldap: profile not found")
	// ErrEmptyPassword indicates a blank password was rejected before any
	// directory contact. Some servers treat a blank credential as an
	// anonymous bind and report success.
	ErrEmptyPassword = errors.New("ldap: empty password")
)

// profileAttributes is the fixed attribute set requested for every profile
// search.
var profileAttributes = []string{
	"cn",
	"mail",
	"displayName",
	"sAMAccountName",
	"memberOf",
	"department",
	"title",
	"telephoneNumber",
}

// Client performs credential-verifying binds and profile searches against
// the directory server. Each authentication attempt dials its own
// connection; a bind is principal-specific, so connections are never pooled
// across users.
type Client struct {
	cfg    config.LDAPSettings
	logger *zap.Logger
	dial   func(ctx context.Context) (ldapConn, error)
}

// ldapConn is the subset of *ldapv3.Conn the client uses.
type ldapConn interface {
	Bind(username, password string) error
	Search(req *ldapv3.SearchRequest) (*ldapv3.SearchResult, error)
	Close() error
}

// NewClient constructs a directory client from LDAP settings.
func NewClient(cfg config.LDAPSettings, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{cfg: cfg, logger: logger}
	c.dial = c.dialConn
	return c
}

func (c *Client) dialConn(ctx context.Context) (ldapConn, error) {
	timeout := c.cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	addr := fmt.Sprintf("ldap://%s", net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port)))
	conn, err := ldapv3.DialURL(addr, ldapv3.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("dial directory: %w", err)
	}

	conn.SetTimeout(timeout)
	return conn, nil
}

// Authenticate verifies the credentials with a simple bind and, on success,
// resolves the user's profile with a single subtree search. Any directory or
// connection error surfaces as a failure; an unreachable directory never lets
// a user in. The connection is released on every exit path.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*domain.DirectoryProfile, error) {
	if password == "" {
		c.logger.Warn("empty password rejected", zap.String("username", username))
		return nil, ErrEmptyPassword
	}

	conn, err := c.dial(ctx)
	if err != nil {
		c.logger.Error("directory connection failed", zap.Error(err))
		return nil, err
	}
	defer func() {
		_ = conn.Close()
	}()

	principal := username + c.cfg.UserSuffix
	if err := conn.Bind(principal, password); err != nil {
		if ldapv3.IsErrorWithCode(err, ldapv3.LDAPResultInvalidCredentials) {
			c.logger.Warn("invalid credentials", zap.String("username", username))
		} else {
			c.logger.Error("bind error", zap.String("username", username), zap.Error(err))
		}
		return nil, fmt.Errorf("%w: %s", ErrBindFailed, ldapv3.LDAPResultCodeMap[resultCode(err)])
	}

	if c.cfg.BindUser != "" {
		// Rebind as the service account; some directories do not let a user
		// read their own attributes.
		if err := conn.Bind(c.cfg.BindUser, c.cfg.BindPassword); err != nil {
			c.logger.Error("service bind failed", zap.Error(err))
			return nil, fmt.Errorf("service bind: %w", err)
		}
	}

	profile, err := c.searchProfile(conn, username)
	if err != nil {
		return nil, err
	}

	c.logger.Info("user authenticated",
		zap.String("username", profile.Username),
		zap.String("email", applogger.MaskEmail(stringValue(profile.Email))),
	)

	return profile, nil
}

func (c *Client) searchProfile(conn ldapConn, username string) (*domain.DirectoryProfile, error) {
	filter := fmt.Sprintf("(sAMAccountName=%s)", ldapv3.EscapeFilter(username))
	req := ldapv3.NewSearchRequest(
		c.cfg.BaseDN,
		ldapv3.ScopeWholeSubtree,
		ldapv3.NeverDerefAliases,
		0, 0, false,
		filter,
		profileAttributes,
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		c.logger.Error("profile search failed", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("search profile: %w", err)
	}

	if len(result.Entries) == 0 {
		c.logger.Warn("user not found in directory", zap.String("username", username))
		return nil, ErrProfileNotFound
	}

	return mapEntry(result.Entries[0], username), nil
}

// mapEntry converts the first matched entry into a DirectoryProfile. Missing
// optional attributes become nil, never an error; group membership is taken
// verbatim without normalization or deduplication.
func mapEntry(entry *ldapv3.Entry, fallbackUsername string) *domain.DirectoryProfile {
	profile := &domain.DirectoryProfile{
		Username:    entry.GetAttributeValue("sAMAccountName"),
		Email:       optionalAttribute(entry, "mail"),
		DisplayName: optionalAttribute(entry, "displayName"),
		CommonName:  optionalAttribute(entry, "cn"),
		Department:  optionalAttribute(entry, "department"),
		Title:       optionalAttribute(entry, "title"),
		Phone:       optionalAttribute(entry, "telephoneNumber"),
		Groups:      entry.GetAttributeValues("memberOf"),
	}

	if profile.Username == "" {
		profile.Username = fallbackUsername
	}

	return profile
}

func optionalAttribute(entry *ldapv3.Entry, name string) *string {
	value := entry.GetAttributeValue(name)
	if value == "" {
		return nil
	}
	return &value
}

func resultCode(err error) uint16 {
	var ldapErr *ldapv3.Error
	if errors.As(err, &ldapErr) {
		return ldapErr.ResultCode
	}
	return ldapv3.LDAPResultOther
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ port.DirectoryClient = (*Client)(nil)
