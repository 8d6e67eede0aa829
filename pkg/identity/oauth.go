package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// OAuthConfig configures the OAuth identity provider, populated from the
// environment by pkg/config.
type OAuthConfig struct {
	ClientID     string   `env:"OAUTH_CLIENT_ID,required"`
	ClientSecret string   `env:"OAUTH_CLIENT_SECRET,required"`
	RedirectURL  string   `env:"OAUTH_REDIRECT_URL,required"`
	AuthURL      string   `env:"OAUTH_AUTH_URL,required"`
	TokenURL     string   `env:"OAUTH_TOKEN_URL,required"`
	UserInfoURL  string   `env:"OAUTH_USERINFO_URL,required"`
	Scopes       []string `env:"OAUTH_SCOPES" envSeparator:"," envDefault:"openid,email"`
}

var (
	ErrInvalidCode       = errors.New("invalid authorization code")
	ErrUserInfoFailed    = errors.New("failed to fetch user info")
	ErrIncompleteProfile = errors.New("identity provider returned an incomplete profile")
)

// OAuthProvider authenticates users against an external OAuth2 identity
// provider. Account IDs are derived deterministically from the provider's
// subject, so the same external user always maps to the same local UUID
// without a lookup table.
type OAuthProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewOAuthProvider builds the provider from configuration.
func NewOAuthProvider(cfg OAuthConfig) *OAuthProvider {
	return &OAuthProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

// AuthCodeURL builds the authorization URL for the given CSRF state token.
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authenticate exchanges an authorization code and resolves the user's
// identity from the provider's userinfo endpoint.
func (p *OAuthProvider) Authenticate(ctx context.Context, code string) (*User, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Join(ErrInvalidCode, err)
	}
	return p.fetchUser(p.config.Client(ctx, token))
}

// CurrentUser implements Provider for API traffic: the request's bearer
// token, stashed in the context by BearerMiddleware, is presented to the
// userinfo endpoint. A token the endpoint refuses means an unauthenticated
// caller, not an upstream failure.
func (p *OAuthProvider) CurrentUser(ctx context.Context) (*User, error) {
	token, ok := BearerFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return p.fetchUser(oauth2.NewClient(ctx,
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})))
}

func (p *OAuthProvider) fetchUser(client *http.Client) (*User, error) {
	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, errors.Join(ErrUserInfoFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthenticated
	default:
		return nil, errors.Join(ErrUserInfoFailed,
			fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode))
	}

	var info struct {
		Subject string `json:"sub"`
		ID      string `json:"id"` // some providers use "id" instead of "sub"
		Email   string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Join(ErrUserInfoFailed, err)
	}

	subject := info.Subject
	if subject == "" {
		subject = info.ID
	}
	if subject == "" || info.Email == "" {
		return nil, ErrIncompleteProfile
	}

	return &User{
		ID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte(p.userInfoURL+"#"+subject)),
		Email: info.Email,
	}, nil
}

type bearerKey struct{}

// WithBearerToken attaches a bearer token for CurrentUser to resolve.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

// BearerFromContext retrieves the bearer token, if any.
func BearerFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok && token != ""
}

// BearerMiddleware copies the Authorization bearer token into the request
// context. Requests without one pass through untouched; CurrentUser rejects
// them later.
func BearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if token, found := strings.CutPrefix(auth, "Bearer "); found && token != "" {
			r = r.WithContext(WithBearerToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}
