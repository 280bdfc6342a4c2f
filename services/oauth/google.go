package oauthsvc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	stateTTL          = 10 * time.Minute
)

var (
	ErrDisabled     = core.NewNotFoundError("Google authentication is not configured")
	ErrInvalidState = core.NewUnauthorizedError("Invalid or expired OAuth state")
	ErrNoEmail      = core.NewUnauthorizedError("Google account has no verified email")
)

type googleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	states      *cache.Cache
}

var _ user.IdentityProvider = (*googleProvider)(nil)

// NewGoogleProvider signs users in with their Google account (profile and email scopes).
func NewGoogleProvider(conf *core.Config) user.IdentityProvider {
	return newGoogleProvider(conf, google.Endpoint, googleUserInfoURL)
}

func newGoogleProvider(conf *core.Config, endpoint oauth2.Endpoint, userInfoURL string) *googleProvider {
	return &googleProvider{
		oauth: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: userInfoURL,
		states:      cache.New(stateTTL, 2*stateTTL),
	}
}

func (p *googleProvider) Enabled() bool {
	return p.oauth.ClientID != "" && p.oauth.ClientSecret != ""
}

func (p *googleProvider) AuthCodeURL() (string, error) {
	if !p.Enabled() {
		return "", ErrDisabled
	}
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generating state")
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	p.states.SetDefault(state, struct{}{})
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

func (p *googleProvider) Exchange(ctx context.Context, state, code string) (user.FederatedProfile, error) {
	if !p.Enabled() {
		return user.FederatedProfile{}, ErrDisabled
	}
	if _, found := p.states.Get(state); !found || state == "" {
		return user.FederatedProfile{}, ErrInvalidState
	}
	p.states.Delete(state) // states are single use

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return user.FederatedProfile{}, core.NewUnauthorizedError("Google authentication failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return user.FederatedProfile{}, errors.Wrap(err, "building userinfo request")
	}
	res, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return user.FederatedProfile{}, errors.Wrap(err, "fetching google userinfo")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return user.FederatedProfile{}, fmt.Errorf("fetching google userinfo: status %d", res.StatusCode)
	}

	var info googleUserInfo
	if err = json.NewDecoder(res.Body).Decode(&info); err != nil {
		return user.FederatedProfile{}, errors.Wrap(err, "decoding google userinfo")
	}
	if info.Email == "" || !info.EmailVerified {
		return user.FederatedProfile{}, ErrNoEmail
	}

	return user.FederatedProfile{
		ProviderID:  info.Sub,
		DisplayName: info.Name,
		Email:       core.CleanString(info.Email, true /* lower */),
		AvatarURL:   info.Picture,
	}, nil
}
