package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/tallyworks/tally/internal/api/domain"
	"github.com/tallyworks/tally/internal/api/store"
	"github.com/tallyworks/tally/pkg/cryptox"
	"github.com/tallyworks/tally/pkg/idx"
	"github.com/tallyworks/tally/pkg/slogx"
)

var (
	ErrUnknownProvider       = errors.New("unknown oauth provider")
	ErrProviderNotConfigured = errors.New("oauth provider not configured")
	ErrOAuthExchangeFailed   = errors.New("oauth exchange failed")
	ErrOAuthNoEmail          = errors.New("oauth provider returned no email")
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// oauthProfile is the provider-independent identity extracted from userinfo.
type oauthProfile struct {
	Subject string
	Email   string
	Name    string
}

// OAuthService signs users in through Google or GitHub. Accounts are matched
// by provider subject first, then bound by email, then created fresh.
type OAuthService struct {
	Store    store.Store
	Sessions *SessionIssuer

	Google *oauth2.Config
	GitHub *oauth2.Config
}

// OAuthProviderConfig is the per-provider client credential pair.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// NewOAuthService wires the configured providers. A provider with no client
// id stays nil and is reported as not configured.
func NewOAuthService(st store.Store, sessions *SessionIssuer, redirectBase string, g, gh OAuthProviderConfig) *OAuthService {
	s := &OAuthService{Store: st, Sessions: sessions}

	if g.ClientID != "" {
		s.Google = &oauth2.Config{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirectBase + "/auth/oauth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
		}
	}
	if gh.ClientID != "" {
		s.GitHub = &oauth2.Config{
			ClientID:     gh.ClientID,
			ClientSecret: gh.ClientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  redirectBase + "/auth/oauth/github/callback",
			Scopes:       []string{"read:user", "user:email"},
		}
	}
	return s
}

func (s *OAuthService) config(provider string) (*oauth2.Config, error) {
	switch provider {
	case ProviderGoogle:
		if s.Google == nil {
			return nil, ErrProviderNotConfigured
		}
		return s.Google, nil
	case ProviderGitHub:
		if s.GitHub == nil {
			return nil, ErrProviderNotConfigured
		}
		return s.GitHub, nil
	}
	return nil, ErrUnknownProvider
}

// AuthURL returns the provider consent URL and a fresh state nonce. The HTTP
// layer pins the state in a cookie and checks it on callback.
func (s *OAuthService) AuthURL(provider string) (authURL, state string, err error) {
	cfg, err := s.config(provider)
	if err != nil {
		return "", "", err
	}
	state, err = cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", "", err
	}
	return cfg.AuthCodeURL(state), state, nil
}

// Login completes the callback: exchanges the code, fetches the profile and
// resolves it to an account with a fresh session.
func (s *OAuthService) Login(ctx context.Context, provider, code string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	cfg, err := s.config(provider)
	if err != nil {
		return LoginResult{}, err
	}

	// 1. Exchange the authorization code.
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		log.Warn("oauth code exchange failed",
			slog.String("provider", provider),
			slog.Any("error", err),
		)
		return LoginResult{}, ErrOAuthExchangeFailed
	}

	// 2. Fetch the provider profile.
	var profile oauthProfile
	switch provider {
	case ProviderGoogle:
		profile, err = fetchGoogleProfile(ctx, cfg, token)
	case ProviderGitHub:
		profile, err = fetchGitHubProfile(ctx, cfg, token)
	}
	if err != nil {
		log.Warn("oauth userinfo fetch failed",
			slog.String("provider", provider),
			slog.Any("error", err),
		)
		return LoginResult{}, err
	}
	if profile.Email == "" {
		return LoginResult{}, ErrOAuthNoEmail
	}

	// 3. Resolve to an account: by subject, by email, or create.
	account, err := s.resolveAccount(ctx, provider, profile)
	if err != nil {
		return LoginResult{}, err
	}

	sessionToken, err := s.Sessions.Issue(account)
	if err != nil {
		log.Error("failed to issue session", slog.Any("error", err))
		return LoginResult{}, err
	}

	log.Info("oauth login succeeded",
		slog.String("provider", provider),
		slog.String("account_id", account.ID),
	)
	return LoginResult{
		Token:              sessionToken,
		Account:            account,
		MustChangePassword: account.MustChangePassword,
	}, nil
}

func (s *OAuthService) resolveAccount(ctx context.Context, provider string, profile oauthProfile) (domain.Account, error) {
	account, err := s.Store.Accounts().GetByOAuthSubject(ctx, provider, profile.Subject)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, err
	}

	// Bind to an existing account with the same email.
	account, err = s.Store.Accounts().GetByEmail(ctx, profile.Email)
	if err == nil {
		account.OAuthProvider = provider
		account.OAuthSubject = profile.Subject
		if err := s.Store.Accounts().Update(ctx, account); err != nil {
			return domain.Account{}, err
		}
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, err
	}

	account = domain.Account{
		ID:            idx.New().String(),
		Email:         domain.NormalizeEmail(profile.Email),
		Name:          profile.Name,
		Role:          domain.RoleClient,
		OAuthProvider: provider,
		OAuthSubject:  profile.Subject,
		Permissions:   domain.NewPermissionSet(),
	}
	if err := s.Store.Accounts().Create(ctx, account); err != nil {
		return domain.Account{}, err
	}
	return account, nil
}

func fetchGoogleProfile(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (oauthProfile, error) {
	var info struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := fetchJSON(ctx, cfg, token, "https://openidconnect.googleapis.com/v1/userinfo", &info); err != nil {
		return oauthProfile{}, err
	}
	return oauthProfile{Subject: info.Sub, Email: info.Email, Name: info.Name}, nil
}

func fetchGitHubProfile(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (oauthProfile, error) {
	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := fetchJSON(ctx, cfg, token, "https://api.github.com/user", &user); err != nil {
		return oauthProfile{}, err
	}

	email := user.Email
	if email == "" {
		// Private primary emails need the dedicated endpoint.
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := fetchJSON(ctx, cfg, token, "https://api.github.com/user/emails", &emails); err != nil {
			return oauthProfile{}, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return oauthProfile{Subject: strconv.FormatInt(user.ID, 10), Email: email, Name: name}, nil
}

func fetchJSON(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token, url string, out any) error {
	resp, err := cfg.Client(ctx, token).Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrOAuthExchangeFailed, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
