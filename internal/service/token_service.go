package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
)

// RefreshWindow is how close to expiry a token may get before it is
// refreshed ahead of use.
const RefreshWindow = 5 * time.Minute

// Platforms whose tokens are refreshed inline before publishing. Twitter and
// Instagram are only refreshed by the background job.
var refreshOnPublish = map[string]bool{
	models.PlatformYoutube: true,
	models.PlatformTiktok:  true,
}

type TokenService interface {
	// Open returns a copy of acc with decrypted tokens.
	Open(acc *models.SocialAccount) (*models.SocialAccount, error)
	// EnsureFresh refreshes acc when its token is expired or about to expire
	// and the platform supports refresh on the publish path.
	EnsureFresh(ctx context.Context, acc *models.SocialAccount) (*models.SocialAccount, error)
	// Refresh unconditionally exchanges the refresh credential and persists
	// the new tokens.
	Refresh(ctx context.Context, acc *models.SocialAccount) (*models.SocialAccount, error)
	CanRefresh(platform string) bool
}

type tokenService struct {
	cfg    config.Config
	sa     repository.SocialAccountRepository
	cipher *utils.TokenCipher
	client *http.Client
	now    func() time.Time
	group  singleflight.Group
}

func NewTokenService(cfg config.Config, sa repository.SocialAccountRepository, cipher *utils.TokenCipher, client *http.Client) TokenService {
	if client == nil {
		client = http.DefaultClient
	}
	return &tokenService{
		cfg:    cfg,
		sa:     sa,
		cipher: cipher,
		client: client,
		now:    time.Now,
	}
}

func (s *tokenService) Open(acc *models.SocialAccount) (*models.SocialAccount, error) {
	accessToken, err := s.cipher.Open(acc.AccessToken)
	if err != nil {
		return nil, &ReconnectRequiredError{Platform: acc.Platform, Err: fmt.Errorf("decrypt access token: %w", err)}
	}
	refreshToken, err := s.cipher.Open(acc.RefreshToken)
	if err != nil {
		return nil, &ReconnectRequiredError{Platform: acc.Platform, Err: fmt.Errorf("decrypt refresh token: %w", err)}
	}

	plain := *acc
	plain.AccessToken = accessToken
	plain.RefreshToken = refreshToken
	return &plain, nil
}

func (s *tokenService) CanRefresh(platform string) bool {
	switch platform {
	case models.PlatformYoutube, models.PlatformTiktok, models.PlatformTwitter, models.PlatformInstagram:
		return true
	default:
		return false
	}
}

func (s *tokenService) needsRefresh(acc *models.SocialAccount) bool {
	if acc.TokenExpiresAt.IsZero() {
		return false
	}
	return !acc.TokenExpiresAt.After(s.now().Add(RefreshWindow))
}

func (s *tokenService) EnsureFresh(ctx context.Context, acc *models.SocialAccount) (*models.SocialAccount, error) {
	if !refreshOnPublish[acc.Platform] || !s.needsRefresh(acc) {
		return acc, nil
	}
	LoggerFrom(ctx).Info("refreshing token before publish", "platform", acc.Platform, "expires_at", acc.TokenExpiresAt)
	return s.Refresh(ctx, acc)
}

func (s *tokenService) Refresh(ctx context.Context, acc *models.SocialAccount) (*models.SocialAccount, error) {
	if !s.CanRefresh(acc.Platform) {
		return nil, fmt.Errorf("%s: %w", acc.Platform, ErrRefreshUnsupported)
	}

	key := fmt.Sprintf("%d:%s", acc.UserID, acc.Platform)
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.refresh(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SocialAccount), nil
}

func (s *tokenService) refresh(ctx context.Context, acc *models.SocialAccount) (*models.SocialAccount, error) {
	logger := LoggerFrom(ctx)

	token, err := s.exchange(ctx, acc)
	if err != nil {
		logger.Warn("token refresh failed", "platform", acc.Platform, "error", err)
		if statusErr := s.sa.SetStatus(context.WithoutCancel(ctx), acc.UserID, acc.Platform, models.AccountStatusReconnectRequired); statusErr != nil {
			logger.Error("unable to flag account for reconnect", "platform", acc.Platform, "error", statusErr)
		}
		return nil, &ReconnectRequiredError{Platform: acc.Platform, Err: err}
	}

	sealedAccess, err := s.cipher.Seal(token.AccessToken)
	if err != nil {
		return nil, err
	}
	sealedRefresh, err := s.cipher.Seal(token.RefreshToken)
	if err != nil {
		return nil, err
	}

	patch := models.TokenPatch{
		AccessToken:    sealedAccess,
		RefreshToken:   sealedRefresh,
		TokenExpiresAt: token.Expiry,
	}
	if err := s.sa.UpdateToken(context.WithoutCancel(ctx), acc.UserID, acc.Platform, patch); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}

	updated := *acc
	updated.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		updated.RefreshToken = token.RefreshToken
	}
	updated.TokenExpiresAt = token.Expiry
	updated.AccountStatus = models.AccountStatusActive
	logger.Info("token refreshed", "platform", acc.Platform, "expires_at", token.Expiry)
	return &updated, nil
}

func (s *tokenService) exchange(ctx context.Context, acc *models.SocialAccount) (*oauth2.Token, error) {
	switch acc.Platform {
	case models.PlatformYoutube:
		endpoint := google.Endpoint
		endpoint.TokenURL = s.cfg.Platforms.GoogleTokenURL
		endpoint.AuthStyle = oauth2.AuthStyleInParams
		return s.oauth2Refresh(ctx, &oauth2.Config{
			ClientID:     s.cfg.GoogleClientID,
			ClientSecret: s.cfg.GoogleClientSecret,
			Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
			Endpoint:     endpoint,
		}, acc.RefreshToken)
	case models.PlatformTwitter:
		return s.oauth2Refresh(ctx, &oauth2.Config{
			ClientID:     s.cfg.TwitterClientID,
			ClientSecret: s.cfg.TwitterClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  s.cfg.Platforms.TwitterTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		}, acc.RefreshToken)
	case models.PlatformTiktok:
		return s.refreshTiktok(ctx, acc.RefreshToken)
	case models.PlatformInstagram:
		return s.refreshInstagram(ctx, acc.AccessToken)
	default:
		return nil, ErrRefreshUnsupported
	}
}

func (s *tokenService) oauth2Refresh(ctx context.Context, conf *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is empty")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *tokenService) refreshTiktok(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token is empty")
	}

	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	endpoint := strings.TrimRight(s.cfg.Platforms.TiktokAPIURL, "/") + "/v2/oauth/token/"
	var tokenResponse transfer.TiktokTokenResponse
	if _, err := formCall(models.PlatformTiktok, "refresh token", endpoint, data).do(ctx, s.client, &tokenResponse); err != nil {
		return nil, err
	}
	if tokenResponse.Error != "" || tokenResponse.AccessToken == "" {
		return nil, fmt.Errorf("tiktok refresh rejected: %s %s", tokenResponse.Error, tokenResponse.ErrorDescription)
	}

	return &oauth2.Token{
		AccessToken:  tokenResponse.AccessToken,
		RefreshToken: tokenResponse.RefreshToken,
		Expiry:       GetExpiresAt(tokenResponse.ExpiresIn),
	}, nil
}

func (s *tokenService) refreshInstagram(ctx context.Context, accessToken string) (*oauth2.Token, error) {
	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", accessToken)
	endpoint := strings.TrimRight(s.cfg.Platforms.InstagramGraphURL, "/") + "/refresh_access_token?" + params.Encode()

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	call := apiCall{platform: models.PlatformInstagram, step: "refresh token", method: http.MethodGet, endpoint: endpoint}
	if _, err := call.do(ctx, s.client, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, errors.New("instagram refresh returned no access token")
	}

	return &oauth2.Token{AccessToken: result.AccessToken, Expiry: GetExpiresAt(result.ExpiresIn)}, nil
}
