package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"todo-calendar/internal/config"
	"todo-calendar/internal/logger"
	"todo-calendar/internal/service"
	"todo-calendar/internal/session"
)

const (
	stateCookie    = "oauth_state"
	stateTTL       = 10 * time.Minute
	googleUserInfo = "https://openidconnect.googleapis.com/v1/userinfo"
)

// OAuth runs the authorization code flow against the configured provider.
type OAuth struct {
	provider    string
	config      *oauth2.Config
	userInfoURL string
}

func NewOAuth(cfg config.OAuthConfig) *OAuth {
	endpoint := google.Endpoint
	userInfo := googleUserInfo
	if cfg.Provider != "google" {
		endpoint = oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}
		userInfo = cfg.UserInfoURL
	}
	return &OAuth{
		provider: cfg.Provider,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: userInfo,
	}
}

type userInfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Identify exchanges code for a token and reads the subject from the userinfo endpoint.
func (o *OAuth) Identify(ctx context.Context, code string) (service.Identity, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return service.Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := o.config.Client(ctx, token).Get(o.userInfoURL)
	if err != nil {
		return service.Identity{}, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return service.Identity{}, fmt.Errorf("user info status %d: %s", resp.StatusCode, body)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return service.Identity{}, fmt.Errorf("decode user info: %w", err)
	}
	if info.Sub == "" {
		return service.Identity{}, fmt.Errorf("user info has no subject")
	}
	return service.Identity{
		OpenID:      info.Sub,
		Name:        info.Name,
		Email:       info.Email,
		LoginMethod: o.provider,
	}, nil
}

func (s *Server) login(c *gin.Context) {
	state := uuid.NewString()
	opts := session.OptionsFor(c.Request)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusFound, s.oauth.config.AuthCodeURL(state))
}

func (s *Server) callback(c *gin.Context) {
	expected, err := c.Cookie(stateCookie)
	if err != nil || expected == "" || c.Query("state") != expected {
		c.JSON(http.StatusBadRequest, gin.H{"error": newError(CodeBadRequest, "OAuth state mismatch")})
		return
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": newError(CodeBadRequest, "code is required")})
		return
	}

	ctx := c.Request.Context()
	identity, err := s.oauth.Identify(ctx, code)
	if err != nil {
		s.log.Warn("oauth identify", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": newError(CodeInternal, "Sign-in with the identity provider failed")})
		return
	}

	user, err := s.users.Provision(ctx, identity, time.Now())
	if err != nil {
		apiErr, _ := toError(err)
		s.log.Error("provision user", zap.Error(err))
		c.JSON(apiErr.Code.Status(), gin.H{"error": apiErr})
		return
	}

	token, err := s.sessions.Issue(user.OpenID)
	if err != nil {
		s.log.Error("issue session", logger.WithUserID(user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": newError(CodeInternal, "Could not start a session")})
		return
	}

	opts := session.OptionsFor(c.Request)
	http.SetCookie(c.Writer, opts.Cookie(token, int(session.TTL.Seconds())))
	c.Redirect(http.StatusFound, "/")
}
