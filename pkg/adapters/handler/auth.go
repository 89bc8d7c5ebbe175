package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wadjakorntonsri/trimrr/pkg/config"
)

const (
	stateCookie = "oauthstate"
	tokenTTL    = 24 * time.Hour
	userInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

type AuthHandler struct {
	oauthConfig   *oauth2.Config
	jwtSecret     []byte
	frontendURL   string
	allowedEmails []string
	isProduction  bool
	logger        *slog.Logger
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewAuthHandler(cfg *config.Config, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		jwtSecret:     []byte(cfg.JWTSecret),
		frontendURL:   cfg.FrontendURL,
		allowedEmails: cfg.AllowedEmails,
		isProduction:  cfg.AppEnv == "production",
		logger:        logger,
	}
}

func (h *AuthHandler) Login(c *gin.Context) {
	state, err := h.setStateCookie(c)
	if err != nil {
		fail(c, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, h.oauthConfig.AuthCodeURL(state))
}

func (h *AuthHandler) Callback(c *gin.Context) {
	state, err := c.Cookie(stateCookie)
	if err != nil {
		h.logger.Warn("oauth callback without state cookie", slog.Any("err", err))
		c.Redirect(http.StatusTemporaryRedirect, "/")
		return
	}

	if c.Query("state") != state {
		h.logger.Warn("oauth callback with mismatched state")
		WriteProblem(c, Problem{
			Type:   ProblemTypeUnauthorized,
			Title:  http.StatusText(http.StatusBadRequest),
			Status: http.StatusBadRequest,
			Detail: "invalid oauth state",
		})
		return
	}

	ctx := c.Request.Context()
	token, err := h.oauthConfig.Exchange(ctx, c.Query("code"))
	if err != nil {
		fail(c, fmt.Errorf("auth: code exchange: %w", err))
		return
	}

	user, err := h.fetchUser(c, token)
	if err != nil {
		fail(c, err)
		return
	}

	email := strings.ToLower(user.Email)
	if len(h.allowedEmails) > 0 && !slices.Contains(h.allowedEmails, email) {
		h.logger.Warn("login rejected by allowlist", slog.String("email", email))
		WriteProblem(c, Problem{
			Type:   ProblemTypeForbidden,
			Title:  http.StatusText(http.StatusForbidden),
			Status: http.StatusForbidden,
			Detail: "your email is not in the allowlist",
		})
		return
	}

	signed, expires, err := IssueToken(h.jwtSecret, email, time.Now())
	if err != nil {
		fail(c, err)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     authCookie,
		Value:    signed,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("login successful", slog.String("email", email))
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/login")
}

func (h *AuthHandler) fetchUser(c *gin.Context, token *oauth2.Token) (*GoogleUser, error) {
	client := h.oauthConfig.Client(c.Request.Context(), token)
	resp, err := client.Get(userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("auth: user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: user info: status %d", resp.StatusCode)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decode user info: %w", err)
	}
	return &user, nil
}

func (h *AuthHandler) setStateCookie(c *gin.Context) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: state: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Expires:  time.Now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// IssueToken signs an HS256 token whose subject is the owner id.
func IssueToken(secret []byte, subject string, now time.Time) (string, time.Time, error) {
	expires := now.Add(tokenTTL)
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expires, nil
}
