package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pquerna/otp/totp"
	"wetterpost/internal/errorutil"
	"wetterpost/post"
)

// SocialClient talks to a REST gateway in front of the social platform's
// private API. One client serves one account.
type SocialClient struct {
	client    *resty.Client
	logger    *slog.Logger
	now       func() time.Time
	sessionID string
	username  string
}

// Credentials identify an account and the device profile the session is
// created with.
type Credentials struct {
	Username    string
	Password    string
	TOTPSecret  string
	Country     string // "DE"
	CountryCode int    // 49
	Locale      string // "de_DE"
	UTCOffset   int    // hours
	SessionFile string // persisted settings blob, reused across runs
}

// NewSocialClient creates an unauthenticated client for the gateway at baseURL.
func NewSocialClient(baseURL string, timeout time.Duration, log *slog.Logger) *SocialClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SocialClient{
		client: newRESTClient(strings.TrimRight(baseURL, "/"), timeout),
		logger: log,
		now:    time.Now,
	}
}

// Authenticated reports whether Login succeeded.
func (c *SocialClient) Authenticated() bool {
	return c.sessionID != ""
}

type gatewayError struct {
	Detail  string `json:"detail"`
	ExcType string `json:"exc_type"`
}

func gatewayFailure(resp *resty.Response) error {
	var body gatewayError
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Detail != "" {
		if body.ExcType != "" {
			return fmt.Errorf("gateway HTTP %d: %s: %s", resp.StatusCode(), body.ExcType, body.Detail)
		}
		return fmt.Errorf("gateway HTTP %d: %s", resp.StatusCode(), body.Detail)
	}
	return errorutil.NewStatusError("gateway request", resp.Request.URL, resp.StatusCode(), nil)
}

// decodeSessionID accepts either a JSON string or a bare token.
func decodeSessionID(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	var id string
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return "", err
		}
	} else {
		id = string(trimmed)
	}
	if id == "" {
		return "", errors.New("gateway returned an empty session id")
	}
	return id, nil
}

// Login authenticates in at most two attempts: first by restoring the
// persisted session blob, then with fresh credentials and a TOTP code. On
// success the current session blob is written back to SessionFile.
func (c *SocialClient) Login(ctx context.Context, creds Credentials) error {
	c.username = creds.Username
	attrs := append(errorutil.BotContext("", creds.Username), errorutil.URLContext(c.client.BaseURL)...)

	if creds.SessionFile != "" {
		err := c.restoreSession(ctx, creds)
		if err == nil {
			c.logger.Info("Session restored", slog.String("username", creds.Username))
			c.persistSession(ctx, creds.SessionFile)
			return nil
		}
		errorutil.LogWarning(c.logger, "session restore", err, attrs...)
		c.sessionID = ""
	}

	if err := c.freshLogin(ctx, creds); err != nil {
		c.sessionID = ""
		return errorutil.LogAndReturn(c.logger, "login", err, attrs...)
	}

	c.logger.Info("Login successful", slog.String("username", creds.Username))
	if creds.SessionFile != "" {
		c.persistSession(ctx, creds.SessionFile)
	}
	return nil
}

func (c *SocialClient) restoreSession(ctx context.Context, creds Credentials) error {
	settings, err := os.ReadFile(creds.SessionFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &AuthError{Username: creds.Username, Stage: "session", Err: errors.New("no stored session")}
		}
		return &AuthError{Username: creds.Username, Stage: "session", Err: err}
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"settings": string(settings)}).
		Post("/auth/settings/set")
	if err != nil {
		return &AuthError{Username: creds.Username, Stage: "session", Err: err}
	}
	if !resp.IsSuccess() {
		return &AuthError{Username: creds.Username, Stage: "session", Err: gatewayFailure(resp)}
	}

	id, err := decodeSessionID(resp.Body())
	if err != nil {
		return &AuthError{Username: creds.Username, Stage: "session", Err: err}
	}
	c.sessionID = id
	return c.verify(ctx)
}

func (c *SocialClient) freshLogin(ctx context.Context, creds Credentials) error {
	form := map[string]string{
		"username": creds.Username,
		"password": creds.Password,
		"locale":   creds.Locale,
		"country":  creds.Country,
		"timezone": strconv.Itoa(creds.UTCOffset * 3600),
	}
	if creds.CountryCode > 0 {
		form["country_code"] = strconv.Itoa(creds.CountryCode)
	}
	if creds.TOTPSecret != "" {
		code, err := totp.GenerateCode(normalizeSecret(creds.TOTPSecret), c.now())
		if err != nil {
			return &AuthError{Username: creds.Username, Stage: "totp", Err: err}
		}
		form["verification_code"] = code
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post("/auth/login")
	if err != nil {
		return &AuthError{Username: creds.Username, Stage: "login", Err: errorutil.NewNetworkError("login", "/auth/login", err)}
	}
	if !resp.IsSuccess() {
		return &AuthError{Username: creds.Username, Stage: "login", Err: gatewayFailure(resp)}
	}

	id, err := decodeSessionID(resp.Body())
	if err != nil {
		return &AuthError{Username: creds.Username, Stage: "login", Err: err}
	}
	c.sessionID = id
	return c.verify(ctx)
}

// verify issues a cheap authenticated call to prove the session works.
func (c *SocialClient) verify(ctx context.Context) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("sessionid", c.sessionID).
		Get("/auth/timeline_feed")
	if err != nil {
		return &AuthError{Username: c.username, Stage: "verify", Err: err}
	}
	if !resp.IsSuccess() {
		return &AuthError{Username: c.username, Stage: "verify", Err: gatewayFailure(resp)}
	}
	return nil
}

// persistSession stores the gateway's settings blob. Failures are logged
// only; the session itself is already usable.
func (c *SocialClient) persistSession(ctx context.Context, path string) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"sessionid": c.sessionID}).
		Post("/auth/settings/get")
	if err == nil && !resp.IsSuccess() {
		err = gatewayFailure(resp)
	}
	if err != nil {
		errorutil.LogWarning(c.logger, "session dump", err, errorutil.FileContext(path)...)
		return
	}

	if err := errorutil.EnsureDirectoryWithLogging(c.logger, filepath.Dir(path), 0700); err != nil {
		return
	}
	if err := errorutil.SafeFileWrite(c.logger, path, resp.Body(), 0600); err != nil {
		errorutil.LogWarning(c.logger, "session dump", err, errorutil.FileContext(path)...)
	}
}

func normalizeSecret(secret string) string {
	return strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
}

type gatewayLocation struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// AlbumUpload posts the images in order as a single album. It returns the
// media id reported by the gateway.
func (c *SocialClient) AlbumUpload(ctx context.Context, paths []string, caption string, loc post.Location) (string, error) {
	if !c.Authenticated() {
		return "", &UploadError{Images: paths, Err: errors.New("client is not logged in")}
	}

	req := c.client.R().SetContext(ctx).
		SetMultipartFormData(map[string]string{
			"sessionid": c.sessionID,
			"caption":   caption,
		})

	if loc.Name != "" {
		location, err := json.Marshal(gatewayLocation{Name: loc.Name, Lat: loc.Lat, Lng: loc.Lng})
		if err != nil {
			return "", &UploadError{Images: paths, Err: err}
		}
		req.SetMultipartField("location", "", "application/json", bytes.NewReader(location))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &UploadError{Images: paths, Err: errorutil.NewFileError("read", path, err)}
		}
		req.SetFileReader("files", filepath.Base(path), bytes.NewReader(data))
	}

	resp, err := req.Post("/album/upload")
	if err != nil {
		return "", &UploadError{Images: paths, Err: errorutil.LogNetworkError(c.logger,
			errorutil.NewNetworkError("album upload", c.client.BaseURL+"/album/upload", err))}
	}
	if !resp.IsSuccess() {
		return "", &UploadError{Images: paths, Err: gatewayFailure(resp)}
	}

	var media struct {
		PK   json.RawMessage `json:"pk"`
		ID   string          `json:"id"`
		Code string          `json:"code"`
	}
	if err := json.Unmarshal(resp.Body(), &media); err != nil {
		return "", &UploadError{Images: paths, Err: fmt.Errorf("unexpected upload response: %w", err)}
	}

	id := media.ID
	if id == "" {
		id = string(trimQuotes(media.PK))
	}
	c.logger.Info("Album uploaded",
		slog.String("username", c.username),
		slog.String("media_id", id),
		slog.String("code", media.Code),
		slog.Int("images", len(paths)))
	return id, nil
}
