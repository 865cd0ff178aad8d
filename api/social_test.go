package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wetterpost/post"
)

const testTOTPSecret = "JBSWY3DPEHPK3PXP"

// fakeGateway mimics the social REST gateway closely enough for the client.
type fakeGateway struct {
	mu             sync.Mutex
	validSession   string
	acceptSettings bool
	failLogin      bool
	failUpload     bool
	calls          []string
	loginForm      map[string]string
	uploadFiles    []string
	uploadCaption  string
	uploadLocation string
}

func (g *fakeGateway) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/settings/set", func(w http.ResponseWriter, r *http.Request) {
		g.record("settings/set")
		if !g.acceptSettings {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"login_required","exc_type":"LoginRequired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(g.validSession)
	})

	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		g.record("login")
		assert.NoError(t, r.ParseForm())
		g.mu.Lock()
		g.loginForm = map[string]string{}
		for k := range r.PostForm {
			g.loginForm[k] = r.PostForm.Get(k)
		}
		g.mu.Unlock()
		if g.failLogin {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"The password you entered is incorrect.","exc_type":"BadPassword"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(g.validSession)
	})

	mux.HandleFunc("/auth/timeline_feed", func(w http.ResponseWriter, r *http.Request) {
		g.record("timeline_feed")
		if r.URL.Query().Get("sessionid") != g.validSession {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"feed_items":[]}`))
	})

	mux.HandleFunc("/auth/settings/get", func(w http.ResponseWriter, r *http.Request) {
		g.record("settings/get")
		_, _ = w.Write([]byte(`{"uuids":{"phone_id":"p1"},"authorization_data":{"sessionid":"` + g.validSession + `"}}`))
	})

	mux.HandleFunc("/album/upload", func(w http.ResponseWriter, r *http.Request) {
		g.record("album/upload")
		if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		g.mu.Lock()
		g.uploadCaption = r.FormValue("caption")
		g.uploadLocation = r.FormValue("location")
		for _, fh := range r.MultipartForm.File["files"] {
			f, err := fh.Open()
			if !assert.NoError(t, err) {
				continue
			}
			data, _ := io.ReadAll(f)
			f.Close()
			g.uploadFiles = append(g.uploadFiles, fh.Filename+":"+string(data))
		}
		g.mu.Unlock()
		if g.failUpload {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"detail":"upload rejected"}`))
			return
		}
		_, _ = w.Write([]byte(`{"pk":"3100000000000000001","id":"3100000000000000001_42","code":"C0deX"}`))
	})

	return mux
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func newTestSocialClient(t *testing.T, g *fakeGateway) *SocialClient {
	t.Helper()
	srv := httptest.NewServer(g.handler(t))
	t.Cleanup(srv.Close)
	c := NewSocialClient(srv.URL, 5*time.Second, nil)
	c.now = func() time.Time { return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC) }
	return c
}

func testCredentials(dir string) Credentials {
	return Credentials{
		Username:    "wetter.muenchen",
		Password:    "hunter2",
		TOTPSecret:  testTOTPSecret,
		Country:     "DE",
		CountryCode: 49,
		Locale:      "de_DE",
		UTCOffset:   1,
		SessionFile: filepath.Join(dir, "settings.dump"),
	}
}

func TestSocialClient_FreshLogin(t *testing.T) {
	g := &fakeGateway{validSession: "sess-1"}
	c := newTestSocialClient(t, g)
	creds := testCredentials(t.TempDir())

	require.NoError(t, c.Login(context.Background(), creds))
	assert.True(t, c.Authenticated())

	// No session file yet, so only the credential login runs.
	assert.Equal(t, []string{"login", "timeline_feed", "settings/get"}, g.calls)

	wantCode, err := totp.GenerateCode(testTOTPSecret, c.now())
	require.NoError(t, err)
	assert.Equal(t, wantCode, g.loginForm["verification_code"])
	assert.Equal(t, "3600", g.loginForm["timezone"])
	assert.Equal(t, "49", g.loginForm["country_code"])
	assert.Equal(t, "de_DE", g.loginForm["locale"])

	data, err := os.ReadFile(creds.SessionFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sess-1")

	info, err := os.Stat(creds.SessionFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSocialClient_RestoresSession(t *testing.T) {
	g := &fakeGateway{validSession: "sess-2", acceptSettings: true}
	c := newTestSocialClient(t, g)
	creds := testCredentials(t.TempDir())
	require.NoError(t, os.WriteFile(creds.SessionFile, []byte(`{"authorization_data":{}}`), 0600))

	require.NoError(t, c.Login(context.Background(), creds))
	assert.Equal(t, []string{"settings/set", "timeline_feed", "settings/get"}, g.calls)
}

func TestSocialClient_StaleSessionFallsBackToLogin(t *testing.T) {
	g := &fakeGateway{validSession: "sess-3"}
	c := newTestSocialClient(t, g)
	creds := testCredentials(t.TempDir())
	require.NoError(t, os.WriteFile(creds.SessionFile, []byte(`{"stale":true}`), 0600))

	require.NoError(t, c.Login(context.Background(), creds))
	assert.Equal(t, []string{"settings/set", "login", "timeline_feed", "settings/get"}, g.calls)
}

func TestSocialClient_LoginFails(t *testing.T) {
	g := &fakeGateway{validSession: "sess-4", failLogin: true}
	c := newTestSocialClient(t, g)

	err := c.Login(context.Background(), testCredentials(t.TempDir()))
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "login", authErr.Stage)
	assert.Contains(t, err.Error(), "BadPassword")
	assert.False(t, c.Authenticated())
}

func TestSocialClient_BadTOTPSecret(t *testing.T) {
	g := &fakeGateway{validSession: "sess-5"}
	c := newTestSocialClient(t, g)
	creds := testCredentials(t.TempDir())
	creds.TOTPSecret = "not base32!"

	err := c.Login(context.Background(), creds)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "totp", authErr.Stage)
	assert.NotContains(t, g.calls, "login")
}

func TestSocialClient_AlbumUpload(t *testing.T) {
	g := &fakeGateway{validSession: "sess-6"}
	c := newTestSocialClient(t, g)
	require.NoError(t, c.Login(context.Background(), testCredentials(t.TempDir())))

	dir := t.TempDir()
	paths := []string{filepath.Join(dir, "0.jpg"), filepath.Join(dir, "1.jpg")}
	require.NoError(t, os.WriteFile(paths[0], []byte("day0"), 0644))
	require.NoError(t, os.WriteFile(paths[1], []byte("day1"), 0644))

	loc := post.Location{Name: "München", Lat: 48.1374, Lng: 11.5755}
	id, err := c.AlbumUpload(context.Background(), paths, "Wetter (08:15)", loc)
	require.NoError(t, err)

	assert.Equal(t, "3100000000000000001_42", id)
	assert.Equal(t, []string{"0.jpg:day0", "1.jpg:day1"}, g.uploadFiles)
	assert.Equal(t, "Wetter (08:15)", g.uploadCaption)

	var gotLoc gatewayLocation
	require.NoError(t, json.Unmarshal([]byte(g.uploadLocation), &gotLoc))
	assert.Equal(t, "München", gotLoc.Name)
	assert.InDelta(t, 11.5755, gotLoc.Lng, 1e-9)
}

func TestSocialClient_AlbumUploadErrors(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		c := NewSocialClient("http://127.0.0.1:0", time.Second, nil)
		_, err := c.AlbumUpload(context.Background(), []string{"0.jpg"}, "", post.Location{})
		var upErr *UploadError
		assert.ErrorAs(t, err, &upErr)
	})

	t.Run("gateway rejects", func(t *testing.T) {
		g := &fakeGateway{validSession: "sess-7", failUpload: true}
		c := newTestSocialClient(t, g)
		require.NoError(t, c.Login(context.Background(), testCredentials(t.TempDir())))

		path := filepath.Join(t.TempDir(), "0.jpg")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

		_, err := c.AlbumUpload(context.Background(), []string{path}, "c", post.Location{})
		var upErr *UploadError
		require.ErrorAs(t, err, &upErr)
		assert.Contains(t, err.Error(), "upload rejected")
		assert.Equal(t, []string{path}, upErr.Images)
	})

	t.Run("missing image", func(t *testing.T) {
		g := &fakeGateway{validSession: "sess-8"}
		c := newTestSocialClient(t, g)
		require.NoError(t, c.Login(context.Background(), testCredentials(t.TempDir())))

		_, err := c.AlbumUpload(context.Background(), []string{filepath.Join(t.TempDir(), "nope.jpg")}, "c", post.Location{})
		var upErr *UploadError
		assert.ErrorAs(t, err, &upErr)
		assert.NotContains(t, g.calls, "album/upload")
	})
}

func TestDecodeSessionID(t *testing.T) {
	id, err := decodeSessionID([]byte(`"abc"` + "\n"))
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	id, err = decodeSessionID([]byte("plain-token"))
	require.NoError(t, err)
	assert.Equal(t, "plain-token", id)

	_, err = decodeSessionID([]byte(`""`))
	assert.Error(t, err)
}
