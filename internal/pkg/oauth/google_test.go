package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNewGoogleOAuth(t *testing.T) {
	oauth := NewGoogleOAuth("client-id", "client-secret", "http://localhost/callback")

	assert.NotNil(t, oauth)
	assert.NotNil(t, oauth.config)
	assert.Equal(t, "client-id", oauth.config.ClientID)
	assert.Equal(t, "client-secret", oauth.config.ClientSecret)
	assert.Equal(t, "http://localhost/callback", oauth.config.RedirectURL)
	assert.Contains(t, oauth.config.Scopes, "https://www.googleapis.com/auth/userinfo.email")
}

func TestGoogleOAuth_GetAuthURL(t *testing.T) {
	oauth := NewGoogleOAuth("test-client-id", "test-secret", "http://example.com/callback")

	url := oauth.GetAuthURL("test-state")

	assert.Contains(t, url, "accounts.google.com")
	assert.Contains(t, url, "client_id=test-client-id")
	assert.Contains(t, url, "state=test-state")
	assert.Contains(t, url, "redirect_uri=")
}

func TestGoogleOAuth_GetAuthURL_DifferentStates(t *testing.T) {
	oauth := NewGoogleOAuth("client", "secret", "http://localhost/callback")

	url1 := oauth.GetAuthURL("state1")
	url2 := oauth.GetAuthURL("state2")

	assert.Contains(t, url1, "state=state1")
	assert.Contains(t, url2, "state=state2")
	assert.NotEqual(t, url1, url2)
}

func TestGoogleUser_JSON(t *testing.T) {
	jsonData := `{
		"id": "108734215",
		"email": "json@example.com",
		"verified_email": true,
		"name": "JSON User",
		"picture": "https://example.com/avatar.jpg"
	}`

	var user GoogleUser
	err := json.Unmarshal([]byte(jsonData), &user)

	require.NoError(t, err)
	assert.Equal(t, "108734215", user.ID)
	assert.Equal(t, "json@example.com", user.Email)
	assert.True(t, user.VerifiedEmail)
	assert.Equal(t, "JSON User", user.Name)
	assert.Equal(t, "https://example.com/avatar.jpg", user.Picture)
}

func TestGoogleUser_EmptyFields(t *testing.T) {
	jsonData := `{"id": "1", "email": "user@example.com"}`

	var user GoogleUser
	err := json.Unmarshal([]byte(jsonData), &user)

	require.NoError(t, err)
	assert.Equal(t, "1", user.ID)
	assert.Equal(t, "user@example.com", user.Email)
	assert.False(t, user.VerifiedEmail)
	assert.Empty(t, user.Name)
	assert.Empty(t, user.Picture)
}

func TestGoogleOAuth_GetUser_MockRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/userinfo" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(GoogleUser{
				ID:            "555",
				Email:         "mock@example.com",
				VerifiedEmail: true,
				Name:          "Mock User",
				Picture:       "https://mock.avatar.url",
			})
		}
	}))
	defer server.Close()

	token := &oauth2.Token{
		AccessToken: "test-token",
	}

	ctx := context.Background()
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(server.URL + "/userinfo")
	require.NoError(t, err)
	defer resp.Body.Close()

	var user GoogleUser
	err = json.NewDecoder(resp.Body).Decode(&user)
	require.NoError(t, err)

	assert.Equal(t, "555", user.ID)
	assert.Equal(t, "mock@example.com", user.Email)
	assert.True(t, user.VerifiedEmail)
}

func TestGoogleOAuth_EmptyCredentials(t *testing.T) {
	oauth := NewGoogleOAuth("", "", "")

	assert.NotNil(t, oauth)
	assert.Empty(t, oauth.config.ClientID)
	assert.Empty(t, oauth.config.ClientSecret)
	assert.Empty(t, oauth.config.RedirectURL)
}
