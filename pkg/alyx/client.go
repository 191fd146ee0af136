// Package alyx is a minimal client for the Alyx experiment metadata server.
// The preflight checklist only needs to know whether a rig can authenticate
// against Alyx; everything else (sessions, subjects, water records) is the
// business of the full acquisition tooling.
package alyx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/openrig/rigup/pkg/params"
)

// Client talks to one Alyx instance.
type Client struct {
	baseURL    string
	username   string
	password   string
	token      string
	httpClient *http.Client
}

// New creates a client for the Alyx server at baseURL. No network traffic
// happens until Connect.
func New(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewFromParams builds a client from the rig parameter file. Environment
// variables ALYX_URL, ALYX_LOGIN and ALYX_PWD override the file.
func NewFromParams(p *params.File) (*Client, error) {
	url := firstNonEmpty(os.Getenv("ALYX_URL"), p.Get(params.KeyAlyxURL))
	login := firstNonEmpty(os.Getenv("ALYX_LOGIN"), p.Get(params.KeyAlyxLogin))
	pwd := firstNonEmpty(os.Getenv("ALYX_PWD"), p.Get(params.KeyAlyxPwd))

	if url == "" {
		return nil, pkgerrors.New("no Alyx URL configured")
	}
	if login == "" {
		return nil, pkgerrors.New("no Alyx login configured")
	}

	return New(url, login, pwd), nil
}

// Connect authenticates against the server and stores the auth token.
func (c *Client) Connect() error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal credentials")
	}

	resp, err := c.httpClient.Post(c.baseURL+"/auth-token", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrBadCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return pkgerrors.Errorf("unexpected status %d from %s", resp.StatusCode, c.baseURL)
	}

	var ret struct {
		Token string `json:"token"`
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read auth response")
	}
	if err := json.Unmarshal(b, &ret); err != nil {
		return pkgerrors.Wrap(err, "failed to unmarshal auth response")
	}
	if ret.Token == "" {
		return pkgerrors.New("alyx returned an empty auth token")
	}
	c.token = ret.Token

	return nil
}

// Get performs an authenticated GET against an Alyx endpoint and returns the
// raw response body.
func (c *Client) Get(path string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to create request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.Errorf("got %d from %s: %s", resp.StatusCode, path, string(b))
	}

	return string(b), nil
}

// Token returns the auth token obtained by Connect, empty before connecting.
func (c *Client) Token() string {
	return c.token
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
