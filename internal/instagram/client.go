package instagram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/C4T-BuT-S4D/reelbridge/internal/apperr"
	"github.com/C4T-BuT-S4D/reelbridge/internal/media"
	"github.com/go-resty/resty/v2"
)

const (
	sessionCookie = "sessionid"
	webAppID      = "936619743392459"
	userAgent     = "Instagram 309.1.0.41.113 Android (31/12; 420dpi; 1080x2263; Google; Pixel 6; oriole; oriole; en_US; 541635890)"
)

type Options struct {
	BaseURL   string
	Username  string
	Password  string
	SessionID string
}

// Client talks to the Instagram private API as the bot account.
type Client struct {
	client   *resty.Client
	username string
	password string

	mu        sync.RWMutex
	sessionID string
	selfPK    int64
}

func New(opts Options) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(opts.BaseURL).
			SetHeader("User-Agent", userAgent).
			SetHeader("X-IG-App-ID", webAppID),
		username:  opts.Username,
		password:  opts.Password,
		sessionID: opts.SessionID,
	}
}

// SelfPK returns the bot account id, known after a successful Login.
func (c *Client) SelfPK() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selfPK
}

// Login validates the configured session, falling back to a password login
// when the session is missing or rejected.
func (c *Client) Login(ctx context.Context) error {
	c.mu.RLock()
	session := c.sessionID
	c.mu.RUnlock()

	if session != "" {
		err := c.checkSession(ctx)
		if err == nil || c.password == "" || !errors.Is(err, apperr.ErrAuthExpired) {
			return err
		}
	}
	if c.password == "" {
		return apperr.AuthExpired(fmt.Errorf("no session or password configured for %s", c.username))
	}
	return c.passwordLogin(ctx)
}

func (c *Client) checkSession(ctx context.Context) error {
	resp, err := c.api(ctx).
		SetQueryParam("edit", "true").
		SetResult(&userResponse{}).
		SetError(&userResponse{}).
		Get("/api/v1/accounts/current_user/")
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return err
	}

	user := resp.Result().(*userResponse).User
	c.mu.Lock()
	c.selfPK = user.PK
	c.mu.Unlock()
	return nil
}

func (c *Client) passwordLogin(ctx context.Context) error {
	encPassword := fmt.Sprintf("#PWD_INSTAGRAM:0:%d:%s", time.Now().Unix(), c.password)
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username":     c.username,
			"enc_password": encPassword,
		}).
		SetResult(&userResponse{}).
		SetError(&userResponse{}).
		Post("/api/v1/accounts/login/")
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return fmt.Errorf("logging in as %s: %w", c.username, err)
	}

	var session string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie {
			session = cookie.Value
		}
	}
	if session == "" {
		return apperr.AuthExpired(fmt.Errorf("login response for %s has no session", c.username))
	}

	c.mu.Lock()
	c.sessionID = session
	c.selfPK = resp.Result().(*userResponse).LoggedInUser.PK
	c.mu.Unlock()
	return nil
}

// Inbox returns recent threads with their latest messages.
func (c *Client) Inbox(ctx context.Context, threadLimit int) ([]Thread, error) {
	resp, err := c.api(ctx).
		SetQueryParams(map[string]string{
			"limit":                      strconv.Itoa(threadLimit),
			"thread_message_limit":       "10",
			"visual_message_return_type": "unseen",
		}).
		SetResult(&inboxResponse{}).
		SetError(&inboxResponse{}).
		Get("/api/v1/direct_v2/inbox/")
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return nil, fmt.Errorf("fetching inbox: %w", err)
	}

	payload := resp.Result().(*inboxResponse)
	threads := make([]Thread, 0, len(payload.Inbox.Threads))
	for i := range payload.Inbox.Threads {
		threads = append(threads, payload.Inbox.Threads[i].toThread())
	}
	return threads, nil
}

// Fetch downloads the video behind ref into dir and returns the file path.
func (c *Client) Fetch(ctx context.Context, ref media.Ref, dir string) (string, error) {
	pk, err := MediaPK(ref.Shortcode)
	if err != nil {
		return "", fmt.Errorf("resolving %v: %w", ref, err)
	}

	resp, err := c.api(ctx).
		SetResult(&mediaInfoResponse{}).
		SetError(&mediaInfoResponse{}).
		Get(fmt.Sprintf("/api/v1/media/%s/info/", pk))
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		return "", fmt.Errorf("getting media info for %v: %w", ref, err)
	}

	info := resp.Result().(*mediaInfoResponse)
	if len(info.Items) == 0 {
		return "", fmt.Errorf("media %v not found", ref)
	}
	videoURL, ok := info.Items[0].videoURL()
	if !ok {
		return "", fmt.Errorf("media %v has no video", ref)
	}

	path := filepath.Join(dir, ref.Shortcode+".mp4")
	dl, err := c.client.R().
		SetContext(ctx).
		SetOutput(path).
		Get(videoURL)
	if err != nil {
		return "", fmt.Errorf("downloading video: %w", err)
	}
	if dl.StatusCode() != http.StatusOK {
		_ = os.Remove(path)
		return "", fmt.Errorf("downloading video: unexpected status code: %d", dl.StatusCode())
	}

	return path, nil
}

func (c *Client) api(ctx context.Context) *resty.Request {
	c.mu.RLock()
	session := c.sessionID
	c.mu.RUnlock()

	req := c.client.R().SetContext(ctx)
	if session != "" {
		req.SetCookie(&http.Cookie{Name: sessionCookie, Value: session})
	}
	return req
}

type statusPayload interface {
	status() (string, string)
}

func (r *inboxResponse) status() (string, string)     { return r.Status, r.Message }
func (r *userResponse) status() (string, string)      { return r.Status, r.Message }
func (r *mediaInfoResponse) status() (string, string) { return r.Status, r.Message }

// checkResponse maps session errors to apperr.ErrAuthExpired.
func checkResponse(resp *resty.Response) error {
	var message string
	if payload, ok := resp.Error().(statusPayload); ok && resp.IsError() {
		_, message = payload.status()
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized,
		message == "login_required",
		message == "challenge_required",
		message == "checkpoint_required":
		return apperr.AuthExpired(fmt.Errorf("status %d: %s", resp.StatusCode(), message))
	case resp.StatusCode() == http.StatusTooManyRequests:
		return fmt.Errorf("rate limited")
	case resp.IsError():
		return fmt.Errorf("unexpected status code: %d %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}
