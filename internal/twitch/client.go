package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"twitchrec/internal/config"
	"twitchrec/internal/logging"
)

var (
	// ErrOffline reports that the channel has no live broadcast.
	ErrOffline = errors.New("channel is offline")
	// ErrQualityUnavailable reports that none of the preferred qualities is offered.
	ErrQualityUnavailable = errors.New("no preferred quality available")
	// ErrChannelNotFound reports an unknown login.
	ErrChannelNotFound = errors.New("channel not found")
)

const defaultRequestTimeout = 15 * time.Second

// HTTPDoer describes the HTTP client used by the channel API.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client resolves live state, titles, and playable URLs for one channel.
type Client struct {
	login    string
	clientID string
	gqlURL   string
	usherURL string
	http     HTTPDoer
	logger   *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client (primarily for tests).
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithEndpoints overrides the GQL and usher base URLs.
func WithEndpoints(gqlURL, usherURL string) Option {
	return func(c *Client) {
		if gqlURL != "" {
			c.gqlURL = gqlURL
		}
		if usherURL != "" {
			c.usherURL = strings.TrimRight(usherURL, "/")
		}
	}
}

// NormalizeLogin lowercases a Twitch login the way Twitch compares them.
func NormalizeLogin(login string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(login))
}

// New constructs a Client for login.
func New(login, clientID string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		login:    NormalizeLogin(login),
		clientID: strings.TrimSpace(clientID),
		gqlURL:   "https://gql.twitch.tv/gql",
		usherURL: "https://usher.ttvnw.net/api/channel/hls",
		http:     &http.Client{Timeout: defaultRequestTimeout},
		logger:   logging.NewComponentLogger(logger, "twitch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig constructs a Client from application config. Extra options
// are applied after the configured endpoints.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	opts = append([]Option{WithEndpoints(cfg.Twitch.GQLURL, cfg.Twitch.UsherURL)}, opts...)
	return New(cfg.Streamer, cfg.Twitch.ClientID, logger, opts...)
}

// Login returns the normalized login.
func (c *Client) Login() string { return c.login }

// IsLive reports whether the channel currently has a live broadcast.
func (c *Client) IsLive(ctx context.Context) (bool, error) {
	var data struct {
		User *struct {
			Stream *struct {
				ID string `json:"id"`
			} `json:"stream"`
		} `json:"user"`
	}
	if err := c.gql(ctx, queryStream, map[string]any{"login": c.login}, &data); err != nil {
		return false, fmt.Errorf("query live status: %w", err)
	}
	if data.User == nil {
		return false, fmt.Errorf("%w: %s", ErrChannelNotFound, c.login)
	}
	return data.User.Stream != nil, nil
}

// Title returns the broadcast title of channel, which is set even while offline.
func (c *Client) Title(ctx context.Context, channel string) (string, error) {
	login := NormalizeLogin(channel)
	var data struct {
		User *struct {
			BroadcastSettings *struct {
				Title string `json:"title"`
			} `json:"broadcastSettings"`
		} `json:"user"`
	}
	if err := c.gql(ctx, queryTitle, map[string]any{"login": login}, &data); err != nil {
		return "", fmt.Errorf("query title: %w", err)
	}
	if data.User == nil {
		return "", fmt.Errorf("%w: %s", ErrChannelNotFound, login)
	}
	if data.User.BroadcastSettings == nil {
		return "", nil
	}
	return data.User.BroadcastSettings.Title, nil
}

// PlayableURL returns the variant playlist URL for the first quality in
// preferences that the channel offers.
func (c *Client) PlayableURL(ctx context.Context, preferences []string) (string, error) {
	token, err := c.playbackToken(ctx)
	if err != nil {
		return "", err
	}
	master, err := c.masterPlaylist(ctx, token)
	if err != nil {
		return "", err
	}
	variants, err := ParseMasterPlaylist(master)
	if err != nil {
		return "", err
	}
	variant, err := SelectVariant(variants, preferences)
	if err != nil {
		return "", err
	}
	c.logger.Debug("selected stream variant",
		logging.String("quality", variant.Name),
		logging.String("group", variant.Group),
	)
	return variant.URL, nil
}

type accessToken struct {
	Value     string `json:"value"`
	Signature string `json:"signature"`
}

func (c *Client) playbackToken(ctx context.Context) (accessToken, error) {
	var data struct {
		Token *accessToken `json:"streamPlaybackAccessToken"`
	}
	if err := c.gql(ctx, queryPlaybackToken, map[string]any{"login": c.login}, &data); err != nil {
		return accessToken{}, fmt.Errorf("query playback token: %w", err)
	}
	if data.Token == nil || data.Token.Value == "" {
		return accessToken{}, fmt.Errorf("query playback token: %w", ErrOffline)
	}
	return *data.Token, nil
}

func (c *Client) masterPlaylist(ctx context.Context, token accessToken) (string, error) {
	params := url.Values{}
	params.Set("allow_source", "true")
	params.Set("allow_audio_only", "true")
	params.Set("fast_bread", "true")
	params.Set("player", "twitchweb")
	params.Set("p", strconv.Itoa(rand.IntN(999999)))
	params.Set("sig", token.Signature)
	params.Set("token", token.Value)
	endpoint := fmt.Sprintf("%s/%s.m3u8?%s", c.usherURL, url.PathEscape(c.login), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build playlist request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch master playlist: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("fetch master playlist: %w", ErrOffline)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return "", fmt.Errorf("fetch master playlist: usher returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read master playlist: %w", err)
	}
	return string(body), nil
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) gql(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode gql request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gqlURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gql request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("gql returned %d", resp.StatusCode)
	}

	var decoded gqlResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return fmt.Errorf("decode gql response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return fmt.Errorf("gql error: %s", decoded.Errors[0].Message)
	}
	if len(decoded.Data) == 0 || string(decoded.Data) == "null" {
		return errors.New("gql response has no data")
	}
	if err := json.Unmarshal(decoded.Data, out); err != nil {
		return fmt.Errorf("decode gql data: %w", err)
	}
	return nil
}

const (
	queryStream = `query Stream($login: String!) { user(login: $login) { stream { id } } }`

	queryTitle = `query Title($login: String!) { user(login: $login) { broadcastSettings { title } } }`

	queryPlaybackToken = `query PlaybackAccessToken($login: String!) {
  streamPlaybackAccessToken(channelName: $login, params: {platform: "web", playerBackend: "mediaplayer", playerType: "site"}) {
    value
    signature
  }
}`
)
