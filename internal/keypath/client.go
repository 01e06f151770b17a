// Package keypath is a client for the remote path-keyed JSON database.
//
// Values live under slash-separated paths inside a named database, e.g.
// "users/alice@example.com/tasks". Access requires a bearer token obtained
// by logging in with the database password.
package keypath

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rryowa/devtasks/internal/storage"
	"github.com/rryowa/devtasks/internal/util"
)

var (
	ErrInvalidPassword = errors.New("invalid database API password")
	ErrUnexpected      = errors.New("unexpected database response")
)

type Client struct {
	baseURL  string
	database string
	password string
	http     *http.Client
	log      *zap.SugaredLogger

	mu    sync.RWMutex
	token string
}

func NewClient(cfg *util.KeyPathConfig, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		database: cfg.Database,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

type loginResponse struct {
	Token string `json:"token"`
}

type createDatabaseRequest struct {
	Name        string `json:"name"`
	IfNotExists bool   `json:"if_not_exists"`
}

type valueEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// Connect logs in and makes sure the database exists.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return err
	}

	body := createDatabaseRequest{Name: c.database, IfNotExists: true}
	resp, err := c.do(ctx, http.MethodPost, "/database", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: create database: status %d", ErrUnexpected, resp.StatusCode)
	}

	c.log.Infow("Connected to key-path database", "database", c.database)
	return nil
}

// Get decodes the value at path into dst. It reports false if nothing is stored there.
func (c *Client) Get(ctx context.Context, path string, dst any) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.valuePath(path), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: get %s: status %d", ErrUnexpected, path, resp.StatusCode)
	}

	var env valueEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return false, fmt.Errorf("%w: get %s: %w", ErrUnexpected, path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return false, fmt.Errorf("%w: %s: %w", storage.ErrCorruptRecord, path, err)
	}

	return true, nil
}

// Put stores value at path, replacing whatever was there.
func (c *Client) Put(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.valuePath(path), valueEnvelope{Data: data})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: put %s: status %d", ErrUnexpected, path, resp.StatusCode)
	}
	return nil
}

func (c *Client) login(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/login", nil)
	if err != nil {
		return fmt.Errorf("create login request: %w", err)
	}
	req.URL.RawQuery = url.Values{"password": {c.password}}.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: login: %w", storage.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrInvalidPassword
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: login: status %d", storage.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: login: status %d", ErrUnexpected, resp.StatusCode)
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil || lr.Token == "" {
		return fmt.Errorf("%w: login: missing token", ErrUnexpected)
	}

	c.mu.Lock()
	c.token = lr.Token
	c.mu.Unlock()

	return nil
}

// do sends an authorized request, logging in again once if the token was rejected.
// Status codes >= 500 are returned as ErrUpstreamUnavailable.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			drain(resp)
			c.log.Debugw("Key-path database token rejected, logging in again", "path", path)
			if err := c.login(ctx); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			drain(resp)
			return nil, fmt.Errorf("%w: %s %s: status %d", storage.ErrUpstreamUnavailable, method, path, resp.StatusCode)
		}

		return resp, nil
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", storage.ErrUpstreamUnavailable, method, path, err)
	}
	return resp, nil
}

func (c *Client) valuePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/database/" + url.PathEscape(c.database) + "/" + strings.Join(segments, "/")
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
