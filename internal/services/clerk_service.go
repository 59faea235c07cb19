package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sajupia/internal/models/request_models"
)

// UserDirectory looks up identity-provider profiles.
type UserDirectory interface {
	PrimaryEmail(ctx context.Context, clerkUserID string) (string, error)
}

type ClerkClient struct {
	HTTP      *http.Client
	BaseURL   string
	SecretKey string
}

func NewClerkClient(baseURL, secretKey string) *ClerkClient {
	if baseURL == "" {
		baseURL = "https://api.clerk.com/v1"
	}
	return &ClerkClient{
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
	}
}

func (c *ClerkClient) PrimaryEmail(ctx context.Context, clerkUserID string) (string, error) {
	if c.SecretKey == "" {
		return "", errors.New("CLERK_SECRET_KEY is not set")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/users/"+url.PathEscape(clerkUserID), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("clerk get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("clerk get user: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user request_models.ClerkUserData
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("decode clerk user: %w", err)
	}
	return user.PrimaryEmail(), nil
}
