package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// UserDirectory is the external collaborator owning user records and presence
// state. The match core flips presence as a side effect and reads the public
// display fields for the end-of-match result event; it never stores profile
// data itself.
type UserDirectory interface {
	Playing(ctx context.Context, userID string) error
	Online(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*UserProfile, error)
}

// UserProfile is the public slice of a user record exposed to opponents.
type UserProfile struct {
	ID              string `json:"id"`
	Nickname        string `json:"nickname"`
	ProfileImageURI string `json:"profileImageURI"`
}

// UserServiceClient talks to the profile service over HTTP.
type UserServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewUserServiceClient(baseURL, token string) *UserServiceClient {
	return &UserServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Playing marks the user as in a match.
func (c *UserServiceClient) Playing(ctx context.Context, userID string) error {
	return c.setStatus(ctx, userID, "playing")
}

// Online reverts the user to plain online presence.
func (c *UserServiceClient) Online(ctx context.Context, userID string) error {
	return c.setStatus(ctx, userID, "online")
}

func (c *UserServiceClient) setStatus(ctx context.Context, userID, status string) error {
	url := fmt.Sprintf("%s/api/v1/users/%s/status", c.BaseURL, userID)

	jsonData, _ := json.Marshal(map[string]string{"status": status})
	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("UserService status update returned %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("presence update failed: %d", resp.StatusCode)
	}
	return nil
}

// Get fetches the public profile fields for a user.
func (c *UserServiceClient) Get(ctx context.Context, userID string) (*UserProfile, error) {
	url := fmt.Sprintf("%s/api/v1/users/%s", c.BaseURL, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("UserService profile fetch returned %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("profile fetch failed: %d", resp.StatusCode)
	}

	var out UserProfile
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
