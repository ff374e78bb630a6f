package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"

	"banana-studio-backend/internal/config"
	"banana-studio-backend/internal/models"
)

// Client wraps the Supabase REST client used for tables this service only
// reads.
type Client struct {
	Supabase *supabase.Client
	Config   *config.Config
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		Supabase: client,
		Config:   cfg,
	}, nil
}

func (c *Client) GetProfile(userID uuid.UUID) (*models.Profile, error) {
	var profiles []models.Profile
	_, err := c.Supabase.From("profiles").
		Select("user_id,email,full_name,avatar_url", "", false).
		Eq("user_id", userID.String()).
		ExecuteTo(&profiles)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("failed to get profile: profile: %w", ErrNotFound)
	}
	return &profiles[0], nil
}
