package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Token returns the access token, acquiring it on first use. The token is
// kept for the lifetime of the client and never refreshed.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" {
		return c.accessToken, nil
	}

	body, err := json.Marshal(tokenRequest{Email: c.config.Email, Password: c.config.Password})
	if err != nil {
		return "", fmt.Errorf("encode token request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.URL(TokenPath), nil, body)
	if err != nil {
		return "", err
	}

	resp, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("acquire access token: %w", err)
	}

	var tok tokenResponse
	if err := decodeJSON(resp, &tok); err != nil {
		return "", fmt.Errorf("acquire access token: %w", err)
	}
	if tok.Access == "" {
		return "", fmt.Errorf("acquire access token: response has no access token")
	}

	c.accessToken = tok.Access
	c.logger.Info().Str("email", c.config.Email).Msg("Access token acquired")

	return c.accessToken, nil
}
