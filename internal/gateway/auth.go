package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/wanderapp/wander-go/internal/types"
)

type authUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		DisplayName string `json:"display_name"`
	} `json:"user_metadata"`
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	User        authUser `json:"user"`
}

func sessionFrom(tr tokenResponse) *types.Session {
	return &types.Session{
		Token:       tr.AccessToken,
		UserID:      tr.User.ID,
		Email:       tr.User.Email,
		DisplayName: tr.User.UserMetadata.DisplayName,
	}
}

// GetUser validates the current access token against the identity provider
// and returns the session it describes. The returned session carries no
// token; the caller already holds it.
func (c *Client) GetUser(ctx context.Context) (*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(httpReq, "get user", http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var u authUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, err
	}
	return &types.Session{
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: u.UserMetadata.DisplayName,
	}, nil
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/auth/v1/token?grant_type=password"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq, "sign in", http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return sessionFrom(tr), nil
}

// SignUp registers a new account. When the deployment requires email
// confirmation the provider returns no token; the session is nil and the
// caller stays logged out until confirmation.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"display_name": displayName},
	}
	body, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/signup", body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq, "sign up", http.StatusOK, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		return nil, nil
	}
	return sessionFrom(tr), nil
}

// SignOut revokes the current session.
func (c *Client) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(httpReq, "sign out", http.StatusNoContent, http.StatusOK)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}

// ResetPassword asks the provider to send a recovery email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := jsonBody(map[string]string{"email": email})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/recover", body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq, "reset password", http.StatusOK, http.StatusNoContent)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}

// UpdateUser patches the current user's metadata.
func (c *Client) UpdateUser(ctx context.Context, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := jsonBody(map[string]any{"data": metadata})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/auth/v1/user", body)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.do(httpReq, "update user", http.StatusOK)
	if err != nil {
		return err
	}
	closeBody(resp)
	return nil
}
