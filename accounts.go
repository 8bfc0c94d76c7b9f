package myq

import (
	"context"
	"encoding/json"
	"fmt"
)

// Account identifies one myQ account reachable by the current session.
// Most users have exactly one; shared access grants more.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// accountsResponse is the wire shape of the accounts endpoint.
type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}

// getAccounts enumerates the accounts reachable by the current session.
// An empty or missing list is a failure: a session that resolves no
// accounts cannot be used for anything.
func (c *Client) getAccounts(ctx context.Context) ([]Account, error) {
	body, err := c.get(ctx, c.endpoints.Accounts)
	if err != nil {
		return nil, err
	}

	var resp accountsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("myq: failed to parse account list: %w (body: %s)", err, truncatePreview(body))
	}
	if len(resp.Accounts) == 0 {
		return nil, ErrNoAccounts
	}

	return resp.Accounts, nil
}

// Accounts returns the account set resolved by the last successful
// authentication.
func (c *Client) Accounts() []Account {
	return c.accounts
}
