package ledgerclient

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
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// UserHeader carries the session's user id to the ledger
const UserHeader = "X-User-ID"

// ErrServer is returned for 5xx responses and unreadable bodies
var ErrServer = errors.New("ledger server error")

// Client talks to the ledger HTTP API on behalf of one identity
type Client struct {
	baseURL  string
	identity interfaces.IdentityProvider
	http     *http.Client
}

// New creates a client. A nil httpClient uses a client with a ten second timeout.
func New(baseURL string, identity interfaces.IdentityProvider, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: identity,
		http:     httpClient,
	}
}

var _ interfaces.LedgerService = (*Client)(nil)

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID := c.identity.CurrentUserID(); userID != "" {
		req.Header.Set(UserHeader, userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// act posts an action and decodes its tagged result
func (c *Client) act(ctx context.Context, path string, body interface{}) (entities.ActionResult, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return entities.ActionResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return entities.ActionResult{}, fmt.Errorf("POST %s returned %d: %w", path, resp.StatusCode, ErrServer)
	}

	var result entities.ActionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return entities.ActionResult{}, fmt.Errorf("failed to decode %s response: %w", path, errors.Join(ErrServer, err))
	}
	if !result.Success {
		if result.ReasonCode == "" {
			log.WithFields(log.Fields{
				"path":   path,
				"status": resp.StatusCode,
			}).Warn("Ledger refusal without reason code")
		}
		result.ReasonCode = result.ReasonCode.Normalize()
	}
	return result, nil
}

// read fetches a resource, mapping 403 and 404 onto the entity sentinels
func (c *Client) read(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return entities.ErrAccessDenied
	case resp.StatusCode == http.StatusNotFound:
		return entities.ErrMatchNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("GET %s returned %d: %w", path, resp.StatusCode, ErrServer)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, errors.Join(ErrServer, err))
	}
	return nil
}

func matchPath(matchID, action string) string {
	path := "/v1/matches/" + url.PathEscape(matchID)
	if action != "" {
		path += "/" + action
	}
	return path
}

func (c *Client) CreateMatch(ctx context.Context, params entities.CreateMatchParams) (entities.ActionResult, error) {
	return c.act(ctx, "/v1/matches", params)
}

func (c *Client) LockFunds(ctx context.Context, matchID string, amount decimal.Decimal) (entities.ActionResult, error) {
	return c.act(ctx, matchPath(matchID, "lock"), map[string]decimal.Decimal{"amount": amount})
}

func (c *Client) JoinMatch(ctx context.Context, matchID string, opts entities.JoinOptions) (entities.ActionResult, error) {
	return c.act(ctx, matchPath(matchID, "join"), opts)
}

func (c *Client) LeaveMatch(ctx context.Context, matchID string) (entities.ActionResult, error) {
	return c.act(ctx, matchPath(matchID, "leave"), nil)
}

func (c *Client) CancelMatch(ctx context.Context, matchID string) (entities.ActionResult, error) {
	return c.act(ctx, matchPath(matchID, "cancel"), nil)
}

func (c *Client) SetReady(ctx context.Context, matchID string) (entities.ActionResult, error) {
	return c.act(ctx, matchPath(matchID, "ready"), nil)
}

func (c *Client) DeclareResult(ctx context.Context, matchID string, choice entities.ResultChoice) (entities.ActionResult, error) {
	return c.act(ctx, matchPath(matchID, "result"), map[string]entities.ResultChoice{"choice": choice})
}

func (c *Client) RaiseDispute(ctx context.Context, matchID string, reason string) (entities.ActionResult, error) {
	return c.act(ctx, matchPath(matchID, "dispute"), map[string]string{"reason": reason})
}

func (c *Client) AdminResolve(ctx context.Context, matchID string, action entities.AdminAction, notes *string) (entities.ActionResult, error) {
	body := struct {
		Action entities.AdminAction `json:"action"`
		Notes  *string              `json:"notes,omitempty"`
	}{action, notes}
	return c.act(ctx, "/v1/admin/matches/"+url.PathEscape(matchID)+"/resolve", body)
}

func (c *Client) ReadMatch(ctx context.Context, matchID string) (*entities.MatchSnapshot, error) {
	var snapshot entities.MatchSnapshot
	if err := c.read(ctx, matchPath(matchID, ""), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) ReadMatchPublic(ctx context.Context, matchID string) (*entities.PublicMatchSnapshot, error) {
	var snapshot entities.PublicMatchSnapshot
	if err := c.read(ctx, matchPath(matchID, "public"), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (c *Client) ReadWallet(ctx context.Context) (*entities.Wallet, error) {
	var wallet entities.Wallet
	if err := c.read(ctx, "/v1/wallet", &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}
