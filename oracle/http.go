package oracle

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const defaultRequestTimeout = 5 * time.Second

var errEndpointRequired = errors.New("oracle: endpoint required")

// Client resolves event existence, creators and participant lists from the
// external event registry over HTTP. The registry is authoritative and
// read-only from the ledger's perspective.
type Client struct {
	base    *url.URL
	client  *http.Client
	timeout time.Duration
}

// New constructs a registry client for the supplied endpoint. A non-positive
// timeout falls back to the default request timeout.
func New(endpoint string, timeout time.Duration) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, errEndpointRequired
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("oracle: parse endpoint: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		base:    base,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}, nil
}

type eventRecord struct {
	Creator      string   `json:"creator"`
	Participants []string `json:"participants"`
}

// fetch loads the registry record for the event id. The boolean reports
// whether the registry knows the event; a zero creator address also counts
// as unknown.
func (c *Client) fetch(id [32]byte) (*eventRecord, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	target := c.base.JoinPath("v1", "events", hex.EncodeToString(id[:]))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("oracle: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("oracle: fetch event: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("oracle: registry returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, false, fmt.Errorf("oracle: read response: %w", err)
	}
	record := new(eventRecord)
	if err := json.Unmarshal(body, record); err != nil {
		return nil, false, fmt.Errorf("oracle: decode response: %w", err)
	}
	creator, err := parseAddress(record.Creator)
	if err != nil {
		return nil, false, err
	}
	if creator == ([20]byte{}) {
		return nil, false, nil
	}
	return record, true, nil
}

// EventExists reports whether the registry knows the event id.
func (c *Client) EventExists(id [32]byte) (bool, error) {
	_, ok, err := c.fetch(id)
	return ok, err
}

// EventCreator returns the creator address for the event, or the zero
// address when the event is unknown.
func (c *Client) EventCreator(id [32]byte) ([20]byte, error) {
	record, ok, err := c.fetch(id)
	if err != nil || !ok {
		return [20]byte{}, err
	}
	return parseAddress(record.Creator)
}

// EventParticipants returns the ordered participant list for the event. An
// unknown event yields an empty list.
func (c *Client) EventParticipants(id [32]byte) ([][20]byte, error) {
	record, ok, err := c.fetch(id)
	if err != nil || !ok {
		return nil, err
	}
	participants := make([][20]byte, 0, len(record.Participants))
	for _, raw := range record.Participants {
		addr, err := parseAddress(raw)
		if err != nil {
			return nil, err
		}
		participants = append(participants, addr)
	}
	return participants, nil
}

func parseAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return [20]byte{}, nil
	}
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("oracle: invalid address %q", raw)
	}
	return [20]byte(common.HexToAddress(trimmed)), nil
}
