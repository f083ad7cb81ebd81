package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gasless-relayer/gasless-relayer/internal/relay"
)

const getTimeout = time.Second * 5

// RelayerClient provides high level methods to query the relayer api
type RelayerClient struct {
	host   *url.URL
	client http.Client
}

// NewRelayerClient takes a host as a single argument and returns a RelayerClient in case of well formatted host arg
// host format is <scheme>://<host>[:<port>], e.g. http://relayer.host, https://relayer.host, http://relayer.host:8080
func NewRelayerClient(host string) (*RelayerClient, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("host parsing error: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("host parsing error: %q is not of form <scheme>://<host>[:<port>]", host)
	}

	u.Path = ""
	u.RawQuery = ""
	return &RelayerClient{
		host: u,
		client: http.Client{
			Timeout: getTimeout,
		},
	}, nil
}

func (c RelayerClient) GetRequest(ctx context.Context, requestID string) (*relay.RequestRecord, error) {
	u := *c.host
	u.Path = strings.Replace(RequestResource, "{request_id}", url.PathEscape(requestID), 1)

	var record relay.RequestRecord
	if err := c.get(ctx, u, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c RelayerClient) ListRequests(ctx context.Context, page, pageSize int) ([]*relay.RequestRecord, error) {
	u := *c.host
	u.Path = RequestsResource
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	records := make([]*relay.RequestRecord, 0)
	if err := c.get(ctx, u, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c RelayerClient) get(ctx context.Context, u url.URL, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make http request: %w", err)
	}
	defer res.Body.Close()

	decoder := json.NewDecoder(res.Body)
	if res.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if err := decoder.Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("got unexpected http response status code: %d: %s", res.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("got unexpected http response status code: %d", res.StatusCode)
	}

	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
