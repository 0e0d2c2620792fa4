package client

import (
	"context"
	"fmt"
	"net/url"

	"medilink/pkg/model"
)

// DispatchClient calls the HTTP fallback endpoints of the dispatch service.
type DispatchClient struct {
	httpClient *HttpClient
}

func NewDispatchClient(baseURL, token string) *DispatchClient {
	return &DispatchClient{
		httpClient: NewHttpClient(baseURL, token),
	}
}

func (c *DispatchClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *DispatchClient) Pending(ctx context.Context) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/emergency/pending")
}

func (c *DispatchClient) Details(ctx context.Context, requestID string) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/emergency/details/"+url.PathEscape(requestID))
}

func (c *DispatchClient) OnlineDrivers(ctx context.Context) (*Response, error) {
	return c.httpClient.GET(ctx, "/api/v1/emergency/drivers/online")
}

func (c *DispatchClient) DecodeRequests(resp *Response) ([]*model.EmergencyRequest, error) {
	var requests []*model.EmergencyRequest
	if err := resp.DecodeData(&requests); err != nil {
		return nil, fmt.Errorf("could not decode emergency requests: %w", err)
	}
	return requests, nil
}
