package analyticsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// Клиент внешнего аналитического сервиса (корреляция
// эффективности доставки и пищевых отходов).

type AnalyticsClient interface {
	GetCorrelation(ctx context.Context) (json.RawMessage, error)
}

type analyticsClient struct {
	serviceAddr string
	client      *resty.Client
}

func NewAnalyticsClient(serviceAddr string) AnalyticsClient {
	return &analyticsClient{
		serviceAddr: serviceAddr,
		client:      resty.New(),
	}
}

func (client *analyticsClient) GetCorrelation(ctx context.Context) (json.RawMessage, error) {
	const path = "/api/efficiency-waste-correlation"

	resp, err := client.client.R().
		SetContext(ctx).
		Get(client.serviceAddr + path)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return json.RawMessage(resp.Body()), nil
	default:
		return nil, fmt.Errorf("analytics request status: %d", resp.StatusCode())
	}
}
