package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-chat/internal/logger"
	"storefront-chat/internal/model"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrUnavailable     = errors.New("catalog: unavailable")
)

// Provider resolves the product snapshot embedded in a message.
type Provider interface {
	Snapshot(ctx context.Context, productID string) (model.ProductSnapshot, error)
}

type productResponse struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	ImageURL string  `json:"imageUrl"`
}

// HTTPProvider reads GET {baseURL}/products/{id} behind a circuit breaker so
// a failing catalog does not stall every send.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	log := logger.L().Named("catalog")
	st := gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrProductNotFound)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cb:      gobreaker.NewCircuitBreaker(st),
	}
}

func (p *HTTPProvider) Snapshot(ctx context.Context, productID string) (model.ProductSnapshot, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return model.ProductSnapshot{}, ErrProductNotFound
	}

	res, err := p.cb.Execute(func() (interface{}, error) {
		return p.fetch(ctx, productID)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return model.ProductSnapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return model.ProductSnapshot{}, err
	}
	return res.(model.ProductSnapshot), nil
}

func (p *HTTPProvider) fetch(ctx context.Context, productID string) (model.ProductSnapshot, error) {
	endpoint := fmt.Sprintf("%s/products/%s", p.baseURL, url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.ProductSnapshot{}, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return model.ProductSnapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.ProductSnapshot{}, ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return model.ProductSnapshot{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body productResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return model.ProductSnapshot{}, fmt.Errorf("%w: decode product: %v", ErrUnavailable, err)
	}
	if body.ID == "" {
		body.ID = productID
	}
	return model.ProductSnapshot{
		ProductID: body.ID,
		Title:     body.Title,
		Price:     body.Price,
		Currency:  body.Currency,
		ImageURL:  body.ImageURL,
	}, nil
}
