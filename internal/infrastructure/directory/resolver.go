// Package directory enriches event payloads by asking the user and order
// services for data the events do not carry.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"vn.io.arda/marketplace-notification/internal/domain"
)

// Resolver implements domain.Directory over the user and order services' REST APIs.
type Resolver struct {
	usersURL  string // e.g. "http://user-service:8080"
	ordersURL string // e.g. "http://order-service:8080"

	httpClient *http.Client

	// Bounded cache so a burst of events for one order does one lookup.
	// Expired entries are swept in the background.
	cache *expirable.LRU[string, any] // key: "user:<id>" | "order:<id>"
}

const (
	cacheSize = 10_000
	cacheTTL  = 30 * time.Second
)

// New creates a Resolver with a 30-second cache TTL. Empty base URLs make the
// matching lookups return domain.ErrUnavailable.
func New(usersURL, ordersURL string, timeout time.Duration) *Resolver {
	return newResolver(usersURL, ordersURL, timeout, cacheSize, cacheTTL)
}

func newResolver(usersURL, ordersURL string, timeout time.Duration, size int, ttl time.Duration) *Resolver {
	return &Resolver{
		usersURL:   strings.TrimRight(usersURL, "/"),
		ordersURL:  strings.TrimRight(ordersURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      expirable.NewLRU[string, any](size, nil, ttl),
	}
}

// UserEmail returns the email address registered for userID.
func (r *Resolver) UserEmail(ctx context.Context, userID string) (string, error) {
	if r.usersURL == "" {
		return "", domain.ErrUnavailable
	}
	cacheKey := "user:" + userID
	if cached, ok := r.fromCache(cacheKey); ok {
		return cached.(string), nil
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := r.getJSON(ctx, r.usersURL+"/users/"+url.PathEscape(userID), &user); err != nil {
		return "", fmt.Errorf("lookup user %s: %w", userID, err)
	}

	r.toCache(cacheKey, user.Email)
	return user.Email, nil
}

// OrderOwner returns who placed orderID, with their email when the order service knows it.
func (r *Resolver) OrderOwner(ctx context.Context, orderID string) (*domain.OrderOwner, error) {
	if r.ordersURL == "" {
		return nil, domain.ErrUnavailable
	}
	cacheKey := "order:" + orderID
	if cached, ok := r.fromCache(cacheKey); ok {
		o := cached.(domain.OrderOwner)
		return &o, nil
	}

	var owner domain.OrderOwner
	if err := r.getJSON(ctx, r.ordersURL+"/orders/"+url.PathEscape(orderID), &owner); err != nil {
		return nil, fmt.Errorf("lookup order %s: %w", orderID, err)
	}
	if owner.OrderID == "" {
		owner.OrderID = orderID
	}
	if owner.UserID == "" {
		return nil, fmt.Errorf("order %s has no owner: %w", orderID, domain.ErrNotFound)
	}

	r.toCache(cacheKey, owner)
	return &owner, nil
}

// --- internal helpers ---

func (r *Resolver) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// fromCache retrieves a cached value if not expired.
func (r *Resolver) fromCache(key string) (any, bool) {
	return r.cache.Get(key)
}

// toCache stores a value with the configured TTL, evicting the oldest entry when full.
func (r *Resolver) toCache(key string, data any) {
	r.cache.Add(key, data)
}
