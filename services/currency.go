package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricecompare/utils"
)

var errNoResult = errors.New("response has no numeric result")

// RateSource converts an amount between two currencies.
type RateSource interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, error)
}

// ConversionError reports a failed call to a RateSource.
type ConversionError struct {
	From, To string
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s->%s: %v", e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ExchangeRateHost queries an exchangerate.host style /convert endpoint.
type ExchangeRateHost struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewExchangeRateHost creates a client. timeout bounds each request.
func NewExchangeRateHost(baseURL, apiKey string, timeout time.Duration) *ExchangeRateHost {
	return &ExchangeRateHost{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (x *ExchangeRateHost) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	fail := func(err error) (float64, error) {
		return 0, &ConversionError{From: from, To: to, Err: err}
	}

	u, err := url.Parse(x.baseURL)
	if err != nil {
		return fail(err)
	}
	q := u.Query()
	q.Set("from", from)
	q.Set("to", to)
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	if x.apiKey != "" {
		q.Set("access_key", x.apiKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fail(err)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fail(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var payload struct {
		Result *float64 `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fail(fmt.Errorf("decode response: %w", err))
	}
	if payload.Result == nil {
		return fail(errNoResult)
	}
	return *payload.Result, nil
}

// CurrencyConverter normalizes prices into the reference currency.
type CurrencyConverter struct {
	source    RateSource
	reference string
	logger    *utils.Logger
}

func NewCurrencyConverter(source RateSource, reference string, logger *utils.Logger) *CurrencyConverter {
	return &CurrencyConverter{source: source, reference: strings.ToUpper(reference), logger: logger}
}

// Reference is the currency every price is converted into.
func (c *CurrencyConverter) Reference() string {
	return c.reference
}

// ToReference converts amount from the given currency into the reference
// currency. It never fails: when the rate source errors or returns a
// non-finite or non-positive value, the original amount is returned.
func (c *CurrencyConverter) ToReference(ctx context.Context, amount float64, from string) float64 {
	if strings.EqualFold(from, c.reference) {
		return amount
	}

	got, err := c.source.Convert(ctx, amount, strings.ToUpper(from), c.reference)
	switch {
	case err != nil:
		c.logger.Warn("[currency] %.2f %s: %v, keeping original amount", amount, from, err)
		return amount
	case math.IsNaN(got) || math.IsInf(got, 0) || got <= 0:
		c.logger.Warn("[currency] %.2f %s converted to %v, keeping original amount", amount, from, got)
		return amount
	}
	return got
}
