// internal/chaos/experiments.go
package chaos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/catalog"
	"storefront/internal/clients"
)

// CatalogOutageExperiment cuts the product API off and checks that a freshly
// started catalog still has something to show.
func CatalogOutageExperiment(t *Transport, newCatalog func() catalog.Service) Experiment {
	return Experiment{
		Name:       "catalog-api-outage",
		Hypothesis: "Shoppers can browse products while the product API is unreachable",
		SteadyState: []Metric{
			{
				Name: "browsable_products",
				Query: func(ctx context.Context) (float64, error) {
					c := newCatalog()
					c.InitialLoad(ctx)
					if err := c.Err(); err != nil {
						return 0, err
					}
					return float64(len(c.Products())), nil
				},
				Threshold: Threshold{Operator: ">=", Value: 1},
			},
		},
		Method: []Action{
			InjectAction(t, "products-api", Fault{Kind: FaultPartition, PathPrefix: "/api/products"}),
		},
		Rollback: []Action{
			ClearAction(t, "products-api"),
		},
		Validation: []Assertion{
			{
				Metric:    "browsable_products",
				Condition: func(v float64) bool { return v >= 1 },
				Message:   "Fallback products should be listed during the outage",
			},
		},
		Duration: 5 * time.Second,
	}
}

// SlowAPIExperiment stalls every response by latency and checks that calls
// give up within budget instead of hanging.
func SlowAPIExperiment(t *Transport, api *clients.APIClient, latency, budget time.Duration) Experiment {
	return Experiment{
		Name:       "api-latency-injection",
		Hypothesis: "Requests fail fast when the API stalls beyond the request timeout",
		SteadyState: []Metric{
			{
				Name: "request_seconds",
				Query: func(ctx context.Context) (float64, error) {
					start := time.Now()
					var out []catalog.Product
					_ = api.Get(ctx, "/api/products", &out)
					return time.Since(start).Seconds(), nil
				},
				Threshold: Threshold{Operator: "<=", Value: budget.Seconds()},
			},
		},
		Method: []Action{
			InjectAction(t, "api", Fault{Kind: FaultLatency, Latency: latency}),
		},
		Rollback: []Action{
			ClearAction(t, "api"),
		},
		Validation: []Assertion{
			{
				Metric:    "request_seconds",
				Condition: func(v float64) bool { return v <= budget.Seconds() },
				Message:   fmt.Sprintf("Requests should return within %s", budget),
			},
		},
		Duration: 5 * time.Second,
	}
}

// ConcurrentCheckoutExperiment races concurrency checkouts for the same stock
// and checks that the remaining stock never goes negative.
func ConcurrentCheckoutExperiment(minStock func(context.Context) (float64, error), checkout func(context.Context) error, concurrency int) Experiment {
	return Experiment{
		Name:       "concurrent-checkout-race-condition",
		Hypothesis: "The service never oversells when many checkouts race for the last units",
		SteadyState: []Metric{
			{
				Name:      "min_stock",
				Query:     minStock,
				Threshold: Threshold{Operator: ">=", Value: 0},
			},
		},
		Method: []Action{
			{
				Type:   "concurrent-requests",
				Target: "orders-api",
				Execute: func(ctx context.Context) error {
					var wg sync.WaitGroup
					for i := 0; i < concurrency; i++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							// Most of these are expected to be turned away.
							_ = checkout(ctx)
						}()
					}
					wg.Wait()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "min_stock",
				Condition: func(v float64) bool { return v >= 0 },
				Message:   "Stock should never go negative",
			},
		},
		Duration: 2 * time.Second,
	}
}
