package core

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Collect runs every provider concurrently and waits for all of them to
// settle. Results follow the order of providers, not completion order. A
// provider that panics is reported as a synthetic "unknown" entry.
func Collect(ctx context.Context, providers []UsageProvider) []ProviderUsage {
	results := make([]ProviderUsage, len(providers))

	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p UsageProvider) {
			defer wg.Done()
			results[i] = fetchIsolated(ctx, p)
		}(i, p)
	}
	wg.Wait()

	return results
}

// FetchOne runs a single provider with the same isolation Collect applies.
func FetchOne(ctx context.Context, p UsageProvider) ProviderUsage {
	return fetchIsolated(ctx, p)
}

func fetchIsolated(ctx context.Context, p UsageProvider) (usage ProviderUsage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[engine] provider fetch panicked: %v", r)
			usage = UnknownFailure(fmt.Errorf("%v", r))
		}
	}()

	if p == nil {
		return UnknownFailure(fmt.Errorf("no provider adapter registered"))
	}

	usage = p.Fetch(ctx)
	usage.Normalize()
	return usage
}

// UnknownFailure is the entry emitted for faults outside the error taxonomy.
func UnknownFailure(err error) ProviderUsage {
	return ProviderUsage{
		ID:        "unknown",
		Name:      "Unknown",
		Available: false,
		Error:     err.Error(),
		Kind:      KindUnexpectedFault,
	}
}
