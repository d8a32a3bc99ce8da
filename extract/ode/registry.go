// Package ode implements the two ODE (Outer Planets Data Exploration)
// web service operations: discovering georeferenced collections and
// enumerating their record pages. Query parameter names (ihid, iid, pt,
// offset, limit) match the upstream wire contract exactly.
package ode

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"

	"github.com/pdssp/pdscrawler/fetch"
	"github.com/pdssp/pdscrawler/model"
	"github.com/pdssp/pdscrawler/storage"
)

// ServiceEndpoint is the ODE REST API base URL.
const ServiceEndpoint = "https://oderest.rsl.wustl.edu/live2/?"

// Registry discovers georeferenced PDS collections from the ODE
// discovery endpoint and writes them through to a storage.Registry.
type Registry struct {
	fetcher  *fetch.Client
	endpoint string
	store    storage.Registry
}

// NewRegistry builds a Registry that writes discovered descriptors into
// store, fetching through fetcher's retry/backoff policy like every
// other HTTP access in the pipeline.
func NewRegistry(store storage.Registry, fetcher *fetch.Client) *Registry {
	return &Registry{fetcher: fetcher, endpoint: ServiceEndpoint, store: store}
}

// WithEndpoint overrides the discovery endpoint, for tests and for
// pointing at an ODE mirror other than the default live service.
func (r *Registry) WithEndpoint(endpoint string) *Registry {
	r.endpoint = endpoint
	return r
}

// DiscoverStats summarizes the outcome of one Discover call.
type DiscoverStats struct {
	Total       int
	Errors      int
	Skipped     int
	Kept        int
	RecordCount int
}

// iiptSetsEnvelope mirrors the literal ODE discovery wire shape.
type iiptSetsEnvelope struct {
	ODEResults struct {
		IIPTSets struct {
			IIPTSet []model.CollectionDescriptor `json:"IIPTSet"`
		} `json:"IIPTSets"`
	} `json:"ODEResults"`
}

// Discover queries the ODE discovery endpoint for the given planet (pass
// "" for every planet), keeps only georeferenced descriptors, and writes
// each one through to the registry store (create-or-replace).
func (r *Registry) Discover(ctx context.Context, planet string) ([]model.CollectionDescriptor, DiscoverStats, error) {
	body, err := r.getDiscoveryResponse(ctx, planet)
	if err != nil {
		return nil, DiscoverStats{}, err
	}

	var env iiptSetsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, DiscoverStats{}, errors.Wrap(err, "decoding ODE discovery response")
	}

	all := env.ODEResults.IIPTSets.IIPTSet
	stats := DiscoverStats{Total: len(all)}
	kept := make([]model.CollectionDescriptor, 0, len(all))
	for _, cd := range all {
		if !cd.Georeferenced() {
			stats.Skipped++
			continue
		}
		stats.Kept++
		stats.RecordCount += cd.NumberProducts
		if r.store != nil {
			if err := r.store.Put(cd.Fingerprint(), cd); err != nil {
				return nil, stats, errors.Wrap(err, "writing descriptor to registry")
			}
		}
		kept = append(kept, cd)
	}
	return kept, stats, nil
}

func (r *Registry) getDiscoveryResponse(ctx context.Context, planet string) ([]byte, error) {
	params := url.Values{"query": {"iipt"}, "output": {"json"}}
	if planet != "" {
		params.Set("odemetadb", planet)
	}
	body, err := r.fetcher.GetBytes(ctx, r.endpoint+params.Encode())
	if err != nil {
		return nil, errors.Wrap(err, "requesting ODE discovery endpoint")
	}
	return body, nil
}
