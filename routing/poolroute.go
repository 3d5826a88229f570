package routing

import (
	"github.com/kvrouter/kvrouter/config"
	"github.com/kvrouter/kvrouter/routes"
)

// makePoolRoute composes the full route for a pool reference: the hashed
// destination selection, optionally wrapped by rate limiting, shard
// splitting and the deduplicated asynclog sink. The input is either an
// object with a "pool" field or a bare pool name.
func (p *Provider) makePoolRoute(f *Factory, n config.Node) (routes.Handle, error) {
	if !n.IsObject() && !n.IsString() {
		return nil, config.Errorf("PoolRoute should be object or string")
	}

	jpool := n
	if n.IsObject() {
		jpool = n.Get("pool")
		if !jpool.Exists() {
			return nil, config.Errorf("PoolRoute: pool not found")
		}
	}

	pj, err := p.pools.ParsePool(jpool)
	if err != nil {
		return nil, err
	}

	destinations, err := p.MakePool(f, pj)
	if err != nil {
		return nil, err
	}

	rh, err := p.composePoolRoute(f, pj.Name, pj.Node, n, destinations)
	if err != nil {
		return nil, config.Errorf("PoolRoute %s: %w", pj.Name, err)
	}

	return rh, nil
}

func (p *Provider) composePoolRoute(f *Factory, poolName string, poolJSON, n config.Node, destinations []routes.Handle) (routes.Handle, error) {
	// The extra provider may only augment leaves, not change routing
	// semantics, so wrapping happens before hash-function selection.
	wrapped, err := p.extra.WrapPoolDestinations(f, destinations, poolName, n)
	if err != nil {
		return nil, err
	}
	if err := checkWrapped(poolName, destinations, wrapped); err != nil {
		return nil, err
	}
	destinations = wrapped

	// Pool-level weights imply the weighted hash function; pool tags and any
	// route-level hash override merge on top, field by field.
	hash := config.NewObject()
	if jweights := poolJSON.Get("weights"); jweights.Exists() {
		hash.SetString("hash_func", routes.HashWeightedCh3)
		hash.Set("weights", jweights.Raw())
	}
	if jtags := poolJSON.Get("tags"); jtags.Exists() {
		hash.Set("tags", jtags.Raw())
	}
	if n.IsObject() {
		if jhash := n.Get("hash"); jhash.Exists() {
			switch {
			case jhash.IsString():
				hash.Set("hash_func", jhash.Raw())
			case jhash.IsObject():
				jhash.ForEach(func(key string, value config.Node) bool {
					hash.Set(key, value.Raw())
					return true
				})
			default:
				return nil, config.Errorf("hash is not object/string")
			}
		}
	}

	rh, err := routes.NewHashRoute(hash.Node(), destinations, f.ThreadID())
	if err != nil {
		return nil, err
	}

	asynclogName := poolName
	needAsynclog := true
	if n.IsObject() {
		if jrates := n.Get("rates"); jrates.Exists() {
			limiter, err := routes.NewRateLimiter(jrates)
			if err != nil {
				return nil, err
			}
			rh = routes.NewRateLimitRoute(rh, limiter)
		}

		if !p.opts.DisableShardSplitRoute {
			if jsplits := n.Get("shard_splits"); jsplits.Exists() {
				splitter, err := routes.NewShardSplitter(jsplits)
				if err != nil {
					return nil, err
				}
				rh = routes.NewShardSplitRoute(rh, splitter)
			}
		}

		if jasynclog := n.Get("asynclog"); jasynclog.Exists() {
			if needAsynclog, err = config.ParseBool(jasynclog, "asynclog"); err != nil {
				return nil, err
			}
		}
		if jname := n.Get("name"); jname.Exists() {
			if asynclogName, err = config.ParseString(jname, "name"); err != nil {
				return nil, err
			}
		}
	}

	if needAsynclog {
		rh = p.createAsynclogRoute(rh, asynclogName)
	}

	return rh, nil
}
