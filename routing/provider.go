package routing

import (
	log "github.com/sirupsen/logrus"

	"github.com/kvrouter/kvrouter/config"
	"github.com/kvrouter/kvrouter/destination"
	"github.com/kvrouter/kvrouter/network"
	"github.com/kvrouter/kvrouter/pool"
	"github.com/kvrouter/kvrouter/routes"
)

// RouteBuilder constructs one route handle from a configuration node.
type RouteBuilder func(f *Factory, n config.Node) (routes.Handle, error)

// Provider compiles route configurations into route handle trees. A Provider
// lives for one compilation pass: its pool cache and asynclog dedup cache
// guarantee identity-stable results for repeated references within the pass.
// The destination registry it uses is shared across passes.
type Provider struct {
	opts  Options
	pools *pool.Factory
	dests *destination.Registry
	extra ExtraProvider

	routeMap map[string]RouteBuilder

	poolCache      map[string][]routes.Handle
	asyncLogRoutes map[string]routes.Handle
	accessPoints   map[string][]*network.AccessPoint
	poolStatIndex  map[string]int32

	codecInitFailed bool
}

// NewProvider creates a provider for one compilation pass. A nil extra
// provider falls back to the default one.
func NewProvider(opts Options, pools *pool.Factory, dests *destination.Registry, extra ExtraProvider) *Provider {
	if extra == nil {
		extra = NewDefaultExtraProvider()
	}

	p := &Provider{
		opts:           opts,
		pools:          pools,
		dests:          dests,
		extra:          extra,
		poolCache:      make(map[string][]routes.Handle),
		asyncLogRoutes: make(map[string]routes.Handle),
		accessPoints:   make(map[string][]*network.AccessPoint),
		poolStatIndex:  make(map[string]int32),
	}
	p.routeMap = buildCheckedRouteMap()

	return p
}

// Create builds the route handles for a type name and configuration subtree.
// Most types yield a single handle; "Pool" yields the raw destination
// sequence and shadow construction may yield several.
func (p *Provider) Create(f *Factory, typ string, n config.Node) ([]routes.Handle, error) {
	switch typ {
	case "Pool":
		pj, err := p.pools.ParsePool(n)
		if err != nil {
			return nil, err
		}

		return p.MakePool(f, pj)

	case "ShadowRoute":
		return p.extra.MakeShadow(f, n)

	case "SaltedFailoverRoute":
		expanded, err := expandSaltedFailover(n)
		if err != nil {
			return nil, err
		}
		rh, err := p.extra.MakeFailover(f, expanded)
		if err != nil {
			return nil, err
		}

		return []routes.Handle{rh}, nil

	case "FailoverRoute":
		rh, err := p.extra.MakeFailover(f, n)
		if err != nil {
			return nil, err
		}

		return []routes.Handle{rh}, nil

	case "PoolRoute":
		rh, err := p.makePoolRoute(f, n)
		if err != nil {
			return nil, err
		}

		return []routes.Handle{rh}, nil
	}

	if builder, ok := p.routeMap[typ]; ok {
		rh, err := builder(f, n)
		if err != nil {
			return nil, err
		}

		return []routes.Handle{rh}, nil
	}

	handles, err := p.extra.TryCreate(f, typ, n)
	if err != nil {
		return nil, err
	}
	if len(handles) > 0 {
		return handles, nil
	}

	if line := n.Get("type").Line(); line > 0 {
		return nil, config.Errorf("unknown RouteHandle: %s line: %d", typ, line)
	}

	return nil, config.Errorf("unknown RouteHandle: %s", typ)
}

// ParsePool resolves a pool reference to its raw configuration, for callers
// needing pool data without routing wrappers.
func (p *Provider) ParsePool(n config.Node) (config.Node, error) {
	pj, err := p.pools.ParsePool(n)
	if err != nil {
		return config.Node{}, err
	}

	return pj.Node, nil
}

// AccessPoints returns the endpoints resolved per pool so far in this pass.
func (p *Provider) AccessPoints() map[string][]*network.AccessPoint {
	return p.accessPoints
}

// AsynclogRoutes returns the asynclog dedup cache of this pass.
func (p *Provider) AsynclogRoutes() map[string]routes.Handle {
	return p.asyncLogRoutes
}

// expandSaltedFailover rewrites a SaltedFailoverRoute configuration into an
// equivalent FailoverRoute with two children: a PoolRoute carrying the same
// pool and hash configuration, and a bare reference to the same pool.
func expandSaltedFailover(n config.Node) (config.Node, error) {
	jpool := n.Get("pool")
	if !jpool.IsString() && !jpool.IsObject() {
		return config.Node{}, config.Errorf("pool needs to be either a string or an object")
	}

	normal := config.NewObject()
	normal.SetString("type", "PoolRoute")
	normal.Set("pool", jpool.Raw())
	if jhash := n.Get("hash"); jhash.Exists() {
		normal.Set("hash", jhash.Raw())
	}

	var direct string
	if jpool.IsString() {
		direct = config.RawString("Pool|" + jpool.Str())
	} else {
		direct = config.FromObject(jpool).SetString("type", "Pool").Render()
	}

	expanded := config.FromObject(n)
	expanded.Delete("children")
	expanded.Set("children", config.RawArray(normal.Render(), direct))

	return expanded.Node(), nil
}

// createAsynclogRoute wraps target for the given log category, reusing the
// wrapper already built for that category in this pass. With asynclog
// globally disabled the target is still registered under the name for
// bookkeeping.
func (p *Provider) createAsynclogRoute(target routes.Handle, name string) routes.Handle {
	if existing, ok := p.asyncLogRoutes[name]; ok {
		return existing
	}

	if !p.opts.AsynclogDisable {
		target = routes.NewAsynclogRoute(target, name)
	}
	p.asyncLogRoutes[name] = target

	return target
}

// codecs returns the shared codec manager, initializing it on first use.
// Initialization failure is remembered and reported as unavailable.
func (p *Provider) codecs() *network.CodecManager {
	if p.opts.Codecs != nil {
		return p.opts.Codecs
	}
	if p.codecInitFailed {
		return nil
	}

	cm, err := network.NewCodecManager()
	if err != nil {
		log.Warnf("failed to initialize compression codecs: %v", err)
		p.codecInitFailed = true

		return nil
	}
	p.opts.Codecs = cm

	return cm
}

func (p *Provider) statIndex(name string) int32 {
	if idx, ok := p.poolStatIndex[name]; ok {
		return idx
	}

	idx := int32(len(p.poolStatIndex))
	p.poolStatIndex[name] = idx

	return idx
}
