package routing

import (
	"github.com/kvrouter/kvrouter/config"
	"github.com/kvrouter/kvrouter/routes"
)

// buildRouteMap returns the built-in named route builders. The map is built
// once per provider and then wrapped by the nil-handle guard.
func buildRouteMap() map[string]RouteBuilder {
	return map[string]RouteBuilder{
		"ErrorRoute":     makeErrorRoute,
		"HashRoute":      makeHashRoute,
		"LoggingRoute":   makeLoggingRoute,
		"NullRoute":      makeNullRoute,
		"RateLimitRoute": makeRateLimitRoute,
	}
}

// buildCheckedRouteMap wraps every builder so that a nil handle returned
// without an error fails fast as a configuration error naming the type.
// Other construction paths, such as the extra provider's shadow and failover
// builders, are checked at their own call sites.
func buildCheckedRouteMap() map[string]RouteBuilder {
	checked := make(map[string]RouteBuilder)
	for name, builder := range buildRouteMap() {
		checked[name] = checkedBuilder(name, builder)
	}

	return checked
}

func checkedBuilder(name string, builder RouteBuilder) RouteBuilder {
	return func(f *Factory, n config.Node) (routes.Handle, error) {
		rh, err := builder(f, n)
		if err != nil {
			return nil, err
		}
		if rh == nil {
			return nil, config.Errorf("make%s returned nil", name)
		}

		return rh, nil
	}
}

func makeNullRoute(*Factory, config.Node) (routes.Handle, error) {
	return routes.NewNullRoute(), nil
}

func makeErrorRoute(_ *Factory, n config.Node) (routes.Handle, error) {
	var message string
	switch {
	case n.IsString():
		message = n.Str()
	case n.IsObject():
		if jresp := n.Get("response"); jresp.Exists() {
			s, err := config.ParseString(jresp, "response")
			if err != nil {
				return nil, err
			}
			message = s
		}
	}

	return routes.NewErrorRoute(message), nil
}

func makeLoggingRoute(f *Factory, n config.Node) (routes.Handle, error) {
	var target routes.Handle = routes.NewNullRoute()
	if n.IsObject() {
		if jtarget := n.Get("target"); jtarget.Exists() {
			var err error
			if target, err = f.CreateOne(jtarget); err != nil {
				return nil, err
			}
		}
	}

	return routes.NewLoggingRoute(target), nil
}

func makeHashRoute(f *Factory, n config.Node) (routes.Handle, error) {
	if !n.IsObject() {
		return nil, config.Errorf("HashRoute should be an object")
	}

	children, err := f.CreateList(n.Get("children"))
	if err != nil {
		return nil, err
	}

	return routes.NewHashRoute(n, children, f.ThreadID())
}

func makeRateLimitRoute(f *Factory, n config.Node) (routes.Handle, error) {
	if !n.IsObject() {
		return nil, config.Errorf("RateLimitRoute should be an object")
	}

	target, err := f.CreateOne(n.Get("target"))
	if err != nil {
		return nil, err
	}

	limiter, err := routes.NewRateLimiter(n.Get("rates"))
	if err != nil {
		return nil, err
	}

	return routes.NewRateLimitRoute(target, limiter), nil
}
