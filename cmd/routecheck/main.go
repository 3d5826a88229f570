/*
Command routecheck compiles a router configuration without connecting
anywhere, reporting the first fatal configuration error with its source
context. It accepts JSON directly or YAML converted to JSON first.

The configuration document holds the named pool definitions under "pools"
and the route tree under "route" (or a list under "routes").

	routecheck -config router.json -region us-east -cluster alpha
*/
package main

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"sigs.k8s.io/yaml"

	"github.com/kvrouter/kvrouter/config"
	"github.com/kvrouter/kvrouter/destination"
	"github.com/kvrouter/kvrouter/pool"
	"github.com/kvrouter/kvrouter/routing"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to the router configuration (JSON or YAML)")
		region        = flag.String("region", "", "router region identity")
		cluster       = flag.String("cluster", "", "router cluster identity")
		datacenter    = flag.String("datacenter", "", "router datacenter identity")
		serverTimeout = flag.Duration("server-timeout", routing.DefaultServerTimeout, "default server timeout")
		security      = flag.Bool("security-config", false, "enable pool security configuration")
		verbose       = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *configPath == "" {
		log.Fatal("missing -config")
	}

	raw, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *configPath, err)
	}
	if !json.Valid(raw) {
		if raw, err = yaml.YAMLToJSON(raw); err != nil {
			log.Fatalf("failed to convert %s to JSON: %v", *configPath, err)
		}
	}

	root, err := config.Parse(string(raw))
	if err != nil {
		log.Fatalf("failed to parse %s: %v", *configPath, err)
	}

	opts := routing.Options{
		Region:               *region,
		Cluster:              *cluster,
		LocalDatacenter:      *datacenter,
		ServerTimeout:        *serverTimeout,
		EnableSecurityConfig: *security,
	}

	registry := destination.NewRegistry(nil)
	provider := routing.NewProvider(opts, pool.NewFactory(root), registry, nil)
	factory := routing.NewFactory(provider, 0)

	start := time.Now()
	compiled := 0
	check := func(name string, n config.Node) {
		handles, err := factory.Create(n)
		if err != nil {
			log.Fatalf("route %s: %v", name, err)
		}
		compiled += len(handles)
	}

	switch {
	case root.Get("route").Exists():
		check("route", root.Get("route"))
	case root.Get("routes").IsArray():
		for _, n := range root.Get("routes").Array() {
			check(n.Get("name").Str(), n.Get("route"))
		}
	default:
		log.Fatal("configuration has neither 'route' nor 'routes'")
	}

	log.WithFields(log.Fields{
		"handles":      compiled,
		"destinations": registry.Len(),
		"elapsed":      time.Since(start),
	}).Info("configuration compiled")
}
