package routing

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kvrouter/kvrouter/config"
	"github.com/kvrouter/kvrouter/destination"
	"github.com/kvrouter/kvrouter/network"
	"github.com/kvrouter/kvrouter/pool"
	"github.com/kvrouter/kvrouter/routes"
)

// MakePool builds the ordered destination sequence of a pool. Repeated calls
// with the same pool name within one pass return the identical cached
// sequence. Server entries that are objects delegate to the factory as
// nested routes; string entries resolve to destination leaves through the
// registry.
func (p *Provider) MakePool(f *Factory, pj pool.JSON) ([]routes.Handle, error) {
	if cached, ok := p.poolCache[pj.Name]; ok {
		return cached, nil
	}

	// Malformed region/cluster is recoverable: report and continue with an
	// empty value.
	var region, cluster string
	if jregion := pj.Node.Get("region"); jregion.Exists() {
		if !jregion.IsString() {
			log.Warnf("Pool %s: pool_region is not a string", pj.Name)
		} else {
			region = jregion.Str()
		}
	}
	if jcluster := pj.Node.Get("cluster"); jcluster.Exists() {
		if !jcluster.IsString() {
			log.Warnf("Pool %s: pool_cluster is not a string", pj.Name)
		} else {
			cluster = jcluster.Str()
		}
	}

	destinations, err := p.makePoolDestinations(f, pj, region, cluster)
	if err != nil {
		return nil, config.Errorf("Pool %s: %w", pj.Name, err)
	}

	p.poolCache[pj.Name] = destinations

	return destinations, nil
}

func (p *Provider) makePoolDestinations(f *Factory, pj pool.JSON, region, cluster string) ([]routes.Handle, error) {
	name, json := pj.Name, pj.Node

	timeout := p.opts.serverTimeout()
	if jt := json.Get("server_timeout"); jt.Exists() {
		var err error
		if timeout, err = config.ParseTimeout(jt, "server_timeout"); err != nil {
			return nil, err
		}
	}

	connectTimeout := timeout
	if jt := json.Get("connect_timeout"); jt.Exists() {
		var err error
		if connectTimeout, err = config.ParseTimeout(jt, "connect_timeout"); err != nil {
			return nil, err
		}
	}

	timeout = p.applyTieredTimeout(timeout, region, cluster)

	protocol := network.ProtocolASCII
	if jp := json.Get("protocol"); jp.Exists() {
		s, err := config.ParseString(jp, "protocol")
		if err != nil {
			return nil, err
		}
		if protocol, err = network.ParseProtocol(s); err != nil {
			return nil, err
		}
	}

	enableCompression := p.opts.EnableCompression
	if jc := json.Get("enable_compression"); jc.Exists() {
		var err error
		if enableCompression, err = config.ParseBool(jc, "enable_compression"); err != nil {
			return nil, err
		}
	}

	keepRoutingPrefix := false
	if jk := json.Get("keep_routing_prefix"); jk.Exists() {
		var err error
		if keepRoutingPrefix, err = config.ParseBool(jk, "keep_routing_prefix"); err != nil {
			return nil, err
		}
	}

	qosClass := p.opts.DefaultQoSClass
	qosPath := p.opts.DefaultQoSPath
	if jqos := json.Get("qos"); jqos.Exists() {
		if !jqos.IsObject() {
			return nil, config.Errorf("qos must be an object")
		}
		if jclass := jqos.Get("class"); jclass.Exists() {
			v, err := config.ParseInt(jclass, "qos.class", 0, 4)
			if err != nil {
				return nil, err
			}
			qosClass = uint64(v)
		}
		if jpath := jqos.Get("path"); jpath.Exists() {
			v, err := config.ParseInt(jpath, "qos.path", 0, 3)
			if err != nil {
				return nil, err
			}
			qosPath = uint64(v)
		}
	}

	sec, err := p.parsePoolSecurity(json)
	if err != nil {
		return nil, err
	}

	jservers := json.Get("servers")
	if !jservers.Exists() {
		return nil, config.Errorf("servers not found")
	}
	if !jservers.IsArray() {
		return nil, config.Errorf("servers is not an array")
	}
	servers := jservers.Array()

	if jhostnames := json.Get("hostnames"); jhostnames.Exists() {
		if !jhostnames.IsArray() {
			return nil, config.Errorf("hostnames is not an array")
		}
		if got := len(jhostnames.Array()); got != len(servers) {
			return nil, config.Errorf(
				"hostnames expected to be of the same size as servers, expected %d, got %d",
				len(servers), got)
		}
	}

	poolStatIndex := p.statIndex(name)

	destinations := make([]routes.Handle, 0, len(servers))
	for i, server := range servers {
		switch {
		case server.IsObject():
			rh, err := f.CreateOne(server)
			if err != nil {
				return nil, err
			}
			destinations = append(destinations, rh)
			continue
		case !server.IsString():
			return nil, config.Errorf("server #%d is not a string/object", i)
		}

		ap, err := network.NewAccessPoint(server.Str(), protocol, sec.mech, sec.port, enableCompression)
		if err != nil {
			return nil, err
		}

		sec.applyDatacenterOverrides(ap, p.opts.LocalDatacenter)

		if ap.Compressed() && p.codecs() == nil {
			log.Warnf(
				"Pool %s: failed to initialize compression, disabling compression for host: %s",
				name, server.Str())
			ap.DisableCompression()
		}

		p.accessPoints[name] = append(p.accessPoints[name], ap)

		kind := destination.TransportAsyncClient
		if ap.Protocol() == network.ProtocolThrift {
			if !network.ThriftCompatible(ap.SecurityMech()) {
				return nil, config.Errorf(
					"security mechanism must be 'plain', 'ssl' or 'tls_to_plain' for thrift transport, got %s",
					ap.SecurityMech())
			}
			kind = destination.TransportThrift
		}

		dest, err := p.dests.Emplace(kind, ap, timeout, qosClass, qosPath)
		if err != nil {
			return nil, err
		}
		dest.UpdateShortestTimeout(connectTimeout, timeout)

		destinations = append(destinations, routes.NewDestinationRoute(
			dest, name, i, poolStatIndex, timeout, keepRoutingPrefix))
	}

	return destinations, nil
}

// applyTieredTimeout adjusts the base timeout by the distance between the
// pool and the router's own (region, cluster). A zero override never
// replaces the base timeout.
func (p *Provider) applyTieredTimeout(timeout time.Duration, region, cluster string) time.Duration {
	if region == "" || cluster == "" {
		return timeout
	}

	switch {
	case region == p.opts.Region && cluster == p.opts.Cluster:
		if p.opts.WithinClusterTimeout != 0 {
			return p.opts.WithinClusterTimeout
		}
	case region == p.opts.Region:
		if p.opts.CrossClusterTimeout != 0 {
			return p.opts.CrossClusterTimeout
		}
	default:
		if p.opts.CrossRegionTimeout != 0 {
			return p.opts.CrossRegionTimeout
		}
	}

	return timeout
}

// poolSecurity carries the resolved security parameters of one pool.
type poolSecurity struct {
	mech network.SecurityMech
	port uint16

	withinDcMech *network.SecurityMech
	crossDcMech  *network.SecurityMech
	withinDcPort *uint16
	crossDcPort  *uint16
}

// parsePoolSecurity resolves the pool's security fields. With the security
// config feature disabled all endpoints use no security mechanism.
func (p *Provider) parsePoolSecurity(json config.Node) (poolSecurity, error) {
	var sec poolSecurity
	if !p.opts.EnableSecurityConfig {
		return sec, nil
	}

	if jmech := json.Get("security_mech"); jmech.Exists() {
		s, err := config.ParseString(jmech, "security_mech")
		if err != nil {
			return sec, err
		}
		if sec.mech, err = network.ParseSecurityMech(s); err != nil {
			return sec, err
		}
	} else if jssl := json.Get("use_ssl"); jssl.Exists() {
		// deprecated - prefer security_mech
		useSsl, err := config.ParseBool(jssl, "use_ssl")
		if err != nil {
			return sec, err
		}
		if useSsl {
			sec.mech = network.SecurityTLS
		}
	}

	if jmech := json.Get("security_mech_within_dc"); jmech.Exists() {
		s, err := config.ParseString(jmech, "security_mech_within_dc")
		if err != nil {
			return sec, err
		}
		m, err := network.ParseSecurityMech(s)
		if err != nil {
			return sec, err
		}
		sec.withinDcMech = &m
	}

	if jmech := json.Get("security_mech_cross_dc"); jmech.Exists() {
		s, err := config.ParseString(jmech, "security_mech_cross_dc")
		if err != nil {
			return sec, err
		}
		m, err := network.ParseSecurityMech(s)
		if err != nil {
			return sec, err
		}
		sec.crossDcMech = &m
	}

	if jport := json.Get("port_override_within_dc"); jport.Exists() {
		v, err := config.ParseInt(jport, "port_override_within_dc", 1, 65535)
		if err != nil {
			return sec, err
		}
		port := uint16(v)
		sec.withinDcPort = &port
	}

	if jport := json.Get("port_override_cross_dc"); jport.Exists() {
		v, err := config.ParseInt(jport, "port_override_cross_dc", 1, 65535)
		if err != nil {
			return sec, err
		}
		port := uint16(v)
		sec.crossDcPort = &port
	}

	if jport := json.Get("port_override"); jport.Exists() {
		v, err := config.ParseInt(jport, "port_override", 1, 65535)
		if err != nil {
			return sec, err
		}
		sec.port = uint16(v)
	}

	return sec, nil
}

// applyDatacenterOverrides applies the within-DC or cross-DC mechanism and
// port overrides, each field independently, after classifying the endpoint
// against the router's own datacenter.
func (s poolSecurity) applyDatacenterOverrides(ap *network.AccessPoint, localDc string) {
	if s.withinDcMech == nil && s.crossDcMech == nil &&
		s.withinDcPort == nil && s.crossDcPort == nil {
		return
	}

	if network.IsInLocalDatacenter(ap.Host(), localDc) {
		if s.withinDcMech != nil {
			ap.SetSecurityMech(*s.withinDcMech)
		}
		if s.withinDcPort != nil {
			ap.SetPort(*s.withinDcPort)
		}
	} else {
		if s.crossDcMech != nil {
			ap.SetSecurityMech(*s.crossDcMech)
		}
		if s.crossDcPort != nil {
			ap.SetPort(*s.crossDcPort)
		}
	}
}
