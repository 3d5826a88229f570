package routes

import (
	"context"
	"fmt"
	"hash/crc32"
	"sort"

	xxhash "github.com/cespare/xxhash/v2"
	jump "github.com/dgryski/go-jump"
	"github.com/dgryski/go-rendezvous"

	"github.com/kvrouter/kvrouter/config"
)

// Hash function names accepted in the "hash_func" field.
const (
	HashCh3         = "Ch3"
	HashWeightedCh3 = "WeightedCh3"
	HashCrc32       = "Crc32"
	HashJump        = "Jump"
	HashRendezvous  = "Rendezvous"
)

const ch3Replicas = 100

type hashFunc interface {
	pick(key string) int
}

// ch3 is a ring-based consistent hash: each child owns a fixed number of
// virtual points on a 64-bit ring, optionally scaled by a weight in [0, 1].
type ch3 struct {
	points []ringPoint
}

type ringPoint struct {
	hash  uint64
	index int
}

func newCh3(n int, weights []float64) (*ch3, error) {
	points := make([]ringPoint, 0, n*ch3Replicas)
	for i := 0; i < n; i++ {
		replicas := ch3Replicas
		if weights != nil {
			w := weights[i]
			if w < 0 || w > 1 {
				return nil, config.Errorf("weight #%d out of range: %f not in [0, 1]", i, w)
			}
			replicas = int(w * ch3Replicas)
		}
		for r := 0; r < replicas; r++ {
			points = append(points, ringPoint{
				hash:  xxhash.Sum64String(fmt.Sprintf("%d-%d", i, r)),
				index: i,
			})
		}
	}

	if len(points) == 0 {
		return nil, config.Errorf("all weights are zero")
	}

	sort.Slice(points, func(i, j int) bool { return points[i].hash < points[j].hash })

	return &ch3{points: points}, nil
}

func (c *ch3) pick(key string) int {
	h := xxhash.Sum64String(key)
	i := sort.Search(len(c.points), func(i int) bool { return c.points[i].hash >= h })
	if i == len(c.points) {
		i = 0
	}

	return c.points[i].index
}

type crc32Hash struct {
	n int
}

func (c crc32Hash) pick(key string) int {
	return int(crc32.ChecksumIEEE([]byte(key)) % uint32(c.n))
}

type jumpHash struct {
	n int
}

func (j jumpHash) pick(key string) int {
	return int(jump.Hash(xxhash.Sum64String(key), j.n))
}

type rendezvousHash struct {
	r     *rendezvous.Rendezvous
	index map[string]int
}

func newRendezvousHash(n int) *rendezvousHash {
	nodes := make([]string, n)
	index := make(map[string]int, n)
	for i := 0; i < n; i++ {
		nodes[i] = fmt.Sprintf("%d", i)
		index[nodes[i]] = i
	}

	return &rendezvousHash{
		r:     rendezvous.New(nodes, xxhash.Sum64String),
		index: index,
	}
}

func (r *rendezvousHash) pick(key string) int {
	return r.index[r.r.Lookup(key)]
}

// HashRoute selects one child per request by hashing the request key.
type HashRoute struct {
	children []Handle
	fn       hashFunc
	funcName string
	salt     string
	tags     []string
	threadID uint32
}

func (h *HashRoute) Children() []Handle { return h.children }
func (h *HashRoute) FuncName() string   { return h.funcName }
func (h *HashRoute) Salt() string       { return h.salt }
func (h *HashRoute) Tags() []string     { return h.tags }

func (h *HashRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	key := req.Key
	if h.salt != "" {
		key += h.salt
	}

	return h.children[h.fn.pick(key)].Route(ctx, req)
}

// NewHashRoute builds a hash-selection route over children from the merged
// hash configuration. With no children it degrades to a NullRoute, with one
// child the child is returned unwrapped. The thread id is retained for
// thread-affinity sensitive hash implementations.
func NewHashRoute(cfg config.Node, children []Handle, threadID uint32) (Handle, error) {
	switch len(children) {
	case 0:
		return NewNullRoute(), nil
	case 1:
		return children[0], nil
	}

	funcName := HashCh3
	if jf := cfg.Get("hash_func"); jf.Exists() {
		s, err := config.ParseString(jf, "hash_func")
		if err != nil {
			return nil, err
		}
		funcName = s
	}

	var salt string
	if js := cfg.Get("salt"); js.Exists() {
		s, err := config.ParseString(js, "salt")
		if err != nil {
			return nil, err
		}
		salt = s
	}

	var tags []string
	if jt := cfg.Get("tags"); jt.Exists() {
		if !jt.IsArray() {
			return nil, config.Errorf("tags is not an array")
		}
		for i, t := range jt.Array() {
			s, err := config.ParseString(t, fmt.Sprintf("tags[%d]", i))
			if err != nil {
				return nil, err
			}
			tags = append(tags, s)
		}
	}

	var fn hashFunc
	var err error
	switch funcName {
	case HashCh3:
		fn, err = newCh3(len(children), nil)
	case HashWeightedCh3:
		weights, werr := parseWeights(cfg.Get("weights"), len(children))
		if werr != nil {
			return nil, werr
		}
		fn, err = newCh3(len(children), weights)
	case HashCrc32:
		fn = crc32Hash{n: len(children)}
	case HashJump:
		fn = jumpHash{n: len(children)}
	case HashRendezvous:
		fn = newRendezvousHash(len(children))
	default:
		return nil, config.Errorf("unknown hash function '%s'", funcName)
	}
	if err != nil {
		return nil, err
	}

	return &HashRoute{
		children: children,
		fn:       fn,
		funcName: funcName,
		salt:     salt,
		tags:     tags,
		threadID: threadID,
	}, nil
}

func parseWeights(n config.Node, children int) ([]float64, error) {
	if !n.Exists() {
		return nil, config.Errorf("weights not found")
	}
	if !n.IsArray() {
		return nil, config.Errorf("weights is not an array")
	}

	elems := n.Array()
	if len(elems) < children {
		return nil, config.Errorf(
			"weights: expected at least %d weights, got %d", children, len(elems))
	}

	// Extra weights are allowed and ignored.
	weights := make([]float64, children)
	for i := 0; i < children; i++ {
		if !elems[i].IsNumber() {
			return nil, config.Errorf("weights[%d] is not a number", i)
		}
		weights[i] = elems[i].Float()
	}

	return weights, nil
}
