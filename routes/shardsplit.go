package routes

import (
	"context"
	"math"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"

	"github.com/kvrouter/kvrouter/config"
)

// maxShardSplits bounds the split fanout of one shard: primary plus two
// lowercase letters of suffix space.
const maxShardSplits = 26*26 + 1

// ShardSplitter maps shard ids to their configured split count, built from a
// "shard_splits" object of shard id to integer fanout.
type ShardSplitter struct {
	splits map[string]int
}

func NewShardSplitter(n config.Node) (*ShardSplitter, error) {
	if !n.IsObject() {
		return nil, config.Errorf("shard_splits is not an object")
	}

	splits := make(map[string]int)
	var err error
	n.ForEach(func(shard string, v config.Node) bool {
		var count int64
		count, err = config.ParseInt(v, "shard_splits."+shard, 1, maxShardSplits)
		if err != nil {
			return false
		}
		splits[shard] = int(count)

		return true
	})
	if err != nil {
		return nil, err
	}

	return &ShardSplitter{splits: splits}, nil
}

// Splits returns the split count for shard, or 1 when unsplit.
func (s *ShardSplitter) Splits(shard string) int {
	if c, ok := s.splits[shard]; ok {
		return c
	}

	return 1
}

func splitSuffix(split int) string {
	// split 1 maps to "aa", following the two-letter suffix convention.
	i := split - 1

	return string([]byte{'a' + byte(i/26%26), 'a' + byte(i%26)})
}

// ShardSplitRoute spreads reads for a split shard across its replica shards
// by rewriting the shard part of the key. The shard id is the second
// colon-separated part of the key.
type ShardSplitRoute struct {
	target   Handle
	splitter *ShardSplitter
}

func NewShardSplitRoute(target Handle, splitter *ShardSplitter) *ShardSplitRoute {
	return &ShardSplitRoute{target: target, splitter: splitter}
}

func (s *ShardSplitRoute) Target() Handle           { return s.target }
func (s *ShardSplitRoute) Splitter() *ShardSplitter { return s.splitter }

func shardParts(key string) (prefix, shard, suffix string, ok bool) {
	i := strings.IndexByte(key, ':')
	if i < 0 {
		return "", "", "", false
	}
	j := strings.IndexByte(key[i+1:], ':')
	if j < 0 {
		return "", "", "", false
	}

	return key[:i+1], key[i+1 : i+1+j], key[i+1+j:], true
}

func (s *ShardSplitRoute) Route(ctx context.Context, req *Request) (*Reply, error) {
	if req.Op != OpGet {
		return s.target.Route(ctx, req)
	}

	prefix, shard, suffix, ok := shardParts(req.Key)
	if !ok {
		return s.target.Route(ctx, req)
	}

	n := s.splitter.Splits(shard)
	if n <= 1 {
		return s.target.Route(ctx, req)
	}

	split := int(xxhash.Sum64String(req.Key) % uint64(math.MaxInt32) % uint64(n))
	if split == 0 {
		return s.target.Route(ctx, req)
	}

	rewritten := *req
	rewritten.Key = prefix + shard + splitSuffix(split) + suffix

	return s.target.Route(ctx, &rewritten)
}
