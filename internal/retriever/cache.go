package retriever

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/goretrieve-mcp/pkg/types"
)

// resultCache is a bounded LRU over complete retrieval results. Entries
// are keyed by everything that can change the answer, so a hit is
// always safe to replay for the same snapshot.
type resultCache struct {
	entries *lru.Cache[string, types.RetrieveResult]
}

func newResultCache(size int) (*resultCache, error) {
	entries, err := lru.New[string, types.RetrieveResult](size)
	if err != nil {
		return nil, err
	}
	return &resultCache{entries: entries}, nil
}

func (c *resultCache) get(key string) (types.RetrieveResult, bool) {
	return c.entries.Get(key)
}

func (c *resultCache) add(key string, result types.RetrieveResult) {
	c.entries.Add(key, result)
}

// cacheKey hashes the request fields that affect the result. Snapshots
// are immutable, so no TTL is needed; eviction is purely by recency.
func cacheKey(q types.Query) string {
	indices := make([]string, len(q.RequestedIndices))
	for i, s := range q.RequestedIndices {
		indices[i] = string(s)
	}

	raw := fmt.Sprintf("%s|%s|%s|%d|%s|%s|%s|%s",
		q.RepoID, q.SnapshotID, q.Text, q.TokenBudget,
		strings.Join(indices, ","),
		strings.Join(q.Hints.Symbols, ","),
		strings.Join(q.Hints.Files, ","),
		strings.Join(q.Hints.Modules, ","),
	)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
