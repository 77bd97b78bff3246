package quilt

import (
	"crypto/sha1"
	"sync"
	"time"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

type hashKey [20]byte

// documentCache keeps parsed and validated query documents for TTL. Documents
// are never mutated after validation so they are shared between requests.
type documentCache struct {
	TTL time.Duration

	schema *ast.Schema

	cache       map[hashKey]*ast.QueryDocument
	cacheTimers map[hashKey]time.Time

	sync.RWMutex
}

func newDocumentCache(schema *ast.Schema, ttl time.Duration) *documentCache {
	return &documentCache{
		TTL:         ttl,
		schema:      schema,
		cache:       make(map[hashKey]*ast.QueryDocument),
		cacheTimers: make(map[hashKey]time.Time),
	}
}

func (dc *documentCache) clean() {
	var toDelete []hashKey
	ttlnow := time.Now().UTC()
	dc.RLock()
	for hk, v := range dc.cacheTimers {
		if v.Before(ttlnow) {
			toDelete = append(toDelete, hk)
		}
	}
	dc.RUnlock()

	if len(toDelete) > 0 {
		dc.Lock()
		defer dc.Unlock()
		for _, hk := range toDelete {
			delete(dc.cache, hk)
			delete(dc.cacheTimers, hk)
		}
	}
}

// Load returns the validated document of query. Invalid documents are not
// cached.
func (dc *documentCache) Load(query string) (*ast.QueryDocument, gqlerror.List) {
	hk := hashKey(sha1.Sum([]byte(query)))

	dc.clean()
	dc.RLock()
	if doc, ok := dc.cache[hk]; ok {
		dc.RUnlock()
		return doc, nil
	}
	dc.RUnlock()

	doc, errs := gqlparser.LoadQuery(dc.schema, query)
	if errs != nil {
		return nil, errs
	}

	dc.Lock()
	defer dc.Unlock()

	dc.cache[hk] = doc
	dc.cacheTimers[hk] = time.Now().UTC().Add(dc.TTL)

	return doc, nil
}
