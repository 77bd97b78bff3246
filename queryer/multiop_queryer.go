package queryer

import (
	"context"
	"net/http"

	"github.com/buildbuildio/quilt/common"
	"github.com/buildbuildio/quilt/requests"
	"github.com/samber/lo"
)

// RequestMiddleware are functions can be passed to Queryer to affect its internal behavior
type RequestMiddleware func(*http.Request) error

// MultiOpQueryer sends all inputs of a Query call as one batched network
// request, split into chunks of at most maxBatchSize operations. The executor
// passes a single input per call; larger batches come from callers using the
// queryer directly.
type MultiOpQueryer struct {
	url     string
	client  *http.Client
	mdwares []RequestMiddleware

	maxBatchSize int
}

var _ Queryer = &MultiOpQueryer{}

// NewMultiOpQueryer returns a MultiOpQueryer with the provided parameters
func NewMultiOpQueryer(url string, maxBatchSize int) *MultiOpQueryer {
	if maxBatchSize <= 0 {
		maxBatchSize = 1
	}

	return &MultiOpQueryer{
		url:          url,
		client:       &http.Client{},
		maxBatchSize: maxBatchSize,
	}
}

// WithMiddlewares lets the user assign middlewares to the queryer
func (q *MultiOpQueryer) WithMiddlewares(mwares []RequestMiddleware) *MultiOpQueryer {
	q.mdwares = mwares
	return q
}

// WithHTTPClient lets the user configure the client to use when making network requests
func (q *MultiOpQueryer) WithHTTPClient(client *http.Client) *MultiOpQueryer {
	q.client = client
	return q
}

func (q *MultiOpQueryer) URL() string {
	return q.url
}

func (q *MultiOpQueryer) Query(ctx context.Context, inputs []*requests.Request) ([]*Response, error) {
	// fit in max batch size
	if len(inputs) <= q.maxBatchSize {
		return q.fetch(ctx, inputs)
	}

	// divide into smaller batches
	chunks, err := common.AsyncMap(ctx, lo.Chunk(inputs, q.maxBatchSize), q.fetch)
	if err != nil {
		return nil, err
	}

	return lo.Flatten(chunks), nil
}
