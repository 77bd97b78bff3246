// Package queryer is the transport to underlying services.
package queryer

import (
	"context"

	"github.com/buildbuildio/quilt/gqlerrors"
	"github.com/buildbuildio/quilt/requests"
)

// Queryer executes requests against one underlying service. Responses are
// returned in input order; GraphQL errors are part of the Response, a non nil
// error means the call itself failed.
type Queryer interface {
	Query(ctx context.Context, inputs []*requests.Request) ([]*Response, error)
	URL() string
}

type Response struct {
	Errors     gqlerrors.ErrorList    `json:"errors,omitempty"`
	Data       map[string]interface{} `json:"data"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// Factory builds the queryer for a service.
type Factory func(serviceName, url string) Queryer

// NewFactory returns a Factory creating MultiOpQueryers.
func NewFactory(maxBatchSize int, mwares ...RequestMiddleware) Factory {
	return func(_, url string) Queryer {
		return NewMultiOpQueryer(url, maxBatchSize).WithMiddlewares(mwares)
	}
}
