package requests

import "github.com/buildbuildio/quilt/gqlerrors"

type Responses []Response

type Response struct {
	Errors gqlerrors.ErrorList    `json:"errors,omitempty"`
	Data   map[string]interface{} `json:"data"`
	// HasNext is only set on the initial response of an incremental stream.
	HasNext *bool `json:"hasNext,omitempty"`
}

// IncrementalPayload carries the data of one deferred fragment. Path is the
// result path of the object the data belongs to.
type IncrementalPayload struct {
	Data   map[string]interface{} `json:"data"`
	Path   []interface{}          `json:"path"`
	Label  string                 `json:"label,omitempty"`
	Errors gqlerrors.ErrorList    `json:"errors,omitempty"`
}

// IncrementalResult is one subsequent result of an incremental stream. The
// last one has HasNext set to false.
type IncrementalResult struct {
	Incremental []*IncrementalPayload `json:"incremental,omitempty"`
	HasNext     bool                  `json:"hasNext"`
}
