package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const MultipartMixedContentType = "multipart/mixed"

// Request represents single request send via HTTP
type Request struct {
	Original      *http.Request          `json:"-"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName *string                `json:"operationName"`
}

// GetOperationName returns operation name or empty string.
func (r *Request) GetOperationName() string {
	if r.OperationName == nil {
		return ""
	}
	return *r.OperationName
}

// ParseRequestResponse is an resulting object of ParseRequestQuery.
// It contains requests array and indicator, if request was running in batch mode.
type ParseRequestResponse struct {
	Requests    []*Request
	IsBatchMode bool
	// AcceptsIncremental is set when the client can read multipart/mixed
	// responses, so deferred fragments may be delivered incrementally.
	AcceptsIncremental bool
}

func Parse(r *http.Request) (resp *ParseRequestResponse, finalErr error) {
	defer func() {
		if resp == nil {
			return
		}
		for _, req := range resp.Requests {
			req.Original = r
		}
		resp.AcceptsIncremental = !resp.IsBatchMode && AcceptsMultipartMixed(r)
	}()
	if r.Method != http.MethodPost {
		return nil, errors.New("only POST requests are supported")
	}

	contentType := strings.SplitN(r.Header.Get("Content-Type"), ";", 2)[0]

	switch contentType {
	case "text/plain", "application/json", "":
		// read the full request body
		requestBytes, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encountered error reading body: %s", err)
		}
		resp, finalErr = parseRequest(requestBytes)
		return
	default:
		return nil, fmt.Errorf("unknown content-type: %s", contentType)
	}
}

// AcceptsMultipartMixed reports whether the Accept header lists multipart/mixed.
func AcceptsMultipartMixed(r *http.Request) bool {
	for _, value := range r.Header.Values("Accept") {
		for _, part := range strings.Split(value, ",") {
			mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
			if mediaType == MultipartMixedContentType {
				return true
			}
		}
	}
	return false
}

// parseRequest takes byte body of request and tries to parse it.
func parseRequest(body []byte) (*ParseRequestResponse, error) {
	if IsBatchMode(body) {
		// multiple objects case
		var multipleRequests []*Request

		if err := json.Unmarshal(body, &multipleRequests); err != nil {
			return nil, fmt.Errorf("unable to parse given request in batch mode: %s", body)
		}

		for _, r := range multipleRequests {
			if r.Query == "" {
				return nil, errors.New("missing query from request")
			}
		}

		return &ParseRequestResponse{
			Requests:    multipleRequests,
			IsBatchMode: true,
		}, nil
	}

	// single object case
	var singleRequest Request
	if err := json.Unmarshal(body, &singleRequest); err != nil {
		return nil, fmt.Errorf("unable to parse given request in single mode: %s", body)
	}

	if singleRequest.Query == "" {
		return nil, errors.New("missing query from request")
	}

	return &ParseRequestResponse{
		Requests:    []*Request{&singleRequest},
		IsBatchMode: false,
	}, nil
}

func IsBatchMode(body []byte) bool {
	for _, c := range body {
		if c == '[' {
			return true
		}
		if c == '{' {
			return false
		}
	}

	return false
}
