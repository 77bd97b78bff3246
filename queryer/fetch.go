package queryer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/buildbuildio/quilt/requests"
	"github.com/pkg/errors"
)

// sendQueryRequest is responsible for sending the provided payload to the desingated URL
func (q *MultiOpQueryer) sendQueryRequest(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	// we could have any number of middlewares that we have to go through so
	for _, mdware := range q.mdwares {
		if err := mdware(req); err != nil {
			return nil, err
		}
	}

	if q.client == nil {
		q.client = &http.Client{}
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// read the full body
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// check for HTTP errors
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, errors.New("response was not successful with status code: " + strconv.Itoa(resp.StatusCode))
	}

	return body, nil
}

func (q *MultiOpQueryer) fetch(ctx context.Context, inputs []*requests.Request) ([]*Response, error) {
	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, err
	}

	response, err := q.sendQueryRequest(ctx, payload)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", q.url)
	}

	var results []*Response
	if err := json.Unmarshal(response, &results); err != nil {
		return nil, errors.Wrapf(err, "decode response of %s", q.url)
	}

	if len(results) != len(inputs) {
		return nil, fmt.Errorf("expected %d responses from %s, got %d", len(inputs), q.url, len(results))
	}

	return results, nil
}
