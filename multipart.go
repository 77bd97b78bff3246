package quilt

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/buildbuildio/quilt/requests"
	"go.uber.org/zap"
)

const (
	multipartBoundary = "graphql"
	jsonContentType   = "application/json; charset=utf-8"
)

// multipartWriter writes every part as soon as it is complete.
type multipartWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newMultipartWriter(w http.ResponseWriter) *multipartWriter {
	w.Header().Set("Content-Type", fmt.Sprintf(`%s; boundary="%s"; deferSpec=20220824`, requests.MultipartMixedContentType, multipartBoundary))
	w.WriteHeader(http.StatusOK)

	mw := &multipartWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		mw.flusher = f
	}
	return mw
}

func (mw *multipartWriter) WritePart(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding part: %w", err)
	}

	if _, err := fmt.Fprintf(mw.w, "\r\n--%s\r\nContent-Type: %s\r\n\r\n", multipartBoundary, jsonContentType); err != nil {
		return fmt.Errorf("writing part header: %w", err)
	}
	if _, err := mw.w.Write(b); err != nil {
		return fmt.Errorf("writing part: %w", err)
	}

	if mw.flusher != nil {
		mw.flusher.Flush()
	}
	return nil
}

func (mw *multipartWriter) Complete() error {
	if _, err := fmt.Fprintf(mw.w, "\r\n--%s--\r\n", multipartBoundary); err != nil {
		return fmt.Errorf("writing final boundary: %w", err)
	}
	if mw.flusher != nil {
		mw.flusher.Flush()
	}
	return nil
}

// stream writes the initial result and every incremental result as parts of
// a multipart/mixed response.
func (g *Gateway) stream(w http.ResponseWriter, r *http.Request, result *Result) {
	support := result.incremental
	mw := newMultipartWriter(w)

	if err := mw.WritePart(result); err != nil {
		g.logger.Warn("unable to write initial result", zap.Error(err))
		support.Cancel()
		return
	}
	support.InitialSent()

	for {
		select {
		case res, ok := <-support.Results():
			if !ok {
				if err := mw.Complete(); err != nil {
					g.logger.Warn("unable to complete incremental response", zap.Error(err))
				}
				return
			}
			if err := mw.WritePart(res); err != nil {
				g.logger.Warn("unable to write incremental result", zap.Error(err))
				support.Cancel()
				return
			}
		case <-r.Context().Done():
			support.Cancel()
			return
		}
	}
}
