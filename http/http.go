// Package http includes handlers and utilties.
package http

import (
	"bytes"
	"io"
	"net/http"

	"github.com/munnerz/goautoneg"
)

// Media types served by Piecework.
const (
	MediaTypeHTML  = "text/html"
	MediaTypeJSON  = "application/json"
	MediaTypeCSV   = "text/csv"
	MediaTypeExcel = "application/vnd.ms-excel"
)

// ReadAllAndReplaceBody reads all of r.Body and replaces it with a new byte buffer.
func ReadAllAndReplaceBody(r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return b, err
	}
	defer r.Body.Close()
	r.Body = io.NopCloser(bytes.NewBuffer(b))
	return b, nil
}

// DumpHandler outputs the body of the request to output.
func DumpHandler(next http.Handler, output io.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := ReadAllAndReplaceBody(r)
		output.Write(append(body, '\n'))
		next.ServeHTTP(w, r)
	}
}

// Negotiate picks the best of offers for the request Accept header.
// The first offer is used when the header is absent or nothing matches.
func Negotiate(r *http.Request, offers ...string) string {
	if len(offers) < 1 {
		return ""
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return offers[0]
	}
	if mt := goautoneg.Negotiate(accept, offers); mt != "" {
		return mt
	}
	return offers[0]
}
