package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"

	"github.com/piecework/piecework/attachment"
	"github.com/piecework/piecework/form"
	"github.com/piecework/piecework/model"
)

// jsonInput is the JSON submission body.
type jsonInput struct {
	Action string              `json:"action"`
	Data   map[string][]string `json:"data"`
}

// Details captures client metadata of r.
func Details(r *http.Request) *model.RequestDetails {
	d := &model.RequestDetails{
		RemoteAddr: r.RemoteAddr,
		RemoteHost: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Referrer:   r.Referer(),
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		d.RemoteHost = host
	}
	return d
}

func badRequest(err error) error {
	return &form.BadRequestError{Message: err.Error()}
}

// ParseInput reads a submission from a multipart, url-encoded, or JSON body.
// The action is read from the "action" value unless the body has none.
// The returned func releases uploaded files and must be called when done.
func ParseInput(r *http.Request, maxMemory int64) (*form.Input, func(), error) {
	in := &form.Input{Details: Details(r)}
	release := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		body := new(jsonInput)
		if err := json.NewDecoder(r.Body).Decode(body); err != nil && !errors.Is(err, io.EOF) {
			return nil, release, badRequest(fmt.Errorf("decoding json: %w", err))
		}
		in.Data = body.Data
		if body.Action != "" {
			in.Action = model.ParseActionType(body.Action)
		}
		return in, release, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, release, badRequest(fmt.Errorf("parsing multipart form: %w", err))
		}
		var closers []io.Closer
		release = func() {
			for _, c := range closers {
				c.Close()
			}
			r.MultipartForm.RemoveAll()
		}
		in.Data = r.MultipartForm.Value
		for field, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				f, err := fh.Open()
				if err != nil {
					release()
					return nil, func() {}, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
				}
				closers = append(closers, f)
				in.Uploads = append(in.Uploads, &attachment.Upload{
					FieldName:   field,
					Name:        fh.Filename,
					ContentType: fh.Header.Get("Content-Type"),
					Size:        fh.Size,
					Content:     f,
				})
			}
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, release, badRequest(fmt.Errorf("parsing form: %w", err))
		}
		in.Data = r.PostForm
	}
	if v := in.Data["action"]; len(v) > 0 && v[0] != "" {
		in.Action = model.ParseActionType(v[0])
	}
	if v := in.Data["attachmentId"]; len(v) > 0 {
		in.AttachmentID = v[0]
		delete(in.Data, "attachmentId")
	}
	return in, release, nil
}
