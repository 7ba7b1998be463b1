package form

import (
	"net/url"
	"strconv"

	"github.com/piecework/piecework/model"
)

// DefaultMaxRedirects limits redirects to remote forms for one request.
const DefaultMaxRedirects = 3

// ResponseKind is how a form is delivered.
type ResponseKind int

const (
	// Render serializes the form in-process as HTML or JSON.
	Render ResponseKind = iota
	// Redirect sends the browser to a remote form.
	Redirect
	// Custom serves page bytes fetched from an externally hosted UI.
	Custom
)

func (k ResponseKind) String() string {
	switch k {
	case Redirect:
		return "redirect"
	case Custom:
		return "custom"
	}
	return "render"
}

// Response is the delivery decision for a form.
type Response struct {
	Kind     ResponseKind
	Location string
}

// RemoteLocation returns location with the request, validation, and next
// redirect count added to its query.
func RemoteLocation(location string, form *model.Form, count int) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("requestId", form.RequestID)
	if form.ValidationID != "" {
		q.Set("validationId", form.ValidationID)
	}
	q.Set("count", strconv.Itoa(count+1))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Decide chooses how form is delivered for the negotiated media type.
// JSON clients always get the form rendered. Remote forms redirect until
// count reaches maxRedirects, after which the form is rendered in-process.
func Decide(form *model.Form, mediaType string, count, maxRedirects int) Response {
	if form == nil || mediaType == "application/json" || form.Disposition.Location == "" {
		return Response{Kind: Render}
	}
	switch form.Disposition.Type {
	case model.DispositionRemote:
		if count >= maxRedirects {
			return Response{Kind: Render}
		}
		location, err := RemoteLocation(form.Disposition.Location, form, count)
		if err != nil {
			return Response{Kind: Render}
		}
		return Response{Kind: Redirect, Location: location}
	case model.DispositionCustom:
		return Response{Kind: Custom, Location: form.Disposition.Location}
	}
	return Response{Kind: Render}
}
