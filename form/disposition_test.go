package form

import (
	"testing"

	"github.com/piecework/piecework/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	remote := &model.Form{
		RequestID:    "r1",
		ValidationID: "v1",
		Disposition:  model.Disposition{Type: model.DispositionRemote, Location: "https://forms.example.com/apply?lang=en"},
	}

	resp := Decide(remote, "text/html", 0, DefaultMaxRedirects)
	require.Equal(t, Redirect, resp.Kind)
	assert.Equal(t, "https://forms.example.com/apply?count=1&lang=en&requestId=r1&validationId=v1", resp.Location)

	assert.Equal(t, Render, Decide(remote, "application/json", 0, DefaultMaxRedirects).Kind)
	assert.Equal(t, Render, Decide(remote, "text/html", DefaultMaxRedirects, DefaultMaxRedirects).Kind, "too many redirects")

	custom := &model.Form{Disposition: model.Disposition{Type: model.DispositionCustom, Location: "https://ui.example.com/page.html"}}
	resp = Decide(custom, "text/html", 0, DefaultMaxRedirects)
	assert.Equal(t, Custom, resp.Kind)
	assert.Equal(t, "https://ui.example.com/page.html", resp.Location)

	assert.Equal(t, Render, Decide(&model.Form{}, "text/html", 0, DefaultMaxRedirects).Kind)
	assert.Equal(t, Render, Decide(nil, "text/html", 0, DefaultMaxRedirects).Kind)
	assert.Equal(t, "redirect", Redirect.String())
}
