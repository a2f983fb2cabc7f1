// Package apis serves the Jokizilla entity sets over OData: one generic controller per
// set, the service document, the metadata document and the TestCount function.
package apis

import (
	"net/http"
	"strings"

	"github.com/jokizilla/jokizilla/internal/common/httpx"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/db/store"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/odata"
	"github.com/jokizilla/jokizilla/internal/jokizillasrv/srvcommon"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Namespace of the entity types in the metadata document.
const Namespace = "Jokizilla"

// Options configure the OData surface.
type Options struct {
	RoutePrefix string // path the API is mounted under, without slashes
	BaseURL     string // absolute service root; derived from the request when empty
	MaxTop      int
	PageSize    int
}

// API holds the entity data model and the controllers serving it.
type API struct {
	opts      Options
	model     *odata.Model
	resources []resource
}

func New(opts Options) *API {
	a := &API{opts: opts, resources: resources()}
	b := odata.NewModelBuilder(Namespace)
	for _, res := range a.resources {
		res.register(b, opts)
	}
	b.Function("TestCount", odata.EdmInt64)
	a.model = b.Build()
	for _, res := range a.resources {
		res.bind(a)
	}
	return a
}

func (a *API) Model() *odata.Model {
	return a.model
}

// root is the service root URL that context URLs, next links and locations start with.
func (a *API) root(r *http.Request) string {
	if a.opts.BaseURL != "" {
		return strings.TrimSuffix(a.opts.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	root := scheme + "://" + r.Host
	if prefix := strings.Trim(a.opts.RoutePrefix, "/"); prefix != "" {
		root += "/" + prefix
	}
	return root
}

func (a *API) serviceDocument(r *http.Request) (*httpx.Response, error) {
	body, err := a.model.ServiceDocument(a.root(r))
	if err != nil {
		return nil, ErrEncoding.Err(err)
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   body,
	}, nil
}

func (a *API) metadata(r *http.Request) (*httpx.Response, error) {
	body, err := a.model.Metadata(srvcommon.ODataVersion)
	if err != nil {
		return nil, ErrEncoding.Err(err)
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   body,
	}, nil
}

// testCount returns the number of applicants.
func (a *API) testCount(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	s, err := dbStore(ctx)
	if err != nil {
		return nil, err
	}
	n, err := store.Applicants.Count(ctx, s, "")
	if err != nil {
		return nil, err
	}
	body, jerr := odata.Value(a.root(r)+"/$metadata#Edm.Int64", n)
	if jerr != nil {
		return nil, ErrEncoding.Err(jerr)
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   body,
	}, nil
}
