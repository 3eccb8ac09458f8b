package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/guonaihong/gout/dataflow"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/talkincode/shopsync/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	HeaderClientID  = "X-Client-ID"
	HeaderClientRef = "X-Client-Ref"
)

// REST talks to the shopsync http api
type REST struct {
	base     string
	clientID string
	http     *http.Client
	debug    bool
}

type Options struct {
	// ServerURL is the server root, the api lives under /api
	ServerURL string
	// ClientID is sent with every mutation so echoes can be recognized
	ClientID string
	Timeout  time.Duration
	Debug    bool
}

func NewREST(opts Options) (*REST, error) {
	u, err := url.Parse(opts.ServerURL)
	if err != nil || u.Host == "" {
		return nil, errors.Errorf("client: invalid server url %q", opts.ServerURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &REST{
		base:     strings.TrimRight(opts.ServerURL, "/") + "/api",
		clientID: opts.ClientID,
		http:     &http.Client{Timeout: opts.Timeout},
		debug:    opts.Debug,
	}, nil
}

func (r *REST) ClientID() string {
	return r.clientID
}

// apiError is the error body every non 2xx answer carries
type apiError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Timeout bool   `json:"timeout"`
}

func (r *REST) do(ctx context.Context, method, path, ref string, in, out interface{}) error {
	g := gout.New(r.http)
	target := r.base + path
	var df *dataflow.DataFlow
	switch method {
	case http.MethodGet:
		df = g.GET(target)
	case http.MethodPost:
		df = g.POST(target)
	case http.MethodPut:
		df = g.PUT(target)
	case http.MethodPatch:
		df = g.PATCH(target)
	case http.MethodDelete:
		df = g.DELETE(target)
	default:
		return errors.Errorf("client: unsupported method %s", method)
	}

	header := gout.H{HeaderClientID: r.clientID}
	if ref != "" {
		header[HeaderClientRef] = ref
	}
	var (
		body string
		code int
	)
	df = df.WithContext(ctx).SetHeader(header).Debug(r.debug).BindBody(&body).Code(&code)
	if in != nil {
		df = df.SetJSON(in)
	}
	if err := df.Do(); err != nil {
		return errors.Wrapf(domain.ErrUnavailable, "%s %s: %v", method, path, err)
	}
	if code < 200 || code > 299 {
		return statusError(method+" "+path, code, body)
	}
	if out == nil {
		return nil
	}
	if err := json.UnmarshalFromString(body, out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}

// statusError maps an error answer back onto the store taxonomy
func statusError(op string, code int, body string) error {
	var e apiError
	_ = json.UnmarshalFromString(body, &e)
	msg := e.Error
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch {
	case code == http.StatusNotFound:
		return errors.Wrapf(domain.ErrNotFound, "%s: %s", op, msg)
	case code == http.StatusConflict:
		return errors.Wrapf(domain.ErrDuplicateKey, "%s: %s", op, msg)
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return errors.Wrapf(domain.ErrValidation, "%s: %s", op, msg)
	case e.Timeout || code == http.StatusGatewayTimeout || code == http.StatusServiceUnavailable || code == http.StatusBadGateway:
		return errors.Wrapf(domain.ErrUnavailable, "%s: %s", op, msg)
	default:
		return errors.Errorf("%s: %d %s", op, code, msg)
	}
}

func escape(key string) string {
	return url.PathEscape(key)
}

// Products

func (r *REST) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	if err := r.do(ctx, http.MethodGet, "/products", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *REST) CreateProduct(ctx context.Context, p *domain.Product, ref string) (*domain.Product, error) {
	var out domain.Product
	if err := r.do(ctx, http.MethodPost, "/products", ref, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *REST) PatchProduct(ctx context.Context, id string, fields map[string]interface{}) (*domain.Product, error) {
	var out domain.Product
	if err := r.do(ctx, http.MethodPatch, "/products/"+escape(id), "", fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *REST) DeleteProduct(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/products/"+escape(id), "", nil, nil)
}

// Tracking

func (r *REST) ListTracking(ctx context.Context) ([]domain.Tracking, error) {
	var out []domain.Tracking
	if err := r.do(ctx, http.MethodGet, "/tracking", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *REST) GetTracking(ctx context.Context, qrID string) (*domain.Tracking, error) {
	var out domain.Tracking
	if err := r.do(ctx, http.MethodGet, "/tracking/"+escape(qrID), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *REST) CreateTracking(ctx context.Context, t *domain.Tracking) (*domain.Tracking, error) {
	var out domain.Tracking
	if err := r.do(ctx, http.MethodPost, "/tracking", t.QRID, t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *REST) UpdateTracking(ctx context.Context, qrID string, fields map[string]interface{}) (*domain.Tracking, error) {
	var out domain.Tracking
	if err := r.do(ctx, http.MethodPut, "/tracking/"+escape(qrID), "", fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *REST) DeleteTracking(ctx context.Context, qrID string) error {
	return r.do(ctx, http.MethodDelete, "/tracking/"+escape(qrID), "", nil, nil)
}

// Orders

func (r *REST) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := r.do(ctx, http.MethodGet, "/orders", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *REST) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var out domain.Order
	if err := r.do(ctx, http.MethodGet, "/orders/"+escape(orderID), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *REST) CreateOrder(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	var out domain.Order
	if err := r.do(ctx, http.MethodPost, "/orders", o.OrderID, o, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *REST) UpdateOrder(ctx context.Context, orderID string, fields map[string]interface{}) (*domain.Order, error) {
	var out domain.Order
	if err := r.do(ctx, http.MethodPut, "/orders/"+escape(orderID), "", fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *REST) DeleteOrder(ctx context.Context, orderID string) error {
	return r.do(ctx, http.MethodDelete, "/orders/"+escape(orderID), "", nil, nil)
}

// Health returns the decoded health document
func (r *REST) Health(ctx context.Context) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := r.do(ctx, http.MethodGet, "/health", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
