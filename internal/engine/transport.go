package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	u "net/url"
	"strconv"
	"time"

	"github.com/juju/ratelimit"
	"github.com/rs/zerolog/log"
)

const defaultUserAgent = "dw-cli"

type TransportConfig struct {
	Timeout        time.Duration // covers the full transfer
	ConnectTimeout time.Duration
	UserAgent      string
	Headers        map[string]string // passthrough headers
	ProxyURL       string
	SpeedLimit     int64 // bytes per second, 0 disables throttling
}

// Transport issues GET requests and hands back byte streams. It never
// touches the filesystem.
type Transport struct {
	client *http.Client
	cfg    TransportConfig
}

func NewTransport(cfg TransportConfig) *Transport {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100, // for connection reuse
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := u.Parse(cfg.ProxyURL)
		if err != nil {
			log.Error().Err(err).Str("proxy", cfg.ProxyURL).Msg("Invalid proxy URL, proceeding without proxy")
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &Transport{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		cfg: cfg,
	}
}

// Stream is one open response body. Size reports the Content-Length hint
// when the server supplied one. Read failures other than EOF come back as
// classified TransferErrors.
type Stream struct {
	reader    io.Reader
	closer    io.Closer
	size      int64
	sizeKnown bool
}

func (s *Stream) Size() (int64, bool) {
	return s.size, s.sizeKnown
}

func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.reader.Read(p)
	if err != nil && err != io.EOF {
		return n, classifyReadError(err)
	}
	return n, err
}

func (s *Stream) Close() error {
	return s.closer.Close()
}

// Open performs the GET and returns the body stream once headers are in.
// Non-2xx responses fail with an HTTP status error.
func (t *Transport) Open(ctx context.Context, url string) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransferError{Kind: KindConnect, Err: err}
	}
	if t.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", t.cfg.UserAgent)
	} else {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	req.Header.Set("Connection", "keep-alive")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyRequestError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &TransferError{
			Kind: KindHTTPStatus,
			Code: resp.StatusCode,
			Err:  fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}
	size, sizeKnown := int64(-1), false
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			size, sizeKnown = n, true
		}
	}
	var reader io.Reader = resp.Body
	if t.cfg.SpeedLimit > 0 {
		bucket := ratelimit.NewBucketWithRate(float64(t.cfg.SpeedLimit), t.cfg.SpeedLimit)
		reader = ratelimit.Reader(resp.Body, bucket)
	}
	return &Stream{
		reader:    reader,
		closer:    resp.Body,
		size:      size,
		sizeKnown: sizeKnown,
	}, nil
}
