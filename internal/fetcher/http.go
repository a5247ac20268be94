package fetcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tutils-dev/tutils/internal/branding"
	"github.com/tutils-dev/tutils/internal/errs"
	"github.com/tutils-dev/tutils/internal/logger"
	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds the reachability check.
const DefaultProbeTimeout = 10 * time.Second

// sniffLen is how many leading bytes are inspected for HTML content.
const sniffLen = 3072

// ErrHTMLContent is returned when a download yields an HTML page, which
// usually means a login wall or an error page rather than the requested file.
var ErrHTMLContent = errors.New("server returned an HTML page")

// ProgressFunc receives download progress for one file. total is -1 when the
// server does not announce a length.
type ProgressFunc func(name string, transferred, total int64)

// HTTPFetcher downloads single files over HTTP(S).
type HTTPFetcher struct {
	httpClient   *http.Client
	userAgent    string
	probeTimeout time.Duration
	progress     ProgressFunc
	log          *logger.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.httpClient = c
	}
}

// WithProgress installs a progress callback.
func WithProgress(p ProgressFunc) Option {
	return func(f *HTTPFetcher) {
		f.progress = p
	}
}

// WithProbeTimeout overrides DefaultProbeTimeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.probeTimeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logger.Logger) Option {
	return func(f *HTTPFetcher) {
		f.log = l
	}
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		httpClient:   http.DefaultClient,
		userAgent:    branding.UserAgent(),
		probeTimeout: DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = logger.OrNop(f.log)
	return f
}

// TerminalProgress returns a ProgressFunc that redraws a percentage line on w.
func TerminalProgress(w io.Writer) ProgressFunc {
	lastPercent := -1
	lastName := ""
	return func(name string, transferred, total int64) {
		if name != lastName {
			lastName = name
			lastPercent = -1
		}
		if total <= 0 {
			return
		}
		percent := int(transferred * 100 / total)
		if percent == lastPercent {
			return
		}
		lastPercent = percent
		fmt.Fprintf(w, "\rDownloading %s... %d%%", name, percent)
		if transferred >= total {
			fmt.Fprintln(w)
		}
	}
}

// Probe checks that link answers with a non-error status. HEAD is tried
// first; servers that reject HEAD are retried with GET.
func (f *HTTPFetcher) Probe(ctx context.Context, link string) error {
	if err := ValidateURL(link); err != nil {
		return err
	}
	if err := checkTransport(link); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	status, err := f.status(ctx, http.MethodHead, link)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, err = f.status(ctx, http.MethodGet, link)
	}
	if err != nil {
		return errs.New(errs.ErrConnectFailed, link, err)
	}
	if status >= http.StatusBadRequest {
		return errs.New(errs.ErrConnectFailed, link, fmt.Errorf("status %d", status))
	}
	return nil
}

func (f *HTTPFetcher) status(ctx context.Context, method, link string) (int, error) {
	req, err := f.newRequest(ctx, method, link)
	if err != nil {
		return 0, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	f.log.Debug("probe", zap.String("method", method), zap.String("url", link), zap.Int("status", resp.StatusCode))
	return resp.StatusCode, nil
}

// Download fetches link into dest and returns the number of bytes written.
// Parent directories are created. The file is written to a temporary name
// and renamed into place, so a failed download never leaves a partial dest.
func (f *HTTPFetcher) Download(ctx context.Context, link, dest string) (int64, error) {
	if err := ValidateURL(link); err != nil {
		return 0, err
	}
	if err := checkTransport(link); err != nil {
		return 0, err
	}

	req, err := f.newRequest(ctx, http.MethodGet, link)
	if err != nil {
		return 0, errs.New(errs.ErrInvalidLink, link, err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, errs.New(errs.ErrConnectFailed, link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errs.New(errs.ErrConnectFailed, link, fmt.Errorf("download returned status %d", resp.StatusCode))
	}
	if isHTMLContentType(resp.Header.Get("Content-Type")) {
		return 0, errs.New(errs.ErrFormat, link, ErrHTMLContent)
	}

	body := bufio.NewReaderSize(resp.Body, sniffLen)
	head, _ := body.Peek(sniffLen)
	if mimetype.Detect(head).Is("text/html") {
		return 0, errs.New(errs.ErrFormat, link, ErrHTMLContent)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, errs.New(errs.ErrIO, filepath.Dir(dest), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return 0, errs.New(errs.ErrIO, dest, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := f.copy(tmp, body, filepath.Base(dest), resp.ContentLength)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = errs.New(errs.ErrIO, dest, cerr)
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, errs.New(errs.ErrIO, dest, err)
	}

	f.log.Debug("downloaded", zap.String("url", link), zap.String("dest", dest), zap.Int64("bytes", n))
	return n, nil
}

func (f *HTTPFetcher) copy(dst io.Writer, src io.Reader, name string, total int64) (int64, error) {
	if total <= 0 {
		total = -1
	}
	var downloaded int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return downloaded, errs.New(errs.ErrIO, name, writeErr)
			}
			downloaded += int64(n)
			if f.progress != nil {
				f.progress(name, downloaded, total)
			}
		}
		if readErr == io.EOF {
			return downloaded, nil
		}
		if readErr != nil {
			return downloaded, errs.New(errs.ErrConnectFailed, name, fmt.Errorf("reading download stream: %w", readErr))
		}
	}
}

func (f *HTTPFetcher) newRequest(ctx context.Context, method, link string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	return req, nil
}

// checkTransport rejects schemes that pass validation but have no transport.
func checkTransport(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return errs.New(errs.ErrInvalidLink, link, err)
	}
	if strings.EqualFold(u.Scheme, "ftp") {
		return errs.New(errs.ErrConnectFailed, link, errors.New("ftp transfers are not supported"))
	}
	return nil
}

func isHTMLContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "text/html"
}
