// Package upload streams files to the backend's multipart upload endpoint
// and tracks the in-flight set a form waits on before it submits.
package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultFieldName is the multipart field used when none is given.
const DefaultFieldName = "file"

const maxResponseBytes = 1 << 20

// Preview is a locally allocated resource tied to a pending file, such as a
// thumbnail. It is released when the file leaves the working set.
type Preview interface {
	Release()
}

// PreviewFunc adapts a function to Preview.
type PreviewFunc func()

func (f PreviewFunc) Release() {
	if f != nil {
		f()
	}
}

// File is one file to upload. Reader is consumed once.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
	Preview     Preview
}

// Progress is a transfer tick. Total is zero when the size is unknown.
type Progress struct {
	Loaded int64
	Total  int64
}

// Percent returns the completed share in 0..100, or 0 when Total is unknown.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	pct := int(p.Loaded * 100 / p.Total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Result is the normalised outcome of an upload. Failures of any kind are
// reported with Success false and a Message; Upload never returns an error.
type Result struct {
	Success    bool
	Data       map[string]any
	URL        string
	Message    string
	StatusCode int
}

// TokenFunc supplies a bearer token for each request.
type TokenFunc func(ctx context.Context) (string, error)

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithMaxBytes rejects files larger than limit before any network call.
func WithMaxBytes(limit int64) ClientOption {
	return func(c *Client) {
		c.maxBytes = limit
	}
}

// WithToken authenticates requests with a bearer token.
func WithToken(fn TokenFunc) ClientOption {
	return func(c *Client) {
		c.token = fn
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// UploadOption customises a single Upload call.
type UploadOption func(*uploadOptions)

type uploadOptions struct {
	progress func(Progress)
	fields   map[string]string
}

// WithProgress registers a callback invoked zero or more times while the
// file is streamed.
func WithProgress(fn func(Progress)) UploadOption {
	return func(o *uploadOptions) {
		o.progress = fn
	}
}

// WithFormValue adds an extra multipart field.
func WithFormValue(key, value string) UploadOption {
	return func(o *uploadOptions) {
		if o.fields == nil {
			o.fields = make(map[string]string)
		}
		o.fields[key] = value
	}
}

// Client uploads files relative to a base URL.
type Client struct {
	baseURL  string
	http     *http.Client
	maxBytes int64
	token    TokenFunc
	logger   *zap.Logger
}

// NewClient returns a Client for baseURL.
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Upload streams file to destination as multipart/form-data under
// fieldName. The body is produced through a pipe so the file is never held
// in memory in full.
func (c *Client) Upload(ctx context.Context, destination string, file File, fieldName string, options ...UploadOption) Result {
	opts := uploadOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(&opts)
		}
	}
	if fieldName == "" {
		fieldName = DefaultFieldName
	}
	if file.Reader == nil {
		return Result{Message: fmt.Sprintf("%s: nothing to upload", file.Name)}
	}
	if c.maxBytes > 0 && file.Size > c.maxBytes {
		return Result{
			StatusCode: http.StatusRequestEntityTooLarge,
			Message:    fmt.Sprintf("%s is too large (limit %d bytes)", file.Name, c.maxBytes),
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		pw.CloseWithError(writeBody(mw, file, fieldName, opts))
	}()
	defer func() {
		pr.Close()
		<-done
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(destination), pr)
	if err != nil {
		return Result{Message: fmt.Sprintf("upload: build request: %v", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return Result{Message: fmt.Sprintf("upload: token: %v", err)}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return Result{Message: fmt.Sprintf("%s: upload canceled", file.Name)}
		}
		c.logger.Warn("upload failed", zap.String("file", file.Name), zap.Error(err))
		return Result{Message: fmt.Sprintf("%s: upload failed: %v", file.Name, err)}
	}
	defer resp.Body.Close()

	result := decodeResponse(resp)
	if !result.Success {
		c.logger.Warn("upload rejected",
			zap.String("file", file.Name),
			zap.Int("status", resp.StatusCode),
			zap.String("message", result.Message),
		)
	}
	return result
}

// UploadAll uploads files concurrently, at most limit at a time, and returns
// the results in input order.
func (c *Client) UploadAll(ctx context.Context, destination string, files []File, fieldName string, limit int, options ...UploadOption) []Result {
	results := make([]Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, file := range files {
		g.Go(func() error {
			results[i] = c.Upload(gctx, destination, file, fieldName, options...)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Client) resolve(destination string) string {
	if strings.HasPrefix(destination, "http://") || strings.HasPrefix(destination, "https://") {
		return destination
	}
	if destination == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + strings.TrimLeft(destination, "/")
}

func writeBody(mw *multipart.Writer, file File, fieldName string, opts uploadOptions) error {
	for key, value := range opts.fields {
		if err := mw.WriteField(key, value); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(fieldName), escapeQuotes(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	reader := io.Reader(file.Reader)
	if opts.progress != nil {
		reader = &progressReader{r: file.Reader, total: file.Size, fn: opts.progress}
	}
	if _, err := io.Copy(part, reader); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type progressReader struct {
	r      io.Reader
	total  int64
	loaded int64
	fn     func(Progress)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.fn(Progress{Loaded: p.loaded, Total: p.total})
	}
	return n, err
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	URL     string          `json:"url"`
	Message string          `json:"message"`
}

func decodeResponse(resp *http.Response) Result {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	result := Result{StatusCode: resp.StatusCode}

	var env envelope
	decoded := len(body) > 0 && json.Unmarshal(body, &env) == nil

	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		result.Message = "file is too large"
		if decoded && env.Message != "" {
			result.Message = env.Message
		}
		return result
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Message = http.StatusText(resp.StatusCode)
		if decoded && env.Message != "" {
			result.Message = env.Message
		}
		if result.Message == "" {
			result.Message = fmt.Sprintf("upload rejected with status %d", resp.StatusCode)
		}
		return result
	}
	if !decoded {
		result.Message = "upload response is not valid JSON"
		return result
	}

	result.Message = env.Message
	if len(env.Data) > 0 {
		var data map[string]any
		if json.Unmarshal(env.Data, &data) == nil {
			result.Data = data
			if url, ok := data["url"].(string); ok {
				result.URL = url
			}
		}
	}
	if result.URL == "" {
		result.URL = env.URL
	}
	if env.Success != nil && !*env.Success {
		if result.Message == "" {
			result.Message = "upload rejected"
		}
		return result
	}
	if result.URL == "" {
		result.Message = "upload response has no url"
		return result
	}
	result.Success = true
	return result
}
