// Package proxy serves cached media and populates the cache from the origin.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/mediacache/internal/background"
	"github.com/charlesng35/mediacache/internal/blob"
	"github.com/charlesng35/mediacache/internal/models"
	"github.com/charlesng35/mediacache/internal/monitoring"
	"github.com/charlesng35/mediacache/internal/upstream"
	"github.com/charlesng35/mediacache/pkg/logger"
	"github.com/charlesng35/mediacache/pkg/response"
)

// CacheSeconds is the lifetime advertised on every media response.
const CacheSeconds = 24 * 60 * 60

var cacheControl = "public, max-age=" + strconv.Itoa(CacheSeconds)

// Index is the subset of the metadata index used on the request path.
type Index interface {
	Upsert(ctx context.Context, entry models.CacheEntry) error
	Touch(ctx context.Context, key string, atMs int64) error
	Delete(ctx context.Context, key string) error
}

// Origin fetches objects from the media origin.
type Origin interface {
	Fetch(ctx context.Context, originPath string, headers http.Header, rangeHeader string) (*http.Response, error)
	Referer() string
}

// Tasks runs deferred work outside the request.
type Tasks interface {
	Go(name string, task background.Task) error
}

// Deps wires the handler's collaborators.
type Deps struct {
	Blobs    blob.Store
	Index    Index
	Origin   Origin
	Tokens   upstream.TokenAuthority
	Settings upstream.SettingsProvider
	Tasks    Tasks
	// FetchTimeout bounds a detached origin fetch that feeds a commit.
	FetchTimeout time.Duration
	Now          func() time.Time
	Logger       *zap.Logger
}

// Handler implements GET /images/*path.
type Handler struct {
	blobs        blob.Store
	index        Index
	origin       Origin
	tokens       upstream.TokenAuthority
	settings     upstream.SettingsProvider
	tasks        Tasks
	fetchTimeout time.Duration
	now          func() time.Time
	log          *zap.Logger
}

// NewHandler validates deps and builds a Handler.
func NewHandler(deps Deps) (*Handler, error) {
	switch {
	case deps.Blobs == nil:
		return nil, errors.New("proxy: blob store is required")
	case deps.Index == nil:
		return nil, errors.New("proxy: index is required")
	case deps.Origin == nil:
		return nil, errors.New("proxy: origin is required")
	case deps.Tokens == nil:
		return nil, errors.New("proxy: token authority is required")
	case deps.Settings == nil:
		return nil, errors.New("proxy: settings provider is required")
	case deps.Tasks == nil:
		return nil, errors.New("proxy: task group is required")
	}

	h := &Handler{
		blobs:        deps.Blobs,
		index:        deps.Index,
		origin:       deps.Origin,
		tokens:       deps.Tokens,
		settings:     deps.Settings,
		tasks:        deps.Tasks,
		fetchTimeout: deps.FetchTimeout,
		now:          deps.Now,
		log:          deps.Logger,
	}
	if h.fetchTimeout <= 0 {
		h.fetchTimeout = 10 * time.Minute
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.log == nil {
		h.log = logger.WithModule("proxy")
	}
	return h, nil
}

// Register mounts the media route.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/images/*path", h.ServeMedia)
}

// request carries the per-request derived values.
type request struct {
	path       string
	category   models.Category
	key        string
	originPath string
	rangeRaw   string
}

// ServeMedia answers from the blob store or populates it from the origin.
func (h *Handler) ServeMedia(c *gin.Context) {
	p, err := NormalizePath(c.Param("path"))
	if err != nil {
		writeText(c, http.StatusBadRequest, "Invalid path")
		return
	}

	category := CategoryForPath(p)
	req := request{
		path:       p,
		category:   category,
		key:        CacheKey(category, p),
		originPath: OriginPath(p),
		rangeRaw:   strings.TrimSpace(c.GetHeader("Range")),
	}
	ctx := c.Request.Context()

	obj, err := h.blobs.Get(ctx, req.key, blob.ParseRangeHeader(req.rangeRaw))
	switch {
	case err == nil:
		monitoring.RecordCacheLookup(string(category), true)
		h.schedule("touch", func(ctx context.Context) error {
			return h.index.Touch(ctx, req.key, h.now().UnixMilli())
		})
		h.writeObject(c, obj)
		return
	case errors.Is(err, blob.ErrRangeNotSatisfiable):
		monitoring.RecordCacheLookup(string(category), true)
		writeUnsatisfiable(c, err)
		return
	case errors.Is(err, blob.ErrNotFound):
		monitoring.RecordCacheLookup(string(category), false)
		h.schedule("stale-cleanup", func(ctx context.Context) error {
			return h.index.Delete(ctx, req.key)
		})
	default:
		monitoring.RecordCacheLookup(string(category), false)
		h.log.Warn("blob lookup failed, treating as miss", zap.String("key", req.key), zap.Error(err))
	}

	settings, err := h.settings.Settings(ctx)
	if err != nil {
		h.log.Warn("settings unavailable, using empty bundle", zap.Error(err))
		settings = upstream.Settings{}
	}

	token, err := h.tokens.Select(ctx)
	if err != nil {
		if !errors.Is(err, upstream.ErrNoToken) {
			h.log.Error("token selection failed", zap.Error(err))
		}
		writeText(c, http.StatusServiceUnavailable, "No available token")
		return
	}

	headers := upstream.RequestHeaders(token, settings, h.origin.Referer())
	if req.rangeRaw != "" && category == models.CategoryVideo {
		h.serveRangeMiss(c, req, token, headers)
		return
	}
	h.serveFullMiss(c, req, token, headers)
}

// serveRangeMiss warms the full object in the background and passes the
// requested range through from the origin.
func (h *Handler) serveRangeMiss(c *gin.Context, req request, token upstream.Token, headers http.Header) {
	h.schedule("warm "+req.key, func(ctx context.Context) error {
		start := time.Now()
		resp, err := h.origin.Fetch(ctx, req.originPath, headers, "")
		if err != nil {
			monitoring.RecordOriginFetch("warm", 0, time.Since(start))
			return err
		}
		defer resp.Body.Close()
		monitoring.RecordOriginFetch("warm", resp.StatusCode, time.Since(start))
		if !successful(resp) {
			return fmt.Errorf("warm fetch returned %d", resp.StatusCode)
		}
		counter := &countingReader{r: resp.Body}
		return h.commit(ctx, req, counter, resp.Header.Get("Content-Type"), counter.Count)
	})

	start := time.Now()
	resp, err := h.origin.Fetch(c.Request.Context(), req.originPath, headers, req.rangeRaw)
	if err != nil {
		monitoring.RecordOriginFetch("range", 0, time.Since(start))
		h.originFailed(c, token, http.StatusBadGateway, err.Error())
		return
	}
	defer resp.Body.Close()
	monitoring.RecordOriginFetch("range", resp.StatusCode, time.Since(start))

	if !successful(resp) {
		h.originFailed(c, token, resp.StatusCode, readDetail(resp.Body))
		return
	}

	copyHeaders(c.Writer.Header(), resp.Header)
	setCachingHeaders(c.Writer.Header())
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		h.log.Debug("range passthrough interrupted", zap.String("key", req.key), zap.Error(err))
	}
}

// serveFullMiss fetches once and splits the body between the caller and a
// background commit.
func (h *Handler) serveFullMiss(c *gin.Context, req request, token upstream.Token, headers http.Header) {
	fetchCtx, cancelFetch := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.fetchTimeout)

	start := time.Now()
	resp, err := h.origin.Fetch(fetchCtx, req.originPath, headers, "")
	if err != nil {
		cancelFetch()
		monitoring.RecordOriginFetch("full", 0, time.Since(start))
		h.originFailed(c, token, http.StatusBadGateway, err.Error())
		return
	}
	monitoring.RecordOriginFetch("full", resp.StatusCode, time.Since(start))

	if !successful(resp) {
		detail := readDetail(resp.Body)
		_ = resp.Body.Close()
		cancelFetch()
		h.originFailed(c, token, resp.StatusCode, detail)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	copyHeaders(c.Writer.Header(), resp.Header)
	setCachingHeaders(c.Writer.Header())
	if contentType != "" {
		c.Writer.Header().Set("Content-Type", contentType)
	}

	clientR, clientW := io.Pipe()
	commitR, commitW := io.Pipe()
	sinks := []*io.PipeWriter{clientW}
	split := newSplitter(resp.Body)

	commitErr := h.tasks.Go("commit "+req.key, func(ctx context.Context) error {
		err := h.commit(ctx, req, commitR, contentType, split.Count)
		if err != nil {
			_ = commitR.CloseWithError(err)
		}
		return err
	})
	if commitErr == nil {
		sinks = append(sinks, commitW)
	}
	split.sinks = sinks

	pumpErr := h.tasks.Go("pump "+req.key, func(ctx context.Context) error {
		// A cancelled task releases both readers so a stalled client cannot
		// hold the pump past shutdown.
		stop := context.AfterFunc(ctx, func() {
			cancelFetch()
			_ = clientR.CloseWithError(ctx.Err())
			_ = commitR.CloseWithError(ctx.Err())
		})
		defer stop()
		defer cancelFetch()
		defer resp.Body.Close()
		err := split.Run()
		if errors.Is(err, errSinksDetached) {
			return nil
		}
		return err
	})
	if pumpErr != nil {
		// Shutting down: serve without caching.
		_ = commitW.CloseWithError(pumpErr)
		defer cancelFetch()
		defer resp.Body.Close()
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, resp.Body)
		return
	}

	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, clientR); err != nil {
		_ = clientR.CloseWithError(err)
		h.log.Debug("client stream interrupted", zap.String("key", req.key), zap.Error(err))
		return
	}
	_ = clientR.Close()
}

// commit writes the object and records it in the index.
func (h *Handler) commit(ctx context.Context, req request, body io.Reader, contentType string, counted func() int64) error {
	put, err := h.blobs.Put(ctx, req.key, body, blob.PutOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	})
	if err != nil {
		monitoring.RecordCommit(string(req.category), "failure", 0)
		return fmt.Errorf("blob put: %w", err)
	}

	size := put.Size
	if size <= 0 && counted != nil {
		size = counted()
	}
	now := h.now().UnixMilli()
	err = h.index.Upsert(ctx, models.CacheEntry{
		Key:          req.key,
		Category:     req.category,
		Size:         size,
		Validator:    models.OptionalString(put.ETag),
		ContentType:  models.OptionalString(contentType),
		CreatedAt:    now,
		LastAccessAt: now,
	})
	if err != nil {
		monitoring.RecordCommit(string(req.category), "failure", 0)
		return fmt.Errorf("index upsert: %w", err)
	}

	monitoring.RecordCommit(string(req.category), "success", size)
	h.log.Debug("cached object", zap.String("key", req.key), zap.Int64("size", size))
	return nil
}

// originFailed reports the failure and cooldown, then relays the status.
func (h *Handler) originFailed(c *gin.Context, token upstream.Token, status int, detail string) {
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.tokens.RecordFailure(ctx, token, status, detail); err != nil {
		h.log.Warn("record token failure", zap.Error(err))
	}
	if err := h.tokens.ApplyCooldown(ctx, token, status); err != nil {
		h.log.Warn("apply token cooldown", zap.Error(err))
	}
	h.log.Info("origin request failed",
		zap.Int("status", status),
		zap.String("token_suffix", token.Suffix()),
	)
	writeText(c, status, "Upstream "+strconv.Itoa(status))
}

func (h *Handler) schedule(name string, task background.Task) {
	if err := h.tasks.Go(name, task); err != nil {
		h.log.Debug("background task dropped", zap.String("task", name), zap.Error(err))
	}
}

func (h *Handler) writeObject(c *gin.Context, obj *blob.Object) {
	defer obj.Close()

	header := c.Writer.Header()
	if obj.ContentType != "" {
		header.Set("Content-Type", obj.ContentType)
	}
	if obj.ETag != "" {
		header.Set("ETag", quoteETag(obj.ETag))
	}
	header.Set("Accept-Ranges", "bytes")
	setCachingHeaders(header)

	status := http.StatusOK
	if obj.Span != nil {
		header.Set("Content-Range", obj.Span.ContentRange())
		status = http.StatusPartialContent
	}
	header.Set("Content-Length", strconv.FormatInt(obj.ContentLength(), 10))
	c.Status(status)
	_, _ = io.Copy(c.Writer, obj.Body)
}

func writeUnsatisfiable(c *gin.Context, err error) {
	var rangeErr *blob.UnsatisfiableRangeError
	size := int64(0)
	if errors.As(err, &rangeErr) {
		size = rangeErr.Size
	}
	c.Header("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
	c.Header("Accept-Ranges", "bytes")
	c.Header("Access-Control-Allow-Origin", "*")
	writeText(c, http.StatusRequestedRangeNotSatisfiable, "Range Not Satisfiable")
}

func writeText(c *gin.Context, status int, body string) {
	response.Text(c, status, body)
}

func setCachingHeaders(header http.Header) {
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Cache-Control", cacheControl)
}

var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Set-Cookie",
}

func copyHeaders(dst, src http.Header) {
	for name, values := range src {
		dst[name] = append([]string(nil), values...)
	}
	for _, name := range hopHeaders {
		dst.Del(name)
	}
}

func quoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) || strings.HasPrefix(etag, "W/") {
		return etag
	}
	return `"` + etag + `"`
}

func successful(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300 &&
		resp.StatusCode != http.StatusNoContent && resp.Body != nil
}

func readDetail(body io.Reader) string {
	if body == nil {
		return ""
	}
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	return string(raw)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) Count() int64 {
	return c.n
}
