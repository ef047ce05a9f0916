package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type BodyLimitConfig struct {
	// JSON caps assessment and auth bodies; Upload caps attachment uploads.
	// Sizes read like "1M", "512K" or a bare byte count.
	JSON   string
	Upload string
	// IsUpload picks the Upload cap. Defaults to POSTs ending in
	// /attachments.
	IsUpload func(r *http.Request) bool
}

var sizeSuffixes = []struct {
	suffix string
	shift  uint
}{
	{"GB", 30}, {"G", 30},
	{"MB", 20}, {"M", 20},
	{"KB", 10}, {"K", 10},
}

// ParseSize turns a size like "25M" into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	var shift uint
	for _, sf := range sizeSuffixes {
		if strings.HasSuffix(s, sf.suffix) {
			s, shift = strings.TrimSuffix(s, sf.suffix), sf.shift
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n << shift, nil
}

func isAttachmentUpload(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/attachments")
}

// BodyLimit rejects bodies over the configured caps with 413. A declared
// Content-Length over the cap fails at once; otherwise the cap is enforced
// while the handler reads.
func BodyLimit(cfg BodyLimitConfig) (echo.MiddlewareFunc, error) {
	jsonCap, err := ParseSize(cfg.JSON)
	if err != nil {
		return nil, fmt.Errorf("json limit: %w", err)
	}
	uploadCap, err := ParseSize(cfg.Upload)
	if err != nil {
		return nil, fmt.Errorf("upload limit: %w", err)
	}
	isUpload := cfg.IsUpload
	if isUpload == nil {
		isUpload = isAttachmentUpload
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			limit := jsonCap
			if isUpload(req) {
				limit = uploadCap
			}
			if req.ContentLength > limit {
				return tooLarge(limit)
			}
			req.Body = &cappedBody{ReadCloser: req.Body, left: limit, limit: limit}
			return next(c)
		}
	}, nil
}

func tooLarge(limit int64) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("Request body exceeds the maximum allowed size of %d bytes.", limit))
}

// cappedBody fails the read that crosses limit.
type cappedBody struct {
	io.ReadCloser
	left, limit int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, tooLarge(b.limit)
	}
	if int64(len(p)) > b.left+1 {
		p = p[:b.left+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return 0, tooLarge(b.limit)
	}
	return n, err
}

// MustBodyLimit is BodyLimit for sizes fixed in code. It panics on a bad
// size.
func MustBodyLimit(cfg BodyLimitConfig) echo.MiddlewareFunc {
	mw, err := BodyLimit(cfg)
	if err != nil {
		panic(err)
	}
	return mw
}
