// Package httpapi exposes a face overlay session over HTTP for browser hosts.
//
// Routes live under /api/overlay. Every response carries an X-Request-ID,
// either the caller's or a freshly minted ULID.
package httpapi

import (
	"crypto/rand"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/face-overlay/internal/session"
)

// RequestIDHeader carries the request correlation id.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// Options configures NewRouter.
type Options struct {
	// AllowedOrigins lists CORS origins. Empty allows every origin.
	AllowedOrigins []string
}

// NewRouter builds the gin engine serving sess.
func NewRouter(sess *session.Session, log logrus.FieldLogger, opts Options) *gin.Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "http")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog(log))
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	NewOverlayController(sess, log).RegisterRoutes(api)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// ulidSource hands out monotonic ULIDs; ulid.Monotonic readers are not safe
// for concurrent use.
type ulidSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newULIDSource() *ulidSource {
	return &ulidSource{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *ulidSource) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

func requestID() gin.HandlerFunc {
	ids := newULIDSource()
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = ids.next()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
		if len(c.Errors) > 0 {
			entry.WithField("errors", c.Errors.String()).Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}
