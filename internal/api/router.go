package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/web"
)

// formRateLimit is the per-IP request budget per minute of the WebApp form
// endpoints. Telegram delivers webhooks from a few shared IPs, so /webhook is
// not limited.
const formRateLimit = 100

// Deps holds everything the router serves.
type Deps struct {
	Inventory Inventory
	// Bot receives webhook updates. Nil disables /webhook.
	Bot           UpdateHandler
	WebhookSecret string

	TokenSecret        string
	RequireWebAppToken bool

	Database HealthChecker
	// Redis is probed by /health when set.
	Redis HealthChecker

	// StaticDir overrides the bundled WebApp form served at /.
	StaticDir string
	// ExportDir serves archived workbooks at /data/ when set.
	ExportDir string

	CORSAllowedOrigins string
	IsDevelopment      bool
}

// NewRouter creates the HTTP router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	sec := secure.New(secure.Options{
		STSSeconds:           63072000,
		STSIncludeSubdomains: true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		ReferrerPolicy:       "strict-origin-when-cross-origin",
		// The form runs inside Telegram and loads its WebApp script.
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' https://telegram.org; " +
			"style-src 'self' 'unsafe-inline'; frame-ancestors https://web.telegram.org https://*.telegram.org",
		PermissionsPolicy: "geolocation=(), microphone=(), camera=()",
		IsDevelopment:     d.IsDevelopment,
	})

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		LoggingMiddleware,
		middleware.RealIP,
		corsMiddleware(d.CORSAllowedOrigins),
		requestBodyLimit(10<<20),
		middleware.Timeout(30*time.Second),
		sec.Handler,
	)

	inventoryHandler := &InventoryHandler{Inventory: d.Inventory}

	r.Group(func(r chi.Router) {
		r.Use(
			httprate.LimitByIP(formRateLimit, time.Minute),
			WebAppAuth(d.TokenSecret, d.RequireWebAppToken),
		)
		r.Post("/save_inventory", inventoryHandler.Save)
		r.Get("/load_last_inventory", inventoryHandler.LoadLast)
	})

	if d.Bot != nil {
		r.Method(http.MethodPost, "/webhook", &WebhookHandler{Bot: d.Bot, Secret: d.WebhookSecret})
	}

	r.Get("/health", HealthHandler(d.Database, d.Redis))
	r.Handle("/metrics", metrics.Handler())

	if d.ExportDir != "" {
		r.Handle("/data/*", http.StripPrefix("/data/", http.FileServer(http.Dir(d.ExportDir))))
	}
	if d.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(d.StaticDir)))
	} else {
		r.Handle("/*", http.FileServer(http.FS(web.StaticFS())))
	}

	return r
}
