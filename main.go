package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"pawrescue/libs/mailer"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxUploadBytes             = 10 * 1024 * 1024
	minPhoneLength             = 10
	reportRateLimitRequests    = 8
	reportRateLimitWindow      = 5 * time.Minute
	loginRateLimitRequests     = 10
	loginRateLimitWindow       = 15 * time.Minute
	rateLimiterCleanupInterval = time.Minute
	deviceLocationTimeout      = 15 * time.Second
	maxDeviceFixAge            = 60 * time.Second
	operatorCookieName         = "pawrescue_operator_session"
	operatorSessionDuration    = 8 * time.Hour
	geocoderUserAgent          = "PawRescue-Web/1.0"
	devCORSOriginLocalhost     = "http://localhost:5173"
	devCORSOriginLoopback      = "http://127.0.0.1:5173"
	trustedProxyLoopbackIPv4   = "127.0.0.1"
	trustedProxyLoopbackIPv6   = "::1"
)

// Report lifecycle statuses. The server is the authority on
// transitions; the client only refuses to propose a regression.
const (
	StatusPending  = "PENDING"
	StatusOnTheWay = "ON_THE_WAY"
	StatusResolved = "RESOLVED"
)

var (
	reportStatuses    = []string{StatusPending, StatusOnTheWay, StatusResolved}
	statusTransitions = map[string][]string{
		StatusPending:  {StatusOnTheWay, StatusResolved},
		StatusOnTheWay: {StatusResolved},
		StatusResolved: {},
	}
	allowedImageTypes = map[string]struct{}{"image/jpeg": {}, "image/png": {}, "image/webp": {}}
)

// Report is the client's read-only copy of a server-owned record.
type Report struct {
	ID            int      `json:"id"`
	CreatedAt     string   `json:"created_at"`
	Description   string   `json:"description"`
	ReporterName  string   `json:"reporter_name"`
	ReporterPhone string   `json:"reporter_phone"`
	ImagePath     *string  `json:"image_path,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	AssignedNGO   *string  `json:"assigned_ngo,omitempty"`
	DistanceKM    *float64 `json:"distance_km,omitempty"`
	Status        string   `json:"status"`
}

// PhotoUpload is an in-memory photo attached to a draft.
type PhotoUpload struct {
	Name     string
	MimeType string
	Bytes    []byte
}

// ReportDraft is the transient, client-only form state for one
// compose-submit cycle.
type ReportDraft struct {
	Description   string
	ReporterName  string
	ReporterPhone string
	Photo         *PhotoUpload
}

// CreateReportResult is the rescue API's create response.
type CreateReportResult struct {
	ID          int      `json:"id"`
	Message     string   `json:"message"`
	AssignedNGO *string  `json:"assigned_ngo,omitempty"`
	DistanceKM  *float64 `json:"distance_km,omitempty"`
}

// OperatorSession identifies a logged-in NGO operator.
type OperatorSession struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type rateBucket struct {
	start time.Time
	count int
}

type Config struct {
	Addr                string
	Env                 string
	RescueAPIURL        string
	PublicBaseURL       string
	AppSigningSecret    string
	OperatorEmail       string
	OperatorPassword    string
	NotifyEmailTo       string
	ResendAPIKey        string
	MailerFromAddresses map[string]string
}

type App struct {
	cfg *Config
	log *slog.Logger

	geocoder    Geocoder
	rescue      *RescueClient
	submissions *SubmissionController
	registry    *ReportsRegistry
	mailer      *mailer.Mailer

	operatorPasswordHash []byte

	rateLimiterMu sync.Mutex
	rateBuckets   map[string]rateBucket
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func main() {
	if err := loadDotEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	httpClient := &http.Client{Timeout: 10 * time.Second}
	geocoder := &NominatimGeocoder{UserAgent: geocoderUserAgent, Client: httpClient}
	rescue := &RescueClient{BaseURL: cfg.RescueAPIURL, HTTP: &http.Client{Timeout: 30 * time.Second}}

	var mailProvider mailer.Provider
	if cfg.ResendAPIKey != "" {
		mailProvider = mailer.NewResendProvider(cfg.ResendAPIKey)
		logger.Info("mailer initialized", "provider", "resend")
	} else {
		mailProvider = mailer.NewLogProvider(logger)
		logger.Info("mailer initialized", "provider", "log")
	}
	mailClient := mailer.New(mailProvider, cfg.MailerFromAddresses[mailProvider.Name()])

	app := &App{
		cfg:         cfg,
		log:         logger,
		geocoder:    geocoder,
		rescue:      rescue,
		submissions: NewSubmissionController(rescue, logger),
		registry:    NewReportsRegistry(rescue, logger),
		mailer:      mailClient,
		rateBuckets: make(map[string]rateBucket),
	}

	if cfg.OperatorEmail != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.OperatorPassword), bcrypt.DefaultCost)
		if err != nil {
			panic(err)
		}
		app.operatorPasswordHash = hash
		logger.Info("operator account configured", "email", cfg.OperatorEmail)
	} else {
		logger.Warn("no operator account configured; operator endpoints will reject logins")
	}

	// A successful create invalidates the cached list and refetches,
	// then notifies the rescue-coordination address.
	app.submissions.OnSubmitted(func(created CreateReportResult) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := app.registry.RefreshCurrent(ctx); err != nil {
			logger.Error("post-submit refresh failed", "err", err)
		}
		go app.sendReportCreatedNotification(created)
	})

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	app.startRateLimiterCleanup(cleanupCtx, rateLimiterCleanupInterval)

	logger.Info("runtime configuration", "env", cfg.Env, "addr", cfg.Addr, "rescue_api", cfg.RescueAPIURL)

	r := gin.New()
	if err := r.SetTrustedProxies([]string{trustedProxyLoopbackIPv4, trustedProxyLoopbackIPv6}); err != nil {
		panic(err)
	}
	r.Use(gin.Recovery())
	r.Use(app.loggingMiddleware())
	r.Use(app.corsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	app.registerRoutes(r)

	app.log.Info("starting gin API", "addr", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		panic(err)
	}
}

func (a *App) registerRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/reports", a.createReportHandler)
		api.GET("/reports", a.listReportsHandler)
		api.GET("/geocode/reverse", a.reverseGeocodeHandler)
		api.GET("/firstaid", a.firstAidGuideHandler)
		api.POST("/firstaid", a.firstAidAdviceHandler)
		api.PATCH("/reports/:id/status", a.requireOperatorSession(), a.updateStatusHandler)

		opAuth := api.Group("/operator/auth")
		{
			opAuth.POST("/login", a.operatorLoginHandler)
			opAuth.POST("/logout", a.operatorLogoutHandler)
			opAuth.GET("/session", a.operatorSessionHandler)
		}

		op := api.Group("/operator")
		op.Use(a.requireOperatorSession())
		{
			op.GET("/exports", a.operatorExportHandler)
		}
	}
}

func loadConfig() (*Config, error) {
	rescueAPIURL := strings.TrimSpace(os.Getenv("RESCUE_API_URL"))
	if rescueAPIURL == "" {
		return nil, fmt.Errorf("RESCUE_API_URL must be configured")
	}
	rescueAPIURL = strings.TrimRight(rescueAPIURL, "/")

	secret := strings.TrimSpace(os.Getenv("APP_SIGNING_SECRET"))
	if len(secret) < 16 {
		return nil, fmt.Errorf("APP_SIGNING_SECRET must be at least 16 characters")
	}

	operatorEmail := strings.TrimSpace(os.Getenv("OPERATOR_EMAIL"))
	operatorPassword := strings.TrimSpace(os.Getenv("OPERATOR_PASSWORD"))
	if operatorEmail != "" && operatorPassword == "" {
		return nil, fmt.Errorf("OPERATOR_PASSWORD must be set when OPERATOR_EMAIL is configured")
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	publicBase := strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")

	cfg := &Config{
		Addr:             valueOrDefault("GIN_ADDR", ":8080"),
		Env:              env,
		RescueAPIURL:     rescueAPIURL,
		PublicBaseURL:    publicBase,
		AppSigningSecret: secret,
		OperatorEmail:    operatorEmail,
		OperatorPassword: operatorPassword,
		NotifyEmailTo:    strings.TrimSpace(os.Getenv("NOTIFY_EMAIL_TO")),
		ResendAPIKey:     strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
		MailerFromAddresses: map[string]string{
			"resend": valueOrDefault("MAILER_FROM_ADDRESS_RESEND", "noreply@mail.pawrescue.org"),
			"log":    valueOrDefault("MAILER_FROM_ADDRESS_LOG", "noreply@pawrescue.local"),
		},
	}

	return cfg, nil
}

func loadDotEnvFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, raw := range strings.Split(string(content), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), "\"")
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func containsString(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}

func buildPublicURL(baseURL, path string) string {
	if strings.HasPrefix(path, "/") {
		return strings.TrimRight(baseURL, "/") + path
	}
	return strings.TrimRight(baseURL, "/") + "/" + path
}

func (a *App) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

func (a *App) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := strings.TrimSpace(c.GetHeader("Origin"))
		if a.isAllowedCORSOrigin(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (a *App) isAllowedCORSOrigin(origin string) bool {
	if origin == "" || a.cfg == nil {
		return false
	}
	if a.cfg.PublicBaseURL != "" && origin == a.cfg.PublicBaseURL {
		return true
	}
	if !strings.EqualFold(a.cfg.Env, "development") {
		return false
	}
	return origin == devCORSOriginLocalhost || origin == devCORSOriginLoopback
}

func (a *App) checkRateLimit(key string, maxRequests int, window time.Duration, now time.Time) bool {
	a.rateLimiterMu.Lock()
	defer a.rateLimiterMu.Unlock()

	bucket, ok := a.rateBuckets[key]
	if !ok || now.Sub(bucket.start) >= window {
		a.rateBuckets[key] = rateBucket{start: now, count: 1}
		return true
	}
	bucket.count++
	a.rateBuckets[key] = bucket
	return bucket.count <= maxRequests
}

func (a *App) startRateLimiterCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.pruneRateLimiterState(now)
			}
		}
	}()
}

func (a *App) pruneRateLimiterState(now time.Time) {
	a.rateLimiterMu.Lock()
	// login buckets use the longest window; prune against that so no
	// live bucket is dropped early
	for key, bucket := range a.rateBuckets {
		if now.Sub(bucket.start) >= loginRateLimitWindow {
			delete(a.rateBuckets, key)
		}
	}
	a.rateLimiterMu.Unlock()
}

func writeAPIError(c *gin.Context, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
}

// apiErrorFor maps the domain error taxonomy onto HTTP responses.
// Upstream status codes pass through when the server rejected the
// request; transport failures become 502.
func apiErrorFor(err error) *apiError {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return &apiError{Status: http.StatusBadRequest, Code: "validation_error", Message: vErr.Message}
	}
	var gErr *GeolocationError
	if errors.As(err, &gErr) {
		return &apiError{Status: http.StatusBadRequest, Code: "geolocation_error", Message: gErr.Message}
	}
	var sErr *SubmissionError
	if errors.As(err, &sErr) {
		status := http.StatusBadGateway
		switch {
		case sErr.Kind == SubmissionInFlight:
			status = http.StatusConflict
		case sErr.StatusCode >= 400:
			status = sErr.StatusCode
		}
		return &apiError{Status: status, Code: "submission_failed", Message: sErr.Message}
	}
	var lErr *LoadError
	if errors.As(err, &lErr) {
		return &apiError{Status: http.StatusBadGateway, Code: "load_failed", Message: "Failed to load reports."}
	}
	var uErr *StatusUpdateError
	if errors.As(err, &uErr) {
		status := http.StatusBadGateway
		switch {
		case uErr.Kind == StatusUpdateBadTransition || uErr.Kind == StatusUpdateUnknownStatus:
			status = http.StatusBadRequest
		case uErr.StatusCode >= 400:
			status = uErr.StatusCode
		}
		return &apiError{Status: status, Code: "status_update_failed", Message: uErr.Message}
	}
	return &apiError{Status: http.StatusInternalServerError, Code: "internal_error", Message: err.Error()}
}
