package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/academy/internal/config"
	"github.com/dukerupert/academy/internal/email"
	"github.com/dukerupert/academy/internal/enrollment"
	"github.com/dukerupert/academy/internal/fcm"
	"github.com/dukerupert/academy/internal/handler"
	"github.com/dukerupert/academy/internal/imagehost"
	"github.com/dukerupert/academy/internal/middleware"
	"github.com/dukerupert/academy/internal/nav"
	"github.com/dukerupert/academy/internal/notify"
	"github.com/dukerupert/academy/internal/payment"
	"github.com/dukerupert/academy/internal/push"
	"github.com/dukerupert/academy/internal/settings"
	"github.com/dukerupert/academy/internal/store"
	ws "github.com/dukerupert/academy/internal/websocket"
	"github.com/dukerupert/academy/web"
)

// Externals are the clients of outside services, built by the caller so
// they can be swapped out. Nil Verifier and FCM disable those features.
type Externals struct {
	Verifier handler.IdentityVerifier
	FCM      *fcm.Client
	Gateway  payment.Gateway
	Mailer   email.Sender
	Uploader imagehost.Uploader
}

type Server struct {
	cfg    config.Config
	hub    *ws.Hub
	logger *slog.Logger

	pageH     *handler.PageHandler
	authH     *handler.AuthHandler
	paymentH  *handler.PaymentHandler
	checkoutH *handler.CheckoutHandler
	settingsH *handler.SettingsHandler
	pushH     *handler.PushHandler
	notifyH   *handler.NotifyHandler

	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	dispatcher   *notify.Dispatcher
}

func New(db *sql.DB, cfg config.Config, ext Externals, logger *slog.Logger) (*Server, error) {
	if ext.Gateway == nil {
		return nil, errors.New("a payment gateway is required")
	}
	if ext.Mailer == nil {
		ext.Mailer = email.New(config.EmailConfig{})
	}
	if ext.Uploader == nil {
		ext.Uploader = imagehost.New(config.ImageConfig{})
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	settingsStore := store.NewSettingsStore(db)
	adminTokenStore := store.NewAdminTokenStore(db)
	pushStore := store.NewPushStore(db)
	courseStore := store.NewCourseStore(db)
	enrollmentStore := store.NewEnrollmentStore(db)

	settingsSvc := settings.NewService(settingsStore, hub, logger.With("component", "settings"))

	renderer, err := handler.NewRenderer(web.FS, logger.With("component", "template"))
	if err != nil {
		return nil, err
	}
	renderer.WithFirebase(cfg.Firebase)
	site := handler.NewSite(renderer, nav.NewBuilder(settingsSvc, logger.With("component", "nav")), settingsSvc)

	// Admin notifications go to an external fan-out service when one is
	// configured, otherwise straight to FCM.
	var fanout *notify.FanOut
	var sender notify.Sender
	if ext.FCM != nil {
		fanout = notify.NewFanOut(ext.FCM, adminTokenStore)
		sender = fanout
	}
	if cfg.NotifyEndpoint != "" {
		sender = notify.NewHTTPSender(cfg.NotifyEndpoint)
	}
	dispatcher := notify.NewDispatcher(adminTokenStore, sender, logger.With("component", "notify"))

	pushSvc := push.NewService(cfg.VAPID.PublicKey, cfg.VAPID.PrivateKey, cfg.VAPID.Subscriber)
	localNotifier := push.NewNotifier(pushSvc, pushStore, logger.With("component", "push"))

	enrollSvc := enrollment.NewService(enrollmentStore, courseStore, userStore, ext.Gateway,
		logger.With("component", "enrollment"),
		enrollment.WithNotifier(dispatcher),
		enrollment.WithMailer(ext.Mailer),
		enrollment.WithBroadcaster(hub),
		enrollment.WithCurrency(cfg.Payment.Currency),
	)

	pushH, err := handler.NewPushHandler(pushStore, pushSvc, localNotifier, web.FS, cfg.Firebase, logger.With("component", "push_handler"))
	if err != nil {
		return nil, fmt.Errorf("load service workers: %w", err)
	}

	var deliverer handler.Deliverer
	if fanout != nil {
		deliverer = fanout
	}

	return &Server{
		cfg:       cfg,
		hub:       hub,
		logger:    logger,
		pageH:     handler.NewPageHandler(site, courseStore, logger.With("component", "page")),
		authH:     handler.NewAuthHandler(site, userStore, sessionStore, ext.Verifier, logger.With("component", "auth")),
		paymentH:  handler.NewPaymentHandler(site, enrollSvc, localNotifier, logger.With("component", "payment")),
		checkoutH: handler.NewCheckoutHandler(courseStore, userStore, ext.Gateway, enrollSvc, dispatcher, cfg.BaseURL, cfg.Payment.Currency, logger.With("component", "checkout")),
		settingsH: handler.NewSettingsHandler(site, settingsSvc, ext.Uploader, logger.With("component", "admin_settings")),
		pushH:     pushH,
		notifyH: handler.NewNotifyHandler(notify.NewTokenRegistry(userStore, adminTokenStore, logger.With("component", "tokens")),
			deliverer, ext.Mailer, logger.With("component", "notify_handler")),
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(),
		dispatcher:   dispatcher,
	}, nil
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Dispatcher returns the admin notification dispatcher so the caller can
// start and stop it.
func (s *Server) Dispatcher() *notify.Dispatcher {
	return s.dispatcher
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.FileServerFS(web.FS))
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /manifest.webmanifest", s.pageH.Manifest)
	mux.HandleFunc("GET /sw.js", s.pushH.ServiceWorker)
	mux.HandleFunc("GET /firebase-messaging-sw.js", s.pushH.MessagingServiceWorker)

	// Public pages
	mux.HandleFunc("GET /{$}", s.pageH.Home)
	mux.HandleFunc("GET /courses", s.pageH.Courses)
	mux.HandleFunc("GET /announcements", s.pageH.Announcements)
	mux.HandleFunc("GET /community", s.pageH.Community)
	mux.HandleFunc("POST /theme/toggle", s.pageH.ToggleTheme)
	mux.HandleFunc("POST /search", s.pageH.Search)

	// Header partials (HTMX)
	mux.HandleFunc("GET /partials/nav/search", s.pageH.SearchOpen)
	mux.HandleFunc("DELETE /partials/nav/search", s.pageH.SearchClose)
	mux.HandleFunc("GET /partials/nav/sidebar", s.pageH.SidebarOpen)
	mux.HandleFunc("DELETE /partials/nav/sidebar", s.pageH.SidebarClose)

	// Sign-in
	mux.HandleFunc("GET /login", s.authH.LoginPage)
	mux.Handle("POST /login", s.rateLimited(http.HandlerFunc(s.authH.Login)))
	mux.Handle("POST /session", s.rateLimited(http.HandlerFunc(s.authH.Session)))
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// Signed-in pages
	mux.Handle("GET /payment/success", middleware.RequireAuth(http.HandlerFunc(s.paymentH.SuccessPage)))
	mux.Handle("GET /partials/payment/verify", middleware.RequireAuth(http.HandlerFunc(s.paymentH.Verify)))

	// Admin pages
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(middleware.RequireAdmin(h))
	}
	mux.Handle("GET /admin/settings", admin(s.settingsH.Page))
	mux.Handle("POST /admin/settings", admin(s.settingsH.Save))
	mux.Handle("POST /admin/settings/upload", admin(s.settingsH.Upload))

	// JSON API
	cors := middleware.CORS(s.cfg.AllowedOrigins)
	api := func(h http.HandlerFunc) http.Handler {
		return cors(middleware.RequireAPIAuth(h))
	}
	adminAPI := func(h http.HandlerFunc) http.Handler {
		return cors(middleware.RequireAPIAuth(middleware.RequireAdmin(h)))
	}
	mux.Handle("OPTIONS /api/", cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	mux.Handle("GET /api/push/vapid-key", cors(http.HandlerFunc(s.pushH.GetVAPIDKey)))
	mux.Handle("POST /api/push/subscribe", api(s.pushH.Subscribe))
	mux.Handle("GET /api/push/subscriptions", api(s.pushH.ListSubscriptions))
	mux.Handle("DELETE /api/push/subscriptions/{id}", api(s.pushH.Unsubscribe))
	mux.Handle("POST /api/push/test", api(s.pushH.TestNotification))

	mux.Handle("POST /api/admin/fcm-token", api(s.notifyH.SaveFCMToken))
	mux.Handle("POST /api/send-notification", adminAPI(s.notifyH.SendNotification))
	mux.Handle("POST /api/send-email", adminAPI(s.notifyH.SendEmail))

	mux.Handle("POST /api/checkout", api(s.checkoutH.Checkout))
	mux.Handle("POST /api/process-enrollment", s.rateLimited(api(s.checkoutH.ProcessEnrollment)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, originHosts(s.cfg.AllowedOrigins), s.logger.With("component", "websocket")))

	// The session is resolved first so the request log can name the user.
	logged := middleware.RequestLogger(s.logger.With("component", "http"))(mux)
	return middleware.LoadSession(s.sessionStore, s.userStore)(logged)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.Handler) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.KeyByIP, 10, time.Minute)(h)
}

// originHosts turns configured origins into the host patterns the
// websocket origin check expects.
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}

// CleanupLoop removes expired sessions and stale rate-limit windows every
// interval until ctx is done.
func (s *Server) CleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sessionStore.DeleteExpired(ctx)
			if err != nil {
				s.logger.Error("session cleanup", "error", err)
			} else if n > 0 {
				s.logger.Info("expired sessions removed", "count", n)
			}
			s.rateLimiter.Cleanup()
		}
	}
}
