package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/crowdsong/crowdsong/internal/config"
	"github.com/crowdsong/crowdsong/internal/handlers"
	"github.com/crowdsong/crowdsong/internal/logger"
	"github.com/crowdsong/crowdsong/internal/ratelimit"
	"github.com/crowdsong/crowdsong/internal/repository"
	"github.com/crowdsong/crowdsong/internal/services"
	"github.com/crowdsong/crowdsong/internal/websocket"
	"github.com/crowdsong/crowdsong/pkg/reputation"
)

const shutdownTimeout = 5 * time.Second

// App holds all application dependencies
type App struct {
	cfg      config.Config
	log      logger.Logger
	repo     *repository.Repository
	hub      *websocket.Hub
	limiter  *ratelimit.KeyedLimiter
	sessions *services.SessionService
	sweeper  *services.Sweeper
	handlers *handlers.Handlers
}

// New creates and initializes a new application instance. A nil rep selects
// the HTTP reputation client when cfg.ReputationURL is set and Offline otherwise.
func New(cfg config.Config, log logger.Logger, rep reputation.Client) (*App, error) {
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	if rep == nil {
		if cfg.ReputationURL != "" {
			rep = reputation.NewHTTPClient(cfg.ReputationURL, log)
		} else {
			log.Warn("No reputation service configured, every vote counts with weight 1")
			rep = reputation.Offline{}
		}
	}

	// Initialize services
	sessionService := services.NewSessionService(log, repo, rep)
	elementService := services.NewElementService(log, repo, rep)
	competitionService := services.NewCompetitionService(log, repo, rep)
	moderationService := services.NewModerationService(log, repo, rep)
	if cfg.BaseURL != "" {
		sessionService.SetBaseURL(cfg.BaseURL)
	}

	// Every mutation fans out through the hub
	hub := websocket.New(log)
	sessionService.SetBroadcaster(hub)
	elementService.SetBroadcaster(hub)
	competitionService.SetBroadcaster(hub)
	moderationService.SetBroadcaster(hub)

	var limiter *ratelimit.KeyedLimiter
	if cfg.RateLimit > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			Rate:    rate.Limit(cfg.RateLimit),
			Burst:   cfg.RateBurst,
			IdleTTL: cfg.RateIdleTTL,
		})
		sessionService.SetLimiter(limiter)
		elementService.SetLimiter(limiter)
		competitionService.SetLimiter(limiter)
		moderationService.SetLimiter(limiter)
	}

	h := handlers.New(sessionService, elementService, competitionService, moderationService, hub, log)
	h.Health = repo.Ping

	return &App{
		cfg:      cfg,
		log:      log,
		repo:     repo,
		hub:      hub,
		limiter:  limiter,
		sessions: sessionService,
		sweeper:  services.NewSweeper(log, sessionService, competitionService, cfg.SweepInterval),
		handlers: h,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close releases the database
func (a *App) Close() error {
	return a.repo.Close()
}

// Run serves HTTP and runs the hub, the deadline sweeper and the limiter
// cleanup until ctx is cancelled or one of them fails
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	baseURL := a.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL(getPreferredIP(realNetworkProvider{}), ln.Addr())
		a.sessions.SetBaseURL(baseURL)
		a.log.Info("Default base URL set", "url", baseURL)
	}

	server := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.hub.Run(gctx) })
	g.Go(func() error { return a.sweeper.Run(gctx) })
	if a.limiter != nil {
		g.Go(func() error { return a.limiter.Run(gctx, time.Minute) })
	}
	g.Go(func() error {
		a.log.Info("Server starting", "url", baseURL, "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.log.Info("Server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// defaultBaseURL builds the join-link base from the LAN address and the bound port
func defaultBaseURL(ip string, addr net.Addr) string {
	port := ""
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = fmt.Sprintf(":%d", tcp.Port)
	}
	return fmt.Sprintf("http://%s%s", ip, port)
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// realInterface wraps a real net.Interface
type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider is an interface for getting network interfaces (for testing)
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

// realNetworkProvider implements networkProvider using actual net package
type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IP address for LAN access.
// Prefers private network addresses (192.168.x.x, 10.x.x.x, 172.16-31.x.x).
// Falls back to localhost if no suitable address is found.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP

	for _, iface := range ifaces {
		// Skip down, loopback, and point-to-point interfaces
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			// Only consider IPv4 addresses
			if ip == nil || ip.To4() == nil {
				continue
			}

			// Skip loopback
			if ip.IsLoopback() {
				continue
			}

			candidates = append(candidates, ip)
		}
	}

	// Prefer private network addresses
	for _, ip := range candidates {
		ipStr := ip.String()
		if strings.HasPrefix(ipStr, "192.168.") ||
			strings.HasPrefix(ipStr, "10.") ||
			isPrivate172(ip) {
			return ipStr
		}
	}

	// Fall back to any non-loopback if no private address found
	if len(candidates) > 0 {
		return candidates[0].String()
	}

	return "localhost"
}

// isPrivate172 checks if IP is in 172.16.0.0/12 range
func isPrivate172(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31
	}
	return false
}
