package router

import (
	"context"
	"net/http"

	_ "pet-marketplace/docs"

	"pet-marketplace/internal/adapters/locations/ibge"
	mem "pet-marketplace/internal/adapters/storage/memory"
	"pet-marketplace/internal/domain/appointments"
	"pet-marketplace/internal/domain/bookings"
	"pet-marketplace/internal/domain/cart"
	"pet-marketplace/internal/domain/favorites"
	"pet-marketplace/internal/domain/locations"
	"pet-marketplace/internal/domain/pets"
	"pet-marketplace/internal/domain/products"
	"pet-marketplace/internal/domain/profiles"
	"pet-marketplace/internal/domain/reviews"
	"pet-marketplace/internal/domain/services"
	"pet-marketplace/internal/domain/session"
	"pet-marketplace/internal/middleware"
	"pet-marketplace/internal/platform/logger"
	"pet-marketplace/internal/platform/metrics"
	"pet-marketplace/internal/ports/auth"
	"pet-marketplace/internal/ports/backend"
	ports "pet-marketplace/internal/ports/locations"
	"pet-marketplace/internal/querycache"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	// Opcional: si Tables viene vacío se usa el store in-memory para todo.
	Gateway backend.Gateway

	// Verificador para tokens que no emitió este proceso. Puede ser nil.
	AuthVerifier auth.AuthVerifier
	// DevMode habilita X-Debug-User-ID.
	DevMode bool

	Cache     *querycache.Cache
	Locations ports.Provider
	Metrics   *metrics.Manager
	Logger    logger.Logger
}

// App es el router armado más lo que hay que cerrar al apagar.
type App struct {
	http.Handler
	Sessions *session.Manager
}

func (a *App) Close() {
	a.Sessions.Close()
}

func NewRouter(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	gw := opts.Gateway
	if gw.Tables == nil {
		store := mem.NewStore()
		gw = backend.Gateway{Tables: store, Storage: store, Auth: store}
		log.Info("using in-memory backend", nil)
	}

	cache := opts.Cache
	if cache == nil {
		cacheOpts := []querycache.Option{querycache.WithLogger(log)}
		if opts.Metrics != nil {
			cacheOpts = append(cacheOpts, querycache.WithObserver(opts.Metrics))
		}
		cache = querycache.New(querycache.Config{}, cacheOpts...)
	}

	provider := opts.Locations
	if provider == nil {
		// sin URL responde ErrNotConfigured
		provider = ibge.NewClient(ibge.Config{})
	}

	// Services por módulo
	profilesSvc := profiles.NewService(profiles.NewRepository(gw.Tables), gw.Storage, cache, log)
	petsSvc := pets.NewService(pets.NewRepository(gw.Tables), gw.Storage, cache, log)
	servicesSvc := services.NewService(services.NewRepository(gw.Tables), gw.Storage, cache, log)
	productsSvc := products.NewService(products.NewRepository(gw.Tables), gw.Storage, cache, log)
	favoritesSvc := favorites.NewService(favorites.NewRepository(gw.Tables), petsSvc, servicesSvc, cache, log)
	bookingsSvc := bookings.NewService(bookings.NewRepository(gw.Tables), servicesSvc, cache, log)
	reviewsSvc := reviews.NewService(reviews.NewRepository(gw.Tables), cache, log)
	appointmentsSvc := appointments.NewService(appointments.NewRepository(gw.Tables), profilesSvc, petsSvc, cache, log)
	cartSvc := cart.NewService(productsSvc, log)
	locationsSvc := locations.NewService(provider, cache, log)

	sessions := session.NewManager(gw.Auth, profilesSvc,
		session.WithFallbackVerifier(opts.AuthVerifier),
		session.WithLogger(log),
	)
	sessions.OnSignOut(func(uid string) {
		cartSvc.Clear(uid)
		cache.Invalidate(context.Background(), userScoped(uid)...)
	})

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Recover(log))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	r.Use(middleware.AuthContext(sessions))
	if opts.DevMode {
		r.Use(middleware.DebugUser)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Rutas por módulo
	session.RegisterRoutes(r, sessions)
	profiles.RegisterRoutes(r, profilesSvc)
	reviews.RegisterRoutes(r, reviewsSvc)
	pets.RegisterRoutes(r, petsSvc)
	services.RegisterRoutes(r, servicesSvc)
	products.RegisterRoutes(r, productsSvc)
	favorites.RegisterRoutes(r, favoritesSvc)
	bookings.RegisterRoutes(r, bookingsSvc)
	appointments.RegisterRoutes(r, appointmentsSvc)
	cart.RegisterRoutes(r, cartSvc)
	locations.RegisterRoutes(r, locationsSvc)

	return &App{Handler: r, Sessions: sessions}
}

// userScoped son las queries propias de un usuario; se descartan al cerrar su sesión.
func userScoped(uid string) []querycache.Match {
	return []querycache.Match{
		querycache.Exact(querycache.NewKey(profiles.EntityProfile, uid)),
		querycache.Exact(querycache.NewKey(pets.EntityUserPets, uid)),
		querycache.Exact(querycache.NewKey(services.EntityUserServices, uid)),
		querycache.Exact(querycache.NewKey(products.EntityUserProducts, uid)),
		querycache.Exact(querycache.NewKey(favorites.EntityUserFavorites, uid)),
		querycache.Exact(querycache.NewKey(favorites.EntityUserFavorites, uid, "ids")),
		querycache.Exact(querycache.NewKey(bookings.EntityUserBookings, uid)),
		querycache.Exact(querycache.NewKey(bookings.EntityProviderBookings, uid)),
		querycache.Exact(querycache.NewKey(appointments.EntityAppointments, uid, appointments.RoleConsumer)),
		querycache.Exact(querycache.NewKey(appointments.EntityAppointments, uid, appointments.RoleVeterinarian)),
	}
}
