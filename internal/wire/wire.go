package wire

import (
	"net/http"

	"bus-booking/internal/adaptor"
	"bus-booking/internal/data/repository"
	"bus-booking/internal/usecase"
	"bus-booking/pkg/middleware"
	"bus-booking/pkg/notify"
	"bus-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App holds the router plus the pieces main runs in the background.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
	Expiry  *usecase.ExpiryWorker
}

// Deps are the infrastructure handles built in main. Redis may be nil.
type Deps struct {
	Repo      *repository.Repository
	Redis     *redis.Client
	Publisher notify.Publisher
	Config    *utils.Config
	Logger    *zap.Logger
}

func Wiring(deps Deps) *App {
	service := usecase.NewService(deps.Repo, deps.Publisher, deps.Config, deps.Logger)
	handler := adaptor.NewHandler(service, deps.Logger)

	return &App{
		Router:  setupRouter(handler, deps),
		Service: service,
		Expiry: usecase.NewExpiryWorker(
			service.Booking,
			deps.Repo.Session,
			deps.Config.Booking.SweepInterval,
			deps.Logger,
		),
	}
}

func setupRouter(handler *adaptor.Handler, deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.CORS())

	auth := middleware.AuthSession(deps.Repo.Session, deps.Repo.User, deps.Logger)
	admin := middleware.Admin(deps.Logger)

	wireAuth(r, handler.Auth, auth)
	wireVehicle(r, handler.Vehicle, auth, admin)
	wireBooking(r, handler.Booking, auth, admin, deps)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
