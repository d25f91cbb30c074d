package api

import (
	"net/http"
	"os"

	"fieldbox/internal/auth"
	"fieldbox/internal/service"
	"fieldbox/internal/storage"
	"fieldbox/internal/store"
	"fieldbox/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Dependencies carries the wired services into the HTTP handlers. Services
// are constructed once in main and shared across requests.
type Dependencies struct {
	Store     *store.Store
	Lifecycle *service.LifecycleService
	Board     *service.BoardService
	Rewards   *service.RewardsService
	Users     *service.UserService
	Photos    storage.PhotoStore
	Hub       *ws.Hub
	Log       *zap.Logger
}

func Routes(d Dependencies) http.Handler {
	r := chi.NewRouter()

	// Auth runs before the logger so request lines carry the caller
	// identity.
	jwtConfig := auth.NewJWTConfig(os.Getenv("JWT_SECRET"))
	r.Use(jwtConfig.Middleware)
	r.Use(RequestLogger(d.Log))

	r.Route("/v1", func(r chi.Router) {
		// Request lifecycle
		r.Post("/requests", d.createRequest)
		r.Get("/requests", d.listRequests)
		r.Get("/requests/{id}", d.getRequest)
		r.Delete("/requests/{id}", d.deleteRequest)
		r.Post("/requests/{id}/status", d.setRequestStatus)
		r.Post("/requests/{id}/complete", d.completeRequest)
		r.Post("/requests/{id}/cancel", d.cancelRequest)
		r.Get("/requests/{id}/invoice", d.getInvoice)
		r.Post("/requests/{id}/award", d.awardRequestPoints)

		// Scheduling board
		r.Get("/board/queue", d.boardQueue)
		r.Get("/board/grid", d.boardGrid)
		r.Post("/requests/{id}/assign", d.assignRequest)
		r.Post("/requests/{id}/unassign", d.unassignRequest)

		// Technician roster
		r.Get("/technicians", d.listTechnicians)
		r.Get("/technicians/{id}", d.getTechnician)
		r.Put("/technicians/{id}/availability", d.setTechnicianAvailability)

		// Users and rewardable events
		r.Post("/users", d.createUser)
		r.Get("/users/{id}", d.getUser)
		r.Post("/reviews", d.createReview)
		r.Post("/reviews/{id}/award", d.awardReviewPoints)
		r.Post("/rentals", d.createRental)
		r.Post("/rentals/{id}/sign", d.signRental)
		r.Post("/rentals/{id}/award", d.awardRentalPoints)

		// Rewards configuration
		r.Get("/rewards/config", d.rewardsConfig)

		// Photo uploads
		r.Post("/photos/sign", d.signPhoto)

		// WebSocket endpoint
		r.Get("/ws", d.wsHandler)
	})

	// Targets of the signed photo URLs; PhotoStore.URL emits these paths.
	r.Put("/photos/{objectName}", d.uploadPhoto)
	r.Get("/photos/{objectName}", d.getPhoto)
	r.Delete("/photos/{objectName}", d.deletePhoto)

	return r
}
