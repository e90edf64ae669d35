package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Thanuja-2/collaborative-canvas/internal/models"
	"github.com/Thanuja-2/collaborative-canvas/internal/routers"
	"github.com/Thanuja-2/collaborative-canvas/internal/services"
	"github.com/Thanuja-2/collaborative-canvas/internal/session"
	"github.com/Thanuja-2/collaborative-canvas/internal/utils"
)

var (
	listenAndServe = http.ListenAndServe
	exitFunc       = defaultExit
	exit           = os.Exit

	defaultPort      = "3000"
	defaultRedisAddr = "" // empty disables room event publishing
	defaultStaticDir = ""
	defaultRoomGrace = 10 * time.Minute

	janitorInterval = time.Minute
)

func main() {
	if err := run(context.Background()); err != nil {
		exitFunc(err)
	}
}

func run(ctx context.Context) error {
	logger := utils.NewLogger()

	redisAddr := envOr("REDIS_ADDR", defaultRedisAddr)
	staticDir := envOr("STATIC_DIR", defaultStaticDir)
	roomGrace := defaultRoomGrace
	if v := os.Getenv("ROOM_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		roomGrace = d
	}

	events := services.NewEventPublisher(redisAddr, logger)
	hub := session.NewHub()
	go hub.RunJanitor(ctx, janitorInterval, roomGrace, func(roomID string) {
		logger.Info("room evicted", "room", roomID)
		events.Publish(models.RoomEvent{Room: roomID, Event: "room_evicted"})
	})

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)
	r.Mount("/", routers.New(logger, hub, events, staticDir))
	r.Get("/healthz", healthHandler)

	addr := ":" + envOr("PORT", defaultPort)
	logger.Info("canvas-svc listening", "addr", addr)
	return listenAndServe(addr, r)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultExit(err error) {
	log.Println(err)
	exit(1)
}
