package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"taskstream/internal/config"
	"taskstream/internal/infra/redisq"
	"taskstream/internal/ports"
	"taskstream/internal/relay"
	"taskstream/internal/tasks"
	"taskstream/internal/usecase"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type Server struct {
	router  *chi.Mux
	enq     usecase.Enqueuer
	results ports.Results
	relay   *relay.Relay
}

func NewServer() *Server {
	ctx := context.Background()
	cfg := config.Load()

	cli := redisq.New(cfg.Redis)
	if err := cli.Init(ctx); err != nil {
		log.Ctx(ctx).Fatal().Msgf("something went wrong: %s", err)
	}

	registry := tasks.DefaultRegistry(cfg.Tasks)
	enq := usecase.Enqueuer{Q: cli, Results: cli, Registry: registry}
	rl := relay.New(cli, cli, cli, relay.NewConnectionRegistry())

	return newServer(enq, cli, rl)
}

// newServer wires routes onto injected dependencies; tests build servers
// through here with fakes.
func newServer(enq usecase.Enqueuer, results ports.Results, rl *relay.Relay) *Server {
	s := &Server{enq: enq, results: results, relay: rl}

	r := chi.NewRouter()
	r.Route("/tools", func(r chi.Router) {
		r.Post("/task/{taskName}", s.submitTask)
		r.Get("/task/{taskID}/status", s.taskStatus)
		r.Get("/task/{taskID}/ws", s.taskUpdates)
	})

	s.router = r
	return s
}

// Run method of the Server struct runs the HTTP server on the specified port. It initializes
// a new HTTP server instance with the specified port and the server's router.
func (s *Server) Run(port int) {
	addr := fmt.Sprintf(":%d", port)

	h := chainMiddleware(
		s.router,
		recoverHandler,
		loggerHandler(func(w http.ResponseWriter, r *http.Request) bool { return r.URL.Path == "/" }),
		realIPHandler,
		requestIDHandler,
		corsHandler,
	)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server forced to shutdown")
		}

		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to listen and serve")
	}

	<-done
	log.Info().Msg("Server stopped")
}
