package web

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"tentatek/internal/back"
	"tentatek/internal/config"
	"tentatek/internal/util"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"golang.org/x/time/rate"
)

type Server struct {
	http   *http.Server
	back   *back.Back
	config *config.Config

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

func NewServer(b *back.Back, conf *config.Config) *Server {
	s := &Server{
		back:     b,
		config:   conf,
		limiters: map[string]*rate.Limiter{},
	}

	s.http = &http.Server{
		Addr:         conf.ListenAddr,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  10 * time.Second,
		Handler:      s.setupRouter(),
	}

	return s
}

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/", noContent)
	r.Get("/v1/leaderboard", s.getLeaderboard)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimiter)
		r.Post("/v1/match/{id}/report", s.postMatchReport)
		r.Post("/v1/match/{id}/cancel", s.postMatchCancel)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.tokenAuthenticator)
		r.Post("/v1/match/{id}/lock", s.postMatchLock)
		r.Post("/v1/tournament/{id}/summarize", s.postTournamentSummarize)
	})

	return r
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Serve(wg *sync.WaitGroup, done <-chan struct{}) {
	log.Println("info: starting HTTP server")
	wg.Add(1)
	defer wg.Done()

	go func() {
		err := s.http.ListenAndServe()
		if err == http.ErrServerClosed {
			log.Println("info: HTTP server closed")
			return
		}

		log.Fatalf("webserver crashed: %s", err)
	}()

	<-done
	if err := s.http.Close(); err != nil {
		log.Printf("warning: unable to close webserver: %s", err)
	}
}

// rateLimiter throttles report spam per remote host, one report per second
// with a small burst.
func (s *Server) rateLimiter(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		s.limitersMu.Lock()
		limiter, ok := s.limiters[host]
		if !ok {
			limiter = rate.NewLimiter(rate.Every(time.Second), 5)
			s.limiters[host] = limiter
		}
		s.limitersMu.Unlock()

		if !limiter.Allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) tokenAuthenticator(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.WebToken == "" ||
			r.Header.Get("Authorization") != "Bearer "+s.config.WebToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) response(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	response, err := json.Marshal(data)
	if err != nil {
		log.Printf("error: unable to marshal response: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(code)

	if _, err := w.Write(response); err != nil {
		log.Printf("error: unable to send response: %s", err)
	}
}

// error hides anything that is not an util.ErrPublic behind a generic status
// code.
func (s *Server) error(w http.ResponseWriter, err error, code int) {
	log.Printf("error: %s", err)

	var public util.ErrPublic
	if errors.As(err, &public) {
		s.response(w, http.StatusUnprocessableEntity, map[string]string{
			"error": string(public),
		})
		return
	}

	w.WriteHeader(code)
}

func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	season, err := queryInt(r, "season")
	if err != nil {
		s.error(w, err, http.StatusBadRequest)
		return
	}

	leaderboard, err := s.back.GetLeaderboard(season)
	if err != nil {
		s.error(w, err, http.StatusInternalServerError)
		return
	}

	s.response(w, http.StatusOK, leaderboard)
}
