package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"reward-polls/lib/logger"
	a "reward-polls/modules/aggregate"
	"reward-polls/modules/common"
	"reward-polls/modules/results"

	"github.com/chebyrash/promise"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const shutdownTimeout = 5 * time.Second

type VisiblePolls interface {
	ListVisiblePolls(ctx context.Context, viewer string) ([]common.Poll, error)
}

type PollReader interface {
	GetPoll(ctx context.Context, pollId string) (common.Poll, error)
	PollsByCreator(ctx context.Context, creator string) ([]common.Poll, error)
}

type ResultsReader interface {
	PollResults(ctx context.Context, pollId string) (results.Statistics, error)
	ParticipantHistory(ctx context.Context, participant string) ([]results.ParticipantView, error)
}

type ParticipationReader interface {
	HasParticipated(ctx context.Context, pollId, participant string) (bool, error)
}

// Services is what the read API serves from.
type Services struct {
	Visible       VisiblePolls
	Polls         PollReader
	Results       ResultsReader
	Participation ParticipationReader
	// Metrics is exposed on /metrics when set
	Metrics prometheus.Gatherer
}

type Server struct {
	conf   ApiConfig
	svc    Services
	server *http.Server
	log    *slog.Logger
}

var _ a.Plugin = &Server{}

func New(conf ApiConfig, svc Services) *Server {
	return &Server{
		conf: conf,
		svc:  svc,
		log:  logger.New("api"),
	}
}

func (s *Server) Init() error {
	s.server = &http.Server{
		Addr:              s.conf.GetHostAddr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (s *Server) Start() *promise.Promise[any] {
	return promise.New(func(resolve func(any), reject func(error)) {
		listener, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			reject(err)
			return
		}
		s.log.Info("api listening", "addr", listener.Addr().String())

		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			reject(err)
			return
		}
		resolve(nil)
	})
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler is the full route table behind CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/polls", s.listPolls)
	mux.HandleFunc("GET /api/v1/polls/{id}", s.getPoll)
	mux.HandleFunc("GET /api/v1/polls/{id}/results", s.pollResults)
	mux.HandleFunc("GET /api/v1/creators/{creator}/polls", s.creatorPolls)
	mux.HandleFunc("GET /api/v1/participants/{participant}/history", s.participantHistory)
	mux.HandleFunc("GET /api/v1/participation/{pollId}/{participant}", s.participation)
	if s.svc.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.svc.Metrics, promhttp.HandlerOpts{}))
	}

	return cors.New(cors.Options{
		AllowedOrigins: s.conf.Get().AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)
}

func (s *Server) listPolls(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Visible.ListVisiblePolls(r.Context(), r.URL.Query().Get("viewer"))
	s.respond(w, list, err)
}

func (s *Server) getPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := s.svc.Polls.GetPoll(r.Context(), r.PathValue("id"))
	s.respond(w, poll, err)
}

func (s *Server) pollResults(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Results.PollResults(r.Context(), r.PathValue("id"))
	s.respond(w, stats, err)
}

func (s *Server) creatorPolls(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Polls.PollsByCreator(r.Context(), r.PathValue("creator"))
	s.respond(w, list, err)
}

func (s *Server) participantHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.Results.ParticipantHistory(r.Context(), r.PathValue("participant"))
	s.respond(w, history, err)
}

func (s *Server) participation(w http.ResponseWriter, r *http.Request) {
	ok, err := s.svc.Participation.HasParticipated(r.Context(), r.PathValue("pollId"), r.PathValue("participant"))
	s.respond(w, map[string]bool{"participated": ok}, err)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) respond(w http.ResponseWriter, body any, err error) {
	status := http.StatusOK
	if err != nil {
		status = statusOf(err)
		if status == http.StatusInternalServerError {
			s.log.Error("request failed", "err", err)
		}
		body = errorBody{Error: err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Debug("writing response", "err", err)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, common.ErrPollNotFound), errors.Is(err, common.ErrNotParticipating):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidPollSpecification), errors.Is(err, common.ErrAnswerSchemaMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
