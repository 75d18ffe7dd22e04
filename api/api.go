// Package api expõe o serviço por HTTP. Leitura de usuário passa pelo cache e
// pela fila de coalescência; também há criação de usuário, consulta de
// assentos e os endpoints de status do cache.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"seat-gateway/directory"
	"seat-gateway/internal/httpjson"
	"seat-gateway/lookup"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("gateway/api")

// Users é o caminho de leitura com cache para os usuários.
type Users interface {
	Get(ctx context.Context, id int) (directory.User, bool, error)
	Put(id int, u directory.User)
	Status() lookup.Status
	ClearCache()
	ClearLatency()
}

type Server struct {
	users Users
	dir   directory.Directory
}

func New(users Users, dir directory.Directory) *Server {
	return &Server{users: users, dir: dir}
}

// Routes devolve as rotas com recuperação de panic, sem a borda
// (request ID + CORS). Use quando o portão de admissão fica entre os dois.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{id}", s.getUser)
	mux.HandleFunc("POST /users", s.createUser)
	mux.HandleFunc("GET /cache", s.cacheStatus)
	mux.HandleFunc("GET /cache-status", s.cacheStatus)
	mux.HandleFunc("DELETE /cache", s.clearCache)
	mux.HandleFunc("DELETE /cache-status", s.clearLatency)
	mux.HandleFunc("GET /seats/assignments", s.seatAssignments)
	mux.HandleFunc("GET /seats/{seatId}/assignment", s.seatAssignment)
	mux.HandleFunc("GET /health", health)
	mux.HandleFunc("/", notFound)

	return Recover(mux)
}

// Handler devolve Routes já envolvido pela borda.
func (s *Server) Handler() http.Handler {
	return Edge(s.Routes())
}

// Edge aplica request ID e CORS. Preflights terminam aqui, então tudo que
// estiver dentro de Edge (inclusive o rate limit) nunca os vê.
func Edge(next http.Handler) http.Handler {
	return RequestID(CORS(next))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	u, found, err := s.users.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Errorw("Error fetching user", "id", id, "requestID", RequestIDFrom(r.Context()), "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !found {
		httpjson.Error(w, http.StatusNotFound, "User not found")
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req directory.CreateUserRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	u, err := s.dir.AddUser(r.Context(), req)
	if errors.Is(err, directory.ErrInvalidUser) {
		httpjson.Error(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	if err != nil {
		log.Errorw("Error creating user", "requestID", RequestIDFrom(r.Context()), "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.users.Put(u.ID, u)
	httpjson.Write(w, http.StatusCreated, u)
}

func (s *Server) cacheStatus(w http.ResponseWriter, _ *http.Request) {
	httpjson.Write(w, http.StatusOK, s.users.Status())
}

func (s *Server) clearCache(w http.ResponseWriter, _ *http.Request) {
	s.users.ClearCache()
	log.Infow("Cache cleared")
	httpjson.Write(w, http.StatusOK, map[string]string{"message": "Cache cleared successfully"})
}

// clearLatency zera o tempo médio de resposta e devolve o status atualizado.
func (s *Server) clearLatency(w http.ResponseWriter, _ *http.Request) {
	s.users.ClearLatency()
	httpjson.Write(w, http.StatusOK, s.users.Status())
}

func (s *Server) seatAssignments(w http.ResponseWriter, r *http.Request) {
	all, err := s.dir.SeatAssignments(r.Context())
	if err != nil {
		log.Errorw("Error fetching seat assignments", "requestID", RequestIDFrom(r.Context()), "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if all == nil {
		all = []directory.SeatAssignment{}
	}
	httpjson.Write(w, http.StatusOK, all)
}

func (s *Server) seatAssignment(w http.ResponseWriter, r *http.Request) {
	seatID := r.PathValue("seatId")
	a, found, err := s.dir.SeatAssignment(r.Context(), seatID)
	if err != nil {
		log.Errorw("Error fetching seat assignment", "seat", seatID, "requestID", RequestIDFrom(r.Context()), "err", err)
		httpjson.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !found {
		httpjson.Error(w, http.StatusNotFound, "Seat assignment not found")
		return
	}
	httpjson.Write(w, http.StatusOK, a)
}

func health(w http.ResponseWriter, _ *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httpjson.Error(w, http.StatusNotFound, "Not found")
}
