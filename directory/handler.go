package directory

import (
	"errors"
	"net/http"
	"strconv"

	"seat-gateway/internal/httpjson"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("gateway/directory")

// NewHandler expõe d por HTTP sem cache na frente. Remote fala as mesmas
// rotas.
func NewHandler(d Directory) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "Invalid user ID")
			return
		}
		u, found, err := d.UserByID(r.Context(), id)
		if err != nil {
			log.Errorw("Error fetching user", "id", id, "err", err)
			httpjson.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !found {
			httpjson.Error(w, http.StatusNotFound, "User not found")
			return
		}
		httpjson.Write(w, http.StatusOK, u)
	})

	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.Error(w, http.StatusBadRequest, "Name and email are required")
			return
		}
		u, err := d.AddUser(r.Context(), req)
		if errors.Is(err, ErrInvalidUser) {
			httpjson.Error(w, http.StatusBadRequest, "Name and email are required")
			return
		}
		if err != nil {
			log.Errorw("Error creating user", "err", err)
			httpjson.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		httpjson.Write(w, http.StatusCreated, u)
	})

	mux.HandleFunc("GET /seats/assignments", func(w http.ResponseWriter, r *http.Request) {
		all, err := d.SeatAssignments(r.Context())
		if err != nil {
			log.Errorw("Error fetching seat assignments", "err", err)
			httpjson.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		httpjson.Write(w, http.StatusOK, all)
	})

	mux.HandleFunc("GET /seats/{seatId}/assignment", func(w http.ResponseWriter, r *http.Request) {
		seatID := r.PathValue("seatId")
		a, found, err := d.SeatAssignment(r.Context(), seatID)
		if err != nil {
			log.Errorw("Error fetching seat assignment", "seat", seatID, "err", err)
			httpjson.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !found {
			httpjson.Error(w, http.StatusNotFound, "Seat assignment not found")
			return
		}
		httpjson.Write(w, http.StatusOK, a)
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}
