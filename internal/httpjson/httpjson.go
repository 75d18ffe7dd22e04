// Package httpjson reúne os helpers de resposta JSON usados pelo HTTP do
// gateway e do directory-server.
package httpjson

import (
	"encoding/json"
	"io"
	"net/http"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("gateway/http")

// MaxBodyBytes limita o corpo lido por Decode.
const MaxBodyBytes = 1 << 20

// ErrorBody é o formato de toda resposta de erro.
type ErrorBody struct {
	Error string `json:"error"`
}

// Write codifica v no corpo da resposta com o status dado.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugw("Failed to write response", "err", err)
	}
}

func Error(w http.ResponseWriter, status int, msg string) {
	Write(w, status, ErrorBody{Error: msg})
}

// Decode lê o corpo JSON da requisição em v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	return dec.Decode(v)
}
