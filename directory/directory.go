// Package directory é o backend lento atrás do caminho de leitura, com
// usuários e reservas de assento. Memory é o store em processo já populado.
// Handler expõe qualquer Directory por HTTP e Remote consome esse HTTP.
package directory

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidUser: AddUser sem nome ou sem email.
	ErrInvalidUser = errors.New("name and email are required")
)

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (r CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Email) == "" {
		return ErrInvalidUser
	}
	return nil
}

type SeatStatus string

const (
	SeatReserved SeatStatus = "reserved"
	SeatHeld     SeatStatus = "held"
	SeatSold     SeatStatus = "sold"
)

type SeatAssignment struct {
	SeatID     string     `json:"seatId"`
	UserID     int        `json:"userId"`
	UserName   string     `json:"userName"`
	UserEmail  string     `json:"userEmail"`
	Status     SeatStatus `json:"status"`
	ReservedAt *time.Time `json:"reservedAt,omitempty"`
}

// Directory é o contrato do backend. UserByID e SeatAssignment devolvem
// registro inexistente como found=false e erro nil.
type Directory interface {
	UserByID(ctx context.Context, id int) (User, bool, error)
	AddUser(ctx context.Context, req CreateUserRequest) (User, error)
	SeatAssignments(ctx context.Context) ([]SeatAssignment, error)
	SeatAssignment(ctx context.Context, seatID string) (SeatAssignment, bool, error)
}

// UserCacheKey é a chave de cache de um usuário.
func UserCacheKey(id int) string {
	return "user:" + strconv.Itoa(id)
}
