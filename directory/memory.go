package directory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory é um Directory em processo protegido por RWMutex.
type Memory struct {
	mu     sync.RWMutex
	users  map[int]User
	seats  map[string]SeatAssignment
	nextID int
}

var _ Directory = (*Memory)(nil)

// NewMemory devolve um store vazio. IDs de usuário começam em 1.
func NewMemory() *Memory {
	return &Memory{
		users:  make(map[int]User),
		seats:  make(map[string]SeatAssignment),
		nextID: 1,
	}
}

// NewSeededMemory devolve um store com três usuários de demonstração e as
// reservas deles. Os horários de reserva são relativos a now.
func NewSeededMemory(now time.Time) *Memory {
	m := NewMemory()
	john := m.put(User{ID: 1, Name: "John Doe", Email: "john@example.com"})
	jane := m.put(User{ID: 2, Name: "Jane Smith", Email: "jane@example.com"})
	alice := m.put(User{ID: 3, Name: "Alice Johnson", Email: "alice@example.com"})

	seed := []struct {
		seat   string
		user   User
		status SeatStatus
		ago    time.Duration
	}{
		{"A-1-02", john, SeatReserved, 5 * time.Minute},
		{"A-1-03", john, SeatReserved, 5 * time.Minute},
		{"A-1-05", jane, SeatHeld, 2 * time.Minute},
		{"A-1-06", jane, SeatHeld, 2 * time.Minute},
		{"A-1-08", alice, SeatSold, 30 * time.Minute},
		{"A-1-09", alice, SeatSold, 30 * time.Minute},
		{"B-2-10", john, SeatReserved, 10 * time.Minute},
		{"C-3-15", jane, SeatHeld, 3 * time.Minute},
		{"D-4-20", alice, SeatSold, time.Hour},
	}
	for _, s := range seed {
		at := now.Add(-s.ago).UTC()
		m.seats[s.seat] = SeatAssignment{
			SeatID:     s.seat,
			UserID:     s.user.ID,
			UserName:   s.user.Name,
			UserEmail:  s.user.Email,
			Status:     s.status,
			ReservedAt: &at,
		}
	}
	return m
}

func (m *Memory) put(u User) User {
	m.users[u.ID] = u
	if u.ID >= m.nextID {
		m.nextID = u.ID + 1
	}
	return u
}

func (m *Memory) UserByID(_ context.Context, id int) (User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *Memory) AddUser(_ context.Context, req CreateUserRequest) (User, error) {
	if err := req.Validate(); err != nil {
		return User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(User{ID: m.nextID, Name: req.Name, Email: req.Email}), nil
}

// SeatAssignments devolve todas as reservas ordenadas pelo ID do assento.
func (m *Memory) SeatAssignments(_ context.Context) ([]SeatAssignment, error) {
	m.mu.RLock()
	out := make([]SeatAssignment, 0, len(m.seats))
	for _, a := range m.seats {
		out = append(out, a)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
	return out, nil
}

func (m *Memory) SeatAssignment(_ context.Context, seatID string) (SeatAssignment, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.seats[seatID]
	return a, ok, nil
}

// SeatAssignmentsByUser devolve as reservas de um usuário.
func (m *Memory) SeatAssignmentsByUser(ctx context.Context, userID int) ([]SeatAssignment, error) {
	all, err := m.SeatAssignments(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}
