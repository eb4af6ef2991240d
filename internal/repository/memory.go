package repository

import (
	"context"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go-authorisation-service/internal/model"
	"go-authorisation-service/pkg/apierror"
)

// MemoryUserRepository keeps users in process. It backs STORE_BACKEND=memory
// and the HTTP tests.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	nextID     int64
	users      map[int64]model.User
	bcryptCost int
}

func NewMemoryUserRepository(bcryptCost int) *MemoryUserRepository {
	return &MemoryUserRepository{users: map[int64]model.User{}, bcryptCost: bcryptCost}
}

func (r *MemoryUserRepository) Get(_ context.Context, id int64) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *MemoryUserRepository) List(_ context.Context, filter model.UserFilter) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, u.ID) {
			continue
		}
		if len(filter.Usernames) > 0 && !slices.Contains(filter.Usernames, u.Username) {
			continue
		}
		if len(filter.Names) > 0 && !slices.Contains(filter.Names, u.Name) {
			continue
		}
		if !containsAll(u.Scopes, filter.Scopes) {
			continue
		}
		users = append(users, cloneUser(u))
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *MemoryUserRepository) Create(_ context.Context, input model.CreateUser) (model.User, error) {
	hash, err := hashPassword(input.Password, r.bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	username := strings.TrimSpace(input.Username)
	if r.usernameTakenLocked(username, 0) {
		return model.User{}, apierror.New("ALREADY_EXISTS", "record already exists", username, http.StatusConflict)
	}

	r.nextID++
	u := model.User{
		ID:           r.nextID,
		Username:     username,
		PasswordHash: hash,
		Name:         input.Name,
		Scopes:       slices.Clone(nonNilScopes(input.Scopes)),
	}
	r.users[u.ID] = u

	return cloneUser(u), nil
}

func (r *MemoryUserRepository) Update(_ context.Context, id int64, input model.UpdateUser) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}

	username := strings.TrimSpace(input.Username)
	if r.usernameTakenLocked(username, id) {
		return model.User{}, apierror.New("ALREADY_EXISTS", "record already exists", username, http.StatusConflict)
	}

	u.Username = username
	u.Name = input.Name
	u.Scopes = slices.Clone(nonNilScopes(input.Scopes))
	r.users[id] = u

	return cloneUser(u), nil
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id int64, password string) (model.User, error) {
	hash, err := hashPassword(password, r.bcryptCost)
	if err != nil {
		return model.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	u.PasswordHash = hash
	r.users[id] = u

	return cloneUser(u), nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) VerifyPassword(ctx context.Context, username string, password string) (model.User, error) {
	u, err := r.GetByUsername(ctx, username)
	if err != nil {
		return model.User{}, model.ErrInvalidCredentials
	}
	if !passwordMatches(u.PasswordHash, password) {
		return model.User{}, model.ErrInvalidCredentials
	}
	return u, nil
}

func (r *MemoryUserRepository) exists(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.users[id]
	return ok
}

func (r *MemoryUserRepository) usernameTakenLocked(username string, exceptID int64) bool {
	for _, u := range r.users {
		if u.Username == username && u.ID != exceptID {
			return true
		}
	}
	return false
}

// MemorySessionRepository keeps sessions in process. A single mutex makes
// Rotate atomic with respect to concurrent logins.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	nextID   int64
	sessions map[int64]model.Session
	users    *MemoryUserRepository
	duration time.Duration
	now      func() time.Time
}

func NewMemorySessionRepository(users *MemoryUserRepository, duration time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: map[int64]model.Session{},
		users:    users,
		duration: duration,
		now:      time.Now,
	}
}

func (r *MemorySessionRepository) Get(_ context.Context, id int64) (model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return model.Session{}, model.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (r *MemorySessionRepository) List(_ context.Context, filter model.SessionFilter) ([]model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]model.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if matchesSessionFilter(s, filter) {
			sessions = append(sessions, cloneSession(s))
		}
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

func (r *MemorySessionRepository) Create(_ context.Context, userID int64, ip *string) (model.Session, error) {
	if err := r.checkUser(userID); err != nil {
		return model.Session{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.createLocked(userID, ip), nil
}

func (r *MemorySessionRepository) Update(_ context.Context, s model.Session) (model.Session, error) {
	if err := r.checkUser(s.UserID); err != nil {
		return model.Session{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return model.Session{}, model.ErrSessionNotFound
	}
	r.sessions[s.ID] = cloneSession(s)

	return cloneSession(s), nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return model.ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepository) Rotate(_ context.Context, userID int64, ip *string) (model.Session, int64, error) {
	if r.users != nil && !r.users.exists(userID) {
		return model.Session{}, 0, model.ErrUserNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	var disabled int64
	for id, s := range r.sessions {
		if s.UserID == userID && !s.Disabled && !s.Expires.Before(now) {
			s.Disabled = true
			r.sessions[id] = s
			disabled++
		}
	}

	return r.createLocked(userID, ip), disabled, nil
}

func (r *MemorySessionRepository) createLocked(userID int64, ip *string) model.Session {
	now := r.now().UTC()
	r.nextID++

	s := model.Session{
		ID:      r.nextID,
		UserID:  userID,
		Created: now,
		Expires: now.Add(r.duration),
		IP:      cloneString(ip),
	}
	r.sessions[s.ID] = s

	return cloneSession(s)
}

func (r *MemorySessionRepository) checkUser(userID int64) error {
	if r.users == nil || r.users.exists(userID) {
		return nil
	}
	return apierror.New("BAD_REQUEST", "referenced record does not exist", "user_id", http.StatusBadRequest)
}

func matchesSessionFilter(s model.Session, filter model.SessionFilter) bool {
	if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, s.ID) {
		return false
	}
	if len(filter.UserIDs) > 0 && !slices.Contains(filter.UserIDs, s.UserID) {
		return false
	}
	if len(filter.IPs) > 0 && (s.IP == nil || !slices.Contains(filter.IPs, *s.IP)) {
		return false
	}
	if filter.Disabled != nil && s.Disabled != *filter.Disabled {
		return false
	}
	if filter.CreatedGTE != nil && s.Created.Before(*filter.CreatedGTE) {
		return false
	}
	if filter.CreatedLTE != nil && s.Created.After(*filter.CreatedLTE) {
		return false
	}
	if filter.ExpiresGTE != nil && s.Expires.Before(*filter.ExpiresGTE) {
		return false
	}
	if filter.ExpiresLTE != nil && s.Expires.After(*filter.ExpiresLTE) {
		return false
	}
	return true
}

func containsAll(have []string, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

func cloneUser(u model.User) model.User {
	u.Scopes = slices.Clone(nonNilScopes(u.Scopes))
	return u
}

func cloneSession(s model.Session) model.Session {
	s.IP = cloneString(s.IP)
	return s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
