package service

import (
	"context"

	"go-authorisation-service/internal/event"
	"go-authorisation-service/internal/model"
)

type userStore interface {
	Get(ctx context.Context, id int64) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	List(ctx context.Context, filter model.UserFilter) ([]model.User, error)
	Create(ctx context.Context, input model.CreateUser) (model.User, error)
	Update(ctx context.Context, id int64, input model.UpdateUser) (model.User, error)
	UpdatePassword(ctx context.Context, id int64, password string) (model.User, error)
	Delete(ctx context.Context, id int64) error
}

// UserService returns profiles only; password hashes never leave the store layer.
type UserService struct {
	store userStore
	bus   event.Bus
}

func NewUserService(store userStore, bus event.Bus) *UserService {
	return &UserService{store: store, bus: bus}
}

func (s *UserService) Get(ctx context.Context, id int64) (model.UserProfile, error) {
	user, err := s.store.Get(ctx, id)
	if err != nil {
		return model.UserProfile{}, err
	}
	return user.Profile(), nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (model.UserProfile, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return model.UserProfile{}, err
	}
	return user.Profile(), nil
}

func (s *UserService) List(ctx context.Context, filter model.UserFilter) ([]model.UserProfile, error) {
	users, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	profiles := make([]model.UserProfile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, user.Profile())
	}
	return profiles, nil
}

func (s *UserService) Create(ctx context.Context, actorID int64, input model.CreateUser) (model.UserProfile, error) {
	user, err := s.store.Create(ctx, input)
	if err != nil {
		return model.UserProfile{}, err
	}

	profile := user.Profile()
	s.publish(event.New(event.TypeUserCreated, profile, actorID))
	return profile, nil
}

func (s *UserService) Update(ctx context.Context, actorID int64, id int64, input model.UpdateUser) (model.UserProfile, error) {
	user, err := s.store.Update(ctx, id, input)
	if err != nil {
		return model.UserProfile{}, err
	}

	profile := user.Profile()
	s.publish(event.New(event.TypeUserUpdated, profile, actorID))
	return profile, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, actorID int64, id int64, password string) (model.UserProfile, error) {
	user, err := s.store.UpdatePassword(ctx, id, password)
	if err != nil {
		return model.UserProfile{}, err
	}

	profile := user.Profile()
	s.publish(event.New(event.TypeUserPasswordChanged, map[string]int64{"id": id}, actorID))
	return profile, nil
}

func (s *UserService) Delete(ctx context.Context, actorID int64, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(event.New(event.TypeUserDeleted, map[string]int64{"id": id}, actorID))
	return nil
}

func (s *UserService) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
