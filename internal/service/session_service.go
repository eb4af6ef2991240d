package service

import (
	"context"

	"go-authorisation-service/internal/event"
	"go-authorisation-service/internal/model"
)

type sessionStore interface {
	Get(ctx context.Context, id int64) (model.Session, error)
	List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error)
	Create(ctx context.Context, userID int64, ip *string) (model.Session, error)
	Update(ctx context.Context, s model.Session) (model.Session, error)
	Delete(ctx context.Context, id int64) error
}

type SessionService struct {
	store sessionStore
	bus   event.Bus
}

func NewSessionService(store sessionStore, bus event.Bus) *SessionService {
	return &SessionService{store: store, bus: bus}
}

func (s *SessionService) Get(ctx context.Context, id int64) (model.Session, error) {
	return s.store.Get(ctx, id)
}

func (s *SessionService) List(ctx context.Context, filter model.SessionFilter) ([]model.Session, error) {
	return s.store.List(ctx, filter)
}

func (s *SessionService) Create(ctx context.Context, actorID int64, input model.CreateSession) (model.Session, error) {
	session, err := s.store.Create(ctx, input.UserID, input.IP)
	if err != nil {
		return model.Session{}, err
	}

	s.publish(event.New(event.TypeSessionCreated, session, actorID))
	return session, nil
}

// Update applies the patch on top of the stored session.
func (s *SessionService) Update(ctx context.Context, actorID int64, id int64, patch model.UpdateSession) (model.Session, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return model.Session{}, err
	}

	updated, err := s.store.Update(ctx, patch.Apply(current))
	if err != nil {
		return model.Session{}, err
	}

	eventType := event.TypeSessionUpdated
	if updated.Disabled && !current.Disabled {
		eventType = event.TypeSessionDisabled
	}
	s.publish(event.New(eventType, updated, actorID))
	return updated, nil
}

func (s *SessionService) Delete(ctx context.Context, actorID int64, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(event.New(event.TypeSessionDeleted, map[string]int64{"id": id}, actorID))
	return nil
}

func (s *SessionService) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
