package service

import (
	"context"
	"sort"
	"sync"

	"github.com/kursadbilgin/push-fanout/internal/domain"
	"github.com/kursadbilgin/push-fanout/internal/gateway"
	"github.com/kursadbilgin/push-fanout/internal/queue"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

// fakeUserRepo is safe for concurrent use by the dispatcher.
type fakeUserRepo struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	cleared     []string
	getByIDFn   func(ctx context.Context, id string) (*domain.User, error)
	listIDsFn   func(ctx context.Context) ([]string, error)
	listIDCalls int
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User, len(users))}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) ListIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	f.listIDCalls++
	f.mu.Unlock()

	if f.listIDsFn != nil {
		return f.listIDsFn(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeUserRepo) ClearDeliveryToken(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cleared = append(f.cleared, id)
	if u, ok := f.users[id]; ok {
		u.DeliveryToken = nil
	}
	return nil
}

func (f *fakeUserRepo) token(id string) *string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u, ok := f.users[id]; ok {
		return u.DeliveryToken
	}
	return nil
}

type fakeChatRepo struct {
	chats map[string]*domain.Chat
}

func (f *fakeChatRepo) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	if c, ok := f.chats[id]; ok {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

type fakeEventRepo struct {
	events                         map[string]*domain.Event
	accepted                       map[string][]string
	listAcceptedParticipantIDsFn   func(ctx context.Context, eventID string) ([]string, error)
	listAcceptedParticipantIDCalls int
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) ListAcceptedParticipantIDs(ctx context.Context, eventID string) ([]string, error) {
	f.listAcceptedParticipantIDCalls++
	if f.listAcceptedParticipantIDsFn != nil {
		return f.listAcceptedParticipantIDsFn(ctx, eventID)
	}
	return f.accepted[eventID], nil
}

type fakeBadgeRepo struct {
	badges map[string]*domain.Badge
}

func (f *fakeBadgeRepo) GetByID(ctx context.Context, id string) (*domain.Badge, error) {
	if b, ok := f.badges[id]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

type fakeRecordRepo struct {
	mu       sync.Mutex
	records  []domain.DeliveryRecord
	appendFn func(ctx context.Context, record *domain.DeliveryRecord) error
}

func (f *fakeRecordRepo) Append(ctx context.Context, record *domain.DeliveryRecord) error {
	if f.appendFn != nil {
		if err := f.appendFn(ctx, record); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeRecordRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.DeliveryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.DeliveryRecord
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecordRepo) forUser(userID string) []domain.DeliveryRecord {
	out, _ := f.ListByUser(context.Background(), userID, 0)
	return out
}

type sentMessage struct {
	token   string
	payload *gateway.Payload
}

type fakeGateway struct {
	mu     sync.Mutex
	sent   []sentMessage
	sendFn func(ctx context.Context, token string, payload *gateway.Payload) (string, error)
}

func (f *fakeGateway) Send(ctx context.Context, token string, payload *gateway.Payload) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{token: token, payload: payload})
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, token, payload)
	}
	return "msg-" + token, nil
}

func (f *fakeGateway) tokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.sent))
	for _, s := range f.sent {
		out = append(out, s.token)
	}
	sort.Strings(out)
	return out
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeConsumer struct {
	mu        sync.Mutex
	queues    []string
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	f.mu.Lock()
	f.queues = append(f.queues, queueName)
	f.mu.Unlock()

	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

// fixture wires a dispatcher and handlers over in-memory fakes.
type fixture struct {
	users    *fakeUserRepo
	chats    *fakeChatRepo
	events   *fakeEventRepo
	badges   *fakeBadgeRepo
	records  *fakeRecordRepo
	gateway  *fakeGateway
	dispatch *Dispatcher
	handlers *EventHandlers
}

func newFixture(users ...*domain.User) *fixture {
	f := &fixture{
		users:   newFakeUserRepo(users...),
		chats:   &fakeChatRepo{chats: map[string]*domain.Chat{}},
		events:  &fakeEventRepo{events: map[string]*domain.Event{}, accepted: map[string][]string{}},
		badges:  &fakeBadgeRepo{badges: map[string]*domain.Badge{}},
		records: &fakeRecordRepo{},
		gateway: &fakeGateway{},
	}

	recorder, err := NewDeliveryRecorder(f.records, f.users)
	if err != nil {
		panic(err)
	}
	f.dispatch, err = NewDispatcher(f.users, f.gateway, NewPayloadComposer(""), recorder, 0, zap.NewNop())
	if err != nil {
		panic(err)
	}
	f.handlers, err = NewEventHandlers(f.dispatch, f.users, f.chats, f.events, f.badges, zap.NewNop())
	if err != nil {
		panic(err)
	}
	return f
}

func activeUser(id string) *domain.User {
	return &domain.User{
		ID:            id,
		DisplayName:   "User " + id,
		DeliveryToken: strPtr("tok-" + id),
		Enabled:       true,
	}
}
