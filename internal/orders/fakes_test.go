package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/coffeeshop/internal/model"
	"github.com/mmeshcher/coffeeshop/internal/notify"
	"github.com/mmeshcher/coffeeshop/internal/repository"
)

type fakeRepo struct {
	mu       sync.Mutex
	profiles map[string]model.Profile
	orders   []model.Order

	placeErr    error
	listErr     error
	profilesErr error
	updateErr   error

	listCalls   int
	updateCalls int
	listGate    chan struct{}
}

func newFakeRepo(profiles ...model.Profile) *fakeRepo {
	r := &fakeRepo{profiles: map[string]model.Profile{}}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

func (r *fakeRepo) PlaceOrder(_ context.Context, o *model.Order) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.placeErr != nil {
		return nil, r.placeErr
	}
	p, ok := r.profiles[o.UserID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	available := repository.ToCents(p.Credits)
	total := repository.ToCents(o.TotalPrice)
	if available < total {
		return nil, &repository.BalanceError{AvailableCents: available}
	}

	stored := *o
	stored.UserName = ""
	r.orders = append([]model.Order{stored}, r.orders...)

	p.Credits = repository.FromCents(available - total)
	r.profiles[p.ID] = p
	return &p, nil
}

func (r *fakeRepo) GetOrder(_ context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (r *fakeRepo) ListOrders(_ context.Context) ([]model.Order, error) {
	r.mu.Lock()
	r.listCalls++
	gate := r.listGate
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]model.Order(nil), r.orders...), nil
}

func (r *fakeRepo) UpdateOrderStatus(_ context.Context, id string, from, to model.OrderStatus, updatedAt time.Time) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updateCalls++
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	for i := range r.orders {
		if r.orders[i].ID != id {
			continue
		}
		if r.orders[i].Status != from {
			return nil, repository.ErrStatusConflict
		}
		r.orders[i].Status = to
		r.orders[i].UpdatedAt = updatedAt
		o := r.orders[i]
		return &o, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (r *fakeRepo) GetProfilesByIDs(_ context.Context, ids []string) (map[string]model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.profilesErr != nil {
		return nil, r.profilesErr
	}
	res := make(map[string]model.Profile, len(ids))
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			res[id] = p
		}
	}
	return res, nil
}

func (r *fakeRepo) addOrder(o model.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append([]model.Order{o}, r.orders...)
}

func (r *fakeRepo) setStatus(id string, status model.OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID == id {
			r.orders[i].Status = status
		}
	}
}

func (r *fakeRepo) order(id string) model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			return o
		}
	}
	return model.Order{}
}

func (r *fakeRepo) credits(id string) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profiles[id].Credits
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *fakeRepo) lists() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

type stubSession struct {
	mu        sync.Mutex
	current   *model.Profile
	listeners []func(p *model.Profile)
}

func (s *stubSession) Current() *model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

func (s *stubSession) Sync(_ context.Context, p *model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p == nil || s.current == nil || s.current.ID != p.ID {
		return
	}
	cp := *p
	s.current = &cp
}

func (s *stubSession) Subscribe(l func(p *model.Profile)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *stubSession) set(p *model.Profile) {
	s.mu.Lock()
	s.current = p
	listeners := append(([]func(*model.Profile))(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(p)
	}
}

type stubSnapshot struct {
	mu     sync.Mutex
	saved  []model.Order
	cached []model.Order
}

func (s *stubSnapshot) SaveOrders(_ context.Context, orders []model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append([]model.Order(nil), orders...)
	return nil
}

func (s *stubSnapshot) LoadOrders(_ context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached, nil
}

type recorder struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recorder) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, g := range r.got {
		if g.Message == msg {
			n++
		}
	}
	return n
}

func (r *recorder) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.got...)
}

func (r *recorder) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.got[len(r.got)-1]
}

type fakeFeed struct {
	subscribed chan func()
}

func (f *fakeFeed) ListenOrderChanges(ctx context.Context, onChange func()) error {
	f.subscribed <- onChange
	<-ctx.Done()
	return nil
}

func customer(id, name, credits string) model.Profile {
	return model.Profile{
		ID:      id,
		Name:    name,
		Email:   id + "@example.com",
		Credits: decimal.RequireFromString(credits),
		Role:    model.RoleCustomer,
	}
}

func barista(id string) model.Profile {
	return model.Profile{ID: id, Name: "Barista", Email: id + "@example.com", Role: model.RoleBarista}
}

func newTestStore(t *testing.T, repo Repository, sess Session, opts ...Option) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	return NewStore(repo, sess, rec, zap.NewNop(), opts...), rec
}
