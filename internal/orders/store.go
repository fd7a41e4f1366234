// Package orders хранит заказы кофейни, оформляет новые заказы и меняет их статусы,
// синхронизируя локальное состояние с удалённым хранилищем.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/coffeeshop/internal/cache"
	"github.com/mmeshcher/coffeeshop/internal/catalog"
	"github.com/mmeshcher/coffeeshop/internal/model"
	"github.com/mmeshcher/coffeeshop/internal/notify"
	"github.com/mmeshcher/coffeeshop/internal/repository"
)

// DefaultPollInterval задаёт период резервной проверки готовых заказов.
const DefaultPollInterval = 15 * time.Second

// Repository описывает операции удалённого хранилища, используемые хранилищем заказов.
type Repository interface {
	PlaceOrder(ctx context.Context, o *model.Order) (*model.Profile, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to model.OrderStatus, updatedAt time.Time) (*model.Order, error)
	GetProfilesByIDs(ctx context.Context, ids []string) (map[string]model.Profile, error)
}

// Session даёт доступ к текущему пользователю.
type Session interface {
	Current() *model.Profile
	Sync(ctx context.Context, p *model.Profile)
	Subscribe(l func(p *model.Profile))
}

// Snapshot хранит локальную копию списка заказов.
type Snapshot interface {
	SaveOrders(ctx context.Context, orders []model.Order) error
	LoadOrders(ctx context.Context) ([]model.Order, error)
}

// Deduper отмечает события, которые должны обрабатываться ровно один раз.
type Deduper interface {
	First(ctx context.Context, scope, id string) (bool, error)
}

// ChangeFeed сообщает об изменениях таблицы заказов.
type ChangeFeed interface {
	ListenOrderChanges(ctx context.Context, onChange func()) error
}

// Option настраивает Store.
type Option func(*Store)

// WithSnapshot включает локальный снимок заказов.
func WithSnapshot(s Snapshot) Option {
	return func(st *Store) { st.snapshot = s }
}

// WithDeduper задаёт хранилище отметок об уведомлениях. По умолчанию отметки хранятся в памяти.
func WithDeduper(d Deduper) Option {
	return func(st *Store) { st.dedup = d }
}

// WithPollInterval задаёт период резервного опроса.
func WithPollInterval(d time.Duration) Option {
	return func(st *Store) {
		if d > 0 {
			st.pollInterval = d
		}
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// Store хранит заказы и реализует операции над ними.
type Store struct {
	repo     Repository
	session  Session
	notifier notify.Notifier
	logger   *zap.Logger

	snapshot     Snapshot
	dedup        Deduper
	pollInterval time.Duration
	now          func() time.Time

	mu     sync.RWMutex
	orders []model.Order

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	refreshes singleflight.Group
	trigger   chan struct{}
}

// NewStore создаёт хранилище заказов.
func NewStore(repo Repository, session Session, notifier notify.Notifier, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		repo:         repo,
		session:      session,
		notifier:     notifier,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		now:          func() time.Time { return time.Now().UTC() },
		dedup:        cache.NewMemoryDeduper(),
		locks:        make(map[string]*sync.Mutex),
		trigger:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Orders возвращает копию всех заказов, новые первыми.
func (s *Store) Orders() []model.Order {
	return s.filter(func(model.Order) bool { return true })
}

// Get возвращает заказ из локального состояния.
func (s *Store) Get(id string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ID == id {
			return o, true
		}
	}
	return model.Order{}, false
}

// ForCurrentUser возвращает заказы текущего пользователя.
func (s *Store) ForCurrentUser() []model.Order {
	user := s.session.Current()
	if user == nil {
		return nil
	}
	return s.filter(func(o model.Order) bool { return o.UserID == user.ID })
}

// WithStatusIn возвращает заказы в любом из перечисленных статусов.
func (s *Store) WithStatusIn(statuses ...model.OrderStatus) []model.Order {
	set := make(map[model.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		set[st] = true
	}
	return s.filter(func(o model.Order) bool { return set[o.Status] })
}

// Active возвращает заказы, ожидающие приготовления или готовящиеся.
func (s *Store) Active() []model.Order {
	return s.WithStatusIn(model.OrderStatusPending, model.OrderStatusPreparing)
}

func (s *Store) filter(keep func(model.Order) bool) []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if keep(o) {
			res = append(res, o)
		}
	}
	return res
}

// PlaceOrder оформляет заказ текущего пользователя и списывает его стоимость.
func (s *Store) PlaceOrder(ctx context.Context, coffeeID string, milk model.MilkOption) (*model.Order, error) {
	user := s.session.Current()
	if user == nil {
		return nil, s.fail(ctx, "", "place order", model.ErrNotAuthenticated)
	}

	coffee, err := catalog.Coffee(coffeeID)
	if err != nil {
		return nil, s.fail(ctx, user.ID, "place order", err)
	}
	if _, err := catalog.Milk(milk); err != nil {
		return nil, s.fail(ctx, user.ID, "place order", err)
	}

	lock := s.userLock(user.ID)
	lock.Lock()
	defer lock.Unlock()

	// Баланс перечитывается под блокировкой: предыдущий заказ мог его уменьшить.
	user = s.session.Current()
	if user == nil {
		return nil, s.fail(ctx, "", "place order", model.ErrNotAuthenticated)
	}

	total := catalog.Price(coffee, milk)
	if user.Credits.LessThan(total) {
		return nil, s.fail(ctx, user.ID, "place order", &model.InsufficientCreditsError{
			Required:  total,
			Available: user.Credits,
		})
	}

	now := s.now()
	order := model.Order{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		UserName:   user.Name,
		CoffeeType: coffee,
		MilkOption: milk,
		Status:     model.OrderStatusPending,
		TotalPrice: total,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Списание доводится до конца даже если вызывающий ушёл.
	profile, err := s.repo.PlaceOrder(context.WithoutCancel(ctx), &order)
	if err != nil {
		var be *repository.BalanceError
		if errors.As(err, &be) {
			return nil, s.fail(ctx, user.ID, "place order", &model.InsufficientCreditsError{
				Required:  total,
				Available: repository.FromCents(be.AvailableCents),
			})
		}
		return nil, s.fail(ctx, user.ID, "place order", model.Remote("place order", err))
	}

	s.session.Sync(ctx, profile)
	s.upsert(order)

	s.notifier.Notify(ctx, notify.Success(user.ID, "Order placed successfully!"))
	s.logger.Info("order placed",
		zap.String("order", order.ID),
		zap.String("userID", user.ID),
		zap.String("total", total.String()),
	)

	return &order, nil
}

// UpdateOrderStatus переводит заказ в новый статус.
// Персонал может выполнить любой допустимый переход, владелец заказа только подтвердить получение готового заказа.
// Повторная установка того же статуса ничего не меняет.
// Ошибки показываются пользователю и журналируются; вызывающий может их игнорировать.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	user := s.session.Current()
	if user == nil {
		return nil, s.fail(ctx, "", "update order status", model.ErrNotAuthenticated)
	}

	current, err := s.lookup(ctx, orderID)
	if err != nil {
		return nil, s.fail(ctx, user.ID, "update order status", err)
	}

	if current.Status == status {
		return &current, nil
	}

	if !user.Role.IsStaff() && !isAcknowledgement(user, current, status) {
		return nil, s.fail(ctx, user.ID, "update order status", model.ErrForbidden)
	}

	if !model.CanTransition(current.Status, status) {
		return nil, s.fail(ctx, user.ID, "update order status", &model.InvalidTransitionError{
			From: current.Status,
			To:   status,
		})
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, current.Status, status, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			err = fmt.Errorf("%w: %s", model.ErrOrderNotFound, orderID)
		case errors.Is(err, repository.ErrStatusConflict):
			s.Trigger()
			err = &model.InvalidTransitionError{From: current.Status, To: status}
		default:
			err = model.Remote("update order status", err)
		}
		return nil, s.fail(ctx, user.ID, "update order status", err)
	}

	updated.UserName = current.UserName
	s.upsert(*updated)

	s.logger.Info("order status updated",
		zap.String("order", orderID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(status)),
		zap.String("by", user.ID),
	)

	// Владельцу сообщает собственный опрос готовых заказов, здесь подтверждение получает сотрудник.
	if status == model.OrderStatusReady {
		s.notifier.Notify(ctx, notify.Success(user.ID, fmt.Sprintf("Order for %s is ready!", updated.UserName)))
	}

	return updated, nil
}

func isAcknowledgement(user *model.Profile, o model.Order, to model.OrderStatus) bool {
	return o.UserID == user.ID && o.Status == model.OrderStatusReady && to == model.OrderStatusCompleted
}

func (s *Store) lookup(ctx context.Context, id string) (model.Order, error) {
	if o, ok := s.Get(id); ok {
		return o, nil
	}

	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return model.Order{}, fmt.Errorf("%w: %s", model.ErrOrderNotFound, id)
		}
		return model.Order{}, model.Remote("get order", err)
	}
	return *o, nil
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// upsert заменяет заказ с тем же идентификатором или добавляет новый в начало списка.
func (s *Store) upsert(o model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID == o.ID {
			s.orders[i] = o
			return
		}
	}
	s.orders = append([]model.Order{o}, s.orders...)
}

func (s *Store) fail(ctx context.Context, userID, op string, err error) error {
	s.logger.Warn(op+" failed", zap.Error(err), zap.String("userID", userID))
	s.notifier.Notify(ctx, notify.Error(userID, userMessage(err)))
	return err
}

func userMessage(err error) string {
	var ice *model.InsufficientCreditsError
	switch {
	case errors.As(err, &ice):
		return ice.Error() + ". Please top up your account."
	case errors.Is(err, model.ErrNotAuthenticated):
		return "You must be logged in to place an order"
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrForbidden),
		errors.Is(err, catalog.ErrUnknownCoffee), errors.Is(err, catalog.ErrUnknownMilk):
		return err.Error()
	case errors.Is(err, model.ErrOrderNotFound):
		return "Order not found"
	default:
		return "Something went wrong, please try again"
	}
}
