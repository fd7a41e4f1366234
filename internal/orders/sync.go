package orders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/coffeeshop/internal/model"
	"github.com/mmeshcher/coffeeshop/internal/notify"
)

const (
	refreshKey       = "orders"
	readyScope       = "ready"
	feedRetryBackoff = 5 * time.Second
)

// Refresh перечитывает все заказы из хранилища и заменяет локальное состояние.
// Одновременные вызовы объединяются в один запрос. Ошибки журналируются.
func (s *Store) Refresh(ctx context.Context) error {
	_, err, _ := s.refreshes.Do(refreshKey, func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Store) refresh(ctx context.Context) error {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		s.logger.Error("fetch orders", zap.Error(err))
		return model.Remote("list orders", err)
	}

	s.joinOwnerNames(ctx, orders)

	s.mu.Lock()
	s.orders = orders
	s.mu.Unlock()

	if s.snapshot != nil && len(orders) > 0 {
		if err := s.snapshot.SaveOrders(ctx, orders); err != nil {
			s.logger.Warn("save orders snapshot", zap.Error(err))
		}
	}

	s.logger.Debug("orders refreshed", zap.Int("count", len(orders)))
	return nil
}

// joinOwnerNames заполняет имя владельца по профилям. Если профили недоступны,
// используются имена из текущего локального состояния.
func (s *Store) joinOwnerNames(ctx context.Context, orders []model.Order) {
	if len(orders) == 0 {
		return
	}

	seen := make(map[string]bool)
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		if !seen[o.UserID] {
			seen[o.UserID] = true
			ids = append(ids, o.UserID)
		}
	}

	profiles, err := s.repo.GetProfilesByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("fetch order owners", zap.Error(err))
		profiles = s.knownOwners()
	}

	for i := range orders {
		if p, ok := profiles[orders[i].UserID]; ok {
			orders[i].UserName = p.Name
		}
	}
}

func (s *Store) knownOwners() map[string]model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make(map[string]model.Profile)
	for _, o := range s.orders {
		res[o.UserID] = model.Profile{ID: o.UserID, Name: o.UserName}
	}
	return res
}

// Trigger запрашивает обновление заказов, не дожидаясь его. Повторные запросы до обработки склеиваются.
func (s *Store) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Load заполняет локальное состояние из снимка и выполняет первое обновление.
func (s *Store) Load(ctx context.Context) {
	if s.snapshot != nil {
		cached, err := s.snapshot.LoadOrders(ctx)
		if err != nil {
			s.logger.Warn("load orders snapshot", zap.Error(err))
		} else if len(cached) > 0 {
			s.mu.Lock()
			if len(s.orders) == 0 {
				s.orders = cached
			}
			s.mu.Unlock()
		}
	}

	_ = s.Refresh(ctx)
}

// Run запускает синхронизацию: обновление по ленте изменений и по смене пользователя,
// а также резервный опрос готовых заказов. Блокирует до отмены контекста.
// feed может быть nil, тогда остаётся только опрос.
func (s *Store) Run(ctx context.Context, feed ChangeFeed) error {
	s.session.Subscribe(func(*model.Profile) { s.Trigger() })
	s.Load(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-s.trigger:
				_ = s.Refresh(ctx)
			}
		}
	})

	if feed != nil {
		g.Go(func() error {
			s.listen(ctx, feed)
			return nil
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				_ = s.Refresh(ctx)
				s.CheckReady(ctx)
			}
		}
	})

	return g.Wait()
}

// listen держит подписку на ленту изменений и переподключается после ошибок.
func (s *Store) listen(ctx context.Context, feed ChangeFeed) {
	for {
		err := feed.ListenOrderChanges(ctx, s.Trigger)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("order change feed interrupted", zap.Error(err))
		}

		timer := time.NewTimer(feedRetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// CheckReady показывает текущему пользователю по одному уведомлению на каждый готовый заказ
// и подтверждает получение, переводя заказ в completed.
func (s *Store) CheckReady(ctx context.Context) {
	user := s.session.Current()
	if user == nil {
		return
	}

	for _, o := range s.ForCurrentUser() {
		if o.Status != model.OrderStatusReady {
			continue
		}

		if s.firstTime(ctx, o.ID) {
			s.notifier.Notify(ctx, notify.Success(user.ID, fmt.Sprintf("Your %s is ready!", o.CoffeeType.Name)))
		}

		if _, err := s.UpdateOrderStatus(ctx, o.ID, model.OrderStatusCompleted); err != nil {
			s.logger.Warn("acknowledge ready order", zap.Error(err), zap.String("order", o.ID))
		}
	}
}

func (s *Store) firstTime(ctx context.Context, orderID string) bool {
	first, err := s.dedup.First(ctx, readyScope, orderID)
	if err != nil {
		s.logger.Warn("ready dedup", zap.Error(err), zap.String("order", orderID))
		return false
	}
	return first
}
