// Package cache хранит локальный снимок сессии и заказов и отметки об однократных уведомлениях в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/coffeeshop/internal/model"
)

const (
	// KeyCurrentUser хранит профиль текущего пользователя.
	KeyCurrentUser = "currentUser"
	// KeyOrders хранит полный список заказов.
	KeyOrders = "cafeOrders"
	// KeyDedup хранит отметку об уже обработанном событии: dedup:{scope}:{id}.
	KeyDedup = "dedup:%s:%s"
)

// TTLDedup задаёт время жизни отметки об уведомлении.
var TTLDedup = 48 * time.Hour

// NewClient создаёт клиент Redis.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Snapshot сохраняет профиль и заказы под двумя фиксированными ключами.
type Snapshot struct {
	rdb redis.Cmdable
}

// NewSnapshot создаёт снимок поверх клиента Redis.
func NewSnapshot(rdb redis.Cmdable) *Snapshot {
	return &Snapshot{rdb: rdb}
}

// SaveProfile сохраняет профиль текущего пользователя.
func (s *Snapshot) SaveProfile(ctx context.Context, p *model.Profile) error {
	if p == nil {
		return s.ClearProfile(ctx)
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := s.rdb.Set(ctx, KeyCurrentUser, b, 0).Err(); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// LoadProfile возвращает сохранённый профиль или nil, если его нет.
func (s *Snapshot) LoadProfile(ctx context.Context) (*model.Profile, error) {
	b, err := s.rdb.Get(ctx, KeyCurrentUser).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	var p model.Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// ClearProfile удаляет сохранённый профиль.
func (s *Snapshot) ClearProfile(ctx context.Context) error {
	if err := s.rdb.Del(ctx, KeyCurrentUser).Err(); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	return nil
}

// SaveOrders сохраняет список заказов.
func (s *Snapshot) SaveOrders(ctx context.Context, orders []model.Order) error {
	b, err := EncodeOrders(orders)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, KeyOrders, b, 0).Err(); err != nil {
		return fmt.Errorf("save orders: %w", err)
	}
	return nil
}

// LoadOrders возвращает сохранённый список заказов или nil, если его нет.
func (s *Snapshot) LoadOrders(ctx context.Context) ([]model.Order, error) {
	b, err := s.rdb.Get(ctx, KeyOrders).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return DecodeOrders(b)
}

// EncodeOrders сериализует заказы в JSON; даты записываются строками ISO-8601.
func EncodeOrders(orders []model.Order) ([]byte, error) {
	b, err := json.Marshal(orders)
	if err != nil {
		return nil, fmt.Errorf("marshal orders: %w", err)
	}
	return b, nil
}

// DecodeOrders разбирает JSON-список заказов обратно в значения с датами.
func DecodeOrders(b []byte) ([]model.Order, error) {
	var orders []model.Order
	if err := json.Unmarshal(b, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// Deduper отмечает события, которые должны обрабатываться ровно один раз.
type Deduper struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewDeduper создаёт дедупликатор с TTLDedup.
func NewDeduper(rdb redis.Cmdable) *Deduper {
	return &Deduper{rdb: rdb, ttl: TTLDedup}
}

// First возвращает true, если событие scope/id встречается впервые.
func (d *Deduper) First(ctx context.Context, scope, id string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, scope, id), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup %s/%s: %w", scope, id, err)
	}
	return ok, nil
}
