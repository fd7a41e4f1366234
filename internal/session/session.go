// Package session хранит текущего пользователя и его профиль и реализует вход, регистрацию и выход.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/coffeeshop/internal/model"
	"github.com/mmeshcher/coffeeshop/internal/notify"
	"github.com/mmeshcher/coffeeshop/internal/repository"
)

// Repository описывает операции удалённого хранилища, используемые хранилищем сессии.
type Repository interface {
	CreateUser(ctx context.Context, name, email string, passwordHash []byte, initialCents int64) (*model.Profile, error)
	GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error)
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	SetCredits(ctx context.Context, id string, cents int64) (*model.Profile, error)
}

// Snapshot хранит локальную копию профиля, переживающую перезапуск процесса.
type Snapshot interface {
	SaveProfile(ctx context.Context, p *model.Profile) error
	LoadProfile(ctx context.Context) (*model.Profile, error)
	ClearProfile(ctx context.Context) error
}

// Listener вызывается при смене текущего пользователя; nil означает выход.
type Listener = func(p *model.Profile)

// Store хранит состояние сессии.
type Store struct {
	repo     Repository
	snapshot Snapshot
	notifier notify.Notifier
	logger   *zap.Logger

	mu        sync.RWMutex
	current   *model.Profile
	listeners []Listener

	booting  atomic.Bool
	inflight atomic.Int32
}

// NewStore создаёт хранилище сессии. snapshot может быть nil.
// До вызова Restore хранилище считается загружающимся.
func NewStore(repo Repository, snapshot Snapshot, notifier notify.Notifier, logger *zap.Logger) *Store {
	s := &Store{
		repo:     repo,
		snapshot: snapshot,
		notifier: notifier,
		logger:   logger,
	}
	s.booting.Store(true)
	return s
}

// Current возвращает копию профиля текущего пользователя или nil.
func (s *Store) Current() *model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil
	}
	p := *s.current
	return &p
}

// Loading сообщает, идёт ли начальная загрузка или операция входа/регистрации.
func (s *Store) Loading() bool {
	return s.booting.Load() || s.inflight.Load() > 0
}

// Subscribe регистрирует обработчик смены текущего пользователя.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) track() func() {
	s.inflight.Add(1)
	return func() { s.inflight.Add(-1) }
}

// Restore восстанавливает сессию из локального снимка, перечитывая профиль из хранилища.
func (s *Store) Restore(ctx context.Context) {
	defer s.booting.Store(false)

	if s.snapshot == nil {
		return
	}

	cached, err := s.snapshot.LoadProfile(ctx)
	if err != nil {
		s.logger.Warn("load cached profile", zap.Error(err))
		return
	}
	if cached == nil {
		return
	}

	p, err := s.repo.GetProfile(ctx, cached.ID)
	if err != nil {
		s.logger.Warn("refresh cached profile", zap.Error(err), zap.String("userID", cached.ID))
		if errors.Is(err, repository.ErrUserNotFound) {
			s.clearSnapshot(ctx)
		}
		return
	}

	s.setCurrent(ctx, p)
	s.logger.Info("session restored", zap.String("userID", p.ID))
}

// Login проверяет email и пароль и делает профиль текущим.
func (s *Store) Login(ctx context.Context, email, password string) (*model.Profile, error) {
	defer s.track()()

	email = normalizeEmail(email)

	ident, err := s.repo.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, s.fail(ctx, "", "login", model.ErrInvalidCredentials)
		}
		return nil, s.fail(ctx, "", "login", model.Remote("sign in", err))
	}

	if err := bcrypt.CompareHashAndPassword(ident.PasswordHash, []byte(password)); err != nil {
		return nil, s.fail(ctx, "", "login", model.ErrInvalidCredentials)
	}

	p, err := s.repo.GetProfile(ctx, ident.ID)
	if err != nil {
		return nil, s.fail(ctx, ident.ID, "login", model.Remote("fetch profile", err))
	}

	s.setCurrent(ctx, p)
	s.notifier.Notify(ctx, notify.Success(p.ID, "Welcome back!"))
	s.notifier.Notify(ctx, notify.Success(p.ID, "Logged in as "+string(p.Role)))
	s.logger.Info("user logged in", zap.String("userID", p.ID))

	return s.Current(), nil
}

// Register создаёт учётную запись с начальным балансом и сразу выполняет вход.
func (s *Store) Register(ctx context.Context, name, email, password string) (*model.Profile, error) {
	defer s.track()()

	email = normalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, s.fail(ctx, "", "register", err)
	}

	p, err := s.repo.CreateUser(ctx, strings.TrimSpace(name), email, hash, repository.ToCents(model.InitialCredits))
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, s.fail(ctx, "", "register", model.ErrEmailAlreadyInUse)
		}
		return nil, s.fail(ctx, "", "register", model.Remote("sign up", err))
	}

	s.setCurrent(ctx, p)
	s.notifier.Notify(ctx, notify.Success(p.ID,
		"Account created successfully! "+model.InitialCredits.String()+" credits added to your account."))
	s.logger.Info("user registered", zap.String("userID", p.ID))

	return s.Current(), nil
}

// Logout сбрасывает текущего пользователя. Повторный вызов безопасен.
func (s *Store) Logout(ctx context.Context) {
	var userID string
	if p := s.Current(); p != nil {
		userID = p.ID
	}

	s.setCurrent(ctx, nil)
	s.notifier.Notify(ctx, notify.Info(userID, "You have been logged out"))
}

// UpdateCredits сохраняет новый баланс текущего пользователя.
// Без текущего пользователя вызов только журналируется.
func (s *Store) UpdateCredits(ctx context.Context, balance decimal.Decimal) error {
	p := s.Current()
	if p == nil {
		s.logger.Warn("update credits without current user")
		return nil
	}

	if balance.IsNegative() {
		return s.fail(ctx, p.ID, "update credits", model.ErrNegativeCredits)
	}

	updated, err := s.repo.SetCredits(ctx, p.ID, repository.ToCents(balance))
	if err != nil {
		s.logger.Error("update credits", zap.Error(err), zap.String("userID", p.ID))
		s.notifier.Notify(ctx, notify.Error(p.ID, "Failed to update credits"))
		return model.Remote("update credits", err)
	}

	s.Sync(ctx, updated)
	s.notifier.Notify(ctx, notify.Success(p.ID, "Credits updated"))
	return nil
}

// Sync заменяет профиль в памяти после изменения, выполненного другим компонентом.
// Профиль другого пользователя игнорируется.
func (s *Store) Sync(ctx context.Context, p *model.Profile) {
	if p == nil {
		return
	}

	s.mu.Lock()
	if s.current == nil || s.current.ID != p.ID {
		s.mu.Unlock()
		return
	}
	cp := *p
	s.current = &cp
	s.mu.Unlock()

	s.saveSnapshot(ctx, &cp)
}

func (s *Store) setCurrent(ctx context.Context, p *model.Profile) {
	var next *model.Profile
	if p != nil {
		cp := *p
		next = &cp
	}

	s.mu.Lock()
	prevID := ""
	if s.current != nil {
		prevID = s.current.ID
	}
	s.current = next
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if next == nil {
		s.clearSnapshot(ctx)
	} else {
		s.saveSnapshot(ctx, next)
	}

	nextID := ""
	if next != nil {
		nextID = next.ID
	}
	if prevID == nextID {
		return
	}
	for _, l := range listeners {
		if next == nil {
			l(nil)
			continue
		}
		cp := *next
		l(&cp)
	}
}

func (s *Store) saveSnapshot(ctx context.Context, p *model.Profile) {
	if s.snapshot == nil {
		return
	}
	if err := s.snapshot.SaveProfile(ctx, p); err != nil {
		s.logger.Warn("save profile snapshot", zap.Error(err))
	}
}

func (s *Store) clearSnapshot(ctx context.Context) {
	if s.snapshot == nil {
		return
	}
	if err := s.snapshot.ClearProfile(ctx); err != nil {
		s.logger.Warn("clear profile snapshot", zap.Error(err))
	}
}

// fail журналирует ошибку, показывает её пользователю и возвращает вызывающему.
func (s *Store) fail(ctx context.Context, userID, op string, err error) error {
	s.logger.Warn(op+" failed", zap.Error(err), zap.String("userID", userID))
	s.notifier.Notify(ctx, notify.Error(userID, userMessage(op, err)))
	return err
}

func userMessage(op string, err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, model.ErrEmailAlreadyInUse):
		return "This email is already registered"
	case errors.Is(err, model.ErrNegativeCredits):
		return "Credits cannot be negative"
	case op == "login":
		return "Login failed"
	case op == "register":
		return "Registration failed"
	default:
		return "Something went wrong"
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
