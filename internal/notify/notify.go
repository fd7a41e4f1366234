// Package notify реализует канал пользовательских уведомлений (toast).
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Level задаёт тип уведомления.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Notification описывает одно сообщение для пользователя.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	UserID  string    `json:"userId,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier доставляет уведомления пользователю. Вызов не должен блокировать вызывающего.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Success создаёт уведомление об успехе.
func Success(userID, msg string) Notification {
	return Notification{Level: LevelSuccess, Message: msg, UserID: userID, At: time.Now().UTC()}
}

// Error создаёт уведомление об ошибке.
func Error(userID, msg string) Notification {
	return Notification{Level: LevelError, Message: msg, UserID: userID, At: time.Now().UTC()}
}

// Info создаёт информационное уведомление.
func Info(userID, msg string) Notification {
	return Notification{Level: LevelInfo, Message: msg, UserID: userID, At: time.Now().UTC()}
}

// LogNotifier пишет уведомления в журнал.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier создаёт уведомитель поверх zap.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify записывает уведомление в журнал.
func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	l.logger.Info("toast",
		zap.String("level", string(n.Level)),
		zap.String("message", n.Message),
		zap.String("userID", n.UserID),
	)
}

// Multi рассылает уведомление во все переданные каналы.
type Multi []Notifier

// Notify передаёт уведомление каждому каналу по очереди.
func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(ctx, n)
		}
	}
}
