package activity

import (
	"context"
	"log"
	"time"

	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/store"
)

// Logger journalise les actions métier en arrière-plan. L'écriture est
// volontairement best-effort: un journal en panne ne doit jamais faire
// échouer l'opération qui le nourrit.
type Logger struct {
	store store.ActivityStore
	// async contrôle le dispatch en goroutine; les tests écrivent en direct.
	async bool
}

func NewLogger(s store.ActivityStore) *Logger {
	return &Logger{store: s, async: true}
}

// NewSyncLogger écrit immédiatement, sans goroutine (tests).
func NewSyncLogger(s store.ActivityStore) *Logger {
	return &Logger{store: s}
}

type Entry struct {
	UserID      string
	UserName    string
	Action      string
	Entity      string
	EntityID    string
	Description string
	Metadata    map[string]any
	IPAddress   string
	UserAgent   string
}

// Record enregistre une entrée après coup. L'appelant n'attend pas le résultat.
func (l *Logger) Record(e Entry) {
	entry := &models.ActivityLog{
		UserID:      e.UserID,
		UserName:    e.UserName,
		Action:      e.Action,
		Entity:      e.Entity,
		EntityID:    e.EntityID,
		Description: e.Description,
		Metadata:    e.Metadata,
		IPAddress:   e.IPAddress,
		UserAgent:   e.UserAgent,
		CreatedAt:   time.Now(),
	}

	if !l.async {
		l.write(entry)
		return
	}
	go l.write(entry)
}

func (l *Logger) write(entry *models.ActivityLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Insert(ctx, entry); err != nil {
		log.Printf("⚠️ Journal d'activité indisponible (%s/%s): %v", entry.Action, entry.EntityID, err)
	}
}

// List expose la consultation paginée du journal (écrans d'administration).
func (l *Logger) List(ctx context.Context, f store.ActivityFilter) ([]models.ActivityLog, int64, error) {
	return l.store.List(ctx, f)
}
