package store

import (
	"context"
	"time"

	"parsikala_back_end/internal/models"
)

// Autorité stock & prix. TryReserve/Release doivent être atomiques au niveau
// du stockage : jamais de lecture-puis-écriture applicative non protégée.
type ProductStore interface {
	Get(ctx context.Context, productID string) (*models.Product, error)
	GetPrice(ctx context.Context, productID string) (int64, error)
	GetStock(ctx context.Context, productID string) (int, error)
	// TryReserve décrémente le stock de qty si et seulement si le stock
	// résultant reste >= 0. Échoue avec INSUFFICIENT_STOCK sinon.
	TryReserve(ctx context.Context, productID string, qty int, orderID string) error
	// Release ré-incrémente le stock (compensation d'une réservation).
	Release(ctx context.Context, productID string, qty int, orderID string) error

	Insert(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, productID string) error
	List(ctx context.Context, limit int) ([]models.Product, error)
	// AdjustStock applique un restock (delta) ou un ajustement (valeur absolue)
	// et journalise le mouvement. Renvoie (ancien, nouveau) stock.
	AdjustStock(ctx context.Context, productID string, quantity int, movementType, reason, userID string) (int, int, error)
	Movements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error)
}

type OrderFilter struct {
	UserID    string // vide = toutes (admin)
	Status    models.OrderStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	MinAmount int64
	MaxAmount int64
	Page      int
	Limit     int
}

type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, orderID string) (*models.Order, error)
	// GetByAuthority retrouve la commande via le jeton authority de la
	// passerelle (le callback de paiement ne fournit que celui-ci).
	GetByAuthority(ctx context.Context, authority string) (*models.Order, error)
	Update(ctx context.Context, o *models.Order) error
	List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error)
	// ListSince renvoie les commandes créées depuis une date, limitées aux
	// statuts donnés (nil = tous). Utilisé par le reporting.
	ListSince(ctx context.Context, since time.Time, statuses []models.OrderStatus) ([]models.Order, error)
}

type PendingStore interface {
	// Upsert remplace toute fiche existante pour (phone, purpose) : redemander
	// un code invalide l'ancien.
	Upsert(ctx context.Context, p *models.PendingVerification) error
	Get(ctx context.Context, phone string, purpose models.VerificationPurpose) (*models.PendingVerification, error)
	// IncrementAttempts persiste le compteur de tentatives après un code erroné.
	IncrementAttempts(ctx context.Context, phone string, purpose models.VerificationPurpose) error
	Delete(ctx context.Context, phone string, purpose models.VerificationPurpose) error
}

type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	// GetByPhone accepte aussi l'email pour la rétrocompatibilité du login.
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	// VerifiedPhoneExists : un téléphone n'est revendiqué que par un seul
	// utilisateur vérifié.
	VerifiedPhoneExists(ctx context.Context, phone string) (bool, error)
	Update(ctx context.Context, u *models.User) error
	AddRefreshToken(ctx context.Context, userID string, rt models.RefreshToken) error
	RemoveRefreshToken(ctx context.Context, userID, token string) error
	SetPassword(ctx context.Context, userID, hashed string) error
}

type ActivityFilter struct {
	UserID   string
	Action   string
	Entity   string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	Limit    int
}

type ActivityStore interface {
	Insert(ctx context.Context, a *models.ActivityLog) error
	List(ctx context.Context, f ActivityFilter) ([]models.ActivityLog, int64, error)
}
