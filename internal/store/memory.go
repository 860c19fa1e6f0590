package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
)

// Implémentations en mémoire des contrats de stockage. Utilisées par les
// tests et par le mode développement sans bases. L'atomicité des réservations
// repose sur un mutex, comme le CAS côté Scylla.

// --- Produits ---

type MemoryProductStore struct {
	mu        sync.Mutex
	products  map[string]*models.Product
	movements []models.StockMovement
}

func NewMemoryProductStore() *MemoryProductStore {
	return &MemoryProductStore{products: make(map[string]*models.Product)}
}

// Seed enregistre un produit sous un identifiant arbitraire.
func (s *MemoryProductStore) Seed(productID string, p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[productID] = &cp
}

func (s *MemoryProductStore) Get(ctx context.Context, productID string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "Produit introuvable")
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryProductStore) GetPrice(ctx context.Context, productID string) (int64, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Price, nil
}

func (s *MemoryProductStore) GetStock(ctx context.Context, productID string) (int, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Stock, nil
}

func (s *MemoryProductStore) TryReserve(ctx context.Context, productID string, qty int, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "Produit introuvable")
	}
	if p.Stock < qty {
		return apperr.New(apperr.CodeInsufficientStock, "Stock insuffisant")
	}
	prev := p.Stock
	p.Stock -= qty
	s.movements = append(s.movements, models.StockMovement{
		ID: gocql.TimeUUID(), Type: "sale", Quantity: -qty,
		PrevStock: prev, NewStock: p.Stock, OrderID: orderID, CreatedAt: time.Now(),
	})
	return nil
}

func (s *MemoryProductStore) Release(ctx context.Context, productID string, qty int, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "Produit introuvable")
	}
	prev := p.Stock
	p.Stock += qty
	s.movements = append(s.movements, models.StockMovement{
		ID: gocql.TimeUUID(), Type: "return", Quantity: qty,
		PrevStock: prev, NewStock: p.Stock, OrderID: orderID, CreatedAt: time.Now(),
	})
	return nil
}

func (s *MemoryProductStore) Insert(ctx context.Context, p *models.Product) error {
	if p.ID == (gocql.UUID{}) {
		p.ID = gocql.TimeUUID()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.Seed(p.ID.String(), *p)
	return nil
}

func (s *MemoryProductStore) Update(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[p.ID.String()]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "Produit introuvable")
	}
	p.Stock = existing.Stock // le stock ne se modifie que via réservation/ajustement
	p.UpdatedAt = time.Now()
	cp := *p
	s.products[p.ID.String()] = &cp
	return nil
}

func (s *MemoryProductStore) Delete(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return apperr.New(apperr.CodeNotFound, "Produit introuvable")
	}
	delete(s.products, productID)
	return nil
}

func (s *MemoryProductStore) List(ctx context.Context, limit int) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryProductStore) AdjustStock(ctx context.Context, productID string, quantity int, movementType, reason, userID string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return 0, 0, apperr.New(apperr.CodeNotFound, "Produit introuvable")
	}

	prev := p.Stock
	var next int
	switch movementType {
	case "restock":
		next = prev + quantity
	case "adjustment":
		next = quantity
	default:
		return 0, 0, apperr.New(apperr.CodeValidationFailed, "Type d'opération invalide")
	}
	if next < 0 {
		return 0, 0, apperr.New(apperr.CodeValidationFailed, "Le stock ne peut pas être négatif")
	}

	p.Stock = next
	s.movements = append(s.movements, models.StockMovement{
		ID: gocql.TimeUUID(), Type: movementType, Quantity: next - prev,
		PrevStock: prev, NewStock: next, Reason: reason, UserID: userID, CreatedAt: time.Now(),
	})
	return prev, next, nil
}

func (s *MemoryProductStore) Movements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.StockMovement, len(s.movements))
	copy(out, s.movements)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// --- Commandes ---

type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order

	// InsertErr force l'échec du prochain Insert (tests de compensation).
	InsertErr error
	// UpdateErr force l'échec du prochain Update (tests d'annulation).
	UpdateErr error
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]*models.Order)}
}

func (s *MemoryOrderStore) Insert(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		err := s.InsertErr
		s.InsertErr = nil
		return err
	}
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	cp := *o
	s.orders[o.ID.Hex()] = &cp
	return nil
}

func (s *MemoryOrderStore) GetByID(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "Commande introuvable")
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryOrderStore) GetByAuthority(ctx context.Context, authority string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PaymentAuthority == authority {
			cp := *o
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.CodeNotFound, "Commande introuvable")
}

func (s *MemoryOrderStore) Update(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateErr != nil {
		err := s.UpdateErr
		s.UpdateErr = nil
		return err
	}
	if _, ok := s.orders[o.ID.Hex()]; !ok {
		return apperr.New(apperr.CodeNotFound, "Commande introuvable")
	}
	o.UpdatedAt = time.Now()
	cp := *o
	s.orders[o.ID.Hex()] = &cp
	return nil
}

func (s *MemoryOrderStore) List(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Order
	for _, o := range s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.DateFrom != nil && o.CreatedAt.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && o.CreatedAt.After(*f.DateTo) {
			continue
		}
		if f.MinAmount > 0 && o.TotalAmount < f.MinAmount {
			continue
		}
		if f.MaxAmount > 0 && o.TotalAmount > f.MaxAmount {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := int64(len(out))
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (s *MemoryOrderStore) ListSince(ctx context.Context, since time.Time, statuses []models.OrderStatus) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Order
	for _, o := range s.orders {
		if o.CreatedAt.Before(since) {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, st := range statuses {
				if o.Status == st {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Vérifications en attente ---

type MemoryPendingStore struct {
	mu      sync.Mutex
	records map[string]*models.PendingVerification
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{records: make(map[string]*models.PendingVerification)}
}

func pendingKey(phone string, purpose models.VerificationPurpose) string {
	return phone + "|" + string(purpose)
}

func (s *MemoryPendingStore) Upsert(ctx context.Context, p *models.PendingVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.CreatedAt = time.Now()
	cp := *p
	s.records[pendingKey(p.Phone, p.Purpose)] = &cp
	return nil
}

func (s *MemoryPendingStore) Get(ctx context.Context, phone string, purpose models.VerificationPurpose) (*models.PendingVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[pendingKey(phone, purpose)]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "Aucune vérification en attente")
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryPendingStore) IncrementAttempts(ctx context.Context, phone string, purpose models.VerificationPurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[pendingKey(phone, purpose)]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "Aucune vérification en attente")
	}
	p.Attempts++
	return nil
}

func (s *MemoryPendingStore) Delete(ctx context.Context, phone string, purpose models.VerificationPurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, pendingKey(phone, purpose))
	return nil
}

// Expire force l'expiration d'une fiche (tests).
func (s *MemoryPendingStore) Expire(phone string, purpose models.VerificationPurpose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.records[pendingKey(phone, purpose)]; ok {
		p.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// --- Utilisateurs ---

type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*models.User)}
}

func (s *MemoryUserStore) Insert(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Phone == u.Phone && existing.PhoneVerified && u.PhoneVerified {
			return apperr.New(apperr.CodeConflict, "Ce numéro de téléphone est déjà enregistré")
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	cp := *u
	s.users[u.ID.Hex()] = &cp
	return nil
}

func (s *MemoryUserStore) GetByID(ctx context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone == phone || u.Email == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
}

func (s *MemoryUserStore) VerifiedPhoneExists(ctx context.Context, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone == phone && u.PhoneVerified {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryUserStore) Update(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID.Hex()]; !ok {
		return apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	u.UpdatedAt = time.Now()
	cp := *u
	s.users[u.ID.Hex()] = &cp
	return nil
}

func (s *MemoryUserStore) AddRefreshToken(ctx context.Context, userID string, rt models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	u.RefreshTokens = append(u.RefreshTokens, rt)
	return nil
}

func (s *MemoryUserStore) RemoveRefreshToken(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	kept := u.RefreshTokens[:0]
	for _, rt := range u.RefreshTokens {
		if rt.Token != token {
			kept = append(kept, rt)
		}
	}
	u.RefreshTokens = kept
	return nil
}

func (s *MemoryUserStore) SetPassword(ctx context.Context, userID, hashed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "Utilisateur introuvable")
	}
	u.Password = hashed
	return nil
}

// --- Journal d'activité ---

type MemoryActivityStore struct {
	mu   sync.Mutex
	logs []models.ActivityLog

	// InsertErr simule un journal en panne (tests ignore-les-échecs).
	InsertErr error
}

func NewMemoryActivityStore() *MemoryActivityStore {
	return &MemoryActivityStore{}
}

func (s *MemoryActivityStore) Insert(ctx context.Context, a *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.logs = append(s.logs, *a)
	return nil
}

func (s *MemoryActivityStore) List(ctx context.Context, f ActivityFilter) ([]models.ActivityLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ActivityLog
	for _, a := range s.logs {
		if f.UserID != "" && a.UserID != f.UserID {
			continue
		}
		if f.Action != "" && a.Action != f.Action {
			continue
		}
		if f.Entity != "" && a.Entity != f.Entity {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

// Count renvoie le nombre d'entrées journalisées (tests).
func (s *MemoryActivityStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}
