package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
)

// Nombre d'essais du compare-and-set avant d'abandonner : au-delà, la
// contention sur le produit est anormale.
const casMaxRetries = 10

// ScyllaProductStore : autorité stock & prix sur le keyspace produits.
// La réservation utilise une transaction légère (IF stock = ?) pour que deux
// commandes concurrentes ne puissent jamais surconsommer le stock.
type ScyllaProductStore struct {
	session *gocql.Session
}

func NewScyllaProductStore(session *gocql.Session) *ScyllaProductStore {
	return &ScyllaProductStore{session: session}
}

func parseProductID(productID string) (gocql.UUID, error) {
	uid, err := uuid.Parse(productID)
	if err != nil {
		return gocql.UUID{}, apperr.New(apperr.CodeNotFound, "ID produit invalide")
	}
	return gocql.UUID(uid), nil
}

func (s *ScyllaProductStore) Get(ctx context.Context, productID string) (*models.Product, error) {
	pid, err := parseProductID(productID)
	if err != nil {
		return nil, err
	}

	var p models.Product
	query := `SELECT product_id, name, description, price, original_price, stock, low_stock_threshold,
			  brand, category, image_urls, tags, is_active, created_at, updated_at
			  FROM products WHERE product_id = ?`
	if err := s.session.Query(query, pid).WithContext(ctx).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice, &p.Stock, &p.LowStockThreshold,
		&p.Brand, &p.Category, &p.ImageURLs, &p.Tags, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, apperr.New(apperr.CodeNotFound, "Produit introuvable")
		}
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur lecture produit", err)
	}
	return &p, nil
}

func (s *ScyllaProductStore) GetPrice(ctx context.Context, productID string) (int64, error) {
	pid, err := parseProductID(productID)
	if err != nil {
		return 0, err
	}

	var price int64
	if err := s.session.Query(`SELECT price FROM products WHERE product_id = ?`, pid).
		WithContext(ctx).Scan(&price); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return 0, apperr.New(apperr.CodeNotFound, "Produit introuvable")
		}
		return 0, apperr.Wrap(apperr.CodeInternal, "Erreur lecture prix", err)
	}
	return price, nil
}

func (s *ScyllaProductStore) GetStock(ctx context.Context, productID string) (int, error) {
	pid, err := parseProductID(productID)
	if err != nil {
		return 0, err
	}

	var stock int
	if err := s.session.Query(`SELECT stock FROM products WHERE product_id = ?`, pid).
		WithContext(ctx).Scan(&stock); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return 0, apperr.New(apperr.CodeNotFound, "Produit introuvable")
		}
		return 0, apperr.Wrap(apperr.CodeInternal, "Erreur lecture stock", err)
	}
	return stock, nil
}

// TryReserve décrémente le stock via une boucle compare-and-set : on relit le
// stock, on refuse si insuffisant, puis UPDATE ... IF stock = ancien. Si un
// concurrent est passé entre-temps, le CAS échoue et on recommence.
func (s *ScyllaProductStore) TryReserve(ctx context.Context, productID string, qty int, orderID string) error {
	pid, err := parseProductID(productID)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < casMaxRetries; attempt++ {
		var stock int
		if err := s.session.Query(`SELECT stock FROM products WHERE product_id = ?`, pid).
			WithContext(ctx).Scan(&stock); err != nil {
			if errors.Is(err, gocql.ErrNotFound) {
				return apperr.New(apperr.CodeNotFound, "Produit introuvable")
			}
			return apperr.Wrap(apperr.CodeInternal, "Erreur lecture stock", err)
		}

		if stock < qty {
			return apperr.New(apperr.CodeInsufficientStock, "Stock insuffisant")
		}

		var prev int
		applied, err := s.session.Query(
			`UPDATE products SET stock = ? WHERE product_id = ? IF stock = ?`,
			stock-qty, pid, stock,
		).WithContext(ctx).ScanCAS(&prev)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "Erreur réservation stock", err)
		}
		if applied {
			s.recordMovement(pid, "sale", -qty, stock, stock-qty, "réservation commande", orderID, "")
			return nil
		}
		// Un concurrent a modifié le stock entre le SELECT et le CAS.
	}

	return apperr.New(apperr.CodeInternal, "Contention excessive sur le stock produit")
}

// Release ré-incrémente le stock, même boucle CAS (pas de contrôle de borne).
func (s *ScyllaProductStore) Release(ctx context.Context, productID string, qty int, orderID string) error {
	pid, err := parseProductID(productID)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < casMaxRetries; attempt++ {
		var stock int
		if err := s.session.Query(`SELECT stock FROM products WHERE product_id = ?`, pid).
			WithContext(ctx).Scan(&stock); err != nil {
			if errors.Is(err, gocql.ErrNotFound) {
				return apperr.New(apperr.CodeNotFound, "Produit introuvable")
			}
			return apperr.Wrap(apperr.CodeInternal, "Erreur lecture stock", err)
		}

		var prev int
		applied, err := s.session.Query(
			`UPDATE products SET stock = ? WHERE product_id = ? IF stock = ?`,
			stock+qty, pid, stock,
		).WithContext(ctx).ScanCAS(&prev)
		if err != nil {
			return apperr.Wrap(apperr.CodeInternal, "Erreur restitution stock", err)
		}
		if applied {
			s.recordMovement(pid, "return", qty, stock, stock+qty, "restitution commande", orderID, "")
			return nil
		}
	}

	return apperr.New(apperr.CodeInternal, "Contention excessive sur le stock produit")
}

func (s *ScyllaProductStore) Insert(ctx context.Context, p *models.Product) error {
	if p.ID == (gocql.UUID{}) {
		p.ID = gocql.TimeUUID()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `INSERT INTO products (product_id, name, description, price, original_price, stock,
			  low_stock_threshold, brand, category, image_urls, tags, is_active, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if err := s.session.Query(query,
		p.ID, p.Name, p.Description, p.Price, p.OriginalPrice, p.Stock,
		p.LowStockThreshold, p.Brand, p.Category, p.ImageURLs, p.Tags, p.IsActive,
		p.CreatedAt, p.UpdatedAt,
	).WithContext(ctx).Exec(); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur création produit", err)
	}
	return nil
}

func (s *ScyllaProductStore) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now()
	query := `UPDATE products SET name = ?, description = ?, price = ?, original_price = ?,
			  low_stock_threshold = ?, brand = ?, category = ?, image_urls = ?, tags = ?,
			  is_active = ?, updated_at = ? WHERE product_id = ?`
	if err := s.session.Query(query,
		p.Name, p.Description, p.Price, p.OriginalPrice,
		p.LowStockThreshold, p.Brand, p.Category, p.ImageURLs, p.Tags,
		p.IsActive, p.UpdatedAt, p.ID,
	).WithContext(ctx).Exec(); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur mise à jour produit", err)
	}
	return nil
}

func (s *ScyllaProductStore) Delete(ctx context.Context, productID string) error {
	pid, err := parseProductID(productID)
	if err != nil {
		return err
	}
	if err := s.session.Query(`DELETE FROM products WHERE product_id = ?`, pid).
		WithContext(ctx).Exec(); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "Erreur suppression produit", err)
	}
	return nil
}

func (s *ScyllaProductStore) List(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	iter := s.session.Query(`SELECT product_id, name, description, price, original_price, stock,
		low_stock_threshold, brand, category, image_urls, tags, is_active, created_at, updated_at
		FROM products LIMIT ?`, limit).WithContext(ctx).Iter()

	var products []models.Product
	var p models.Product
	for iter.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice, &p.Stock,
		&p.LowStockThreshold, &p.Brand, &p.Category, &p.ImageURLs, &p.Tags, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt) {
		products = append(products, p)
		p = models.Product{}
	}
	if err := iter.Close(); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur lecture produits", err)
	}
	return products, nil
}

// AdjustStock applique un restock (delta positif) ou un ajustement (valeur
// absolue) demandé par un administrateur, via la même boucle CAS.
func (s *ScyllaProductStore) AdjustStock(ctx context.Context, productID string, quantity int, movementType, reason, userID string) (int, int, error) {
	pid, err := parseProductID(productID)
	if err != nil {
		return 0, 0, err
	}

	for attempt := 0; attempt < casMaxRetries; attempt++ {
		var stock int
		if err := s.session.Query(`SELECT stock FROM products WHERE product_id = ?`, pid).
			WithContext(ctx).Scan(&stock); err != nil {
			if errors.Is(err, gocql.ErrNotFound) {
				return 0, 0, apperr.New(apperr.CodeNotFound, "Produit introuvable")
			}
			return 0, 0, apperr.Wrap(apperr.CodeInternal, "Erreur lecture stock", err)
		}

		var newStock int
		switch movementType {
		case "restock":
			newStock = stock + quantity
		case "adjustment":
			newStock = quantity
		default:
			return 0, 0, apperr.New(apperr.CodeValidationFailed, "Type d'opération invalide")
		}
		if newStock < 0 {
			return 0, 0, apperr.New(apperr.CodeValidationFailed, "Le stock ne peut pas être négatif")
		}

		var prev int
		applied, err := s.session.Query(
			`UPDATE products SET stock = ?, updated_at = ? WHERE product_id = ? IF stock = ?`,
			newStock, time.Now(), pid, stock,
		).WithContext(ctx).ScanCAS(&prev)
		if err != nil {
			return 0, 0, apperr.Wrap(apperr.CodeInternal, "Erreur mise à jour stock", err)
		}
		if applied {
			s.recordMovement(pid, movementType, newStock-stock, stock, newStock, reason, "", userID)
			return stock, newStock, nil
		}
	}

	return 0, 0, apperr.New(apperr.CodeInternal, "Contention excessive sur le stock produit")
}

func (s *ScyllaProductStore) Movements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var query string
	var args []interface{}
	if productID != "" {
		pid, err := parseProductID(productID)
		if err != nil {
			return nil, err
		}
		query = `SELECT id, product_id, type, quantity, prev_stock, new_stock, reason, order_id, user_id, created_at
				 FROM stock_movements WHERE product_id = ? LIMIT ?`
		args = []interface{}{pid, limit}
	} else {
		query = `SELECT id, product_id, type, quantity, prev_stock, new_stock, reason, order_id, user_id, created_at
				 FROM stock_movements LIMIT ?`
		args = []interface{}{limit}
	}

	iter := s.session.Query(query, args...).WithContext(ctx).Iter()
	var movements []models.StockMovement
	var m models.StockMovement
	for iter.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.PrevStock, &m.NewStock,
		&m.Reason, &m.OrderID, &m.UserID, &m.CreatedAt) {
		movements = append(movements, m)
		m = models.StockMovement{}
	}
	if err := iter.Close(); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Erreur lecture mouvements", err)
	}
	return movements, nil
}

// recordMovement journalise un mouvement de stock. Un échec ici ne doit jamais
// faire échouer l'opération métier.
func (s *ScyllaProductStore) recordMovement(pid gocql.UUID, movementType string, qty, prev, next int, reason, orderID, userID string) {
	query := `INSERT INTO stock_movements (id, product_id, type, quantity, prev_stock, new_stock, reason, order_id, user_id, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if err := s.session.Query(query,
		gocql.TimeUUID(), pid, movementType, qty, prev, next, reason, orderID, userID, time.Now(),
	).Exec(); err != nil {
		log.Printf("⚠️ Erreur enregistrement mouvement stock: %v", err)
	}
}
