package orders

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"parsikala_back_end/internal/activity"
	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/gateway"
	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/store"
)

// Mailer envoie la confirmation de commande. Best-effort: jamais bloquant
// pour le parcours de paiement.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// Service orchestre le cycle de vie des commandes: validation du panier,
// création avec réservation de stock, paiement et suivi de statut.
type Service struct {
	products    store.ProductStore
	orders      store.OrderStore
	payments    gateway.PaymentGateway
	activity    *activity.Logger
	mailer      Mailer // optionnel
	callbackURL string
	now         func() time.Time
}

func NewService(products store.ProductStore, orders store.OrderStore, payments gateway.PaymentGateway, logger *activity.Logger, callbackURL string) *Service {
	return &Service{
		products:    products,
		orders:      orders,
		payments:    payments,
		activity:    logger,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

// WithMailer branche l'envoi de confirmation par email.
func (s *Service) WithMailer(m Mailer) *Service {
	s.mailer = m
	return s
}

// CartItem est une ligne de panier telle que soumise par le client. Le prix
// n'y figure pas: il est toujours relu côté serveur.
type CartItem struct {
	ProductID   string     `json:"product_id" binding:"required"`
	Quantity    int        `json:"quantity" binding:"required,min=1"`
	Accessories []CartItem `json:"accessories,omitempty"`
}

// ValidatedItem est le miroir serveur d'une ligne: prix et stock font foi.
type ValidatedItem struct {
	ProductID   string          `json:"product_id"`
	Name        string          `json:"name"`
	Price       int64           `json:"price"`
	Quantity    int             `json:"quantity"`
	Stock       int             `json:"stock"`
	Adjusted    bool            `json:"adjusted"` // quantité rabotée au stock disponible
	Image       string          `json:"image,omitempty"`
	Accessories []ValidatedItem `json:"accessories,omitempty"`
}

type ValidatedCart struct {
	Items []ValidatedItem `json:"items"`
	Total int64           `json:"total"`
}

// ValidateCart reprice le panier sans rien modifier. Les quantités sont
// rabotées au stock disponible; un produit principal inconnu rejette le
// panier, un accessoire inconnu ou épuisé est simplement omis.
func (s *Service) ValidateCart(ctx context.Context, items []CartItem) (*ValidatedCart, error) {
	if len(items) == 0 {
		return nil, apperr.New(apperr.CodeValidationFailed, "Le panier est vide")
	}

	cart := &ValidatedCart{}
	for _, item := range items {
		p, err := s.products.Get(ctx, item.ProductID)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeNotFound {
				return nil, apperr.New(apperr.CodeNotFound, fmt.Sprintf("Produit %s introuvable", item.ProductID))
			}
			return nil, err
		}

		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		adjusted := false
		if qty > p.Stock {
			qty = p.Stock
			adjusted = true
		}

		line := ValidatedItem{
			ProductID: item.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  qty,
			Stock:     p.Stock,
			Adjusted:  adjusted,
			Image:     firstImage(p),
		}

		for _, acc := range item.Accessories {
			ap, err := s.products.Get(ctx, acc.ProductID)
			if err != nil {
				if apperr.CodeOf(err) == apperr.CodeNotFound {
					continue // accessoire disparu: on l'omet sans bloquer le panier
				}
				return nil, err
			}
			accQty := acc.Quantity
			if accQty < 1 {
				accQty = 1
			}
			if ap.Stock < accQty {
				continue // accessoire épuisé: omis également
			}
			line.Accessories = append(line.Accessories, ValidatedItem{
				ProductID: acc.ProductID,
				Name:      ap.Name,
				Price:     ap.Price,
				Quantity:  accQty,
				Stock:     ap.Stock,
				Image:     firstImage(ap),
			})
			cart.Total += ap.Price * int64(accQty)
		}

		cart.Items = append(cart.Items, line)
		cart.Total += p.Price * int64(qty)
	}
	return cart, nil
}

// CreateOrder revalide chaque ligne contre l'autorité stock/prix puis réserve
// le stock ligne par ligne. Toute réservation déjà posée est compensée si une
// ligne ultérieure ou la persistance échoue: jamais de décrément partiel.
func (s *Service) CreateOrder(ctx context.Context, userID string, items []CartItem, addr models.ShippingAddress, method string) (*models.Order, error) {
	if len(items) == 0 {
		return nil, apperr.New(apperr.CodeValidationFailed, "Le panier est vide")
	}
	if !models.ValidPaymentMethod(method) {
		return nil, apperr.New(apperr.CodeValidationFailed, "Méthode de paiement invalide")
	}

	order := &models.Order{
		ID:              primitive.NewObjectID(),
		UserID:          userID,
		Status:          models.OrderStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   models.PaymentMethod(method),
		ShippingAddress: addr,
	}
	orderID := order.ID.Hex()

	var lines []models.OrderItem
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, apperr.New(apperr.CodeValidationFailed, "Quantité invalide")
		}
		p, err := s.products.Get(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, models.OrderItem{
			ProductID: item.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  item.Quantity,
			Image:     firstImage(p),
		})
	}

	// Réservation immédiate: le stock est décrémenté à la création, pas à
	// l'expédition. Compensation en cascade si une ligne échoue.
	reserved := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		if err := s.products.TryReserve(ctx, line.ProductID, line.Quantity, orderID); err != nil {
			s.releaseAll(ctx, reserved, orderID)
			return nil, err
		}
		reserved = append(reserved, line)
	}

	order.Items = lines
	order.TotalAmount = order.ComputeTotal()

	if err := s.orders.Insert(ctx, order); err != nil {
		log.Printf("❌ Persistance de la commande %s impossible, restitution du stock: %v", orderID, err)
		s.releaseAll(ctx, reserved, orderID)
		return nil, apperr.Wrap(apperr.CodeInternal, "Impossible d'enregistrer la commande", err)
	}

	s.activity.Record(activity.Entry{
		UserID:      userID,
		Action:      "order_created",
		Entity:      "order",
		EntityID:    orderID,
		Description: fmt.Sprintf("Commande de %d article(s), total %d Toman", len(lines), order.TotalAmount),
	})
	log.Printf("🛒 Commande %s créée (%d lignes, %d Toman)", orderID, len(lines), order.TotalAmount)
	return order, nil
}

func (s *Service) releaseAll(ctx context.Context, reserved []models.OrderItem, orderID string) {
	for _, line := range reserved {
		if err := s.products.Release(ctx, line.ProductID, line.Quantity, orderID); err != nil {
			log.Printf("⚠️ Compensation de stock impossible pour %s (commande %s): %v", line.ProductID, orderID, err)
		}
	}
}

// CreatePaymentRequest ouvre une session de paiement et persiste l'autorité
// sur la commande. Une nouvelle autorité abandonne la précédente.
func (s *Service) CreatePaymentRequest(ctx context.Context, orderID, requestingUserID string) (string, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.UserID != requestingUserID {
		return "", apperr.New(apperr.CodeForbidden, "Cette commande ne vous appartient pas")
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return "", apperr.New(apperr.CodeAlreadyPaid, "Cette commande est déjà payée")
	}
	if order.Status == models.OrderStatusCancelled {
		return "", apperr.New(apperr.CodeOrderCancelled, "Cette commande a été annulée")
	}

	session, err := s.payments.RequestPayment(ctx, gateway.PaymentRequest{
		OrderID:     orderID,
		Amount:      order.TotalAmount,
		CallbackURL: s.callbackURL,
		Mobile:      order.ShippingAddress.Phone,
	})
	if err != nil {
		return "", err
	}

	order.PaymentAuthority = session.Authority
	if err := s.orders.Update(ctx, order); err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "Impossible d'enregistrer l'autorité de paiement", err)
	}
	return session.PaymentURL, nil
}

// VerifyPayment traite le retour de la passerelle. Idempotent par autorité:
// une commande déjà payée est renvoyée telle quelle sans re-mutation.
func (s *Service) VerifyPayment(ctx context.Context, authority, gatewayStatus string) (*models.Order, error) {
	order, err := s.orders.GetByAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		return order, nil
	}

	// Abandon côté utilisateur: le paiement reste "pending", la commande
	// reste payable.
	if gatewayStatus != "OK" {
		log.Printf("🚫 Paiement abandonné par l'utilisateur (commande %s)", order.ID.Hex())
		return order, nil
	}

	receipt, err := s.payments.VerifyPayment(ctx, authority, order.TotalAmount)
	if err != nil {
		return nil, err
	}

	if !receipt.Verified {
		order.PaymentStatus = models.PaymentStatusFailed
		if err := s.orders.Update(ctx, order); err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "Impossible d'enregistrer l'échec du paiement", err)
		}
		log.Printf("❌ Paiement refusé pour la commande %s: %s", order.ID.Hex(), receipt.FailureReason)
		return order, nil
	}

	order.OnPaymentVerified(receipt.RefID, s.now())
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Impossible d'enregistrer le paiement", err)
	}

	s.activity.Record(activity.Entry{
		UserID:      order.UserID,
		Action:      "payment_verified",
		Entity:      "order",
		EntityID:    order.ID.Hex(),
		Description: fmt.Sprintf("Paiement de %d Toman confirmé (réf %s)", order.TotalAmount, receipt.RefID),
	})
	if s.mailer != nil {
		if mailErr := s.mailer.SendOrderConfirmation(ctx, order); mailErr != nil {
			log.Printf("⚠️ Email de confirmation non envoyé pour %s: %v", order.ID.Hex(), mailErr)
		}
	}
	log.Printf("💳 Paiement confirmé pour la commande %s (réf %s)", order.ID.Hex(), receipt.RefID)
	return order, nil
}

// UpdateOrderStatus écrase le statut logistique sans contrainte de
// progression. Le passage à "cancelled" restitue le stock, une seule fois.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID, newStatus, adminID string) (*models.Order, error) {
	if !models.ValidOrderStatus(newStatus) {
		return nil, apperr.New(apperr.CodeValidationFailed, "Statut de commande invalide")
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	previous := order.Status
	order.Status = models.OrderStatus(newStatus)

	releaseStock := false
	switch order.Status {
	case models.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			now := s.now()
			order.DeliveredAt = &now
		}
	case models.OrderStatusCancelled:
		releaseStock = s.markRestocked(order)
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Impossible de mettre à jour le statut", err)
	}
	if releaseStock {
		s.releaseOrderStock(ctx, order)
	}

	s.activity.Record(activity.Entry{
		UserID:      adminID,
		Action:      "order_status_updated",
		Entity:      "order",
		EntityID:    orderID,
		Description: fmt.Sprintf("Statut %s → %s", previous, order.Status),
		Metadata:    map[string]any{"from": string(previous), "to": newStatus},
	})
	return order, nil
}

// SetTrackingNumber enregistre le numéro de suivi transporteur (admin).
func (s *Service) SetTrackingNumber(ctx context.Context, orderID, trackingNumber, adminID string) (*models.Order, error) {
	if trackingNumber == "" {
		return nil, apperr.New(apperr.CodeValidationFailed, "Numéro de suivi requis")
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order.TrackingNumber = trackingNumber
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Impossible d'enregistrer le numéro de suivi", err)
	}

	s.activity.Record(activity.Entry{
		UserID:      adminID,
		Action:      "order_tracking_set",
		Entity:      "order",
		EntityID:    orderID,
		Description: "Numéro de suivi " + trackingNumber,
	})
	return order, nil
}

// CancelOrder est l'annulation côté client: uniquement sa propre commande,
// uniquement hors statut terminal.
func (s *Service) CancelOrder(ctx context.Context, orderID, requestingUserID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != requestingUserID {
		return nil, apperr.New(apperr.CodeForbidden, "Cette commande ne vous appartient pas")
	}
	if order.Status.IsTerminal() {
		return nil, apperr.New(apperr.CodeOrderCancelled, "Cette commande ne peut plus être annulée")
	}

	order.Status = models.OrderStatusCancelled
	releaseStock := s.markRestocked(order)

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "Impossible d'annuler la commande", err)
	}
	if releaseStock {
		s.releaseOrderStock(ctx, order)
	}

	s.activity.Record(activity.Entry{
		UserID:      requestingUserID,
		Action:      "order_cancelled",
		Entity:      "order",
		EntityID:    orderID,
		Description: "Commande annulée par le client",
	})
	return order, nil
}

// markRestocked pose le marqueur RestockedAt si la commande n'a pas encore été
// restituée, et indique si la restitution doit suivre. Le marqueur est persisté
// AVANT la restitution: une écriture qui échoue laisse le stock intact, jamais
// crédité deux fois sur une nouvelle tentative.
func (s *Service) markRestocked(order *models.Order) bool {
	if order.RestockedAt != nil {
		return false
	}
	now := s.now()
	order.RestockedAt = &now
	return true
}

func (s *Service) releaseOrderStock(ctx context.Context, order *models.Order) {
	orderID := order.ID.Hex()
	for _, line := range order.Items {
		if err := s.products.Release(ctx, line.ProductID, line.Quantity, orderID); err != nil {
			log.Printf("⚠️ Restitution de stock impossible pour %s (commande %s): %v", line.ProductID, orderID, err)
		}
	}
	log.Printf("↩️ Stock restitué pour la commande annulée %s", orderID)
}

// GetOrder renvoie une commande si le demandeur la possède ou est admin.
func (s *Service) GetOrder(ctx context.Context, orderID, requestingUserID string, isAdmin bool) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != requestingUserID {
		return nil, apperr.New(apperr.CodeForbidden, "Cette commande ne vous appartient pas")
	}
	return order, nil
}

// ListOrders renvoie les commandes filtrées avec le total pour la pagination.
func (s *Service) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, int64, error) {
	return s.orders.List(ctx, f)
}

// GetPaymentStatus expose l'état de paiement d'une commande au client.
func (s *Service) GetPaymentStatus(ctx context.Context, orderID, requestingUserID string) (models.PaymentStatus, string, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return "", "", err
	}
	if order.UserID != requestingUserID {
		return "", "", apperr.New(apperr.CodeForbidden, "Cette commande ne vous appartient pas")
	}
	return order.PaymentStatus, order.PaymentRefID, nil
}

func firstImage(p *models.Product) string {
	if len(p.ImageURLs) > 0 {
		return p.ImageURLs[0]
	}
	return ""
}
