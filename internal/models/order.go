package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Statut de la commande (axe logistique)
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Statut du paiement (axe financier, indépendant du statut logistique)
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodOnline PaymentMethod = "online"
)

type OrderItem struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Name      string `bson:"name" json:"name"`
	Price     int64  `bson:"price" json:"price"` // prix unitaire en Toman, relu côté serveur
	Quantity  int    `bson:"quantity" json:"quantity"`
	Image     string `bson:"image,omitempty" json:"image,omitempty"`
}

type ShippingAddress struct {
	Name       string `bson:"name" json:"name"`
	Phone      string `bson:"phone" json:"phone"`
	Street     string `bson:"street" json:"street"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state" json:"state"`
	PostalCode string `bson:"postal_code,omitempty" json:"postal_code,omitempty"`
}

type Order struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           string             `bson:"user_id" json:"user_id"`
	Items            []OrderItem        `bson:"items" json:"items"`
	TotalAmount      int64              `bson:"total_amount" json:"total_amount"`
	Status           OrderStatus        `bson:"status" json:"status"`
	PaymentStatus    PaymentStatus      `bson:"payment_status" json:"payment_status"`
	PaymentMethod    PaymentMethod      `bson:"payment_method" json:"payment_method"`
	ShippingAddress  ShippingAddress    `bson:"shipping_address" json:"shipping_address"`
	Notes            string             `bson:"notes,omitempty" json:"notes,omitempty"`
	TrackingNumber   string             `bson:"tracking_number,omitempty" json:"tracking_number,omitempty"`
	DeliveredAt      *time.Time         `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	PaymentAuthority string             `bson:"payment_authority,omitempty" json:"payment_authority,omitempty"`
	PaymentRefID     string             `bson:"payment_ref_id,omitempty" json:"payment_ref_id,omitempty"`
	PaidAt           *time.Time         `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	RestockedAt      *time.Time         `bson:"restocked_at,omitempty" json:"restocked_at,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// ComputeTotal recalcule le montant total à partir des lignes (prix serveur × quantité).
func (o *Order) ComputeTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Price * int64(item.Quantity)
	}
	return total
}

// OnPaymentVerified applique la seule transition qui couple les deux axes de statut :
// une vérification de paiement réussie force paiement=paid et commande=confirmed.
func (o *Order) OnPaymentVerified(refID string, at time.Time) {
	o.PaymentStatus = PaymentStatusPaid
	o.Status = OrderStatusConfirmed
	o.PaymentRefID = refID
	o.PaidAt = &at
	o.UpdatedAt = at
}

// IsTerminal indique si le statut logistique est final (plus d'annulation possible).
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func ValidPaymentMethod(m string) bool {
	switch PaymentMethod(m) {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodOnline:
		return true
	}
	return false
}
