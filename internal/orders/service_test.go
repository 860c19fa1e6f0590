package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsikala_back_end/internal/activity"
	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/gateway"
	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/store"
)

type fakeGateway struct {
	mu            sync.Mutex
	requestCalls  int
	verifyCalls   int
	requestErr    error
	verifyErr     error
	receipt       *gateway.PaymentReceipt
	lastAmount    int64
	nextAuthority string
}

func (f *fakeGateway) RequestPayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestCalls++
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	authority := f.nextAuthority
	if authority == "" {
		authority = "A-TEST"
	}
	return &gateway.PaymentSession{Authority: authority, PaymentURL: "https://pay.test/StartPay/" + authority}, nil
}

func (f *fakeGateway) VerifyPayment(ctx context.Context, authority string, amount int64) (*gateway.PaymentReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.lastAmount = amount
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	if f.receipt != nil {
		return f.receipt, nil
	}
	return &gateway.PaymentReceipt{Verified: true, RefID: "R1"}, nil
}

type testEnv struct {
	svc      *Service
	products *store.MemoryProductStore
	orders   *store.MemoryOrderStore
	gateway  *fakeGateway
	logs     *store.MemoryActivityStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	products := store.NewMemoryProductStore()
	orderStore := store.NewMemoryOrderStore()
	logs := store.NewMemoryActivityStore()
	gw := &fakeGateway{}
	svc := NewService(products, orderStore, gw, activity.NewSyncLogger(logs), "https://shop.test/payment/verify")
	return &testEnv{svc: svc, products: products, orders: orderStore, gateway: gw, logs: logs}
}

func seedProduct(env *testEnv, id string, price int64, stock int) {
	env.products.Seed(id, models.Product{Name: "Produit " + id, Price: price, Stock: stock, IsActive: true})
}

func TestValidateCartReprices(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env, "P1", 100000, 5)
	ctx := context.Background()

	cart, err := env.svc.ValidateCart(ctx, []CartItem{{ProductID: "P1", Quantity: 2}})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(100000), cart.Items[0].Price)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, int64(200000), cart.Total)

	// Aucune mutation: le stock n'a pas bougé, un second appel rend le même résultat.
	stock, err := env.products.GetStock(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 5, stock)

	again, err := env.svc.ValidateCart(ctx, []CartItem{{ProductID: "P1", Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, cart, again)
}

func TestValidateCartClampsQuantity(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env, "P1", 50000, 3)

	cart, err := env.svc.ValidateCart(context.Background(), []CartItem{{ProductID: "P1", Quantity: 10}})
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, cart.Items[0].Adjusted)
	assert.Equal(t, int64(150000), cart.Total)
}

func TestValidateCartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ValidateCart(context.Background(), []CartItem{{ProductID: "ghost", Quantity: 1}})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestValidateCartDropsUnavailableAccessories(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env, "P1", 100000, 5)
	seedProduct(env, "ACC-OK", 20000, 2)
	seedProduct(env, "ACC-OUT", 5000, 0)

	cart, err := env.svc.ValidateCart(context.Background(), []CartItem{{
		ProductID: "P1", Quantity: 1,
		Accessories: []CartItem{
			{ProductID: "ACC-OK", Quantity: 1},
			{ProductID: "ACC-OUT", Quantity: 1},
			{ProductID: "ACC-GHOST", Quantity: 1},
		},
	}})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Len(t, cart.Items[0].Accessories, 1, "accessoires épuisés ou inconnus omis sans erreur")
	assert.Equal(t, "ACC-OK", cart.Items[0].Accessories[0].ProductID)
	assert.Equal(t, int64(120000), cart.Total)
}

func TestCreateOrderReservesStock(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env, "P1", 100000, 5)
	ctx := context.Background()

	order, err := env.svc.CreateOrder(ctx, "user-1", []CartItem{{ProductID: "P1", Quantity: 2}},
		models.ShippingAddress{Name: "Sara", Phone: "09123456789", City: "Téhéran"}, "online")
	require.NoError(t, err)

	assert.Equal(t, int64(200000), order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)

	stock, _ := env.products.GetStock(ctx, "P1")
	assert.Equal(t, 3, stock)
	assert.Equal(t, 1, env.logs.Count())
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env, "P2", 100000, 3)
	ctx := context.Background()

	_, err := env.svc.CreateOrder(ctx, "user-1", []CartItem{{ProductID: "P2", Quantity: 10}},
		models.ShippingAddress{}, "online")
	assert.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(err))

	stock, _ := env.products.GetStock(ctx, "P2")
	assert.Equal(t, 3, stock, "pas de décrément partiel")
}

func TestCreateOrderRollsBackEarlierLines(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env, "P1", 100000, 5)
	seedProduct(env, "P2", 50000, 1)
	ctx := context.Background()

	_, err := env.svc.CreateOrder(ctx, "user-1", []CartItem{
		{ProductID: "P1", Quantity: 2},
		{ProductID: "P2", Quantity: 3},
	}, models.ShippingAddress{}, "online")
	require.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(err))

	// La réservation de P1 a été compensée.
	stock, _ := env.products.GetStock(ctx, "P1")
	assert.Equal(t, 5, stock)
	stock, _ = env.products.GetStock(ctx, "P2")
	assert.Equal(t, 1, stock)
}

func TestCreateOrderRollsBackWhenPersistFails(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env, "P1", 100000, 5)
	env.orders.InsertErr = errors.New("mongo down")
	ctx := context.Background()

	_, err := env.svc.CreateOrder(ctx, "user-1", []CartItem{{ProductID: "P1", Quantity: 2}},
		models.ShippingAddress{}, "online")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))

	stock, _ := env.products.GetStock(ctx, "P1")
	assert.Equal(t, 5, stock, "le stock réservé est restitué si la persistance échoue")
}

func TestCreateOrderIgnoresClientPrice(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env, "P1", 100000, 5)

	// Le type CartItem ne transporte aucun prix: le total vient du serveur.
	order, err := env.svc.CreateOrder(context.Background(), "user-1",
		[]CartItem{{ProductID: "P1", Quantity: 1}}, models.ShippingAddress{}, "online")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), order.TotalAmount)
	assert.Equal(t, int64(100000), order.Items[0].Price)
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	env := newTestEnv(t)
	seedProduct(env, "P1", 100000, 5)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CreateOrder(ctx, "user-1",
				[]CartItem{{ProductID: "P1", Quantity: 1}}, models.ShippingAddress{}, "online")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, failed int
	for err := range results {
		if err == nil {
			ok++
		} else {
			require.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(err))
			failed++
		}
	}
	assert.Equal(t, 5, ok, "on ne vend jamais plus que le stock")
	assert.Equal(t, 5, failed)

	stock, _ := env.products.GetStock(ctx, "P1")
	assert.Equal(t, 0, stock)
}

func createPaidableOrder(t *testing.T, env *testEnv) *models.Order {
	t.Helper()
	seedProduct(env, "P1", 100000, 10)
	order, err := env.svc.CreateOrder(context.Background(), "user-1",
		[]CartItem{{ProductID: "P1", Quantity: 2}},
		models.ShippingAddress{Phone: "09123456789"}, "online")
	require.NoError(t, err)
	return order
}

func TestCreatePaymentRequest(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	url, err := env.svc.CreatePaymentRequest(ctx, order.ID.Hex(), "user-1")
	require.NoError(t, err)
	assert.Contains(t, url, "StartPay")

	stored, err := env.orders.GetByID(ctx, order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "A-TEST", stored.PaymentAuthority)
}

func TestCreatePaymentRequestForbidden(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)

	_, err := env.svc.CreatePaymentRequest(context.Background(), order.ID.Hex(), "someone-else")
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}

func TestCreatePaymentRequestAlreadyPaid(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	order.OnPaymentVerified("R9", time.Now())
	require.NoError(t, env.orders.Update(ctx, order))

	_, err := env.svc.CreatePaymentRequest(ctx, order.ID.Hex(), "user-1")
	assert.Equal(t, apperr.CodeAlreadyPaid, apperr.CodeOf(err))
}

func TestCreatePaymentRequestCancelledOrder(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	order.Status = models.OrderStatusCancelled
	require.NoError(t, env.orders.Update(ctx, order))

	_, err := env.svc.CreatePaymentRequest(ctx, order.ID.Hex(), "user-1")
	assert.Equal(t, apperr.CodeOrderCancelled, apperr.CodeOf(err))
}

func TestVerifyPaymentSuccessThenIdempotent(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	_, err := env.svc.CreatePaymentRequest(ctx, order.ID.Hex(), "user-1")
	require.NoError(t, err)

	verified, err := env.svc.VerifyPayment(ctx, "A-TEST", "OK")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, verified.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, verified.Status)
	assert.Equal(t, "R1", verified.PaymentRefID)
	require.NotNil(t, verified.PaidAt)

	// Second rappel de la passerelle: aucun nouvel appel verify, même référence.
	env.gateway.receipt = &gateway.PaymentReceipt{Verified: true, RefID: "R2"}
	again, err := env.svc.VerifyPayment(ctx, "A-TEST", "OK")
	require.NoError(t, err)
	assert.Equal(t, "R1", again.PaymentRefID, "la référence d'origine est conservée")
	assert.Equal(t, 1, env.gateway.verifyCalls)
}

func TestVerifyPaymentChecksExpectedAmount(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	_, err := env.svc.CreatePaymentRequest(ctx, order.ID.Hex(), "user-1")
	require.NoError(t, err)

	_, err = env.svc.VerifyPayment(ctx, "A-TEST", "OK")
	require.NoError(t, err)
	assert.Equal(t, order.TotalAmount, env.gateway.lastAmount,
		"le montant attendu vient de la commande, pas du callback")
}

func TestVerifyPaymentUserCancelled(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	_, err := env.svc.CreatePaymentRequest(ctx, order.ID.Hex(), "user-1")
	require.NoError(t, err)

	got, err := env.svc.VerifyPayment(ctx, "A-TEST", "NOK")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus, "la commande reste payable")
	assert.Equal(t, 0, env.gateway.verifyCalls)
}

func TestVerifyPaymentGatewayRefuses(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	_, err := env.svc.CreatePaymentRequest(ctx, order.ID.Hex(), "user-1")
	require.NoError(t, err)

	env.gateway.receipt = &gateway.PaymentReceipt{Verified: false, FailureCode: -51}
	got, err := env.svc.VerifyPayment(ctx, "A-TEST", "OK")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusPending, got.Status, "le statut logistique ne bouge pas")
}

func TestVerifyPaymentUnknownAuthority(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.VerifyPayment(context.Background(), "A-GHOST", "OK")
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestUpdateOrderStatusUnconditional(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	// Aucun contrôle de progression: shipped → processing est accepté.
	_, err := env.svc.UpdateOrderStatus(ctx, order.ID.Hex(), "shipped", "admin-1")
	require.NoError(t, err)
	got, err := env.svc.UpdateOrderStatus(ctx, order.ID.Hex(), "processing", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, got.Status)
}

func TestUpdateOrderStatusInvalid(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)

	_, err := env.svc.UpdateOrderStatus(context.Background(), order.ID.Hex(), "teleported", "admin-1")
	assert.Equal(t, apperr.CodeValidationFailed, apperr.CodeOf(err))
}

func TestUpdateOrderStatusLogsActivity(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	before := env.logs.Count()

	_, err := env.svc.UpdateOrderStatus(context.Background(), order.ID.Hex(), "shipped", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, before+1, env.logs.Count())
}

func TestCancelRetryAfterPersistFailureNeverOvercredits(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env) // réserve 2 sur 10
	ctx := context.Background()

	// La première annulation échoue à la persistance: rien n'est restitué.
	env.orders.UpdateErr = errors.New("mongo indisponible")
	_, err := env.svc.CancelOrder(ctx, order.ID.Hex(), "user-1")
	require.Error(t, err)
	stock, _ := env.products.GetStock(ctx, "P1")
	assert.Equal(t, 8, stock, "échec de persistance: le stock ne bouge pas")

	// La nouvelle tentative restitue une seule fois, jamais au-delà du niveau initial.
	_, err = env.svc.CancelOrder(ctx, order.ID.Hex(), "user-1")
	require.NoError(t, err)
	stock, _ = env.products.GetStock(ctx, "P1")
	assert.Equal(t, 10, stock)
}

func TestSetTrackingNumber(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	got, err := env.svc.SetTrackingNumber(ctx, order.ID.Hex(), "TRK-4521", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "TRK-4521", got.TrackingNumber)

	_, err = env.svc.SetTrackingNumber(ctx, order.ID.Hex(), "", "admin-1")
	assert.Equal(t, apperr.CodeValidationFailed, apperr.CodeOf(err))
}

func TestCancelRestocksExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env) // réserve 2 sur 10
	ctx := context.Background()

	stock, _ := env.products.GetStock(ctx, "P1")
	require.Equal(t, 8, stock)

	_, err := env.svc.UpdateOrderStatus(ctx, order.ID.Hex(), "cancelled", "admin-1")
	require.NoError(t, err)
	stock, _ = env.products.GetStock(ctx, "P1")
	assert.Equal(t, 10, stock, "le stock est restitué à l'annulation")

	// Une seconde annulation ne crédite pas deux fois.
	_, err = env.svc.UpdateOrderStatus(ctx, order.ID.Hex(), "cancelled", "admin-1")
	require.NoError(t, err)
	stock, _ = env.products.GetStock(ctx, "P1")
	assert.Equal(t, 10, stock)
}

func TestCancelOrderByOwner(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	got, err := env.svc.CancelOrder(ctx, order.ID.Hex(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)

	stock, _ := env.products.GetStock(ctx, "P1")
	assert.Equal(t, 10, stock)
}

func TestCancelOrderForbiddenAndTerminal(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	_, err := env.svc.CancelOrder(ctx, order.ID.Hex(), "intruder")
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	_, err = env.svc.UpdateOrderStatus(ctx, order.ID.Hex(), "delivered", "admin-1")
	require.NoError(t, err)
	_, err = env.svc.CancelOrder(ctx, order.ID.Hex(), "user-1")
	assert.Equal(t, apperr.CodeOrderCancelled, apperr.CodeOf(err))
}

func TestGetOrderOwnership(t *testing.T) {
	env := newTestEnv(t)
	order := createPaidableOrder(t, env)
	ctx := context.Background()

	_, err := env.svc.GetOrder(ctx, order.ID.Hex(), "user-1", false)
	require.NoError(t, err)

	_, err = env.svc.GetOrder(ctx, order.ID.Hex(), "intruder", false)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	_, err = env.svc.GetOrder(ctx, order.ID.Hex(), "intruder", true)
	require.NoError(t, err, "un admin voit toutes les commandes")
}
