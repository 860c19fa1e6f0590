package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
)

func seedPaidOrder(t *testing.T, env *testEnv, userID, productID string, qty int, price int64) *models.Order {
	t.Helper()
	env.products.Seed(productID, models.Product{Name: "Produit " + productID, Price: price, Stock: 1000, IsActive: true})
	order, err := env.svc.CreateOrder(context.Background(), userID,
		[]CartItem{{ProductID: productID, Quantity: qty}}, models.ShippingAddress{}, "online")
	require.NoError(t, err)
	order.OnPaymentVerified("R-"+order.ID.Hex(), time.Now())
	require.NoError(t, env.orders.Update(context.Background(), order))
	return order
}

func TestSalesStatistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedPaidOrder(t, env, "alice", "P1", 2, 100000) // 200000
	seedPaidOrder(t, env, "alice", "P2", 1, 50000)  // 50000
	seedPaidOrder(t, env, "bob", "P1", 1, 100000)   // 100000

	// Commande impayée: comptée dans les statuts, pas dans le CA.
	env.products.Seed("P3", models.Product{Name: "Produit P3", Price: 30000, Stock: 10})
	_, err := env.svc.CreateOrder(ctx, "carol", []CartItem{{ProductID: "P3", Quantity: 1}}, models.ShippingAddress{}, "online")
	require.NoError(t, err)

	stats, err := env.svc.GetSalesStatistics(ctx, "week")
	require.NoError(t, err)

	assert.Equal(t, int64(350000), stats.TotalRevenue)
	assert.Equal(t, 3, stats.OrderCount)
	assert.Equal(t, int64(116666), stats.AverageOrder)
	assert.Equal(t, 1, stats.StatusCounts["pending"])
	assert.Equal(t, 3, stats.StatusCounts["confirmed"])
	assert.Equal(t, int64(350000), stats.MethodRevenue["online"])

	require.NotEmpty(t, stats.TopProducts)
	assert.Equal(t, "P1", stats.TopProducts[0].ProductID)
	assert.Equal(t, 3, stats.TopProducts[0].Quantity)
	assert.Equal(t, int64(300000), stats.TopProducts[0].Revenue)

	require.NotEmpty(t, stats.TopCustomers)
	assert.Equal(t, "alice", stats.TopCustomers[0].UserID)
	assert.Equal(t, int64(250000), stats.TopCustomers[0].Total)

	require.Len(t, stats.DailyRevenue, 1)
	assert.Equal(t, int64(350000), stats.DailyRevenue[0].Revenue)
}

func TestSalesStatisticsInvalidPeriod(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.GetSalesStatistics(context.Background(), "decade")
	assert.Equal(t, apperr.CodeValidationFailed, apperr.CodeOf(err))
}

func TestFinancialReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedPaidOrder(t, env, "alice", "P1", 1, 100000)

	env.products.Seed("P2", models.Product{Name: "Produit P2", Price: 40000, Stock: 10})
	pending, err := env.svc.CreateOrder(ctx, "bob", []CartItem{{ProductID: "P2", Quantity: 1}}, models.ShippingAddress{}, "online")
	require.NoError(t, err)

	failed, err := env.svc.CreateOrder(ctx, "carol", []CartItem{{ProductID: "P2", Quantity: 2}}, models.ShippingAddress{}, "online")
	require.NoError(t, err)
	failed.PaymentStatus = models.PaymentStatusFailed
	require.NoError(t, env.orders.Update(ctx, failed))

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	report, err := env.svc.GetFinancialReport(ctx, from, to)
	require.NoError(t, err)

	assert.Equal(t, int64(100000), report.GrossRevenue)
	assert.Equal(t, 1, report.PaidOrders)
	assert.Equal(t, pending.TotalAmount, report.PendingAmount)
	assert.Equal(t, 1, report.PendingOrders)
	assert.Equal(t, 1, report.FailedOrders)
	assert.Equal(t, int64(100000), report.ByMethod["online"])
	require.Len(t, report.DailyRevenue, 1)
}

func TestFinancialReportInvalidRange(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()

	_, err := env.svc.GetFinancialReport(context.Background(), now, now.Add(-time.Hour))
	assert.Equal(t, apperr.CodeValidationFailed, apperr.CodeOf(err))
}
