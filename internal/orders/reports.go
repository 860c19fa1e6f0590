package orders

import (
	"context"
	"sort"
	"time"

	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/models"
)

// SalesStatistics agrège les commandes payées sur une période glissante.
type SalesStatistics struct {
	Period        string           `json:"period"`
	From          time.Time        `json:"from"`
	To            time.Time        `json:"to"`
	TotalRevenue  int64            `json:"total_revenue"`
	OrderCount    int              `json:"order_count"`
	AverageOrder  int64            `json:"average_order"`
	TopProducts   []ProductSales   `json:"top_products"`
	TopCustomers  []CustomerSales  `json:"top_customers"`
	DailyRevenue  []DailyRevenue   `json:"daily_revenue"`
	StatusCounts  map[string]int   `json:"status_counts"`
	MethodRevenue map[string]int64 `json:"method_revenue"`
}

type ProductSales struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Revenue   int64  `json:"revenue"`
}

type CustomerSales struct {
	UserID     string `json:"user_id"`
	OrderCount int    `json:"order_count"`
	Total      int64  `json:"total"`
}

type DailyRevenue struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Revenue int64  `json:"revenue"`
	Orders  int    `json:"orders"`
}

// GetSalesStatistics calcule les agrégats de vente pour "week", "month" ou
// "year". Seules les commandes payées comptent dans le chiffre d'affaires;
// la répartition par statut couvre toutes les commandes de la période.
func (s *Service) GetSalesStatistics(ctx context.Context, period string) (*SalesStatistics, error) {
	now := s.now()
	var since time.Time
	switch period {
	case "week":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, -1, 0)
	case "year":
		since = now.AddDate(-1, 0, 0)
	default:
		return nil, apperr.New(apperr.CodeValidationFailed, "Période invalide (week, month ou year)")
	}

	all, err := s.orders.ListSince(ctx, since, nil)
	if err != nil {
		return nil, err
	}

	stats := &SalesStatistics{
		Period:        period,
		From:          since,
		To:            now,
		StatusCounts:  make(map[string]int),
		MethodRevenue: make(map[string]int64),
	}

	productTotals := make(map[string]*ProductSales)
	customerTotals := make(map[string]*CustomerSales)
	dayTotals := make(map[string]*DailyRevenue)

	for i := range all {
		order := &all[i]
		stats.StatusCounts[string(order.Status)]++

		if order.PaymentStatus != models.PaymentStatusPaid {
			continue
		}
		stats.TotalRevenue += order.TotalAmount
		stats.OrderCount++
		stats.MethodRevenue[string(order.PaymentMethod)] += order.TotalAmount

		for _, line := range order.Items {
			ps, ok := productTotals[line.ProductID]
			if !ok {
				ps = &ProductSales{ProductID: line.ProductID, Name: line.Name}
				productTotals[line.ProductID] = ps
			}
			ps.Quantity += line.Quantity
			ps.Revenue += line.Price * int64(line.Quantity)
		}

		cs, ok := customerTotals[order.UserID]
		if !ok {
			cs = &CustomerSales{UserID: order.UserID}
			customerTotals[order.UserID] = cs
		}
		cs.OrderCount++
		cs.Total += order.TotalAmount

		day := order.CreatedAt.Format("2006-01-02")
		dr, ok := dayTotals[day]
		if !ok {
			dr = &DailyRevenue{Date: day}
			dayTotals[day] = dr
		}
		dr.Revenue += order.TotalAmount
		dr.Orders++
	}

	if stats.OrderCount > 0 {
		stats.AverageOrder = stats.TotalRevenue / int64(stats.OrderCount)
	}

	stats.TopProducts = topProducts(productTotals, 10)
	stats.TopCustomers = topCustomers(customerTotals, 10)
	stats.DailyRevenue = sortedDays(dayTotals)
	return stats, nil
}

// FinancialReport est la vue comptable d'une plage de dates arbitraire.
type FinancialReport struct {
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
	GrossRevenue   int64            `json:"gross_revenue"`
	PaidOrders     int              `json:"paid_orders"`
	PendingAmount  int64            `json:"pending_amount"`
	PendingOrders  int              `json:"pending_orders"`
	FailedOrders   int              `json:"failed_orders"`
	RefundedAmount int64            `json:"refunded_amount"`
	RefundedOrders int              `json:"refunded_orders"`
	ByMethod       map[string]int64 `json:"by_method"`
	DailyRevenue   []DailyRevenue   `json:"daily_revenue"`
}

// GetFinancialReport ventile les montants par statut de paiement sur [from, to].
func (s *Service) GetFinancialReport(ctx context.Context, from, to time.Time) (*FinancialReport, error) {
	if !to.After(from) {
		return nil, apperr.New(apperr.CodeValidationFailed, "Plage de dates invalide")
	}

	all, err := s.orders.ListSince(ctx, from, nil)
	if err != nil {
		return nil, err
	}

	report := &FinancialReport{
		From:     from,
		To:       to,
		ByMethod: make(map[string]int64),
	}
	dayTotals := make(map[string]*DailyRevenue)

	for i := range all {
		order := &all[i]
		if order.CreatedAt.After(to) {
			continue
		}
		switch order.PaymentStatus {
		case models.PaymentStatusPaid:
			report.GrossRevenue += order.TotalAmount
			report.PaidOrders++
			report.ByMethod[string(order.PaymentMethod)] += order.TotalAmount

			day := order.CreatedAt.Format("2006-01-02")
			dr, ok := dayTotals[day]
			if !ok {
				dr = &DailyRevenue{Date: day}
				dayTotals[day] = dr
			}
			dr.Revenue += order.TotalAmount
			dr.Orders++
		case models.PaymentStatusPending:
			report.PendingAmount += order.TotalAmount
			report.PendingOrders++
		case models.PaymentStatusFailed:
			report.FailedOrders++
		case models.PaymentStatusRefunded:
			report.RefundedAmount += order.TotalAmount
			report.RefundedOrders++
		}
	}

	report.DailyRevenue = sortedDays(dayTotals)
	return report, nil
}

func topProducts(totals map[string]*ProductSales, limit int) []ProductSales {
	out := make([]ProductSales, 0, len(totals))
	for _, ps := range totals {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topCustomers(totals map[string]*CustomerSales, limit int) []CustomerSales {
	out := make([]CustomerSales, 0, len(totals))
	for _, cs := range totals {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortedDays(totals map[string]*DailyRevenue) []DailyRevenue {
	out := make([]DailyRevenue, 0, len(totals))
	for _, dr := range totals {
		out = append(out, *dr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
