package service

import (
	"time"

	"comanda/internal/domain"
)

// DailyStats aggregates one calendar day of orders for the reporting
// view. Amounts are in soles.
type DailyStats struct {
	Date            string         `json:"date"`
	TotalSales      float64        `json:"total_sales"`
	TotalOrders     int            `json:"total_orders"`
	CashAmount      float64        `json:"cash_amount"`
	YapeAmount      float64        `json:"yape_amount"`
	CardAmount      float64        `json:"card_amount"`
	OrdersByChannel map[string]int `json:"orders_by_channel"`
	OrdersByPayment map[string]int `json:"orders_by_payment"`
	OrdersByStatus  map[string]int `json:"orders_by_status"`
}

// DailyStatsFor computes the stats for the calendar day containing ref,
// in ref's location. Sales and collected amounts count completed orders
// only; the per-channel and per-payment tallies count every order taken
// that day. Mixed payments contribute their actual per-instrument
// accumulators rather than an even split.
func (s *OrderService) DailyStatsFor(ref time.Time) DailyStats {
	dayStart := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	stats := DailyStats{
		Date:            dayStart.Format("2006-01-02"),
		OrdersByChannel: make(map[string]int),
		OrdersByPayment: make(map[string]int),
		OrdersByStatus:  make(map[string]int),
	}

	var totalSales, cash, yape, card int64
	for _, o := range s.orders.List(nil, nil) {
		if o.CreatedAt.Before(dayStart) || !o.CreatedAt.Before(dayEnd) {
			continue
		}
		stats.TotalOrders++
		stats.OrdersByChannel[string(o.Channel)]++
		stats.OrdersByPayment[string(o.PaymentMethod)]++
		stats.OrdersByStatus[string(o.Status)]++

		if o.Status == domain.OrderStatusCompleted {
			totalSales += o.Total
			cash += o.CashReceived
			yape += o.YapeAmount
			card += o.CardAmount
		}
	}

	stats.TotalSales = domain.CentsToSoles(totalSales)
	stats.CashAmount = domain.CentsToSoles(cash)
	stats.YapeAmount = domain.CentsToSoles(yape)
	stats.CardAmount = domain.CentsToSoles(card)
	return stats
}
