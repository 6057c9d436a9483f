package service

import (
	"errors"

	"comanda/internal/domain"
	"comanda/internal/store"
)

// errReplayedTender signals inside the store transaction that the
// request id was already applied; the recorded receipt is returned and
// nothing is mutated.
var errReplayedTender = errors.New("replayed tender")

// TenderRequest is the input for a payment application. Amounts are in
// soles. RequestID is the caller's idempotency key: tenders are
// additive, so a blind retry without deduplication would double-count a
// payment on a flaky connection.
type TenderRequest struct {
	RequestID string
	Cash      float64
	Yape      float64
	Card      float64
}

// ApplyTender accumulates a tender against the order, rederives the
// payment method and status, and reports change. When full payment is
// reached on an upfront-payment channel (delivery, takeaway) a pending
// order auto-advances to preparing; local orders never change status on
// payment alone. Once paid, the order stops accepting item changes.
//
// Retrying the same RequestID replays the recorded receipt without
// touching the accumulators.
func (s *OrderService) ApplyTender(orderID string, req TenderRequest) (*domain.Order, *domain.TenderReceipt, error) {
	tender, err := buildTender(req)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	var (
		receipt      domain.TenderReceipt
		statusBefore domain.OrderStatus
	)
	snap, err := s.orders.Update(orderID, func(tx *store.Txn) error {
		o := tx.Order
		if prior, ok := tx.Receipt(req.RequestID); ok {
			receipt = prior
			return errReplayedTender
		}
		if o.IsTerminal() {
			return domain.ErrOrderTerminal
		}
		statusBefore = o.Status

		// The channel policy is checked before any payment-completion
		// transition: a tender that would settle an upfront-payment
		// order with missing contact fields is rejected whole.
		wouldBePaid := domain.DerivePaymentStatus(o.TenderedTotal()+tender.Total(), o.Total) == domain.PaymentStatusPaid
		if wouldBePaid && domain.PaymentUpfront(o.Channel) {
			if cv := domain.ValidateChannelFields(o); len(cv) > 0 {
				return cv
			}
		}

		o.CashReceived += tender.Cash
		o.YapeAmount += tender.Yape
		o.CardAmount += tender.Card
		o.PaymentMethod = domain.DerivePaymentMethod(o.CashReceived, o.YapeAmount, o.CardAmount)
		o.PaymentStatus = domain.DerivePaymentStatus(o.TenderedTotal(), o.Total)

		var change int64
		if overpaid := o.TenderedTotal() - o.Total; overpaid > 0 &&
			(o.PaymentMethod == domain.PaymentMethodCash || o.PaymentMethod == domain.PaymentMethodMixed) {
			change = overpaid
		}

		if o.PaymentStatus == domain.PaymentStatusPaid {
			o.CanModify = false
			if o.PaymentCompletedTime == nil {
				t := now
				o.PaymentCompletedTime = &t
			}
			if domain.PaymentUpfront(o.Channel) && o.Status == domain.OrderStatusPending {
				if err := o.Transition(domain.OrderStatusPreparing, now); err != nil {
					return err
				}
			}
		}

		receipt = domain.TenderReceipt{
			RequestID:     req.RequestID,
			Tender:        tender,
			Change:        change,
			PaymentStatus: o.PaymentStatus,
			PaymentMethod: o.PaymentMethod,
			AppliedAt:     now,
		}
		tx.PutReceipt(receipt)
		return nil
	})
	if errors.Is(err, errReplayedTender) {
		snap, getErr := s.orders.Get(orderID)
		if getErr != nil {
			return nil, nil, getErr
		}
		return snap, &receipt, nil
	}
	if err != nil {
		return nil, nil, err
	}

	s.committed(snap, domain.EventOrderUpdated, now)
	if snap.Status != statusBefore {
		s.publishStatusChanged(snap, snap.ManagerName, now)
		if s.collector != nil {
			s.collector.StatusChanged(string(snap.Status), snap.IsTerminal())
		}
	}
	if s.collector != nil {
		s.collector.TenderApplied(string(snap.PaymentMethod))
	}
	return snap, &receipt, nil
}

// buildTender validates and converts a tender request to céntimos.
func buildTender(req TenderRequest) (domain.Tender, error) {
	if req.RequestID == "" {
		return domain.Tender{}, &domain.ValidationError{
			Field:   "request_id",
			Message: "an idempotency key is required for payment application",
		}
	}
	if req.Cash < 0 || req.Yape < 0 || req.Card < 0 {
		return domain.Tender{}, &domain.ValidationError{
			Field:   "tender",
			Message: "tender amounts must not be negative",
		}
	}

	cash, err := domain.SolesToCents(req.Cash)
	if err != nil {
		return domain.Tender{}, &domain.ValidationError{Field: "cash", Message: err.Error()}
	}
	yape, err := domain.SolesToCents(req.Yape)
	if err != nil {
		return domain.Tender{}, &domain.ValidationError{Field: "yape", Message: err.Error()}
	}
	card, err := domain.SolesToCents(req.Card)
	if err != nil {
		return domain.Tender{}, &domain.ValidationError{Field: "card", Message: err.Error()}
	}

	t := domain.Tender{Cash: cash, Yape: yape, Card: card}
	if t.IsZero() {
		return domain.Tender{}, &domain.ValidationError{
			Field:   "tender",
			Message: "tender must carry a positive amount on at least one instrument",
		}
	}
	return t, nil
}
