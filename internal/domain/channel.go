package domain

import (
	"fmt"
	"strings"
)

// Field names used in channel policy violations. These match the JSON
// field names of the client protocol.
const (
	FieldCustomerName  = "customer_name"
	FieldCustomerPhone = "customer_phone"
	FieldItems         = "items"
	FieldChannel       = "channel"
)

// ChannelRule describes the contact-field requirements of a sales
// channel and whether full payment must precede preparation.
type ChannelRule struct {
	RequiresCustomerName  bool
	RequiresCustomerPhone bool
	PaymentUpfront        bool
}

// channelRules is the closed mapping from channel to its rule set:
// local defers payment and requires no contact fields; delivery needs
// name and phone and pays upfront; takeaway needs a name and pays
// upfront. Delivery address is recommended but never required.
var channelRules = map[Channel]ChannelRule{
	ChannelLocal:    {},
	ChannelDelivery: {RequiresCustomerName: true, RequiresCustomerPhone: true, PaymentUpfront: true},
	ChannelTakeaway: {RequiresCustomerName: true, PaymentUpfront: true},
}

// ValidChannels lists all channel values for request validation.
var ValidChannels = map[Channel]bool{
	ChannelLocal:    true,
	ChannelDelivery: true,
	ChannelTakeaway: true,
}

// RuleFor returns the channel's rule set. Unknown channels get the
// strictest rule so a bad value never bypasses validation.
func RuleFor(ch Channel) ChannelRule {
	if r, ok := channelRules[ch]; ok {
		return r
	}
	return ChannelRule{RequiresCustomerName: true, RequiresCustomerPhone: true, PaymentUpfront: true}
}

// PaymentUpfront reports whether the channel auto-advances pending →
// preparing on full payment.
func PaymentUpfront(ch Channel) bool {
	return RuleFor(ch).PaymentUpfront
}

// ValidateChannelFields checks the order's contact fields against its
// channel rule. It never mutates the order; violations identify the
// offending field by name.
func ValidateChannelFields(o *Order) Violations {
	var v Violations
	rule := RuleFor(o.Channel)

	if rule.RequiresCustomerName && strings.TrimSpace(o.CustomerName) == "" {
		v = append(v, ValidationError{
			Field:   FieldCustomerName,
			Message: fmt.Sprintf("channel %s requires a customer name", o.Channel),
		})
	}
	if rule.RequiresCustomerPhone && strings.TrimSpace(o.CustomerPhone) == "" {
		v = append(v, ValidationError{
			Field:   FieldCustomerPhone,
			Message: fmt.Sprintf("channel %s requires a phone number", o.Channel),
		})
	}
	return v
}

// ApplyLocalNameDefault fills a blank customer name on a local-channel
// order: "Mesa {n}" when a table number is present, otherwise a fixed
// placeholder. This is a deliberate UX default, not a validation bypass;
// other channels are never defaulted.
func ApplyLocalNameDefault(o *Order) {
	if o.Channel != ChannelLocal || strings.TrimSpace(o.CustomerName) != "" {
		return
	}
	if strings.TrimSpace(o.TableNumber) != "" {
		o.CustomerName = "Mesa " + strings.TrimSpace(o.TableNumber)
		return
	}
	o.CustomerName = "Cliente Local"
}

// ValidateItems checks that every item has a name, a non-negative price
// (courtesy items are allowed), and a quantity of at least one.
func ValidateItems(items []OrderItem) Violations {
	var v Violations
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			v = append(v, ValidationError{
				Field:   FieldItems,
				Message: fmt.Sprintf("item %d: name is required", i+1),
			})
		}
		if it.Price < 0 {
			v = append(v, ValidationError{
				Field:   FieldItems,
				Message: fmt.Sprintf("item %d: price must not be negative", i+1),
			})
		}
		if it.Quantity < 1 {
			v = append(v, ValidationError{
				Field:   FieldItems,
				Message: fmt.Sprintf("item %d: quantity must be at least 1", i+1),
			})
		}
	}
	return v
}
