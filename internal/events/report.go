package events

import (
	"github.com/shopspring/decimal"

	"github.com/alexanu/nautilus-trader/internal/identity"
)

// ReportKind classifies a venue execution report.
type ReportKind uint16

const (
	ReportUnknown ReportKind = iota
	ReportAccepted
	ReportRejected
	ReportFill
	ReportCanceled
	ReportExpired
)

func (k ReportKind) String() string {
	switch k {
	case ReportAccepted:
		return "accepted"
	case ReportRejected:
		return "rejected"
	case ReportFill:
		return "fill"
	case ReportCanceled:
		return "canceled"
	case ReportExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ExecutionReport is the raw venue-originated order update delivered by
// an execution client. The execution engine is its sole consumer.
type ExecutionReport struct {
	Kind          ReportKind             `json:"kind"`
	ClientOrderID identity.ClientOrderID `json:"clientOrderId"`
	VenueOrderID  identity.VenueOrderID  `json:"venueOrderId"`
	InstrumentID  identity.InstrumentID  `json:"instrumentId"`
	LastQty       decimal.Decimal        `json:"lastQty"`
	LastPx        decimal.Decimal        `json:"lastPx"`
	Reason        string                 `json:"reason,omitempty"`
	TsEvent       int64                  `json:"tsEvent"`
}
