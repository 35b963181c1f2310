package domain

import "time"

type MovementKind string

const (
	MovementIncrease MovementKind = "increase"
	MovementDecrease MovementKind = "decrease"
	MovementSet      MovementKind = "set"
)

// Movement is a journal entry for one successful stock mutation.
type Movement struct {
	ID         string
	ProductID  string
	Kind       MovementKind
	Amount     int64 // the delta for increase/decrease, the new value for set
	StockAfter int64
	RequestID  string
	OccurredAt time.Time
}
