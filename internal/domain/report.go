package domain

import "time"

// CycleReport aggregates the outcome of one polling cycle. It is produced
// for observability only and never persisted.
type CycleReport struct {
	CycleID          string
	StartedAt        time.Time
	FinishedAt       time.Time
	SymbolsChecked   int
	Delivered        int
	DeliveryFailures int
	FetchFailures    int
	Errors           []CycleError
}

// CycleError records a single per-(user, symbol) failure inside a cycle.
type CycleError struct {
	UserID string
	Symbol string
	Reason string
}
