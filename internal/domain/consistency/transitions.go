package consistency

import (
	"slices"

	"github.com/okian/tradelink/internal/domain/model"
)

// bookingTransitions lists every allowed (from → to) booking move.
// Completed, Cancelled and Declined are terminal.
var bookingTransitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingAccepted:   {model.BookingInProgress, model.BookingCancelled, model.BookingDeclined},
	model.BookingInProgress: {model.BookingCompleted, model.BookingCancelled},
}

// requestTransitions lists every allowed (from → to) request move.
// Completed and Cancelled are terminal.
var requestTransitions = map[model.RequestStatus][]model.RequestStatus{
	model.RequestOpen:       {model.RequestOffered, model.RequestCancelled},
	model.RequestOffered:    {model.RequestOpen, model.RequestInProgress, model.RequestCancelled},
	model.RequestInProgress: {model.RequestCompleted, model.RequestCancelled},
}

// CanTransitionBookingStatus reports whether current → next is allowed.
// Statuses outside the table have no outgoing transitions.
func CanTransitionBookingStatus(current, next model.BookingStatus) bool {
	return slices.Contains(bookingTransitions[current], next)
}

// ValidBookingTransitions returns the statuses reachable from current. The
// slice is a fresh copy and empty for terminal or unknown statuses.
func ValidBookingTransitions(current model.BookingStatus) []model.BookingStatus {
	return append([]model.BookingStatus{}, bookingTransitions[current]...)
}

// CanTransitionRequestStatus reports whether current → next is allowed.
func CanTransitionRequestStatus(current, next model.RequestStatus) bool {
	return slices.Contains(requestTransitions[current], next)
}

// ValidRequestTransitions returns the statuses reachable from current.
func ValidRequestTransitions(current model.RequestStatus) []model.RequestStatus {
	return append([]model.RequestStatus{}, requestTransitions[current]...)
}
