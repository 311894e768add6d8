package model

// BookingStatus tracks a provider's engagement on a request.
type BookingStatus string

const (
	BookingApplied    BookingStatus = "Applied"
	BookingAccepted   BookingStatus = "Accepted"
	BookingInProgress BookingStatus = "In Progress"
	BookingCompleted  BookingStatus = "Completed"
	BookingCancelled  BookingStatus = "Cancelled"
	BookingDeclined   BookingStatus = "Declined"
)

// ParseBookingStatus converts a raw status label.
func ParseBookingStatus(s string) (BookingStatus, error) {
	return parseLabel("booking status", s,
		BookingApplied, BookingAccepted, BookingInProgress, BookingCompleted, BookingCancelled, BookingDeclined)
}

// HistoryStatuses are the booking states that count as history signal.
var HistoryStatuses = []BookingStatus{BookingCompleted, BookingInProgress}

// Booking is a historical engagement record. ServiceCategory is the category
// of the linked request, filled in by the store when the booking is loaded.
type Booking struct {
	ID               string
	ProviderID       string
	RequesterID      string
	ServiceRequestID string
	ServiceCategory  string
	Status           BookingStatus
}
