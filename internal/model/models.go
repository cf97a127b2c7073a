package model

import "time"

// GenericRecord is a schema-agnostic document as returned by a data provider
type GenericRecord map[string]interface{}

// Location is the city/state pair attached to a service record
type Location struct {
	City  string `json:"city,omitempty"`
	State string `json:"state,omitempty"`
}

// RawRecord is the typed view of a marketplace job or service request.
// Optional attributes are zero when the provider did not supply them.
type RawRecord struct {
	ID                      string     `json:"id"`
	Status                  string     `json:"status,omitempty"`
	CreatedAt               *time.Time `json:"createdAt,omitempty"`
	UpdatedAt               *time.Time `json:"updatedAt,omitempty"`
	AssignedProfessionalRef string     `json:"assignedProfessionalRef,omitempty"`
	PaymentRef              string     `json:"paymentRef,omitempty"`
	Location                Location   `json:"location"`
	Source                  string     `json:"source,omitempty"` // provider collection or file
}

// HasProfessional reports whether a professional is assigned
func (r RawRecord) HasProfessional() bool { return r.AssignedProfessionalRef != "" }

// HasPayment reports whether a payment reference is attached
func (r RawRecord) HasPayment() bool { return r.PaymentRef != "" }

// SupportTicket is a customer support ticket
type SupportTicket struct {
	ID        string     `json:"id"`
	Status    string     `json:"status,omitempty"`
	Category  string     `json:"category,omitempty"` // e.g. complaint, critical, reclamacao
	Subject   string     `json:"subject,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// PaymentTransaction is a charge reported by the payment processor
type PaymentTransaction struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"` // succeeded, failed, pending, refunded
	Amount    int64     `json:"amount"` // minor units
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created"`
	JobRef    string    `json:"jobRef,omitempty"`
}

// Payment processor states
const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
	PaymentPending   = "pending"
)

// Feedback is a rating left by a customer after a service.
// Score uses a 0-10 scale.
type Feedback struct {
	ID        string    `json:"id"`
	JobRef    string    `json:"jobRef,omitempty"`
	Score     float64   `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProfessionalProfile is a service provider's marketplace profile
type ProfessionalProfile struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Bio              string   `json:"bio,omitempty"`
	PhotoURL         string   `json:"photoUrl,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Categories       []string `json:"categories,omitempty"`
	DocumentVerified bool     `json:"documentVerified"`
}

// IsComplete reports whether every field required to receive jobs is filled
func (p ProfessionalProfile) IsComplete() bool {
	return p.Name != "" && p.Bio != "" && p.PhotoURL != "" && p.Phone != "" &&
		len(p.Categories) > 0 && p.DocumentVerified
}

// VisitorStats is the web-analytics visitor count for a window
type VisitorStats struct {
	Visitors int64     `json:"visitors"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
}
