package leads

import (
	"strings"
	"time"

	"github.com/wolfman30/intake-engine/internal/intake"
)

// ContactProfile is what the contact form captures.
type ContactProfile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Empty reports whether nothing was captured.
func (p ContactProfile) Empty() bool {
	return strings.TrimSpace(p.Name) == "" && strings.TrimSpace(p.Email) == "" && strings.TrimSpace(p.Phone) == ""
}

// Lead represents a captured contact.
type Lead struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	Source    string    `json:"source"`
	VisitorID string    `json:"visitor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile returns the contact fields of the lead.
func (l *Lead) Profile() ContactProfile {
	return ContactProfile{Name: l.Name, Email: l.Email, Phone: l.Phone}
}

// CreateLeadRequest represents the request body for creating a lead
type CreateLeadRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	Source    string `json:"source"`
	VisitorID string `json:"visitor_id"`
}

// Validate applies the contact form rules.
func (r *CreateLeadRequest) Validate() error {
	return intake.ValidateContact(intake.ContactForm{
		Name:  r.Name,
		Email: r.Email,
		Phone: r.Phone,
	}).Err()
}

func (r *CreateLeadRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Message = strings.TrimSpace(r.Message)
	if strings.TrimSpace(r.Source) == "" {
		r.Source = SourceWebForm
	}
}

const (
	SourceWidget  = "widget"
	SourceWebForm = "web_form"
)
