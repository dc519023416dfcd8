package domain

import (
	"fmt"
	"strings"
)

// DocumentType tags an extraction payload with its source document type.
type DocumentType string

// Supported document types.
const (
	DocumentTypeContract DocumentType = "contract"
	DocumentTypeInvoice  DocumentType = "invoice"
	DocumentTypeMeeting  DocumentType = "meeting"
	DocumentTypeReport   DocumentType = "report"
)

// IsValid returns true if the document type is recognised.
func (dt DocumentType) IsValid() bool {
	switch dt {
	case DocumentTypeContract, DocumentTypeInvoice, DocumentTypeMeeting, DocumentTypeReport:
		return true
	}
	return false
}

// Extraction is the closed union of per-document-type structured extraction
// payloads supplied by the upstream document-intelligence subsystem.
// Exactly one variant field is non-nil, selected by Type.
type Extraction struct {
	// Type selects the populated variant.
	Type DocumentType `json:"documentType"`

	Contract *ContractExtraction `json:"contract,omitempty"`
	Invoice  *InvoiceExtraction  `json:"invoice,omitempty"`
	Meeting  *MeetingExtraction  `json:"meeting,omitempty"`
	Report   *ReportExtraction   `json:"report,omitempty"`
}

// ContractParty is one named party on a contract.
type ContractParty struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// PaymentTerm is one payment obligation on a contract.
type PaymentTerm struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description,omitempty"`
}

// ContractExtraction is the structured data extracted from a contract.
type ContractExtraction struct {
	Parties        []ContractParty `json:"parties,omitempty"`
	EffectiveDate  string          `json:"effectiveDate,omitempty"`
	ExpirationDate string          `json:"expirationDate,omitempty"`
	PaymentTerms   []PaymentTerm   `json:"paymentTerms,omitempty"`
	GoverningLaw   string          `json:"governingLaw,omitempty"`
	KeyTerms       []string        `json:"keyTerms,omitempty"`
}

// LineItem is one invoice line.
type LineItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount,omitempty"`
}

// InvoiceExtraction is the structured data extracted from an invoice.
type InvoiceExtraction struct {
	Vendor      string     `json:"vendor,omitempty"`
	Customer    string     `json:"customer,omitempty"`
	InvoiceDate string     `json:"invoiceDate,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	Total       float64    `json:"total,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	LineItems   []LineItem `json:"lineItems,omitempty"`
}

// ActionItem is one assigned task from a meeting.
type ActionItem struct {
	Assignee string `json:"assignee,omitempty"`
	Task     string `json:"task"`
}

// MeetingExtraction is the structured data extracted from meeting notes.
type MeetingExtraction struct {
	Date        string       `json:"date,omitempty"`
	Attendees   []string     `json:"attendees,omitempty"`
	Decisions   []string     `json:"decisions,omitempty"`
	ActionItems []ActionItem `json:"actionItems,omitempty"`
}

// ReportExtraction is the structured data extracted from a report.
type ReportExtraction struct {
	Author        string   `json:"author,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Locations     []string `json:"locations,omitempty"`
	KeyTerms      []string `json:"keyTerms,omitempty"`
}

// FormatAmount renders a payment amount as the canonical display string
// used for amount entities, e.g. "USD 1500.00".
func FormatAmount(currency string, amount float64) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return fmt.Sprintf("%s %.2f", currency, amount)
}

// Summary builds a bounded, type-specific one-line projection of the
// extraction, used as candidate context for AI prompts. The output never
// exceeds maxLen characters.
func (e Extraction) Summary(maxLen int) string {
	var parts []string

	switch e.Type {
	case DocumentTypeContract:
		if c := e.Contract; c != nil {
			names := make([]string, 0, len(c.Parties))
			for _, p := range c.Parties {
				names = append(names, p.Name)
			}
			if len(names) > 0 {
				parts = append(parts, "Parties: "+strings.Join(names, ", "))
			}
			if c.EffectiveDate != "" {
				parts = append(parts, "Effective: "+c.EffectiveDate)
			}
			if c.ExpirationDate != "" {
				parts = append(parts, "Expires: "+c.ExpirationDate)
			}
			for _, pt := range c.PaymentTerms {
				parts = append(parts, "Payment: "+FormatAmount(pt.Currency, pt.Amount))
			}
			if c.GoverningLaw != "" {
				parts = append(parts, "Governing law: "+c.GoverningLaw)
			}
		}

	case DocumentTypeInvoice:
		if i := e.Invoice; i != nil {
			if i.Vendor != "" {
				parts = append(parts, "Vendor: "+i.Vendor)
			}
			if i.Customer != "" {
				parts = append(parts, "Customer: "+i.Customer)
			}
			if i.Total != 0 {
				parts = append(parts, "Total: "+FormatAmount(i.Currency, i.Total))
			}
			if i.DueDate != "" {
				parts = append(parts, "Due: "+i.DueDate)
			}
		}

	case DocumentTypeMeeting:
		if m := e.Meeting; m != nil {
			if m.Date != "" {
				parts = append(parts, "Date: "+m.Date)
			}
			if len(m.Attendees) > 0 {
				parts = append(parts, "Attendees: "+strings.Join(m.Attendees, ", "))
			}
			if len(m.Decisions) > 0 {
				parts = append(parts, "Decisions: "+strings.Join(m.Decisions, "; "))
			}
		}

	case DocumentTypeReport:
		if r := e.Report; r != nil {
			if r.Author != "" {
				parts = append(parts, "Author: "+r.Author)
			}
			if len(r.Topics) > 0 {
				parts = append(parts, "Topics: "+strings.Join(r.Topics, ", "))
			}
			if len(r.Organizations) > 0 {
				parts = append(parts, "Organizations: "+strings.Join(r.Organizations, ", "))
			}
		}
	}

	summary := strings.Join(parts, ". ")
	if maxLen > 0 && len(summary) > maxLen {
		summary = summary[:maxLen]
	}
	return summary
}

// Text flattens the extraction into the searchable text blob that is pushed
// into the document index alongside the title.
func (e Extraction) Text() string {
	var b strings.Builder

	switch e.Type {
	case DocumentTypeContract:
		if c := e.Contract; c != nil {
			for _, p := range c.Parties {
				b.WriteString(p.Name)
				b.WriteString(" ")
				b.WriteString(p.Role)
				b.WriteString(" ")
			}
			b.WriteString(c.EffectiveDate + " " + c.ExpirationDate + " " + c.GoverningLaw + " ")
			b.WriteString(strings.Join(c.KeyTerms, " "))
			for _, pt := range c.PaymentTerms {
				b.WriteString(" " + pt.Description + " " + FormatAmount(pt.Currency, pt.Amount))
			}
		}
	case DocumentTypeInvoice:
		if i := e.Invoice; i != nil {
			b.WriteString(i.Vendor + " " + i.Customer + " " + i.InvoiceDate + " " + i.DueDate)
			for _, li := range i.LineItems {
				b.WriteString(" " + li.Description)
			}
		}
	case DocumentTypeMeeting:
		if m := e.Meeting; m != nil {
			b.WriteString(strings.Join(m.Attendees, " "))
			b.WriteString(" " + strings.Join(m.Decisions, " "))
			for _, ai := range m.ActionItems {
				b.WriteString(" " + ai.Assignee + " " + ai.Task)
			}
		}
	case DocumentTypeReport:
		if r := e.Report; r != nil {
			b.WriteString(r.Author + " ")
			b.WriteString(strings.Join(r.Topics, " ") + " ")
			b.WriteString(strings.Join(r.Organizations, " ") + " ")
			b.WriteString(strings.Join(r.Locations, " ") + " ")
			b.WriteString(strings.Join(r.KeyTerms, " "))
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
