package model

import "time"

// ContractSnapshot is the slice of a contract that notification templates
// need. It is embedded in the payload at dispatch time so rendering never
// reads the contracts table.
type ContractSnapshot struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	ReferenceNumber    string     `json:"reference_number,omitempty"`
	Category           string     `json:"category,omitempty"`
	ProcuringEntity    string     `json:"procuring_entity,omitempty"`
	SubmissionDeadline *time.Time `json:"submission_deadline,omitempty"`
	EstimatedValueMin  *float64   `json:"estimated_value_min,omitempty"`
	EstimatedValueMax  *float64   `json:"estimated_value_max,omitempty"`
}

// UserSnapshot carries the recipient's contact details. Email and phone
// are the channel destinations; the rest personalizes templates.
type UserSnapshot struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
}

// Opportunity is one entry of a daily digest.
type Opportunity struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	ProcuringEntity    string     `json:"procuring_entity,omitempty"`
	Category           string     `json:"category,omitempty"`
	SubmissionDeadline *time.Time `json:"submission_deadline,omitempty"`
	MatchScore         int        `json:"match_score"` // 1..5
	DaysRemaining      int        `json:"days_remaining"`
}

// Payload is the structured data attached to a notification. Which fields
// are populated depends on the notification type:
//
//   - new_contract_match: Contract, User
//   - deadline_reminder:  Contract, User, DaysRemaining, TimeRemaining
//   - daily_digest:       User, Opportunities
//
// Unknown types carry none of these and render through the generic
// title/message fallback.
type Payload struct {
	Contract      *ContractSnapshot `json:"contract,omitempty"`
	User          *UserSnapshot     `json:"user,omitempty"`
	DaysRemaining int               `json:"days_remaining,omitempty"`
	TimeRemaining string            `json:"time_remaining,omitempty"`
	Opportunities []Opportunity     `json:"opportunities,omitempty"`
}
