package prolink

import (
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// Table names owned by the backend schema.
const (
	TableProfiles      = "profiles"
	TableJobs          = "jobs"
	TableProposals     = "proposals"
	TableMessages      = "messages"
	TableNotifications = "notifications"
)

// Profile extends a user identity with role and marketplace
// attributes. The row is created by a backend trigger after sign-up
// completes, one per identity, and is only ever mutated by its owner.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Role        Role       `bun:"role,notnull" json:"role"`
	FirstName   string     `bun:"first_name" json:"first_name,omitempty"`
	LastName    string     `bun:"last_name" json:"last_name,omitempty"`
	AvatarURL   string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	Bio         string     `bun:"bio" json:"bio,omitempty"`
	Phone       string     `bun:"phone_number" json:"phone_number,omitempty"`
	Skills      []string   `bun:"skills" json:"skills,omitempty"`
	HourlyRate  float64    `bun:"hourly_rate" json:"hourly_rate,omitempty"`
	Rating      float64    `bun:"rating" json:"rating,omitempty"`
	RatingCount int        `bun:"rating_count" json:"rating_count,omitempty"`
	CreatedAt   *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// FullName joins the name fields for display.
func (p *Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// ValidatePhone parses the profile phone against the given default
// region. Empty phones are valid; the field is optional.
func (p *Profile) ValidatePhone(region string) error {
	if p.Phone == "" {
		return nil
	}
	num, err := phonenumbers.Parse(p.Phone, region)
	if err != nil {
		return err
	}
	if !phonenumbers.IsValidNumber(num) {
		return phonenumbers.ErrNotANumber
	}
	return nil
}

// JobStatus is the lifecycle of a posted job.
type JobStatus string

const (
	JobStatusDraft      JobStatus = "draft"
	JobStatusActive     JobStatus = "active"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Job is a unit of work posted by a client.
type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:job"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	ClientID    uuid.UUID  `bun:"client_id,notnull,type:uuid" json:"client_id"`
	Title       string     `bun:"title,notnull" json:"title"`
	Description string     `bun:"description" json:"description,omitempty"`
	Category    string     `bun:"category" json:"category,omitempty"`
	Location    string     `bun:"location" json:"location,omitempty"`
	Budget      float64    `bun:"budget" json:"budget,omitempty"`
	Status      JobStatus  `bun:"status,notnull" json:"status"`
	CreatedAt   *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ProposalStatus is the lifecycle of a professional's bid on a job.
type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusWithdrawn ProposalStatus = "withdrawn"
)

// Proposal is a professional's bid on a job.
type Proposal struct {
	bun.BaseModel `bun:"table:proposals,alias:prp"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	JobID          uuid.UUID      `bun:"job_id,notnull,type:uuid" json:"job_id"`
	ProfessionalID uuid.UUID      `bun:"professional_id,notnull,type:uuid" json:"professional_id"`
	CoverLetter    string         `bun:"cover_letter" json:"cover_letter,omitempty"`
	Rate           float64        `bun:"rate" json:"rate,omitempty"`
	Status         ProposalStatus `bun:"status,notnull" json:"status"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Message is a direct message between two users, optionally scoped to
// a job.
type Message struct {
	bun.BaseModel `bun:"table:messages,alias:msg"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	SenderID    uuid.UUID  `bun:"sender_id,notnull,type:uuid" json:"sender_id"`
	RecipientID uuid.UUID  `bun:"recipient_id,notnull,type:uuid" json:"recipient_id"`
	JobID       *uuid.UUID `bun:"job_id,nullzero,type:uuid" json:"job_id,omitempty"`
	Content     string     `bun:"content,notnull" json:"content"`
	Read        bool       `bun:"read" json:"read"`
	CreatedAt   *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Notification is a per-user activity item.
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:ntf"`

	ID        uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UserID    uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Kind      string     `bun:"kind" json:"kind,omitempty"`
	Title     string     `bun:"title,notnull" json:"title"`
	Body      string     `bun:"body" json:"body,omitempty"`
	Read      bool       `bun:"read" json:"read"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
