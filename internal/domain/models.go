package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns a UUID when none is set. IDs are generated in the
// application so the same models work on Postgres and the sqlite test driver.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// UserRole represents the role of an authenticated user
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleStaff  UserRole = "staff"
	RoleClient UserRole = "client"
)

// IsValid checks if the UserRole is a valid enum value
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleClient:
		return true
	}
	return false
}

// User represents an authenticated account (back office or client portal)
type User struct {
	BaseModel
	Email        string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string     `gorm:"type:varchar(255);not null;column:password_hash"`
	Name         string     `gorm:"type:varchar(200);not null"`
	Role         UserRole   `gorm:"type:varchar(50);not null;default:'client';index"`
	IsActive     bool       `gorm:"not null;default:true;column:is_active"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	Client       *Client    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Client represents a billing target (the commercial counterpart of a User)
type Client struct {
	BaseModel
	UserID        *uuid.UUID     `gorm:"type:uuid;index;column:user_id"`
	User          *User          `gorm:"foreignKey:UserID"`
	Name          string         `gorm:"type:varchar(200);not null;index"`
	CompanyName   string         `gorm:"type:varchar(200);column:company_name"`
	Email         string         `gorm:"type:varchar(255);not null"`
	Phone         string         `gorm:"type:varchar(50)"`
	Address       string         `gorm:"type:varchar(500)"`
	City          string         `gorm:"type:varchar(100)"`
	Country       string         `gorm:"type:varchar(100);not null"`
	TaxID         string         `gorm:"type:varchar(50);column:tax_id"`
	Quotes        []Quote        `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Invoices      []Invoice      `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Subscriptions []Subscription `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Payments      []Payment      `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Projects      []Project      `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
	Tickets       []Ticket       `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE"`
}

// Service represents a priced catalog line item. TaskSteps holds a JSON array
// of task titles used when a fully paid invoice spawns a project.
type Service struct {
	BaseModel
	Name        string         `gorm:"type:varchar(200);not null;index"`
	Description string         `gorm:"type:text"`
	Price       float64        `gorm:"type:decimal(15,2);not null;default:0"`
	TaxRate     float64        `gorm:"type:decimal(5,2);not null;default:0;column:tax_rate"`
	HasProjects bool           `gorm:"not null;default:false;column:has_projects"`
	TaskSteps   datatypes.JSON `gorm:"type:text;column:task_steps"`
	IsActive    bool           `gorm:"not null;default:true;column:is_active"`
}

// Offer represents a promotional price for a service within a validity window
type Offer struct {
	BaseModel
	ServiceID     uuid.UUID  `gorm:"type:uuid;not null;index;column:service_id"`
	Service       *Service   `gorm:"foreignKey:ServiceID"`
	Title         string     `gorm:"type:varchar(200);not null"`
	DiscountPrice float64    `gorm:"type:decimal(15,2);not null;column:discount_price"`
	StartsAt      time.Time  `gorm:"not null;column:starts_at"`
	EndsAt        *time.Time `gorm:"column:ends_at"`
	IsActive      bool       `gorm:"not null;default:true;column:is_active"`
}

// Pack bundles several services under one price
type Pack struct {
	BaseModel
	Name        string    `gorm:"type:varchar(200);not null"`
	Description string    `gorm:"type:text"`
	Price       float64   `gorm:"type:decimal(15,2);not null;default:0"`
	Services    []Service `gorm:"many2many:pack_services"`
	IsActive    bool      `gorm:"not null;default:true;column:is_active"`
}

// BillingCycle represents the recurrence interval of a subscription price
type BillingCycle string

const (
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
)

// IsValid checks if the BillingCycle is a valid enum value
func (c BillingCycle) IsValid() bool {
	switch c {
	case CycleMonthly, CycleQuarterly, CycleYearly:
		return true
	}
	return false
}

// NextFrom returns the billing date one cycle after t.
func (c BillingCycle) NextFrom(t time.Time) time.Time {
	switch c {
	case CycleYearly:
		return t.AddDate(1, 0, 0)
	case CycleQuarterly:
		return t.AddDate(0, 3, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// Plan represents a subscription tier
type Plan struct {
	BaseModel
	Name        string      `gorm:"type:varchar(200);not null;index"`
	Description string      `gorm:"type:text"`
	IsActive    bool        `gorm:"not null;default:true;column:is_active"`
	Prices      []PlanPrice `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
	Fields      []PlanField `gorm:"foreignKey:PlanID;constraint:OnDelete:CASCADE"`
}

// PlanPrice represents one billing option of a plan
type PlanPrice struct {
	BaseModel
	PlanID   uuid.UUID    `gorm:"type:uuid;not null;index;column:plan_id"`
	Cycle    BillingCycle `gorm:"type:varchar(50);not null"`
	Amount   float64      `gorm:"type:decimal(15,2);not null"`
	Currency string       `gorm:"type:varchar(3);not null;default:'MAD'"`
	IsActive bool         `gorm:"not null;default:true;column:is_active"`
}

// FieldKind represents the value type of a plan custom field
type FieldKind string

const (
	FieldKindNumber  FieldKind = "number"
	FieldKindBoolean FieldKind = "boolean"
	FieldKindText    FieldKind = "text"
	FieldKindJSON    FieldKind = "json"
)

// IsValid checks if the FieldKind is a valid enum value
func (k FieldKind) IsValid() bool {
	switch k {
	case FieldKindNumber, FieldKindBoolean, FieldKindText, FieldKindJSON:
		return true
	}
	return false
}

// PlanField represents a typed custom attribute declared on a plan
type PlanField struct {
	BaseModel
	PlanID  uuid.UUID      `gorm:"type:uuid;not null;index;column:plan_id"`
	Name    string         `gorm:"type:varchar(100);not null"`
	Kind    FieldKind      `gorm:"type:varchar(20);not null"`
	// text affinity so bare JSON numbers round-trip on sqlite
	Default datatypes.JSON `gorm:"type:text;column:default_value"`
}

// QuoteStatus represents the status of a quote
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "draft"
	QuoteStatusSent      QuoteStatus = "sent"
	QuoteStatusConfirmed QuoteStatus = "confirmed"
	QuoteStatusSigned    QuoteStatus = "signed"
	QuoteStatusBilled    QuoteStatus = "billed"
	QuoteStatusPaid      QuoteStatus = "paid"
	QuoteStatusRejected  QuoteStatus = "rejected"
)

// IsValid checks if the QuoteStatus is a valid enum value
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusConfirmed,
		QuoteStatusSigned, QuoteStatusBilled, QuoteStatusPaid, QuoteStatusRejected:
		return true
	}
	return false
}

// Quote represents a pre-sale proposal requiring both signatures before billing
type Quote struct {
	BaseModel
	// Number is empty while the quote is a draft; the migration enforces
	// uniqueness only on assigned numbers.
	Number        string              `gorm:"type:varchar(50);index"`
	ClientID      uuid.UUID           `gorm:"type:uuid;not null;index;column:client_id"`
	Client        *Client             `gorm:"foreignKey:ClientID"`
	Status        QuoteStatus         `gorm:"type:varchar(50);not null;default:'draft';index"`
	Currency      string              `gorm:"type:varchar(3);not null;default:'MAD'"`
	TotalAmount   float64             `gorm:"type:decimal(15,2);not null;default:0;column:total_amount"`
	Notes         string              `gorm:"type:text"`
	Services      []QuoteService      `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
	Subscriptions []QuoteSubscription `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
}

// QuoteService represents a service line item on a quote
type QuoteService struct {
	BaseModel
	QuoteID   uuid.UUID `gorm:"type:uuid;not null;index;column:quote_id"`
	ServiceID uuid.UUID `gorm:"type:uuid;not null;column:service_id"`
	Service   *Service  `gorm:"foreignKey:ServiceID"`
	Quantity  int       `gorm:"not null;default:1"`
	UnitPrice float64   `gorm:"type:decimal(15,2);not null;column:unit_price"`
	TaxRate   float64   `gorm:"type:decimal(5,2);not null;default:0;column:tax_rate"`
	LineTotal float64   `gorm:"type:decimal(15,2);not null;column:line_total"`
}

// QuoteSubscription represents a subscription-plan line item on a quote
type QuoteSubscription struct {
	BaseModel
	QuoteID       uuid.UUID    `gorm:"type:uuid;not null;index;column:quote_id"`
	PlanID        uuid.UUID    `gorm:"type:uuid;not null;column:plan_id"`
	Plan          *Plan        `gorm:"foreignKey:PlanID"`
	PlanPriceID   uuid.UUID    `gorm:"type:uuid;not null;column:plan_price_id"`
	Cycle         BillingCycle `gorm:"type:varchar(50);not null"`
	PriceSnapshot float64      `gorm:"type:decimal(15,2);not null;column:price_snapshot"`
}

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusUnpaid        InvoiceStatus = "unpaid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
)

// IsValid checks if the InvoiceStatus is a valid enum value
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusUnpaid,
		InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// Invoice represents a billable document generated from a quote or created directly
type Invoice struct {
	BaseModel
	Number        string                `gorm:"type:varchar(50);index"`
	ClientID      uuid.UUID             `gorm:"type:uuid;not null;index;column:client_id"`
	Client        *Client               `gorm:"foreignKey:ClientID"`
	QuoteID       *uuid.UUID            `gorm:"type:uuid;uniqueIndex;column:quote_id"`
	Quote         *Quote                `gorm:"foreignKey:QuoteID"`
	Status        InvoiceStatus         `gorm:"type:varchar(50);not null;default:'draft';index"`
	Currency      string                `gorm:"type:varchar(3);not null;default:'MAD'"`
	TotalAmount   float64               `gorm:"type:decimal(15,2);not null;default:0;column:total_amount"`
	BalanceDue    float64               `gorm:"type:decimal(15,2);not null;default:0;column:balance_due"`
	DueDate       *time.Time            `gorm:"type:date;column:due_date"`
	Checksum      string                `gorm:"type:varchar(64);index"`
	Services      []InvoiceService      `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Subscriptions []InvoiceSubscription `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Payments      []Payment             `gorm:"foreignKey:InvoiceID"`
}

// ServicesTotal returns the sum of the service line totals.
func (i *Invoice) ServicesTotal() float64 {
	var total float64
	for _, s := range i.Services {
		total += s.IndividualTotal
	}
	return total
}

// SubscriptionsTotal returns the sum of the subscription price snapshots.
func (i *Invoice) SubscriptionsTotal() float64 {
	var total float64
	for _, s := range i.Subscriptions {
		total += s.PriceSnapshot
	}
	return total
}

// InvoiceService represents a service line item on an invoice
type InvoiceService struct {
	BaseModel
	InvoiceID       uuid.UUID `gorm:"type:uuid;not null;index;column:invoice_id"`
	ServiceID       uuid.UUID `gorm:"type:uuid;not null;column:service_id"`
	Service         *Service  `gorm:"foreignKey:ServiceID"`
	Quantity        int       `gorm:"not null;default:1"`
	UnitPrice       float64   `gorm:"type:decimal(15,2);not null;column:unit_price"`
	TaxRate         float64   `gorm:"type:decimal(5,2);not null;default:0;column:tax_rate"`
	IndividualTotal float64   `gorm:"type:decimal(15,2);not null;column:individual_total"`
}

// InvoiceSubscription represents a subscription-plan line item on an invoice.
// It materializes a Subscription once its cumulative paid percentage reaches 100.
type InvoiceSubscription struct {
	BaseModel
	InvoiceID      uuid.UUID     `gorm:"type:uuid;not null;index;column:invoice_id"`
	PlanID         uuid.UUID     `gorm:"type:uuid;not null;column:plan_id"`
	Plan           *Plan         `gorm:"foreignKey:PlanID"`
	PlanPriceID    uuid.UUID     `gorm:"type:uuid;not null;column:plan_price_id"`
	Cycle          BillingCycle  `gorm:"type:varchar(50);not null"`
	PriceSnapshot  float64       `gorm:"type:decimal(15,2);not null;column:price_snapshot"`
	PaidPercentage float64       `gorm:"type:decimal(5,2);not null;default:0;column:paid_percentage"`
	SubscriptionID *uuid.UUID    `gorm:"type:uuid;column:subscription_id"`
	Subscription   *Subscription `gorm:"foreignKey:SubscriptionID"`
}

// PaymentStatus represents the settlement state of a payment
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsValid checks if the PaymentStatus is a valid enum value
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod represents how a payment is collected
type PaymentMethod string

const (
	MethodStripe PaymentMethod = "stripe"
	MethodBank   PaymentMethod = "banc"
	MethodCash   PaymentMethod = "cash"
	MethodCheque PaymentMethod = "cheque"
)

// IsValid checks if the PaymentMethod is a valid enum value
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodStripe, MethodBank, MethodCash, MethodCheque:
		return true
	}
	return false
}

// Payment represents a money-collection attempt against an invoice.
// Total freezes the invoice total at creation time and Amount is the share
// collected now (Total * Percentage / 100). Version guards concurrent
// mutation between webhook delivery and percentage edits.
type Payment struct {
	BaseModel
	InvoiceID         uuid.UUID           `gorm:"type:uuid;not null;index;column:invoice_id"`
	Invoice           *Invoice            `gorm:"foreignKey:InvoiceID"`
	ClientID          uuid.UUID           `gorm:"type:uuid;not null;index;column:client_id"`
	Total             float64             `gorm:"type:decimal(15,2);not null"`
	Amount            float64             `gorm:"type:decimal(15,2);not null"`
	Percentage        float64             `gorm:"type:decimal(5,2);not null;default:100"`
	Currency          string              `gorm:"type:varchar(3);not null;default:'MAD'"`
	Status            PaymentStatus       `gorm:"type:varchar(50);not null;default:'pending';index"`
	Method            PaymentMethod       `gorm:"type:varchar(50);not null"`
	ProviderSessionID string              `gorm:"type:varchar(255);index;column:provider_session_id"`
	CheckoutURL       string              `gorm:"type:varchar(1000);column:checkout_url"`
	PaidAt            *time.Time          `gorm:"column:paid_at"`
	Version           int                 `gorm:"not null;default:0"`
	Allocations       []PaymentAllocation `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

// AllocatableKind represents the invoice component an allocation targets
type AllocatableKind string

const (
	AllocatableInvoice      AllocatableKind = "invoice"
	AllocatableSubscription AllocatableKind = "subscription"
)

// IsValid checks if the AllocatableKind is a valid enum value
func (k AllocatableKind) IsValid() bool {
	switch k {
	case AllocatableInvoice, AllocatableSubscription:
		return true
	}
	return false
}

// PaymentAllocation splits one payment proportionally between the service
// bundle and each subscription line of its invoice.
type PaymentAllocation struct {
	BaseModel
	PaymentID             uuid.UUID       `gorm:"type:uuid;not null;index;column:payment_id"`
	Kind                  AllocatableKind `gorm:"type:varchar(50);not null;column:allocatable_kind"`
	InvoiceSubscriptionID *uuid.UUID      `gorm:"type:uuid;column:invoice_subscription_id"`
	Amount                float64         `gorm:"type:decimal(15,2);not null"`
	PaidPercentage        float64         `gorm:"type:decimal(5,2);not null;column:paid_percentage"`
}

// SubscriptionStatus represents the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// IsValid checks if the SubscriptionStatus is a valid enum value
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusTrial, SubscriptionStatusActive, SubscriptionStatusPastDue,
		SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// Subscription tracks a recurring plan held by a client
type Subscription struct {
	BaseModel
	ClientID      uuid.UUID                `gorm:"type:uuid;not null;index;column:client_id"`
	Client        *Client                  `gorm:"foreignKey:ClientID"`
	PlanID        uuid.UUID                `gorm:"type:uuid;not null;index;column:plan_id"`
	Plan          *Plan                    `gorm:"foreignKey:PlanID"`
	PlanPriceID   uuid.UUID                `gorm:"type:uuid;not null;column:plan_price_id"`
	Cycle         BillingCycle             `gorm:"type:varchar(50);not null"`
	Status        SubscriptionStatus       `gorm:"type:varchar(50);not null;default:'active';index"`
	StartedAt     time.Time                `gorm:"not null;column:started_at"`
	NextBillingAt time.Time                `gorm:"not null;index;column:next_billing_at"`
	EndsAt        *time.Time               `gorm:"column:ends_at"`
	CancelledAt   *time.Time               `gorm:"column:cancelled_at"`
	FieldValues   []SubscriptionFieldValue `gorm:"foreignKey:SubscriptionID;constraint:OnDelete:CASCADE"`
}

// FieldValue returns the stored value for a custom field name, nil when unset.
func (s *Subscription) FieldValue(name string) *SubscriptionFieldValue {
	for i := range s.FieldValues {
		if s.FieldValues[i].Name == name {
			return &s.FieldValues[i]
		}
	}
	return nil
}

// SubscriptionFieldValue holds one typed custom-field value of a subscription
type SubscriptionFieldValue struct {
	BaseModel
	SubscriptionID uuid.UUID      `gorm:"type:uuid;not null;index;column:subscription_id"`
	Name           string         `gorm:"type:varchar(100);not null"`
	Kind           FieldKind      `gorm:"type:varchar(20);not null"`
	Value          datatypes.JSON `gorm:"type:text;column:value"`
}

// ProjectStatus represents the status of a project
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// IsValid checks if the ProjectStatus is a valid enum value
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusActive, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

// Project represents delivery work spawned from a paid invoice or created directly
type Project struct {
	BaseModel
	Name      string           `gorm:"type:varchar(200);not null;index"`
	ClientID  uuid.UUID        `gorm:"type:uuid;not null;index;column:client_id"`
	Client    *Client          `gorm:"foreignKey:ClientID"`
	InvoiceID *uuid.UUID       `gorm:"type:uuid;index;column:invoice_id"`
	ServiceID *uuid.UUID       `gorm:"type:uuid;column:service_id"`
	Service   *Service         `gorm:"foreignKey:ServiceID"`
	Status    ProjectStatus    `gorm:"type:varchar(50);not null;default:'draft';index"`
	Tasks     []Task           `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
	Progress  *ProjectProgress `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// ProjectProgress aggregates the weight of completed tasks (0-100)
type ProjectProgress struct {
	BaseModel
	ProjectID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex;column:project_id"`
	AccumulatedPercentage float64   `gorm:"type:decimal(5,2);not null;default:0;column:accumulated_percentage"`
}

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// IsValid checks if the TaskStatus is a valid enum value
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Task represents one step of a project. Percentage is derived: every create
// and delete rebalances all sibling tasks to an equal share of 100.
type Task struct {
	BaseModel
	ProjectID  uuid.UUID  `gorm:"type:uuid;not null;index;column:project_id"`
	Title      string     `gorm:"type:varchar(200);not null"`
	Status     TaskStatus `gorm:"type:varchar(50);not null;default:'todo';index"`
	Percentage float64    `gorm:"type:decimal(5,2);not null;default:0"`
}

// TicketStatus represents the status of a support ticket
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

// IsValid checks if the TicketStatus is a valid enum value
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority represents the priority of a support ticket
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// IsValid checks if the TicketPriority is a valid enum value
func (p TicketPriority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Ticket represents a client support request
type Ticket struct {
	BaseModel
	ClientID uuid.UUID      `gorm:"type:uuid;not null;index;column:client_id"`
	Client   *Client        `gorm:"foreignKey:ClientID"`
	Subject  string         `gorm:"type:varchar(200);not null"`
	Body     string         `gorm:"type:text"`
	Status   TicketStatus   `gorm:"type:varchar(50);not null;default:'open';index"`
	Priority TicketPriority `gorm:"type:varchar(50);not null;default:'normal'"`
}

// OwnerKind is the closed set of entities that can own comments and files
type OwnerKind string

const (
	OwnerClient       OwnerKind = "client"
	OwnerQuote        OwnerKind = "quote"
	OwnerInvoice      OwnerKind = "invoice"
	OwnerPayment      OwnerKind = "payment"
	OwnerSubscription OwnerKind = "subscription"
	OwnerProject      OwnerKind = "project"
	OwnerTask         OwnerKind = "task"
	OwnerTicket       OwnerKind = "ticket"
)

// IsValid checks if the OwnerKind is a valid enum value
func (k OwnerKind) IsValid() bool {
	switch k {
	case OwnerClient, OwnerQuote, OwnerInvoice, OwnerPayment,
		OwnerSubscription, OwnerProject, OwnerTask, OwnerTicket:
		return true
	}
	return false
}

// Comment is attached polymorphically to an owning entity
type Comment struct {
	BaseModel
	OwnerKind  OwnerKind `gorm:"type:varchar(50);not null;index;column:owner_kind"`
	OwnerID    uuid.UUID `gorm:"type:uuid;not null;index;column:owner_id"`
	AuthorID   uuid.UUID `gorm:"type:uuid;not null;column:author_id"`
	AuthorName string    `gorm:"type:varchar(200);column:author_name"`
	Body       string    `gorm:"type:text;not null"`
}

// FileKind classifies an uploaded file
type FileKind string

const (
	FileKindAttachment      FileKind = "attachment"
	FileKindAdminSignature  FileKind = "admin_signature"
	FileKindClientSignature FileKind = "client_signature"
)

// IsValid checks if the FileKind is a valid enum value
func (k FileKind) IsValid() bool {
	switch k {
	case FileKindAttachment, FileKindAdminSignature, FileKindClientSignature:
		return true
	}
	return false
}

// File represents an uploaded blob owned polymorphically by an entity
type File struct {
	BaseModel
	OwnerKind   OwnerKind `gorm:"type:varchar(50);not null;index;column:owner_kind"`
	OwnerID     uuid.UUID `gorm:"type:uuid;not null;index;column:owner_id"`
	Kind        FileKind  `gorm:"type:varchar(50);not null;default:'attachment'"`
	Filename    string    `gorm:"type:varchar(255);not null"`
	ContentType string    `gorm:"type:varchar(100);not null;column:content_type"`
	Size        int64     `gorm:"not null"`
	StoragePath string    `gorm:"type:varchar(500);not null;unique;column:storage_path"`
}

// ActivityLog represents an event log entry for any entity
type ActivityLog struct {
	BaseModel
	TargetKind OwnerKind  `gorm:"type:varchar(50);not null;index;column:target_kind"`
	TargetID   uuid.UUID  `gorm:"type:uuid;not null;index;column:target_id"`
	Title      string     `gorm:"type:varchar(200);not null"`
	Body       string     `gorm:"type:varchar(2000)"`
	ActorID    *uuid.UUID `gorm:"type:uuid;column:actor_id"`
	ActorName  string     `gorm:"type:varchar(200);column:actor_name"`
	OccurredAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;index;column:occurred_at"`
}

// NumberSequence backs sequential document numbering per scope and year
type NumberSequence struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Scope        string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_sequence_scope_year"`
	Year         int       `gorm:"not null;uniqueIndex:idx_sequence_scope_year"`
	LastSequence int       `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns a UUID when none is set.
func (n *NumberSequence) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
