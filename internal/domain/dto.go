package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DTOs for API responses

// Auth DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type RegisterRequest struct {
	Name     string   `json:"name" validate:"required,max=200"`
	Email    string   `json:"email" validate:"required,email,max=255"`
	Password string   `json:"password" validate:"required,min=8,max=128"`
	Role     UserRole `json:"role,omitempty"`
}

type AuthResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expiresAt"` // ISO 8601
	User      UserDTO `json:"user"`
}

type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        UserRole   `json:"role"`
	IsActive    bool       `json:"isActive"`
	ClientID    *uuid.UUID `json:"clientId,omitempty"`
	LastLoginAt string     `json:"lastLoginAt,omitempty"` // ISO 8601
	CreatedAt   string     `json:"createdAt"`             // ISO 8601
}

// Client DTOs

type ClientDTO struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"userId,omitempty"`
	Name        string     `json:"name"`
	CompanyName string     `json:"companyName,omitempty"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Address     string     `json:"address,omitempty"`
	City        string     `json:"city,omitempty"`
	Country     string     `json:"country"`
	TaxID       string     `json:"taxId,omitempty"`
	CreatedAt   string     `json:"createdAt"` // ISO 8601
	UpdatedAt   string     `json:"updatedAt"` // ISO 8601
}

// ClientWithStatsDTO includes client data with billing statistics
type ClientWithStatsDTO struct {
	ClientDTO
	Stats *ClientStatsDTO `json:"stats,omitempty"`
}

// ClientStatsDTO holds aggregated billing statistics for a client
type ClientStatsDTO struct {
	QuoteCount          int     `json:"quoteCount"`
	InvoiceCount        int     `json:"invoiceCount"`
	ActiveSubscriptions int     `json:"activeSubscriptions"`
	OpenTickets         int     `json:"openTickets"`
	TotalInvoiced       float64 `json:"totalInvoiced"`
	TotalOutstanding    float64 `json:"totalOutstanding"`
}

type CreateClientRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	CompanyName string `json:"companyName,omitempty" validate:"max=200"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Phone       string `json:"phone,omitempty" validate:"max=50"`
	Address     string `json:"address,omitempty" validate:"max=500"`
	City        string `json:"city,omitempty" validate:"max=100"`
	Country     string `json:"country" validate:"required,max=100"`
	TaxID       string `json:"taxId,omitempty" validate:"max=50"`
}

type UpdateClientRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	CompanyName string `json:"companyName,omitempty" validate:"max=200"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Phone       string `json:"phone,omitempty" validate:"max=50"`
	Address     string `json:"address,omitempty" validate:"max=500"`
	City        string `json:"city,omitempty" validate:"max=100"`
	Country     string `json:"country" validate:"required,max=100"`
	TaxID       string `json:"taxId,omitempty" validate:"max=50"`
}

// Catalog DTOs

type ServiceDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	TaxRate     float64   `json:"taxRate"`
	HasProjects bool      `json:"hasProjects"`
	TaskSteps   []string  `json:"taskSteps,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   string    `json:"createdAt"` // ISO 8601
	UpdatedAt   string    `json:"updatedAt"` // ISO 8601
}

type CreateServiceRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price" validate:"gte=0"`
	TaxRate     float64  `json:"taxRate,omitempty" validate:"gte=0,lte=100"`
	HasProjects bool     `json:"hasProjects,omitempty"`
	TaskSteps   []string `json:"taskSteps,omitempty" validate:"dive,required,max=200"`
}

type UpdateServiceRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price" validate:"gte=0"`
	TaxRate     float64  `json:"taxRate,omitempty" validate:"gte=0,lte=100"`
	HasProjects bool     `json:"hasProjects,omitempty"`
	TaskSteps   []string `json:"taskSteps,omitempty" validate:"dive,required,max=200"`
	IsActive    *bool    `json:"isActive,omitempty"`
}

type OfferDTO struct {
	ID            uuid.UUID `json:"id"`
	ServiceID     uuid.UUID `json:"serviceId"`
	ServiceName   string    `json:"serviceName,omitempty"`
	Title         string    `json:"title"`
	DiscountPrice float64   `json:"discountPrice"`
	StartsAt      string    `json:"startsAt"`          // ISO 8601
	EndsAt        *string   `json:"endsAt,omitempty"`  // ISO 8601
	IsActive      bool      `json:"isActive"`
	CreatedAt     string    `json:"createdAt"` // ISO 8601
}

type CreateOfferRequest struct {
	ServiceID     uuid.UUID  `json:"serviceId" validate:"required"`
	Title         string     `json:"title" validate:"required,max=200"`
	DiscountPrice float64    `json:"discountPrice" validate:"gte=0"`
	StartsAt      time.Time  `json:"startsAt" validate:"required"`
	EndsAt        *time.Time `json:"endsAt,omitempty"`
}

type PackDTO struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Price       float64      `json:"price"`
	Services    []ServiceDTO `json:"services,omitempty"`
	IsActive    bool         `json:"isActive"`
	CreatedAt   string       `json:"createdAt"` // ISO 8601
}

type CreatePackRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Description string      `json:"description,omitempty"`
	Price       float64     `json:"price" validate:"gte=0"`
	ServiceIDs  []uuid.UUID `json:"serviceIds" validate:"required,min=1"`
}

type PlanDTO struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	IsActive    bool           `json:"isActive"`
	Prices      []PlanPriceDTO `json:"prices"`
	Fields      []PlanFieldDTO `json:"fields,omitempty"`
	CreatedAt   string         `json:"createdAt"` // ISO 8601
}

type PlanPriceDTO struct {
	ID       uuid.UUID    `json:"id"`
	Cycle    BillingCycle `json:"cycle"`
	Amount   float64      `json:"amount"`
	Currency string       `json:"currency"`
	IsActive bool         `json:"isActive"`
}

type PlanFieldDTO struct {
	ID      uuid.UUID       `json:"id"`
	Name    string          `json:"name"`
	Kind    FieldKind       `json:"kind"`
	Default json.RawMessage `json:"default,omitempty"`
}

type CreatePlanRequest struct {
	Name        string                   `json:"name" validate:"required,max=200"`
	Description string                   `json:"description,omitempty"`
	Prices      []CreatePlanPriceRequest `json:"prices" validate:"required,min=1,dive"`
	Fields      []CreatePlanFieldRequest `json:"fields,omitempty" validate:"dive"`
}

type CreatePlanPriceRequest struct {
	Cycle    BillingCycle `json:"cycle" validate:"required"`
	Amount   float64      `json:"amount" validate:"gte=0"`
	Currency string       `json:"currency,omitempty" validate:"max=3"`
}

type CreatePlanFieldRequest struct {
	Name    string          `json:"name" validate:"required,max=100"`
	Kind    FieldKind       `json:"kind" validate:"required"`
	Default json.RawMessage `json:"default,omitempty"`
}

// Quote DTOs

type QuoteDTO struct {
	ID            uuid.UUID              `json:"id"`
	Number        string                 `json:"number,omitempty"`
	ClientID      uuid.UUID              `json:"clientId"`
	ClientName    string                 `json:"clientName,omitempty"`
	Status        QuoteStatus            `json:"status"`
	Currency      string                 `json:"currency"`
	TotalAmount   float64                `json:"totalAmount"`
	Notes         string                 `json:"notes,omitempty"`
	Services      []QuoteServiceDTO      `json:"services"`
	Subscriptions []QuoteSubscriptionDTO `json:"subscriptions,omitempty"`
	AdminSigned   bool                   `json:"adminSigned"`
	ClientSigned  bool                   `json:"clientSigned"`
	CreatedAt     string                 `json:"createdAt"` // ISO 8601
	UpdatedAt     string                 `json:"updatedAt"` // ISO 8601
}

type QuoteServiceDTO struct {
	ID          uuid.UUID `json:"id"`
	ServiceID   uuid.UUID `json:"serviceId"`
	ServiceName string    `json:"serviceName,omitempty"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	TaxRate     float64   `json:"taxRate"`
	LineTotal   float64   `json:"lineTotal"`
}

type QuoteSubscriptionDTO struct {
	ID            uuid.UUID    `json:"id"`
	PlanID        uuid.UUID    `json:"planId"`
	PlanName      string       `json:"planName,omitempty"`
	PlanPriceID   uuid.UUID    `json:"planPriceId"`
	Cycle         BillingCycle `json:"cycle"`
	PriceSnapshot float64      `json:"priceSnapshot"`
}

type CreateQuoteRequest struct {
	ClientID      uuid.UUID                       `json:"clientId" validate:"required"`
	Currency      string                          `json:"currency,omitempty" validate:"max=3"`
	Notes         string                          `json:"notes,omitempty"`
	Services      []CreateQuoteServiceRequest     `json:"services,omitempty" validate:"dive"`
	Subscriptions []CreateQuoteSubscriptionRequest `json:"subscriptions,omitempty" validate:"dive"`
}

type CreateQuoteServiceRequest struct {
	ServiceID uuid.UUID `json:"serviceId" validate:"required"`
	Quantity  int       `json:"quantity,omitempty" validate:"omitempty,min=1"`
}

type CreateQuoteSubscriptionRequest struct {
	PlanID      uuid.UUID `json:"planId" validate:"required"`
	PlanPriceID uuid.UUID `json:"planPriceId" validate:"required"`
}

type UpdateQuoteRequest struct {
	Notes         string                           `json:"notes,omitempty"`
	Services      []CreateQuoteServiceRequest      `json:"services,omitempty" validate:"dive"`
	Subscriptions []CreateQuoteSubscriptionRequest `json:"subscriptions,omitempty" validate:"dive"`
}

// RejectQuoteRequest contains the reason for rejecting a quote
type RejectQuoteRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// ConvertQuoteResponse contains the invoice produced from a signed quote
type ConvertQuoteResponse struct {
	Quote   *QuoteDTO   `json:"quote"`
	Invoice *InvoiceDTO `json:"invoice"`
}

// Invoice DTOs

type InvoiceDTO struct {
	ID            uuid.UUID                `json:"id"`
	Number        string                   `json:"number,omitempty"`
	ClientID      uuid.UUID                `json:"clientId"`
	ClientName    string                   `json:"clientName,omitempty"`
	QuoteID       *uuid.UUID               `json:"quoteId,omitempty"`
	Status        InvoiceStatus            `json:"status"`
	Currency      string                   `json:"currency"`
	TotalAmount   float64                  `json:"totalAmount"`
	BalanceDue    float64                  `json:"balanceDue"`
	DueDate       *string                  `json:"dueDate,omitempty"` // ISO 8601
	Services      []InvoiceServiceDTO      `json:"services"`
	Subscriptions []InvoiceSubscriptionDTO `json:"subscriptions,omitempty"`
	Payments      []PaymentDTO             `json:"payments,omitempty"`
	CreatedAt     string                   `json:"createdAt"` // ISO 8601
	UpdatedAt     string                   `json:"updatedAt"` // ISO 8601
}

type InvoiceServiceDTO struct {
	ID              uuid.UUID `json:"id"`
	ServiceID       uuid.UUID `json:"serviceId"`
	ServiceName     string    `json:"serviceName,omitempty"`
	Quantity        int       `json:"quantity"`
	UnitPrice       float64   `json:"unitPrice"`
	TaxRate         float64   `json:"taxRate"`
	IndividualTotal float64   `json:"individualTotal"`
}

type InvoiceSubscriptionDTO struct {
	ID             uuid.UUID    `json:"id"`
	PlanID         uuid.UUID    `json:"planId"`
	PlanName       string       `json:"planName,omitempty"`
	PlanPriceID    uuid.UUID    `json:"planPriceId"`
	Cycle          BillingCycle `json:"cycle"`
	PriceSnapshot  float64      `json:"priceSnapshot"`
	PaidPercentage float64      `json:"paidPercentage"`
	SubscriptionID *uuid.UUID   `json:"subscriptionId,omitempty"`
}

type CreateInvoiceRequest struct {
	ClientID      uuid.UUID                        `json:"clientId" validate:"required"`
	Currency      string                           `json:"currency,omitempty" validate:"max=3"`
	DueDate       *time.Time                       `json:"dueDate,omitempty"`
	Services      []CreateQuoteServiceRequest      `json:"services,omitempty" validate:"dive"`
	Subscriptions []CreateQuoteSubscriptionRequest `json:"subscriptions,omitempty" validate:"dive"`
}

// Payment DTOs

type PaymentDTO struct {
	ID          uuid.UUID     `json:"id"`
	InvoiceID   uuid.UUID     `json:"invoiceId"`
	ClientID    uuid.UUID     `json:"clientId"`
	Total       float64       `json:"total"`
	Amount      float64       `json:"amount"`
	Percentage  float64       `json:"percentage"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	Method      PaymentMethod `json:"method"`
	CheckoutURL string        `json:"checkoutUrl,omitempty"`
	PaidAt      *string       `json:"paidAt,omitempty"` // ISO 8601
	CreatedAt   string        `json:"createdAt"`        // ISO 8601
}

// PaymentWithAllocationsDTO includes the proportional split of a settled payment
type PaymentWithAllocationsDTO struct {
	PaymentDTO
	Allocations []PaymentAllocationDTO `json:"allocations,omitempty"`
}

type PaymentAllocationDTO struct {
	ID                    uuid.UUID       `json:"id"`
	Kind                  AllocatableKind `json:"kind"`
	InvoiceSubscriptionID *uuid.UUID      `json:"invoiceSubscriptionId,omitempty"`
	Amount                float64         `json:"amount"`
	PaidPercentage        float64         `json:"paidPercentage"`
}

// CreatePaymentLinkRequest opens a collection attempt for a share of an invoice
type CreatePaymentLinkRequest struct {
	Percentage float64 `json:"percentage,omitempty" validate:"omitempty,gt=0,lte=100"`
}

// UpdatePendingPaymentRequest changes the collected share before settlement
type UpdatePendingPaymentRequest struct {
	Percentage float64 `json:"percentage" validate:"required,gt=0,lte=100"`
}

// SettlePaymentRequest records an out-of-band settlement (bank transfer, cash, cheque)
type SettlePaymentRequest struct {
	Method    PaymentMethod `json:"method,omitempty"`
	Reference string        `json:"reference,omitempty" validate:"max=200"`
}

// Subscription DTOs

type SubscriptionDTO struct {
	ID            uuid.UUID                    `json:"id"`
	ClientID      uuid.UUID                    `json:"clientId"`
	ClientName    string                       `json:"clientName,omitempty"`
	PlanID        uuid.UUID                    `json:"planId"`
	PlanName      string                       `json:"planName,omitempty"`
	PlanPriceID   uuid.UUID                    `json:"planPriceId"`
	Cycle         BillingCycle                 `json:"cycle"`
	Status        SubscriptionStatus           `json:"status"`
	StartedAt     string                       `json:"startedAt"`     // ISO 8601
	NextBillingAt string                       `json:"nextBillingAt"` // ISO 8601
	EndsAt        *string                      `json:"endsAt,omitempty"`
	CancelledAt   *string                      `json:"cancelledAt,omitempty"`
	FieldValues   []SubscriptionFieldValueDTO  `json:"fieldValues,omitempty"`
	CreatedAt     string                       `json:"createdAt"` // ISO 8601
}

type SubscriptionFieldValueDTO struct {
	Name  string          `json:"name"`
	Kind  FieldKind       `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

type CreateSubscriptionRequest struct {
	ClientID    uuid.UUID `json:"clientId" validate:"required"`
	PlanID      uuid.UUID `json:"planId" validate:"required"`
	PlanPriceID uuid.UUID `json:"planPriceId" validate:"required"`
	TrialDays   int       `json:"trialDays,omitempty" validate:"omitempty,min=1,max=90"`
}

// CancelSubscriptionRequest controls when the cancellation takes effect
type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"atPeriodEnd,omitempty"`
}

type ChangePlanRequest struct {
	PlanID      uuid.UUID `json:"planId" validate:"required"`
	PlanPriceID uuid.UUID `json:"planPriceId" validate:"required"`
}

type SetFieldValueRequest struct {
	Name  string          `json:"name" validate:"required,max=100"`
	Value json.RawMessage `json:"value" validate:"required"`
}

// Project DTOs

type ProjectDTO struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	ClientID       uuid.UUID     `json:"clientId"`
	ClientName     string        `json:"clientName,omitempty"`
	InvoiceID      *uuid.UUID    `json:"invoiceId,omitempty"`
	ServiceID      *uuid.UUID    `json:"serviceId,omitempty"`
	ServiceName    string        `json:"serviceName,omitempty"`
	Status         ProjectStatus `json:"status"`
	Tasks          []TaskDTO     `json:"tasks,omitempty"`
	ProgressPct    float64       `json:"progressPct"`
	CreatedAt      string        `json:"createdAt"` // ISO 8601
	UpdatedAt      string        `json:"updatedAt"` // ISO 8601
}

type CreateProjectRequest struct {
	Name     string    `json:"name" validate:"required,max=200"`
	ClientID uuid.UUID `json:"clientId" validate:"required"`
	Tasks    []string  `json:"tasks,omitempty" validate:"dive,required,max=200"`
}

type UpdateProjectStatusRequest struct {
	Status ProjectStatus `json:"status" validate:"required"`
}

type TaskDTO struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  uuid.UUID  `json:"projectId"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
	Percentage float64    `json:"percentage"`
	CreatedAt  string     `json:"createdAt"` // ISO 8601
}

type CreateTaskRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type UpdateTaskStatusRequest struct {
	Status TaskStatus `json:"status" validate:"required"`
}

// Support DTOs

type TicketDTO struct {
	ID         uuid.UUID      `json:"id"`
	ClientID   uuid.UUID      `json:"clientId"`
	ClientName string         `json:"clientName,omitempty"`
	Subject    string         `json:"subject"`
	Body       string         `json:"body,omitempty"`
	Status     TicketStatus   `json:"status"`
	Priority   TicketPriority `json:"priority"`
	CreatedAt  string         `json:"createdAt"` // ISO 8601
	UpdatedAt  string         `json:"updatedAt"` // ISO 8601
}

type CreateTicketRequest struct {
	ClientID uuid.UUID      `json:"clientId" validate:"required"`
	Subject  string         `json:"subject" validate:"required,max=200"`
	Body     string         `json:"body,omitempty" validate:"max=5000"`
	Priority TicketPriority `json:"priority,omitempty"`
}

type UpdateTicketStatusRequest struct {
	Status TicketStatus `json:"status" validate:"required"`
}

type CommentDTO struct {
	ID         uuid.UUID `json:"id"`
	OwnerKind  OwnerKind `json:"ownerKind"`
	OwnerID    uuid.UUID `json:"ownerId"`
	AuthorID   uuid.UUID `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  string    `json:"createdAt"` // ISO 8601
}

type CreateCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

type FileDTO struct {
	ID          uuid.UUID `json:"id"`
	OwnerKind   OwnerKind `json:"ownerKind"`
	OwnerID     uuid.UUID `json:"ownerId"`
	Kind        FileKind  `json:"kind"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   string    `json:"createdAt"` // ISO 8601
}

type ActivityLogDTO struct {
	ID         uuid.UUID `json:"id"`
	TargetKind OwnerKind `json:"targetKind"`
	TargetID   uuid.UUID `json:"targetId"`
	Title      string    `json:"title"`
	Body       string    `json:"body,omitempty"`
	ActorName  string    `json:"actorName,omitempty"`
	OccurredAt string    `json:"occurredAt"` // ISO 8601
}

// Import DTOs

// ImportResultDTO summarizes a CSV client import
type ImportResultDTO struct {
	Created int              `json:"created"`
	Skipped int              `json:"skipped"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Dashboard DTOs

// DashboardMetrics aggregates billing activity for the back office
type DashboardMetrics struct {
	ClientCount         int64   `json:"clientCount"`
	OpenQuoteCount      int64   `json:"openQuoteCount"`
	UnpaidInvoiceCount  int64   `json:"unpaidInvoiceCount"`
	OverdueInvoiceCount int64   `json:"overdueInvoiceCount"`
	ActiveSubscriptions int64   `json:"activeSubscriptions"`
	PastDueSubscriptions int64  `json:"pastDueSubscriptions"`
	OpenTicketCount     int64   `json:"openTicketCount"`
	TotalOutstanding    float64 `json:"totalOutstanding"`
	CollectedThisMonth  float64 `json:"collectedThisMonth"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// Pagination response wrapper
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// API Response wrapper
type APIResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
}
