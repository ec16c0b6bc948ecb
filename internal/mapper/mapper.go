package mapper

import (
	"encoding/json"
	"time"

	"github.com/veloraops/agency-api/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToUserDTO converts User to UserDTO
func ToUserDTO(user *domain.User) domain.UserDTO {
	dto := domain.UserDTO{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		IsActive:  user.IsActive,
		CreatedAt: formatTime(user.CreatedAt),
	}
	if user.Client != nil {
		dto.ClientID = &user.Client.ID
	}
	if user.LastLoginAt != nil {
		dto.LastLoginAt = formatTime(*user.LastLoginAt)
	}
	return dto
}

// ToClientDTO converts Client to ClientDTO
func ToClientDTO(client *domain.Client) domain.ClientDTO {
	return domain.ClientDTO{
		ID:          client.ID,
		UserID:      client.UserID,
		Name:        client.Name,
		CompanyName: client.CompanyName,
		Email:       client.Email,
		Phone:       client.Phone,
		Address:     client.Address,
		City:        client.City,
		Country:     client.Country,
		TaxID:       client.TaxID,
		CreatedAt:   formatTime(client.CreatedAt),
		UpdatedAt:   formatTime(client.UpdatedAt),
	}
}

// ToServiceDTO converts Service to ServiceDTO, decoding the task step list
func ToServiceDTO(service *domain.Service) domain.ServiceDTO {
	dto := domain.ServiceDTO{
		ID:          service.ID,
		Name:        service.Name,
		Description: service.Description,
		Price:       service.Price,
		TaxRate:     service.TaxRate,
		HasProjects: service.HasProjects,
		IsActive:    service.IsActive,
		CreatedAt:   formatTime(service.CreatedAt),
		UpdatedAt:   formatTime(service.UpdatedAt),
	}
	if len(service.TaskSteps) > 0 {
		var steps []string
		if err := json.Unmarshal(service.TaskSteps, &steps); err == nil {
			dto.TaskSteps = steps
		}
	}
	return dto
}

// ToOfferDTO converts Offer to OfferDTO
func ToOfferDTO(offer *domain.Offer) domain.OfferDTO {
	dto := domain.OfferDTO{
		ID:            offer.ID,
		ServiceID:     offer.ServiceID,
		Title:         offer.Title,
		DiscountPrice: offer.DiscountPrice,
		StartsAt:      formatTime(offer.StartsAt),
		EndsAt:        formatTimePtr(offer.EndsAt),
		IsActive:      offer.IsActive,
		CreatedAt:     formatTime(offer.CreatedAt),
	}
	if offer.Service != nil {
		dto.ServiceName = offer.Service.Name
	}
	return dto
}

// ToPackDTO converts Pack to PackDTO
func ToPackDTO(pack *domain.Pack) domain.PackDTO {
	dto := domain.PackDTO{
		ID:          pack.ID,
		Name:        pack.Name,
		Description: pack.Description,
		Price:       pack.Price,
		IsActive:    pack.IsActive,
		CreatedAt:   formatTime(pack.CreatedAt),
	}
	if len(pack.Services) > 0 {
		dto.Services = make([]domain.ServiceDTO, len(pack.Services))
		for i := range pack.Services {
			dto.Services[i] = ToServiceDTO(&pack.Services[i])
		}
	}
	return dto
}

// ToPlanDTO converts Plan to PlanDTO
func ToPlanDTO(plan *domain.Plan) domain.PlanDTO {
	dto := domain.PlanDTO{
		ID:          plan.ID,
		Name:        plan.Name,
		Description: plan.Description,
		IsActive:    plan.IsActive,
		Prices:      make([]domain.PlanPriceDTO, len(plan.Prices)),
		CreatedAt:   formatTime(plan.CreatedAt),
	}
	for i, price := range plan.Prices {
		dto.Prices[i] = domain.PlanPriceDTO{
			ID:       price.ID,
			Cycle:    price.Cycle,
			Amount:   price.Amount,
			Currency: price.Currency,
			IsActive: price.IsActive,
		}
	}
	if len(plan.Fields) > 0 {
		dto.Fields = make([]domain.PlanFieldDTO, len(plan.Fields))
		for i, field := range plan.Fields {
			dto.Fields[i] = domain.PlanFieldDTO{
				ID:      field.ID,
				Name:    field.Name,
				Kind:    field.Kind,
				Default: json.RawMessage(field.Default),
			}
		}
	}
	return dto
}

// ToQuoteDTO converts Quote to QuoteDTO. Signature flags reflect which
// signature files have been uploaded.
func ToQuoteDTO(quote *domain.Quote, adminSigned, clientSigned bool) domain.QuoteDTO {
	dto := domain.QuoteDTO{
		ID:           quote.ID,
		Number:       quote.Number,
		ClientID:     quote.ClientID,
		Status:       quote.Status,
		Currency:     quote.Currency,
		TotalAmount:  quote.TotalAmount,
		Notes:        quote.Notes,
		Services:     make([]domain.QuoteServiceDTO, len(quote.Services)),
		AdminSigned:  adminSigned,
		ClientSigned: clientSigned,
		CreatedAt:    formatTime(quote.CreatedAt),
		UpdatedAt:    formatTime(quote.UpdatedAt),
	}
	if quote.Client != nil {
		dto.ClientName = quote.Client.Name
	}
	for i, line := range quote.Services {
		dto.Services[i] = domain.QuoteServiceDTO{
			ID:        line.ID,
			ServiceID: line.ServiceID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			TaxRate:   line.TaxRate,
			LineTotal: line.LineTotal,
		}
		if line.Service != nil {
			dto.Services[i].ServiceName = line.Service.Name
		}
	}
	if len(quote.Subscriptions) > 0 {
		dto.Subscriptions = make([]domain.QuoteSubscriptionDTO, len(quote.Subscriptions))
		for i, line := range quote.Subscriptions {
			dto.Subscriptions[i] = domain.QuoteSubscriptionDTO{
				ID:            line.ID,
				PlanID:        line.PlanID,
				PlanPriceID:   line.PlanPriceID,
				Cycle:         line.Cycle,
				PriceSnapshot: line.PriceSnapshot,
			}
			if line.Plan != nil {
				dto.Subscriptions[i].PlanName = line.Plan.Name
			}
		}
	}
	return dto
}

// ToInvoiceDTO converts Invoice to InvoiceDTO
func ToInvoiceDTO(invoice *domain.Invoice) domain.InvoiceDTO {
	dto := domain.InvoiceDTO{
		ID:          invoice.ID,
		Number:      invoice.Number,
		ClientID:    invoice.ClientID,
		QuoteID:     invoice.QuoteID,
		Status:      invoice.Status,
		Currency:    invoice.Currency,
		TotalAmount: invoice.TotalAmount,
		BalanceDue:  invoice.BalanceDue,
		DueDate:     formatTimePtr(invoice.DueDate),
		Services:    make([]domain.InvoiceServiceDTO, len(invoice.Services)),
		CreatedAt:   formatTime(invoice.CreatedAt),
		UpdatedAt:   formatTime(invoice.UpdatedAt),
	}
	if invoice.Client != nil {
		dto.ClientName = invoice.Client.Name
	}
	for i, line := range invoice.Services {
		dto.Services[i] = domain.InvoiceServiceDTO{
			ID:              line.ID,
			ServiceID:       line.ServiceID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			TaxRate:         line.TaxRate,
			IndividualTotal: line.IndividualTotal,
		}
		if line.Service != nil {
			dto.Services[i].ServiceName = line.Service.Name
		}
	}
	if len(invoice.Subscriptions) > 0 {
		dto.Subscriptions = make([]domain.InvoiceSubscriptionDTO, len(invoice.Subscriptions))
		for i, line := range invoice.Subscriptions {
			dto.Subscriptions[i] = domain.InvoiceSubscriptionDTO{
				ID:             line.ID,
				PlanID:         line.PlanID,
				PlanPriceID:    line.PlanPriceID,
				Cycle:          line.Cycle,
				PriceSnapshot:  line.PriceSnapshot,
				PaidPercentage: line.PaidPercentage,
				SubscriptionID: line.SubscriptionID,
			}
			if line.Plan != nil {
				dto.Subscriptions[i].PlanName = line.Plan.Name
			}
		}
	}
	if len(invoice.Payments) > 0 {
		dto.Payments = make([]domain.PaymentDTO, len(invoice.Payments))
		for i := range invoice.Payments {
			dto.Payments[i] = ToPaymentDTO(&invoice.Payments[i])
		}
	}
	return dto
}

// ToPaymentDTO converts Payment to PaymentDTO
func ToPaymentDTO(payment *domain.Payment) domain.PaymentDTO {
	return domain.PaymentDTO{
		ID:          payment.ID,
		InvoiceID:   payment.InvoiceID,
		ClientID:    payment.ClientID,
		Total:       payment.Total,
		Amount:      payment.Amount,
		Percentage:  payment.Percentage,
		Currency:    payment.Currency,
		Status:      payment.Status,
		Method:      payment.Method,
		CheckoutURL: payment.CheckoutURL,
		PaidAt:      formatTimePtr(payment.PaidAt),
		CreatedAt:   formatTime(payment.CreatedAt),
	}
}

// ToPaymentWithAllocationsDTO converts Payment and its allocations
func ToPaymentWithAllocationsDTO(payment *domain.Payment) domain.PaymentWithAllocationsDTO {
	dto := domain.PaymentWithAllocationsDTO{
		PaymentDTO: ToPaymentDTO(payment),
	}
	if len(payment.Allocations) > 0 {
		dto.Allocations = make([]domain.PaymentAllocationDTO, len(payment.Allocations))
		for i, alloc := range payment.Allocations {
			dto.Allocations[i] = domain.PaymentAllocationDTO{
				ID:                    alloc.ID,
				Kind:                  alloc.Kind,
				InvoiceSubscriptionID: alloc.InvoiceSubscriptionID,
				Amount:                alloc.Amount,
				PaidPercentage:        alloc.PaidPercentage,
			}
		}
	}
	return dto
}

// ToSubscriptionDTO converts Subscription to SubscriptionDTO
func ToSubscriptionDTO(sub *domain.Subscription) domain.SubscriptionDTO {
	dto := domain.SubscriptionDTO{
		ID:            sub.ID,
		ClientID:      sub.ClientID,
		PlanID:        sub.PlanID,
		PlanPriceID:   sub.PlanPriceID,
		Cycle:         sub.Cycle,
		Status:        sub.Status,
		StartedAt:     formatTime(sub.StartedAt),
		NextBillingAt: formatTime(sub.NextBillingAt),
		EndsAt:        formatTimePtr(sub.EndsAt),
		CancelledAt:   formatTimePtr(sub.CancelledAt),
		CreatedAt:     formatTime(sub.CreatedAt),
	}
	if sub.Client != nil {
		dto.ClientName = sub.Client.Name
	}
	if sub.Plan != nil {
		dto.PlanName = sub.Plan.Name
	}
	if len(sub.FieldValues) > 0 {
		dto.FieldValues = make([]domain.SubscriptionFieldValueDTO, len(sub.FieldValues))
		for i, value := range sub.FieldValues {
			dto.FieldValues[i] = domain.SubscriptionFieldValueDTO{
				Name:  value.Name,
				Kind:  value.Kind,
				Value: json.RawMessage(value.Value),
			}
		}
	}
	return dto
}

// ToProjectDTO converts Project to ProjectDTO
func ToProjectDTO(project *domain.Project) domain.ProjectDTO {
	dto := domain.ProjectDTO{
		ID:        project.ID,
		Name:      project.Name,
		ClientID:  project.ClientID,
		InvoiceID: project.InvoiceID,
		ServiceID: project.ServiceID,
		Status:    project.Status,
		CreatedAt: formatTime(project.CreatedAt),
		UpdatedAt: formatTime(project.UpdatedAt),
	}
	if project.Client != nil {
		dto.ClientName = project.Client.Name
	}
	if project.Service != nil {
		dto.ServiceName = project.Service.Name
	}
	if project.Progress != nil {
		dto.ProgressPct = project.Progress.AccumulatedPercentage
	}
	if len(project.Tasks) > 0 {
		dto.Tasks = make([]domain.TaskDTO, len(project.Tasks))
		for i := range project.Tasks {
			dto.Tasks[i] = ToTaskDTO(&project.Tasks[i])
		}
	}
	return dto
}

// ToTaskDTO converts Task to TaskDTO
func ToTaskDTO(task *domain.Task) domain.TaskDTO {
	return domain.TaskDTO{
		ID:         task.ID,
		ProjectID:  task.ProjectID,
		Title:      task.Title,
		Status:     task.Status,
		Percentage: task.Percentage,
		CreatedAt:  formatTime(task.CreatedAt),
	}
}

// ToTicketDTO converts Ticket to TicketDTO
func ToTicketDTO(ticket *domain.Ticket) domain.TicketDTO {
	dto := domain.TicketDTO{
		ID:        ticket.ID,
		ClientID:  ticket.ClientID,
		Subject:   ticket.Subject,
		Body:      ticket.Body,
		Status:    ticket.Status,
		Priority:  ticket.Priority,
		CreatedAt: formatTime(ticket.CreatedAt),
		UpdatedAt: formatTime(ticket.UpdatedAt),
	}
	if ticket.Client != nil {
		dto.ClientName = ticket.Client.Name
	}
	return dto
}

// ToCommentDTO converts Comment to CommentDTO
func ToCommentDTO(comment *domain.Comment) domain.CommentDTO {
	return domain.CommentDTO{
		ID:         comment.ID,
		OwnerKind:  comment.OwnerKind,
		OwnerID:    comment.OwnerID,
		AuthorID:   comment.AuthorID,
		AuthorName: comment.AuthorName,
		Body:       comment.Body,
		CreatedAt:  formatTime(comment.CreatedAt),
	}
}

// ToFileDTO converts File to FileDTO
func ToFileDTO(file *domain.File) domain.FileDTO {
	return domain.FileDTO{
		ID:          file.ID,
		OwnerKind:   file.OwnerKind,
		OwnerID:     file.OwnerID,
		Kind:        file.Kind,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        file.Size,
		CreatedAt:   formatTime(file.CreatedAt),
	}
}

// ToActivityLogDTO converts ActivityLog to ActivityLogDTO
func ToActivityLogDTO(entry *domain.ActivityLog) domain.ActivityLogDTO {
	return domain.ActivityLogDTO{
		ID:         entry.ID,
		TargetKind: entry.TargetKind,
		TargetID:   entry.TargetID,
		Title:      entry.Title,
		Body:       entry.Body,
		ActorName:  entry.ActorName,
		OccurredAt: formatTime(entry.OccurredAt),
	}
}
