// Package mapper converts database models to their wire DTOs.
// Timestamps are formatted as ISO 8601 (RFC 3339) strings.
package mapper

import (
	"time"

	"github.com/garagedesk/workshop-api/internal/domain"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToCustomerDTO converts a customer model to its DTO
func ToCustomerDTO(c *domain.Customer) *domain.CustomerDTO {
	if c == nil {
		return nil
	}
	return &domain.CustomerDTO{
		ID:               c.ID,
		FullName:         c.FullName,
		Phone:            c.Phone,
		Email:            c.Email,
		Address:          c.Address,
		CustomerType:     c.CustomerType,
		PersonalSubtype:  c.PersonalSubtype,
		OrganizationName: c.OrganizationName,
		TaxNumber:        c.TaxNumber,
		IsPlaceholder:    c.IsPlaceholder(),
		CreatedAt:        formatTime(c.CreatedAt),
		UpdatedAt:        formatTime(c.UpdatedAt),
	}
}

// ToVehicleDTO converts a vehicle model to its DTO
func ToVehicleDTO(v *domain.Vehicle) *domain.VehicleDTO {
	if v == nil {
		return nil
	}
	return &domain.VehicleDTO{
		ID:          v.ID,
		CustomerID:  v.CustomerID,
		PlateNumber: v.PlateNumber,
		Make:        v.Make,
		Model:       v.Model,
		VehicleType: v.VehicleType,
		CreatedAt:   formatTime(v.CreatedAt),
	}
}

// ToSelectionDTOs converts order selections, keeping their stored position
// order
func ToSelectionDTOs(selections []domain.OrderServiceSelection) []domain.SelectionDTO {
	dtos := make([]domain.SelectionDTO, 0, len(selections))
	for i := range selections {
		dtos = append(dtos, domain.SelectionDTO{
			Kind: selections[i].Kind,
			Name: selections[i].Name,
		})
	}
	return dtos
}

// ToOrderDTO converts an order model to its DTO
func ToOrderDTO(o *domain.Order) *domain.OrderDTO {
	if o == nil {
		return nil
	}
	return &domain.OrderDTO{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		OrderType:         o.OrderType,
		Status:            o.Status,
		Priority:          o.Priority,
		Description:       o.Description,
		Customer:          ToCustomerDTO(o.Customer),
		Vehicle:           ToVehicleDTO(o.Vehicle),
		Selections:        ToSelectionDTOs(o.Selections),
		StartedAt:         formatTime(o.StartedAt),
		CompletedAt:       formatTimePtr(o.CompletedAt),
		EstimatedDuration: o.EstimatedDuration,
		ActualDuration:    o.ActualDuration,
		ItemName:          o.ItemName,
		ItemBrand:         o.ItemBrand,
		ItemQuantity:      o.ItemQuantity,
		OverrunReason:     o.OverrunReason,
		OverrunReportedBy: o.OverrunReportedBy,
		OverrunReportedAt: formatTimePtr(o.OverrunReportedAt),
		CreatedAt:         formatTime(o.CreatedAt),
		UpdatedAt:         formatTime(o.UpdatedAt),
	}
}

// ToOrderDTOs converts a slice of orders
func ToOrderDTOs(orders []domain.Order) []domain.OrderDTO {
	dtos := make([]domain.OrderDTO, 0, len(orders))
	for i := range orders {
		dtos = append(dtos, *ToOrderDTO(&orders[i]))
	}
	return dtos
}

// ToOrderDetailDTO converts an order with its documents and invoices
func ToOrderDetailDTO(o *domain.Order, invoices []domain.Invoice) *domain.OrderDetailDTO {
	if o == nil {
		return nil
	}
	detail := &domain.OrderDetailDTO{
		OrderDTO:  *ToOrderDTO(o),
		Documents: ToOrderDocumentDTOs(o.Documents),
	}
	for i := range invoices {
		detail.Invoices = append(detail.Invoices, *ToInvoiceDTO(&invoices[i]))
	}
	return detail
}

// ToOrderDocumentDTO converts a document model to its DTO
func ToOrderDocumentDTO(d *domain.OrderDocument) *domain.OrderDocumentDTO {
	if d == nil {
		return nil
	}
	return &domain.OrderDocumentDTO{
		ID:          d.ID,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Size:        d.Size,
		UploadedBy:  d.UploadedBy,
		CreatedAt:   formatTime(d.CreatedAt),
	}
}

// ToOrderDocumentDTOs converts a slice of documents
func ToOrderDocumentDTOs(docs []domain.OrderDocument) []domain.OrderDocumentDTO {
	dtos := make([]domain.OrderDocumentDTO, 0, len(docs))
	for i := range docs {
		dtos = append(dtos, *ToOrderDocumentDTO(&docs[i]))
	}
	return dtos
}

// ToInvoiceDTO converts an invoice model to its DTO
func ToInvoiceDTO(inv *domain.Invoice) *domain.InvoiceDTO {
	if inv == nil {
		return nil
	}
	dto := &domain.InvoiceDTO{
		ID:            inv.ID,
		OrderID:       inv.OrderID,
		CustomerID:    inv.CustomerID,
		InvoiceNumber: inv.InvoiceNumber,
		Reference:     inv.Reference,
		InvoiceDate:   inv.InvoiceDate.Format("2006-01-02"),
		Subtotal:      inv.Subtotal,
		TaxAmount:     inv.TaxAmount,
		TotalAmount:   inv.TotalAmount,
		Notes:         inv.Notes,
		LineItems:     make([]domain.InvoiceLineItemDTO, 0, len(inv.LineItems)),
		CreatedAt:     formatTime(inv.CreatedAt),
	}
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		dto.LineItems = append(dto.LineItems, domain.InvoiceLineItemDTO{
			ID:          li.ID,
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Amount:      li.Amount(),
		})
	}
	return dto
}

// ToServiceTypeDTOs converts catalog service types
func ToServiceTypeDTOs(types []domain.ServiceType) []domain.ServiceTypeDTO {
	dtos := make([]domain.ServiceTypeDTO, 0, len(types))
	for i := range types {
		dtos = append(dtos, domain.ServiceTypeDTO{
			ID:               types[i].ID,
			Name:             types[i].Name,
			EstimatedMinutes: types[i].EstimatedMinutes,
		})
	}
	return dtos
}

// ToServiceAddonDTOs converts catalog add-ons to the shared catalog entry DTO
func ToServiceAddonDTOs(addons []domain.ServiceAddon) []domain.ServiceTypeDTO {
	dtos := make([]domain.ServiceTypeDTO, 0, len(addons))
	for i := range addons {
		dtos = append(dtos, domain.ServiceTypeDTO{
			ID:               addons[i].ID,
			Name:             addons[i].Name,
			EstimatedMinutes: addons[i].EstimatedMinutes,
		})
	}
	return dtos
}

// ToInventoryItemDTOs converts inventory items
func ToInventoryItemDTOs(items []domain.InventoryItem) []domain.InventoryItemDTO {
	dtos := make([]domain.InventoryItemDTO, 0, len(items))
	for i := range items {
		dtos = append(dtos, domain.InventoryItemDTO{
			ID:       items[i].ID,
			Name:     items[i].Name,
			Brand:    items[i].BrandOrDefault(),
			Quantity: items[i].Quantity,
			Price:    items[i].Price,
		})
	}
	return dtos
}

// ToOverrunRowDTO converts an order carrying overrun metadata to a report row
func ToOverrunRowDTO(o *domain.Order) domain.OverrunRowDTO {
	row := domain.OverrunRowDTO{
		OrderID:           o.ID,
		OrderNumber:       o.OrderNumber,
		Status:            o.Status,
		EstimatedDuration: o.EstimatedDuration,
		ActualDuration:    o.ActualDuration,
		DelayMinutes:      o.DelayMinutes(),
		Reason:            o.OverrunReason,
		ReportedBy:        o.OverrunReportedBy,
	}
	if o.OverrunReportedAt != nil {
		row.ReportedAt = formatTime(*o.OverrunReportedAt)
	}
	if o.Vehicle != nil {
		row.PlateNumber = o.Vehicle.PlateNumber
	}
	if o.Customer != nil {
		row.CustomerName = o.Customer.FullName
	}
	return row
}
