package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veloraops/agency-api/internal/domain"
	"github.com/veloraops/agency-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newImportService(db *gorm.DB) *ImportService {
	return NewImportService(
		repository.NewClientRepository(db),
		repository.NewInvoiceRepository(db),
		testActivities(db),
		testMailer(),
		testBilling(),
		zap.NewNop(),
	)
}

const clientCSVHeader = "name,email,country,company_name,phone,address,city,tax_id\n"

func TestImportClients(t *testing.T) {
	db := newTestDB(t)
	svc := newImportService(db)

	csv := clientCSVHeader +
		"Atlas Studio,hello@atlas.example,Morocco,Atlas SARL,+212600000000,12 Rue Foo,Casablanca,TX-1\n" +
		"Nordlys AB,post@nordlys.example,Sweden,,,,,\n" +
		",missing-name@example.com,France,,,,,\n"

	result, err := svc.ImportClients(testCtx(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 4, result.Errors[0].Row)

	var stored domain.Client
	require.NoError(t, db.First(&stored, "email = ?", "hello@atlas.example").Error)
	assert.Equal(t, "Atlas Studio", stored.Name)
	assert.Equal(t, "Morocco", stored.Country)
}

func TestImportClientsIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newImportService(db)

	csv := clientCSVHeader + "Atlas Studio,hello@atlas.example,Morocco,,,,,\n"

	first, err := svc.ImportClients(testCtx(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := svc.ImportClients(testCtx(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)

	var count int64
	require.NoError(t, db.Model(&domain.Client{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestImportClientsRejectsWrongHeader(t *testing.T) {
	db := newTestDB(t)
	svc := newImportService(db)

	_, err := svc.ImportClients(testCtx(), strings.NewReader("first_name,last_name\nJo,Doe\n"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestImportInvoices(t *testing.T) {
	db := newTestDB(t)
	svc := newImportService(db)
	createTestClient(t, db, "Atlas Studio", "Morocco")

	csv := "client_email,number,total,currency,due_date\n" +
		"billing@example.com,LEGACY-001,1200.50,eur,2026-03-15\n" +
		"billing@example.com,LEGACY-002,800,,\n" +
		"unknown@example.com,LEGACY-003,100,,\n" +
		"billing@example.com,LEGACY-004,-5,,\n"

	result, err := svc.ImportInvoices(testCtx(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Errors, 2)

	var invoice domain.Invoice
	require.NoError(t, db.First(&invoice, "number = ?", "LEGACY-001").Error)
	assert.Equal(t, "EUR", invoice.Currency)
	assert.Equal(t, domain.InvoiceStatusUnpaid, invoice.Status)
	assert.InDelta(t, 1200.50, invoice.TotalAmount, 0.001)
	assert.InDelta(t, invoice.TotalAmount, invoice.BalanceDue, 0.001)
	require.NotNil(t, invoice.DueDate)
	assert.Equal(t, "2026-03-15", invoice.DueDate.Format("2006-01-02"))
	assert.NotEmpty(t, invoice.Checksum)

	// Currency falls back to the billing default
	var fallback domain.Invoice
	require.NoError(t, db.First(&fallback, "number = ?", "LEGACY-002").Error)
	assert.Equal(t, "MAD", fallback.Currency)
}

func TestImportInvoicesDeduplicatesByChecksum(t *testing.T) {
	db := newTestDB(t)
	svc := newImportService(db)
	createTestClient(t, db, "Atlas Studio", "Morocco")

	csv := "client_email,number,total,currency,due_date\n" +
		"billing@example.com,LEGACY-001,500,,\n"

	first, err := svc.ImportInvoices(testCtx(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := svc.ImportInvoices(testCtx(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
}
