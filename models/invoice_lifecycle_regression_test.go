package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allcitylocks/locksmith_backend/config"
	"github.com/allcitylocks/locksmith_backend/models"
	"github.com/allcitylocks/locksmith_backend/utils"
)

// Full document lifecycle against a real MySQL: totals are recomputed and
// persisted on create, updates replace the whole line set, delete of a missing
// id has zero side effects, paying appends a payment row, the overdue sweep is
// idempotent and quote conversion copies the aggregate verbatim.
func TestInvoiceLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "locksmith_test")
	t.Setenv("TAX_RATE", "")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  "Riverside Property Mgmt",
		Email: "office@riverside.test",
	})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	rekey, err := models.CreateService(ctx, &models.NewService{
		Name:      "Rekey cylinder",
		UnitPrice: dec(t, "12.50"),
		IsTaxed:   utils.NewFalse(),
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	deadbolt, err := models.CreateService(ctx, &models.NewService{
		Name:      "Deadbolt (parts)",
		UnitPrice: dec(t, "19.99"),
		IsTaxed:   utils.NewTrue(),
		IsParts:   utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	// 1) Create: totals are recomputed server-side and persisted.
	input := &models.NewDocument{
		CustomerId: customer.ID,
		PoNumber:   "PO-1001",
		StartDate:  "2026-02-01",
		DueDate:    "2026-02-15",
		Services: []models.NewDocumentItem{
			{ServiceId: rekey.ID, ServiceName: rekey.Name, UnitPrice: dec(t, "12.50"), Quantity: dec(t, "2")},
			{ServiceId: deadbolt.ID, ServiceName: deadbolt.Name, UnitPrice: dec(t, "19.99"), Quantity: dec(t, "1"), IsTaxed: true},
			// invalid line: silently dropped, never an error
			{ServiceId: 0, ServiceName: "Orphan", UnitPrice: dec(t, "99"), Quantity: dec(t, "1")},
		},
	}
	created, err := models.CreateInvoice(ctx, input)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if len(created.Details) != 2 {
		t.Fatalf("created with %d lines; want 2 (invalid line dropped)", len(created.Details))
	}
	if !created.Subtotal.Equal(dec(t, "44.99")) || !created.TaxTotal.Equal(dec(t, "1.75")) || !created.TotalAmount.Equal(dec(t, "46.74")) {
		t.Fatalf("created totals = %s/%s/%s; want 44.99/1.75/46.74",
			created.Subtotal, created.TaxTotal, created.TotalAmount)
	}

	fetched, err := models.GetInvoice(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if !fetched.TotalAmount.Equal(dec(t, "46.74")) {
		t.Fatalf("persisted total = %s; want 46.74", fetched.TotalAmount)
	}
	if fetched.Customer == nil || fetched.Customer.Name != customer.Name {
		t.Fatalf("detail read did not join customer: %+v", fetched.Customer)
	}

	// 2) Update: the line set is replaced wholesale and totals recomputed.
	update := &models.NewDocument{
		CustomerId: customer.ID,
		PoNumber:   "PO-1001-R1",
		StartDate:  "2026-02-01",
		DueDate:    "2026-02-15",
		Services: []models.NewDocumentItem{
			{ServiceId: deadbolt.ID, ServiceName: deadbolt.Name, UnitPrice: dec(t, "50.00"), Quantity: dec(t, "1"), IsTaxed: true},
		},
	}
	updated, err := models.UpdateInvoice(ctx, created.ID, update)
	if err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}
	if len(updated.Details) != 1 {
		t.Fatalf("updated with %d lines; want 1 (full replace)", len(updated.Details))
	}
	if !updated.TaxTotal.Equal(dec(t, "4.38")) || !updated.TotalAmount.Equal(dec(t, "54.38")) {
		t.Fatalf("updated totals = %s/%s; want 4.38/54.38", updated.TaxTotal, updated.TotalAmount)
	}

	db := config.GetDB()
	var detailCount int64
	if err := db.Model(&models.InvoiceDetail{}).Where("invoice_id = ?", created.ID).Count(&detailCount).Error; err != nil {
		t.Fatalf("count details: %v", err)
	}
	if detailCount != 1 {
		t.Fatalf("persisted detail rows = %d; want 1 (old set deleted)", detailCount)
	}

	// 3) Delete of a missing id: NotFound, no side effects.
	if _, err := models.DeleteInvoice(ctx, created.ID+9999); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("DeleteInvoice(missing) = %v; want ErrorRecordNotFound", err)
	}
	if _, err := models.GetInvoice(ctx, created.ID); err != nil {
		t.Fatalf("existing invoice touched by failed delete: %v", err)
	}

	// 4) Sweep: the pending invoice with a past due date flips to Overdue;
	// rerunning matches nothing.
	past := &models.NewDocument{
		CustomerId: customer.ID,
		StartDate:  "2025-11-01",
		DueDate:    "2025-11-15",
		Services: []models.NewDocumentItem{
			{ServiceId: rekey.ID, ServiceName: rekey.Name, UnitPrice: dec(t, "12.50"), Quantity: dec(t, "1")},
		},
	}
	overdue, err := models.CreateInvoice(ctx, past)
	if err != nil {
		t.Fatalf("CreateInvoice(past due): %v", err)
	}

	first, err := models.SweepOverdueInvoices(ctx)
	if err != nil {
		t.Fatalf("SweepOverdueInvoices: %v", err)
	}
	if first.Count != 1 || len(first.InvoiceIds) != 1 || first.InvoiceIds[0] != overdue.ID {
		t.Fatalf("first sweep = %+v; want exactly invoice %d", first, overdue.ID)
	}
	second, err := models.SweepOverdueInvoices(ctx)
	if err != nil {
		t.Fatalf("SweepOverdueInvoices (rerun): %v", err)
	}
	if second.Count != 0 {
		t.Fatalf("second sweep count = %d; want 0 (idempotent)", second.Count)
	}

	// 5) Paying an overdue invoice is allowed and appends a payment row.
	paid, err := models.MarkInvoicePaid(ctx, overdue.ID, "check")
	if err != nil {
		t.Fatalf("MarkInvoicePaid: %v", err)
	}
	if paid.CurrentStatus != models.InvoiceStatusPaid {
		t.Fatalf("status after pay = %s; want Paid", paid.CurrentStatus)
	}
	payments, err := models.GetInvoicePayments(ctx, overdue.ID)
	if err != nil {
		t.Fatalf("GetInvoicePayments: %v", err)
	}
	if len(payments) != 1 || payments[0].PaymentMethod != "check" {
		t.Fatalf("payments = %+v; want one check payment", payments)
	}

	// 6) List projection includes both invoices with customer names joined.
	list, err := models.GetAllInvoices(ctx)
	if err != nil {
		t.Fatalf("GetAllInvoices: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list has %d rows; want 2", len(list))
	}
	if list[0].CustomerName != customer.Name {
		t.Fatalf("list row missing customer name: %+v", list[0])
	}

	// 7) Quote conversion copies lines and totals verbatim and accepts the quote.
	quote, err := models.CreateQuote(ctx, &models.NewDocument{
		CustomerId: customer.ID,
		StartDate:  "2026-02-10",
		Services: []models.NewDocumentItem{
			{ServiceId: deadbolt.ID, ServiceName: deadbolt.Name, UnitPrice: dec(t, "19.99"), Quantity: dec(t, "3"), IsTaxed: true},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	converted, err := models.ConvertQuoteToInvoice(ctx, quote.ID, &due)
	if err != nil {
		t.Fatalf("ConvertQuoteToInvoice: %v", err)
	}
	if !converted.TotalAmount.Equal(quote.TotalAmount) {
		t.Fatalf("converted total = %s; quote total = %s", converted.TotalAmount, quote.TotalAmount)
	}
	if len(converted.Details) != 1 {
		t.Fatalf("converted with %d lines; want 1", len(converted.Details))
	}
	acceptedQuote, err := models.GetQuote(ctx, quote.ID)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if acceptedQuote.CurrentStatus != models.QuoteStatusAccepted {
		t.Fatalf("quote status after conversion = %s; want Accepted", acceptedQuote.CurrentStatus)
	}
	// A second conversion must refuse: the quote is no longer pending.
	if _, err := models.ConvertQuoteToInvoice(ctx, quote.ID, &due); err == nil {
		t.Fatal("converting an accepted quote must fail")
	}

	// 8) Financial summary over the whole range.
	summary, err := models.GetFinancialSummary(ctx, nil, nil)
	if err != nil {
		t.Fatalf("GetFinancialSummary: %v", err)
	}
	if summary.InvoiceCount != 3 {
		t.Fatalf("summary invoice count = %d; want 3", summary.InvoiceCount)
	}
	if summary.PartsTotal.IsZero() {
		t.Fatal("parts total should include the deadbolt lines")
	}

	// 9) A failing line reinsertion rolls the whole update back: the parent
	// keeps its pre-update fields and the previous line set survives. The
	// oversized service name overflows the varchar(100) column, so the child
	// insert fails after the parent row was already rewritten in the
	// transaction.
	badUpdate := &models.NewDocument{
		CustomerId: customer.ID,
		PoNumber:   "PO-1001-R2",
		StartDate:  "2026-02-01",
		DueDate:    "2026-02-15",
		Services: []models.NewDocumentItem{
			{ServiceId: rekey.ID, ServiceName: rekey.Name, UnitPrice: dec(t, "12.50"), Quantity: dec(t, "1")},
			{ServiceId: deadbolt.ID, ServiceName: strings.Repeat("x", 120), UnitPrice: dec(t, "19.99"), Quantity: dec(t, "1"), IsTaxed: true},
		},
	}
	if _, err := models.UpdateInvoice(ctx, created.ID, badUpdate); !errors.Is(err, utils.ErrorPersistence) {
		t.Fatalf("UpdateInvoice with oversized line = %v; want ErrorPersistence", err)
	}
	after, err := models.GetInvoice(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetInvoice after failed update: %v", err)
	}
	if after.PoNumber != "PO-1001-R1" {
		t.Fatalf("po number after failed update = %q; want pre-update PO-1001-R1", after.PoNumber)
	}
	if !after.TotalAmount.Equal(dec(t, "54.38")) {
		t.Fatalf("total after failed update = %s; want pre-update 54.38", after.TotalAmount)
	}
	if len(after.Details) != 1 || after.Details[0].ServiceName != deadbolt.Name {
		t.Fatalf("lines after failed update = %+v; want the single pre-update line", after.Details)
	}

	// 10) A failing conversion leaves the quote pending and creates no
	// invoice. Hiding the detail table makes the child insert fail after the
	// parent insert succeeded inside the conversion transaction.
	pendingQuote, err := models.CreateQuote(ctx, &models.NewDocument{
		CustomerId: customer.ID,
		StartDate:  "2026-02-20",
		Services: []models.NewDocumentItem{
			{ServiceId: rekey.ID, ServiceName: rekey.Name, UnitPrice: dec(t, "12.50"), Quantity: dec(t, "1")},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	var invoicesBefore int64
	if err := db.Model(&models.Invoice{}).Count(&invoicesBefore).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if err := db.Exec("RENAME TABLE invoice_details TO invoice_details_hold").Error; err != nil {
		t.Fatalf("hide detail table: %v", err)
	}
	_, convErr := models.ConvertQuoteToInvoice(ctx, pendingQuote.ID, &due)
	if err := db.Exec("RENAME TABLE invoice_details_hold TO invoice_details").Error; err != nil {
		t.Fatalf("restore detail table: %v", err)
	}
	if convErr == nil {
		t.Fatal("conversion with failing line insert must error")
	}
	stillPending, err := models.GetQuote(ctx, pendingQuote.ID)
	if err != nil {
		t.Fatalf("GetQuote after failed conversion: %v", err)
	}
	if stillPending.CurrentStatus != models.QuoteStatusPending {
		t.Fatalf("quote status after failed conversion = %s; want Pending", stillPending.CurrentStatus)
	}
	var invoicesAfter int64
	if err := db.Model(&models.Invoice{}).Count(&invoicesAfter).Error; err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if invoicesAfter != invoicesBefore {
		t.Fatalf("invoice rows went %d -> %d across a failed conversion; want unchanged", invoicesBefore, invoicesAfter)
	}

	// 11) A document with zero line items reads back as an empty sequence,
	// never null.
	bareInvoice := models.Invoice{
		CustomerId:    customer.ID,
		InvoiceDate:   utils.Today(),
		CurrentStatus: models.InvoiceStatusPending,
	}
	if err := db.Create(&bareInvoice).Error; err != nil {
		t.Fatalf("insert detail-less invoice: %v", err)
	}
	gotInvoice, err := models.GetInvoice(ctx, bareInvoice.ID)
	if err != nil {
		t.Fatalf("GetInvoice(detail-less): %v", err)
	}
	if gotInvoice.Details == nil || len(gotInvoice.Details) != 0 {
		t.Fatalf("detail-less invoice details = %#v; want empty non-nil slice", gotInvoice.Details)
	}
	bareQuote := models.Quote{
		CustomerId:    customer.ID,
		QuoteDate:     utils.Today(),
		CurrentStatus: models.QuoteStatusPending,
	}
	if err := db.Create(&bareQuote).Error; err != nil {
		t.Fatalf("insert detail-less quote: %v", err)
	}
	gotQuote, err := models.GetQuote(ctx, bareQuote.ID)
	if err != nil {
		t.Fatalf("GetQuote(detail-less): %v", err)
	}
	if gotQuote.Details == nil || len(gotQuote.Details) != 0 {
		t.Fatalf("detail-less quote details = %#v; want empty non-nil slice", gotQuote.Details)
	}

	// 12) Re-submitting the same customer name updates the existing row in
	// place and returns the same identity.
	same, err := models.CreateCustomer(ctx, &models.NewCustomer{
		Name:  customer.Name,
		Email: "billing@riverside.test",
	})
	if err != nil {
		t.Fatalf("CreateCustomer (upsert): %v", err)
	}
	if same.ID != customer.ID {
		t.Fatalf("upsert returned id %d; want existing id %d", same.ID, customer.ID)
	}
	if same.Email != "billing@riverside.test" {
		t.Fatalf("upsert email = %q; want the re-submitted value", same.Email)
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

/* docker helpers */

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("locksmith-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("locksmith-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=locksmith_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
