package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/database"
	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	cfg := database.DefaultConnectionConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "kiosk.db")
	cfg.BackupOnMigrate = false
	cfg.Logger = logger

	cm := database.NewConnectionManager(cfg)
	if err := cm.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect test database: %v", err)
	}
	t.Cleanup(func() { cm.Close() })

	return NewStore(cm.GetDB(), logger)
}

func testSale(total string) *models.Sale {
	amount := decimal.RequireFromString(total)
	return &models.Sale{
		BranchID: 1,
		Items: []models.SaleItem{{
			ProductID:   10,
			ProductName: "Bread",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   amount,
		}},
		Payments: []models.SalePayment{{
			Method: models.PaymentMethodCash,
			Amount: amount,
		}},
		Subtotal:      amount,
		Total:         amount,
		PaymentStatus: models.PaymentStatusPaid,
	}
}

func TestSaleQueue_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	first, err := store.QueueSale(ctx, testSale("10.00"))
	if err != nil {
		t.Fatalf("QueueSale() error = %v", err)
	}
	second, err := store.QueueSale(ctx, testSale("5.50"))
	if err != nil {
		t.Fatalf("QueueSale() error = %v", err)
	}
	if second.LocalID <= first.LocalID {
		t.Errorf("local ids not increasing: %d then %d", first.LocalID, second.LocalID)
	}

	queued, err := store.GetQueuedSales(ctx)
	if err != nil {
		t.Fatalf("GetQueuedSales() error = %v", err)
	}
	if len(queued) != 2 {
		t.Fatalf("expected 2 queued sales, got %d", len(queued))
	}
	if queued[0].LocalID != first.LocalID {
		t.Errorf("expected oldest sale first")
	}
	if !queued[1].Total.Equal(decimal.RequireFromString("5.50")) {
		t.Errorf("payload total = %s, want 5.50", queued[1].Total)
	}
	if queued[0].SyncStatus != models.SyncStatusQueued {
		t.Errorf("status = %s, want queued", queued[0].SyncStatus)
	}

	if err := store.UpdateSaleRetryCount(ctx, first.LocalID); err != nil {
		t.Fatalf("UpdateSaleRetryCount() error = %v", err)
	}
	if err := store.UpdateSaleRetryCount(ctx, first.LocalID); err != nil {
		t.Fatalf("UpdateSaleRetryCount() error = %v", err)
	}

	if err := store.MarkSaleAsSynced(ctx, first.LocalID, 9001); err != nil {
		t.Fatalf("MarkSaleAsSynced() error = %v", err)
	}
	if err := store.MarkSaleAsFailed(ctx, second.LocalID, "invalid branch"); err != nil {
		t.Fatalf("MarkSaleAsFailed() error = %v", err)
	}

	synced, err := store.GetQueuedSale(ctx, first.LocalID)
	if err != nil {
		t.Fatalf("GetQueuedSale() error = %v", err)
	}
	if synced.SyncStatus != models.SyncStatusSynced {
		t.Errorf("status = %s, want synced", synced.SyncStatus)
	}
	if synced.ServerSaleID == nil || *synced.ServerSaleID != 9001 {
		t.Errorf("ServerSaleID = %v, want 9001", synced.ServerSaleID)
	}
	if synced.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", synced.RetryCount)
	}

	remaining, err := store.GetQueuedSales(ctx)
	if err != nil {
		t.Fatalf("GetQueuedSales() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].LocalID != second.LocalID {
		t.Fatalf("expected only the failed sale to remain, got %+v", remaining)
	}
	if remaining[0].SyncStatus != models.SyncStatusFailed || remaining[0].LastError != "invalid branch" {
		t.Errorf("failed sale = %s / %q", remaining[0].SyncStatus, remaining[0].LastError)
	}

	count, err := store.CountQueuedSales(ctx)
	if err != nil {
		t.Fatalf("CountQueuedSales() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountQueuedSales() = %d, want 1", count)
	}
}

func TestSaleQueue_UnknownSale(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	if err := store.MarkSaleAsSynced(ctx, 404, 1); !repositories.IsNotFound(err) {
		t.Errorf("MarkSaleAsSynced() error = %v, want not found", err)
	}
	if err := store.UpdateSaleRetryCount(ctx, 404); !repositories.IsNotFound(err) {
		t.Errorf("UpdateSaleRetryCount() error = %v, want not found", err)
	}
	if _, err := store.GetQueuedSale(ctx, 404); !repositories.IsNotFound(err) {
		t.Errorf("GetQueuedSale() error = %v, want not found", err)
	}
	if _, err := store.QueueSale(ctx, nil); !repositories.IsValidation(err) {
		t.Errorf("QueueSale(nil) error = %v, want validation error", err)
	}
}

func TestProducts_DeltaApplication(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	now := time.Now().UTC()

	initial := []models.Product{
		{ID: 1, Name: "Bread", Barcode: "111", Price: decimal.RequireFromString("1.20"), IsActive: true, UpdatedAt: now},
		{ID: 2, Name: "Milk", Barcode: "222", Price: decimal.RequireFromString("0.90"), IsActive: true, UpdatedAt: now},
		{ID: 3, Name: "Butter", Barcode: "333", Price: decimal.RequireFromString("3.40"), IsActive: true, UpdatedAt: now},
	}
	if err := store.UpsertProducts(ctx, initial); err != nil {
		t.Fatalf("UpsertProducts() error = %v", err)
	}

	// Update id 1, delete ids 2 and 3, advance watermark
	updated := []models.Product{
		{ID: 1, Name: "Rye Bread", Barcode: "111", Price: decimal.RequireFromString("1.50"), IsActive: true, UpdatedAt: now},
	}
	if err := store.UpsertProducts(ctx, updated); err != nil {
		t.Fatalf("UpsertProducts() error = %v", err)
	}
	if err := store.DeleteProducts(ctx, []int64{2, 3, 99}); err != nil {
		t.Fatalf("DeleteProducts() error = %v", err)
	}
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := store.UpdateSyncMetadata(ctx, models.SyncResourceProducts, watermark); err != nil {
		t.Fatalf("UpdateSyncMetadata() error = %v", err)
	}

	p, err := store.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}
	if p.Name != "Rye Bread" || !p.Price.Equal(decimal.RequireFromString("1.50")) {
		t.Errorf("product not updated: %+v", p)
	}
	if _, err := store.GetProduct(ctx, 2); !repositories.IsNotFound(err) {
		t.Errorf("GetProduct(2) error = %v, want not found", err)
	}

	got, err := store.GetLastSyncTime(ctx, models.SyncResourceProducts)
	if err != nil {
		t.Fatalf("GetLastSyncTime() error = %v", err)
	}
	if got == nil || !got.Equal(watermark) {
		t.Errorf("watermark = %v, want %v", got, watermark)
	}
}

func TestSyncMetadata_NeverSynced(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.GetLastSyncTime(context.Background(), models.SyncResourceCustomers)
	if err != nil {
		t.Fatalf("GetLastSyncTime() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected nil watermark, got %v", got)
	}
}

func TestProducts_Search(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	now := time.Now().UTC()

	products := []models.Product{
		{ID: 1, Name: "Whole milk", Barcode: "4760001", IsActive: true, UpdatedAt: now},
		{ID: 2, Name: "Milk 100%", Barcode: "4760002", IsActive: true, UpdatedAt: now},
		{ID: 3, Name: "Old milk", Barcode: "4760003", IsActive: false, UpdatedAt: now},
		{ID: 4, Name: "Apple", Barcode: "4760004", SKU: "milk-apple", IsActive: true, UpdatedAt: now},
	}
	if err := store.UpsertProducts(ctx, products); err != nil {
		t.Fatalf("UpsertProducts() error = %v", err)
	}

	results, err := store.SearchProducts(ctx, "milk", 10)
	if err != nil {
		t.Fatalf("SearchProducts() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 active matches, got %d", len(results))
	}

	results, err = store.SearchProducts(ctx, "100%", 10)
	if err != nil {
		t.Fatalf("SearchProducts() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != 2 {
		t.Errorf("expected literal %% match on id 2, got %+v", results)
	}

	results, err = store.SearchProducts(ctx, "4760004", 10)
	if err != nil {
		t.Fatalf("SearchProducts() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != 4 {
		t.Errorf("expected barcode match on id 4, got %+v", results)
	}
}

func TestCustomers_UpsertSearchDelete(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	now := time.Now().UTC()

	customers := []models.Customer{
		{ID: 7, Name: "Aysel", Phone: "+994501112233", CardNumber: "C-7", DiscountRate: decimal.NewFromInt(5), UpdatedAt: now},
		{ID: 8, Name: "Rashad", Phone: "+994552223344", UpdatedAt: now},
	}
	if err := store.UpsertCustomers(ctx, customers); err != nil {
		t.Fatalf("UpsertCustomers() error = %v", err)
	}

	results, err := store.SearchCustomers(ctx, "C-7", 0)
	if err != nil {
		t.Fatalf("SearchCustomers() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != 7 {
		t.Fatalf("expected card match on id 7, got %+v", results)
	}
	if !results[0].DiscountRate.Equal(decimal.NewFromInt(5)) {
		t.Errorf("DiscountRate = %s, want 5", results[0].DiscountRate)
	}

	if err := store.DeleteCustomers(ctx, []int64{7}); err != nil {
		t.Fatalf("DeleteCustomers() error = %v", err)
	}
	results, err = store.SearchCustomers(ctx, "+99450", 0)
	if err != nil {
		t.Fatalf("SearchCustomers() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected deleted customer to be gone, got %+v", results)
	}
}

func TestUsers_GetByUsername(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	now := time.Now().UTC()

	users := []models.User{
		{ID: 1, Username: "Cashier", PasswordHash: "old", IsActive: true, UpdatedAt: now.Add(-time.Hour)},
		{ID: 2, Username: "cashier", PasswordHash: "new", IsActive: true, UpdatedAt: now},
		{ID: 3, Username: "ghost", IsActive: false, UpdatedAt: now},
	}
	if err := store.UpsertUsers(ctx, users); err != nil {
		t.Fatalf("UpsertUsers() error = %v", err)
	}

	u, err := store.GetUserByUsername(ctx, " CASHIER ")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if u.ID != 2 || u.PasswordHash != "new" {
		t.Errorf("expected most recent user, got %+v", u)
	}

	if _, err := store.GetUserByUsername(ctx, "ghost"); !repositories.IsNotFound(err) {
		t.Errorf("inactive user lookup error = %v, want not found", err)
	}

	if err := store.DeleteUsers(ctx, []int64{1, 2}); err != nil {
		t.Fatalf("DeleteUsers() error = %v", err)
	}
	if _, err := store.GetUserByUsername(ctx, "cashier"); !repositories.IsNotFound(err) {
		t.Errorf("deleted user lookup error = %v, want not found", err)
	}
}

func TestFiscalConfig_SingleRow(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	cfg, err := store.GetFiscalConfig(ctx)
	if err != nil {
		t.Fatalf("GetFiscalConfig() error = %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config before first sync, got %+v", cfg)
	}

	first := &models.FiscalConfig{
		Provider:  models.FiscalProviderCaspos,
		IPAddress: "192.168.1.50",
		Port:      5544,
		Username:  "kassa",
		Password:  "secret",
		IsActive:  true,
	}
	if err := store.UpdateFiscalConfig(ctx, first); err != nil {
		t.Fatalf("UpdateFiscalConfig() error = %v", err)
	}

	second := *first
	second.Provider = models.FiscalProviderOmnitech
	second.DefaultTaxRate = decimal.NewFromInt(18)
	if err := store.UpdateFiscalConfig(ctx, &second); err != nil {
		t.Fatalf("UpdateFiscalConfig() error = %v", err)
	}

	cfg, err = store.GetFiscalConfig(ctx)
	if err != nil {
		t.Fatalf("GetFiscalConfig() error = %v", err)
	}
	if cfg.Provider != models.FiscalProviderOmnitech || cfg.Port != 5544 || !cfg.IsActive {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.DefaultTaxRate.Equal(decimal.NewFromInt(18)) {
		t.Errorf("DefaultTaxRate = %s, want 18", cfg.DefaultTaxRate)
	}

	if err := store.UpdateFiscalConfig(ctx, nil); !repositories.IsValidation(err) {
		t.Errorf("UpdateFiscalConfig(nil) error = %v, want validation error", err)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	if _, ok, err := store.GetSetting(ctx, "device_token"); err != nil || ok {
		t.Fatalf("GetSetting() = ok %v, err %v; want missing", ok, err)
	}

	if err := store.SetSetting(ctx, "device_token", "abc"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	if err := store.SetSetting(ctx, "device_token", "def"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}

	value, ok, err := store.GetSetting(ctx, "device_token")
	if err != nil || !ok || value != "def" {
		t.Errorf("GetSetting() = %q, %v, %v; want def", value, ok, err)
	}

	if err := store.DeleteSetting(ctx, "device_token"); err != nil {
		t.Fatalf("DeleteSetting() error = %v", err)
	}
	if _, ok, _ := store.GetSetting(ctx, "device_token"); ok {
		t.Error("expected setting to be removed")
	}
}

func TestLikePattern(t *testing.T) {
	tests := map[string]string{
		"milk":   "%milk%",
		" 10% ":  `%10\%%`,
		"a_b":    `%a\_b%`,
		`back\s`: `%back\\s%`,
	}
	for in, want := range tests {
		if got := likePattern(in); got != want {
			t.Errorf("likePattern(%q) = %q, want %q", in, got, want)
		}
	}
}
