package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbutdayev/xpos-sub008/internal/adapters/backend"
	"github.com/rbutdayev/xpos-sub008/internal/models"
	"github.com/rbutdayev/xpos-sub008/internal/repositories"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// fakeStore is an in-memory Store that records the order of writes
type fakeStore struct {
	mu         sync.Mutex
	nextID     int64
	sales      map[int64]*models.QueuedSale
	products   map[int64]models.Product
	customers  map[int64]models.Customer
	users      map[int64]models.User
	fiscal     *models.FiscalConfig
	watermarks map[models.SyncResource]time.Time
	settings   map[string]string
	ops        []string

	upsertProductsErr error
	getQueuedErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sales:      make(map[int64]*models.QueuedSale),
		products:   make(map[int64]models.Product),
		customers:  make(map[int64]models.Customer),
		users:      make(map[int64]models.User),
		watermarks: make(map[models.SyncResource]time.Time),
		settings:   make(map[string]string),
	}
}

var _ Store = (*fakeStore)(nil)

func (f *fakeStore) record(op string) {
	f.ops = append(f.ops, op)
}

func (f *fakeStore) QueueSale(ctx context.Context, sale *models.Sale) (*models.QueuedSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	q := &models.QueuedSale{LocalID: f.nextID, SyncStatus: models.SyncStatusQueued, Sale: *sale}
	f.sales[q.LocalID] = q
	copied := *q
	return &copied, nil
}

// addSale inserts a queued sale with a preset retry count
func (f *fakeStore) addSale(retryCount int) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.sales[f.nextID] = &models.QueuedSale{
		LocalID:    f.nextID,
		RetryCount: retryCount,
		SyncStatus: models.SyncStatusQueued,
		Sale:       models.Sale{BranchID: 1, PaymentStatus: models.PaymentStatusPaid},
	}
	return f.nextID
}

func (f *fakeStore) GetQueuedSales(ctx context.Context) ([]*models.QueuedSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getQueuedErr != nil {
		return nil, f.getQueuedErr
	}

	ids := make([]int64, 0, len(f.sales))
	for id, s := range f.sales {
		if s.SyncStatus != models.SyncStatusSynced {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*models.QueuedSale, 0, len(ids))
	for _, id := range ids {
		copied := *f.sales[id]
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeStore) GetQueuedSale(ctx context.Context, localID int64) (*models.QueuedSale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sales[localID]
	if !ok {
		return nil, repositories.NotFoundError("queued_sale", "x")
	}
	copied := *s
	return &copied, nil
}

func (f *fakeStore) sale(localID int64) models.QueuedSale {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.sales[localID]
}

func (f *fakeStore) MarkSaleAsSynced(ctx context.Context, localID, serverSaleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sales[localID]
	if !ok {
		return repositories.NotFoundError("queued_sale", "x")
	}
	s.SyncStatus = models.SyncStatusSynced
	s.ServerSaleID = &serverSaleID
	return nil
}

func (f *fakeStore) MarkSaleAsFailed(ctx context.Context, localID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sales[localID]
	if !ok {
		return repositories.NotFoundError("queued_sale", "x")
	}
	s.SyncStatus = models.SyncStatusFailed
	s.LastError = reason
	return nil
}

func (f *fakeStore) UpdateSaleRetryCount(ctx context.Context, localID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sales[localID]
	if !ok {
		return repositories.NotFoundError("queued_sale", "x")
	}
	s.RetryCount++
	return nil
}

func (f *fakeStore) CountQueuedSales(ctx context.Context) (int64, error) {
	queued, err := f.GetQueuedSales(ctx)
	return int64(len(queued)), err
}

func (f *fakeStore) UpsertProducts(ctx context.Context, products []models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertProductsErr != nil {
		return f.upsertProductsErr
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	f.record("upsert:products")
	return nil
}

func (f *fakeStore) DeleteProducts(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		delete(f.products, id)
	}
	f.record("delete:products")
	return nil
}

func (f *fakeStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[id]
	if !ok {
		return nil, repositories.NotFoundError("product", "x")
	}
	return &p, nil
}

func (f *fakeStore) SearchProducts(ctx context.Context, query string, limit int) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*models.Product{}
	for _, p := range f.products {
		p := p
		out = append(out, &p)
	}
	return out, nil
}

func (f *fakeStore) UpsertCustomers(ctx context.Context, customers []models.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range customers {
		f.customers[c.ID] = c
	}
	f.record("upsert:customers")
	return nil
}

func (f *fakeStore) DeleteCustomers(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		delete(f.customers, id)
	}
	f.record("delete:customers")
	return nil
}

func (f *fakeStore) SearchCustomers(ctx context.Context, query string, limit int) ([]*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*models.Customer{}
	for _, c := range f.customers {
		c := c
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeStore) UpsertUsers(ctx context.Context, users []models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range users {
		f.users[u.ID] = u
	}
	f.record("upsert:users")
	return nil
}

func (f *fakeStore) DeleteUsers(ctx context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		delete(f.users, id)
	}
	f.record("delete:users")
	return nil
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Username == username && u.IsActive {
			u := u
			return &u, nil
		}
	}
	return nil, repositories.NotFoundError("user", username)
}

func (f *fakeStore) UpdateFiscalConfig(ctx context.Context, cfg *models.FiscalConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := *cfg
	f.fiscal = &copied
	f.record("update:fiscal_config")
	return nil
}

func (f *fakeStore) GetFiscalConfig(ctx context.Context) (*models.FiscalConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fiscal == nil {
		return nil, nil
	}
	copied := *f.fiscal
	return &copied, nil
}

func (f *fakeStore) GetLastSyncTime(ctx context.Context, resource models.SyncResource) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	at, ok := f.watermarks[resource]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (f *fakeStore) UpdateSyncMetadata(ctx context.Context, resource models.SyncResource, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.watermarks[resource] = at
	f.record("watermark:" + string(resource))
	return nil
}

func (f *fakeStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.settings[key]
	return v, ok, nil
}

func (f *fakeStore) SetSetting(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.settings[key] = value
	return nil
}

func (f *fakeStore) DeleteSetting(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.settings, key)
	return nil
}

// fakeAPI stands in for the backend client
type fakeAPI struct {
	mu sync.Mutex

	online         atomic.Bool
	heartbeatCalls atomic.Int32
	uploadCalls    atomic.Int32
	productCalls   atomic.Int32
	customerCalls  atomic.Int32

	productsDelta  *models.Delta[models.Product]
	productsErr    error
	productsSince  *time.Time
	customersDelta *models.Delta[models.Customer]
	usersDelta     *models.Delta[models.User]
	fiscalCfg      *models.FiscalConfig
	fiscalErr      error

	uploadResult *models.UploadSalesResult
	uploadErr    error
	uploaded     []int64
	uploadGate   chan struct{}

	createSaleID  int64
	createSaleErr error
	saleStatus    *models.SaleStatus

	searchProducts  []*models.Product
	searchCustomers []*models.Customer
	searchErr       error

	registerResp  *backend.RegisterResponse
	registerErr   error
	registerReq   backend.RegisterRequest
	disconnectErr error
	token         string
}

func (f *fakeAPI) Heartbeat(ctx context.Context) bool {
	f.heartbeatCalls.Add(1)
	return f.online.Load()
}

func (f *fakeAPI) GetProductsDelta(ctx context.Context, since *time.Time) (*models.Delta[models.Product], error) {
	f.productCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	f.productsSince = since
	if f.productsErr != nil {
		return nil, f.productsErr
	}
	if f.productsDelta == nil {
		return &models.Delta[models.Product]{}, nil
	}
	return f.productsDelta, nil
}

func (f *fakeAPI) GetCustomersDelta(ctx context.Context, since *time.Time) (*models.Delta[models.Customer], error) {
	f.customerCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.customersDelta == nil {
		return &models.Delta[models.Customer]{}, nil
	}
	return f.customersDelta, nil
}

func (f *fakeAPI) GetUsersDelta(ctx context.Context, since *time.Time) (*models.Delta[models.User], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.usersDelta == nil {
		return &models.Delta[models.User]{}, nil
	}
	return f.usersDelta, nil
}

func (f *fakeAPI) GetFiscalConfig(ctx context.Context) (*models.FiscalConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fiscalCfg, f.fiscalErr
}

func (f *fakeAPI) UploadSales(ctx context.Context, sales []*models.QueuedSale) (*models.UploadSalesResult, error) {
	f.uploadCalls.Add(1)

	if f.uploadGate != nil {
		select {
		case <-f.uploadGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range sales {
		f.uploaded = append(f.uploaded, s.LocalID)
	}
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if f.uploadResult == nil {
		result := &models.UploadSalesResult{}
		for i, s := range sales {
			result.Results = append(result.Results, models.SaleUploadResult{LocalID: s.LocalID, ServerSaleID: int64(1000 + i)})
		}
		return result, nil
	}
	return f.uploadResult, nil
}

func (f *fakeAPI) CreateSale(ctx context.Context, localID int64, sale *models.Sale) (*backend.CreateSaleResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createSaleErr != nil {
		return nil, f.createSaleErr
	}
	return &backend.CreateSaleResponse{SaleID: f.createSaleID}, nil
}

func (f *fakeAPI) GetSaleStatus(ctx context.Context, saleID int64) (*models.SaleStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saleStatus == nil {
		return nil, errors.New("not available")
	}
	return f.saleStatus, nil
}

func (f *fakeAPI) SearchProducts(ctx context.Context, term string, limit int) ([]*models.Product, error) {
	return f.searchProducts, f.searchErr
}

func (f *fakeAPI) SearchCustomers(ctx context.Context, term string, limit int) ([]*models.Customer, error) {
	return f.searchCustomers, f.searchErr
}

func (f *fakeAPI) Register(ctx context.Context, req backend.RegisterRequest) (*backend.RegisterResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.registerReq = req
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.token = f.registerResp.Token
	return f.registerResp, nil
}

func (f *fakeAPI) Disconnect(ctx context.Context) error {
	return f.disconnectErr
}

func (f *fakeAPI) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeAPI) HasToken() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token != ""
}

// eventLog collects every published event
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func watch(bus *EventBus) *eventLog {
	l := &eventLog{}
	bus.SubscribeAll(func(e Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.events = append(l.events, e)
	})
	return l
}

func (l *eventLog) count(name EventName) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (l *eventLog) last(name EventName) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Name == name {
			return l.events[i], true
		}
	}
	return Event{}, false
}

// fakeRecorder counts sync outcomes
type fakeRecorder struct {
	nopRecorder
	mu      sync.Mutex
	results []string
	prints  []bool
}

func (r *fakeRecorder) RecordSync(trigger, result string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, trigger+":"+result)
}

func (r *fakeRecorder) RecordFiscalPrint(provider string, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prints = append(r.prints, success)
}
