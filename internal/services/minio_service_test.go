package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"testing"
	"time"

	"fleetstock/internal/caching"
	"fleetstock/internal/models"
	"fleetstock/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type MockMinioService struct {
	mock.Mock
	uploaded []byte
}

func (m *MockMinioService) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	data, _ := io.ReadAll(reader)
	m.uploaded = data
	args := m.Called(ctx, bucket, key, size, contentType)
	return args.Error(0)
}

func (m *MockMinioService) GetPresignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, bucket, key, expiry)
	return args.String(0), args.Error(1)
}

func (m *MockMinioService) EnsureBucketExists(ctx context.Context, bucket string) error {
	args := m.Called(ctx, bucket)
	return args.Error(0)
}

func (m *MockMinioService) Ping(ctx context.Context, bucket string) error {
	args := m.Called(ctx, bucket)
	return args.Error(0)
}

type ExportServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	storage  *MockMinioService
	alloc    AllocationService
	catalog  CatalogService
	exporter ExportService
	clock    *testClock
}

func (suite *ExportServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.clock = newTestClock()
	store := memory.NewStore()
	logger := zap.NewNop()
	cache := caching.NewNoopCacheService()

	suite.storage = &MockMinioService{}
	suite.alloc = NewAllocationService(store, cache, logger, WithClock(suite.clock.Now))
	suite.catalog = NewCatalogService(store, logger, WithClock(suite.clock.Now))
	reporting := NewReportingService(store, cache, logger, WithClock(suite.clock.Now))
	suite.exporter = NewExportService(reporting, suite.storage, "ledger-exports", logger, WithClock(suite.clock.Now))
}

func (suite *ExportServiceTestSuite) TearDownTest() {
	suite.storage.AssertExpectations(suite.T())
}

func TestExportServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ExportServiceTestSuite))
}

func (suite *ExportServiceTestSuite) TestExportLedger_WritesCSV() {
	item, err := suite.catalog.CreateItem(suite.ctx, &models.CreateItemRequest{SKU: "OIL-5W30", Name: "Engine oil"})
	require.NoError(suite.T(), err)
	loc, err := suite.catalog.CreateLocation(suite.ctx, &models.CreateLocationRequest{Name: "Main yard"})
	require.NoError(suite.T(), err)
	_, err = suite.alloc.Receive(suite.ctx, &models.ReceiveRequest{ItemID: item.ID, LocationID: loc.ID, Qty: 10})
	require.NoError(suite.T(), err)
	_, err = suite.alloc.Consume(suite.ctx, &models.ConsumeRequest{ItemID: item.ID, LocationID: loc.ID, Qty: 3})
	require.NoError(suite.T(), err)

	suite.clock.Advance(time.Minute)
	suite.storage.On("EnsureBucketExists", mock.Anything, "ledger-exports").Return(nil).Once()
	suite.storage.On("PutObject", mock.Anything, "ledger-exports", mock.AnythingOfType("string"), mock.AnythingOfType("int64"), "text/csv").Return(nil).Once()
	suite.storage.On("GetPresignedURL", mock.Anything, "ledger-exports", mock.AnythingOfType("string"), ExportURLExpiry).Return("https://minio.local/ledger.csv", nil).Once()

	export, err := suite.exporter.ExportLedger(suite.ctx, nil)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, export.Rows)
	assert.Equal(suite.T(), "https://minio.local/ledger.csv", export.URL)
	assert.Contains(suite.T(), export.Object, "movements/")

	records, err := csv.NewReader(bytes.NewReader(suite.storage.uploaded)).ReadAll()
	require.NoError(suite.T(), err)
	require.Len(suite.T(), records, 3)
	assert.Equal(suite.T(), ledgerCSVHeader, records[0])
	assert.Equal(suite.T(), "IN", records[1][2])
	assert.Equal(suite.T(), "10", records[1][4])
	assert.Equal(suite.T(), "OUT", records[2][2])
	assert.Equal(suite.T(), loc.ID.String(), records[2][5])
}

func (suite *ExportServiceTestSuite) TestExportLedger_InvalidRange() {
	from := suite.clock.Now()
	to := from.Add(-time.Hour)

	_, err := suite.exporter.ExportLedger(suite.ctx, &models.ExportRequest{From: &from, To: &to})
	assertKind(suite.T(), err, "VALIDATION_ERROR")
}

func (suite *ExportServiceTestSuite) TestExportLedger_UploadFails() {
	suite.storage.On("EnsureBucketExists", mock.Anything, "ledger-exports").Return(nil).Once()
	suite.storage.On("PutObject", mock.Anything, "ledger-exports", mock.Anything, mock.Anything, "text/csv").Return(errors.New("connection timeout")).Once()

	_, err := suite.exporter.ExportLedger(suite.ctx, nil)
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "connection timeout")
}

func (suite *ExportServiceTestSuite) TestExportLedger_BucketUnavailable() {
	suite.storage.On("EnsureBucketExists", mock.Anything, "ledger-exports").Return(errors.New("NoSuchBucket")).Once()

	_, err := suite.exporter.ExportLedger(suite.ctx, nil)
	require.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "NoSuchBucket")
}
