package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/phbiling/isp-billing/internal/clock"
	"github.com/phbiling/isp-billing/internal/config"
	"github.com/phbiling/isp-billing/internal/domain"
	"github.com/phbiling/isp-billing/internal/repository"
	"github.com/phbiling/isp-billing/internal/seed"
	"github.com/phbiling/isp-billing/internal/server"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const webhookSecret = "whsec-test"

var wib = time.FixedZone("WIB", 7*3600)

// testEnv is a running API backed by the given stores and a miniredis instance
type testEnv struct {
	t     *testing.T
	app   *server.App
	redis *miniredis.Miniredis
	files *repository.MemoryFileRepository
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.MaxUploadSizeMB = 5
	cfg.Server.Environment = "test"
	cfg.JWT.Secret = "test-secret-key-123"
	cfg.JWT.AccessTokenExpiry = time.Hour
	cfg.Billing.TimeZone = "Asia/Jakarta"
	cfg.Billing.CheckoutBaseURL = "https://checkout.example.com"
	cfg.Billing.BillSuspended = true
	cfg.Billing.AutoIsolate = true
	cfg.Billing.AutoIsolateTime = "00:00"
	cfg.Billing.GraceDays = 0
	cfg.Billing.WebhookSecret = webhookSecret
	cfg.Billing.DashboardTTL = 30 * time.Second
	cfg.Billing.IdempotencyTTL = time.Hour
	return cfg
}

// newTestEnv seeds stores with the demo dataset and wires the API at now
func newTestEnv(t *testing.T, stores *repository.Stores, now time.Time) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	clk := clock.Fixed(now)
	_, err = seed.Load(context.Background(), stores, clk.Now())
	require.NoError(t, err)

	files := repository.NewMemoryFileRepository()
	app := server.NewApp(server.AppDependencies{
		Config:      testConfig(),
		Clock:       clk,
		Stores:      stores,
		RedisClient: redisClient,
		Files:       files,
	})
	return &testEnv{t: t, app: app, redis: mr, files: files}
}

// request performs an API call; body is JSON encoded when not nil
func (e *testEnv) request(method, path, token string, body interface{}, headers ...string) *http.Response {
	e.t.Helper()
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		require.NoError(e.t, err)
		bodyReader = bytes.NewReader(jsonBytes)
	}
	req, err := http.NewRequest(method, path, bodyReader)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Fiber.Test(req, -1)
	require.NoError(e.t, err)
	return resp
}

// decode reads a JSON response into out and checks the status code
func (e *testEnv) decode(resp *http.Response, wantStatus int, out interface{}) {
	e.t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	require.Equalf(e.t, wantStatus, resp.StatusCode, "body: %s", raw)
	if out != nil {
		require.NoError(e.t, json.Unmarshal(raw, out))
	}
}

func (e *testEnv) login(username, password string) string {
	e.t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	e.decode(e.request(http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}), http.StatusOK, &out)
	require.NotEmpty(e.t, out.Token)
	return out.Token
}

// setupMongoStores starts a single-node replica set and returns stores on it
func setupMongoStores(t *testing.T) *repository.Stores {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetDirect(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	stores, err := repository.NewMongoStores(ctx, client.Database("billing_e2e"), seed.Routers)
	require.NoError(t, err)
	return stores
}

func memoryStores() *repository.Stores {
	return repository.NewMemoryStores(domain.CompanyConfig{}, seed.Routers)
}
