package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onlinestore/internal/database"
	"onlinestore/internal/handlers"
	"onlinestore/internal/models"
	"onlinestore/internal/repositories"
	"onlinestore/internal/server"
	"onlinestore/internal/services"
)

type testApp struct {
	app   *fiber.App
	store repositories.Store
}

// setupApp sets up a Fiber app backed by an in-memory SQLite database.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db, err := database.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(context.Background(), db, "sqlite", nil))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := repositories.NewGORMStore(db)
	app := server.NewApp(server.Options{},
		handlers.NewProductHandler(services.NewProductService(store.Products(), nil), nil),
		handlers.NewCartHandler(services.NewCartService(store, services.DefaultQuantityLimits, nil), nil),
		handlers.NewOrderHandler(services.NewOrderService(store, nil, nil), nil),
	)
	return &testApp{app: app, store: store}
}

// seedProductsForTest populates the catalog for tests.
func (a *testApp) seedProductsForTest(t *testing.T) (laptop, mouse *models.Product) {
	t.Helper()
	products := []models.Product{
		{Name: "Test Laptop", Description: "For testing purposes", Price: decimal.RequireFromString("999.99"), StockQuantity: 10, Category: "electronics", SKU: "LAP-T"},
		{Name: "Test Mouse", Description: "Another test item", Price: decimal.RequireFromString("25.50"), StockQuantity: 1, Category: "accessories", SKU: "MOU-T"},
	}
	for i := range products {
		require.NoError(t, a.store.Products().Create(context.Background(), &products[i]))
	}
	return &products[0], &products[1]
}

// call sends a request and decodes the JSON response into out when out is not nil.
func (a *testApp) call(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.app.Test(req, -1) // -1 for no timeout
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return resp.StatusCode
}

type errorBody struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

var checkoutDetails = map[string]interface{}{
	"customer_info": map[string]string{
		"name":  "Jane Doe",
		"email": "jane@example.com",
		"phone": "555-0100",
	},
	"shipping_address": map[string]string{
		"street":      "1 Main St",
		"city":        "Springfield",
		"state":       "IL",
		"postal_code": "62701",
		"country":     "US",
	},
}

func checkoutBody(cartID uint) map[string]interface{} {
	body := map[string]interface{}{"cart_id": cartID}
	for k, v := range checkoutDetails {
		body[k] = v
	}
	return body
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestHealth(t *testing.T) {
	a := setupApp(t)
	var body map[string]interface{}
	assert.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/health", nil, &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestCheckoutFlow(t *testing.T) {
	a := setupApp(t)
	laptop, _ := a.seedProductsForTest(t)

	var cart models.Cart
	require.Equal(t, http.StatusCreated, a.call(t, http.MethodPost, "/api/carts?sessionId=web-1", nil, &cart))
	assert.Equal(t, "web-1", cart.SessionID)

	status := a.call(t, http.MethodPost, fmt.Sprintf("/api/carts/%d/items", cart.ID),
		map[string]interface{}{"product_id": laptop.ID, "quantity": 2}, &cart)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "1999.98", cart.TotalPrice.StringFixed(2))
	assert.Equal(t, 2, cart.TotalItems)

	var order models.Order
	require.Equal(t, http.StatusCreated, a.call(t, http.MethodPost, "/api/orders", checkoutBody(cart.ID), &order))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "1999.98", order.TotalAmount.StringFixed(2))
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{12}$`, order.OrderNumber)
	assert.Equal(t, "jane@example.com", order.Customer.Email)

	var product models.Product
	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, fmt.Sprintf("/api/products/%d", laptop.ID), nil, &product))
	assert.Equal(t, 8, product.StockQuantity)

	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/carts/session/web-1", nil, &cart))
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalPrice.IsZero())

	var byNumber models.Order
	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/orders/number/"+order.OrderNumber, nil, &byNumber))
	assert.Equal(t, order.ID, byNumber.ID)
	require.Len(t, byNumber.Items, 1)
	assert.Equal(t, "Test Laptop", byNumber.Items[0].ProductName)

	var page repositories.Page[models.Order]
	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/orders/customer/jane@example.com", nil, &page))
	assert.Equal(t, int64(1), page.TotalElements)

	// Clients that percent-encode path segments see the same results.
	page = repositories.Page[models.Order]{}
	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/orders/customer/jane%40example.com", nil, &page))
	assert.Equal(t, int64(1), page.TotalElements)
	var sameCart models.Cart
	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/carts/session/web%2D1", nil, &sameCart))
	assert.Equal(t, cart.ID, sameCart.ID)

	var updated models.Order
	require.Equal(t, http.StatusOK, a.call(t, http.MethodPut, fmt.Sprintf("/api/orders/%d/status?status=confirmed", order.ID), nil, &updated))
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)

	var cancelled models.Order
	require.Equal(t, http.StatusOK, a.call(t, http.MethodPut, fmt.Sprintf("/api/orders/%d/cancel", order.ID), nil, &cancelled))
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, fmt.Sprintf("/api/products/%d", laptop.ID), nil, &product))
	assert.Equal(t, 10, product.StockQuantity)

	var errBody errorBody
	assert.Equal(t, http.StatusConflict, a.call(t, http.MethodPut, fmt.Sprintf("/api/orders/%d/status", order.ID),
		map[string]string{"status": "SHIPPED"}, &errBody))
	assert.Equal(t, "invalid_status_transition", errBody.Error)

	assert.Equal(t, http.StatusNoContent, a.call(t, http.MethodDelete, fmt.Sprintf("/api/orders/%d", order.ID), nil, nil))
	assert.Equal(t, http.StatusNotFound, a.call(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", order.ID), nil, &errBody))
}

func TestCheckoutErrors(t *testing.T) {
	a := setupApp(t)
	laptop, mouse := a.seedProductsForTest(t)

	var cart models.Cart
	require.Equal(t, http.StatusCreated, a.call(t, http.MethodPost, "/api/carts", nil, &cart))

	var errBody errorBody
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodPost, "/api/orders", checkoutBody(cart.ID), &errBody))
	assert.Equal(t, "empty_cart", errBody.Error)

	assert.Equal(t, http.StatusNotFound, a.call(t, http.MethodPost, "/api/orders", checkoutBody(9999), &errBody))
	assert.Equal(t, "not_found", errBody.Error)

	require.Equal(t, http.StatusOK, a.call(t, http.MethodPost, fmt.Sprintf("/api/carts/%d/items", cart.ID),
		map[string]interface{}{"product_id": mouse.ID, "quantity": 1}, &cart))
	require.Equal(t, http.StatusOK, a.call(t, http.MethodPost, fmt.Sprintf("/api/carts/%d/items", cart.ID),
		map[string]interface{}{"product_id": laptop.ID, "quantity": 1}, &cart))

	// Someone else buys the last mouse before this cart checks out.
	require.NoError(t, a.store.Products().DecrementStock(context.Background(), mouse.ID, 1))

	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodPost, "/api/orders", checkoutBody(cart.ID), &errBody))
	assert.Equal(t, "insufficient_stock", errBody.Error)
	var shortages []services.StockShortage
	require.NoError(t, json.Unmarshal(errBody.Details, &shortages))
	require.Len(t, shortages, 1)
	assert.Equal(t, services.StockShortage{ProductID: mouse.ID, ProductName: "Test Mouse", Requested: 1, Available: 0}, shortages[0])

	var product models.Product
	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, fmt.Sprintf("/api/products/%d", laptop.ID), nil, &product))
	assert.Equal(t, 10, product.StockQuantity, "failed checkout must not touch stock")

	invalid := checkoutBody(cart.ID)
	invalid["customer_info"] = map[string]string{"name": "No Email"}
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodPost, "/api/orders", invalid, &errBody))
	assert.Equal(t, "validation_error", errBody.Error)
}

func TestCartEndpoints(t *testing.T) {
	a := setupApp(t)
	laptop, mouse := a.seedProductsForTest(t)

	var source, target models.Cart
	require.Equal(t, http.StatusCreated, a.call(t, http.MethodPost, "/api/carts?sessionId=guest", nil, &source))
	require.Equal(t, http.StatusCreated, a.call(t, http.MethodPost, "/api/carts?sessionId=member", nil, &target))

	var errBody errorBody
	assert.Equal(t, http.StatusConflict, a.call(t, http.MethodPost, "/api/carts?sessionId=guest", nil, &errBody))

	addPath := fmt.Sprintf("/api/carts/%d/items", source.ID)
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodPost, addPath, map[string]interface{}{"product_id": laptop.ID, "quantity": 0}, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodPost, addPath, map[string]interface{}{"product_id": mouse.ID, "quantity": 2}, &errBody))
	assert.Equal(t, "insufficient_stock", errBody.Error)
	assert.Equal(t, http.StatusNotFound, a.call(t, http.MethodPost, addPath, map[string]interface{}{"product_id": 9999, "quantity": 1}, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodPost, addPath, map[string]interface{}{"quantity": 1}, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodGet, "/api/carts/abc", nil, &errBody))

	require.Equal(t, http.StatusOK, a.call(t, http.MethodPost, addPath, map[string]interface{}{"product_id": laptop.ID, "quantity": 1}, &source))
	itemID := source.Items[0].ID

	require.Equal(t, http.StatusOK, a.call(t, http.MethodPut, fmt.Sprintf("/api/carts/%d/items/%d", source.ID, itemID),
		map[string]interface{}{"quantity": 3}, &source))
	assert.Equal(t, 3, source.TotalItems)
	assert.Equal(t, "2999.97", source.TotalPrice.StringFixed(2))

	require.Equal(t, http.StatusOK, a.call(t, http.MethodPost, fmt.Sprintf("/api/carts/%d/items", target.ID),
		map[string]interface{}{"product_id": mouse.ID, "quantity": 1}, &target))

	var merged models.Cart
	require.Equal(t, http.StatusOK, a.call(t, http.MethodPost,
		fmt.Sprintf("/api/carts/merge?sourceCartId=%d&targetCartId=%d", source.ID, target.ID), nil, &merged))
	assert.Equal(t, target.ID, merged.ID)
	assert.Len(t, merged.Items, 2)
	assert.Equal(t, 4, merged.TotalItems)
	assert.Equal(t, "3025.47", merged.TotalPrice.StringFixed(2))
	assert.Equal(t, http.StatusNotFound, a.call(t, http.MethodGet, fmt.Sprintf("/api/carts/%d", source.ID), nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodPost, "/api/carts/merge?sourceCartId=abc&targetCartId=1", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodPost, "/api/carts/merge?targetCartId=1", nil, &errBody))

	mouseItem := merged.FindItemByProduct(mouse.ID)
	require.NotNil(t, mouseItem)
	require.Equal(t, http.StatusOK, a.call(t, http.MethodDelete, fmt.Sprintf("/api/carts/%d/items/%d", merged.ID, mouseItem.ID), nil, &merged))
	assert.Len(t, merged.Items, 1)

	require.Equal(t, http.StatusOK, a.call(t, http.MethodDelete, fmt.Sprintf("/api/carts/%d/clear", merged.ID), nil, &merged))
	assert.Empty(t, merged.Items)
	assert.True(t, merged.TotalPrice.IsZero())

	assert.Equal(t, http.StatusNoContent, a.call(t, http.MethodDelete, fmt.Sprintf("/api/carts/%d", merged.ID), nil, nil))
}

func TestProductEndpoints(t *testing.T) {
	a := setupApp(t)
	laptop, mouse := a.seedProductsForTest(t)

	var page repositories.Page[models.Product]
	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/products?size=1&sortBy=price&direction=desc", nil, &page))
	assert.Equal(t, int64(2), page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Content, 1)
	assert.Equal(t, laptop.ID, page.Content[0].ID)

	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/products/search?name=MOUSE", nil, &page))
	require.Len(t, page.Content, 1)
	assert.Equal(t, mouse.ID, page.Content[0].ID)

	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/products/search/keyword?keyword=another", nil, &page))
	assert.Len(t, page.Content, 1)

	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/products/filter/price?minPrice=20&maxPrice=30", nil, &page))
	assert.Len(t, page.Content, 1)

	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/products/filter/category-price?category=electronics&minPrice=0&maxPrice=5000", nil, &page))
	assert.Len(t, page.Content, 1)

	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/products/category/accessories", nil, &page))
	assert.Len(t, page.Content, 1)

	var errBody errorBody
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodGet, "/api/products/filter/price?minPrice=50&maxPrice=10", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodGet, "/api/products/filter/price?minPrice=abc&maxPrice=10", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodGet, "/api/products?direction=up", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodGet, "/api/products?size=abc", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodGet, "/api/orders?page=x", nil, &errBody))

	var product models.Product
	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/products/sku/MOU-T", nil, &product))
	assert.Equal(t, mouse.ID, product.ID)
	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/products/sku/MOU%2DT", nil, &product))
	assert.Equal(t, mouse.ID, product.ID)

	newProduct := map[string]interface{}{"name": "Webcam", "price": "49.90", "stock_quantity": 0, "category": "accessories", "sku": "CAM-T"}
	require.Equal(t, http.StatusCreated, a.call(t, http.MethodPost, "/api/products", newProduct, &product))
	assert.NotZero(t, product.ID)
	assert.Equal(t, http.StatusConflict, a.call(t, http.MethodPost, "/api/products", newProduct, &errBody))
	assert.Equal(t, http.StatusBadRequest, a.call(t, http.MethodPost, "/api/products", map[string]interface{}{"name": "x"}, &errBody))

	require.Equal(t, http.StatusOK, a.call(t, http.MethodGet, "/api/products/available", nil, &page))
	assert.Equal(t, int64(2), page.TotalElements)

	newProduct["stock_quantity"] = 4
	var updated models.Product
	require.Equal(t, http.StatusOK, a.call(t, http.MethodPut, fmt.Sprintf("/api/products/%d", product.ID), newProduct, &updated))
	assert.Equal(t, 4, updated.StockQuantity)

	assert.Equal(t, http.StatusNoContent, a.call(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", product.ID), nil, nil))
	assert.Equal(t, http.StatusNotFound, a.call(t, http.MethodGet, fmt.Sprintf("/api/products/%d", product.ID), nil, &errBody))
}
