package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"maktaba-storefront/internal/domain"
	"maktaba-storefront/internal/identity"
	"maktaba-storefront/internal/localcart"
	"maktaba-storefront/internal/logging"
	cartrepo "maktaba-storefront/internal/repository/cart"
	tokenrepo "maktaba-storefront/internal/repository/token"
	cartsvc "maktaba-storefront/internal/service/cart"
	"maktaba-storefront/internal/service/checkout"
	"maktaba-storefront/internal/service/session"
)

type stubCatalog struct {
	books map[string]domain.Book
	err   error
}

func (s *stubCatalog) ResolveBooks(_ context.Context, ids []string) (map[string]domain.Book, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]domain.Book{}
	for _, id := range ids {
		if b, ok := s.books[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

type stubCheckout struct {
	calls int
}

func (s *stubCheckout) Checkout(_ context.Context, cart checkout.Cart) (*domain.Order, error) {
	s.calls++
	return &domain.Order{ID: "order-1", UserID: cart.Owner().UserID, Total: decimal.RequireFromString("10.00")}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router   *gin.Engine
	remote   *cartrepo.Memory
	catalog  *stubCatalog
	verifier *identity.Verifier
	checkout *stubCheckout
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		remote: cartrepo.NewMemory(),
		catalog: &stubCatalog{books: map[string]domain.Book{
			"42": {ID: "42", Title: "Sahih al-Bukhari", TitleAr: "صحيح البخاري", Price: decimal.RequireFromString("150.00"), InStock: true},
			"7":  {ID: "7", Title: "Riyad as-Salihin", Price: decimal.RequireFromString("45.00"), InStock: true},
		}},
		verifier: identity.NewVerifier("test-secret", "maktaba"),
		checkout: &stubCheckout{},
	}
	deps := cartsvc.Deps{Remote: env.remote, Local: localcart.NewMemory(), Catalog: env.catalog}
	router, err := buildRouter(logging.Discard(), Deps{
		Sessions: session.New(tokenrepo.NewMemory(), time.Hour, logging.Discard()),
		Carts:    cartsvc.NewSessions(deps, 100, time.Hour),
		Identity: env.verifier,
		Catalog:  env.catalog,
		Checkout: env.checkout,
		Ready:    map[string]Pinger{"postgres": stubPinger{}},
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	env.router = router
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) openSession(t *testing.T) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/sessions", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp sessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if resp.SessionToken == "" || resp.ExpiresIn != 3600 {
		t.Fatalf("unexpected session response %+v", resp)
	}
	return resp.SessionToken
}

func (env *testEnv) bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := env.verifier.Sign(userID, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + token
}

type cartBody struct {
	Owner         domain.Owner         `json:"owner"`
	Lines         []domain.CartLine    `json:"lines"`
	TotalQuantity int                  `json:"totalQuantity"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Merge         *cartsvc.MergeResult `json:"merge"`
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartBody {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var body cartBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	return body
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/readyz", readyHandler(map[string]Pinger{"postgres": stubPinger{err: errors.New("down")}}))
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCartRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodGet, "/cart", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec := env.do(t, http.MethodGet, "/cart", "", map[string]string{sessionHeader: "bogus"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAnonymousCartThenSignIn(t *testing.T) {
	env := newTestEnv(t)
	token := env.openSession(t)
	anon := map[string]string{sessionHeader: token}

	env.do(t, http.MethodPost, "/cart/items", `{"bookId":"42"}`, anon)
	body := decodeCart(t, env.do(t, http.MethodPost, "/cart/items", `{"bookId":"42","quantity":1}`, anon))
	if len(body.Lines) != 1 || body.Lines[0].Quantity != 2 {
		t.Fatalf("expected one line with quantity 2, got %+v", body.Lines)
	}
	if body.Lines[0].TitleAr != "صحيح البخاري" {
		t.Fatalf("expected display fields from catalog, got %+v", body.Lines[0])
	}
	if !body.Subtotal.Equal(decimal.RequireFromString("300.00")) {
		t.Fatalf("expected subtotal 300, got %s", body.Subtotal)
	}

	ctx := context.Background()
	_ = env.remote.UpsertLine(ctx, "user-9", domain.CartLine{BookID: "42", Quantity: 1})
	_ = env.remote.UpsertLine(ctx, "user-9", domain.CartLine{BookID: "7", Quantity: 3})

	signedIn := map[string]string{sessionHeader: token, "Authorization": env.bearer(t, "user-9")}
	body = decodeCart(t, env.do(t, http.MethodGet, "/cart", "", signedIn))
	got := map[string]int{}
	for _, l := range body.Lines {
		got[l.BookID] = l.Quantity
	}
	if got["42"] != 3 || got["7"] != 3 || len(got) != 2 {
		t.Fatalf("expected merged {42:3 7:3}, got %v", got)
	}
	if !body.Owner.IsAuthenticated() || body.Owner.UserID != "user-9" {
		t.Fatalf("unexpected owner %+v", body.Owner)
	}
	if body.Merge == nil || len(body.Merge.Merged) != 1 {
		t.Fatalf("expected merge report, got %+v", body.Merge)
	}

	// a second request is not a new sign-in
	body = decodeCart(t, env.do(t, http.MethodGet, "/cart", "", signedIn))
	if body.Merge != nil {
		t.Fatalf("expected no merge on repeat request, got %+v", body.Merge)
	}

	// dropping the bearer token signs the session out
	body = decodeCart(t, env.do(t, http.MethodGet, "/cart", "", anon))
	if body.Owner.IsAuthenticated() || len(body.Lines) != 0 {
		t.Fatalf("expected empty anonymous cart after sign-out, got %+v", body)
	}
}

func TestItemRoutes(t *testing.T) {
	env := newTestEnv(t)
	h := map[string]string{sessionHeader: env.openSession(t)}

	if rec := env.do(t, http.MethodPost, "/cart/items", `{"bookId":"missing"}`, h); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown book: expected 404, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/cart/items", `{"quantity":1}`, h); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing book id: expected 400, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/cart/items", `{"bookId":"42","quantity":0}`, h); rec.Code != http.StatusBadRequest {
		t.Fatalf("zero quantity: expected 400, got %d", rec.Code)
	}

	env.do(t, http.MethodPost, "/cart/items", `{"bookId":"42"}`, h)
	env.do(t, http.MethodPost, "/cart/items", `{"bookId":"7"}`, h)

	body := decodeCart(t, env.do(t, http.MethodPut, "/cart/items/42", `{"quantity":4}`, h))
	if body.TotalQuantity != 5 {
		t.Fatalf("expected total 5, got %d", body.TotalQuantity)
	}
	if rec := env.do(t, http.MethodPut, "/cart/items/42", `{"quantity":1000}`, h); rec.Code != http.StatusBadRequest {
		t.Fatalf("quantity above the cap: expected 400, got %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/cart/items/42", "", h)
	if rec.Code != http.StatusOK {
		t.Fatalf("get line: expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var line domain.CartLine
	if err := json.Unmarshal(rec.Body.Bytes(), &line); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if line.BookID != "42" || line.Quantity != 4 {
		t.Fatalf("unexpected line %+v", line)
	}
	if rec := env.do(t, http.MethodGet, "/cart/items/99", "", h); rec.Code != http.StatusNotFound {
		t.Fatalf("get missing line: expected 404, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/cart/items/99", `{"quantity":2}`, h); rec.Code != http.StatusBadRequest {
		t.Fatalf("update missing line: expected 400, got %d", rec.Code)
	}
	body = decodeCart(t, env.do(t, http.MethodPut, "/cart/items/7", `{"quantity":0}`, h))
	if len(body.Lines) != 1 {
		t.Fatalf("expected zero quantity to remove line, got %+v", body.Lines)
	}
	body = decodeCart(t, env.do(t, http.MethodDelete, "/cart/items/42", "", h))
	if len(body.Lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", body.Lines)
	}
	decodeCart(t, env.do(t, http.MethodDelete, "/cart/items/42", "", h))

	env.do(t, http.MethodPost, "/cart/items", `{"bookId":"7"}`, h)
	body = decodeCart(t, env.do(t, http.MethodDelete, "/cart", "", h))
	if len(body.Lines) != 0 {
		t.Fatalf("expected cleared cart, got %+v", body.Lines)
	}
}

func TestInvalidBearerIsRejected(t *testing.T) {
	env := newTestEnv(t)
	h := map[string]string{sessionHeader: env.openSession(t), "Authorization": "Bearer nope"}
	if rec := env.do(t, http.MethodGet, "/cart", "", h); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTransientCatalogFailureIs503(t *testing.T) {
	env := newTestEnv(t)
	h := map[string]string{sessionHeader: env.openSession(t)}
	env.catalog.err = domain.ErrTransientStore
	rec := env.do(t, http.MethodPost, "/cart/items", `{"bookId":"42"}`, h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRefreshAndCheckoutNeedSignIn(t *testing.T) {
	env := newTestEnv(t)
	token := env.openSession(t)
	anon := map[string]string{sessionHeader: token}

	if rec := env.do(t, http.MethodPost, "/cart/refresh", "", anon); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh: expected 401, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/cart/checkout", "", anon); rec.Code != http.StatusUnauthorized {
		t.Fatalf("checkout: expected 401, got %d", rec.Code)
	}

	signedIn := map[string]string{sessionHeader: token, "Authorization": env.bearer(t, "user-1")}
	decodeCart(t, env.do(t, http.MethodPost, "/cart/refresh", "", signedIn))
	rec := env.do(t, http.MethodPost, "/cart/checkout", "", signedIn)
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if env.checkout.calls != 1 || !strings.Contains(rec.Body.String(), `"userId":"user-1"`) {
		t.Fatalf("unexpected checkout response %s", rec.Body.String())
	}
}

func TestBuildRouterRequiresCoreDeps(t *testing.T) {
	if _, err := buildRouter(logging.Discard(), Deps{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}

func TestEndSessionRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.openSession(t)
	headers := map[string]string{sessionHeader: token}

	if rec := env.do(t, http.MethodDelete, "/sessions", "", headers); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/cart", "", headers); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revoke, got %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/sessions", "", headers); rec.Code != http.StatusNoContent {
		t.Fatalf("second revoke should be a no-op, got %d", rec.Code)
	}
}
