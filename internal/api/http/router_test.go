package http

import (
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/dispatch-service/internal/api/http/handlers"
	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/notifier"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/repository/memory"
	"github.com/spec-kit/dispatch-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	company *domain.Company
	agent   *domain.StaffMember
	techA   *domain.StaffMember
	techB   *domain.StaffMember
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memory.NewStore(memory.Options{})
	dispatcher := events.NewInMemoryDispatcher(logger)
	notifications := service.NewNotificationService(dispatcher, store, logger, notifier.NewInAppChannel(store))
	notifications.RegisterHandlers()

	tickets := service.NewTicketService(service.TicketDependencies{Store: store, Dispatcher: dispatcher, Metrics: metrics})
	workOrders := service.NewWorkOrderService(service.WorkOrderDependencies{Store: store, Dispatcher: dispatcher, Metrics: metrics})
	directory := service.NewDirectoryService(store, logger)
	tokens := auth.NewTokenManager("test-secret", 5)
	retry := handlers.RetryPolicy{MaxTries: 2, InitialInterval: time.Millisecond}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("dispatch-service", "test", &persistence.Postgres{}, &persistence.Redis{}, metrics),
		Tickets:        handlers.NewTicketsHandler(tickets, retry),
		WorkOrders:     handlers.NewWorkOrdersHandler(workOrders, retry),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		Staff:          handlers.NewStaffHandler(directory),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store),
	})

	ctx := context.Background()
	srv := &testServer{app: app, tokens: tokens}
	var err error
	srv.company, err = directory.RegisterCompany(ctx, service.CompanyInput{Name: "Acme", ContactEmail: "ops@acme.test"})
	require.NoError(t, err)
	srv.agent, err = directory.RegisterStaff(ctx, service.StaffInput{Name: "Agent", Email: "agent@dispatch.test", Role: domain.StaffRoleAgent})
	require.NoError(t, err)
	srv.techA, err = directory.RegisterStaff(ctx, service.StaffInput{Name: "Tech A", Email: "a@dispatch.test", Role: domain.StaffRoleTechnician})
	require.NoError(t, err)
	srv.techB, err = directory.RegisterStaff(ctx, service.StaffInput{Name: "Tech B", Email: "b@dispatch.test", Role: domain.StaffRoleTechnician})
	require.NoError(t, err)
	return srv
}

func (s *testServer) token(t *testing.T, subject domain.SubjectType, id string) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(id, subject, nil)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func dataField(t *testing.T, body map[string]any, key string) any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data in %v", body)
	return data[key]
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestDispatchFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	companyToken := srv.token(t, domain.SubjectTypeCompany, srv.company.ID)
	agentToken := srv.token(t, domain.SubjectTypeStaff, srv.agent.ID)
	techAToken := srv.token(t, domain.SubjectTypeStaff, srv.techA.ID)
	techBToken := srv.token(t, domain.SubjectTypeStaff, srv.techB.ID)

	status, body := srv.do(t, nethttp.MethodPost, "/tickets", companyToken,
		`{"title":"Broken boiler","description":"No hot water","priority":"HIGH"}`)
	require.Equal(t, nethttp.StatusCreated, status, body)
	ticketID := dataField(t, body, "id").(string)
	require.Equal(t, "CREATED", dataField(t, body, "status"))

	status, body = srv.do(t, nethttp.MethodPost, "/tickets/"+ticketID+"/assume", companyToken, "")
	require.Equal(t, nethttp.StatusForbidden, status)
	require.Equal(t, "PERMISSION_DENIED", errorCode(body))

	status, _ = srv.do(t, nethttp.MethodPost, "/tickets/"+ticketID+"/assume", agentToken, "")
	require.Equal(t, nethttp.StatusOK, status)

	status, body = srv.do(t, nethttp.MethodPost, "/work-orders", agentToken, `{"ticket_id":"`+ticketID+`"}`)
	require.Equal(t, nethttp.StatusCreated, status, body)
	orderID := dataField(t, body, "id").(string)
	require.Equal(t, "AVAILABLE", dataField(t, body, "status"))

	status, _ = srv.do(t, nethttp.MethodPost, "/work-orders/"+orderID+"/accept", techAToken, "")
	require.Equal(t, nethttp.StatusOK, status)

	status, body = srv.do(t, nethttp.MethodPost, "/work-orders/"+orderID+"/accept", techBToken, "")
	require.Equal(t, nethttp.StatusConflict, status)
	require.Equal(t, "ALREADY_CLAIMED", errorCode(body))

	status, body = srv.do(t, nethttp.MethodPost, "/work-orders/"+orderID+"/technicians/"+srv.techA.ID+"/start", techBToken, "")
	require.Equal(t, nethttp.StatusForbidden, status, body)
	require.Equal(t, "PERMISSION_DENIED", errorCode(body))

	status, body = srv.do(t, nethttp.MethodPost, "/work-orders/"+orderID+"/technicians/"+srv.techA.ID+"/start", techAToken, "")
	require.Equal(t, nethttp.StatusOK, status, body)
	require.Equal(t, "IN_PROGRESS", dataField(t, body, "status"))

	status, body = srv.do(t, nethttp.MethodPost, "/work-orders/"+orderID+"/technicians/"+srv.techA.ID+"/complete", techBToken, `{"notes":"x"}`)
	require.Equal(t, nethttp.StatusForbidden, status, body)

	status, body = srv.do(t, nethttp.MethodPost, "/work-orders/"+orderID+"/technicians/"+srv.techA.ID+"/complete", techAToken, `{"notes":"boiler fixed"}`)
	require.Equal(t, nethttp.StatusOK, status, body)
	require.Equal(t, true, dataField(t, body, "all_completed"))

	status, body = srv.do(t, nethttp.MethodGet, "/tickets/"+ticketID, companyToken, "")
	require.Equal(t, nethttp.StatusOK, status)
	require.Equal(t, "RESOLVED", dataField(t, body, "status"))

	status, body = srv.do(t, nethttp.MethodGet, "/notifications", companyToken, "")
	require.Equal(t, nethttp.StatusOK, status)
	items := body["data"].([]any)
	require.NotEmpty(t, items)
	newest := items[0].(map[string]any)
	require.Equal(t, "work_order_completed", newest["type"])

	status, _ = srv.do(t, nethttp.MethodPost, "/notifications/"+newest["id"].(string)+"/read", companyToken, "")
	require.Equal(t, nethttp.StatusNoContent, status)

	status, body = srv.do(t, nethttp.MethodGet, "/work-orders/"+orderID+"/history", agentToken, "")
	require.Equal(t, nethttp.StatusOK, status)
	require.Len(t, body["data"].([]any), 5)
}

func TestRequestsWithoutValidTokenAreRejected(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, nethttp.MethodGet, "/tickets", "", "")
	require.Equal(t, nethttp.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = srv.do(t, nethttp.MethodGet, "/tickets", "garbage", "")
	require.Equal(t, nethttp.StatusUnauthorized, status)

	ghost := srv.token(t, domain.SubjectTypeStaff, "ghost")
	status, _ = srv.do(t, nethttp.MethodGet, "/tickets", ghost, "")
	require.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestCompaniesCannotReachWorkOrders(t *testing.T) {
	srv := newTestServer(t)
	companyToken := srv.token(t, domain.SubjectTypeCompany, srv.company.ID)

	status, body := srv.do(t, nethttp.MethodGet, "/work-orders", companyToken, "")
	require.Equal(t, nethttp.StatusForbidden, status)
	require.Equal(t, "PERMISSION_DENIED", errorCode(body))
}

func TestValidationErrorsRenderDetails(t *testing.T) {
	srv := newTestServer(t)
	companyToken := srv.token(t, domain.SubjectTypeCompany, srv.company.ID)

	status, body := srv.do(t, nethttp.MethodPost, "/tickets", companyToken, `{"title":""}`)
	require.Equal(t, nethttp.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	require.Contains(t, details, "title")
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, nethttp.MethodGet, "/health/ready", "", "")
	require.Equal(t, nethttp.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	require.Equal(t, "in-memory", deps["postgres"])
	require.Equal(t, "disabled", deps["redis"])

	status, body = srv.do(t, nethttp.MethodGet, "/metrics", "", "")
	require.Equal(t, nethttp.StatusOK, status)
	require.NotNil(t, body["data"])
}
