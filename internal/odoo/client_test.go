package odoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const (
	xmlInt = `<?xml version="1.0"?><methodResponse><params><param><value><int>%d</int></value></param></params></methodResponse>`

	xmlFalse = `<?xml version="1.0"?><methodResponse><params><param><value><boolean>0</boolean></value></param></params></methodResponse>`

	xmlFault = `<?xml version="1.0"?><methodResponse><fault><value><struct>` +
		`<member><name>faultCode</name><value><int>3</int></value></member>` +
		`<member><name>faultString</name><value><string>Access Denied</string></value></member>` +
		`</struct></value></fault></methodResponse>`
)

// odooStub answers XML-RPC calls the way a real Odoo server would.
type odooStub struct {
	authResponse   string
	createResponse string
	executeBodies  []string
}

func (s *odooStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body := string(raw)
		w.Header().Set("Content-Type", "text/xml")

		switch {
		case strings.Contains(body, "<methodName>authenticate</methodName>"):
			fmt.Fprint(w, s.authResponse)
		case strings.Contains(body, "<methodName>execute_kw</methodName>"):
			s.executeBodies = append(s.executeBodies, body)
			fmt.Fprint(w, s.createResponse)
		default:
			http.Error(w, "unexpected method", http.StatusBadRequest)
		}
	}
}

func newTestClient(srvURL string) *Client {
	c := NewClient(map[string]Instance{
		"production": {
			URL:      srvURL,
			Database: "testdb",
			Username: "admin@example.com",
			Password: "secret",
		},
	}, 5*time.Second)
	c.now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return c
}

func TestClientSendText(t *testing.T) {
	stub := &odooStub{
		authResponse:   fmt.Sprintf(xmlInt, 7),
		createResponse: fmt.Sprintf(xmlInt, 42),
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)

	result, err := client.SendText(context.Background(), "production", "contacts", "Juan Perez\njuan@example.com")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}

	if result.Model != "res.partner" || result.Field != "comment" || result.RecordID != 42 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Instance != "production" {
		t.Errorf("instance = %q", result.Instance)
	}

	if len(stub.executeBodies) != 1 {
		t.Fatalf("expected 1 execute_kw call, got %d", len(stub.executeBodies))
	}
	body := stub.executeBodies[0]
	for _, want := range []string{"res.partner", "create", "comment", "Juan Perez", "OCR - 2024-03-15 10:30:00", "is_company"} {
		if !strings.Contains(body, want) {
			t.Errorf("execute_kw payload missing %q", want)
		}
	}
}

func TestClientAuthenticationRejected(t *testing.T) {
	stub := &odooStub{authResponse: xmlFalse}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.Authenticate(context.Background(), "production")
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if len(stub.executeBodies) != 0 {
		t.Error("no execute_kw call should happen after failed auth")
	}
}

func TestClientCreateFault(t *testing.T) {
	stub := &odooStub{
		authResponse:   fmt.Sprintf(xmlInt, 7),
		createResponse: xmlFault,
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	client := newTestClient(srv.URL)

	_, err := client.SendText(context.Background(), "production", "tasks", "some text")
	if err == nil {
		t.Fatal("expected fault error")
	}
	if !strings.Contains(err.Error(), "Access Denied") {
		t.Errorf("fault detail lost: %v", err)
	}
}

func TestClientInputValidation(t *testing.T) {
	client := newTestClient("http://odoo.invalid")

	if _, err := client.SendText(context.Background(), "production", "contacts", ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("empty text: got %v", err)
	}
	if _, err := client.SendText(context.Background(), "production", "payroll", "x"); !errors.Is(err, ErrUnknownMapping) {
		t.Errorf("unknown mapping: got %v", err)
	}
	if _, err := client.Authenticate(context.Background(), "qa"); !errors.Is(err, ErrUnknownInstance) {
		t.Errorf("unknown instance: got %v", err)
	}
}

func TestClientInstancesOrder(t *testing.T) {
	client := NewClient(map[string]Instance{
		"staging":    {URL: "http://staging.invalid"},
		"production": {URL: "http://production.invalid"},
	}, time.Second)

	got := client.Instances()
	if len(got) != 2 || got[0] != "production" || got[1] != "staging" {
		t.Errorf("Instances() = %v", got)
	}
}
