// Package odoo pushes scanned text into Odoo instances over XML-RPC.
//
// Odoo's external API lives on two endpoints: /xmlrpc/2/common for
// authentication and /xmlrpc/2/object for model operations. Every push
// authenticates first and then calls execute_kw with the model's create
// method, mirroring what the web client does.
package odoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/kolo/xmlrpc"
	"github.com/rs/zerolog"

	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
)

var (
	ErrAuthFailed      = errors.New("odoo: authentication failed")
	ErrUnknownInstance = errors.New("odoo: unknown instance")
	ErrUnknownMapping  = errors.New("odoo: unknown mapping type")
	ErrEmptyText       = errors.New("odoo: no text to send")
)

// Instance holds the connection settings for one Odoo deployment.
type Instance struct {
	URL      string
	Database string
	Username string
	Password string
}

// PushResult reports where a text ended up.
type PushResult struct {
	Instance string `json:"instance"`
	Model    string `json:"model"`
	Field    string `json:"field"`
	RecordID int64  `json:"record_id"`
}

// Client talks to one or more named Odoo instances.
type Client struct {
	instances map[string]Instance
	timeout   time.Duration
	transport http.RoundTripper
	now       func() time.Time
	log       zerolog.Logger
}

func NewClient(instances map[string]Instance, timeout time.Duration) *Client {
	return NewClientWithTransport(instances, timeout, nil)
}

// NewClientWithTransport allows injecting a custom HTTP transport, which is
// useful for testing against a local XML-RPC stub.
func NewClientWithTransport(instances map[string]Instance, timeout time.Duration, transport http.RoundTripper) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		instances: instances,
		timeout:   timeout,
		transport: transport,
		now:       time.Now,
		log:       logger.WithComponent("odoo"),
	}
}

// Instances lists the configured instance names in stable order.
func (c *Client) Instances() []string {
	names := make([]string, 0, len(c.instances))
	for name := range c.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Authenticate verifies credentials against an instance and returns the
// Odoo user id. Odoo answers false instead of a fault on bad credentials.
func (c *Client) Authenticate(ctx context.Context, instanceName string) (int64, error) {
	const op = "Authenticate"

	inst, ok := c.instances[instanceName]
	if !ok {
		return 0, fmt.Errorf("%s: %w: %s", op, ErrUnknownInstance, instanceName)
	}

	var reply any
	args := []any{inst.Database, inst.Username, inst.Password, map[string]any{}}
	if err := c.call(ctx, inst.URL+"/xmlrpc/2/common", "authenticate", args, &reply); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	uid, ok := reply.(int64)
	if !ok || uid <= 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrAuthFailed)
	}

	c.log.Debug().
		Str("instance", instanceName).
		Int64("uid", uid).
		Msg("Authenticated with Odoo")
	return uid, nil
}

// CreateRecord creates a record and returns the id Odoo assigned.
func (c *Client) CreateRecord(ctx context.Context, instanceName, model string, values map[string]any) (int64, error) {
	const op = "CreateRecord"

	inst, ok := c.instances[instanceName]
	if !ok {
		return 0, fmt.Errorf("%s: %w: %s", op, ErrUnknownInstance, instanceName)
	}

	uid, err := c.Authenticate(ctx, instanceName)
	if err != nil {
		return 0, err
	}

	var recordID int64
	args := []any{inst.Database, uid, inst.Password, model, "create", []any{values}}
	if err := c.call(ctx, inst.URL+"/xmlrpc/2/object", "execute_kw", args, &recordID); err != nil {
		return 0, fmt.Errorf("%s: create on %s: %w", op, model, err)
	}

	c.log.Info().
		Str("instance", instanceName).
		Str("model", model).
		Int64("record_id", recordID).
		Msg("Record created in Odoo")
	return recordID, nil
}

// SendText pushes a scanned text into the model configured for mappingType.
func (c *Client) SendText(ctx context.Context, instanceName, mappingType, text string) (*PushResult, error) {
	const op = "SendText"

	if text == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyText)
	}

	mapping, ok := MappingFor(mappingType)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownMapping, mappingType)
	}

	recordID, err := c.CreateRecord(ctx, instanceName, mapping.Model, mapping.RecordValues(text, c.now()))
	if err != nil {
		return nil, err
	}

	return &PushResult{
		Instance: instanceName,
		Model:    mapping.Model,
		Field:    mapping.Field,
		RecordID: recordID,
	}, nil
}

// call runs one XML-RPC method against an endpoint. The kolo client has no
// context support, so the call runs in a goroutine and the buffered channel
// lets it finish on its own after a timeout.
func (c *Client) call(ctx context.Context, endpoint, method string, args []any, reply any) error {
	client, err := xmlrpc.NewClient(endpoint, c.transport)
	if err != nil {
		return fmt.Errorf("connect %s: %w", endpoint, err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- client.Call(method, args, reply)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
