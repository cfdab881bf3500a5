// Package client implements the GraphQL transport consumed by the entity
// store. Operations are sent by name with variables; the documents behind
// the names are registered at construction and validated with gqlparser.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mediagraph/catalog-client/internal/pkg/infrastructure/o11y/logging"
	"github.com/mediagraph/catalog-client/internal/pkg/infrastructure/o11y/tracing"
	"github.com/mediagraph/catalog-client/pkg/catalog/client/documents"
	"github.com/mediagraph/catalog-client/pkg/catalog/errors"
)

// Transport sends a named operation with variables and returns the parsed
// data object of the response.
type Transport interface {
	Execute(ctx context.Context, operation string, variables map[string]any) (map[string]any, error)
	// ExecuteRaw sends an ad-hoc document, used for field-aware population
	// where the selection set is computed at runtime.
	ExecuteRaw(ctx context.Context, document string, variables map[string]any) (map[string]any, error)
}

// Subscriber is the optional live-update surface of a transport.
type Subscriber interface {
	Subscribe(ctx context.Context, operation string, variables map[string]any) (<-chan map[string]any, error)
}

const (
	TraceAttributeOperation string = "graphql-operation"
)

var tracer = otel.Tracer("catalog-client")

// APIKey authenticates every request with the given key.
func APIKey(key string) func(*Client) {
	return func(c *Client) {
		c.apiKey = key
	}
}

// Debug enables request/response dumps on failures.
func Debug(enabled string) func(*Client) {
	return func(c *Client) {
		c.debug = (enabled == "true")
	}
}

// WithDocuments registers additional operation documents, keyed by their
// operation names.
func WithDocuments(docs map[string]string) func(*Client) {
	return func(c *Client) {
		for name, doc := range docs {
			c.documents[name] = doc
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) func(*Client) {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New returns a client posting to the /graphql endpoint under baseURL. The
// standard operation documents are pre-registered.
func New(baseURL string, options ...func(*Client)) *Client {
	c := &Client{
		endpoint:  baseURL + "/graphql",
		documents: map[string]string{},
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for name, doc := range documents.All() {
		c.documents[name] = doc
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Client is the HTTP implementation of Transport and Subscriber.
type Client struct {
	endpoint   string
	apiKey     string
	debug      bool
	documents  map[string]string
	httpClient *http.Client
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   map[string]any        `json:"data"`
	Errors []errors.GraphQLError `json:"errors"`
}

func (c *Client) Execute(ctx context.Context, operation string, variables map[string]any) (map[string]any, error) {
	doc, ok := c.documents[operation]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q (%w)", operation, errors.ErrRequest)
	}
	return c.execute(ctx, operation, doc, variables)
}

func (c *Client) ExecuteRaw(ctx context.Context, document string, variables map[string]any) (map[string]any, error) {
	operation, err := operationName(document)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, operation, document, variables)
}

func (c *Client) execute(ctx context.Context, operation, document string, variables map[string]any) (data map[string]any, err error) {
	ctx, span := tracer.Start(ctx, "execute-operation",
		trace.WithAttributes(attribute.String(TraceAttributeOperation, operation)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := json.Marshal(graphQLRequest{
		Query:         document,
		OperationName: operation,
		Variables:     variables,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %s (%w)", err.Error(), errors.ErrRequest)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Add("ApiKey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRequest)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest {
		reqbytes, _ := httputil.DumpRequest(req, false)
		respbytes, _ := httputil.DumpResponse(resp, false)

		log := logging.GetFromContext(ctx)
		log.Error().Str("request", string(reqbytes)).Str("response", string(respbytes)).Msg("request failed")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("endpoint rejected the api key (%w)", errors.ErrUnauthorized)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status code %d (body: %s) (%w)",
			resp.StatusCode, string(respBody), errors.ErrBadResponse)
	}

	var parsed graphQLResponse
	if err = json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if len(parsed.Errors) > 0 {
		err = errors.NewErrorFromGraphQLErrors(parsed.Errors)
		return nil, err
	}

	return parsed.Data, nil
}

// operationName parses document and returns the name of its single
// operation.
func operationName(document string) (string, error) {
	qdoc, gqlErr := parser.ParseQuery(&ast.Source{Name: "operation", Input: document})
	if gqlErr != nil {
		return "", fmt.Errorf("invalid operation document: %s (%w)", gqlErr.Error(), errors.ErrRequest)
	}
	if len(qdoc.Operations) != 1 || qdoc.Operations[0].Name == "" {
		return "", fmt.Errorf("operation documents must contain exactly one named operation (%w)", errors.ErrRequest)
	}
	return qdoc.Operations[0].Name, nil
}
