package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/matryer/is"

	testutils "github.com/mediagraph/catalog-client/internal/pkg/test/http"
	catalogerrors "github.com/mediagraph/catalog-client/pkg/catalog/errors"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var anyInput = testutils.AnyInput
var method = testutils.RequestMethod
var path = testutils.RequestPath

func TestExecutePostsNamedOperation(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/graphql"),
			testutils.Operation("FindScene"),
			testutils.Variable("id", "123"),
		),
		Returns(
			testutils.Data(map[string]any{
				"findScene": map[string]any{"__typename": "Scene", "id": "123", "title": "T"},
			}),
		),
	)
	defer s.Close()

	c := New(s.URL())

	data, err := c.Execute(context.Background(), "FindScene", map[string]any{"id": "123"})

	is.NoErr(err)
	scene := data["findScene"].(map[string]any)
	is.Equal(scene["title"], "T")
	is.Equal(s.RequestCount(), 1)
}

func TestExecuteSendsApiKeyHeader(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, testutils.Header("ApiKey", "sekrit")),
		Returns(testutils.Data(map[string]any{})),
	)
	defer s.Close()

	c := New(s.URL(), APIKey("sekrit"))

	_, err := c.Execute(context.Background(), "FindScene", map[string]any{"id": "1"})
	is.NoErr(err)
}

func TestExecuteRejectsUnknownOperations(t *testing.T) {
	is := is.New(t)

	c := New("http://localhost:0")

	_, err := c.Execute(context.Background(), "NoSuchOperation", nil)
	is.True(err != nil)
	is.True(errors.Is(err, catalogerrors.ErrRequest))
}

func TestExecuteCategorizesGraphQLErrors(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(testutils.Errors("scene not found")),
	)
	defer s.Close()

	c := New(s.URL())

	_, err := c.Execute(context.Background(), "FindScene", map[string]any{"id": "1"})
	is.True(err != nil)
	is.True(errors.Is(err, catalogerrors.ErrNotFound))
}

func TestExecuteMapsUnauthorized(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(testutils.Code(http.StatusUnauthorized)),
	)
	defer s.Close()

	c := New(s.URL())

	_, err := c.Execute(context.Background(), "FindScene", map[string]any{"id": "1"})
	is.True(errors.Is(err, catalogerrors.ErrUnauthorized))
}

func TestExecuteWrapsTransportFailures(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			testutils.Code(http.StatusBadGateway),
			testutils.Body([]byte("upstream broke")),
		),
	)
	defer s.Close()

	c := New(s.URL())

	_, err := c.Execute(context.Background(), "FindScene", map[string]any{"id": "1"})
	is.True(errors.Is(err, catalogerrors.ErrBadResponse))
}

func TestExecuteRawDerivesOperationName(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, testutils.Operation("PopulateScene")),
		Returns(testutils.Data(map[string]any{"findScene": map[string]any{"id": "1"}})),
	)
	defer s.Close()

	c := New(s.URL())

	_, err := c.ExecuteRaw(context.Background(),
		"query PopulateScene($id: ID!) { findScene(id: $id) { id rating100 } }",
		map[string]any{"id": "1"},
	)
	is.NoErr(err)
}

func TestExecuteRawRejectsMalformedDocuments(t *testing.T) {
	is := is.New(t)

	c := New("http://localhost:0")

	_, err := c.ExecuteRaw(context.Background(), "query { oops", nil)
	is.True(err != nil)
	is.True(errors.Is(err, catalogerrors.ErrRequest))
}
