package schema

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	catalogerrors "github.com/mediagraph/catalog-client/pkg/catalog/errors"
)

func TestResolveConcreteRejectsUnknownTags(t *testing.T) {
	is := is.New(t)

	_, err := ResolveConcrete("Scene", "Thumbnail")
	is.True(errors.Is(err, catalogerrors.ErrTypeMismatch))
}

func TestResolveConcreteRejectsUnknownDeclaredTypes(t *testing.T) {
	is := is.New(t)

	_, err := ResolveConcrete("NoSuchType", "")
	is.True(errors.Is(err, catalogerrors.ErrTypeMismatch))
}
