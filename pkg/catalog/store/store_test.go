package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	catalogerrors "github.com/mediagraph/catalog-client/pkg/catalog/errors"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/fields"
	"github.com/mediagraph/catalog-client/pkg/datamodels/media"
)

func scenePayload(id string, extra map[string]any) map[string]any {
	payload := map[string]any{"__typename": "Scene", "id": id}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

func TestIdentityAcrossNestedPayloads(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New(newMockTransport())

	// Payload A carries the studio nested inside a scene.
	a, err := s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{
		"studio": map[string]any{"__typename": "Studio", "id": "u1", "name": "Acme"},
	}))
	is.NoErr(err)
	scene := a.(*media.Scene)

	// Payload B is the studio itself, with a new field.
	b, err := s.FromPayload(ctx, "Studio", map[string]any{
		"__typename": "Studio", "id": "u1", "name": "Acme", "details": "d",
	})
	is.NoErr(err)
	studio := b.(*media.Studio)

	nested, ok := scene.Studio.Get()
	is.True(ok)
	is.True(nested == studio) // one live instance per (store, type, id)
	is.Equal(studio.Details.MustGet(), "d")

	cached, ok := s.GetCached("Studio", "u1")
	is.True(ok)
	is.True(cached == b)
}

func TestCacheHitMergesAndReturnsCachedInstance(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New(newMockTransport())

	first, err := s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{"title": "One"}))
	is.NoErr(err)

	second, err := s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{"rating100": 70}))
	is.NoErr(err)

	is.True(first == second)
	scene := first.(*media.Scene)
	is.Equal(scene.Title.MustGet(), "One")
	is.Equal(scene.Rating100.MustGet(), 70)
	is.True(scene.Received("title"))
	is.True(scene.Received("rating100"))
}

func TestMergePreservesUnrelatedEdits(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New(newMockTransport())

	e, err := s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{
		"title": "Original", "code": "srv", "rating100": 50,
	}))
	is.NoErr(err)
	scene := e.(*media.Scene)

	// A local edit to a field the next payload does not carry.
	scene.Code.Set("X")
	is.True(entities.IsDirty(scene))

	_, err = s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{"title": "Merged"}))
	is.NoErr(err)

	is.Equal(scene.Title.MustGet(), "Merged")
	is.Equal(scene.Code.MustGet(), "X")

	changed := entities.ChangedFields(scene)
	_, codeDirty := changed["code"]
	is.True(codeDirty) // the pending edit must survive the merge
	_, titleDirty := changed["title"]
	is.True(!titleDirty) // the merged field is clean at the merge value
}

func TestServerWinsWhenMergeTouchesAnEditedField(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New(newMockTransport())

	e, err := s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{"title": "Original"}))
	is.NoErr(err)
	scene := e.(*media.Scene)

	scene.Title.Set("Local")
	_, err = s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{"title": "Server"}))
	is.NoErr(err)

	is.Equal(scene.Title.MustGet(), "Server")
	is.True(!entities.IsDirty(scene))
}

func TestExplicitNullSurvivesPayloadRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New(newMockTransport())

	e, err := s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{
		"title": nil, "rating100": 70,
	}))
	is.NoErr(err)
	scene := e.(*media.Scene)

	is.True(scene.Title.IsNull())
	is.True(scene.Details.IsUnset())
	is.True(scene.Received("title"))
	is.True(!scene.Received("details"))
}

func TestGetReadsThroughAndCaches(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	transport := newMockTransport()
	transport.returns("FindScene", map[string]any{
		"findScene": scenePayload("123", map[string]any{"title": "T"}),
	})
	s := New(transport)

	e, err := s.Get(ctx, "Scene", "123")
	is.NoErr(err)
	is.Equal(e.(*media.Scene).Title.MustGet(), "T")
	is.Equal(transport.callCount("FindScene"), 1)

	_, err = s.Get(ctx, "Scene", "123")
	is.NoErr(err)
	is.Equal(transport.callCount("FindScene"), 1) // served from cache

	s.Invalidate("Scene", "123")
	_, err = s.Get(ctx, "Scene", "123")
	is.NoErr(err)
	is.Equal(transport.callCount("FindScene"), 2) // refetched after invalidation

	_, err = s.Get(ctx, "Scene", "123")
	is.NoErr(err)
	is.Equal(transport.callCount("FindScene"), 2)
}

func TestGetNotFoundReturnsEmptyResult(t *testing.T) {
	is := is.New(t)
	transport := newMockTransport()
	transport.returns("FindScene", map[string]any{"findScene": nil})
	s := New(transport)

	e, err := s.Get(context.Background(), "Scene", "999")
	is.NoErr(err)
	is.True(e == nil)
	is.True(!s.IsCached("Scene", "999"))
}

func TestGetRefusesNonNumericIdentifiers(t *testing.T) {
	is := is.New(t)
	transport := newMockTransport()
	s := New(transport)

	for _, id := range []string{"", "abc", "12a", "0", "000", "-3"} {
		_, err := s.Get(context.Background(), "Scene", id)
		is.True(errors.Is(err, catalogerrors.ErrInvalidIdentifier))
	}
	is.Equal(transport.callCount("FindScene"), 0) // refused before transport
}

func TestTTLExpiryUsesInjectedClock(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	now := time.Now()

	transport := newMockTransport()
	transport.returns("FindScene", map[string]any{
		"findScene": scenePayload("123", map[string]any{"title": "T"}),
	})
	s := New(transport, WithDefaultTTL(time.Minute), withClock(func() time.Time { return now }))

	_, err := s.Get(ctx, "Scene", "123")
	is.NoErr(err)
	is.True(s.IsCached("Scene", "123"))

	now = now.Add(2 * time.Minute)
	is.True(!s.IsCached("Scene", "123"))

	_, err = s.Get(ctx, "Scene", "123")
	is.NoErr(err)
	is.Equal(transport.callCount("FindScene"), 2)
}

func TestPerTypeTTLOverride(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	now := time.Now()
	s := New(newMockTransport(), WithDefaultTTL(time.Minute), withClock(func() time.Time { return now }))
	s.SetTTL("Scene", time.Hour)

	_, err := s.FromPayload(ctx, "Scene", scenePayload("s1", nil))
	is.NoErr(err)
	_, err = s.FromPayload(ctx, "Studio", map[string]any{"__typename": "Studio", "id": "u1"})
	is.NoErr(err)

	now = now.Add(10 * time.Minute)
	is.True(s.IsCached("Scene", "s1"))
	is.True(!s.IsCached("Studio", "u1"))
}

func TestTypeTagMismatchFailsConstruction(t *testing.T) {
	is := is.New(t)
	s := New(newMockTransport())

	_, err := s.FromPayload(context.Background(), "Scene", map[string]any{
		"__typename": "Performer", "id": "1",
	})
	is.True(errors.Is(err, catalogerrors.ErrTypeMismatch))
	is.True(!s.IsCached("Performer", "1")) // nothing cached on failure
}

func TestPolymorphicFilePayloadsResolveConcreteTypes(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New(newMockTransport())

	e, err := s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{
		"files": []any{
			map[string]any{"__typename": "VideoFile", "id": "10", "path": "/v.mp4", "duration": 12.5},
			map[string]any{"__typename": "ImageFile", "id": "11", "path": "/i.jpg", "width": 800},
		},
	}))
	is.NoErr(err)

	files, ok := e.(*media.Scene).Files.Get()
	is.True(ok)
	is.Equal(len(files), 2)

	video, ok := files[0].(*media.VideoFile)
	is.True(ok)
	is.Equal(video.Duration.MustGet(), 12.5)

	image, ok := files[1].(*media.ImageFile)
	is.True(ok)
	is.Equal(image.Width.MustGet(), 800)

	is.True(s.IsCached("VideoFile", "10"))
	is.True(s.IsCached("ImageFile", "11"))
}

func TestInvalidPayloadIsNotCached(t *testing.T) {
	is := is.New(t)
	s := New(newMockTransport())

	_, err := s.FromPayload(context.Background(), "Scene", scenePayload("s1", map[string]any{
		"rating100": "not-a-number",
	}))
	is.True(errors.Is(err, catalogerrors.ErrValidation))
	is.True(!s.IsCached("Scene", "s1"))
}

func TestSaveCreateAdoptsServerID(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	transport := newMockTransport()
	transport.returns("SceneCreate", map[string]any{
		"sceneCreate": map[string]any{"id": "456"},
	})
	s := New(transport)

	scene := media.NewScene()
	scene.Title.Set("X")
	is.Equal(len(scene.ID()), 32)
	is.True(scene.IsNew())

	is.NoErr(s.Save(ctx, scene))

	is.Equal(scene.ID(), "456")
	is.True(!scene.IsNew())
	is.True(!entities.IsDirty(scene))
	is.True(s.IsCached("Scene", "456"))

	call, ok := transport.lastCall("SceneCreate")
	is.True(ok)
	input := call.variables["input"].(map[string]any)
	is.Equal(input["title"], "X")
	_, hasID := input["id"]
	is.True(!hasID)
}

func TestSaveUpdateSendsOnlyDirtyFields(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	transport := newMockTransport()
	transport.returns("FindScene", map[string]any{
		"findScene": scenePayload("123", map[string]any{"title": "Original", "rating100": 70}),
	})
	transport.returns("SceneUpdate", map[string]any{
		"sceneUpdate": map[string]any{"id": "123"},
	})
	s := New(transport)

	e, err := s.Get(ctx, "Scene", "123")
	is.NoErr(err)
	scene := e.(*media.Scene)
	scene.Title.Set("Updated")

	is.NoErr(s.Save(ctx, scene))

	call, ok := transport.lastCall("SceneUpdate")
	is.True(ok)
	is.Equal(call.variables["input"], map[string]any{"id": "123", "title": "Updated"})
	is.True(!entities.IsDirty(scene))
}

func TestSaveCleanEntityShortCircuits(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	transport := newMockTransport()
	transport.returns("FindScene", map[string]any{
		"findScene": scenePayload("123", map[string]any{"title": "T"}),
	})
	s := New(transport)

	e, err := s.Get(ctx, "Scene", "123")
	is.NoErr(err)

	is.NoErr(s.Save(ctx, e))
	is.Equal(transport.callCount("SceneUpdate"), 0)
}

func TestSaveFailureLeavesEntityDirty(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	transport := newMockTransport()
	transport.on("SceneUpdate", func(map[string]any) (map[string]any, error) {
		return nil, catalogerrors.NewInternalError("boom")
	})
	s := New(transport)

	e, err := s.FromPayload(ctx, "Scene", scenePayload("123", map[string]any{"title": "T"}))
	is.NoErr(err)
	scene := e.(*media.Scene)
	scene.Title.Set("Changed")

	is.True(s.Save(ctx, scene) != nil)
	is.True(entities.IsDirty(scene))
}

func TestDeleteDestroysAndInvalidates(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	transport := newMockTransport()
	transport.returns("SceneDestroy", map[string]any{"sceneDestroy": true})
	s := New(transport)

	e, err := s.FromPayload(ctx, "Scene", scenePayload("123", map[string]any{"title": "T"}))
	is.NoErr(err)
	is.True(s.IsCached("Scene", "123"))

	is.NoErr(s.Delete(ctx, e))

	is.True(!s.IsCached("Scene", "123"))
	call, ok := transport.lastCall("SceneDestroy")
	is.True(ok)
	is.Equal(call.variables["id"], "123")
}

func TestCacheStatsAndInvalidateType(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New(newMockTransport())

	for _, id := range []string{"1", "2", "3"} {
		_, err := s.FromPayload(ctx, "Scene", scenePayload(id, nil))
		is.NoErr(err)
	}
	_, err := s.FromPayload(ctx, "Studio", map[string]any{"__typename": "Studio", "id": "u1"})
	is.NoErr(err)

	stats := s.CacheStats()
	is.Equal(stats.TotalEntries, 4)
	is.Equal(stats.ByType["Scene"], 3)
	is.Equal(stats.ByType["Studio"], 1)

	s.InvalidateType("Scene")
	stats = s.CacheStats()
	is.Equal(stats.TotalEntries, 1)

	s.InvalidateAll()
	is.Equal(s.CacheStats().TotalEntries, 0)
}

func TestDetachedPayloadWithoutIDIsNotCached(t *testing.T) {
	is := is.New(t)
	s := New(newMockTransport())

	e, err := s.FromPayload(context.Background(), "Scene", map[string]any{
		"__typename": "Scene", "title": "loose",
	})
	is.NoErr(err)
	is.True(e != nil)
	is.Equal(s.CacheStats().TotalEntries, 0)
}

func TestGenericGet(t *testing.T) {
	is := is.New(t)
	transport := newMockTransport()
	transport.returns("FindScene", map[string]any{
		"findScene": scenePayload("123", map[string]any{"title": "T"}),
	})
	s := New(transport)

	scene, err := Get[*media.Scene](context.Background(), s, "123")
	is.NoErr(err)
	is.Equal(scene.Title.MustGet(), "T")

	transport.returns("FindScene", map[string]any{"findScene": nil})
	missing, err := Get[*media.Scene](context.Background(), s, "777")
	is.NoErr(err)
	is.True(missing == nil)
}

func TestMergedNullKeepsTriStateExact(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	s := New(newMockTransport())

	e, err := s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{"rating100": 70}))
	is.NoErr(err)
	scene := e.(*media.Scene)

	_, err = s.FromPayload(ctx, "Scene", scenePayload("s1", map[string]any{"rating100": nil}))
	is.NoErr(err)

	is.True(scene.Rating100.IsNull())
	is.Equal(scene.Rating100.State(), fields.StateNull)
	is.True(!entities.IsDirty(scene)) // the null came from the server
}
