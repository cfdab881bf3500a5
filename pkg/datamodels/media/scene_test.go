package media

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	catalogerrors "github.com/mediagraph/catalog-client/pkg/catalog/errors"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/scalars"
)

// existingScene fakes a server-confirmed scene: bound identity, the given
// fields set, snapshot taken.
func existingScene(t *testing.T, id string, setup func(*Scene)) *Scene {
	t.Helper()
	s := NewScene()
	entities.BindServerIdentity(s, id)
	if setup != nil {
		setup(s)
	}
	entities.MarkClean(s)
	return s
}

func TestNewSceneMintsLocalIdentity(t *testing.T) {
	is := is.New(t)

	s := NewScene()
	is.Equal(len(s.ID()), 32)
	is.True(entities.IsLocalID(s.ID()))
	is.True(s.IsNew())
}

func TestUpdateEmitsOnlyIDAndChangedField(t *testing.T) {
	is := is.New(t)

	s := existingScene(t, "123", func(s *Scene) {
		s.Title.Set("Original")
		s.Rating100.Set(70)
	})

	s.Title.Set("Updated")

	input, err := entities.ToInput(s)
	is.NoErr(err)
	is.Equal(input, map[string]any{"id": "123", "title": "Updated"})
}

func TestNullClearsFieldAndUnsetOmitsIt(t *testing.T) {
	is := is.New(t)

	s := existingScene(t, "123", func(s *Scene) {
		s.Rating100.Set(70)
		s.Details.Set("d")
	})

	s.Rating100.SetNull()
	s.Details.Clear()

	input, err := entities.ToInput(s)
	is.NoErr(err)

	rating, present := input["rating100"]
	is.True(present)     // explicit null must reach the wire
	is.True(rating == nil)

	_, present = input["details"]
	is.True(!present) // unset fields never reach the wire
	is.Equal(len(input), 2)
}

func TestCleanExistingSceneEmitsOnlyID(t *testing.T) {
	is := is.New(t)

	s := existingScene(t, "42", func(s *Scene) {
		s.Title.Set("T")
		s.Rating100.Set(50)
	})

	is.True(!entities.IsDirty(s))

	input, err := entities.ToInput(s)
	is.NoErr(err)
	is.Equal(input, map[string]any{"id": "42"})
}

func TestNewSceneEmitsAllNonUnsetFields(t *testing.T) {
	is := is.New(t)

	s := NewScene()
	s.Title.Set("X")
	s.Rating100.SetNull()
	s.Date.Set(scalars.MustFuzzyDate("2020-05"))

	input, err := entities.ToInput(s)
	is.NoErr(err)

	is.Equal(input["title"], "X")
	rating, present := input["rating100"]
	is.True(present)
	is.True(rating == nil)
	is.Equal(input["date"], "2020-05")

	_, present = input["id"]
	is.True(!present) // create inputs carry no id
	_, present = input["details"]
	is.True(!present)
}

func TestUnchangedValueEmittedForNewButNotExisting(t *testing.T) {
	is := is.New(t)

	fresh := NewScene()
	fresh.Title.Set("same")
	input, err := entities.ToInput(fresh)
	is.NoErr(err)
	is.Equal(input["title"], "same")

	existing := existingScene(t, "9", func(s *Scene) { s.Title.Set("same") })
	input, err = entities.ToInput(existing)
	is.NoErr(err)
	_, present := input["title"]
	is.True(!present)
}

func TestRelationshipsEmitIDsAndWrapperInputs(t *testing.T) {
	is := is.New(t)

	studio := existingStudio(t, "u1", "Acme")
	p1 := existingPerformer(t, "p1", "Jane")
	p2 := existingPerformer(t, "p2", "Joan")
	g := existingGroup(t, "g1", "Comp")

	s := existingScene(t, "123", nil)
	is.NoErr(s.SetStudio(studio))
	is.NoErr(s.AddPerformer(p1))
	is.NoErr(s.AddPerformer(p2))
	is.NoErr(s.AddGroup(g, 3))

	input, err := entities.ToInput(s)
	is.NoErr(err)

	is.Equal(input["studio_id"], "u1")
	is.Equal(input["performer_ids"], []any{"p1", "p2"})
	is.Equal(input["groups"], []any{map[string]any{"group_id": "g1", "scene_index": 3}})
}

func TestClearingRelationshipEmitsNull(t *testing.T) {
	is := is.New(t)

	studio := existingStudio(t, "u1", "Acme")
	s := existingScene(t, "123", func(s *Scene) {
		_ = s.SetStudio(studio)
	})

	is.NoErr(s.SetStudio(nil))

	input, err := entities.ToInput(s)
	is.NoErr(err)

	v, present := input["studio_id"]
	is.True(present)
	is.True(v == nil)
}

func TestSceneCountIsNeverEmitted(t *testing.T) {
	is := is.New(t)

	p := existingPerformer(t, "p1", "Jane")
	p.SceneCount.Set(10)
	p.Name.Set("Janet")

	input, err := entities.ToInput(p)
	is.NoErr(err)
	is.Equal(input, map[string]any{"id": "p1", "name": "Janet"})
}

func TestProtectedPathWriteIsRefused(t *testing.T) {
	is := is.New(t)

	f := NewVideoFile()
	entities.BindServerIdentity(f, "7")
	f.Path.Set("/media/old.mp4")
	entities.MarkClean(f)

	f.Path.Set("/media/new.mp4")

	_, err := entities.ToInput(f)
	is.True(err != nil)
	is.True(errors.Is(err, catalogerrors.ErrProtectedConfiguration))
}

func TestMarkCleanAndMarkDirtyLaws(t *testing.T) {
	is := is.New(t)

	s := existingScene(t, "1", func(s *Scene) { s.Title.Set("a") })

	s.Title.Set("b")
	is.True(entities.IsDirty(s))

	entities.MarkClean(s)
	is.True(!entities.IsDirty(s))
	is.Equal(len(entities.ChangedFields(s)), 0)

	entities.MarkDirty(s)
	is.True(entities.IsDirty(s))
	changed := entities.ChangedFields(s)
	is.Equal(len(changed), len(sceneDescriptor.Tracked))
}

func TestDirtyDetectionSurvivesInPlaceSliceMutation(t *testing.T) {
	is := is.New(t)

	s := existingScene(t, "1", func(s *Scene) {
		s.URLs.Set([]string{"https://a"})
	})

	urls, _ := s.URLs.Get()
	urls[0] = "https://b"

	is.True(entities.IsDirty(s))
}

func TestAdoptCreatedIDHappensExactlyOnce(t *testing.T) {
	is := is.New(t)

	s := NewScene()
	is.NoErr(entities.AdoptCreatedID(s, "456"))
	is.Equal(s.ID(), "456")
	is.True(!s.IsNew())

	is.True(entities.AdoptCreatedID(s, "789") != nil)
	is.Equal(s.ID(), "456")
}

func existingStudio(t *testing.T, id, name string) *Studio {
	t.Helper()
	st := NewStudio()
	entities.BindServerIdentity(st, id)
	st.Name.Set(name)
	entities.MarkClean(st)
	return st
}

func existingPerformer(t *testing.T, id, name string) *Performer {
	t.Helper()
	p := NewPerformer()
	entities.BindServerIdentity(p, id)
	p.Name.Set(name)
	entities.MarkClean(p)
	return p
}

func existingGroup(t *testing.T, id, name string) *Group {
	t.Helper()
	g := NewGroup()
	entities.BindServerIdentity(g, id)
	g.Name.Set(name)
	entities.MarkClean(g)
	return g
}

func existingTag(t *testing.T, id, name string) *Tag {
	t.Helper()
	tag := NewTag()
	entities.BindServerIdentity(tag, id)
	tag.Name.Set(name)
	entities.MarkClean(tag)
	return tag
}
