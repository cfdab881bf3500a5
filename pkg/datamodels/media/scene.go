// Package media declares the concrete entity types of the remote media
// catalog and registers their schemas with the runtime core. All payload
// construction goes through a store; the New* constructors mint local
// identities for entities that do not exist on the server yet.
package media

import (
	"fmt"

	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/fields"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/relationships"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/scalars"
)

// Scene is a single recorded scene in the catalog.
type Scene struct {
	entities.Object

	Title     fields.Field[string]            `graph:"title"`
	Code      fields.Field[string]            `graph:"code"`
	Details   fields.Field[string]            `graph:"details"`
	Director  fields.Field[string]            `graph:"director"`
	URLs      fields.Field[[]string]          `graph:"urls"`
	Date      fields.Field[scalars.FuzzyDate] `graph:"date"`
	Rating100 fields.Field[int]               `graph:"rating100"`
	Organized fields.Field[bool]              `graph:"organized"`

	Studio     fields.Field[*Studio]      `graph:"studio"`
	Performers fields.Field[[]*Performer] `graph:"performers"`
	Tags       fields.Field[[]*Tag]       `graph:"tags"`
	Groups     fields.Field[[]SceneGroup] `graph:"groups"`
	Files      fields.Field[[]File]       `graph:"files"`

	CreatedAt fields.Field[scalars.Timestamp] `graph:"created_at"`
	UpdatedAt fields.Field[scalars.Timestamp] `graph:"updated_at"`
}

// SceneGroup attaches a scene to a group together with the scene's position
// within it. It is a first-class value: the wrapper's metadata participates
// in dirty detection alongside the referent.
type SceneGroup struct {
	Group      *Group
	SceneIndex fields.Field[int]
}

var sceneDescriptor = &schema.Descriptor{
	TypeName:    "Scene",
	CreateInput: "SceneCreateInput",
	UpdateInput: "SceneUpdateInput",
	Tracked: []string{
		"title", "code", "details", "director", "urls", "date",
		"rating100", "organized", "studio", "performers", "tags", "groups",
	},
	Conversions: map[string]schema.Conversion{
		"date": {InputKey: "date", Convert: fuzzyDateString},
	},
	Relationships: map[string]relationships.Metadata{
		"studio": {
			TargetField: "studio_id",
			QueryField:  "studio",
			PeerType:    "Studio",
			Strategy:    relationships.StrategyFilterQuery,
		},
		"performers": {
			TargetField:       "performer_ids",
			IsList:            true,
			QueryField:        "performers",
			PeerType:          "Performer",
			InverseQueryField: "scenes",
			Strategy:          relationships.StrategyDirectField,
		},
		"tags": {
			TargetField: "tag_ids",
			IsList:      true,
			QueryField:  "tags",
			PeerType:    "Tag",
			Strategy:    relationships.StrategyFilterQuery,
		},
		"groups": {
			TargetField: "groups",
			IsList:      true,
			QueryField:  "groups",
			PeerType:    "Group",
			Strategy:    relationships.StrategyComplexObject,
			WrapperKey:  "group",
			MetaFields:  []string{"scene_index"},
			Transform:   sceneGroupInput,
			NewWrapper:  newSceneGroup,
			WrapperRef:  sceneGroupRef,
			WrapperMeta: sceneGroupMeta,
		},
		"files": {
			IsList:     true,
			QueryField: "files",
			PeerType:   "BaseFile",
			Strategy:   relationships.StrategyDirectField,
		},
	},
	ShortRepr: []string{"title", "code"},
	Selections: map[string]string{
		"studio":     "studio { __typename id name }",
		"performers": "performers { __typename id name disambiguation }",
		"tags":       "tags { __typename id name }",
		"groups":     "groups { group { __typename id name } scene_index }",
		"files": "files { __typename id path basename size " +
			"... on VideoFile { duration width height video_codec audio_codec frame_rate bit_rate } " +
			"... on ImageFile { width height } }",
	},
	Operations: schema.Operations{
		FindByID:    "FindScene",
		FindByIDKey: "findScene",
		FindMany:    "FindScenes",
		FindManyKey: "findScenes",
		ItemsKey:    "scenes",
		FilterKey:   "scene_filter",
		Create:      "SceneCreate",
		CreateKey:   "sceneCreate",
		Update:      "SceneUpdate",
		UpdateKey:   "sceneUpdate",
		Destroy:     "SceneDestroy",
		DestroyKey:  "sceneDestroy",
	},
}

func init() {
	sceneDescriptor.New = func() types.Entity { return NewScene() }
	schema.MustRegister(sceneDescriptor)
}

// NewScene constructs a scene with a freshly minted local identity.
func NewScene() *Scene {
	s := &Scene{}
	entities.Init(s, sceneDescriptor)
	return s
}

// SetStudio assigns the scene's studio, or clears it when st is nil.
func (s *Scene) SetStudio(st *Studio) error {
	if st == nil {
		return entities.SetRelated(s, "studio", nil)
	}
	return entities.SetRelated(s, "studio", st)
}

// AddPerformer appends a performer, mirroring the performer's loaded scene
// list.
func (s *Scene) AddPerformer(p *Performer) error {
	return entities.AddRef(s, "performers", p)
}

// RemovePerformer removes a performer by id.
func (s *Scene) RemovePerformer(p *Performer) error {
	return entities.RemoveRef(s, "performers", p)
}

// AddTag appends a tag.
func (s *Scene) AddTag(t *Tag) error {
	return entities.AddRef(s, "tags", t)
}

// RemoveTag removes a tag by id.
func (s *Scene) RemoveTag(t *Tag) error {
	return entities.RemoveRef(s, "tags", t)
}

// AddGroup attaches the scene to a group at the given index within it.
func (s *Scene) AddGroup(g *Group, sceneIndex int) error {
	cur, _ := s.Groups.Get()
	for _, w := range cur {
		if w.Group.ID() == g.ID() {
			return nil
		}
	}
	wrappers := make([]any, 0, len(cur)+1)
	for _, w := range cur {
		wrappers = append(wrappers, w)
	}
	wrappers = append(wrappers, SceneGroup{Group: g, SceneIndex: fields.Of(sceneIndex)})
	return entities.SetWrapperList(s, "groups", wrappers)
}

// RemoveGroup detaches the scene from a group by id.
func (s *Scene) RemoveGroup(g *Group) error {
	cur, ok := s.Groups.Get()
	if !ok {
		return nil
	}
	wrappers := make([]any, 0, len(cur))
	for _, w := range cur {
		if w.Group.ID() == g.ID() {
			continue
		}
		wrappers = append(wrappers, w)
	}
	if len(wrappers) == len(cur) {
		return nil
	}
	return entities.SetWrapperList(s, "groups", wrappers)
}

func fuzzyDateString(v any) (any, error) {
	d, ok := v.(scalars.FuzzyDate)
	if !ok {
		return nil, fmt.Errorf("media: expected a fuzzy date, got %T", v)
	}
	return d.String(), nil
}

func newSceneGroup(ref types.Entity, meta map[string]any) (any, error) {
	g, ok := ref.(*Group)
	if !ok {
		return nil, fmt.Errorf("media: scene group referent must be a Group, got %T", ref)
	}
	w := SceneGroup{Group: g}
	switch idx := meta["scene_index"].(type) {
	case nil:
		if _, present := meta["scene_index"]; present {
			w.SceneIndex = fields.Null[int]()
		}
	case float64:
		w.SceneIndex = fields.Of(int(idx))
	case int:
		w.SceneIndex = fields.Of(idx)
	default:
		return nil, fmt.Errorf("media: invalid scene_index %v", idx)
	}
	return w, nil
}

func sceneGroupRef(w any) types.Entity {
	return w.(SceneGroup).Group
}

func sceneGroupMeta(w any) map[string]any {
	sg := w.(SceneGroup)
	meta := map[string]any{}
	if idx, ok := sg.SceneIndex.Get(); ok {
		meta["scene_index"] = idx
	} else if sg.SceneIndex.IsNull() {
		meta["scene_index"] = nil
	}
	return meta
}

func sceneGroupInput(v any) (any, error) {
	sg, ok := v.(SceneGroup)
	if !ok {
		return nil, fmt.Errorf("media: expected a SceneGroup, got %T", v)
	}
	input := map[string]any{"group_id": sg.Group.ID()}
	if idx, ok := sg.SceneIndex.Get(); ok {
		input["scene_index"] = idx
	} else if sg.SceneIndex.IsNull() {
		input["scene_index"] = nil
	}
	return input, nil
}
