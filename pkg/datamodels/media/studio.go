package media

import (
	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/fields"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/relationships"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/scalars"
)

// Studio is a production studio, optionally part of a studio hierarchy.
type Studio struct {
	entities.Object

	Name      fields.Field[string]   `graph:"name"`
	URL       fields.Field[string]   `graph:"url"`
	Details   fields.Field[string]   `graph:"details"`
	Favorite  fields.Field[bool]     `graph:"favorite"`
	Rating100 fields.Field[int]      `graph:"rating100"`
	Aliases   fields.Field[[]string] `graph:"aliases"`

	Parent   fields.Field[*Studio]   `graph:"parent_studio"`
	Children fields.Field[[]*Studio] `graph:"child_studios"`

	// SceneCount is a server-side resolver and never written back.
	SceneCount fields.Field[int] `graph:"scene_count"`

	CreatedAt fields.Field[scalars.Timestamp] `graph:"created_at"`
	UpdatedAt fields.Field[scalars.Timestamp] `graph:"updated_at"`
}

var studioDescriptor = &schema.Descriptor{
	TypeName:    "Studio",
	CreateInput: "StudioCreateInput",
	UpdateInput: "StudioUpdateInput",
	Tracked: []string{
		"name", "url", "details", "favorite", "rating100", "aliases", "parent_studio",
	},
	Relationships: map[string]relationships.Metadata{
		"parent_studio": {
			TargetField:       "parent_id",
			QueryField:        "parent_studio",
			PeerType:          "Studio",
			InverseQueryField: "child_studios",
			Strategy:          relationships.StrategyDirectField,
		},
		"child_studios": {
			IsList:            true,
			QueryField:        "child_studios",
			PeerType:          "Studio",
			InverseQueryField: "parent_studio",
			Strategy:          relationships.StrategyDirectField,
		},
	},
	ShortRepr: []string{"name"},
	Selections: map[string]string{
		"parent_studio": "parent_studio { __typename id name }",
		"child_studios": "child_studios { __typename id name }",
	},
	Operations: schema.Operations{
		FindByID:    "FindStudio",
		FindByIDKey: "findStudio",
		FindMany:    "FindStudios",
		FindManyKey: "findStudios",
		ItemsKey:    "studios",
		FilterKey:   "studio_filter",
		Create:      "StudioCreate",
		CreateKey:   "studioCreate",
		Update:      "StudioUpdate",
		UpdateKey:   "studioUpdate",
		Destroy:     "StudioDestroy",
		DestroyKey:  "studioDestroy",
	},
}

func init() {
	studioDescriptor.New = func() types.Entity { return NewStudio() }
	schema.MustRegister(studioDescriptor)
}

// NewStudio constructs a studio with a freshly minted local identity.
func NewStudio() *Studio {
	s := &Studio{}
	entities.Init(s, studioDescriptor)
	return s
}

// SetParent assigns the parent studio, mirroring the parent's loaded child
// list. A nil parent detaches the studio from the hierarchy.
func (s *Studio) SetParent(parent *Studio) error {
	if parent == nil {
		return entities.SetRelated(s, "parent_studio", nil)
	}
	return entities.SetRelated(s, "parent_studio", parent)
}

// AddChild appends a child studio, mirroring the child's loaded parent
// field.
func (s *Studio) AddChild(child *Studio) error {
	return entities.AddRef(s, "child_studios", child)
}

// RemoveChild removes a child studio by id.
func (s *Studio) RemoveChild(child *Studio) error {
	return entities.RemoveRef(s, "child_studios", child)
}
