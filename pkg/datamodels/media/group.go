package media

import (
	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/fields"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/relationships"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/scalars"
)

// Group collects scenes into an ordered compilation. Scenes reference groups
// through SceneGroup wrappers carrying their index within the group.
type Group struct {
	entities.Object

	Name      fields.Field[string]            `graph:"name"`
	Synopsis  fields.Field[string]            `graph:"synopsis"`
	Date      fields.Field[scalars.FuzzyDate] `graph:"date"`
	Rating100 fields.Field[int]               `graph:"rating100"`
	Director  fields.Field[string]            `graph:"director"`

	Studio fields.Field[*Studio] `graph:"studio"`
	Tags   fields.Field[[]*Tag]  `graph:"tags"`

	// SceneCount is a server-side resolver and never written back.
	SceneCount fields.Field[int] `graph:"scene_count"`

	CreatedAt fields.Field[scalars.Timestamp] `graph:"created_at"`
	UpdatedAt fields.Field[scalars.Timestamp] `graph:"updated_at"`
}

var groupDescriptor = &schema.Descriptor{
	TypeName:    "Group",
	CreateInput: "GroupCreateInput",
	UpdateInput: "GroupUpdateInput",
	Tracked: []string{
		"name", "synopsis", "date", "rating100", "director", "studio", "tags",
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
		"tags": {
			TargetField: "tag_ids",
			IsList:      true,
			QueryField:  "tags",
			PeerType:    "Tag",
			Strategy:    relationships.StrategyFilterQuery,
		},
	},
	ShortRepr: []string{"name"},
	Selections: map[string]string{
		"studio": "studio { __typename id name }",
		"tags":   "tags { __typename id name }",
	},
	Operations: schema.Operations{
		FindByID:    "FindGroup",
		FindByIDKey: "findGroup",
		FindMany:    "FindGroups",
		FindManyKey: "findGroups",
		ItemsKey:    "groups",
		FilterKey:   "group_filter",
		Create:      "GroupCreate",
		CreateKey:   "groupCreate",
		Update:      "GroupUpdate",
		UpdateKey:   "groupUpdate",
		Destroy:     "GroupDestroy",
		DestroyKey:  "groupDestroy",
	},
}

func init() {
	groupDescriptor.New = func() types.Entity { return NewGroup() }
	schema.MustRegister(groupDescriptor)
}

// NewGroup constructs a group with a freshly minted local identity.
func NewGroup() *Group {
	g := &Group{}
	entities.Init(g, groupDescriptor)
	return g
}

// SetStudio assigns the group's studio, or clears it when st is nil.
func (g *Group) SetStudio(st *Studio) error {
	if st == nil {
		return entities.SetRelated(g, "studio", nil)
	}
	return entities.SetRelated(g, "studio", st)
}

// AddTag appends a tag.
func (g *Group) AddTag(t *Tag) error {
	return entities.AddRef(g, "tags", t)
}

// RemoveTag removes a tag by id.
func (g *Group) RemoveTag(t *Tag) error {
	return entities.RemoveRef(g, "tags", t)
}
