package media

import (
	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/fields"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/relationships"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/scalars"
)

// Tag is a label applied to scenes, performers and groups. Tags form a
// directed hierarchy through their parent and child lists.
type Tag struct {
	entities.Object

	Name        fields.Field[string]   `graph:"name"`
	Description fields.Field[string]   `graph:"description"`
	Favorite    fields.Field[bool]     `graph:"favorite"`
	Aliases     fields.Field[[]string] `graph:"aliases"`

	Parents  fields.Field[[]*Tag] `graph:"parents"`
	Children fields.Field[[]*Tag] `graph:"children"`

	// SceneCount is a server-side resolver and never written back.
	SceneCount fields.Field[int] `graph:"scene_count"`

	CreatedAt fields.Field[scalars.Timestamp] `graph:"created_at"`
	UpdatedAt fields.Field[scalars.Timestamp] `graph:"updated_at"`
}

var tagDescriptor = &schema.Descriptor{
	TypeName:    "Tag",
	CreateInput: "TagCreateInput",
	UpdateInput: "TagUpdateInput",
	Tracked: []string{
		"name", "description", "favorite", "aliases", "parents", "children",
	},
	Relationships: map[string]relationships.Metadata{
		"parents": {
			TargetField:       "parent_ids",
			IsList:            true,
			QueryField:        "parents",
			PeerType:          "Tag",
			InverseQueryField: "children",
			Strategy:          relationships.StrategyDirectField,
		},
		"children": {
			TargetField:       "child_ids",
			IsList:            true,
			QueryField:        "children",
			PeerType:          "Tag",
			InverseQueryField: "parents",
			Strategy:          relationships.StrategyDirectField,
		},
	},
	ShortRepr: []string{"name"},
	Selections: map[string]string{
		"parents":  "parents { __typename id name }",
		"children": "children { __typename id name }",
	},
	Operations: schema.Operations{
		FindByID:    "FindTag",
		FindByIDKey: "findTag",
		FindMany:    "FindTags",
		FindManyKey: "findTags",
		ItemsKey:    "tags",
		FilterKey:   "tag_filter",
		Create:      "TagCreate",
		CreateKey:   "tagCreate",
		Update:      "TagUpdate",
		UpdateKey:   "tagUpdate",
		Destroy:     "TagDestroy",
		DestroyKey:  "tagDestroy",
	},
}

func init() {
	tagDescriptor.New = func() types.Entity { return NewTag() }
	schema.MustRegister(tagDescriptor)
}

// NewTag constructs a tag with a freshly minted local identity.
func NewTag() *Tag {
	t := &Tag{}
	entities.Init(t, tagDescriptor)
	return t
}

// AddParent links this tag under a parent, mirroring the parent's loaded
// child list.
func (t *Tag) AddParent(parent *Tag) error {
	return entities.AddRef(t, "parents", parent)
}

// RemoveParent unlinks a parent by id.
func (t *Tag) RemoveParent(parent *Tag) error {
	return entities.RemoveRef(t, "parents", parent)
}

// AddChild links a child tag under this one, mirroring the child's loaded
// parent list.
func (t *Tag) AddChild(child *Tag) error {
	return entities.AddRef(t, "children", child)
}

// RemoveChild unlinks a child by id.
func (t *Tag) RemoveChild(child *Tag) error {
	return entities.RemoveRef(t, "children", child)
}
