package media

import (
	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/fields"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/relationships"
	"github.com/mediagraph/catalog-client/pkg/catalog/types/scalars"
)

// Performer is a person appearing in scenes.
type Performer struct {
	entities.Object

	Name           fields.Field[string]            `graph:"name"`
	Disambiguation fields.Field[string]            `graph:"disambiguation"`
	Gender         fields.Field[string]            `graph:"gender"`
	Birthdate      fields.Field[scalars.FuzzyDate] `graph:"birthdate"`
	Country        fields.Field[string]            `graph:"country"`
	Details        fields.Field[string]            `graph:"details"`
	Favorite       fields.Field[bool]              `graph:"favorite"`
	Rating100      fields.Field[int]               `graph:"rating100"`
	AliasList      fields.Field[[]string]          `graph:"alias_list"`

	Tags   fields.Field[[]*Tag]   `graph:"tags"`
	Scenes fields.Field[[]*Scene] `graph:"scenes"`

	// SceneCount is a server-side resolver and never written back.
	SceneCount fields.Field[int] `graph:"scene_count"`

	CreatedAt fields.Field[scalars.Timestamp] `graph:"created_at"`
	UpdatedAt fields.Field[scalars.Timestamp] `graph:"updated_at"`
}

var performerDescriptor = &schema.Descriptor{
	TypeName:    "Performer",
	CreateInput: "PerformerCreateInput",
	UpdateInput: "PerformerUpdateInput",
	Tracked: []string{
		"name", "disambiguation", "gender", "birthdate", "country",
		"details", "favorite", "rating100", "alias_list", "tags",
	},
	Conversions: map[string]schema.Conversion{
		"birthdate": {InputKey: "birthdate", Convert: fuzzyDateString},
	},
	Relationships: map[string]relationships.Metadata{
		"tags": {
			TargetField: "tag_ids",
			IsList:      true,
			QueryField:  "tags",
			PeerType:    "Tag",
			Strategy:    relationships.StrategyFilterQuery,
		},
		"scenes": {
			IsList:            true,
			QueryField:        "scenes",
			PeerType:          "Scene",
			InverseQueryField: "performers",
			Strategy:          relationships.StrategyDirectField,
		},
	},
	ShortRepr: []string{"name", "disambiguation"},
	Selections: map[string]string{
		"tags":   "tags { __typename id name }",
		"scenes": "scenes { __typename id title }",
	},
	Operations: schema.Operations{
		FindByID:    "FindPerformer",
		FindByIDKey: "findPerformer",
		FindMany:    "FindPerformers",
		FindManyKey: "findPerformers",
		ItemsKey:    "performers",
		FilterKey:   "performer_filter",
		Create:      "PerformerCreate",
		CreateKey:   "performerCreate",
		Update:      "PerformerUpdate",
		UpdateKey:   "performerUpdate",
		Destroy:     "PerformerDestroy",
		DestroyKey:  "performerDestroy",
	},
}

func init() {
	performerDescriptor.New = func() types.Entity { return NewPerformer() }
	schema.MustRegister(performerDescriptor)
}

// NewPerformer constructs a performer with a freshly minted local identity.
func NewPerformer() *Performer {
	p := &Performer{}
	entities.Init(p, performerDescriptor)
	return p
}

// AddTag appends a tag.
func (p *Performer) AddTag(t *Tag) error {
	return entities.AddRef(p, "tags", t)
}

// RemoveTag removes a tag by id.
func (p *Performer) RemoveTag(t *Tag) error {
	return entities.RemoveRef(p, "tags", t)
}
