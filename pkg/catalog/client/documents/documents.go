// Package documents holds the GraphQL operation documents for the standard
// entity catalog. Every document is parsed at init time; a malformed
// document is a programming error and panics immediately.
package documents

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

const sceneData = `
fragment SceneData on Scene {
	__typename
	id
	title
	code
	details
	director
	urls
	date
	rating100
	organized
	created_at
	updated_at
	studio { __typename id name }
	performers { __typename id name disambiguation }
	tags { __typename id name }
	groups { group { __typename id name } scene_index }
	files {
		__typename
		id
		path
		basename
		size
		... on VideoFile { duration width height video_codec audio_codec frame_rate bit_rate }
		... on ImageFile { width height }
	}
}
`

const performerData = `
fragment PerformerData on Performer {
	__typename
	id
	name
	disambiguation
	gender
	birthdate
	country
	details
	favorite
	rating100
	alias_list
	scene_count
	created_at
	updated_at
	tags { __typename id name }
}
`

const studioData = `
fragment StudioData on Studio {
	__typename
	id
	name
	url
	details
	favorite
	rating100
	aliases
	scene_count
	created_at
	updated_at
	parent_studio { __typename id name }
	child_studios { __typename id name }
}
`

const tagData = `
fragment TagData on Tag {
	__typename
	id
	name
	description
	favorite
	aliases
	scene_count
	created_at
	updated_at
	parents { __typename id name }
	children { __typename id name }
}
`

const groupData = `
fragment GroupData on Group {
	__typename
	id
	name
	synopsis
	date
	rating100
	director
	scene_count
	created_at
	updated_at
	studio { __typename id name }
	tags { __typename id name }
}
`

var operationDocuments = []string{
	`query FindScene($id: ID!) { findScene(id: $id) { ...SceneData } }` + sceneData,
	`query FindScenes($filter: FindFilterType, $scene_filter: SceneFilterType) {
		findScenes(filter: $filter, scene_filter: $scene_filter) {
			count
			scenes { ...SceneData }
		}
	}` + sceneData,
	`mutation SceneCreate($input: SceneCreateInput!) { sceneCreate(input: $input) { id } }`,
	`mutation SceneUpdate($input: SceneUpdateInput!) { sceneUpdate(input: $input) { id } }`,
	`mutation SceneDestroy($id: ID!) { sceneDestroy(input: { id: $id }) }`,

	`query FindPerformer($id: ID!) { findPerformer(id: $id) { ...PerformerData } }` + performerData,
	`query FindPerformers($filter: FindFilterType, $performer_filter: PerformerFilterType) {
		findPerformers(filter: $filter, performer_filter: $performer_filter) {
			count
			performers { ...PerformerData }
		}
	}` + performerData,
	`mutation PerformerCreate($input: PerformerCreateInput!) { performerCreate(input: $input) { id } }`,
	`mutation PerformerUpdate($input: PerformerUpdateInput!) { performerUpdate(input: $input) { id } }`,
	`mutation PerformerDestroy($id: ID!) { performerDestroy(id: $id) }`,

	`query FindStudio($id: ID!) { findStudio(id: $id) { ...StudioData } }` + studioData,
	`query FindStudios($filter: FindFilterType, $studio_filter: StudioFilterType) {
		findStudios(filter: $filter, studio_filter: $studio_filter) {
			count
			studios { ...StudioData }
		}
	}` + studioData,
	`mutation StudioCreate($input: StudioCreateInput!) { studioCreate(input: $input) { id } }`,
	`mutation StudioUpdate($input: StudioUpdateInput!) { studioUpdate(input: $input) { id } }`,
	`mutation StudioDestroy($id: ID!) { studioDestroy(input: { id: $id }) }`,

	`query FindTag($id: ID!) { findTag(id: $id) { ...TagData } }` + tagData,
	`query FindTags($filter: FindFilterType, $tag_filter: TagFilterType) {
		findTags(filter: $filter, tag_filter: $tag_filter) {
			count
			tags { ...TagData }
		}
	}` + tagData,
	`mutation TagCreate($input: TagCreateInput!) { tagCreate(input: $input) { id } }`,
	`mutation TagUpdate($input: TagUpdateInput!) { tagUpdate(input: $input) { id } }`,
	`mutation TagDestroy($id: ID!) { tagDestroy(input: { id: $id }) }`,

	`query FindGroup($id: ID!) { findGroup(id: $id) { ...GroupData } }` + groupData,
	`query FindGroups($filter: FindFilterType, $group_filter: GroupFilterType) {
		findGroups(filter: $filter, group_filter: $group_filter) {
			count
			groups { ...GroupData }
		}
	}` + groupData,
	`mutation GroupCreate($input: GroupCreateInput!) { groupCreate(input: $input) { id } }`,
	`mutation GroupUpdate($input: GroupUpdateInput!) { groupUpdate(input: $input) { id } }`,
	`mutation GroupDestroy($id: ID!) { groupDestroy(input: { id: $id }) }`,

	`query FindFile($id: ID!) {
		findFile(id: $id) {
			__typename
			id
			path
			basename
			size
			... on VideoFile { duration width height video_codec audio_codec frame_rate bit_rate }
			... on ImageFile { width height }
		}
	}`,
}

var byOperation map[string]string

func init() {
	byOperation = make(map[string]string, len(operationDocuments))
	for _, doc := range operationDocuments {
		qdoc, gqlErr := parser.ParseQuery(&ast.Source{Name: "documents", Input: doc})
		if gqlErr != nil {
			panic(fmt.Sprintf("documents: invalid operation document: %s", gqlErr.Error()))
		}
		if len(qdoc.Operations) != 1 || qdoc.Operations[0].Name == "" {
			panic("documents: every document must contain exactly one named operation")
		}
		name := qdoc.Operations[0].Name
		if _, dup := byOperation[name]; dup {
			panic(fmt.Sprintf("documents: duplicate operation %s", name))
		}
		byOperation[name] = doc
	}
}

// All returns the standard operation documents keyed by operation name.
func All() map[string]string {
	out := make(map[string]string, len(byOperation))
	for name, doc := range byOperation {
		out[name] = doc
	}
	return out
}

// Lookup returns the document registered for an operation name.
func Lookup(operation string) (string, bool) {
	doc, ok := byOperation[operation]
	return doc, ok
}
