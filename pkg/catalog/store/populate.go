package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mediagraph/catalog-client/internal/pkg/infrastructure/o11y/logging"
	"github.com/mediagraph/catalog-client/pkg/catalog/entities"
	"github.com/mediagraph/catalog-client/pkg/catalog/errors"
	"github.com/mediagraph/catalog-client/pkg/catalog/schema"
	"github.com/mediagraph/catalog-client/pkg/catalog/types"
)

// pathNode is one level of a dotted field-path tree. A node without
// children is a leaf and stands for the whole field.
type pathNode struct {
	children map[string]*pathNode
}

func newPathNode() *pathNode {
	return &pathNode{children: map[string]*pathNode{}}
}

func (n *pathNode) empty() bool {
	return len(n.children) == 0
}

// parsePaths builds a tree from dotted paths such as "files.path" or
// "studio.parent_studio.name".
func parsePaths(paths []string) (*pathNode, error) {
	root := newPathNode()
	for _, path := range paths {
		node := root
		for _, seg := range strings.Split(path, ".") {
			if seg == "" {
				return nil, fmt.Errorf("invalid field path %q", path)
			}
			child, ok := node.children[seg]
			if !ok {
				child = newPathNode()
				node.children[seg] = child
			}
			node = child
		}
	}
	return root, nil
}

func mergeNode(dst, src *pathNode) {
	for seg, srcChild := range src.children {
		dstChild, ok := dst.children[seg]
		if !ok {
			dst.children[seg] = srcChild
			continue
		}
		mergeNode(dstChild, srcChild)
	}
}

// flattenPaths renders a tree back into sorted dotted paths.
func flattenPaths(node *pathNode) []string {
	if node.empty() {
		return nil
	}
	var out []string
	var walk func(prefix string, n *pathNode)
	walk = func(prefix string, n *pathNode) {
		if n.empty() {
			out = append(out, prefix)
			return
		}
		keys := make([]string, 0, len(n.children))
		for seg := range n.children {
			keys = append(keys, seg)
		}
		sort.Strings(keys)
		for _, seg := range keys {
			p := seg
			if prefix != "" {
				p = prefix + "." + seg
			}
			walk(p, n.children[seg])
		}
	}
	walk("", node)
	sort.Strings(out)
	return out
}

// Populate fetches exactly the requested field paths that are not already
// present on e, merging the response through the interception protocol so
// nested instances land in the cache and the snapshot refreshes only for
// the fetched fields. A populate whose paths are all present is a no-op.
func (s *Store) Populate(ctx context.Context, e types.Entity, fieldPaths []string, force bool) error {
	m, ok := e.(entities.Model)
	if !ok {
		return fmt.Errorf("%T is not a catalog entity", e)
	}
	desc := entities.Descriptor(m)

	requested, err := parsePaths(fieldPaths)
	if err != nil {
		return err
	}

	s.mu.Lock()
	needed, err := missingLocked(m, desc, requested, force)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	log := logging.GetFromContext(ctx)
	if needed.empty() {
		log.Debug().Str("type", desc.TypeName).Str("id", m.ID()).Msg("populate satisfied from cache")
		return nil
	}

	if err := validateServerID(m.ID()); err != nil {
		return err
	}

	doc := buildPopulateQuery(desc, needed)
	log.Debug().
		Str("type", desc.TypeName).Str("id", m.ID()).
		Strs("fields", flattenPaths(needed)).
		Msg("populating missing fields")

	result, err := s.transport.ExecuteRaw(ctx, doc, map[string]any{"id": m.ID()})
	if err != nil {
		return err
	}

	payload, ok := result[desc.Operations.FindByIDKey].(map[string]any)
	if !ok {
		return fmt.Errorf("%s %s: %w", desc.TypeName, m.ID(), errors.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.fromPayloadLocked(ctx, desc.TypeName, payload)
	return err
}

// missingLocked reduces a requested path tree to the segments that actually
// need fetching: a root segment never received (or forced) is needed whole;
// a received relationship recurses into its loaded referents to check the
// deeper segments.
func missingLocked(m entities.Model, desc *schema.Descriptor, requested *pathNode, force bool) (*pathNode, error) {
	needed := newPathNode()

	for seg, sub := range requested.children {
		fi, ok := desc.Field(seg)
		if !ok {
			return nil, fmt.Errorf("%s has no field %q", desc.TypeName, seg)
		}
		if fi.Kind == schema.KindScalar && !sub.empty() {
			return nil, fmt.Errorf("%s.%s is a scalar and has no nested fields", desc.TypeName, seg)
		}

		if force || !m.Received(seg) {
			needed.children[seg] = sub
			continue
		}
		if sub.empty() {
			continue
		}

		deeper, err := missingInReferents(m, desc, seg, sub, fi)
		if err != nil {
			return nil, err
		}
		if deeper != nil && !deeper.empty() {
			needed.children[seg] = deeper
		}
	}

	return needed, nil
}

func missingInReferents(m entities.Model, desc *schema.Descriptor, seg string, sub *pathNode, fi schema.FieldInfo) (*pathNode, error) {
	fv, ok := desc.FieldValue(m, seg)
	if !ok {
		return nil, nil
	}
	v, set := fv.AnyValue()
	if !set {
		return nil, nil
	}

	rel, _ := relationshipOf(desc, seg)
	union := newPathNode()

	checkReferent := func(ref types.Entity) error {
		child, ok := ref.(entities.Model)
		if !ok {
			return nil
		}
		childDesc := entities.Descriptor(child)
		deeper, err := missingLocked(child, childDesc, sub, false)
		if err != nil {
			return err
		}
		mergeNode(union, deeper)
		return nil
	}

	switch fi.Kind {
	case schema.KindSingle:
		if err := checkReferent(v.(types.Entity)); err != nil {
			return nil, err
		}
	case schema.KindList:
		rv := reflect.ValueOf(v)
		for i := 0; i < rv.Len(); i++ {
			if err := checkReferent(rv.Index(i).Interface().(types.Entity)); err != nil {
				return nil, err
			}
		}
	case schema.KindWrapperList:
		rv := reflect.ValueOf(v)
		for i := 0; i < rv.Len(); i++ {
			if err := checkReferent(rel.WrapperRef(rv.Index(i).Interface())); err != nil {
				return nil, err
			}
		}
	}

	return union, nil
}

// buildPopulateQuery renders the minimal document requesting exactly the
// needed segments.
func buildPopulateQuery(desc *schema.Descriptor, needed *pathNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "query Populate%s($id: ID!) { %s(id: $id) { id __typename",
		desc.TypeName, desc.Operations.FindByIDKey)
	writeSelections(&b, desc, needed)
	b.WriteString(" } }")
	return b.String()
}

func writeSelections(b *strings.Builder, desc *schema.Descriptor, node *pathNode) {
	segs := make([]string, 0, len(node.children))
	for seg := range node.children {
		segs = append(segs, seg)
	}
	sort.Strings(segs)

	for _, seg := range segs {
		sub := node.children[seg]
		if sub.empty() {
			b.WriteString(" ")
			b.WriteString(desc.Selection(seg))
			continue
		}

		rel, _ := relationshipOf(desc, seg)
		peerDesc, havePeer := schema.Lookup(rel.PeerType)

		if rel.WrapperKey != "" {
			fmt.Fprintf(b, " %s { %s { id __typename", seg, rel.WrapperKey)
			writeNestedSelections(b, peerDesc, havePeer, sub)
			b.WriteString(" }")
			for _, meta := range rel.MetaFields {
				b.WriteString(" ")
				b.WriteString(meta)
			}
			b.WriteString(" }")
			continue
		}

		fmt.Fprintf(b, " %s { id __typename", seg)
		writeNestedSelections(b, peerDesc, havePeer, sub)
		b.WriteString(" }")
	}
}

// writeNestedSelections descends into a peer's schema when it is concrete;
// behind an interface peer only flat leaf segments can be requested.
func writeNestedSelections(b *strings.Builder, peerDesc *schema.Descriptor, havePeer bool, sub *pathNode) {
	if havePeer {
		writeSelections(b, peerDesc, sub)
		return
	}
	segs := make([]string, 0, len(sub.children))
	for seg := range sub.children {
		segs = append(segs, seg)
	}
	sort.Strings(segs)
	for _, seg := range segs {
		b.WriteString(" ")
		b.WriteString(seg)
	}
}
