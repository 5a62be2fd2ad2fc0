package store

import (
	"fmt"
	"slices"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/socialtable/keys"
)

// Pattern names understood by the default catalog.
const (
	PatternAllUsers     = "getAllUsers"
	PatternUserByEmail  = "getUserByEmail"
	PatternAllPosts     = "getAllPosts"
	PatternPostByID     = "getPostById"
	PatternUserPosts    = "getUserPosts"
	PatternFollowers    = "getAllFollowers"
	PatternFollowing    = "getUserFollowing"
	PatternPostComments = "getPostComments"
)

// Secondary index names.
const (
	IndexAllUsers     = "getAllUsers"
	IndexAllPosts     = "getAllPosts"
	IndexFollowers    = "getAllFollowers"
	IndexPostComments = "getPostComments"
	IndexUserByEmail  = "getUserByEmail"
)

// DefaultPageSize is used when a query does not request a limit.
const DefaultPageSize int32 = 10

// SortOp is the sort-key predicate of an access pattern.
type SortOp int

const (
	SortNone SortOp = iota
	SortEquals
	SortBeginsWith
)

// Direction is the sort order of query results.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Projection mirrors the index projection types.
type Projection string

const (
	ProjectAll      Projection = "ALL"
	ProjectKeysOnly Projection = "KEYS_ONLY"
	ProjectInclude  Projection = "INCLUDE"
)

// KeyShape renders a key value from request fields.
type KeyShape func(keys.Fields) (string, error)

// IndexDescriptor describes one named access pattern.
type IndexDescriptor struct {
	Pattern string

	// Index is the secondary index name, or "" for the base table.
	Index string

	PartitionAttr string
	Partition     KeyShape

	SortAttr string
	SortOp   SortOp
	Sort     KeyShape

	PageSize  int32
	Direction Direction

	Projection Projection
	// Projected lists the non-key attributes of an INCLUDE projection.
	Projected []string
}

// Predicate is a resolved key condition.
type Predicate struct {
	Partition string
	Sort      string
}

// Predicate renders the key condition for f.
func (d IndexDescriptor) Predicate(f keys.Fields) (Predicate, error) {
	var p Predicate
	var err error
	if p.Partition, err = d.Partition(f); err != nil {
		return Predicate{}, fmt.Errorf("%s: %w", d.Pattern, err)
	}
	if d.SortOp != SortNone {
		if p.Sort, err = d.Sort(f); err != nil {
			return Predicate{}, fmt.Errorf("%s: %w", d.Pattern, err)
		}
	}
	return p, nil
}

// Catalog is the fixed set of access patterns. It is built once and never
// mutated afterwards, so it can be shared freely.
type Catalog struct {
	patterns map[string]IndexDescriptor
}

// NewCatalog returns the catalog of the social table. Extra descriptors are
// added after the defaults; a duplicate pattern name panics since it is a
// programming error caught at startup.
func NewCatalog(extra ...IndexDescriptor) *Catalog {
	c := &Catalog{patterns: make(map[string]IndexDescriptor)}
	for _, d := range append(defaultPatterns(), extra...) {
		if err := c.register(d); err != nil {
			panic(err)
		}
	}
	return c
}

func (c *Catalog) register(d IndexDescriptor) error {
	if d.Pattern == "" || d.PartitionAttr == "" || d.Partition == nil {
		return fmt.Errorf("catalog: incomplete descriptor %q", d.Pattern)
	}
	if d.SortOp != SortNone && (d.SortAttr == "" || d.Sort == nil) {
		return fmt.Errorf("catalog: pattern %q has a sort predicate without a sort key", d.Pattern)
	}
	if _, dup := c.patterns[d.Pattern]; dup {
		return fmt.Errorf("catalog: duplicate pattern %q", d.Pattern)
	}
	if d.PageSize <= 0 {
		d.PageSize = DefaultPageSize
	}
	if d.Projection == "" {
		d.Projection = ProjectAll
	}
	d.Projected = slices.Clone(d.Projected)
	c.patterns[d.Pattern] = d
	return nil
}

// Resolve returns the descriptor for a pattern name.
func (c *Catalog) Resolve(pattern string) (IndexDescriptor, error) {
	d, ok := c.patterns[pattern]
	if !ok {
		return IndexDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}
	d.Projected = slices.Clone(d.Projected)
	return d, nil
}

// Patterns returns the registered pattern names in sorted order.
func (c *Catalog) Patterns() []string {
	names := make([]string, 0, len(c.patterns))
	for name := range c.patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableIndexes returns the global secondary index definitions backing the
// catalog, one per distinct index.
func (c *Catalog) TableIndexes() []types.GlobalSecondaryIndex {
	seen := make(map[string]bool)
	var out []types.GlobalSecondaryIndex
	for _, name := range c.Patterns() {
		d := c.patterns[name]
		if d.Index == "" || seen[d.Index] {
			continue
		}
		seen[d.Index] = true

		schema := []types.KeySchemaElement{{AttributeName: aws.String(d.PartitionAttr), KeyType: types.KeyTypeHash}}
		if d.SortAttr != "" {
			schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(d.SortAttr), KeyType: types.KeyTypeRange})
		}
		proj := &types.Projection{ProjectionType: types.ProjectionType(d.Projection)}
		if d.Projection == ProjectInclude {
			proj.NonKeyAttributes = d.Projected
		}
		out = append(out, types.GlobalSecondaryIndex{
			IndexName:  aws.String(d.Index),
			KeySchema:  schema,
			Projection: proj,
		})
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].IndexName < *out[j].IndexName })
	return out
}

// IndexAttributes returns every string key attribute the table and its
// indexes use, sorted, for table definitions.
func (c *Catalog) IndexAttributes() []string {
	set := map[string]bool{keys.AttrPK: true, keys.AttrSK: true}
	for _, d := range c.patterns {
		set[d.PartitionAttr] = true
		if d.SortAttr != "" {
			set[d.SortAttr] = true
		}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func constant(v string) KeyShape {
	return func(keys.Fields) (string, error) { return v, nil }
}

func segment(prefix, field string) KeyShape {
	return func(f keys.Fields) (string, error) {
		return keys.Segment(prefix, f[field])
	}
}

func emailShape(f keys.Fields) (string, error) {
	e := keys.NormalizeEmail(f[keys.FieldEmail])
	if e == "" {
		return "", fmt.Errorf("%w: email is required", keys.ErrInvalidKeyInput)
	}
	return e, nil
}

func defaultPatterns() []IndexDescriptor {
	return []IndexDescriptor{
		{
			Pattern:       PatternAllUsers,
			Index:         IndexAllUsers,
			PartitionAttr: keys.AttrGSI1PK,
			Partition:     constant(keys.PrefixUser),
			SortAttr:      keys.AttrGSI1SK,
			SortOp:        SortBeginsWith,
			Sort:          constant(keys.PrefixUser),
			Direction:     Ascending,
		},
		{
			Pattern:       PatternUserByEmail,
			Index:         IndexUserByEmail,
			PartitionAttr: keys.AttrEmail,
			Partition:     emailShape,
			PageSize:      1,
			Projection:    ProjectInclude,
			Projected: []string{
				"id", "username", "about", "profilePicUrl",
				"profilePicKey", "address", "userType", "firstName", "lastName", "createdOn",
			},
		},
		{
			Pattern:       PatternAllPosts,
			Index:         IndexAllPosts,
			PartitionAttr: keys.AttrGSI2PK,
			Partition:     constant(keys.PrefixPost),
			SortAttr:      keys.AttrGSI2SK,
			SortOp:        SortBeginsWith,
			Sort:          constant(keys.PrefixPost),
			Direction:     Descending,
		},
		{
			Pattern:       PatternPostByID,
			Index:         IndexAllPosts,
			PartitionAttr: keys.AttrGSI2PK,
			Partition:     constant(keys.PrefixPost),
			SortAttr:      keys.AttrGSI2SK,
			SortOp:        SortEquals,
			Sort:          segment(keys.PrefixPost, keys.FieldID),
			PageSize:      1,
		},
		{
			Pattern:       PatternUserPosts,
			PartitionAttr: keys.AttrPK,
			Partition:     segment(keys.PrefixUser, keys.FieldUserID),
			SortAttr:      keys.AttrSK,
			SortOp:        SortBeginsWith,
			Sort:          constant(keys.PrefixPost),
			Direction:     Descending,
		},
		{
			Pattern:       PatternFollowers,
			Index:         IndexFollowers,
			PartitionAttr: keys.AttrGSI3PK,
			Partition:     segment(keys.PrefixFollowing, keys.FieldFollowingID),
			SortAttr:      keys.AttrGSI3SK,
			SortOp:        SortBeginsWith,
			Sort:          constant(keys.PrefixFollower),
			Projection:    ProjectKeysOnly,
		},
		{
			Pattern:       PatternFollowing,
			PartitionAttr: keys.AttrPK,
			Partition:     segment(keys.PrefixFollower, keys.FieldFollowerID),
			SortAttr:      keys.AttrSK,
			SortOp:        SortBeginsWith,
			Sort:          constant(keys.PrefixFollowing),
		},
		{
			Pattern:       PatternPostComments,
			Index:         IndexPostComments,
			PartitionAttr: keys.AttrGSI4PK,
			Partition:     segment(keys.PrefixPost, keys.FieldPostID),
			SortAttr:      keys.AttrGSI4SK,
			SortOp:        SortBeginsWith,
			Sort:          constant(keys.PrefixComment),
			Direction:     Descending,
		},
	}
}
