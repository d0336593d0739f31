package db

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DistanceMetric is the vector distance an FT index compares with.
type DistanceMetric string

// Distance metrics understood by FT.CREATE.
const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

// FieldKind is the FT schema type of an attribute.
type FieldKind string

// Attribute kinds used by the product index.
const (
	KindTag     FieldKind = "TAG"
	KindNumeric FieldKind = "NUMERIC"
	KindVector  FieldKind = "VECTOR"
)

var identifier = regexp.MustCompile(`^[a-zA-Z0-9_:-]+$`)

// TagOptions tune a TAG attribute.
type TagOptions struct {
	Separator     string
	CaseSensitive bool
}

// HNSW describes a FLOAT32 vector attribute indexed as an HNSW graph.
// Zero M or EFConstruct leaves the server default.
type HNSW struct {
	Dim         int
	Distance    DistanceMetric
	M           int
	EFConstruct int
}

// Attribute is one schema entry. Queries address it by Key.
type Attribute struct {
	Field string
	Alias string
	Kind  FieldKind
	Tag   TagOptions
	HNSW  HNSW
}

// Key is the alias when set, otherwise the hash field name.
func (a Attribute) Key() string {
	if a.Alias != "" {
		return a.Alias
	}
	return a.Field
}

// IndexDefinition is an FT index over hashes sharing one key prefix.
type IndexDefinition struct {
	Name   string
	Prefix string
	Schema []Attribute
}

// Validate checks the definition before it is sent to the server.
func (d *IndexDefinition) Validate() error {
	if err := validation.ValidateStruct(d,
		validation.Field(&d.Name, validation.Required, validation.Match(identifier)),
		validation.Field(&d.Schema, validation.Required),
	); err != nil {
		return fmt.Errorf("index definition: %w", err)
	}

	seen := make(map[string]struct{}, len(d.Schema))
	for _, a := range d.Schema {
		if a.Field == "" {
			return errors.New("index definition: attribute without a field name")
		}
		if _, dup := seen[a.Key()]; dup {
			return fmt.Errorf("index definition: duplicate attribute %q", a.Key())
		}
		seen[a.Key()] = struct{}{}

		switch a.Kind {
		case KindTag, KindNumeric:
		case KindVector:
			if a.HNSW.Dim <= 0 {
				return fmt.Errorf("index definition: vector %q needs a positive dimension", a.Key())
			}
		default:
			return fmt.Errorf("index definition: attribute %q has unknown kind %q", a.Key(), a.Kind)
		}
	}
	return nil
}

// SchemaBuilder assembles an IndexDefinition one attribute at a time.
type SchemaBuilder struct {
	def IndexDefinition
}

// NewIndex starts a definition for hashes under prefix.
func NewIndex(name, prefix string) *SchemaBuilder {
	return &SchemaBuilder{def: IndexDefinition{Name: name, Prefix: prefix}}
}

// Tag appends a TAG attribute.
func (b *SchemaBuilder) Tag(field string, opts TagOptions) *SchemaBuilder {
	b.def.Schema = append(b.def.Schema, Attribute{Field: field, Kind: KindTag, Tag: opts})
	return b
}

// Numeric appends a NUMERIC attribute.
func (b *SchemaBuilder) Numeric(field string) *SchemaBuilder {
	b.def.Schema = append(b.def.Schema, Attribute{Field: field, Kind: KindNumeric})
	return b
}

// Vector appends an HNSW vector attribute stored in field and queried as alias.
func (b *SchemaBuilder) Vector(field, alias string, hnsw HNSW) *SchemaBuilder {
	b.def.Schema = append(b.def.Schema, Attribute{Field: field, Alias: alias, Kind: KindVector, HNSW: hnsw})
	return b
}

// Build validates and returns the definition.
func (b *SchemaBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	def := b.def
	def.Schema = append([]Attribute(nil), b.def.Schema...)
	return &def, nil
}
