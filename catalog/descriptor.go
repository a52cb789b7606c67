package catalog

import (
	"encoding/base64"
	"fmt"

	"github.com/brimdata/arbor/member"
	"github.com/brimdata/arbor/tree"
	"gopkg.in/yaml.v3"
)

// Descriptor is the YAML form of a catalog.  Counters are referred to by
// branch name.
type Descriptor struct {
	Tree     string   `yaml:"tree"`
	Entries  int64    `yaml:"entries,omitempty"`
	Data     string   `yaml:"data,omitempty"`
	Branches []Branch `yaml:"branches"`
	Classes  []Class  `yaml:"classes,omitempty"`
}

type Branch struct {
	Name     string    `yaml:"name"`
	Kind     tree.Kind `yaml:"kind,omitempty"`
	Array    int       `yaml:"array,omitempty"`
	Count    string    `yaml:"count,omitempty"`
	Count2   string    `yaml:"count2,omitempty"`
	Variable bool      `yaml:"variable,omitempty"`
	Streamed bool      `yaml:"streamed,omitempty"`
	Class    string    `yaml:"class,omitempty"`
	Version  int       `yaml:"version,omitempty"`
	Checksum uint32    `yaml:"checksum,omitempty"`
	Member   string    `yaml:"member,omitempty"`
	Factor   float64   `yaml:"factor,omitempty"`
	Min      float64   `yaml:"min,omitempty"`
	NBits    int       `yaml:"nbits,omitempty"`
	Leaves   []Leaf    `yaml:"leaves,omitempty"`
	Entries  int64     `yaml:"entries,omitempty"`
	Baskets  []Basket  `yaml:"baskets,omitempty"`
	// Direct holds unflushed entries, base64 encoded.
	Direct        string   `yaml:"direct,omitempty"`
	DirectEntries int64    `yaml:"direct_entries,omitempty"`
	DirectFirst   int64    `yaml:"direct_first,omitempty"`
	Branches      []Branch `yaml:"branches,omitempty"`
}

type Leaf struct {
	Name  string    `yaml:"name"`
	Kind  tree.Kind `yaml:"kind"`
	Array int       `yaml:"array,omitempty"`
}

type Basket struct {
	Seek    int64 `yaml:"seek"`
	Bytes   int32 `yaml:"bytes"`
	ObjLen  int32 `yaml:"objlen,omitempty"`
	Entry   int64 `yaml:"entry"`
	Entries int32 `yaml:"entries"`
}

type Class struct {
	Name     string   `yaml:"name"`
	Version  int      `yaml:"version,omitempty"`
	Checksum uint32   `yaml:"checksum,omitempty"`
	Members  []Member `yaml:"members"`
}

type Member struct {
	Name   string    `yaml:"name"`
	Kind   tree.Kind `yaml:"kind"`
	Array  int       `yaml:"array,omitempty"`
	Count  string    `yaml:"count,omitempty"`
	Class  string    `yaml:"class,omitempty"`
	Factor float64   `yaml:"factor,omitempty"`
	Min    float64   `yaml:"min,omitempty"`
	NBits  int       `yaml:"nbits,omitempty"`
}

func (b *Branch) branch() (tree.Branch, error) {
	direct, err := decodeDirect(b.Direct)
	if err != nil {
		return tree.Branch{}, fmt.Errorf("branch %q: direct data: %w", b.Name, err)
	}
	br := tree.Branch{
		Name:          b.Name,
		Kind:          b.Kind,
		ArrayLen:      b.Array,
		Count:         tree.NoBranch,
		Count2:        tree.NoBranch,
		Variable:      b.Variable,
		Streamed:      b.Streamed,
		Class:         b.Class,
		Version:       b.Version,
		Checksum:      b.Checksum,
		Member:        b.Member,
		Float:         tree.Float{Factor: b.Factor, Min: b.Min, NBits: b.NBits},
		Entries:       b.Entries,
		Direct:        direct,
		DirectEntries: b.DirectEntries,
		DirectFirst:   b.DirectFirst,
	}
	for _, l := range b.Leaves {
		br.Leaves = append(br.Leaves, tree.Leaf{Name: l.Name, Kind: l.Kind, ArrayLen: l.Array})
	}
	for _, bk := range b.Baskets {
		br.Baskets = append(br.Baskets, tree.Basket{
			Seek:       bk.Seek,
			Bytes:      bk.Bytes,
			ObjLen:     bk.ObjLen,
			FirstEntry: bk.Entry,
			Entries:    bk.Entries,
		})
	}
	return br, nil
}

func (c *Class) layout() (*member.Layout, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("class without a name")
	}
	l := &member.Layout{Class: c.Name, Version: c.Version, Checksum: c.Checksum}
	for _, m := range c.Members {
		l.Members = append(l.Members, member.Member{
			Name:      m.Name,
			Kind:      m.Kind,
			ArrayLen:  m.Array,
			CountName: m.Count,
			Class:     m.Class,
			Float:     tree.Float{Factor: m.Factor, Min: m.Min, NBits: m.NBits},
		})
	}
	return l, nil
}

// Describe returns the descriptor of t with its baskets stored in data.
func Describe(t *tree.Tree, data string, layouts ...*member.Layout) *Descriptor {
	d := &Descriptor{Tree: t.Name, Entries: t.Entries, Data: data}
	for _, br := range t.Roots() {
		d.Branches = append(d.Branches, describe(t, br))
	}
	for _, l := range layouts {
		c := Class{Name: l.Class, Version: l.Version, Checksum: l.Checksum}
		for _, m := range l.Members {
			c.Members = append(c.Members, Member{
				Name:   m.Name,
				Kind:   m.Kind,
				Array:  m.ArrayLen,
				Count:  m.CountName,
				Class:  m.Class,
				Factor: m.Float.Factor,
				Min:    m.Float.Min,
				NBits:  m.Float.NBits,
			})
		}
		d.Classes = append(d.Classes, c)
	}
	return d
}

func describe(t *tree.Tree, br *tree.Branch) Branch {
	b := Branch{
		Name:          br.Name,
		Kind:          br.Kind,
		Array:         br.ArrayLen,
		Variable:      br.Variable,
		Streamed:      br.Streamed,
		Class:         br.Class,
		Version:       br.Version,
		Checksum:      br.Checksum,
		Member:        br.Member,
		Factor:        br.Float.Factor,
		Min:           br.Float.Min,
		NBits:         br.Float.NBits,
		Entries:       br.Entries,
		DirectEntries: br.DirectEntries,
		DirectFirst:   br.DirectFirst,
	}
	if c := t.Branch(br.Count); c != nil {
		b.Count = c.Name
	}
	if c := t.Branch(br.Count2); c != nil {
		b.Count2 = c.Name
	}
	if br.Direct != nil {
		b.Direct = base64.StdEncoding.EncodeToString(br.Direct)
	}
	for _, l := range br.Leaves {
		b.Leaves = append(b.Leaves, Leaf{Name: l.Name, Kind: l.Kind, Array: l.ArrayLen})
	}
	for _, bk := range br.Baskets {
		b.Baskets = append(b.Baskets, Basket{
			Seek:    bk.Seek,
			Bytes:   bk.Bytes,
			ObjLen:  bk.ObjLen,
			Entry:   bk.FirstEntry,
			Entries: bk.Entries,
		})
	}
	for _, child := range t.Children(br) {
		b.Branches = append(b.Branches, describe(t, child))
	}
	return b
}

// Marshal encodes d as YAML.
func (d *Descriptor) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}
