// Package catalog reads tree descriptors: YAML documents that list the
// branches of a tree, where their baskets live and the class layouts of
// streamed objects.
package catalog

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/brimdata/arbor/basket"
	"github.com/brimdata/arbor/member"
	"github.com/brimdata/arbor/pkg/storage"
	"github.com/brimdata/arbor/tree"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrNoCounter = errors.New("counter branch not found")

// Catalog is a loaded descriptor.  It serves class layouts to the
// decoders of its tree.
type Catalog struct {
	Tree *tree.Tree
	// Data locates the object holding the baskets.  It is nil when every
	// branch carries its entries directly.
	Data    *storage.URI
	classes map[string][]*member.Layout
}

var _ member.Registry = (*Catalog)(nil)

// Load reads the descriptor at u.  A relative data reference is resolved
// against u.
func Load(ctx context.Context, engine storage.Engine, u *storage.URI) (c *Catalog, err error) {
	size, err := engine.Size(ctx, u)
	if err != nil {
		return nil, err
	}
	r, err := engine.Get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, r.Close())
	}()
	b := make([]byte, size)
	if err := storage.ReadAt(r, b, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	c, err = Parse(b, u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u, err)
	}
	return c, nil
}

// Parse builds a catalog from descriptor text.  base, which may be nil,
// anchors a relative data reference.
func Parse(b []byte, base *storage.URI) (*Catalog, error) {
	var d Descriptor
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return d.Catalog(base)
}

// Catalog builds the tree and layouts described by d.
func (d *Descriptor) Catalog(base *storage.URI) (*Catalog, error) {
	if d.Tree == "" {
		return nil, errors.New("descriptor has no tree name")
	}
	c := &Catalog{classes: make(map[string][]*member.Layout)}
	if d.Data != "" {
		var err error
		if base != nil && !base.IsZero() {
			c.Data, err = base.Resolve(d.Data)
		} else {
			c.Data, err = storage.ParseURI(d.Data)
		}
		if err != nil {
			return nil, fmt.Errorf("data %q: %w", d.Data, err)
		}
	}
	for _, cl := range d.Classes {
		l, err := cl.layout()
		if err != nil {
			return nil, err
		}
		c.classes[l.Class] = append(c.classes[l.Class], l)
	}
	b := tree.NewBuilder(d.Tree, d.Entries)
	counters := make(map[tree.BranchID][2]string)
	if err := addBranches(b, tree.NoBranch, d.Branches, counters); err != nil {
		return nil, err
	}
	for id, names := range counters {
		br := b.Branch(id)
		for k, name := range names {
			if name == "" {
				continue
			}
			cnt := b.Lookup(name)
			if cnt == nil {
				return nil, fmt.Errorf("branch %q: %w: %q", br.Name, ErrNoCounter, name)
			}
			if k == 0 {
				br.Count = cnt.ID
			} else {
				br.Count2 = cnt.ID
			}
		}
	}
	t, err := b.Build()
	if err != nil {
		return nil, err
	}
	c.Tree = t
	return c, nil
}

func addBranches(b *tree.Builder, parent tree.BranchID, list []Branch, counters map[tree.BranchID][2]string) error {
	for _, db := range list {
		br, err := db.branch()
		if err != nil {
			return err
		}
		added := b.Add(parent, br)
		added.Count, added.Count2 = tree.NoBranch, tree.NoBranch
		if db.Count != "" || db.Count2 != "" {
			counters[added.ID] = [2]string{db.Count, db.Count2}
		}
		if err := addBranches(b, added.ID, db.Branches, counters); err != nil {
			return err
		}
	}
	return nil
}

// Layout returns the layout of class.  A zero version or checksum
// matches any layout of the class.
func (c *Catalog) Layout(class string, version int, checksum uint32) (*member.Layout, error) {
	for _, l := range c.classes[class] {
		if (version == 0 || l.Version == version) && (checksum == 0 || l.Checksum == checksum) {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s version %d checksum %#x", member.ErrNoLayout, class, version, checksum)
}

// Classes returns the names of the classes with a layout.
func (c *Catalog) Classes() []string {
	names := make([]string, 0, len(c.classes))
	for name := range c.classes {
		names = append(names, name)
	}
	return names
}

// Open returns a fetcher for the tree's baskets.  A catalog without data
// gets a fetcher that only holds direct entries.
func (c *Catalog) Open(ctx context.Context, engine storage.Engine, logger *zap.Logger, metrics *basket.Metrics) (basket.Fetcher, func() error, error) {
	if c.Data == nil {
		return basket.NewMemory(c.Tree, nil), func() error { return nil }, nil
	}
	f, err := basket.NewStorageFetcher(ctx, engine, c.Data, c.Tree, logger, metrics)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func decodeDirect(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
