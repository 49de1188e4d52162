package catalogs

// Classification is the read-only view of block hazards the teleport resolver
// consults. It is built once from a BlockCatalog and never mutated.
type Classification struct {
	defs map[string]BlockDef
}

func (c BlockCatalog) Classification() Classification {
	defs := make(map[string]BlockDef, len(c.Defs))
	for id, d := range c.Defs {
		defs[id] = d
	}
	return Classification{defs: defs}
}

func (c Classification) def(material string) (BlockDef, bool) {
	d, ok := c.defs[material]
	return d, ok
}

// Unknown materials are treated as solid, suffocating and not passable.

func (c Classification) Damaging(material string) bool {
	d, ok := c.def(material)
	return ok && d.Damaging
}

func (c Classification) NonSuffocating(material string) bool {
	d, ok := c.def(material)
	return ok && d.NonSuffocating
}

func (c Classification) Passable(material string) bool {
	d, ok := c.def(material)
	return ok && d.Passable
}

func (c Classification) Solid(material string) bool {
	d, ok := c.def(material)
	if !ok {
		return true
	}
	return d.Solid
}

func (c Classification) IsAir(material string) bool {
	return c.HasTag(material, TagAir)
}

func (c Classification) HasTag(material, tag string) bool {
	d, ok := c.def(material)
	return ok && d.HasTag(tag)
}

func DefaultClassification() Classification {
	return Defaults().Blocks.Classification()
}
