package catalogs

// Block tags used by the teleport resolver.
const (
	TagAir      = "AIR"
	TagWallSign = "WALL_SIGN"
	TagSlab     = "SLAB"
	TagStairs   = "STAIRS"
	TagLeaves   = "LEAVES"
)

var dyeColors = []string{
	"WHITE", "ORANGE", "MAGENTA", "LIGHT_BLUE", "YELLOW", "LIME", "PINK", "GRAY",
	"LIGHT_GRAY", "CYAN", "PURPLE", "BLUE", "BROWN", "GREEN", "RED", "BLACK",
}

var woodTypes = []string{
	"OAK", "SPRUCE", "BIRCH", "JUNGLE", "ACACIA", "DARK_OAK", "MANGROVE", "CHERRY",
}

// DefaultBlocks is the built-in block table. Damaging and non-suffocating
// flags follow the in-game hazards shops are usually built around.
func DefaultBlocks() []BlockDef {
	var defs []BlockDef
	add := func(d BlockDef) { defs = append(defs, d) }

	for _, id := range []string{"AIR", "CAVE_AIR", "VOID_AIR"} {
		add(BlockDef{ID: id, Passable: true, NonSuffocating: id == "AIR", Tags: []string{TagAir}})
	}

	for _, id := range []string{
		"STONE", "DIRT", "GRASS_BLOCK", "SAND", "GRAVEL", "COBBLESTONE", "BEDROCK",
		"GLASS", "CHEST", "BARRIER", "BRICKS", "SANDSTONE", "OBSIDIAN", "NETHERRACK",
	} {
		add(BlockDef{ID: id, Solid: true})
	}
	for _, w := range woodTypes {
		add(BlockDef{ID: w + "_PLANKS", Solid: true})
		add(BlockDef{ID: w + "_LOG", Solid: true})
		add(BlockDef{ID: w + "_LEAVES", Solid: true, NonSuffocating: true, Tags: []string{TagLeaves}})
		add(BlockDef{ID: w + "_SLAB", Solid: true, NonSuffocating: true, Tags: []string{TagSlab}})
		add(BlockDef{ID: w + "_STAIRS", Solid: true, NonSuffocating: true, Tags: []string{TagStairs}})
		add(BlockDef{ID: w + "_WALL_SIGN", Passable: true, NonSuffocating: true, Tags: []string{TagWallSign}})
		add(BlockDef{ID: w + "_SIGN", Passable: true})
	}
	for _, id := range []string{"STONE_SLAB", "COBBLESTONE_SLAB", "SANDSTONE_SLAB", "BRICK_SLAB"} {
		add(BlockDef{ID: id, Solid: true, NonSuffocating: true, Tags: []string{TagSlab}})
	}
	for _, id := range []string{"STONE_STAIRS", "COBBLESTONE_STAIRS", "SANDSTONE_STAIRS", "BRICK_STAIRS"} {
		add(BlockDef{ID: id, Solid: true, NonSuffocating: true, Tags: []string{TagStairs}})
	}
	for _, id := range []string{"AZALEA_LEAVES", "FLOWERING_AZALEA_LEAVES"} {
		add(BlockDef{ID: id, Solid: true, NonSuffocating: true, Tags: []string{TagLeaves}})
	}
	for _, c := range dyeColors {
		add(BlockDef{ID: c + "_STAINED_GLASS", Solid: true, NonSuffocating: true})
		add(BlockDef{ID: c + "_STAINED_GLASS_PANE", Solid: true, NonSuffocating: true})
	}
	for _, id := range []string{
		"HONEY_BLOCK", "BELL", "HOPPER", "COMPOSTER", "GRINDSTONE", "STONECUTTER",
		"IRON_BARS", "END_PORTAL_FRAME", "PISTON_HEAD",
	} {
		add(BlockDef{ID: id, Solid: true, NonSuffocating: true})
	}

	// Hazards.
	for _, id := range []string{"CACTUS", "CAMPFIRE", "SOUL_CAMPFIRE", "MAGMA_BLOCK"} {
		add(BlockDef{ID: id, Solid: true, Damaging: true})
	}
	for _, id := range []string{"LAVA", "FIRE", "SOUL_FIRE", "SWEET_BERRY_BUSH", "WITHER_ROSE", "END_PORTAL"} {
		add(BlockDef{ID: id, Passable: true, Damaging: true})
	}

	// Decorations a player walks through.
	for _, id := range []string{"WATER", "SHORT_GRASS", "TALL_GRASS", "TORCH", "DANDELION", "POPPY", "SNOW"} {
		add(BlockDef{ID: id, Passable: true})
	}
	return defs
}

// DefaultItems lists the tradeable item ids used when no items.json is present.
func DefaultItems() []ItemDef {
	var defs []ItemDef
	for _, id := range []string{
		"DIAMOND", "EMERALD", "IRON_INGOT", "GOLD_INGOT", "COPPER_INGOT", "NETHERITE_INGOT",
		"COAL", "REDSTONE", "LAPIS_LAZULI", "QUARTZ", "AMETHYST_SHARD",
	} {
		defs = append(defs, ItemDef{ID: id, Kind: "MATERIAL"})
	}
	for _, id := range []string{
		"DIAMOND_SWORD", "DIAMOND_PICKAXE", "IRON_PICKAXE", "NETHERITE_SWORD", "ELYTRA", "SHIELD",
	} {
		defs = append(defs, ItemDef{ID: id, Kind: "TOOL"})
	}
	for _, id := range []string{"BREAD", "APPLE", "GOLDEN_APPLE", "COOKED_BEEF", "CARROT"} {
		defs = append(defs, ItemDef{ID: id, Kind: "FOOD"})
	}
	for _, id := range []string{"STONE", "DIRT", "SAND", "GLASS", "OBSIDIAN", "OAK_LOG", "OAK_PLANKS", "CHEST", "HOPPER"} {
		defs = append(defs, ItemDef{ID: id, Kind: "BLOCK"})
	}
	defs = append(defs, ItemDef{ID: Placeholder, Kind: "MISC"})
	return defs
}
