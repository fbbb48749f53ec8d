package mesher

// Options controls opaque extraction.
type Options struct {
	// Centered shifts positions by half the volume extents so the mesh is
	// centered on the origin. Chunk volumes leave this off and are placed by
	// the caller.
	Centered bool `yaml:"centered"`

	// DisableGreedyMeshing emits every visible face as its own unit quad.
	// The covered surface is identical to the merged output.
	DisableGreedyMeshing bool `yaml:"disable_greedy_meshing"`

	// DisableAO skips occlusion sampling; every corner gets strength 1.
	DisableAO bool `yaml:"disable_ao"`

	// Stitch keeps the cells on each slice border as unit quads so the
	// mesh can meet a neighboring chunk without T-junctions.
	Stitch bool `yaml:"stitch"`
}

// WaterOptions controls the liquid pass.
type WaterOptions struct {
	Centered bool `yaml:"centered"`
}
