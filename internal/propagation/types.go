package propagation

import "github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"

// Keyframe holds the positions of all bodies at a single simulated time.
// It is the hand-off point for anything that renders or exports positions.
type Keyframe struct {
	Hours    float64        `json:"hours"`
	Revision uint64         `json:"revision"`
	Bodies   []BodyPosition `json:"bodies"`
}

// BodyPosition is one body's scene-space position at a keyframe time.
type BodyPosition struct {
	Name     string       `json:"name"`
	Kind     catalog.Kind `json:"kind"`
	Position [3]float64   `json:"position"`
}

// PropConfig holds propagation configuration.
type PropConfig struct {
	Workers   int // worker pool size for keyframe batches (default: runtime.NumCPU())
	MaxFrames int // upper bound on frames per GenerateKeyframes call
}
