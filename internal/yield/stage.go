package yield

// Stage is a step of a yield calculation.
type Stage int

const (
	StageIdle Stage = iota
	StageBuildSystem
	StageComputeShadowed
	StageComputeUnshadowed
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageBuildSystem:
		return "build_system"
	case StageComputeShadowed:
		return "compute_shadowed"
	case StageComputeUnshadowed:
		return "compute_unshadowed"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}
