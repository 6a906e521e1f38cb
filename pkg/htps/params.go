package htps

// PolicyType selects the policy kernel used by compute_policy.
type PolicyType int

const (
	AlphaZero PolicyType = iota
	RPO
)

// QValueSolved selects the closed-form q used for tactics already in
// solving_tactics during compute_policy.
type QValueSolved int

const (
	OneOverCounts QValueSolved = iota
	CountOverCounts
	One
	OneOverVirtualCounts
	OneOverCountsNoFPU
	CountOverCountsNoFPU
)

// Metric selects which quantity "minimum proof" extraction minimises.
type Metric int

const (
	Depth Metric = iota
	Size
	Time
)

// NodeMask gates which nodes may emit a tactic sample.
type NodeMask int

const (
	NoMask NodeMask = iota
	Solving
	Proof
	MinimalProof
	// MinimalProofSolving resolves to MinimalProof if the root is proven,
	// else Solving.
	MinimalProofSolving
)

// InProof records the strongest proof-membership claim a node satisfies.
type InProof int

const (
	NotInProof InProof = iota
	IsInProof
	InMinimalProof
)

// Params is the full set of tunables driving policy, backup, sample
// extraction and stopping.
type Params struct {
	Exploration float64
	PolicyType  PolicyType

	NumExpansions  int
	SuccExpansions int

	EarlyStopping                         bool
	EarlyStoppingSolvedIfRootNotProven     bool
	NoCritic                               bool
	BackupOnce                             bool
	BackupOneForSolved                     bool
	DepthPenalty                          float64

	CountThreshold    int
	TacticPThreshold  float64

	TacticSampleQConditioning bool
	OnlyLearnBestTactics      bool
	TacticInitValue           float64
	QValueSolved              QValueSolved

	PolicyTemperature float64
	Metric            Metric
	NodeMask          NodeMask

	EffectSubsamplingRate float64
	CriticSubsamplingRate float64

	VirtualLoss int
}

// DefaultParams mirrors the field defaults a fresh run would reasonably
// ship with; every field remains caller-settable via SetParams.
func DefaultParams() Params {
	return Params{
		Exploration:                        1.0,
		PolicyType:                         AlphaZero,
		NumExpansions:                      1000,
		SuccExpansions:                     8,
		EarlyStopping:                      true,
		EarlyStoppingSolvedIfRootNotProven: true,
		NoCritic:                           false,
		BackupOnce:                         false,
		BackupOneForSolved:                 false,
		DepthPenalty:                       1.0,
		CountThreshold:                     10,
		TacticPThreshold:                   0.0,
		TacticSampleQConditioning:          false,
		OnlyLearnBestTactics:               false,
		TacticInitValue:                    0.0,
		QValueSolved:                       OneOverCounts,
		PolicyTemperature:                  0.0,
		Metric:                             Depth,
		NodeMask:                           NoMask,
		EffectSubsamplingRate:              1.0,
		CriticSubsamplingRate:              1.0,
		VirtualLoss:                        1,
	}
}

// resolvedNodeMask lowers MinimalProofSolving to a concrete mask given
// whether the root is currently proven.
func (p Params) resolvedNodeMask(proven bool) NodeMask {
	if p.NodeMask != MinimalProofSolving {
		return p.NodeMask
	}
	if proven {
		return MinimalProof
	}
	return Solving
}
