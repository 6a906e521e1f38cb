// Package config loads a search configuration (root goal + parameters) from
// YAML, the way a CLI-driven run needs to but the core htps library
// deliberately has no opinion about (construction of Params and the root
// Goal is left entirely to the caller).
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/proofsearch/htps/pkg/htps"
)

// HypothesisSpec is the YAML shape of one hypothesis.
type HypothesisSpec struct {
	Identifier string `yaml:"identifier"`
	Type       string `yaml:"type"`
}

// GoalSpec is the YAML shape of the root goal.
type GoalSpec struct {
	Conclusion  string           `yaml:"conclusion"`
	Hypotheses  []HypothesisSpec `yaml:"hypotheses"`
	Namespaces  []string         `yaml:"namespaces"`
}

// ParamsSpec is the YAML shape of htps.Params; string enum members are
// resolved against their names so config files stay readable instead of
// listing raw integers.
type ParamsSpec struct {
	Exploration    float64 `yaml:"exploration"`
	PolicyType     string  `yaml:"policy_type"`
	NumExpansions  int     `yaml:"num_expansions"`
	SuccExpansions int     `yaml:"succ_expansions"`

	// Pointers distinguish "key absent from YAML" from "explicitly false",
	// since a plain bool unmarshals a missing key to its zero value and
	// would otherwise silently clobber DefaultParams()'s true defaults.
	EarlyStopping                      *bool `yaml:"early_stopping"`
	EarlyStoppingSolvedIfRootNotProven *bool `yaml:"early_stopping_solved_if_root_not_proven"`
	NoCritic                           *bool `yaml:"no_critic"`
	BackupOnce                         *bool `yaml:"backup_once"`
	BackupOneForSolved                 *bool `yaml:"backup_one_for_solved"`
	DepthPenalty                       float64 `yaml:"depth_penalty"`

	CountThreshold   int     `yaml:"count_threshold"`
	TacticPThreshold float64 `yaml:"tactic_p_threshold"`

	TacticSampleQConditioning *bool   `yaml:"tactic_sample_q_conditioning"`
	OnlyLearnBestTactics      *bool   `yaml:"only_learn_best_tactics"`
	TacticInitValue           float64 `yaml:"tactic_init_value"`
	QValueSolved              string  `yaml:"q_value_solved"`

	PolicyTemperature float64 `yaml:"policy_temperature"`
	Metric            string  `yaml:"metric"`
	NodeMask          string  `yaml:"node_mask"`

	EffectSubsamplingRate float64 `yaml:"effect_subsampling_rate"`
	CriticSubsamplingRate float64 `yaml:"critic_subsampling_rate"`

	VirtualLoss int `yaml:"virtual_loss"`
}

// File is the top-level YAML document: a root goal plus search parameters.
type File struct {
	Goal   GoalSpec   `yaml:"goal"`
	Params ParamsSpec `yaml:"params"`
}

// Load reads and decodes a config file from path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing config %q", path)
	}
	return &f, nil
}

// BuildGoal builds an *htps.Goal from the decoded spec.
func (f *File) BuildGoal() *htps.Goal {
	hyps := make([]htps.Hypothesis, len(f.Goal.Hypotheses))
	for i, h := range f.Goal.Hypotheses {
		hyps[i] = htps.Hypothesis{Identifier: h.Identifier, Type: h.Type}
	}
	g := htps.NewGoal(f.Goal.Conclusion, hyps)
	if len(f.Goal.Namespaces) > 0 {
		g = g.WithContext(&htps.Context{Namespaces: f.Goal.Namespaces})
	}
	return g
}

// BuildParams builds an htps.Params, starting from htps.DefaultParams() and
// overriding every field the YAML document sets to a non-zero value (for
// booleans, to any explicit value). tactic_p_threshold, tactic_init_value
// and policy_temperature are always taken from the document, so a missing
// key sets them to 0.
func (f *File) BuildParams() (htps.Params, error) {
	p := htps.DefaultParams()
	ps := f.Params

	if ps.Exploration != 0 {
		p.Exploration = ps.Exploration
	}
	if ps.PolicyType != "" {
		pt, err := parsePolicyType(ps.PolicyType)
		if err != nil {
			return p, err
		}
		p.PolicyType = pt
	}
	if ps.NumExpansions != 0 {
		p.NumExpansions = ps.NumExpansions
	}
	if ps.SuccExpansions != 0 {
		p.SuccExpansions = ps.SuccExpansions
	}
	if ps.EarlyStopping != nil {
		p.EarlyStopping = *ps.EarlyStopping
	}
	if ps.EarlyStoppingSolvedIfRootNotProven != nil {
		p.EarlyStoppingSolvedIfRootNotProven = *ps.EarlyStoppingSolvedIfRootNotProven
	}
	if ps.NoCritic != nil {
		p.NoCritic = *ps.NoCritic
	}
	if ps.BackupOnce != nil {
		p.BackupOnce = *ps.BackupOnce
	}
	if ps.BackupOneForSolved != nil {
		p.BackupOneForSolved = *ps.BackupOneForSolved
	}
	if ps.DepthPenalty != 0 {
		p.DepthPenalty = ps.DepthPenalty
	}
	if ps.CountThreshold != 0 {
		p.CountThreshold = ps.CountThreshold
	}
	p.TacticPThreshold = ps.TacticPThreshold
	if ps.TacticSampleQConditioning != nil {
		p.TacticSampleQConditioning = *ps.TacticSampleQConditioning
	}
	if ps.OnlyLearnBestTactics != nil {
		p.OnlyLearnBestTactics = *ps.OnlyLearnBestTactics
	}
	p.TacticInitValue = ps.TacticInitValue
	if ps.QValueSolved != "" {
		qv, err := parseQValueSolved(ps.QValueSolved)
		if err != nil {
			return p, err
		}
		p.QValueSolved = qv
	}
	p.PolicyTemperature = ps.PolicyTemperature
	if ps.Metric != "" {
		m, err := parseMetric(ps.Metric)
		if err != nil {
			return p, err
		}
		p.Metric = m
	}
	if ps.NodeMask != "" {
		nm, err := parseNodeMask(ps.NodeMask)
		if err != nil {
			return p, err
		}
		p.NodeMask = nm
	}
	if ps.EffectSubsamplingRate != 0 {
		p.EffectSubsamplingRate = ps.EffectSubsamplingRate
	}
	if ps.CriticSubsamplingRate != 0 {
		p.CriticSubsamplingRate = ps.CriticSubsamplingRate
	}
	if ps.VirtualLoss != 0 {
		p.VirtualLoss = ps.VirtualLoss
	}
	return p, nil
}

func parsePolicyType(s string) (htps.PolicyType, error) {
	switch s {
	case "AlphaZero":
		return htps.AlphaZero, nil
	case "RPO":
		return htps.RPO, nil
	default:
		return 0, errors.Errorf("unknown policy_type %q", s)
	}
}

func parseQValueSolved(s string) (htps.QValueSolved, error) {
	switch s {
	case "OneOverCounts":
		return htps.OneOverCounts, nil
	case "CountOverCounts":
		return htps.CountOverCounts, nil
	case "One":
		return htps.One, nil
	case "OneOverVirtualCounts":
		return htps.OneOverVirtualCounts, nil
	case "OneOverCountsNoFPU":
		return htps.OneOverCountsNoFPU, nil
	case "CountOverCountsNoFPU":
		return htps.CountOverCountsNoFPU, nil
	default:
		return 0, errors.Errorf("unknown q_value_solved %q", s)
	}
}

func parseMetric(s string) (htps.Metric, error) {
	switch s {
	case "Depth":
		return htps.Depth, nil
	case "Size":
		return htps.Size, nil
	case "Time":
		return htps.Time, nil
	default:
		return 0, errors.Errorf("unknown metric %q", s)
	}
}

func parseNodeMask(s string) (htps.NodeMask, error) {
	switch s {
	case "NoMask":
		return htps.NoMask, nil
	case "Solving":
		return htps.Solving, nil
	case "Proof":
		return htps.Proof, nil
	case "MinimalProof":
		return htps.MinimalProof, nil
	case "MinimalProofSolving":
		return htps.MinimalProofSolving, nil
	default:
		return 0, errors.Errorf("unknown node_mask %q", s)
	}
}
