package profile

import (
	"cmp"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"librarian/internal/config"
	"librarian/internal/language"
	"librarian/internal/logging"
	"librarian/internal/textutil"
)

// Config tunes the consensus rules.
type Config struct {
	AgreementSimilarity float64
	BonusTwo            int
	BonusThree          int
	BonusMany           int
	ConflictPenalty     int
	LowConfidence       int
	FieldWeights        map[Field]int
	SourceWeights       map[Source]int
}

// ConfigFromSettings converts the [consensus] config section.
func ConfigFromSettings(c config.Consensus) Config {
	out := Config{
		AgreementSimilarity: c.AgreementSimilarity,
		BonusTwo:            c.AgreementBonusTwo,
		BonusThree:          c.AgreementBonusThree,
		BonusMany:           c.AgreementBonusMany,
		ConflictPenalty:     c.ConflictPenalty,
		LowConfidence:       c.LowConfidence,
		FieldWeights:        make(map[Field]int, len(c.FieldWeights)),
		SourceWeights:       make(map[Source]int, len(c.SourceWeights)),
	}
	for name, w := range c.FieldWeights {
		if f, ok := ParseField(name); ok {
			out.FieldWeights[f] = w
		}
	}
	for name, w := range c.SourceWeights {
		out.SourceWeights[Source(strings.ToLower(strings.TrimSpace(name)))] = w
	}
	return out
}

// DefaultConfig returns the consensus defaults.
func DefaultConfig() Config {
	return ConfigFromSettings(config.Default().Consensus)
}

// Engine merges observations into profiles. It holds no per-book state and
// is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine constructs an engine.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "consensus"),
		now:    time.Now,
	}
}

// SourceWeight returns the configured weight for src.
func (e *Engine) SourceWeight(src Source) int {
	if w, ok := e.cfg.SourceWeights[src]; ok {
		return w
	}
	return DefaultSourceWeight(src)
}

// Merge folds observations into a copy of existing and returns it. The
// input profile is not modified. Incoming observations from a source
// replace that source's earlier claims about the same field, so applying
// the same layer result twice yields the same profile.
func (e *Engine) Merge(existing *BookProfile, observations []Observation) *BookProfile {
	result := existing.Clone()
	if result == nil {
		result = New()
	}
	if result.Fields == nil {
		result.Fields = make(map[Field]*FieldValue)
	}

	incoming := make(map[Field][]Observation)
	for _, obs := range observations {
		if err := obs.Validate(); err != nil {
			logging.WarnWithContext(e.logger, "dropping malformed observation", "observation_dropped",
				logging.String("field", string(obs.Field)),
				logging.String("source", string(obs.Source)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the extractor that produced this value"),
				logging.String(logging.FieldImpact, "observation ignored, remaining evidence merged"),
			)
			continue
		}
		obs.Value = strings.TrimSpace(obs.Value)
		if obs.Weight == 0 {
			obs.Weight = e.SourceWeight(obs.Source)
		}
		if obs.ObservedAt.IsZero() {
			obs.ObservedAt = e.now().UTC()
		}
		incoming[obs.Field] = append(incoming[obs.Field], obs)
	}

	for field, obs := range incoming {
		fv := result.Fields[field]
		if fv == nil {
			fv = &FieldValue{}
			result.Fields[field] = fv
		}
		if fv.Locked {
			continue
		}
		replaced := make(map[Source]struct{}, len(obs))
		for _, o := range obs {
			replaced[o.Source] = struct{}{}
		}
		kept := slices.DeleteFunc(fv.Observations, func(o Observation) bool {
			_, ok := replaced[o.Source]
			return ok
		})
		fv.Observations = append(kept, obs...)
	}

	for _, f := range AllFields {
		if fv := result.Fields[f]; fv != nil && !fv.Locked {
			e.resolve(f, fv)
		}
	}
	e.finalize(result)
	return result
}

// Lock pins the given field values as user observations at confidence 100.
func (e *Engine) Lock(existing *BookProfile, values map[Field]string) *BookProfile {
	result := existing.Clone()
	if result == nil {
		result = New()
	}
	if result.Fields == nil {
		result.Fields = make(map[Field]*FieldValue)
	}
	at := e.now().UTC()
	for _, obs := range Observe(SourceUser, e.SourceWeight(SourceUser), at, values) {
		if err := obs.Validate(); err != nil {
			continue
		}
		fv := result.Fields[obs.Field]
		if fv == nil {
			fv = &FieldValue{}
			result.Fields[obs.Field] = fv
		}
		fv.Observations = append(slices.DeleteFunc(fv.Observations, func(o Observation) bool {
			return o.Source == SourceUser
		}), obs)
		fv.Value = obs.Value
		fv.Confidence = 100
		fv.Sources = []Source{SourceUser}
		fv.Locked = true
	}
	result.AddLayer("user")
	e.finalize(result)
	return result
}

type cluster struct {
	key      string
	rep      Observation
	bySource map[Source]int
}

func (c *cluster) total() int {
	sum := 0
	for _, w := range c.bySource {
		sum += w
	}
	return sum
}

func (e *Engine) resolve(f Field, fv *FieldValue) {
	ordered := slices.Clone(fv.Observations)
	slices.SortStableFunc(ordered, func(a, b Observation) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		if c := b.ObservedAt.Compare(a.ObservedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Source, b.Source)
	})

	var clusters []*cluster
	var placeholders []Observation
	for _, o := range ordered {
		if IsPlaceholder(o.Value) {
			placeholders = append(placeholders, o)
			continue
		}
		key := fieldKey(f, o.Value)
		var target *cluster
		for _, c := range clusters {
			if c.key == key || (f.fuzzy() && textutil.NameSimilarity(c.rep.Value, o.Value) >= e.cfg.AgreementSimilarity) {
				target = c
				break
			}
		}
		if target == nil {
			target = &cluster{key: key, rep: o, bySource: make(map[Source]int)}
			clusters = append(clusters, target)
		}
		if o.Weight > target.bySource[o.Source] {
			target.bySource[o.Source] = o.Weight
		}
	}

	if len(clusters) == 0 {
		fv.Confidence = 0
		fv.Value = ""
		fv.Sources = nil
		if len(placeholders) > 0 {
			fv.Value = placeholders[0].Value
			fv.Sources = []Source{placeholders[0].Source}
		}
		return
	}

	winner := clusters[0]
	for _, c := range clusters[1:] {
		if c.total() > winner.total() || (c.total() == winner.total() && c.rep.Weight > winner.rep.Weight) {
			winner = c
		}
	}

	base := min(winner.rep.Weight, 100)
	confidence := base
	agreeing := len(winner.bySource)
	switch {
	case agreeing >= 4:
		confidence += e.cfg.BonusMany
	case agreeing == 3:
		confidence += e.cfg.BonusThree
	case agreeing == 2:
		confidence += e.cfg.BonusTwo
	}
	confidence = min(confidence, 100)
	confidence -= (len(clusters) - 1) * e.cfg.ConflictPenalty
	if agreeing >= 2 {
		// an agreed value always outscores its strongest source alone
		confidence = max(confidence, min(base+1, 100))
	}
	fv.Confidence = max(confidence, 0)

	fv.Value = winner.rep.Value
	if f.numeric() {
		fv.Value = winner.key
	}
	sources := make([]Source, 0, len(winner.bySource))
	for src := range winner.bySource {
		sources = append(sources, src)
	}
	slices.Sort(sources)
	fv.Sources = sources
}

func (e *Engine) finalize(p *BookProfile) {
	var weighted, total int
	for _, f := range AllFields {
		fv := p.Fields[f]
		if fv == nil || fv.Value == "" {
			continue
		}
		w := e.cfg.FieldWeights[f]
		if w <= 0 {
			continue
		}
		weighted += fv.Confidence * w
		total += w
	}
	p.confidence = 0
	if total > 0 {
		p.confidence = int(math.Round(float64(weighted) / float64(total)))
	}
	if p.confidence < e.cfg.LowConfidence {
		p.AddIssue(IssueLowConfidence)
	} else {
		p.RemoveIssue(IssueLowConfidence)
	}
	p.UpdatedAt = e.now().UTC()
}

// fieldKey is the equality key used to cluster values of f.
func fieldKey(f Field, value string) string {
	switch {
	case f.numeric():
		trimmed := strings.TrimLeft(strings.TrimSpace(value), "#")
		if n, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64); err == nil {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
	case f == FieldLanguage:
		if code := language.ToISO2(value); code != "" {
			return code
		}
	}
	return textutil.Normalize(value)
}
