// Package registry answers read-only questions against the trusted dataset:
// institution matching, serial lookup and accreditation.
package registry

import (
	"fmt"
	"strings"

	"github.com/ppiankov/credtrust/internal/fuzzy"
	"github.com/ppiankov/credtrust/internal/model"
)

// Options name the registry columns the checks rely on
type Options struct {
	CodeColumn            string
	SerialColumn          string
	InstituteColumn       string
	MatchThreshold        int
	AccreditationKeywords []string
}

// OptionsFromConfig builds Options from the registry configuration
func OptionsFromConfig(cfg model.RegistryConfig) Options {
	return Options{
		CodeColumn:            cfg.CodeColumn,
		SerialColumn:          cfg.SerialColumn,
		InstituteColumn:       cfg.InstituteColumn,
		MatchThreshold:        cfg.MatchThreshold,
		AccreditationKeywords: cfg.AccreditationKeywords,
	}
}

func (o Options) withDefaults() Options {
	def := model.DefaultConfig().Registry
	if o.CodeColumn == "" {
		o.CodeColumn = def.CodeColumn
	}
	if o.SerialColumn == "" {
		o.SerialColumn = def.SerialColumn
	}
	if o.InstituteColumn == "" {
		o.InstituteColumn = def.InstituteColumn
	}
	if o.MatchThreshold <= 0 {
		o.MatchThreshold = def.MatchThreshold
	}
	if o.AccreditationKeywords == nil {
		o.AccreditationKeywords = def.AccreditationKeywords
	}
	return o
}

// Index wraps a loaded registry. A nil or empty registry is valid and
// makes every check report registry_unavailable.
type Index struct {
	data *model.Registry
	opts Options

	nameColumns []string
}

// New creates an Index over data
func New(data *model.Registry, opts Options) *Index {
	idx := &Index{data: data, opts: opts.withDefaults()}
	idx.nameColumns = candidateColumns(data)
	return idx
}

// Loaded reports whether a registry with rows is available
func (i *Index) Loaded() bool {
	return i != nil && i.data.Loaded()
}

// Size returns the number of registry rows
func (i *Index) Size() int {
	if !i.Loaded() {
		return 0
	}
	return len(i.data.Records)
}

// candidateColumns returns the name-bearing headers, or all headers when none qualify
func candidateColumns(data *model.Registry) []string {
	if data == nil {
		return nil
	}
	var cols []string
	for _, c := range data.Columns {
		lower := strings.ToLower(c)
		if strings.Contains(lower, "institute") || strings.Contains(lower, "name") {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		cols = append(cols, data.Columns...)
	}
	return cols
}

// Match finds the registry row best matching the claimed name. An exact
// code match wins over any fuzzy score. The first row wins ties.
func (i *Index) Match(name, code string) model.RegistryMatch {
	if !i.Loaded() {
		return model.RegistryMatch{CheckStatus: model.Degraded(model.ReasonRegistryUnavailable, model.ErrRegistryUnavailable)}
	}

	result := model.RegistryMatch{CheckStatus: model.OK()}

	bestScore := 0
	bestRow := -1
	bestCol := ""
	if strings.TrimSpace(name) != "" {
		for r, rec := range i.data.Records {
			for _, col := range i.nameColumns {
				val, _ := rec.Get(col)
				if s := fuzzy.TokenSetRatio(name, val); s > bestScore {
					bestScore = s
					bestRow = r
					bestCol = col
				}
			}
		}
	}

	code = strings.TrimSpace(code)
	if codeCol, ok := i.data.Column(i.opts.CodeColumn); ok && code != "" {
		for r, rec := range i.data.Records {
			val, _ := rec.Get(codeCol)
			if strings.EqualFold(strings.TrimSpace(val), code) {
				bestScore = 100
				bestRow = r
				bestCol = codeCol
				result.ByCode = true
				break
			}
		}
	}

	result.Score = bestScore
	result.Column = bestCol
	if bestRow >= 0 {
		rec := i.data.Records[bestRow]
		result.Record = &rec
	}
	result.Found = bestScore >= i.opts.MatchThreshold
	return result
}

// LookupSerial returns every row whose serial column equals serial exactly
func (i *Index) LookupSerial(serial string) model.SerialCheck {
	serial = strings.TrimSpace(serial)
	check := model.SerialCheck{Serial: serial}

	if serial == "" {
		check.CheckStatus = model.Skipped(model.ReasonNoData)
		return check
	}
	if !i.Loaded() {
		check.CheckStatus = model.Degraded(model.ReasonRegistryUnavailable, model.ErrRegistryUnavailable)
		return check
	}

	col, ok := i.data.Column(i.opts.SerialColumn)
	if !ok {
		check.CheckStatus = model.Degraded(model.ReasonUnavailable,
			fmt.Errorf("registry has no %q column", i.opts.SerialColumn))
		return check
	}

	for _, rec := range i.data.Records {
		val, _ := rec.Get(col)
		if strings.TrimSpace(val) == serial {
			check.Rows = append(check.Rows, rec)
		}
	}

	check.CheckStatus = model.OK()
	check.Count = len(check.Rows)
	check.Found = check.Count > 0
	check.Reused = check.Count > 1
	return check
}

// CheckAccreditation tests a declared accreditation statement against the
// rows whose institute column contains issuer. OK stays nil when the
// result cannot be determined.
func (i *Index) CheckAccreditation(issuer, statement string) model.AccreditationCheck {
	statement = strings.TrimSpace(statement)
	issuer = strings.TrimSpace(issuer)
	check := model.AccreditationCheck{Statement: statement}

	if statement == "" {
		check.CheckStatus = model.Skipped(model.ReasonNoData)
		return check
	}
	if !i.Loaded() {
		check.CheckStatus = model.Degraded(model.ReasonRegistryUnavailable, model.ErrRegistryUnavailable)
		return check
	}
	if issuer == "" {
		check.CheckStatus = model.Skipped(model.ReasonNoData)
		return check
	}

	col, ok := i.data.Column(i.opts.InstituteColumn)
	if !ok {
		check.CheckStatus = model.Degraded(model.ReasonUnavailable,
			fmt.Errorf("registry has no %q column", i.opts.InstituteColumn))
		return check
	}

	lowerIssuer := strings.ToLower(issuer)
	lowerStatement := strings.ToLower(statement)
	accredited := false

	for _, rec := range i.data.Records {
		val, _ := rec.Get(col)
		if !strings.Contains(strings.ToLower(val), lowerIssuer) {
			continue
		}
		check.Candidates++

		combined := strings.ToLower(rec.Joined())
		term := ""
		if strings.Contains(combined, lowerStatement) {
			term = statement
		} else {
			for _, kw := range i.opts.AccreditationKeywords {
				if strings.Contains(combined, strings.ToLower(kw)) {
					term = kw
					break
				}
			}
		}
		if term != "" {
			accredited = true
			row := rec.Index
			check.MatchedRow = &row
			check.MatchedTerm = term
			break
		}
	}

	check.CheckStatus = model.OK()
	check.OK = &accredited
	return check
}
