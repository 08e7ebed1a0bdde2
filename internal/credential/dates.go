package credential

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/credtrust/internal/model"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses a declared calendar date
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", model.ErrUnparsableDate, s)
}

// CheckDates compares the issuance and convocation dates. DeltaDays is the
// floor of the whole days from issuance to convocation; a negative delta
// flags convocation_before_issuance.
func CheckDates(issuance, convocation string) model.DateCheck {
	check := model.DateCheck{
		IssuanceDate:    strings.TrimSpace(issuance),
		ConvocationDate: strings.TrimSpace(convocation),
	}
	if check.IssuanceDate == "" || check.ConvocationDate == "" {
		check.CheckStatus = model.Skipped(model.ReasonNoData)
		return check
	}

	iss, err := ParseDate(check.IssuanceDate)
	if err != nil {
		check.CheckStatus = model.Degraded(model.ReasonParseError, fmt.Errorf("issuance: %w", err))
		return check
	}
	conv, err := ParseDate(check.ConvocationDate)
	if err != nil {
		check.CheckStatus = model.Degraded(model.ReasonParseError, fmt.Errorf("convocation: %w", err))
		return check
	}

	days := int(math.Floor(conv.Sub(iss).Hours() / 24))
	check.DeltaDays = &days
	if days < 0 {
		check.Issue = model.IssueConvocationBeforeIssuance
	}
	check.CheckStatus = model.OK()
	return check
}
