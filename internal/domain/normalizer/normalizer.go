// Package normalizer converts source-specific raw records into Candidates.
//
// It is the only package that knows per-source field names. Required fields
// (id, date, amount) must parse or the record is rejected with a
// *candidate.ValidationError; everything else is best effort.
package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order for string dates
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02.01.2006",
	"20060102",
}

// minReferenceLength is the shortest free-text token treated as a reference
const minReferenceLength = 5

// Normalizer shapes raw records into candidates
type Normalizer struct {
	defaultCurrency string
}

// New creates a normalizer. defaultCurrency applies to records that carry
// no currency field.
func New(defaultCurrency string) *Normalizer {
	return &Normalizer{defaultCurrency: strings.ToUpper(defaultCurrency)}
}

// Normalize converts one raw record into a Candidate
func (n *Normalizer) Normalize(raw store.RawRecord) (*candidate.Candidate, error) {
	fs, ok := sourceFields[raw.Source]
	if !ok {
		return nil, &candidate.ValidationError{Source: raw.Source, Field: "source", Reason: "is not supported"}
	}

	invalid := func(id, field, reason string) error {
		return &candidate.ValidationError{Source: raw.Source, RecordID: id, Field: field, Reason: reason}
	}

	id := firstString(raw.Fields, fs.id)
	if id == "" {
		return nil, invalid("", "id", "is missing")
	}

	rawDate, _, found := first(raw.Fields, fs.date)
	if !found {
		return nil, invalid(id, "date", "is missing")
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, invalid(id, "date", err.Error())
	}

	amount, err := n.amount(raw.Fields, fs)
	if err != nil {
		return nil, invalid(id, "amount", err.Error())
	}

	c := &candidate.Candidate{
		ID:         id,
		Source:     raw.Source,
		Date:       date,
		Amount:     amount,
		Currency:   n.currency(raw.Fields, fs),
		Identity:   identity(raw.Fields, fs),
		GroupKey:   firstString(raw.Fields, fs.groupKey),
		References: references(raw.Fields, fs),
		Metadata:   copyFields(raw.Fields),
		State:      raw.State,
		Link:       raw.Link,
	}
	if c.State == "" {
		c.State = candidate.StateUnreconciled
	}

	for _, name := range fs.netAmount {
		if v, ok := raw.Fields[name]; ok && v != nil {
			if net, err := parseAmount(v); err == nil {
				c.NetAmount = &net
				break
			}
		}
	}
	for _, name := range fs.settlementDate {
		if v, ok := raw.Fields[name]; ok && v != nil {
			if d, err := parseDate(v); err == nil {
				c.SettlementDate = &d
				break
			}
		}
	}

	c.Flow = flow(c, raw.Fields, fs)

	return c, nil
}

// Identify extracts the record id and, when parseable, its date. Loaders use
// it to key records that may later fail full normalization.
func Identify(source candidate.Source, fields map[string]any) (string, *time.Time) {
	fs, ok := sourceFields[source]
	if !ok {
		return "", nil
	}
	id := firstString(fields, fs.id)
	rawDate, _, found := first(fields, fs.date)
	if !found {
		return id, nil
	}
	date, err := parseDate(rawDate)
	if err != nil {
		return id, nil
	}
	return id, &date
}

func (n *Normalizer) amount(fields map[string]any, fs fieldSet) (decimal.Decimal, error) {
	if v, _, ok := first(fields, fs.amount); ok {
		return parseAmount(v)
	}
	if v, _, ok := first(fields, fs.amountMinor); ok {
		minor, err := parseAmount(v)
		if err != nil {
			return decimal.Zero, err
		}
		if !minor.IsInteger() {
			return decimal.Zero, fmt.Errorf("minor units %s are not an integer", minor)
		}
		return minor.Shift(-2), nil
	}
	return decimal.Zero, fmt.Errorf("is missing")
}

func (n *Normalizer) currency(fields map[string]any, fs fieldSet) string {
	if cur := firstString(fields, fs.currency); cur != "" {
		return strings.ToUpper(cur)
	}
	return n.defaultCurrency
}

func identity(fields map[string]any, fs fieldSet) *candidate.Identity {
	email := strings.ToLower(firstString(fields, fs.email))
	name := firstString(fields, fs.name)
	if email == "" && name == "" {
		return nil
	}
	return &candidate.Identity{Email: email, Name: name}
}

func references(fields map[string]any, fs fieldSet) []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(s string) {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		refs = append(refs, s)
	}

	for _, name := range fs.references {
		if s, ok := fields[name].(string); ok {
			add(s)
		}
	}
	for _, name := range fs.freeText {
		s, ok := fields[name].(string)
		if !ok {
			continue
		}
		for _, tok := range strings.FieldsFunc(s, isReferenceSeparator) {
			tok = strings.Trim(tok, "-_./#")
			if len(tok) >= minReferenceLength && hasDigit(tok) {
				add(tok)
			}
		}
	}
	return refs
}

func flow(c *candidate.Candidate, fields map[string]any, fs fieldSet) candidate.Flow {
	switch c.Source {
	case candidate.SourceInvoice:
		dir := strings.ToLower(firstString(fields, fs.direction))
		switch {
		case payableWords[dir]:
			return candidate.FlowOutflow
		case receivableWords[dir]:
			return candidate.FlowInflow
		}
		return candidate.FlowEither
	default:
		switch c.SettlementAmount().Sign() {
		case 1:
			return candidate.FlowInflow
		case -1:
			return candidate.FlowOutflow
		}
		return candidate.FlowEither
	}
}

// first returns the first present, non-empty value among names
func first(fields map[string]any, names []string) (any, string, bool) {
	for _, name := range names {
		v, ok := fields[name]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, name, true
	}
	return nil, "", false
}

func firstString(fields map[string]any, names []string) string {
	v, _, ok := first(fields, names)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func parseAmount(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int32:
		return decimal.NewFromInt32(t), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return parseAmountString(t)
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

// parseAmountString accepts "1,245.67", "1.245,67", "€ 12.50", "(500.00)"
func parseAmountString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")

	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case lastComma >= 0 && lastDot < 0 && strings.Count(cleaned, ",") == 1 && len(cleaned)-lastComma-1 <= 2:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	default:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func parseDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return dayOf(t), nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("is nil")
		}
		return dayOf(*t), nil
	case float64:
		return dayOf(time.Unix(int64(t), 0).UTC()), nil
	case int64:
		return dayOf(time.Unix(t, 0).UTC()), nil
	case int:
		return dayOf(time.Unix(int64(t), 0).UTC()), nil
	case json.Number:
		secs, err := t.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%q is not a unix timestamp", t.String())
		}
		return dayOf(time.Unix(secs, 0).UTC()), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return dayOf(parsed), nil
			}
		}
		return time.Time{}, fmt.Errorf("%q is not a recognized date", s)
	default:
		return time.Time{}, fmt.Errorf("unsupported type %T", v)
	}
}

// dayOf keeps the calendar day of t as written by the source
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func isReferenceSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '|'
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
