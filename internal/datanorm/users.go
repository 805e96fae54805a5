package datanorm

import "github.com/ignite/receipt-normalizer/internal/pkg/logger"

const consumerRole = "consumer"

// CleanUsers normalizes identifiers and timestamps, collapses missing values,
// keeps the first row per identifier in input order and drops non-consumer roles.
func (n *Normalizer) CleanUsers(raw []Record) []User {
	seen := make(map[nullKey]bool, len(raw))
	out := make([]User, 0, len(raw))
	for _, r := range raw {
		u := n.cleanUser(Collapse(r))
		k := keyOf(u.ID)
		if seen[k] {
			continue
		}
		seen[k] = true
		if u.Role == nil || *u.Role != consumerRole {
			continue
		}
		out = append(out, u)
	}
	logger.Info("datanorm: users cleaned", "in", len(raw), "out", len(out))
	return out
}

func (n *Normalizer) cleanUser(r Record) User {
	u := User{
		ID:           NormalizeID(r[FieldID]),
		CreatedDate:  n.timestamp(FieldCreatedDate, r[FieldCreatedDate]),
		LastLogin:    n.timestamp(FieldLastLogin, r[FieldLastLogin]),
		Role:         stringPtr(r[FieldRole]),
		SignUpSource: stringPtr(r[FieldSignUpSource]),
		State:        stringPtr(r[FieldState]),
	}
	if v := r[FieldActive]; v != nil {
		b, err := boolValue(v)
		if err != nil {
			raw, _ := stringValue(v)
			logger.Warn("datanorm: bad active flag", "field", FieldActive, "error", err.Error(), "raw", raw)
		} else {
			u.Active = &b
		}
	}
	return u
}

// nullKey is a dedupe key in which nil is a value of its own.
type nullKey struct {
	valid bool
	s     string
}

func keyOf(p *string) nullKey {
	if p == nil {
		return nullKey{}
	}
	return nullKey{valid: true, s: *p}
}
