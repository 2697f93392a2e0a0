package email

import (
	"encoding/json"
	"maps"
)

// Message is an outbound email request.
//
// Extra holds caller-supplied fields beyond the named ones. They are encoded
// next to the named fields in JSON, so {"to":"a","campaign":"x"} decodes to
// To "a" and Extra {"campaign":"x"}.
type Message struct {
	To      string         `json:"to" validate:"required,email"`
	Subject string         `json:"subject"`
	Body    string         `json:"body"`
	Extra   map[string]any `json:"-"`
}

var namedFields = []string{"to", "subject", "body"}

// Canonical returns the message as a flat map, the form used to derive its
// fingerprint. Named fields win over Extra keys of the same name.
func (m Message) Canonical() map[string]any {
	out := make(map[string]any, len(m.Extra)+len(namedFields))
	maps.Copy(out, m.Extra)
	out["to"] = m.To
	out["subject"] = m.Subject
	out["body"] = m.Body
	return out
}

// MarshalJSON encodes the named fields and Extra as one object.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Canonical())
}

// UnmarshalJSON decodes the named fields and collects every other field into
// Extra.
func (m *Message) UnmarshalJSON(data []byte) error {
	type named struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	var n named
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, f := range namedFields {
		delete(raw, f)
	}

	m.To, m.Subject, m.Body = n.To, n.Subject, n.Body
	m.Extra = nil
	if len(raw) > 0 {
		m.Extra = raw
	}
	return nil
}
