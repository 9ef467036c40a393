package ledger

import "encoding/json"

// Metadata is a versioned tagged union. Known schemas decode into typed
// fields; anything else is preserved opaquely in Raw so forward
// compatibility costs nothing.
type Metadata struct {
	Schema  string          `json:"schema,omitempty"`
	TaxInfo *TaxInfoV1      `json:"-"`
	Raw     json.RawMessage `json:"-"`
}

// SchemaTaxInfoV1 tags creator tax information.
const SchemaTaxInfoV1 = "tax_info.v1"

// TaxInfoV1 is the tax shape attached to creator accounts.
// WithholdingRate is in basis points (250 = 2.5%).
type TaxInfoV1 struct {
	Country         string `json:"country"`
	TaxID           string `json:"tax_id"`
	WithholdingRate int64  `json:"withholding_rate"`
}

type metadataEnvelope struct {
	Schema string          `json:"schema,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	env := metadataEnvelope{Schema: m.Schema}
	switch m.Schema {
	case SchemaTaxInfoV1:
		if m.TaxInfo != nil {
			data, err := json.Marshal(m.TaxInfo)
			if err != nil {
				return nil, err
			}
			env.Data = data
		}
	default:
		env.Data = m.Raw
	}
	return json.Marshal(env)
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var env metadataEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	m.Schema = env.Schema
	switch env.Schema {
	case SchemaTaxInfoV1:
		var ti TaxInfoV1
		if err := json.Unmarshal(env.Data, &ti); err != nil {
			return err
		}
		m.TaxInfo = &ti
	default:
		// Unknown schema: keep the payload intact for round-tripping.
		m.Raw = env.Data
	}
	return nil
}
