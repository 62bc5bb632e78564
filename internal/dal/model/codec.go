package model

import (
	"encoding/json"
	"fmt"
)

// Marshal encodes the stored, non-sensitive values of in using the storage encoding, so
// Unmarshal can rebuild the instance through the same decoders a query uses.
func (m *Model) Marshal(in *Instance) ([]byte, error) {
	out := make(map[string]any, len(in.values))

	for _, f := range m.stored {
		v, ok := in.values[f]
		if !ok || m.sensitive[f] {
			continue
		}

		arg, err := encodeValue(m.def.Fields[f], v)
		if err != nil {
			return nil, err
		}

		out[f] = arg
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding %s row: %w", m.def.Table, err)
	}

	return b, nil
}

// Unmarshal rebuilds a persisted instance from Marshal's output.
func (m *Model) Unmarshal(b []byte) (*Instance, error) {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s row: %w", m.def.Table, err)
	}

	in := &Instance{
		model:     m,
		values:    make(map[string]any, len(raw)),
		changed:   map[string]struct{}{},
		persisted: true,
	}

	for f, v := range raw {
		t, ok := m.def.Fields[f]
		if !ok || t.IsVirtual() {
			continue
		}

		decoded, err := decodeValue(t, v)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.def.Table, f, err)
		}

		in.values[f] = decoded
	}

	return in, nil
}
