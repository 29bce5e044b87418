package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// canonicalJSON renders the stable, hashed fields of an event
// (event_id, type, timestamp, user, instrument, data) in a fixed field
// order, with data's keys sorted lexicographically. Decimal values must
// already be strings; integers are encoded as JSON numbers and raw
// float64 values are rejected. This exact byte layout is the hard contract
// spec.md §4.5 describes: any change to it invalidates every historical
// hash chain, so it is kept in one place and never inlined elsewhere.
func canonicalJSON(e Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField(&buf, "event_id", e.EventID, true)
	buf.WriteByte(',')
	writeField(&buf, "type", string(e.Type), true)
	buf.WriteByte(',')
	writeField(&buf, "timestamp", e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000000Z"), true)
	buf.WriteByte(',')
	writeField(&buf, "user", e.User, true)
	buf.WriteByte(',')
	writeField(&buf, "instrument", e.Instrument, true)
	buf.WriteByte(',')

	buf.WriteString(`"data":`)
	if err := writeCanonicalData(&buf, e.Data); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key, value string, quoted bool) {
	encKey, _ := json.Marshal(key)
	buf.Write(encKey)
	buf.WriteByte(':')
	if quoted {
		encVal, _ := json.Marshal(value)
		buf.Write(encVal)
	} else {
		buf.WriteString(value)
	}
}

// writeCanonicalData marshals the data map with keys in lexicographic
// order. Decimal/float values must already have been converted to
// strings by the caller (see pkg/price.Price.String); this function
// rejects float64 values outright so no caller can accidentally
// introduce a non-reproducible float encoding into the hash.
func writeCanonicalData(buf *bytes.Buffer, data map[string]any) error {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encKey, _ := json.Marshal(k)
		buf.Write(encKey)
		buf.WriteByte(':')

		v := data[k]
		if _, isFloat := v.(float64); isFloat {
			return fmt.Errorf("audit: raw float64 value for key %q is not hash-stable, render as string first", k)
		}
		encVal, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("audit: encode data[%q]: %w", k, err)
		}
		buf.Write(encVal)
	}
	buf.WriteByte('}')
	return nil
}
