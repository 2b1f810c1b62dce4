package genebe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/variant"
)

// wireVariant is one entry of the response "variants" array. Identity
// fields are decoded untyped because the service does not keep the types
// it was sent.
type wireVariant struct {
	Chr          any              `mapstructure:"chr"`
	Pos          any              `mapstructure:"pos"`
	Ref          any              `mapstructure:"ref"`
	Alt          any              `mapstructure:"alt"`
	Consequences []map[string]any `mapstructure:"consequences"`
	Rest         map[string]any   `mapstructure:",remain"`
}

// decodeResponse maps a response body onto the requested batch. A returned
// variant is attributed to its own (normalized) key when that key was
// requested. Otherwise it falls back to the request at the same index, but
// only when the response holds one variant per request and no other
// returned variant answers that request.
func decodeResponse(body []byte, batch []variant.Key, logger *zap.Logger) ([]*annotation.Record, error) {
	parsed, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !parsed.Exists("variants") {
		return nil, fmt.Errorf("decode response: missing \"variants\"")
	}
	children, err := parsed.S("variants").Children()
	if err != nil {
		return nil, fmt.Errorf("decode response: \"variants\" is not an array: %w", err)
	}

	requested := make(map[variant.Key]bool, len(batch))
	for _, k := range batch {
		requested[k] = true
	}

	type entry struct {
		index int
		key   variant.Key
		wire  wireVariant
	}
	entries := make([]entry, 0, len(children))
	answered := make(map[variant.Key]bool, len(batch))
	for i, child := range children {
		m, ok := child.Data().(map[string]any)
		if !ok {
			logger.Debug("skipping non-object variant in response", zap.Int("index", i))
			continue
		}

		var wv wireVariant
		if err := mapstructure.Decode(m, &wv); err != nil {
			return nil, fmt.Errorf("decode variant %d: %w", i, err)
		}

		key := variant.NewKey(wv.Chr, wv.Pos, wv.Ref, wv.Alt)
		if requested[key] {
			answered[key] = true
		}
		entries = append(entries, entry{index: i, key: key, wire: wv})
	}

	aligned := len(entries) == len(batch)
	records := make([]*annotation.Record, 0, len(entries))
	for _, e := range entries {
		key := e.key
		if !requested[key] {
			if !aligned || e.index >= len(batch) || answered[batch[e.index]] {
				logger.Warn("dropping unrequested variant",
					zap.String("variant", key.String()),
					zap.Int("index", e.index))
				continue
			}
			key = batch[e.index]
			answered[key] = true
			logger.Warn("attributing unrecognized variant to request at same index",
				zap.String("variant", e.key.String()),
				zap.String("requested", key.String()))
		}
		records = append(records, flatten(key, e.wire))
	}
	return records, nil
}

// flatten lifts variant-level attributes and the first consequence's
// attributes onto one record. Consequence attributes take precedence.
func flatten(key variant.Key, wv wireVariant) *annotation.Record {
	r := &annotation.Record{Key: key}
	for name, v := range wv.Rest {
		if s, ok := stringify(v); ok {
			r.Set(name, s)
		}
	}
	if len(wv.Consequences) > 0 {
		for name, v := range wv.Consequences[0] {
			if name == "effects" {
				name = annotation.Effect
			}
			if s, ok := stringify(v); ok {
				r.Set(name, s)
			}
		}
	}
	return r
}

// stringify renders a JSON value as an attribute string. Null and empty
// values report false.
func stringify(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := stringify(e); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), len(parts) > 0
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x), true
		}
		return string(b), true
	}
}
