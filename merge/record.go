package merge

import (
	"strconv"
	"strings"
	"time"

	"github.com/costlens/costlens/types"
)

// RawRecord is one resource record as produced upstream. Producers
// disagree on field names and tag shapes, so everything goes through
// normalize before any merge logic runs.
type RawRecord map[string]any

// Field precedence for each concept, first non-empty wins.
var (
	idFields     = []string{"resource_id", "resourceId", "id", "arn", "resource_arn"}
	nameFields   = []string{"name", "resource_name"}
	typeFields   = []string{"type", "resource_type", "product_code"}
	regionFields = []string{"region", "location"}
	statusFields = []string{"status", "state"}
	costFields   = []string{"cost", "cost_amount", "unblended_cost"}
	createdAtF   = []string{"created_at", "launch_time", "creation_date"}
)

// normalized is the uniform shape a RawRecord reduces to.
type normalized struct {
	canonical string
	name      string
	rtype     string
	region    string
	owner     string
	project   string
	status    string
	cost      float64
	tags      []types.Tag
	createdAt *time.Time
	specs     map[string]string
}

// normalize reduces a raw record to the uniform shape. A record with no
// usable identifier normalizes to an empty canonical id and is skipped
// by the merger.
func normalize(rec RawRecord) normalized {
	n := normalized{
		canonical: types.CanonicalID(firstString(rec, idFields)),
		name:      firstString(rec, nameFields),
		rtype:     firstString(rec, typeFields),
		region:    firstString(rec, regionFields),
		owner:     firstString(rec, []string{"owner"}),
		project:   firstString(rec, []string{"project"}),
		status:    NormalizeStatus(firstString(rec, statusFields)),
		cost:      firstNumber(rec, costFields),
		tags:      normalizeTags(rec["tags"]),
		createdAt: parseWhen(firstValue(rec, createdAtF)),
		specs:     stringMap(rec["specifications"]),
	}
	return n
}

// NormalizeStatus folds common provider synonyms into the fixed
// status vocabulary. Matching is case-insensitive.
func NormalizeStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active", "running", "available", "in-use":
		return types.StatusActive
	case "terminated", "deleted", "shutting-down":
		return types.StatusTerminated
	case "stopped", "stopping":
		return types.StatusStopped
	case "pending", "creating", "provisioning", "starting":
		return types.StatusPending
	default:
		return types.StatusUnknown
	}
}

// normalizeTags converts either tag shape into a uniform list:
// a list of key/value pairs, or a plain key→value mapping.
func normalizeTags(v any) []types.Tag {
	switch tv := v.(type) {
	case nil:
		return nil
	case []types.Tag:
		out := make([]types.Tag, len(tv))
		copy(out, tv)
		return out
	case map[string]string:
		return tagsFromMap(tv)
	case map[string]any:
		m := make(map[string]string, len(tv))
		for k, val := range tv {
			m[k] = toString(val)
		}
		return tagsFromMap(m)
	case []any:
		var out []types.Tag
		for _, item := range tv {
			pair, ok := item.(map[string]any)
			if !ok {
				continue
			}
			key := toString(firstValue(pair, []string{"key", "Key"}))
			if key == "" {
				continue
			}
			out = append(out, types.Tag{
				Key:   key,
				Value: toString(firstValue(pair, []string{"value", "Value"})),
			})
		}
		return out
	default:
		return nil
	}
}

func tagsFromMap(m map[string]string) []types.Tag {
	if len(m) == 0 {
		return nil
	}
	out := make([]types.Tag, 0, len(m))
	for k, v := range m {
		out = append(out, types.Tag{Key: k, Value: v})
	}
	return out
}

// Timestamp layouts accepted from upstream producers, tried in order.
var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseWhen normalizes a date value to UTC, or nil when absent or
// unparseable. Never a sentinel.
func parseWhen(v any) *time.Time {
	switch tv := v.(type) {
	case time.Time:
		if tv.IsZero() {
			return nil
		}
		u := tv.UTC()
		return &u
	case *time.Time:
		if tv == nil || tv.IsZero() {
			return nil
		}
		u := tv.UTC()
		return &u
	case string:
		for _, layout := range whenLayouts {
			if ts, err := time.Parse(layout, tv); err == nil {
				u := ts.UTC()
				return &u
			}
		}
		return nil
	default:
		return nil
	}
}

func firstValue(rec map[string]any, fields []string) any {
	for _, f := range fields {
		if v, ok := rec[f]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(rec map[string]any, fields []string) string {
	for _, f := range fields {
		if s := toString(rec[f]); s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(rec map[string]any, fields []string) float64 {
	for _, f := range fields {
		switch v := rec[f].(type) {
		case float64:
			return v
		case float32:
			return float64(v)
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func toString(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case int:
		return strconv.Itoa(tv)
	case bool:
		return strconv.FormatBool(tv)
	default:
		return ""
	}
}

func stringMap(v any) map[string]string {
	switch tv := v.(type) {
	case map[string]string:
		if len(tv) == 0 {
			return nil
		}
		out := make(map[string]string, len(tv))
		for k, val := range tv {
			out[k] = val
		}
		return out
	case map[string]any:
		if len(tv) == 0 {
			return nil
		}
		out := make(map[string]string, len(tv))
		for k, val := range tv {
			out[k] = toString(val)
		}
		return out
	default:
		return nil
	}
}
