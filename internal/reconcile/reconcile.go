// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile forces a parsed candidate into the exact shape of the
// schema, layering in earlier values and the user's manual overrides.
//
// The order is fixed:
//
//  1. start from the schema-shaped empty record;
//  2. copy candidate values, flat (field key at top level) or grouped
//     (section key or title mapping to fields);
//  3. where the candidate gave nothing, keep the previous record's value;
//  4. overlay manual overrides, which always win.
//
// The result always holds every schema section and field and nothing else.
package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/partnerform/internal/schema"
	"github.com/pdiddy/partnerform/pkg/types"
)

// Report describes what reconciliation did with its inputs.
type Report struct {
	// Filled counts fields that took a non-empty candidate value.
	Filled int `json:"filled" yaml:"filled"`

	// Kept counts fields that kept a value from the previous record.
	Kept int `json:"kept" yaml:"kept"`

	// Overridden counts fields set from manual overrides.
	Overridden int `json:"overridden" yaml:"overridden"`

	// Dropped lists candidate, previous-record and override keys that do not
	// exist in the schema, sorted. Grouped keys read "section.field".
	Dropped []string `json:"dropped,omitempty" yaml:"dropped,omitempty"`
}

// Reconcile returns a schema-conformant record. It never fails.
func Reconcile(reg *schema.Registry, candidate types.CandidateObject, previous types.FormRecord, overrides map[string]string) types.FormRecord {
	rec, _ := ReconcileWithReport(reg, candidate, previous, overrides)
	return rec
}

// match strength: an exact key beats a normalised one.
const (
	matchLoose = 1
	matchExact = 2
)

type assignment struct {
	value    string
	strength int
}

// ReconcileWithReport is Reconcile plus a Report.
func ReconcileWithReport(reg *schema.Registry, candidate types.CandidateObject, previous types.FormRecord, overrides map[string]string) (types.FormRecord, Report) {
	var rep Report
	dropped := make(map[string]struct{})
	rec := reg.Empty()

	// Step 2: candidate values. Keys are visited in sorted order so that
	// competing keys resolve the same way on every run.
	assigned := make(map[[2]string]assignment)
	assign := func(sec, field, value string, strength int) {
		if value == "" {
			return
		}
		k := [2]string{sec, field}
		if cur, ok := assigned[k]; ok && cur.strength >= strength {
			return
		}
		assigned[k] = assignment{value: value, strength: strength}
	}

	for _, key := range sortedKeys(candidate) {
		val := candidate[key]

		if group, ok := val.(map[string]any); ok {
			if sec, isSection := reg.ResolveSection(key); isSection {
				strength := matchLoose
				if reg.HasSection(key) {
					strength = matchExact
				}
				for _, fk := range sortedKeys(group) {
					field, found := reg.FieldInSection(sec, fk)
					if !found {
						dropped[key+"."+fk] = struct{}{}
						continue
					}
					s := strength
					if field != fk {
						s = matchLoose
					}
					assign(sec, field, Stringify(group[fk]), s)
				}
				continue
			}
		}

		sec, field, ok := reg.ResolveField(key)
		if !ok {
			dropped[key] = struct{}{}
			continue
		}
		strength := matchLoose
		if field == key {
			strength = matchExact
		}
		assign(sec, field, Stringify(val), strength)
	}

	for k, a := range assigned {
		rec[k[0]][k[1]] = a.value
		rep.Filled++
	}

	// Step 3: keep earlier values where the candidate was silent.
	for sec, fields := range previous {
		for field, v := range fields {
			cur, ok := rec[sec][field]
			if !ok {
				dropped[sec+"."+field] = struct{}{}
				continue
			}
			if cur == "" && v != "" {
				rec[sec][field] = v
				rep.Kept++
			}
		}
	}

	// Step 4: manual overrides win, including an explicit empty value.
	for key, v := range overrides {
		sec, field, ok := reg.ResolveField(key)
		if !ok {
			dropped[key] = struct{}{}
			continue
		}
		rec[sec][field] = v
		rep.Overridden++
	}

	if len(dropped) > 0 {
		rep.Dropped = make([]string, 0, len(dropped))
		for k := range dropped {
			rep.Dropped = append(rep.Dropped, k)
		}
		sort.Strings(rep.Dropped)
	}

	return rec, rep
}

// Stringify renders a decoded JSON value as a form value. Nulls become "",
// lists are joined with ", " and objects are re-encoded as compact JSON.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := Stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := strings.TrimSpace(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if len(x) == 0 {
			return ""
		}
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
