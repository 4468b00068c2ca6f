package opsservice

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	cerrors "github.com/edgeops/opsctl/pkg/errors"
)

// Type identifies one ops service of the edge platform.
type Type string

const (
	// TypeAuto expands to every deployed service. It never reaches a collector.
	TypeAuto Type = "auto"

	TypeBroker         Type = "broker"
	TypeDeviceRegistry Type = "deviceregistry"
	TypeOrc            Type = "orc"
	TypeOpcua          Type = "opcua"
	TypeAkri           Type = "akri"
	TypeDataflow       Type = "dataflow"
	TypeBilling        Type = "billing"
	TypeSecretStore    Type = "secretstore"
	TypeIdentity       Type = "identity"
	TypeNetworking     Type = "networking"

	// TypeOtel is the observability pipeline. It is not selectable on the command
	// line and is always part of an auto bundle.
	TypeOtel Type = "otel"

	// TypeMeta holds the platform instance resources and bundle metadata.
	// It is produced for every bundle.
	TypeMeta Type = "meta"
)

// maxSuggestionDistance bounds how far a typo may be from a valid value
// for it to be offered as a suggestion.
const maxSuggestionDistance = 3

// Concrete returns every selectable service except auto, in display order.
func Concrete() []Type {
	return []Type{
		TypeBroker,
		TypeDeviceRegistry,
		TypeOrc,
		TypeOpcua,
		TypeAkri,
		TypeDataflow,
		TypeBilling,
		TypeSecretStore,
		TypeIdentity,
		TypeNetworking,
	}
}

// Synthetic returns the services that are collected without being selectable.
func Synthetic() []Type {
	return []Type{TypeOtel, TypeMeta}
}

// Supported returns every value accepted by ParseType.
func Supported() []Type {
	return append([]Type{TypeAuto}, Concrete()...)
}

// SupportedAsStrings returns Supported as plain strings.
func SupportedAsStrings() []string {
	types := Supported()
	strs := make([]string, len(types))
	for i, t := range types {
		strs[i] = string(t)
	}
	return strs
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// IsValid reports whether t is a selectable service value.
func (t Type) IsValid() bool {
	for _, s := range Supported() {
		if s == t {
			return true
		}
	}
	return false
}

// IsConcrete reports whether t maps directly to a collector.
func (t Type) IsConcrete() bool {
	return t != TypeAuto && (t.IsValid() || t == TypeOtel || t == TypeMeta)
}

// ParseType converts s to a Type. Unknown values return an INVALID_REQUEST
// error that names the closest supported value when one is near.
func ParseType(s string) (Type, error) {
	v := Type(strings.ToLower(strings.TrimSpace(s)))
	if v.IsValid() {
		return v, nil
	}

	msg := fmt.Sprintf("unknown ops service %q, supported values: %s",
		s, strings.Join(SupportedAsStrings(), ", "))
	if suggestion := Suggest(s); suggestion != "" {
		msg = fmt.Sprintf("%s (did you mean %q?)", msg, suggestion)
	}
	return "", cerrors.New(cerrors.ErrCodeInvalidRequest, msg)
}

// Suggest returns the supported value closest to s, or "" when nothing is close.
func Suggest(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	type candidate struct {
		name string
		dist int
	}
	candidates := make([]candidate, 0, len(Supported()))
	for _, t := range Supported() {
		candidates = append(candidates, candidate{
			name: string(t),
			dist: levenshtein.ComputeDistance(s, string(t)),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})

	if candidates[0].dist > maxSuggestionDistance {
		return ""
	}
	return candidates[0].name
}
