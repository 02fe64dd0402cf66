// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package beanmeta

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Op is a kind of operation the query engine builds SQL for.
type Op uint8

const (
	// OpList selects rows into beans.
	OpList Op = iota
	// OpCount counts matching rows.
	OpCount
	// OpSum computes aggregate sums.
	OpSum
	// OpFilter uses the field in a WHERE or HAVING condition.
	OpFilter
	// OpSort uses the field in an ORDER BY.
	OpSort

	opCount
)

var opNames = [...]string{
	OpList:   "list",
	OpCount:  "count",
	OpSum:    "sum",
	OpFilter: "filter",
	OpSort:   "sort",
}

func (o Op) String() string {
	if o >= opCount {
		return "Op(" + strconv.Itoa(int(o)) + ")"
	}
	return opNames[o]
}

// ParseOp returns the Op named s, ignoring case.
func ParseOp(s string) (Op, error) {
	s = strings.TrimSpace(s)
	for o, name := range opNames {
		if strings.EqualFold(s, name) {
			return Op(o), nil
		}
	}
	return 0, errors.Errorf("unknown operation %q", s)
}

// OpSet is a set of operations. The empty set places no restriction.
type OpSet uint8

// Ops returns the set holding ops.
func Ops(ops ...Op) OpSet {
	var s OpSet
	for _, o := range ops {
		s |= 1 << o
	}
	return s
}

// ParseOpSet parses a comma separated list of operation names, e.g.
// "list,count".
func ParseOpSet(s string) (OpSet, error) {
	var set OpSet
	if strings.TrimSpace(s) == "" {
		return set, nil
	}
	for _, name := range strings.Split(s, ",") {
		o, err := ParseOp(name)
		if err != nil {
			return 0, err
		}
		set |= Ops(o)
	}
	return set, nil
}

// Has reports whether o is in the set.
func (s OpSet) Has(o Op) bool {
	return s&(1<<o) != 0
}

// Allows reports whether a field restricted to s takes part in o. An empty
// set allows every operation.
func (s OpSet) Allows(o Op) bool {
	return s == 0 || s.Has(o)
}

// Slice returns the operations in the set in declaration order.
func (s OpSet) Slice() []Op {
	var ops []Op
	for o := OpList; o < opCount; o++ {
		if s.Has(o) {
			ops = append(ops, o)
		}
	}
	return ops
}

func (s OpSet) String() string {
	ops := s.Slice()
	names := make([]string, len(ops))
	for i, o := range ops {
		names[i] = o.String()
	}
	return strings.Join(names, ",")
}
