// Package backend ties together a target-specific Machine (one of
// codegen/x86, codegen/arm64, codegen/riscv64) with the IR, stack
// layout, and register allocator results to drive final lowering
// (spec.md §4.5), grounded on wazevo's backend.Compiler/Machine split.
package backend

import "math"

// VReg identifies a value slot a Machine lowers operands against: it
// may already carry a RealReg (from regalloc.Result) or remain
// memory-resident (spills to its stacklayout.Slot).
type VReg uint64

// VRegID is the lower 32 bits of VReg, the pure identifier ignoring
// any assigned RealReg.
type VRegID uint32

// RealReg is a target physical register id, target-specific encoding
// owned by the Machine implementation.
type RealReg uint16

const (
	vRegIDInvalid VRegID = math.MaxUint32
	// VRegInvalid marks a not-yet-assigned VReg: its ID is all ones (the
	// zero VReg is a valid VReg with ID 0).
	VRegInvalid VReg = VReg(vRegIDInvalid)
)

// ID returns the VRegID of v.
func (v VReg) ID() VRegID { return VRegID(v & 0xffffffff) }

// RealReg returns the RealReg assigned to v, if any.
func (v VReg) RealReg() RealReg { return RealReg(v >> 32) }

// WithRealReg returns v with r attached, keeping the same ID.
func (v VReg) WithRealReg(r RealReg) VReg { return VReg(r)<<32 | v&0xffffffff }

// Valid reports whether v identifies a real value slot.
func (v VReg) Valid() bool { return v.ID() != vRegIDInvalid }

// RegType distinguishes general-purpose from floating-point/vector
// register classes; i128/f128 values are never register-resident
// (spec.md §4.4) and so never receive a RegType other than RegTypeNone.
type RegType int

const (
	RegTypeInvalid RegType = iota
	RegTypeNone            // memory-resident only: i128, f128, aggregates
	RegTypeInt
	RegTypeFloat
)
