package ir

import (
	"fmt"
	"strings"
)

// Opcode identifies the operation performed by a Node.
type Opcode uint16

const (
	OpBeginBlock Opcode = iota
	OpEndBlock
	OpExitFunction
	OpEndFunction
	OpBreak
	OpJump
	OpCondJump

	OpMov
	OpConstant
	OpLoadContext
	OpStoreContext
	OpLoadFlag
	OpStoreFlag
	OpSyscall
	OpLoadMem
	OpStoreMem

	OpAdd
	OpSub
	OpMul
	OpMulH
	OpUMul
	OpUMulH
	OpDiv
	OpUDiv
	OpRem
	OpURem
	OpLDiv
	OpLUDiv
	OpLRem
	OpLURem
	OpOr
	OpAnd
	OpXor
	OpLshl
	OpLshr
	OpAshr
	OpRor
	OpRol
	OpZext
	OpSext
	OpNeg
	OpPopcount
	OpFindLSB
	OpFindMSB
	OpRev
	OpSelect
	OpBfi
	OpBfe
	OpCAS
	OpCPUID
	OpCycleCounter
	OpPrint
	OpExtractElement

	OpCreateVector2
	OpSplatVector2
	OpSplatVector3
	OpSplatVector4
	OpVOr
	OpVXor
	OpVAdd
	OpVSub
	OpVUMin
	OpVSMin
	OpVUShl
	OpVUShlS
	OpVUShr
	OpVZip
	OpVZip2
	OpVInsElement
	OpVCmpEQ
	OpVCmpGT

	// NumOpcodes is the number of opcodes in the schema. Any Opcode value at
	// or above it is malformed.
	NumOpcodes
)

// OpInfo describes the static shape of an opcode.
type OpInfo struct {
	Name string
	// NumArgs is the number of argument references the opcode reads.
	NumArgs int
	// HasDest reports whether the opcode produces a value.
	HasDest bool
	// JumpArg is the index of the argument that names a jump target, or -1.
	JumpArg int
}

var opInfo = [NumOpcodes]OpInfo{
	OpBeginBlock:   {Name: "beginblock", JumpArg: -1},
	OpEndBlock:     {Name: "endblock", JumpArg: -1},
	OpExitFunction: {Name: "exitfunction", JumpArg: -1},
	OpEndFunction:  {Name: "endfunction", JumpArg: -1},
	OpBreak:        {Name: "break", JumpArg: -1},
	OpJump:         {Name: "jump", NumArgs: 1, JumpArg: 0},
	OpCondJump:     {Name: "condjump", NumArgs: 2, JumpArg: 1},

	OpMov:          {Name: "mov", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpConstant:     {Name: "constant", HasDest: true, JumpArg: -1},
	OpLoadContext:  {Name: "loadcontext", HasDest: true, JumpArg: -1},
	OpStoreContext: {Name: "storecontext", NumArgs: 1, JumpArg: -1},
	OpLoadFlag:     {Name: "loadflag", HasDest: true, JumpArg: -1},
	OpStoreFlag:    {Name: "storeflag", NumArgs: 1, JumpArg: -1},
	OpSyscall:      {Name: "syscall", NumArgs: MaxArgs, HasDest: true, JumpArg: -1},
	OpLoadMem:      {Name: "loadmem", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpStoreMem:     {Name: "storemem", NumArgs: 2, JumpArg: -1},

	OpAdd:            {Name: "add", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpSub:            {Name: "sub", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpMul:            {Name: "mul", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpMulH:           {Name: "mulh", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpUMul:           {Name: "umul", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpUMulH:          {Name: "umulh", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpDiv:            {Name: "div", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpUDiv:           {Name: "udiv", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpRem:            {Name: "rem", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpURem:           {Name: "urem", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpLDiv:           {Name: "ldiv", NumArgs: 3, HasDest: true, JumpArg: -1},
	OpLUDiv:          {Name: "ludiv", NumArgs: 3, HasDest: true, JumpArg: -1},
	OpLRem:           {Name: "lrem", NumArgs: 3, HasDest: true, JumpArg: -1},
	OpLURem:          {Name: "lurem", NumArgs: 3, HasDest: true, JumpArg: -1},
	OpOr:             {Name: "or", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpAnd:            {Name: "and", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpXor:            {Name: "xor", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpLshl:           {Name: "lshl", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpLshr:           {Name: "lshr", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpAshr:           {Name: "ashr", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpRor:            {Name: "ror", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpRol:            {Name: "rol", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpZext:           {Name: "zext", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpSext:           {Name: "sext", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpNeg:            {Name: "neg", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpPopcount:       {Name: "popcount", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpFindLSB:        {Name: "findlsb", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpFindMSB:        {Name: "findmsb", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpRev:            {Name: "rev", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpSelect:         {Name: "select", NumArgs: 4, HasDest: true, JumpArg: -1},
	OpBfi:            {Name: "bfi", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpBfe:            {Name: "bfe", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpCAS:            {Name: "cas", NumArgs: 3, HasDest: true, JumpArg: -1},
	OpCPUID:          {Name: "cpuid", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpCycleCounter:   {Name: "cyclecounter", HasDest: true, JumpArg: -1},
	OpPrint:          {Name: "print", NumArgs: 1, JumpArg: -1},
	OpExtractElement: {Name: "extractelement", NumArgs: 1, HasDest: true, JumpArg: -1},

	OpCreateVector2: {Name: "createvector2", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpSplatVector2:  {Name: "splatvector2", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpSplatVector3:  {Name: "splatvector3", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpSplatVector4:  {Name: "splatvector4", NumArgs: 1, HasDest: true, JumpArg: -1},
	OpVOr:           {Name: "vor", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVXor:          {Name: "vxor", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVAdd:          {Name: "vadd", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVSub:          {Name: "vsub", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVUMin:         {Name: "vumin", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVSMin:         {Name: "vsmin", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVUShl:         {Name: "vushl", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVUShlS:        {Name: "vushls", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVUShr:         {Name: "vushr", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVZip:          {Name: "vzip", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVZip2:         {Name: "vzip2", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVInsElement:   {Name: "vinselement", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVCmpEQ:        {Name: "vcmpeq", NumArgs: 2, HasDest: true, JumpArg: -1},
	OpVCmpGT:        {Name: "vcmpgt", NumArgs: 2, HasDest: true, JumpArg: -1},
}

var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, NumOpcodes)
	for op := Opcode(0); op < NumOpcodes; op++ {
		m[opInfo[op].Name] = op
	}
	return m
}()

// Valid reports whether op is part of the schema.
func (op Opcode) Valid() bool {
	return op < NumOpcodes
}

// Info returns the static description of op. It panics for invalid opcodes.
func (op Opcode) Info() OpInfo {
	if !op.Valid() {
		panic(fmt.Sprintf("ir: invalid opcode %d", op))
	}
	return opInfo[op]
}

func (op Opcode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("Opcode(%d)", uint16(op))
	}
	return opInfo[op].Name
}

// ParseOpcode looks up an opcode by its lower-case name.
func ParseOpcode(name string) (Opcode, error) {
	op, ok := opByName[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("ir: unknown opcode %q", name)
	}
	return op, nil
}

// CondCode selects the comparison predicate of a Select.
type CondCode uint8

const (
	CondEQ CondCode = iota
	CondNEQ
	CondGE
	CondLT
	CondGT
	CondLE
	CondCS
	CondCC
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS

	numCondCodes
)

var condNames = [numCondCodes]string{
	CondEQ:  "eq",
	CondNEQ: "neq",
	CondGE:  "ge",
	CondLT:  "lt",
	CondGT:  "gt",
	CondLE:  "le",
	CondCS:  "cs",
	CondCC:  "cc",
	CondMI:  "mi",
	CondPL:  "pl",
	CondVS:  "vs",
	CondVC:  "vc",
	CondHI:  "hi",
	CondLS:  "ls",
}

func (c CondCode) String() string {
	if c >= numCondCodes {
		return fmt.Sprintf("CondCode(%d)", uint8(c))
	}
	return condNames[c]
}

// ParseCondCode looks up a condition code by name.
func ParseCondCode(name string) (CondCode, error) {
	name = strings.ToLower(name)
	for i, n := range condNames {
		if n == name {
			return CondCode(i), nil
		}
	}
	return 0, fmt.Errorf("ir: unknown condition code %q", name)
}

// Break reasons.
const (
	BreakHLT uint8 = 4
)
