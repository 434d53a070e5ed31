package infotables

import "fmt"

// Kind is the closure type recorded in an info table. The numbering is part
// of the table format shared with generated code and must not change.
type Kind uint16

const (
	KindInvalid Kind = iota

	KindConstr
	KindConstrP1
	KindConstrN1
	KindConstrP2
	KindConstrP1N1
	KindConstrN2
	KindConstrStatic
	KindConstrNoCAFStatic

	KindFun
	KindFunP1
	KindFunN1
	KindFunP2
	KindFunP1N1
	KindFunN2
	KindFunStatic

	KindThunk
	KindThunkP1
	KindThunkN1
	KindThunkP2
	KindThunkP1N1
	KindThunkN2
	KindThunkStatic
	KindThunkSelector

	KindBCO
	KindAP
	KindPAP
	KindAPStack
	KindInd
	KindIndPerm
	KindIndStatic

	KindRetBCO
	KindRetSmall
	KindRetBig
	KindRetDyn
	KindRetFun
	KindUpdateFrame
	KindCatchFrame
	KindUnderflowFrame
	KindStopFrame

	KindBlockingQueue
	KindBlackhole
	KindMVarClean
	KindMVarDirty
	KindArrWords
	KindMutArrPtrsClean
	KindMutArrPtrsDirty
	KindMutArrPtrsFrozen0
	KindMutArrPtrsFrozen
	KindMutVarClean
	KindMutVarDirty
	KindWeak
	KindPrim
	KindMutPrim
	KindTSO
	KindStack
	KindTRecChunk
	KindAtomicallyFrame
	KindCatchRetryFrame
	KindCatchSTMFrame
	KindWhitehole

	NumKinds
)

var kindNames = [NumKinds]string{
	KindInvalid:           "INVALID_OBJECT",
	KindConstr:            "CONSTR",
	KindConstrP1:          "CONSTR_1_0",
	KindConstrN1:          "CONSTR_0_1",
	KindConstrP2:          "CONSTR_2_0",
	KindConstrP1N1:        "CONSTR_1_1",
	KindConstrN2:          "CONSTR_0_2",
	KindConstrStatic:      "CONSTR_STATIC",
	KindConstrNoCAFStatic: "CONSTR_NOCAF_STATIC",
	KindFun:               "FUN",
	KindFunP1:             "FUN_1_0",
	KindFunN1:             "FUN_0_1",
	KindFunP2:             "FUN_2_0",
	KindFunP1N1:           "FUN_1_1",
	KindFunN2:             "FUN_0_2",
	KindFunStatic:         "FUN_STATIC",
	KindThunk:             "THUNK",
	KindThunkP1:           "THUNK_1_0",
	KindThunkN1:           "THUNK_0_1",
	KindThunkP2:           "THUNK_2_0",
	KindThunkP1N1:         "THUNK_1_1",
	KindThunkN2:           "THUNK_0_2",
	KindThunkStatic:       "THUNK_STATIC",
	KindThunkSelector:     "THUNK_SELECTOR",
	KindBCO:               "BCO",
	KindAP:                "AP",
	KindPAP:               "PAP",
	KindAPStack:           "AP_STACK",
	KindInd:               "IND",
	KindIndPerm:           "IND_PERM",
	KindIndStatic:         "IND_STATIC",
	KindRetBCO:            "RET_BCO",
	KindRetSmall:          "RET_SMALL",
	KindRetBig:            "RET_BIG",
	KindRetDyn:            "RET_DYN",
	KindRetFun:            "RET_FUN",
	KindUpdateFrame:       "UPDATE_FRAME",
	KindCatchFrame:        "CATCH_FRAME",
	KindUnderflowFrame:    "UNDERFLOW_FRAME",
	KindStopFrame:         "STOP_FRAME",
	KindBlockingQueue:     "BLOCKING_QUEUE",
	KindBlackhole:         "BLACKHOLE",
	KindMVarClean:         "MVAR_CLEAN",
	KindMVarDirty:         "MVAR_DIRTY",
	KindArrWords:          "ARR_WORDS",
	KindMutArrPtrsClean:   "MUT_ARR_PTRS_CLEAN",
	KindMutArrPtrsDirty:   "MUT_ARR_PTRS_DIRTY",
	KindMutArrPtrsFrozen0: "MUT_ARR_PTRS_FROZEN0",
	KindMutArrPtrsFrozen:  "MUT_ARR_PTRS_FROZEN",
	KindMutVarClean:       "MUT_VAR_CLEAN",
	KindMutVarDirty:       "MUT_VAR_DIRTY",
	KindWeak:              "WEAK",
	KindPrim:              "PRIM",
	KindMutPrim:           "MUT_PRIM",
	KindTSO:               "TSO",
	KindStack:             "STACK",
	KindTRecChunk:         "TREC_CHUNK",
	KindAtomicallyFrame:   "ATOMICALLY_FRAME",
	KindCatchRetryFrame:   "CATCH_RETRY_FRAME",
	KindCatchSTMFrame:     "CATCH_STM_FRAME",
	KindWhitehole:         "WHITEHOLE",
}

func (k Kind) String() string {
	if k < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Valid reports whether k is a real closure or frame kind.
func (k Kind) Valid() bool {
	return k != KindInvalid && k < NumKinds
}

// IsFrame reports whether k describes a stack frame rather than a heap closure.
func (k Kind) IsFrame() bool {
	switch k {
	case KindRetBCO, KindRetSmall, KindRetBig, KindRetDyn, KindRetFun,
		KindUpdateFrame, KindCatchFrame, KindUnderflowFrame, KindStopFrame,
		KindAtomicallyFrame, KindCatchRetryFrame, KindCatchSTMFrame:
		return true
	}
	return false
}

// IsThunk reports whether closures of kind k carry the thunk header.
func (k Kind) IsThunk() bool {
	switch k {
	case KindThunk, KindThunkP1, KindThunkN1, KindThunkP2, KindThunkP1N1, KindThunkN2,
		KindThunkStatic, KindThunkSelector, KindAP, KindAPStack:
		return true
	}
	return false
}

func (k Kind) IsFun() bool {
	switch k {
	case KindFun, KindFunP1, KindFunN1, KindFunP2, KindFunP1N1, KindFunN2, KindFunStatic:
		return true
	}
	return false
}

func (k Kind) IsConstr() bool {
	switch k {
	case KindConstr, KindConstrP1, KindConstrN1, KindConstrP2, KindConstrP1N1, KindConstrN2,
		KindConstrStatic, KindConstrNoCAFStatic:
		return true
	}
	return false
}

func (k Kind) IsStatic() bool {
	switch k {
	case KindConstrStatic, KindConstrNoCAFStatic, KindFunStatic, KindThunkStatic, KindIndStatic:
		return true
	}
	return false
}

// FixedArity returns the pointer and non-pointer payload counts encoded in a
// specialised kind; ok is false for every other kind.
func (k Kind) FixedArity() (ptrs, nptrs int, ok bool) {
	switch k {
	case KindConstrP1, KindFunP1, KindThunkP1:
		return 1, 0, true
	case KindConstrN1, KindFunN1, KindThunkN1:
		return 0, 1, true
	case KindConstrP2, KindFunP2, KindThunkP2:
		return 2, 0, true
	case KindConstrP1N1, KindFunP1N1, KindThunkP1N1:
		return 1, 1, true
	case KindConstrN2, KindFunN2, KindThunkN2:
		return 0, 2, true
	}
	return 0, 0, false
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return KindInvalid, false
}
