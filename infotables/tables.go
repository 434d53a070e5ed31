// Package infotables resolves info pointers to the read-only tables emitted
// for every closure kind, under either table placement.
package infotables

import (
	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/memory"
)

// TableClass selects one of the info table shapes. Every extended shape is the
// standard table plus class-specific extra words.
type TableClass uint8

const (
	TableStd TableClass = iota
	TableRet
	TableFun
	TableThunk
	TableCon
)

func TableClassOf(k Kind) TableClass {
	switch {
	case k.IsFrame():
		return TableRet
	case k.IsFun():
		return TableFun
	case k == KindThunk, k == KindThunkP1, k == KindThunkN1, k == KindThunkP2,
		k == KindThunkP1N1, k == KindThunkN2, k == KindThunkStatic, k == KindThunkSelector:
		return TableThunk
	case k.IsConstr():
		return TableCon
	}
	return TableStd
}

func extraWords(class TableClass) int {
	switch class {
	case TableRet, TableThunk, TableCon:
		return 1
	case TableFun:
		return 2
	}
	return 0
}

// word offsets inside the standard table
const (
	stdLayoutWord  = 0
	stdKindTagWord = 1
	stdEntryWord   = 2
)

// Tables reads info tables out of an arena. It holds no mutable state, so it
// may be shared by any number of mutator and collector threads.
type Tables struct {
	placement heapconfigs.Placement
	arena     *memory.Arena
	wordBytes int
	codec     layoutCodec
}

func NewTables(config heapconfigs.Config, arena *memory.Arena) *Tables {
	half := uint(config.WordBytes * 4)
	return &Tables{
		placement: config.Placement,
		arena:     arena,
		wordBytes: config.WordBytes,
		codec: layoutCodec{
			halfBits:       half,
			bitmapSizeBits: uint(config.BitmapSizeBits()),
		},
	}
}

func (t *Tables) Arena() *memory.Arena {
	return t.arena
}

// StdWords is the width of the standard table. Under the beginning placement
// the table carries an explicit entry code field.
func (t *Tables) StdWords() int {
	if t.placement == heapconfigs.PlacementBeginning {
		return 3
	}
	return 2
}

func (t *Tables) Width(class TableClass) int {
	return t.StdWords() + extraWords(class)
}

func (t *Tables) words(n int) memory.Addr {
	return memory.Addr(n * t.wordBytes)
}

// StructOf returns the address of the table of the given class for info.
func (t *Tables) StructOf(info memory.Addr, class TableClass) memory.Addr {
	if t.placement == heapconfigs.PlacementEnd {
		return info - t.words(t.Width(class))
	}
	return info
}

func (t *Tables) StdTable(info memory.Addr) memory.Addr {
	return t.StructOf(info, TableStd)
}

func (t *Tables) RetTable(info memory.Addr) memory.Addr {
	return t.StructOf(info, TableRet)
}

func (t *Tables) FunTable(info memory.Addr) memory.Addr {
	return t.StructOf(info, TableFun)
}

func (t *Tables) ThunkTable(info memory.Addr) memory.Addr {
	return t.StructOf(info, TableThunk)
}

func (t *Tables) ConTable(info memory.Addr) memory.Addr {
	return t.StructOf(info, TableCon)
}

// InfoPointer is the inverse of StructOf.
func (t *Tables) InfoPointer(table memory.Addr, class TableClass) memory.Addr {
	if t.placement == heapconfigs.PlacementEnd {
		return table + t.words(t.Width(class))
	}
	return table
}

// StdToExtended converts a standard table address to the address of the
// enclosing table of class.
func (t *Tables) StdToExtended(std memory.Addr, class TableClass) memory.Addr {
	return t.StructOf(t.InfoPointer(std, TableStd), class)
}

// extraAddr is the first extra word of an extended table.
func (t *Tables) extraAddr(table memory.Addr) memory.Addr {
	if t.placement == heapconfigs.PlacementEnd {
		return table
	}
	return table + t.words(t.StdWords())
}

// Entry is the address of the code run when a closure with info is entered.
func (t *Tables) Entry(info memory.Addr) memory.Addr {
	if t.placement == heapconfigs.PlacementEnd {
		return info
	}
	return memory.Addr(t.arena.Load(t.StdTable(info) + t.words(stdEntryWord)))
}

func (t *Tables) kindTag(info memory.Addr) memory.Word {
	return t.arena.Load(t.StdTable(info) + t.words(stdKindTagWord))
}

func (t *Tables) layoutWord(info memory.Addr) memory.Word {
	return t.arena.Load(t.StdTable(info) + t.words(stdLayoutWord))
}

func (t *Tables) Kind(info memory.Addr) Kind {
	return Kind(t.kindTag(info) & t.codec.halfMask())
}

// PeekKind reads the kind of a table that may not exist. ok is false when the
// alleged table lies outside the arena.
func (t *Tables) PeekKind(info memory.Addr) (Kind, bool) {
	w, ok := t.arena.Peek(t.StdTable(info) + t.words(stdKindTagWord))
	if !ok {
		return KindInvalid, false
	}
	return Kind(w & t.codec.halfMask()), true
}

// Tag is the constructor tag of a constructor table, or the SRT bitmap of
// other kinds.
func (t *Tables) Tag(info memory.Addr) uint {
	return uint(t.kindTag(info) >> t.codec.halfBits & t.codec.halfMask())
}

// Payload reads the payload layout. Only meaningful for ClassPayload kinds.
func (t *Tables) Payload(info memory.Addr) Payload {
	return t.codec.decodePayload(t.layoutWord(info))
}

func (t *Tables) BitmapSize(info memory.Addr) int {
	return t.codec.bitmapSize(t.layoutWord(info))
}

func (t *Tables) largeBitmapAddr(info memory.Addr) memory.Addr {
	return t.StdTable(info) + memory.Addr(t.layoutWord(info))
}

func (t *Tables) LargeBitmapSize(info memory.Addr) int {
	return int(t.arena.Load(t.largeBitmapAddr(info)))
}

func (t *Tables) SelectorOffset(info memory.Addr) int {
	return int(t.layoutWord(info))
}

// Layout decodes the layout descriptor according to the table's kind.
func (t *Tables) Layout(info memory.Addr) Layout {
	switch LayoutClassOf(t.Kind(info)) {
	case ClassSelector:
		return Selector{
			Offset: t.SelectorOffset(info),
		}
	case ClassBitmap:
		return t.codec.decodeBitmap(t.layoutWord(info))
	case ClassLargeBitmap:
		addr := t.largeBitmapAddr(info)
		size := int(t.arena.Load(addr))
		bits := make([]memory.Word, (size+t.wordBytes*8-1)/(t.wordBytes*8))
		for i := range bits {
			bits[i] = t.arena.Load(addr + t.words(1+i))
		}
		return LargeBitmap{
			Size: size,
			Bits: bits,
		}
	}
	return t.Payload(info)
}
