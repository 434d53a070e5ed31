package infotables

import (
	"errors"
	"fmt"

	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/memory"
)

var ErrBadDefinition = errors.New("bad info table definition")

// CodeMarker fills the one-word code stub emitted with every table.
const CodeMarker memory.Word = 0xc0de

// Definition describes an info table the way generated code declares it.
type Definition struct {
	Kind   Kind
	Tag    uint
	Layout Layout
	// SRT of return and thunk tables.
	SRT memory.Word
	// function tables
	FunType   uint
	Arity     int
	ArgBitmap memory.Word
	// constructor tables
	Name string
}

// Builder installs info tables into the static part of an arena.
type Builder struct {
	tables *Tables
}

func NewBuilder(tables *Tables) *Builder {
	return &Builder{
		tables: tables,
	}
}

func (b *Builder) check(def *Definition) error {
	if !def.Kind.Valid() {
		return fmt.Errorf("%w: kind %v", ErrBadDefinition, def.Kind)
	}
	class := LayoutClassOf(def.Kind)
	if def.Layout == nil {
		switch class {
		case ClassPayload:
			def.Layout = Payload{}
		case ClassBitmap:
			def.Layout = Bitmap{}
		case ClassSelector:
			def.Layout = Selector{}
		case ClassLargeBitmap:
			return fmt.Errorf("%w: %v needs a large bitmap", ErrBadDefinition, def.Kind)
		}
	}
	var ok bool
	switch def.Layout.(type) {
	case Payload:
		ok = class == ClassPayload
	case Bitmap:
		ok = class == ClassBitmap
	case LargeBitmap:
		ok = class == ClassLargeBitmap
	case Selector:
		ok = class == ClassSelector
	}
	if !ok {
		return fmt.Errorf("%w: %T layout for %v", ErrBadDefinition, def.Layout, def.Kind)
	}
	if ptrs, nptrs, fixed := def.Kind.FixedArity(); fixed {
		if p := def.Layout.(Payload); p.Ptrs != ptrs || p.NPtrs != nptrs {
			return fmt.Errorf("%w: %v with %d+%d fields", ErrBadDefinition, def.Kind, p.Ptrs, p.NPtrs)
		}
	}
	if def.Tag > uint(b.tables.codec.halfMask()) {
		return fmt.Errorf("%w: tag %d", ErrBadDefinition, def.Tag)
	}
	return nil
}

// Install lays out the table for def with its code stub, any large bitmap and
// constructor name, and returns the info pointer.
func (b *Builder) Install(def Definition) (info memory.Addr, err error) {
	if err := b.check(&def); err != nil {
		return 0, err
	}

	t := b.tables
	arena := t.arena
	class := TableClassOf(def.Kind)
	width := t.Width(class)
	const codeWords = 1

	var bitmapWords int
	large, isLarge := def.Layout.(LargeBitmap)
	if isLarge {
		bitmapWords = 1 + len(large.Bits)
	}
	var nameWords int
	if def.Name != "" {
		nameWords = 1 + memory.RoundUpBytesToWords(len(def.Name), t.wordBytes)
	}

	start, err := arena.Alloc(codeWords + width + bitmapWords + nameWords)
	if err != nil {
		return 0, fmt.Errorf("install %v table: %w", def.Kind, err)
	}

	var table, code, tail memory.Addr
	if t.placement == heapconfigs.PlacementEnd {
		table = start
		code = arena.Offset(start, width)
		tail = arena.Offset(code, codeWords)
	} else {
		code = start
		table = arena.Offset(start, codeWords)
		tail = arena.Offset(table, width)
	}
	info = t.InfoPointer(table, class)
	std := t.StdTable(info)
	arena.Store(code, CodeMarker)

	// layout word
	var layoutWord memory.Word
	switch layout := def.Layout.(type) {
	case Payload:
		layoutWord = t.codec.encodePayload(layout)
	case Bitmap:
		layoutWord = t.codec.encodeBitmap(layout)
	case Selector:
		layoutWord = memory.Word(layout.Offset)
	case LargeBitmap:
		arena.Store(tail, memory.Word(layout.Size))
		for i, bits := range layout.Bits {
			arena.Store(arena.Offset(tail, 1+i), bits)
		}
		layoutWord = memory.Word(tail - std)
		tail = arena.Offset(tail, bitmapWords)
	}
	arena.Store(std+t.words(stdLayoutWord), layoutWord)
	arena.Store(std+t.words(stdKindTagWord),
		memory.Word(def.Kind)|memory.Word(def.Tag)<<t.codec.halfBits)
	if t.placement == heapconfigs.PlacementBeginning {
		arena.Store(std+t.words(stdEntryWord), memory.Word(code))
	}

	// extra words
	extra := t.extraAddr(table)
	switch class {
	case TableRet, TableThunk:
		arena.Store(extra, def.SRT)
	case TableFun:
		arena.Store(extra, memory.Word(def.FunType)|memory.Word(def.Arity)<<t.codec.halfBits)
		arena.Store(extra+t.words(1), def.ArgBitmap)
	case TableCon:
		if def.Name != "" {
			arena.Store(tail, memory.Word(len(def.Name)))
			for i := range len(def.Name) {
				arena.StoreByte(tail+t.words(1)+memory.Addr(i), def.Name[i])
			}
			arena.Store(extra, memory.Word(tail))
		}
	}

	return info, nil
}
