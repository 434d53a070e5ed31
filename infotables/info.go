package infotables

import "github.com/reusee/heaplayout/memory"

type InfoTable struct {
	Kind   Kind
	Tag    uint
	Layout Layout
	Entry  memory.Addr
}

type RetInfoTable struct {
	InfoTable
	SRT memory.Word
}

type FunInfoTable struct {
	InfoTable
	FunType   uint
	Arity     int
	ArgBitmap memory.Word
}

type ThunkInfoTable struct {
	InfoTable
	SRT memory.Word
}

type ConInfoTable struct {
	InfoTable
	Name memory.Addr
}

func (t *Tables) Get(info memory.Addr) InfoTable {
	return InfoTable{
		Kind:   t.Kind(info),
		Tag:    t.Tag(info),
		Layout: t.Layout(info),
		Entry:  t.Entry(info),
	}
}

func (t *Tables) extra(info memory.Addr, class TableClass, i int) memory.Word {
	return t.arena.Load(t.extraAddr(t.StructOf(info, class)) + t.words(i))
}

func (t *Tables) GetRet(info memory.Addr) RetInfoTable {
	return RetInfoTable{
		InfoTable: t.Get(info),
		SRT:       t.extra(info, TableRet, 0),
	}
}

func (t *Tables) GetThunk(info memory.Addr) ThunkInfoTable {
	return ThunkInfoTable{
		InfoTable: t.Get(info),
		SRT:       t.extra(info, TableThunk, 0),
	}
}

func (t *Tables) GetFun(info memory.Addr) FunInfoTable {
	w := t.extra(info, TableFun, 0)
	return FunInfoTable{
		InfoTable: t.Get(info),
		FunType:   uint(w & t.codec.halfMask()),
		Arity:     int(w >> t.codec.halfBits & t.codec.halfMask()),
		ArgBitmap: t.extra(info, TableFun, 1),
	}
}

func (t *Tables) GetCon(info memory.Addr) ConInfoTable {
	return ConInfoTable{
		InfoTable: t.Get(info),
		Name:      memory.Addr(t.extra(info, TableCon, 0)),
	}
}

// ConName reads the constructor name of a constructor table.
func (t *Tables) ConName(info memory.Addr) string {
	addr := memory.Addr(t.extra(info, TableCon, 0))
	if addr == 0 {
		return ""
	}
	n := int(t.arena.Load(addr))
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = t.arena.LoadByte(addr + t.words(1) + memory.Addr(i))
	}
	return string(buf)
}
