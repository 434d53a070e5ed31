package infotables

import (
	"errors"
	"fmt"
	"testing"

	"github.com/reusee/heaplayout/heapconfigs"
	"github.com/reusee/heaplayout/memory"
)

func newTestTables(t *testing.T, config heapconfigs.Config) (*Tables, *Builder) {
	arena, err := memory.NewArena(memory.Addr(config.HeapBase), config.WordBytes, 4096)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		arena.Close()
	})
	tables := NewTables(config, arena)
	return tables, NewBuilder(tables)
}

func eachConfig(t *testing.T, fn func(t *testing.T, config heapconfigs.Config)) {
	for _, wordBytes := range []int{4, 8} {
		for _, placement := range []heapconfigs.Placement{
			heapconfigs.PlacementEnd,
			heapconfigs.PlacementBeginning,
		} {
			config := heapconfigs.Default()
			config.WordBytes = wordBytes
			config.Placement = placement
			t.Run(fmt.Sprintf("%d/%v", wordBytes, placement), func(t *testing.T) {
				fn(t, config)
			})
		}
	}
}

func TestAddressing(t *testing.T) {
	config := heapconfigs.Default()
	tables, _ := newTestTables(t, config)
	info := memory.Addr(0x200000)

	// end placement: tables sit directly below the info pointer
	for class, width := range map[TableClass]int{
		TableStd:   2,
		TableRet:   3,
		TableFun:   4,
		TableThunk: 3,
		TableCon:   3,
	} {
		table := tables.StructOf(info, class)
		if table != info-memory.Addr(width*8) {
			t.Fatalf("%v: got %v", class, table)
		}
		if tables.InfoPointer(table, class) != info {
			t.Fatalf("%v: got %v", class, tables.InfoPointer(table, class))
		}
		if ext := tables.StdToExtended(tables.StdTable(info), class); ext != table {
			t.Fatalf("%v: got %v", class, ext)
		}
	}
	if tables.FunTable(info) != info-32 || tables.RetTable(info) != info-24 ||
		tables.ThunkTable(info) != info-24 || tables.ConTable(info) != info-24 {
		t.Fatal()
	}

	config.Placement = heapconfigs.PlacementBeginning
	tables, _ = newTestTables(t, config)
	for _, class := range []TableClass{TableStd, TableRet, TableFun, TableThunk, TableCon} {
		if tables.StructOf(info, class) != info {
			t.Fatalf("%v", class)
		}
		if tables.InfoPointer(info, class) != info {
			t.Fatalf("%v", class)
		}
		if tables.StdToExtended(info, class) != info {
			t.Fatalf("%v", class)
		}
	}
}

func TestInstallAndGet(t *testing.T) {
	eachConfig(t, func(t *testing.T, config heapconfigs.Config) {
		tables, builder := newTestTables(t, config)

		info, err := builder.Install(Definition{
			Kind: KindConstr,
			Tag:  3,
			Layout: Payload{
				Ptrs:  2,
				NPtrs: 1,
			},
			Name: "Just",
		})
		if err != nil {
			t.Fatal(err)
		}
		if uint64(info)%uint64(config.WordBytes) != 0 {
			t.Fatalf("unaligned info pointer %v", info)
		}
		table := tables.Get(info)
		if table.Kind != KindConstr || table.Tag != 3 {
			t.Fatalf("got %+v", table)
		}
		if p, ok := table.Layout.(Payload); !ok || p.Ptrs != 2 || p.NPtrs != 1 {
			t.Fatalf("got %+v", table.Layout)
		}
		if w := tables.Arena().Load(table.Entry); w != CodeMarker {
			t.Fatalf("got %x", w)
		}
		if config.Placement == heapconfigs.PlacementEnd && table.Entry != info {
			t.Fatalf("got %v", table.Entry)
		}
		if config.Placement == heapconfigs.PlacementBeginning &&
			table.Entry != info-memory.Addr(config.WordBytes) {
			t.Fatalf("got %v", table.Entry)
		}
		con := tables.GetCon(info)
		if con.Name == 0 || tables.ConName(info) != "Just" {
			t.Fatalf("got %q", tables.ConName(info))
		}

		fun, err := builder.Install(Definition{
			Kind:      KindFunP1N1,
			Layout:    Payload{Ptrs: 1, NPtrs: 1},
			FunType:   2,
			Arity:     3,
			ArgBitmap: 0b101,
		})
		if err != nil {
			t.Fatal(err)
		}
		funTable := tables.GetFun(fun)
		if funTable.Kind != KindFunP1N1 || funTable.FunType != 2 ||
			funTable.Arity != 3 || funTable.ArgBitmap != 0b101 {
			t.Fatalf("got %+v", funTable)
		}

		thunk, err := builder.Install(Definition{
			Kind:   KindThunk,
			Layout: Payload{Ptrs: 3, NPtrs: 4},
			SRT:    0x77,
		})
		if err != nil {
			t.Fatal(err)
		}
		if th := tables.GetThunk(thunk); th.SRT != 0x77 || tables.Payload(thunk) != (Payload{3, 4}) {
			t.Fatalf("got %+v", th)
		}

		sel, err := builder.Install(Definition{
			Kind:   KindThunkSelector,
			Layout: Selector{Offset: 1},
		})
		if err != nil {
			t.Fatal(err)
		}
		if l := tables.Layout(sel); l != (Selector{Offset: 1}) {
			t.Fatalf("got %+v", l)
		}

		ret, err := builder.Install(Definition{
			Kind:   KindRetSmall,
			Layout: Bitmap{Size: 3, Bits: 0b010},
			SRT:    9,
		})
		if err != nil {
			t.Fatal(err)
		}
		if r := tables.GetRet(ret); r.SRT != 9 || r.Layout != (Bitmap{Size: 3, Bits: 0b010}) {
			t.Fatalf("got %+v", r)
		}
		if tables.BitmapSize(ret) != 3 {
			t.Fatalf("got %v", tables.BitmapSize(ret))
		}

		big, err := builder.Install(Definition{
			Kind: KindRetBig,
			Layout: LargeBitmap{
				Size: 70,
				Bits: make([]memory.Word, (70+config.WordBytes*8-1)/(config.WordBytes*8)),
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if tables.LargeBitmapSize(big) != 70 {
			t.Fatalf("got %v", tables.LargeBitmapSize(big))
		}
		if l := tables.Layout(big).(LargeBitmap); l.Size != 70 {
			t.Fatalf("got %+v", l)
		}

		// tables of different kinds do not overlap
		for _, p := range []memory.Addr{info, fun, thunk, sel, ret, big} {
			if k, ok := tables.PeekKind(p); !ok || !k.Valid() {
				t.Fatalf("got %v %v", k, ok)
			}
		}
	})
}

func TestInstallRejects(t *testing.T) {
	_, builder := newTestTables(t, heapconfigs.Default())
	for _, def := range []Definition{
		{Kind: KindInvalid},
		{Kind: NumKinds},
		{Kind: KindRetBig},
		{Kind: KindConstr, Layout: Bitmap{}},
		{Kind: KindThunkSelector, Layout: Payload{}},
		{Kind: KindRetSmall, Layout: Payload{}},
		{Kind: KindConstrP2, Layout: Payload{Ptrs: 1, NPtrs: 1}},
		{Kind: KindThunkN1},
		{Kind: KindConstr, Tag: 1 << 40},
	} {
		if _, err := builder.Install(def); !errors.Is(err, ErrBadDefinition) {
			t.Fatalf("%+v: got %v", def, err)
		}
	}
}

func TestPeekKind(t *testing.T) {
	tables, _ := newTestTables(t, heapconfigs.Default())
	if _, ok := tables.PeekKind(0); ok {
		t.Fatal()
	}
	if _, ok := tables.PeekKind(0x7fff_0000_0000); ok {
		t.Fatal()
	}
}
