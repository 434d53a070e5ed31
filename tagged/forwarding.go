package tagged

import "github.com/reusee/heaplayout/memory"

// Info pointers are word aligned, so bit 0 of a header word is free to mark a
// forwarding address.

func IsForwarding(w memory.Word) bool {
	return w&1 != 0
}

func MakeForwarding(p memory.Addr) memory.Word {
	return memory.Word(p) | 1
}

func ResolveForwarding(w memory.Word) memory.Addr {
	return memory.Addr(w &^ 1)
}
