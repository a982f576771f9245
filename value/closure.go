package value

// Closure values use the standard tag layout (Kind == Closure) with the
// aux field split into a 10-bit function-table index and a 6-bit
// environment length, per the resolved closure-layout question in
// sharing the pointer tag format with arrays/strings/
// objects means every pointer helper (IsPointer, Offset, ...) works on
// closures unmodified, at the cost of capping table index at 1024
// entries and capture count at 63 — generous for a compiled module.

const (
	tableIndexBits = 10
	envLenShift    = 6 // the table index sits above the 6-bit env length
	envLenBits     = 0x3F
	tableIndexMask = 0x3FF
)

// PackClosure encodes a closure value: tableIndex selects the function
// table entry, envLength is the capture count, envOffset points at the
// environment record (sequential f64 slots) in linear memory.
func PackClosure(tableIndex uint16, envLength uint8, envOffset uint32) float64 {
	aux := (tableIndex&tableIndexMask)<<envLenShift | uint16(envLength&envLenBits)
	return Pack(Closure, aux, envOffset)
}

// UnpackClosure decodes a closure value. ok is false if v isn't a closure.
func UnpackClosure(v float64) (tableIndex uint16, envLength uint8, envOffset uint32, ok bool) {
	if !IsPointer(v) || TypeOf(v) != Closure {
		return 0, 0, 0, false
	}
	aux := Aux(v)
	tableIndex = aux >> envLenShift
	envLength = uint8(aux & envLenBits)
	envOffset = Offset(v)
	return tableIndex, envLength, envOffset, true
}
