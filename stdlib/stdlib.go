// Package stdlib holds the prewritten runtime helper library:
// one WAT function template per helper, keyed by its exported name, plus
// a static dependency table used to compute the transitive closure of
// helpers a compiled module actually needs. Package module drains this
// table during assembly; codegen and methods only ever call
// Context.RequireStdlib with a helper's name.
package stdlib

import (
	"sort"
	"strconv"
)

// Type tags, mirrored from package value so stdlib's WAT text can emit
// literal type constants without importing a Go package into WAT.
const (
	TypeAtom    = 0
	TypeArray   = 1
	TypeTyped   = 2
	TypeString  = 3
	TypeObject  = 4
	TypeClosure = 5
	TypeRegex   = 6
)

// Source maps a helper's name to its complete WAT function definition.
// Entries are emitted verbatim by package module; order is decided by
// the dependency closure, not by map iteration.
var Source = map[string]string{
	"__mkptr": `(func $__mkptr (param $type i32) (param $aux i32) (param $offset i32) (result f64)
    (f64.reinterpret_i64
      (i64.or
        (i64.const 0x7FF8000000000000)
        (i64.or
          (i64.shl (i64.extend_i32_u (local.get $type)) (i64.const 48))
          (i64.or
            (i64.shl (i64.extend_i32_u (local.get $aux)) (i64.const 32))
            (i64.extend_i32_u (local.get $offset)))))))`,

	"__ptr_bits": `(func $__ptr_bits (param $v f64) (result i64)
    (i64.and (i64.reinterpret_f64 (local.get $v)) (i64.const 0x0007FFFFFFFFFFFF)))`,

	"__is_pointer": `(func $__is_pointer (param $v f64) (result i32)
    (i32.and
      (i64.eq (i64.and (i64.reinterpret_f64 (local.get $v)) (i64.const 0x7FF8000000000000)) (i64.const 0x7FF8000000000000))
      (i64.ne (call $__ptr_bits (local.get $v)) (i64.const 0))))`,

	"__ptr_type": `(func $__ptr_type (param $v f64) (result i32)
    (i32.wrap_i64 (i64.shr_u (call $__ptr_bits (local.get $v)) (i64.const 48))))`,

	"__ptr_aux": `(func $__ptr_aux (param $v f64) (result i32)
    (i32.wrap_i64 (i64.and (i64.shr_u (call $__ptr_bits (local.get $v)) (i64.const 32)) (i64.const 0xFFFF))))`,

	"__ptr_offset": `(func $__ptr_offset (param $v f64) (result i32)
    (i32.wrap_i64 (i64.and (call $__ptr_bits (local.get $v)) (i64.const 0xFFFFFFFF))))`,

	"__ptr_with_aux": `(func $__ptr_with_aux (param $v f64) (param $aux i32) (result f64)
    (call $__mkptr (call $__ptr_type (local.get $v)) (local.get $aux) (call $__ptr_offset (local.get $v))))`,

	"__ptr_schema": `(func $__ptr_schema (param $v f64) (result i32)
    (call $__ptr_aux (local.get $v)))`,

	"__ptr_eq": `(func $__ptr_eq (param $a f64) (param $b f64) (result i32)
    (i64.eq (i64.reinterpret_f64 (local.get $a)) (i64.reinterpret_f64 (local.get $b))))`,

	"__f64_eq": `(func $__f64_eq (param $a f64) (param $b f64) (result i32)
    (if (result i32) (call $__is_pointer (local.get $a))
      (then (call $__ptr_eq (local.get $a) (local.get $b)))
      (else (f64.eq (local.get $a) (local.get $b)))))`,

	"__f64_ne": `(func $__f64_ne (param $a f64) (param $b f64) (result i32)
    (i32.eqz (call $__f64_eq (local.get $a) (local.get $b))))`,

	"__alloc": `(func $__alloc (param $type i32) (param $len i32) (result f64)
    (local $base i32) (local $size i32) (local $off i32) (local $cap i32)
    (local.set $base (global.get $__heap))
    (if (i32.eq (local.get $type) (i32.const ` + strconv.Itoa(TypeArray) + `))
      (then
        (local.set $cap (i32.const 4))
        (block $cap_done
          (loop $cap_grow
            (br_if $cap_done (i32.ge_s (local.get $cap) (local.get $len)))
            (local.set $cap (i32.shl (local.get $cap) (i32.const 1)))
            (br $cap_grow)))
        (local.set $size (i32.add (i32.const 8) (i32.mul (local.get $cap) (i32.const 8))))
        (f64.store offset=0 (local.get $base) (f64.convert_i32_s (local.get $len)))
        (local.set $off (i32.add (local.get $base) (i32.const 8))))
      (else (if (i32.eq (local.get $type) (i32.const ` + strconv.Itoa(TypeString) + `))
        (then
          (local.set $size (i32.add (i32.const 8) (i32.mul (local.get $len) (i32.const 2))))
          (i32.store offset=0 (local.get $base) (local.get $len))
          (i32.store offset=4 (local.get $base) (i32.const 0))
          (local.set $off (i32.add (local.get $base) (i32.const 8))))
        (else
          (local.set $size (local.get $len))
          (local.set $off (local.get $base))))))
    (global.set $__heap (i32.add (local.get $base) (local.get $size)))
    (call $__mkptr (local.get $type) (i32.const 0) (local.get $off)))`,

	// __field_get resolves an object field access: $__schema_table
	// holds one (field-table-offset, field-count) i32 pair per schema id,
	// indexed by the object's aux slot; a linear scan of the matching
	// field-id table maps $fieldId to a slot, whose value is loaded out of
	// the object's own (headerless) storage. Not-found reads NaN, the same
	// not-found result find gives.
	"__field_get": `(func $__field_get (param $obj f64) (param $fieldId i32) (result f64)
    (local $entry i32) (local $tableOff i32) (local $count i32) (local $i i32)
    (local.set $entry (i32.add (global.get $__schema_table) (i32.mul (call $__ptr_schema (local.get $obj)) (i32.const 8))))
    (local.set $tableOff (i32.load offset=0 (local.get $entry)))
    (local.set $count (i32.load offset=4 (local.get $entry)))
    (local.set $i (i32.const 0))
    (block $done (result f64)
      (loop $body
        (br_if $done (f64.const nan) (i32.ge_s (local.get $i) (local.get $count)))
        (br_if $done
          (f64.load offset=0 (i32.add (call $__ptr_offset (local.get $obj)) (i32.mul (local.get $i) (i32.const 8))))
          (i32.eq (i32.load offset=0 (i32.add (local.get $tableOff) (i32.mul (local.get $i) (i32.const 4)))) (local.get $fieldId)))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $body))
      (f64.const nan)))`,

	"__ptr_len": `(func $__ptr_len (param $v f64) (result i32)
    (local $t i32)
    (local.set $t (call $__ptr_type (local.get $v)))
    (if (result i32) (i32.eq (local.get $t) (i32.const ` + strconv.Itoa(TypeArray) + `))
      (then (i32.trunc_f64_s (f64.load offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8)))))
      (else (if (result i32) (i32.eq (local.get $t) (i32.const ` + strconv.Itoa(TypeString) + `))
        (then (call $__str_len (local.get $v)))
        (else (call $__typed_len (local.get $v)))))))`,

	"__ptr_set_len": `(func $__ptr_set_len (param $v f64) (param $n i32) (result f64)
    (f64.store offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8)) (f64.convert_i32_s (local.get $n)))
    (local.get $v))`,

	// __arr_get/__arr_set are the smart accessors: the same array value
	// may be flat or ring (aux bit 15), and every generic element access
	// routes through here so callers never need to know which form a
	// value is in.
	"__arr_get": `(func $__arr_get (param $arr f64) (param $idx i32) (result f64)
    (if (result f64) (call $__is_ring (local.get $arr))
      (then (call $__ring_get (local.get $arr) (local.get $idx)))
      (else (f64.load offset=0 (i32.add (call $__ptr_offset (local.get $arr)) (i32.mul (local.get $idx) (i32.const 8)))))))`,

	"__arr_set": `(func $__arr_set (param $arr f64) (param $idx i32) (param $val f64)
    (if (call $__is_ring (local.get $arr))
      (then (call $__ring_set (local.get $arr) (local.get $idx) (local.get $val)))
      (else (f64.store offset=0 (i32.add (call $__ptr_offset (local.get $arr)) (i32.mul (local.get $idx) (i32.const 8))) (local.get $val)))))`,

	"__is_ring": `(func $__is_ring (param $v f64) (result i32)
    (i32.and
      (i32.and (call $__is_pointer (local.get $v)) (i32.eq (call $__ptr_type (local.get $v)) (i32.const ` + strconv.Itoa(TypeArray) + `)))
      (i32.shr_u (i32.and (call $__ptr_aux (local.get $v)) (i32.const 0x8000)) (i32.const 15))))`,

	// __sso_is tests the short-string flag (bit 47 of the combined
	// payload) on a STRING-tagged pointer. The length/char accessors
	// below branch on it so every string operation handles both the
	// packed and the heap form.
	"__sso_is": `(func $__sso_is (param $v f64) (result i32)
    (i32.and
      (i32.and (call $__is_pointer (local.get $v)) (i32.eq (call $__ptr_type (local.get $v)) (i32.const ` + strconv.Itoa(TypeString) + `)))
      (i32.wrap_i64 (i64.and (i64.shr_u (call $__ptr_bits (local.get $v)) (i64.const 47)) (i64.const 1)))))`,

	"__str_len": `(func $__str_len (param $v f64) (result i32)
    (if (result i32) (call $__sso_is (local.get $v))
      (then (i32.wrap_i64 (i64.and (i64.shr_u (call $__ptr_bits (local.get $v)) (i64.const 42)) (i64.const 7))))
      (else (i32.load offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8))))))`,

	"__str_char_at": `(func $__str_char_at (param $v f64) (param $i i32) (result i32)
    (if (result i32) (call $__sso_is (local.get $v))
      (then (i32.wrap_i64 (i64.and
        (i64.shr_u (call $__ptr_bits (local.get $v))
          (i64.extend_i32_u (i32.sub (i32.const 35) (i32.mul (local.get $i) (i32.const 7)))))
        (i64.const 127))))
      (else (i32.load16_u offset=0 (i32.add (call $__ptr_offset (local.get $v)) (i32.mul (local.get $i) (i32.const 2)))))))`,

	"__str_empty": `(func $__str_empty (result f64)
    (call $__alloc (i32.const ` + strconv.Itoa(TypeString) + `) (i32.const 0)))`,

	"__str_lit_comma": `(func $__str_lit_comma (result f64)
    (local $s f64)
    (local.set $s (call $__alloc (i32.const ` + strconv.Itoa(TypeString) + `) (i32.const 1)))
    (i32.store16 offset=0 (call $__ptr_offset (local.get $s)) (i32.const 44))
    (local.get $s))`,

	"__str_copy": `(func $__str_copy (param $dst f64) (param $dstOff i32) (param $src f64)
    (local $i i32) (local $n i32)
    (local.set $n (call $__str_len (local.get $src)))
    (local.set $i (i32.const 0))
    (block $done
      (loop $body
        (br_if $done (i32.ge_s (local.get $i) (local.get $n)))
        (i32.store16 offset=0
          (i32.add (call $__ptr_offset (local.get $dst)) (i32.mul (i32.add (local.get $dstOff) (local.get $i)) (i32.const 2)))
          (call $__str_char_at (local.get $src) (local.get $i)))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $body))))`,

	"__strcat": `(func $__strcat (param $a f64) (param $b f64) (result f64)
    (local $out f64)
    (local.set $out (call $__alloc (i32.const ` + strconv.Itoa(TypeString) + `) (i32.add (call $__str_len (local.get $a)) (call $__str_len (local.get $b)))))
    (call $__str_copy (local.get $out) (i32.const 0) (local.get $a))
    (call $__str_copy (local.get $out) (call $__str_len (local.get $a)) (local.get $b))
    (local.get $out))`,

	"__strcat3": `(func $__strcat3 (param $a f64) (param $b f64) (param $c f64) (result f64)
    (call $__strcat (call $__strcat (local.get $a) (local.get $b)) (local.get $c)))`,

	"__str_concat": `(func $__str_concat (param $a f64) (param $b f64) (result f64)
    (call $__strcat (local.get $a) (local.get $b)))`,

	"__str_eq": `(func $__str_eq (param $a f64) (param $b f64) (result i32)
    (local $i i32) (local $n i32)
    (local.set $n (call $__str_len (local.get $a)))
    (if (result i32) (i32.ne (local.get $n) (call $__str_len (local.get $b)))
      (then (i32.const 0))
      (else
        (local.set $i (i32.const 0))
        (block $done (result i32)
          (loop $body
            (br_if $done (i32.const 1) (i32.ge_s (local.get $i) (local.get $n)))
            (br_if $done (i32.const 0)
              (i32.ne (call $__str_char_at (local.get $a) (local.get $i)) (call $__str_char_at (local.get $b) (local.get $i))))
            (local.set $i (i32.add (local.get $i) (i32.const 1)))
            (br $body))
          (i32.const 1)))))`,

	"__sso_to_heap": `(func $__sso_to_heap (param $v f64) (result f64)
    (local $out f64) (local $n i32) (local $i i32) (local $payload i64) (local $c i32)
    (local.set $payload (i64.and (call $__ptr_bits (local.get $v)) (i64.const 0x0000FFFFFFFFFFFF)))
    (local.set $n (i32.wrap_i64 (i64.and (i64.shr_u (local.get $payload) (i64.const 42)) (i64.const 0x7))))
    (local.set $out (call $__alloc (i32.const ` + strconv.Itoa(TypeString) + `) (local.get $n)))
    (local.set $i (i32.const 0))
    (block $done
      (loop $body
        (br_if $done (i32.ge_s (local.get $i) (local.get $n)))
        (local.set $c (i32.wrap_i64 (i64.and (i64.shr_u (local.get $payload) (i64.sub (i64.const 35) (i64.mul (i64.extend_i32_u (local.get $i)) (i64.const 7)))) (i64.const 0x7F))))
        (i32.store16 offset=0 (i32.add (call $__ptr_offset (local.get $out)) (i32.mul (local.get $i) (i32.const 2))) (local.get $c))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $body)))
    (local.get $out))`,

	// __num_to_str renders a number as a heap string. NaN and the
	// infinities map to interned literals laid down in static data
	// (globals $__lit_nan/$__lit_inf/$__lit_ninf, emitted by module
	// assembly whenever this helper is pulled in); everything else prints
	// a sign, the integer digits, and up to six fraction digits with
	// trailing zeros trimmed. Digit extraction stays in f64 arithmetic
	// throughout, so values beyond integer-conversion range never trap.
	"__num_to_str": `(func $__num_to_str (param $v f64) (result f64)
    (local $a f64) (local $p f64) (local $d f64)
    (local $neg i32) (local $cnt i32) (local $frac6 i32) (local $fraclen i32)
    (local $len i32) (local $pos i32) (local $out f64) (local $chars i32) (local $p6 i32) (local $i i32)
    (if (f64.ne (local.get $v) (local.get $v))
      (then (return (call $__mkptr (i32.const ` + strconv.Itoa(TypeString) + `) (i32.const 0) (global.get $__lit_nan)))))
    (if (f64.eq (local.get $v) (f64.const inf))
      (then (return (call $__mkptr (i32.const ` + strconv.Itoa(TypeString) + `) (i32.const 0) (global.get $__lit_inf)))))
    (if (f64.eq (local.get $v) (f64.const -inf))
      (then (return (call $__mkptr (i32.const ` + strconv.Itoa(TypeString) + `) (i32.const 0) (global.get $__lit_ninf)))))
    (local.set $neg (f64.lt (local.get $v) (f64.const 0)))
    (local.set $a (f64.abs (local.get $v)))
    (local.set $p (f64.const 1))
    (local.set $cnt (i32.const 1))
    (block $cnt_done
      (loop $cnt_grow
        (br_if $cnt_done (f64.lt (f64.trunc (f64.div (local.get $a) (local.get $p))) (f64.const 10)))
        (local.set $p (f64.mul (local.get $p) (f64.const 10)))
        (local.set $cnt (i32.add (local.get $cnt) (i32.const 1)))
        (br $cnt_grow)))
    (local.set $frac6 (i32.trunc_f64_s (f64.add (f64.mul (f64.sub (local.get $a) (f64.trunc (local.get $a))) (f64.const 1000000)) (f64.const 0.5))))
    (if (i32.ge_s (local.get $frac6) (i32.const 1000000)) (then (local.set $frac6 (i32.const 999999))))
    (local.set $fraclen (i32.const 6))
    (block $trim_done
      (loop $trim
        (br_if $trim_done (i32.eqz (local.get $frac6)))
        (br_if $trim_done (i32.ne (i32.rem_s (local.get $frac6) (i32.const 10)) (i32.const 0)))
        (local.set $frac6 (i32.div_s (local.get $frac6) (i32.const 10)))
        (local.set $fraclen (i32.sub (local.get $fraclen) (i32.const 1)))
        (br $trim)))
    (local.set $len (i32.add (local.get $neg) (local.get $cnt)))
    (if (i32.gt_s (local.get $frac6) (i32.const 0))
      (then (local.set $len (i32.add (i32.add (local.get $len) (i32.const 1)) (local.get $fraclen)))))
    (local.set $out (call $__alloc (i32.const ` + strconv.Itoa(TypeString) + `) (local.get $len)))
    (local.set $chars (call $__ptr_offset (local.get $out)))
    (local.set $pos (i32.const 0))
    (if (local.get $neg)
      (then
        (i32.store16 offset=0 (local.get $chars) (i32.const 45))
        (local.set $pos (i32.const 1))))
    (block $int_done
      (loop $int_digits
        (local.set $d (f64.trunc (f64.div (local.get $a) (local.get $p))))
        (local.set $d (f64.sub (local.get $d) (f64.mul (f64.trunc (f64.div (local.get $d) (f64.const 10))) (f64.const 10))))
        (i32.store16 offset=0 (i32.add (local.get $chars) (i32.mul (local.get $pos) (i32.const 2)))
          (i32.add (i32.const 48) (i32.trunc_f64_s (local.get $d))))
        (local.set $pos (i32.add (local.get $pos) (i32.const 1)))
        (br_if $int_done (f64.lt (local.get $p) (f64.const 10)))
        (local.set $p (f64.div (local.get $p) (f64.const 10)))
        (br $int_digits)))
    (if (i32.gt_s (local.get $frac6) (i32.const 0))
      (then
        (i32.store16 offset=0 (i32.add (local.get $chars) (i32.mul (local.get $pos) (i32.const 2))) (i32.const 46))
        (local.set $pos (i32.add (local.get $pos) (i32.const 1)))
        (local.set $p6 (i32.const 1))
        (local.set $i (i32.const 1))
        (block $p6_done
          (loop $p6_grow
            (br_if $p6_done (i32.ge_s (local.get $i) (local.get $fraclen)))
            (local.set $p6 (i32.mul (local.get $p6) (i32.const 10)))
            (local.set $i (i32.add (local.get $i) (i32.const 1)))
            (br $p6_grow)))
        (block $frac_done
          (loop $frac_digits
            (br_if $frac_done (i32.eqz (local.get $p6)))
            (i32.store16 offset=0 (i32.add (local.get $chars) (i32.mul (local.get $pos) (i32.const 2)))
              (i32.add (i32.const 48) (i32.rem_s (i32.div_s (local.get $frac6) (local.get $p6)) (i32.const 10))))
            (local.set $pos (i32.add (local.get $pos) (i32.const 1)))
            (local.set $p6 (i32.div_s (local.get $p6) (i32.const 10)))
            (br $frac_digits)))))
    (local.get $out))`,

	"__mk_symbol": `(global $__symbol_counter (mut i32) (i32.const 0))
  (func $__mk_symbol (result f64)
    (global.set $__symbol_counter (i32.add (global.get $__symbol_counter) (i32.const 1)))
    (call $__mkptr (i32.const ` + strconv.Itoa(TypeAtom) + `) (i32.const 1) (global.get $__symbol_counter)))`,

	"__typeof_code": `(func $__typeof_code (param $v f64) (result i32)
    (if (result i32) (call $__is_pointer (local.get $v))
      (then (call $__ptr_type (local.get $v)))
      (else (i32.const -1))))`,

	// __typed_shift maps an element-type code {I8=0, U8=1, I16=2, U16=3,
	// I32=4, U32=5, F32=6, F64=7} to its log2 byte width.
	"__typed_shift": `(func $__typed_shift (param $k i32) (result i32)
    (if (result i32) (i32.eq (local.get $k) (i32.const 7))
      (then (i32.const 3))
      (else (if (result i32) (i32.eq (local.get $k) (i32.const 6))
        (then (i32.const 2))
        (else (i32.shr_u (local.get $k) (i32.const 1)))))))`,

	"__alloc_typed": `(func $__alloc_typed (param $elemKind i32) (param $len i32) (result f64)
    (local $base i32) (local $data i32)
    (local.set $base (global.get $__typed_heap))
    (local.set $data (i32.add (local.get $base) (i32.const 8)))
    (i32.store offset=0 (local.get $base) (local.get $len))
    (i32.store offset=4 (local.get $base) (local.get $data))
    (global.set $__typed_heap (i32.add (local.get $data) (i32.shl (local.get $len) (call $__typed_shift (local.get $elemKind)))))
    (call $__mkptr (i32.const ` + strconv.Itoa(TypeTyped) + `) (local.get $elemKind) (local.get $base)))`,

	"__mk_typed_view": `(func $__mk_typed_view (param $elemKind i32) (param $dataPtr i32) (param $len i32) (result f64)
    (local $base i32)
    (local.set $base (global.get $__typed_heap))
    (i32.store offset=0 (local.get $base) (local.get $len))
    (i32.store offset=4 (local.get $base) (local.get $dataPtr))
    (global.set $__typed_heap (i32.add (local.get $base) (i32.const 8)))
    (call $__mkptr (i32.const ` + strconv.Itoa(TypeTyped) + `) (local.get $elemKind) (local.get $base)))`,

	"__mk_typed_subarray": `(func $__mk_typed_subarray (param $v f64) (param $start i32) (param $end i32) (result f64)
    (local $n i32) (local $s i32) (local $e i32) (local $dataPtr i32)
    (local.set $s (local.get $start)) (local.set $e (local.get $end))
    (local.set $n (call $__typed_len (local.get $v)))
    (if (i32.lt_s (local.get $s) (i32.const 0)) (then (local.set $s (i32.add (local.get $s) (local.get $n)))))
    (if (i32.lt_s (local.get $e) (i32.const 0)) (then (local.set $e (i32.add (local.get $e) (local.get $n)))))
    (local.set $dataPtr (i32.add (call $__typed_dataptr (local.get $v)) (i32.shl (local.get $s) (call $__typed_shift (call $__typed_elemtype (local.get $v))))))
    (call $__mk_typed_view (call $__ptr_aux (local.get $v)) (local.get $dataPtr) (i32.sub (local.get $e) (local.get $s))))`,

	"__typed_elemtype": `(func $__typed_elemtype (param $v f64) (result i32)
    (call $__ptr_aux (local.get $v)))`,

	"__typed_dataptr": `(func $__typed_dataptr (param $v f64) (result i32)
    (i32.load offset=4 (call $__ptr_offset (local.get $v))))`,

	"__typed_len": `(func $__typed_len (param $v f64) (result i32)
    (i32.load offset=0 (call $__ptr_offset (local.get $v))))`,

	// __typed_get/__typed_set dispatch on the view's element-type code,
	// widening every element kind to f64 on the way out and narrowing on
	// the way in (signed/unsigned loads, f32 promote/demote). Narrowing
	// stores truncate toward zero and wrap at the element width; a value
	// outside i32 conversion range is the caller's error.
	"__typed_get": `(func $__typed_get (param $v f64) (param $idx i32) (result f64)
    (local $k i32) (local $p i32)
    (local.set $k (call $__typed_elemtype (local.get $v)))
    (local.set $p (i32.add (call $__typed_dataptr (local.get $v)) (i32.shl (local.get $idx) (call $__typed_shift (local.get $k)))))
    (if (result f64) (i32.eq (local.get $k) (i32.const 0))
      (then (f64.convert_i32_s (i32.load8_s offset=0 (local.get $p))))
      (else (if (result f64) (i32.eq (local.get $k) (i32.const 1))
        (then (f64.convert_i32_u (i32.load8_u offset=0 (local.get $p))))
        (else (if (result f64) (i32.eq (local.get $k) (i32.const 2))
          (then (f64.convert_i32_s (i32.load16_s offset=0 (local.get $p))))
          (else (if (result f64) (i32.eq (local.get $k) (i32.const 3))
            (then (f64.convert_i32_u (i32.load16_u offset=0 (local.get $p))))
            (else (if (result f64) (i32.eq (local.get $k) (i32.const 4))
              (then (f64.convert_i32_s (i32.load offset=0 (local.get $p))))
              (else (if (result f64) (i32.eq (local.get $k) (i32.const 5))
                (then (f64.convert_i32_u (i32.load offset=0 (local.get $p))))
                (else (if (result f64) (i32.eq (local.get $k) (i32.const 6))
                  (then (f64.promote_f32 (f32.load offset=0 (local.get $p))))
                  (else (f64.load offset=0 (local.get $p)))))))))))))))))`,

	"__typed_set": `(func $__typed_set (param $v f64) (param $idx i32) (param $val f64)
    (local $k i32) (local $p i32)
    (local.set $k (call $__typed_elemtype (local.get $v)))
    (local.set $p (i32.add (call $__typed_dataptr (local.get $v)) (i32.shl (local.get $idx) (call $__typed_shift (local.get $k)))))
    (if (i32.le_s (local.get $k) (i32.const 1))
      (then (i32.store8 offset=0 (local.get $p) (i32.trunc_f64_s (local.get $val))))
      (else (if (i32.le_s (local.get $k) (i32.const 3))
        (then (i32.store16 offset=0 (local.get $p) (i32.trunc_f64_s (local.get $val))))
        (else (if (i32.eq (local.get $k) (i32.const 4))
          (then (i32.store offset=0 (local.get $p) (i32.trunc_f64_s (local.get $val))))
          (else (if (i32.eq (local.get $k) (i32.const 5))
            (then (i32.store offset=0 (local.get $p) (i32.trunc_f64_u (local.get $val))))
            (else (if (i32.eq (local.get $k) (i32.const 6))
              (then (f32.store offset=0 (local.get $p) (f32.demote_f64 (local.get $val))))
              (else (f64.store offset=0 (local.get $p) (local.get $val)))))))))))))`,

	"__reset_typed_arrays": `(func $__reset_typed_arrays
    (global.set $__typed_heap (global.get $__typed_heap_start)))`,

	// __alloc_ring rounds the requested capacity up to a power of two (at
	// least 4) so __ring_mask can wrap indices with a single and, and tags
	// the pointer's aux field with the ring flag (bit 15) plus the
	// capacity in the low 15 bits.
	"__alloc_ring": `(func $__alloc_ring (param $cap i32) (result f64)
    (local $base i32) (local $c i32)
    (local.set $c (i32.const 4))
    (block $cap_done
      (loop $cap_grow
        (br_if $cap_done (i32.ge_s (local.get $c) (local.get $cap)))
        (local.set $c (i32.shl (local.get $c) (i32.const 1)))
        (br $cap_grow)))
    (local.set $base (global.get $__heap))
    (f64.store offset=0 (local.get $base) (f64.const 0))
    (f64.store offset=8 (local.get $base) (f64.const 0))
    (global.set $__heap (i32.add (i32.add (local.get $base) (i32.const 16)) (i32.mul (local.get $c) (i32.const 8))))
    (call $__mkptr (i32.const ` + strconv.Itoa(TypeArray) + `) (i32.or (local.get $c) (i32.const 0x8000)) (i32.add (local.get $base) (i32.const 16))))`,

	"__ring_head": `(func $__ring_head (param $v f64) (result i32)
    (i32.trunc_f64_s (f64.load offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 16)))))`,

	"__ring_len": `(func $__ring_len (param $v f64) (result i32)
    (i32.trunc_f64_s (f64.load offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8)))))`,

	"__ring_cap": `(func $__ring_cap (param $v f64) (result i32)
    (i32.and (call $__ptr_aux (local.get $v)) (i32.const 0x7FFF)))`,

	// Capacity is a power of two, so wrapping is a single and; this also
	// handles the transiently negative head __ring_unshift produces.
	"__ring_mask": `(func $__ring_mask (param $v f64) (param $i i32) (result i32)
    (i32.and (local.get $i) (i32.sub (call $__ring_cap (local.get $v)) (i32.const 1))))`,

	"__ring_get": `(func $__ring_get (param $v f64) (param $i i32) (result f64)
    (f64.load offset=0
      (i32.add (call $__ptr_offset (local.get $v))
        (i32.mul (call $__ring_mask (local.get $v) (i32.add (call $__ring_head (local.get $v)) (local.get $i))) (i32.const 8)))))`,

	"__ring_set": `(func $__ring_set (param $v f64) (param $i i32) (param $val f64)
    (f64.store offset=0
      (i32.add (call $__ptr_offset (local.get $v))
        (i32.mul (call $__ring_mask (local.get $v) (i32.add (call $__ring_head (local.get $v)) (local.get $i))) (i32.const 8)))
      (local.get $val)))`,

	"__ring_push": `(func $__ring_push (param $v f64) (param $val f64)
    (call $__ring_set (local.get $v) (call $__ring_len (local.get $v)) (local.get $val))
    (f64.store offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8))
      (f64.add (f64.load offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8))) (f64.const 1))))`,

	"__ring_pop": `(func $__ring_pop (param $v f64) (result f64)
    (local $n i32) (local $last f64)
    (local.set $n (call $__ring_len (local.get $v)))
    (if (result f64) (i32.eq (local.get $n) (i32.const 0))
      (then (f64.const nan))
      (else
        (local.set $last (call $__ring_get (local.get $v) (i32.sub (local.get $n) (i32.const 1))))
        (f64.store offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8)) (f64.convert_i32_s (i32.sub (local.get $n) (i32.const 1))))
        (local.get $last))))`,

	"__ring_shift": `(func $__ring_shift (param $v f64) (result f64)
    (local $n i32) (local $first f64)
    (local.set $n (call $__ring_len (local.get $v)))
    (if (result f64) (i32.eq (local.get $n) (i32.const 0))
      (then (f64.const nan))
      (else
        (local.set $first (call $__ring_get (local.get $v) (i32.const 0)))
        (f64.store offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 16))
          (f64.convert_i32_s (i32.add (call $__ring_head (local.get $v)) (i32.const 1))))
        (f64.store offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8)) (f64.convert_i32_s (i32.sub (local.get $n) (i32.const 1))))
        (local.get $first))))`,

	"__ring_unshift": `(func $__ring_unshift (param $v f64) (param $val f64)
    (f64.store offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 16))
      (f64.convert_i32_s (i32.sub (call $__ring_head (local.get $v)) (i32.const 1))))
    (f64.store offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8))
      (f64.add (f64.load offset=0 (i32.sub (call $__ptr_offset (local.get $v)) (i32.const 8))) (f64.const 1)))
    (call $__ring_set (local.get $v) (i32.const 0) (local.get $val)))`,

	"__ring_resize": `(func $__ring_resize (param $v f64) (param $newCap i32) (result f64)
    (local $out f64) (local $i i32) (local $n i32)
    (local.set $n (call $__ring_len (local.get $v)))
    (local.set $out (call $__alloc_ring (local.get $newCap)))
    (local.set $i (i32.const 0))
    (block $done
      (loop $body
        (br_if $done (i32.ge_s (local.get $i) (local.get $n)))
        (call $__ring_push (local.get $out) (call $__ring_get (local.get $v) (local.get $i)))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $body)))
    (local.get $out))`,

	"__to_ring": `(func $__to_ring (param $v f64) (result f64)
    (local $out f64) (local $i i32) (local $n i32)
    (local.set $n (call $__ptr_len (local.get $v)))
    (local.set $out (call $__alloc_ring (i32.add (local.get $n) (i32.const 1))))
    (local.set $i (i32.const 0))
    (block $done
      (loop $body
        (br_if $done (i32.ge_s (local.get $i) (local.get $n)))
        (call $__ring_push (local.get $out) (call $__arr_get (local.get $v) (local.get $i)))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $body)))
    (local.get $out))`,

	// __arr_shift removes and returns the first element of either array
	// form: O(1) on a ring, in-place element move-down on a flat array
	// (the pointer itself stays valid either way). Empty input yields NaN.
	"__arr_shift": `(func $__arr_shift (param $v f64) (result f64)
    (local $n i32) (local $first f64) (local $i i32) (local $base i32)
    (if (result f64) (call $__is_ring (local.get $v))
      (then (call $__ring_shift (local.get $v)))
      (else
        (local.set $n (call $__ptr_len (local.get $v)))
        (if (result f64) (i32.eq (local.get $n) (i32.const 0))
          (then (f64.const nan))
          (else
            (local.set $base (call $__ptr_offset (local.get $v)))
            (local.set $first (f64.load offset=0 (local.get $base)))
            (local.set $i (i32.const 0))
            (block $done
              (loop $body
                (br_if $done (i32.ge_s (local.get $i) (i32.sub (local.get $n) (i32.const 1))))
                (f64.store offset=0 (i32.add (local.get $base) (i32.mul (local.get $i) (i32.const 8)))
                  (f64.load offset=8 (i32.add (local.get $base) (i32.mul (local.get $i) (i32.const 8)))))
                (local.set $i (i32.add (local.get $i) (i32.const 1)))
                (br $body)))
            (f64.store offset=0 (i32.sub (local.get $base) (i32.const 8)) (f64.convert_i32_s (i32.sub (local.get $n) (i32.const 1))))
            (local.get $first))))))`,

	// __arr_unshift prepends val, converting a flat array to ring form on
	// first use and doubling a full ring, and returns the (possibly new)
	// array pointer for the caller to rebind.
	"__arr_unshift": `(func $__arr_unshift (param $v f64) (param $val f64) (result f64)
    (local $out f64)
    (local.set $out (local.get $v))
    (if (i32.eqz (call $__is_ring (local.get $out)))
      (then (local.set $out (call $__to_ring (local.get $out)))))
    (if (i32.ge_s (call $__ring_len (local.get $out)) (call $__ring_cap (local.get $out)))
      (then (local.set $out (call $__ring_resize (local.get $out) (i32.shl (call $__ring_cap (local.get $out)) (i32.const 1))))))
    (call $__ring_unshift (local.get $out) (local.get $val))
    (local.get $out))`,

	// __exc_globals backs throw/try (codegen/generate.go): the assembler
	// this compiler targets has no WASM exception-handling proposal
	// support, so a thrown value travels through these two globals
	// instead of a real exception tag.
	"__exc_globals": `(global $__exc_pending (mut i32) (i32.const 0))
  (global $__exc_value (mut f64) (f64.const nan))`,
}

// Deps lists, for each helper, the other stdlib helpers and globals its
// own body calls, so Close can compute the transitive closure instead of
// requiring callers to name every transitive dependency themselves.
var Deps = map[string][]string{
	"__is_pointer":        {"__ptr_bits"},
	"__ptr_type":          {"__ptr_bits"},
	"__ptr_aux":           {"__ptr_bits"},
	"__ptr_offset":        {"__ptr_bits"},
	"__ptr_with_aux":      {"__mkptr", "__ptr_type", "__ptr_offset"},
	"__ptr_schema":        {"__ptr_aux"},
	"__field_get":         {"__ptr_schema", "__ptr_offset"},
	"__f64_eq":            {"__is_pointer", "__ptr_eq"},
	"__f64_ne":            {"__f64_eq"},
	"__alloc":             {"__mkptr"},
	"__ptr_len":           {"__ptr_type", "__ptr_offset", "__str_len", "__typed_len"},
	"__ptr_set_len":       {"__ptr_offset"},
	"__arr_get":           {"__ptr_offset", "__is_ring", "__ring_get"},
	"__arr_set":           {"__ptr_offset", "__is_ring", "__ring_set"},
	"__is_ring":           {"__is_pointer", "__ptr_type", "__ptr_aux"},
	"__arr_shift":         {"__is_ring", "__ring_shift", "__ptr_len", "__ptr_offset"},
	"__arr_unshift":       {"__is_ring", "__to_ring", "__ring_len", "__ring_cap", "__ring_resize", "__ring_unshift"},
	"__sso_is":            {"__is_pointer", "__ptr_type", "__ptr_bits"},
	"__str_len":           {"__ptr_offset", "__sso_is", "__ptr_bits"},
	"__str_char_at":       {"__ptr_offset", "__sso_is", "__ptr_bits"},
	"__str_empty":         {"__alloc"},
	"__str_lit_comma":     {"__alloc", "__ptr_offset"},
	"__str_copy":          {"__ptr_offset", "__str_len", "__str_char_at"},
	"__strcat":            {"__alloc", "__str_len", "__str_copy"},
	"__strcat3":           {"__strcat"},
	"__str_concat":        {"__strcat"},
	"__str_eq":            {"__str_len", "__str_char_at"},
	"__sso_to_heap":       {"__alloc", "__ptr_bits", "__ptr_offset"},
	"__num_to_str":        {"__mkptr", "__alloc", "__ptr_offset"},
	"__mk_symbol":         {"__mkptr"},
	"__typeof_code":       {"__is_pointer", "__ptr_type"},
	"__typed_shift":       {},
	"__alloc_typed":       {"__mkptr", "__typed_shift"},
	"__mk_typed_view":     {"__mkptr"},
	"__mk_typed_subarray": {"__typed_len", "__typed_dataptr", "__ptr_aux", "__mk_typed_view", "__typed_shift", "__typed_elemtype"},
	"__typed_elemtype":    {"__ptr_aux"},
	"__typed_dataptr":     {"__ptr_offset"},
	"__typed_len":         {"__ptr_offset"},
	"__typed_get":         {"__typed_dataptr", "__typed_elemtype", "__typed_shift"},
	"__typed_set":         {"__typed_dataptr", "__typed_elemtype", "__typed_shift"},
	"__alloc_ring":        {"__mkptr"},
	"__ring_head":         {"__ptr_offset"},
	"__ring_len":          {"__ptr_offset"},
	"__ring_cap":          {"__ptr_aux"},
	"__ring_mask":         {"__ring_cap"},
	"__ring_get":          {"__ptr_offset", "__ring_mask", "__ring_head"},
	"__ring_set":          {"__ptr_offset", "__ring_mask", "__ring_head"},
	"__ring_push":         {"__ring_set", "__ring_len", "__ptr_offset"},
	"__ring_pop":          {"__ring_len", "__ring_get", "__ptr_offset"},
	"__ring_shift":        {"__ring_len", "__ring_get", "__ring_head", "__ptr_offset"},
	"__ring_unshift":      {"__ring_set", "__ring_head", "__ptr_offset"},
	"__ring_resize":       {"__ring_len", "__alloc_ring", "__ring_push", "__ring_get"},
	"__to_ring":           {"__ptr_len", "__alloc_ring", "__ring_push", "__arr_get"},
}

// Close computes the transitive closure of the requested helper names
// over Deps, returning them in a stable, dependency-respecting order
// (each helper appears only after everything it calls).
func Close(requested map[string]bool) []string {
	visited := map[string]bool{}
	var order []string
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		deps := append([]string(nil), Deps[name]...)
		sort.Strings(deps)
		for _, d := range deps {
			visit(d)
		}
		if _, ok := Source[name]; ok {
			order = append(order, name)
		}
	}
	names := make([]string, 0, len(requested))
	for n := range requested {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		visit(n)
	}
	return order
}
