package engine

import (
	"bytes"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/wasm"
)

const memoryExportKey = "memory"

// body assembles a function body for the table accessors. Every accessor
// addresses table 0.
type body struct {
	buf bytes.Buffer
}

func (b *body) localGet(i uint32) *body {
	b.buf.WriteByte(wasm.OpLocalGet)
	wasm.WriteLEB128u(&b.buf, i)
	return b
}

func (b *body) table(op byte) *body {
	b.buf.WriteByte(op)
	wasm.WriteLEB128u(&b.buf, 0)
	return b
}

func (b *body) misc(sub uint32) *body {
	b.buf.WriteByte(wasm.OpPrefixMisc)
	wasm.WriteLEB128u(&b.buf, sub)
	wasm.WriteLEB128u(&b.buf, 0)
	return b
}

func (b *body) op(ops ...byte) *body {
	b.buf.Write(ops)
	return b
}

func (b *body) end() wasm.FuncBody {
	b.buf.WriteByte(wasm.OpEnd)
	return wasm.FuncBody{Code: b.buf.Bytes()}
}

func code() *body { return &body{} }

func sig(params, results []wasm.ValType) wasm.FuncType {
	return wasm.FuncType{Params: params, Results: results}
}

func vals(v ...wasm.ValType) []wasm.ValType { return v }

// memoryModule builds a module exporting a single memory.
func memoryModule(initial uint64, maximum *uint64, shared bool) []byte {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: initial, Max: maximum, Shared: shared}}},
		Exports:  []wasm.Export{{Name: memoryExportKey, Kind: wasm.KindMemory}},
	}
	return m.Encode()
}

// tableModule builds a module exporting accessors over a single table.
// externref tables get get/set/grow/size/fill; funcref tables, which only
// ever hold null here, get is_null/set_null/grow/size.
func tableModule(elem wasmjsapi.ElemType, initial uint64, maximum *uint64) []byte {
	ref := wasm.ValType(elem.ValType())
	m := &wasm.Module{
		Tables: []wasm.TableType{{ElemType: byte(ref), Limits: wasm.Limits{Min: initial, Max: maximum}}},
	}
	i32 := wasm.ValI32

	if elem == wasmjsapi.ExternRef {
		m.AddFunc("get", sig(vals(i32), vals(ref)),
			code().localGet(0).table(wasm.OpTableGet).end())
		m.AddFunc("set", sig(vals(i32, ref), nil),
			code().localGet(0).localGet(1).table(wasm.OpTableSet).end())
		m.AddFunc("grow", sig(vals(ref, i32), vals(i32)),
			code().localGet(0).localGet(1).misc(wasm.MiscTableGrow).end())
		m.AddFunc("size", sig(nil, vals(i32)),
			code().misc(wasm.MiscTableSize).end())
		m.AddFunc("fill", sig(vals(i32, ref, i32), nil),
			code().localGet(0).localGet(1).localGet(2).misc(wasm.MiscTableFill).end())
		return m.Encode()
	}

	m.AddFunc("is_null", sig(vals(i32), vals(i32)),
		code().localGet(0).table(wasm.OpTableGet).op(wasm.OpRefIsNull).end())
	m.AddFunc("set_null", sig(vals(i32), nil),
		code().localGet(0).op(wasm.OpRefNull, byte(ref)).table(wasm.OpTableSet).end())
	m.AddFunc("grow", sig(vals(i32), vals(i32)),
		code().op(wasm.OpRefNull, byte(ref)).localGet(0).misc(wasm.MiscTableGrow).end())
	m.AddFunc("size", sig(nil, vals(i32)),
		code().misc(wasm.MiscTableSize).end())
	return m.Encode()
}
