package wasm_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/wasm-jsapi/wasm"
)

var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

func TestEncodeEmptyModule(t *testing.T) {
	m := &wasm.Module{}
	data := m.Encode()

	if !bytes.Equal(data, header) {
		t.Errorf("empty module = % x, want % x", data, header)
	}
}

func TestEncodeMemories(t *testing.T) {
	max := uint64(2)
	big := uint64(1 << 32)
	tests := []struct {
		name   string
		limits wasm.Limits
		want   []byte
	}{
		{"min only", wasm.Limits{Min: 1}, []byte{wasm.LimitsNoMax, 0x01}},
		{"min max", wasm.Limits{Min: 1, Max: &max}, []byte{wasm.LimitsHasMax, 0x01, 0x02}},
		{"shared", wasm.Limits{Min: 0, Max: &max, Shared: true}, []byte{wasm.LimitsHasMax | wasm.LimitsShared, 0x00, 0x02}},
		{"memory64", wasm.Limits{Min: 1, Max: &big, Memory64: true}, []byte{wasm.LimitsHasMax | wasm.LimitsMemory64, 0x01, 0x80, 0x80, 0x80, 0x80, 0x10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &wasm.Module{Memories: []wasm.MemoryType{{Limits: tt.limits}}}
			data := m.Encode()

			want := append([]byte{}, header...)
			want = append(want, wasm.SectionMemory, byte(len(tt.want)+1), 0x01)
			want = append(want, tt.want...)
			if !bytes.Equal(data, want) {
				t.Errorf("Encode() =\n% x\nwant\n% x", data, want)
			}
		})
	}
}

func TestEncodeTables(t *testing.T) {
	max := uint64(100)
	m := &wasm.Module{
		Tables: []wasm.TableType{
			{ElemType: byte(wasm.ValFuncRef), Limits: wasm.Limits{Min: 10, Max: &max}},
		},
	}

	data := m.Encode()
	section := []byte{wasm.SectionTable, 0x05, 0x01, byte(wasm.ValFuncRef), wasm.LimitsHasMax, 10, 100}
	if !bytes.Equal(data[len(header):], section) {
		t.Errorf("table section = % x, want % x", data[len(header):], section)
	}
}

func TestEncodeExports(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 0}}},
		Exports:  []wasm.Export{{Name: "memory", Kind: wasm.KindMemory}},
	}

	data := m.Encode()
	export := []byte{wasm.SectionExport, 0x0A, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', wasm.KindMemory, 0x00}
	if !bytes.HasSuffix(data, export) {
		t.Errorf("export section % x not at end of % x", export, data)
	}
}

func TestEncodeFunctions(t *testing.T) {
	m := &wasm.Module{}
	size := wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}
	m.AddFunc("a", size, wasm.FuncBody{Code: []byte{wasm.OpEnd}})
	m.AddFunc("b", size, wasm.FuncBody{Code: []byte{wasm.OpEnd}})
	m.AddFunc("c", wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}, wasm.FuncBody{
		Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI64}},
		Code:   []byte{wasm.OpEnd},
	})

	if len(m.Types) != 2 {
		t.Fatalf("expected identical signatures to share a type, got %d types", len(m.Types))
	}
	if len(m.Exports) != 3 || m.Exports[2].Idx != 2 || m.Exports[2].Kind != wasm.KindFunc {
		t.Fatalf("unexpected exports: %+v", m.Exports)
	}

	data := m.Encode()
	types := []byte{wasm.SectionType, 0x09, 0x02,
		wasm.FuncTypeByte, 0x00, 0x01, byte(wasm.ValI32),
		wasm.FuncTypeByte, 0x01, byte(wasm.ValI32), 0x00}
	funcs := []byte{wasm.SectionFunction, 0x04, 0x03, 0x00, 0x00, 0x01}
	code := []byte{wasm.SectionCode, 0x0C, 0x03,
		0x02, 0x00, wasm.OpEnd,
		0x02, 0x00, wasm.OpEnd,
		0x04, 0x01, 0x01, byte(wasm.ValI64), wasm.OpEnd}

	for _, want := range [][]byte{types, funcs, code} {
		if !bytes.Contains(data, want) {
			t.Errorf("section % x not found in % x", want, data)
		}
	}
	if !bytes.HasSuffix(data, code) {
		t.Error("code section should be last")
	}
}

func TestValTypeString(t *testing.T) {
	tests := []struct {
		want string
		v    wasm.ValType
	}{
		{"i32", wasm.ValI32},
		{"i64", wasm.ValI64},
		{"funcref", wasm.ValFuncRef},
		{"externref", wasm.ValExtern},
		{"unknown", wasm.ValType(0x01)},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("%#x.String() = %q, want %q", byte(tt.v), got, tt.want)
		}
	}
}
