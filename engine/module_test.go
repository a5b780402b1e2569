package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	wasmjsapi "github.com/wippyai/wasm-jsapi"
	"github.com/wippyai/wasm-jsapi/wasm"
)

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

func TestMemoryModule(t *testing.T) {
	got := memoryModule(1, u64(2), false)
	want := []byte{
		0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00,
		wasm.SectionMemory, 0x04, 0x01, wasm.LimitsHasMax, 0x01, 0x02,
		wasm.SectionExport, 0x0A, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', wasm.KindMemory, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("memoryModule =\n% x\nwant\n% x", got, want)
	}
}

func TestMemoryModule_Shared(t *testing.T) {
	got := memoryModule(0, u64(1), true)
	section := []byte{wasm.SectionMemory, 0x04, 0x01, wasm.LimitsHasMax | wasm.LimitsShared, 0x00, 0x01}
	if !bytes.Contains(got, section) {
		t.Errorf("memory section % x not found in % x", section, got)
	}
}

func TestTableModule(t *testing.T) {
	tests := []struct {
		elem    wasmjsapi.ElemType
		exports []string
	}{
		{wasmjsapi.FuncRef, []string{"is_null", "set_null", "grow", "size"}},
		{wasmjsapi.ExternRef, []string{"get", "set", "grow", "size", "fill"}},
	}

	for _, tt := range tests {
		t.Run(tt.elem.String(), func(t *testing.T) {
			bin := tableModule(tt.elem, 3, nil)
			if !bytes.HasPrefix(bin, wasmHeader) {
				t.Fatal("missing header")
			}
			for _, name := range tt.exports {
				if !bytes.Contains(bin, []byte(name)) {
					t.Errorf("export %q missing", name)
				}
			}
			table := []byte{wasm.SectionTable, 0x04, 0x01, tt.elem.ValType(), wasm.LimitsNoMax, 0x03}
			if !bytes.Contains(bin, table) {
				t.Errorf("table section % x not found in % x", table, bin)
			}
		})
	}
}

// TestResourceModules_Compile checks that wazero accepts every module shape
// the backend builds.
func TestResourceModules_Compile(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter().
		WithCoreFeatures(api.CoreFeaturesV2|experimental.CoreFeaturesThreads))
	defer rt.Close(ctx)

	modules := map[string][]byte{
		"memory":          memoryModule(1, nil, false),
		"memory max":      memoryModule(1, u64(4), false),
		"memory shared":   memoryModule(1, u64(2), true),
		"funcref table":   tableModule(wasmjsapi.FuncRef, 2, u64(8)),
		"externref table": tableModule(wasmjsapi.ExternRef, 2, nil),
	}
	for name, bin := range modules {
		t.Run(name, func(t *testing.T) {
			m, err := rt.CompileModule(ctx, bin)
			if err != nil {
				t.Fatalf("CompileModule failed: %v", err)
			}
			_ = m.Close(ctx)
		})
	}
}
