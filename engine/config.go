package engine

// DefaultMemoryLimitPages is the allocation cap applied when
// Config.MemoryLimitPages is zero: 1024 pages, 64MB.
const DefaultMemoryLimitPages = 1024

// DefaultModuleCacheSize is the number of compiled modules a wazero backend
// keeps when Config.ModuleCacheSize is zero.
const DefaultModuleCacheSize = 128

// Config holds configuration for backend creation
type Config struct {
	// MemoryLimitPages caps the pages a single memory may hold (64KB each).
	// 0 means default (1024 pages = 64MB).
	// 256 = 16MB, 4096 = 256MB, 65536 = 4GB
	MemoryLimitPages uint32 `yaml:"memory_limit_pages" envconfig:"MEMORY_LIMIT_PAGES"`

	// EnableThreads enables the WebAssembly threads proposal in wazero,
	// which is required for shared memories.
	EnableThreads bool `yaml:"enable_threads" envconfig:"ENABLE_THREADS"`

	// Interpreter forces the wazero interpreter instead of the compiler.
	Interpreter bool `yaml:"interpreter" envconfig:"INTERPRETER"`

	// ModuleCacheSize bounds the compiled-module cache of the wazero backend.
	ModuleCacheSize int `yaml:"module_cache_size" envconfig:"MODULE_CACHE_SIZE" validate:"gte=0"`
}

func (c *Config) memoryLimit() uint64 {
	if c == nil || c.MemoryLimitPages == 0 {
		return DefaultMemoryLimitPages
	}
	return uint64(c.MemoryLimitPages)
}

func (c *Config) cacheSize() int {
	if c == nil || c.ModuleCacheSize <= 0 {
		return DefaultModuleCacheSize
	}
	return c.ModuleCacheSize
}
