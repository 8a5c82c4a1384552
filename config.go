package exprjit

import "github.com/xyproto/env/v2"

// VerboseMode gates Fprintf-to-stderr trace output during Pass1-Pass3
// and prolog/epilog emission. Set by config or by the cmd/exprjit CLI
// -verbose flag.
var VerboseMode = env.Bool("EXPRJIT_VERBOSE")

// Config holds environment-driven settings for the compiler.
type Config struct {
	Verbose      bool
	MaxStackSize int
}

// LoadConfig reads EXPRJIT_VERBOSE and EXPRJIT_MAX_STACK_SIZE from the
// environment, falling back to the package defaults.
func LoadConfig() Config {
	maxStack := env.Int("EXPRJIT_MAX_STACK_SIZE", c_maxStackSize)
	if maxStack > c_maxStackSize || maxStack <= 0 {
		maxStack = c_maxStackSize
	}
	return Config{
		Verbose:      env.Bool("EXPRJIT_VERBOSE"),
		MaxStackSize: maxStack,
	}
}
