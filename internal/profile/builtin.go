package profile

import (
	_ "embed"
	"fmt"
)

//go:embed profiles/builtin.yaml
var builtinYAML []byte

// Builtins returns the embedded profile specs. The result is a fresh map
// on every call; callers may merge into it freely.
func Builtins() map[string]Spec {
	specs, err := Parse(builtinYAML)
	if err != nil {
		panic(fmt.Sprintf("profile: embedded built-ins are malformed: %v", err))
	}
	return specs
}
