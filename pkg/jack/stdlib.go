package jack

import (
	_ "embed"
	"encoding/json"
)

//go:embed stdlib.json
var stdlibJSON []byte

// StandardLibraryArity maps "ClassName.subroutineName" to the number of
// arguments its Jack source declares, excluding the implicit 'this' receiver
// methods get for free. It backs the optional --check-stdlib call-arity
// check in cmd/jack_compiler: a narrow structural check ("did this call
// supply the right number of arguments"), not the full type checker the
// spec's Non-goals rule out.
var StandardLibraryArity = mustLoadStdlibArity()

func mustLoadStdlibArity() map[string]int {
	table := map[string]int{}
	if err := json.Unmarshal(stdlibJSON, &table); err != nil {
		panic("jack: malformed embedded stdlib.json: " + err.Error())
	}
	return table
}
