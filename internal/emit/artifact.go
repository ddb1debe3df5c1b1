// Package emit writes the translated system as a MATLAB function file,
// hk<N>_rhs.m, and guards existing artifacts against silent overwrite.
package emit

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"romgen/internal/modes"
	"romgen/internal/translate"
)

// FunctionName is the MATLAB function name for a system of numModes modes.
func FunctionName(numModes int) string {
	return fmt.Sprintf("hk%d_rhs", numModes)
}

// ArtifactPath is the deterministic output path for a system of numModes
// modes under dir.
func ArtifactPath(dir string, numModes int) string {
	return filepath.Join(dir, FunctionName(numModes)+".m")
}

// Render writes the artifact text: function signature, a header comment
// mapping every mode to its flat index, r = sqrt(R), and the array literal
// of translated psi entries followed by translated theta entries.
func Render(w io.Writer, set modes.Set, psiBlock, thetaBlock string) error {
	entries := set.Entries()
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "function f = %s(x,a,s,k,R)\n", FunctionName(set.NumModes()))
	fmt.Fprintf(&b, "%% Vars: x = [%s]\n", strings.Join(labels, " "))
	for _, e := range entries {
		fmt.Fprintf(&b, "%%   x(%d) = %s\n", e.Index, e.Label())
	}
	b.WriteString("\nr = R^(1/2);\n\n")
	b.WriteString("f = [")
	b.WriteString(psiBlock)
	if psiBlock != "" && thetaBlock != "" {
		b.WriteString(translate.Separator)
	}
	b.WriteString(thetaBlock)
	b.WriteString("];\n")

	_, err := io.WriteString(w, b.String())
	return err
}
