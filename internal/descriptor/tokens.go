package descriptor

import (
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/errdefs"
)

var tokenPattern = regexp.MustCompile(`@[a-zA-Z0-9-_]+@`)

// Tokens holds the placeholders that do not depend on the descriptor.
type Tokens map[string]string

// NewTokens computes @HOME@, @USER@, @COMPILER_<LANG>@ and @RUNTIME_PROGRAM@.
func NewTokens(p *config.Profile) Tokens {
	t := Tokens{
		"@RUNTIME_PROGRAM@": p.Runtime.Program,
	}
	if home, err := os.UserHomeDir(); err == nil {
		t["@HOME@"] = home
	}
	if u, err := user.Current(); err == nil {
		t["@USER@"] = u.Username
	} else {
		t["@USER@"] = os.Getenv("USER")
	}
	for lang, def := range p.Compiler.Compilers {
		t["@COMPILER_"+strings.ToUpper(lang)+"@"] = def.Program
	}
	return t
}

// Replace substitutes every token in content. The path tokens are computed
// from the descriptor location: @SRCPATH@ and @BUILDPATH@ point to its
// directory, @ROOTPATH@ and @BROOTPATH@ to the labelled roots. Unknown tokens
// are reported together.
func (t Tokens) Replace(content string, src Source, buildRoot string) (string, error) {
	all := make(map[string]string, len(t)+4)
	for k, v := range t {
		all[k] = v
	}
	all["@SRCPATH@"] = src.Dir()
	all["@ROOTPATH@"] = src.Root
	all["@BUILDPATH@"] = buildDir(buildRoot, src)
	all["@BROOTPATH@"] = filepath.Join(buildRoot, src.Label)

	unknown := map[string]struct{}{}
	out := tokenPattern.ReplaceAllStringFunc(content, func(tok string) string {
		if v, ok := all[tok]; ok {
			return v
		}
		unknown[tok] = struct{}{}
		return tok
	})
	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for n := range unknown {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", errdefs.Configf("%s: unknown token(s) %s", src.Path, strings.Join(names, ", "))
	}
	return out, nil
}

func buildDir(buildRoot string, src Source) string {
	return filepath.Join(buildRoot, src.Label, filepath.FromSlash(src.Subtree))
}
