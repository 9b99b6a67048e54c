package descriptor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/vk/benchgrid/internal/config"
	"github.com/vk/benchgrid/internal/errdefs"
)

// extensions maps source suffixes to the compiler language keys of a profile.
var extensions = map[string]string{
	".c":   "cc",
	".cc":  "cxx",
	".cpp": "cxx",
	".cxx": "cxx",
	".C":   "cxx",
	".f":   "fc",
	".f90": "fc",
	".f95": "fc",
	".f03": "fc",
	".f08": "fc",
	".F90": "fc",
	".cu":  "cu",
}

// detectLang picks the language of a file set from the first file whose
// extension is known. Extensions declared by the profile take precedence.
func detectLang(files []string, compilers map[string]config.CompilerDef) (string, bool) {
	for _, f := range files {
		ext := filepath.Ext(f)
		for _, lang := range sortedLangs(compilers) {
			for _, e := range compilers[lang].Extensions {
				if e == ext || "."+e == ext {
					return lang, true
				}
			}
		}
		if lang, ok := extensions[ext]; ok {
			return lang, true
		}
	}
	return "", false
}

func sortedLangs(compilers map[string]config.CompilerDef) []string {
	langs := make([]string, 0, len(compilers))
	for l := range compilers {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// compileCommand renders `<compiler> <args> <variants> <cflags> <files> -o <binary> <ldflags>`.
func compileCommand(b *Build, srcDir string, compilers map[string]config.CompilerDef) (string, error) {
	files := b.Files
	binary, lang, cflags, ldflags := "a.out", "", b.CFlags, b.LDFlags
	if s := b.Sources; s != nil {
		files = append(append([]string(nil), files...), s.Files...)
		if s.Binary != "" {
			binary = s.Binary
		}
		lang = s.Lang
		cflags = join(cflags, s.CFlags)
		ldflags = join(ldflags, s.LDFlags)
	}
	if len(files) == 0 {
		return "", errdefs.Configf("build.sources lists no files")
	}
	if lang == "" {
		detected, ok := detectLang(files, compilers)
		if !ok {
			return "", errdefs.Configf("cannot detect the language of %v, set build.sources.lang", files)
		}
		lang = detected
	}
	def, ok := compilers[lang]
	if !ok || def.Program == "" {
		return "", errdefs.Configf("no %q compiler in the profile", lang)
	}

	parts := []string{def.Program, def.Args}
	for _, name := range b.Variants {
		v, ok := def.Variants[name]
		if !ok {
			return "", errdefs.Configf("compiler %q has no variant %q", lang, name)
		}
		parts = append(parts, v.Args)
	}
	parts = append(parts, cflags)
	for _, f := range files {
		parts = append(parts, shellquote.Join(absTo(srcDir, f)))
	}
	parts = append(parts, "-o", shellquote.Join(binary), ldflags)
	return join(parts...), nil
}

func makeCommand(m *Make, dir string) string {
	parts := []string{"make", "-C", shellquote.Join(dir)}
	if m.File != "" {
		parts = append(parts, "-f", shellquote.Join(m.File))
	}
	parts = append(parts, m.Target)
	if m.Jobs > 0 {
		parts = append(parts, fmt.Sprintf("-j%d", m.Jobs))
	}
	return join(parts...)
}

func cmakeCommand(c *CMake, srcDir, buildDir string) string {
	parts := []string{"cmake", shellquote.Join(srcDir), "-B", shellquote.Join(buildDir)}
	for _, v := range c.Vars {
		if !strings.HasPrefix(v, "-D") {
			v = "-D" + v
		}
		parts = append(parts, shellquote.Join(v))
	}
	return join(parts...) + " && " + join("make", "-C", shellquote.Join(buildDir))
}

func autotoolsCommand(a *Autotools, srcDir string) string {
	var steps []string
	if a.Autogen {
		steps = append(steps, shellquote.Join(filepath.Join(srcDir, "autogen.sh")))
	}
	configure := append([]string{shellquote.Join(filepath.Join(srcDir, "configure"))}, a.Params...)
	steps = append(steps, join(configure...), "make")
	return strings.Join(steps, " && ")
}

// pmPrelude renders the package manager lines run before a command.
func pmPrelude(pm PackageManager) []string {
	var lines []string
	for _, spec := range pm.Spack {
		q := shellquote.Join(spec)
		lines = append(lines,
			fmt.Sprintf("spack location -i %s >/dev/null 2>&1 || spack install %s", q, q),
			fmt.Sprintf("eval `spack load --sh %s`", q),
		)
	}
	for _, name := range pm.Module {
		lines = append(lines, "module load "+shellquote.Join(name))
	}
	return lines
}

// envList renders a KEY=VALUE map in key order.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + env[k]
	}
	return out
}

// absTo anchors a relative path on dir.
func absTo(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// isPath tells a program path (`./a.out`, `bin/x`) from a command looked up
// in $PATH.
func isPath(program string) bool {
	return strings.ContainsRune(program, '/')
}

// join concatenates the non-empty fragments with single spaces.
func join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
