package descriptor

import (
	"github.com/mitchellh/mapstructure"
)

// TE is the typed form of a test expression node after group merging.
type TE struct {
	Group      []string          `mapstructure:"group"`
	Tag        []string          `mapstructure:"tag"`
	Build      *Build            `mapstructure:"build"`
	Run        *Run              `mapstructure:"run"`
	Validate   *Validate         `mapstructure:"validate"`
	Artifact   map[string]string `mapstructure:"artifact"`
	Metric     map[string]Metric `mapstructure:"metric"`
	Attributes *Attributes       `mapstructure:"attributes"`
}

type Build struct {
	Files          []string          `mapstructure:"files"`
	Sources        *Sources          `mapstructure:"sources"`
	Make           *Make             `mapstructure:"make"`
	CMake          *CMake            `mapstructure:"cmake"`
	Autotools      *Autotools        `mapstructure:"autotools"`
	Custom         *Custom           `mapstructure:"custom"`
	PackageManager PackageManager    `mapstructure:"package_manager"`
	CFlags         string            `mapstructure:"cflags"`
	LDFlags        string            `mapstructure:"ldflags"`
	Variants       []string          `mapstructure:"variants"`
	DependsOn      []string          `mapstructure:"depends_on"`
	Cwd            string            `mapstructure:"cwd"`
	Env            map[string]string `mapstructure:"env"`
	Iterate        map[string]any    `mapstructure:"iterate"`
	Reuse          string            `mapstructure:"reuse"`
}

// Produces reports whether the build node describes an actual build step. A
// reusing build never does.
func (b *Build) Produces() bool {
	return b != nil && b.Reuse == "" && (len(b.Files) > 0 || b.Sources != nil || b.Make != nil ||
		b.CMake != nil || b.Autotools != nil || b.Custom != nil)
}

type Sources struct {
	Files   []string `mapstructure:"files"`
	Binary  string   `mapstructure:"binary"`
	Lang    string   `mapstructure:"lang"`
	CFlags  string   `mapstructure:"cflags"`
	LDFlags string   `mapstructure:"ldflags"`
}

type Make struct {
	Target string `mapstructure:"target"`
	File   string `mapstructure:"file"`
	Jobs   int    `mapstructure:"jobs"`
}

type CMake struct {
	Vars []string `mapstructure:"vars"`
}

type Autotools struct {
	Params  []string `mapstructure:"params"`
	Autogen bool     `mapstructure:"autogen"`
}

type Custom struct {
	Program string `mapstructure:"program"`
}

type PackageManager struct {
	Spack  []string `mapstructure:"spack"`
	Module []string `mapstructure:"module"`
}

type Run struct {
	Program        string            `mapstructure:"program"`
	Args           string            `mapstructure:"args"`
	Iterate        map[string]any    `mapstructure:"iterate"`
	PackageManager PackageManager    `mapstructure:"package_manager"`
	DependsOn      []string          `mapstructure:"depends_on"`
	Cwd            string            `mapstructure:"cwd"`
	Env            map[string]string `mapstructure:"env"`
}

type Validate struct {
	ExpectExit *int             `mapstructure:"expect_exit"`
	Time       *Time            `mapstructure:"time"`
	Match      map[string]Match `mapstructure:"match"`
	// Analysis holds `method` plus keyword arguments, either inline or
	// under `args`.
	Analysis map[string]any `mapstructure:"analysis"`
	Script   *Script        `mapstructure:"script"`
}

// Time values are expressed in seconds.
type Time struct {
	Mean        *float64 `mapstructure:"mean"`
	Tolerance   float64  `mapstructure:"tolerance"`
	Coef        *float64 `mapstructure:"coef"`
	SoftTimeout *float64 `mapstructure:"soft_timeout"`
	HardTimeout *float64 `mapstructure:"hard_timeout"`
}

type Match struct {
	Expr   string `mapstructure:"expr"`
	Expect *bool  `mapstructure:"expect"`
}

type Script struct {
	Path string `mapstructure:"path"`
}

type Metric struct {
	Key        string `mapstructure:"key"`
	Attributes struct {
		Unique bool `mapstructure:"unique"`
	} `mapstructure:"attributes"`
}

type Attributes struct {
	CopyInput      *bool `mapstructure:"copy_input"`
	CopyOutput     *bool `mapstructure:"copy_output"`
	CommandWrap    *bool `mapstructure:"command_wrap"`
	PathResolution *bool `mapstructure:"path_resolution"`
}

// decodeTE converts a merged node. Single strings are accepted wherever a
// list is expected, and scalar env values are stringified.
func decodeTE(node map[string]any) (*TE, error) {
	te := &TE{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           te,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(node); err != nil {
		return nil, err
	}
	return te, nil
}
