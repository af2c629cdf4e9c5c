// Package comptest provides component fixtures shared by backend and
// query tests.
package comptest

import (
	"testing"

	"github.com/Masterminds/semver/v3"

	"github.com/roach88/stow"
)

var (
	v1 = semver.MustParse("1.0.0")
	v2 = semver.MustParse("2.0.0")
)

// Alpha, Beta and Gamma are string-payload components with distinct
// identities.
type Alpha struct {
	Content string `json:"content"`
}

func (Alpha) ComponentName() string             { return "Alpha" }
func (Alpha) ComponentVersion() *semver.Version { return v1 }

type Beta struct {
	Content string `json:"content"`
}

func (Beta) ComponentName() string             { return "Beta" }
func (Beta) ComponentVersion() *semver.Version { return v1 }

type Gamma struct {
	Content string `json:"content"`
}

func (Gamma) ComponentName() string             { return "Gamma" }
func (Gamma) ComponentVersion() *semver.Version { return v1 }

// Counter is a numeric component used by mutation tests.
type Counter struct {
	Value int `json:"value"`
}

func (Counter) ComponentName() string             { return "Counter" }
func (Counter) ComponentVersion() *semver.Version { return v1 }

// AlphaV2 shares Alpha's name under a different version. It locks
// independently of Alpha but shares Alpha's storage table.
type AlphaV2 struct {
	Content string `json:"content"`
}

func (AlphaV2) ComponentName() string             { return "Alpha" }
func (AlphaV2) ComponentVersion() *semver.Version { return v2 }

// Serialize builds the transport form of c using f, failing the test
// on a codec error.
func Serialize(t *testing.T, f stow.Format, c stow.Component) stow.SerializedComponent {
	t.Helper()
	data, err := f.Serialize(c)
	if err != nil {
		t.Fatalf("serialize %s: %v", c.ComponentName(), err)
	}
	return stow.SerializedComponent{
		Name:     c.ComponentName(),
		Version:  c.ComponentVersion(),
		Contents: data,
	}
}
