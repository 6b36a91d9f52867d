package core

import (
	"context"
	"os"
	"runtime"

	"github.com/spf13/afero"
)

// Family is the backend family a platform belongs to.
type Family string

const (
	FamilyDesktop Family = "desktop"
	FamilyMobile  Family = "mobile"
)

// FamilyFor maps a GOOS value to its backend family.
func FamilyFor(goos string) Family {
	switch goos {
	case "android", "ios":
		return FamilyMobile
	default:
		return FamilyDesktop
	}
}

// SystemContext holds what is known about the running platform. It is filled
// once at startup (see system.Detect) and read-only afterwards.
type SystemContext struct {
	context.Context `yaml:"-"`

	OS     string `yaml:"os"`   // runtime.GOOS
	Arch   string `yaml:"arch"` // runtime.GOARCH
	Family Family `yaml:"family"`

	User    string `yaml:"user"`
	HomeDir string `yaml:"home_dir"`

	// Platform directories
	DataDir     string `yaml:"data_dir"`     // user-scoped application data root
	DownloadDir string `yaml:"download_dir"` // user-visible downloads folder

	// Used by detection to read platform files and environment.
	FS     afero.Fs            `yaml:"-"`
	Getenv func(string) string `yaml:"-"`
}

func NewSystemContext() *SystemContext {
	home, _ := os.UserHomeDir()
	return &SystemContext{
		Context: context.Background(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Family:  FamilyFor(runtime.GOOS),
		User:    os.Getenv("USER"),
		HomeDir: home,
		FS:      afero.NewOsFs(),
		Getenv:  os.Getenv,
	}
}
