package main

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/instpkg/instpkg/internal/build"
)

// configFile mirrors the build flags. Flags given on the command line win
// over file values.
type configFile struct {
	Output     string   `toml:"output"`
	PackageID  string   `toml:"pkgid"`
	Packages   []string `toml:"packages"`
	DMG        *bool    `toml:"dmg"`
	CatalogURL string   `toml:"catalog_url"`
}

func parseConfig(name string) (*configFile, error) {
	var config configFile
	if _, err := toml.DecodeFile(name, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// apply folds file values into opts wherever the corresponding flag was not
// set explicitly.
func (c *configFile) apply(opts build.Options, flags *pflag.FlagSet) build.Options {
	if c.Output != "" && !flags.Changed("output") {
		opts.OutputPath = c.Output
	}
	if c.PackageID != "" && !flags.Changed("pkgid") {
		opts.PackageID = c.PackageID
	}
	if len(c.Packages) > 0 && !flags.Changed("pkg") {
		opts.ExtraPackages = c.Packages
	}
	if c.DMG != nil && !flags.Changed("dmg") {
		opts.DMGOutput = *c.DMG
	}
	if c.CatalogURL != "" && !flags.Changed("catalog-url") {
		opts.CatalogURL = c.CatalogURL
	}
	return opts
}
